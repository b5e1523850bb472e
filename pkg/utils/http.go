package utils

import "io"

// DrainAndClose empties and closes an HTTP response body so the
// transport can reuse the connection. Used on every oracle round trip.
func DrainAndClose(rc io.ReadCloser) error {
	if rc == nil {
		return nil
	}
	_, _ = io.Copy(io.Discard, rc)
	return rc.Close()
}
