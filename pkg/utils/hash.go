package utils

import (
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// HashOrRead accepts the admin password env value either as plaintext
// or as a pre-computed bcrypt hash, and returns the hash.
func HashOrRead(password string) ([]byte, error) {
	for _, prefix := range []string{"$2a$", "$2b$", "$2y$"} {
		if strings.HasPrefix(password, prefix) {
			return []byte(password), nil
		}
	}
	return bcrypt.GenerateFromPassword([]byte(password), 10)
}
