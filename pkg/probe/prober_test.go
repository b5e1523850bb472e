package probe

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/F4txhr/pla/pkg/db/models"
)

func newOracle(t *testing.T, url string) *Oracle {
	t.Helper()
	return NewOracle(OracleOpts{
		BaseURL: url,
		Timeout: 2 * time.Second,
		RPS:     10000,
		Burst:   10000,
	})
}

func TestProbeOneOutcomePerInput(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = fmt.Fprint(w, `{"latency_ms":33}`)
	}))
	t.Cleanup(srv.Close)

	p := NewProber(newOracle(t, srv.URL), 8, zaptest.NewLogger(t))
	t.Cleanup(p.Stop)

	batch := make([]*models.Proxy, 25)
	for i := range batch {
		batch[i] = &models.Proxy{ID: fmt.Sprintf("id-%d", i), Address: fmt.Sprintf("10.1.1.%d:1080", i)}
	}

	outcomes := p.Probe(context.Background(), batch)
	require.Len(t, outcomes, len(batch))
	for i, o := range outcomes {
		assert.Equal(t, batch[i].ID, o.ProxyID)
		assert.True(t, o.Success)
		assert.Equal(t, uint32(33), o.LatencyMs)
	}
}

func TestProbeFailuresYieldOfflineOutcomes(t *testing.T) {
	// Every other request fails with a 500.
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		addr := r.URL.Query().Get("proxy")
		var host int
		_, err := fmt.Sscanf(addr, "10.1.1.%d:1080", &host)
		require.NoError(t, err)
		calls.Add(1)
		if host%2 == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = fmt.Fprint(w, `{"latency_ms":5}`)
	}))
	t.Cleanup(srv.Close)

	p := NewProber(newOracle(t, srv.URL), 4, zaptest.NewLogger(t))
	t.Cleanup(p.Stop)

	batch := make([]*models.Proxy, 10)
	for i := range batch {
		batch[i] = &models.Proxy{ID: fmt.Sprintf("id-%d", i), Address: fmt.Sprintf("10.1.1.%d:1080", i)}
	}

	outcomes := p.Probe(context.Background(), batch)
	require.Len(t, outcomes, 10)

	// Exactly one oracle call per record.
	assert.Equal(t, int64(10), calls.Load())

	for i, o := range outcomes {
		if i%2 == 1 {
			assert.False(t, o.Success)
			assert.Zero(t, o.LatencyMs)
		} else {
			assert.True(t, o.Success)
			assert.Equal(t, uint32(5), o.LatencyMs)
		}
	}
}

func TestProbeUnreachableOracle(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	srv.Close() // connection refused from here on

	p := NewProber(newOracle(t, srv.URL), 4, zaptest.NewLogger(t))
	t.Cleanup(p.Stop)

	batch := []*models.Proxy{
		{ID: "a", Address: "10.1.1.1:1080"},
		{ID: "b", Address: "10.1.1.2:1080"},
	}

	outcomes := p.Probe(context.Background(), batch)
	require.Len(t, outcomes, 2)
	for i, o := range outcomes {
		assert.Equal(t, batch[i].ID, o.ProxyID)
		assert.False(t, o.Success)
		assert.Zero(t, o.LatencyMs)
	}
}

func TestProbeEmptyBatch(t *testing.T) {
	p := NewProber(newOracle(t, "http://localhost:0"), 4, zaptest.NewLogger(t))
	t.Cleanup(p.Stop)

	outcomes := p.Probe(context.Background(), nil)
	assert.Empty(t, outcomes)
}

func TestOracleCheckMalformedResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = fmt.Fprint(w, "not json")
	}))
	t.Cleanup(srv.Close)

	o := newOracle(t, srv.URL)
	_, err := o.Check(context.Background(), "10.1.1.1:1080")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode health response")
}

func TestOracleCheckTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		_, _ = fmt.Fprint(w, `{"latency_ms":1}`)
	}))
	t.Cleanup(srv.Close)

	o := NewOracle(OracleOpts{
		BaseURL: srv.URL,
		Timeout: 20 * time.Millisecond,
		RPS:     10000,
		Burst:   10000,
	})
	_, err := o.Check(context.Background(), "10.1.1.1:1080")
	require.Error(t, err)
}

func TestOracleEscapesAddress(t *testing.T) {
	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.URL.Query().Get("proxy")
		_, _ = fmt.Fprint(w, `{"latency_ms":1}`)
	}))
	t.Cleanup(srv.Close)

	o := newOracle(t, srv.URL)
	latency, err := o.Check(context.Background(), "user:p@ss@10.1.1.1:1080")
	require.NoError(t, err)
	assert.Equal(t, uint32(1), latency)
	assert.Equal(t, "user:p@ss@10.1.1.1:1080", got)
}
