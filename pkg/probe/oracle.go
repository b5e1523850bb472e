package probe

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sync/atomic"
	"time"

	"github.com/go-jose/go-jose/v4/json"

	"github.com/F4txhr/pla/pkg/utils"
)

// Checker answers "is this proxy address reachable, and at what latency".
type Checker interface {
	Check(ctx context.Context, address string) (uint32, error)
}

// Oracle is the HTTP client for the external health-check service. It is
// treated as an untrusted collaborator: every call carries its own
// timeout and a token-bucket caps the request rate so a large check
// cycle cannot flood it.
type Oracle struct {
	baseURL string
	client  *http.Client
	timeout time.Duration

	// token-bucket
	tokens      int64
	maxTokens   int64
	refillEvery time.Duration
	lastRefill  atomic.Value // time.Time
}

// OracleOpts is the set of options for a new Oracle.
type OracleOpts struct {
	BaseURL    string
	Timeout    time.Duration
	RPS        int
	Burst      int
	HTTPClient *http.Client
}

// OracleOptsFromEnv builds options from ORACLE_* environment variables.
func OracleOptsFromEnv() OracleOpts {
	return OracleOpts{
		BaseURL: utils.Env("ORACLE_URL", "http://localhost:8787"),
		Timeout: utils.EnvDuration("ORACLE_TIMEOUT", 5*time.Second),
		RPS:     utils.EnvInt("ORACLE_RPS", 50),
		Burst:   utils.EnvInt("ORACLE_BURST", 100),
	}
}

// NewOracle creates a new Oracle client with the given options.
func NewOracle(o OracleOpts) *Oracle {
	if o.RPS <= 0 {
		o.RPS = 50
	}
	if o.Burst <= 0 {
		o.Burst = o.RPS * 2
	}
	if o.Timeout <= 0 {
		o.Timeout = 5 * time.Second
	}

	client := o.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: o.Timeout}
	}

	oracle := &Oracle{
		baseURL:     o.BaseURL,
		client:      client,
		timeout:     o.Timeout,
		maxTokens:   int64(o.Burst),
		refillEvery: time.Second / time.Duration(o.RPS),
	}
	oracle.tokens = oracle.maxTokens
	oracle.lastRefill.Store(time.Now())
	return oracle
}

// healthResponse is the Oracle's answer for a single address.
type healthResponse struct {
	LatencyMs uint32 `json:"latency_ms"`
}

// Check issues exactly one health request for the given address. Any
// transport error, timeout or non-2xx status is returned as an error;
// the caller folds it into an offline outcome.
func (o *Oracle) Check(ctx context.Context, address string) (uint32, error) {
	o.acquire()

	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	endpoint := fmt.Sprintf("%s/health?proxy=%s", o.baseURL, url.QueryEscape(address))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return 0, err
	}

	resp, err := o.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer func() { _ = utils.DrainAndClose(resp.Body) }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return 0, fmt.Errorf("health check for %s returned status %d", address, resp.StatusCode)
	}

	var body healthResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return 0, fmt.Errorf("decode health response: %w", err)
	}
	return body.LatencyMs, nil
}

// refill refills the token-bucket with new tokens if necessary.
func (o *Oracle) refill() {
	last := o.lastRefill.Load().(time.Time)
	now := time.Now()
	if now.Sub(last) >= o.refillEvery {
		if atomic.LoadInt64(&o.tokens) < o.maxTokens {
			atomic.AddInt64(&o.tokens, 1)
		}
		o.lastRefill.Store(now)
	}
}

// acquire acquires a token from the token-bucket, blocking if necessary.
func (o *Oracle) acquire() {
	for {
		o.refill()
		if atomic.LoadInt64(&o.tokens) > 0 {
			atomic.AddInt64(&o.tokens, -1)
			return
		}
		time.Sleep(o.refillEvery / 2)
	}
}
