package probe

import (
	"context"

	"github.com/alitto/pond/v2"
	"go.uber.org/zap"

	"github.com/F4txhr/pla/pkg/db/models"
)

// Outcome is the result of probing a single proxy. Outcomes are matched
// back to records by proxy id, never by reconstructing the address.
type Outcome struct {
	ProxyID   string
	Success   bool
	LatencyMs uint32
}

// Prober probes a bounded batch of proxies concurrently against the
// health oracle.
type Prober struct {
	checker Checker
	pool    pond.Pool
	logger  *zap.Logger
}

// NewProber creates a prober with its own worker pool. parallelism bounds
// how many oracle calls are in flight at once across all batches.
func NewProber(checker Checker, parallelism int, logger *zap.Logger) *Prober {
	if parallelism <= 0 {
		parallelism = 32
	}
	return &Prober{
		checker: checker,
		pool:    pond.NewPool(parallelism),
		logger:  logger,
	}
}

// Probe issues exactly one oracle call per record and returns one outcome
// per input, in input order. A call that fails, times out or returns a
// non-success status yields {Success: false, LatencyMs: 0}; probe
// failures never surface as an error from this method.
func (p *Prober) Probe(ctx context.Context, batch []*models.Proxy) []Outcome {
	outcomes := make([]Outcome, len(batch))

	group := p.pool.NewGroup()
	for i, proxy := range batch {
		i, proxy := i, proxy
		group.Submit(func() {
			latency, err := p.checker.Check(ctx, proxy.Address)
			if err != nil {
				p.logger.Debug("Probe failed",
					zap.String("proxy_id", proxy.ID),
					zap.String("address", proxy.Address),
					zap.Error(err))
				outcomes[i] = Outcome{ProxyID: proxy.ID, Success: false, LatencyMs: 0}
				return
			}
			outcomes[i] = Outcome{ProxyID: proxy.ID, Success: true, LatencyMs: latency}
		})
	}
	_ = group.Wait()

	return outcomes
}

// Stop releases the prober's worker pool.
func (p *Prober) Stop() {
	p.pool.StopAndWait()
}
