package controller

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNextBackoff(t *testing.T) {
	tests := []struct {
		name         string
		current      time.Duration
		max          time.Duration
		factor       float64
		jitterFactor float64
		expectMin    time.Duration
		expectMax    time.Duration
	}{
		{
			name:         "initial backoff doubles",
			current:      1 * time.Second,
			max:          30 * time.Second,
			factor:       2.0,
			jitterFactor: 0.1,
			expectMin:    1800 * time.Millisecond,
			expectMax:    2200 * time.Millisecond,
		},
		{
			name:         "respects maximum",
			current:      20 * time.Second,
			max:          30 * time.Second,
			factor:       2.0,
			jitterFactor: 0.1,
			expectMin:    27 * time.Second,
			expectMax:    30 * time.Second,
		},
		{
			name:         "no jitter produces exact value",
			current:      5 * time.Second,
			max:          30 * time.Second,
			factor:       2.0,
			jitterFactor: 0.0,
			expectMin:    10 * time.Second,
			expectMax:    10 * time.Second,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Run multiple times to account for randomness in jitter
			for i := 0; i < 10; i++ {
				result := nextBackoff(tt.current, tt.max, tt.factor, tt.jitterFactor)
				assert.GreaterOrEqual(t, result, tt.expectMin)
				assert.LessOrEqual(t, result, tt.expectMax)
			}
		})
	}
}
