package repository

import (
	"time"

	"github.com/sentinelforge/sentinelforge-backend/internal/pkg/metrics"
)

// instrument wraps a database call with timing metrics.
func instrument(operation string, fn func() error) error {
	start := time.Now()
	err := fn()
	metrics.DBQueryDurationSeconds.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	return err
}
