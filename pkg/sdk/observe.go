package shelf

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/kailas-cloud/shelf/internal/metrics"
)

// observer logs and records every public client operation.
type observer struct {
	logger *zap.Logger
	ops    *metrics.Operations
}

func newObserver(logger *zap.Logger, reg prometheus.Registerer) (*observer, error) {
	o := &observer{logger: logger}
	if reg != nil {
		ops, err := metrics.NewOperations(reg)
		if err != nil {
			return nil, fmt.Errorf("shelf: %w", err)
		}
		o.ops = ops
	}
	return o, nil
}

func (o *observer) observe(op string, start time.Time, err error) {
	if o == nil {
		return
	}
	dur := time.Since(start)
	o.ops.Observe(op, dur, err)

	if o.logger == nil {
		return
	}
	if err != nil {
		o.logger.Warn("Operation failed", zap.String("op", op), zap.Duration("duration", dur), zap.Error(err))
		return
	}
	o.logger.Debug("Operation completed", zap.String("op", op), zap.Duration("duration", dur))
}
