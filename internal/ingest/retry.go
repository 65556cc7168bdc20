package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/shopstr-eng/shopstr-cache/internal/domain"
	"github.com/shopstr-eng/shopstr-cache/internal/logger"
	"github.com/shopstr-eng/shopstr-cache/internal/source"
)

// errSourcesUnreachable marks an attempt that left sources unreachable
var errSourcesUnreachable = errors.New("sources still unreachable")

// RetryPolicy is the caller-side policy for unreachable sources
type RetryPolicy struct {
	MaxAttempts int           // Total passes including the first, values below 1 mean one pass
	BackoffBase time.Duration // Delay before the second pass, doubled for each later one
}

func (p RetryPolicy) backOff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.BackoffBase
	if b.InitialInterval <= 0 {
		b.InitialInterval = time.Second
	}
	b.Multiplier = 2
	b.RandomizationFactor = 0.2
	b.MaxInterval = 64 * b.InitialInterval
	b.MaxElapsedTime = 0

	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(attempts-1)), ctx)
}

func (c *coordinator) IngestWithRetry(ctx context.Context, class domain.EntityClass, sources []source.Source, policy RetryPolicy) (*domain.IngestionReport, error) {
	var report *domain.IngestionReport
	pending := sources
	attempt := 0

	operation := func() error {
		attempt++
		passReport, err := c.Ingest(ctx, class, pending)
		if report == nil {
			report = passReport
		} else {
			report.Merge(passReport)
		}
		if err != nil {
			// store failures are for the caller to handle
			return backoff.Permanent(err)
		}

		if len(passReport.UnreachableSources) == 0 {
			return nil
		}
		pending = unreachable(pending, passReport.UnreachableSources)
		return fmt.Errorf("%w: %d of %d", errSourcesUnreachable, len(pending), len(sources))
	}

	notify := func(err error, wait time.Duration) {
		logger.WarnCtx(ctx, "Retrying unreachable sources",
			zap.String("class", string(class)),
			zap.Int("attempt", attempt),
			zap.Duration("wait", wait),
			zap.Error(err),
		)
	}

	err := backoff.RetryNotify(operation, policy.backOff(ctx), notify)
	if errors.Is(err, errSourcesUnreachable) {
		// the report lists what never answered
		return report, nil
	}
	return report, err
}

// unreachable returns the sources whose names are listed in names
func unreachable(sources []source.Source, names []string) []source.Source {
	down := make(map[string]bool, len(names))
	for _, name := range names {
		down[name] = true
	}

	var out []source.Source
	for _, src := range sources {
		if down[src.Name()] {
			out = append(out, src)
		}
	}
	return out
}
