package media

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
)

// BreakerUploader stops calling a failing backend for a while so requests
// fail fast instead of waiting on timeouts.
type BreakerUploader struct {
	next    Uploader
	cb      *gobreaker.CircuitBreaker
	timeout time.Duration
}

type BreakerSettings struct {
	Name string
	// ConsecutiveFailures opens the breaker.
	ConsecutiveFailures uint32
	// OpenTimeout is how long the breaker stays open before probing again.
	OpenTimeout time.Duration
	// CallTimeout bounds a single upload. Zero means no extra bound.
	CallTimeout time.Duration
}

func NewBreakerUploader(next Uploader, s BreakerSettings, log *logrus.Logger) *BreakerUploader {
	if s.ConsecutiveFailures == 0 {
		s.ConsecutiveFailures = 5
	}
	st := gobreaker.Settings{
		Name:        s.Name,
		MaxRequests: 1,
		Timeout:     s.OpenTimeout,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= s.ConsecutiveFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			if log != nil {
				log.Warnf("CircuitBreaker[%s] state changed from %s to %s", name, from, to)
			}
		},
	}
	return &BreakerUploader{next: next, cb: gobreaker.NewCircuitBreaker(st), timeout: s.CallTimeout}
}

func (b *BreakerUploader) Upload(ctx context.Context, localPath, folder string) (string, error) {
	if b.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.timeout)
		defer cancel()
	}
	res, err := b.cb.Execute(func() (interface{}, error) {
		return b.next.Upload(ctx, localPath, folder)
	})
	if err != nil {
		return "", err
	}
	return res.(string), nil
}

// State exposes the breaker state for diagnostics.
func (b *BreakerUploader) State() string { return b.cb.State().String() }
