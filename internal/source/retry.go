package source

import (
	"context"
	"math"
	"math/rand"
	"time"

	"github.com/kilupskalvis/ure/internal/models"
	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"
)

// RetryConfig configures retry behavior for transient errors.
type RetryConfig struct {
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	JitterFraction float64 // 0.0 to 1.0
}

// DefaultRetryConfig returns sensible retry defaults.
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxRetries:     3,
		InitialBackoff: 200 * time.Millisecond,
		MaxBackoff:     5 * time.Second,
		JitterFraction: 0.25,
	}
}

// RetryStore wraps a Store with automatic retry on transient errors.
type RetryStore struct {
	inner  Store
	config *RetryConfig
}

var _ Store = (*RetryStore)(nil)

// NewRetryStore creates a RetryStore that wraps the given Store.
func NewRetryStore(inner Store, cfg *RetryConfig) *RetryStore {
	if cfg == nil {
		cfg = DefaultRetryConfig()
	}
	return &RetryStore{inner: inner, config: cfg}
}

// isTransient returns true for errors that are worth retrying.
func isTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrRecordNotFound) || errors.Is(err, ErrRejected) {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return true
}

// backoff computes the delay for the given attempt with jitter.
func (rs *RetryStore) backoff(attempt int) time.Duration {
	base := float64(rs.config.InitialBackoff) * math.Pow(2, float64(attempt))
	if base > float64(rs.config.MaxBackoff) {
		base = float64(rs.config.MaxBackoff)
	}
	jitter := base * rs.config.JitterFraction * (rand.Float64()*2 - 1)
	d := time.Duration(base + jitter)
	if d < 0 {
		d = 0
	}
	return d
}

// sleep waits for the given duration or until the context is cancelled.
func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// retry executes fn with retry logic. Only retries transient errors.
func (rs *RetryStore) retry(ctx context.Context, operation string, fn func() error) error {
	var lastErr error
	for attempt := 0; attempt <= rs.config.MaxRetries; attempt++ {
		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if !isTransient(lastErr) {
			return lastErr
		}
		if attempt < rs.config.MaxRetries {
			d := rs.backoff(attempt)
			zerolog.Ctx(ctx).Debug().Err(lastErr).Str("operation", operation).Int("attempt", attempt+1).Dur("backoff", d).Msg("retrying")
			if err := sleep(ctx, d); err != nil {
				return errors.Errorf("%s: %w (retry cancelled)", operation, lastErr)
			}
		}
	}
	return errors.Errorf("%s: %w (after %d retries)", operation, lastErr, rs.config.MaxRetries)
}

func (rs *RetryStore) ListRecordIDs(ctx context.Context, recordTypes []string, pageSize, pageNumber int) (page *Page, err error) {
	err = rs.retry(ctx, "list records", func() error {
		page, err = rs.inner.ListRecordIDs(ctx, recordTypes, pageSize, pageNumber)
		return err
	})
	return
}

func (rs *RetryStore) GetRecord(ctx context.Context, id string) (rec *models.Record, err error) {
	err = rs.retry(ctx, "get record", func() error {
		rec, err = rs.inner.GetRecord(ctx, id)
		return err
	})
	return
}

func (rs *RetryStore) GetAllFieldsWithPrefix(ctx context.Context, id string, excludePrefixes []string) (fields map[models.FieldLocation]string, err error) {
	err = rs.retry(ctx, "get fields", func() error {
		fields, err = rs.inner.GetAllFieldsWithPrefix(ctx, id, excludePrefixes)
		return err
	})
	return
}

// WriteField retries writes; mutators are required to be idempotent.
func (rs *RetryStore) WriteField(ctx context.Context, id string, loc models.FieldLocation, value string) error {
	return rs.retry(ctx, "write field", func() error {
		return rs.inner.WriteField(ctx, id, loc, value)
	})
}
