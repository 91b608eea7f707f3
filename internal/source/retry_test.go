package source

import (
	"context"
	"testing"
	"time"

	"github.com/kilupskalvis/ure/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gitlab.com/tozd/go/errors"
)

func fastRetry(n int) *RetryConfig {
	return &RetryConfig{
		MaxRetries:     n,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     5 * time.Millisecond,
		JitterFraction: 0.0,
	}
}

func TestIsTransient(t *testing.T) {
	assert.False(t, isTransient(nil))
	assert.False(t, isTransient(errors.WithStack(ErrRecordNotFound)))
	assert.False(t, isTransient(errors.WithStack(ErrRejected)))
	assert.False(t, isTransient(context.Canceled))
	assert.True(t, isTransient(errors.New("connection reset")))
}

func TestRetryStore_Backoff(t *testing.T) {
	rs := NewRetryStore(nil, &RetryConfig{
		MaxRetries:     3,
		InitialBackoff: 100 * time.Millisecond,
		MaxBackoff:     10 * time.Second,
		JitterFraction: 0.0,
	})

	assert.Equal(t, 100*time.Millisecond, rs.backoff(0))
	assert.Equal(t, 200*time.Millisecond, rs.backoff(1))
	assert.Equal(t, 400*time.Millisecond, rs.backoff(2))
}

func TestRetryStore_BackoffCapped(t *testing.T) {
	rs := NewRetryStore(nil, &RetryConfig{
		MaxRetries:     10,
		InitialBackoff: time.Second,
		MaxBackoff:     5 * time.Second,
	})
	assert.Equal(t, 5*time.Second, rs.backoff(10))
}

// flakyStore fails the first failures calls to WriteField
type flakyStore struct {
	*Memory
	failures int
	calls    int
}

func (f *flakyStore) WriteField(ctx context.Context, id string, loc models.FieldLocation, value string) error {
	f.calls++
	if f.calls <= f.failures {
		return errors.New("temporary failure")
	}
	return f.Memory.WriteField(ctx, id, loc, value)
}

func TestRetryStore_RetriesTransientWrites(t *testing.T) {
	inner := &flakyStore{Memory: newFixture(), failures: 2}
	rs := NewRetryStore(inner, fastRetry(3))

	err := rs.WriteField(context.Background(), "1", models.ContentLocation, "new")
	require.NoError(t, err)
	assert.Equal(t, 3, inner.calls)

	v, _ := inner.Field("1", models.ContentLocation)
	assert.Equal(t, "new", v)
}

func TestRetryStore_GivesUp(t *testing.T) {
	inner := &flakyStore{Memory: newFixture(), failures: 10}
	rs := NewRetryStore(inner, fastRetry(2))

	err := rs.WriteField(context.Background(), "1", models.ContentLocation, "new")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "after 2 retries")
	assert.Equal(t, 3, inner.calls)
}

func TestRetryStore_NotFoundIsNotRetried(t *testing.T) {
	m := newFixture()
	rs := NewRetryStore(m, fastRetry(3))

	_, err := rs.GetRecord(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrRecordNotFound)
}

func TestRetryStore_CancelledContext(t *testing.T) {
	inner := &flakyStore{Memory: newFixture(), failures: 10}
	rs := NewRetryStore(inner, &RetryConfig{MaxRetries: 3, InitialBackoff: time.Hour, MaxBackoff: time.Hour})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := rs.WriteField(ctx, "1", models.ContentLocation, "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "retry cancelled")
	assert.Equal(t, 1, inner.calls)
}
