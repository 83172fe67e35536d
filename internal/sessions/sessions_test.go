package sessions

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func newTestStore(ttl time.Duration) (*MemoryStore, *clock) {
	c := &clock{t: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)}
	s := NewMemoryStore(ttl)
	s.now = c.now
	return s, c
}

func TestCreateAndGet(t *testing.T) {
	s, _ := newTestStore(0)
	ctx := context.Background()

	sess, err := s.Create(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, sess.ID)
	assert.NotEmpty(t, sess.AgentSessionID)
	assert.NotEqual(t, sess.ID, sess.AgentSessionID)

	got, err := s.Get(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, sess.AgentSessionID, got.AgentSessionID)
}

func TestGet_NotFound(t *testing.T) {
	s, _ := newTestStore(0)
	_, err := s.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGetOrCreate(t *testing.T) {
	s, _ := newTestStore(0)
	ctx := context.Background()

	first, err := s.GetOrCreate(ctx, "")
	require.NoError(t, err)

	same, err := s.GetOrCreate(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, first.ID, same.ID)

	other, err := s.GetOrCreate(ctx, "unknown")
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, other.ID)
	assert.Equal(t, 2, s.Len())
}

func TestRecordTurn(t *testing.T) {
	s, c := newTestStore(0)
	ctx := context.Background()
	sess, _ := s.Create(ctx)

	c.t = c.t.Add(time.Minute)
	require.NoError(t, s.RecordTurn(ctx, sess.ID))
	require.NoError(t, s.RecordTurn(ctx, sess.ID))

	got, _ := s.Get(ctx, sess.ID)
	assert.Equal(t, 2, got.TurnCount)
	assert.Equal(t, c.t, got.UpdatedAt)

	assert.ErrorIs(t, s.RecordTurn(ctx, "missing"), ErrNotFound)
}

func TestExpiryAndSweep(t *testing.T) {
	s, c := newTestStore(time.Hour)
	ctx := context.Background()

	old, _ := s.Create(ctx)
	c.t = c.t.Add(45 * time.Minute)
	fresh, _ := s.Create(ctx)
	c.t = c.t.Add(30 * time.Minute)

	_, err := s.Get(ctx, old.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.Get(ctx, fresh.ID)
	assert.NoError(t, err)

	assert.Equal(t, 1, s.Sweep(ctx))
	assert.Equal(t, 1, s.Len())
}

func TestDelete(t *testing.T) {
	s, _ := newTestStore(0)
	ctx := context.Background()
	sess, _ := s.Create(ctx)

	require.NoError(t, s.Delete(ctx, sess.ID))
	assert.ErrorIs(t, s.Delete(ctx, sess.ID), ErrNotFound)
}

func TestConcurrentTurns(t *testing.T) {
	s, _ := newTestStore(0)
	ctx := context.Background()
	sess, _ := s.Create(ctx)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = s.RecordTurn(ctx, sess.ID)
		}()
	}
	wg.Wait()

	got, _ := s.Get(ctx, sess.ID)
	assert.Equal(t, 50, got.TurnCount)
}
