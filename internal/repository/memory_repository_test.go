package repository

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/anime-shed/ocr-chat-go/internal/session"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRepo(onEnd func(string)) *MemorySessionRepository {
	return NewMemorySessionRepository(time.Hour, time.Hour, onEnd)
}

func TestCreateAndSnapshot(t *testing.T) {
	repo := newRepo(nil)

	id, err := repo.Create()
	require.NoError(t, err)
	assert.Equal(t, 1, repo.Count())

	snap, err := repo.Snapshot(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, session.StatusEmpty, snap.Status)
}

func TestSessionsAreIsolated(t *testing.T) {
	repo := newRepo(nil)
	a, _ := repo.Create()
	b, _ := repo.Create()

	require.NoError(t, repo.Update(context.Background(), a, func(s *session.State) error {
		s.SetExtractedText("only in a")
		return nil
	}))

	snapB, err := repo.Snapshot(context.Background(), b)
	require.NoError(t, err)
	assert.Nil(t, snapB.ExtractedText)
}

func TestUnknownAndMalformedIDs(t *testing.T) {
	repo := newRepo(nil)

	_, err := repo.Snapshot(context.Background(), "not-a-uuid")
	assert.ErrorIs(t, err, ErrInvalidSessionID)

	_, err = repo.Snapshot(context.Background(), "3f1c1a52-4f7e-4c3b-9a0d-2b7a9f4e6c11")
	assert.ErrorIs(t, err, ErrSessionNotFound)

	assert.ErrorIs(t, repo.Delete("3f1c1a52-4f7e-4c3b-9a0d-2b7a9f4e6c11"), ErrSessionNotFound)
}

func TestDelete_NotifiesEnd(t *testing.T) {
	var ended atomic.Value
	repo := newRepo(func(id string) { ended.Store(id) })

	id, _ := repo.Create()
	require.NoError(t, repo.Delete(id))

	assert.Equal(t, id, ended.Load())
	assert.Equal(t, 0, repo.Count())
	_, err := repo.Snapshot(context.Background(), id)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestUpdate_PropagatesError(t *testing.T) {
	repo := newRepo(nil)
	id, _ := repo.Create()

	err := repo.Update(context.Background(), id, func(s *session.State) error {
		return s.AppendTurn(session.Turn{Role: session.RoleUser, Content: "hi"})
	})
	assert.Error(t, err)
}

func TestUpdate_SerialisesSameSession(t *testing.T) {
	repo := newRepo(nil)
	id, _ := repo.Create()

	var active, maxActive int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = repo.Update(context.Background(), id, func(s *session.State) error {
				n := atomic.AddInt32(&active, 1)
				for {
					m := atomic.LoadInt32(&maxActive)
					if n <= m || atomic.CompareAndSwapInt32(&maxActive, m, n) {
						break
					}
				}
				time.Sleep(2 * time.Millisecond)
				atomic.AddInt32(&active, -1)
				return nil
			})
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&maxActive))
}

func TestUpdate_WaitHonoursContext(t *testing.T) {
	repo := newRepo(nil)
	id, _ := repo.Create()

	release := make(chan struct{})
	started := make(chan struct{})
	go func() {
		_ = repo.Update(context.Background(), id, func(s *session.State) error {
			close(started)
			<-release
			return nil
		})
	}()
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	err := repo.Update(ctx, id, func(s *session.State) error { return nil })
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	close(release)
}

func TestExists_DoesNotWaitForLock(t *testing.T) {
	repo := newRepo(nil)
	id, _ := repo.Create()

	started := make(chan struct{})
	release := make(chan struct{})
	go func() {
		_ = repo.Update(context.Background(), id, func(s *session.State) error {
			close(started)
			<-release
			return nil
		})
	}()
	<-started
	defer close(release)

	assert.NoError(t, repo.Exists(id))
	assert.ErrorIs(t, repo.Exists("not-a-uuid"), ErrInvalidSessionID)
	assert.ErrorIs(t, repo.Exists("3f1c1a52-4f7e-4c3b-9a0d-2b7a9f4e6c11"), ErrSessionNotFound)
}

func TestSessionExpires(t *testing.T) {
	ended := make(chan string, 1)
	repo := NewMemorySessionRepository(20*time.Millisecond, 5*time.Millisecond, func(id string) { ended <- id })

	id, _ := repo.Create()

	select {
	case got := <-ended:
		assert.Equal(t, id, got)
	case <-time.After(time.Second):
		t.Fatal("session did not expire")
	}
	_, err := repo.Snapshot(context.Background(), id)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}
