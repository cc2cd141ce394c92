package realtime

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type doc struct {
	ID     string
	UserID string
}

type memoryStore struct {
	mu    sync.Mutex
	docs  []doc
	fail  error
	loads int
}

func (s *memoryStore) add(d doc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs = append(s.docs, d)
}

func (s *memoryStore) load(_ context.Context, q Query) ([]doc, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loads++
	if s.fail != nil {
		return nil, s.fail
	}
	out := []doc{}
	for _, d := range s.docs {
		if want, ok := q.Filters["user_id"]; ok && d.UserID != want {
			continue
		}
		if q.DocumentID != "" && d.ID != q.DocumentID {
			continue
		}
		out = append(out, d)
	}
	return out, nil
}

type recorder struct {
	ch chan []doc
}

func newRecorder() *recorder {
	return &recorder{ch: make(chan []doc, 16)}
}

func (r *recorder) onChange(items []doc) {
	r.ch <- items
}

func (r *recorder) next(t *testing.T) []doc {
	t.Helper()
	select {
	case items := <-r.ch:
		return items
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for snapshot")
		return nil
	}
}

func (r *recorder) none(t *testing.T) {
	t.Helper()
	select {
	case items := <-r.ch:
		t.Fatalf("unexpected snapshot %v", items)
	case <-time.After(100 * time.Millisecond):
	}
}

func newTestHub(t *testing.T, store *memoryStore) (*Hub[doc], *LocalFeed) {
	t.Helper()
	feed := NewLocalFeed()
	hub, err := NewHub(HubParams[doc]{Feed: feed, Loader: store.load})
	require.NoError(t, err)
	return hub, feed
}

func TestHubDeliversFullSnapshots(t *testing.T) {
	store := &memoryStore{docs: []doc{{ID: "a1", UserID: "u1"}}}
	hub, feed := newTestHub(t, store)
	rec := newRecorder()

	unsubscribe, err := hub.Subscribe(context.Background(), Query{
		Collection: "applications",
		Filters:    map[string]string{"user_id": "u1"},
	}, rec.onChange)
	require.NoError(t, err)
	defer unsubscribe()

	assert.Equal(t, []doc{{ID: "a1", UserID: "u1"}}, rec.next(t))

	store.add(doc{ID: "a2", UserID: "u1"})
	require.NoError(t, feed.Publish(context.Background(), Change{
		Collection: "applications", DocumentID: "a2", Op: OpCreate,
		After: map[string]string{"user_id": "u1"},
	}))
	assert.Len(t, rec.next(t), 2, "every callback carries the whole result set")

	store.add(doc{ID: "b1", UserID: "u2"})
	require.NoError(t, feed.Publish(context.Background(), Change{
		Collection: "applications", DocumentID: "b1", Op: OpCreate,
		After: map[string]string{"user_id": "u2"},
	}))
	rec.none(t)
}

func TestHubSubscriptionsAreIndependent(t *testing.T) {
	store := &memoryStore{docs: []doc{{ID: "a1", UserID: "u1"}}}
	hub, feed := newTestHub(t, store)
	first, second := newRecorder(), newRecorder()

	q := Query{Collection: "applications"}
	unsubFirst, err := hub.Subscribe(context.Background(), q, first.onChange)
	require.NoError(t, err)
	unsubSecond, err := hub.Subscribe(context.Background(), q, second.onChange)
	require.NoError(t, err)
	defer unsubSecond()

	first.next(t)
	second.next(t)

	unsubFirst()
	require.Eventually(t, func() bool { return feed.Len() == 1 }, time.Second, 10*time.Millisecond)

	require.NoError(t, feed.Publish(context.Background(), Change{Collection: "applications", DocumentID: "a1", Op: OpUpdate}))
	second.next(t)
	first.none(t)
}

func TestHubContextCancelTearsDown(t *testing.T) {
	store := &memoryStore{}
	hub, feed := newTestHub(t, store)
	rec := newRecorder()

	ctx, cancel := context.WithCancel(context.Background())
	_, err := hub.Subscribe(ctx, Query{Collection: "applications"}, rec.onChange)
	require.NoError(t, err)
	rec.next(t)
	require.Equal(t, 1, feed.Len())

	cancel()
	require.Eventually(t, func() bool { return feed.Len() == 0 }, time.Second, 10*time.Millisecond)
}

func TestHubReportsLoaderErrors(t *testing.T) {
	boom := errors.New("store unavailable")
	store := &memoryStore{fail: boom}
	hub, _ := newTestHub(t, store)

	errs := make(chan error, 1)
	unsubscribe, err := hub.Subscribe(context.Background(), Query{Collection: "applications"}, func([]doc) {
		t.Error("no snapshot expected while the loader fails")
	}, WithErrorHandler(func(err error) { errs <- err }))
	require.NoError(t, err)
	defer unsubscribe()

	select {
	case got := <-errs:
		assert.ErrorIs(t, got, boom)
	case <-time.After(2 * time.Second):
		t.Fatal("error handler not called")
	}
}

func TestHubValidatesInput(t *testing.T) {
	hub, _ := newTestHub(t, &memoryStore{})
	_, err := hub.Subscribe(context.Background(), Query{}, func([]doc) {})
	assert.ErrorIs(t, err, errCollectionRequired)

	_, err = hub.Subscribe(context.Background(), Query{Collection: "applications"}, nil)
	assert.Error(t, err)

	_, err = NewHub(HubParams[doc]{Feed: NewLocalFeed()})
	assert.Error(t, err)
}
