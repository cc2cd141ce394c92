package realtime

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tomaskub292929/to-korea-sub000/pkg/logger"
	"github.com/tomaskub292929/to-korea-sub000/pkg/metrics"
)

// Loader re-reads the full result set of q from the store.
type Loader[T any] func(ctx context.Context, q Query) ([]T, error)

// Hub turns feed changes into full-snapshot callbacks for live queries.
// Subscriptions share nothing: each one re-runs the loader on its own
// goroutine whenever a matching change arrives.
type Hub[T any] struct {
	feed    Feed
	load    Loader[T]
	logg    *logger.Logger
	metrics *metrics.RealtimeMetrics
}

// HubParams bundles the dependencies of a Hub.
type HubParams[T any] struct {
	Feed    Feed
	Loader  Loader[T]
	Logger  *logger.Logger
	Metrics *metrics.RealtimeMetrics
}

func NewHub[T any](params HubParams[T]) (*Hub[T], error) {
	if params.Feed == nil {
		return nil, errors.New("change feed is required")
	}
	if params.Loader == nil {
		return nil, errors.New("loader is required")
	}
	return &Hub[T]{
		feed:    params.Feed,
		load:    params.Loader,
		logg:    params.Logger,
		metrics: params.Metrics,
	}, nil
}

type subscribeOptions struct {
	onError func(error)
}

// SubscribeOption customizes a single subscription.
type SubscribeOption func(*subscribeOptions)

// WithErrorHandler receives loader failures. Without it failures are logged
// and the subscription keeps waiting for the next change.
func WithErrorHandler(fn func(error)) SubscribeOption {
	return func(o *subscribeOptions) {
		o.onError = fn
	}
}

// Subscribe delivers the current result set of q to onChange, then the whole
// result set again after every matching change. The subscription ends when
// the returned func is called or ctx is done, whichever comes first. Once
// unsubscribed no further snapshot is started; a callback already running
// is allowed to finish.
func (h *Hub[T]) Subscribe(ctx context.Context, q Query, onChange func([]T), opts ...SubscribeOption) (func(), error) {
	if err := q.validate(); err != nil {
		return nil, err
	}
	if onChange == nil {
		return nil, errors.New("onChange callback is required")
	}
	options := subscribeOptions{}
	for _, opt := range opts {
		opt(&options)
	}

	subCtx, cancel := context.WithCancel(ctx)
	var closed atomic.Bool

	// capacity one coalesces bursts of changes into a single re-query
	signal := make(chan struct{}, 1)
	signal <- struct{}{}

	stopListening := h.feed.Listen(func(c Change) {
		if !q.Matches(c) {
			return
		}
		h.metrics.ChangeReceived(c.Collection, string(c.Op))
		select {
		case signal <- struct{}{}:
		default:
		}
	})
	h.metrics.SubscriptionOpened(q.Collection)

	go func() {
		defer h.metrics.SubscriptionClosed(q.Collection)
		defer stopListening()
		for {
			select {
			case <-subCtx.Done():
				return
			case <-signal:
			}

			started := time.Now()
			items, err := h.load(subCtx, q)
			h.metrics.ObserveRequery(q.Collection, time.Since(started), err)
			if closed.Load() || subCtx.Err() != nil {
				return
			}
			if err != nil {
				h.reportLoadError(subCtx, q, err, options.onError)
				continue
			}
			h.metrics.SnapshotDelivered(q.Collection)
			onChange(items)
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			closed.Store(true)
			cancel()
		})
	}, nil
}

func (h *Hub[T]) reportLoadError(ctx context.Context, q Query, err error, onError func(error)) {
	if onError != nil {
		onError(err)
		return
	}
	if h.logg != nil {
		logCtx := h.logg.WithFields(ctx, map[string]any{
			"collection":  q.Collection,
			"document_id": q.DocumentID,
		})
		h.logg.Error(logCtx, "live query reload failed", err)
	}
}
