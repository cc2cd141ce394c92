package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/tomaskub292929/to-korea-sub000/pkg/logger"
)

// DefaultChannel is the Redis pub/sub channel shared by API instances.
const DefaultChannel = "tokorea:changes"

type redisPubSub interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	SubscribeChannel(ctx context.Context, channel string) (<-chan []byte, func() error, error)
}

// RedisFeed relays changes through a Redis channel so every instance sees the
// writes of every other. A write made here reaches local listeners only after
// the round trip through Redis.
type RedisFeed struct {
	client  redisPubSub
	channel string
	local   *LocalFeed
	logg    *logger.Logger

	closeSub  func() error
	done      chan struct{}
	closeOnce sync.Once
}

// NewRedisFeed subscribes to channel and starts relaying messages until ctx
// ends or Close is called.
func NewRedisFeed(ctx context.Context, client redisPubSub, channel string, logg *logger.Logger) (*RedisFeed, error) {
	if client == nil {
		return nil, errors.New("redis client is required")
	}
	if channel == "" {
		channel = DefaultChannel
	}
	messages, closeSub, err := client.SubscribeChannel(ctx, channel)
	if err != nil {
		return nil, fmt.Errorf("subscribe change feed: %w", err)
	}
	f := &RedisFeed{
		client:   client,
		channel:  channel,
		local:    NewLocalFeed(),
		logg:     logg,
		closeSub: closeSub,
		done:     make(chan struct{}),
	}
	go f.pump(ctx, messages)
	return f, nil
}

func (f *RedisFeed) pump(ctx context.Context, messages <-chan []byte) {
	defer close(f.done)
	for payload := range messages {
		var change Change
		if err := json.Unmarshal(payload, &change); err != nil {
			if f.logg != nil {
				f.logg.Warn(f.logg.WithField(ctx, "channel", f.channel), "dropping malformed change message")
			}
			continue
		}
		f.local.dispatch(change)
	}
}

func (f *RedisFeed) Publish(ctx context.Context, change Change) error {
	payload, err := json.Marshal(change)
	if err != nil {
		return err
	}
	return f.client.Publish(ctx, f.channel, payload)
}

func (f *RedisFeed) Listen(fn Listener) func() {
	return f.local.Listen(fn)
}

// Close ends the Redis subscription and waits for the relay to drain.
func (f *RedisFeed) Close() error {
	var err error
	f.closeOnce.Do(func() {
		if f.closeSub != nil {
			err = f.closeSub()
		}
		<-f.done
	})
	return err
}
