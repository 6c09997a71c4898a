package pubsub

import (
	"context"
	"path"
	"sync"
)

// MemoryPubSub delivers events between goroutines of one process. It is
// used by tests and single-binary setups.
type MemoryPubSub struct {
	mu     sync.Mutex
	subs   map[string][]*memorySub
	closed bool
}

type memorySub struct {
	pattern bool
	ch      chan *Event
	done    chan struct{}
	once    sync.Once
}

func (s *memorySub) stop() {
	s.once.Do(func() { close(s.done) })
}

// NewMemoryPubSub creates an empty in-process bus.
func NewMemoryPubSub() *MemoryPubSub {
	return &MemoryPubSub{subs: make(map[string][]*memorySub)}
}

// Publish delivers event to every matching subscriber without blocking.
func (m *MemoryPubSub) Publish(_ context.Context, channel string, event *Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for key, subs := range m.subs {
		for _, s := range subs {
			if !matches(key, channel, s.pattern) {
				continue
			}
			select {
			case <-s.done:
			case s.ch <- event:
			default:
			}
		}
	}
	return nil
}

func matches(key, channel string, pattern bool) bool {
	if !pattern {
		return key == channel
	}
	ok, err := path.Match(key, channel)
	return err == nil && ok
}

// Subscribe subscribes to a specific channel.
func (m *MemoryPubSub) Subscribe(ctx context.Context, channel string) (<-chan *Event, error) {
	return m.add(ctx, channel, false), nil
}

// SubscribePattern subscribes to channels matching a glob pattern.
func (m *MemoryPubSub) SubscribePattern(ctx context.Context, pattern string) (<-chan *Event, error) {
	return m.add(ctx, pattern, true), nil
}

func (m *MemoryPubSub) add(ctx context.Context, key string, pattern bool) <-chan *Event {
	s := &memorySub{pattern: pattern, ch: make(chan *Event, 100), done: make(chan struct{})}

	m.mu.Lock()
	m.subs[key] = append(m.subs[key], s)
	m.mu.Unlock()

	go func() {
		select {
		case <-ctx.Done():
			m.remove(key, s)
		case <-s.done:
		}
	}()
	return s.ch
}

func (m *MemoryPubSub) remove(key string, target *memorySub) {
	m.mu.Lock()
	defer m.mu.Unlock()

	subs := m.subs[key]
	for i, s := range subs {
		if s == target {
			m.subs[key] = append(subs[:i], subs[i+1:]...)
			s.stop()
			close(s.ch)
			break
		}
	}
	if len(m.subs[key]) == 0 {
		delete(m.subs, key)
	}
}

// Unsubscribe drops every subscription registered under channel.
func (m *MemoryPubSub) Unsubscribe(_ context.Context, channel string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, s := range m.subs[channel] {
		s.stop()
		close(s.ch)
	}
	delete(m.subs, channel)
	return nil
}

// Close drops all subscriptions.
func (m *MemoryPubSub) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil
	}
	m.closed = true
	for key, subs := range m.subs {
		for _, s := range subs {
			s.stop()
			close(s.ch)
		}
		delete(m.subs, key)
	}
	return nil
}

// NopPubSub discards published events and never delivers any.
type NopPubSub struct{}

func (NopPubSub) Publish(context.Context, string, *Event) error { return nil }

func (NopPubSub) Subscribe(ctx context.Context, _ string) (<-chan *Event, error) {
	return nopChannel(ctx), nil
}

func (NopPubSub) SubscribePattern(ctx context.Context, _ string) (<-chan *Event, error) {
	return nopChannel(ctx), nil
}

func (NopPubSub) Unsubscribe(context.Context, string) error { return nil }

func (NopPubSub) Close() error { return nil }

func nopChannel(ctx context.Context) <-chan *Event {
	ch := make(chan *Event)
	go func() {
		<-ctx.Done()
		close(ch)
	}()
	return ch
}
