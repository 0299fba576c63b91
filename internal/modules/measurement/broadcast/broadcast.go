// Package broadcast fans newly accepted measurements out to live listeners.
//
// Every listener owns a bounded buffer. Publish never waits on a listener:
// when a buffer is full the configured overflow policy either evicts the
// oldest buffered measurement (DropOldest) or closes that listener
// (Disconnect). Other listeners and the publisher are unaffected.
package broadcast

import (
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"cloudpico-climate/internal/metrics"
	"cloudpico-climate/internal/modules/measurement/types"
)

// Policy selects what happens when a listener's buffer is full.
type Policy int

const (
	DropOldest Policy = iota
	Disconnect
)

const DefaultBufferSize = 16

var (
	// ErrListenerOverflow is reported by a listener closed by the Disconnect policy.
	ErrListenerOverflow = errors.New("listener buffer overflow")
	// ErrClosed is reported by listeners of a closed broadcaster.
	ErrClosed = errors.New("broadcaster closed")
)

// ParsePolicy maps a config value to a Policy.
func ParsePolicy(s string) (Policy, bool) {
	switch s {
	case "drop-oldest":
		return DropOldest, true
	case "disconnect":
		return Disconnect, true
	default:
		return DropOldest, false
	}
}

func (p Policy) String() string {
	if p == Disconnect {
		return "disconnect"
	}
	return "drop-oldest"
}

type Options struct {
	BufferSize int
	Policy     Policy
	Logger     *slog.Logger
}

// Broadcaster is a registry of listeners with a single logical publish point.
type Broadcaster struct {
	mu        sync.RWMutex
	listeners map[*Listener]struct{}
	closed    bool

	bufferSize int
	policy     Policy
	logger     *slog.Logger
}

func New(opts Options) *Broadcaster {
	if opts.BufferSize <= 0 {
		opts.BufferSize = DefaultBufferSize
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Broadcaster{
		listeners:  make(map[*Listener]struct{}),
		bufferSize: opts.BufferSize,
		policy:     opts.Policy,
		logger:     opts.Logger,
	}
}

// Subscribe registers a listener that receives every measurement published
// after this call. The caller must Close it when done.
func (b *Broadcaster) Subscribe() *Listener {
	l := &Listener{
		id: uuid.NewString(),
		ch: make(chan types.Measurement, b.bufferSize),
		b:  b,
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		l.shutdown(ErrClosed)
		return l
	}
	b.listeners[l] = struct{}{}
	metrics.BroadcastListeners.Inc()
	b.logger.Debug("listener subscribed", "listener_id", l.id, "listeners", len(b.listeners))
	return l
}

// Publish delivers m to every active listener without blocking.
// With no listeners it is a no-op.
func (b *Broadcaster) Publish(m types.Measurement) {
	metrics.BroadcastPublishedTotal.Inc()

	var overflowed []*Listener
	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return
	}
	for l := range b.listeners {
		if !l.deliver(m, b.policy) {
			overflowed = append(overflowed, l)
		}
	}
	b.mu.RUnlock()

	b.disconnectOverflowed(overflowed)
}

// disconnectOverflowed removes listeners flagged by Publish. Concurrent
// publishes may flag the same listener; only the one that removes it counts.
func (b *Broadcaster) disconnectOverflowed(overflowed []*Listener) {
	for _, l := range overflowed {
		if !b.remove(l, ErrListenerOverflow) {
			continue
		}
		b.logger.Warn("listener disconnected: buffer overflow", "listener_id", l.id, "buffer", b.bufferSize)
		metrics.BroadcastDisconnectedTotal.Inc()
	}
}

// Len returns the number of active listeners.
func (b *Broadcaster) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.listeners)
}

// Close disconnects every listener. Later Subscribe calls return closed
// listeners and Publish becomes a no-op.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for l := range b.listeners {
		delete(b.listeners, l)
		metrics.BroadcastListeners.Dec()
		l.shutdown(ErrClosed)
	}
}

// remove reports whether l was still registered.
func (b *Broadcaster) remove(l *Listener, cause error) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.listeners[l]; !ok {
		return false
	}
	delete(b.listeners, l)
	metrics.BroadcastListeners.Dec()
	l.shutdown(cause)
	b.logger.Debug("listener removed", "listener_id", l.id, "listeners", len(b.listeners), "cause", cause)
	return true
}

// Listener is one subscription. Receive from C until it is closed.
type Listener struct {
	id string
	ch chan types.Measurement
	b  *Broadcaster

	// sendMu serializes senders with each other and with shutdown so the
	// channel is never written after close.
	sendMu  sync.Mutex
	done    bool
	err     error
	dropped atomic.Uint64
}

func (l *Listener) ID() string { return l.id }

// C is closed when the listener is closed, disconnected or the broadcaster shuts down.
func (l *Listener) C() <-chan types.Measurement { return l.ch }

// Dropped counts measurements evicted from this listener's buffer.
func (l *Listener) Dropped() uint64 { return l.dropped.Load() }

// Err reports why the channel was closed; nil while active or after Close.
func (l *Listener) Err() error {
	l.sendMu.Lock()
	defer l.sendMu.Unlock()
	return l.err
}

// Close unsubscribes the listener. Idempotent.
func (l *Listener) Close() {
	l.b.remove(l, nil)
	// closed broadcasters already shut listeners down; this covers listeners
	// that were never registered
	l.shutdown(nil)
}

// deliver enqueues m and reports false when the Disconnect policy should
// remove the listener.
func (l *Listener) deliver(m types.Measurement, policy Policy) bool {
	l.sendMu.Lock()
	defer l.sendMu.Unlock()
	if l.done {
		return true
	}

	select {
	case l.ch <- m:
		return true
	default:
	}

	if policy == Disconnect {
		return false
	}

	// Only senders hold sendMu, so after one eviction the send below has room
	// even if the receiver raced us to the oldest element.
	select {
	case <-l.ch:
		l.dropped.Add(1)
		metrics.BroadcastDroppedTotal.Inc()
	default:
	}
	select {
	case l.ch <- m:
	default:
		l.dropped.Add(1)
		metrics.BroadcastDroppedTotal.Inc()
	}
	return true
}

func (l *Listener) shutdown(cause error) {
	l.sendMu.Lock()
	defer l.sendMu.Unlock()
	if l.done {
		return
	}
	l.done = true
	l.err = cause
	close(l.ch)
}
