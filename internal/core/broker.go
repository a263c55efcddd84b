// Package core implements the timed message-passing engine: a fixed
// set of in-memory instances, each an ordered queue of opaque byte
// messages bounded by a byte budget. Sessions opened against an
// instance carry a send timeout (turning writes into cancellable
// deferred posts) and a receive timeout (turning reads into bounded
// blocking waits). The engine is internally synchronised; every
// method may be called concurrently.
package core

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Default broker parameters, overridable via configuration.
const (
	DefaultInstances      = 3
	DefaultMaxMessageSize = 4096  // bytes
	DefaultMaxStorageSize = 65536 // bytes
)

// BrokerConfig holds the process-wide broker parameters. They are
// fixed at construction time.
type BrokerConfig struct {
	Instances      int
	MaxMessageSize int
	MaxStorageSize int
}

// Broker is the message-passing engine. It owns the instance set and
// the registry of open sessions, keyed by opaque handle.
type Broker struct {
	maxMessageSize int
	instances      []*instance
	log            *slog.Logger

	mu       sync.RWMutex
	sessions map[string]*session
}

// NewBroker validates the configuration and builds the instance set.
func NewBroker(cfg BrokerConfig) (*Broker, error) {
	if cfg.Instances < 1 {
		return nil, fmt.Errorf("broker: instances must be >= 1, got %d", cfg.Instances)
	}
	if cfg.MaxMessageSize <= 0 {
		return nil, fmt.Errorf("broker: max message size must be > 0, got %d", cfg.MaxMessageSize)
	}
	if cfg.MaxStorageSize < cfg.MaxMessageSize {
		return nil, fmt.Errorf("broker: max storage size %d is below max message size %d",
			cfg.MaxStorageSize, cfg.MaxMessageSize)
	}

	b := &Broker{
		maxMessageSize: cfg.MaxMessageSize,
		instances:      make([]*instance, cfg.Instances),
		log:            slog.Default().With("component", "broker"),
		sessions:       make(map[string]*session),
	}
	for i := range b.instances {
		b.instances[i] = newInstance(i, cfg.MaxStorageSize)
	}

	b.log.Info("broker installed",
		"instances", cfg.Instances,
		"max_message_size", cfg.MaxMessageSize,
		"max_storage_size", cfg.MaxStorageSize,
	)
	return b, nil
}

// Instances returns the number of instances.
func (b *Broker) Instances() int {
	return len(b.instances)
}

func (b *Broker) lookupInstance(idx int) (*instance, error) {
	if idx < 0 || idx >= len(b.instances) {
		return nil, &ErrInstanceNotFound{Instance: idx}
	}
	return b.instances[idx], nil
}

func (b *Broker) lookupSession(handle string) (*session, error) {
	b.mu.RLock()
	s, ok := b.sessions[handle]
	b.mu.RUnlock()
	if !ok {
		return nil, &ErrSessionNotFound{Handle: handle}
	}
	return s, nil
}

// Open attaches a new session to the given instance. Both timeouts
// start at zero: immediate writes, non-blocking reads.
func (b *Broker) Open(instanceIdx int) (string, error) {
	ins, err := b.lookupInstance(instanceIdx)
	if err != nil {
		return "", err
	}

	s := newSession(uuid.NewString(), ins, b.log)

	ins.mu.Lock()
	ins.sessions[s] = struct{}{}
	ins.mu.Unlock()

	b.mu.Lock()
	b.sessions[s.handle] = s
	b.mu.Unlock()

	return s.handle, nil
}

// Close detaches a session. It waits for deferred posts already in
// execution to complete; deferred writes whose timers have not fired
// are left in place and post normally later. Close does not revoke
// them: that is Revoke's or Flush's job.
func (b *Broker) Close(handle string) error {
	b.mu.Lock()
	s, ok := b.sessions[handle]
	if ok {
		delete(b.sessions, handle)
	}
	b.mu.Unlock()
	if !ok {
		return &ErrSessionNotFound{Handle: handle}
	}

	s.mu.Lock()
	s.closed = true
	s.awaitQuiescence()
	s.mu.Unlock()

	ins := s.instance
	ins.mu.Lock()
	delete(ins.sessions, s)
	ins.mu.Unlock()

	return nil
}

// Write stores a message into the session's instance. With a zero
// send timeout the post happens synchronously and the payload length
// is returned; ErrNoSpace reports a full instance. With a positive
// send timeout the post is deferred and Write returns 0 immediately;
// a deferred post that finds the instance full is dropped silently.
func (b *Broker) Write(handle string, p []byte) (int, error) {
	s, err := b.lookupSession(handle)
	if err != nil {
		return 0, err
	}
	if len(p) > b.maxMessageSize {
		return 0, ErrMessageTooLarge
	}

	// The payload is copied up front: the caller keeps ownership of
	// p, and a deferred post must not observe later mutations.
	buf := bytes.Clone(p)
	if buf == nil {
		buf = []byte{}
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return 0, &ErrSessionNotFound{Handle: handle}
	}
	if s.sendTimeout > 0 {
		s.schedule(buf, s.sendTimeout)
		s.mu.Unlock()
		return 0, nil
	}
	s.mu.Unlock()

	ins := s.instance
	ins.mu.Lock()
	err = ins.post(buf)
	ins.mu.Unlock()
	if err != nil {
		return 0, err
	}
	return len(buf), nil
}

// Read delivers the head message of the session's instance into p.
// Delivery is destructive at message level: the message is consumed
// entirely even when p is shorter, and the surplus bytes are dropped.
//
// On an empty instance the behaviour depends on the session's receive
// timeout: zero returns ErrNoMessage immediately; otherwise the
// reader parks until a message is posted, Flush runs (ErrFlushed),
// the timeout elapses (ErrTimedOut), or ctx is canceled
// (ErrInterrupted).
func (b *Broker) Read(ctx context.Context, handle string, p []byte) (int, error) {
	s, err := b.lookupSession(handle)
	if err != nil {
		return 0, err
	}
	ins := s.instance

	ins.mu.Lock()
	if m := ins.dequeue(); m != nil {
		ins.mu.Unlock()
		return copy(p, m.buf), nil
	}
	ins.mu.Unlock()

	_, recvTimeout := s.timeouts()
	if recvTimeout == 0 {
		return 0, ErrNoMessage
	}

	pr := newPendingRead()
	ins.mu.Lock()
	// A post may have landed while the mutex was released.
	if m := ins.dequeue(); m != nil {
		ins.mu.Unlock()
		return copy(p, m.buf), nil
	}
	ins.enrol(pr)
	ins.mu.Unlock()

	// The timer carries the absolute bound: a reader that loses a
	// claim race re-parks with whatever time is left.
	timer := time.NewTimer(recvTimeout)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			ins.mu.Lock()
			if m, done, err := consumeWakeup(ins, pr); done {
				return deliver(p, m), err
			}
			// Neither flag raised: the cancellation wins.
			ins.withdraw(pr)
			ins.mu.Unlock()
			return 0, ErrInterrupted

		case <-timer.C:
			ins.mu.Lock()
			if m, done, err := consumeWakeup(ins, pr); done {
				return deliver(p, m), err
			}
			ins.withdraw(pr)
			ins.mu.Unlock()
			return 0, ErrTimedOut

		case <-pr.ready:
			ins.mu.Lock()
			if m, done, err := consumeWakeup(ins, pr); done {
				return deliver(p, m), err
			}
			// Stale token with no flag raised: spurious, re-park.
			ins.mu.Unlock()
		}
	}
}

// consumeWakeup inspects a woken pending read under the instance
// mutex. It returns done=false, with the mutex still held, when no
// flag is raised; otherwise it resolves the wakeup, releases the
// mutex, and returns the read's outcome. A reader claimed by a post
// that finds the FIFO empty (the wakeup lost a race with a faster
// reader) is re-enrolled and reported as not done.
func consumeWakeup(ins *instance, pr *pendingRead) (*message, bool, error) {
	if pr.flushing {
		ins.mu.Unlock()
		return nil, true, ErrFlushed
	}
	if !pr.msgAvailable {
		return nil, false, nil
	}
	if m := ins.dequeue(); m != nil {
		ins.mu.Unlock()
		return m, true, nil
	}
	pr.msgAvailable = false
	ins.enrol(pr)
	return nil, false, nil
}

// deliver copies a dequeued message into the reader's buffer,
// truncating to cap. A nil message (flush outcome) delivers nothing.
func deliver(p []byte, m *message) int {
	if m == nil {
		return 0
	}
	return copy(p, m.buf)
}

// SetSendTimeout sets the session's send timeout. Zero selects the
// immediate write path.
func (b *Broker) SetSendTimeout(handle string, d time.Duration) error {
	return b.setTimeout(handle, d, func(s *session) { s.sendTimeout = d })
}

// SetRecvTimeout sets the session's receive timeout. Zero selects
// non-blocking reads.
func (b *Broker) SetRecvTimeout(handle string, d time.Duration) error {
	return b.setTimeout(handle, d, func(s *session) { s.recvTimeout = d })
}

func (b *Broker) setTimeout(handle string, d time.Duration, apply func(*session)) error {
	if d < 0 {
		return ErrNegativeTimeout
	}
	s, err := b.lookupSession(handle)
	if err != nil {
		return err
	}
	s.mu.Lock()
	apply(s)
	s.mu.Unlock()
	return nil
}

// Revoke cancels the session's pending deferred writes. Writes whose
// timers already fired are left to complete on their own.
func (b *Broker) Revoke(handle string) error {
	s, err := b.lookupSession(handle)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.revokeLocked()
	s.mu.Unlock()
	return nil
}

// Flush resets an instance: every attached session has its pending
// deferred writes revoked, and every parked reader is woken with
// ErrFlushed. Messages already posted survive. Flush is idempotent.
//
// Flush and Stats are the only paths that hold the instance and a
// session mutex at the same time, always instance first; every other
// compound path releases one before taking the other.
func (b *Broker) Flush(instanceIdx int) error {
	ins, err := b.lookupInstance(instanceIdx)
	if err != nil {
		return err
	}

	ins.mu.Lock()
	for s := range ins.sessions {
		s.mu.Lock()
		s.revokeLocked()
		s.mu.Unlock()
	}
	ins.unblockReaders()
	ins.mu.Unlock()

	b.log.Debug("instance flushed", "instance", instanceIdx)
	return nil
}

// Shutdown resets every instance and discards queued messages. Open
// sessions are left to be closed by their owners; parked readers are
// woken with ErrFlushed.
func (b *Broker) Shutdown() {
	for i, ins := range b.instances {
		if err := b.Flush(i); err != nil {
			continue
		}
		ins.mu.Lock()
		dropped := ins.drain()
		ins.mu.Unlock()
		if dropped > 0 {
			b.log.Debug("dropped queued messages at shutdown",
				"instance", i, "messages", dropped)
		}
	}
	b.log.Info("broker uninstalled")
}

// InstanceStats is a point-in-time snapshot of one instance, consumed
// by the metrics gauges and the periodic stats log.
type InstanceStats struct {
	Instance      int
	QueuedMsgs    int
	StoredBytes   int
	Sessions      int
	PendingReads  int
	PendingWrites int
}

// Stats snapshots every instance. Each instance is locked in turn, so
// the slice is consistent per instance but not across instances.
func (b *Broker) Stats() []InstanceStats {
	stats := make([]InstanceStats, len(b.instances))
	for i, ins := range b.instances {
		ins.mu.Lock()
		st := InstanceStats{
			Instance:     i,
			QueuedMsgs:   ins.fifo.Len(),
			StoredBytes:  ins.currentSize,
			Sessions:     len(ins.sessions),
			PendingReads: ins.pendingReads.Len(),
		}
		for s := range ins.sessions {
			s.mu.Lock()
			st.PendingWrites += s.pendingWrites.Len()
			s.mu.Unlock()
		}
		ins.mu.Unlock()
		stats[i] = st
	}
	return stats
}
