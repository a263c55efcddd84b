package core

import (
	"container/list"
	"log/slog"
	"sync"
	"time"
)

// session is one open attachment to an instance. It carries the pair
// of operating-mode timeouts and the list of deferred writes it has
// scheduled. The mutex guards the mutable fields; it is never held
// together with the instance mutex except by Flush and Stats, which
// always acquire instance first.
type session struct {
	handle   string
	instance *instance
	log      *slog.Logger

	mu            sync.Mutex
	sendTimeout   time.Duration
	recvTimeout   time.Duration
	pendingWrites *list.List // of *pendingWrite
	inFlight      int        // deferred posts currently executing
	closed        bool
	idle          *sync.Cond // signalled when inFlight drops to zero
}

func newSession(handle string, ins *instance, log *slog.Logger) *session {
	s := &session{
		handle:        handle,
		instance:      ins,
		log:           log,
		pendingWrites: list.New(),
	}
	s.idle = sync.NewCond(&s.mu)
	return s
}

// pendingWrite is a deferred post: a cancellable timer that will store
// the buffer into the session's instance once the send timeout
// elapses. The session owns the record through pendingWrites; the
// timer holds a non-owning back-reference only.
type pendingWrite struct {
	session *session
	buf     []byte
	timer   *time.Timer

	// elem is the node in session.pendingWrites, nil once the write
	// has been removed (fired or revoked). Guarded by session.mu.
	elem *list.Element
}

// schedule enqueues a deferred write firing after d. Must be called
// with the session mutex held; the timer callback runs on its own
// goroutine and re-acquires the mutex itself.
func (s *session) schedule(buf []byte, d time.Duration) {
	pw := &pendingWrite{session: s, buf: buf}
	pw.elem = s.pendingWrites.PushBack(pw)
	pw.timer = time.AfterFunc(d, pw.fire)
}

// fire runs when the send timeout elapses. It detaches the record
// from the session, performs the immediate-path post, and reports the
// outcome to nobody: the writer already got its zero return at
// submission, so a full instance drops the payload on the floor.
func (pw *pendingWrite) fire() {
	s := pw.session

	s.mu.Lock()
	if pw.elem != nil {
		s.pendingWrites.Remove(pw.elem)
		pw.elem = nil
	}
	s.inFlight++
	s.mu.Unlock()

	ins := s.instance
	ins.mu.Lock()
	err := ins.post(pw.buf)
	ins.mu.Unlock()
	if err != nil {
		s.log.Debug("deferred post dropped",
			"instance", ins.idx,
			"handle", s.handle,
			"size", len(pw.buf),
			"error", err,
		)
	}

	s.mu.Lock()
	s.inFlight--
	if s.inFlight == 0 {
		s.idle.Broadcast()
	}
	s.mu.Unlock()
}

// revokeLocked cancels every pending write whose timer has not fired
// yet. A timer that is already running is left alone; its callback
// detaches the record itself. Must be called with the session mutex
// held.
func (s *session) revokeLocked() {
	for e := s.pendingWrites.Front(); e != nil; {
		next := e.Next()
		pw := e.Value.(*pendingWrite)
		if pw.timer.Stop() {
			s.pendingWrites.Remove(e)
			pw.elem = nil
		}
		e = next
	}
}

// awaitQuiescence blocks until no deferred post is executing. Writes
// whose timers have not fired are left in place and will complete
// normally after the session is detached. Must be called with the
// session mutex held.
func (s *session) awaitQuiescence() {
	for s.inFlight > 0 {
		s.idle.Wait()
	}
}

// timeouts returns the current operating mode under the session mutex.
func (s *session) timeouts() (send, recv time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sendTimeout, s.recvTimeout
}
