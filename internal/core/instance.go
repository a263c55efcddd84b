package core

import (
	"container/list"
	"sync"
)

// message is a single opaque payload queued in an instance. The
// instance exclusively owns the buffer until a reader consumes it.
type message struct {
	size int
	buf  []byte
}

// pendingRead is the record of a blocked reader. It lives on the
// reader's stack; the instance holds it in pendingReads only while the
// reader is parked. Both flags are guarded by the instance mutex.
type pendingRead struct {
	msgAvailable bool
	flushing     bool

	// ready receives one token whenever a flag is raised. It is
	// buffered so that signalling never blocks the poster.
	ready chan struct{}

	// elem is the node in instance.pendingReads, nil while the
	// record is not enrolled.
	elem *list.Element
}

func newPendingRead() *pendingRead {
	return &pendingRead{ready: make(chan struct{}, 1)}
}

// signal wakes the owning reader. A stale token may remain in the
// channel after a claim race; the reader treats flag-less wakeups as
// spurious and re-parks.
func (pr *pendingRead) signal() {
	select {
	case pr.ready <- struct{}{}:
	default:
	}
}

// instance is one logical mailbox: a FIFO of messages bounded by a
// byte budget, the sessions attached to it, and the readers parked on
// it. The mutex guards every field below it.
type instance struct {
	idx        int
	maxStorage int

	mu           sync.Mutex
	currentSize  int
	fifo         *list.List // of *message
	sessions     map[*session]struct{}
	pendingReads *list.List // of *pendingRead
}

func newInstance(idx, maxStorage int) *instance {
	return &instance{
		idx:          idx,
		maxStorage:   maxStorage,
		fifo:         list.New(),
		sessions:     make(map[*session]struct{}),
		pendingReads: list.New(),
	}
}

// post appends a payload to the FIFO and wakes the head pending
// reader. Must be called with the instance mutex held. The buffer is
// owned by the instance on success and dropped on ErrNoSpace.
func (ins *instance) post(buf []byte) error {
	if ins.currentSize+len(buf) > ins.maxStorage {
		return ErrNoSpace
	}
	ins.fifo.PushBack(&message{size: len(buf), buf: buf})
	ins.currentSize += len(buf)
	ins.wakeOneReader()
	return nil
}

// wakeOneReader claims the head pending reader, if any: it is removed
// from the list, marked msg_available, and signalled. Each successful
// post transfers ownership of exactly one pending delivery; a woken
// reader that loses the claim race re-enrols itself.
func (ins *instance) wakeOneReader() {
	e := ins.pendingReads.Front()
	if e == nil {
		return
	}
	pr := e.Value.(*pendingRead)
	ins.pendingReads.Remove(e)
	pr.elem = nil
	pr.msgAvailable = true
	pr.signal()
}

// dequeue removes and returns the head message, or nil when the FIFO
// is empty. Must be called with the instance mutex held.
func (ins *instance) dequeue() *message {
	e := ins.fifo.Front()
	if e == nil {
		return nil
	}
	m := e.Value.(*message)
	ins.fifo.Remove(e)
	ins.currentSize -= m.size
	return m
}

// enrol parks a pending read at the tail of the wait list. Must be
// called with the instance mutex held.
func (ins *instance) enrol(pr *pendingRead) {
	pr.elem = ins.pendingReads.PushBack(pr)
}

// withdraw removes a pending read from the wait list if it is still
// enrolled. Must be called with the instance mutex held.
func (ins *instance) withdraw(pr *pendingRead) {
	if pr.elem != nil {
		ins.pendingReads.Remove(pr.elem)
		pr.elem = nil
	}
}

// unblockReaders marks every parked reader as flushing, detaches it,
// and wakes it. Must be called with the instance mutex held.
func (ins *instance) unblockReaders() {
	for e := ins.pendingReads.Front(); e != nil; {
		next := e.Next()
		pr := e.Value.(*pendingRead)
		ins.pendingReads.Remove(e)
		pr.elem = nil
		pr.flushing = true
		pr.signal()
		e = next
	}
}

// drain discards every queued message. Must be called with the
// instance mutex held. Used at broker shutdown.
func (ins *instance) drain() int {
	n := ins.fifo.Len()
	ins.fifo.Init()
	ins.currentSize = 0
	return n
}
