package core

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func newTestBroker(t *testing.T) *Broker {
	t.Helper()
	b, err := NewBroker(BrokerConfig{
		Instances:      DefaultInstances,
		MaxMessageSize: 128,
		MaxStorageSize: 512,
	})
	if err != nil {
		t.Fatalf("NewBroker: %v", err)
	}
	return b
}

func mustOpen(t *testing.T, b *Broker, instance int) string {
	t.Helper()
	h, err := b.Open(instance)
	if err != nil {
		t.Fatalf("Open(%d): %v", instance, err)
	}
	return h
}

func TestNewBroker_ValidatesConfig(t *testing.T) {
	tests := []struct {
		name string
		cfg  BrokerConfig
	}{
		{"zero instances", BrokerConfig{Instances: 0, MaxMessageSize: 1, MaxStorageSize: 1}},
		{"zero message size", BrokerConfig{Instances: 1, MaxMessageSize: 0, MaxStorageSize: 1}},
		{"storage below message size", BrokerConfig{Instances: 1, MaxMessageSize: 16, MaxStorageSize: 8}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewBroker(tt.cfg); err == nil {
				t.Error("expected error, got nil")
			}
		})
	}
}

func TestBroker_ImmediateRoundTrip(t *testing.T) {
	b := newTestBroker(t)
	h := mustOpen(t, b, 0)

	msg := []byte("hello\x00")
	n, err := b.Write(h, msg)
	if err != nil || n != len(msg) {
		t.Fatalf("Write = (%d, %v), want (%d, nil)", n, err, len(msg))
	}

	buf := make([]byte, 128)
	n, err = b.Read(context.Background(), h, buf)
	if err != nil || n != len(msg) {
		t.Fatalf("Read = (%d, %v), want (%d, nil)", n, err, len(msg))
	}
	if !bytes.Equal(buf[:n], msg) {
		t.Errorf("got %q, want %q", buf[:n], msg)
	}
}

func TestBroker_ShortReadConsumesWholeMessage(t *testing.T) {
	b := newTestBroker(t)
	h := mustOpen(t, b, 0)

	if _, err := b.Write(h, []byte("0123456789")); err != nil {
		t.Fatalf("Write: %v", err)
	}

	buf := make([]byte, 4)
	n, err := b.Read(context.Background(), h, buf)
	if err != nil || n != 4 {
		t.Fatalf("Read = (%d, %v), want (4, nil)", n, err)
	}
	if string(buf) != "0123" {
		t.Errorf("got %q, want %q", buf, "0123")
	}

	// The tail of the message is gone, not requeued.
	if _, err := b.Read(context.Background(), h, buf); !errors.Is(err, ErrNoMessage) {
		t.Errorf("second Read err = %v, want ErrNoMessage", err)
	}
}

func TestBroker_ReadEmptyNonBlocking(t *testing.T) {
	b := newTestBroker(t)
	h := mustOpen(t, b, 0)

	if _, err := b.Read(context.Background(), h, make([]byte, 8)); !errors.Is(err, ErrNoMessage) {
		t.Errorf("Read err = %v, want ErrNoMessage", err)
	}
}

func TestBroker_FIFOOrder(t *testing.T) {
	b := newTestBroker(t)
	h := mustOpen(t, b, 0)

	msgs := []string{"a\x00", "b\x00", "c\x00"}
	for _, m := range msgs {
		if _, err := b.Write(h, []byte(m)); err != nil {
			t.Fatalf("Write(%q): %v", m, err)
		}
	}
	for _, want := range msgs {
		buf := make([]byte, 8)
		n, err := b.Read(context.Background(), h, buf)
		if err != nil {
			t.Fatalf("Read: %v", err)
		}
		if string(buf[:n]) != want {
			t.Errorf("got %q, want %q", buf[:n], want)
		}
	}
}

func TestBroker_MessageTooLarge(t *testing.T) {
	b := newTestBroker(t)
	h := mustOpen(t, b, 0)

	if _, err := b.Write(h, make([]byte, 128)); err != nil {
		t.Errorf("Write at max size: %v", err)
	}
	if _, err := b.Write(h, make([]byte, 129)); !errors.Is(err, ErrMessageTooLarge) {
		t.Errorf("Write over max size err = %v, want ErrMessageTooLarge", err)
	}
}

func TestBroker_StorageBudget(t *testing.T) {
	b := newTestBroker(t)
	h := mustOpen(t, b, 0)

	// 512-byte budget admits exactly four 128-byte messages.
	for i := 0; i < 4; i++ {
		if _, err := b.Write(h, make([]byte, 128)); err != nil {
			t.Fatalf("Write %d: %v", i, err)
		}
	}
	if _, err := b.Write(h, []byte{0}); !errors.Is(err, ErrNoSpace) {
		t.Errorf("Write on full instance err = %v, want ErrNoSpace", err)
	}

	// Consuming one message frees its whole budget share.
	if _, err := b.Read(context.Background(), h, make([]byte, 1)); err != nil {
		t.Fatalf("Read: %v", err)
	}
	if _, err := b.Write(h, make([]byte, 128)); err != nil {
		t.Errorf("Write after Read: %v", err)
	}
}

func TestBroker_ZeroLengthMessage(t *testing.T) {
	b := newTestBroker(t)
	h := mustOpen(t, b, 0)

	n, err := b.Write(h, nil)
	if err != nil || n != 0 {
		t.Fatalf("Write = (%d, %v), want (0, nil)", n, err)
	}
	n, err = b.Read(context.Background(), h, make([]byte, 8))
	if err != nil || n != 0 {
		t.Errorf("Read = (%d, %v), want (0, nil)", n, err)
	}
	// The zero-length message was consumed.
	if _, err := b.Read(context.Background(), h, make([]byte, 8)); !errors.Is(err, ErrNoMessage) {
		t.Errorf("second Read err = %v, want ErrNoMessage", err)
	}
}

func TestBroker_InstancesAreIndependent(t *testing.T) {
	b := newTestBroker(t)
	h0 := mustOpen(t, b, 0)
	h1 := mustOpen(t, b, 1)

	if _, err := b.Write(h0, []byte("zero")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if _, err := b.Read(context.Background(), h1, make([]byte, 8)); !errors.Is(err, ErrNoMessage) {
		t.Errorf("Read on instance 1 err = %v, want ErrNoMessage", err)
	}
}

func TestBroker_BlockingReadTimesOut(t *testing.T) {
	b := newTestBroker(t)
	h := mustOpen(t, b, 0)

	if err := b.SetRecvTimeout(h, 50*time.Millisecond); err != nil {
		t.Fatalf("SetRecvTimeout: %v", err)
	}

	start := time.Now()
	_, err := b.Read(context.Background(), h, make([]byte, 8))
	if !errors.Is(err, ErrTimedOut) {
		t.Fatalf("Read err = %v, want ErrTimedOut", err)
	}
	if d := time.Since(start); d < 50*time.Millisecond {
		t.Errorf("Read returned after %v, want >= 50ms", d)
	}
}

func TestBroker_BlockingReadWokenByWrite(t *testing.T) {
	b := newTestBroker(t)
	reader := mustOpen(t, b, 0)
	writer := mustOpen(t, b, 0)

	if err := b.SetRecvTimeout(reader, 5*time.Second); err != nil {
		t.Fatalf("SetRecvTimeout: %v", err)
	}

	got := make(chan string, 1)
	go func() {
		buf := make([]byte, 16)
		n, err := b.Read(context.Background(), reader, buf)
		if err != nil {
			got <- "error: " + err.Error()
			return
		}
		got <- string(buf[:n])
	}()

	// Give the reader a moment to park.
	time.Sleep(20 * time.Millisecond)
	if _, err := b.Write(writer, []byte("ping")); err != nil {
		t.Fatalf("Write: %v", err)
	}

	select {
	case s := <-got:
		if s != "ping" {
			t.Errorf("reader got %q, want %q", s, "ping")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("reader not woken by write")
	}
}

func TestBroker_BlockingReadInterrupted(t *testing.T) {
	b := newTestBroker(t)
	h := mustOpen(t, b, 0)

	if err := b.SetRecvTimeout(h, 5*time.Second); err != nil {
		t.Fatalf("SetRecvTimeout: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() {
		_, err := b.Read(ctx, h, make([]byte, 8))
		errc <- err
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-errc:
		if !errors.Is(err, ErrInterrupted) {
			t.Errorf("Read err = %v, want ErrInterrupted", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("reader not woken by cancellation")
	}

	// The pending read was withdrawn on the way out.
	if st := b.Stats()[0]; st.PendingReads != 0 {
		t.Errorf("PendingReads = %d, want 0", st.PendingReads)
	}
}

func TestBroker_DeferredWriteFires(t *testing.T) {
	b := newTestBroker(t)
	h := mustOpen(t, b, 0)

	if err := b.SetSendTimeout(h, 30*time.Millisecond); err != nil {
		t.Fatalf("SetSendTimeout: %v", err)
	}
	n, err := b.Write(h, []byte("x"))
	if err != nil || n != 0 {
		t.Fatalf("deferred Write = (%d, %v), want (0, nil)", n, err)
	}

	// Not yet posted.
	if _, err := b.Read(context.Background(), h, make([]byte, 8)); !errors.Is(err, ErrNoMessage) {
		t.Fatalf("early Read err = %v, want ErrNoMessage", err)
	}

	time.Sleep(150 * time.Millisecond)

	buf := make([]byte, 8)
	n, err = b.Read(context.Background(), h, buf)
	if err != nil || n != 1 || buf[0] != 'x' {
		t.Errorf("late Read = (%d, %v, %q), want (1, nil, \"x\")", n, err, buf[:n])
	}
}

func TestBroker_DeferredWriteWakesBlockedReader(t *testing.T) {
	b := newTestBroker(t)
	reader := mustOpen(t, b, 0)
	writer := mustOpen(t, b, 0)

	if err := b.SetRecvTimeout(reader, 5*time.Second); err != nil {
		t.Fatalf("SetRecvTimeout: %v", err)
	}
	if err := b.SetSendTimeout(writer, 30*time.Millisecond); err != nil {
		t.Fatalf("SetSendTimeout: %v", err)
	}

	errc := make(chan error, 1)
	go func() {
		_, err := b.Read(context.Background(), reader, make([]byte, 8))
		errc <- err
	}()

	time.Sleep(20 * time.Millisecond)
	if _, err := b.Write(writer, []byte("late")); err != nil {
		t.Fatalf("Write: %v", err)
	}

	select {
	case err := <-errc:
		if err != nil {
			t.Errorf("Read err = %v, want nil", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("reader not woken by deferred post")
	}
}

func TestBroker_RevokeDropsPendingWrites(t *testing.T) {
	b := newTestBroker(t)
	h := mustOpen(t, b, 0)

	if err := b.SetSendTimeout(h, 50*time.Millisecond); err != nil {
		t.Fatalf("SetSendTimeout: %v", err)
	}
	if _, err := b.Write(h, []byte("doomed")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := b.Revoke(h); err != nil {
		t.Fatalf("Revoke: %v", err)
	}

	time.Sleep(150 * time.Millisecond)
	if _, err := b.Read(context.Background(), h, make([]byte, 8)); !errors.Is(err, ErrNoMessage) {
		t.Errorf("Read err = %v, want ErrNoMessage", err)
	}
	if st := b.Stats()[0]; st.PendingWrites != 0 {
		t.Errorf("PendingWrites = %d, want 0", st.PendingWrites)
	}
}

func TestBroker_FlushUnblocksReaderAndCancelsPendingWrite(t *testing.T) {
	b := newTestBroker(t)
	reader := mustOpen(t, b, 0)
	writer := mustOpen(t, b, 0)

	if err := b.SetRecvTimeout(reader, 10*time.Second); err != nil {
		t.Fatalf("SetRecvTimeout: %v", err)
	}
	if err := b.SetSendTimeout(writer, 5*time.Second); err != nil {
		t.Fatalf("SetSendTimeout: %v", err)
	}

	errc := make(chan error, 1)
	go func() {
		_, err := b.Read(context.Background(), reader, make([]byte, 8))
		errc <- err
	}()
	time.Sleep(20 * time.Millisecond)

	if _, err := b.Write(writer, []byte("m")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := b.Flush(0); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	select {
	case err := <-errc:
		if !errors.Is(err, ErrFlushed) {
			t.Errorf("Read err = %v, want ErrFlushed", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("reader not woken by flush")
	}

	// The revoked deferred write never posts.
	if err := b.SetRecvTimeout(reader, 0); err != nil {
		t.Fatalf("SetRecvTimeout: %v", err)
	}
	if _, err := b.Read(context.Background(), reader, make([]byte, 8)); !errors.Is(err, ErrNoMessage) {
		t.Errorf("Read err = %v, want ErrNoMessage", err)
	}

	st := b.Stats()[0]
	if st.PendingReads != 0 || st.PendingWrites != 0 {
		t.Errorf("after flush: PendingReads = %d, PendingWrites = %d, want 0, 0",
			st.PendingReads, st.PendingWrites)
	}
}

func TestBroker_FlushKeepsPostedMessages(t *testing.T) {
	b := newTestBroker(t)
	h := mustOpen(t, b, 0)

	if _, err := b.Write(h, []byte("kept")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := b.Flush(0); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	buf := make([]byte, 8)
	n, err := b.Read(context.Background(), h, buf)
	if err != nil || string(buf[:n]) != "kept" {
		t.Errorf("Read = (%q, %v), want (\"kept\", nil)", buf[:n], err)
	}
}

func TestBroker_FlushIsIdempotent(t *testing.T) {
	b := newTestBroker(t)
	mustOpen(t, b, 0)

	if err := b.Flush(0); err != nil {
		t.Fatalf("first Flush: %v", err)
	}
	if err := b.Flush(0); err != nil {
		t.Fatalf("second Flush: %v", err)
	}
}

func TestBroker_CloseLeavesPendingWritesToFire(t *testing.T) {
	b := newTestBroker(t)
	writer := mustOpen(t, b, 0)
	reader := mustOpen(t, b, 0)

	if err := b.SetSendTimeout(writer, 30*time.Millisecond); err != nil {
		t.Fatalf("SetSendTimeout: %v", err)
	}
	if _, err := b.Write(writer, []byte("orphan")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := b.Close(writer); err != nil {
		t.Fatalf("Close: %v", err)
	}

	// Close does not revoke: the deferred write still posts.
	time.Sleep(150 * time.Millisecond)
	buf := make([]byte, 8)
	n, err := b.Read(context.Background(), reader, buf)
	if err != nil || string(buf[:n]) != "orphan" {
		t.Errorf("Read = (%q, %v), want (\"orphan\", nil)", buf[:n], err)
	}
}

func TestBroker_ClosedHandleIsGone(t *testing.T) {
	b := newTestBroker(t)
	h := mustOpen(t, b, 0)

	if err := b.Close(h); err != nil {
		t.Fatalf("Close: %v", err)
	}

	var notFound *ErrSessionNotFound
	if _, err := b.Write(h, []byte("x")); !errors.As(err, &notFound) {
		t.Errorf("Write err = %v, want ErrSessionNotFound", err)
	}
	if err := b.Close(h); !errors.As(err, &notFound) {
		t.Errorf("second Close err = %v, want ErrSessionNotFound", err)
	}
}

func TestBroker_UnknownInstance(t *testing.T) {
	b := newTestBroker(t)

	var notFound *ErrInstanceNotFound
	if _, err := b.Open(-1); !errors.As(err, &notFound) {
		t.Errorf("Open(-1) err = %v, want ErrInstanceNotFound", err)
	}
	if _, err := b.Open(b.Instances()); !errors.As(err, &notFound) {
		t.Errorf("Open(N) err = %v, want ErrInstanceNotFound", err)
	}
	if err := b.Flush(99); !errors.As(err, &notFound) {
		t.Errorf("Flush(99) err = %v, want ErrInstanceNotFound", err)
	}
}

func TestBroker_NegativeTimeoutRejected(t *testing.T) {
	b := newTestBroker(t)
	h := mustOpen(t, b, 0)

	if err := b.SetSendTimeout(h, -time.Second); !errors.Is(err, ErrNegativeTimeout) {
		t.Errorf("SetSendTimeout err = %v, want ErrNegativeTimeout", err)
	}
	if err := b.SetRecvTimeout(h, -time.Second); !errors.Is(err, ErrNegativeTimeout) {
		t.Errorf("SetRecvTimeout err = %v, want ErrNegativeTimeout", err)
	}
}

func TestBroker_WriterDoesNotObserveCallerMutation(t *testing.T) {
	b := newTestBroker(t)
	h := mustOpen(t, b, 0)

	p := []byte("original")
	if _, err := b.Write(h, p); err != nil {
		t.Fatalf("Write: %v", err)
	}
	copy(p, "clobber!")

	buf := make([]byte, 16)
	n, err := b.Read(context.Background(), h, buf)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(buf[:n]) != "original" {
		t.Errorf("got %q, want %q", buf[:n], "original")
	}
}

func TestBroker_ConcurrentProducersConsumers(t *testing.T) {
	b, err := NewBroker(BrokerConfig{
		Instances:      1,
		MaxMessageSize: 64,
		MaxStorageSize: 64 * 1024,
	})
	if err != nil {
		t.Fatalf("NewBroker: %v", err)
	}

	const (
		writers    = 4
		perWriter  = 50
		totalMsgs  = writers * perWriter
		readerSpan = 5 * time.Second
	)

	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			h, err := b.Open(0)
			if err != nil {
				t.Error(err)
				return
			}
			defer b.Close(h)
			for i := 0; i < perWriter; i++ {
				for {
					if _, err := b.Write(h, []byte("payload")); !errors.Is(err, ErrNoSpace) {
						break
					}
					time.Sleep(time.Millisecond)
				}
			}
		}()
	}

	var mu sync.Mutex
	received := 0
	for r := 0; r < 3; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			h, err := b.Open(0)
			if err != nil {
				t.Error(err)
				return
			}
			defer b.Close(h)
			if err := b.SetRecvTimeout(h, 200*time.Millisecond); err != nil {
				t.Error(err)
				return
			}
			buf := make([]byte, 64)
			deadline := time.Now().Add(readerSpan)
			for time.Now().Before(deadline) {
				_, err := b.Read(context.Background(), h, buf)
				if err == nil {
					mu.Lock()
					received++
					done := received == totalMsgs
					mu.Unlock()
					if done {
						return
					}
					continue
				}
				if errors.Is(err, ErrTimedOut) {
					mu.Lock()
					done := received == totalMsgs
					mu.Unlock()
					if done {
						return
					}
					continue
				}
				t.Errorf("Read: %v", err)
				return
			}
		}()
	}

	wg.Wait()
	if received != totalMsgs {
		t.Errorf("received %d messages, want %d", received, totalMsgs)
	}

	st := b.Stats()[0]
	if st.QueuedMsgs != 0 || st.StoredBytes != 0 {
		t.Errorf("leftover queue state: %+v", st)
	}
}

func TestBroker_StatsTracksQueue(t *testing.T) {
	b := newTestBroker(t)
	h := mustOpen(t, b, 0)

	if _, err := b.Write(h, []byte("abcd")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	st := b.Stats()[0]
	if st.QueuedMsgs != 1 || st.StoredBytes != 4 || st.Sessions != 1 {
		t.Errorf("Stats = %+v, want 1 msg, 4 bytes, 1 session", st)
	}
}

func TestBroker_ShutdownDrainsInstances(t *testing.T) {
	b := newTestBroker(t)
	h := mustOpen(t, b, 0)

	if _, err := b.Write(h, []byte("junk")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	b.Shutdown()

	st := b.Stats()[0]
	if st.QueuedMsgs != 0 || st.StoredBytes != 0 {
		t.Errorf("after Shutdown: %+v, want empty", st)
	}
}
