package app

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"golang.org/x/time/rate"

	"github.com/bft-labs/httpbatch/internal/domain"
	"github.com/bft-labs/httpbatch/internal/queue"
)

// fakeSender records payloads and returns scripted results.
type fakeSender struct {
	mu       sync.Mutex
	payloads [][]byte
	respond  func(call int) (int, error)
	block    chan struct{}
}

func (s *fakeSender) Send(ctx context.Context, endpoint domain.Endpoint, payload []byte) (int, error) {
	if s.block != nil {
		select {
		case <-s.block:
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	}

	s.mu.Lock()
	s.payloads = append(s.payloads, append([]byte(nil), payload...))
	call := len(s.payloads)
	s.mu.Unlock()

	if s.respond != nil {
		return s.respond(call)
	}
	return 200, nil
}

func (s *fakeSender) Payloads() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.payloads))
	for i, p := range s.payloads {
		out[i] = string(p)
	}
	return out
}

// recordingEmitter collects flush results.
type recordingEmitter struct {
	mu      sync.Mutex
	flushes []FlushResult
	drops   []DropResult
	flushed chan FlushResult
}

func newRecordingEmitter() *recordingEmitter {
	return &recordingEmitter{flushed: make(chan FlushResult, 100)}
}

func (e *recordingEmitter) OnFlush(result FlushResult) {
	e.mu.Lock()
	e.flushes = append(e.flushes, result)
	e.mu.Unlock()
	e.flushed <- result
}

func (e *recordingEmitter) OnDrop(result DropResult) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.drops = append(e.drops, result)
}

func (e *recordingEmitter) Flushes() []FlushResult {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]FlushResult(nil), e.flushes...)
}

func (e *recordingEmitter) waitFlush(t *testing.T, timeout time.Duration) FlushResult {
	t.Helper()
	select {
	case r := <-e.flushed:
		return r
	case <-time.After(timeout):
		t.Fatal("timed out waiting for flush")
		return FlushResult{}
	}
}

func testEndpoint(t *testing.T) domain.Endpoint {
	t.Helper()
	ep, err := domain.ParseEndpoint("http://collector.test/ingest")
	if err != nil {
		t.Fatalf("ParseEndpoint: %v", err)
	}
	return ep
}

type workerHarness struct {
	queue   *queue.Queue
	sender  *fakeSender
	emitter *recordingEmitter
	stats   *Stats
	done    chan error
}

func startWorker(t *testing.T, ctx context.Context, cfg WorkerConfig, sender *fakeSender) *workerHarness {
	t.Helper()
	if cfg.Endpoint.IsZero() {
		cfg.Endpoint = testEndpoint(t)
	}
	h := &workerHarness{
		queue:   queue.New(queue.Options{}),
		sender:  sender,
		emitter: newRecordingEmitter(),
		stats:   &Stats{},
		done:    make(chan error, 1),
	}
	w := NewWorker(cfg, h.queue, sender, &mockLogger{}, h.emitter, h.stats)
	go func() { h.done <- w.Run(ctx) }()
	return h
}

func (h *workerHarness) send(t *testing.T, data string) {
	t.Helper()
	if err := h.queue.Send(domain.NewEvent([]byte(data), nil)); err != nil {
		t.Fatalf("Send(%q): %v", data, err)
	}
}

func (h *workerHarness) closeAndWait(t *testing.T) error {
	t.Helper()
	h.queue.Close()
	select {
	case err := <-h.done:
		return err
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not exit")
		return nil
	}
}

func TestWorker_CapacityOverflow(t *testing.T) {
	h := startWorker(t, context.Background(), WorkerConfig{
		Capacity:    10,
		IdleTimeout: time.Hour,
	}, &fakeSender{})

	for _, s := range []string{"12345", "6789", "X", "Y"} {
		h.send(t, s)
	}

	first := h.emitter.waitFlush(t, time.Second)
	if first.Trigger != TriggerSize {
		t.Errorf("first flush trigger = %s, want size", first.Trigger)
	}
	if first.Bytes != 10 || first.Events != 3 {
		t.Errorf("first flush = %d bytes / %d events, want 10 / 3", first.Bytes, first.Events)
	}

	// "Y" stays pending until the queue closes.
	select {
	case r := <-h.emitter.flushed:
		t.Fatalf("unexpected flush %+v", r)
	case <-time.After(50 * time.Millisecond):
	}

	if err := h.closeAndWait(t); err != nil {
		t.Fatalf("Run() = %v", err)
	}

	got := h.sender.Payloads()
	want := []string{"123456789X", "Y"}
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Errorf("payloads = %q, want %q", got, want)
	}

	last := h.emitter.waitFlush(t, time.Second)
	if last.Trigger != TriggerDrain {
		t.Errorf("last flush trigger = %s, want drain", last.Trigger)
	}
}

func TestWorker_IdleTimeout(t *testing.T) {
	h := startWorker(t, context.Background(), WorkerConfig{
		Capacity:    1024,
		IdleTimeout: 30 * time.Millisecond,
	}, &fakeSender{})

	start := time.Now()
	h.send(t, "hello")

	r := h.emitter.waitFlush(t, time.Second)
	if r.Trigger != TriggerIdle {
		t.Errorf("trigger = %s, want idle", r.Trigger)
	}
	if r.Bytes != 5 {
		t.Errorf("bytes = %d, want 5", r.Bytes)
	}
	if elapsed := time.Since(start); elapsed < 30*time.Millisecond {
		t.Errorf("flushed after %v, before the idle timeout", elapsed)
	}

	// An empty batch is never flushed.
	select {
	case r := <-h.emitter.flushed:
		t.Fatalf("unexpected flush %+v", r)
	case <-time.After(100 * time.Millisecond):
	}

	if err := h.closeAndWait(t); err != nil {
		t.Fatalf("Run() = %v", err)
	}
	if got := h.sender.Payloads(); len(got) != 1 || got[0] != "hello" {
		t.Errorf("payloads = %q, want [hello]", got)
	}
}

func TestWorker_IdleTimeoutSplitsAtGap(t *testing.T) {
	h := startWorker(t, context.Background(), WorkerConfig{
		Capacity:    1024,
		IdleTimeout: 30 * time.Millisecond,
	}, &fakeSender{})

	h.send(t, "a")
	h.send(t, "b")
	h.emitter.waitFlush(t, time.Second)
	h.send(t, "c")

	if err := h.closeAndWait(t); err != nil {
		t.Fatalf("Run() = %v", err)
	}

	got := h.sender.Payloads()
	if len(got) != 2 || got[0] != "ab" || got[1] != "c" {
		t.Errorf("payloads = %q, want [ab c]", got)
	}
}

func TestWorker_MaxBatchAge(t *testing.T) {
	h := startWorker(t, context.Background(), WorkerConfig{
		Capacity:    1 << 20,
		IdleTimeout: time.Hour,
		MaxBatchAge: 40 * time.Millisecond,
	}, &fakeSender{})

	h.send(t, "a")
	r := h.emitter.waitFlush(t, time.Second)
	if r.Trigger != TriggerAge {
		t.Errorf("trigger = %s, want age", r.Trigger)
	}

	if err := h.closeAndWait(t); err != nil {
		t.Fatalf("Run() = %v", err)
	}
}

func TestWorker_OversizedEvent(t *testing.T) {
	h := startWorker(t, context.Background(), WorkerConfig{
		Capacity:    4,
		IdleTimeout: time.Hour,
	}, &fakeSender{})

	h.send(t, "ab")
	h.send(t, "0123456789")
	h.send(t, "cd")

	if err := h.closeAndWait(t); err != nil {
		t.Fatalf("Run() = %v", err)
	}

	got := h.sender.Payloads()
	want := []string{"ab", "0123456789", "cd"}
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Errorf("payloads = %q, want %q", got, want)
	}
}

func TestWorker_PreservesOrderAndBatchCount(t *testing.T) {
	const (
		capacity  = 64
		eventSize = 8
		events    = 100
	)

	h := startWorker(t, context.Background(), WorkerConfig{
		Capacity:    capacity,
		IdleTimeout: time.Hour,
	}, &fakeSender{})

	var want bytes.Buffer
	for i := 0; i < events; i++ {
		s := fmt.Sprintf("%08d", i)
		want.WriteString(s)
		h.send(t, s)
	}

	if err := h.closeAndWait(t); err != nil {
		t.Fatalf("Run() = %v", err)
	}

	got := h.sender.Payloads()
	if joined := strings.Join(got, ""); joined != want.String() {
		t.Errorf("concatenated payloads do not match enqueue order")
	}

	perBatch := capacity / eventSize
	wantBatches := (events + perBatch - 1) / perBatch
	if len(got) != wantBatches {
		t.Errorf("got %d batches, want %d", len(got), wantBatches)
	}
	for i, p := range got {
		if len(p) > capacity {
			t.Errorf("batch %d has %d bytes, exceeds capacity", i, len(p))
		}
	}
}

func TestWorker_FailedFlushDoesNotStopLoop(t *testing.T) {
	sender := &fakeSender{
		respond: func(call int) (int, error) {
			if call == 1 {
				return 500, &domain.DispatchError{StatusCode: 500}
			}
			return 200, nil
		},
	}
	h := startWorker(t, context.Background(), WorkerConfig{
		Capacity:    3,
		IdleTimeout: time.Hour,
	}, sender)

	h.send(t, "abc")
	h.send(t, "def")

	first := h.emitter.waitFlush(t, time.Second)
	if first.Err == nil || first.StatusCode != 500 {
		t.Errorf("first flush = %+v, want 500 error", first)
	}
	if first.Attempts != 1 {
		t.Errorf("attempts = %d, want 1 with retry disabled", first.Attempts)
	}

	if err := h.closeAndWait(t); err != nil {
		t.Fatalf("Run() = %v", err)
	}

	second := h.emitter.waitFlush(t, time.Second)
	if second.Err != nil {
		t.Errorf("second flush error = %v, want nil", second.Err)
	}

	snap := h.stats.Snapshot(0)
	if snap.Flushes != 2 || snap.FailedFlushes != 1 || snap.BytesSent != 3 {
		t.Errorf("stats = %+v, want 2 flushes, 1 failed, 3 bytes sent", snap)
	}
}

func TestWorker_RetryRetryableError(t *testing.T) {
	sender := &fakeSender{
		respond: func(call int) (int, error) {
			if call < 3 {
				return 503, &domain.DispatchError{StatusCode: 503}
			}
			return 200, nil
		},
	}
	h := startWorker(t, context.Background(), WorkerConfig{
		Capacity:    16,
		IdleTimeout: time.Hour,
		Retry: RetryConfig{
			Enabled:         true,
			InitialInterval: time.Millisecond,
			MaxInterval:     5 * time.Millisecond,
			MaxAttempts:     5,
		},
	}, sender)

	h.send(t, "payload")
	if err := h.closeAndWait(t); err != nil {
		t.Fatalf("Run() = %v", err)
	}

	r := h.emitter.waitFlush(t, time.Second)
	if r.Err != nil {
		t.Errorf("flush error = %v, want nil", r.Err)
	}
	if r.Attempts != 3 || r.StatusCode != 200 {
		t.Errorf("attempts/status = %d/%d, want 3/200", r.Attempts, r.StatusCode)
	}
}

func TestWorker_RetryStopsOnPermanentError(t *testing.T) {
	sender := &fakeSender{
		respond: func(call int) (int, error) {
			return 400, &domain.DispatchError{StatusCode: 400}
		},
	}
	h := startWorker(t, context.Background(), WorkerConfig{
		Capacity:    16,
		IdleTimeout: time.Hour,
		Retry: RetryConfig{
			Enabled:         true,
			InitialInterval: time.Millisecond,
			MaxAttempts:     5,
		},
	}, sender)

	h.send(t, "payload")
	if err := h.closeAndWait(t); err != nil {
		t.Fatalf("Run() = %v", err)
	}

	r := h.emitter.waitFlush(t, time.Second)
	var dispatchErr *domain.DispatchError
	if !errors.As(r.Err, &dispatchErr) || dispatchErr.StatusCode != 400 {
		t.Errorf("flush error = %v, want 400 DispatchError", r.Err)
	}
	if r.Attempts != 1 {
		t.Errorf("attempts = %d, want 1", r.Attempts)
	}
}

func TestWorker_RetryMaxAttempts(t *testing.T) {
	sender := &fakeSender{
		respond: func(call int) (int, error) {
			return 0, &domain.DispatchError{Err: errors.New("connection refused")}
		},
	}
	h := startWorker(t, context.Background(), WorkerConfig{
		Capacity:    16,
		IdleTimeout: time.Hour,
		Retry: RetryConfig{
			Enabled:         true,
			InitialInterval: time.Millisecond,
			MaxInterval:     2 * time.Millisecond,
			MaxAttempts:     3,
		},
	}, sender)

	h.send(t, "payload")
	if err := h.closeAndWait(t); err != nil {
		t.Fatalf("Run() = %v", err)
	}

	r := h.emitter.waitFlush(t, time.Second)
	if r.Err == nil {
		t.Fatal("flush error = nil, want failure")
	}
	if r.Attempts != 3 {
		t.Errorf("attempts = %d, want 3", r.Attempts)
	}
	if got := len(sender.Payloads()); got != 3 {
		t.Errorf("sender called %d times, want 3", got)
	}
}

func TestWorker_CanceledContextDrainsWithoutSending(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	sender := &fakeSender{block: make(chan struct{})}
	h := startWorker(t, ctx, WorkerConfig{
		Capacity:    2,
		IdleTimeout: time.Hour,
	}, sender)

	h.send(t, "ab")
	h.send(t, "cd")
	h.send(t, "ef")
	h.queue.Close()

	cancel()

	select {
	case err := <-h.done:
		if err != nil {
			t.Fatalf("Run() = %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("worker did not exit after cancel")
	}

	for _, r := range h.emitter.Flushes() {
		if r.Err == nil {
			t.Errorf("flush %s succeeded after cancel", r.BatchID)
		}
	}
	if got := len(h.emitter.Flushes()); got != 3 {
		t.Errorf("got %d flush reports, want 3", got)
	}
}

func TestWorker_RateLimit(t *testing.T) {
	h := startWorker(t, context.Background(), WorkerConfig{
		Capacity:    1,
		IdleTimeout: time.Hour,
		Limiter:     rate.NewLimiter(rate.Every(20*time.Millisecond), 1),
	}, &fakeSender{})

	start := time.Now()
	for _, s := range []string{"a", "b", "c", "d"} {
		h.send(t, s)
	}
	if err := h.closeAndWait(t); err != nil {
		t.Fatalf("Run() = %v", err)
	}

	// Four flushes with a burst of one need at least three intervals.
	if elapsed := time.Since(start); elapsed < 50*time.Millisecond {
		t.Errorf("four flushes took %v, rate limit not applied", elapsed)
	}
}

func TestWorker_ReportsOpaquesAndBatchID(t *testing.T) {
	h := startWorker(t, context.Background(), WorkerConfig{
		Capacity:    16,
		IdleTimeout: time.Hour,
	}, &fakeSender{})

	_ = h.queue.Send(domain.NewEvent([]byte("a"), 1))
	_ = h.queue.Send(domain.NewEvent([]byte("b"), "two"))

	if err := h.closeAndWait(t); err != nil {
		t.Fatalf("Run() = %v", err)
	}

	r := h.emitter.waitFlush(t, time.Second)
	if len(r.Opaques) != 2 || r.Opaques[0] != 1 || r.Opaques[1] != "two" {
		t.Errorf("opaques = %v, want [1 two]", r.Opaques)
	}
	if r.BatchID == "" {
		t.Error("batch ID is empty")
	}
}

type panicSender struct{}

func (panicSender) Send(ctx context.Context, endpoint domain.Endpoint, payload []byte) (int, error) {
	panic("boom")
}

func TestWorker_PanicIsRecovered(t *testing.T) {
	q := queue.New(queue.Options{})
	w := NewWorker(WorkerConfig{Capacity: 1, IdleTimeout: time.Hour, Endpoint: testEndpoint(t)},
		q, panicSender{}, &mockLogger{}, nil, nil)

	_ = q.Send(domain.NewEvent([]byte("x"), nil))
	q.Close()

	err := w.Run(context.Background())
	if !errors.Is(err, domain.ErrWorkerCrashed) {
		t.Errorf("Run() = %v, want ErrWorkerCrashed", err)
	}
}

func TestWorker_PanicReportsAbandonedEvents(t *testing.T) {
	q := queue.New(queue.Options{})
	emitter := newRecordingEmitter()
	stats := &Stats{}
	w := NewWorker(WorkerConfig{Capacity: 2, IdleTimeout: time.Hour, Endpoint: testEndpoint(t)},
		q, panicSender{}, &mockLogger{}, emitter, stats)

	for i, data := range []string{"ab", "cd", "ef"} {
		if err := q.Send(domain.NewEvent([]byte(data), i+1)); err != nil {
			t.Fatalf("Send() error = %v", err)
		}
	}

	// "cd" does not fit next to "ab", so the size flush of "ab" panics.
	err := w.Run(context.Background())
	if !errors.Is(err, domain.ErrWorkerCrashed) {
		t.Fatalf("Run() = %v, want ErrWorkerCrashed", err)
	}

	flushes := emitter.Flushes()
	if len(flushes) != 2 {
		t.Fatalf("got %d flush reports, want 2", len(flushes))
	}
	var opaques []any
	for _, f := range flushes {
		if !errors.Is(f.Err, domain.ErrWorkerCrashed) {
			t.Errorf("flush %s Err = %v, want ErrWorkerCrashed", f.BatchID, f.Err)
		}
		if f.Attempts != 0 {
			t.Errorf("flush %s Attempts = %d, want 0", f.BatchID, f.Attempts)
		}
		opaques = append(opaques, f.Opaques...)
	}
	if len(opaques) != 3 || opaques[0] != 1 || opaques[1] != 2 || opaques[2] != 3 {
		t.Errorf("reported opaques = %v, want [1 2 3]", opaques)
	}
	if flushes[1].Trigger != TriggerDrain || flushes[1].Bytes != 4 {
		t.Errorf("abandoned batch = %+v, want drain of 4 bytes", flushes[1])
	}

	snap := stats.Snapshot(q.Len())
	if snap.Flushes != 2 || snap.FailedFlushes != 2 || snap.BytesSent != 0 {
		t.Errorf("stats = %+v", snap)
	}
	if err := q.Send(domain.NewEvent([]byte("late"), nil)); !errors.Is(err, domain.ErrQueueClosed) {
		t.Errorf("Send() after crash = %v, want ErrQueueClosed", err)
	}
}
