package hostapi

import (
	"sync"
	"time"

	"github.com/bft-labs/httpbatch/pkg/httpbatch"
)

// Report is the outcome for one produced event.
type Report struct {
	// Status is StatusOK when the endpoint answered 2xx.
	Status int

	// HTTPCode is the response status, 0 if no response was received.
	HTTPCode int

	// Message describes the failure. Empty on success.
	Message string

	// Opaque is the value given to Produce.
	Opaque any
}

// ReportFunc receives reports from GetReports.
type ReportFunc func(Report)

// ReportQueue turns flush and drop events into per-event reports and holds
// them until the host polls. It tracks how many produced events are still
// waiting for their report.
type ReportQueue struct {
	httpbatch.BaseEventHandler

	mu          sync.Mutex
	reports     []Report
	outstanding int
	ready       chan struct{}
}

// NewReportQueue creates an empty queue.
func NewReportQueue() *ReportQueue {
	return &ReportQueue{ready: make(chan struct{}, 1)}
}

// Track records that a report will follow for one event. Call it before
// handing the event over, so a fast report cannot precede it.
func (q *ReportQueue) Track() {
	q.mu.Lock()
	q.outstanding++
	q.mu.Unlock()
}

// Untrack reverts Track for an event that was not accepted.
func (q *ReportQueue) Untrack() {
	q.mu.Lock()
	if q.outstanding > 0 {
		q.outstanding--
	}
	q.mu.Unlock()
}

// OnFlush queues one report per event of the batch.
func (q *ReportQueue) OnFlush(e httpbatch.FlushEvent) {
	status, msg := StatusOK, ""
	if e.Err != nil {
		status, msg = statusFor(e.Err), e.Err.Error()
	}

	q.mu.Lock()
	for _, opaque := range e.Opaques {
		q.reports = append(q.reports, Report{
			Status:   status,
			HTTPCode: e.StatusCode,
			Message:  msg,
			Opaque:   opaque,
		})
	}
	q.mu.Unlock()

	q.notify()
}

// OnDrop queues a report for an event evicted from a full queue.
func (q *ReportQueue) OnDrop(e httpbatch.DropEvent) {
	q.mu.Lock()
	q.reports = append(q.reports, Report{
		Status:  StatusQueueFull,
		Message: e.Reason,
		Opaque:  e.Opaque,
	})
	q.mu.Unlock()

	q.notify()
}

// Poll delivers every queued report to fn. If none is queued it waits up to
// timeout for one; timeout <= 0 does not wait. It returns the number of
// tracked events whose report has not been delivered yet.
func (q *ReportQueue) Poll(fn ReportFunc, timeout time.Duration) int {
	reports := q.take()
	if len(reports) == 0 && timeout > 0 {
		timer := time.NewTimer(timeout)
		// A wake-up may be left over from reports an earlier Poll took.
	wait:
		for len(reports) == 0 {
			select {
			case <-q.ready:
				reports = q.take()
			case <-timer.C:
				break wait
			}
		}
		timer.Stop()
	}

	for _, r := range reports {
		if fn != nil {
			fn(r)
		}
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	q.outstanding -= len(reports)
	if q.outstanding < 0 {
		q.outstanding = 0
	}
	return q.outstanding
}

// Outstanding returns the number of tracked events not yet reported.
func (q *ReportQueue) Outstanding() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.outstanding
}

func (q *ReportQueue) take() []Report {
	q.mu.Lock()
	defer q.mu.Unlock()
	reports := q.reports
	q.reports = nil
	return reports
}

func (q *ReportQueue) notify() {
	select {
	case q.ready <- struct{}{}:
	default:
	}
}
