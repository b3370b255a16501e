package approval

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

var ErrNoWaiter = errors.New("approval: no run is waiting for this decision")

type EventKind string

const (
	EventRequested EventKind = "approval_requested"
	EventResolved  EventKind = "approval_resolved"
	EventTimedOut  EventKind = "approval_timed_out"
	// EventPending is published when a run is suspended in async mode.
	EventPending EventKind = "approval_pending"
)

type Event struct {
	Kind      EventKind `json:"kind"`
	Request   Request   `json:"request"`
	Status    Status    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

type waiter struct {
	req      Request
	decision chan Decision
	since    time.Time
}

// Broker lets a blocked run receive its decision from another goroutine, for
// example an HTTP handler. It also fans approval events out to subscribers.
type Broker struct {
	mu      sync.Mutex
	timeout time.Duration
	waiting map[string]*waiter
	history []Event
	// dropped counts events trimmed from the front of history
	dropped int
	changed chan struct{}
}

// NewBroker returns a broker whose waits give up after timeout (0 waits for ctx only).
func NewBroker(timeout time.Duration) *Broker {
	return &Broker{
		timeout: timeout,
		waiting: make(map[string]*waiter),
		changed: make(chan struct{}),
	}
}

func key(companyID, runID string) string {
	return strings.TrimSpace(companyID) + "/" + strings.TrimSpace(runID)
}

// Decide registers the request and blocks until Submit, timeout or ctx.
func (b *Broker) Decide(ctx context.Context, req Request) (Status, error) {
	if strings.TrimSpace(req.RunID) == "" {
		return Pending, fmt.Errorf("run_id is required")
	}
	w := &waiter{req: req, decision: make(chan Decision, 1), since: time.Now()}
	k := key(req.CompanyID, req.RunID)

	b.mu.Lock()
	if _, exists := b.waiting[k]; exists {
		b.mu.Unlock()
		return Pending, fmt.Errorf("approval: run %s is already waiting", k)
	}
	b.waiting[k] = w
	b.publishLocked(Event{Kind: EventRequested, Request: req, Status: Pending})
	b.mu.Unlock()

	waitCtx := ctx
	if b.timeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, b.timeout)
		defer cancel()
	}

	select {
	case d := <-w.decision:
		return d.Status(), nil
	case <-waitCtx.Done():
		b.mu.Lock()
		if cur, ok := b.waiting[k]; !ok || cur != w {
			// Submit won the race and already sent the decision.
			b.mu.Unlock()
			return (<-w.decision).Status(), nil
		}
		delete(b.waiting, k)
		b.publishLocked(Event{Kind: EventTimedOut, Request: req, Status: Pending})
		b.mu.Unlock()
		return Pending, nil
	}
}

// Submit delivers a decision to a waiting run.
func (b *Broker) Submit(companyID, runID string, d Decision) error {
	if d != Approve && d != Reject {
		return fmt.Errorf("approval: invalid decision %d", d)
	}
	k := key(companyID, runID)
	b.mu.Lock()
	defer b.mu.Unlock()
	w, ok := b.waiting[k]
	if !ok {
		return ErrNoWaiter
	}
	delete(b.waiting, k)
	w.decision <- d
	b.publishLocked(Event{Kind: EventResolved, Request: w.req, Status: d.Status()})
	return nil
}

// Publish records an event that did not come from a blocking wait.
func (b *Broker) Publish(kind EventKind, req Request, status Status) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.publishLocked(Event{Kind: kind, Request: req, Status: status})
}

// Waiting lists runs currently blocked on a decision, oldest first.
func (b *Broker) Waiting() []Request {
	b.mu.Lock()
	defer b.mu.Unlock()
	ws := make([]*waiter, 0, len(b.waiting))
	for _, w := range b.waiting {
		ws = append(ws, w)
	}
	sort.Slice(ws, func(i, j int) bool { return ws[i].since.Before(ws[j].since) })
	out := make([]Request, len(ws))
	for i, w := range ws {
		out[i] = w.req
	}
	return out
}

// Subscribe streams events published after the call until ctx is done.
func (b *Broker) Subscribe(ctx context.Context) <-chan Event {
	out := make(chan Event, 8)
	b.mu.Lock()
	cursor := b.dropped + len(b.history)
	b.mu.Unlock()

	go func() {
		defer close(out)
		for {
			b.mu.Lock()
			start := cursor - b.dropped
			if start < 0 {
				start = 0
			}
			events := append([]Event(nil), b.history[start:]...)
			cursor = b.dropped + len(b.history)
			ch := b.changed
			b.mu.Unlock()

			for _, ev := range events {
				pushEvent(out, ev)
			}
			select {
			case <-ctx.Done():
				return
			case <-ch:
			}
		}
	}()
	return out
}

const maxHistory = 1024

func (b *Broker) publishLocked(ev Event) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}
	b.history = append(b.history, ev)
	if len(b.history) > maxHistory {
		trim := len(b.history) - maxHistory/2
		b.history = append([]Event(nil), b.history[trim:]...)
		b.dropped += trim
	}
	close(b.changed)
	b.changed = make(chan struct{})
}

// pushEvent drops the oldest queued event when a subscriber falls behind.
func pushEvent(out chan Event, ev Event) {
	select {
	case out <- ev:
		return
	default:
	}
	select {
	case <-out:
	default:
	}
	select {
	case out <- ev:
	default:
	}
}
