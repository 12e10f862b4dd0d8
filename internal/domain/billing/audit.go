package billing

import (
	"log"
	"sync"
	"time"
)

// AuditEvent is the post-commit notification of a completed transition.
type AuditEvent struct {
	OperationID    string        `json:"operation_id"`
	OrganizationID int64         `json:"organization_id"`
	Type           OperationType `json:"type"`
	FromPlanID     string        `json:"from_plan_id,omitempty"`
	ToPlanID       string        `json:"to_plan_id,omitempty"`
	Amount         string        `json:"amount,omitempty"`
	Currency       string        `json:"currency,omitempty"`
	ActorID        int64         `json:"actor_id"`
	OccurredAt     time.Time     `json:"occurred_at"`
}

// AuditSink receives transition events. Delivery is fire-and-forget: a slow
// or failing sink never blocks or rolls back a committed transition.
type AuditSink interface {
	Record(event AuditEvent)
}

// LogSink writes audit events as structured log lines.
type LogSink struct{}

func (LogSink) Record(e AuditEvent) {
	log.Printf("billing_audit op_id=%s org_id=%d type=%s from_plan=%s to_plan=%s amount=%s currency=%s actor_id=%d occurred_at=%s",
		e.OperationID, e.OrganizationID, e.Type, e.FromPlanID, e.ToPlanID,
		e.Amount, e.Currency, e.ActorID, e.OccurredAt.Format(time.RFC3339))
}

// Dispatcher fans audit events out to sinks on a background goroutine,
// only after the originating transaction has committed.
type Dispatcher struct {
	sinks []AuditSink
	ch    chan AuditEvent
	wg    sync.WaitGroup
	once  sync.Once
}

func NewDispatcher(sinks ...AuditSink) *Dispatcher {
	d := &Dispatcher{
		sinks: sinks,
		ch:    make(chan AuditEvent, 64),
	}
	d.wg.Add(1)
	go d.run()
	return d
}

func (d *Dispatcher) run() {
	defer d.wg.Done()
	for event := range d.ch {
		for _, sink := range d.sinks {
			sink.Record(event)
		}
	}
}

// Record enqueues the event without blocking; under backpressure the event
// is dropped with a log line rather than stalling the request path.
func (d *Dispatcher) Record(event AuditEvent) {
	select {
	case d.ch <- event:
	default:
		log.Printf("billing_audit_dropped op_id=%s org_id=%d type=%s",
			event.OperationID, event.OrganizationID, event.Type)
	}
}

// Close drains pending events and stops the dispatcher.
func (d *Dispatcher) Close() {
	d.once.Do(func() {
		close(d.ch)
	})
	d.wg.Wait()
}
