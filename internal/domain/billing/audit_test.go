package billing

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type blockingSink struct {
	mu     sync.Mutex
	events []AuditEvent
}

func (s *blockingSink) Record(e AuditEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
}

func (s *blockingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

func TestDispatcher_DeliversToAllSinks(t *testing.T) {
	a := &blockingSink{}
	b := &blockingSink{}
	d := NewDispatcher(a, b)

	d.Record(AuditEvent{OperationID: "op-1", Type: OpUpgrade, OccurredAt: time.Now()})
	d.Record(AuditEvent{OperationID: "op-2", Type: OpCancellation, OccurredAt: time.Now()})
	d.Close()

	assert.Equal(t, 2, a.count())
	assert.Equal(t, 2, b.count())
}

func TestDispatcher_CloseIsIdempotent(t *testing.T) {
	d := NewDispatcher(&blockingSink{})
	d.Close()
	assert.NotPanics(t, func() { d.Close() })
}
