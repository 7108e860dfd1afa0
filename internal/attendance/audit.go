package attendance

import (
	"context"
	"encoding/json"
	"log"

	"campustrack/internal/queue"
)

// QueueAudit publishes intake audit events to the queue; the worker
// drains them into the audit table. Publish failures only cost the audit
// row, never the request.
type QueueAudit struct {
	q queue.Queue
}

// NewQueueAudit wraps a queue as an AuditSink.
func NewQueueAudit(q queue.Queue) *QueueAudit {
	return &QueueAudit{q: q}
}

// Record publishes one audit event.
func (a *QueueAudit) Record(ctx context.Context, evt AuditEvent) {
	body, err := json.Marshal(evt)
	if err != nil {
		log.Printf("audit marshal failed: %v", err)
		return
	}
	if err := a.q.Publish(ctx, queue.Message{Type: queue.TypeAudit, Body: body}); err != nil {
		log.Printf("audit publish failed: %v", err)
	}
}
