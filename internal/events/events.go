package events

import (
	"encoding/json"
	"log"
	"time"

	"github.com/nats-io/nats.go"
)

// Subjects carrying state-transition events. Consumers join the
// diamonds-workers queue group so each event is handled once per group.
const (
	SubjectGrantUpdated    = "grants.updated"
	SubjectTransferUpdated = "transfers.updated"
	SubjectAdminAlert      = "alerts.admin"

	QueueGroup = "diamonds-workers"
)

// GrantUpdated is published whenever a grant request changes status. The
// prior and new status travel together so consumers can dispatch on the
// specific transition they care about.
type GrantUpdated struct {
	GrantID   string    `json:"grant_id"`
	OldStatus string    `json:"old_status"`
	NewStatus string    `json:"new_status"`
	Amount    int64     `json:"amount"`
	At        time.Time `json:"at"`
}

// TransferUpdated is published on every transfer mutation: confirmation flag
// flips and status changes alike.
type TransferUpdated struct {
	TransferID        string    `json:"transfer_id"`
	OldStatus         string    `json:"old_status"`
	NewStatus         string    `json:"new_status"`
	SenderConfirmed   bool      `json:"sender_confirmed"`
	ReceiverConfirmed bool      `json:"receiver_confirmed"`
	At                time.Time `json:"at"`
}

type Publisher struct {
	conn *nats.Conn
}

func NewPublisher(conn *nats.Conn) *Publisher {
	return &Publisher{conn: conn}
}

// PublishGrantUpdated fires after the transaction commits. Delivery is
// best-effort: the hourly sweep backstops lost grant events, and transfer
// completion is retriggered by the next confirmation read.
func (p *Publisher) PublishGrantUpdated(event GrantUpdated) {
	p.publish(SubjectGrantUpdated, event)
}

func (p *Publisher) PublishTransferUpdated(event TransferUpdated) {
	p.publish(SubjectTransferUpdated, event)
}

func (p *Publisher) publish(subject string, event any) {
	payload, err := json.Marshal(event)
	if err != nil {
		log.Printf("events: failed to marshal %s: %v", subject, err)
		return
	}
	if err := p.conn.Publish(subject, payload); err != nil {
		log.Printf("events: failed to publish %s: %v", subject, err)
	}
}
