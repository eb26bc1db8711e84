package worker

import (
	"context"
	"encoding/json"
	"log"

	"diamonds/internal/events"
	"diamonds/internal/models"

	"github.com/nats-io/nats.go"
)

type GrantExecutor interface {
	ExecuteGrant(ctx context.Context, grantID string) (bool, error)
}

type TransferCompleter interface {
	Complete(ctx context.Context, transferID string) (bool, error)
}

// Worker consumes status-transition events and dispatches only on the
// transitions of interest: a grant reaching approved, a pending transfer
// gaining its second confirmation. QueueSubscribe keeps each event with one
// member of the group, and every dispatch target is idempotent, so redelivery
// is harmless.
type Worker struct {
	conn      *nats.Conn
	grants    GrantExecutor
	transfers TransferCompleter
}

func New(conn *nats.Conn, grants GrantExecutor, transfers TransferCompleter) *Worker {
	return &Worker{conn: conn, grants: grants, transfers: transfers}
}

// Run subscribes both dispatchers and blocks until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	grantSub, err := w.conn.QueueSubscribe(events.SubjectGrantUpdated, events.QueueGroup, func(m *nats.Msg) {
		var event events.GrantUpdated
		if err := json.Unmarshal(m.Data, &event); err != nil {
			log.Printf("worker: bad grant event: %v", err)
			return
		}
		w.handleGrantUpdated(ctx, event)
	})
	if err != nil {
		return err
	}
	defer func() { _ = grantSub.Unsubscribe() }()

	transferSub, err := w.conn.QueueSubscribe(events.SubjectTransferUpdated, events.QueueGroup, func(m *nats.Msg) {
		var event events.TransferUpdated
		if err := json.Unmarshal(m.Data, &event); err != nil {
			log.Printf("worker: bad transfer event: %v", err)
			return
		}
		w.handleTransferUpdated(ctx, event)
	})
	if err != nil {
		return err
	}
	defer func() { _ = transferSub.Unsubscribe() }()

	log.Printf("worker: listening on %s and %s", events.SubjectGrantUpdated, events.SubjectTransferUpdated)
	<-ctx.Done()
	return nil
}

func (w *Worker) handleGrantUpdated(ctx context.Context, event events.GrantUpdated) {
	if event.NewStatus != models.GrantApproved || event.OldStatus == models.GrantApproved {
		return
	}
	applied, err := w.grants.ExecuteGrant(ctx, event.GrantID)
	if err != nil {
		log.Printf("worker: executing grant %s failed: %v", event.GrantID, err)
		return
	}
	if applied {
		log.Printf("worker: executed grant %s", event.GrantID)
	}
}

func (w *Worker) handleTransferUpdated(ctx context.Context, event events.TransferUpdated) {
	if event.NewStatus != models.TransferPending {
		return
	}
	if !event.SenderConfirmed || !event.ReceiverConfirmed {
		return
	}
	applied, err := w.transfers.Complete(ctx, event.TransferID)
	if err != nil {
		log.Printf("worker: completing transfer %s failed: %v", event.TransferID, err)
		return
	}
	if applied {
		log.Printf("worker: completed transfer %s", event.TransferID)
	}
}
