package alert

import (
	"context"
	"encoding/json"
	"log"

	"github.com/nats-io/nats.go"
)

// Sink receives operator-facing alerts. Delivery is an external concern;
// implementations only hand the alert off.
type Sink interface {
	SendAlert(ctx context.Context, alertType, message string, data map[string]any) error
}

// LogSink writes alerts to the process log.
type LogSink struct{}

func (LogSink) SendAlert(_ context.Context, alertType, message string, data map[string]any) error {
	payload, _ := json.Marshal(data)
	log.Printf("ALERT [%s] %s %s", alertType, message, payload)
	return nil
}

// NATSSink publishes alerts for an external pager/chat bridge, falling back
// to the log when the publish fails.
type NATSSink struct {
	conn    *nats.Conn
	subject string
}

func NewNATSSink(conn *nats.Conn, subject string) NATSSink {
	return NATSSink{conn: conn, subject: subject}
}

func (s NATSSink) SendAlert(ctx context.Context, alertType, message string, data map[string]any) error {
	payload, err := json.Marshal(map[string]any{
		"type":    alertType,
		"message": message,
		"data":    data,
	})
	if err != nil {
		return err
	}
	if err := s.conn.Publish(s.subject, payload); err != nil {
		return LogSink{}.SendAlert(ctx, alertType, message, data)
	}
	return nil
}
