// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

/*
Package notify delivers change notifications of the gateway to the outside world.

Every successful create, update and delete results in one message per record:

	{
	  "resource": "suppliers",
	  "operation": "update",
	  "id": "s1",
	  "payload": {"id": "s1", "name": "Acme", "risk": 10},
	  "timestamp": "2021-06-01T12:00:00Z"
	}

Messages go to Kafka, to an SQS queue or to the log.
*/
package notify

import (
	"context"
	"time"

	"github.com/goccy/go-json"

	"github.com/relabs-tech/tablegate/core"
	"github.com/relabs-tech/tablegate/core/logger"
)

// Message is the wire format of a notification
type Message struct {
	Resource  string          `json:"resource"`
	Operation core.Operation  `json:"operation"`
	ID        string          `json:"id"`
	Payload   json.RawMessage `json:"payload"`
	Timestamp time.Time       `json:"timestamp"`
}

// now is replaced in tests
var now = func() time.Time { return time.Now().UTC() }

// Encode returns the wire format of notification
func Encode(notification core.Notification) ([]byte, error) {
	payload := notification.Payload
	if len(payload) == 0 {
		payload = json.RawMessage("null")
	}
	return json.Marshal(Message{
		Resource:  notification.Resource,
		Operation: notification.Operation,
		ID:        notification.ID,
		Payload:   payload,
		Timestamp: now(),
	})
}

// Log is a notifier which writes notifications to the request logger
type Log struct{}

// Notify implements core.Notifier
func (Log) Notify(ctx context.Context, notification core.Notification) error {
	logger.FromContext(ctx).
		WithField("resource", notification.Resource).
		WithField("operation", notification.Operation).
		WithField("id", notification.ID).
		Infoln("notification:", string(notification.Payload))
	return nil
}
