package notify

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/tablegate/core"
)

var notification = core.Notification{
	Resource:  "suppliers",
	Operation: core.OperationUpdate,
	ID:        "s1",
	Payload:   []byte(`{"id":"s1","risk":10}`),
}

func fixedNow(t *testing.T) {
	previous := now
	now = func() time.Time { return time.Date(2021, 6, 1, 12, 0, 0, 0, time.UTC) }
	t.Cleanup(func() { now = previous })
}

func TestEncode(t *testing.T) {
	fixedNow(t)
	data, err := Encode(notification)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"resource": "suppliers",
		"operation": "update",
		"id": "s1",
		"payload": {"id": "s1", "risk": 10},
		"timestamp": "2021-06-01T12:00:00Z"
	}`, string(data))

	data, err = Encode(core.Notification{Resource: "suppliers", Operation: core.OperationDelete, ID: "s2"})
	require.NoError(t, err)
	assert.Contains(t, string(data), `"payload":null`)
}

type fakeWriter struct {
	messages []kafka.Message
	err      error
	closed   bool
}

func (w *fakeWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	w.messages = append(w.messages, msgs...)
	return w.err
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func TestKafka(t *testing.T) {
	fixedNow(t)
	writer := &fakeWriter{}
	k := &Kafka{writer: writer, topic: "changes"}

	require.NoError(t, k.Notify(context.Background(), notification))
	require.Len(t, writer.messages, 1)
	message := writer.messages[0]
	assert.Equal(t, "suppliers/s1", string(message.Key))
	expected, _ := Encode(notification)
	assert.Equal(t, expected, message.Value)
	assert.Equal(t, []kafka.Header{
		{Key: "resource", Value: []byte("suppliers")},
		{Key: "operation", Value: []byte("update")},
	}, message.Headers)

	writer.err = errors.New("leader not available")
	err := k.Notify(context.Background(), notification)
	assert.ErrorIs(t, err, writer.err)

	require.NoError(t, k.Close())
	assert.True(t, writer.closed)

	_, err = NewKafka(KafkaConfiguration{Topic: "changes"})
	assert.Error(t, err)
	_, err = NewKafka(KafkaConfiguration{Brokers: []string{"localhost:9092"}})
	assert.Error(t, err)
}

type fakeSender struct {
	inputs []*sqs.SendMessageInput
}

func (s *fakeSender) SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	s.inputs = append(s.inputs, params)
	return &sqs.SendMessageOutput{}, nil
}

func TestSQS(t *testing.T) {
	fixedNow(t)
	sender := &fakeSender{}
	s := &SQS{client: sender, queueURL: "https://sqs.eu-central-1.amazonaws.com/1/changes"}

	require.NoError(t, s.Notify(context.Background(), notification))
	require.Len(t, sender.inputs, 1)
	input := sender.inputs[0]
	assert.Equal(t, "https://sqs.eu-central-1.amazonaws.com/1/changes", *input.QueueUrl)
	expected, _ := Encode(notification)
	assert.Equal(t, string(expected), *input.MessageBody)
	assert.Equal(t, "update", *input.MessageAttributes["operation"].StringValue)

	_, err := NewSQS(context.Background(), SQSConfiguration{})
	assert.Error(t, err)
}

func TestLog(t *testing.T) {
	assert.NoError(t, Log{}.Notify(context.Background(), notification))
}
