package kfka

import (
	"context"
	"encoding/json"
	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"time"
)

type EventType string

const (
	EnrollmentCreated EventType = "enrollment.created"
	ReviewCreated     EventType = "review.created"
	ReviewVoted       EventType = "review.voted"
)

type Event struct {
	ID         string    `json:"id"`
	Type       EventType `json:"type"`
	UserID     uint      `json:"user_id"`
	CourseID   uint      `json:"course_id,omitempty"`
	ReviewID   uint      `json:"review_id,omitempty"`
	Rating     int       `json:"rating,omitempty"`
	Helpful    *bool     `json:"helpful,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

func NewEvent(t EventType, userID uint) Event {
	return Event{
		ID:         uuid.NewString(),
		Type:       t,
		UserID:     userID,
		OccurredAt: time.Now().UTC(),
	}
}

type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

type KafkaPublisher struct {
	writer messageWriter
}

func NewWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.LeastBytes{},
		BatchTimeout:           10 * time.Millisecond,
		AllowAutoTopicCreation: true,
	}
}

func NewKafkaPublisher(w *kafka.Writer) *KafkaPublisher {
	return &KafkaPublisher{writer: w}
}

func (p *KafkaPublisher) Publish(ctx context.Context, e Event) error {
	msg, err := Encode(e)
	if err != nil {
		return err
	}
	return p.writer.WriteMessages(ctx, msg)
}

// Encode keys messages by event type, the way consumers route them.
func Encode(e Event) (kafka.Message, error) {
	value, err := json.Marshal(e)
	if err != nil {
		return kafka.Message{}, err
	}
	return kafka.Message{Key: []byte(e.Type), Value: value}, nil
}

func Decode(m kafka.Message) (Event, error) {
	var e Event
	err := json.Unmarshal(m.Value, &e)
	return e, err
}
