// Package queue реализует доставку идентификаторов заказов между стадиями обработки через Kafka.
// Доставка выполняется не менее одного раза: смещение фиксируется только после того, как сообщение
// обработано или отправлено в dead-letter.
package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
)

// Channel задаёт логический канал (топик Kafka).
type Channel string

const (
	ChannelProcessOrder  Channel = "process-order"
	ChannelPaymentFailed Channel = "payment-failed"
	ChannelDispatch      Channel = "dispatch"
	ChannelRefundNotify  Channel = "refund-notify"
)

// Channels перечисляет все каналы сервиса.
var Channels = []Channel{
	ChannelProcessOrder,
	ChannelPaymentFailed,
	ChannelDispatch,
	ChannelRefundNotify,
}

// DeadLetter возвращает топик для сообщений, исчерпавших попытки обработки.
func (c Channel) DeadLetter() string {
	return string(c) + ".dlq"
}

// Заголовки сообщений dead-letter.
const (
	HeaderAttempts     = "attempts"
	HeaderError        = "error"
	HeaderSourceTopic  = "source-topic"
	HeaderSourceOffset = "source-offset"
)

// MessageWriter описывает часть *kafka.Writer, используемая публикатором и dead-letter.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// MessageReader описывает часть *kafka.Reader, используемая потребителем.
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// NewKafkaWriter создаёт писателя без фиксированного топика: топик задаётся в каждом сообщении.
// Балансировка по ключу сохраняет порядок сообщений одного заказа в пределах партиции.
func NewKafkaWriter(brokers []string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
		WriteTimeout:           10 * time.Second,
	}
}

// NewKafkaReader создаёт читателя группы потребителей для канала ch.
// Смещения фиксируются явно через CommitMessages.
func NewKafkaReader(brokers []string, groupID string, ch Channel) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		Topic:          string(ch),
		GroupID:        groupID,
		MinBytes:       1,
		MaxBytes:       10e6,
		MaxWait:        time.Second,
		CommitInterval: 0,
	})
}

// Publisher публикует идентификаторы заказов в каналы.
type Publisher struct {
	writer MessageWriter
}

// NewPublisher создаёт публикатор поверх writer.
func NewPublisher(writer MessageWriter) *Publisher {
	return &Publisher{writer: writer}
}

// Publish отправляет orderID в канал ch. Ключом и значением служит каноническая строка UUID.
func (p *Publisher) Publish(ctx context.Context, ch Channel, orderID uuid.UUID) error {
	id := []byte(orderID.String())

	err := p.writer.WriteMessages(ctx, kafka.Message{
		Topic: string(ch),
		Key:   id,
		Value: id,
		Time:  time.Now(),
	})
	if err != nil {
		return fmt.Errorf("publish to %s: %w", ch, err)
	}
	return nil
}

// Close закрывает писателя.
func (p *Publisher) Close() error {
	return p.writer.Close()
}
