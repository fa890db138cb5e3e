package queue

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/twalmsley/FlashSales-sub001/internal/actor"
	"github.com/twalmsley/FlashSales-sub001/internal/metrics"
	"github.com/twalmsley/FlashSales-sub001/internal/model"
)

// Handler обрабатывает один идентификатор заказа. Обработчик обязан быть идемпотентным.
type Handler func(ctx context.Context, orderID uuid.UUID) error

// Consumer читает канал и вызывает обработчик с ограниченным числом попыток.
type Consumer struct {
	channel     Channel
	reader      MessageReader
	deadLetter  MessageWriter
	handler     Handler
	maxAttempts int
	backoff     time.Duration
	logger      *zap.Logger
	metrics     *metrics.Metrics
}

// ConsumerConfig задаёт политику повторов потребителя.
type ConsumerConfig struct {
	Channel     Channel
	MaxAttempts int
	Backoff     time.Duration
}

// NewConsumer создаёт потребителя канала cfg.Channel.
func NewConsumer(cfg ConsumerConfig, reader MessageReader, deadLetter MessageWriter, handler Handler, logger *zap.Logger, m *metrics.Metrics) *Consumer {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}

	return &Consumer{
		channel:     cfg.Channel,
		reader:      reader,
		deadLetter:  deadLetter,
		handler:     handler,
		maxAttempts: cfg.MaxAttempts,
		backoff:     cfg.Backoff,
		logger:      logger.With(zap.String("channel", string(cfg.Channel))),
		metrics:     m,
	}
}

// Run обрабатывает сообщения до отмены ctx. Ошибка возвращается, только если сообщение
// не удалось ни обработать, ни отправить в dead-letter: смещение при этом не фиксируется,
// и после перезапуска сообщение будет доставлено повторно.
func (c *Consumer) Run(ctx context.Context) error {
	defer c.reader.Close()

	c.logger.Info("consumer started")

	for {
		m, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("fetch message from %s: %w", c.channel, err)
		}

		if err := c.handle(ctx, m); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}

		if err := c.reader.CommitMessages(ctx, m); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("commit message on %s: %w", c.channel, err)
		}
	}
}

func (c *Consumer) handle(ctx context.Context, m kafka.Message) error {
	orderID, err := uuid.Parse(string(m.Value))
	if err != nil {
		return c.sendToDeadLetter(ctx, m, 0, fmt.Errorf("decode order id: %w", err))
	}

	msgCtx := actor.WithCorrelationID(ctx, orderID.String())
	log := c.logger.With(zap.String("order_id", orderID.String()), zap.Int64("offset", m.Offset))

	var lastErr error
	attempt := 0
	for attempt < c.maxAttempts {
		attempt++

		lastErr = c.handler(msgCtx, orderID)
		if lastErr == nil {
			c.metrics.RecordConsumed(string(c.channel), "ok")
			return nil
		}

		if ctx.Err() != nil {
			return ctx.Err()
		}

		if permanent(lastErr) {
			log.Warn("message rejected permanently", zap.Error(lastErr))
			break
		}

		log.Warn("message handling failed", zap.Int("attempt", attempt), zap.Error(lastErr))
		c.metrics.RecordConsumed(string(c.channel), "retry")

		if attempt < c.maxAttempts {
			if err := sleep(ctx, c.backoff<<(attempt-1)); err != nil {
				return err
			}
		}
	}

	return c.sendToDeadLetter(ctx, m, attempt, lastErr)
}

func (c *Consumer) sendToDeadLetter(ctx context.Context, m kafka.Message, attempts int, cause error) error {
	dl := kafka.Message{
		Topic: c.channel.DeadLetter(),
		Key:   m.Key,
		Value: m.Value,
		Time:  time.Now(),
		Headers: []kafka.Header{
			{Key: HeaderAttempts, Value: []byte(strconv.Itoa(attempts))},
			{Key: HeaderError, Value: []byte(cause.Error())},
			{Key: HeaderSourceTopic, Value: []byte(m.Topic)},
			{Key: HeaderSourceOffset, Value: []byte(strconv.FormatInt(m.Offset, 10))},
		},
	}

	if err := c.deadLetter.WriteMessages(ctx, dl); err != nil {
		return fmt.Errorf("write to dead letter %s: %w", c.channel.DeadLetter(), err)
	}

	c.logger.Error("message dead-lettered",
		zap.ByteString("value", m.Value),
		zap.Int("attempts", attempts),
		zap.Error(cause),
	)
	c.metrics.RecordConsumed(string(c.channel), "dead_letter")
	c.metrics.RecordDeadLettered(string(c.channel))

	return nil
}

// permanent сообщает, что повтор не изменит результата: заказ не найден, данные
// некорректны или переход статуса окончательно недопустим.
func permanent(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}

	switch model.KindOf(err) {
	case model.KindNotFound, model.KindValidation, model.KindInvalidTransition, model.KindDuplicate:
		return true
	default:
		return false
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
