package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/abbasKakoolvand/OKR-analyze/internal/scoring"
	"github.com/abbasKakoolvand/OKR-analyze/pkg/logger"
)

const RoutingCellCompleted = "scoring.run.completed"

type Publisher interface {
	Publish(ctx context.Context, routingKey string, payload []byte) error
	Close() error
}

// CellCompleted is the message emitted for every scored cell.
type CellCompleted struct {
	RunID      string        `json:"run_id"`
	KRCode     string        `json:"kr_code"`
	Person     string        `json:"person"`
	TaskCount  int           `json:"task_count"`
	Scores     map[int64]int `json:"scores"`
	OccurredAt time.Time     `json:"occurred_at"`
}

type RabbitMQPublisher struct {
	conn     *amqp.Connection
	channel  *amqp.Channel
	exchange string
	log      *zap.Logger
	mu       sync.Mutex
}

func NewRabbitMQPublisher(url, exchange string) (*RabbitMQPublisher, error) {
	log := logger.Named("events")

	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("failed to declare exchange: %w", err)
	}

	log.Info("RabbitMQ publisher connected", zap.String("exchange", exchange))

	return &RabbitMQPublisher{conn: conn, channel: ch, exchange: exchange, log: log}, nil
}

func (p *RabbitMQPublisher) Publish(ctx context.Context, routingKey string, payload []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	err := p.channel.PublishWithContext(ctx, p.exchange, routingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now(),
		Body:         payload,
	})
	if err != nil {
		p.log.Error("Failed to publish message", zap.String("routing_key", routingKey), zap.Error(err))
		return err
	}

	p.log.Debug("Message published", zap.String("routing_key", routingKey), zap.Int("size", len(payload)))
	return nil
}

func (p *RabbitMQPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.channel.Close(); err != nil {
		p.log.Warn("Error closing channel", zap.Error(err))
	}
	return p.conn.Close()
}

type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, string, []byte) error { return nil }
func (NoopPublisher) Close() error                                   { return nil }

// CellListener returns an orchestrator listener that publishes one
// CellCompleted message per scored cell. Publish failures are logged only.
func CellListener(pub Publisher) func(context.Context, scoring.CellResult) {
	log := logger.Named("events")
	return func(ctx context.Context, res scoring.CellResult) {
		if res.Outcome != scoring.OutcomeScored {
			return
		}

		body, err := json.Marshal(CellCompleted{
			RunID:      res.RunID,
			KRCode:     res.KRCode,
			Person:     res.Person,
			TaskCount:  res.TaskCount,
			Scores:     res.Totals,
			OccurredAt: time.Now().UTC(),
		})
		if err != nil {
			log.Error("Failed to encode event", zap.Error(err))
			return
		}

		pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := pub.Publish(pubCtx, RoutingCellCompleted, body); err != nil {
			log.Warn("Failed to publish cell event",
				zap.String("kr_code", res.KRCode),
				zap.String("person", res.Person),
				zap.Error(err),
			)
		}
	}
}
