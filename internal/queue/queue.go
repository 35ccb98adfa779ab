package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog/log"

	"github.com/bookledger-io/equity-ledger/internal/config"
	"github.com/bookledger-io/equity-ledger/internal/observability/metrics"
)

type EventType string

const (
	StakeConfirmedEventType    EventType = "stake_confirmed"
	StakeUnstakedEventType     EventType = "stake_unstaked"
	StakeDepositExpiredType    EventType = "stake_deposit_expired"
	DividendExecutedEventType  EventType = "dividend_executed"
	WithdrawalSettledEventType EventType = "withdrawal_settled"
)

func (t EventType) String() string {
	return string(t)
}

// StakeEvent notifies downstream consumers of a stake lifecycle change.
type StakeEvent struct {
	EventType EventType `json:"event_type"`
	StakeID   string    `json:"stake_id"`
	UserID    string    `json:"user_id"`
	TokenID   string    `json:"token_id"`
	Amount    int64     `json:"amount"`
}

// DividendEvent notifies of a completed distribution execution.
type DividendEvent struct {
	EventType      EventType `json:"event_type"`
	DistributionID string    `json:"distribution_id"`
	TokenID        string    `json:"token_id"`
	Currency       string    `json:"currency"`
	TotalPaid      int64     `json:"total_paid"`
	PaymentCount   int       `json:"payment_count"`
}

// WithdrawalEvent notifies of a withdrawal reaching a terminal state.
type WithdrawalEvent struct {
	EventType EventType `json:"event_type"`
	RequestID string    `json:"request_id"`
	UserID    string    `json:"user_id"`
	TokenID   string    `json:"token_id"`
	Amount    int64     `json:"amount"`
	Final     string    `json:"final"`
}

type QueueManager struct {
	conn     *amqp.Connection
	channel  *amqp.Channel
	exchange string
}

func NewQueueManager(cfg *config.QueueConfig) (*QueueManager, error) {
	url := fmt.Sprintf("amqp://%s:%s@%s", cfg.User, cfg.Password, cfg.Url)

	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to queue: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("failed to open queue channel: %w", err)
	}

	if err := channel.ExchangeDeclare(
		cfg.Exchange, "topic", true, false, false, false, nil,
	); err != nil {
		return nil, fmt.Errorf("failed to declare exchange: %w", err)
	}

	return &QueueManager{
		conn:     conn,
		channel:  channel,
		exchange: cfg.Exchange,
	}, nil
}

// Publish sends the event to the exchange under the event type as
// routing key. Failures are counted but must not block ledger writes;
// the projection consumers are rebuildable.
func (qm *QueueManager) Publish(ctx context.Context, eventType EventType, event any) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}

	err = qm.channel.PublishWithContext(ctx,
		qm.exchange,
		eventType.String(),
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now().UTC(),
			Body:         body,
		},
	)
	if err != nil {
		metrics.IncQueueSendError()
		return fmt.Errorf("failed to publish %s event: %w", eventType, err)
	}
	return nil
}

// Shutdown gracefully stops the interaction with the queue, ensuring all
// resources are properly released.
func (qm *QueueManager) Shutdown() {
	log.Info().Msg("Shutting down queue manager")

	if err := qm.channel.Close(); err != nil {
		log.Error().Err(err).Msg("failed to close queue channel")
	}
	if err := qm.conn.Close(); err != nil {
		log.Error().Err(err).Msg("failed to close queue connection")
	}
}
