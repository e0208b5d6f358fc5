package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/rabbitmq/amqp091-go"

	"github.com/Ananth-NQI/gastos-backend/internal/models"
)

// RoutingKeyExpenseRecorded is used for every persisted expense
const RoutingKeyExpenseRecorded = "expense.recorded"

// ExpenseRecorded is the event body announced after an insert
type ExpenseRecorded struct {
	Key          string    `json:"key"`
	User         string    `json:"user"`
	Amount       string    `json:"amount"`
	Currency     string    `json:"currency"`
	Method       string    `json:"method"`
	TimestampUTC time.Time `json:"timestamp_utc"`
}

// NewExpenseRecorded builds the event for e
func NewExpenseRecorded(e *models.Expense) ExpenseRecorded {
	return ExpenseRecorded{
		Key:          e.Key,
		User:         e.OriginUserID,
		Amount:       e.Amount.StringFixed(2),
		Currency:     e.Currency,
		Method:       e.Method.String(),
		TimestampUTC: e.OccurredAt.UTC(),
	}
}

// Publisher announces expenses on a durable topic exchange
type Publisher struct {
	conn         *amqp091.Connection
	channel      *amqp091.Channel
	exchangeName string

	// amqp091 channels are not safe for concurrent publishing
	mu sync.Mutex
}

// NewPublisher dials the broker and declares the exchange
func NewPublisher(url, exchangeName string) (*Publisher, error) {
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial AMQP: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	err = channel.ExchangeDeclare(
		exchangeName, // name
		"topic",      // type
		true,         // durable
		false,        // auto-deleted
		false,        // internal
		false,        // no-wait
		nil,          // arguments
	)
	if err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}

	return &Publisher{conn: conn, channel: channel, exchangeName: exchangeName}, nil
}

// PublishExpenseRecorded publishes the expense.recorded event
func (p *Publisher) PublishExpenseRecorded(ctx context.Context, e *models.Expense) error {
	body, err := json.Marshal(NewExpenseRecorded(e))
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	p.mu.Lock()
	defer p.mu.Unlock()

	err = p.channel.PublishWithContext(
		ctx,
		p.exchangeName,            // exchange
		RoutingKeyExpenseRecorded, // routing key
		false,                     // mandatory
		false,                     // immediate
		amqp091.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp091.Persistent,
			MessageId:    e.Key,
			Timestamp:    time.Now(),
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("publish message: %w", err)
	}

	slog.DebugContext(ctx, "published expense event", "key", e.Key, "exchange", p.exchangeName)
	return nil
}

// Close closes the channel and the connection
func (p *Publisher) Close() error {
	var firstErr error
	if p.channel != nil {
		if err := p.channel.Close(); err != nil {
			firstErr = err
		}
	}
	if p.conn != nil {
		if err := p.conn.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
