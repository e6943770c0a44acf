package audit

import (
	"time"

	"github.com/ruralpay/cartable/internal/logging"
	"github.com/ruralpay/cartable/internal/models"
	"go.uber.org/zap"
)

const (
	EventDecision   = "ORDER_DECISION"
	EventTransition = "ORDER_TRANSITION"
	EventOTP        = "OTP"
	EventRegistry   = "REGISTRY"
	EventBank       = "BANK"
	EventError      = "ERROR"
)

type Event struct {
	Timestamp time.Time         `json:"timestamp"`
	EventType string            `json:"event_type"`
	OrderID   string            `json:"order_id,omitempty"`
	AccountID string            `json:"account_id,omitempty"`
	Actor     string            `json:"actor"`
	Status    string            `json:"status"`
	Details   map[string]string `json:"details,omitempty"`
}

// Logger writes audit events to a dedicated named logger so they can be routed separately.
type Logger struct {
	log *logging.Logger
	now func() time.Time
}

func NewLogger(l *logging.Logger) *Logger {
	return &Logger{log: l.Named("audit"), now: time.Now}
}

func (a *Logger) Decision(order *models.PaymentOrder, actor string, decision models.Decision, comment string) {
	a.emit(Event{
		EventType: EventDecision,
		OrderID:   order.ID,
		AccountID: order.AccountID,
		Actor:     actor,
		Status:    string(decision),
		Details:   map[string]string{"comment": comment, "order_status": string(order.Status)},
	})
}

func (a *Logger) Transition(order *models.PaymentOrder, actor string, from, to models.OrderStatus, reason string) {
	a.emit(Event{
		EventType: EventTransition,
		OrderID:   order.ID,
		AccountID: order.AccountID,
		Actor:     actor,
		Status:    string(to),
		Details:   map[string]string{"from": string(from), "reason": reason},
	})
}

func (a *Logger) OTP(actor, handle, action, result string) {
	a.emit(Event{
		EventType: EventOTP,
		Actor:     actor,
		Status:    result,
		Details:   map[string]string{"handle": handle, "action": action},
	})
}

func (a *Logger) Registry(actor, accountID, operation string, details map[string]string) {
	a.emit(Event{
		EventType: EventRegistry,
		AccountID: accountID,
		Actor:     actor,
		Status:    operation,
		Details:   details,
	})
}

func (a *Logger) Bank(order *models.PaymentOrder, actor, messageID, result string) {
	a.emit(Event{
		EventType: EventBank,
		OrderID:   order.ID,
		AccountID: order.AccountID,
		Actor:     actor,
		Status:    result,
		Details:   map[string]string{"message_id": messageID, "amount": order.Amount.String(), "currency": order.Currency},
	})
}

func (a *Logger) Error(orderID, actor, operation string, err error) {
	a.emit(Event{
		EventType: EventError,
		OrderID:   orderID,
		Actor:     actor,
		Status:    "FAILED",
		Details:   map[string]string{"operation": operation, "error": err.Error()},
	})
}

func (a *Logger) emit(event Event) {
	event.Timestamp = a.now()
	fields := []zap.Field{
		zap.String("event_type", event.EventType),
		zap.String("actor", event.Actor),
		zap.String("status", event.Status),
		zap.Time("timestamp", event.Timestamp),
	}
	if event.OrderID != "" {
		fields = append(fields, zap.String("order_id", event.OrderID))
	}
	if event.AccountID != "" {
		fields = append(fields, zap.String("account_id", event.AccountID))
	}
	if len(event.Details) > 0 {
		fields = append(fields, zap.Any("details", event.Details))
	}
	a.log.Info("audit", fields...)
}
