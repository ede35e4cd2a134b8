// Package payment обрабатывает сигналы платёжного провайдера:
// успешная оплата активирует подписку пользователя.
package payment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/magabrotheeeer/entitlement-core/internal/lib/sl"
	"github.com/magabrotheeeer/entitlement-core/internal/models"
	"github.com/magabrotheeeer/entitlement-core/internal/services/auth"
)

// EventPaymentSucceeded - единственное событие, меняющее состояние подписки.
const EventPaymentSucceeded = "payment.succeeded"

// Исходы обработки события.
const (
	OutcomeActivated = "activated"
	OutcomeDuplicate = "duplicate"
	OutcomeIgnored   = "ignored"
)

// ErrInvalidEvent возвращается, если в событии нет обязательных полей.
var ErrInvalidEvent = errors.New("invalid payment event")

// Activator активирует подписку.
type Activator interface {
	Activate(ctx context.Context, identifier, planName string) (*models.User, error)
}

// Deduper ставит одноразовые маркеры обработанных платежей.
type Deduper interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Invalidate(ctx context.Context, key string) error
}

// Event - нормализованное событие провайдера.
type Event struct {
	Type       string
	PaymentID  string
	Status     string
	Identifier string
	PlanName   string
}

// Service обрабатывает платёжные события.
type Service struct {
	activator Activator
	deduper   Deduper
	dedupTTL  time.Duration
	log       *slog.Logger
}

// New создаёт новый экземпляр Service. deduper может быть nil,
// тогда повторные доставки одного платежа активируют подписку повторно.
func New(log *slog.Logger, activator Activator, deduper Deduper, dedupTTL time.Duration) *Service {
	return &Service{
		activator: activator,
		deduper:   deduper,
		dedupTTL:  dedupTTL,
		log:       log,
	}
}

// ProcessWebhookEvent применяет событие и возвращает исход обработки.
func (s *Service) ProcessWebhookEvent(ctx context.Context, event Event) (string, error) {
	const op = "payment.ProcessWebhookEvent"
	log := s.log.With(slog.String("op", op), slog.String("payment_id", event.PaymentID))

	if !strings.EqualFold(event.Type, EventPaymentSucceeded) {
		log.Info("ignored payment event", slog.String("event", event.Type))
		return OutcomeIgnored, nil
	}
	event.Identifier = auth.NormalizeIdentifier(event.Identifier)
	event.PlanName = strings.TrimSpace(event.PlanName)
	if event.PaymentID == "" || event.Identifier == "" || event.PlanName == "" {
		return "", fmt.Errorf("%s: %w", op, ErrInvalidEvent)
	}

	key := "payment:processed:" + event.PaymentID
	if s.deduper != nil {
		ok, err := s.deduper.Acquire(ctx, key, s.dedupTTL)
		if err != nil {
			return "", fmt.Errorf("%s: %w", op, err)
		}
		if !ok {
			log.Info("duplicate payment delivery skipped")
			return OutcomeDuplicate, nil
		}
	}

	if _, err := s.activator.Activate(ctx, event.Identifier, event.PlanName); err != nil {
		if s.deduper != nil {
			// снимаем маркер, чтобы повторная доставка могла пройти
			if derr := s.deduper.Invalidate(context.WithoutCancel(ctx), key); derr != nil {
				log.Error("failed to release payment marker", sl.Err(derr))
			}
		}
		if errors.Is(err, models.ErrRecordNotFound) {
			log.Error("payment for unknown account", sl.Err(err))
			return OutcomeIgnored, nil
		}
		return "", fmt.Errorf("%s: %w", op, err)
	}

	log.Info("payment applied", slog.String("plan_name", event.PlanName))
	return OutcomeActivated, nil
}
