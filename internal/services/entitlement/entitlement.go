// Package entitlement реализует машину состояний подписки ACTIVE/INACTIVE
// с ленивым истечением: статус пересчитывается при каждом чтении, фоновых задач нет.
package entitlement

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/magabrotheeeer/entitlement-core/internal/lib/sl"
	"github.com/magabrotheeeer/entitlement-core/internal/metrics"
	"github.com/magabrotheeeer/entitlement-core/internal/models"
	"github.com/magabrotheeeer/entitlement-core/internal/storage"
)

// DefaultPeriod - срок действия подписки после активации.
const DefaultPeriod = 30 * 24 * time.Hour

// Repository описывает операции хранилища, нужные машине состояний.
type Repository interface {
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	UpdateEntitlement(ctx context.Context, userUID string, status models.SubscriptionStatus,
		planName *string, expiresAt *time.Time) error
	// ExpireEntitlement переводит запись в INACTIVE, только если она всё ещё ACTIVE
	// и истекла на момент now. Возвращает true, если переход выполнен этим вызовом.
	ExpireEntitlement(ctx context.Context, userUID string, now time.Time) (bool, error)
}

// Notifier доставляет события о смене состояния подписки.
type Notifier interface {
	Notify(ctx context.Context, event models.EntitlementEvent) error
}

// Service управляет подпиской пользователя.
type Service struct {
	repo     Repository
	notifier Notifier
	log      *slog.Logger
	period   time.Duration
	now      func() time.Time
}

// Option настраивает Service.
type Option func(*Service)

// WithClock подменяет источник времени.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// WithPeriod задаёт срок действия подписки.
func WithPeriod(period time.Duration) Option {
	return func(s *Service) {
		if period > 0 {
			s.period = period
		}
	}
}

// WithNotifier подключает публикацию событий. Без него события не отправляются.
func WithNotifier(n Notifier) Option {
	return func(s *Service) {
		s.notifier = n
	}
}

// NewService создаёт новый экземпляр Service.
func NewService(repo Repository, log *slog.Logger, opts ...Option) *Service {
	s := &Service{
		repo:   repo,
		log:    log,
		period: DefaultPeriod,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Activate безусловно делает подписку активной до now + period.
// Сроки не суммируются: повторная активация отсчитывает период заново.
func (s *Service) Activate(ctx context.Context, identifier, planName string) (*models.User, error) {
	const op = "entitlement.Activate"

	plan := strings.TrimSpace(planName)
	if plan == "" {
		return nil, fmt.Errorf("%s: %w", op, models.ErrInvalidPlan)
	}

	user, err := s.lookup(ctx, identifier)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	expiresAt := s.now().UTC().Add(s.period)
	if err := s.repo.UpdateEntitlement(ctx, user.UUID, models.StatusActive, &plan, &expiresAt); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("%s: %w", op, models.ErrRecordNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	user.Status = models.StatusActive
	user.PlanName = &plan
	user.ExpiresAt = &expiresAt

	metrics.EntitlementTransitions.WithLabelValues(metrics.TransitionActivated).Inc()
	s.log.Info("entitlement activated",
		slog.String("user_uid", user.UUID),
		slog.String("plan_name", plan),
		slog.Time("expires_at", expiresAt),
	)
	s.publish(ctx, models.EventActivated, user)
	return user, nil
}

// Check возвращает пользователя с актуальным статусом подписки.
// Истёкшая активная подписка сначала переводится в INACTIVE в хранилище.
func (s *Service) Check(ctx context.Context, identifier string) (*models.User, error) {
	const op = "entitlement.Check"

	user, err := s.lookup(ctx, identifier)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	now := s.now().UTC()
	if !user.Expired(now) {
		return user, nil
	}

	flipped, err := s.repo.ExpireEntitlement(ctx, user.UUID, now)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if !flipped {
		// запись изменилась между чтением и переходом
		fresh, err := s.lookup(ctx, identifier)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		if !fresh.Expired(now) {
			return fresh, nil
		}
		user = fresh
	}

	user.Status = models.StatusInactive
	if flipped {
		metrics.EntitlementTransitions.WithLabelValues(metrics.TransitionExpired).Inc()
		s.log.Info("entitlement expired", slog.String("user_uid", user.UUID))
		s.publish(ctx, models.EventExpired, user)
	}
	return user, nil
}

// IsActive сообщает, даёт ли подписка доступ к премиальному контенту прямо сейчас.
func (s *Service) IsActive(ctx context.Context, identifier string) (bool, error) {
	user, err := s.Check(ctx, identifier)
	if err != nil {
		return false, err
	}
	return user.Status == models.StatusActive, nil
}

func (s *Service) lookup(ctx context.Context, identifier string) (*models.User, error) {
	user, err := s.repo.GetUserByEmail(ctx, identifier)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, models.ErrRecordNotFound
		}
		return nil, err
	}
	return user, nil
}

func (s *Service) publish(ctx context.Context, kind models.EntitlementEventType, user *models.User) {
	if s.notifier == nil {
		return
	}
	event := models.EntitlementEvent{
		Type:       kind,
		UserUID:    user.UUID,
		Identifier: user.Email,
		PlanName:   user.PlanName,
		ExpiresAt:  user.ExpiresAt,
		OccurredAt: s.now().UTC(),
	}
	if err := s.notifier.Notify(ctx, event); err != nil {
		s.log.Error("failed to publish entitlement event",
			slog.String("type", string(kind)),
			slog.String("user_uid", user.UUID),
			sl.Err(err),
		)
	}
}
