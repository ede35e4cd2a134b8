// Package progress реализует запись позиции просмотра по схеме find-or-create.
package progress

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/entitlement-core/internal/lib/sl"
	"github.com/magabrotheeeer/entitlement-core/internal/metrics"
	"github.com/magabrotheeeer/entitlement-core/internal/models"
	"github.com/magabrotheeeer/entitlement-core/internal/storage"
)

// Repository описывает хранилище прогресса.
type Repository interface {
	FindProgress(ctx context.Context, userUID, contentID string) (*models.Progress, error)
	InsertProgress(ctx context.Context, p models.Progress) error
	UpdateProgress(ctx context.Context, p models.Progress) error
	ListProgress(ctx context.Context, userUID string, limit, offset int) ([]*models.Progress, error)
}

// Debouncer выдаёт маркер на интервал; false означает, что маркер уже занят.
// Invalidate снимает маркер, если запись не удалась.
type Debouncer interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Invalidate(ctx context.Context, key string) error
}

// SaveResult - итог записи прогресса.
type SaveResult struct {
	Progress  models.Progress `json:"progress"`
	Persisted bool            `json:"persisted"`
}

// Service управляет прогрессом просмотра.
type Service struct {
	repo      Repository
	debouncer Debouncer
	debounce  time.Duration
	log       *slog.Logger
	now       func() time.Time
}

// Option настраивает Service.
type Option func(*Service)

// WithDebounce включает пропуск записей, пришедших чаще interval для одного ключа.
func WithDebounce(d Debouncer, interval time.Duration) Option {
	return func(s *Service) {
		s.debouncer = d
		s.debounce = interval
	}
}

// WithClock подменяет источник времени.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// NewService создаёт новый экземпляр Service.
func NewService(repo Repository, log *slog.Logger, opts ...Option) *Service {
	s := &Service{
		repo: repo,
		log:  log,
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Save записывает позицию: существующая запись обновляется на месте, иначе создаётся новая.
// Одновременная первая запись по тому же ключу возвращает models.ErrWriteConflict.
func (s *Service) Save(ctx context.Context, principal models.Principal, contentID string, offset int) (*SaveResult, error) {
	const op = "progress.Save"

	p := models.Progress{
		UserUID:   principal.ID,
		ContentID: contentID,
		Offset:    offset,
		UpdatedAt: s.now().UTC(),
	}

	key := debounceKey(principal.ID, contentID)
	held := false
	if s.debouncer != nil && s.debounce > 0 {
		ok, err := s.debouncer.Acquire(ctx, key, s.debounce)
		switch {
		case err != nil:
			// без кэша пишем в хранилище напрямую
			s.log.Warn("progress debounce unavailable", slog.String("op", op), sl.Err(err))
		case !ok:
			metrics.ProgressWrites.WithLabelValues(metrics.ProgressDebounced).Inc()
			return &SaveResult{Progress: p, Persisted: false}, nil
		default:
			held = true
		}
	}

	if err := s.write(ctx, p); err != nil {
		if held {
			// маркер снимается, чтобы повтор после ошибки дошёл до хранилища
			if relErr := s.debouncer.Invalidate(context.WithoutCancel(ctx), key); relErr != nil {
				s.log.Warn("failed to release progress debounce marker", slog.String("op", op), sl.Err(relErr))
			}
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &SaveResult{Progress: p, Persisted: true}, nil
}

func (s *Service) write(ctx context.Context, p models.Progress) error {
	_, err := s.repo.FindProgress(ctx, p.UserUID, p.ContentID)
	switch {
	case err == nil:
		if err := s.repo.UpdateProgress(ctx, p); err != nil {
			return err
		}
		metrics.ProgressWrites.WithLabelValues(metrics.ProgressUpdated).Inc()
	case errors.Is(err, storage.ErrNotFound):
		if err := s.repo.InsertProgress(ctx, p); err != nil {
			if errors.Is(err, storage.ErrAlreadyExists) {
				metrics.ProgressWrites.WithLabelValues(metrics.ProgressConflict).Inc()
				return models.ErrWriteConflict
			}
			return err
		}
		metrics.ProgressWrites.WithLabelValues(metrics.ProgressInserted).Inc()
	default:
		return err
	}
	return nil
}

// Get возвращает прогресс по контенту или models.ErrRecordNotFound.
func (s *Service) Get(ctx context.Context, principal models.Principal, contentID string) (*models.Progress, error) {
	const op = "progress.Get"

	p, err := s.repo.FindProgress(ctx, principal.ID, contentID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("%s: %w", op, models.ErrRecordNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return p, nil
}

// List возвращает прогресс пользователя, начиная с последних изменений.
func (s *Service) List(ctx context.Context, principal models.Principal, limit, offset int) ([]*models.Progress, error) {
	const op = "progress.List"

	items, err := s.repo.ListProgress(ctx, principal.ID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return items, nil
}

func debounceKey(userUID, contentID string) string {
	return "progress:debounce:" + userUID + ":" + contentID
}
