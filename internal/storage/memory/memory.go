// Package memory реализует хранилище учётных записей и прогресса в памяти процесса.
// Семантика ошибок совпадает с PostgreSQL-реализацией.
package memory

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/magabrotheeeer/entitlement-core/internal/models"
	"github.com/magabrotheeeer/entitlement-core/internal/storage"
)

type progressKey struct {
	userUID   string
	contentID string
}

// Storage хранит записи в map под мьютексом. Наружу отдаются копии.
type Storage struct {
	mu       sync.RWMutex
	users    map[string]*models.User // uid -> user
	byEmail  map[string]string       // email -> uid
	progress map[progressKey]models.Progress
}

// New создаёт пустое хранилище.
func New() *Storage {
	return &Storage{
		users:    make(map[string]*models.User),
		byEmail:  make(map[string]string),
		progress: make(map[progressKey]models.Progress),
	}
}

// CreateUser сохраняет пользователя и возвращает сгенерированный UID.
func (s *Storage) CreateUser(ctx context.Context, user models.User) (string, error) {
	const op = "memory.CreateUser"
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byEmail[user.Email]; ok {
		return "", fmt.Errorf("%s: %w", op, storage.ErrAlreadyExists)
	}
	u := cloneUser(&user)
	u.UUID = uuid.NewString()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	s.users[u.UUID] = u
	s.byEmail[u.Email] = u.UUID
	return u.UUID, nil
}

// GetUserByEmail возвращает копию пользователя по email.
func (s *Storage) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	const op = "memory.GetUserByEmail"
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	uid, ok := s.byEmail[email]
	if !ok {
		return nil, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}
	return cloneUser(s.users[uid]), nil
}

// GetUser возвращает копию пользователя по UID.
func (s *Storage) GetUser(ctx context.Context, userUID string) (*models.User, error) {
	const op = "memory.GetUser"
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[userUID]
	if !ok {
		return nil, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}
	return cloneUser(u), nil
}

// UpdateEntitlement перезаписывает поля подписки.
func (s *Storage) UpdateEntitlement(ctx context.Context, userUID string, status models.SubscriptionStatus,
	planName *string, expiresAt *time.Time) error {
	const op = "memory.UpdateEntitlement"
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[userUID]
	if !ok {
		return fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}
	u.Status = status
	u.PlanName = cloneString(planName)
	u.ExpiresAt = cloneTime(expiresAt)
	return nil
}

// ExpireEntitlement переводит подписку в INACTIVE, если она всё ещё ACTIVE и истекла.
func (s *Storage) ExpireEntitlement(ctx context.Context, userUID string, now time.Time) (bool, error) {
	const op = "memory.ExpireEntitlement"
	if err := ctx.Err(); err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[userUID]
	if !ok {
		return false, nil
	}
	if !u.Expired(now) {
		return false, nil
	}
	u.Status = models.StatusInactive
	return true, nil
}

// SetExpiry меняет дату истечения подписки напрямую, минуя бизнес-логику.
// Используется для подготовки данных в тестах.
func (s *Storage) SetExpiry(userUID string, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[userUID]
	if !ok {
		return storage.ErrNotFound
	}
	u.ExpiresAt = &expiresAt
	return nil
}

// SetRole меняет роль пользователя напрямую, используется для подготовки данных.
func (s *Storage) SetRole(userUID string, role models.Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[userUID]
	if !ok {
		return storage.ErrNotFound
	}
	u.Role = role
	return nil
}

// DeleteUser удаляет пользователя вместе с его прогрессом.
func (s *Storage) DeleteUser(userUID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if u, ok := s.users[userUID]; ok {
		delete(s.byEmail, u.Email)
		delete(s.users, userUID)
	}
	for k := range s.progress {
		if k.userUID == userUID {
			delete(s.progress, k)
		}
	}
}

// FindProgress возвращает запись прогресса по ключу.
func (s *Storage) FindProgress(ctx context.Context, userUID, contentID string) (*models.Progress, error) {
	const op = "memory.FindProgress"
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.progress[progressKey{userUID, contentID}]
	if !ok {
		return nil, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}
	return &p, nil
}

// InsertProgress вставляет запись, занятый ключ даёт storage.ErrAlreadyExists.
func (s *Storage) InsertProgress(ctx context.Context, p models.Progress) error {
	const op = "memory.InsertProgress"
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[p.UserUID]; !ok {
		return fmt.Errorf("%s: unknown user: %w", op, storage.ErrNotFound)
	}
	key := progressKey{p.UserUID, p.ContentID}
	if _, ok := s.progress[key]; ok {
		return fmt.Errorf("%s: %w", op, storage.ErrAlreadyExists)
	}
	s.progress[key] = p
	return nil
}

// UpdateProgress перезаписывает существующую запись.
func (s *Storage) UpdateProgress(ctx context.Context, p models.Progress) error {
	const op = "memory.UpdateProgress"
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := progressKey{p.UserUID, p.ContentID}
	if _, ok := s.progress[key]; !ok {
		return fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}
	s.progress[key] = p
	return nil
}

// ListProgress возвращает записи пользователя, начиная с последних обновлённых.
func (s *Storage) ListProgress(ctx context.Context, userUID string, limit, offset int) ([]*models.Progress, error) {
	const op = "memory.ListProgress"
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s.mu.RLock()
	all := make([]*models.Progress, 0)
	for k, p := range s.progress {
		if k.userUID == userUID {
			all = append(all, &p)
		}
	}
	s.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool {
		if !all[i].UpdatedAt.Equal(all[j].UpdatedAt) {
			return all[i].UpdatedAt.After(all[j].UpdatedAt)
		}
		return all[i].ContentID < all[j].ContentID
	})
	if offset >= len(all) {
		return []*models.Progress{}, nil
	}
	end := min(offset+limit, len(all))
	return all[offset:end], nil
}

func cloneUser(u *models.User) *models.User {
	c := *u
	c.Preferences = slices.Clone(u.Preferences)
	c.PlanName = cloneString(u.PlanName)
	c.ExpiresAt = cloneTime(u.ExpiresAt)
	return &c
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
