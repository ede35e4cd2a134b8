package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgtype"

	"github.com/magabrotheeeer/entitlement-core/internal/models"
	"github.com/magabrotheeeer/entitlement-core/internal/storage"
)

const userColumns = `uid, email, password_hash, role, display_name, preferences,
			      subscription_status, plan_name, subscription_expires_at, created_at`

// CreateUser сохраняет нового пользователя и возвращает его UID.
// При занятом email возвращает storage.ErrAlreadyExists.
func (s *Storage) CreateUser(ctx context.Context, user models.User) (string, error) {
	const op = "storage.CreateUser"
	if err := checkContext(ctx); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	prefs := user.Preferences
	if prefs == nil {
		prefs = []string{}
	}
	var newID string
	query := `INSERT INTO users (email, password_hash, role, display_name, preferences,
			      subscription_status, plan_name, subscription_expires_at)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			  RETURNING uid;`
	if err := s.DB.QueryRowContext(ctx, query,
		user.Email, user.PasswordHash, string(user.Role), user.DisplayName, prefs,
		string(user.Status), user.PlanName, user.ExpiresAt).Scan(&newID); err != nil {
		return "", fmt.Errorf("%s: %w", op, mapError(err))
	}
	return newID, nil
}

// GetUserByEmail возвращает пользователя по email.
func (s *Storage) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	const op = "storage.GetUserByEmail"
	if err := checkContext(ctx); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	u, err := scanUser(s.DB.QueryRowContext(ctx, query, email))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, mapError(err))
	}
	return u, nil
}

// GetUser возвращает пользователя по UID.
func (s *Storage) GetUser(ctx context.Context, userUID string) (*models.User, error) {
	const op = "storage.GetUser"
	if err := checkContext(ctx); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	query := `SELECT ` + userColumns + ` FROM users WHERE uid = $1`
	u, err := scanUser(s.DB.QueryRowContext(ctx, query, userUID))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, mapError(err))
	}
	return u, nil
}

// UpdateEntitlement перезаписывает поля подписки пользователя.
func (s *Storage) UpdateEntitlement(ctx context.Context, userUID string, status models.SubscriptionStatus,
	planName *string, expiresAt *time.Time) error {
	const op = "storage.UpdateEntitlement"
	if err := checkContext(ctx); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	query := `UPDATE users
		      SET subscription_status = $1,
			      plan_name = $2,
			      subscription_expires_at = $3
			  WHERE uid = $4`
	res, err := s.DB.ExecContext(ctx, query, string(status), planName, expiresAt, userUID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, mapError(err))
	}
	return requireAffected(op, res)
}

// ExpireEntitlement переводит подписку в INACTIVE, только если она всё ещё ACTIVE
// и истекла к моменту now. Возвращает true, если строка была изменена этим вызовом.
// План и дата истечения не очищаются.
func (s *Storage) ExpireEntitlement(ctx context.Context, userUID string, now time.Time) (bool, error) {
	const op = "storage.ExpireEntitlement"
	if err := checkContext(ctx); err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}

	query := `UPDATE users
			  SET subscription_status = 'INACTIVE'
		      WHERE uid = $1
			    AND subscription_status = 'ACTIVE'
			    AND (subscription_expires_at IS NULL OR subscription_expires_at < $2)`
	res, err := s.DB.ExecContext(ctx, query, userUID, now)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, mapError(err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return n == 1, nil
}

func scanUser(row *sql.Row) (*models.User, error) {
	var (
		u          models.User
		role       string
		status     string
		planName   sql.NullString
		expiresAt  sql.NullTime
		typeMap    = pgtype.NewMap()
		preference []string
	)
	if err := row.Scan(&u.UUID, &u.Email, &u.PasswordHash, &role, &u.DisplayName,
		typeMap.SQLScanner(&preference), &status, &planName, &expiresAt, &u.CreatedAt); err != nil {
		return nil, err
	}

	r, err := models.ParseRole(role)
	if err != nil {
		return nil, err
	}
	u.Role = r
	u.Status = models.SubscriptionStatus(status)
	u.Preferences = preference
	if planName.Valid {
		u.PlanName = &planName.String
	}
	if expiresAt.Valid {
		t := expiresAt.Time
		u.ExpiresAt = &t
	}
	return &u, nil
}

func requireAffected(op string, res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}
	return nil
}
