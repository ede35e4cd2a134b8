package repository

import (
	"context"
	"fmt"

	"github.com/magabrotheeeer/entitlement-core/internal/models"
)

// FindProgress возвращает запись прогресса по точному ключу (userUID, contentID).
func (s *Storage) FindProgress(ctx context.Context, userUID, contentID string) (*models.Progress, error) {
	const op = "storage.FindProgress"
	if err := checkContext(ctx); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	query := `SELECT user_uid, content_id, position, updated_at
			  FROM progress
			  WHERE user_uid = $1 AND content_id = $2`
	var p models.Progress
	if err := s.DB.QueryRowContext(ctx, query, userUID, contentID).
		Scan(&p.UserUID, &p.ContentID, &p.Offset, &p.UpdatedAt); err != nil {
		return nil, fmt.Errorf("%s: %w", op, mapError(err))
	}
	return &p, nil
}

// InsertProgress вставляет новую запись. Если запись с таким ключом уже есть
// (параллельная первая запись), возвращает storage.ErrAlreadyExists.
func (s *Storage) InsertProgress(ctx context.Context, p models.Progress) error {
	const op = "storage.InsertProgress"
	if err := checkContext(ctx); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	query := `INSERT INTO progress (user_uid, content_id, position, updated_at)
			  VALUES ($1, $2, $3, $4)`
	if _, err := s.DB.ExecContext(ctx, query, p.UserUID, p.ContentID, p.Offset, p.UpdatedAt); err != nil {
		return fmt.Errorf("%s: %w", op, mapError(err))
	}
	return nil
}

// UpdateProgress перезаписывает позицию и время обновления существующей записи.
func (s *Storage) UpdateProgress(ctx context.Context, p models.Progress) error {
	const op = "storage.UpdateProgress"
	if err := checkContext(ctx); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	query := `UPDATE progress
			  SET position = $1, updated_at = $2
			  WHERE user_uid = $3 AND content_id = $4`
	res, err := s.DB.ExecContext(ctx, query, p.Offset, p.UpdatedAt, p.UserUID, p.ContentID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, mapError(err))
	}
	return requireAffected(op, res)
}

// ListProgress возвращает записи пользователя, начиная с последних обновлённых.
func (s *Storage) ListProgress(ctx context.Context, userUID string, limit, offset int) ([]*models.Progress, error) {
	const op = "storage.ListProgress"
	if err := checkContext(ctx); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	query := `SELECT user_uid, content_id, position, updated_at
			  FROM progress
			  WHERE user_uid = $1
			  ORDER BY updated_at DESC, content_id
			  LIMIT $2 OFFSET $3`
	rows, err := s.DB.QueryContext(ctx, query, userUID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	result := make([]*models.Progress, 0, limit)
	for rows.Next() {
		var p models.Progress
		if err = rows.Scan(&p.UserUID, &p.ContentID, &p.Offset, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, &p)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}
