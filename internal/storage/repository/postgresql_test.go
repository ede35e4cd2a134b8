package repository

import (
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"

	"github.com/magabrotheeeer/entitlement-core/internal/storage"
)

func TestMapError(t *testing.T) {
	other := errors.New("boom")

	tests := []struct {
		name string
		in   error
		want error
	}{
		{name: "no rows", in: sql.ErrNoRows, want: storage.ErrNotFound},
		{name: "wrapped no rows", in: fmt.Errorf("scan: %w", sql.ErrNoRows), want: storage.ErrNotFound},
		{name: "unique violation", in: &pgconn.PgError{Code: "23505", ConstraintName: "users_email_unique"}, want: storage.ErrAlreadyExists},
		{name: "other pg error", in: &pgconn.PgError{Code: "23503"}, want: nil},
		{name: "plain error", in: other, want: other},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := mapError(tt.in)
			if tt.want == nil {
				assert.False(t, errors.Is(got, storage.ErrAlreadyExists))
				assert.False(t, errors.Is(got, storage.ErrNotFound))
				return
			}
			assert.True(t, errors.Is(got, tt.want))
		})
	}
}
