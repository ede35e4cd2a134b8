package repository

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/entitlement-core/internal/lib/pgtest"
	"github.com/magabrotheeeer/entitlement-core/internal/migrations"
	"github.com/magabrotheeeer/entitlement-core/internal/models"
	"github.com/magabrotheeeer/entitlement-core/internal/storage"
)

func setupTestDatabase(t *testing.T) *Storage {
	t.Helper()
	dsn := pgtest.Start(t)

	s, err := New(context.Background(), dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	require.NoError(t, migrations.Run(s.DB))
	return s
}

func newUser(email string) models.User {
	return models.User{
		Email:        email,
		PasswordHash: "$2a$10$hash",
		Role:         models.RoleUser,
		DisplayName:  "Tester",
		Preferences:  []string{"drama", "sci-fi"},
		Status:       models.StatusInactive,
	}
}

func TestStorage_Users(t *testing.T) {
	s := setupTestDatabase(t)
	ctx := context.Background()

	uid, err := s.CreateUser(ctx, newUser("a@x.com"))
	require.NoError(t, err)
	require.NotEmpty(t, uid)

	t.Run("duplicate email", func(t *testing.T) {
		_, err := s.CreateUser(ctx, newUser("a@x.com"))
		require.Error(t, err)
		assert.True(t, errors.Is(err, storage.ErrAlreadyExists))
	})

	t.Run("get by email and uid", func(t *testing.T) {
		byEmail, err := s.GetUserByEmail(ctx, "a@x.com")
		require.NoError(t, err)
		assert.Equal(t, uid, byEmail.UUID)
		assert.Equal(t, models.RoleUser, byEmail.Role)
		assert.Equal(t, models.StatusInactive, byEmail.Status)
		assert.Equal(t, []string{"drama", "sci-fi"}, byEmail.Preferences)
		assert.Nil(t, byEmail.PlanName)
		assert.Nil(t, byEmail.ExpiresAt)

		byUID, err := s.GetUser(ctx, uid)
		require.NoError(t, err)
		assert.Equal(t, byEmail.Email, byUID.Email)
	})

	t.Run("not found", func(t *testing.T) {
		_, err := s.GetUserByEmail(ctx, "absent@x.com")
		assert.True(t, errors.Is(err, storage.ErrNotFound))
	})

	t.Run("cancelled context", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		_, err := s.GetUserByEmail(cctx, "a@x.com")
		assert.True(t, errors.Is(err, context.Canceled))
	})
}

func TestStorage_Entitlement(t *testing.T) {
	s := setupTestDatabase(t)
	ctx := context.Background()

	uid, err := s.CreateUser(ctx, newUser("sub@x.com"))
	require.NoError(t, err)

	plan := "PREMIUM"
	expires := time.Now().Add(-time.Hour).UTC().Truncate(time.Microsecond)
	require.NoError(t, s.UpdateEntitlement(ctx, uid, models.StatusActive, &plan, &expires))

	u, err := s.GetUser(ctx, uid)
	require.NoError(t, err)
	assert.Equal(t, models.StatusActive, u.Status)
	require.NotNil(t, u.PlanName)
	assert.Equal(t, plan, *u.PlanName)
	require.NotNil(t, u.ExpiresAt)
	assert.True(t, expires.Equal(*u.ExpiresAt))

	flipped, err := s.ExpireEntitlement(ctx, uid, time.Now())
	require.NoError(t, err)
	assert.True(t, flipped)

	flipped, err = s.ExpireEntitlement(ctx, uid, time.Now())
	require.NoError(t, err)
	assert.False(t, flipped, "second flip is a no-op")

	u, err = s.GetUser(ctx, uid)
	require.NoError(t, err)
	assert.Equal(t, models.StatusInactive, u.Status)
	assert.NotNil(t, u.PlanName, "plan kept as history")
	assert.NotNil(t, u.ExpiresAt, "expiry kept as history")

	t.Run("flip skips renewed subscription", func(t *testing.T) {
		future := time.Now().Add(24 * time.Hour)
		require.NoError(t, s.UpdateEntitlement(ctx, uid, models.StatusActive, &plan, &future))

		flipped, err := s.ExpireEntitlement(ctx, uid, time.Now())
		require.NoError(t, err)
		assert.False(t, flipped)
	})

	t.Run("update unknown user", func(t *testing.T) {
		err := s.UpdateEntitlement(ctx, "00000000-0000-0000-0000-000000000000", models.StatusInactive, nil, nil)
		assert.True(t, errors.Is(err, storage.ErrNotFound))
	})
}

func TestStorage_Progress(t *testing.T) {
	s := setupTestDatabase(t)
	ctx := context.Background()

	uid, err := s.CreateUser(ctx, newUser("watch@x.com"))
	require.NoError(t, err)

	_, err = s.FindProgress(ctx, uid, "movie-1")
	require.True(t, errors.Is(err, storage.ErrNotFound))

	now := time.Now().UTC().Truncate(time.Microsecond)
	p := models.Progress{UserUID: uid, ContentID: "movie-1", Offset: 42, UpdatedAt: now}
	require.NoError(t, s.InsertProgress(ctx, p))

	err = s.InsertProgress(ctx, p)
	require.True(t, errors.Is(err, storage.ErrAlreadyExists))

	p.Offset = 100
	p.UpdatedAt = now.Add(time.Second)
	require.NoError(t, s.UpdateProgress(ctx, p))

	got, err := s.FindProgress(ctx, uid, "movie-1")
	require.NoError(t, err)
	assert.Equal(t, 100, got.Offset)

	err = s.UpdateProgress(ctx, models.Progress{UserUID: uid, ContentID: "absent", Offset: 1, UpdatedAt: now})
	assert.True(t, errors.Is(err, storage.ErrNotFound))

	require.NoError(t, s.InsertProgress(ctx, models.Progress{UserUID: uid, ContentID: "movie-2", Offset: 5, UpdatedAt: now.Add(time.Minute)}))
	list, err := s.ListProgress(ctx, uid, 10, 0)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "movie-2", list[0].ContentID)

	long := models.Progress{UserUID: uid, ContentID: "stream-24x7", Offset: 1 << 40, UpdatedAt: now}
	require.NoError(t, s.InsertProgress(ctx, long))
	got, err = s.FindProgress(ctx, uid, "stream-24x7")
	require.NoError(t, err)
	assert.Equal(t, 1<<40, got.Offset)
}

func TestStorage_ConcurrentFirstWriteIsRejected(t *testing.T) {
	s := setupTestDatabase(t)
	ctx := context.Background()

	uid, err := s.CreateUser(ctx, newUser("race@x.com"))
	require.NoError(t, err)

	const writers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		conflicts int
	)
	for i := range writers {
		wg.Add(1)
		go func(offset int) {
			defer wg.Done()
			err := s.InsertProgress(ctx, models.Progress{UserUID: uid, ContentID: "movie", Offset: offset, UpdatedAt: time.Now()})
			if errors.Is(err, storage.ErrAlreadyExists) {
				mu.Lock()
				conflicts++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, writers-1, conflicts)
	var count int
	require.NoError(t, s.DB.QueryRow(`SELECT COUNT(*) FROM progress WHERE user_uid = $1`, uid).Scan(&count))
	assert.Equal(t, 1, count)
}
