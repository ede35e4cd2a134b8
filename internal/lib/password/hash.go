// Package password реализует функции для безопасного хеширования и проверки паролей.
//
// GetHash создаёт bcrypt-хеш пароля для хранения, CompareHash сверяет пароль с хешем.
// Это единственное место, где сырой пароль сравнивается с сохранённым значением.
package password

import (
	"errors"
	"fmt"
	"sync"

	"golang.org/x/crypto/bcrypt"
)

// MaxBytes - предел длины пароля для bcrypt в байтах, а не в символах.
const MaxBytes = 72

var (
	// ErrMismatch возвращается, когда пароль не соответствует хешу.
	ErrMismatch = errors.New("password mismatch")
	// ErrTooLong возвращается для пароля длиннее MaxBytes байт.
	ErrTooLong = errors.New("password exceeds 72 bytes")
)

// GetHash принимает пароль пользователя и возвращает его bcrypt-хэш.
func GetHash(password string) (string, error) {
	return GetHashWithCost(password, bcrypt.DefaultCost)
}

// GetHashWithCost работает как GetHash, но с явной стоимостью bcrypt.
func GetHashWithCost(password string, cost int) (string, error) {
	const op = "password.GetHash"
	if len(password) > MaxBytes {
		return "", fmt.Errorf("%s: %w", op, ErrTooLong)
	}
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return string(hashedPassword), nil
}

// CompareHash сравнивает bcrypt-хэш с введённым паролем.
//
// Возвращает nil при совпадении, ErrMismatch при несовпадении
// и обёрнутую ошибку bcrypt, если хэш повреждён.
func CompareHash(originalHash, externalPassword string) error {
	const op = "password.CompareHash"
	err := bcrypt.CompareHashAndPassword([]byte(originalHash), []byte(externalPassword))
	switch {
	case err == nil:
		return nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return fmt.Errorf("%s: %w", op, ErrMismatch)
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}

var (
	dummyOnce sync.Once
	dummyHash string
)

// BurnCompare выполняет сравнение с фиксированным хешем, чтобы ответ для
// несуществующего пользователя занимал столько же времени, сколько для существующего.
func BurnCompare(externalPassword string) {
	dummyOnce.Do(func() {
		h, err := GetHash("dummy-password-for-timing")
		if err == nil {
			dummyHash = h
		}
	})
	if dummyHash == "" {
		return
	}
	_ = bcrypt.CompareHashAndPassword([]byte(dummyHash), []byte(externalPassword))
}
