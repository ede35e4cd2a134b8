// Package jwt реализует кодек bearer-токенов: выпуск и проверку подписанных
// HS256 токенов с ограниченным сроком жизни.
//
// Maker описывает контракт кодека, MakerImpl - реализация на секретном ключе,
// который передаётся явно при создании и не меняется после старта.
package jwt

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken возвращается при любой ошибке проверки токена.
// Конкретная причина оборачивается внутрь и пишется только в лог.
var ErrInvalidToken = errors.New("invalid token")

// Claims описывает данные, хранящиеся в токене.
// Subject - идентификатор пользователя, Role - роль на момент выпуска.
type Claims struct {
	Role string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// Maker описывает интерфейс для выпуска и проверки токенов.
type Maker interface {
	// GenerateToken выпускает токен с TTL из конфигурации.
	GenerateToken(subject, role string) (string, error)
	// ParseToken проверяет токен и возвращает его claims.
	ParseToken(tokenStr string) (*Claims, error)
}

// MakerImpl реализует Maker с использованием секретного ключа
// и времени жизни токена (TTL).
type MakerImpl struct {
	secretKey []byte           // Секретный ключ для подписи токенов.
	tokenTTL  time.Duration    // Время жизни токена.
	now       func() time.Time // Источник времени.
}

// Option настраивает MakerImpl.
type Option func(*MakerImpl)

// WithClock подменяет источник времени, используется в тестах.
func WithClock(now func() time.Time) Option {
	return func(m *MakerImpl) {
		m.now = now
	}
}

// NewJWTMaker создаёт новый экземпляр MakerImpl на основе секретного ключа и TTL.
func NewJWTMaker(secretKey string, ttl time.Duration, opts ...Option) *MakerImpl {
	m := &MakerImpl{
		secretKey: []byte(secretKey),
		tokenTTL:  ttl,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// TTL возвращает время жизни токенов по умолчанию.
func (j *MakerImpl) TTL() time.Duration {
	return j.tokenTTL
}
