// Package models содержит доменные структуры сервиса: учётную запись пользователя
// с полями подписки (entitlement), аутентифицированного принципала и запись прогресса просмотра.
package models

import (
	"fmt"
	"time"
)

// Role - закрытое перечисление ролей пользователя.
type Role string

const (
	// RoleUser - роль по умолчанию, назначается при регистрации.
	RoleUser Role = "USER"
	// RoleAdmin - администратор.
	RoleAdmin Role = "ADMIN"
)

// Valid сообщает, относится ли роль к известному набору.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAdmin:
		return true
	default:
		return false
	}
}

// ParseRole преобразует строку из хранилища или токена в Role.
func ParseRole(s string) (Role, error) {
	r := Role(s)
	if !r.Valid() {
		return "", fmt.Errorf("unknown role %q", s)
	}
	return r, nil
}

// SubscriptionStatus - состояние подписки пользователя.
type SubscriptionStatus string

const (
	// StatusActive - подписка оплачена и не истекла.
	StatusActive SubscriptionStatus = "ACTIVE"
	// StatusInactive - подписки нет или она истекла.
	StatusInactive SubscriptionStatus = "INACTIVE"
)

// User представляет зарегистрированного пользователя вместе с состоянием подписки.
// PlanName и ExpiresAt остаются после истечения подписки как история.
type User struct {
	UUID         string             // Уникальный идентификатор пользователя
	Email        string             // Идентификатор для входа (уникальный)
	PasswordHash string             // bcrypt-хэш пароля
	Role         Role               // Роль пользователя
	DisplayName  string             // Отображаемое имя
	Preferences  []string           // Предпочтения (жанры и т.п.)
	Status       SubscriptionStatus // Статус подписки
	PlanName     *string            // Название тарифа, nil если подписки не было
	ExpiresAt    *time.Time         // Дата истечения подписки, nil если подписки не было
	CreatedAt    time.Time
}

// Principal возвращает идентичность пользователя, которая кладётся в контекст запроса.
func (u *User) Principal() Principal {
	return Principal{
		ID:         u.UUID,
		Identifier: u.Email,
		Role:       u.Role,
	}
}

// Expired сообщает, что активная подписка должна быть переведена в INACTIVE.
// Активная подписка без даты истечения считается истёкшей.
func (u *User) Expired(now time.Time) bool {
	if u.Status != StatusActive {
		return false
	}
	return u.ExpiresAt == nil || u.ExpiresAt.Before(now)
}

// Principal - аутентифицированная идентичность запроса.
type Principal struct {
	ID         string
	Identifier string
	Role       Role
}

// Profile - представление пользователя, отдаваемое клиенту.
type Profile struct {
	PrincipalID string             `json:"principalId"`
	Identifier  string             `json:"identifier"`
	DisplayName string             `json:"displayName"`
	Preferences []string           `json:"preferences"`
	Role        Role               `json:"role"`
	Status      SubscriptionStatus `json:"status"`
	PlanName    *string            `json:"planName"`
	ExpiresAt   *time.Time         `json:"expiresAt"`
}

// Profile строит клиентское представление пользователя без хэша пароля.
func (u *User) Profile() Profile {
	prefs := u.Preferences
	if prefs == nil {
		prefs = []string{}
	}
	return Profile{
		PrincipalID: u.UUID,
		Identifier:  u.Email,
		DisplayName: u.DisplayName,
		Preferences: prefs,
		Role:        u.Role,
		Status:      u.Status,
		PlanName:    u.PlanName,
		ExpiresAt:   u.ExpiresAt,
	}
}
