package models

import "time"

// EntitlementEventType - тип события изменения подписки.
type EntitlementEventType string

const (
	// EventActivated публикуется после успешной активации подписки.
	EventActivated EntitlementEventType = "activated"
	// EventExpired публикуется, когда ленивая проверка перевела подписку в INACTIVE.
	EventExpired EntitlementEventType = "expired"
)

// EntitlementEvent - сообщение для сервиса уведомлений.
type EntitlementEvent struct {
	Type       EntitlementEventType `json:"type"`
	UserUID    string               `json:"user_uid"`
	Identifier string               `json:"identifier"`
	PlanName   *string              `json:"plan_name,omitempty"`
	ExpiresAt  *time.Time           `json:"expires_at,omitempty"`
	OccurredAt time.Time            `json:"occurred_at"`
}
