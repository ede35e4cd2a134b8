package rabbitmq

import "github.com/magabrotheeeer/entitlement-core/internal/models"

// QueueConfig описывает очередь и ключ маршрутизации, с которым она привязана к exchange.
type QueueConfig struct {
	QueueName  string
	RoutingKey string
}

// GetEntitlementQueues возвращает очереди для событий подписки.
func GetEntitlementQueues() []QueueConfig {
	return []QueueConfig{
		{QueueName: "notification.subscription.activated", RoutingKey: string(models.EventActivated)},
		{QueueName: "notification.subscription.expired", RoutingKey: string(models.EventExpired)},
	}
}
