package worker

import (
	"github.com/spec-kit/support-bot/internal/events"
	"github.com/spec-kit/support-bot/internal/service"
)

// StartNotificationWorker subscribes the notification service to the
// event dispatcher. Must run before the first update is accepted so no
// lifecycle event is published without a listener.
func StartNotificationWorker(notificationService *service.NotificationService, dispatcher events.Dispatcher) {
	if notificationService == nil {
		return
	}
	notificationService.RegisterHandlers(dispatcher)
}
