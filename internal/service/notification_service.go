package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/spec-kit/support-bot/internal/domain"
	"github.com/spec-kit/support-bot/internal/events"
	"github.com/spec-kit/support-bot/internal/observability"
	"github.com/spec-kit/support-bot/internal/repository"
	"github.com/spec-kit/support-bot/internal/telegram"
)

// NotificationService formats and sends lifecycle and dialogue events to
// the right recipients. It runs strictly after the triggering state
// change committed; a delivery failure is logged, retried once, and never
// surfaces to the publishing service.
type NotificationService struct {
	gateway  telegram.Gateway
	requests repository.RequestRepository
	roster   *domain.AdminRoster
	metrics  *observability.Metrics
	logger   *zap.Logger
}

// NotificationDependencies bundles collaborators for notifications.
type NotificationDependencies struct {
	Gateway     telegram.Gateway
	RequestRepo repository.RequestRepository
	Roster      *domain.AdminRoster
	Metrics     *observability.Metrics
	Logger      *zap.Logger
}

// NewNotificationService creates the service.
func NewNotificationService(deps NotificationDependencies) *NotificationService {
	return &NotificationService{
		gateway:  deps.Gateway,
		requests: deps.RequestRepo,
		roster:   deps.Roster,
		metrics:  deps.Metrics,
		logger:   deps.Logger,
	}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers(dispatcher events.Dispatcher) {
	if dispatcher == nil {
		return
	}
	dispatcher.Subscribe(events.EventRequestSubmitted, n.handleRequestSubmitted)
	dispatcher.Subscribe(events.EventRequestAssigned, n.handleRequestAssigned)
	dispatcher.Subscribe(events.EventRequestCompleted, n.handleRequestCompleted)
	dispatcher.Subscribe(events.EventDialogueOpened, n.handleDialogueOpened)
	dispatcher.Subscribe(events.EventDialogueMessage, n.handleDialogueMessage)
	dispatcher.Subscribe(events.EventDialogueClosed, n.handleDialogueClosed)
}

// handleRequestSubmitted fans out to every admin of the category and
// records the first delivered message id as the edit anchor. If no
// delivery succeeds the request simply has no anchor and later edits are
// skipped.
func (n *NotificationService) handleRequestSubmitted(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.RequestSubmittedPayload)
	if !ok {
		return nil
	}
	text := fmt.Sprintf("New %s request #%d\n%s\n\n%s",
		payload.Category, event.RequestID, formatUrgency(payload), payload.Description)

	var anchorID *int64
	for _, adminID := range n.roster.ForCategory(payload.Category) {
		messageID, delivered := n.send(ctx, adminID, text, telegram.AcceptKeyboard(event.RequestID))
		if delivered && anchorID == nil {
			anchorID = &messageID
		}
	}
	if anchorID == nil {
		return nil
	}

	return n.requests.SetAnchor(ctx, event.RequestID, *anchorID)
}

// handleRequestAssigned strips the accept control off the admin anchor,
// appends the assignment note and tells the requester.
func (n *NotificationService) handleRequestAssigned(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.RequestAssignedPayload)
	if !ok {
		return nil
	}
	if payload.AdminAnchorID != nil {
		text := fmt.Sprintf("Request #%d\n%s\n\n✅ You accepted this request",
			event.RequestID, payload.Description)
		n.edit(ctx, payload.AdminID, *payload.AdminAnchorID, text, nil)
	}
	n.send(ctx, payload.RequesterID,
		fmt.Sprintf("Your request #%d was accepted, an admin is on it", event.RequestID), nil)
	return nil
}

func (n *NotificationService) handleRequestCompleted(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.RequestCompletedPayload)
	if !ok {
		return nil
	}
	n.send(ctx, payload.CounterpartID,
		fmt.Sprintf("Request #%d is completed", event.RequestID), nil)
	return nil
}

func (n *NotificationService) handleDialogueOpened(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.DialogueOpenedPayload)
	if !ok {
		return nil
	}
	text := fmt.Sprintf("A dialogue about request #%d was started.\nAnything you type here is forwarded to the other side.",
		event.RequestID)
	n.send(ctx, payload.CounterpartID, text, telegram.DialogueKeyboard(event.RequestID))
	return nil
}

func (n *NotificationService) handleDialogueMessage(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.DialogueMessagePayload)
	if !ok {
		return nil
	}
	text := fmt.Sprintf("Request #%d (%s):\n%s", event.RequestID, payload.Excerpt, payload.Text)
	n.send(ctx, payload.RecipientID, text, nil)
	return nil
}

// handleDialogueClosed tells the side that was torn down, then re-renders
// the admin summary with a mark-done control. A missing anchor means no
// admin notification was ever delivered; the edit is skipped as stale.
func (n *NotificationService) handleDialogueClosed(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.DialogueClosedPayload)
	if !ok {
		return nil
	}
	if payload.NotifyTeardown {
		n.send(ctx, payload.CounterpartID,
			fmt.Sprintf("The dialogue about request #%d has ended", event.RequestID), nil)
	}
	if payload.AdminAnchorID != nil && payload.AdminID != 0 {
		text := fmt.Sprintf("Request #%d\n%s\n\nStatus: in progress", event.RequestID, payload.Description)
		n.edit(ctx, payload.AdminID, *payload.AdminAnchorID, text, telegram.DoneKeyboard(event.RequestID))
	}
	return nil
}

// send delivers with one retry. Reports the message id and whether any
// attempt succeeded.
func (n *NotificationService) send(ctx context.Context, chatID int64, text string, markup *telegram.InlineKeyboardMarkup) (int64, bool) {
	for attempt := 0; attempt < 2; attempt++ {
		messageID, err := n.gateway.SendMessage(ctx, chatID, text, markup)
		if err == nil {
			n.metrics.RecordDelivery("ok")
			return messageID, true
		}
		n.logger.Warn("notification delivery failed",
			zap.Int64("chat_id", chatID),
			zap.Int("attempt", attempt+1),
			zap.Error(err))
	}
	n.metrics.RecordDelivery("failed")
	return 0, false
}

func (n *NotificationService) edit(ctx context.Context, chatID, messageID int64, text string, markup *telegram.InlineKeyboardMarkup) {
	if err := n.gateway.EditMessage(ctx, chatID, messageID, text, markup); err != nil {
		n.metrics.RecordDelivery("edit_failed")
		n.logger.Warn("notification edit failed",
			zap.Int64("chat_id", chatID),
			zap.Int64("message_id", messageID),
			zap.Error(err))
		return
	}
	n.metrics.RecordDelivery("ok")
}

func formatUrgency(payload events.RequestSubmittedPayload) string {
	if payload.Urgency == domain.UrgencyScheduled && payload.ScheduledAt != nil {
		return "Scheduled for " + payload.ScheduledAt.Format("2006-01-02 15:04")
	}
	return "As soon as possible"
}
