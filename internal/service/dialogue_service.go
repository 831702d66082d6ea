package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/support-bot/internal/domain"
	"github.com/spec-kit/support-bot/internal/events"
	"github.com/spec-kit/support-bot/internal/repository"
	"github.com/spec-kit/support-bot/internal/session"
	apperrors "github.com/spec-kit/support-bot/pkg/util"
)

const excerptLen = 60

// DialogueService couples two sessions so free text from either side is
// relayed to the other, and decouples them safely when either side closes.
type DialogueService struct {
	requests   repository.RequestRepository
	store      session.Store
	dispatcher events.Dispatcher
	logger     *zap.Logger
}

// DialogueDependencies bundles collaborators for the dialogue service.
type DialogueDependencies struct {
	RequestRepo repository.RequestRepository
	Store       session.Store
	Dispatcher  events.Dispatcher
	Logger      *zap.Logger
}

// NewDialogueService constructs the service.
func NewDialogueService(deps DialogueDependencies) *DialogueService {
	return &DialogueService{
		requests:   deps.RequestRepo,
		store:      deps.Store,
		dispatcher: deps.Dispatcher,
		logger:     deps.Logger,
	}
}

// Open starts a clarification on an assigned request. Both participants'
// sessions receive the cross-reference in one atomic step, then the
// request moves to CLARIFYING and the counterpart is notified.
func (s *DialogueService) Open(ctx context.Context, requestID, initiatorID int64) error {
	request, err := s.requests.GetByID(ctx, requestID)
	if err != nil {
		if repository.IsMissing(err) {
			return apperrors.NewNotFound("request", requestID)
		}
		return apperrors.NewInternalError(err)
	}
	if request.AssignedAdminID == nil {
		return apperrors.NewNotAssignable("the request has to be accepted by an admin first")
	}
	if request.Status == domain.StatusClarifying {
		return apperrors.NewAlreadyOpen(requestID)
	}
	if request.Status != domain.StatusAssigned {
		return apperrors.NewInvalidTransition("a clarification can only be started on an accepted request")
	}

	adminID := *request.AssignedAdminID
	var counterpartID int64
	switch initiatorID {
	case adminID:
		counterpartID = request.RequesterChatID
	case request.RequesterChatID:
		counterpartID = adminID
	default:
		return apperrors.NewForbidden("only the requester or the assigned admin can start a clarification")
	}

	initiatorSession := &domain.Session{
		ChatID: initiatorID,
		Flow:   domain.FlowDialogue,
		Link:   &domain.DialogueLink{RequestID: requestID, CounterpartID: counterpartID},
	}
	counterpartSession := &domain.Session{
		ChatID: counterpartID,
		Flow:   domain.FlowDialogue,
		Link:   &domain.DialogueLink{RequestID: requestID, CounterpartID: initiatorID},
	}
	// The admin-side copy carries the anchor so teardown can strip the
	// controls off the summary message.
	if request.AdminAnchorID != nil {
		if counterpartID == adminID {
			counterpartSession.Link.AnchorMessageID = *request.AdminAnchorID
		} else {
			initiatorSession.Link.AnchorMessageID = *request.AdminAnchorID
		}
	}

	if err := s.store.Pair(ctx, initiatorSession, counterpartSession); err != nil {
		return apperrors.NewInternalError(err)
	}

	request.Status = domain.StatusClarifying
	if err := s.requests.UpdateIfStatus(ctx, request, domain.StatusAssigned); err != nil {
		// Unwind the pairing so nobody is left linked to a request that
		// never entered CLARIFYING.
		if _, breakErr := s.store.BreakPair(ctx, initiatorID, counterpartID, requestID); breakErr != nil {
			s.logger.Error("failed to unwind session pairing",
				zap.Int64("request_id", requestID), zap.Error(breakErr))
		}
		if errors.Is(err, repository.ErrStaleStatus) {
			return apperrors.NewInvalidTransition("a clarification can only be started on an accepted request")
		}
		return apperrors.NewInternalError(err)
	}

	s.logger.Info("dialogue opened",
		zap.Int64("request_id", requestID),
		zap.Int64("initiator", initiatorID),
		zap.Int64("counterpart", counterpartID))
	s.publish(ctx, events.Event{
		Type:      events.EventDialogueOpened,
		RequestID: requestID,
		ActorID:   initiatorID,
		Payload: events.DialogueOpenedPayload{
			InitiatorID:   initiatorID,
			CounterpartID: counterpartID,
			Description:   request.Description,
		},
	})
	return nil
}

// Relay forwards free text from one side of an open dialogue to the
// other. Non-text input is dropped without a user-visible error.
func (s *DialogueService) Relay(ctx context.Context, senderID int64, text string) error {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	sess, err := s.store.Get(ctx, senderID)
	if err != nil {
		return apperrors.NewInternalError(err)
	}
	if sess == nil || !sess.InDialogue() {
		return apperrors.NewBrokenLink()
	}

	request, err := s.requests.GetByID(ctx, sess.Link.RequestID)
	if err != nil {
		if repository.IsMissing(err) {
			return apperrors.NewBrokenLink()
		}
		return apperrors.NewInternalError(err)
	}
	if request.Status != domain.StatusClarifying {
		return apperrors.NewBrokenLink()
	}

	s.publish(ctx, events.Event{
		Type:      events.EventDialogueMessage,
		RequestID: request.ID,
		ActorID:   senderID,
		Payload: events.DialogueMessagePayload{
			RecipientID: sess.Link.CounterpartID,
			Text:        text,
			Excerpt:     excerpt(request.Description),
		},
	})
	return nil
}

// Close tears the dialogue down from either side. Closing an already
// closed dialogue is a no-op; the counterpart's session is only cleared
// while it still points at the same request.
func (s *DialogueService) Close(ctx context.Context, requestID, closerID int64) error {
	sess, err := s.store.Get(ctx, closerID)
	if err != nil {
		return apperrors.NewInternalError(err)
	}
	if sess == nil || !sess.LinkedTo(requestID) {
		// Second close from a side that already moved on.
		return nil
	}
	counterpartID := sess.Link.CounterpartID

	request, err := s.requests.GetByID(ctx, requestID)
	if err != nil {
		if repository.IsMissing(err) {
			return apperrors.NewNotFound("request", requestID)
		}
		return apperrors.NewInternalError(err)
	}
	// The status flip happens before the sessions are torn down. If the
	// write fails both sessions survive, so the closer can simply retry;
	// a lingering CLARIFYING row with no sessions would be unrecoverable
	// the other way around.
	if request.Status == domain.StatusClarifying {
		request.Status = domain.StatusAssigned
		if err := s.requests.UpdateIfStatus(ctx, request, domain.StatusClarifying); err != nil && !errors.Is(err, repository.ErrStaleStatus) {
			return apperrors.NewInternalError(err)
		}
	}

	counterpartCleared, err := s.store.BreakPair(ctx, closerID, counterpartID, requestID)
	if err != nil {
		return apperrors.NewInternalError(err)
	}

	adminID := int64(0)
	if request.AssignedAdminID != nil {
		adminID = *request.AssignedAdminID
	}
	s.logger.Info("dialogue closed",
		zap.Int64("request_id", requestID),
		zap.Int64("closer", closerID),
		zap.Bool("counterpart_cleared", counterpartCleared))
	s.publish(ctx, events.Event{
		Type:      events.EventDialogueClosed,
		RequestID: requestID,
		ActorID:   closerID,
		Payload: events.DialogueClosedPayload{
			CloserID:       closerID,
			CounterpartID:  counterpartID,
			NotifyTeardown: counterpartCleared,
			AdminAnchorID:  request.AdminAnchorID,
			AdminID:        adminID,
			Description:    request.Description,
		},
	})
	return nil
}

func excerpt(description string) string {
	runes := []rune(strings.TrimSpace(description))
	if len(runes) <= excerptLen {
		return string(runes)
	}
	return string(runes[:excerptLen-3]) + "..."
}

func (s *DialogueService) publish(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	event.ID = uuid.NewString()
	event.Timestamp = time.Now()
	_ = s.dispatcher.Publish(ctx, event)
}
