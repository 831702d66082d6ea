package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/support-bot/internal/domain"
	"github.com/spec-kit/support-bot/internal/events"
	"github.com/spec-kit/support-bot/internal/repository"
	apperrors "github.com/spec-kit/support-bot/pkg/util"
)

// LifecycleService owns request status transitions and the rules for who
// may trigger them. Every mutation is validated first and committed before
// any notification goes out.
type LifecycleService struct {
	requests   repository.RequestRepository
	identities repository.IdentityRepository
	roster     *domain.AdminRoster
	dispatcher events.Dispatcher
	logger     *zap.Logger
}

// LifecycleDependencies bundles collaborators for the lifecycle service.
type LifecycleDependencies struct {
	RequestRepo  repository.RequestRepository
	IdentityRepo repository.IdentityRepository
	Roster       *domain.AdminRoster
	Dispatcher   events.Dispatcher
	Logger       *zap.Logger
}

// SubmitInput describes a finished intake form.
type SubmitInput struct {
	Category    domain.Category
	Description string
	Urgency     domain.UrgencyKind
	ScheduledAt *time.Time
}

// NewLifecycleService constructs the service.
func NewLifecycleService(deps LifecycleDependencies) *LifecycleService {
	return &LifecycleService{
		requests:   deps.RequestRepo,
		identities: deps.IdentityRepo,
		roster:     deps.Roster,
		dispatcher: deps.Dispatcher,
		logger:     deps.Logger,
	}
}

// Submit creates a request for a registered requester and fans the
// notification out to the matching admin roster.
func (s *LifecycleService) Submit(ctx context.Context, requesterID int64, input SubmitInput) (*domain.Request, error) {
	identity, err := s.identities.GetByChatID(ctx, requesterID)
	if err != nil {
		if repository.IsMissing(err) {
			return nil, apperrors.NewNotRegistered()
		}
		return nil, apperrors.NewInternalError(err)
	}
	if !identity.Registered {
		return nil, apperrors.NewNotRegistered()
	}

	request := &domain.Request{
		RequesterChatID: requesterID,
		Category:        input.Category,
		Description:     input.Description,
		Urgency:         input.Urgency,
		ScheduledAt:     input.ScheduledAt,
		Status:          domain.StatusSubmitted,
	}
	if err := s.requests.Insert(ctx, request); err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	s.logger.Info("request submitted",
		zap.Int64("request_id", request.ID),
		zap.Int64("requester", requesterID),
		zap.String("category", string(request.Category)))
	s.publish(ctx, events.Event{
		Type:      events.EventRequestSubmitted,
		RequestID: request.ID,
		ActorID:   requesterID,
		Payload: events.RequestSubmittedPayload{
			Category:    request.Category,
			Description: request.Description,
			Urgency:     request.Urgency,
			ScheduledAt: request.ScheduledAt,
		},
	})
	return request, nil
}

// Assign moves a submitted request to an admin. The admin stays the same
// for the request's remaining lifetime.
func (s *LifecycleService) Assign(ctx context.Context, requestID, adminID int64) (*domain.Request, error) {
	if !s.roster.Contains(adminID) {
		return nil, apperrors.NewForbidden("only support admins can accept requests")
	}
	request, err := s.requests.GetByID(ctx, requestID)
	if err != nil {
		if repository.IsMissing(err) {
			return nil, apperrors.NewNotFound("request", requestID)
		}
		return nil, apperrors.NewInternalError(err)
	}
	if request.Status != domain.StatusSubmitted {
		return nil, apperrors.NewInvalidTransition("this request was already accepted")
	}

	request.Status = domain.StatusAssigned
	request.AssignedAdminID = &adminID
	if err := s.requests.UpdateIfStatus(ctx, request, domain.StatusSubmitted); err != nil {
		if errors.Is(err, repository.ErrStaleStatus) {
			return nil, apperrors.NewInvalidTransition("this request was already accepted")
		}
		return nil, apperrors.NewInternalError(err)
	}

	s.logger.Info("request assigned",
		zap.Int64("request_id", request.ID),
		zap.Int64("admin", adminID))
	s.publish(ctx, events.Event{
		Type:      events.EventRequestAssigned,
		RequestID: request.ID,
		ActorID:   adminID,
		Payload: events.RequestAssignedPayload{
			AdminID:       adminID,
			RequesterID:   request.RequesterChatID,
			AdminAnchorID: request.AdminAnchorID,
			Description:   request.Description,
		},
	})
	return request, nil
}

// Complete finishes a request. Allowed for the requester and the assigned
// admin only; the other party is notified afterwards.
func (s *LifecycleService) Complete(ctx context.Context, requestID, actorID int64) (*domain.Request, error) {
	request, err := s.requests.GetByID(ctx, requestID)
	if err != nil {
		if repository.IsMissing(err) {
			return nil, apperrors.NewNotFound("request", requestID)
		}
		return nil, apperrors.NewInternalError(err)
	}
	if request.Status == domain.StatusDone {
		return nil, apperrors.NewInvalidTransition("this request is already completed")
	}
	if !isParty(request, actorID) {
		return nil, apperrors.NewForbidden("only the requester or the assigned admin can complete a request")
	}
	if !domain.CanTransition(request.Status, domain.StatusDone) {
		return nil, apperrors.NewInvalidTransition("this request cannot be completed yet")
	}

	now := time.Now()
	previous := request.Status
	request.Status = domain.StatusDone
	request.CompletedAt = &now
	if err := s.requests.UpdateIfStatus(ctx, request, previous); err != nil {
		if errors.Is(err, repository.ErrStaleStatus) {
			return nil, apperrors.NewInvalidTransition("this request cannot be completed yet")
		}
		return nil, apperrors.NewInternalError(err)
	}

	counterpart := request.RequesterChatID
	if actorID == request.RequesterChatID && request.AssignedAdminID != nil {
		counterpart = *request.AssignedAdminID
	}
	s.logger.Info("request completed",
		zap.Int64("request_id", request.ID),
		zap.Int64("actor", actorID))
	s.publish(ctx, events.Event{
		Type:      events.EventRequestCompleted,
		RequestID: request.ID,
		ActorID:   actorID,
		Payload: events.RequestCompletedPayload{
			CounterpartID: counterpart,
			CompletedAt:   now,
		},
	})
	return request, nil
}

// ListForIdentity returns the caller's requests: as assigned admin for
// roster members, as requester otherwise. Completed requests older than
// the retention window are omitted.
func (s *LifecycleService) ListForIdentity(ctx context.Context, chatID int64) ([]domain.Request, error) {
	cutoff := time.Now().Add(-domain.DoneRetention)
	var (
		list []domain.Request
		err  error
	)
	if s.roster.Contains(chatID) {
		list, err = s.requests.ListByAdmin(ctx, chatID, cutoff)
	} else {
		list, err = s.requests.ListByRequester(ctx, chatID, cutoff)
	}
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	return list, nil
}

func isParty(request *domain.Request, chatID int64) bool {
	if chatID == request.RequesterChatID {
		return true
	}
	return request.AssignedAdminID != nil && chatID == *request.AssignedAdminID
}

func (s *LifecycleService) publish(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	event.ID = uuid.NewString()
	event.Timestamp = time.Now()
	_ = s.dispatcher.Publish(ctx, event)
}
