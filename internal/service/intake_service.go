package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/support-bot/internal/domain"
	"github.com/spec-kit/support-bot/internal/repository"
	"github.com/spec-kit/support-bot/internal/session"
	apperrors "github.com/spec-kit/support-bot/pkg/util"
)

const scheduleLayout = "2006-01-02 15:04"

const (
	formKeyCategory    = "category"
	formKeyDescription = "description"
)

// IntakeService collects a new request through the intake form: category,
// free-text description, urgency, and an optional scheduled time. A
// finished form is handed to the lifecycle service for submission.
type IntakeService struct {
	identities repository.IdentityRepository
	store      session.Store
	lifecycle  *LifecycleService
	logger     *zap.Logger
}

// IntakeDependencies bundles collaborators for intake.
type IntakeDependencies struct {
	IdentityRepo repository.IdentityRepository
	Store        session.Store
	Lifecycle    *LifecycleService
	Logger       *zap.Logger
}

// NewIntakeService constructs the service.
func NewIntakeService(deps IntakeDependencies) *IntakeService {
	return &IntakeService{
		identities: deps.IdentityRepo,
		store:      deps.Store,
		lifecycle:  deps.Lifecycle,
		logger:     deps.Logger,
	}
}

// Start begins the intake form, sending unregistered callers to
// registration instead.
func (s *IntakeService) Start(ctx context.Context, current *domain.Session, chatID int64) (Prompt, error) {
	identity, err := s.identities.GetByChatID(ctx, chatID)
	if err != nil && !repository.IsMissing(err) {
		return Prompt{}, apperrors.NewInternalError(err)
	}
	if identity == nil || !identity.Registered {
		return Prompt{
			Text:    "you need to register before submitting a request",
			Choices: []Choice{{Label: "Register", Action: "register"}},
		}, nil
	}

	guard := domain.FlowIdle
	if current != nil {
		if current.InDialogue() {
			return Prompt{Text: "finish your clarification dialogue before submitting a new request"}, nil
		}
		guard = current.Flow
	}
	sess := &domain.Session{
		ChatID: chatID,
		Flow:   domain.FlowIntake,
		Step:   domain.StepIntakeCategory,
	}
	applied, err := s.store.PutGuarded(ctx, sess, guard)
	if err != nil {
		return Prompt{}, apperrors.NewInternalError(err)
	}
	if !applied {
		return Prompt{Text: "finish your clarification dialogue before submitting a new request"}, nil
	}
	return Prompt{
		Text: "What kind of problem is it?",
		Choices: []Choice{
			{Label: "IT", Action: "cat_it"},
			{Label: "AHO", Action: "cat_aho"},
		},
	}, nil
}

// HandleCategory accepts the category choice.
func (s *IntakeService) HandleCategory(ctx context.Context, sess *domain.Session, category domain.Category) (Prompt, error) {
	if sess.Step != domain.StepIntakeCategory {
		return Prompt{Text: "use the menu to start a new request"}, nil
	}
	sess.SetForm(formKeyCategory, string(category))
	sess.Step = domain.StepIntakeDescription
	if err := s.saveForm(ctx, sess); err != nil {
		return Prompt{}, err
	}
	return Prompt{Text: "Describe your problem"}, nil
}

// HandleText advances the form with a free-text answer.
func (s *IntakeService) HandleText(ctx context.Context, sess *domain.Session, text string) (Prompt, error) {
	text = strings.TrimSpace(text)
	switch sess.Step {
	case domain.StepIntakeDescription:
		if text == "" {
			return Prompt{Text: "please describe the problem as text"}, nil
		}
		sess.SetForm(formKeyDescription, text)
		sess.Step = domain.StepIntakeUrgency
		if err := s.saveForm(ctx, sess); err != nil {
			return Prompt{}, err
		}
		return Prompt{
			Text: "When do you need help?",
			Choices: []Choice{
				{Label: "As soon as possible", Action: "urgency_now"},
				{Label: "At a set time", Action: "urgency_later"},
			},
		}, nil

	case domain.StepIntakeSchedule:
		when, err := time.ParseInLocation(scheduleLayout, text, time.Local)
		if err != nil {
			return Prompt{Text: "please send the time as YYYY-MM-DD HH:MM"}, nil
		}
		return s.submit(ctx, sess, domain.UrgencyScheduled, &when)
	}
	return Prompt{Text: "use the menu to start a new request"}, nil
}

// HandleUrgency accepts the urgency choice.
func (s *IntakeService) HandleUrgency(ctx context.Context, sess *domain.Session, kind domain.UrgencyKind) (Prompt, error) {
	if sess.Step != domain.StepIntakeUrgency {
		return Prompt{Text: "use the menu to start a new request"}, nil
	}
	if kind == domain.UrgencyScheduled {
		sess.Step = domain.StepIntakeSchedule
		if err := s.saveForm(ctx, sess); err != nil {
			return Prompt{}, err
		}
		return Prompt{Text: "When should we come? Send the time as YYYY-MM-DD HH:MM"}, nil
	}
	return s.submit(ctx, sess, domain.UrgencyImmediate, nil)
}

func (s *IntakeService) submit(ctx context.Context, sess *domain.Session, urgency domain.UrgencyKind, scheduledAt *time.Time) (Prompt, error) {
	request, err := s.lifecycle.Submit(ctx, sess.ChatID, SubmitInput{
		Category:    domain.Category(sess.Form[formKeyCategory]),
		Description: sess.Form[formKeyDescription],
		Urgency:     urgency,
		ScheduledAt: scheduledAt,
	})
	if err != nil {
		return Prompt{}, err
	}
	if err := s.store.Clear(ctx, sess.ChatID); err != nil {
		return Prompt{}, apperrors.NewInternalError(err)
	}
	return Prompt{
		Text:    fmt.Sprintf("We recorded your request #%d, please wait!", request.ID),
		Choices: []Choice{{Label: "Main menu", Action: "start"}},
	}, nil
}

func (s *IntakeService) saveForm(ctx context.Context, sess *domain.Session) error {
	applied, err := s.store.PutGuarded(ctx, sess, domain.FlowIntake)
	if err != nil {
		return apperrors.NewInternalError(err)
	}
	if !applied {
		s.logger.Warn("intake step dropped, session re-paired",
			zap.Int64("chat_id", sess.ChatID))
	}
	return nil
}
