package service

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/support-bot/internal/domain"
	"github.com/spec-kit/support-bot/internal/repository"
	"github.com/spec-kit/support-bot/internal/session"
	apperrors "github.com/spec-kit/support-bot/pkg/util"
)

var phonePattern = regexp.MustCompile(`^\+?7[-(]?\d{3}\)?-?\d{3}-?\d{2}-?\d{2}$`)

const (
	formKeyUsername = "username"
	formKeyName     = "name"
	formKeyPhone    = "phone"
	formKeyOrg      = "org"
)

// RegistrationService walks an identity through the registration form: a
// strictly ordered name → phone → organization sequence with a
// conditional office-number step. Each step validates input and
// re-prompts on failure without advancing.
type RegistrationService struct {
	identities repository.IdentityRepository
	store      session.Store
	catalog    *domain.OrgCatalog
	roster     *domain.AdminRoster
	logger     *zap.Logger
}

// RegistrationDependencies bundles collaborators for registration.
type RegistrationDependencies struct {
	IdentityRepo repository.IdentityRepository
	Store        session.Store
	Catalog      *domain.OrgCatalog
	Roster       *domain.AdminRoster
	Logger       *zap.Logger
}

// NewRegistrationService constructs the service.
func NewRegistrationService(deps RegistrationDependencies) *RegistrationService {
	return &RegistrationService{
		identities: deps.IdentityRepo,
		store:      deps.Store,
		catalog:    deps.Catalog,
		roster:     deps.Roster,
		logger:     deps.Logger,
	}
}

// Start begins the form. current is the caller's session as loaded by the
// router (nil when none exists); an open dialogue is never overwritten.
func (s *RegistrationService) Start(ctx context.Context, current *domain.Session, chatID int64, username string) (Prompt, error) {
	guard := domain.FlowIdle
	if current != nil {
		if current.InDialogue() {
			return Prompt{Text: "finish your clarification dialogue before registering"}, nil
		}
		guard = current.Flow
	}
	sess := &domain.Session{
		ChatID: chatID,
		Flow:   domain.FlowRegistration,
		Step:   domain.StepRegName,
	}
	sess.SetForm(formKeyUsername, username)
	applied, err := s.store.PutGuarded(ctx, sess, guard)
	if err != nil {
		return Prompt{}, apperrors.NewInternalError(err)
	}
	if !applied {
		return Prompt{Text: "finish your clarification dialogue before registering"}, nil
	}
	return Prompt{Text: "▫️ What is your name?"}, nil
}

// HandleText advances the form with a free-text answer.
func (s *RegistrationService) HandleText(ctx context.Context, sess *domain.Session, text string) (Prompt, error) {
	text = strings.TrimSpace(text)
	switch sess.Step {
	case domain.StepRegName:
		if text == "" {
			return Prompt{Text: "please send your name as text"}, nil
		}
		sess.SetForm(formKeyName, text)
		sess.Step = domain.StepRegPhone
		if err := s.saveForm(ctx, sess); err != nil {
			return Prompt{}, err
		}
		return Prompt{Text: fmt.Sprintf("nice to meet you, %s!\nNow send a contact phone number", text)}, nil

	case domain.StepRegPhone:
		if !phonePattern.MatchString(text) {
			return Prompt{Text: "that phone number does not look right, try the +7XXXXXXXXXX format"}, nil
		}
		sess.SetForm(formKeyPhone, text)
		sess.Step = domain.StepRegOrg
		if err := s.saveForm(ctx, sess); err != nil {
			return Prompt{}, err
		}
		return s.orgPrompt(), nil

	case domain.StepRegOrg:
		if text == "" {
			return Prompt{Text: "please pick an organization or type its name"}, nil
		}
		return s.acceptOrg(ctx, sess, text)

	case domain.StepRegOffice:
		if text == "" {
			return Prompt{Text: "please send your office number"}, nil
		}
		return s.finish(ctx, sess, text)
	}
	return Prompt{Text: "use /start to begin"}, nil
}

// HandleOrgChoice accepts an organization picked from the catalog keyboard.
func (s *RegistrationService) HandleOrgChoice(ctx context.Context, sess *domain.Session, index int64) (Prompt, error) {
	names := s.catalog.Names()
	if index < 0 || index >= int64(len(names)) {
		return Prompt{}, apperrors.NewBadAction(fmt.Sprintf("org:%d", index))
	}
	return s.acceptOrg(ctx, sess, names[index])
}

func (s *RegistrationService) acceptOrg(ctx context.Context, sess *domain.Session, org string) (Prompt, error) {
	sess.SetForm(formKeyOrg, org)
	if s.catalog.RequiresOffice(org) {
		sess.Step = domain.StepRegOffice
		if err := s.saveForm(ctx, sess); err != nil {
			return Prompt{}, err
		}
		return Prompt{Text: "▫️ What is your office number?"}, nil
	}
	return s.finish(ctx, sess, "")
}

func (s *RegistrationService) finish(ctx context.Context, sess *domain.Session, office string) (Prompt, error) {
	role := domain.RoleRequester
	if s.roster.Contains(sess.ChatID) {
		role = domain.RoleAdmin
	}
	identity := &domain.Identity{
		ChatID:       sess.ChatID,
		Username:     sess.Form[formKeyUsername],
		Name:         sess.Form[formKeyName],
		Phone:        sess.Form[formKeyPhone],
		Organization: sess.Form[formKeyOrg],
		Office:       office,
		Registered:   true,
		Role:         role,
	}
	if err := s.identities.Upsert(ctx, identity); err != nil {
		return Prompt{}, apperrors.NewInternalError(err)
	}
	if err := s.store.Clear(ctx, sess.ChatID); err != nil {
		return Prompt{}, apperrors.NewInternalError(err)
	}
	s.logger.Info("identity registered", zap.Int64("chat_id", sess.ChatID))
	return Prompt{
		Text: fmt.Sprintf("%s, you are registered!\nPhone: %s\nOrganization: %s",
			identity.Name, identity.Phone, identity.Organization),
		Choices: []Choice{{Label: "Main menu", Action: "start"}},
	}, nil
}

func (s *RegistrationService) orgPrompt() Prompt {
	prompt := Prompt{Text: "▫️ Pick your organization or type its name"}
	for i, name := range s.catalog.Names() {
		prompt.Choices = append(prompt.Choices, Choice{Label: name, Action: fmt.Sprintf("org:%d", i)})
	}
	return prompt
}

func (s *RegistrationService) saveForm(ctx context.Context, sess *domain.Session) error {
	applied, err := s.store.PutGuarded(ctx, sess, domain.FlowRegistration)
	if err != nil {
		return apperrors.NewInternalError(err)
	}
	if !applied {
		// A dialogue pairing took the session over between our read and
		// this write; drop the form step rather than clobber the link.
		s.logger.Warn("registration step dropped, session re-paired",
			zap.Int64("chat_id", sess.ChatID))
	}
	return nil
}
