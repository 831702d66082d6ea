// Package bot routes inbound chat events to the service owning the
// sender's current conversational flow. No service ever calls back into
// the router.
package bot

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/support-bot/internal/domain"
	"github.com/spec-kit/support-bot/internal/observability"
	"github.com/spec-kit/support-bot/internal/repository"
	"github.com/spec-kit/support-bot/internal/service"
	"github.com/spec-kit/support-bot/internal/session"
	"github.com/spec-kit/support-bot/internal/telegram"
	apperrors "github.com/spec-kit/support-bot/pkg/util"
)

const welcomeText = "Welcome to the technical help and support desk of the regional budget portal"

// Router dispatches one inbound update at a time per sender. Ordering
// between different senders is not guaranteed and not needed; the chat
// transport serializes updates per chat.
type Router struct {
	store        session.Store
	identities   repository.IdentityRepository
	lifecycle    *service.LifecycleService
	dialogue     *service.DialogueService
	registration *service.RegistrationService
	intake       *service.IntakeService
	gateway      telegram.Gateway
	roster       *domain.AdminRoster
	metrics      *observability.Metrics
	logger       *zap.Logger
}

// RouterDependencies bundles collaborators for the router.
type RouterDependencies struct {
	Store        session.Store
	IdentityRepo repository.IdentityRepository
	Lifecycle    *service.LifecycleService
	Dialogue     *service.DialogueService
	Registration *service.RegistrationService
	Intake       *service.IntakeService
	Gateway      telegram.Gateway
	Roster       *domain.AdminRoster
	Metrics      *observability.Metrics
	Logger       *zap.Logger
}

// NewRouter constructs the router.
func NewRouter(deps RouterDependencies) *Router {
	return &Router{
		store:        deps.Store,
		identities:   deps.IdentityRepo,
		lifecycle:    deps.Lifecycle,
		dialogue:     deps.Dialogue,
		registration: deps.Registration,
		intake:       deps.Intake,
		gateway:      deps.Gateway,
		roster:       deps.Roster,
		metrics:      deps.Metrics,
		logger:       deps.Logger,
	}
}

// HandleUpdate processes one inbound update. Domain errors end up as a
// plain-language reply to the sender, never as a transport error.
func (r *Router) HandleUpdate(ctx context.Context, update telegram.Update) {
	switch {
	case update.CallbackQuery != nil:
		r.metrics.RecordUpdate("action")
		cq := update.CallbackQuery
		r.handleAction(ctx, cq)
		if err := r.gateway.AnswerCallback(ctx, cq.ID); err != nil {
			r.logger.Warn("answer callback failed", zap.Error(err))
		}
	case update.Message != nil && update.Message.From != nil:
		message := update.Message
		if strings.HasPrefix(message.Text, "/") {
			r.metrics.RecordUpdate("command")
			r.handleCommand(ctx, message)
			return
		}
		r.metrics.RecordUpdate("text")
		r.handleText(ctx, message.Chat.ID, message.Text)
	}
}

func (r *Router) handleCommand(ctx context.Context, message *telegram.Message) {
	chatID := message.Chat.ID
	command := strings.Fields(message.Text)[0]
	switch command {
	case "/start":
		r.reply(ctx, chatID, welcomeText, telegram.MainMenu())
	case "/profile":
		r.sendProfile(ctx, chatID)
	case "/help":
		r.reply(ctx, chatID, "Use the menu below to submit a request or register.", telegram.MainMenu())
	default:
		r.reply(ctx, chatID, "Unknown command, try /start", nil)
	}
}

func (r *Router) handleText(ctx context.Context, senderID int64, text string) {
	sess, err := r.store.Get(ctx, senderID)
	if err != nil {
		r.surfaceError(ctx, senderID, apperrors.NewInternalError(err))
		return
	}
	if sess == nil {
		r.reply(ctx, senderID, "Pick something from the menu first.", telegram.MainMenu())
		return
	}

	switch sess.Flow {
	case domain.FlowRegistration:
		r.sendPromptResult(ctx, senderID)(r.registration.HandleText(ctx, sess, text))
	case domain.FlowIntake:
		r.sendPromptResult(ctx, senderID)(r.intake.HandleText(ctx, sess, text))
	case domain.FlowDialogue:
		if err := r.dialogue.Relay(ctx, senderID, text); err != nil {
			r.surfaceError(ctx, senderID, err)
		}
	default:
		r.reply(ctx, senderID, "Pick something from the menu first.", telegram.MainMenu())
	}
}

func (r *Router) handleAction(ctx context.Context, cq *telegram.CallbackQuery) {
	senderID := cq.From.ID
	action, err := ParseAction(cq.Data)
	if err != nil {
		r.surfaceError(ctx, senderID, err)
		return
	}

	switch action.Op {
	case OpStart:
		r.renderMenu(ctx, cq, welcomeText, telegram.MainMenu())
	case OpDownloads:
		r.renderMenu(ctx, cq, "Pick what you need", telegram.DownloadsMenu())
	case OpDownloadsProfiles:
		r.renderMenu(ctx, cq, "Pick a profile", telegram.ProfilesMenu())
	case OpDownloadsMunicipal:
		r.renderMenu(ctx, cq, "Pick a year", telegram.MunicipalYearsMenu())
	case OpDownloadsRegional:
		r.renderMenu(ctx, cq, "Pick a year", telegram.RegionalYearsMenu())

	case OpRegister:
		sess, err := r.store.Get(ctx, senderID)
		if err != nil {
			r.surfaceError(ctx, senderID, apperrors.NewInternalError(err))
			return
		}
		r.sendPromptResult(ctx, senderID)(r.registration.Start(ctx, sess, senderID, cq.From.Username))
	case OpNewRequest:
		sess, err := r.store.Get(ctx, senderID)
		if err != nil {
			r.surfaceError(ctx, senderID, apperrors.NewInternalError(err))
			return
		}
		r.sendPromptResult(ctx, senderID)(r.intake.Start(ctx, sess, senderID))
	case OpMyRequests:
		r.sendRequestList(ctx, senderID)

	case OpCategoryIT, OpCategoryAHO:
		category := domain.CategoryIT
		if action.Op == OpCategoryAHO {
			category = domain.CategoryAHO
		}
		r.withFlow(ctx, senderID, domain.FlowIntake, func(sess *domain.Session) (service.Prompt, error) {
			return r.intake.HandleCategory(ctx, sess, category)
		})
	case OpUrgencyNow, OpUrgencyLater:
		kind := domain.UrgencyImmediate
		if action.Op == OpUrgencyLater {
			kind = domain.UrgencyScheduled
		}
		r.withFlow(ctx, senderID, domain.FlowIntake, func(sess *domain.Session) (service.Prompt, error) {
			return r.intake.HandleUrgency(ctx, sess, kind)
		})
	case OpOrg:
		if !action.HasID {
			r.surfaceError(ctx, senderID, apperrors.NewBadAction(cq.Data))
			return
		}
		r.withFlow(ctx, senderID, domain.FlowRegistration, func(sess *domain.Session) (service.Prompt, error) {
			return r.registration.HandleOrgChoice(ctx, sess, action.ID)
		})

	case OpAssign:
		if !action.HasID {
			r.surfaceError(ctx, senderID, apperrors.NewBadAction(cq.Data))
			return
		}
		request, err := r.lifecycle.Assign(ctx, action.ID, senderID)
		if err != nil {
			r.surfaceError(ctx, senderID, err)
			return
		}
		r.reply(ctx, senderID, fmt.Sprintf("You accepted request #%d", request.ID),
			telegram.AssignedKeyboard(request.ID))
	case OpClarify:
		if !action.HasID {
			r.surfaceError(ctx, senderID, apperrors.NewBadAction(cq.Data))
			return
		}
		if err := r.dialogue.Open(ctx, action.ID, senderID); err != nil {
			r.surfaceError(ctx, senderID, err)
			return
		}
		r.reply(ctx, senderID,
			fmt.Sprintf("Dialogue about request #%d started, anything you type here is forwarded.", action.ID),
			telegram.DialogueKeyboard(action.ID))
	case OpClose:
		if !action.HasID {
			r.surfaceError(ctx, senderID, apperrors.NewBadAction(cq.Data))
			return
		}
		if err := r.dialogue.Close(ctx, action.ID, senderID); err != nil {
			r.surfaceError(ctx, senderID, err)
			return
		}
		r.reply(ctx, senderID, fmt.Sprintf("The dialogue about request #%d has ended", action.ID), nil)
	case OpDone:
		if !action.HasID {
			r.surfaceError(ctx, senderID, apperrors.NewBadAction(cq.Data))
			return
		}
		request, err := r.lifecycle.Complete(ctx, action.ID, senderID)
		if err != nil {
			r.surfaceError(ctx, senderID, err)
			return
		}
		r.reply(ctx, senderID, fmt.Sprintf("Request #%d marked as done", request.ID), nil)

	default:
		r.surfaceError(ctx, senderID, apperrors.NewBadAction(cq.Data))
	}
}

// withFlow runs a form step only while the sender's session is still in
// the expected flow; otherwise the action is stale and gets a hint.
func (r *Router) withFlow(ctx context.Context, senderID int64, flow domain.Flow, step func(*domain.Session) (service.Prompt, error)) {
	sess, err := r.store.Get(ctx, senderID)
	if err != nil {
		r.surfaceError(ctx, senderID, apperrors.NewInternalError(err))
		return
	}
	if sess == nil || sess.Flow != flow {
		r.reply(ctx, senderID, "That button is no longer active, use the menu.", telegram.MainMenu())
		return
	}
	r.sendPromptResult(ctx, senderID)(step(sess))
}

func (r *Router) sendRequestList(ctx context.Context, senderID int64) {
	list, err := r.lifecycle.ListForIdentity(ctx, senderID)
	if err != nil {
		r.surfaceError(ctx, senderID, err)
		return
	}
	if len(list) == 0 {
		r.reply(ctx, senderID, "You have no active requests.", telegram.MainMenu())
		return
	}
	isAdmin := r.roster.Contains(senderID)
	for i := range list {
		request := &list[i]
		var markup *telegram.InlineKeyboardMarkup
		if isAdmin && request.Status == domain.StatusAssigned {
			markup = telegram.AssignedKeyboard(request.ID)
		}
		r.reply(ctx, senderID, formatRequestLine(request), markup)
	}
}

func (r *Router) sendProfile(ctx context.Context, chatID int64) {
	identity, err := r.identities.GetByChatID(ctx, chatID)
	if err != nil || !identity.Registered {
		r.reply(ctx, chatID, "You are not registered yet.", telegram.MainMenu())
		return
	}
	text := fmt.Sprintf("Name: %s\nPhone: %s\nOrganization: %s",
		identity.Name, identity.Phone, identity.Organization)
	if identity.Office != "" {
		text += "\nOffice: " + identity.Office
	}
	r.reply(ctx, chatID, text, nil)
}

// renderMenu edits the message the button lives on, falling back to a
// fresh message when the original is gone.
func (r *Router) renderMenu(ctx context.Context, cq *telegram.CallbackQuery, text string, markup *telegram.InlineKeyboardMarkup) {
	if cq.Message != nil {
		if err := r.gateway.EditMessage(ctx, cq.Message.Chat.ID, cq.Message.MessageID, text, markup); err == nil {
			return
		}
	}
	r.reply(ctx, cq.From.ID, text, markup)
}

func (r *Router) sendPromptResult(ctx context.Context, chatID int64) func(service.Prompt, error) {
	return func(prompt service.Prompt, err error) {
		if err != nil {
			r.surfaceError(ctx, chatID, err)
			return
		}
		r.reply(ctx, chatID, prompt.Text, keyboardFromChoices(prompt.Choices))
	}
}

func (r *Router) reply(ctx context.Context, chatID int64, text string, markup *telegram.InlineKeyboardMarkup) {
	if _, err := r.gateway.SendMessage(ctx, chatID, text, markup); err != nil {
		r.logger.Warn("reply delivery failed", zap.Int64("chat_id", chatID), zap.Error(err))
	}
}

func (r *Router) surfaceError(ctx context.Context, chatID int64, err error) {
	domainErr := apperrors.ToDomainError(err)
	r.metrics.RecordError(domainErr.Code)
	if domainErr.Code == apperrors.CodeInternal {
		r.logger.Error("operation failed", zap.Int64("chat_id", chatID), zap.Error(domainErr))
	}
	r.reply(ctx, chatID, domainErr.Message, nil)
}

func keyboardFromChoices(choices []service.Choice) *telegram.InlineKeyboardMarkup {
	if len(choices) == 0 {
		return nil
	}
	markup := &telegram.InlineKeyboardMarkup{}
	for _, choice := range choices {
		markup.InlineKeyboard = append(markup.InlineKeyboard,
			[]telegram.InlineKeyboardButton{{Text: choice.Label, CallbackData: choice.Action}})
	}
	return markup
}

func formatRequestLine(request *domain.Request) string {
	status := map[domain.RequestStatus]string{
		domain.StatusSubmitted:  "waiting for an admin",
		domain.StatusAssigned:   "in progress",
		domain.StatusClarifying: "clarification in progress",
		domain.StatusDone:       "done",
	}[request.Status]
	return fmt.Sprintf("#%d [%s] %s\n%s", request.ID, request.Category, status, request.Description)
}
