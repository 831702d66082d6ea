package bot

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/support-bot/internal/domain"
	"github.com/spec-kit/support-bot/internal/events"
	"github.com/spec-kit/support-bot/internal/observability"
	"github.com/spec-kit/support-bot/internal/repository"
	"github.com/spec-kit/support-bot/internal/service"
	"github.com/spec-kit/support-bot/internal/session"
	"github.com/spec-kit/support-bot/internal/telegram"
)

const (
	testRequester = int64(100)
	testAdmin     = int64(200)
)

type memIdentityRepo struct {
	mu         sync.Mutex
	identities map[int64]domain.Identity
}

func (r *memIdentityRepo) Upsert(_ context.Context, identity *domain.Identity) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.identities[identity.ChatID] = *identity
	return nil
}

func (r *memIdentityRepo) GetByChatID(_ context.Context, chatID int64) (*domain.Identity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	identity, ok := r.identities[chatID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copied := identity
	return &copied, nil
}

type memRequestRepo struct {
	mu       sync.Mutex
	requests map[int64]domain.Request
	nextID   int64
}

func (r *memRequestRepo) Insert(_ context.Context, request *domain.Request) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	request.ID = r.nextID
	request.CreatedAt = time.Now()
	r.requests[request.ID] = *request
	return nil
}

func (r *memRequestRepo) GetByID(_ context.Context, id int64) (*domain.Request, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	request, ok := r.requests[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copied := request
	return &copied, nil
}

func (r *memRequestRepo) UpdateIfStatus(_ context.Context, request *domain.Request, expected domain.RequestStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.requests[request.ID]
	if !ok || stored.Status != expected {
		return repository.ErrStaleStatus
	}
	r.requests[request.ID] = *request
	return nil
}

func (r *memRequestRepo) SetAnchor(_ context.Context, requestID int64, anchorID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.requests[requestID]
	if !ok {
		return repository.ErrNotFound
	}
	stored.AdminAnchorID = &anchorID
	r.requests[requestID] = stored
	return nil
}

func (r *memRequestRepo) ListByRequester(_ context.Context, chatID int64, _ time.Time) ([]domain.Request, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Request
	for _, request := range r.requests {
		if request.RequesterChatID == chatID {
			out = append(out, request)
		}
	}
	return out, nil
}

func (r *memRequestRepo) ListByAdmin(_ context.Context, adminID int64, _ time.Time) ([]domain.Request, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Request
	for _, request := range r.requests {
		if request.AssignedAdminID != nil && *request.AssignedAdminID == adminID {
			out = append(out, request)
		}
	}
	return out, nil
}

type stubGateway struct {
	mu     sync.Mutex
	texts  map[int64][]string
	nextID int64
}

func newStubGateway() *stubGateway {
	return &stubGateway{texts: make(map[int64][]string)}
}

func (g *stubGateway) SendMessage(_ context.Context, chatID int64, text string, _ *telegram.InlineKeyboardMarkup) (int64, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.nextID++
	g.texts[chatID] = append(g.texts[chatID], text)
	return g.nextID, nil
}

func (g *stubGateway) EditMessage(context.Context, int64, int64, string, *telegram.InlineKeyboardMarkup) error {
	return nil
}

func (g *stubGateway) AnswerCallback(context.Context, string) error { return nil }

func (g *stubGateway) SetCommands(context.Context, []telegram.BotCommand) error { return nil }

func (g *stubGateway) lastText(chatID int64) string {
	g.mu.Lock()
	defer g.mu.Unlock()
	texts := g.texts[chatID]
	if len(texts) == 0 {
		return ""
	}
	return texts[len(texts)-1]
}

func newTestRouter(t *testing.T) (*Router, *stubGateway, *memRequestRepo) {
	t.Helper()
	logger := zap.NewNop()
	identities := &memIdentityRepo{identities: map[int64]domain.Identity{
		testRequester: {ChatID: testRequester, Name: "Anna", Phone: "+74742223344", Organization: "Field office", Registered: true},
		testAdmin:     {ChatID: testAdmin, Name: "Igor", Registered: true, Role: domain.RoleAdmin},
	}}
	requests := &memRequestRepo{requests: make(map[int64]domain.Request)}
	store := session.NewMemoryStore()
	roster := domain.NewAdminRoster(map[domain.Category][]int64{domain.CategoryIT: {testAdmin}})
	catalog := domain.NewOrgCatalog([]domain.Organization{{Name: "Field office"}})
	dispatcher := events.NewInMemoryDispatcher(logger)
	metrics := observability.NewMetrics()
	gateway := newStubGateway()

	lifecycle := service.NewLifecycleService(service.LifecycleDependencies{
		RequestRepo: requests, IdentityRepo: identities, Roster: roster, Dispatcher: dispatcher, Logger: logger,
	})
	dialogue := service.NewDialogueService(service.DialogueDependencies{
		RequestRepo: requests, Store: store, Dispatcher: dispatcher, Logger: logger,
	})
	registration := service.NewRegistrationService(service.RegistrationDependencies{
		IdentityRepo: identities, Store: store, Catalog: catalog, Roster: roster, Logger: logger,
	})
	intake := service.NewIntakeService(service.IntakeDependencies{
		IdentityRepo: identities, Store: store, Lifecycle: lifecycle, Logger: logger,
	})
	notifier := service.NewNotificationService(service.NotificationDependencies{
		Gateway: gateway, RequestRepo: requests, Roster: roster, Metrics: metrics, Logger: logger,
	})
	notifier.RegisterHandlers(dispatcher)

	router := NewRouter(RouterDependencies{
		Store:        store,
		IdentityRepo: identities,
		Lifecycle:    lifecycle,
		Dialogue:     dialogue,
		Registration: registration,
		Intake:       intake,
		Gateway:      gateway,
		Roster:       roster,
		Metrics:      metrics,
		Logger:       logger,
	})
	return router, gateway, requests
}

func textUpdate(chatID int64, text string) telegram.Update {
	return telegram.Update{Message: &telegram.Message{
		From: &telegram.User{ID: chatID},
		Chat: telegram.Chat{ID: chatID},
		Text: text,
	}}
}

func callbackUpdate(chatID int64, data string) telegram.Update {
	return telegram.Update{CallbackQuery: &telegram.CallbackQuery{
		ID:   "cb",
		From: telegram.User{ID: chatID},
		Data: data,
	}}
}

func TestStartCommandShowsMenu(t *testing.T) {
	router, gateway, _ := newTestRouter(t)
	router.HandleUpdate(context.Background(), textUpdate(testRequester, "/start"))
	assert.Contains(t, gateway.lastText(testRequester), "help and support")
}

func TestProfileCommand(t *testing.T) {
	router, gateway, _ := newTestRouter(t)

	router.HandleUpdate(context.Background(), textUpdate(testRequester, "/profile"))
	assert.Contains(t, gateway.lastText(testRequester), "Anna")

	router.HandleUpdate(context.Background(), textUpdate(999, "/profile"))
	assert.Contains(t, gateway.lastText(999), "not registered")
}

func TestFullRequestRoundTrip(t *testing.T) {
	ctx := context.Background()
	router, gateway, requests := newTestRouter(t)

	// Requester files a request through the intake form.
	router.HandleUpdate(ctx, callbackUpdate(testRequester, OpNewRequest))
	router.HandleUpdate(ctx, callbackUpdate(testRequester, OpCategoryIT))
	router.HandleUpdate(ctx, textUpdate(testRequester, "laptop will not boot"))
	router.HandleUpdate(ctx, callbackUpdate(testRequester, OpUrgencyNow))
	assert.Contains(t, gateway.lastText(testRequester), "We recorded your request #1")

	// The admin was notified and accepts.
	require.NotEmpty(t, gateway.texts[testAdmin])
	router.HandleUpdate(ctx, callbackUpdate(testAdmin, "assign:1"))

	stored, err := requests.GetByID(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusAssigned, stored.Status)

	// Clarification round trip.
	router.HandleUpdate(ctx, callbackUpdate(testAdmin, "clarify:1"))
	stored, err = requests.GetByID(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusClarifying, stored.Status)

	router.HandleUpdate(ctx, textUpdate(testAdmin, "is the power light on?"))
	assert.Contains(t, gateway.lastText(testRequester), "is the power light on?")

	router.HandleUpdate(ctx, textUpdate(testRequester, "no, nothing"))
	assert.Contains(t, gateway.lastText(testAdmin), "no, nothing")

	router.HandleUpdate(ctx, callbackUpdate(testRequester, "close:1"))
	stored, err = requests.GetByID(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusAssigned, stored.Status)

	// Mark done, then a late done press reports the conflict.
	router.HandleUpdate(ctx, callbackUpdate(testAdmin, "done:1"))
	stored, err = requests.GetByID(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusDone, stored.Status)

	router.HandleUpdate(ctx, callbackUpdate(testRequester, "done:1"))
	assert.Contains(t, gateway.lastText(testRequester), "already completed")
}

func TestUnknownActionSurfacesBadAction(t *testing.T) {
	router, gateway, _ := newTestRouter(t)
	router.HandleUpdate(context.Background(), callbackUpdate(testRequester, "frobnicate:xyz"))
	assert.Contains(t, gateway.lastText(testRequester), "unrecognized action")
}

func TestKeyboardFromChoices(t *testing.T) {
	assert.Nil(t, keyboardFromChoices(nil))

	markup := keyboardFromChoices([]service.Choice{
		{Label: "IT", Action: "cat_it"},
		{Label: "AHO", Action: "cat_aho"},
	})
	require.NotNil(t, markup)
	require.Len(t, markup.InlineKeyboard, 2)
	assert.Equal(t, "cat_it", markup.InlineKeyboard[0][0].CallbackData)
}
