package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/spec-kit/support-bot/internal/domain"
	"github.com/spec-kit/support-bot/internal/events"
	"github.com/spec-kit/support-bot/internal/repository"
	"github.com/spec-kit/support-bot/internal/telegram"
)

type fakeIdentityRepo struct {
	mu         sync.Mutex
	identities map[int64]domain.Identity
}

func newFakeIdentityRepo() *fakeIdentityRepo {
	return &fakeIdentityRepo{identities: make(map[int64]domain.Identity)}
}

func (r *fakeIdentityRepo) Upsert(_ context.Context, identity *domain.Identity) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	identity.UpdatedAt = time.Now()
	if existing, ok := r.identities[identity.ChatID]; ok {
		identity.CreatedAt = existing.CreatedAt
	} else {
		identity.CreatedAt = identity.UpdatedAt
	}
	r.identities[identity.ChatID] = *identity
	return nil
}

func (r *fakeIdentityRepo) GetByChatID(_ context.Context, chatID int64) (*domain.Identity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	identity, ok := r.identities[chatID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copied := identity
	return &copied, nil
}

func (r *fakeIdentityRepo) add(identity domain.Identity) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.identities[identity.ChatID] = identity
}

type fakeRequestRepo struct {
	mu        sync.Mutex
	requests  map[int64]domain.Request
	nextID    int64
	updateErr error
}

func newFakeRequestRepo() *fakeRequestRepo {
	return &fakeRequestRepo{requests: make(map[int64]domain.Request), nextID: 1}
}

func (r *fakeRequestRepo) Insert(_ context.Context, request *domain.Request) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	request.ID = r.nextID
	r.nextID++
	request.CreatedAt = time.Now()
	r.requests[request.ID] = *request
	return nil
}

func (r *fakeRequestRepo) GetByID(_ context.Context, id int64) (*domain.Request, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	request, ok := r.requests[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copied := request
	return &copied, nil
}

func (r *fakeRequestRepo) UpdateIfStatus(_ context.Context, request *domain.Request, expected domain.RequestStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.updateErr != nil {
		return r.updateErr
	}
	stored, ok := r.requests[request.ID]
	if !ok || stored.Status != expected {
		return repository.ErrStaleStatus
	}
	r.requests[request.ID] = *request
	return nil
}

func (r *fakeRequestRepo) SetAnchor(_ context.Context, requestID int64, anchorID int64) error {
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

func (r *fakeRequestRepo) ListByRequester(_ context.Context, chatID int64, includeDoneAfter time.Time) ([]domain.Request, error) {
	return r.list(func(req domain.Request) bool { return req.RequesterChatID == chatID }, includeDoneAfter), nil
}

func (r *fakeRequestRepo) ListByAdmin(_ context.Context, adminID int64, includeDoneAfter time.Time) ([]domain.Request, error) {
	return r.list(func(req domain.Request) bool {
		return req.AssignedAdminID != nil && *req.AssignedAdminID == adminID
	}, includeDoneAfter), nil
}

func (r *fakeRequestRepo) list(match func(domain.Request) bool, includeDoneAfter time.Time) []domain.Request {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Request
	for _, req := range r.requests {
		if !match(req) {
			continue
		}
		if req.Status == domain.StatusDone && req.CompletedAt != nil && req.CompletedAt.Before(includeDoneAfter) {
			continue
		}
		out = append(out, req)
	}
	return out
}

type sentMessage struct {
	ChatID int64
	Text   string
	Markup *telegram.InlineKeyboardMarkup
}

type editedMessage struct {
	ChatID    int64
	MessageID int64
	Text      string
	Markup    *telegram.InlineKeyboardMarkup
}

// recordingGateway captures outbound traffic. failFor makes every send to
// the listed chats fail.
type recordingGateway struct {
	mu            sync.Mutex
	sent          []sentMessage
	edited        []editedMessage
	failFor       map[int64]bool
	nextMessageID int64
}

func newRecordingGateway() *recordingGateway {
	return &recordingGateway{failFor: make(map[int64]bool), nextMessageID: 100}
}

func (g *recordingGateway) SendMessage(_ context.Context, chatID int64, text string, markup *telegram.InlineKeyboardMarkup) (int64, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.failFor[chatID] {
		return 0, errors.New("delivery refused")
	}
	g.nextMessageID++
	g.sent = append(g.sent, sentMessage{ChatID: chatID, Text: text, Markup: markup})
	return g.nextMessageID, nil
}

func (g *recordingGateway) EditMessage(_ context.Context, chatID, messageID int64, text string, markup *telegram.InlineKeyboardMarkup) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.failFor[chatID] {
		return errors.New("edit refused")
	}
	g.edited = append(g.edited, editedMessage{ChatID: chatID, MessageID: messageID, Text: text, Markup: markup})
	return nil
}

func (g *recordingGateway) AnswerCallback(context.Context, string) error { return nil }

func (g *recordingGateway) SetCommands(context.Context, []telegram.BotCommand) error { return nil }

func (g *recordingGateway) sentTo(chatID int64) []sentMessage {
	g.mu.Lock()
	defer g.mu.Unlock()
	var out []sentMessage
	for _, msg := range g.sent {
		if msg.ChatID == chatID {
			out = append(out, msg)
		}
	}
	return out
}

// capturingDispatcher records published events without running handlers.
type capturingDispatcher struct {
	mu     sync.Mutex
	events []events.Event
}

func (d *capturingDispatcher) Publish(_ context.Context, event events.Event) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = append(d.events, event)
	return nil
}

func (d *capturingDispatcher) Subscribe(events.EventType, events.EventHandler) {}

func (d *capturingDispatcher) published(eventType events.EventType) []events.Event {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []events.Event
	for _, event := range d.events {
		if event.Type == eventType {
			out = append(out, event)
		}
	}
	return out
}
