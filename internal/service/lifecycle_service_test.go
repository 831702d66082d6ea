package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/support-bot/internal/domain"
	"github.com/spec-kit/support-bot/internal/events"
	apperrors "github.com/spec-kit/support-bot/pkg/util"
)

const (
	requesterID = int64(100)
	adminID     = int64(200)
	otherAdmin  = int64(201)
	strangerID  = int64(300)
)

func testRoster() *domain.AdminRoster {
	return domain.NewAdminRoster(map[domain.Category][]int64{
		domain.CategoryIT:  {adminID, otherAdmin},
		domain.CategoryAHO: {otherAdmin},
	})
}

func newLifecycleFixture() (*LifecycleService, *fakeRequestRepo, *fakeIdentityRepo, *capturingDispatcher) {
	requests := newFakeRequestRepo()
	identities := newFakeIdentityRepo()
	identities.add(domain.Identity{ChatID: requesterID, Name: "Anna", Registered: true, Role: domain.RoleRequester})
	dispatcher := &capturingDispatcher{}
	svc := NewLifecycleService(LifecycleDependencies{
		RequestRepo:  requests,
		IdentityRepo: identities,
		Roster:       testRoster(),
		Dispatcher:   dispatcher,
		Logger:       zap.NewNop(),
	})
	return svc, requests, identities, dispatcher
}

func submitRequest(t *testing.T, svc *LifecycleService) *domain.Request {
	t.Helper()
	request, err := svc.Submit(context.Background(), requesterID, SubmitInput{
		Category:    domain.CategoryIT,
		Description: "printer is on fire",
		Urgency:     domain.UrgencyImmediate,
	})
	require.NoError(t, err)
	return request
}

func TestSubmitRequiresRegistration(t *testing.T) {
	svc, _, identities, dispatcher := newLifecycleFixture()

	_, err := svc.Submit(context.Background(), strangerID, SubmitInput{Category: domain.CategoryIT, Description: "x"})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotRegistered))

	// Known but unfinished registration counts as unregistered too.
	identities.add(domain.Identity{ChatID: strangerID, Registered: false})
	_, err = svc.Submit(context.Background(), strangerID, SubmitInput{Category: domain.CategoryIT, Description: "x"})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotRegistered))

	assert.Empty(t, dispatcher.published(events.EventRequestSubmitted))
}

func TestSubmitPublishesAfterInsert(t *testing.T) {
	svc, requests, _, dispatcher := newLifecycleFixture()

	request := submitRequest(t, svc)
	assert.Equal(t, domain.StatusSubmitted, request.Status)
	assert.NotZero(t, request.ID)

	stored, err := requests.GetByID(context.Background(), request.ID)
	require.NoError(t, err)
	assert.Equal(t, "printer is on fire", stored.Description)

	published := dispatcher.published(events.EventRequestSubmitted)
	require.Len(t, published, 1)
	assert.Equal(t, request.ID, published[0].RequestID)
	assert.Equal(t, requesterID, published[0].ActorID)
	assert.NotEmpty(t, published[0].ID)
}

func TestAssignHappyPath(t *testing.T) {
	svc, requests, _, dispatcher := newLifecycleFixture()
	request := submitRequest(t, svc)

	assigned, err := svc.Assign(context.Background(), request.ID, adminID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusAssigned, assigned.Status)
	require.NotNil(t, assigned.AssignedAdminID)
	assert.Equal(t, adminID, *assigned.AssignedAdminID)

	stored, err := requests.GetByID(context.Background(), request.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusAssigned, stored.Status)

	require.Len(t, dispatcher.published(events.EventRequestAssigned), 1)
}

func TestAssignRejectsNonAdmin(t *testing.T) {
	svc, _, _, _ := newLifecycleFixture()
	request := submitRequest(t, svc)

	_, err := svc.Assign(context.Background(), request.ID, strangerID)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeForbidden))
}

func TestAssignTwiceKeepsFirstAdmin(t *testing.T) {
	svc, requests, _, _ := newLifecycleFixture()
	request := submitRequest(t, svc)

	_, err := svc.Assign(context.Background(), request.ID, adminID)
	require.NoError(t, err)

	_, err = svc.Assign(context.Background(), request.ID, otherAdmin)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeInvalidTransition))

	stored, err := requests.GetByID(context.Background(), request.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.AssignedAdminID)
	assert.Equal(t, adminID, *stored.AssignedAdminID)
}

// staleReadRepo serves every read as if no assignment had landed yet, the
// way two handlers racing on the same request each see it SUBMITTED.
type staleReadRepo struct {
	*fakeRequestRepo
}

func (r *staleReadRepo) GetByID(ctx context.Context, id int64) (*domain.Request, error) {
	request, err := r.fakeRequestRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	request.Status = domain.StatusSubmitted
	request.AssignedAdminID = nil
	return request, nil
}

func TestAssignConcurrentLosesToFirstWriter(t *testing.T) {
	requests := newFakeRequestRepo()
	identities := newFakeIdentityRepo()
	identities.add(domain.Identity{ChatID: requesterID, Name: "Anna", Registered: true, Role: domain.RoleRequester})
	svc := NewLifecycleService(LifecycleDependencies{
		RequestRepo:  &staleReadRepo{fakeRequestRepo: requests},
		IdentityRepo: identities,
		Roster:       testRoster(),
		Dispatcher:   &capturingDispatcher{},
		Logger:       zap.NewNop(),
	})
	request := submitRequest(t, svc)

	_, err := svc.Assign(context.Background(), request.ID, adminID)
	require.NoError(t, err)

	// The second admin's read predates the first write, so validation
	// passes. The guarded update still refuses the overwrite.
	_, err = svc.Assign(context.Background(), request.ID, otherAdmin)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeInvalidTransition))

	stored, err := requests.GetByID(context.Background(), request.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusAssigned, stored.Status)
	require.NotNil(t, stored.AssignedAdminID)
	assert.Equal(t, adminID, *stored.AssignedAdminID)
}

func TestAssignMissingRequest(t *testing.T) {
	svc, _, _, _ := newLifecycleFixture()
	_, err := svc.Assign(context.Background(), 999, adminID)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotFound))
}

func TestCompleteByEitherParty(t *testing.T) {
	for _, tc := range []struct {
		name              string
		actor             int64
		wantedCounterpart int64
	}{
		{"requester closes", requesterID, adminID},
		{"admin closes", adminID, requesterID},
	} {
		t.Run(tc.name, func(t *testing.T) {
			svc, requests, _, dispatcher := newLifecycleFixture()
			request := submitRequest(t, svc)
			_, err := svc.Assign(context.Background(), request.ID, adminID)
			require.NoError(t, err)

			completed, err := svc.Complete(context.Background(), request.ID, tc.actor)
			require.NoError(t, err)
			assert.Equal(t, domain.StatusDone, completed.Status)
			require.NotNil(t, completed.CompletedAt)

			stored, err := requests.GetByID(context.Background(), request.ID)
			require.NoError(t, err)
			assert.Equal(t, domain.StatusDone, stored.Status)

			published := dispatcher.published(events.EventRequestCompleted)
			require.Len(t, published, 1)
			payload := published[0].Payload.(events.RequestCompletedPayload)
			assert.Equal(t, tc.wantedCounterpart, payload.CounterpartID)
		})
	}
}

func TestCompleteRejections(t *testing.T) {
	svc, _, _, _ := newLifecycleFixture()
	request := submitRequest(t, svc)

	// Not yet assigned: nobody can complete, not even the requester.
	_, err := svc.Complete(context.Background(), request.ID, requesterID)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeInvalidTransition))

	_, err = svc.Assign(context.Background(), request.ID, adminID)
	require.NoError(t, err)

	_, err = svc.Complete(context.Background(), request.ID, strangerID)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeForbidden))

	_, err = svc.Complete(context.Background(), request.ID, adminID)
	require.NoError(t, err)

	_, err = svc.Complete(context.Background(), request.ID, adminID)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeInvalidTransition))
}

func TestListForIdentitySplitsByRole(t *testing.T) {
	svc, requests, _, _ := newLifecycleFixture()
	request := submitRequest(t, svc)
	_, err := svc.Assign(context.Background(), request.ID, adminID)
	require.NoError(t, err)

	// An old completed request of the same requester falls off the listing.
	old := time.Now().Add(-3 * 24 * time.Hour)
	require.NoError(t, requests.Insert(context.Background(), &domain.Request{
		RequesterChatID: requesterID,
		Category:        domain.CategoryIT,
		Description:     "long gone",
		Urgency:         domain.UrgencyImmediate,
		Status:          domain.StatusDone,
		CompletedAt:     &old,
	}))

	asRequester, err := svc.ListForIdentity(context.Background(), requesterID)
	require.NoError(t, err)
	require.Len(t, asRequester, 1)
	assert.Equal(t, request.ID, asRequester[0].ID)

	asAdmin, err := svc.ListForIdentity(context.Background(), adminID)
	require.NoError(t, err)
	require.Len(t, asAdmin, 1)
	assert.Equal(t, request.ID, asAdmin[0].ID)

	asOtherAdmin, err := svc.ListForIdentity(context.Background(), otherAdmin)
	require.NoError(t, err)
	assert.Empty(t, asOtherAdmin)
}
