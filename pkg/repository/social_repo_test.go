package repository

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/planhub/pkg/domain"
)

func newRequest(from, to uuid.UUID, typ domain.RequestType, planID *uuid.UUID) *domain.Request {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return &domain.Request{
		ID:          uuid.New(),
		RequestedBy: from,
		RequestedTo: to,
		Status:      domain.RequestPending,
		Type:        typ,
		PlanID:      planID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func TestRequestsRepository_PendingUniqueness(t *testing.T) {
	db := requireDB(t)
	ctx := context.Background()
	repo := NewRequestsRepository(db)
	a := seedUser(t, db, uniqueEmail())
	b := seedUser(t, db, uniqueEmail())

	req := newRequest(a.ID, b.ID, domain.RequestFriend, nil)
	require.NoError(t, repo.CreateTx(ctx, db, req))

	found, err := repo.FindPendingTx(ctx, db, b.ID, a.ID, domain.RequestFriend, nil)
	require.NoError(t, err)
	assert.Equal(t, req.ID, found.ID)

	err = repo.CreateTx(ctx, db, newRequest(b.ID, a.ID, domain.RequestFriend, nil))
	assert.ErrorIs(t, err, domain.ErrRequestPending)

	require.NoError(t, repo.TransitionTx(ctx, db, req.ID, domain.RequestAccepted, time.Now()))
	err = repo.TransitionTx(ctx, db, req.ID, domain.RequestRejected, time.Now())
	assert.ErrorIs(t, err, domain.ErrRequestAlreadyProcessed)

	_, err = repo.FindPendingTx(ctx, db, a.ID, b.ID, domain.RequestFriend, nil)
	assert.ErrorIs(t, err, domain.ErrRequestNotFound)
}

func TestFriendshipsRepository_OncePerPair(t *testing.T) {
	db := requireDB(t)
	ctx := context.Background()
	requests := NewRequestsRepository(db)
	repo := NewFriendshipsRepository(db)
	a := seedUser(t, db, uniqueEmail())
	b := seedUser(t, db, uniqueEmail())

	req := newRequest(a.ID, b.ID, domain.RequestFriend, nil)
	require.NoError(t, requests.CreateTx(ctx, db, req))

	require.NoError(t, repo.CreateTx(ctx, db, domain.NewFriendship(a.ID, b.ID, req.ID, time.Now())))
	err := repo.CreateTx(ctx, db, domain.NewFriendship(b.ID, a.ID, req.ID, time.Now()))
	assert.ErrorIs(t, err, domain.ErrFriendshipExists)

	exists, err := repo.ExistsTx(ctx, db, b.ID, a.ID)
	require.NoError(t, err)
	assert.True(t, exists)

	ids, err := repo.ListFriendIDs(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{a.ID}, ids)
}

func TestPlansRepository_AddCollaboratorIdempotent(t *testing.T) {
	db := requireDB(t)
	ctx := context.Background()
	repo := NewPlansRepository(db)
	owner := seedUser(t, db, uniqueEmail())
	guest := seedUser(t, db, uniqueEmail())
	now := time.Now().UTC().Truncate(time.Microsecond)

	plan := &domain.Plan{ID: uuid.New(), OwnerID: owner.ID, Title: "Hike", CreatedAt: now, UpdatedAt: now}
	require.NoError(t, repo.Create(ctx, plan))

	added, err := repo.AddCollaboratorTx(ctx, db, plan.ID, guest.ID, now)
	require.NoError(t, err)
	assert.True(t, added)

	added, err = repo.AddCollaboratorTx(ctx, db, plan.ID, guest.ID, now)
	require.NoError(t, err)
	assert.False(t, added)

	got, err := repo.GetTx(ctx, db, plan.ID, false)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{guest.ID}, got.Collaborators)
}

func TestNotificationsRepository_MarkRead(t *testing.T) {
	db := requireDB(t)
	ctx := context.Background()
	repo := NewNotificationsRepository(db)
	user := seedUser(t, db, uniqueEmail())
	other := seedUser(t, db, uniqueEmail())

	n := &domain.Notification{
		ID:        uuid.New(),
		UserID:    user.ID,
		Type:      domain.NotificationFriendRequest,
		Title:     "New friend request",
		Data:      []byte(`{"request_id":"x"}`),
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, repo.Create(ctx, n))

	assert.ErrorIs(t, repo.MarkRead(ctx, n.ID, other.ID, time.Now()), domain.ErrNotificationNotFound)
	require.NoError(t, repo.MarkRead(ctx, n.ID, user.ID, time.Now()))

	list, err := repo.ListByUser(ctx, user.ID, 10)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.NotNil(t, list[0].ReadAt)
	assert.JSONEq(t, `{"request_id":"x"}`, string(list[0].Data))
}
