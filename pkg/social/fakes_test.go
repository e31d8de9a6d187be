package social

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/tendant/planhub/pkg/domain"
	"github.com/tendant/planhub/pkg/repository"
)

// memGraph backs every store with maps. WithTx serializes units of work
// and rolls back to a snapshot on error.
type memGraph struct {
	mu            sync.Mutex
	users         map[uuid.UUID]domain.User
	requests      map[uuid.UUID]domain.Request
	friendships   map[[2]uuid.UUID]domain.Friendship
	plans         map[uuid.UUID]domain.Plan
	notifications map[uuid.UUID]domain.Notification
}

func newMemGraph() *memGraph {
	return &memGraph{
		users:         make(map[uuid.UUID]domain.User),
		requests:      make(map[uuid.UUID]domain.Request),
		friendships:   make(map[[2]uuid.UUID]domain.Friendship),
		plans:         make(map[uuid.UUID]domain.Plan),
		notifications: make(map[uuid.UUID]domain.Notification),
	}
}

func (g *memGraph) WithTx(ctx context.Context, fn func(q repository.Querier) error) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	requests := make(map[uuid.UUID]domain.Request, len(g.requests))
	for k, v := range g.requests {
		requests[k] = v
	}
	friendships := make(map[[2]uuid.UUID]domain.Friendship, len(g.friendships))
	for k, v := range g.friendships {
		friendships[k] = v
	}
	plans := make(map[uuid.UUID]domain.Plan, len(g.plans))
	for k, v := range g.plans {
		v.Collaborators = append([]uuid.UUID(nil), v.Collaborators...)
		plans[k] = v
	}

	err := fn(nil)
	if err == nil {
		return nil
	}
	if inner, ok := repository.Committed(err); ok {
		return inner
	}
	g.requests, g.friendships, g.plans = requests, friendships, plans
	return err
}

func (g *memGraph) addUser(name string, status domain.UserStatus) *domain.User {
	g.mu.Lock()
	defer g.mu.Unlock()
	u := domain.User{ID: uuid.New(), Email: uuid.NewString() + "@example.com", Name: name, Status: status, Verified: true}
	g.users[u.ID] = u
	return &u
}

func (g *memGraph) friendshipCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.friendships)
}

func (g *memGraph) plan(t *testing.T, id uuid.UUID) domain.Plan {
	t.Helper()
	g.mu.Lock()
	defer g.mu.Unlock()
	p, ok := g.plans[id]
	if !ok {
		t.Fatalf("plan %s not stored", id)
	}
	return p
}

func (g *memGraph) request(t *testing.T, id uuid.UUID) domain.Request {
	t.Helper()
	g.mu.Lock()
	defer g.mu.Unlock()
	r, ok := g.requests[id]
	if !ok {
		t.Fatalf("request %s not stored", id)
	}
	return r
}

type memUsers struct{ g *memGraph }

func (s memUsers) GetByIDTx(ctx context.Context, q repository.Querier, id uuid.UUID) (*domain.User, error) {
	u, ok := s.g.users[id]
	if !ok || u.Status == domain.UserStatusDeleted {
		return nil, domain.ErrUserNotFound
	}
	return &u, nil
}

func (s memUsers) ProfilesByIDs(ctx context.Context, ids []uuid.UUID) ([]domain.Profile, error) {
	s.g.mu.Lock()
	defer s.g.mu.Unlock()
	var out []domain.Profile
	for _, id := range ids {
		if u, ok := s.g.users[id]; ok && u.Status != domain.UserStatusDeleted {
			out = append(out, u.Profile())
		}
	}
	return out, nil
}

type memRequests struct{ g *memGraph }

func (s memRequests) CreateTx(ctx context.Context, q repository.Querier, req *domain.Request) error {
	s.g.requests[req.ID] = *req
	return nil
}

func (s memRequests) FindPendingTx(ctx context.Context, q repository.Querier, a, b uuid.UUID, typ domain.RequestType, planID *uuid.UUID) (*domain.Request, error) {
	for _, r := range s.g.requests {
		pair := (r.RequestedBy == a && r.RequestedTo == b) || (r.RequestedBy == b && r.RequestedTo == a)
		samePlan := (r.PlanID == nil && planID == nil) || (r.PlanID != nil && planID != nil && *r.PlanID == *planID)
		if pair && samePlan && r.Type == typ && r.Status == domain.RequestPending {
			return &r, nil
		}
	}
	return nil, domain.ErrRequestNotFound
}

func (s memRequests) GetForUpdateTx(ctx context.Context, q repository.Querier, id uuid.UUID) (*domain.Request, error) {
	r, ok := s.g.requests[id]
	if !ok {
		return nil, domain.ErrRequestNotFound
	}
	return &r, nil
}

func (s memRequests) TransitionTx(ctx context.Context, q repository.Querier, id uuid.UUID, status domain.RequestStatus, now time.Time) error {
	r, ok := s.g.requests[id]
	if !ok || r.Status != domain.RequestPending {
		return domain.ErrRequestAlreadyProcessed
	}
	r.Status = status
	r.UpdatedAt = now
	s.g.requests[id] = r
	return nil
}

func (s memRequests) ListIncoming(ctx context.Context, userID uuid.UUID) ([]*domain.Request, error) {
	s.g.mu.Lock()
	defer s.g.mu.Unlock()
	var out []*domain.Request
	for _, r := range s.g.requests {
		if r.RequestedTo == userID && r.Status == domain.RequestPending {
			r := r
			out = append(out, &r)
		}
	}
	return out, nil
}

type memFriendships struct{ g *memGraph }

func pairKey(a, b uuid.UUID) [2]uuid.UUID {
	low, high := domain.OrderedPair(a, b)
	return [2]uuid.UUID{low, high}
}

func (s memFriendships) ExistsTx(ctx context.Context, q repository.Querier, a, b uuid.UUID) (bool, error) {
	_, ok := s.g.friendships[pairKey(a, b)]
	return ok, nil
}

func (s memFriendships) CreateTx(ctx context.Context, q repository.Querier, f *domain.Friendship) error {
	key := [2]uuid.UUID{f.UserLow, f.UserHigh}
	if _, ok := s.g.friendships[key]; ok {
		return domain.ErrFriendshipExists
	}
	s.g.friendships[key] = *f
	return nil
}

func (s memFriendships) ListFriendIDs(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	s.g.mu.Lock()
	defer s.g.mu.Unlock()
	var ids []uuid.UUID
	for _, f := range s.g.friendships {
		if f.UserLow == userID || f.UserHigh == userID {
			ids = append(ids, f.Other(userID))
		}
	}
	return ids, nil
}

type memPlans struct{ g *memGraph }

func (s memPlans) Create(ctx context.Context, plan *domain.Plan) error {
	s.g.mu.Lock()
	defer s.g.mu.Unlock()
	s.g.plans[plan.ID] = *plan
	return nil
}

func (s memPlans) GetTx(ctx context.Context, q repository.Querier, id uuid.UUID, forUpdate bool) (*domain.Plan, error) {
	p, ok := s.g.plans[id]
	if !ok {
		return nil, domain.ErrPlanNotFound
	}
	p.Collaborators = append([]uuid.UUID(nil), p.Collaborators...)
	return &p, nil
}

func (s memPlans) AddCollaboratorTx(ctx context.Context, q repository.Querier, planID, userID uuid.UUID, now time.Time) (bool, error) {
	p, ok := s.g.plans[planID]
	if !ok || p.HasCollaborator(userID) {
		return false, nil
	}
	p.Collaborators = append(append([]uuid.UUID(nil), p.Collaborators...), userID)
	p.UpdatedAt = now
	s.g.plans[planID] = p
	return true, nil
}

type memNotifications struct{ g *memGraph }

func (s memNotifications) ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]*domain.Notification, error) {
	s.g.mu.Lock()
	defer s.g.mu.Unlock()
	var out []*domain.Notification
	for _, n := range s.g.notifications {
		if n.UserID == userID && len(out) < limit {
			n := n
			out = append(out, &n)
		}
	}
	return out, nil
}

func (s memNotifications) MarkRead(ctx context.Context, id, userID uuid.UUID, now time.Time) error {
	s.g.mu.Lock()
	defer s.g.mu.Unlock()
	n, ok := s.g.notifications[id]
	if !ok || n.UserID != userID {
		return domain.ErrNotificationNotFound
	}
	if n.ReadAt == nil {
		n.ReadAt = &now
	}
	s.g.notifications[id] = n
	return nil
}

type emitted struct {
	event   string
	payload any
	room    string
}

// recordingNotifier captures side effects instead of dispatching them.
type recordingNotifier struct {
	mu       sync.Mutex
	notified []*domain.Notification
	events   []emitted
}

func (n *recordingNotifier) Notify(ctx context.Context, msg *domain.Notification) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notified = append(n.notified, msg)
}

func (n *recordingNotifier) Emit(ctx context.Context, event string, payload any, room string) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, emitted{event: event, payload: payload, room: room})
	return true
}

func (n *recordingNotifier) eventsNamed(name string) []emitted {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []emitted
	for _, e := range n.events {
		if e.event == name {
			out = append(out, e)
		}
	}
	return out
}

func (n *recordingNotifier) notificationsFor(userID uuid.UUID) []*domain.Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []*domain.Notification
	for _, msg := range n.notified {
		if msg.UserID == userID {
			out = append(out, msg)
		}
	}
	return out
}

func newTestService(g *memGraph, notifier *recordingNotifier) *RequestService {
	return NewRequestService(Deps{
		Tx:            g,
		Users:         memUsers{g},
		Requests:      memRequests{g},
		Friendships:   memFriendships{g},
		Plans:         memPlans{g},
		Notifications: memNotifications{g},
		Notifier:      notifier,
	})
}
