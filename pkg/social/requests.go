package social

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/tendant/planhub/pkg/domain"
	"github.com/tendant/planhub/pkg/repository"
)

// ChatPayload is the newChat event body. Friend is always the other party
// from the receiving user's point of view.
type ChatPayload struct {
	RequestID uuid.UUID      `json:"request_id"`
	Friend    domain.Profile `json:"friend"`
}

// RequestUpdate is the requestUpdated event body.
type RequestUpdate struct {
	RequestID uuid.UUID            `json:"request_id"`
	Type      domain.RequestType   `json:"type"`
	Status    domain.RequestStatus `json:"status"`
	PlanID    *uuid.UUID           `json:"plan_id,omitempty"`
	By        domain.Profile       `json:"by"`
}

// PendingRequest is an incoming request with its sender's profile.
type PendingRequest struct {
	*domain.Request
	From domain.Profile `json:"from"`
}

// Deps groups the collaborators of RequestService.
type Deps struct {
	Tx            repository.Transactor
	Users         UserStore
	Requests      RequestStore
	Friendships   FriendshipStore
	Plans         PlanStore
	Notifications NotificationStore
	Notifier      Notifier
	Logger        *slog.Logger
}

// RequestService runs the friend and plan-join request state machine.
type RequestService struct {
	tx            repository.Transactor
	users         UserStore
	requests      RequestStore
	friendships   FriendshipStore
	plans         PlanStore
	notifications NotificationStore
	notifier      Notifier
	logger        *slog.Logger
	now           func() time.Time
}

// NewRequestService creates a request service.
func NewRequestService(deps Deps) *RequestService {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &RequestService{
		tx:            deps.Tx,
		users:         deps.Users,
		requests:      deps.Requests,
		friendships:   deps.Friendships,
		plans:         deps.Plans,
		notifications: deps.Notifications,
		notifier:      deps.Notifier,
		logger:        deps.Logger,
		now:           time.Now,
	}
}

// SendFriendRequest creates a pending friend request from -> to.
func (s *RequestService) SendFriendRequest(ctx context.Context, from, to uuid.UUID) (*domain.Request, error) {
	if from == to {
		return nil, domain.ErrRequestToSelf
	}

	var req *domain.Request
	var sender *domain.User
	err := s.tx.WithTx(ctx, func(q repository.Querier) error {
		var err error
		sender, _, err = s.participants(ctx, q, from, to)
		if err != nil {
			return err
		}

		friends, err := s.friendships.ExistsTx(ctx, q, from, to)
		if err != nil {
			return err
		}
		if friends {
			return domain.ErrFriendshipExists
		}
		if err := s.checkNoPending(ctx, q, from, to, domain.RequestFriend, nil); err != nil {
			return err
		}

		req = s.newRequest(from, to, domain.RequestFriend, nil)
		return s.requests.CreateTx(ctx, q, req)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("friend request sent", "request_id", req.ID, "from", from, "to", to)
	s.notify(ctx, to, sender, domain.NotificationFriendRequest, req,
		"New friend request", sender.Name+" sent you a friend request")
	return req, nil
}

// SendPlanRequest creates a pending plan-join request. Either the owner
// invites another user or another user asks the owner to join.
func (s *RequestService) SendPlanRequest(ctx context.Context, from, to, planID uuid.UUID) (*domain.Request, error) {
	if from == to {
		return nil, domain.ErrRequestToSelf
	}

	var req *domain.Request
	var sender *domain.User
	var plan *domain.Plan
	err := s.tx.WithTx(ctx, func(q repository.Querier) error {
		var err error
		sender, _, err = s.participants(ctx, q, from, to)
		if err != nil {
			return err
		}

		plan, err = s.plans.GetTx(ctx, q, planID, false)
		if err != nil {
			return err
		}
		joiner, ok := plan.NonOwner(from, to)
		if !ok {
			return domain.ErrPlanRequestInvalid
		}
		if plan.HasCollaborator(joiner) {
			return domain.ErrPlanMembership
		}
		if err := s.checkNoPending(ctx, q, from, to, domain.RequestPlan, &planID); err != nil {
			return err
		}

		req = s.newRequest(from, to, domain.RequestPlan, &planID)
		return s.requests.CreateTx(ctx, q, req)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("plan request sent", "request_id", req.ID, "plan_id", planID, "from", from, "to", to)
	body := fmt.Sprintf("%s invited you to join %q", sender.Name, plan.Title)
	if from != plan.OwnerID {
		body = fmt.Sprintf("%s asked to join %q", sender.Name, plan.Title)
	}
	s.notify(ctx, to, sender, domain.NotificationPlanRequest, req, "New plan request", body)
	return req, nil
}

// Accept accepts a pending request addressed to userID.
func (s *RequestService) Accept(ctx context.Context, userID, requestID uuid.UUID) (*domain.Request, error) {
	return s.respond(ctx, userID, requestID, domain.RequestAccepted)
}

// Reject rejects a pending request addressed to userID.
func (s *RequestService) Reject(ctx context.Context, userID, requestID uuid.UUID) (*domain.Request, error) {
	return s.respond(ctx, userID, requestID, domain.RequestRejected)
}

func (s *RequestService) respond(ctx context.Context, userID, requestID uuid.UUID, status domain.RequestStatus) (*domain.Request, error) {
	var req *domain.Request
	var requester, recipient *domain.User
	err := s.tx.WithTx(ctx, func(q repository.Querier) error {
		var err error
		req, err = s.requests.GetForUpdateTx(ctx, q, requestID)
		if err != nil {
			return err
		}
		if req.RequestedTo != userID {
			return domain.ErrRequestNotRecipient
		}
		if !req.Status.CanTransition(status) {
			return domain.ErrRequestAlreadyProcessed
		}

		recipient, err = s.users.GetByIDTx(ctx, q, req.RequestedTo)
		if err != nil {
			return err
		}
		requester, err = s.users.GetByIDTx(ctx, q, req.RequestedBy)
		if err != nil {
			if errors.Is(err, domain.ErrUserNotFound) {
				return domain.ErrTargetUnavailable
			}
			return err
		}

		now := s.now()
		if status == domain.RequestAccepted {
			switch req.Type {
			case domain.RequestFriend:
				err = s.befriend(ctx, q, req, now)
			case domain.RequestPlan:
				err = s.joinPlan(ctx, q, req, now)
			default:
				err = fmt.Errorf("unknown request type %q", req.Type)
			}
			if err != nil {
				return err
			}
		}

		if err := s.requests.TransitionTx(ctx, q, req.ID, status, now); err != nil {
			return err
		}
		req.Status = status
		req.UpdatedAt = now
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("request answered", "request_id", req.ID, "type", req.Type, "status", status)
	s.afterRespond(ctx, req, requester, recipient)
	return req, nil
}

// befriend creates the friendship. The existence check runs under the
// request row lock; the unique pair index catches anything that slips by.
func (s *RequestService) befriend(ctx context.Context, q repository.Querier, req *domain.Request, now time.Time) error {
	exists, err := s.friendships.ExistsTx(ctx, q, req.RequestedBy, req.RequestedTo)
	if err != nil {
		return err
	}
	if exists {
		return domain.ErrFriendshipExists
	}
	return s.friendships.CreateTx(ctx, q, domain.NewFriendship(req.RequestedBy, req.RequestedTo, req.ID, now))
}

// joinPlan adds whichever participant is not the stored owner.
func (s *RequestService) joinPlan(ctx context.Context, q repository.Querier, req *domain.Request, now time.Time) error {
	if req.PlanID == nil {
		return domain.ErrPlanRequestInvalid
	}
	plan, err := s.plans.GetTx(ctx, q, *req.PlanID, true)
	if err != nil {
		return err
	}
	joiner, ok := plan.NonOwner(req.RequestedBy, req.RequestedTo)
	if !ok {
		return domain.ErrPlanRequestInvalid
	}
	added, err := s.plans.AddCollaboratorTx(ctx, q, plan.ID, joiner, now)
	if err != nil {
		return err
	}
	if !added {
		s.logger.Info("collaborator already on plan", "plan_id", plan.ID, "user_id", joiner)
	}
	return nil
}

func (s *RequestService) afterRespond(ctx context.Context, req *domain.Request, requester, recipient *domain.User) {
	var typ domain.NotificationType
	var title, body string
	switch {
	case req.Type == domain.RequestFriend && req.Status == domain.RequestAccepted:
		typ, title, body = domain.NotificationFriendAccepted, "Friend request accepted", recipient.Name+" accepted your friend request"
	case req.Type == domain.RequestFriend:
		typ, title, body = domain.NotificationFriendRejected, "Friend request declined", recipient.Name+" declined your friend request"
	case req.Status == domain.RequestAccepted:
		typ, title, body = domain.NotificationPlanAccepted, "Plan request accepted", recipient.Name+" accepted your plan request"
	default:
		typ, title, body = domain.NotificationPlanRejected, "Plan request declined", recipient.Name+" declined your plan request"
	}
	s.notify(ctx, requester.ID, recipient, typ, req, title, body)

	if s.notifier == nil {
		return
	}
	s.notifier.Emit(ctx, domain.EventRequestUpdate, RequestUpdate{
		RequestID: req.ID,
		Type:      req.Type,
		Status:    req.Status,
		PlanID:    req.PlanID,
		By:        recipient.Profile(),
	}, domain.UserRoom(requester.ID))

	if req.Type == domain.RequestFriend && req.Status == domain.RequestAccepted {
		s.notifier.Emit(ctx, domain.EventNewChat, ChatPayload{RequestID: req.ID, Friend: recipient.Profile()}, domain.UserRoom(requester.ID))
		s.notifier.Emit(ctx, domain.EventNewChat, ChatPayload{RequestID: req.ID, Friend: requester.Profile()}, domain.UserRoom(recipient.ID))
	}
}

// participants loads the sender and target of a new request inside the
// transaction. A missing or inactive target is reported the same way.
func (s *RequestService) participants(ctx context.Context, q repository.Querier, from, to uuid.UUID) (*domain.User, *domain.User, error) {
	sender, err := s.users.GetByIDTx(ctx, q, from)
	if err != nil {
		return nil, nil, err
	}
	target, err := s.users.GetByIDTx(ctx, q, to)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, nil, domain.ErrTargetUnavailable
		}
		return nil, nil, err
	}
	if !target.IsActive() {
		return nil, nil, domain.ErrTargetUnavailable
	}
	return sender, target, nil
}

func (s *RequestService) checkNoPending(ctx context.Context, q repository.Querier, a, b uuid.UUID, typ domain.RequestType, planID *uuid.UUID) error {
	_, err := s.requests.FindPendingTx(ctx, q, a, b, typ, planID)
	switch {
	case err == nil:
		return domain.ErrRequestPending
	case errors.Is(err, domain.ErrRequestNotFound):
		return nil
	default:
		return err
	}
}

func (s *RequestService) newRequest(from, to uuid.UUID, typ domain.RequestType, planID *uuid.UUID) *domain.Request {
	now := s.now()
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

func (s *RequestService) notify(ctx context.Context, userID uuid.UUID, actor *domain.User, typ domain.NotificationType, req *domain.Request, title, body string) {
	if s.notifier == nil {
		return
	}
	data, err := json.Marshal(map[string]any{
		"request_id": req.ID,
		"type":       req.Type,
		"status":     req.Status,
		"plan_id":    req.PlanID,
		"actor":      actor.Profile(),
	})
	if err != nil {
		s.logger.Warn("failed to encode notification data", "request_id", req.ID, "error", err)
	}
	actorID := actor.ID
	s.notifier.Notify(ctx, &domain.Notification{
		ID:        uuid.New(),
		UserID:    userID,
		ActorID:   &actorID,
		Type:      typ,
		Title:     title,
		Body:      body,
		Data:      data,
		CreatedAt: s.now(),
	})
}

// ListPending returns the pending requests addressed to userID.
func (s *RequestService) ListPending(ctx context.Context, userID uuid.UUID) ([]PendingRequest, error) {
	reqs, err := s.requests.ListIncoming(ctx, userID)
	if err != nil {
		return nil, err
	}

	ids := make([]uuid.UUID, 0, len(reqs))
	for _, r := range reqs {
		ids = append(ids, r.RequestedBy)
	}
	profiles, err := s.users.ProfilesByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[uuid.UUID]domain.Profile, len(profiles))
	for _, p := range profiles {
		byID[p.ID] = p
	}

	out := make([]PendingRequest, 0, len(reqs))
	for _, r := range reqs {
		from, ok := byID[r.RequestedBy]
		if !ok {
			// Sender deleted the account since.
			continue
		}
		out = append(out, PendingRequest{Request: r, From: from})
	}
	return out, nil
}

// ListFriends returns the profiles of userID's friends.
func (s *RequestService) ListFriends(ctx context.Context, userID uuid.UUID) ([]domain.Profile, error) {
	ids, err := s.friendships.ListFriendIDs(ctx, userID)
	if err != nil {
		return nil, err
	}
	profiles, err := s.users.ProfilesByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	if profiles == nil {
		profiles = []domain.Profile{}
	}
	return profiles, nil
}

const (
	defaultNotificationLimit = 50
	maxNotificationLimit     = 200
)

// ListNotifications returns userID's latest notifications.
func (s *RequestService) ListNotifications(ctx context.Context, userID uuid.UUID, limit int) ([]*domain.Notification, error) {
	if limit <= 0 {
		limit = defaultNotificationLimit
	}
	if limit > maxNotificationLimit {
		limit = maxNotificationLimit
	}
	list, err := s.notifications.ListByUser(ctx, userID, limit)
	if err != nil {
		return nil, err
	}
	if list == nil {
		list = []*domain.Notification{}
	}
	return list, nil
}

// MarkNotificationRead marks one of userID's notifications as read.
func (s *RequestService) MarkNotificationRead(ctx context.Context, userID, notificationID uuid.UUID) error {
	return s.notifications.MarkRead(ctx, notificationID, userID, s.now())
}
