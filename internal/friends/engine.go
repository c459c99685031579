package friends

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/vidfriends/friends/internal/logging"
	"github.com/vidfriends/friends/internal/models"
	"github.com/vidfriends/friends/internal/repositories"
)

// EventPublisher receives relationship events after a state transition commits.
type EventPublisher interface {
	Publish(ctx context.Context, event models.Event) error
}

// Engine applies relationship state transitions on behalf of an acting account.
//
//	(none)   --SendRequest-->                 pending
//	pending  --AcceptRequest (addressee)-->   accepted (+ reciprocal accepted)
//	pending  --DeclineRequest (addressee)-->  (none)
//	pending  --CancelRequest (sender)-->      (none)
//	accepted --RemoveFriendship (either)-->   (none)
type Engine struct {
	Store   repositories.RelationshipStore
	Events  EventPublisher
	NowFunc func() time.Time
	NewID   func() string
}

// SendRequest creates a pending request from acting to target and returns its id.
func (e Engine) SendRequest(ctx context.Context, acting, target string) (string, error) {
	const op = "send friend request"

	ctx, span := e.startSpan(ctx, "friends.send_request", acting)
	defer span.End()

	if e.Store == nil {
		return "", internal(op, errors.New("relationship store unavailable"))
	}
	if acting == "" || target == "" {
		return "", fail(op, ErrInvalidArgument)
	}
	if acting == target {
		return "", fail(op, ErrInvalidArgument)
	}

	rel := models.Relationship{
		ID:        e.newID(),
		From:      acting,
		To:        target,
		Status:    models.StatusPending,
		CreatedAt: e.now(),
	}

	if err := e.Store.CreatePending(ctx, rel); err != nil {
		switch {
		case errors.Is(err, repositories.ErrConflict):
			return "", fail(op, ErrConflict)
		case errors.Is(err, repositories.ErrNotFound):
			return "", fail(op, ErrNotFound)
		default:
			return "", internal(op, err)
		}
	}

	e.publish(ctx, models.EventRequestSent, rel)
	return rel.ID, nil
}

// AcceptRequest accepts a pending request addressed to acting. Accepting a
// request that is already accepted succeeds and re-ensures the reciprocal
// record, but only the first acceptance publishes an event.
func (e Engine) AcceptRequest(ctx context.Context, acting, requestID string) error {
	const op = "accept friend request"

	ctx, span := e.startSpan(ctx, "friends.accept_request", acting)
	defer span.End()

	id, err := ParseRequestID(requestID)
	if err != nil {
		return fail(op, ErrInvalidArgument)
	}
	if e.Store == nil {
		return internal(op, errors.New("relationship store unavailable"))
	}

	rel, transitioned, err := e.Store.Accept(ctx, id, acting, e.newID(), e.now())
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return fail(op, ErrNotFoundOrForbidden)
		}
		return internal(op, err)
	}

	if transitioned {
		e.publish(ctx, models.EventRequestAccepted, rel)
	}
	return nil
}

// DeclineRequest discards a pending request addressed to acting.
func (e Engine) DeclineRequest(ctx context.Context, acting, requestID string) error {
	return e.deletePending(ctx, "decline friend request", "friends.decline_request", acting, requestID, false)
}

// CancelRequest withdraws a pending request sent by acting.
func (e Engine) CancelRequest(ctx context.Context, acting, requestID string) error {
	return e.deletePending(ctx, "cancel friend request", "friends.cancel_request", acting, requestID, true)
}

func (e Engine) deletePending(ctx context.Context, op, spanName, acting, requestID string, asSender bool) error {
	ctx, span := e.startSpan(ctx, spanName, acting)
	defer span.End()

	id, err := ParseRequestID(requestID)
	if err != nil {
		return fail(op, ErrInvalidArgument)
	}
	if e.Store == nil {
		return internal(op, errors.New("relationship store unavailable"))
	}

	rel, err := e.Store.DeletePending(ctx, id, acting, asSender)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return fail(op, ErrNotFoundOrForbidden)
		}
		return internal(op, err)
	}

	eventType := models.EventRequestDeclined
	if asSender {
		eventType = models.EventRequestCancelled
	}
	e.publish(ctx, eventType, rel)
	return nil
}

// RemoveFriendship deletes the accepted friendship between acting and other in
// both directions.
func (e Engine) RemoveFriendship(ctx context.Context, acting, other string) error {
	const op = "remove friendship"

	ctx, span := e.startSpan(ctx, "friends.remove_friendship", acting)
	defer span.End()

	otherID, err := uuid.Parse(strings.TrimSpace(other))
	if err != nil {
		return fail(op, ErrInvalidArgument)
	}
	other = otherID.String()
	if e.Store == nil {
		return internal(op, errors.New("relationship store unavailable"))
	}

	removed, err := e.Store.DeleteAccepted(ctx, acting, other)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return fail(op, ErrNotFound)
		}
		return internal(op, err)
	}
	if removed == 0 {
		return fail(op, ErrNotFound)
	}

	e.publish(ctx, models.EventFriendshipRemoved, models.Relationship{From: acting, To: other})
	return nil
}

// ParseRequestID normalises a request identifier taken from a URL or body,
// dropping surrounding whitespace and stray quote characters.
func ParseRequestID(raw string) (string, error) {
	cleaned := strings.NewReplacer(`"`, "", `'`, "").Replace(strings.TrimSpace(raw))
	id, err := uuid.Parse(cleaned)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

func (e Engine) publish(ctx context.Context, eventType models.EventType, rel models.Relationship) {
	if e.Events == nil {
		return
	}

	event := models.Event{
		Type:           eventType,
		RelationshipID: rel.ID,
		From:           rel.From,
		To:             rel.To,
		OccurredAt:     e.now(),
	}
	if err := e.Events.Publish(ctx, event); err != nil {
		logging.FromContext(ctx).Warn("publish relationship event failed", "event", eventType, "error", err)
	}
}

func (e Engine) startSpan(ctx context.Context, name, acting string) (context.Context, *logging.Span) {
	return logging.StartSpan(logging.With(ctx, slog.String("account_id", acting)), name)
}

func (e Engine) now() time.Time {
	if e.NowFunc != nil {
		return e.NowFunc()
	}
	return time.Now().UTC()
}

func (e Engine) newID() string {
	if e.NewID != nil {
		return e.NewID()
	}
	return uuid.NewString()
}
