package handlers

import (
	"context"

	"github.com/vidfriends/friends/internal/models"
)

// TargetResolver resolves a friend target given by account id or username.
type TargetResolver interface {
	Resolve(ctx context.Context, targetID, targetName string) (string, error)
}

// RelationshipEngine applies relationship state transitions for the acting account.
type RelationshipEngine interface {
	SendRequest(ctx context.Context, acting, target string) (string, error)
	AcceptRequest(ctx context.Context, acting, requestID string) error
	DeclineRequest(ctx context.Context, acting, requestID string) error
	CancelRequest(ctx context.Context, acting, requestID string) error
	RemoveFriendship(ctx context.Context, acting, other string) error
}

// FriendQuery builds the classified friend view.
type FriendQuery interface {
	ListRelationships(ctx context.Context, acting string) (models.FriendList, error)
}

// FriendExporter writes the friend view to object storage.
type FriendExporter interface {
	Export(ctx context.Context, acting string) (string, error)
}

// HealthChecker reports whether a backing service is reachable.
type HealthChecker interface {
	Ping(ctx context.Context) error
}
