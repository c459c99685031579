package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/vidfriends/friends/internal/auth"
	"github.com/vidfriends/friends/internal/exports"
	"github.com/vidfriends/friends/internal/friends"
	"github.com/vidfriends/friends/internal/logging"
)

// FriendHandler provides friend request, listing and removal endpoints. Every
// endpoint expects the acting account on the request context.
type FriendHandler struct {
	Resolver TargetResolver
	Engine   RelationshipEngine
	Query    FriendQuery
	Exporter FriendExporter
	Limiter  RateLimiter
}

// List handles GET /api/v1/friends requests.
func (h FriendHandler) List(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	acting, ok := h.actingAccount(ctx, w)
	if !ok {
		return
	}

	if h.Query == nil {
		logging.FromContext(ctx).Error("friend query dependency unavailable")
		respondError(ctx, w, http.StatusInternalServerError, "friend services unavailable")
		return
	}

	list, err := h.Query.ListRelationships(ctx, acting)
	if err != nil {
		h.respondFailure(ctx, w, err, "unable to list friends")
		return
	}

	respondJSON(ctx, w, http.StatusOK, list)
}

// SendRequest handles POST /api/v1/friends/requests.
func (h FriendHandler) SendRequest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	logger := logging.FromContext(ctx)

	acting, ok := h.actingAccount(ctx, w)
	if !ok {
		return
	}

	if h.Resolver == nil || h.Engine == nil {
		logger.Error("friend request dependencies unavailable", "hasResolver", h.Resolver != nil, "hasEngine", h.Engine != nil)
		respondError(ctx, w, http.StatusInternalServerError, "friend services unavailable")
		return
	}

	if !allowRequest(h.Limiter, acting) {
		logger.Warn("friend request rate limited", "account", acting)
		respondError(ctx, w, http.StatusTooManyRequests, "too many friend requests, try again later")
		return
	}

	var req sendFriendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("invalid friend request payload", "error", err)
		respondError(ctx, w, http.StatusBadRequest, "invalid request body")
		return
	}

	req.FriendID = strings.TrimSpace(req.FriendID)
	req.Username = strings.TrimSpace(req.Username)
	if req.FriendID == "" && req.Username == "" {
		respondError(ctx, w, http.StatusBadRequest, "friendId or username is required")
		return
	}

	target, err := h.Resolver.Resolve(ctx, req.FriendID, req.Username)
	if err != nil {
		if errors.Is(err, friends.ErrNotFound) {
			respondError(ctx, w, http.StatusNotFound, "user not found")
			return
		}
		h.respondFailure(ctx, w, err, "unable to look up user")
		return
	}

	requestID, err := h.Engine.SendRequest(ctx, acting, target)
	if err != nil {
		switch {
		case errors.Is(err, friends.ErrConflict):
			respondError(ctx, w, http.StatusConflict, "friend request already exists")
		case errors.Is(err, friends.ErrInvalidArgument):
			respondError(ctx, w, http.StatusBadRequest, "cannot send a friend request to yourself")
		case errors.Is(err, friends.ErrNotFound):
			respondError(ctx, w, http.StatusNotFound, "user not found")
		default:
			h.respondFailure(ctx, w, err, "unable to send friend request")
		}
		return
	}

	respondJSON(ctx, w, http.StatusCreated, sendFriendResponse{RequestID: requestID})
}

// Accept handles POST /api/v1/friends/requests/{id}/accept.
func (h FriendHandler) Accept(w http.ResponseWriter, r *http.Request) {
	h.respondToRequest(w, r, http.MethodPost, "friend request accepted", func(e RelationshipEngine) func(context.Context, string, string) error {
		return e.AcceptRequest
	})
}

// Decline handles POST /api/v1/friends/requests/{id}/decline.
func (h FriendHandler) Decline(w http.ResponseWriter, r *http.Request) {
	h.respondToRequest(w, r, http.MethodPost, "friend request declined", func(e RelationshipEngine) func(context.Context, string, string) error {
		return e.DeclineRequest
	})
}

// Cancel handles DELETE /api/v1/friends/requests/{id}.
func (h FriendHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	h.respondToRequest(w, r, http.MethodDelete, "friend request cancelled", func(e RelationshipEngine) func(context.Context, string, string) error {
		return e.CancelRequest
	})
}

func (h FriendHandler) respondToRequest(w http.ResponseWriter, r *http.Request, method, message string, pick func(RelationshipEngine) func(context.Context, string, string) error) {
	if r.Method != method {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	acting, ok := h.actingAccount(ctx, w)
	if !ok {
		return
	}

	if h.Engine == nil {
		logging.FromContext(ctx).Error("relationship engine unavailable")
		respondError(ctx, w, http.StatusInternalServerError, "friend services unavailable")
		return
	}

	err := pick(h.Engine)(ctx, acting, r.PathValue("id"))
	if err != nil {
		switch {
		case errors.Is(err, friends.ErrInvalidArgument):
			respondError(ctx, w, http.StatusBadRequest, "invalid friend request id")
		case errors.Is(err, friends.ErrNotFoundOrForbidden):
			respondError(ctx, w, http.StatusNotFound, "friend request not found or not authorized")
		default:
			h.respondFailure(ctx, w, err, "unable to update friend request")
		}
		return
	}

	respondJSON(ctx, w, http.StatusOK, map[string]string{"message": message})
}

// Remove handles DELETE /api/v1/friends/{friendId}.
func (h FriendHandler) Remove(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	acting, ok := h.actingAccount(ctx, w)
	if !ok {
		return
	}

	if h.Engine == nil {
		logging.FromContext(ctx).Error("relationship engine unavailable")
		respondError(ctx, w, http.StatusInternalServerError, "friend services unavailable")
		return
	}

	if err := h.Engine.RemoveFriendship(ctx, acting, r.PathValue("friendId")); err != nil {
		switch {
		case errors.Is(err, friends.ErrInvalidArgument):
			respondError(ctx, w, http.StatusBadRequest, "invalid friend id")
		case errors.Is(err, friends.ErrNotFound):
			respondError(ctx, w, http.StatusNotFound, "friendship not found or not accepted")
		default:
			h.respondFailure(ctx, w, err, "unable to remove friend")
		}
		return
	}

	respondJSON(ctx, w, http.StatusOK, map[string]string{"message": "friend removed"})
}

// Export handles POST /api/v1/friends/export.
func (h FriendHandler) Export(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	acting, ok := h.actingAccount(ctx, w)
	if !ok {
		return
	}

	if h.Exporter == nil {
		respondError(ctx, w, http.StatusServiceUnavailable, "friend list exports are disabled")
		return
	}

	location, err := h.Exporter.Export(ctx, acting)
	if err != nil {
		if errors.Is(err, exports.ErrExportsDisabled) {
			respondError(ctx, w, http.StatusServiceUnavailable, "friend list exports are disabled")
			return
		}
		h.respondFailure(ctx, w, err, "unable to export friend list")
		return
	}

	respondJSON(ctx, w, http.StatusCreated, exportResponse{Location: location})
}

func (h FriendHandler) actingAccount(ctx context.Context, w http.ResponseWriter) (string, bool) {
	acting, ok := auth.AccountIDFromContext(ctx)
	if !ok {
		respondError(ctx, w, http.StatusUnauthorized, "authentication required")
		return "", false
	}
	return acting, true
}

func (h FriendHandler) respondFailure(ctx context.Context, w http.ResponseWriter, err error, message string) {
	logging.FromContext(ctx).Error(message, "error", err, "kind", friends.KindOf(err))
	respondError(ctx, w, http.StatusInternalServerError, message)
}

type sendFriendRequest struct {
	FriendID string `json:"friendId"`
	Username string `json:"username"`
}

type sendFriendResponse struct {
	RequestID string `json:"requestId"`
}

type exportResponse struct {
	Location string `json:"location"`
}
