package handlers

import (
	"net/http"

	"github.com/vidfriends/friends/internal/middleware"
)

// RegisterRoutes wires HTTP handlers into the provided ServeMux. Friend
// endpoints sit behind bearer token authentication when a verifier is set.
func RegisterRoutes(mux *http.ServeMux, deps Dependencies) {
	health := HealthHandler{Database: deps.Database}
	friends := FriendHandler{
		Resolver: deps.Resolver,
		Engine:   deps.Engine,
		Query:    deps.Query,
		Exporter: deps.Exporter,
		Limiter:  deps.Limiter,
	}

	protect := func(h http.HandlerFunc) http.Handler {
		if deps.Verifier == nil {
			return h
		}
		return middleware.Authenticate(deps.Verifier)(h)
	}

	mux.HandleFunc("/healthz", health.Handle)
	mux.Handle("/api/v1/friends", protect(friends.List))
	mux.Handle("/api/v1/friends/requests", protect(friends.SendRequest))
	mux.Handle("/api/v1/friends/requests/{id}/accept", protect(friends.Accept))
	mux.Handle("/api/v1/friends/requests/{id}/decline", protect(friends.Decline))
	mux.Handle("/api/v1/friends/requests/{id}", protect(friends.Cancel))
	mux.Handle("/api/v1/friends/export", protect(friends.Export))
	mux.Handle("/api/v1/friends/{friendId}", protect(friends.Remove))
}

// Dependencies aggregates collaborators required by HTTP handlers.
type Dependencies struct {
	Resolver TargetResolver
	Engine   RelationshipEngine
	Query    FriendQuery
	Exporter FriendExporter
	Limiter  RateLimiter
	Verifier middleware.TokenVerifier
	Database HealthChecker
}
