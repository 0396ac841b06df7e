// Package auth resolves the acting identity of every API request. A
// request may carry a locally signed bearer token, an IdP-issued token
// (Authorization or X-SSO-Token), or plain assertion headers; the
// resolver walks those in priority order and yields an ActorContext or
// an authentication error.
package auth

import (
	"context"
	"strings"
)

// Roles recognized across the system.
const (
	RoleRequester = "requester"
	RoleReviewer  = "reviewer"
	RoleApprover  = "approver"
	RoleAdmin     = "admin"
)

var validRoles = map[string]struct{}{
	RoleRequester: {},
	RoleReviewer:  {},
	RoleApprover:  {},
	RoleAdmin:     {},
}

// ValidRole reports whether role (already normalized) is recognized.
func ValidRole(role string) bool {
	_, ok := validRoles[role]
	return ok
}

// NormalizeRole lowercases and trims a raw role value.
func NormalizeRole(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}

// Credential sources, in resolution priority order.
const (
	SourceJWT    = "jwt"
	SourceIDP    = "idp"
	SourceSSO    = "sso"
	SourceHeader = "header"
)

// ActorContext identifies who is making a request and how they proved
// it.
type ActorContext struct {
	ActorID string `json:"actor_id"`
	Role    string `json:"actor_role"`
	Source  string `json:"source"`
}

type contextKey string

const actorKey contextKey = "actor"

// WithActor attaches the resolved actor to the context.
func WithActor(ctx context.Context, actor ActorContext) context.Context {
	return context.WithValue(ctx, actorKey, actor)
}

// ActorFrom retrieves the actor placed by the auth middleware.
func ActorFrom(ctx context.Context) (ActorContext, bool) {
	actor, ok := ctx.Value(actorKey).(ActorContext)
	return actor, ok
}
