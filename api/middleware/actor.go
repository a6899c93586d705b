package middleware

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/marketledger-backend/api/responses"
	pkgerrors "github.com/angelmondragon/marketledger-backend/pkg/errors"
	"github.com/angelmondragon/marketledger-backend/pkg/logger"
)

const (
	userIDHeader = "X-User-ID"
	roleHeader   = "X-Actor-Role"
)

const (
	RoleCustomer = "customer"
	RoleVendor   = "vendor"
	RoleDriver   = "driver"
	RoleAdmin    = "admin"
	RoleSystem   = "system"
)

var knownRoles = map[string]bool{
	RoleCustomer: true,
	RoleVendor:   true,
	RoleDriver:   true,
	RoleAdmin:    true,
	RoleSystem:   true,
}

// Actor reads the caller identity stamped by the gateway after authentication.
// Requests without a valid identity are rejected before reaching handlers.
func Actor(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			role := strings.ToLower(strings.TrimSpace(r.Header.Get(roleHeader)))
			if !knownRoles[role] {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "actor role missing or unknown"))
				return
			}

			userID, err := uuid.Parse(strings.TrimSpace(r.Header.Get(userIDHeader)))
			if err != nil || userID == uuid.Nil {
				// system callers (payment callbacks, ops tooling) carry no user
				if role != RoleSystem {
					responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "user id missing or invalid"))
					return
				}
				userID = uuid.Nil
			}

			ctx := WithActor(r.Context(), userID, role)
			if logg != nil {
				ctx = logg.WithFields(ctx, map[string]any{
					"actor_role": role,
					"user_id":    userID.String(),
				})
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
