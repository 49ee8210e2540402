package clerk

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"fleamarket/frontend/shared/api"
	"fleamarket/infrastructure/argon"
	"fleamarket/infrastructure/checkout"
	"fleamarket/infrastructure/rbac"
	"fleamarket/infrastructure/session"
)

// MultipleReceipts marks a login where the clerk must pick one of several
// pending receipts.
const MultipleReceipts = "MULTIPLE"

type ClerkView struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Role string `json:"role"`
}

type LoginResponse struct {
	Clerk           ClerkView              `json:"clerk"`
	Counter         string                 `json:"counter"`
	OverseerEnabled bool                   `json:"overseer_enabled"`
	Permissions     []string               `json:"permissions"`
	Receipt         any                    `json:"receipt,omitempty"`
	Receipts        []checkout.ReceiptView `json:"receipts,omitempty"`
}

type CounterResponse struct {
	Counter   string `json:"counter"`
	EventName string `json:"event_name"`
	Name      string `json:"name"`
}

func authError(msg string) error {
	return &checkout.Error{Kind: checkout.KindAuthFailed, Message: msg}
}

// LoginHandler starts a clerk session at a counter and resumes the clerk's
// pending purchase receipt when there is exactly one.
func LoginHandler(env *api.Env) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		_, counter, err := findCounter(ctx, env.DB, env.Counters, api.Param(r, "event"), api.Param(r, "counter"))
		if err != nil {
			if errors.Is(err, errNoCounter) {
				err = authError("Counter has gone missing.")
			}
			env.WriteError(w, r, err)
			return
		}

		clerk, err := authenticateClerk(ctx, env.DB, counter.EventID, api.Param(r, "code"))
		switch {
		case errors.Is(err, argon.ErrInvalidClerkCode):
			env.WriteError(w, r, authError("Invalid clerk code."))
			return
		case errors.Is(err, errNoClerk):
			env.WriteError(w, r, authError("No such clerk."))
			return
		case err != nil:
			env.WriteError(w, r, err)
			return
		}

		endSession(r, env)

		sess := session.New(clerk, counter.ID, env.SessionTTL)
		resp := LoginResponse{
			Clerk:           ClerkView{ID: clerk.ID, Name: clerk.Name, Role: clerk.Role},
			Counter:         counter.Identifier,
			OverseerEnabled: clerk.Role == rbac.RoleOverseer,
			Permissions:     env.Roles.PermissionCodes(sess.UserRoles),
		}

		pending, err := env.Checkout.PendingForClerk(ctx, clerk.ID)
		if err != nil {
			env.WriteError(w, r, err)
			return
		}
		switch len(pending) {
		case 0:
		case 1:
			id := pending[0].ID
			sess.ReceiptID = &id
			resp.Receipt = pending[0]
		default:
			resp.Receipt = MultipleReceipts
			resp.Receipts = pending
		}

		if err := session.Insert(ctx, env.DB, sess); err != nil {
			env.WriteError(w, r, err)
			return
		}
		env.Sessions.Put(sess)
		env.Log.Info("clerk logged in",
			zap.Int64("clerk_id", clerk.ID),
			zap.String("counter", counter.Identifier),
			zap.Int("pending_receipts", len(pending)))

		http.SetCookie(w, session.SessionCookie(sess.ID, int(env.SessionTTL.Seconds()), env.SecureCookie))
		api.WriteJSON(w, http.StatusOK, resp)
	}
}

// LogoutHandler always succeeds.
func LogoutHandler(env *api.Env) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		endSession(r, env)
		http.SetCookie(w, session.SessionCookie("", -1, env.SecureCookie))
		w.WriteHeader(http.StatusOK)
	}
}

// ValidateCounterHandler returns the exact form of a counter identifier and
// logs out any clerk of the calling browser.
func ValidateCounterHandler(env *api.Env) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		event, counter, err := findCounter(r.Context(), env.DB, env.Counters, api.Param(r, "event"), api.Param(r, "code"))
		if err != nil {
			if errors.Is(err, errNoCounter) {
				err = authError("")
			}
			env.WriteError(w, r, err)
			return
		}
		endSession(r, env)
		http.SetCookie(w, session.SessionCookie("", -1, env.SecureCookie))
		api.WriteJSON(w, http.StatusOK, CounterResponse{
			Counter:   counter.Identifier,
			EventName: event.Name,
			Name:      counter.Name,
		})
	}
}

func endSession(r *http.Request, env *api.Env) {
	cookie, err := r.Cookie(session.CookieName)
	if err != nil || cookie.Value == "" {
		return
	}
	if cached, ok := env.Sessions.Get(cookie.Value); ok && cached.ReceiptID != nil {
		env.Log.Warn("session with open receipt ended",
			zap.Int64("clerk_id", cached.ClerkID),
			zap.Int64("receipt_id", *cached.ReceiptID))
	}
	env.Sessions.Delete(cookie.Value)
	if err := session.Delete(r.Context(), env.DB, cookie.Value); err != nil {
		env.Log.Error("delete session failed", zap.Error(err))
	}
}
