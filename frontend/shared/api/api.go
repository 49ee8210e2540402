// Package api holds the request plumbing shared by the checkout JSON handlers.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	sessioncontext "fleamarket/frontend/shared/context"
	"fleamarket/infrastructure/cache"
	"fleamarket/infrastructure/checkout"
	"fleamarket/infrastructure/logger"
	"fleamarket/infrastructure/session"
	"fleamarket/infrastructure/sqlite"
)

// Env bundles handler dependencies.
type Env struct {
	DB           *sqlite.DB
	Sessions     *cache.ClerkSessionCache
	Counters     *cache.CounterCache
	Roles        *cache.RbacRolesCache
	Checkout     *checkout.Service
	Log          logger.ZapLogger
	SessionTTL   time.Duration
	SecureCookie bool
}

// ErrorBody is written for every failed call.
type ErrorBody struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
	Data  any    `json:"data,omitempty"`
}

type statusBody struct {
	status int
	body   any
}

// WithStatus makes Command answer with status instead of 200.
func WithStatus(status int, body any) any {
	return statusBody{status: status, body: body}
}

// Command runs fn as the clerk of the request session. Receipt slots changed
// by fn are saved to the session before the response is written; if that
// save fails the cached session is left as it was and the call answers 500.
func (e *Env) Command(fn func(r *http.Request, c *checkout.Caller) (any, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := sessioncontext.GetSessionFromContext(r.Context())
		if !ok {
			e.WriteError(w, r, &checkout.Error{Kind: checkout.KindAuthFailed, Message: "Clerk is not logged in."})
			return
		}
		c := session.Caller(sess, r.RemoteAddr)
		result, err := fn(r, c)
		if session.ApplySlots(&sess, c) {
			if saveErr := session.SaveSlots(r.Context(), e.DB, sess); saveErr != nil {
				e.Log.Error("save session slots failed", zap.String("session_id", sess.ID), zap.Error(saveErr))
				e.WriteError(w, r, saveErr)
				return
			}
			e.Sessions.Put(sess)
		}
		if err != nil {
			e.WriteError(w, r, err)
			return
		}
		if sb, ok := result.(statusBody); ok {
			WriteJSON(w, sb.status, sb.body)
			return
		}
		WriteJSON(w, http.StatusOK, result)
	}
}

func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError maps checkout error kinds to status codes. Any other error is
// logged and answered with 500.
func (e *Env) WriteError(w http.ResponseWriter, r *http.Request, err error) {
	var ce *checkout.Error
	if !errors.As(err, &ce) {
		e.Log.Error("request failed", zap.String("path", r.URL.Path), zap.Error(err))
		WriteJSON(w, http.StatusInternalServerError, ErrorBody{Error: "internal error"})
		return
	}
	WriteJSON(w, StatusOf(ce.Kind), ErrorBody{Error: ce.Message, Kind: ce.Kind.String(), Data: ce.Data})
}

func StatusOf(kind checkout.Kind) int {
	switch kind {
	case checkout.KindBadRequest:
		return http.StatusBadRequest
	case checkout.KindNotFound:
		return http.StatusNotFound
	case checkout.KindConflict:
		return http.StatusConflict
	case checkout.KindLocked:
		return http.StatusLocked
	case checkout.KindAuthFailed:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

func Param(r *http.Request, name string) string {
	return strings.TrimSpace(r.FormValue(name))
}

func RequiredParam(r *http.Request, name string) (string, error) {
	v := Param(r, name)
	if v == "" {
		return "", &checkout.Error{Kind: checkout.KindBadRequest, Message: "Missing parameter " + name + "."}
	}
	return v, nil
}

func IntParam(r *http.Request, name string) (int64, error) {
	v, err := RequiredParam(r, name)
	if err != nil {
		return 0, err
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, &checkout.Error{Kind: checkout.KindBadRequest, Message: "Invalid " + name + "."}
	}
	return n, nil
}

// OptionalIntParam returns nil when name is absent.
func OptionalIntParam(r *http.Request, name string) (*int64, error) {
	if Param(r, name) == "" {
		return nil, nil
	}
	n, err := IntParam(r, name)
	if err != nil {
		return nil, err
	}
	return &n, nil
}

// ParsePrice converts a decimal price such as "12.5" or "12,50" to cents.
func ParsePrice(raw string) (int64, error) {
	d, err := decimal.NewFromString(strings.ReplaceAll(strings.TrimSpace(raw), ",", "."))
	if err != nil {
		return 0, &checkout.Error{Kind: checkout.KindBadRequest, Message: "Invalid price."}
	}
	cents := d.Shift(2)
	if d.IsNegative() || !cents.IsInteger() {
		return 0, &checkout.Error{Kind: checkout.KindBadRequest, Message: "Invalid price."}
	}
	return cents.IntPart(), nil
}
