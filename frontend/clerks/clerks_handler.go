package clerks

import (
	"errors"
	"net/http"

	"fleamarket/frontend/shared/api"
	"fleamarket/infrastructure/argon"
	"fleamarket/infrastructure/audit"
	"fleamarket/infrastructure/checkout"
)

func ListHandler(env *api.Env) http.HandlerFunc {
	return env.Command(func(r *http.Request, c *checkout.Caller) (any, error) {
		return ListClerks(r.Context(), env.DB, c.EventID)
	})
}

// CreateHandler adds a clerk to the caller's event.
func CreateHandler(env *api.Env, auditSvc *audit.Service) http.HandlerFunc {
	return env.Command(func(r *http.Request, c *checkout.Caller) (any, error) {
		created, err := CreateClerk(r.Context(), env.DB, auditSvc, argon.DefaultParams, c.ClerkID, c.EventID, api.Param(r, "name"), api.Param(r, "role"))
		if errors.Is(err, ErrNameRequired) || errors.Is(err, ErrInvalidRole) {
			return nil, &checkout.Error{Kind: checkout.KindBadRequest, Message: err.Error()}
		}
		if err != nil {
			return nil, err
		}
		return api.WithStatus(http.StatusCreated, created), nil
	})
}
