package compensation

import (
	"net/http"

	"fleamarket/frontend/shared/api"
	"fleamarket/infrastructure/checkout"
)

// StartHandler opens the compensation receipt of a vendor on the session.
func StartHandler(env *api.Env) http.HandlerFunc {
	return env.Command(func(r *http.Request, c *checkout.Caller) (any, error) {
		vendor, err := api.IntParam(r, "vendor")
		if err != nil {
			return nil, err
		}
		return env.Checkout.StartCompensation(r.Context(), c, vendor)
	})
}

func CompensateHandler(env *api.Env) http.HandlerFunc {
	return env.Command(func(r *http.Request, c *checkout.Caller) (any, error) {
		code, err := api.RequiredParam(r, "code")
		if err != nil {
			return nil, err
		}
		return env.Checkout.Compensate(r.Context(), c, code)
	})
}

// EndHandler books provision rows and closes the session's compensation.
func EndHandler(env *api.Env) http.HandlerFunc {
	return env.Command(func(r *http.Request, c *checkout.Caller) (any, error) {
		return env.Checkout.EndCompensation(r.Context(), c)
	})
}
