package vendors

import (
	"net/http"

	"fleamarket/frontend/shared/api"
	"fleamarket/infrastructure/checkout"
)

// GetHandler finds a vendor by "id" or by the "code" of one of its items.
func GetHandler(env *api.Env) http.HandlerFunc {
	return env.Command(func(r *http.Request, c *checkout.Caller) (any, error) {
		id, err := api.OptionalIntParam(r, "id")
		if err != nil {
			return nil, err
		}
		return env.Checkout.Vendor(r.Context(), c, id, api.Param(r, "code"))
	})
}

func FindHandler(env *api.Env) http.HandlerFunc {
	return env.Command(func(r *http.Request, c *checkout.Caller) (any, error) {
		q, err := api.RequiredParam(r, "q")
		if err != nil {
			return nil, err
		}
		return env.Checkout.FindVendors(r.Context(), c, q)
	})
}

// CreatePermitHandler issues a new short code for vendor self-service access.
func CreatePermitHandler(env *api.Env) http.HandlerFunc {
	return env.Command(func(r *http.Request, c *checkout.Caller) (any, error) {
		vendor, err := api.IntParam(r, "vendor_id")
		if err != nil {
			return nil, err
		}
		return env.Checkout.CreateVendorPermit(r.Context(), c, vendor)
	})
}
