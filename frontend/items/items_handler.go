package items

import (
	"net/http"
	"strings"

	"fleamarket/frontend/shared/api"
	"fleamarket/infrastructure/checkout"
)

// FindHandler looks an item up by code. With "available" set the item is
// checked against the reservation rules.
func FindHandler(env *api.Env) http.HandlerFunc {
	return env.Command(func(r *http.Request, c *checkout.Caller) (any, error) {
		code, err := api.RequiredParam(r, "code")
		if err != nil {
			return nil, err
		}
		_, available := r.URL.Query()["available"]
		return env.Checkout.Find(r.Context(), c, code, available)
	})
}

// CheckInHandler answers 202 when the code belongs to a box whose members
// must be confirmed through the box check-in call.
func CheckInHandler(env *api.Env) http.HandlerFunc {
	return env.Command(func(r *http.Request, c *checkout.Caller) (any, error) {
		code, err := api.RequiredParam(r, "code")
		if err != nil {
			return nil, err
		}
		res, err := env.Checkout.CheckIn(r.Context(), c, code)
		if err != nil {
			return nil, err
		}
		if res.Accepted {
			return api.WithStatus(http.StatusAccepted, res.ItemView), nil
		}
		return res.ItemView, nil
	})
}

func CheckInBoxHandler(env *api.Env) http.HandlerFunc {
	return env.Command(func(r *http.Request, c *checkout.Caller) (any, error) {
		code, err := api.RequiredParam(r, "code")
		if err != nil {
			return nil, err
		}
		return env.Checkout.CheckInBox(r.Context(), c, code)
	})
}

func CheckOutHandler(env *api.Env) http.HandlerFunc {
	return env.Command(func(r *http.Request, c *checkout.Caller) (any, error) {
		code, err := api.RequiredParam(r, "code")
		if err != nil {
			return nil, err
		}
		vendor, err := api.OptionalIntParam(r, "vendor")
		if err != nil {
			return nil, err
		}
		return env.Checkout.CheckOut(r.Context(), c, code, vendor)
	})
}

func ReserveHandler(env *api.Env) http.HandlerFunc {
	return env.Command(func(r *http.Request, c *checkout.Caller) (any, error) {
		code, err := api.RequiredParam(r, "code")
		if err != nil {
			return nil, err
		}
		return env.Checkout.Reserve(r.Context(), c, code)
	})
}

func ReserveBoxItemHandler(env *api.Env) http.HandlerFunc {
	return env.Command(func(r *http.Request, c *checkout.Caller) (any, error) {
		code, err := api.RequiredParam(r, "code")
		if err != nil {
			return nil, err
		}
		return env.Checkout.ReserveBoxItem(r.Context(), c, code)
	})
}

func ReleaseHandler(env *api.Env) http.HandlerFunc {
	return env.Command(func(r *http.Request, c *checkout.Caller) (any, error) {
		code, err := api.RequiredParam(r, "code")
		if err != nil {
			return nil, err
		}
		return env.Checkout.Release(r.Context(), c, code)
	})
}

func EditHandler(env *api.Env) http.HandlerFunc {
	return env.Command(func(r *http.Request, c *checkout.Caller) (any, error) {
		code, err := api.RequiredParam(r, "code")
		if err != nil {
			return nil, err
		}
		rawPrice, err := api.RequiredParam(r, "price")
		if err != nil {
			return nil, err
		}
		price, err := api.ParsePrice(rawPrice)
		if err != nil {
			return nil, err
		}
		state, err := api.RequiredParam(r, "state")
		if err != nil {
			return nil, err
		}
		return env.Checkout.Edit(r.Context(), c, code, price, state)
	})
}

func MarkLostHandler(env *api.Env) http.HandlerFunc {
	return env.Command(func(r *http.Request, c *checkout.Caller) (any, error) {
		code, err := api.RequiredParam(r, "code")
		if err != nil {
			return nil, err
		}
		return env.Checkout.MarkLost(r.Context(), c, code)
	})
}

// SearchHandler reads the overseer search form. Item types and states are
// space separated lists.
func SearchHandler(env *api.Env) http.HandlerFunc {
	return env.Command(func(r *http.Request, c *checkout.Caller) (any, error) {
		q := checkout.SearchQuery{
			Query:  api.Param(r, "query"),
			Code:   api.Param(r, "code"),
			Types:  strings.Fields(api.Param(r, "item_type")),
			States: strings.Fields(api.Param(r, "item_state")),
		}
		var err error
		if q.VendorID, err = api.OptionalIntParam(r, "vendor"); err != nil {
			return nil, err
		}
		if q.MinPrice, err = optionalPrice(r, "min_price"); err != nil {
			return nil, err
		}
		if q.MaxPrice, err = optionalPrice(r, "max_price"); err != nil {
			return nil, err
		}
		switch api.Param(r, "show_hidden") {
		case "true", "1", "on":
			q.IncludeHidden = true
		}
		return env.Checkout.SearchItems(r.Context(), c, q)
	})
}

func optionalPrice(r *http.Request, name string) (*int64, error) {
	raw := api.Param(r, name)
	if raw == "" {
		return nil, nil
	}
	cents, err := api.ParsePrice(raw)
	if err != nil {
		return nil, err
	}
	return &cents, nil
}

type abandonResponse struct {
	Abandoned int64 `json:"abandoned"`
}

func AbandonHandler(env *api.Env) http.HandlerFunc {
	return env.Command(func(r *http.Request, c *checkout.Caller) (any, error) {
		vendor, err := api.IntParam(r, "vendor")
		if err != nil {
			return nil, err
		}
		n, err := env.Checkout.Abandon(r.Context(), c, vendor)
		if err != nil {
			return nil, err
		}
		return abandonResponse{Abandoned: n}, nil
	})
}

// vendorQuery adapts a read call keyed by the "vendor" parameter.
func vendorQuery[T any](env *api.Env, fn func(s *checkout.Service, r *http.Request, c *checkout.Caller, vendorID int64) (T, error)) http.HandlerFunc {
	return env.Command(func(r *http.Request, c *checkout.Caller) (any, error) {
		vendor, err := api.IntParam(r, "vendor")
		if err != nil {
			return nil, err
		}
		return fn(env.Checkout, r, c, vendor)
	})
}

func ListHandler(env *api.Env) http.HandlerFunc {
	return vendorQuery(env, func(s *checkout.Service, r *http.Request, c *checkout.Caller, vendorID int64) ([]checkout.ItemView, error) {
		return s.ItemList(r.Context(), c, vendorID)
	})
}

func ReturnableHandler(env *api.Env) http.HandlerFunc {
	return vendorQuery(env, func(s *checkout.Service, r *http.Request, c *checkout.Caller, vendorID int64) ([]checkout.ItemView, error) {
		return s.VendorReturnable(r.Context(), c, vendorID)
	})
}

func BoxListHandler(env *api.Env) http.HandlerFunc {
	return vendorQuery(env, func(s *checkout.Service, r *http.Request, c *checkout.Caller, vendorID int64) ([]checkout.BoxSummary, error) {
		return s.BoxList(r.Context(), c, vendorID)
	})
}

func CompensableHandler(env *api.Env) http.HandlerFunc {
	return vendorQuery(env, func(s *checkout.Service, r *http.Request, c *checkout.Caller, vendorID int64) (checkout.CompensableView, error) {
		return s.CompensableItems(r.Context(), c, vendorID)
	})
}
