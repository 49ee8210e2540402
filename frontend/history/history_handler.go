package history

import (
	"database/sql"
	"errors"
	"net/http"

	"fleamarket/frontend/shared/api"
	"fleamarket/infrastructure/checkout"
)

// ItemHandler answers the state and override trail of an item code.
func ItemHandler(env *api.Env) http.HandlerFunc {
	return env.Command(func(r *http.Request, c *checkout.Caller) (any, error) {
		code, err := api.RequiredParam(r, "code")
		if err != nil {
			return nil, err
		}
		data, err := LoadItemHistory(r.Context(), env.DB, c.EventID, code)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &checkout.Error{Kind: checkout.KindNotFound, Message: "No item found with code " + code + "."}
		}
		return data, err
	})
}
