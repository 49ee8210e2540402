package itemimport

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"fleamarket/frontend/shared/api"
	"fleamarket/infrastructure/audit"
	"fleamarket/infrastructure/checkout"
)

// ImportHandler reads the "file" upload and registers its rows for the
// vendor in the path.
func ImportHandler(env *api.Env, auditSvc *audit.Service) http.HandlerFunc {
	return env.Command(func(r *http.Request, c *checkout.Caller) (any, error) {
		vendorID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
		if err != nil || vendorID <= 0 {
			return nil, &checkout.Error{Kind: checkout.KindBadRequest, Message: "Invalid vendor id."}
		}
		if err := r.ParseMultipartForm(10 << 20); err != nil {
			return nil, &checkout.Error{Kind: checkout.KindBadRequest, Message: "Invalid upload."}
		}
		file, _, err := r.FormFile("file")
		if err != nil {
			return nil, &checkout.Error{Kind: checkout.KindBadRequest, Message: "File is required."}
		}
		defer file.Close()

		summary, err := ImportCSV(r.Context(), env.DB, auditSvc, c.ClerkID, c.EventID, vendorID, file)
		switch {
		case errors.Is(err, ErrNoVendor):
			return nil, &checkout.Error{Kind: checkout.KindNotFound, Message: "No such vendor."}
		case errors.Is(err, ErrInvalidHeader):
			return nil, &checkout.Error{Kind: checkout.KindBadRequest, Message: "Invalid CSV header, expected code,name,price."}
		}
		return summary, err
	})
}
