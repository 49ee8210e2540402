package exports

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"fleamarket/frontend/shared/api"
	sessioncontext "fleamarket/frontend/shared/context"
)

// VendorItemsCSVHandler exports the settlement sheet of a vendor.
func VendorItemsCSVHandler(env *api.Env) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session, _ := sessioncontext.GetSessionFromContext(r.Context())
		vendorID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
		if err != nil || vendorID <= 0 {
			http.Error(w, "invalid vendor id", http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", "attachment; filename=vendor-"+strconv.FormatInt(vendorID, 10)+".csv")
		if err := writeVendorItemsCSV(r.Context(), env.DB, w, session.EventID, vendorID); err != nil {
			env.Log.Error("vendor csv export failed", zap.Int64("vendor_id", vendorID), zap.Error(err))
			http.Error(w, "failed to export csv", http.StatusInternalServerError)
			return
		}
	}
}

// ReceiptsCSVHandler exports every receipt of the session's event.
func ReceiptsCSVHandler(env *api.Env) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session, _ := sessioncontext.GetSessionFromContext(r.Context())
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", "attachment; filename=receipts.csv")
		if err := writeReceiptsCSV(r.Context(), env.DB, w, session.EventID); err != nil {
			env.Log.Error("receipts csv export failed", zap.Int64("event_id", session.EventID), zap.Error(err))
			http.Error(w, "failed to export csv", http.StatusInternalServerError)
			return
		}
	}
}
