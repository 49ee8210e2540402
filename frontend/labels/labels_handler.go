package labels

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"fleamarket/frontend/shared/api"
	sessioncontext "fleamarket/frontend/shared/context"
	"fleamarket/infrastructure/checkout"
)

// VendorLabelsPDFHandler prints the price tags of a vendor. A comma separated
// "codes" parameter limits the sheet to those items.
func VendorLabelsPDFHandler(env *api.Env) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session, _ := sessioncontext.GetSessionFromContext(r.Context())
		vendorID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
		if err != nil || vendorID <= 0 {
			env.WriteError(w, r, &checkout.Error{Kind: checkout.KindBadRequest, Message: "Invalid vendor id."})
			return
		}
		var codes []string
		if raw := strings.TrimSpace(r.URL.Query().Get("codes")); raw != "" {
			codes = strings.Split(raw, ",")
		}

		rows, err := loadItemLabels(r.Context(), env.DB, session.EventID, vendorID, codes)
		if err != nil {
			env.WriteError(w, r, err)
			return
		}
		if len(rows) == 0 {
			env.WriteError(w, r, &checkout.Error{Kind: checkout.KindNotFound, Message: "No items to label."})
			return
		}
		pdfBytes, err := renderItemLabelsPDF(rows)
		if err != nil {
			env.Log.Error("label render failed", zap.Int64("vendor_id", vendorID), zap.Error(err))
			http.Error(w, "failed to render labels", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/pdf")
		w.Header().Set("Content-Disposition", "inline; filename=labels-vendor-"+strconv.FormatInt(vendorID, 10)+".pdf")
		_, _ = w.Write(pdfBytes)
	}
}
