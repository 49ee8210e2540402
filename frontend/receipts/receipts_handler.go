package receipts

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"fleamarket/frontend/shared/api"
	sessioncontext "fleamarket/frontend/shared/context"
	"fleamarket/infrastructure/checkout"
	"fleamarket/infrastructure/session"
)

func StartHandler(env *api.Env) http.HandlerFunc {
	return env.Command(func(r *http.Request, c *checkout.Caller) (any, error) {
		return env.Checkout.Start(r.Context(), c)
	})
}

// idCommand adapts a receipt call keyed by the "id" parameter.
func idCommand(env *api.Env, fn func(r *http.Request, c *checkout.Caller, id int64) (checkout.ReceiptView, error)) http.HandlerFunc {
	return env.Command(func(r *http.Request, c *checkout.Caller) (any, error) {
		id, err := api.IntParam(r, "id")
		if err != nil {
			return nil, err
		}
		return fn(r, c, id)
	})
}

func FinishHandler(env *api.Env) http.HandlerFunc {
	return idCommand(env, func(r *http.Request, c *checkout.Caller, id int64) (checkout.ReceiptView, error) {
		return env.Checkout.Finish(r.Context(), c, id)
	})
}

func AbortHandler(env *api.Env) http.HandlerFunc {
	return idCommand(env, func(r *http.Request, c *checkout.Caller, id int64) (checkout.ReceiptView, error) {
		return env.Checkout.Abort(r.Context(), c, id)
	})
}

func SuspendHandler(env *api.Env) http.HandlerFunc {
	return idCommand(env, func(r *http.Request, c *checkout.Caller, id int64) (checkout.ReceiptView, error) {
		return env.Checkout.Suspend(r.Context(), c, id, api.Param(r, "note"))
	})
}

func ContinueHandler(env *api.Env) http.HandlerFunc {
	return idCommand(env, func(r *http.Request, c *checkout.Caller, id int64) (checkout.ReceiptView, error) {
		return env.Checkout.Continue(r.Context(), c, id)
	})
}

func ActivateHandler(env *api.Env) http.HandlerFunc {
	return idCommand(env, func(r *http.Request, c *checkout.Caller, id int64) (checkout.ReceiptView, error) {
		return env.Checkout.Activate(r.Context(), c, id)
	})
}

// GetHandler finds a receipt by "id" (optionally "type=compensation") or by
// the code of an "item" on a finished receipt.
func GetHandler(env *api.Env) http.HandlerFunc {
	return env.Command(func(r *http.Request, c *checkout.Caller) (any, error) {
		if api.Param(r, "id") != "" {
			id, err := api.IntParam(r, "id")
			if err != nil {
				return nil, err
			}
			return env.Checkout.Get(r.Context(), c, id, api.Param(r, "type") == "compensation")
		}
		if code := api.Param(r, "item"); code != "" {
			return env.Checkout.GetByItem(r.Context(), c, code)
		}
		return nil, &checkout.Error{Kind: checkout.KindBadRequest, Message: "Receipt id or item code is required."}
	})
}

func PendingHandler(env *api.Env) http.HandlerFunc {
	return env.Command(func(r *http.Request, c *checkout.Caller) (any, error) {
		return env.Checkout.Pending(r.Context(), c)
	})
}

func CompensatedHandler(env *api.Env) http.HandlerFunc {
	return env.Command(func(r *http.Request, c *checkout.Caller) (any, error) {
		vendor, err := api.IntParam(r, "vendor")
		if err != nil {
			return nil, err
		}
		return env.Checkout.Compensated(r.Context(), c, vendor)
	})
}

// PDFHandler renders the printout of a receipt.
func PDFHandler(env *api.Env) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := sessioncontext.GetSessionFromContext(r.Context())
		if !ok {
			env.WriteError(w, r, &checkout.Error{Kind: checkout.KindAuthFailed, Message: "Clerk is not logged in."})
			return
		}
		id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
		if err != nil || id <= 0 {
			env.WriteError(w, r, &checkout.Error{Kind: checkout.KindBadRequest, Message: "Invalid receipt id."})
			return
		}
		receipt, err := env.Checkout.Get(r.Context(), session.Caller(sess, r.RemoteAddr), id, api.Param(r, "type") == "compensation")
		if err != nil {
			env.WriteError(w, r, err)
			return
		}
		pdfBytes, code, err := renderReceiptPDF(receipt)
		if err != nil {
			env.WriteError(w, r, err)
			return
		}
		w.Header().Set("Content-Type", "application/pdf")
		w.Header().Set("Content-Disposition", "inline; filename=\""+code+".pdf\"")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(pdfBytes)
	}
}
