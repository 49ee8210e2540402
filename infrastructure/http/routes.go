package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"fleamarket/frontend/clerk"
	"fleamarket/frontend/clerks"
	"fleamarket/frontend/compensation"
	"fleamarket/frontend/exports"
	"fleamarket/frontend/history"
	"fleamarket/frontend/itemimport"
	"fleamarket/frontend/items"
	"fleamarket/frontend/labels"
	"fleamarket/frontend/receipts"
	"fleamarket/frontend/vendors"
	"fleamarket/infrastructure/audit"
	"fleamarket/infrastructure/rbac"
)

// RegisterClerkRoutes registers the calls that work without a session.
func (s *Server) RegisterClerkRoutes(r chi.Router) {
	r.Post("/counter/validate", clerk.ValidateCounterHandler(s.Env))
	r.Post("/clerk/login", clerk.LoginHandler(s.Env))
	r.Post("/clerk/logout", clerk.LogoutHandler(s.Env))
}

func (s *Server) RegisterItemRoutes(r chi.Router) {
	s.Rbac.Add(rbac.RoleClerk, "ITEM_FIND", http.MethodGet, "/api/item/find")
	r.Get("/item/find", items.FindHandler(s.Env))
	s.Rbac.Add(rbac.RoleClerk, "ITEM_LIST", http.MethodGet, "/api/item/list")
	r.Get("/item/list", items.ListHandler(s.Env))
	s.Rbac.Add(rbac.RoleClerk, "ITEM_COMPENSABLE", http.MethodGet, "/api/item/compensable")
	r.Get("/item/compensable", items.CompensableHandler(s.Env))
	s.Rbac.Add(rbac.RoleClerk, "VENDOR_RETURNABLE", http.MethodGet, "/api/vendor/returnable")
	r.Get("/vendor/returnable", items.ReturnableHandler(s.Env))
	s.Rbac.Add(rbac.RoleClerk, "BOX_LIST", http.MethodGet, "/api/box/list")
	r.Get("/box/list", items.BoxListHandler(s.Env))

	s.Rbac.Add(rbac.RoleClerk, "ITEM_CHECKIN", http.MethodPost, "/api/item/checkin")
	r.Post("/item/checkin", items.CheckInHandler(s.Env))
	s.Rbac.Add(rbac.RoleClerk, "BOX_CHECKIN", http.MethodPost, "/api/box/checkin")
	r.Post("/box/checkin", items.CheckInBoxHandler(s.Env))
	s.Rbac.Add(rbac.RoleClerk, "ITEM_CHECKOUT", http.MethodPost, "/api/item/checkout")
	r.Post("/item/checkout", items.CheckOutHandler(s.Env))
	s.Rbac.Add(rbac.RoleClerk, "ITEM_RESERVE", http.MethodPost, "/api/item/reserve")
	r.Post("/item/reserve", items.ReserveHandler(s.Env))
	s.Rbac.Add(rbac.RoleClerk, "BOX_ITEM_RESERVE", http.MethodPost, "/api/box/item/reserve")
	r.Post("/box/item/reserve", items.ReserveBoxItemHandler(s.Env))
	s.Rbac.Add(rbac.RoleClerk, "ITEM_RELEASE", http.MethodPost, "/api/item/release")
	r.Post("/item/release", items.ReleaseHandler(s.Env))
	s.Rbac.Add(rbac.RoleClerk, "ITEM_ABANDON", http.MethodPost, "/api/item/abandon")
	r.Post("/item/abandon", items.AbandonHandler(s.Env))

	s.Rbac.Add(rbac.RoleOverseer, "ITEM_SEARCH", http.MethodGet, "/api/item/search")
	r.Get("/item/search", items.SearchHandler(s.Env))
	s.Rbac.Add(rbac.RoleOverseer, "ITEM_EDIT", http.MethodPost, "/api/item/edit")
	r.Post("/item/edit", items.EditHandler(s.Env))
	s.Rbac.Add(rbac.RoleOverseer, "ITEM_MARK_LOST", http.MethodPost, "/api/item/mark_lost")
	r.Post("/item/mark_lost", items.MarkLostHandler(s.Env))
}

func (s *Server) RegisterReceiptRoutes(r chi.Router) {
	s.Rbac.Add(rbac.RoleClerk, "RECEIPT_VIEW", http.MethodGet, "/api/receipt")
	r.Get("/receipt", receipts.GetHandler(s.Env))
	s.Rbac.Add(rbac.RoleClerk, "RECEIPT_PRINT", http.MethodGet, "/api/receipt/*/pdf")
	r.Get("/receipt/{id}/pdf", receipts.PDFHandler(s.Env))
	s.Rbac.Add(rbac.RoleClerk, "RECEIPT_COMPENSATED", http.MethodGet, "/api/receipt/compensated")
	r.Get("/receipt/compensated", receipts.CompensatedHandler(s.Env))

	s.Rbac.Add(rbac.RoleClerk, "RECEIPT_START", http.MethodPost, "/api/receipt/start")
	r.Post("/receipt/start", receipts.StartHandler(s.Env))
	s.Rbac.Add(rbac.RoleClerk, "RECEIPT_FINISH", http.MethodPost, "/api/receipt/finish")
	r.Post("/receipt/finish", receipts.FinishHandler(s.Env))
	s.Rbac.Add(rbac.RoleClerk, "RECEIPT_ABORT", http.MethodPost, "/api/receipt/abort")
	r.Post("/receipt/abort", receipts.AbortHandler(s.Env))
	s.Rbac.Add(rbac.RoleClerk, "RECEIPT_SUSPEND", http.MethodPost, "/api/receipt/suspend")
	r.Post("/receipt/suspend", receipts.SuspendHandler(s.Env))
	s.Rbac.Add(rbac.RoleClerk, "RECEIPT_CONTINUE", http.MethodPost, "/api/receipt/continue")
	r.Post("/receipt/continue", receipts.ContinueHandler(s.Env))
	s.Rbac.Add(rbac.RoleClerk, "RECEIPT_ACTIVATE", http.MethodPost, "/api/receipt/activate")
	r.Post("/receipt/activate", receipts.ActivateHandler(s.Env))

	s.Rbac.Add(rbac.RoleOverseer, "RECEIPT_PENDING", http.MethodGet, "/api/receipt/pending")
	r.Get("/receipt/pending", receipts.PendingHandler(s.Env))
}

func (s *Server) RegisterCompensationRoutes(r chi.Router) {
	s.Rbac.Add(rbac.RoleClerk, "COMPENSATION_START", http.MethodPost, "/api/item/compensate/start")
	r.Post("/item/compensate/start", compensation.StartHandler(s.Env))
	s.Rbac.Add(rbac.RoleClerk, "COMPENSATION_ITEM", http.MethodPost, "/api/item/compensate")
	r.Post("/item/compensate", compensation.CompensateHandler(s.Env))
	s.Rbac.Add(rbac.RoleClerk, "COMPENSATION_END", http.MethodPost, "/api/item/compensate/end")
	r.Post("/item/compensate/end", compensation.EndHandler(s.Env))
}

func (s *Server) RegisterVendorRoutes(r chi.Router) {
	s.Rbac.Add(rbac.RoleClerk, "VENDOR_GET", http.MethodGet, "/api/vendor/get")
	r.Get("/vendor/get", vendors.GetHandler(s.Env))
	s.Rbac.Add(rbac.RoleClerk, "VENDOR_FIND", http.MethodGet, "/api/vendor/find")
	r.Get("/vendor/find", vendors.FindHandler(s.Env))
	s.Rbac.Add(rbac.RoleClerk, "VENDOR_PERMIT_CREATE", http.MethodPost, "/api/vendor/token/create")
	r.Post("/vendor/token/create", vendors.CreatePermitHandler(s.Env))

	s.Rbac.Add(rbac.RoleOverseer, "VENDOR_ITEMS_IMPORT", http.MethodPost, "/api/vendor/*/items/import")
	r.Post("/vendor/{id}/items/import", itemimport.ImportHandler(s.Env, audit.NewService()))
}

// RegisterReportRoutes registers the overseer exports, label sheets and item
// history.
func (s *Server) RegisterReportRoutes(r chi.Router) {
	s.Rbac.Add(rbac.RoleOverseer, "ITEM_HISTORY", http.MethodGet, "/api/item/history")
	r.Get("/item/history", history.ItemHandler(s.Env))
	s.Rbac.Add(rbac.RoleOverseer, "VENDOR_ITEMS_EXPORT", http.MethodGet, "/api/vendor/*/items.csv")
	r.Get("/vendor/{id}/items.csv", exports.VendorItemsCSVHandler(s.Env))
	s.Rbac.Add(rbac.RoleOverseer, "RECEIPTS_EXPORT", http.MethodGet, "/api/receipts.csv")
	r.Get("/receipts.csv", exports.ReceiptsCSVHandler(s.Env))
	s.Rbac.Add(rbac.RoleOverseer, "VENDOR_LABELS_PRINT", http.MethodGet, "/api/vendor/*/labels.pdf")
	r.Get("/vendor/{id}/labels.pdf", labels.VendorLabelsPDFHandler(s.Env))
}

// RegisterStaffRoutes lets overseers manage the clerks of their event.
func (s *Server) RegisterStaffRoutes(r chi.Router) {
	s.Rbac.Add(rbac.RoleOverseer, "CLERK_LIST", http.MethodGet, "/api/clerk/list")
	r.Get("/clerk/list", clerks.ListHandler(s.Env))
	s.Rbac.Add(rbac.RoleOverseer, "CLERK_CREATE", http.MethodPost, "/api/clerk/create")
	r.Post("/clerk/create", clerks.CreateHandler(s.Env, audit.NewService()))
}
