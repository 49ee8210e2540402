package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	sessioncontext "fleamarket/frontend/shared/context"
	"fleamarket/infrastructure/cache"
	"fleamarket/infrastructure/checkout"
	"fleamarket/infrastructure/logger"
	"fleamarket/infrastructure/sqlite"
	"fleamarket/models"
)

func TestParsePrice(t *testing.T) {
	cases := []struct {
		raw  string
		want int64
		ok   bool
	}{
		{raw: "12", want: 1200, ok: true},
		{raw: "12.5", want: 1250, ok: true},
		{raw: "0,05", want: 5, ok: true},
		{raw: "1.005", ok: false},
		{raw: "-1", ok: false},
		{raw: "abc", ok: false},
	}
	for _, tc := range cases {
		got, err := ParsePrice(tc.raw)
		if tc.ok && (err != nil || got != tc.want) {
			t.Fatalf("price %q: expected %d, got %d err=%v", tc.raw, tc.want, got, err)
		}
		if !tc.ok && !checkout.IsKind(err, checkout.KindBadRequest) {
			t.Fatalf("price %q: expected bad request, got %v", tc.raw, err)
		}
	}
}

func TestWriteErrorMapsKinds(t *testing.T) {
	env := &Env{Log: logger.NewNop()}
	req := httptest.NewRequest(http.MethodPost, "/api/item/reserve", nil)

	cases := []struct {
		err    error
		status int
	}{
		{err: &checkout.Error{Kind: checkout.KindBadRequest, Message: "bad"}, status: http.StatusBadRequest},
		{err: &checkout.Error{Kind: checkout.KindNotFound, Message: "missing"}, status: http.StatusNotFound},
		{err: &checkout.Error{Kind: checkout.KindConflict, Message: "conflict"}, status: http.StatusConflict},
		{err: &checkout.Error{Kind: checkout.KindLocked, Message: "locked", Data: map[string]int{"id": 1}}, status: http.StatusLocked},
		{err: &checkout.Error{Kind: checkout.KindAuthFailed, Message: "auth"}, status: http.StatusUnauthorized},
		{err: errors.New("disk on fire"), status: http.StatusInternalServerError},
	}
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		env.WriteError(rec, req, tc.err)
		if rec.Code != tc.status {
			t.Fatalf("%v: expected status %d, got %d", tc.err, tc.status, rec.Code)
		}
		var body ErrorBody
		if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
			t.Fatalf("decode error body: %v", err)
		}
		if tc.status == http.StatusInternalServerError && body.Error != "internal error" {
			t.Fatalf("internal errors must not leak, got %q", body.Error)
		}
		if tc.status == http.StatusLocked && body.Data == nil {
			t.Fatalf("locked error should carry data")
		}
	}
}

func TestOptionalIntParam(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/item/checkout?vendor=3&bad=x", nil)
	v, err := OptionalIntParam(req, "vendor")
	if err != nil || v == nil || *v != 3 {
		t.Fatalf("expected vendor 3, got %v err=%v", v, err)
	}
	v, err = OptionalIntParam(req, "missing")
	if err != nil || v != nil {
		t.Fatalf("expected nil for missing param, got %v err=%v", v, err)
	}
	if _, err := OptionalIntParam(req, "bad"); !checkout.IsKind(err, checkout.KindBadRequest) {
		t.Fatalf("expected bad request for non-numeric param, got %v", err)
	}
}

func TestCommandFailsWhenSlotsCannotBeSaved(t *testing.T) {
	// No migrations: the clerk_sessions table is missing, so saving slots fails.
	db, err := sqlite.OpenDB(filepath.Join(t.TempDir(), "bare.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() {
		_ = db.Close()
	})
	sessions := cache.NewClerkSessionCache()
	sess := models.ClerkSession{ID: "token-1", ClerkID: 1, CounterID: 1, EventID: 1}
	sessions.Put(sess)
	env := &Env{DB: db, Sessions: sessions, Log: logger.NewNop()}

	handler := env.Command(func(r *http.Request, c *checkout.Caller) (any, error) {
		id := int64(7)
		c.ReceiptID = &id
		return map[string]int64{"id": id}, nil
	})
	req := httptest.NewRequest(http.MethodPost, "/api/receipt/start", nil)
	req = req.WithContext(sessioncontext.NewContextWithSession(req.Context(), sess))
	rec := httptest.NewRecorder()
	handler(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	cached, ok := sessions.Get("token-1")
	if !ok || cached.ReceiptID != nil {
		t.Fatalf("cached session must keep its old slots, got %+v", cached.ReceiptID)
	}
}
