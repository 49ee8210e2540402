package http

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/uptrace/bun"

	"fleamarket/frontend/shared/api"
	"fleamarket/infrastructure/argon"
	"fleamarket/infrastructure/cache"
	"fleamarket/infrastructure/checkout"
	"fleamarket/infrastructure/logger"
	"fleamarket/infrastructure/rbac"
	"fleamarket/infrastructure/sqlite"
)

var testKeyParams = &argon.Params{Memory: 1024, Iterations: 1, Parallelism: 1, SaltLength: 8, KeyLength: 16}

type integrationEnv struct {
	server *httptest.Server
	db     *sqlite.DB
}

func setupIntegrationServer(t *testing.T) (*integrationEnv, *http.Client) {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "server-integration.db")
	db, err := sqlite.OpenDB(dbPath)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}

	_, file, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatalf("runtime caller unavailable")
	}
	migrationsDir := filepath.Join(filepath.Dir(file), "..", "sqlite", "migrations")
	if err := sqlite.ApplyMigrations(context.Background(), db, migrationsDir); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}

	aliceHash, err := argon.HashAccessKey("ALICEKEY", testKeyParams)
	if err != nil {
		t.Fatalf("hash key: %v", err)
	}
	bobHash, err := argon.HashAccessKey("BOBKEY", testKeyParams)
	if err != nil {
		t.Fatalf("hash key: %v", err)
	}
	seed(t, db,
		`INSERT INTO events (id, slug, name) VALUES (1, 'spring', 'Spring market')`,
		`INSERT INTO counters (id, event_id, identifier, name) VALUES (1, 1, 'C1', 'Counter 1'), (2, 1, 'C2', 'Counter 2')`,
		`INSERT INTO clerks (id, event_id, name, role, access_key_hash) VALUES (1, 1, 'Alice', 'overseer', '`+aliceHash+`'), (2, 1, 'Bob', 'clerk', '`+bobHash+`')`,
		`INSERT INTO vendors (id, event_id, name) VALUES (1, 1, 'Vera Vendor')`,
		`INSERT INTO items (id, code, vendor_id, name, price, state) VALUES (1, 'A1', 1, 'Teapot', 500, 'AD'), (2, 'B2', 1, 'Cup', 300, 'BR')`,
	)

	rbacCache := cache.NewRbacRolesCache()
	env := &api.Env{
		DB:         db,
		Sessions:   cache.NewClerkSessionCache(),
		Counters:   cache.NewCounterCache(),
		Roles:      rbacCache,
		Checkout:   checkout.NewService(db, nil),
		Log:        logger.NewNop(),
		SessionTTL: time.Hour,
	}
	s := NewServer("127.0.0.1:0", env, rbac.New(rbacCache))
	ts := httptest.NewServer(s.Handler())
	ienv := &integrationEnv{server: ts, db: db}
	t.Cleanup(func() {
		ienv.server.Close()
		_ = ienv.db.Close()
	})

	return ienv, newHTTPClient(t)
}

func seed(t *testing.T, db *sqlite.DB, queries ...string) {
	t.Helper()
	err := db.WithWriteTx(context.Background(), func(ctx context.Context, tx bun.Tx) error {
		for _, q := range queries {
			if _, err := tx.ExecContext(ctx, q); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
}

func newHTTPClient(t *testing.T) *http.Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("cookie jar: %v", err)
	}
	return &http.Client{Jar: jar}
}

func csrfToken(t *testing.T, client *http.Client, baseURL string) string {
	t.Helper()
	u, err := url.Parse(baseURL)
	if err != nil {
		t.Fatalf("parse base url: %v", err)
	}
	for _, c := range client.Jar.Cookies(u) {
		if c.Name == csrfCookieName {
			return c.Value
		}
	}
	return ""
}

func get(t *testing.T, client *http.Client, baseURL, path string) *http.Response {
	t.Helper()
	resp, err := client.Get(baseURL + path)
	if err != nil {
		t.Fatalf("GET %s failed: %v", path, err)
	}
	return resp
}

func post(t *testing.T, client *http.Client, baseURL, path string, data url.Values) *http.Response {
	t.Helper()
	if data == nil {
		data = url.Values{}
	}
	req, err := http.NewRequest(http.MethodPost, baseURL+path, strings.NewReader(data.Encode()))
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if token := csrfToken(t, client, baseURL); token != "" {
		req.Header.Set(csrfHeaderName, token)
	}
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("POST %s failed: %v", path, err)
	}
	return resp
}

func decode(t *testing.T, resp *http.Response, status int, v any) {
	t.Helper()
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != status {
		t.Fatalf("%s %s: expected status %d, got %d: %s", resp.Request.Method, resp.Request.URL.Path, status, resp.StatusCode, body)
	}
	if v == nil {
		return
	}
	if err := json.Unmarshal(body, v); err != nil {
		t.Fatalf("decode %s: %v (%s)", resp.Request.URL.Path, err, body)
	}
}

func loginAs(t *testing.T, client *http.Client, baseURL, code, counter string) map[string]any {
	t.Helper()
	resp := get(t, client, baseURL, "/health")
	_ = resp.Body.Close()

	var out map[string]any
	decode(t, post(t, client, baseURL, "/api/clerk/login", url.Values{
		"event":   {"spring"},
		"counter": {counter},
		"code":    {code},
	}), http.StatusOK, &out)
	return out
}

func TestCounterValidateReturnsExactIdentifier(t *testing.T) {
	env, client := setupIntegrationServer(t)

	var out map[string]any
	decode(t, post(t, client, env.server.URL, "/api/counter/validate", url.Values{"event": {"spring"}, "code": {"c1"}}), http.StatusOK, &out)
	if out["counter"] != "C1" || out["event_name"] != "Spring market" {
		t.Fatalf("unexpected counter response: %v", out)
	}

	decode(t, post(t, client, env.server.URL, "/api/counter/validate", url.Values{"event": {"spring"}, "code": {"nope"}}), http.StatusUnauthorized, nil)
}

func TestLoginRejectsBadCodes(t *testing.T) {
	env, client := setupIntegrationServer(t)

	for _, code := range []string{"1:WRONG", "garbage", "9:ALICEKEY"} {
		decode(t, post(t, client, env.server.URL, "/api/clerk/login", url.Values{
			"event": {"spring"}, "counter": {"C1"}, "code": {code},
		}), http.StatusUnauthorized, nil)
	}
}

func TestSellFlowOverHTTP(t *testing.T) {
	env, client := setupIntegrationServer(t)
	base := env.server.URL

	login := loginAs(t, client, base, "1:ALICEKEY", "C1")
	if login["overseer_enabled"] != true {
		t.Fatalf("expected overseer login, got %v", login)
	}

	var item checkout.ItemView
	decode(t, post(t, client, base, "/api/item/checkin", url.Values{"code": {"a1"}}), http.StatusOK, &item)
	if item.State != "BR" {
		t.Fatalf("expected BR after check-in, got %s", item.State)
	}

	var receipt checkout.ReceiptView
	decode(t, post(t, client, base, "/api/receipt/start", nil), http.StatusOK, &receipt)
	decode(t, post(t, client, base, "/api/receipt/start", nil), http.StatusConflict, nil)

	decode(t, post(t, client, base, "/api/item/reserve", url.Values{"code": {"A1"}}), http.StatusOK, &item)
	if item.Total == nil || *item.Total != 500 {
		t.Fatalf("expected running total 500, got %v", item.Total)
	}
	decode(t, post(t, client, base, "/api/item/reserve", url.Values{"code": {"A1"}}), http.StatusLocked, nil)

	id := strconv.FormatInt(receipt.ID, 10)
	decode(t, post(t, client, base, "/api/receipt/finish", url.Values{"id": {id}}), http.StatusOK, &receipt)
	if receipt.Status != "FINI" || receipt.Total != 500 {
		t.Fatalf("unexpected finished receipt: %+v", receipt)
	}

	var byItem checkout.ReceiptView
	decode(t, get(t, client, base, "/api/receipt?item=A1"), http.StatusOK, &byItem)
	if byItem.ID != receipt.ID {
		t.Fatalf("expected receipt %d by item, got %d", receipt.ID, byItem.ID)
	}

	resp := get(t, client, base, "/api/receipt/"+id+"/pdf")
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK || resp.Header.Get("Content-Type") != "application/pdf" {
		t.Fatalf("expected pdf response, got %d %s", resp.StatusCode, resp.Header.Get("Content-Type"))
	}

	// Session slot was cleared on finish, so a new receipt can start.
	decode(t, post(t, client, base, "/api/receipt/start", nil), http.StatusOK, &receipt)
}

func TestBoxCheckInAnswersAccepted(t *testing.T) {
	env, client := setupIntegrationServer(t)
	base := env.server.URL
	seed(t, env.db,
		`INSERT INTO boxes (id, description, representative_item_id, bundle_size) VALUES (1, 'Plates', 10, 1)`,
		`INSERT INTO items (id, code, vendor_id, box_id, name, price, state) VALUES (10, 'X10', 1, 1, 'Plates', 200, 'AD'), (11, 'X11', 1, 1, 'Plates', 200, 'AD')`,
	)
	loginAs(t, client, base, "2:BOBKEY", "C2")

	var item checkout.ItemView
	decode(t, post(t, client, base, "/api/item/checkin", url.Values{"code": {"X10"}}), http.StatusAccepted, &item)
	if item.State != "AD" || item.Box == nil || item.Box.BoxNumber == nil {
		t.Fatalf("expected numbered box with unchanged state, got %+v", item)
	}

	var box checkout.BoxView
	decode(t, post(t, client, base, "/api/box/checkin", url.Values{"code": {"X10"}}), http.StatusOK, &box)
	if box.Changed == nil || *box.Changed != 2 {
		t.Fatalf("expected 2 box items brought, got %+v", box.Changed)
	}
}

func TestAuthAndRbac(t *testing.T) {
	env, client := setupIntegrationServer(t)
	base := env.server.URL

	decode(t, get(t, client, base, "/api/item/find?code=A1"), http.StatusUnauthorized, nil)

	login := loginAs(t, client, base, "2:BOBKEY", "C2")
	perms, _ := login["permissions"].([]any)
	for _, p := range perms {
		if p == "ITEM_EDIT" {
			t.Fatalf("clerk must not be granted ITEM_EDIT")
		}
	}

	var failure api.ErrorBody
	decode(t, post(t, client, base, "/api/item/edit", url.Values{"code": {"B2"}, "price": {"1"}, "state": {"BR"}}), http.StatusUnauthorized, &failure)
	if failure.Kind != "auth_failed" {
		t.Fatalf("expected auth_failed, got %+v", failure)
	}
	decode(t, get(t, client, base, "/api/receipt/pending"), http.StatusUnauthorized, nil)

	var item checkout.ItemView
	decode(t, get(t, client, base, "/api/item/find?code=B2&available"), http.StatusOK, &item)
	if item.Code != "B2" {
		t.Fatalf("unexpected item: %+v", item)
	}

	decode(t, post(t, client, base, "/api/clerk/logout", nil), http.StatusOK, nil)
	decode(t, get(t, client, base, "/api/item/find?code=B2"), http.StatusUnauthorized, nil)
}

func TestCSRFRequiredOnSessionCalls(t *testing.T) {
	env, client := setupIntegrationServer(t)
	base := env.server.URL
	loginAs(t, client, base, "1:ALICEKEY", "C1")

	resp, err := client.PostForm(base+"/api/receipt/start", url.Values{})
	if err != nil {
		t.Fatalf("POST failed: %v", err)
	}
	decode(t, resp, http.StatusBadRequest, nil)
}

func TestLoginResumesPendingReceipt(t *testing.T) {
	env, client := setupIntegrationServer(t)
	base := env.server.URL
	seed(t, env.db,
		`INSERT INTO receipts (id, type, status, clerk_id, counter_id) VALUES (7, 'PURCHASE', 'PEND', 1, 1)`,
	)

	login := loginAs(t, client, base, "1:ALICEKEY", "C2")
	resumed, ok := login["receipt"].(map[string]any)
	if !ok || resumed["id"] != float64(7) {
		t.Fatalf("expected resumed receipt 7, got %v", login["receipt"])
	}

	var receipt checkout.ReceiptView
	decode(t, post(t, client, base, "/api/receipt/abort", url.Values{"id": {"7"}}), http.StatusOK, &receipt)
	if receipt.Status != "ABRT" {
		t.Fatalf("expected aborted receipt, got %s", receipt.Status)
	}
}

func TestOverseerReports(t *testing.T) {
	env, client := setupIntegrationServer(t)
	base := env.server.URL

	loginAs(t, client, base, "2:BOBKEY", "C2")
	decode(t, get(t, client, base, "/api/item/history?code=A1"), http.StatusUnauthorized, nil)
	decode(t, get(t, client, base, "/api/receipts.csv"), http.StatusUnauthorized, nil)
	decode(t, get(t, client, base, "/api/item/search?query=tea"), http.StatusUnauthorized, nil)
	decode(t, post(t, client, base, "/api/clerk/logout", nil), http.StatusOK, nil)

	loginAs(t, client, base, "1:ALICEKEY", "C1")
	decode(t, post(t, client, base, "/api/item/checkin", url.Values{"code": {"A1"}}), http.StatusOK, nil)

	var trail struct {
		Code   string `json:"code"`
		States []struct {
			OldState string `json:"old_state"`
			NewState string `json:"new_state"`
			Clerk    string `json:"clerk"`
		} `json:"states"`
	}
	decode(t, get(t, client, base, "/api/item/history?code=A1"), http.StatusOK, &trail)
	if trail.Code != "A1" || len(trail.States) != 1 || trail.States[0].NewState != "BR" || trail.States[0].Clerk != "Alice" {
		t.Fatalf("unexpected history: %+v", trail)
	}
	decode(t, get(t, client, base, "/api/item/history?code=NOPE"), http.StatusNotFound, nil)

	var found []struct {
		Code   string `json:"code"`
		Vendor struct {
			Name string `json:"name"`
		} `json:"vendor"`
	}
	decode(t, get(t, client, base, "/api/item/search?query=tea&max_price=5"), http.StatusOK, &found)
	if len(found) != 1 || found[0].Code != "A1" || found[0].Vendor.Name != "Vera Vendor" {
		t.Fatalf("unexpected search result: %+v", found)
	}

	resp := get(t, client, base, "/api/vendor/1/items.csv")
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK || !strings.HasPrefix(string(body), "code,name,price,state,box_number,receipt_id") {
		t.Fatalf("unexpected vendor export %d: %s", resp.StatusCode, body)
	}
	if !strings.Contains(string(body), "A1,") || !strings.Contains(string(body), "Brought to event") {
		t.Fatalf("vendor export misses A1: %s", body)
	}
}

func TestOverseerAddsClerk(t *testing.T) {
	env, client := setupIntegrationServer(t)
	base := env.server.URL

	loginAs(t, client, base, "1:ALICEKEY", "C1")
	var failure api.ErrorBody
	decode(t, post(t, client, base, "/api/clerk/create", url.Values{"name": {"Carl"}, "role": {"admin"}}), http.StatusBadRequest, &failure)
	if failure.Kind != "bad_request" {
		t.Fatalf("expected bad_request, got %+v", failure)
	}

	var created struct {
		ID   int64  `json:"id"`
		Name string `json:"name"`
		Code string `json:"code"`
	}
	decode(t, post(t, client, base, "/api/clerk/create", url.Values{"name": {"Carl"}}), http.StatusCreated, &created)
	if created.Name != "Carl" || !strings.HasPrefix(created.Code, strconv.FormatInt(created.ID, 10)+":") {
		t.Fatalf("unexpected created clerk: %+v", created)
	}
	decode(t, post(t, client, base, "/api/clerk/logout", nil), http.StatusOK, nil)

	login := loginAs(t, client, base, created.Code, "C2")
	clerkInfo, _ := login["clerk"].(map[string]any)
	if clerkInfo["name"] != "Carl" {
		t.Fatalf("expected to log in as Carl, got %+v", login)
	}
	decode(t, get(t, client, base, "/api/clerk/list"), http.StatusUnauthorized, nil)
}
