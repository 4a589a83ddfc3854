package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/chromedp/cdproto/target"
	"github.com/rifatshampod/typeless-forms-chrome-extension/internal/autofill"
	"github.com/rifatshampod/typeless-forms-chrome-extension/internal/autofill/autofilltest"
	"github.com/rifatshampod/typeless-forms-chrome-extension/internal/bridge"
	"github.com/rifatshampod/typeless-forms-chrome-extension/internal/config"
	"github.com/rifatshampod/typeless-forms-chrome-extension/internal/htmldoc"
	"github.com/rifatshampod/typeless-forms-chrome-extension/internal/pairs"
)

// mockBridge serves parsed HTML documents as tabs.
type mockBridge struct {
	bridge.BridgeAPI
	order      []string
	docs       map[string]*htmldoc.Document
	urls       map[string]string
	locks      *bridge.LockManager
	restricted *bridge.Restrictions
	failList   bool
}

func newMockBridge(t *testing.T) *mockBridge {
	t.Helper()
	r, err := bridge.NewRestrictions(config.DefaultRestrictedURLs)
	if err != nil {
		t.Fatal(err)
	}
	return &mockBridge{
		docs:       make(map[string]*htmldoc.Document),
		urls:       make(map[string]string),
		locks:      bridge.NewLockManager(),
		restricted: r,
	}
}

func (m *mockBridge) addTab(t *testing.T, id, url, page string) *htmldoc.Document {
	t.Helper()
	doc, err := htmldoc.ParseString(page)
	if err != nil {
		t.Fatal(err)
	}
	m.order = append(m.order, id)
	m.docs[id] = doc
	m.urls[id] = url
	return doc
}

func (m *mockBridge) ListTargets() ([]*target.Info, error) {
	if m.failList {
		return nil, fmt.Errorf("no browser connection")
	}
	out := make([]*target.Info, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, &target.Info{TargetID: target.ID(id), URL: m.urls[id], Type: "page"})
	}
	return out, nil
}

func (m *mockBridge) OpenDocument(ctx context.Context, tabID string) (autofill.Document, bridge.PageInfo, error) {
	if tabID == "" {
		if len(m.order) == 0 {
			return nil, bridge.PageInfo{}, fmt.Errorf("no tabs open")
		}
		tabID = m.order[0]
	}
	doc, ok := m.docs[tabID]
	if !ok {
		return nil, bridge.PageInfo{}, fmt.Errorf("tab %s not found", tabID)
	}
	info := bridge.PageInfo{TabID: tabID, URL: m.urls[tabID]}
	if err := m.restricted.Check(info.URL); err != nil {
		return nil, info, err
	}
	return doc, info, nil
}

func (m *mockBridge) CreateTab(url string) (string, context.Context, context.CancelFunc, error) {
	if url == "bad://" {
		return "", nil, nil, fmt.Errorf("create target: invalid url")
	}
	return "new-tab", context.Background(), func() {}, nil
}

func (m *mockBridge) CloseTab(tabID string) error {
	if l := m.locks.Get(tabID); l != nil {
		return fmt.Errorf("%w: tab %s is held by pass %s", bridge.ErrTabBusy, tabID, l.Owner)
	}
	if _, ok := m.docs[tabID]; !ok {
		return fmt.Errorf("tab %s not found", tabID)
	}
	delete(m.docs, tabID)
	return nil
}

func (m *mockBridge) Lock(tabID, owner string, ttl time.Duration) error {
	return m.locks.TryLock(tabID, owner, ttl)
}

func (m *mockBridge) Unlock(tabID, owner string) error { return m.locks.Unlock(tabID, owner) }

func (m *mockBridge) TabLockInfo(tabID string) *bridge.LockInfo { return m.locks.Get(tabID) }

const signupForm = `<html><body><form>
<label for="email">Email address</label><input id="email">
<input name="phone" value="555">
<input name="city" placeholder="City">
</form></body></html>`

type testEnv struct {
	h     *Handlers
	mux   *http.ServeMux
	b     *mockBridge
	store *pairs.MemoryStore
}

func newTestEnv(t *testing.T, list ...pairs.Pair) *testEnv {
	t.Helper()
	b := newMockBridge(t)
	store := pairs.NewMemoryStore(list...)
	engine := autofill.NewEngine(autofill.NewFiller(&autofilltest.ManualScheduler{}, autofill.DefaultTiming()))
	cfg := &config.RuntimeConfig{Banner: true, StoreDriver: config.StoreJSON, PassLockTTL: time.Minute}
	h := New(b, cfg, pairs.NewManager(store), engine)
	mux := http.NewServeMux()
	h.RegisterRoutes(mux, nil)
	return &testEnv{h: h, mux: mux, b: b, store: store}
}

func (e *testEnv) do(method, path, body string) *httptest.ResponseRecorder {
	var r *http.Request
	if body == "" {
		r = httptest.NewRequest(method, path, nil)
	} else {
		r = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	w := httptest.NewRecorder()
	e.mux.ServeHTTP(w, r)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
	return v
}

func valueOf(t *testing.T, doc *htmldoc.Document, key string) string {
	t.Helper()
	fields, err := doc.Fields(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	for _, f := range fields {
		if f.ID == key || f.Name == key {
			return f.Value
		}
	}
	t.Fatalf("no field %q", key)
	return ""
}

func TestHandleHealth(t *testing.T) {
	e := newTestEnv(t, pairs.Pair{ID: 1, Label: "email", Value: "a@b.com"})
	e.b.addTab(t, "tab1", "https://example.com", signupForm)

	w := e.do("GET", "/health", "")
	if w.Code != 200 {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	resp := decode[map[string]any](t, w)
	if resp["status"] != "ok" || resp["tabs"] != float64(1) || resp["pairs"] != float64(1) {
		t.Errorf("health = %v", resp)
	}

	e.b.failList = true
	e.store.Err = errDisk
	resp = decode[map[string]any](t, e.do("GET", "/health", ""))
	if resp["status"] != "disconnected" || resp["storeError"] == nil {
		t.Errorf("health = %v", resp)
	}
}

func TestHandleTabs(t *testing.T) {
	e := newTestEnv(t)
	e.b.addTab(t, "tab1", "https://example.com", signupForm)
	e.b.addTab(t, "tab2", "https://example.org", signupForm)
	_ = e.b.Lock("tab2", "pass-x", time.Minute)

	resp := decode[struct {
		Tabs []map[string]any `json:"tabs"`
	}](t, e.do("GET", "/tabs", ""))
	if len(resp.Tabs) != 2 {
		t.Fatalf("tabs = %v", resp.Tabs)
	}
	if resp.Tabs[0]["passId"] != nil || resp.Tabs[1]["passId"] != "pass-x" {
		t.Errorf("lock info = %v", resp.Tabs)
	}
}

func TestHandleOpenAndCloseTab(t *testing.T) {
	e := newTestEnv(t)
	e.b.addTab(t, "tab1", "https://example.com", signupForm)

	w := e.do("POST", "/tabs", `{"url":"https://example.com/signup"}`)
	if w.Code != 201 || decode[map[string]any](t, w)["tabId"] != "new-tab" {
		t.Errorf("open = %d %s", w.Code, w.Body.String())
	}
	if w := e.do("POST", "/tabs", `{"url":"bad://"}`); w.Code != 500 {
		t.Errorf("bad open = %d", w.Code)
	}
	if err := e.b.Lock("tab1", "pass-x", time.Minute); err != nil {
		t.Fatal(err)
	}
	if w := e.do("DELETE", "/tabs/tab1", ""); w.Code != 409 {
		t.Errorf("close during pass = %d", w.Code)
	}
	if err := e.b.Unlock("tab1", "pass-x"); err != nil {
		t.Fatal(err)
	}
	if w := e.do("DELETE", "/tabs/tab1", ""); w.Code != 200 {
		t.Errorf("close = %d", w.Code)
	}
	if w := e.do("DELETE", "/tabs/tab1", ""); w.Code != 404 {
		t.Errorf("second close = %d", w.Code)
	}
}

func TestHandleFillDefaultTab(t *testing.T) {
	e := newTestEnv(t,
		pairs.Pair{ID: 1, Label: "Email", Value: "a@b.com"},
		pairs.Pair{ID: 2, Label: "phone", Value: "999"},
		pairs.Pair{ID: 3, Label: "city", Value: "Oslo"},
	)
	doc := e.b.addTab(t, "tab1", "https://example.com/signup", signupForm)

	w := e.do("POST", "/fill", "")
	if w.Code != 200 {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	rep := decode[autofill.Report](t, w)
	if rep.Outcome != autofill.OutcomeFilled || rep.Filled != 2 || rep.Skipped != 1 {
		t.Fatalf("report = %+v", rep)
	}
	if rep.TabID != "tab1" || rep.URL != "https://example.com/signup" || rep.PassID == "" {
		t.Errorf("target = %q %q %q", rep.TabID, rep.URL, rep.PassID)
	}
	if valueOf(t, doc, "email") != "a@b.com" || valueOf(t, doc, "phone") != "555" || valueOf(t, doc, "city") != "Oslo" {
		t.Error("document not filled as expected")
	}

	notices := doc.Notices()
	if len(notices) != 1 || notices[0].Level != autofill.LevelSuccess || notices[0].Message != rep.Message {
		t.Errorf("notices = %+v", notices)
	}
	if e.b.TabLockInfo("tab1") != nil {
		t.Error("pass lock not released")
	}

	snap := e.h.Metrics.Snapshot()
	if snap["passes"] != uint64(1) || snap["fieldsFilled"] != uint64(2) {
		t.Errorf("metrics = %v", snap)
	}
}

func TestHandleTabFillByID(t *testing.T) {
	e := newTestEnv(t, pairs.Pair{ID: 1, Label: "city", Value: "Oslo"})
	e.b.addTab(t, "tab1", "https://example.com", `<body></body>`)
	doc := e.b.addTab(t, "tab2", "https://example.org", signupForm)

	w := e.do("POST", "/tabs/tab2/fill", "")
	rep := decode[autofill.Report](t, w)
	if rep.Outcome != autofill.OutcomeFilled || rep.TabID != "tab2" {
		t.Fatalf("report = %+v", rep)
	}
	if valueOf(t, doc, "city") != "Oslo" {
		t.Error("tab2 not filled")
	}

	w = e.do("POST", "/fill", `{"tabId":"tab1"}`)
	if rep := decode[autofill.Report](t, w); rep.Outcome != autofill.OutcomeNoMatches || rep.Result != (autofill.Result{}) {
		t.Errorf("empty page report = %+v", rep)
	}
}

func TestHandleFillNoData(t *testing.T) {
	e := newTestEnv(t)
	doc := e.b.addTab(t, "tab1", "https://example.com", signupForm)

	rep := decode[autofill.Report](t, e.do("POST", "/fill", ""))
	if rep.Outcome != autofill.OutcomeNoData {
		t.Fatalf("outcome = %s", rep.Outcome)
	}
	if len(doc.Events()) != 0 {
		t.Error("document touched without pairs")
	}
	if n := doc.Notices(); len(n) != 1 || n[0].Level != autofill.LevelWarning {
		t.Errorf("notices = %+v", n)
	}
}

func TestHandleFillStorageFailure(t *testing.T) {
	e := newTestEnv(t, pairs.Pair{ID: 1, Label: "email", Value: "a@b.com"})
	doc := e.b.addTab(t, "tab1", "https://example.com", signupForm)
	e.store.Err = fmt.Errorf("quota exceeded")

	rep := decode[autofill.Report](t, e.do("POST", "/fill", ""))
	if rep.Outcome != autofill.OutcomeError || !strings.Contains(rep.Error, "storage unavailable") {
		t.Fatalf("report = %+v", rep)
	}
	if len(doc.Events()) != 0 {
		t.Error("document touched after storage failure")
	}
}

func TestHandleFillErrors(t *testing.T) {
	e := newTestEnv(t, pairs.Pair{ID: 1, Label: "email", Value: "a@b.com"})
	e.b.addTab(t, "settings", "chrome://settings", signupForm)
	e.b.addTab(t, "busy", "https://example.com", signupForm)
	_ = e.b.Lock("busy", "other-pass", time.Minute)

	tests := []struct {
		path string
		code int
		want string
	}{
		{"/tabs/settings/fill", 422, "restricted_page"},
		{"/tabs/busy/fill", 409, "tab_busy"},
		{"/tabs/missing/fill", 502, "browser_error"},
	}
	for _, tt := range tests {
		w := e.do("POST", tt.path, "")
		if w.Code != tt.code {
			t.Errorf("%s: code = %d, want %d", tt.path, w.Code, tt.code)
			continue
		}
		if got := decode[map[string]any](t, w)["code"]; got != tt.want {
			t.Errorf("%s: error code = %v, want %s", tt.path, got, tt.want)
		}
	}

	if w := e.do("POST", "/fill", `{"tabId":`); w.Code != 400 {
		t.Errorf("bad body = %d", w.Code)
	}
}

func TestHandleFillDryRun(t *testing.T) {
	e := newTestEnv(t, pairs.Pair{ID: 1, Label: "email", Value: "a@b.com"})
	doc := e.b.addTab(t, "tab1", "https://example.com", signupForm)

	w := e.do("POST", "/fill", `{"dryRun":true}`)
	if w.Code != 200 {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	resp := decode[struct {
		Candidates int            `json:"candidates"`
		Skipped    int            `json:"skipped"`
		Unmatched  int            `json:"unmatched"`
		Fields     []previewField `json:"fields"`
	}](t, w)
	if resp.Candidates != 3 || resp.Skipped != 1 || resp.Unmatched != 1 {
		t.Errorf("plan = %+v", resp)
	}
	if len(resp.Fields) != 1 || resp.Fields[0].Facet != autofill.FacetID || resp.Fields[0].Label != "email" {
		t.Errorf("fields = %+v", resp.Fields)
	}
	if strings.Contains(w.Body.String(), "a@b.com") {
		t.Error("preview leaked a saved value")
	}
	if valueOf(t, doc, "email") != "" || len(doc.Events()) != 0 {
		t.Error("dry run wrote to the document")
	}
}

func TestHandleMetrics(t *testing.T) {
	e := newTestEnv(t)
	e.b.addTab(t, "tab1", "https://example.com", signupForm)
	e.do("POST", "/fill", "")

	resp := decode[struct {
		Fills struct {
			Passes   int            `json:"passes"`
			Outcomes map[string]int `json:"outcomes"`
		} `json:"fills"`
	}](t, e.do("GET", "/metrics", ""))
	if resp.Fills.Passes != 1 || resp.Fills.Outcomes["no-data"] != 1 {
		t.Errorf("metrics = %+v", resp.Fills)
	}
}

func TestHandleShutdown(t *testing.T) {
	e := newTestEnv(t)
	done := make(chan struct{})
	mux := http.NewServeMux()
	e.h.RegisterRoutes(mux, func() { close(done) })

	w := httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest("POST", "/shutdown", bytes.NewReader(nil)))
	if w.Code != 200 {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("shutdown not invoked")
	}
}

func TestHandlerChainRequiresToken(t *testing.T) {
	e := newTestEnv(t)
	e.h.Config.Token = "secret-token"
	srv := e.h.Handler(nil)

	w := httptest.NewRecorder()
	srv.ServeHTTP(w, httptest.NewRequest("GET", "/pairs", nil))
	if w.Code != 401 {
		t.Errorf("expected 401, got %d", w.Code)
	}
	if w.Header().Get("X-Request-Id") == "" {
		t.Error("request id missing")
	}

	req := httptest.NewRequest("GET", "/pairs", nil)
	req.Header.Set("Authorization", "Bearer secret-token")
	w = httptest.NewRecorder()
	srv.ServeHTTP(w, req)
	if w.Code != 200 {
		t.Errorf("expected 200, got %d", w.Code)
	}
}

func TestHandlerChainTagsFillPass(t *testing.T) {
	e := newTestEnv(t, pairs.Pair{ID: 1, Label: "email", Value: "a@b.com"})
	e.b.addTab(t, "tab1", "https://example.com/signup", signupForm)
	srv := e.h.Handler(nil)

	req := httptest.NewRequest("POST", "/fill", nil)
	req.Header.Set("X-Request-Id", "req-fill-1")
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)
	if w.Code != 200 {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	rep := decode[autofill.Report](t, w)
	if rep.RequestID != "req-fill-1" {
		t.Errorf("report request id = %q", rep.RequestID)
	}
	if w.Header().Get("X-Pass-Id") == "" || w.Header().Get("X-Pass-Id") != rep.PassID {
		t.Errorf("X-Pass-Id = %q, report pass = %q", w.Header().Get("X-Pass-Id"), rep.PassID)
	}
}
