//go:build integration

package bridge

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/rifatshampod/typeless-forms-chrome-extension/internal/autofill"
	"github.com/rifatshampod/typeless-forms-chrome-extension/internal/config"
	"github.com/rifatshampod/typeless-forms-chrome-extension/internal/pairs"
)

// livePage wraps the email input's value property the way UI frameworks
// do, counting writes that go through the instance.
const livePage = `<!doctype html><html><body><form>
<label for="email">Email</label><input id="email">
<input name="phone" value="555">
<label>City <input name="c1"></label>
<input type="hidden" name="email_token">
</form>
<script>
window.__events = [];
window.__instanceSets = 0;
const el = document.getElementById('email');
const proto = Object.getOwnPropertyDescriptor(HTMLInputElement.prototype, 'value');
Object.defineProperty(el, 'value', {
  configurable: true,
  get() { return proto.get.call(this); },
  set(v) { window.__instanceSets++; proto.set.call(this, v); }
});
for (const type of ['input', 'change', 'blur']) {
  document.addEventListener(type, e => window.__events.push(type + ':' + (e.target.name || e.target.id)), true);
}
</script></body></html>`

func startLiveBridge(t *testing.T) *Bridge {
	t.Helper()
	cfg := &config.RuntimeConfig{
		Headless:      true,
		ProfileDir:    t.TempDir(),
		ChromeBinary:  os.Getenv("CHROME_BINARY"),
		CdpURL:        os.Getenv("CDP_URL"),
		MaxTabs:       10,
		ActionTimeout: 15 * time.Second,
	}
	b := New(context.Background(), nil, cfg)
	if err := b.EnsureChrome(cfg); err != nil {
		t.Skipf("chrome unavailable: %v", err)
	}
	t.Cleanup(b.Close)
	return b
}

func TestLiveFill(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = io.WriteString(w, livePage)
	}))
	defer srv.Close()

	b := startLiveBridge(t)
	tabID, tabCtx, _, err := b.CreateTab("")
	if err != nil {
		t.Fatal(err)
	}
	navCtx, cancel := context.WithTimeout(tabCtx, 30*time.Second)
	err = NavigatePage(navCtx, srv.URL)
	cancel()
	if err != nil {
		t.Fatal(err)
	}

	svc := autofill.NewService(
		pairs.NewManager(pairs.NewMemoryStore(
			pairs.Pair{ID: 1, Label: "email", Value: "a@b.com"},
			pairs.Pair{ID: 2, Label: "phone", Value: "999"},
			pairs.Pair{ID: 3, Label: "city", Value: "Oslo"},
		)),
		autofill.NewEngine(autofill.NewFiller(nil, autofill.DefaultTiming())),
	)

	ctx, done := context.WithTimeout(context.Background(), 30*time.Second)
	defer done()
	rep, err := FillTab(ctx, b, svc, tabID, time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	if rep.Outcome != autofill.OutcomeFilled || rep.Result != (autofill.Result{Filled: 2, Skipped: 1}) {
		t.Fatalf("report = %+v", rep)
	}

	// Let the blur and the highlight revert run.
	time.Sleep(2 * time.Second)

	var state struct {
		Email        string   `json:"email"`
		EmailAttr    string   `json:"emailAttr"`
		City         string   `json:"city"`
		Phone        string   `json:"phone"`
		Token        string   `json:"token"`
		InstanceSets int      `json:"instanceSets"`
		Events       []string `json:"events"`
		Background   string   `json:"background"`
		Banner       string   `json:"banner"`
	}
	err = chromedp.Run(tabCtx, chromedp.Evaluate(`({
		email: document.getElementById('email').value,
		emailAttr: document.getElementById('email').getAttribute('value'),
		city: document.querySelector('[name=c1]').value,
		phone: document.querySelector('[name=phone]').value,
		token: document.querySelector('[name=email_token]').value,
		instanceSets: window.__instanceSets,
		events: window.__events,
		background: document.getElementById('email').style.background,
		banner: (document.getElementById('typeless-notification') || {}).textContent || ''
	})`, &state))
	if err != nil {
		t.Fatal(err)
	}

	if state.Email != "a@b.com" || state.EmailAttr != "a@b.com" || state.City != "Oslo" {
		t.Errorf("values = %+v", state)
	}
	if state.Phone != "555" || state.Token != "" {
		t.Errorf("excluded fields changed: %+v", state)
	}
	if state.InstanceSets != 0 {
		t.Errorf("write went through the instance setter %d time(s)", state.InstanceSets)
	}
	want := map[string]bool{"input:email": false, "change:email": false, "blur:email": false}
	for _, ev := range state.Events {
		if _, ok := want[ev]; ok {
			want[ev] = true
		}
	}
	for ev, seen := range want {
		if !seen {
			t.Errorf("event %s not observed in %v", ev, state.Events)
		}
	}
	if state.Background != "" {
		t.Errorf("highlight not reverted: %q", state.Background)
	}
	if state.Banner != rep.Message {
		t.Errorf("banner = %q, want %q", state.Banner, rep.Message)
	}
}

func TestLiveRestrictedPage(t *testing.T) {
	b := startLiveBridge(t)
	tabID, _, _, err := b.CreateTab("about:blank")
	if err != nil {
		t.Fatal(err)
	}
	_, _, err = b.OpenDocument(context.Background(), tabID)
	if !errors.Is(err, ErrRestrictedPage) {
		t.Fatalf("err = %v, want restricted page", err)
	}
}

func TestLiveApplyKeepsTypedValue(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = io.WriteString(w, `<!doctype html><input id="email">`)
	}))
	defer srv.Close()

	b := startLiveBridge(t)
	tabID, tabCtx, _, err := b.CreateTab(srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := NavigatePage(tabCtx, srv.URL); err != nil {
		t.Fatal(err)
	}

	doc, _, err := b.OpenDocument(ctx, tabID)
	if err != nil {
		t.Fatal(err)
	}
	fields, err := doc.Fields(ctx)
	if err != nil || len(fields) != 1 {
		t.Fatalf("fields = %+v, err = %v", fields, err)
	}
	if err := chromedp.Run(tabCtx, chromedp.Evaluate(`document.getElementById('email').value = 'typed'`, nil)); err != nil {
		t.Fatal(err)
	}

	if _, err := doc.Apply(ctx, fields[0].Ref, autofill.WriteOps("a@b.com")); !errors.Is(err, autofill.ErrOccupied) {
		t.Fatalf("err = %v, want ErrOccupied", err)
	}
	var v string
	if err := chromedp.Run(tabCtx, chromedp.Evaluate(`document.getElementById('email').value`, &v)); err != nil {
		t.Fatal(err)
	}
	if v != "typed" {
		t.Errorf("value = %q", v)
	}
}
