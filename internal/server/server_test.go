package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/user/cesto-ofertas-go/internal/account"
	"github.com/user/cesto-ofertas-go/internal/apperr"
	"github.com/user/cesto-ofertas-go/internal/broadcast"
	"github.com/user/cesto-ofertas-go/internal/catalog"
	"github.com/user/cesto-ofertas-go/internal/config"
	"github.com/user/cesto-ofertas-go/internal/media"
	"github.com/user/cesto-ofertas-go/internal/model"
	"github.com/user/cesto-ofertas-go/internal/notify"
	"github.com/user/cesto-ofertas-go/internal/push"
	"github.com/user/cesto-ofertas-go/internal/scheduler"
	"github.com/user/cesto-ofertas-go/internal/seed"
	"github.com/user/cesto-ofertas-go/internal/sendlog"
	"github.com/user/cesto-ofertas-go/internal/store"
)

// failingStore reports an unreachable backend on Ping
type failingStore struct {
	*store.MemoryStore
}

func (f *failingStore) Ping(ctx context.Context) error {
	return errors.New("connection refused")
}

type testServer struct {
	*httptest.Server
	t *testing.T
}

func newTestServer(t *testing.T, s store.Store, opts ...func(*Services)) *testServer {
	t.Helper()
	ctx := context.Background()
	d, err := seed.Load("")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := seed.Apply(ctx, s, d); err != nil {
		t.Fatal(err)
	}

	configs := broadcast.NewRegistry(s)
	products := catalog.New(s, nil)
	logs := sendlog.NewLog(s, sendlog.DefaultCapacity)
	svc := Services{
		Accounts: account.NewService(s, &notify.Simulated{}, nil, true),
		Products: products,
		Configs:  configs,
		Push:     push.NewService(configs, products, logs, &push.SimulatedSender{}, nil, 1000),
		Logs:     logs,
		Videos:   media.NewLibrary(s, nil),
	}
	for _, opt := range opts {
		opt(&svc)
	}
	srv := NewServer(s, svc, &config.ServerConfig{Port: 0})
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return &testServer{Server: ts, t: t}
}

// do sends a JSON request and decodes the JSON response into out when given
func (ts *testServer) do(method, path, token string, body any, out any) int {
	ts.t.Helper()
	var rd io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			ts.t.Fatal(err)
		}
		rd = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, ts.URL+path, rd)
	if err != nil {
		ts.t.Fatal(err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := ts.Client().Do(req)
	if err != nil {
		ts.t.Fatal(err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			ts.t.Fatalf("%s %s: decode: %v", method, path, err)
		}
	}
	return resp.StatusCode
}

func (ts *testServer) signIn(email, password string) string {
	ts.t.Helper()
	var sess model.Session
	if code := ts.do(http.MethodPost, "/api/auth/sign-in", "", credentials{Email: email, Password: password}, &sess); code != http.StatusOK {
		ts.t.Fatalf("sign-in %s: status %d", email, code)
	}
	return sess.Token
}

// onboardedUser signs in the seeded first-login user and completes the wizard
func (ts *testServer) onboardedUser() string {
	ts.t.Helper()
	token := ts.signIn("usuario@teste.com", "user123")
	profile := account.ProfileInput{
		Name: "Usuário Teste", Email: "usuario@teste.com", Phone: "(11) 99999-9999", Address: "Rua A, 1",
		NewPassword: "user1234", ConfirmPassword: "user1234",
	}
	if code := ts.do(http.MethodPost, "/api/onboarding/profile", token, profile, nil); code != http.StatusOK {
		ts.t.Fatalf("onboarding profile: status %d", code)
	}
	var d account.CodeDispatch
	if code := ts.do(http.MethodPost, "/api/onboarding/codes", token, nil, &d); code != http.StatusOK {
		ts.t.Fatalf("onboarding codes: status %d", code)
	}
	codes := map[string]string{"email_code": d.EmailCode, "phone_code": d.PhoneCode}
	if code := ts.do(http.MethodPost, "/api/onboarding/confirm", token, codes, nil); code != http.StatusOK {
		ts.t.Fatalf("onboarding confirm: status %d", code)
	}
	return token
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t, store.NewMemoryStore())
	var h HealthResponse
	if code := ts.do(http.MethodGet, "/health", "", nil, &h); code != http.StatusOK || h.Status != "healthy" || h.Store != "healthy" {
		t.Errorf("GET /health = %d %+v", code, h)
	}

	down := newTestServer(t, &failingStore{MemoryStore: store.NewMemoryStore()})
	if code := down.do(http.MethodGet, "/health", "", nil, &h); code != http.StatusServiceUnavailable || h.Status != "unhealthy" {
		t.Errorf("GET /health (store down) = %d %+v", code, h)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	ts := newTestServer(t, store.NewMemoryStore())
	ts.do(http.MethodGet, "/health", "", nil, nil)
	resp, err := ts.Client().Get(ts.URL + "/metrics")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "cesto_http_requests_total") {
		t.Error("metrics output missing request counter")
	}
}

func TestAuth(t *testing.T) {
	ts := newTestServer(t, store.NewMemoryStore())
	var e errorResponse

	if code := ts.do(http.MethodGet, "/api/me", "", nil, &e); code != http.StatusUnauthorized || e.Error == "" {
		t.Errorf("GET /api/me without token = %d %+v", code, e)
	}
	if code := ts.do(http.MethodGet, "/api/me", "bogus", nil, nil); code != http.StatusUnauthorized {
		t.Errorf("GET /api/me with bad token = %d", code)
	}
	if code := ts.do(http.MethodPost, "/api/auth/sign-in", "", credentials{Email: "admin@cestodeofertas.com", Password: "nope"}, nil); code != http.StatusUnauthorized {
		t.Errorf("sign-in with bad password = %d", code)
	}

	token := ts.signIn("admin@cestodeofertas.com", "admin123")
	var me map[string]any
	if code := ts.do(http.MethodGet, "/api/me", token, nil, &me); code != http.StatusOK || me["is_admin"] != true {
		t.Errorf("GET /api/me = %d %+v", code, me)
	}
	if _, ok := me["password"]; ok {
		t.Error("password hash leaked in /api/me")
	}

	if code := ts.do(http.MethodPost, "/api/auth/sign-out", token, nil, nil); code != http.StatusNoContent {
		t.Errorf("sign-out = %d", code)
	}
	if code := ts.do(http.MethodGet, "/api/me", token, nil, nil); code != http.StatusUnauthorized {
		t.Errorf("GET /api/me after sign-out = %d", code)
	}
}

func TestSignUpAndOnboarding(t *testing.T) {
	ts := newTestServer(t, store.NewMemoryStore())
	var sess model.Session
	if code := ts.do(http.MethodPost, "/api/auth/sign-up", "", credentials{Email: "nova@loja.com", Password: "abc"}, nil); code != http.StatusBadRequest {
		t.Errorf("sign-up with short password = %d", code)
	}
	if code := ts.do(http.MethodPost, "/api/auth/sign-up", "", credentials{Email: "nova@loja.com", Password: "abcdef"}, &sess); code != http.StatusCreated || !sess.FirstLogin {
		t.Fatalf("sign-up = %d %+v", code, sess)
	}
	if code := ts.do(http.MethodPost, "/api/auth/sign-up", "", credentials{Email: "nova@loja.com", Password: "abcdef"}, nil); code != http.StatusConflict {
		t.Errorf("duplicate sign-up = %d", code)
	}

	if code := ts.do(http.MethodPost, "/api/onboarding/codes", sess.Token, nil, nil); code != http.StatusConflict {
		t.Errorf("codes before profile = %d", code)
	}
	profile := account.ProfileInput{
		Name: "Nova Loja", Email: "nova@loja.com", Phone: "(21) 99876-5432", Address: "Av. Brasil, 1",
		NewPassword: "novasenha", ConfirmPassword: "novasenha",
	}
	if code := ts.do(http.MethodPost, "/api/onboarding/profile", sess.Token, profile, nil); code != http.StatusOK {
		t.Fatalf("profile = %d", code)
	}
	var d account.CodeDispatch
	if code := ts.do(http.MethodPost, "/api/onboarding/codes", sess.Token, nil, &d); code != http.StatusOK || d.EmailCode == "" {
		t.Fatalf("codes = %d %+v", code, d)
	}
	codes := map[string]string{"email_code": d.EmailCode, "phone_code": d.PhoneCode}
	var u userView
	if code := ts.do(http.MethodPost, "/api/onboarding/confirm", sess.Token, codes, &u); code != http.StatusOK || u.FirstLogin || !u.PhoneVerified {
		t.Errorf("confirm = %d %+v", code, u)
	}
}

func TestFirstLoginIsGated(t *testing.T) {
	ts := newTestServer(t, store.NewMemoryStore())
	token := ts.signIn("usuario@teste.com", "user123")

	var e errorResponse
	cfgIn := model.BroadcastConfigInput{TargetGroup: "ofertas-sp", Template: "{produto}"}
	if code := ts.do(http.MethodPost, "/api/configs", token, cfgIn, &e); code != http.StatusForbidden || e.Error == "" {
		t.Errorf("create config before onboarding = %d %+v", code, e)
	}
	for _, path := range []string{"/api/products", "/api/configs", "/api/logs", "/api/videos"} {
		if code := ts.do(http.MethodGet, path, token, nil, nil); code != http.StatusForbidden {
			t.Errorf("GET %s before onboarding = %d", path, code)
		}
	}
	if code := ts.do(http.MethodGet, "/api/me", token, nil, nil); code != http.StatusOK {
		t.Errorf("GET /api/me before onboarding = %d", code)
	}
	if code := ts.do(http.MethodGet, "/api/onboarding", token, nil, nil); code != http.StatusOK {
		t.Errorf("GET /api/onboarding = %d", code)
	}

	token = ts.onboardedUser()
	if code := ts.do(http.MethodPost, "/api/configs", token, cfgIn, nil); code != http.StatusCreated {
		t.Errorf("create config after onboarding = %d", code)
	}
	if code := ts.do(http.MethodPost, "/api/auth/sign-out", token, nil, nil); code != http.StatusNoContent {
		t.Errorf("sign-out = %d", code)
	}
}

func TestProductsConfigsSendAndLogs(t *testing.T) {
	ts := newTestServer(t, store.NewMemoryStore())
	token := ts.onboardedUser()

	var products []model.Product
	if code := ts.do(http.MethodGet, "/api/products", token, nil, &products); code != http.StatusOK || len(products) != 2 {
		t.Fatalf("GET /api/products = %d, %d products", code, len(products))
	}

	if code := ts.do(http.MethodPost, "/api/products", token, model.ProductInput{Name: "Sem link", Price: 1}, nil); code != http.StatusBadRequest {
		t.Errorf("create invalid product = %d", code)
	}
	var lamp model.Product
	in := model.ProductInput{Name: "Lamp", Price: 9.5, AffiliateURL: "https://shopee.com.br/lamp"}
	if code := ts.do(http.MethodPost, "/api/products", token, in, &lamp); code != http.StatusCreated || !lamp.Active {
		t.Fatalf("create product = %d %+v", code, lamp)
	}
	if code := ts.do(http.MethodPut, "/api/products/missing", token, in, nil); code != http.StatusNotFound {
		t.Errorf("update missing product = %d", code)
	}
	if code := ts.do(http.MethodPost, "/api/products/import", token, map[string]string{"url": "https://a.b/c"}, nil); code != http.StatusConflict {
		t.Errorf("import without fetcher = %d", code)
	}

	// Leave only the lamp active so the send is deterministic
	for i, p := range products {
		var off model.Product
		if i == 0 {
			if code := ts.do(http.MethodPost, "/api/products/"+p.ID+"/toggle", token, nil, &off); code != http.StatusOK || off.Active {
				t.Fatalf("toggle %s = %d %+v", p.ID, code, off)
			}
			continue
		}
		if code := ts.do(http.MethodPut, "/api/products/"+p.ID+"/active", token, map[string]bool{"is_active": false}, &off); code != http.StatusOK || off.Active {
			t.Fatalf("deactivate %s = %d %+v", p.ID, code, off)
		}
	}

	var cfg model.BroadcastConfig
	cfgIn := model.BroadcastConfigInput{TargetGroup: "ofertas-sp", Template: "Buy {produto} for {preco}"}
	if code := ts.do(http.MethodPost, "/api/configs", token, cfgIn, &cfg); code != http.StatusCreated || cfg.IntervalMinutes != model.DefaultSendInterval {
		t.Fatalf("create config = %d %+v", code, cfg)
	}
	cfgIn.IntervalMinutes = 2
	if code := ts.do(http.MethodPut, "/api/configs/"+cfg.ID, token, cfgIn, nil); code != http.StatusBadRequest {
		t.Errorf("update config with short interval = %d", code)
	}

	var paused model.BroadcastConfig
	if code := ts.do(http.MethodPut, "/api/configs/"+cfg.ID+"/active", token, map[string]bool{"is_active": false}, &paused); code != http.StatusOK || paused.Active {
		t.Errorf("pause config = %d %+v", code, paused)
	}
	if code := ts.do(http.MethodPut, "/api/configs/"+cfg.ID+"/active", token, map[string]bool{"is_active": true}, &paused); code != http.StatusOK || !paused.Active {
		t.Errorf("resume config = %d %+v", code, paused)
	}
	if code := ts.do(http.MethodPut, "/api/configs/"+cfg.ID+"/active", token, map[string]string{}, nil); code != http.StatusBadRequest {
		t.Errorf("set active without flag = %d", code)
	}
	if code := ts.do(http.MethodPut, "/api/configs/missing/active", token, map[string]bool{"is_active": true}, nil); code != http.StatusNotFound {
		t.Errorf("set active on missing config = %d", code)
	}

	var entry model.SendLog
	if code := ts.do(http.MethodPost, "/api/configs/"+cfg.ID+"/send", token, nil, &entry); code != http.StatusOK {
		t.Fatalf("send = %d", code)
	}
	if entry.Status != model.SendStatusSent || entry.Message != "Buy Lamp for R$ 9.50" || entry.ProductID != lamp.ID {
		t.Errorf("send entry = %+v", entry)
	}
	if code := ts.do(http.MethodPost, "/api/configs/missing/send", token, nil, nil); code != http.StatusNotFound {
		t.Errorf("send missing config = %d", code)
	}

	var logs []sendlog.Entry
	if code := ts.do(http.MethodGet, "/api/logs", token, nil, &logs); code != http.StatusOK || len(logs) != 1 {
		t.Fatalf("GET /api/logs = %d %+v", code, logs)
	}
	if logs[0].ProductName != "Lamp" || logs[0].TargetGroup != "ofertas-sp" {
		t.Errorf("log entry = %+v", logs[0])
	}

	if code := ts.do(http.MethodDelete, "/api/products/"+lamp.ID, token, nil, nil); code != http.StatusNoContent {
		t.Errorf("delete product = %d", code)
	}
	if code := ts.do(http.MethodPost, "/api/configs/"+cfg.ID+"/send", token, nil, nil); code != http.StatusConflict {
		t.Errorf("send without active products = %d", code)
	}
	ts.do(http.MethodGet, "/api/logs", token, nil, &logs)
	if len(logs) != 1 || logs[0].ProductName != sendlog.RemovedProduct {
		t.Errorf("log after product removal = %+v", logs)
	}
}

func TestPreview(t *testing.T) {
	ts := newTestServer(t, store.NewMemoryStore())
	token := ts.onboardedUser()

	req := previewRequest{
		Template: "{produto} {preco} {cupom}",
		Product:  &model.ProductInput{Name: "Lamp", Price: 9.5},
	}
	var out previewResponse
	if code := ts.do(http.MethodPost, "/api/preview", token, req, &out); code != http.StatusOK {
		t.Fatalf("preview = %d", code)
	}
	if out.Message != "Lamp R$ 9.50 {cupom}" || len(out.Unknown) != 1 || out.Unknown[0] != "{cupom}" {
		t.Errorf("preview = %+v", out)
	}
	if code := ts.do(http.MethodPost, "/api/preview", token, previewRequest{Template: "x"}, nil); code != http.StatusBadRequest {
		t.Errorf("preview without product = %d", code)
	}
}

func TestVideosAndAdmin(t *testing.T) {
	ts := newTestServer(t, store.NewMemoryStore())
	user := ts.onboardedUser()
	admin := ts.signIn("admin@cestodeofertas.com", "admin123")

	var videos []model.VideoAsset
	if code := ts.do(http.MethodGet, "/api/videos", user, nil, &videos); code != http.StatusOK || len(videos) != 2 {
		t.Fatalf("GET /api/videos = %d, %d videos", code, len(videos))
	}
	var d media.Download
	if code := ts.do(http.MethodGet, "/api/videos/"+videos[0].ID+"/download", user, nil, &d); code != http.StatusOK || !strings.HasSuffix(d.FileName, ".mp4") {
		t.Errorf("download = %d %+v", code, d)
	}

	in := model.VideoAssetInput{Title: "Novo", FileURL: "https://exemplo.com/v.mp4"}
	if code := ts.do(http.MethodPost, "/api/videos", user, in, nil); code != http.StatusForbidden {
		t.Errorf("user create video = %d", code)
	}
	var v model.VideoAsset
	if code := ts.do(http.MethodPost, "/api/videos", admin, in, &v); code != http.StatusCreated {
		t.Fatalf("admin create video = %d", code)
	}
	if code := ts.do(http.MethodDelete, "/api/videos/"+v.ID, user, nil, nil); code != http.StatusForbidden {
		t.Errorf("user delete video = %d", code)
	}
	if code := ts.do(http.MethodDelete, "/api/videos/"+v.ID, admin, nil, nil); code != http.StatusNoContent {
		t.Errorf("admin delete video = %d", code)
	}

	if code := ts.do(http.MethodGet, "/api/admin/stats", user, nil, nil); code != http.StatusForbidden {
		t.Errorf("user stats = %d", code)
	}
	var st account.Stats
	if code := ts.do(http.MethodGet, "/api/admin/stats", admin, nil, &st); code != http.StatusOK || st.Users != 2 || st.Videos != 2 || st.Products != 2 {
		t.Errorf("admin stats = %d %+v", code, st)
	}
	if code := ts.do(http.MethodGet, "/api/admin/users", user, nil, nil); code != http.StatusForbidden {
		t.Errorf("user list users = %d", code)
	}
	var users []map[string]any
	if code := ts.do(http.MethodGet, "/api/admin/users", admin, nil, &users); code != http.StatusOK || len(users) != 2 {
		t.Fatalf("admin list users = %d, %d users", code, len(users))
	}
	for _, u := range users {
		if _, ok := u["password"]; ok {
			t.Errorf("password hash leaked for %v", u["email"])
		}
	}
	if code := ts.do(http.MethodPost, "/api/admin/scheduler/run", admin, nil, nil); code != http.StatusConflict {
		t.Errorf("scheduler run without scheduler = %d", code)
	}
}

func TestSchedulerRun(t *testing.T) {
	var sched *scheduler.Scheduler
	ts := newTestServer(t, store.NewMemoryStore(), func(svc *Services) {
		var err error
		sched, err = scheduler.NewScheduler(svc.Configs, svc.Push, &config.SchedulerConfig{Spec: "@every 1h", Timezone: "UTC"})
		if err != nil {
			t.Fatal(err)
		}
		svc.Scheduler = sched
	})
	t.Cleanup(sched.Stop)
	admin := ts.signIn("admin@cestodeofertas.com", "admin123")

	var h HealthResponse
	ts.do(http.MethodGet, "/health", "", nil, &h)
	if h.Scheduler != "idle" {
		t.Errorf("health scheduler = %q, want idle", h.Scheduler)
	}
	var out map[string]string
	if code := ts.do(http.MethodPost, "/api/admin/scheduler/run?wait=true", admin, nil, &out); code != http.StatusOK || out["status"] != "completed" {
		t.Errorf("run and wait = %d %v", code, out)
	}
	if code := ts.do(http.MethodPost, "/api/admin/scheduler/run", admin, nil, &out); code != http.StatusAccepted || out["status"] != "started" {
		t.Errorf("run in background = %d %v", code, out)
	}

	sched.Stop()
	if code := ts.do(http.MethodPost, "/api/admin/scheduler/run", admin, nil, nil); code != http.StatusConflict {
		t.Errorf("run after stop = %d", code)
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{apperr.Invalid("name", "required"), http.StatusBadRequest},
		{fmt.Errorf("wrapped: %w", apperr.ErrUnauthorized), http.StatusUnauthorized},
		{apperr.ErrForbidden, http.StatusForbidden},
		{fmt.Errorf("product x: %w", apperr.ErrNotFound), http.StatusNotFound},
		{account.ErrWrongStep, http.StatusConflict},
		{push.ErrNoActiveProducts, http.StatusConflict},
		{errors.New("disk full"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := statusFor(tt.err); got != tt.want {
			t.Errorf("statusFor(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}
