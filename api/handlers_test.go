package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/garnizeh/freelance/api"
	dbfs "github.com/garnizeh/freelance/db"
	"github.com/garnizeh/freelance/internal/config"
	dbpkg "github.com/garnizeh/freelance/internal/db"
	"github.com/garnizeh/freelance/internal/repository/sqlite"
	"github.com/garnizeh/freelance/pkg/models"
	"github.com/shopspring/decimal"
)

type testServer struct {
	handler http.Handler
	db      *dbpkg.DB
	repo    *sqlite.SQLiteRepo
}

func newTestServer(t *testing.T, mutate func(cfg *config.Config)) *testServer {
	t.Helper()
	ctx := context.Background()
	api.SetLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))

	d, err := dbpkg.New(ctx, dbpkg.DSN(filepath.Join(t.TempDir(), "api.db")), nil)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { d.Close() })
	if err := dbpkg.Migrate(ctx, d, dbfs.Migrations); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if err := dbpkg.Seed(ctx, d, dbfs.SeedFiles); err != nil {
		t.Fatalf("seed: %v", err)
	}

	cfg := config.DefaultConfig()
	if mutate != nil {
		mutate(cfg)
	}

	return &testServer{
		handler: api.SetupRoutes(cfg, "test", "now", d),
		db:      d,
		repo:    sqlite.New(d, nil),
	}
}

// do sends a request as profileID (0 sends no identity) and decodes the JSON
// body into out when out is non-nil.
func (s *testServer) do(t *testing.T, method, path string, profileID int64, body string, out any) int {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = bytes.NewBufferString(body)
	}
	req := httptest.NewRequest(method, path, r)
	if profileID != 0 {
		req.Header.Set(api.ProfileHeader, strconv.FormatInt(profileID, 10))
	}
	w := httptest.NewRecorder()
	s.handler.ServeHTTP(w, req)

	res := w.Result()
	defer res.Body.Close()
	if out != nil {
		if err := json.NewDecoder(res.Body).Decode(out); err != nil {
			t.Fatalf("%s %s: decode response: %v", method, path, err)
		}
	}
	return res.StatusCode
}

func (s *testServer) balance(t *testing.T, id int64) decimal.Decimal {
	t.Helper()
	p, err := s.repo.GetProfile(context.Background(), id)
	if err != nil || p == nil {
		t.Fatalf("GetProfile(%d): %#v, %v", id, p, err)
	}
	return p.Balance
}

type errorBody struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

func TestRoutes_RequireProfile(t *testing.T) {
	s := newTestServer(t, nil)

	var e errorBody
	if status := s.do(t, http.MethodGet, "/contracts", 0, "", &e); status != http.StatusUnauthorized {
		t.Fatalf("expected 401 without profile, got %d", status)
	}
	if e.Success || e.Error == "" {
		t.Fatalf("unexpected error body: %#v", e)
	}
	if status := s.do(t, http.MethodGet, "/contracts", 999, "", nil); status != http.StatusUnauthorized {
		t.Fatalf("expected 401 for unknown profile, got %d", status)
	}
	if status := s.do(t, http.MethodGet, "/health", 0, "", nil); status != http.StatusOK {
		t.Fatalf("expected open health endpoint, got %d", status)
	}
}

func TestContracts(t *testing.T) {
	s := newTestServer(t, nil)

	var one struct {
		Success  bool            `json:"success"`
		Contract models.Contract `json:"contract"`
	}
	if status := s.do(t, http.MethodGet, "/contracts/1", 1, "", &one); status != http.StatusOK {
		t.Fatalf("expected 200, got %d", status)
	}
	if !one.Success || one.Contract.ID != 1 || one.Contract.Client == nil || one.Contract.Client.ID != 1 {
		t.Fatalf("unexpected contract body: %#v", one)
	}

	if status := s.do(t, http.MethodGet, "/contracts/1", 2, "", nil); status != http.StatusNotFound {
		t.Fatalf("expected 404 for a contract owned by others, got %d", status)
	}

	var list struct {
		Success   bool              `json:"success"`
		Contracts []models.Contract `json:"contracts"`
	}
	if status := s.do(t, http.MethodGet, "/contracts", 6, "", &list); status != http.StatusOK {
		t.Fatalf("expected 200, got %d", status)
	}
	// contractor 6 works on contracts 2, 3 and 8
	if len(list.Contracts) != 3 {
		t.Fatalf("expected 3 contracts for contractor 6, got %d", len(list.Contracts))
	}
	for _, c := range list.Contracts {
		if c.Status == models.ContractTerminated {
			t.Fatalf("terminated contract listed: %#v", c)
		}
	}
}

func TestUnpaidJobs(t *testing.T) {
	s := newTestServer(t, nil)

	var body struct {
		Success bool         `json:"success"`
		Jobs    []models.Job `json:"jobs"`
	}
	if status := s.do(t, http.MethodGet, "/jobs/unpaid", 1, "", &body); status != http.StatusOK {
		t.Fatalf("expected 200, got %d", status)
	}
	// job 1 belongs to the terminated contract 1
	if len(body.Jobs) != 1 || body.Jobs[0].ID != 2 || body.Jobs[0].Paid {
		t.Fatalf("unexpected unpaid jobs: %#v", body.Jobs)
	}
}

type payBody struct {
	Success bool       `json:"success"`
	Message string     `json:"message"`
	Job     models.Job `json:"job"`
}

func TestPayJob(t *testing.T) {
	s := newTestServer(t, nil)

	var body payBody
	if status := s.do(t, http.MethodPost, "/jobs/2/pay", 1, "", &body); status != http.StatusCreated {
		t.Fatalf("expected 201, got %d", status)
	}
	if !body.Success || !body.Job.Paid || body.Job.PaymentDate == nil {
		t.Fatalf("unexpected pay body: %#v", body)
	}
	if got := s.balance(t, 1); !got.Equal(decimal.RequireFromString("949")) {
		t.Fatalf("client balance: want 949, got %s", got)
	}
	if got := s.balance(t, 6); !got.Equal(decimal.RequireFromString("1415")) {
		t.Fatalf("contractor balance: want 1415, got %s", got)
	}

	var queued int
	if err := s.db.QueryRow(context.Background(), `SELECT COUNT(*) FROM tasks WHERE type = 'payment.completed'`).Scan(&queued); err != nil || queued != 1 {
		t.Fatalf("expected one payment.completed task, got %d (%v)", queued, err)
	}

	// second attempt changes nothing
	var e errorBody
	if status := s.do(t, http.MethodPost, "/jobs/2/pay", 1, "", &e); status != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for a paid job, got %d", status)
	}
	if got := s.balance(t, 1); !got.Equal(decimal.RequireFromString("949")) {
		t.Fatalf("client balance changed on repeat payment: %s", got)
	}
}

func TestPayJob_Failures(t *testing.T) {
	s := newTestServer(t, nil)

	// job 3 belongs to client 2
	if status := s.do(t, http.MethodPost, "/jobs/3/pay", 1, "", nil); status != http.StatusNotFound {
		t.Fatalf("expected 404 for another client's job, got %d", status)
	}
	// contractors cannot pay
	if status := s.do(t, http.MethodPost, "/jobs/2/pay", 6, "", nil); status != http.StatusNotFound {
		t.Fatalf("expected 404 for contractor caller, got %d", status)
	}
	if status := s.do(t, http.MethodPost, "/jobs/999/pay", 1, "", nil); status != http.StatusNotFound {
		t.Fatalf("expected 404 for a missing job, got %d", status)
	}

	// client 4 holds 1.30 and job 5 costs 200
	var e errorBody
	if status := s.do(t, http.MethodPost, "/jobs/5/pay", 4, "", &e); status != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for insufficient funds, got %d", status)
	}
	if got := s.balance(t, 4); !got.Equal(decimal.RequireFromString("1.3")) {
		t.Fatalf("client 4 balance changed: %s", got)
	}
	if got := s.balance(t, 7); !got.Equal(decimal.RequireFromString("22")) {
		t.Fatalf("contractor 7 balance changed: %s", got)
	}
}

func TestPayJob_RollsBackOnFailure(t *testing.T) {
	s := newTestServer(t, nil)
	ctx := context.Background()

	if _, err := s.db.Exec(ctx, `CREATE TRIGGER fail_pay BEFORE UPDATE OF paid ON jobs BEGIN SELECT RAISE(ABORT, 'boom'); END;`); err != nil {
		t.Fatalf("create trigger: %v", err)
	}

	var e errorBody
	if status := s.do(t, http.MethodPost, "/jobs/2/pay", 1, "", &e); status != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", status)
	}
	if e.Error != "internal server error" {
		t.Fatalf("expected generic message, got %q", e.Error)
	}

	// debit and credit ran before the trigger fired and must be undone
	if got := s.balance(t, 1); !got.Equal(decimal.RequireFromString("1150")) {
		t.Fatalf("client balance not rolled back: %s", got)
	}
	if got := s.balance(t, 6); !got.Equal(decimal.RequireFromString("1214")) {
		t.Fatalf("contractor balance not rolled back: %s", got)
	}
	j, _ := s.repo.GetJob(ctx, 2)
	if j.Paid {
		t.Fatalf("job marked paid after rollback")
	}
	var queued int
	_ = s.db.QueryRow(ctx, `SELECT COUNT(*) FROM tasks`).Scan(&queued)
	if queued != 0 {
		t.Fatalf("expected no task after rollback, got %d", queued)
	}
}

func TestPayJob_ClientPaysContractor(t *testing.T) {
	s := newTestServer(t, nil)
	ctx := context.Background()

	a, _ := s.repo.CreateProfile(ctx, &models.Profile{FirstName: "A", LastName: "Client", Profession: "Owner", Balance: decimal.NewFromInt(100), Role: models.RoleClient})
	b, _ := s.repo.CreateProfile(ctx, &models.Profile{FirstName: "B", LastName: "Contractor", Profession: "Painter", Role: models.RoleContractor})
	c, _ := s.repo.CreateContract(ctx, &models.Contract{Terms: "paint", Status: models.ContractInProgress, ClientID: a, ContractorID: b})
	j, err := s.repo.CreateJob(ctx, &models.Job{Description: "fence", Price: decimal.NewFromInt(50), ContractID: c})
	if err != nil {
		t.Fatalf("fixtures: %v", err)
	}

	var body payBody
	if status := s.do(t, http.MethodPost, "/jobs/"+strconv.FormatInt(j, 10)+"/pay", a, "", &body); status != http.StatusCreated {
		t.Fatalf("expected 201, got %d", status)
	}
	if got := s.balance(t, a); !got.Equal(decimal.NewFromInt(50)) {
		t.Fatalf("A: want 50, got %s", got)
	}
	if got := s.balance(t, b); !got.Equal(decimal.NewFromInt(50)) {
		t.Fatalf("B: want 50, got %s", got)
	}
	if !body.Job.Paid {
		t.Fatalf("expected paid job in response")
	}
}

type depositBody struct {
	Success bool           `json:"success"`
	Message string         `json:"message"`
	Client  models.Profile `json:"client"`
}

func TestDeposit_Cap(t *testing.T) {
	s := newTestServer(t, nil)
	ctx := context.Background()

	// outstanding in-progress work of 200 caps deposits at 50
	cl, _ := s.repo.CreateProfile(ctx, &models.Profile{FirstName: "C", LastName: "Client", Profession: "Owner", Role: models.RoleClient})
	co, _ := s.repo.CreateProfile(ctx, &models.Profile{FirstName: "D", LastName: "Dev", Profession: "Programmer", Role: models.RoleContractor})
	c, _ := s.repo.CreateContract(ctx, &models.Contract{Terms: "build", Status: models.ContractInProgress, ClientID: cl, ContractorID: co})
	for _, price := range []int64{120, 80} {
		if _, err := s.repo.CreateJob(ctx, &models.Job{Description: "part", Price: decimal.NewFromInt(price), ContractID: c}); err != nil {
			t.Fatalf("fixtures: %v", err)
		}
	}
	path := "/balances/deposit/" + strconv.FormatInt(cl, 10)

	var e errorBody
	if status := s.do(t, http.MethodPost, path, cl, `{"amount": 60}`, &e); status != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 above the cap, got %d", status)
	}
	if got := s.balance(t, cl); !got.IsZero() {
		t.Fatalf("balance changed on rejected deposit: %s", got)
	}

	var body depositBody
	if status := s.do(t, http.MethodPost, path, cl, `{"amount": 50}`, &body); status != http.StatusCreated {
		t.Fatalf("expected 201 at the cap, got %d", status)
	}
	if !body.Success || !body.Client.Balance.Equal(decimal.NewFromInt(50)) {
		t.Fatalf("unexpected deposit body: %#v", body)
	}
	if got := s.balance(t, cl); !got.Equal(decimal.NewFromInt(50)) {
		t.Fatalf("stored balance: want 50, got %s", got)
	}
}

func TestDeposit_Validation(t *testing.T) {
	s := newTestServer(t, nil)

	cases := []struct {
		name       string
		path       string
		caller     int64
		body       string
		wantStatus int
	}{
		{"not json", "/balances/deposit/2", 2, `amount=5`, http.StatusBadRequest},
		{"missing amount", "/balances/deposit/2", 2, `{}`, http.StatusBadRequest},
		{"string amount", "/balances/deposit/2", 2, `{"amount": "5"}`, http.StatusBadRequest},
		{"extra field", "/balances/deposit/2", 2, `{"amount": 5, "to": 3}`, http.StatusBadRequest},
		{"negative", "/balances/deposit/2", 2, `{"amount": -5}`, http.StatusUnprocessableEntity},
		{"sub cent", "/balances/deposit/2", 2, `{"amount": 1.001}`, http.StatusUnprocessableEntity},
		{"contractor target", "/balances/deposit/6", 2, `{"amount": 5}`, http.StatusNotFound},
		{"third party", "/balances/deposit/3", 2, `{"amount": 5}`, http.StatusForbidden},
		// client 2 has 844 outstanding, cap 211
		{"over cap", "/balances/deposit/2", 2, `{"amount": 211.01}`, http.StatusUnprocessableEntity},
		{"at cap", "/balances/deposit/2", 2, `{"amount": 211}`, http.StatusCreated},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if status := s.do(t, http.MethodPost, c.path, c.caller, c.body, nil); status != c.wantStatus {
				t.Fatalf("want %d got %d", c.wantStatus, status)
			}
		})
	}

	if got := s.balance(t, 2); !got.Equal(decimal.RequireFromString("442.11")) {
		t.Fatalf("client 2: want 231.11 + 211, got %s", got)
	}
}

func TestDeposit_ThirdPartyAllowed(t *testing.T) {
	s := newTestServer(t, func(cfg *config.Config) { cfg.Deposit.AllowThirdParty = true })

	var body depositBody
	if status := s.do(t, http.MethodPost, "/balances/deposit/3", 2, `{"amount": 10}`, &body); status != http.StatusCreated {
		t.Fatalf("expected 201, got %d", status)
	}
	if body.Client.ID != 3 || !body.Client.Balance.Equal(decimal.RequireFromString("461.3")) {
		t.Fatalf("unexpected client: %#v", body.Client)
	}
}

func TestBestProfession(t *testing.T) {
	s := newTestServer(t, nil)

	type professionBody struct {
		Success    bool            `json:"success"`
		Profession string          `json:"profession"`
		Total      decimal.Decimal `json:"total"`
	}

	var global professionBody
	if status := s.do(t, http.MethodGet, "/admin/best-profession?scope=global", 1, "", &global); status != http.StatusOK {
		t.Fatalf("expected 200, got %d", status)
	}
	if global.Profession != "Programmer" || !global.Total.Equal(decimal.NewFromInt(2663)) {
		t.Fatalf("unexpected global best profession: %#v", global)
	}

	var mine professionBody
	if status := s.do(t, http.MethodGet, "/admin/best-profession", 8, "", &mine); status != http.StatusOK {
		t.Fatalf("expected 200, got %d", status)
	}
	if mine.Profession != "Fighter" || !mine.Total.Equal(decimal.NewFromInt(200)) {
		t.Fatalf("unexpected caller-scoped profession: %#v", mine)
	}

	// clients earn nothing as contractors
	if status := s.do(t, http.MethodGet, "/admin/best-profession", 1, "", nil); status != http.StatusNotFound {
		t.Fatalf("expected 404 for a client caller, got %d", status)
	}
	if status := s.do(t, http.MethodGet, "/admin/best-profession?scope=global&end=2020-08-18", 1, "", nil); status != http.StatusNotFound {
		t.Fatalf("expected 404 before the first payment, got %d", status)
	}
	if status := s.do(t, http.MethodGet, "/admin/best-profession?scope=global&start=2020-08-19&end=2020-08-19", 1, "", nil); status != http.StatusOK {
		t.Fatalf("expected a date-only range to cover the whole day, got %d", status)
	}
}

func TestBestClients(t *testing.T) {
	s := newTestServer(t, nil)

	type clientsBody struct {
		Success bool                 `json:"success"`
		Clients []models.ClientTotal `json:"clients"`
	}

	var body clientsBody
	if status := s.do(t, http.MethodGet, "/admin/best-clients?scope=global", 1, "", &body); status != http.StatusOK {
		t.Fatalf("expected 200, got %d", status)
	}
	if len(body.Clients) != 2 {
		t.Fatalf("expected default limit 2, got %d", len(body.Clients))
	}
	if body.Clients[0].ID != 4 || body.Clients[0].FullName != "Ash Kethcum" || !body.Clients[0].Paid.Equal(decimal.NewFromInt(2000)) {
		t.Fatalf("unexpected top client: %#v", body.Clients[0])
	}
	if body.Clients[1].ID != 1 {
		t.Fatalf("expected tie at 442 to resolve to client 1, got %d", body.Clients[1].ID)
	}

	body = clientsBody{}
	if status := s.do(t, http.MethodGet, "/admin/best-clients?scope=global&limit=10&start=2020-01-01T00:00:00Z", 1, "", &body); status != http.StatusOK {
		t.Fatalf("expected 200, got %d", status)
	}
	if len(body.Clients) != 4 {
		t.Fatalf("expected all 4 paying clients, got %d", len(body.Clients))
	}
	for i := 1; i < len(body.Clients); i++ {
		if body.Clients[i].Paid.GreaterThan(body.Clients[i-1].Paid) {
			t.Fatalf("clients not sorted by paid desc: %#v", body.Clients)
		}
	}

	body = clientsBody{}
	if status := s.do(t, http.MethodGet, "/admin/best-clients", 2, "", &body); status != http.StatusOK {
		t.Fatalf("expected 200, got %d", status)
	}
	if len(body.Clients) != 1 || body.Clients[0].ID != 2 {
		t.Fatalf("expected caller scope to return only client 2, got %#v", body.Clients)
	}

	for _, q := range []string{"limit=0", "limit=abc", "limit=101", "start=yesterday", "start=2021-01-02&end=2021-01-01", "scope=team"} {
		if status := s.do(t, http.MethodGet, "/admin/best-clients?"+q, 1, "", nil); status != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", q, status)
		}
	}
}

func TestBestClients_GlobalDefaultScope(t *testing.T) {
	s := newTestServer(t, func(cfg *config.Config) { cfg.Reports.DefaultScope = "global" })

	var body struct {
		Clients []models.ClientTotal `json:"clients"`
	}
	if status := s.do(t, http.MethodGet, "/admin/best-clients?limit=4", 6, "", &body); status != http.StatusOK {
		t.Fatalf("expected 200, got %d", status)
	}
	if len(body.Clients) != 4 {
		t.Fatalf("expected site-wide clients, got %d", len(body.Clients))
	}
}
