package addressbook_test

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"

	"github.com/hugwawi/hugwawi-admin/internal/addressbook"
	"github.com/hugwawi/hugwawi-admin/internal/contacttypes"
	"github.com/hugwawi/hugwawi-admin/internal/directory"
	"github.com/hugwawi/hugwawi-admin/internal/searchlist"
	"github.com/hugwawi/hugwawi-admin/internal/shared"
	"github.com/hugwawi/hugwawi-admin/internal/view"
	_ "github.com/hugwawi/hugwawi-admin/testing"
)

// backendStub serves a canned slice of the HUGWAWI API.
type backendStub struct {
	mu       sync.Mutex
	searches []url.Values
	failNext bool
}

func (b *backendStub) recordedSearches() []url.Values {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]url.Values, len(b.searches))
	copy(out, b.searches)
	return out
}

func (b *backendStub) serve(w http.ResponseWriter, r *http.Request) {
	writeJSON := func(v any) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(v)
	}

	address := directory.Address{
		Kdn:       "K-1001",
		Suchname:  "Mayer GmbH",
		Name1:     "Mayer GmbH",
		Strasse:   "Hauptplatz 1",
		Plz:       "4020",
		Ort:       "Linz",
		Land:      "AT",
		Telefon:   "+43 732 123456",
		Email:     "office@mayer.example",
		Aktiv:     true,
		UpdatedAt: time.Date(2024, 11, 5, 9, 30, 0, 0, time.UTC),
	}
	line := directory.AddressLine{
		ID: 1, Kdn: "K-1001", Typ: "liefer", Name1: "Mayer GmbH Lager",
		Strasse: "Industriestrasse 12", Plz: "4020", Ort: "Linz", Land: "AT",
	}
	account := directory.BankAccount{
		ID: 5, Kdn: "K-1001", IBAN: "AT611904300234573201", BIC: "BKAUATWW",
		Bankname: "Bank Austria", Inhaber: "Mayer GmbH", Waehrung: "EUR", Standard: true,
	}
	contact := directory.Contact{
		ID: 7, Kdn: "K-1001", Anrede: "Frau", Vorname: "Eva", Nachname: "Huber",
		Abteilung: "Einkauf", Email: "e.huber@mayer.example", TypID: 1,
	}

	switch r.URL.Path {
	case "/api/v1/addresses/search":
		b.mu.Lock()
		b.searches = append(b.searches, r.URL.Query())
		fail := b.failNext
		b.failNext = false
		b.mu.Unlock()
		if fail {
			w.Header().Set("Content-Type", "application/problem+json")
			w.WriteHeader(http.StatusBadGateway)
			_, _ = w.Write([]byte(`{"title":"Bad Gateway","detail":"database offline"}`))
			return
		}
		writeJSON(directory.ResultPage{
			Items: []directory.Address{
				address,
				{Kdn: "K-2002", Suchname: "Schmidt AG", Name1: "Schmidt AG", Plz: "80331", Ort: "Muenchen", Land: "DE", Aktiv: true},
			},
			Total:      2,
			TotalPages: 1,
		})
	case "/api/v1/contact-types":
		writeJSON([]directory.ContactType{{ID: 1, Name: "Einkauf"}, {ID: 2, Name: "Verkauf"}})
	case "/api/v1/addresses/K-1001":
		writeJSON(address)
	case "/api/v1/addresses/K-1001/lines":
		writeJSON([]directory.AddressLine{line})
	case "/api/v1/addresses/K-1001/lines/1":
		writeJSON(line)
	case "/api/v1/addresses/K-1001/bank-accounts":
		writeJSON([]directory.BankAccount{account})
	case "/api/v1/addresses/K-1001/bank-accounts/5":
		writeJSON(account)
	case "/api/v1/addresses/K-1001/contacts":
		writeJSON([]directory.Contact{contact})
	case "/api/v1/addresses/K-1001/contacts/7":
		writeJSON(contact)
	default:
		http.NotFound(w, r)
	}
}

type fixture struct {
	router  http.Handler
	backend *backendStub
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	backend := &backendStub{}
	srv := httptest.NewServer(http.HandlerFunc(backend.serve))
	t.Cleanup(srv.Close)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	client, err := directory.NewClient(directory.Options{BaseURL: srv.URL, APIKey: "test-key", RetryMax: 0, Logger: logger})
	if err != nil {
		t.Fatalf("client: %v", err)
	}

	registry := searchlist.NewRegistry(func() *searchlist.Controller {
		return searchlist.NewController(client, logger)
	}, time.Hour, logger)
	cache := contacttypes.NewCache(client, rdb, time.Hour, logger)
	templates, err := view.NewEngine()
	if err != nil {
		t.Fatalf("templates: %v", err)
	}
	sessionManager := shared.NewSessionManager(rdb, "hugwawi_session", "secret", time.Hour, false)
	csrfManager := shared.NewCSRFManager("csrfsecret")

	handler := addressbook.NewHandler(logger, client, registry, cache, templates, csrfManager)

	r := chi.NewRouter()
	r.Use(sessionMiddleware(sessionManager))
	r.Route("/addresses", handler.MountRoutes)

	return &fixture{router: r, backend: backend}
}

type commitWriter struct {
	http.ResponseWriter
	commit        func(http.ResponseWriter)
	headerWritten bool
}

func (w *commitWriter) WriteHeader(code int) {
	if !w.headerWritten {
		w.headerWritten = true
		w.commit(w.ResponseWriter)
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *commitWriter) Write(data []byte) (int, error) {
	if !w.headerWritten {
		w.WriteHeader(http.StatusOK)
	}
	return w.ResponseWriter.Write(data)
}

// sessionMiddleware loads the session and commits it before the first
// response byte, like the server's middleware stack does.
func sessionMiddleware(sm *shared.SessionManager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess, err := sm.Load(r.Context(), r)
			if err != nil {
				http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
				return
			}
			ctx := shared.ContextWithSession(r.Context(), sess)
			wrapped := &commitWriter{ResponseWriter: w, commit: func(target http.ResponseWriter) {
				_ = sm.Commit(ctx, target, r, sess)
			}}
			next.ServeHTTP(wrapped, r.WithContext(ctx))
		})
	}
}

func (f *fixture) do(t *testing.T, method, target string, form url.Values) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if form != nil {
		req = httptest.NewRequest(method, target, strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	req.AddCookie(&http.Cookie{Name: "hugwawi_session", Value: "test-session"})
	rr := httptest.NewRecorder()
	f.router.ServeHTTP(rr, req)
	return rr
}

// ==== SEARCH SCREEN ====

func TestShowSearchRendersCustomerForm(t *testing.T) {
	f := newFixture(t)

	res := f.do(t, http.MethodGet, "/addresses", nil)
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	body := res.Body.String()
	if !strings.Contains(body, "Adresssuche") {
		t.Fatal("expected page heading")
	}
	if !strings.Contains(body, `name="suchname"`) {
		t.Fatal("expected customer filter form by default")
	}
	if strings.Contains(body, "result-table") {
		t.Fatal("expected no result table before the first search")
	}
}

func TestSearchQueriesBackendAndRendersRows(t *testing.T) {
	f := newFixture(t)

	res := f.do(t, http.MethodPost, "/addresses/search", url.Values{
		"group":    {"customer"},
		"suchname": {"Mayer"},
		"aktiv":    {"1"},
	})
	if res.Code != http.StatusSeeOther {
		t.Fatalf("expected 303, got %d", res.Code)
	}
	if loc := res.Header().Get("Location"); loc != "/addresses" {
		t.Fatalf("expected redirect to /addresses, got %q", loc)
	}

	searches := f.backend.recordedSearches()
	if len(searches) != 1 {
		t.Fatalf("expected one backend search, got %d", len(searches))
	}
	q := searches[0]
	if q.Get("group") != "customer" || q.Get("suchname") != "Mayer" || q.Get("aktiv") != "1" {
		t.Fatalf("unexpected search query: %v", q)
	}
	if q.Get("page") != "1" || q.Get("pageSize") != "500" {
		t.Fatalf("unexpected paging parameters: %v", q)
	}
	if q.Get("sort") != "suchname" || q.Get("dir") != "asc" {
		t.Fatalf("unexpected sort parameters: %v", q)
	}

	page := f.do(t, http.MethodGet, "/addresses", nil)
	body := page.Body.String()
	if !strings.Contains(body, "Mayer GmbH") || !strings.Contains(body, "Schmidt AG") {
		t.Fatal("expected loaded rows in result table")
	}
	if !strings.Contains(body, "CSV-Export") {
		t.Fatal("expected export link once results are shown")
	}
}

func TestSearchWithoutCriteriaWarnsWithoutBackendCall(t *testing.T) {
	f := newFixture(t)

	res := f.do(t, http.MethodPost, "/addresses/search", url.Values{
		"group":    {"customer"},
		"suchname": {"   "},
	})
	if res.Code != http.StatusSeeOther {
		t.Fatalf("expected 303, got %d", res.Code)
	}
	if got := len(f.backend.recordedSearches()); got != 0 {
		t.Fatalf("expected no backend search, got %d", got)
	}

	page := f.do(t, http.MethodGet, "/addresses", nil)
	if !strings.Contains(page.Body.String(), "Bitte geben Sie mindestens ein Suchkriterium ein.") {
		t.Fatal("expected empty filter warning")
	}
}

func TestSearchFailureShowsErrorBanner(t *testing.T) {
	f := newFixture(t)
	f.backend.failNext = true

	res := f.do(t, http.MethodPost, "/addresses/search", url.Values{
		"group":    {"customer"},
		"suchname": {"Mayer"},
	})
	if res.Code != http.StatusSeeOther {
		t.Fatalf("expected 303, got %d", res.Code)
	}

	page := f.do(t, http.MethodGet, "/addresses", nil)
	if !strings.Contains(page.Body.String(), "Die Suche ist fehlgeschlagen.") {
		t.Fatal("expected failure banner")
	}
}

func TestSelectGroupSwitchesFilterForm(t *testing.T) {
	f := newFixture(t)

	res := f.do(t, http.MethodPost, "/addresses/group", url.Values{"group": {"contact"}})
	if res.Code != http.StatusSeeOther {
		t.Fatalf("expected 303, got %d", res.Code)
	}

	page := f.do(t, http.MethodGet, "/addresses", nil)
	body := page.Body.String()
	if !strings.Contains(body, `name="nachname"`) {
		t.Fatal("expected contact filter form after group switch")
	}
	if strings.Contains(body, `name="suchname"`) {
		t.Fatal("expected customer filter form to be hidden")
	}
}

func TestSelectGroupRejectsUnknownGroup(t *testing.T) {
	f := newFixture(t)

	res := f.do(t, http.MethodPost, "/addresses/group", url.Values{"group": {"supplier"}})
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
}

func TestSortRejectsUnknownField(t *testing.T) {
	f := newFixture(t)

	res := f.do(t, http.MethodPost, "/addresses/sort", url.Values{"field": {"telefon"}})
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
}

func TestColumnFiltersNarrowVisibleRows(t *testing.T) {
	f := newFixture(t)

	f.do(t, http.MethodPost, "/addresses/search", url.Values{"group": {"customer"}, "suchname": {"a"}})
	res := f.do(t, http.MethodPost, "/addresses/columns", url.Values{"filter_suchname": {"may"}})
	if res.Code != http.StatusSeeOther {
		t.Fatalf("expected 303, got %d", res.Code)
	}
	if got := len(f.backend.recordedSearches()); got != 1 {
		t.Fatalf("column filters must not hit the backend, got %d searches", got)
	}

	page := f.do(t, http.MethodGet, "/addresses", nil)
	body := page.Body.String()
	if !strings.Contains(body, "Mayer GmbH") {
		t.Fatal("expected matching row to stay visible")
	}
	if strings.Contains(body, "Schmidt AG") {
		t.Fatal("expected non-matching row to be hidden")
	}
	if !strings.Contains(body, "1 von 2 Zeilen angezeigt") {
		t.Fatal("expected visible row count")
	}
}

func TestResultsJSONReflectsScreenState(t *testing.T) {
	f := newFixture(t)

	f.do(t, http.MethodPost, "/addresses/search", url.Values{"group": {"customer"}, "suchname": {"a"}})
	f.do(t, http.MethodPost, "/addresses/columns", url.Values{"filter_suchname": {"may"}})

	res := f.do(t, http.MethodGet, "/addresses/results.json", nil)
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	var payload struct {
		Group      string              `json:"group"`
		Page       int                 `json:"page"`
		PageSize   int                 `json:"pageSize"`
		Total      int                 `json:"total"`
		TotalPages int                 `json:"totalPages"`
		Items      []directory.Address `json:"items"`
	}
	if err := json.Unmarshal(res.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if payload.Group != "customer" || payload.Page != 1 || payload.PageSize != 500 {
		t.Fatalf("unexpected paging state: %+v", payload)
	}
	if payload.Total != 2 || len(payload.Items) != 1 {
		t.Fatalf("expected filtered view of two loaded rows, got %+v", payload)
	}
	if payload.Items[0].Suchname != "Mayer GmbH" {
		t.Fatalf("unexpected visible row: %+v", payload.Items[0])
	}
}

func TestExportCSVStreamsVisibleRows(t *testing.T) {
	f := newFixture(t)

	f.do(t, http.MethodPost, "/addresses/search", url.Values{"group": {"customer"}, "suchname": {"a"}})

	res := f.do(t, http.MethodGet, "/addresses/export.csv", nil)
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	if ct := res.Header().Get("Content-Type"); ct != "text/csv" {
		t.Fatalf("expected text/csv, got %q", ct)
	}
	if cd := res.Header().Get("Content-Disposition"); !strings.Contains(cd, "adressen-customer-") {
		t.Fatalf("unexpected content disposition %q", cd)
	}
	body := res.Body.String()
	if !strings.HasPrefix(body, "# HUGWAWI Adresssuche") {
		t.Fatal("expected comment header")
	}
	if !strings.Contains(body, "Kdn,Suchname,Name") {
		t.Fatal("expected column header row")
	}
	if !strings.Contains(body, "K-1001,Mayer GmbH") || !strings.Contains(body, "K-2002,Schmidt AG") {
		t.Fatal("expected data rows")
	}
}

// ==== DETAIL PAGES ====

func TestAddressDetailShowsChildRecords(t *testing.T) {
	f := newFixture(t)

	res := f.do(t, http.MethodGet, "/addresses/K-1001", nil)
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	body := res.Body.String()
	if !strings.Contains(body, "Mayer GmbH") {
		t.Fatal("expected address heading")
	}
	if !strings.Contains(body, "Mayer GmbH Lager") {
		t.Fatal("expected address line row")
	}
	if !strings.Contains(body, "AT611904300234573201") {
		t.Fatal("expected bank account row")
	}
	if !strings.Contains(body, "Huber") {
		t.Fatal("expected contact row")
	}
	if !strings.Contains(body, "Einkauf") {
		t.Fatal("expected contact type name")
	}
}

func TestAddressDetailNotFound(t *testing.T) {
	f := newFixture(t)

	res := f.do(t, http.MethodGet, "/addresses/NOPE", nil)
	if res.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", res.Code)
	}
	if !strings.Contains(res.Body.String(), "existiert nicht") {
		t.Fatal("expected not found page")
	}
}

func TestSaveContactInvalidShowsFieldErrors(t *testing.T) {
	f := newFixture(t)

	res := f.do(t, http.MethodPost, "/addresses/K-1001/contacts/7", url.Values{
		"nachname": {""},
		"email":    {"not-an-address"},
	})
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
	body := res.Body.String()
	if !strings.Contains(body, "Pflichtfeld.") {
		t.Fatal("expected required field error")
	}
	if !strings.Contains(body, "Keine gültige E-Mail-Adresse.") {
		t.Fatal("expected email error")
	}
	if !strings.Contains(body, `value="not-an-address"`) {
		t.Fatal("expected submitted value to be re-rendered")
	}
}

func TestSaveBankAccountRejectsInvalidIBAN(t *testing.T) {
	f := newFixture(t)

	res := f.do(t, http.MethodPost, "/addresses/K-1001/bank-accounts/5", url.Values{
		"iban":    {"AT611904300234573202"},
		"inhaber": {"Mayer GmbH"},
	})
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
	if !strings.Contains(res.Body.String(), "Keine gültige IBAN.") {
		t.Fatal("expected IBAN error")
	}
}

func TestSaveBankAccountValidFlashesOnRedirect(t *testing.T) {
	f := newFixture(t)

	res := f.do(t, http.MethodPost, "/addresses/K-1001/bank-accounts/5", url.Values{
		"iban":     {"DE89370400440532013000"},
		"bic":      {"COBADEFFXXX"},
		"inhaber":  {"Mayer GmbH"},
		"waehrung": {"EUR"},
	})
	if res.Code != http.StatusSeeOther {
		t.Fatalf("expected 303, got %d", res.Code)
	}
	if loc := res.Header().Get("Location"); loc != "/addresses/K-1001/bank-accounts/5" {
		t.Fatalf("unexpected redirect target %q", loc)
	}

	page := f.do(t, http.MethodGet, "/addresses/K-1001/bank-accounts/5", nil)
	if !strings.Contains(page.Body.String(), "Geprüft.") {
		t.Fatal("expected flash on redirected page")
	}
}

func TestAddressLineDetailPrefillsForm(t *testing.T) {
	f := newFixture(t)

	res := f.do(t, http.MethodGet, "/addresses/K-1001/lines/1", nil)
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	body := res.Body.String()
	if !strings.Contains(body, `value="Mayer GmbH Lager"`) {
		t.Fatal("expected prefilled line name")
	}
	if !strings.Contains(body, `value="Industriestrasse 12"`) {
		t.Fatal("expected prefilled street")
	}
}

func TestResetClearsLoadedResults(t *testing.T) {
	f := newFixture(t)

	f.do(t, http.MethodPost, "/addresses/search", url.Values{"group": {"customer"}, "suchname": {"Mayer"}})
	page := f.do(t, http.MethodGet, "/addresses", nil)
	if !strings.Contains(page.Body.String(), "Mayer GmbH") {
		t.Fatal("expected rows before reset")
	}

	res := f.do(t, http.MethodPost, "/addresses/reset", nil)
	if res.Code != http.StatusSeeOther {
		t.Fatalf("expected 303, got %d", res.Code)
	}
	if got := len(f.backend.recordedSearches()); got != 1 {
		t.Fatalf("reset must not hit the backend, got %d searches", got)
	}

	page = f.do(t, http.MethodGet, "/addresses", nil)
	body := page.Body.String()
	if strings.Contains(body, "Mayer GmbH") {
		t.Fatal("expected results to be cleared")
	}
	if !strings.Contains(body, `name="suchname" value=""`) {
		t.Fatal("expected customer filter fields to be emptied")
	}
}
