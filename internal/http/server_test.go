package http

import (
	"context"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"prekbill/internal/auth"
	"prekbill/internal/config"
	"prekbill/internal/core"
	"prekbill/internal/session"
	"prekbill/internal/storage"
)

type testEnv struct {
	ts     *httptest.Server
	store  *storage.Store
	client *http.Client
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	cfg := config.Load()
	cfg.SQLiteDBPath = filepath.Join(t.TempDir(), "prekbill.db")
	cfg.BcryptCost = bcrypt.MinCost

	store, err := storage.Open(cfg.SQLiteDBPath)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	hash, err := auth.HashPassword("letmein", bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	if _, err := store.CreateUser(context.Background(), "office", hash); err != nil {
		t.Fatalf("create user: %v", err)
	}

	sessions := session.NewManager(cfg.MaxSessions, cfg.SessionTTL)
	srv, err := NewServer(cfg, store, sessions)
	if err != nil {
		t.Fatalf("build server: %v", err)
	}

	ts := httptest.NewServer(srv.Handler)
	t.Cleanup(ts.Close)

	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("cookie jar: %v", err)
	}
	client := &http.Client{
		Jar:     jar,
		Timeout: 5 * time.Second,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}

	return &testEnv{ts: ts, store: store, client: client}
}

func (e *testEnv) get(t *testing.T, path string) *http.Response {
	t.Helper()
	resp, err := e.client.Get(e.ts.URL + path)
	if err != nil {
		t.Fatalf("GET %s: %v", path, err)
	}
	return resp
}

func (e *testEnv) postForm(t *testing.T, path string, form url.Values) *http.Response {
	t.Helper()
	resp, err := e.client.PostForm(e.ts.URL+path, form)
	if err != nil {
		t.Fatalf("POST %s: %v", path, err)
	}
	return resp
}

func (e *testEnv) login(t *testing.T) {
	t.Helper()
	resp := e.postForm(t, "/login", url.Values{"username": {"office"}, "password": {"letmein"}})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusSeeOther || resp.Header.Get("Location") != "/" {
		t.Fatalf("login: status %d, location %q", resp.StatusCode, resp.Header.Get("Location"))
	}
}

func (e *testEnv) registerStudent(t *testing.T, first string, status core.EnrollmentStatus) int64 {
	t.Helper()
	resp := e.postForm(t, "/process_registration", url.Values{
		"parent_first_name":  {"Pat"},
		"parent_last_name":   {first},
		"address":            {"1 Main St"},
		"city":               {"Springfield"},
		"state":              {"IL"},
		"zipcode":            {"62704"},
		"email":              {"pat@example.com"},
		"phone":              {"555-0100"},
		"student_first_name": {first},
		"student_last_name":  {"Kid"},
		"enrollment_status":  {string(status)},
	})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusSeeOther {
		t.Fatalf("registration: status %d", resp.StatusCode)
	}

	// Resolve the new student id through the store.
	students := e.allStudents(t)
	for _, st := range students {
		if st.FirstName == first {
			return st.ID
		}
	}
	t.Fatalf("student %q not found after registration", first)
	return 0
}

func (e *testEnv) allStudents(t *testing.T) []core.Student {
	t.Helper()
	// Registered students may be inactive; walk ids until a gap.
	var out []core.Student
	for id := int64(1); ; id++ {
		st, err := e.store.StudentByID(context.Background(), id)
		if err != nil {
			break
		}
		out = append(out, st)
	}
	return out
}

func body(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return string(b)
}

func TestProtectedRoutesRedirectToLogin(t *testing.T) {
	e := newTestEnv(t)

	for _, path := range []string{"/", "/register", "/manage/1", "/show_invoice", "/show_statement"} {
		resp := e.get(t, path)
		resp.Body.Close()
		if resp.StatusCode != http.StatusSeeOther || resp.Header.Get("Location") != "/login" {
			t.Errorf("GET %s without session: status %d, location %q",
				path, resp.StatusCode, resp.Header.Get("Location"))
		}
	}
}

func TestLoginLogout(t *testing.T) {
	e := newTestEnv(t)

	resp := e.postForm(t, "/login", url.Values{"username": {"office"}, "password": {"wrong"}})
	page := body(t, resp)
	if resp.StatusCode != http.StatusUnauthorized || !strings.Contains(page, "Invalid username or password") {
		t.Fatalf("bad login: status %d, page %q", resp.StatusCode, page)
	}

	e.login(t)

	resp = e.get(t, "/")
	page = body(t, resp)
	if resp.StatusCode != http.StatusOK || !strings.Contains(page, "office") {
		t.Fatalf("index after login: status %d", resp.StatusCode)
	}

	resp = e.get(t, "/logout")
	resp.Body.Close()
	if resp.StatusCode != http.StatusSeeOther || resp.Header.Get("Location") != "/login" {
		t.Fatalf("logout: status %d", resp.StatusCode)
	}

	resp = e.get(t, "/")
	resp.Body.Close()
	if resp.StatusCode != http.StatusSeeOther || resp.Header.Get("Location") != "/login" {
		t.Fatal("session must be dead after logout")
	}

	// Logging out again is not an error.
	resp = e.get(t, "/logout")
	resp.Body.Close()
	if resp.StatusCode != http.StatusSeeOther {
		t.Fatalf("repeat logout: status %d", resp.StatusCode)
	}
}

func TestIndexShowsOnlyActiveStudents(t *testing.T) {
	e := newTestEnv(t)
	e.login(t)

	e.registerStudent(t, "Activia", core.StatusActive)
	e.registerStudent(t, "Dormant", core.StatusInactive)

	resp := e.get(t, "/")
	page := body(t, resp)
	if !strings.Contains(page, "Activia") {
		t.Error("active student missing from index")
	}
	if strings.Contains(page, "Dormant") {
		t.Error("inactive student leaked into index")
	}
}

func TestRegistrationRejectsUnknownStatus(t *testing.T) {
	e := newTestEnv(t)
	e.login(t)

	resp := e.postForm(t, "/process_registration", url.Values{
		"parent_first_name":  {"Pat"},
		"parent_last_name":   {"Doe"},
		"student_first_name": {"Kid"},
		"student_last_name":  {"Doe"},
		"enrollment_status":  {"Expelled"},
	})
	resp.Body.Close()
	if resp.StatusCode != http.StatusSeeOther || resp.Header.Get("Location") != "/register" {
		t.Fatalf("unknown status: status %d, location %q", resp.StatusCode, resp.Header.Get("Location"))
	}
	if got := e.allStudents(t); len(got) != 0 {
		t.Fatalf("no student should be written, got %+v", got)
	}
}

func TestPaymentFlow(t *testing.T) {
	e := newTestEnv(t)
	e.login(t)
	id := e.registerStudent(t, "Paige", core.StatusActive)
	manage := "/manage/" + strconv.FormatInt(id, 10)

	// No payments yet: total renders as 0.00.
	resp := e.get(t, manage)
	page := body(t, resp)
	if !strings.Contains(page, "0.00") {
		t.Fatal("empty payment history must show total 0.00")
	}

	// Invalid amount: redirect back to the form, nothing written.
	resp = e.postForm(t, "/process_payment/"+strconv.FormatInt(id, 10),
		url.Values{"payment_amount": {"abc"}, "payment_date": {"2024-06-01"}})
	resp.Body.Close()
	if loc := resp.Header.Get("Location"); loc != "/enter_payment/"+strconv.FormatInt(id, 10) {
		t.Fatalf("invalid amount redirect = %q", loc)
	}
	if payments, _ := e.store.PaymentsByStudent(context.Background(), id); len(payments) != 0 {
		t.Fatal("invalid amount must not write a payment")
	}

	// Valid amount rounds to two decimals.
	resp = e.postForm(t, "/process_payment/"+strconv.FormatInt(id, 10),
		url.Values{"payment_amount": {"150.5"}, "payment_date": {"2024-06-01"}})
	resp.Body.Close()
	if loc := resp.Header.Get("Location"); loc != manage {
		t.Fatalf("payment redirect = %q, want %q", loc, manage)
	}

	resp = e.get(t, manage)
	page = body(t, resp)
	if !strings.Contains(page, "150.50") {
		t.Fatal("manage page must show the normalized amount 150.50")
	}
	if !strings.Contains(page, "New Payment Added Successfully!") {
		t.Fatal("expected success flash on manage page")
	}

	// The flash is read-once.
	resp = e.get(t, manage)
	page = body(t, resp)
	if strings.Contains(page, "New Payment Added Successfully!") {
		t.Fatal("flash must not survive a second render")
	}
}

func TestUpdateAndDeletePayment(t *testing.T) {
	e := newTestEnv(t)
	e.login(t)
	id := e.registerStudent(t, "Uma", core.StatusActive)
	sid := strconv.FormatInt(id, 10)

	resp := e.postForm(t, "/process_payment/"+sid,
		url.Values{"payment_amount": {"25"}, "payment_date": {"2024-01-01"}})
	resp.Body.Close()
	payments, _ := e.store.PaymentsByStudent(context.Background(), id)
	if len(payments) != 1 {
		t.Fatalf("expected 1 payment, got %d", len(payments))
	}
	pid := strconv.FormatInt(payments[0].ID, 10)

	resp = e.postForm(t, "/update_payment/"+sid+"/"+pid,
		url.Values{"payment_amount": {"30.125"}, "payment_date": {"2024-01-02"}})
	resp.Body.Close()
	p, err := e.store.PaymentByID(context.Background(), payments[0].ID)
	if err != nil || p.Amount.Cents != 3013 || p.DatePaid != "2024-01-02" {
		t.Fatalf("payment after update = %+v (err=%v)", p, err)
	}

	// Invalid amount on update redirects back to the edit form.
	resp = e.postForm(t, "/update_payment/"+sid+"/"+pid,
		url.Values{"payment_amount": {"x"}, "payment_date": {"2024-01-03"}})
	resp.Body.Close()
	if loc := resp.Header.Get("Location"); loc != "/edit_payment/"+sid+"/"+pid {
		t.Fatalf("invalid update redirect = %q", loc)
	}

	resp = e.postForm(t, "/delete_payment/"+sid+"/"+pid, url.Values{})
	resp.Body.Close()
	if _, err := e.store.PaymentByID(context.Background(), payments[0].ID); err == nil {
		t.Fatal("payment should be gone after delete")
	}

	// Deleting again is an idempotent no-op.
	resp = e.postForm(t, "/delete_payment/"+sid+"/"+pid, url.Values{})
	resp.Body.Close()
	if resp.StatusCode != http.StatusSeeOther {
		t.Fatalf("repeat delete: status %d", resp.StatusCode)
	}
}

func TestUpdateStudentAndParent(t *testing.T) {
	e := newTestEnv(t)
	e.login(t)
	id := e.registerStudent(t, "Edna", core.StatusActive)

	resp := e.postForm(t, "/update_student/"+strconv.FormatInt(id, 10), url.Values{
		"parent_first_name":  {"Robin"},
		"parent_last_name":   {"Lee"},
		"city":               {"Shelbyville"},
		"student_first_name": {"Edna"},
		"student_last_name":  {"Lee"},
		"enrollment_status":  {string(core.StatusInactive)},
	})
	resp.Body.Close()

	student, parent, err := e.store.StudentWithParent(context.Background(), id)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if student.LastName != "Lee" || student.EnrollmentStatus != core.StatusInactive {
		t.Fatalf("student = %+v", student)
	}
	if parent.FirstName != "Robin" || parent.City != "Shelbyville" {
		t.Fatalf("parent = %+v", parent)
	}
}

func TestManageUnknownStudentSoftFails(t *testing.T) {
	e := newTestEnv(t)
	e.login(t)

	resp := e.get(t, "/manage/999")
	resp.Body.Close()
	if resp.StatusCode != http.StatusSeeOther || resp.Header.Get("Location") != "/" {
		t.Fatalf("unknown student: status %d, location %q", resp.StatusCode, resp.Header.Get("Location"))
	}

	resp = e.get(t, "/")
	page := body(t, resp)
	if !strings.Contains(page, "Student not found.") {
		t.Fatal("expected not-found flash on index")
	}
}

func TestInvoiceFlow(t *testing.T) {
	e := newTestEnv(t)
	e.login(t)

	// Nothing staged yet: show_invoice falls back to the index.
	resp := e.get(t, "/show_invoice")
	resp.Body.Close()
	if resp.StatusCode != http.StatusSeeOther || resp.Header.Get("Location") != "/" {
		t.Fatalf("unstaged show_invoice: status %d, location %q", resp.StatusCode, resp.Header.Get("Location"))
	}

	id := e.registerStudent(t, "Billie", core.StatusActive)
	sid := strconv.FormatInt(id, 10)

	resp = e.postForm(t, "/generate_invoice/"+sid,
		url.Values{"bill_amount": {"150.5"}, "due_date": {"2024-06-01"}})
	resp.Body.Close()
	if loc := resp.Header.Get("Location"); loc != "/show_invoice" {
		t.Fatalf("generate_invoice redirect = %q", loc)
	}

	resp = e.get(t, "/show_invoice")
	page := body(t, resp)
	if !strings.Contains(page, "150.50") || !strings.Contains(page, "2024-06-01") {
		t.Fatalf("invoice page missing amount or due date")
	}
	if !strings.Contains(page, "Billie") {
		t.Fatal("invoice page missing student")
	}

	// The snapshot survives a second read.
	resp = e.get(t, "/show_invoice")
	page = body(t, resp)
	if !strings.Contains(page, "150.50") {
		t.Fatal("staged invoice must survive reads")
	}

	// Invalid amount stages nothing new and writes no row.
	before, _ := e.store.InvoicesByStudent(context.Background(), id)
	resp = e.postForm(t, "/generate_invoice/"+sid,
		url.Values{"bill_amount": {"oops"}, "due_date": {"2024-07-01"}})
	resp.Body.Close()
	if loc := resp.Header.Get("Location"); loc != "/bill_student/"+sid {
		t.Fatalf("invalid invoice amount redirect = %q", loc)
	}
	after, _ := e.store.InvoicesByStudent(context.Background(), id)
	if len(after) != len(before) {
		t.Fatal("invalid amount must not create an invoice")
	}
}

func TestStatementFlow(t *testing.T) {
	e := newTestEnv(t)
	e.login(t)

	resp := e.get(t, "/show_statement")
	resp.Body.Close()
	if resp.StatusCode != http.StatusSeeOther || resp.Header.Get("Location") != "/" {
		t.Fatal("unstaged show_statement must redirect to index")
	}

	id := e.registerStudent(t, "Stella", core.StatusActive)
	sid := strconv.FormatInt(id, 10)
	resp = e.postForm(t, "/process_payment/"+sid,
		url.Values{"payment_amount": {"100"}, "payment_date": {"2024-02-01"}})
	resp.Body.Close()
	resp = e.postForm(t, "/process_payment/"+sid,
		url.Values{"payment_amount": {"50.5"}, "payment_date": {"2024-03-01"}})
	resp.Body.Close()

	resp = e.get(t, "/generate_statement/"+sid)
	resp.Body.Close()
	if loc := resp.Header.Get("Location"); loc != "/show_statement" {
		t.Fatalf("generate_statement redirect = %q", loc)
	}

	resp = e.get(t, "/show_statement")
	page := body(t, resp)
	if !strings.Contains(page, "150.50") {
		t.Fatal("statement total missing")
	}
	if !strings.Contains(page, "Stella") || !strings.Contains(page, "Pat") {
		t.Fatal("statement must include student and parent")
	}
}

func TestLoginRateLimit(t *testing.T) {
	e := newTestEnv(t)

	var last int
	for i := 0; i < 12; i++ {
		req, err := http.NewRequest(http.MethodPost, e.ts.URL+"/login",
			strings.NewReader(url.Values{"username": {"office"}, "password": {"wrong"}}.Encode()))
		if err != nil {
			t.Fatalf("build request: %v", err)
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		req.Header.Set("X-Forwarded-For", "203.0.113.9")
		resp, err := e.client.Do(req)
		if err != nil {
			t.Fatalf("POST /login: %v", err)
		}
		last = resp.StatusCode
		resp.Body.Close()
	}
	if last != http.StatusTooManyRequests {
		t.Fatalf("expected 429 after repeated failures, got %d", last)
	}
}
