package service_test

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/csv"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"github.com/wb-go/wbf/ginext"
	"github.com/wb-go/wbf/zlog"

	"masterclass/internal/api/api"
	"masterclass/internal/dto"
	"masterclass/internal/model"
	"masterclass/internal/repo"
	"masterclass/internal/service"
	"masterclass/internal/upload"
	"masterclass/pkg/auth"
)

const testSecret = "test-session-secret"

func TestMain(m *testing.M) {
	zlog.Init()
	os.Exit(m.Run())
}

// stubRepo satisfies repo.Repository in memory and records calls.
type stubRepo struct {
	programs      []model.Program
	registrations map[int]*model.Registration
	listResult    []model.Registration
	lastFilter    repo.ListFilter
	listCalled    bool

	created    *model.Registration
	lastUpdate *repo.RegistrationUpdate
	updateID   int
	deleted    []int
	bulkIDs    []int
	admin      *model.Admin
}

func newStubRepo() *stubRepo {
	return &stubRepo{
		programs: []model.Program{
			{ID: 1, Name: "London Masterclass", Location: "London", Fee: 1500},
			{ID: 2, Name: "Lagos Masterclass", Location: "Lagos", Fee: 1000},
		},
		registrations: map[int]*model.Registration{},
	}
}

func (s *stubRepo) GetAllPrograms(ctx context.Context) ([]model.Program, error) {
	return s.programs, nil
}

func (s *stubRepo) GetProgramByID(ctx context.Context, id int) (*model.Program, error) {
	for i := range s.programs {
		if s.programs[i].ID == id {
			return &s.programs[i], nil
		}
	}
	return nil, repo.ErrProgramNotFound
}

func (s *stubRepo) CreateRegistrationTx(ctx context.Context, reg *model.Registration) (int, error) {
	if _, err := s.GetProgramByID(ctx, reg.ProgramID); err != nil {
		return 0, err
	}
	reg.Status = "pending"
	reg.ID = 101
	reg.CreatedAt = time.Now().UTC()
	s.created = reg
	return reg.ID, nil
}

func (s *stubRepo) GetRegistrationByID(ctx context.Context, id int) (*model.Registration, error) {
	if reg, ok := s.registrations[id]; ok {
		return reg, nil
	}
	return nil, repo.ErrRegistrationNotFound
}

func (s *stubRepo) ListRegistrations(ctx context.Context, filter repo.ListFilter) ([]model.Registration, error) {
	s.listCalled = true
	s.lastFilter = filter
	return s.listResult, nil
}

func (s *stubRepo) UpdateRegistration(ctx context.Context, id int, upd *repo.RegistrationUpdate) error {
	if _, ok := s.registrations[id]; !ok {
		return repo.ErrRegistrationNotFound
	}
	s.updateID = id
	s.lastUpdate = upd
	return nil
}

func (s *stubRepo) DeleteRegistration(ctx context.Context, id int) error {
	if _, ok := s.registrations[id]; !ok {
		return repo.ErrRegistrationNotFound
	}
	delete(s.registrations, id)
	s.deleted = append(s.deleted, id)
	return nil
}

func (s *stubRepo) DeleteRegistrations(ctx context.Context, ids []int) (int64, error) {
	s.bulkIDs = ids
	var n int64
	for _, id := range ids {
		if _, ok := s.registrations[id]; ok {
			delete(s.registrations, id)
			n++
		}
	}
	return n, nil
}

func (s *stubRepo) MarkTicketSentTx(ctx context.Context, id int) (bool, error) {
	reg, ok := s.registrations[id]
	if !ok {
		return false, repo.ErrRegistrationNotFound
	}
	if reg.TicketSent {
		return false, nil
	}
	reg.TicketSent = true
	return true, nil
}

func (s *stubRepo) GetAdminByUsername(ctx context.Context, username string) (*model.Admin, error) {
	if s.admin != nil && s.admin.Username == username {
		return s.admin, nil
	}
	return nil, repo.ErrAdminNotFound
}

func (s *stubRepo) EnsureAdmin(ctx context.Context, username, passwordHash string) error {
	s.admin = &model.Admin{ID: 1, Username: username, PasswordHash: passwordHash}
	return nil
}

func (s *stubRepo) MigrateUp(dir string) error   { return nil }
func (s *stubRepo) MigrateDown(dir string) error { return nil }

type stubPublisher struct {
	messages [][]byte
	err      error
}

func (p *stubPublisher) Publish(message []byte) error {
	if p.err != nil {
		return p.err
	}
	p.messages = append(p.messages, message)
	return nil
}

func newTestRouter(t *testing.T, r repo.Repository, pub service.Publisher) *ginext.Engine {
	t.Helper()
	logger := zerolog.Nop()
	uploads, err := upload.NewStore(t.TempDir(), 16<<20)
	require.NoError(t, err)
	svc := service.NewService(r, &logger, pub, uploads, testSecret, time.Hour)
	return api.NewRouters(&api.Routers{
		Service:       svc,
		SessionSecret: testSecret,
		TemplatesGlob: "../../templates/*.html",
	})
}

func sessionCookie(t *testing.T) *http.Cookie {
	t.Helper()
	token, err := auth.GenerateSessionToken(testSecret, "admin", time.Hour)
	require.NoError(t, err)
	return &http.Cookie{Name: auth.SessionCookie, Value: token}
}

func sampleRegistration(id int) *model.Registration {
	return &model.Registration{
		ID:          id,
		ProgramID:   1,
		ProgramName: "London Masterclass",
		Name:        "Ada Obi",
		Email:       "ada@example.com",
		EventDate:   time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
		CreatedAt:   time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC),
		Status:      "pending",
	}
}

func multipartForm(t *testing.T, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	require.NoError(t, mw.Close())
	return &body, mw.FormDataContentType()
}

func validSubmission() map[string]string {
	return map[string]string{
		"program_id":        "1",
		"name":              "Ada Obi",
		"email":             "ada@example.com",
		"phone":             "08030000000",
		"organization":      "Acme Ltd",
		"designation":       "Engineer",
		"expectations":      "Hands-on sessions",
		"event_date":        "2025-06-01",
		"payment_reference": "PAY-123",
	}
}

func TestAdminRoutesRejectUnauthenticated(t *testing.T) {
	app := newTestRouter(t, newStubRepo(), &stubPublisher{})

	// JSON API answers 401 and leaks no data.
	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/api/registrations", nil)
	app.ServeHTTP(w, req)
	require.Equal(t, http.StatusUnauthorized, w.Code)
	require.Contains(t, w.Body.String(), dto.Unauthorized)

	// HTML pages redirect to the login form.
	for _, path := range []string{"/admin", "/admin/export", "/admin/receipt/1"} {
		w := httptest.NewRecorder()
		req := httptest.NewRequest("GET", path, nil)
		app.ServeHTTP(w, req)
		require.Equal(t, http.StatusFound, w.Code, path)
		require.Equal(t, "/admin/login", w.Header().Get("Location"), path)
	}
}

func TestAdminRoutesRejectTamperedSession(t *testing.T) {
	app := newTestRouter(t, newStubRepo(), &stubPublisher{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/api/registrations", nil)
	req.AddCookie(&http.Cookie{Name: auth.SessionCookie, Value: "forged.token.value"})
	app.ServeHTTP(w, req)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestSubmitRegistrationCreatesPendingRow(t *testing.T) {
	stub := newStubRepo()
	pub := &stubPublisher{}
	app := newTestRouter(t, stub, pub)

	body, contentType := multipartForm(t, validSubmission())
	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/submit_registration", body)
	req.Header.Set("Content-Type", contentType)
	app.ServeHTTP(w, req)

	require.Equal(t, http.StatusFound, w.Code)
	require.Equal(t, "/", w.Header().Get("Location"))

	require.NotNil(t, stub.created)
	require.Equal(t, "pending", stub.created.Status)
	require.Equal(t, 1, stub.created.ProgramID)
	require.Equal(t, "Ada Obi", stub.created.Name)
	require.False(t, stub.created.CreatedAt.IsZero())

	// One ticket delivery message for the new registration.
	require.Len(t, pub.messages, 1)
	var msg dto.TicketMessage
	require.NoError(t, json.Unmarshal(pub.messages[0], &msg))
	require.Equal(t, 101, msg.RegistrationID)
}

func TestSubmitRegistrationMissingNameCreatesNothing(t *testing.T) {
	stub := newStubRepo()
	pub := &stubPublisher{}
	app := newTestRouter(t, stub, pub)

	fields := validSubmission()
	fields["name"] = ""
	body, contentType := multipartForm(t, fields)

	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/submit_registration", body)
	req.Header.Set("Content-Type", contentType)
	app.ServeHTTP(w, req)

	require.Equal(t, http.StatusFound, w.Code)
	require.Equal(t, "/register", w.Header().Get("Location"))
	require.Nil(t, stub.created)
	require.Empty(t, pub.messages)
}

func TestSubmitRegistrationBadDateCreatesNothing(t *testing.T) {
	stub := newStubRepo()
	app := newTestRouter(t, stub, &stubPublisher{})

	fields := validSubmission()
	fields["event_date"] = "01/06/2025"
	body, contentType := multipartForm(t, fields)

	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/submit_registration", body)
	req.Header.Set("Content-Type", contentType)
	app.ServeHTTP(w, req)

	require.Equal(t, http.StatusFound, w.Code)
	require.Nil(t, stub.created)
}

func TestSubmitRegistrationUnknownProgram(t *testing.T) {
	stub := newStubRepo()
	app := newTestRouter(t, stub, &stubPublisher{})

	fields := validSubmission()
	fields["program_id"] = "999"
	body, contentType := multipartForm(t, fields)

	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/submit_registration", body)
	req.Header.Set("Content-Type", contentType)
	app.ServeHTTP(w, req)

	require.Equal(t, http.StatusFound, w.Code)
	require.Equal(t, "/register", w.Header().Get("Location"))
	require.Nil(t, stub.created)
}

func TestSubmitRegistrationSurvivesPublishFailure(t *testing.T) {
	stub := newStubRepo()
	pub := &stubPublisher{err: context.DeadlineExceeded}
	app := newTestRouter(t, stub, pub)

	body, contentType := multipartForm(t, validSubmission())
	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/submit_registration", body)
	req.Header.Set("Content-Type", contentType)
	app.ServeHTTP(w, req)

	// Queue trouble must not fail the submission.
	require.Equal(t, http.StatusFound, w.Code)
	require.Equal(t, "/", w.Header().Get("Location"))
	require.NotNil(t, stub.created)
}

func TestListRegistrations(t *testing.T) {
	stub := newStubRepo()
	stub.listResult = []model.Registration{*sampleRegistration(1)}
	app := newTestRouter(t, stub, &stubPublisher{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/api/registrations?start_date=2025-01-01&end_date=2025-12-31&status=pending", nil)
	req.AddCookie(sessionCookie(t))
	app.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), "ada@example.com")

	require.NotNil(t, stub.lastFilter.StartDate)
	require.NotNil(t, stub.lastFilter.EndDate)
	require.Equal(t, "pending", stub.lastFilter.Status)
}

func TestListRegistrationsRejectsBadDateFilter(t *testing.T) {
	stub := newStubRepo()
	app := newTestRouter(t, stub, &stubPublisher{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/api/registrations?start_date=June-1", nil)
	req.AddCookie(sessionCookie(t))
	app.ServeHTTP(w, req)

	require.Equal(t, http.StatusBadRequest, w.Code)
	require.False(t, stub.listCalled)
}

func TestGetRegistrationNotFound(t *testing.T) {
	app := newTestRouter(t, newStubRepo(), &stubPublisher{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/api/registrations/42", nil)
	req.AddCookie(sessionCookie(t))
	app.ServeHTTP(w, req)

	require.Equal(t, http.StatusNotFound, w.Code)
	require.Contains(t, w.Body.String(), dto.RegistrationNotFound)
}

func TestPartialUpdateOnlyTouchesPresentFields(t *testing.T) {
	stub := newStubRepo()
	stub.registrations[7] = sampleRegistration(7)
	app := newTestRouter(t, stub, &stubPublisher{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest("PUT", "/api/registrations/7",
		strings.NewReader(`{"status": "confirmed", "unknown_field": true}`))
	req.Header.Set("Content-Type", "application/json")
	req.AddCookie(sessionCookie(t))
	app.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, 7, stub.updateID)
	require.NotNil(t, stub.lastUpdate.Status)
	require.Equal(t, "confirmed", *stub.lastUpdate.Status)
	require.Nil(t, stub.lastUpdate.Name)
	require.Nil(t, stub.lastUpdate.Email)
	require.Nil(t, stub.lastUpdate.EventDate)
	require.Nil(t, stub.lastUpdate.Notes)
}

func TestPartialUpdateRejectsBadDate(t *testing.T) {
	stub := newStubRepo()
	stub.registrations[7] = sampleRegistration(7)
	app := newTestRouter(t, stub, &stubPublisher{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest("PUT", "/api/registrations/7",
		strings.NewReader(`{"event_date": "June 1st"}`))
	req.Header.Set("Content-Type", "application/json")
	req.AddCookie(sessionCookie(t))
	app.ServeHTTP(w, req)

	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Nil(t, stub.lastUpdate)
}

func TestDeleteUnknownRegistrationIsNotFound(t *testing.T) {
	stub := newStubRepo()
	app := newTestRouter(t, stub, &stubPublisher{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest("DELETE", "/api/registrations/404", nil)
	req.AddCookie(sessionCookie(t))
	app.ServeHTTP(w, req)

	require.Equal(t, http.StatusNotFound, w.Code)
	require.Empty(t, stub.deleted)
}

func TestBulkDeleteRemovesExactlyRequestedRows(t *testing.T) {
	stub := newStubRepo()
	for _, id := range []int{1, 2, 3, 4} {
		stub.registrations[id] = sampleRegistration(id)
	}
	app := newTestRouter(t, stub, &stubPublisher{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/api/registrations/bulk-delete",
		strings.NewReader(`{"ids": [1, 2, 3]}`))
	req.Header.Set("Content-Type", "application/json")
	req.AddCookie(sessionCookie(t))
	app.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, []int{1, 2, 3}, stub.bulkIDs)
	require.Contains(t, w.Body.String(), `"deleted":3`)
	require.Len(t, stub.registrations, 1)
	require.Contains(t, stub.registrations, 4)
}

func TestSendTicketPublishesForExistingRegistration(t *testing.T) {
	stub := newStubRepo()
	stub.registrations[9] = sampleRegistration(9)
	pub := &stubPublisher{}
	app := newTestRouter(t, stub, pub)

	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/api/registrations/9/send-ticket", nil)
	req.AddCookie(sessionCookie(t))
	app.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, pub.messages, 1)
	var msg dto.TicketMessage
	require.NoError(t, json.Unmarshal(pub.messages[0], &msg))
	require.Equal(t, 9, msg.RegistrationID)
}

func TestSendTicketUnknownRegistration(t *testing.T) {
	pub := &stubPublisher{}
	app := newTestRouter(t, newStubRepo(), pub)

	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/api/registrations/404/send-ticket", nil)
	req.AddCookie(sessionCookie(t))
	app.ServeHTTP(w, req)

	require.Equal(t, http.StatusNotFound, w.Code)
	require.Empty(t, pub.messages)
}

func TestExportCSVMatchesRegistrationCount(t *testing.T) {
	stub := newStubRepo()
	stub.listResult = []model.Registration{*sampleRegistration(1), *sampleRegistration(2)}
	app := newTestRouter(t, stub, &stubPublisher{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/admin/export", nil)
	req.AddCookie(sessionCookie(t))
	app.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "attachment; filename=registrations.csv", w.Header().Get("Content-Disposition"))

	records, err := csv.NewReader(w.Body).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	require.Equal(t, "ID", records[0][0])
	require.Equal(t, "Program", records[0][1])
}

func TestReceiptDownloadWithoutReceiptIsNotFound(t *testing.T) {
	stub := newStubRepo()
	stub.registrations[3] = sampleRegistration(3)
	app := newTestRouter(t, stub, &stubPublisher{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/admin/receipt/3", nil)
	req.AddCookie(sessionCookie(t))
	app.ServeHTTP(w, req)

	require.Equal(t, http.StatusNotFound, w.Code)
	require.Contains(t, w.Body.String(), dto.ReceiptNotFound)
}

func TestReceiptDownloadMissingFileIsNotFound(t *testing.T) {
	stub := newStubRepo()
	reg := sampleRegistration(3)
	reg.PaymentReceipt = sql.NullString{String: "gone.pdf", Valid: true}
	stub.registrations[3] = reg
	app := newTestRouter(t, stub, &stubPublisher{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/admin/receipt/3", nil)
	req.AddCookie(sessionCookie(t))
	app.ServeHTTP(w, req)

	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestAdminLoginFlow(t *testing.T) {
	stub := newStubRepo()
	hash, err := auth.HashPassword("pass123")
	require.NoError(t, err)
	stub.admin = &model.Admin{ID: 1, Username: "admin", PasswordHash: hash}
	app := newTestRouter(t, stub, &stubPublisher{})

	// Wrong password: back to the login page, no session cookie.
	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/admin/login",
		strings.NewReader("username=admin&password=nope"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	app.ServeHTTP(w, req)
	require.Equal(t, http.StatusFound, w.Code)
	require.Equal(t, "/admin/login", w.Header().Get("Location"))
	for _, c := range w.Result().Cookies() {
		require.NotEqual(t, auth.SessionCookie, c.Name)
	}

	// Correct password: redirected to the dashboard with a session.
	w = httptest.NewRecorder()
	req = httptest.NewRequest("POST", "/admin/login",
		strings.NewReader("username=admin&password=pass123"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	app.ServeHTTP(w, req)
	require.Equal(t, http.StatusFound, w.Code)
	require.Equal(t, "/admin", w.Header().Get("Location"))

	var session *http.Cookie
	for _, c := range w.Result().Cookies() {
		if c.Name == auth.SessionCookie {
			session = c
		}
	}
	require.NotNil(t, session)

	username, err := auth.ParseSessionToken(testSecret, session.Value)
	require.NoError(t, err)
	require.Equal(t, "admin", username)
}

func TestAdminLogoutClearsSession(t *testing.T) {
	app := newTestRouter(t, newStubRepo(), &stubPublisher{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/admin/logout", nil)
	req.AddCookie(sessionCookie(t))
	app.ServeHTTP(w, req)

	require.Equal(t, http.StatusFound, w.Code)
	require.Equal(t, "/admin/login", w.Header().Get("Location"))

	var session *http.Cookie
	for _, c := range w.Result().Cookies() {
		if c.Name == auth.SessionCookie {
			session = c
		}
	}
	require.NotNil(t, session)
	require.True(t, session.MaxAge < 0 || session.Value == "")
}
