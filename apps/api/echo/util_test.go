package echoapi

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/trezcool/studentportal/core/announcement"
	"github.com/trezcool/studentportal/core/session"
	"github.com/trezcool/studentportal/core/user"
	"github.com/trezcool/studentportal/storage/database"
	"github.com/trezcool/studentportal/storage/sessions"
	"github.com/trezcool/studentportal/testutil"
)

const testPassword = "Secret123"

type testApp struct {
	Server
	svcs *testutil.Services
}

func setup(t *testing.T) *testApp {
	svcs := testutil.NewServices(t)
	srv := NewServer(ServerDeps{
		Conf:   svcs.Conf,
		Logger: svcs.Logger,
		HealthCheck: func(ctx context.Context) error {
			return database.StatusCheck(ctx, svcs.DB)
		},
		Sessions:        session.NewManager(svcs.Conf, sessions.NewMemoryStore()),
		UserSvc:         svcs.UserSvc,
		AssignmentSvc:   svcs.AssignmentSvc,
		NotifSvc:        svcs.NotifSvc,
		AnnouncementSvc: svcs.AnnouncementSvc,
		FeedbackSvc:     svcs.FeedbackSvc,
		DisableReqLogs:  true,
	})
	return &testApp{Server: srv, svcs: svcs}
}

func (app *testApp) createUser(t *testing.T, name, email string, role user.Role) user.User {
	return testutil.CreateUser(t, app.svcs.UsrRepo, name, email, testPassword, role)
}

func (app *testApp) do(req *http.Request, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	app.ServeHTTP(rec, req)
	return rec
}

func (app *testApp) get(path string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	return app.do(httptest.NewRequest(http.MethodGet, path, nil), cookies...)
}

func (app *testApp) postForm(path string, data url.Values, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(data.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return app.do(req, cookies...)
}

func (app *testApp) postJSON(t *testing.T, path string, data interface{}, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	body, err := json.Marshal(data)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return app.do(req, cookies...)
}

func (app *testApp) upload(t *testing.T, filename string, content []byte, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	body := new(bytes.Buffer)
	w := multipart.NewWriter(body)
	part, err := w.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/upload", body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return app.do(req, cookies...)
}

// login authenticates through the login form and returns the session cookie.
func (app *testApp) login(t *testing.T, email string) *http.Cookie {
	rec := app.postForm("/login", url.Values{"email": {email}, "password": {testPassword}})
	require.Equal(t, http.StatusSeeOther, rec.Code, rec.Body.String())
	c := findCookie(rec, app.svcs.Conf.Session.CookieName)
	require.NotNil(t, c, "session cookie not set")
	return c
}

func findCookie(rec *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// redirectFlashes decodes the flashes set along with a redirect.
func redirectFlashes(t *testing.T, rec *httptest.ResponseRecorder) []Flash {
	c := findCookie(rec, flashCookieName)
	if c == nil || c.Value == "" {
		return nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(c.Value)
	require.NoError(t, err)
	var flashes []Flash
	require.NoError(t, json.Unmarshal(raw, &flashes))
	return flashes
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, dest interface{}) {
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(body, dest), string(body))
}

type page struct {
	Page    string  `json:"page"`
	Flashes []Flash `json:"flashes"`
}

type httpErr struct {
	Error string `json:"error"`
}

func announcementForm(title, msg string) announcement.Form {
	return announcement.Form{Title: title, Message: msg}
}
