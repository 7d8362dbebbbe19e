package echoapi

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/studentportal/core/user"
)

func TestHealth(t *testing.T) {
	app := setup(t)

	rec := app.get("/health")
	require.Equal(t, http.StatusOK, rec.Code)
	var res healthResponse
	decode(t, rec, &res)
	assert.Equal(t, "healthy", res.Status)
	assert.Equal(t, "connected", res.Database)
	assert.False(t, res.Timestamp.IsZero())

	app.Server.(*server).HealthCheck = func(context.Context) error { return errors.New("db down") }
	rec = app.get("/health")
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &res)
	assert.Equal(t, "unhealthy", res.Status)
	assert.Equal(t, "disconnected", res.Database)
}

func TestHome(t *testing.T) {
	app := setup(t)
	app.createUser(t, "Student", "student@test.cd", user.RoleStudent)
	app.createUser(t, "Admin", "admin@test.cd", user.RoleAdmin)

	tests := []struct {
		name  string
		email string
		want  string
	}{
		{name: "anonymous", want: "/login"},
		{name: "student", email: "student@test.cd", want: "/dashboard"},
		{name: "admin", email: "admin@test.cd", want: "/admin/dashboard"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var rec = app.get("/")
			if tt.email != "" {
				rec = app.get("/", app.login(t, tt.email))
			}
			assert.Equal(t, http.StatusFound, rec.Code)
			assert.Equal(t, tt.want, rec.Header().Get("Location"))
		})
	}
}

func TestRequireAuth(t *testing.T) {
	app := setup(t)

	paths := []string{
		"/dashboard", "/profile", "/assignments", "/upload", "/download/x.pdf", "/delete/1",
		"/announcements", "/feedback", "/notifications", "/mark_read/1", "/reset_password",
		"/logout", "/admin/dashboard", "/admin/students",
	}
	for _, path := range paths {
		t.Run(path, func(t *testing.T) {
			rec := app.get(path)
			assert.Equal(t, http.StatusFound, rec.Code)
			assert.Equal(t, "/login", rec.Header().Get("Location"))
			assert.Equal(t, []Flash{{Level: flashWarning, Message: "Please login to access this page"}}, redirectFlashes(t, rec))
		})
	}
}

func TestRequireAdmin(t *testing.T) {
	app := setup(t)
	app.createUser(t, "Student", "student@test.cd", user.RoleStudent)
	app.createUser(t, "Admin", "admin@test.cd", user.RoleAdmin)
	studentCookie := app.login(t, "student@test.cd")
	adminCookie := app.login(t, "admin@test.cd")

	paths := []string{
		"/admin/dashboard", "/admin/students", "/admin/student/1", "/admin/assignments", "/admin/grade/1",
		"/admin/announcements", "/admin/announcement/create", "/admin/feedback", "/admin/notifications",
	}
	for _, path := range paths {
		t.Run(path, func(t *testing.T) {
			rec := app.get(path, studentCookie)
			assert.Equal(t, http.StatusFound, rec.Code)
			assert.Equal(t, "/dashboard", rec.Header().Get("Location"))
			assert.Equal(t, []Flash{{Level: flashDanger, Message: "Access denied. Admin privileges required."}}, redirectFlashes(t, rec))
		})
	}

	rec := app.postForm("/admin/notifications", nil, studentCookie)
	assert.Equal(t, http.StatusFound, rec.Code)
	count, err := app.svcs.NotiRepo.CountUnread(context.Background(), 1)
	require.NoError(t, err)
	assert.Zero(t, count)

	rec = app.get("/admin/dashboard", adminCookie)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestFlashesAreShownOnce(t *testing.T) {
	app := setup(t)

	rec := app.get("/dashboard")
	flashCookie := findCookie(rec, flashCookieName)
	require.NotNil(t, flashCookie)

	rec = app.get("/login", flashCookie)
	require.Equal(t, http.StatusOK, rec.Code)
	cleared := findCookie(rec, flashCookieName)
	require.NotNil(t, cleared)
	assert.True(t, cleared.MaxAge < 0)

	var p page
	decode(t, rec, &p)
	assert.Equal(t, "login", p.Page)
	assert.Equal(t, []Flash{{Level: flashWarning, Message: "Please login to access this page"}}, p.Flashes)

	rec = app.get("/login")
	decode(t, rec, &p)
	assert.Empty(t, p.Flashes)
}

func TestFlashCookieFollowsSecureSetting(t *testing.T) {
	for _, secure := range []bool{false, true} {
		t.Run(strconv.FormatBool(secure), func(t *testing.T) {
			app := setup(t)
			app.svcs.Conf.Session.SecureCookie = secure

			rec := app.get("/dashboard")
			set := findCookie(rec, flashCookieName)
			require.NotNil(t, set)
			assert.Equal(t, secure, set.Secure)
			assert.True(t, set.HttpOnly)

			rec = app.get("/login", set)
			cleared := findCookie(rec, flashCookieName)
			require.NotNil(t, cleared)
			assert.True(t, cleared.MaxAge < 0)
			assert.Equal(t, secure, cleared.Secure)
		})
	}
}

func TestMetrics(t *testing.T) {
	app := setup(t)
	app.get("/health")
	app.postForm("/login", nil)

	rec := app.get("/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, `portal_http_requests_total{method="GET",path="/health",status="200"} 1`), body)
	assert.Contains(t, body, "portal_http_request_duration_seconds")
}

func TestUnknownRoute(t *testing.T) {
	app := setup(t)
	rec := app.get("/nope")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	var res httpErr
	decode(t, rec, &res)
	assert.Equal(t, "Not Found", res.Error)
}
