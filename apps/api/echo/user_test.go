package echoapi

import (
	"context"
	"net/http"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/studentportal/core/user"
)

func signupForm(name, email, pwd, confirm, dept, year string) url.Values {
	return url.Values{
		"name":             {name},
		"email":            {email},
		"password":         {pwd},
		"confirm_password": {confirm},
		"department":       {dept},
		"year":             {year},
	}
}

func Test_signup(t *testing.T) {
	app := setup(t)

	tests := []struct {
		name     string
		data     url.Values
		wantCode int
		wantErrs map[string]string
	}{
		{
			name: "blank fields", data: url.Values{}, wantCode: http.StatusBadRequest,
			wantErrs: map[string]string{
				"name":             "name is required",
				"email":            "email is required",
				"password":         "password is required",
				"confirm_password": "confirm_password is required",
				"department":       "department is required",
				"year":             "year is required",
			},
		},
		{
			name: "passwords mismatch", data: signupForm("Ann", "ann@x.com", "Abc12345", "Abc12346", "CS", "2"),
			wantCode: http.StatusBadRequest, wantErrs: map[string]string{"confirm_password": "Passwords do not match"},
		},
		{
			name: "weak password", data: signupForm("Ann", "ann@x.com", "abc12345", "abc12345", "CS", "2"),
			wantCode: http.StatusBadRequest, wantErrs: map[string]string{"password": "Password must contain at least one uppercase letter"},
		},
		{
			name: "invalid email", data: signupForm("Ann", "ann", "Abc12345", "Abc12345", "CS", "2"),
			wantCode: http.StatusBadRequest, wantErrs: map[string]string{"email": "email must be a valid email address"},
		},
		{name: "success", data: signupForm("Ann", "Ann@X.com", "Abc12345", "Abc12345", "CS", "2"), wantCode: http.StatusSeeOther},
		{
			name: "duplicate email", data: signupForm("Ann 2", "ann@x.com", "Abc12345", "Abc12345", "CS", "2"),
			wantCode: http.StatusBadRequest, wantErrs: map[string]string{"email": "Email already registered"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := app.postForm("/signup", tt.data)
			require.Equal(t, tt.wantCode, rec.Code, rec.Body.String())
			if tt.wantErrs != nil {
				var errs map[string]string
				decode(t, rec, &errs)
				assert.Equal(t, tt.wantErrs, errs)
				return
			}
			assert.Equal(t, "/login", rec.Header().Get("Location"))
			assert.Equal(t, []Flash{{Level: flashSuccess, Message: "Registration successful! Please login."}}, redirectFlashes(t, rec))
		})
	}

	t.Run("role is always student", func(t *testing.T) {
		rec := app.postJSON(t, "/signup", map[string]interface{}{
			"name": "Mallory", "email": "mallory@x.com", "password": "Abc12345", "confirm_password": "Abc12345",
			"department": "CS", "year": 1, "role": "admin",
		})
		require.Equal(t, http.StatusSeeOther, rec.Code, rec.Body.String())
		usr, err := app.svcs.UserSvc.GetByEmail(context.Background(), "mallory@x.com")
		require.NoError(t, err)
		assert.Equal(t, user.RoleStudent, usr.Role)
	})
}

func Test_login(t *testing.T) {
	app := setup(t)
	app.createUser(t, "Ann", "ann@x.com", user.RoleStudent)

	t.Run("missing fields", func(t *testing.T) {
		rec := app.postForm("/login", url.Values{"email": {"ann@x.com"}})
		require.Equal(t, http.StatusBadRequest, rec.Code)
		var res httpErr
		decode(t, rec, &res)
		assert.Equal(t, "Email and password are required", res.Error)
	})

	t.Run("failures are not distinguishable", func(t *testing.T) {
		wrongPwd := app.postForm("/login", url.Values{"email": {"ann@x.com"}, "password": {"Wrong1234"}})
		unknown := app.postForm("/login", url.Values{"email": {"bob@x.com"}, "password": {"Wrong1234"}})

		assert.Equal(t, http.StatusUnauthorized, wrongPwd.Code)
		assert.Equal(t, wrongPwd.Code, unknown.Code)
		assert.JSONEq(t, wrongPwd.Body.String(), unknown.Body.String())
		assert.Nil(t, findCookie(wrongPwd, app.svcs.Conf.Session.CookieName))

		var p page
		decode(t, unknown, &p)
		assert.Equal(t, []Flash{{Level: flashDanger, Message: "Invalid email or password"}}, p.Flashes)
	})

	t.Run("success", func(t *testing.T) {
		rec := app.postForm("/login", url.Values{"email": {" ANN@x.com "}, "password": {testPassword}})
		require.Equal(t, http.StatusSeeOther, rec.Code)
		assert.Equal(t, "/dashboard", rec.Header().Get("Location"))
		assert.Equal(t, []Flash{{Level: flashSuccess, Message: "Welcome back, Ann!"}}, redirectFlashes(t, rec))

		c := findCookie(rec, app.svcs.Conf.Session.CookieName)
		require.NotNil(t, c)
		assert.True(t, c.HttpOnly)
		assert.Zero(t, c.MaxAge, "session cookie must not outlive the browser without remember me")

		usr, err := app.svcs.UserSvc.GetByEmail(context.Background(), "ann@x.com")
		require.NoError(t, err)
		assert.False(t, usr.LastLogin.IsZero())
	})

	t.Run("remember me", func(t *testing.T) {
		rec := app.postForm("/login", url.Values{"email": {"ann@x.com"}, "password": {testPassword}, "remember": {"on"}})
		require.Equal(t, http.StatusSeeOther, rec.Code)
		c := findCookie(rec, app.svcs.Conf.Session.CookieName)
		require.NotNil(t, c)
		assert.True(t, c.MaxAge > 0)
		assert.True(t, c.MaxAge <= 3600)
	})

	t.Run("tampered cookie", func(t *testing.T) {
		c := app.login(t, "ann@x.com")
		c.Value += "x"
		rec := app.get("/dashboard", c)
		assert.Equal(t, http.StatusFound, rec.Code)
		assert.Equal(t, "/login", rec.Header().Get("Location"))
	})
}

func Test_logout(t *testing.T) {
	app := setup(t)
	app.createUser(t, "Ann", "ann@x.com", user.RoleStudent)
	c := app.login(t, "ann@x.com")

	rec := app.get("/dashboard", c)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = app.get("/logout", c)
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/login", rec.Header().Get("Location"))
	assert.Equal(t, []Flash{{Level: flashInfo, Message: "Goodbye, Ann!"}}, redirectFlashes(t, rec))

	// the old cookie no longer opens a session
	rec = app.get("/dashboard", c)
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/login", rec.Header().Get("Location"))
}

func Test_dashboard(t *testing.T) {
	app := setup(t)
	ann := app.createUser(t, "Ann", "ann@x.com", user.RoleStudent)
	admin := app.createUser(t, "Admin", "admin@x.com", user.RoleAdmin)

	ctx := context.Background()
	for _, title := range []string{"One", "Two", "Three", "Four"} {
		_, err := app.svcs.AnnouncementSvc.Create(ctx, admin.Principal(), announcementForm(title, "Body"))
		require.NoError(t, err)
	}
	_, err := app.svcs.NotifSvc.SendOne(ctx, ann.ID, "Hello")
	require.NoError(t, err)

	rec := app.get("/dashboard", app.login(t, "ann@x.com"))
	require.Equal(t, http.StatusOK, rec.Code)

	var res struct {
		User struct {
			Name string `json:"name"`
		} `json:"user"`
		Announcements []struct {
			Title string `json:"title"`
		} `json:"announcements"`
		AssignmentCount int `json:"assignment_count"`
		UnreadCount     int `json:"unread_count"`
	}
	decode(t, rec, &res)
	assert.Equal(t, "Ann", res.User.Name)
	require.Len(t, res.Announcements, 3)
	assert.Equal(t, "Four", res.Announcements[0].Title)
	assert.Zero(t, res.AssignmentCount)
	assert.Equal(t, 1, res.UnreadCount)
	assert.NotContains(t, rec.Body.String(), "password")
}

func Test_profile(t *testing.T) {
	app := setup(t)
	ann := app.createUser(t, "Ann", "ann@x.com", user.RoleStudent)
	c := app.login(t, "ann@x.com")

	rec := app.postForm("/profile", url.Values{"name": {""}, "department": {"Maths"}, "year": {"3"}}, c)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = app.postForm("/profile", url.Values{"name": {"Ann B."}, "department": {"Maths"}, "year": {"3"}}, c)
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/profile", rec.Header().Get("Location"))

	usr, err := app.svcs.UserSvc.GetByID(context.Background(), ann.ID)
	require.NoError(t, err)
	assert.Equal(t, "Ann B.", usr.Name)
	assert.Equal(t, "Maths", usr.Department)
	assert.Equal(t, 3, usr.Year)
	assert.Equal(t, "ann@x.com", usr.Email)
}

func Test_resetPassword(t *testing.T) {
	app := setup(t)
	app.createUser(t, "Ann", "ann@x.com", user.RoleStudent)
	c := app.login(t, "ann@x.com")

	form := func(current, pwd, confirm string) url.Values {
		return url.Values{"current_password": {current}, "new_password": {pwd}, "confirm_password": {confirm}}
	}
	tests := []struct {
		name     string
		data     url.Values
		wantErrs map[string]string
	}{
		{name: "wrong current", data: form("Nope1234", "NewPass123", "NewPass123"), wantErrs: map[string]string{"current_password": "Current password is incorrect"}},
		{name: "mismatch", data: form(testPassword, "NewPass123", "NewPass124"), wantErrs: map[string]string{"confirm_password": "Passwords do not match"}},
		{name: "weak", data: form(testPassword, "NEWPASS123", "NEWPASS123"), wantErrs: map[string]string{"new_password": "Password must contain at least one lowercase letter"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := app.postForm("/reset_password", tt.data, c)
			require.Equal(t, http.StatusBadRequest, rec.Code)
			var errs map[string]string
			decode(t, rec, &errs)
			assert.Equal(t, tt.wantErrs, errs)
		})
	}

	rec := app.postForm("/reset_password", form(testPassword, "NewPass123", "NewPass123"), c)
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, []Flash{{Level: flashSuccess, Message: "Password changed successfully"}}, redirectFlashes(t, rec))

	rec = app.postForm("/login", url.Values{"email": {"ann@x.com"}, "password": {"NewPass123"}})
	assert.Equal(t, http.StatusSeeOther, rec.Code)
}
