package echoapi

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/studentportal/core"
	"github.com/trezcool/studentportal/core/assignment"
	"github.com/trezcool/studentportal/core/user"
)

type LoginRequest struct {
	Email    string `json:"email" form:"email"`
	Password string `json:"password" form:"password"`
	Remember string `json:"remember" form:"remember"` // checkbox: "on", "true", "1"
}

func (lr LoginRequest) remember() bool {
	switch strings.ToLower(strings.TrimSpace(lr.Remember)) {
	case "on", "true", "1", "yes":
		return true
	}
	return false
}

var errLoginRequired = core.NewValidationError(errors.New("Email and password are required"))

func (s *server) registerAccountRoutes() {
	s.app.GET("/signup", s.signupPage)
	s.app.POST("/signup", s.signup)
	s.app.GET("/login", s.loginPage)
	s.app.POST("/login", s.login)

	s.app.GET("/logout", s.logout, s.requireAuth)
	s.app.GET("/dashboard", s.dashboard, s.requireAuth)
	s.app.GET("/profile", s.profile, s.requireAuth)
	s.app.POST("/profile", s.updateProfile, s.requireAuth)
	s.app.GET("/reset_password", s.resetPasswordPage, s.requireAuth)
	s.app.POST("/reset_password", s.resetPassword, s.requireAuth)
}

func homePath(p user.Principal) string {
	if p.IsAdmin() {
		return "/admin/dashboard"
	}
	return "/dashboard"
}

func (s *server) signupPage(ctx echo.Context) error {
	if p, ok := contextPrincipal(ctx); ok {
		return ctx.Redirect(http.StatusFound, homePath(p))
	}
	return s.render(ctx, http.StatusOK, "signup", nil)
}

func (s *server) signup(ctx echo.Context) error {
	var data user.NewUser
	if err := ctx.Bind(&data); err != nil {
		return err
	}
	usr, err := s.UserSvc.Register(ctx.Request().Context(), data)
	if err != nil {
		return err
	}
	s.Logger.Info("user registered", map[string]interface{}{"user_id": usr.ID})
	return s.redirect(ctx, "/login", flashSuccess, "Registration successful! Please login.")
}

func (s *server) loginPage(ctx echo.Context) error {
	if p, ok := contextPrincipal(ctx); ok {
		return ctx.Redirect(http.StatusFound, homePath(p))
	}
	return s.render(ctx, http.StatusOK, "login", nil)
}

func (s *server) login(ctx echo.Context) error {
	var data LoginRequest
	if err := ctx.Bind(&data); err != nil {
		return err
	}
	if core.CleanString(data.Email) == "" || data.Password == "" {
		return errLoginRequired
	}

	reqCtx := ctx.Request().Context()
	p, err := s.UserSvc.Authenticate(reqCtx, data.Email, data.Password)
	if err != nil {
		if errors.Is(err, core.ErrInvalidCredentials) {
			s.metrics.login(false)
			s.Logger.Warn("failed login", map[string]interface{}{"email": core.CleanString(data.Email, true), "remote_ip": ctx.RealIP()})
			s.addFlash(ctx, flashDanger, "Invalid email or password")
			return s.render(ctx, http.StatusUnauthorized, "login", nil)
		}
		return errors.Wrap(err, "authenticating")
	}

	// a new login replaces the current session
	if id := contextSessionID(ctx); id != "" {
		_ = s.Sessions.Destroy(reqCtx, id)
	}
	sess, err := s.Sessions.Create(reqCtx, p, data.remember())
	if err != nil {
		return errors.Wrap(err, "creating session")
	}
	if err = s.setSessionCookie(ctx, sess); err != nil {
		return err
	}
	s.metrics.login(true)
	s.Logger.Info("user logged in", p)
	return s.redirect(ctx, homePath(p), flashSuccess, fmt.Sprintf("Welcome back, %s!", p.Name))
}

func (s *server) logout(ctx echo.Context) error {
	p := mustPrincipal(ctx)
	if err := s.Sessions.Destroy(ctx.Request().Context(), contextSessionID(ctx)); err != nil {
		return err
	}
	s.clearSessionCookie(ctx)
	s.Logger.Info("user logged out", p)
	return s.redirect(ctx, "/login", flashInfo, fmt.Sprintf("Goodbye, %s!", p.Name))
}

func (s *server) dashboard(ctx echo.Context) error {
	p := mustPrincipal(ctx)
	reqCtx := ctx.Request().Context()

	usr, err := s.UserSvc.GetByID(reqCtx, p.UserID)
	if err != nil {
		return errors.Wrap(err, "finding user by ID")
	}
	announcements, err := s.AnnouncementSvc.Recent(reqCtx, 3)
	if err != nil {
		return errors.Wrap(err, "querying recent announcements")
	}
	assignmentCount, err := s.AssignmentSvc.Count(reqCtx, assignment.QueryFilter{OwnerID: p.UserID})
	if err != nil {
		return errors.Wrap(err, "counting assignments")
	}
	unread, err := s.NotifSvc.UnreadCount(reqCtx, p.UserID)
	if err != nil {
		return errors.Wrap(err, "counting unread notifications")
	}

	return s.render(ctx, http.StatusOK, "dashboard", echo.Map{
		"user":             usr,
		"announcements":    orEmpty(announcements),
		"assignment_count": assignmentCount,
		"unread_count":     unread,
	})
}

func (s *server) profile(ctx echo.Context) error {
	usr, err := s.UserSvc.GetByID(ctx.Request().Context(), mustPrincipal(ctx).UserID)
	if err != nil {
		return errors.Wrap(err, "finding user by ID")
	}
	return s.render(ctx, http.StatusOK, "profile", echo.Map{"user": usr})
}

func (s *server) updateProfile(ctx echo.Context) error {
	var data user.UpdateProfile
	if err := ctx.Bind(&data); err != nil {
		return err
	}
	if _, err := s.UserSvc.UpdateProfile(ctx.Request().Context(), mustPrincipal(ctx), data); err != nil {
		return s.handleErr(ctx, err, "/profile", "Error updating profile")
	}
	return s.redirect(ctx, "/profile", flashSuccess, "Profile updated successfully")
}

func (s *server) resetPasswordPage(ctx echo.Context) error {
	return s.render(ctx, http.StatusOK, "reset_password", nil)
}

func (s *server) resetPassword(ctx echo.Context) error {
	var data user.ChangePassword
	if err := ctx.Bind(&data); err != nil {
		return err
	}
	p := mustPrincipal(ctx)
	if err := s.UserSvc.ChangePassword(ctx.Request().Context(), p, data); err != nil {
		return s.handleErr(ctx, err, "/reset_password", "Error changing password")
	}
	s.Logger.Info("password changed", p)
	return s.redirect(ctx, "/profile", flashSuccess, "Password changed successfully")
}

// orEmpty keeps empty listings as [] rather than null in JSON pages.
func orEmpty[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
