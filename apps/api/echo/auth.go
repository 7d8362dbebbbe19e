package echoapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/studentportal/core/session"
	"github.com/trezcool/studentportal/core/user"
)

var (
	contextPrincipalKey = "principal"
	contextSessionKey   = "sessionID"

	errInvalidToken = errors.New("invalid session token")
)

// Claims is the payload of the session cookie. ID carries the server-side session id.
type Claims struct {
	Role string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// signSession returns the signed cookie value for sess.
func (s *server) signSession(sess session.Session) (string, error) {
	claims := Claims{
		Role: sess.Role.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        sess.ID,
			Issuer:    s.Conf.AppName,
			Subject:   strconv.FormatInt(sess.UserID, 10),
			IssuedAt:  jwt.NewNumericDate(sess.CreatedAt),
			ExpiresAt: jwt.NewNumericDate(sess.ExpiresAt),
		},
	}
	ss, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.Conf.SecretKey))
	return ss, errors.Wrap(err, "signing session token")
}

// parseSession verifies the cookie value and returns the session id it carries.
func (s *server) parseSession(token string) (string, error) {
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		return []byte(s.Conf.SecretKey), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithIssuer(s.Conf.AppName))
	if err != nil {
		return "", errors.Wrap(err, "parsing session token")
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid || claims.ID == "" {
		return "", errInvalidToken
	}
	return claims.ID, nil
}

func (s *server) setSessionCookie(ctx echo.Context, sess session.Session) error {
	token, err := s.signSession(sess)
	if err != nil {
		return err
	}
	cookie := s.newCookie(s.Conf.Session.CookieName, token)
	if sess.Remember {
		cookie.Expires = sess.ExpiresAt
		cookie.MaxAge = int(time.Until(sess.ExpiresAt).Seconds())
	}
	ctx.SetCookie(cookie)
	return nil
}

func (s *server) clearSessionCookie(ctx echo.Context) {
	cookie := s.newCookie(s.Conf.Session.CookieName, "")
	cookie.MaxAge = -1
	cookie.Expires = time.Unix(0, 0)
	ctx.SetCookie(cookie)
}

func (s *server) newCookie(name, value string) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   s.Conf.Session.SecureCookie,
		SameSite: http.SameSiteLaxMode,
	}
}

// loadPrincipal attaches the principal of a valid session to the context. It never rejects a request.
func (s *server) loadPrincipal(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		cookie, err := ctx.Cookie(s.Conf.Session.CookieName)
		if err != nil || cookie.Value == "" {
			return next(ctx)
		}
		id, err := s.parseSession(cookie.Value)
		if err != nil {
			s.clearSessionCookie(ctx)
			return next(ctx)
		}
		sess, err := s.Sessions.Lookup(ctx.Request().Context(), id)
		if err != nil {
			if !errors.Is(err, session.ErrNotFound) {
				s.Logger.Error("looking up session", err)
			}
			s.clearSessionCookie(ctx)
			return next(ctx)
		}
		ctx.Set(contextSessionKey, sess.ID)
		ctx.Set(contextPrincipalKey, sess.Principal())
		return next(ctx)
	}
}

// requireAuth redirects anonymous requests to the login page.
func (s *server) requireAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		if _, ok := contextPrincipal(ctx); !ok {
			return s.bounce(ctx, "/login", flashWarning, "Please login to access this page")
		}
		return next(ctx)
	}
}

// requireAdmin must run after requireAuth.
func (s *server) requireAdmin(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		p, _ := contextPrincipal(ctx)
		if !p.IsAdmin() {
			s.Logger.Warn("unauthorized admin access attempt", map[string]interface{}{
				"path":      ctx.Request().URL.Path,
				"remote_ip": ctx.RealIP(),
			}, p)
			return s.bounce(ctx, "/dashboard", flashDanger, "Access denied. Admin privileges required.")
		}
		return next(ctx)
	}
}

func contextPrincipal(ctx echo.Context) (user.Principal, bool) {
	p, ok := ctx.Get(contextPrincipalKey).(user.Principal)
	return p, ok
}

func contextSessionID(ctx echo.Context) string {
	id, _ := ctx.Get(contextSessionKey).(string)
	return id
}

// mustPrincipal is for handlers behind requireAuth.
func mustPrincipal(ctx echo.Context) user.Principal {
	p, _ := contextPrincipal(ctx)
	return p
}
