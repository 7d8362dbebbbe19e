package echoapi

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

const (
	flashCookieName = "portal_flash"
	contextFlashKey = "flashes"

	flashSuccess = "success"
	flashInfo    = "info"
	flashWarning = "warning"
	flashDanger  = "danger"
)

// Flash is a one-shot message shown on the next rendered page.
type Flash struct {
	Level   string `json:"level"`
	Message string `json:"message"`
}

func readFlashCookie(ctx echo.Context) []Flash {
	cookie, err := ctx.Cookie(flashCookieName)
	if err != nil || cookie.Value == "" {
		return nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(cookie.Value)
	if err != nil {
		return nil
	}
	var flashes []Flash
	if err = json.Unmarshal(raw, &flashes); err != nil {
		return nil
	}
	return flashes
}

// pendingFlashes returns the flashes of the request plus the ones added while handling it.
func pendingFlashes(ctx echo.Context) []Flash {
	if flashes, ok := ctx.Get(contextFlashKey).([]Flash); ok {
		return flashes
	}
	flashes := readFlashCookie(ctx)
	ctx.Set(contextFlashKey, flashes)
	return flashes
}

func (s *server) addFlash(ctx echo.Context, level, msg string) {
	flashes := append(pendingFlashes(ctx), Flash{Level: level, Message: msg})
	ctx.Set(contextFlashKey, flashes)

	raw, _ := json.Marshal(flashes)
	ctx.SetCookie(s.newCookie(flashCookieName, base64.RawURLEncoding.EncodeToString(raw)))
}

// popFlashes returns the pending flashes and clears them.
func (s *server) popFlashes(ctx echo.Context) []Flash {
	flashes := pendingFlashes(ctx)
	ctx.Set(contextFlashKey, []Flash{})
	if _, err := ctx.Cookie(flashCookieName); err == nil || len(flashes) > 0 {
		cookie := s.newCookie(flashCookieName, "")
		cookie.MaxAge = -1
		cookie.Expires = time.Unix(0, 0)
		ctx.SetCookie(cookie)
	}
	if flashes == nil {
		flashes = []Flash{}
	}
	return flashes
}

// render writes the named page as JSON, along with its flashes.
func (s *server) render(ctx echo.Context, code int, name string, page echo.Map) error {
	if page == nil {
		page = echo.Map{}
	}
	page["page"] = name
	page["flashes"] = s.popFlashes(ctx)
	return ctx.JSON(code, page)
}

// redirect sends the client to path with a flash message. Used after successful form submissions.
func (s *server) redirect(ctx echo.Context, path, level, msg string) error {
	s.addFlash(ctx, level, msg)
	return ctx.Redirect(http.StatusSeeOther, path)
}

// bounce sends the client back to path with a flash message when a request cannot be served.
func (s *server) bounce(ctx echo.Context, path, level, msg string) error {
	s.addFlash(ctx, level, msg)
	return ctx.Redirect(http.StatusFound, path)
}
