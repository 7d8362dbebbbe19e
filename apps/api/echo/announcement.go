package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
)

func (s *server) registerAnnouncementRoutes() {
	s.app.GET("/announcements", s.announcements, s.requireAuth)
}

func (s *server) announcements(ctx echo.Context) error {
	search := ctx.QueryParam("search")
	list, err := s.AnnouncementSvc.Search(ctx.Request().Context(), search)
	if err != nil {
		return errors.Wrap(err, "searching announcements")
	}
	return s.render(ctx, http.StatusOK, "announcements", echo.Map{
		"announcements": orEmpty(list),
		"search":        search,
	})
}
