package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
)

func (s *server) registerNotificationRoutes() {
	s.app.GET("/notifications", s.notifications, s.requireAuth)
	s.app.GET("/mark_read/:id", s.markRead, s.requireAuth)
}

func (s *server) notifications(ctx echo.Context) error {
	p := mustPrincipal(ctx)
	reqCtx := ctx.Request().Context()

	list, err := s.NotifSvc.ListFor(reqCtx, p.UserID)
	if err != nil {
		return errors.Wrap(err, "listing notifications")
	}
	unread, err := s.NotifSvc.UnreadCount(reqCtx, p.UserID)
	if err != nil {
		return errors.Wrap(err, "counting unread notifications")
	}
	return s.render(ctx, http.StatusOK, "notifications", echo.Map{
		"notifications": orEmpty(list),
		"unread_count":  unread,
	})
}

func (s *server) markRead(ctx echo.Context) error {
	id, err := paramID(ctx, "id", "notification")
	if err != nil {
		return s.handleErr(ctx, err, "/notifications", "")
	}
	if err = s.NotifSvc.MarkRead(ctx.Request().Context(), mustPrincipal(ctx), id); err != nil {
		return s.handleErr(ctx, err, "/notifications", "Error updating notification")
	}
	return ctx.Redirect(http.StatusSeeOther, "/notifications")
}
