package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/studentportal/core/feedback"
)

func (s *server) registerFeedbackRoutes() {
	s.app.GET("/feedback", s.feedbackPage, s.requireAuth)
	s.app.POST("/feedback", s.submitFeedback, s.requireAuth)
}

func (s *server) feedbackPage(ctx echo.Context) error {
	list, err := s.FeedbackSvc.ListForUser(ctx.Request().Context(), mustPrincipal(ctx).UserID)
	if err != nil {
		return errors.Wrap(err, "listing feedback")
	}
	return s.render(ctx, http.StatusOK, "feedback", echo.Map{"feedback": orEmpty(list)})
}

func (s *server) submitFeedback(ctx echo.Context) error {
	var data feedback.Form
	if err := ctx.Bind(&data); err != nil {
		return err
	}
	p := mustPrincipal(ctx)
	if _, err := s.FeedbackSvc.Submit(ctx.Request().Context(), p, data); err != nil {
		return s.handleErr(ctx, err, "/feedback", "Error submitting feedback")
	}
	s.Logger.Info("feedback submitted", p)
	return s.redirect(ctx, "/feedback", flashSuccess, "Feedback submitted successfully")
}
