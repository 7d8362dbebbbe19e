package echoapi

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/studentportal/core"
)

var (
	msgUnauthorizedAction = "Unauthorized action"
	msgInternalError      = http.StatusText(http.StatusInternalServerError)
)

// newAppHTTPErrorHandler returns a custom echo.HTTPErrorHandler that knows how to handle our errors.
// signalShutdown is called in order to gracefully shutdown the Server whenever a core.shutdown error is caught.
func newAppHTTPErrorHandler(logger core.Logger, signalShutdown func()) echo.HTTPErrorHandler {
	return func(err error, ctx echo.Context) {
		var code int
		var message interface{}

		var (
			httpErr  *echo.HTTPError
			valErr   *core.ValidationError
			authErr  *core.AuthError
			notFound *core.NotFoundError
		)
		switch {
		case errors.As(err, &httpErr):
			if httpErr.Internal != nil {
				if herr, ok := httpErr.Internal.(*echo.HTTPError); ok {
					httpErr = herr
				}
			}
			code = httpErr.Code
			message = httpErr.Message
		case errors.As(err, &valErr):
			if len(valErr.Fields) > 0 {
				fldErrs := make(map[string]string, len(valErr.Fields))
				for _, fErr := range valErr.Fields {
					if _, exists := fldErrs[fErr.Field]; !exists {
						fldErrs[fErr.Field] = fErr.Error
					}
				}
				message = fldErrs
			} else {
				message = valErr.Error()
			}
			code = http.StatusBadRequest
		case errors.As(err, &authErr):
			code = http.StatusForbidden
			message = authErr.Error()
		case errors.As(err, &notFound):
			code = http.StatusNotFound
			message = notFound.Error()
		default: // any other error is a server error
			code = http.StatusInternalServerError
			message = msgInternalError

			p, _ := contextPrincipal(ctx)
			logger.Error(msgInternalError, errors.WithMessage(err, ctx.Request().URL.Path), p)

			if ctx.Echo().Debug {
				message = err.Error()
			}

			// shutting down...
			if core.IsShutdown(err) {
				signalShutdown()
			}
		}

		if m, ok := message.(string); ok {
			message = echo.Map{"error": m}
		}

		// Send response
		if !ctx.Response().Committed {
			if ctx.Request().Method == http.MethodHead { // Issue #608
				err = ctx.NoContent(code)
			} else {
				err = ctx.JSON(code, message)
			}
			if err != nil {
				logger.Error("sending error response", err)
			}
		}
	}
}

// handleErr turns domain failures into a redirect to fallback with a danger flash.
// Validation and unexpected errors are returned for the HTTPErrorHandler.
func (s *server) handleErr(ctx echo.Context, err error, fallback, failMsg string) error {
	p, _ := contextPrincipal(ctx)

	var (
		authErr    *core.AuthError
		notFound   *core.NotFoundError
		storageErr *core.StorageError
	)
	switch {
	case core.IsValidation(err):
		return err
	case errors.As(err, &authErr):
		s.Logger.Warn("forbidden action", map[string]interface{}{"path": ctx.Request().URL.Path}, p)
		return s.bounce(ctx, fallback, flashDanger, msgUnauthorizedAction)
	case errors.As(err, &notFound):
		return s.bounce(ctx, fallback, flashDanger, notFoundMessage(notFound))
	case errors.As(err, &storageErr):
		s.Logger.Error(failMsg, err, p)
		return s.bounce(ctx, fallback, flashDanger, failMsg)
	}
	return err
}

func notFoundMessage(err *core.NotFoundError) string {
	if err.Resource == "" {
		return "Not found"
	}
	return strings.ToUpper(err.Resource[:1]) + err.Resource[1:] + " not found"
}
