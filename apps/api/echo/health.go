package echoapi

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

type healthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Database  string    `json:"database"`
}

// health reports whether the database answers. It always responds 200 so probes can read the body.
func (s *server) health(ctx echo.Context) error {
	res := healthResponse{Status: "healthy", Timestamp: time.Now().UTC(), Database: "connected"}
	if err := s.HealthCheck(ctx.Request().Context()); err != nil {
		s.Logger.Error("health check database error", err)
		res.Status = "unhealthy"
		res.Database = "disconnected"
	}
	return ctx.JSON(http.StatusOK, res)
}
