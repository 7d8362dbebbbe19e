package echoapi

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/trezcool/studentportal/core"
	"github.com/trezcool/studentportal/core/announcement"
	"github.com/trezcool/studentportal/core/assignment"
	"github.com/trezcool/studentportal/core/feedback"
	"github.com/trezcool/studentportal/core/notification"
	"github.com/trezcool/studentportal/core/session"
	"github.com/trezcool/studentportal/core/user"
)

type (
	ServerDeps struct {
		Conf            *core.Config
		Logger          core.Logger
		HealthCheck     func(ctx context.Context) error
		Sessions        *session.Manager
		UserSvc         user.Service
		AssignmentSvc   assignment.Service
		NotifSvc        notification.Service
		AnnouncementSvc announcement.Service
		FeedbackSvc     feedback.Service
		// Registry collects the HTTP and domain metrics. A fresh registry is used when nil.
		Registry       *prometheus.Registry
		DisableReqLogs bool
	}

	Server interface {
		http.Handler
		Start()
		Errors() <-chan error
		ShutdownSignal() <-chan os.Signal
		Shutdown(context.Context) error
		Close() error
	}

	server struct {
		ServerDeps
		app      *echo.Echo
		metrics  *metrics
		errors   chan error
		shutdown chan os.Signal
	}
)

var _ Server = (*server)(nil)

func NewServer(deps ServerDeps) Server {
	if deps.Registry == nil {
		deps.Registry = prometheus.NewRegistry()
	}
	s := &server{
		ServerDeps: deps,
		app:        echo.New(),
		metrics:    newMetrics(deps.Registry),
		errors:     make(chan error, 1),
		shutdown:   make(chan os.Signal, 1),
	}
	s.setup()
	return s
}

func (s *server) setup() {
	debug := s.Conf.Debug

	s.app.HideBanner = true
	s.app.Server.ReadTimeout = s.Conf.Server.ReadTimeout
	s.app.Server.WriteTimeout = s.Conf.Server.WriteTimeout

	s.app.Pre(middleware.RemoveTrailingSlash())
	if !s.DisableReqLogs {
		s.app.Use(requestLogger(s.Logger))
	}
	// do not recover in DEV|TEST mode
	if !(debug || s.Conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}
	s.app.Use(middleware.SecureWithConfig(middleware.SecureConfig{
		XSSProtection:      "1; mode=block",
		ContentTypeNosniff: "nosniff",
		XFrameOptions:      "SAMEORIGIN",
	}))
	s.app.Use(middleware.BodyLimit(strconv.FormatInt(s.Conf.Server.MaxUploadSize, 10)))
	s.app.Use(s.metrics.middleware())
	s.app.Use(s.loadPrincipal)

	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.Logger, s.signalShutdown)
	s.app.Debug = debug

	s.app.GET("/", s.home)
	s.app.GET("/health", s.health)
	s.app.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(s.Registry, promhttp.HandlerOpts{})))

	s.registerAccountRoutes()
	s.registerAssignmentRoutes()
	s.registerNotificationRoutes()
	s.registerAnnouncementRoutes()
	s.registerFeedbackRoutes()
	s.registerAdminRoutes()
}

func (s *server) Start() {
	signal.Notify(s.shutdown, os.Interrupt, syscall.SIGTERM)
	s.Logger.Info("API listening on " + s.Conf.Server.Address)
	if err := s.app.Start(s.Conf.Server.Address); err != nil && err != http.ErrServerClosed {
		s.errors <- err
	}
}

func (s *server) Errors() <-chan error { return s.errors }

func (s *server) ShutdownSignal() <-chan os.Signal { return s.shutdown }

func (s *server) signalShutdown() {
	select {
	case s.shutdown <- syscall.SIGTERM:
	default:
	}
}

func (s *server) Shutdown(ctx context.Context) error {
	return s.app.Shutdown(ctx)
}

func (s *server) Close() error {
	return s.app.Close()
}

func (s *server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

// home sends visitors to the dashboard matching their role.
func (s *server) home(ctx echo.Context) error {
	p, ok := contextPrincipal(ctx)
	switch {
	case !ok:
		return ctx.Redirect(http.StatusFound, "/login")
	case p.IsAdmin():
		return ctx.Redirect(http.StatusFound, "/admin/dashboard")
	default:
		return ctx.Redirect(http.StatusFound, "/dashboard")
	}
}
