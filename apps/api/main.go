package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	echoapi "github.com/trezcool/studentportal/apps/api/echo"
	"github.com/trezcool/studentportal/core"
	"github.com/trezcool/studentportal/core/announcement"
	"github.com/trezcool/studentportal/core/assignment"
	"github.com/trezcool/studentportal/core/feedback"
	"github.com/trezcool/studentportal/core/notification"
	"github.com/trezcool/studentportal/core/session"
	"github.com/trezcool/studentportal/core/user"
	emailsvc "github.com/trezcool/studentportal/services/email"
	eventsvc "github.com/trezcool/studentportal/services/events"
	logsvc "github.com/trezcool/studentportal/services/logger"
	"github.com/trezcool/studentportal/storage/database"
	sqlxrepos "github.com/trezcool/studentportal/storage/database/sqlx"
	"github.com/trezcool/studentportal/storage/files"
	"github.com/trezcool/studentportal/storage/sessions"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %+v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// =========================================================================
	// Set up Dependencies

	conf, err := core.NewConfig()
	if err != nil {
		return errors.Wrap(err, "loading config")
	}

	zl, err := logsvc.NewZerolog(conf)
	if err != nil {
		return errors.Wrap(err, "setting up zerolog")
	}
	logger := logsvc.NewRollbarLogger(zl.With().Str("component", "api").Logger(), conf)
	dbLogger := logsvc.NewRollbarLogger(zl.With().Str("component", "db").Logger(), conf)

	// set up DB
	db, err := setUpDB(conf)
	if err != nil {
		logger.Fatal("setting up database", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			dbLogger.Error("Failed to close", err)
		}
	}()

	validate := core.NewValidator()
	txRunner := database.NewTxRunner(db)
	mailSvc := emailsvc.New(conf, logger)

	events, closeEvents, err := newEventPublisher(conf, logger)
	if err != nil {
		logger.Fatal("setting up event publisher", err)
	}
	defer closeEvents()

	fileStore, err := newFileStore(conf, logger)
	if err != nil {
		logger.Fatal("setting up file storage", err)
	}

	sessStore, closeSessions := newSessionStore(conf, logger)
	defer closeSessions()

	// set up services
	usrSvc := user.NewService(conf, validate, sqlxrepos.NewUserRepository(db))
	notifSvc := notification.NewService(sqlxrepos.NewNotificationRepository(db), usrSvc, events, logger)
	assignmentSvc := assignment.NewService(conf, validate, assignment.Deps{
		Tx:       txRunner,
		Repo:     sqlxrepos.NewAssignmentRepository(db),
		Files:    fileStore,
		NotifSvc: notifSvc,
		UserSvc:  usrSvc,
		MailSvc:  mailSvc,
		Events:   events,
		Logger:   logger,
	})
	announcementSvc := announcement.NewService(validate, sqlxrepos.NewAnnouncementRepository(db))
	feedbackSvc := feedback.NewService(validate, sqlxrepos.NewFeedbackRepository(db))

	// =========================================================================
	// Initialize App

	logger.Info(fmt.Sprintf("Application initializing : version %q", conf.Build))
	defer logger.Info("Application stopped")

	created, err := usrSvc.EnsureAdmin(context.Background(), conf.Bootstrap.AdminEmail, conf.Bootstrap.AdminPassword, conf.Bootstrap.AdminName)
	if err != nil {
		logger.Fatal("creating bootstrap admin", err)
	}
	if created {
		logger.Warn("bootstrap admin created; rotate its password with `portal-admin resetpassword`",
			map[string]interface{}{"email": conf.Bootstrap.AdminEmail})
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewDBStatsCollector(db.DB, "portal"),
	)

	// =========================================================================
	// Start API Service

	server := echoapi.NewServer(echoapi.ServerDeps{
		Conf:   conf,
		Logger: logger,
		HealthCheck: func(ctx context.Context) error {
			return database.StatusCheck(ctx, db)
		},
		Sessions:        session.NewManager(conf, sessStore),
		UserSvc:         usrSvc,
		AssignmentSvc:   assignmentSvc,
		NotifSvc:        notifSvc,
		AnnouncementSvc: announcementSvc,
		FeedbackSvc:     feedbackSvc,
		Registry:        registry,
	})

	go func() {
		server.Start()
	}()

	// =========================================================================
	// Shutdown

	select {
	case err = <-server.Errors():
		return errors.Wrap(err, "server error")

	case sig := <-server.ShutdownSignal():
		logger.Info(fmt.Sprintf("%v: Start shutdown...", sig))

		// give outstanding requests a deadline for completion
		ctx, cancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
		defer cancel()

		// asking listener to shutdown and shed load
		if err = server.Shutdown(ctx); err != nil {
			logger.Error("could not stop server gracefully", err)

			if err = server.Close(); err != nil {
				return errors.Wrap(err, "could not force stop server")
			}
		}
	}
	return nil
}

func setUpDB(conf *core.Config) (*sqlx.DB, error) {
	if err := database.CreateIfNotExist(conf); err != nil {
		return nil, err
	}

	db, err := database.Open(conf)
	if err != nil {
		return nil, err
	}

	if err = database.Migrate(context.Background(), db, "up"); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

func newFileStore(conf *core.Config, logger core.Logger) (core.FileStore, error) {
	switch conf.Storage.Provider {
	case "minio":
		return files.NewMinIOStore(conf.Storage.MinIO, logger)
	case "", "local":
		dir := conf.Storage.UploadDir
		if !filepath.IsAbs(dir) {
			dir = filepath.Join(core.Getwd(), dir)
		}
		return files.NewLocalStore(dir)
	}
	return nil, errors.Errorf("unknown storage provider %q", conf.Storage.Provider)
}

func newSessionStore(conf *core.Config, logger core.Logger) (session.Store, func()) {
	if conf.Session.Store == "redis" {
		store := sessions.NewRedisStore(conf.Session.RedisAddr)
		if !store.Healthy(context.Background()) {
			logger.Warn("redis is not reachable yet", map[string]interface{}{"addr": conf.Session.RedisAddr})
		}
		return store, func() {
			if err := store.Close(); err != nil {
				logger.Error("closing redis client", err)
			}
		}
	}
	return sessions.NewMemoryStore(), func() {}
}

func newEventPublisher(conf *core.Config, logger core.Logger) (core.EventPublisher, func(), error) {
	if conf.Events.AMQPURL == "" {
		return eventsvc.NewLogPublisher(logger), func() {}, nil
	}
	pub, err := eventsvc.NewAMQPPublisher(conf.Events.AMQPURL, conf.Events.Exchange)
	if err != nil {
		return nil, nil, err
	}
	return pub, func() {
		if err := pub.Close(); err != nil {
			logger.Error("closing event publisher", err)
		}
	}, nil
}
