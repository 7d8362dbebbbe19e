package testutil

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"

	"github.com/trezcool/studentportal/core"
	"github.com/trezcool/studentportal/core/announcement"
	"github.com/trezcool/studentportal/core/assignment"
	"github.com/trezcool/studentportal/core/feedback"
	"github.com/trezcool/studentportal/core/notification"
	"github.com/trezcool/studentportal/core/user"
	emailsvc "github.com/trezcool/studentportal/services/email"
	eventsvc "github.com/trezcool/studentportal/services/events"
	logsvc "github.com/trezcool/studentportal/services/logger"
	"github.com/trezcool/studentportal/storage/database"
	sqlxrepos "github.com/trezcool/studentportal/storage/database/sqlx"
	"github.com/trezcool/studentportal/storage/files"
)

// NewConfig returns the test configuration with uploads kept in a temp dir.
func NewConfig(t *testing.T) *core.Config {
	t.Helper()
	conf := core.NewTestConfig()
	conf.Storage.UploadDir = filepath.Join(t.TempDir(), "uploads")
	conf.Database.URL = "sqlite3://" + filepath.Join(t.TempDir(), "portal.db")
	return conf
}

// PrepareDB opens the database configured by conf (a fresh SQLite file by default) and migrates it up.
func PrepareDB(t *testing.T, conf ...*core.Config) *sqlx.DB {
	t.Helper()
	var c *core.Config
	if len(conf) > 0 {
		c = conf[0]
	} else {
		c = NewConfig(t)
	}

	db, err := database.Open(c)
	if err != nil {
		t.Fatalf("PrepareDB() failed to open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if err = database.Migrate(context.Background(), db, "up"); err != nil {
		t.Fatalf("PrepareDB() failed to migrate: %v", err)
	}
	return db
}

func NewLogger(conf *core.Config) core.Logger {
	return logsvc.NewRollbarLogger(zerolog.Nop(), conf)
}

func CreateUser(
	t *testing.T,
	repo user.Repository,
	name, email, pwd string,
	role user.Role,
	createdAt ...time.Time,
) user.User {
	t.Helper()
	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	usr := user.User{
		Name:       name,
		Email:      email,
		Role:       role,
		Department: "Computer Science",
		Year:       1,
		CreatedAt:  tstamp,
	}
	if role == user.RoleAdmin {
		usr.Department = "Administration"
		usr.Year = 0
	}
	if pwd != "" {
		if err := usr.SetPassword(pwd, 4); err != nil {
			t.Fatalf("CreateUser() failed: %v", err)
		}
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	return usr
}

// Services is the whole domain wired on a test database.
type Services struct {
	Conf     *core.Config
	DB       *sqlx.DB
	Logger   core.Logger
	Validate *core.Validator
	Files    *files.LocalStore
	Events   *eventsvc.Recorder
	Mail     *emailsvc.ConsoleServiceMock

	UsrRepo  user.Repository
	NotiRepo notification.Repository
	AsgnRepo assignment.Repository

	UserSvc         user.Service
	NotifSvc        notification.Service
	AssignmentSvc   assignment.Service
	AnnouncementSvc announcement.Service
	FeedbackSvc     feedback.Service
}

func NewServices(t *testing.T) *Services {
	t.Helper()
	conf := NewConfig(t)
	db := PrepareDB(t, conf)

	fileStore, err := files.NewLocalStore(conf.Storage.UploadDir)
	if err != nil {
		t.Fatalf("NewServices() failed to create file store: %v", err)
	}

	s := &Services{
		Conf:     conf,
		DB:       db,
		Logger:   NewLogger(conf),
		Validate: core.NewValidator(),
		Files:    fileStore,
		Events:   &eventsvc.Recorder{},
		UsrRepo:  sqlxrepos.NewUserRepository(db),
		NotiRepo: sqlxrepos.NewNotificationRepository(db),
		AsgnRepo: sqlxrepos.NewAssignmentRepository(db),
	}
	s.Mail = emailsvc.NewConsoleServiceMock(conf, s.Logger)

	s.UserSvc = user.NewService(conf, s.Validate, s.UsrRepo)
	s.NotifSvc = notification.NewService(s.NotiRepo, s.UserSvc, s.Events, s.Logger)
	s.AssignmentSvc = assignment.NewService(conf, s.Validate, assignment.Deps{
		Tx:       database.NewTxRunner(db),
		Repo:     s.AsgnRepo,
		Files:    fileStore,
		NotifSvc: s.NotifSvc,
		UserSvc:  s.UserSvc,
		MailSvc:  s.Mail,
		Events:   s.Events,
		Logger:   s.Logger,
	})
	s.AnnouncementSvc = announcement.NewService(s.Validate, sqlxrepos.NewAnnouncementRepository(db))
	s.FeedbackSvc = feedback.NewService(s.Validate, sqlxrepos.NewFeedbackRepository(db))
	return s
}
