package notification

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/studentportal/core"
	"github.com/trezcool/studentportal/core/user"
)

var (
	ErrNotFound = core.NewNotFoundError("notification")

	nowFunc = time.Now // mockable
)

type (
	Repository interface {
		CreateNotification(ctx context.Context, n Notification, exec ...core.DBExecutor) (Notification, error)
		// CreateForRole inserts one unread notification per user with role and returns how many were created.
		CreateForRole(ctx context.Context, role user.Role, message string, at time.Time, exec ...core.DBExecutor) (int, error)
		GetNotificationByID(ctx context.Context, id int64, exec ...core.DBExecutor) (Notification, error)
		MarkNotificationRead(ctx context.Context, id int64, exec ...core.DBExecutor) error
		// QueryNotifications returns the recipient's notifications, newest first.
		QueryNotifications(ctx context.Context, recipientID int64, exec ...core.DBExecutor) ([]Notification, error)
		CountUnread(ctx context.Context, recipientID int64, exec ...core.DBExecutor) (int, error)
	}

	Service interface {
		// SendOne creates exactly one unread notification. Pass exec to enlist it in a caller's transaction.
		SendOne(ctx context.Context, recipientID int64, message string, exec ...core.DBExecutor) (Notification, error)
		SendToStudent(ctx context.Context, p user.Principal, studentID int64, message string) (Notification, error)
		Broadcast(ctx context.Context, p user.Principal, message string) (int, error)
		MarkRead(ctx context.Context, p user.Principal, id int64) error
		UnreadCount(ctx context.Context, userID int64) (int, error)
		ListFor(ctx context.Context, userID int64) ([]Notification, error)
	}

	service struct {
		repo   Repository
		usrSvc user.Service
		events core.EventPublisher
		logger core.Logger
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository, usrSvc user.Service, events core.EventPublisher, logger core.Logger) Service {
	return &service{
		repo:   repo,
		usrSvc: usrSvc,
		events: events,
		logger: logger,
	}
}

func messageRequired() error {
	return core.NewValidationError(nil, core.FieldError{Field: "message", Error: "Message is required"})
}

func (svc *service) SendOne(ctx context.Context, recipientID int64, message string, exec ...core.DBExecutor) (Notification, error) {
	message = core.CleanString(message)
	if message == "" {
		return Notification{}, messageRequired()
	}
	n := Notification{
		RecipientID: recipientID,
		Message:     message,
		CreatedAt:   nowFunc().UTC(),
	}
	n, err := svc.repo.CreateNotification(ctx, n, exec...)
	if err != nil {
		return Notification{}, errors.Wrap(err, "creating notification")
	}
	return n, nil
}

// SendToStudent is the admin targeted send: the recipient must exist and be a student.
func (svc *service) SendToStudent(ctx context.Context, p user.Principal, studentID int64, message string) (Notification, error) {
	if !p.IsAdmin() {
		return Notification{}, core.ErrForbidden
	}
	if _, err := svc.usrSvc.GetStudent(ctx, studentID); err != nil {
		return Notification{}, err
	}
	return svc.SendOne(ctx, studentID, message)
}

// Broadcast gives every student an independent unread copy of message.
func (svc *service) Broadcast(ctx context.Context, p user.Principal, message string) (int, error) {
	if !p.IsAdmin() {
		return 0, core.ErrForbidden
	}
	message = core.CleanString(message)
	if message == "" {
		return 0, messageRequired()
	}

	now := nowFunc().UTC()
	count, err := svc.repo.CreateForRole(ctx, user.RoleStudent, message, now)
	if err != nil {
		return 0, errors.Wrap(err, "broadcasting notification")
	}

	if svc.events == nil {
		return count, nil
	}
	evt := core.Event{
		Kind:       core.EventNotificationBroadcast,
		ActorID:    p.UserID,
		Data:       map[string]interface{}{"recipients": count},
		OccurredAt: now,
	}
	if err = svc.events.Publish(ctx, evt); err != nil {
		svc.logger.Error("publishing event", errors.Wrap(err, evt.Kind), p)
	}
	return count, nil
}

// MarkRead is allowed for the recipient only; admins have no override here.
func (svc *service) MarkRead(ctx context.Context, p user.Principal, id int64) error {
	n, err := svc.repo.GetNotificationByID(ctx, id)
	if err != nil {
		return err
	}
	if n.RecipientID != p.UserID {
		return core.ErrForbidden
	}
	if n.IsRead {
		return nil
	}
	return errors.Wrap(svc.repo.MarkNotificationRead(ctx, id), "marking notification read")
}

func (svc *service) UnreadCount(ctx context.Context, userID int64) (int, error) {
	return svc.repo.CountUnread(ctx, userID)
}

func (svc *service) ListFor(ctx context.Context, userID int64) ([]Notification, error) {
	return svc.repo.QueryNotifications(ctx, userID)
}
