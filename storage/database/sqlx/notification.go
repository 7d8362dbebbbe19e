package sqlxrepos

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/studentportal/core"
	"github.com/trezcool/studentportal/core/notification"
	"github.com/trezcool/studentportal/core/user"
)

const notificationColumns = "id, user_id, message, is_read, created_at"

type notificationRow struct {
	ID        int64     `db:"id"`
	UserID    int64     `db:"user_id"`
	Message   string    `db:"message"`
	IsRead    bool      `db:"is_read"`
	CreatedAt time.Time `db:"created_at"`
}

func (r notificationRow) unrow() notification.Notification {
	return notification.Notification{
		ID:          r.ID,
		RecipientID: r.UserID,
		Message:     r.Message,
		IsRead:      r.IsRead,
		CreatedAt:   r.CreatedAt.UTC(),
	}
}

type notificationRepository struct {
	repo
}

var _ notification.Repository = (*notificationRepository)(nil) // interface compliance check

func NewNotificationRepository(exec core.DBExecutor) *notificationRepository {
	return &notificationRepository{repo{exec: exec}}
}

func (r *notificationRepository) CreateNotification(ctx context.Context, n notification.Notification, exec ...core.DBExecutor) (notification.Notification, error) {
	id, err := insertReturningID(ctx, r.getExec(exec),
		"INSERT INTO notifications (user_id, message, is_read, created_at) VALUES (?, ?, ?, ?)",
		n.RecipientID, n.Message, n.IsRead, n.CreatedAt.UTC(),
	)
	if err != nil {
		return notification.Notification{}, errors.Wrap(err, "inserting notification")
	}
	n.ID = id
	return n, nil
}

// CreateForRole fans message out with a single INSERT ... SELECT, so either every recipient gets a copy or none does.
func (r *notificationRepository) CreateForRole(ctx context.Context, role user.Role, message string, at time.Time, exec ...core.DBExecutor) (int, error) {
	exe := r.getExec(exec)
	q := "INSERT INTO notifications (user_id, message, is_read, created_at) " +
		"SELECT id, CAST(? AS TEXT), FALSE, " + timeParam(exe) + " FROM users WHERE role = ?"
	res, err := exe.ExecContext(ctx, exe.Rebind(q), message, at.UTC(), string(role))
	if err != nil {
		return 0, errors.Wrap(err, "inserting notifications")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, errors.Wrap(err, "inserting notifications")
	}
	return int(n), nil
}

func (r *notificationRepository) GetNotificationByID(ctx context.Context, id int64, exec ...core.DBExecutor) (notification.Notification, error) {
	var row notificationRow
	if err := get(ctx, r.getExec(exec), &row, "SELECT "+notificationColumns+" FROM notifications WHERE id = ?", id); err != nil {
		return notification.Notification{}, trapNoRowsErr(err, notification.ErrNotFound, "finding notification by ID")
	}
	return row.unrow(), nil
}

func (r *notificationRepository) MarkNotificationRead(ctx context.Context, id int64, exec ...core.DBExecutor) error {
	return execAffecting(ctx, r.getExec(exec), notification.ErrNotFound, "marking notification read",
		"UPDATE notifications SET is_read = ? WHERE id = ?", true, id)
}

func (r *notificationRepository) QueryNotifications(ctx context.Context, recipientID int64, exec ...core.DBExecutor) ([]notification.Notification, error) {
	var rows []notificationRow
	q := "SELECT " + notificationColumns + " FROM notifications WHERE user_id = ? ORDER BY created_at DESC, id DESC"
	if err := sel(ctx, r.getExec(exec), &rows, q, recipientID); err != nil {
		return nil, errors.Wrap(err, "querying notifications")
	}
	notifs := make([]notification.Notification, 0, len(rows))
	for _, row := range rows {
		notifs = append(notifs, row.unrow())
	}
	return notifs, nil
}

func (r *notificationRepository) CountUnread(ctx context.Context, recipientID int64, exec ...core.DBExecutor) (int, error) {
	var n int
	q := "SELECT COUNT(*) FROM notifications WHERE user_id = ? AND is_read = ?"
	if err := get(ctx, r.getExec(exec), &n, q, recipientID, false); err != nil {
		return 0, errors.Wrap(err, "counting unread notifications")
	}
	return n, nil
}
