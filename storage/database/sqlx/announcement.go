package sqlxrepos

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/studentportal/core"
	"github.com/trezcool/studentportal/core/announcement"
)

const announcementSelect = `SELECT an.id, an.title, an.message, an.created_by, u.name AS author_name, an.created_at, an.updated_at
FROM announcements an
JOIN users u ON u.id = an.created_by`

type announcementRow struct {
	ID         int64     `db:"id"`
	Title      string    `db:"title"`
	Message    string    `db:"message"`
	CreatedBy  int64     `db:"created_by"`
	AuthorName string    `db:"author_name"`
	CreatedAt  time.Time `db:"created_at"`
	UpdatedAt  null.Time `db:"updated_at"`
}

func (r announcementRow) unrow() announcement.Announcement {
	a := announcement.Announcement{
		ID:         r.ID,
		Title:      r.Title,
		Message:    r.Message,
		AuthorID:   r.CreatedBy,
		AuthorName: r.AuthorName,
		CreatedAt:  r.CreatedAt.UTC(),
	}
	if r.UpdatedAt.Valid {
		t := r.UpdatedAt.Time.UTC()
		a.UpdatedAt = &t
	}
	return a
}

type announcementRepository struct {
	repo
}

var _ announcement.Repository = (*announcementRepository)(nil) // interface compliance check

func NewAnnouncementRepository(exec core.DBExecutor) *announcementRepository {
	return &announcementRepository{repo{exec: exec}}
}

func (r *announcementRepository) CreateAnnouncement(ctx context.Context, a announcement.Announcement, exec ...core.DBExecutor) (announcement.Announcement, error) {
	id, err := insertReturningID(ctx, r.getExec(exec),
		"INSERT INTO announcements (title, message, created_by, created_at) VALUES (?, ?, ?, ?)",
		a.Title, a.Message, a.AuthorID, a.CreatedAt.UTC(),
	)
	if err != nil {
		return announcement.Announcement{}, errors.Wrap(err, "inserting announcement")
	}
	a.ID = id
	return a, nil
}

func (r *announcementRepository) GetAnnouncementByID(ctx context.Context, id int64, exec ...core.DBExecutor) (announcement.Announcement, error) {
	var row announcementRow
	if err := get(ctx, r.getExec(exec), &row, announcementSelect+" WHERE an.id = ?", id); err != nil {
		return announcement.Announcement{}, trapNoRowsErr(err, announcement.ErrNotFound, "finding announcement by ID")
	}
	return row.unrow(), nil
}

func (r *announcementRepository) UpdateAnnouncement(ctx context.Context, a announcement.Announcement, exec ...core.DBExecutor) (announcement.Announcement, error) {
	err := execAffecting(ctx, r.getExec(exec), announcement.ErrNotFound, "updating announcement",
		"UPDATE announcements SET title = ?, message = ?, updated_at = ? WHERE id = ?",
		a.Title, a.Message, null.TimeFromPtr(a.UpdatedAt), a.ID,
	)
	if err != nil {
		return announcement.Announcement{}, err
	}
	return a, nil
}

func (r *announcementRepository) DeleteAnnouncement(ctx context.Context, id int64, exec ...core.DBExecutor) error {
	return execAffecting(ctx, r.getExec(exec), announcement.ErrNotFound, "deleting announcement",
		"DELETE FROM announcements WHERE id = ?", id)
}

func (r *announcementRepository) QueryAnnouncements(ctx context.Context, filter announcement.QueryFilter, exec ...core.DBExecutor) ([]announcement.Announcement, error) {
	ex := r.getExec(exec)
	w := new(whereClause)
	if filter.Search != "" {
		pattern, op := containsPattern(filter.Search), likeOp(ex)
		w.add(fmt.Sprintf(`(an.title %[1]s ? ESCAPE '\' OR an.message %[1]s ? ESCAPE '\')`, op), pattern, pattern)
	}
	q := announcementSelect + w.String() + " ORDER BY an.created_at DESC, an.id DESC"
	if filter.Limit > 0 {
		q += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}

	var rows []announcementRow
	if err := sel(ctx, ex, &rows, q, w.args...); err != nil {
		return nil, errors.Wrap(err, "querying announcements")
	}
	anns := make([]announcement.Announcement, 0, len(rows))
	for _, row := range rows {
		anns = append(anns, row.unrow())
	}
	return anns, nil
}

func (r *announcementRepository) CountAnnouncements(ctx context.Context, exec ...core.DBExecutor) (int, error) {
	var n int
	if err := get(ctx, r.getExec(exec), &n, "SELECT COUNT(*) FROM announcements"); err != nil {
		return 0, errors.Wrap(err, "counting announcements")
	}
	return n, nil
}
