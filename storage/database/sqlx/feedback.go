package sqlxrepos

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/studentportal/core"
	"github.com/trezcool/studentportal/core/feedback"
)

const feedbackSelect = `SELECT f.id, f.user_id, u.name AS author_name, f.subject, f.message, f.rating, f.created_at
FROM feedback f
JOIN users u ON u.id = f.user_id`

type feedbackRow struct {
	ID         int64     `db:"id"`
	UserID     int64     `db:"user_id"`
	AuthorName string    `db:"author_name"`
	Subject    string    `db:"subject"`
	Message    string    `db:"message"`
	Rating     int       `db:"rating"`
	CreatedAt  time.Time `db:"created_at"`
}

func (r feedbackRow) unrow() feedback.Feedback {
	return feedback.Feedback{
		ID:         r.ID,
		AuthorID:   r.UserID,
		AuthorName: r.AuthorName,
		Subject:    r.Subject,
		Message:    r.Message,
		Rating:     r.Rating,
		CreatedAt:  r.CreatedAt.UTC(),
	}
}

type feedbackRepository struct {
	repo
}

var _ feedback.Repository = (*feedbackRepository)(nil) // interface compliance check

func NewFeedbackRepository(exec core.DBExecutor) *feedbackRepository {
	return &feedbackRepository{repo{exec: exec}}
}

func (r *feedbackRepository) CreateFeedback(ctx context.Context, fb feedback.Feedback, exec ...core.DBExecutor) (feedback.Feedback, error) {
	id, err := insertReturningID(ctx, r.getExec(exec),
		"INSERT INTO feedback (user_id, subject, message, rating, created_at) VALUES (?, ?, ?, ?, ?)",
		fb.AuthorID, fb.Subject, fb.Message, fb.Rating, fb.CreatedAt.UTC(),
	)
	if err != nil {
		return feedback.Feedback{}, errors.Wrap(err, "inserting feedback")
	}
	fb.ID = id
	return fb, nil
}

func (r *feedbackRepository) QueryFeedback(ctx context.Context, filter feedback.QueryFilter, exec ...core.DBExecutor) ([]feedback.Feedback, error) {
	w := new(whereClause)
	if filter.AuthorID != 0 {
		w.add("f.user_id = ?", filter.AuthorID)
	}
	if filter.Rating != 0 {
		w.add("f.rating = ?", filter.Rating)
	}
	q := feedbackSelect + w.String() + " ORDER BY f.created_at DESC, f.id DESC"
	if filter.Limit > 0 {
		q += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}

	var rows []feedbackRow
	if err := sel(ctx, r.getExec(exec), &rows, q, w.args...); err != nil {
		return nil, errors.Wrap(err, "querying feedback")
	}
	entries := make([]feedback.Feedback, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, row.unrow())
	}
	return entries, nil
}

func (r *feedbackRepository) CountFeedback(ctx context.Context, exec ...core.DBExecutor) (int, error) {
	var n int
	if err := get(ctx, r.getExec(exec), &n, "SELECT COUNT(*) FROM feedback"); err != nil {
		return 0, errors.Wrap(err, "counting feedback")
	}
	return n, nil
}
