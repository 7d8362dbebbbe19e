package sqlxrepos

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/studentportal/core"
	"github.com/trezcool/studentportal/core/assignment"
)

const assignmentSelect = `SELECT a.id, a.user_id, o.name AS owner_name, a.filename, a.upload_date,
	a.grade, a.comments, a.graded_by, g.name AS grader_name, a.graded_at
FROM assignments a
JOIN users o ON o.id = a.user_id
LEFT JOIN users g ON g.id = a.graded_by`

type assignmentRow struct {
	ID         int64       `db:"id"`
	UserID     int64       `db:"user_id"`
	OwnerName  string      `db:"owner_name"`
	Filename   string      `db:"filename"`
	UploadDate time.Time   `db:"upload_date"`
	Grade      null.String `db:"grade"`
	Comments   null.String `db:"comments"`
	GradedBy   null.Int64  `db:"graded_by"`
	GraderName null.String `db:"grader_name"`
	GradedAt   null.Time   `db:"graded_at"`
}

func (r assignmentRow) unrow() assignment.Assignment {
	a := assignment.Assignment{
		ID:         r.ID,
		OwnerID:    r.UserID,
		OwnerName:  r.OwnerName,
		Filename:   r.Filename,
		UploadedAt: r.UploadDate.UTC(),
	}
	if r.Grade.Valid {
		a.Grading = &assignment.Grading{
			Grade:      r.Grade.String,
			Comments:   r.Comments.String,
			GradedBy:   r.GradedBy.Int64,
			GraderName: r.GraderName.String,
			GradedAt:   r.GradedAt.Time.UTC(),
		}
	}
	return a
}

type assignmentRepository struct {
	repo
}

var _ assignment.Repository = (*assignmentRepository)(nil) // interface compliance check

func NewAssignmentRepository(exec core.DBExecutor) *assignmentRepository {
	return &assignmentRepository{repo{exec: exec}}
}

func (r *assignmentRepository) CreateAssignment(ctx context.Context, a assignment.Assignment, exec ...core.DBExecutor) (assignment.Assignment, error) {
	id, err := insertReturningID(ctx, r.getExec(exec),
		"INSERT INTO assignments (user_id, filename, upload_date) VALUES (?, ?, ?)",
		a.OwnerID, a.Filename, a.UploadedAt.UTC(),
	)
	if err != nil {
		return assignment.Assignment{}, errors.Wrap(err, "inserting assignment")
	}
	a.ID = id
	a.Grading = nil
	return a, nil
}

func (r *assignmentRepository) GetAssignmentByID(ctx context.Context, id int64, exec ...core.DBExecutor) (assignment.Assignment, error) {
	var row assignmentRow
	if err := get(ctx, r.getExec(exec), &row, assignmentSelect+" WHERE a.id = ?", id); err != nil {
		return assignment.Assignment{}, trapNoRowsErr(err, assignment.ErrNotFound, "finding assignment by ID")
	}
	return row.unrow(), nil
}

func (r *assignmentRepository) GetAssignmentByFilename(ctx context.Context, filename string, exec ...core.DBExecutor) (assignment.Assignment, error) {
	var row assignmentRow
	if err := get(ctx, r.getExec(exec), &row, assignmentSelect+" WHERE a.filename = ?", filename); err != nil {
		return assignment.Assignment{}, trapNoRowsErr(err, assignment.ErrNotFound, "finding assignment by filename")
	}
	return row.unrow(), nil
}

func (r *assignmentRepository) SetGrading(ctx context.Context, id int64, g assignment.Grading, exec ...core.DBExecutor) error {
	return execAffecting(ctx, r.getExec(exec), assignment.ErrNotFound, "grading assignment",
		"UPDATE assignments SET grade = ?, comments = ?, graded_by = ?, graded_at = ? WHERE id = ?",
		g.Grade, g.Comments, g.GradedBy, g.GradedAt.UTC(), id,
	)
}

func (r *assignmentRepository) DeleteAssignment(ctx context.Context, id int64, exec ...core.DBExecutor) error {
	return execAffecting(ctx, r.getExec(exec), assignment.ErrNotFound, "deleting assignment",
		"DELETE FROM assignments WHERE id = ?", id)
}

func assignmentWhere(filter assignment.QueryFilter) *whereClause {
	w := new(whereClause)
	if filter.OwnerID != 0 {
		w.add("a.user_id = ?", filter.OwnerID)
	}
	if filter.Ungraded {
		w.add("a.grade IS NULL")
	}
	return w
}

func (r *assignmentRepository) QueryAssignments(ctx context.Context, filter assignment.QueryFilter, exec ...core.DBExecutor) ([]assignment.Assignment, error) {
	w := assignmentWhere(filter)
	q := assignmentSelect + w.String() + " ORDER BY a.upload_date DESC, a.id DESC"
	if filter.Limit > 0 {
		q += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}

	var rows []assignmentRow
	if err := sel(ctx, r.getExec(exec), &rows, q, w.args...); err != nil {
		return nil, errors.Wrap(err, "querying assignments")
	}
	assignments := make([]assignment.Assignment, 0, len(rows))
	for _, row := range rows {
		assignments = append(assignments, row.unrow())
	}
	return assignments, nil
}

func (r *assignmentRepository) CountAssignments(ctx context.Context, filter assignment.QueryFilter, exec ...core.DBExecutor) (int, error) {
	w := assignmentWhere(filter)
	var n int
	if err := get(ctx, r.getExec(exec), &n, "SELECT COUNT(*) FROM assignments a"+w.String(), w.args...); err != nil {
		return 0, errors.Wrap(err, "counting assignments")
	}
	return n, nil
}
