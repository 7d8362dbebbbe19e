package sqlxrepos

import (
	"context"
	"database/sql"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/studentportal/core"
	"github.com/trezcool/studentportal/storage/database"
)

// repo is embedded by every repository. Queries are written with `?` placeholders and rebound per driver.
type repo struct {
	exec core.DBExecutor
}

func (r repo) getExec(svcExec []core.DBExecutor) core.DBExecutor {
	return core.GetExec(r.exec, svcExec)
}

// trapNoRowsErr maps sql.ErrNoRows to notFound
func trapNoRowsErr(err, notFound error, msg string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return notFound
	}
	return errors.Wrap(err, msg)
}

func get(ctx context.Context, exec core.DBExecutor, dest interface{}, query string, args ...interface{}) error {
	return sqlx.GetContext(ctx, exec, dest, exec.Rebind(query), args...)
}

func sel(ctx context.Context, exec core.DBExecutor, dest interface{}, query string, args ...interface{}) error {
	return sqlx.SelectContext(ctx, exec, dest, exec.Rebind(query), args...)
}

// execAffecting runs query and returns notFound when it touched no row.
func execAffecting(ctx context.Context, exec core.DBExecutor, notFound error, msg, query string, args ...interface{}) error {
	res, err := exec.ExecContext(ctx, exec.Rebind(query), args...)
	if err != nil {
		return errors.Wrap(err, msg)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, msg)
	}
	if n == 0 {
		return notFound
	}
	return nil
}

// insertReturningID runs an INSERT ... RETURNING id.
func insertReturningID(ctx context.Context, exec core.DBExecutor, query string, args ...interface{}) (int64, error) {
	var id int64
	err := get(ctx, exec, &id, query+" RETURNING id", args...)
	return id, err
}

// timeParam is the placeholder for a timestamp bound in a SELECT list, where Postgres cannot infer its type.
func timeParam(exec core.DBExecutor) string {
	if exec.DriverName() == database.Postgres {
		return "CAST(? AS TIMESTAMPTZ)"
	}
	return "?"
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// containsPattern returns a LIKE pattern matching s anywhere.
func containsPattern(s string) string {
	return "%" + likeEscaper.Replace(s) + "%"
}

// likeOp is the case-insensitive LIKE operator of the driver.
// SQLite LIKE folds ASCII only, so non-ASCII terms match exactly there.
func likeOp(exec core.DBExecutor) string {
	if exec.DriverName() == database.Postgres {
		return "ILIKE"
	}
	return "LIKE"
}

type whereClause struct {
	conds []string
	args  []interface{}
}

func (w *whereClause) add(cond string, args ...interface{}) {
	w.conds = append(w.conds, cond)
	w.args = append(w.args, args...)
}

func (w *whereClause) String() string {
	if len(w.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.conds, " AND ")
}
