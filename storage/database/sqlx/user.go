package sqlxrepos

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/studentportal/core"
	"github.com/trezcool/studentportal/core/user"
	"github.com/trezcool/studentportal/storage/database"
)

const userColumns = "id, name, email, password_hash, role, department, year, last_login, created_at"

type userRow struct {
	ID           int64     `db:"id"`
	Name         string    `db:"name"`
	Email        string    `db:"email"`
	PasswordHash string    `db:"password_hash"`
	Role         string    `db:"role"`
	Department   string    `db:"department"`
	Year         int       `db:"year"`
	LastLogin    null.Time `db:"last_login"`
	CreatedAt    time.Time `db:"created_at"`
}

func (r userRow) unrow() user.User {
	return user.User{
		ID:           r.ID,
		Name:         r.Name,
		Email:        r.Email,
		PasswordHash: []byte(r.PasswordHash),
		Role:         user.Role(r.Role),
		Department:   r.Department,
		Year:         r.Year,
		LastLogin:    r.LastLogin.Time.UTC(),
		CreatedAt:    r.CreatedAt.UTC(),
	}
}

type userRepository struct {
	repo
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(exec core.DBExecutor) *userRepository {
	return &userRepository{repo{exec: exec}}
}

func (r *userRepository) CreateUser(ctx context.Context, usr user.User, exec ...core.DBExecutor) (user.User, error) {
	if !usr.Role.Valid() {
		return user.User{}, errors.Errorf("invalid role %q", usr.Role)
	}
	id, err := insertReturningID(ctx, r.getExec(exec),
		"INSERT INTO users (name, email, password_hash, role, department, year, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)",
		usr.Name, usr.Email, string(usr.PasswordHash), string(usr.Role), usr.Department, usr.Year, usr.CreatedAt.UTC(),
	)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return user.User{}, user.ErrDuplicateEmail
		}
		return user.User{}, errors.Wrap(err, "inserting user")
	}
	usr.ID = id
	return usr, nil
}

func (r *userRepository) GetUserByID(ctx context.Context, id int64, exec ...core.DBExecutor) (user.User, error) {
	var row userRow
	if err := get(ctx, r.getExec(exec), &row, "SELECT "+userColumns+" FROM users WHERE id = ?", id); err != nil {
		return user.User{}, trapNoRowsErr(err, user.ErrNotFound, "finding user by ID")
	}
	return row.unrow(), nil
}

func (r *userRepository) GetUserByEmail(ctx context.Context, email string, exec ...core.DBExecutor) (user.User, error) {
	var row userRow
	if err := get(ctx, r.getExec(exec), &row, "SELECT "+userColumns+" FROM users WHERE email = ?", email); err != nil {
		return user.User{}, trapNoRowsErr(err, user.ErrNotFound, "finding user by email")
	}
	return row.unrow(), nil
}

func (r *userRepository) QueryUsers(ctx context.Context, role user.Role, exec ...core.DBExecutor) ([]user.User, error) {
	var rows []userRow
	q := "SELECT " + userColumns + " FROM users WHERE role = ? ORDER BY created_at DESC, id DESC"
	if err := sel(ctx, r.getExec(exec), &rows, q, string(role)); err != nil {
		return nil, errors.Wrap(err, "querying users")
	}
	users := make([]user.User, 0, len(rows))
	for _, row := range rows {
		users = append(users, row.unrow())
	}
	return users, nil
}

func (r *userRepository) CountUsers(ctx context.Context, role user.Role, exec ...core.DBExecutor) (int, error) {
	var n int
	if err := get(ctx, r.getExec(exec), &n, "SELECT COUNT(*) FROM users WHERE role = ?", string(role)); err != nil {
		return 0, errors.Wrap(err, "counting users")
	}
	return n, nil
}

func (r *userRepository) UpdateProfile(ctx context.Context, usr user.User, exec ...core.DBExecutor) (user.User, error) {
	exe := r.getExec(exec)
	err := execAffecting(ctx, exe, user.ErrNotFound, "updating user profile",
		"UPDATE users SET name = ?, department = ?, year = ? WHERE id = ?",
		usr.Name, usr.Department, usr.Year, usr.ID,
	)
	if err != nil {
		return user.User{}, err
	}
	return r.GetUserByID(ctx, usr.ID, exe)
}

func (r *userRepository) SetPasswordHash(ctx context.Context, id int64, hash []byte, exec ...core.DBExecutor) error {
	return execAffecting(ctx, r.getExec(exec), user.ErrNotFound, "setting password hash",
		"UPDATE users SET password_hash = ? WHERE id = ?", string(hash), id)
}

func (r *userRepository) SetLastLogin(ctx context.Context, id int64, at time.Time, exec ...core.DBExecutor) error {
	return execAffecting(ctx, r.getExec(exec), user.ErrNotFound, "setting last login",
		"UPDATE users SET last_login = ? WHERE id = ?", at.UTC(), id)
}
