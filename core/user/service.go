package user

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/studentportal/core"
)

var (
	// errors
	ErrNotFound       = core.NewNotFoundError("user")
	ErrDuplicateEmail = errors.New("Email already registered")
	errWrongPassword  = errors.New("Current password is incorrect")

	nowFunc = time.Now // mockable
)

type (
	Repository interface {
		CreateUser(ctx context.Context, usr User, exec ...core.DBExecutor) (User, error)
		GetUserByID(ctx context.Context, id int64, exec ...core.DBExecutor) (User, error)
		GetUserByEmail(ctx context.Context, email string, exec ...core.DBExecutor) (User, error)
		// QueryUsers returns users with the given role, newest first.
		QueryUsers(ctx context.Context, role Role, exec ...core.DBExecutor) ([]User, error)
		CountUsers(ctx context.Context, role Role, exec ...core.DBExecutor) (int, error)
		UpdateProfile(ctx context.Context, usr User, exec ...core.DBExecutor) (User, error)
		SetPasswordHash(ctx context.Context, id int64, hash []byte, exec ...core.DBExecutor) error
		SetLastLogin(ctx context.Context, id int64, at time.Time, exec ...core.DBExecutor) error
	}

	Service interface {
		Register(ctx context.Context, nu NewUser) (User, error)
		Authenticate(ctx context.Context, email, pwd string) (Principal, error)
		GetByID(ctx context.Context, id int64) (User, error)
		GetByEmail(ctx context.Context, email string) (User, error)
		GetStudent(ctx context.Context, id int64) (User, error)
		QueryStudents(ctx context.Context) ([]User, error)
		CountStudents(ctx context.Context) (int, error)
		UpdateProfile(ctx context.Context, p Principal, up UpdateProfile) (User, error)
		ChangePassword(ctx context.Context, p Principal, cp ChangePassword) error
		ResetPassword(ctx context.Context, email, pwd string) error
		EnsureAdmin(ctx context.Context, email, pwd, name string) (created bool, err error)
	}

	service struct {
		repo       Repository
		validate   *core.Validator
		bcryptCost int
		dummyHash  []byte // compared against for unknown emails so both failures cost one bcrypt round
	}
)

var _ Service = (*service)(nil)

func NewService(conf *core.Config, validate *core.Validator, repo Repository) Service {
	RegisterValidators(validate)
	dummyHash, _ := HashPassword("not-a-real-password", conf.Security.BcryptCost)
	return &service{
		repo:       repo,
		validate:   validate,
		bcryptCost: conf.Security.BcryptCost,
		dummyHash:  dummyHash,
	}
}

// Register creates a student account. The role is never taken from the caller.
func (svc *service) Register(ctx context.Context, nu NewUser) (User, error) {
	nu.Clean()
	if err := svc.validate.Struct(nu); err != nil {
		return User{}, err
	}

	if _, err := svc.repo.GetUserByEmail(ctx, nu.Email); err == nil {
		return User{}, duplicateEmailErr()
	} else if !errors.Is(err, ErrNotFound) {
		return User{}, errors.Wrap(err, "checking email uniqueness")
	}

	usr := User{
		Name:       nu.Name,
		Email:      nu.Email,
		Role:       RoleStudent,
		Department: nu.Department,
		Year:       nu.Year,
		CreatedAt:  nowFunc().UTC(),
	}
	if err := usr.SetPassword(nu.Password, svc.bcryptCost); err != nil {
		return User{}, errors.Wrap(err, "hashing password")
	}

	usr, err := svc.repo.CreateUser(ctx, usr)
	if err != nil {
		if errors.Is(err, ErrDuplicateEmail) {
			return User{}, duplicateEmailErr()
		}
		return User{}, errors.Wrap(err, "creating user")
	}
	return usr, nil
}

func duplicateEmailErr() error {
	return core.NewValidationError(ErrDuplicateEmail, core.FieldError{Field: "email", Error: ErrDuplicateEmail.Error()})
}

// Authenticate returns core.ErrInvalidCredentials both for unknown emails and wrong passwords.
func (svc *service) Authenticate(ctx context.Context, email, pwd string) (Principal, error) {
	usr, err := svc.repo.GetUserByEmail(ctx, core.CleanString(email, true /* lower */))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			VerifyPassword(pwd, svc.dummyHash)
			return Principal{}, core.ErrInvalidCredentials
		}
		return Principal{}, errors.Wrap(err, "finding user by email")
	}
	if !usr.CheckPassword(pwd) {
		return Principal{}, core.ErrInvalidCredentials
	}

	if err = svc.repo.SetLastLogin(ctx, usr.ID, nowFunc().UTC()); err != nil {
		return Principal{}, errors.Wrap(err, "setting lastLogin")
	}
	return usr.Principal(), nil
}

func (svc *service) GetByID(ctx context.Context, id int64) (User, error) {
	return svc.repo.GetUserByID(ctx, id)
}

func (svc *service) GetByEmail(ctx context.Context, email string) (User, error) {
	return svc.repo.GetUserByEmail(ctx, core.CleanString(email, true /* lower */))
}

// GetStudent returns ErrNotFound when id does not belong to a student.
func (svc *service) GetStudent(ctx context.Context, id int64) (User, error) {
	usr, err := svc.repo.GetUserByID(ctx, id)
	if err != nil {
		return User{}, err
	}
	if usr.Role != RoleStudent {
		return User{}, core.NewNotFoundError("student")
	}
	return usr, nil
}

func (svc *service) QueryStudents(ctx context.Context) ([]User, error) {
	return svc.repo.QueryUsers(ctx, RoleStudent)
}

func (svc *service) CountStudents(ctx context.Context) (int, error) {
	return svc.repo.CountUsers(ctx, RoleStudent)
}

func (svc *service) UpdateProfile(ctx context.Context, p Principal, up UpdateProfile) (User, error) {
	up.Clean()
	if err := svc.validate.Struct(up); err != nil {
		return User{}, err
	}
	usr := User{
		ID:         p.UserID,
		Name:       up.Name,
		Department: up.Department,
		Year:       up.Year,
	}
	return svc.repo.UpdateProfile(ctx, usr)
}

func (svc *service) ChangePassword(ctx context.Context, p Principal, cp ChangePassword) error {
	usr, err := svc.repo.GetUserByID(ctx, p.UserID)
	if err != nil {
		return errors.Wrap(err, "finding user by ID")
	}
	if cp.CurrentPassword == "" || !usr.CheckPassword(cp.CurrentPassword) {
		return core.NewValidationError(errWrongPassword, core.FieldError{Field: "current_password", Error: errWrongPassword.Error()})
	}
	if err = svc.validate.Struct(cp); err != nil {
		return err
	}
	return svc.setPassword(ctx, usr.ID, cp.NewPassword)
}

// ResetPassword sets a new password without knowing the current one. Operator use only.
func (svc *service) ResetPassword(ctx context.Context, email, pwd string) error {
	if ok, msg := CheckStrength(pwd); !ok {
		return core.NewValidationError(nil, core.FieldError{Field: "password", Error: msg})
	}
	usr, err := svc.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	return svc.setPassword(ctx, usr.ID, pwd)
}

func (svc *service) setPassword(ctx context.Context, id int64, pwd string) error {
	hash, err := HashPassword(pwd, svc.bcryptCost)
	if err != nil {
		return errors.Wrap(err, "hashing password")
	}
	return errors.Wrap(svc.repo.SetPasswordHash(ctx, id, hash), "setting password")
}

// EnsureAdmin creates the bootstrap admin unless a user with email already exists.
func (svc *service) EnsureAdmin(ctx context.Context, email, pwd, name string) (bool, error) {
	email = core.CleanString(email, true /* lower */)
	if _, err := svc.repo.GetUserByEmail(ctx, email); err == nil {
		return false, nil
	} else if !errors.Is(err, ErrNotFound) {
		return false, errors.Wrap(err, "finding admin by email")
	}

	usr := User{
		Name:       name,
		Email:      email,
		Role:       RoleAdmin,
		Department: "Administration",
		CreatedAt:  nowFunc().UTC(),
	}
	if err := usr.SetPassword(pwd, svc.bcryptCost); err != nil {
		return false, errors.Wrap(err, "hashing password")
	}
	if _, err := svc.repo.CreateUser(ctx, usr); err != nil {
		if errors.Is(err, ErrDuplicateEmail) {
			return false, nil
		}
		return false, errors.Wrap(err, "creating admin")
	}
	return true, nil
}
