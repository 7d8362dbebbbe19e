package user

import (
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/trezcool/studentportal/core"
)

// Role is closed: a user is either a student or an admin.
type Role string

const (
	RoleStudent Role = "student"
	RoleAdmin   Role = "admin"
)

func (r Role) Valid() bool {
	switch r {
	case RoleStudent, RoleAdmin:
		return true
	}
	return false
}

func (r Role) String() string { return string(r) }

func ParseRole(s string) (Role, error) {
	r := Role(core.CleanString(s, true /* lower */))
	if !r.Valid() {
		return "", fmt.Errorf("invalid role %q", s)
	}
	return r, nil
}

type User struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash []byte    `json:"-"`
	Role         Role      `json:"role"`
	Department   string    `json:"department"`
	Year         int       `json:"year"`
	CreatedAt    time.Time `json:"created_at"` // UTC
	LastLogin    time.Time `json:"last_login"` // UTC; zero if never logged in
}

func (u *User) SetPassword(pwd string, cost int) error {
	hash, err := HashPassword(pwd, cost)
	if err != nil {
		return err
	}
	u.PasswordHash = hash
	return nil
}

func (u *User) CheckPassword(pwd string) bool {
	return VerifyPassword(pwd, u.PasswordHash)
}

func (u *User) IsAdmin() bool { return u.Role == RoleAdmin }

func (u *User) Principal() Principal {
	return Principal{UserID: u.ID, Name: u.Name, Role: u.Role}
}

// Principal is the authenticated identity attached to a request.
type Principal struct {
	UserID int64  `json:"user_id"`
	Name   string `json:"name"`
	Role   Role   `json:"role"`
}

func (p Principal) IsAdmin() bool {
	switch p.Role {
	case RoleAdmin:
		return true
	case RoleStudent:
		return false
	}
	return false
}

// CanActOn reports whether p may act on a resource owned by ownerID.
func (p Principal) CanActOn(ownerID int64) bool {
	switch p.Role {
	case RoleAdmin:
		return true
	case RoleStudent:
		return p.UserID == ownerID
	}
	return false
}

// NewUser contains information needed to register a student.
type NewUser struct {
	Name            string `json:"name" form:"name" validate:"required"`
	Email           string `json:"email" form:"email" validate:"required,email"`
	Password        string `json:"password" form:"password" validate:"required"`
	PasswordConfirm string `json:"confirm_password" form:"confirm_password" validate:"required,eqfield=Password"`
	Department      string `json:"department" form:"department" validate:"required"`
	Year            int    `json:"year" form:"year" validate:"required,min=1"`
}

func (nu *NewUser) Clean() {
	nu.Name = core.CleanString(nu.Name)
	nu.Email = core.CleanString(nu.Email, true /* lower */)
	nu.Department = core.CleanString(nu.Department)
}

// UpdateProfile defines what a user may change on their own profile.
type UpdateProfile struct {
	Name       string `json:"name" form:"name" validate:"required"`
	Department string `json:"department" form:"department" validate:"required"`
	Year       int    `json:"year" form:"year" validate:"min=0"`
}

func (up *UpdateProfile) Clean() {
	up.Name = core.CleanString(up.Name)
	up.Department = core.CleanString(up.Department)
}

type ChangePassword struct {
	CurrentPassword string `json:"current_password" form:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" form:"new_password" validate:"required"`
	PasswordConfirm string `json:"confirm_password" form:"confirm_password" validate:"required,eqfield=NewPassword"`
}

// HashPassword returns the bcrypt hash of pwd at the given work factor.
func HashPassword(pwd string, cost int) ([]byte, error) {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return bcrypt.GenerateFromPassword([]byte(pwd), cost)
}

// VerifyPassword compares pwd against hash in constant time.
func VerifyPassword(pwd string, hash []byte) bool {
	return bcrypt.CompareHashAndPassword(hash, []byte(pwd)) == nil
}
