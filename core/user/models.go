package user

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"

	"github.com/invasionlatina/backend/core"
)

// Roles
const (
	RoleUser  = "user"
	RoleStaff = "staff" // door staff, scans loyalty QR codes
	RoleDJ    = "dj"
	RoleAdmin = "admin"
)

var (
	AllRoles = []string{RoleUser, RoleStaff, RoleDJ, RoleAdmin}

	Roles = []Role{
		{Name: "Client", Value: RoleUser},
		{Name: "Staff", Value: RoleStaff},
		{Name: "DJ", Value: RoleDJ},
		{Name: "Admin", Value: RoleAdmin},
	}
)

type Role struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type User struct {
	ID            string     `json:"id"`
	Name          string     `json:"name"`
	Email         string     `json:"email"`
	Phone         string     `json:"phone"`
	Role          string     `json:"role"`
	LoyaltyPoints int        `json:"loyalty_points"`
	PushToken     string     `json:"-"`
	IsActive      bool       `json:"is_active"`
	PasswordHash  []byte     `json:"-"`
	CreatedAt     time.Time  `json:"created_at"` // UTC
	UpdatedAt     time.Time  `json:"updated_at"` // UTC
	LastLogin     *time.Time `json:"last_login"` // UTC
}

func (u *User) SetPassword(pwd string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = hash
	return nil
}

func (u *User) CheckPassword(pwd string) error {
	return bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(pwd))
}

func (u *User) IsAdmin() bool { return u.Role == RoleAdmin }

// IsPrivileged reports whether the user runs the song board (admin or DJ).
func (u *User) IsPrivileged() bool { return u.Role == RoleAdmin || u.Role == RoleDJ }

// CanScan reports whether the user may scan loyalty QR codes at the door.
func (u *User) CanScan() bool { return u.Role == RoleAdmin || u.Role == RoleStaff }

// NewUser contains information needed to register a new User.
type NewUser struct {
	Name            string `json:"name" validate:"required"`
	Email           string `json:"email" validate:"required,email"`
	Phone           string `json:"phone" validate:"omitempty,max=32"`
	Password        string `json:"password" validate:"required"`
	PasswordConfirm string `json:"password_confirm" validate:"required,eqfield=Password"`
}

func (nu *NewUser) Validate(ctx context.Context, validate *validator.Validate, svc *Service) error {
	nu.Name = core.CleanString(nu.Name)
	nu.Email = core.CleanString(nu.Email, true /* lower */)
	nu.Phone = core.CleanString(nu.Phone)

	if err := validate.Struct(nu); err != nil {
		return err
	}
	return svc.checkUniqueness(ctx, nu.Email)
}

// UpdateRole is the payload used by admins to change a user's role.
type UpdateRole struct {
	Role string `json:"role" validate:"required,role"`
}

func (ur *UpdateRole) Validate(validate *validator.Validate) error {
	ur.Role = core.CleanString(ur.Role, true /* lower */)
	return validate.Struct(ur)
}

type UpdatePushToken struct {
	PushToken string `json:"push_token" validate:"required"`
}

func (upt *UpdatePushToken) Validate(validate *validator.Validate) error {
	upt.PushToken = core.CleanString(upt.PushToken)
	return validate.Struct(upt)
}

type QueryFilter struct {
	Search   string   `query:"search"`
	Roles    []string `query:"role"`
	IsActive *bool    `query:"is_active"`
}

func (qf *QueryFilter) IsEmpty() bool {
	return qf.Search == "" && qf.Roles == nil && qf.IsActive == nil
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
}
