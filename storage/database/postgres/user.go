package pgrepos

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/invasionlatina/backend/core"
	"github.com/invasionlatina/backend/core/user"
)

const userColumns = `id, name, email, phone, role, loyalty_points, push_token, is_active, password_hash,
	created_at, updated_at, last_login`

var userOrderings = map[string]string{
	"name":           "name",
	"email":          "email",
	"role":           "role",
	"loyalty_points": "loyalty_points",
	"created_at":     "created_at",
	"last_login":     "last_login",
}

type userRow struct {
	ID            string      `db:"id"`
	Name          string      `db:"name"`
	Email         string      `db:"email"`
	Phone         string      `db:"phone"`
	Role          string      `db:"role"`
	LoyaltyPoints int         `db:"loyalty_points"`
	PushToken     null.String `db:"push_token"`
	IsActive      bool        `db:"is_active"`
	PasswordHash  []byte      `db:"password_hash"`
	CreatedAt     time.Time   `db:"created_at"`
	UpdatedAt     time.Time   `db:"updated_at"`
	LastLogin     null.Time   `db:"last_login"`
}

func (r userRow) toUser() user.User {
	return user.User{
		ID:            r.ID,
		Name:          r.Name,
		Email:         r.Email,
		Phone:         r.Phone,
		Role:          r.Role,
		LoyaltyPoints: r.LoyaltyPoints,
		PushToken:     r.PushToken.String,
		IsActive:      r.IsActive,
		PasswordHash:  r.PasswordHash,
		CreatedAt:     r.CreatedAt.UTC(),
		UpdatedAt:     r.UpdatedAt.UTC(),
		LastLogin:     r.LastLogin.Ptr(),
	}
}

type userRepository struct {
	db core.DBExecutor
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db core.DBExecutor) *userRepository {
	return &userRepository{db: db}
}

func (repo userRepository) CheckEmailUniqueness(ctx context.Context, email string, excludedIDs ...string) error {
	const q = `SELECT EXISTS (SELECT 1 FROM users WHERE email = $1 AND NOT (id::text = ANY($2)))`
	var found bool
	if err := repo.db.GetContext(ctx, &found, q, email, stringArray(excludedIDs)); err != nil {
		return errors.Wrap(err, "checking email uniqueness")
	}
	if found {
		return user.ErrEmailExists
	}
	return nil
}

func (repo userRepository) CreateUser(ctx context.Context, usr user.User) (user.User, error) {
	q := `INSERT INTO users (` + userColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING ` + userColumns
	var row userRow
	err := repo.db.GetContext(ctx, &row, q,
		usr.ID, usr.Name, usr.Email, usr.Phone, usr.Role, usr.LoyaltyPoints,
		null.NewString(usr.PushToken, usr.PushToken != ""), usr.IsActive, usr.PasswordHash,
		usr.CreatedAt.UTC(), usr.UpdatedAt.UTC(), null.TimeFromPtr(usr.LastLogin),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return user.User{}, user.ErrEmailExists
		}
		return user.User{}, errors.Wrap(err, "inserting user")
	}
	return row.toUser(), nil
}

func (repo userRepository) GetUserByID(ctx context.Context, id string) (user.User, error) {
	if _, err := uuid.Parse(id); err != nil {
		return user.User{}, user.ErrNotFound
	}
	var row userRow
	if err := repo.db.GetContext(ctx, &row, `SELECT `+userColumns+` FROM users WHERE id = $1`, id); err != nil {
		return user.User{}, trapNoRowsErr(err, user.ErrNotFound, "finding user by ID")
	}
	return row.toUser(), nil
}

func (repo userRepository) GetUserByEmail(ctx context.Context, email string) (user.User, error) {
	var row userRow
	if err := repo.db.GetContext(ctx, &row, `SELECT `+userColumns+` FROM users WHERE email = $1`, email); err != nil {
		return user.User{}, trapNoRowsErr(err, user.ErrNotFound, "finding user by email")
	}
	return row.toUser(), nil
}

func (repo userRepository) QueryUsers(ctx context.Context, filter user.QueryFilter, orderings ...core.DBOrdering) ([]user.User, error) {
	var where []string
	var args []interface{}
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.Search != "" {
		p := arg("%" + filter.Search + "%")
		where = append(where, fmt.Sprintf("(name ILIKE %s OR email ILIKE %s OR phone ILIKE %s)", p, p, p))
	}
	if len(filter.Roles) > 0 {
		where = append(where, "role = ANY("+arg(stringArray(filter.Roles))+")")
	}
	if filter.IsActive != nil {
		where = append(where, "is_active = "+arg(*filter.IsActive))
	}

	q := `SELECT ` + userColumns + ` FROM users`
	if len(where) > 0 {
		q += ` WHERE ` + strings.Join(where, " AND ")
	}
	q += ` ORDER BY ` + core.OrderByClause(orderings, userOrderings, "created_at DESC")

	var rows []userRow
	if err := repo.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "querying users")
	}
	users := make([]user.User, 0, len(rows))
	for _, r := range rows {
		users = append(users, r.toUser())
	}
	return users, nil
}

// UpdateUser never writes loyalty_points: the balance only moves through the loyalty repository.
func (repo userRepository) UpdateUser(ctx context.Context, usr user.User) (user.User, error) {
	q := `UPDATE users SET name = $2, email = $3, phone = $4, role = $5, push_token = $6, is_active = $7,
			password_hash = $8, updated_at = $9, last_login = $10
		WHERE id = $1
		RETURNING ` + userColumns
	var row userRow
	err := repo.db.GetContext(ctx, &row, q,
		usr.ID, usr.Name, usr.Email, usr.Phone, usr.Role,
		null.NewString(usr.PushToken, usr.PushToken != ""), usr.IsActive, usr.PasswordHash,
		usr.UpdatedAt.UTC(), null.TimeFromPtr(usr.LastLogin),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return user.User{}, user.ErrEmailExists
		}
		return user.User{}, trapNoRowsErr(err, user.ErrNotFound, "updating user")
	}
	return row.toUser(), nil
}

func (repo userRepository) QueryPushTokens(ctx context.Context, roles ...string) ([]string, error) {
	const q = `SELECT push_token FROM users
		WHERE is_active AND push_token IS NOT NULL AND push_token <> '' AND role = ANY($1)`
	var tokens []string
	if err := repo.db.SelectContext(ctx, &tokens, q, stringArray(roles)); err != nil {
		return nil, errors.Wrap(err, "querying push tokens")
	}
	return tokens, nil
}
