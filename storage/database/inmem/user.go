package inmemdb

import (
	"context"
	"sort"
	"strings"

	"github.com/invasionlatina/backend/core"
	"github.com/invasionlatina/backend/core/user"
)

type userRepository struct {
	db *DB
}

var _ user.Repository = (*userRepository)(nil)

func NewUserRepository(db *DB) *userRepository {
	return &userRepository{db: db}
}

func (repo *userRepository) CheckEmailUniqueness(_ context.Context, email string, excludedIDs ...string) error {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	for _, usr := range repo.db.users {
		if usr.Email == email && !core.ContainsString(excludedIDs, usr.ID) {
			return user.ErrEmailExists
		}
	}
	return nil
}

func (repo *userRepository) CreateUser(_ context.Context, usr user.User) (user.User, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	for _, u := range repo.db.users {
		if u.Email == usr.Email {
			return user.User{}, user.ErrEmailExists
		}
	}
	repo.db.users[usr.ID] = &usr
	return usr, nil
}

func (repo *userRepository) GetUserByID(_ context.Context, id string) (user.User, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if usr, ok := repo.db.users[id]; ok {
		return *usr, nil
	}
	return user.User{}, user.ErrNotFound
}

func (repo *userRepository) GetUserByEmail(_ context.Context, email string) (user.User, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	for _, usr := range repo.db.users {
		if usr.Email == email {
			return *usr, nil
		}
	}
	return user.User{}, user.ErrNotFound
}

func (repo *userRepository) QueryUsers(_ context.Context, filter user.QueryFilter, orderings ...core.DBOrdering) ([]user.User, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	search := strings.ToLower(filter.Search)
	users := make([]user.User, 0, len(repo.db.users))
	for _, usr := range repo.db.users {
		if search != "" &&
			!strings.Contains(strings.ToLower(usr.Name), search) &&
			!strings.Contains(strings.ToLower(usr.Email), search) &&
			!strings.Contains(strings.ToLower(usr.Phone), search) {
			continue
		}
		if len(filter.Roles) > 0 && !core.ContainsString(filter.Roles, usr.Role) {
			continue
		}
		if filter.IsActive != nil && usr.IsActive != *filter.IsActive {
			continue
		}
		users = append(users, *usr)
	}

	sort.SliceStable(users, func(i, j int) bool { return users[i].CreatedAt.After(users[j].CreatedAt) })
	for k := len(orderings) - 1; k >= 0; k-- {
		ord := orderings[k]
		less := userLess(ord.Field)
		if less == nil {
			continue
		}
		sort.SliceStable(users, func(i, j int) bool {
			if ord.Ascending {
				return less(users[i], users[j])
			}
			return less(users[j], users[i])
		})
	}
	return users, nil
}

func userLess(field string) func(a, b user.User) bool {
	switch field {
	case "name":
		return func(a, b user.User) bool { return a.Name < b.Name }
	case "email":
		return func(a, b user.User) bool { return a.Email < b.Email }
	case "role":
		return func(a, b user.User) bool { return a.Role < b.Role }
	case "loyalty_points":
		return func(a, b user.User) bool { return a.LoyaltyPoints < b.LoyaltyPoints }
	case "created_at":
		return func(a, b user.User) bool { return a.CreatedAt.Before(b.CreatedAt) }
	}
	return nil
}

// UpdateUser keeps the stored points balance, only the loyalty repository moves it.
func (repo *userRepository) UpdateUser(_ context.Context, usr user.User) (user.User, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	orig, ok := repo.db.users[usr.ID]
	if !ok {
		return user.User{}, user.ErrNotFound
	}
	for _, u := range repo.db.users {
		if u.ID != usr.ID && u.Email == usr.Email {
			return user.User{}, user.ErrEmailExists
		}
	}
	usr.LoyaltyPoints = orig.LoyaltyPoints
	usr.CreatedAt = orig.CreatedAt
	repo.db.users[usr.ID] = &usr
	return usr, nil
}

func (repo *userRepository) QueryPushTokens(_ context.Context, roles ...string) ([]string, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	var tokens []string
	for _, usr := range repo.db.users {
		if usr.IsActive && usr.PushToken != "" && core.ContainsString(roles, usr.Role) {
			tokens = append(tokens, usr.PushToken)
		}
	}
	sort.Strings(tokens)
	return tokens, nil
}
