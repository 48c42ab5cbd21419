package dummydb

import (
	"context"
	"strings"

	"github.com/trezcool/quizmaster/core/user"
)

type userRepository struct {
	db *DB
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db *DB) user.Repository {
	return &userRepository{db: db}
}

func emailTaken(t *tables, email string, excludedIDs ...int) bool {
	excluded := make(map[int]bool, len(excludedIDs))
	for _, id := range excludedIDs {
		excluded[id] = true
	}
	for _, usr := range t.users {
		if strings.EqualFold(usr.Email, email) && !excluded[usr.ID] {
			return true
		}
	}
	return false
}

func (repo *userRepository) CheckEmailUniqueness(_ context.Context, email string, excludedIDs ...int) (err error) {
	repo.db.read(func(t *tables) {
		if emailTaken(t, email, excludedIDs...) {
			err = user.ErrEmailExists
		}
	})
	return err
}

func (repo *userRepository) CreateUser(_ context.Context, usr user.User) (user.User, error) {
	err := repo.db.withinTx(false, func() error {
		return repo.db.write(func(t *tables) error {
			if emailTaken(t, usr.Email) {
				return user.ErrEmailExists
			}
			usr.ID = t.nextID("users")
			t.users[usr.ID] = copyUser(usr)
			return nil
		})
	})
	if err != nil {
		return user.User{}, err
	}
	return usr, nil
}

func (repo *userRepository) QueryUsers(_ context.Context, filter user.QueryFilter) ([]user.User, error) {
	users := make([]user.User, 0)
	repo.db.read(func(t *tables) {
		for _, usr := range t.users {
			if filter.Match(usr) {
				users = append(users, copyUser(usr))
			}
		}
	})
	user.SortByID(users)
	return users, nil
}

func (repo *userRepository) GetUser(_ context.Context, filter user.GetFilter) (usr user.User, err error) {
	err = user.ErrNotFound
	repo.db.read(func(t *tables) {
		if filter.ID != 0 {
			if u, ok := t.users[filter.ID]; ok && (filter.Email == "" || strings.EqualFold(u.Email, filter.Email)) {
				usr, err = copyUser(u), nil
			}
			return
		}
		if filter.Email == "" {
			return
		}
		for _, u := range t.users {
			if strings.EqualFold(u.Email, filter.Email) {
				usr, err = copyUser(u), nil
				return
			}
		}
	})
	return usr, err
}

func (repo *userRepository) UpdateUser(_ context.Context, usr user.User) (user.User, error) {
	err := repo.db.withinTx(false, func() error {
		return repo.db.write(func(t *tables) error {
			orig, ok := t.users[usr.ID]
			if !ok {
				return user.ErrNotFound
			}
			if emailTaken(t, usr.Email, usr.ID) {
				return user.ErrEmailExists
			}
			usr.CreatedAt = orig.CreatedAt
			t.users[usr.ID] = copyUser(usr)
			return nil
		})
	})
	if err != nil {
		return user.User{}, err
	}
	return usr, nil
}

func (repo *userRepository) DeleteUsersByID(_ context.Context, ids ...int) error {
	return repo.db.withinTx(false, func() error {
		return repo.db.write(func(t *tables) error {
			for _, id := range ids {
				for _, a := range t.attempts {
					if a.UserID == id {
						return user.ErrInUse
					}
				}
			}
			for _, id := range ids {
				delete(t.users, id)
			}
			return nil
		})
	})
}
