package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/quizmaster/core"
	"github.com/trezcool/quizmaster/core/user"
)

const userColumns = `id, email, password_hash, full_name, qualification, dob, roles, is_active, created_at, last_login`

type userRow struct {
	ID            int            `db:"id"`
	Email         string         `db:"email"`
	PasswordHash  []byte         `db:"password_hash"`
	FullName      string         `db:"full_name"`
	Qualification string         `db:"qualification"`
	DOB           null.Time      `db:"dob"`
	Roles         pq.StringArray `db:"roles"`
	IsActive      bool           `db:"is_active"`
	CreatedAt     time.Time      `db:"created_at"`
	LastLogin     null.Time      `db:"last_login"`
}

func newUserRow(usr user.User) userRow {
	row := userRow{
		ID:            usr.ID,
		Email:         usr.Email,
		PasswordHash:  usr.PasswordHash,
		FullName:      usr.FullName,
		Qualification: usr.Qualification,
		Roles:         usr.Roles,
		IsActive:      usr.IsActive,
		CreatedAt:     usr.CreatedAt.UTC(),
		LastLogin:     null.TimeFromPtr(usr.LastLogin),
	}
	if dob, err := time.Parse(core.DateLayout, usr.DOB); err == nil {
		row.DOB = null.TimeFrom(dob)
	}
	if row.Roles == nil {
		row.Roles = pq.StringArray{}
	}
	return row
}

func (row userRow) toUser() user.User {
	usr := user.User{
		ID:            row.ID,
		Email:         row.Email,
		PasswordHash:  row.PasswordHash,
		FullName:      row.FullName,
		Qualification: row.Qualification,
		Roles:         []string(row.Roles),
		IsActive:      row.IsActive,
		CreatedAt:     row.CreatedAt.UTC(),
	}
	if row.DOB.Valid {
		usr.DOB = row.DOB.Time.Format(core.DateLayout)
	}
	if row.LastLogin.Valid {
		t := row.LastLogin.Time.UTC()
		usr.LastLogin = &t
	}
	return usr
}

type userRepository struct {
	store
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db *sqlx.DB) user.Repository {
	return &userRepository{store{db: db}}
}

func (repo *userRepository) CheckEmailUniqueness(ctx context.Context, email string, excludedIDs ...int) error {
	w := &where{}
	w.add("LOWER(email) = LOWER(?)", email)
	if len(excludedIDs) > 0 {
		w.add("NOT (id = ANY(?))", pq.Array(excludedIDs))
	}
	n, err := repo.count(ctx, "SELECT COUNT(*) FROM users"+w.String(), w.args...)
	if err != nil {
		return errors.Wrap(err, "counting users")
	}
	if n > 0 {
		return user.ErrEmailExists
	}
	return nil
}

func (repo *userRepository) CreateUser(ctx context.Context, usr user.User) (user.User, error) {
	row := newUserRow(usr)
	err := repo.get(
		ctx, &row,
		`INSERT INTO users (email, password_hash, full_name, qualification, dob, roles, is_active, created_at, last_login)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?) RETURNING `+userColumns,
		row.Email, row.PasswordHash, row.FullName, row.Qualification, row.DOB, row.Roles, row.IsActive, row.CreatedAt, row.LastLogin,
	)
	if err != nil {
		return user.User{}, translate(err, user.ErrEmailExists, nil)
	}
	return row.toUser(), nil
}

func (repo *userRepository) QueryUsers(ctx context.Context, filter user.QueryFilter) ([]user.User, error) {
	w := &where{}
	if len(filter.Roles) > 0 {
		w.add("roles && ?", pq.StringArray(filter.Roles))
	}
	if filter.IsActive != nil {
		w.add("is_active = ?", *filter.IsActive)
	}

	var rows []userRow
	if err := repo.selectAll(ctx, &rows, "SELECT "+userColumns+" FROM users"+w.String()+" ORDER BY id", w.args...); err != nil {
		return nil, err
	}
	users := make([]user.User, 0, len(rows))
	for _, row := range rows {
		users = append(users, row.toUser())
	}
	return users, nil
}

func (repo *userRepository) GetUser(ctx context.Context, filter user.GetFilter) (user.User, error) {
	w := &where{}
	if filter.ID != 0 {
		w.add("id = ?", filter.ID)
	}
	if filter.Email != "" {
		w.add("LOWER(email) = LOWER(?)", filter.Email)
	}
	if len(w.conds) == 0 {
		return user.User{}, user.ErrNotFound
	}

	var row userRow
	if err := repo.get(ctx, &row, "SELECT "+userColumns+" FROM users"+w.String(), w.args...); err != nil {
		if err == sql.ErrNoRows {
			return user.User{}, user.ErrNotFound
		}
		return user.User{}, err
	}
	return row.toUser(), nil
}

func (repo *userRepository) UpdateUser(ctx context.Context, usr user.User) (user.User, error) {
	row := newUserRow(usr)
	err := repo.get(
		ctx, &row,
		`UPDATE users SET email = ?, password_hash = ?, full_name = ?, qualification = ?, dob = ?, roles = ?,
		is_active = ?, last_login = ? WHERE id = ? RETURNING `+userColumns,
		row.Email, row.PasswordHash, row.FullName, row.Qualification, row.DOB, row.Roles, row.IsActive, row.LastLogin, row.ID,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return user.User{}, user.ErrNotFound
		}
		return user.User{}, translate(err, user.ErrEmailExists, nil)
	}
	return row.toUser(), nil
}

func (repo *userRepository) DeleteUsersByID(ctx context.Context, ids ...int) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := repo.execIn(ctx, "DELETE FROM users WHERE id IN (?)", ids)
	return translate(err, nil, user.ErrInUse)
}
