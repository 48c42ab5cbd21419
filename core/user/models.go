package user

import (
	"sort"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"

	"github.com/trezcool/quizmaster/core"
)

// Roles
const (
	RoleAdmin   = "admin"
	RoleStudent = "student"
)

var AllRoles = []string{RoleAdmin, RoleStudent}

type User struct {
	ID            int        `json:"id"`
	Email         string     `json:"email"`
	FullName      string     `json:"full_name"`
	Qualification string     `json:"qualification"`
	DOB           string     `json:"dob,omitempty"` // YYYY-MM-DD
	Roles         []string   `json:"roles"`
	IsActive      bool       `json:"active"`
	PasswordHash  []byte     `json:"-"`
	CreatedAt     time.Time  `json:"created_at"` // UTC
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

func (u User) HasRole(role string) bool {
	return hasRole(u.Roles, role)
}

func (u User) IsAdmin() bool   { return u.HasRole(RoleAdmin) }
func (u User) IsStudent() bool { return u.HasRole(RoleStudent) }

// Principal returns the authenticated identity of the User.
func (u User) Principal() Principal {
	return Principal{ID: u.ID, Email: u.Email, Roles: u.Roles}
}

func hasRole(roles []string, role string) bool {
	for _, r := range roles {
		if r == role {
			return true
		}
	}
	return false
}

// Principal is the authenticated user an operation runs on behalf of.
// It is resolved once per request and passed explicitly to the services.
type Principal struct {
	ID    int
	Email string
	Roles []string
}

func (p Principal) HasRole(role string) bool {
	return hasRole(p.Roles, role)
}

// Capability is an authorization predicate over a Principal.
type Capability func(p Principal) bool

var (
	CanManageCatalog Capability = func(p Principal) bool { return p.HasRole(RoleAdmin) }
	CanManageUsers   Capability = func(p Principal) bool { return p.HasRole(RoleAdmin) }
	// admins may preview and take quizzes too
	CanAttemptQuizzes Capability = func(p Principal) bool { return p.HasRole(RoleStudent) || p.HasRole(RoleAdmin) }
)

// NewUser contains information needed to register a new User.
type NewUser struct {
	Email         string   `json:"email" validate:"required,email"`
	Password      string   `json:"password" validate:"required"`
	FullName      string   `json:"full_name" validate:"required,notblank"`
	Qualification string   `json:"qualification" validate:"required"`
	DOB           string   `json:"dob" validate:"required,ymd"`
	Roles         []string `json:"-" validate:"omitempty,dive,oneof=admin student"`
}

func (nu *NewUser) Validate(validate *validator.Validate) error {
	nu.Email = core.CleanString(nu.Email, true /* lower */)
	nu.FullName = core.CleanString(nu.FullName)
	nu.Qualification = core.CleanString(nu.Qualification)
	nu.DOB = core.CleanString(nu.DOB)
	return validate.Struct(nu)
}

// Credentials are exchanged for an auth token.
type Credentials struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

func (c *Credentials) Validate(validate *validator.Validate) error {
	c.Email = core.CleanString(c.Email, true /* lower */)
	return validate.Struct(c)
}

type QueryFilter struct {
	Roles    []string `query:"role"`
	IsActive *bool    `query:"is_active"`
}

func (qf *QueryFilter) IsEmpty() bool {
	return qf.Roles == nil && qf.IsActive == nil
}

// Match reports whether usr satisfies all the set fields of the filter.
// Roles match if usr has any of them.
func (qf QueryFilter) Match(usr User) bool {
	if qf.IsActive != nil && usr.IsActive != *qf.IsActive {
		return false
	}
	if len(qf.Roles) > 0 {
		for _, role := range qf.Roles {
			if usr.HasRole(role) {
				return true
			}
		}
		return false
	}
	return true
}

type GetFilter struct {
	ID    int
	Email string
}

// SortByID sorts users in place, oldest first.
func SortByID(users []User) {
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
}
