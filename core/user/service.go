package user

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/quizmaster/core"
)

var (
	NowFunc = time.Now // mockable

	// errors
	ErrNotFound           = core.NewNotFoundError("user")
	ErrEmailExists        = core.NewConflictError("Email already registered", false)
	ErrInUse              = core.NewConflictError("Cannot delete user with existing scores", true)
	ErrInvalidCredentials = core.NewAuthError("Invalid email or password", false)
	ErrAccountDisabled    = core.NewAuthError("Your access is disabled", true)
	ErrSelfToggle         = core.NewStateError("Cannot modify your own access")
	ErrSelfDelete         = core.NewStateError("Cannot delete your own account")
)

type (
	Repository interface {
		// CheckEmailUniqueness returns ErrEmailExists if a user other than excludedIDs owns the email.
		CheckEmailUniqueness(ctx context.Context, email string, excludedIDs ...int) error
		CreateUser(ctx context.Context, usr User) (User, error)
		// QueryUsers returns the users matching the filter, ordered by id.
		QueryUsers(ctx context.Context, filter QueryFilter) ([]User, error)
		GetUser(ctx context.Context, filter GetFilter) (User, error)
		UpdateUser(ctx context.Context, usr User) (User, error)
		DeleteUsersByID(ctx context.Context, ids ...int) error
	}

	Service struct {
		repo Repository
	}
)

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Register creates a new active student account.
func (svc *Service) Register(ctx context.Context, nu NewUser) (User, error) {
	nu.Roles = []string{RoleStudent}
	return svc.Create(ctx, nu)
}

// Create creates a new active User with the roles set on nu.
func (svc *Service) Create(ctx context.Context, nu NewUser) (User, error) {
	if err := svc.repo.CheckEmailUniqueness(ctx, nu.Email); err != nil {
		return User{}, err
	}

	usr := User{
		Email:         nu.Email,
		FullName:      nu.FullName,
		Qualification: nu.Qualification,
		DOB:           nu.DOB,
		Roles:         nu.Roles,
		IsActive:      true,
		CreatedAt:     NowFunc().UTC(),
	}
	if usr.Roles == nil {
		usr.Roles = []string{}
	}
	if err := usr.SetPassword(nu.Password); err != nil {
		return User{}, errors.Wrap(err, "hashing password")
	}
	usr, err := svc.repo.CreateUser(ctx, usr)
	return usr, errors.Wrap(err, "creating user")
}

// Authenticate checks the credentials and records the login.
func (svc *Service) Authenticate(ctx context.Context, email, pwd string) (User, error) {
	usr, err := svc.repo.GetUser(ctx, GetFilter{Email: core.CleanString(email, true /* lower */)})
	if err != nil {
		if err == ErrNotFound {
			return User{}, ErrInvalidCredentials
		}
		return User{}, errors.Wrap(err, "finding user by email")
	}
	if err = usr.CheckPassword(pwd); err != nil {
		return User{}, ErrInvalidCredentials
	}
	if !usr.IsActive {
		return User{}, ErrAccountDisabled
	}

	now := NowFunc().UTC()
	usr.LastLogin = &now
	usr, err = svc.repo.UpdateUser(ctx, usr)
	return usr, errors.Wrap(err, "setting lastLogin")
}

func (svc *Service) GetByID(ctx context.Context, id int) (User, error) {
	return svc.repo.GetUser(ctx, GetFilter{ID: id})
}

func (svc *Service) GetByEmail(ctx context.Context, email string) (User, error) {
	return svc.repo.GetUser(ctx, GetFilter{Email: core.CleanString(email, true /* lower */)})
}

func (svc *Service) Query(ctx context.Context, filter QueryFilter) ([]User, error) {
	return svc.repo.QueryUsers(ctx, filter)
}

// ActiveStudents returns every active user holding the student role.
func (svc *Service) ActiveStudents(ctx context.Context) ([]User, error) {
	active := true
	return svc.repo.QueryUsers(ctx, QueryFilter{Roles: []string{RoleStudent}, IsActive: &active})
}

// ToggleActive flips the active flag of user id. A principal cannot toggle themselves.
func (svc *Service) ToggleActive(ctx context.Context, principal Principal, id int) (User, error) {
	usr, err := svc.GetByID(ctx, id)
	if err != nil {
		return User{}, err
	}
	if usr.ID == principal.ID {
		return User{}, ErrSelfToggle
	}
	usr.IsActive = !usr.IsActive
	usr, err = svc.repo.UpdateUser(ctx, usr)
	return usr, errors.Wrap(err, "updating user")
}

// Delete removes user id. A principal cannot delete themselves.
func (svc *Service) Delete(ctx context.Context, principal Principal, id int) error {
	usr, err := svc.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if usr.ID == principal.ID {
		return ErrSelfDelete
	}
	return svc.repo.DeleteUsersByID(ctx, usr.ID)
}

// SetPassword replaces the password of the user owning email.
func (svc *Service) SetPassword(ctx context.Context, email, pwd string) error {
	usr, err := svc.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	if err = usr.SetPassword(pwd); err != nil {
		return errors.Wrap(err, "hashing password")
	}
	_, err = svc.repo.UpdateUser(ctx, usr)
	return errors.Wrap(err, "updating user")
}
