package user_test

import (
	"context"
	"io"
	"log"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/quizmaster/core"
	"github.com/trezcool/quizmaster/core/user"
	logsvc "github.com/trezcool/quizmaster/services/logger"
	"github.com/trezcool/quizmaster/tests"
)

func setup(t *testing.T) (*user.Service, *testutil.Store) {
	store := testutil.NewStore(t)
	return user.NewService(store.Users), store
}

func newValidate() *validator.Validate {
	conf := core.NewConfig()
	logger := logsvc.NewRollbarLogger(log.New(io.Discard, "", 0), conf)
	logger.Enable(false)

	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	user.LoadCommonPasswords(logger)
	return validate
}

func TestService_Register(t *testing.T) {
	now := time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)
	user.NowFunc = func() time.Time { return now }
	defer func() { user.NowFunc = time.Now }()

	svc, _ := setup(t)
	ctx := context.Background()

	nu := user.NewUser{
		Email:         "jane@test.cd",
		Password:      "Sup3r-S3cret!",
		FullName:      "Jane Doe",
		Qualification: "B.Sc",
		DOB:           "2000-01-02",
		Roles:         []string{user.RoleAdmin}, // ignored
	}
	usr, err := svc.Register(ctx, nu)
	require.NoError(t, err)
	assert.NotZero(t, usr.ID)
	assert.Equal(t, []string{user.RoleStudent}, usr.Roles)
	assert.True(t, usr.IsActive)
	assert.Equal(t, now, usr.CreatedAt)
	assert.Nil(t, usr.LastLogin)
	assert.NoError(t, usr.CheckPassword("Sup3r-S3cret!"))

	nu.Email = "JANE@test.cd"
	_, err = svc.Register(ctx, nu)
	assert.Equal(t, user.ErrEmailExists, err)
}

func TestService_Authenticate(t *testing.T) {
	now := time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)
	user.NowFunc = func() time.Time { return now }
	defer func() { user.NowFunc = time.Now }()

	svc, store := setup(t)
	ctx := context.Background()

	testutil.CreateUser(t, store.Users, "Jane Doe", "jane@test.cd", "Sup3r-S3cret!", []string{user.RoleStudent}, true)
	testutil.CreateUser(t, store.Users, "John Doe", "john@test.cd", "Sup3r-S3cret!", []string{user.RoleStudent}, false)

	tests := []struct {
		name    string
		email   string
		pwd     string
		wantErr error
	}{
		{name: "unknown email", email: "lol@test.cd", pwd: "Sup3r-S3cret!", wantErr: user.ErrInvalidCredentials},
		{name: "wrong password", email: "jane@test.cd", pwd: "lol", wantErr: user.ErrInvalidCredentials},
		{name: "disabled", email: "john@test.cd", pwd: "Sup3r-S3cret!", wantErr: user.ErrAccountDisabled},
		{name: "disabled, wrong password", email: "john@test.cd", pwd: "lol", wantErr: user.ErrInvalidCredentials},
		{name: "ok (case & spaces)", email: " JANE@test.cd ", pwd: "Sup3r-S3cret!"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			usr, err := svc.Authenticate(ctx, tt.email, tt.pwd)
			if err != tt.wantErr {
				t.Fatalf("Authenticate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil {
				require.NotNil(t, usr.LastLogin)
				assert.Equal(t, now, *usr.LastLogin)
			}
		})
	}

	jane, err := svc.GetByEmail(ctx, "jane@test.cd")
	require.NoError(t, err)
	require.NotNil(t, jane.LastLogin)
	assert.Equal(t, now, *jane.LastLogin)
}

func TestService_adminActions(t *testing.T) {
	svc, store := setup(t)
	ctx := context.Background()

	admin := testutil.CreateUser(t, store.Users, "Admin", "admin@test.cd", "", user.AllRoles, true)
	jane := testutil.CreateUser(t, store.Users, "Jane Doe", "jane@test.cd", "", []string{user.RoleStudent}, true)
	john := testutil.CreateUser(t, store.Users, "John Doe", "john@test.cd", "", []string{user.RoleStudent}, true)

	subj := testutil.CreateSubject(t, store.Catalog, "Physics")
	chap := testutil.CreateChapter(t, store.Catalog, subj.ID, "Optics")
	quiz := testutil.CreateQuiz(t, store.Catalog, chap.ID, time.Now().Add(time.Hour), nil)
	testutil.CreateCompletedAttempt(t, store.Attempts, john.ID, quiz.ID, 1, 1, 1, time.Now())

	principal := admin.Principal()

	t.Run("toggle", func(t *testing.T) {
		_, err := svc.ToggleActive(ctx, principal, 999)
		assert.Equal(t, user.ErrNotFound, err)
		_, err = svc.ToggleActive(ctx, principal, admin.ID)
		assert.Equal(t, user.ErrSelfToggle, err)

		usr, err := svc.ToggleActive(ctx, principal, jane.ID)
		require.NoError(t, err)
		assert.False(t, usr.IsActive)
		usr, err = svc.ToggleActive(ctx, principal, jane.ID)
		require.NoError(t, err)
		assert.True(t, usr.IsActive)
	})

	t.Run("delete", func(t *testing.T) {
		assert.Equal(t, user.ErrNotFound, svc.Delete(ctx, principal, 999))
		assert.Equal(t, user.ErrSelfDelete, svc.Delete(ctx, principal, admin.ID))
		assert.Equal(t, user.ErrInUse, svc.Delete(ctx, principal, john.ID))
		require.NoError(t, svc.Delete(ctx, principal, jane.ID))
		_, err := svc.GetByID(ctx, jane.ID)
		assert.Equal(t, user.ErrNotFound, err)
	})
}

func TestService_Query(t *testing.T) {
	svc, store := setup(t)
	ctx := context.Background()

	admin := testutil.CreateUser(t, store.Users, "Admin", "admin@test.cd", "", []string{user.RoleAdmin}, true)
	jane := testutil.CreateUser(t, store.Users, "Jane Doe", "jane@test.cd", "", []string{user.RoleStudent}, true)
	john := testutil.CreateUser(t, store.Users, "John Doe", "john@test.cd", "", []string{user.RoleStudent}, false)

	active, inactive := true, false
	tests := []struct {
		name   string
		filter user.QueryFilter
		want   []int
	}{
		{name: "all", want: []int{admin.ID, jane.ID, john.ID}},
		{name: "students", filter: user.QueryFilter{Roles: []string{user.RoleStudent}}, want: []int{jane.ID, john.ID}},
		{name: "any role", filter: user.QueryFilter{Roles: user.AllRoles}, want: []int{admin.ID, jane.ID, john.ID}},
		{name: "active", filter: user.QueryFilter{IsActive: &active}, want: []int{admin.ID, jane.ID}},
		{name: "inactive students", filter: user.QueryFilter{Roles: []string{user.RoleStudent}, IsActive: &inactive}, want: []int{john.ID}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			users, err := svc.Query(ctx, tt.filter)
			require.NoError(t, err)
			ids := make([]int, 0, len(users))
			for _, usr := range users {
				ids = append(ids, usr.ID)
			}
			assert.Equal(t, tt.want, ids)
		})
	}

	students, err := svc.ActiveStudents(ctx)
	require.NoError(t, err)
	require.Len(t, students, 1)
	assert.Equal(t, jane.ID, students[0].ID)
}

func TestService_SetPassword(t *testing.T) {
	svc, store := setup(t)
	ctx := context.Background()
	usr := testutil.CreateUser(t, store.Users, "Jane Doe", "jane@test.cd", "old-pwd", nil, true)

	assert.Equal(t, user.ErrNotFound, svc.SetPassword(ctx, "lol@test.cd", "N3w-S3cret!"))
	require.NoError(t, svc.SetPassword(ctx, " Jane@Test.cd", "N3w-S3cret!"))

	usr, err := svc.GetByID(ctx, usr.ID)
	require.NoError(t, err)
	assert.NoError(t, usr.CheckPassword("N3w-S3cret!"))
	assert.Error(t, usr.CheckPassword("old-pwd"))
}

func TestNewUser_Validate(t *testing.T) {
	validate := newValidate()
	valid := func() user.NewUser {
		return user.NewUser{
			Email:         " Jane@Test.cd ",
			Password:      "Sup3r-S3cret!",
			FullName:      " Jane Doe ",
			Qualification: "B.Sc",
			DOB:           "2000-01-02",
		}
	}

	tests := []struct {
		name    string
		edit    func(nu *user.NewUser)
		wantTag string // empty: valid
	}{
		{name: "valid", edit: func(nu *user.NewUser) {}},
		{name: "bad email", edit: func(nu *user.NewUser) { nu.Email = "jane" }, wantTag: "email"},
		{name: "blank name", edit: func(nu *user.NewUser) { nu.FullName = "   " }, wantTag: "required"},
		{name: "bad dob", edit: func(nu *user.NewUser) { nu.DOB = "02/01/2000" }, wantTag: "ymd"},
		{name: "bad role", edit: func(nu *user.NewUser) { nu.Roles = []string{"tutor"} }, wantTag: "oneof"},
		{name: "password: too short", edit: func(nu *user.NewUser) { nu.Password = "S3c!" }, wantTag: "pwdminlen"},
		{name: "password: whitespace", edit: func(nu *user.NewUser) { nu.Password = "Sup3r S3cret!" }, wantTag: "pwdnospace"},
		{name: "password: numeric", edit: func(nu *user.NewUser) { nu.Password = "0123456789" }, wantTag: "pwdnotallnum"},
		{name: "password: similar to name", edit: func(nu *user.NewUser) { nu.Password = "janedoe1" }, wantTag: "pwdtoosim"},
		{name: "password: common", edit: func(nu *user.NewUser) { nu.Password = "Sunshine" }, wantTag: "pwdnocommon"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			nu := valid()
			tt.edit(&nu)
			err := nu.Validate(validate)
			if tt.wantTag == "" {
				require.NoError(t, err)
				assert.Equal(t, "jane@test.cd", nu.Email)
				assert.Equal(t, "Jane Doe", nu.FullName)
				return
			}
			verrs, ok := err.(validator.ValidationErrors)
			require.True(t, ok, "error = %v, want validator.ValidationErrors", err)
			require.Len(t, verrs, 1)
			assert.Equal(t, tt.wantTag, verrs[0].Tag())
		})
	}
}
