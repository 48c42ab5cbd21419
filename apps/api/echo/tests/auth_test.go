package tests

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	. "github.com/trezcool/quizmaster/apps/api/echo"
	"github.com/trezcool/quizmaster/core/user"
	"github.com/trezcool/quizmaster/tests"
)

func Test_authApi_login(t *testing.T) {
	app := setup(t)

	pwd := "Sup3r-S3cret!"
	student := testutil.CreateUser(t, app.store.Users, "Jane Doe", "jane@test.cd", pwd, []string{user.RoleStudent}, true)
	testutil.CreateUser(t, app.store.Users, "Naughty Dog", "ndog@test.cd", pwd, []string{user.RoleStudent}, false)

	body := func(email, pwd string) []byte {
		return marchallObj(t, user.Credentials{Email: email, Password: pwd})
	}

	tests := []httpTest{
		{
			name: "missing fields", body: []byte(`{}`),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, httpErr{Error: "Missing email or password"}),
		},
		{
			name: "missing password", body: body(student.Email, ""),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, httpErr{Error: "Missing email or password"}),
		},
		{
			name: "unknown email", body: body("nobody@test.cd", pwd),
			wantCode: http.StatusUnauthorized, wantData: marchallObj(t, httpErr{Error: "Invalid email or password"}),
		},
		{
			name: "wrong password", body: body(student.Email, "wrong-password"),
			wantCode: http.StatusUnauthorized, wantData: marchallObj(t, httpErr{Error: "Invalid email or password"}),
		},
		{
			name: "disabled account", body: body("ndog@test.cd", pwd),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "Your access is disabled"}),
		},
		{name: "success", body: body(student.Email, pwd), wantCode: http.StatusOK},
		{name: "success (case & spaces)", body: body("  JANE@test.cd ", pwd), wantCode: http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.method = http.MethodPost
			tt.path = "/api/auth/login"
			rec := app.do(tt)
			checkCodeAndData(t, tt, rec)

			if tt.wantCode == http.StatusOK {
				var resp LoginResponse
				require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
				assert.NotEmpty(t, resp.Token)
				assert.Equal(t, student.ID, resp.User.ID)
				assert.Equal(t, student.Email, resp.User.Email)
				assert.Equal(t, student.FullName, resp.User.FullName)
				assert.Equal(t, []string{user.RoleStudent}, resp.User.Roles)

				// the token is accepted
				req, rec := newAuthRequest(http.MethodGet, "/api/auth/me", resp.Token)
				app.ServeHTTP(rec, req)
				assert.Equal(t, http.StatusOK, rec.Code)
			}
		})
	}

	usr, err := app.store.Users.GetUser(context.Background(), user.GetFilter{ID: student.ID})
	require.NoError(t, err)
	assert.NotNil(t, usr.LastLogin)
}

func Test_authApi_register(t *testing.T) {
	app := setup(t)

	testutil.CreateUser(t, app.store.Users, "John Doe", "john@test.cd", "", []string{user.RoleStudent}, true)

	body := func(email, pwd, dob string) []byte {
		return marchallObj(t, user.NewUser{
			Email:         email,
			Password:      pwd,
			FullName:      "Jane Doe",
			Qualification: "M.Sc",
			DOB:           dob,
		})
	}
	required := "this field is required"

	tests := []httpTest{
		{
			name: "missing fields", body: []byte(`{}`), wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{
				"email":         required,
				"password":      required,
				"full_name":     required,
				"qualification": required,
				"dob":           required,
			}),
		},
		{
			name: "invalid dob", body: body("jane@test.cd", "Sup3r-S3cret!", "02/01/2000"), wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"dob": "dob must be in YYYY-MM-DD format"}),
		},
		{
			name: "numeric password", body: body("jane@test.cd", "1234567890", "2000-01-02"), wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"password": "password cannot be entirely numeric"}),
		},
		{
			name: "email already registered", body: body("JOHN@test.cd", "Sup3r-S3cret!", "2000-01-02"),
			wantCode: http.StatusConflict, wantData: marchallObj(t, httpErr{Error: "Email already registered"}),
		},
		{
			name: "success", body: body(" Jane@Test.cd", "Sup3r-S3cret!", "2000-01-02"), wantCode: http.StatusCreated,
			wantData: marchallObj(t, echoMap{
				"message": "Registration successful",
				"user":    echoMap{"email": "jane@test.cd", "full_name": "Jane Doe"},
			}),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.method = http.MethodPost
			tt.path = "/api/auth/register"
			checkCodeAndData(t, tt, app.do(tt))
		})
	}

	usr, err := app.store.Users.GetUser(context.Background(), user.GetFilter{Email: "jane@test.cd"})
	require.NoError(t, err)
	assert.True(t, usr.IsActive)
	assert.Equal(t, []string{user.RoleStudent}, usr.Roles)
}

func Test_authApi_me_logout(t *testing.T) {
	app := setup(t)

	student := testutil.CreateUser(t, app.store.Users, "Jane Doe", "jane@test.cd", "", []string{user.RoleStudent}, true)
	naughty := testutil.CreateUser(t, app.store.Users, "N Dog", "ndog@test.cd", "", []string{user.RoleStudent}, false)
	token := getToken(t, app.conf, student)

	profile := marchallObj(t, echoMap{"user": echoMap{
		"id":            student.ID,
		"email":         student.Email,
		"full_name":     student.FullName,
		"qualification": student.Qualification,
		"dob":           student.DOB,
		"roles":         student.Roles,
	}})

	tests := []httpTest{
		{name: "me: auth required", path: "/api/auth/me", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{
			name: "me: disabled account", path: "/api/auth/me", token: getToken(t, app.conf, naughty),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "Your access is disabled"}),
		},
		{name: "me", path: "/api/auth/me", token: token, wantCode: http.StatusOK, wantData: profile},
		{
			name: "logout", method: http.MethodPost, path: "/api/auth/logout", token: token,
			wantCode: http.StatusOK, wantData: marchallObj(t, MessageResponse{Message: "Logged out successfully"}),
		},
		{
			name: "me: revoked token", path: "/api/auth/me", token: token,
			wantCode: http.StatusUnauthorized, wantData: marchallObj(t, httpErr{Error: "token has been revoked"}),
		},
		{name: "me: new token", path: "/api/auth/me", token: getToken(t, app.conf, student), wantCode: http.StatusOK, wantData: profile},
	}
	for _, tt := range tests { // sequential: logout revokes token
		t.Run(tt.name, func(t *testing.T) {
			checkCodeAndData(t, tt, app.do(tt))
		})
	}
}

type echoMap map[string]interface{}
