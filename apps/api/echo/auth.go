package echoapi

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/trezcool/quizmaster/core"
	"github.com/trezcool/quizmaster/core/user"
)

var (
	contextTokenKey     = "userToken"
	contextUserKey      = "user"
	contextPrincipalKey = "principal"
)

// Claims represents the authorization claims transmitted via a JWT.
// Id identifies the token for revocation and Subject holds the user id.
type Claims struct {
	jwt.StandardClaims
	Email string   `json:"email,omitempty"`
	Roles []string `json:"roles,omitempty"`
}

func newJWTConfig(conf *core.Config) middleware.JWTConfig {
	return middleware.JWTConfig{
		SigningKey:    []byte(conf.SecretKey),
		SigningMethod: middleware.AlgorithmHS256,
		ContextKey:    contextTokenKey,
		Claims:        new(Claims),
	}
}

// NewClaims returns the claims of a fresh token for usr.
func NewClaims(usr user.User, conf *core.Config) *Claims {
	now := time.Now()
	return &Claims{
		StandardClaims: jwt.StandardClaims{
			Id:        uuid.New().String(),
			Issuer:    conf.AppName,
			Subject:   strconv.Itoa(usr.ID),
			ExpiresAt: now.Add(conf.JWTExpirationDelta).Unix(),
			IssuedAt:  now.Unix(),
		},
		Email: usr.Email,
		Roles: usr.Roles,
	}
}

// GenerateToken generates a signed JWT token string representing the user Claims.
func GenerateToken(claims *Claims, conf *core.Config) (string, error) {
	jwtConf := newJWTConfig(conf)
	token := jwt.NewWithClaims(jwt.GetSigningMethod(jwtConf.SigningMethod), claims)

	ss, err := token.SignedString(jwtConf.SigningKey)
	if err != nil {
		return "", errors.Wrap(err, "signing token")
	}
	return ss, nil
}

func getContextClaims(ctx echo.Context) (*Claims, error) {
	if token, ok := ctx.Get(contextTokenKey).(*jwt.Token); ok {
		if claims, ok := token.Claims.(*Claims); ok {
			return claims, nil
		}
	}
	return nil, errUnauthorized
}

func getContextPrincipal(ctx echo.Context) (user.Principal, error) {
	if p, ok := ctx.Get(contextPrincipalKey).(user.Principal); ok {
		return p, nil
	}
	return user.Principal{}, errUnauthorized
}

// TokenRevoker denylists token ids until they expire.
type TokenRevoker interface {
	Revoke(ctx context.Context, tokenID string, expiresAt time.Time) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

// MemoryRevoker is an in-process TokenRevoker.
type MemoryRevoker struct {
	mu      sync.Mutex
	revoked map[string]time.Time
}

var _ TokenRevoker = (*MemoryRevoker)(nil)

func NewMemoryRevoker() *MemoryRevoker {
	return &MemoryRevoker{revoked: make(map[string]time.Time)}
}

func (r *MemoryRevoker) Revoke(_ context.Context, tokenID string, expiresAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.revoked[tokenID] = expiresAt
	return nil
}

func (r *MemoryRevoker) IsRevoked(_ context.Context, tokenID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	exp, ok := r.revoked[tokenID]
	if ok && time.Now().After(exp) {
		delete(r.revoked, tokenID)
		return false, nil
	}
	return ok, nil
}

// principalMiddleware resolves the Principal of an authenticated request.
// It must run after the JWT middleware.
func principalMiddleware(svc *user.Service, revoker TokenRevoker) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			claims, err := getContextClaims(ctx)
			if err != nil {
				return err
			}
			if revoker != nil {
				revoked, err := revoker.IsRevoked(ctx.Request().Context(), claims.Id)
				if err != nil {
					return errors.Wrap(err, "checking token revocation")
				}
				if revoked {
					return errTokenRevoked
				}
			}

			id, err := strconv.Atoi(claims.Subject)
			if err != nil {
				return errUnauthorized
			}
			usr, err := svc.GetByID(ctx.Request().Context(), id)
			if err != nil {
				if errors.Cause(err) == user.ErrNotFound {
					return errUnauthorized
				}
				return errors.Wrap(err, "finding user by ID")
			}
			if !usr.IsActive {
				return user.ErrAccountDisabled
			}

			ctx.Set(contextUserKey, usr)
			ctx.Set(contextPrincipalKey, usr.Principal())
			return next(ctx)
		}
	}
}

// requireCapability rejects principals that do not satisfy can.
func requireCapability(can user.Capability) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			p, err := getContextPrincipal(ctx)
			if err != nil {
				return err
			}
			if !can(p) {
				return errHttpForbidden
			}
			return next(ctx)
		}
	}
}

type authApi struct {
	deps ServerDeps
}

func registerAuthAPI(g *echo.Group, authed *echo.Group, deps ServerDeps) {
	api := authApi{deps: deps}

	// un-authed endpoints
	g.POST("/auth/login", api.login)
	g.POST("/auth/register", api.register)

	// authed endpoints
	authed.POST("/auth/logout", api.logout)
	authed.GET("/auth/me", api.me)
}

type (
	// authUser is the user summary sent back on login.
	authUser struct {
		ID       int      `json:"id"`
		Email    string   `json:"email"`
		FullName string   `json:"full_name"`
		Roles    []string `json:"roles"`
	}

	LoginResponse struct {
		Token string   `json:"token"`
		User  authUser `json:"user"`
	}

	registeredUser struct {
		Email    string `json:"email"`
		FullName string `json:"full_name"`
	}

	RegisterResponse struct {
		Message string         `json:"message"`
		User    registeredUser `json:"user"`
	}

	profile struct {
		ID            int      `json:"id"`
		Email         string   `json:"email"`
		FullName      string   `json:"full_name"`
		Qualification string   `json:"qualification"`
		DOB           string   `json:"dob"`
		Roles         []string `json:"roles"`
	}

	ProfileResponse struct {
		User profile `json:"user"`
	}

	MessageResponse struct {
		Message string `json:"message"`
	}
)

func (api *authApi) login(ctx echo.Context) error {
	var data user.Credentials
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to Credentials")
	}
	if err := data.Validate(api.deps.Validate); err != nil {
		return errMissingCredentials
	}

	usr, err := api.deps.UserSvc.Authenticate(ctx.Request().Context(), data.Email, data.Password)
	if err != nil {
		return errors.Wrap(err, "authenticating")
	}
	token, err := GenerateToken(NewClaims(usr, api.deps.Conf), api.deps.Conf)
	if err != nil {
		return errors.Wrap(err, "generating token")
	}

	return ctx.JSON(http.StatusOK, LoginResponse{
		Token: token,
		User:  authUser{ID: usr.ID, Email: usr.Email, FullName: usr.FullName, Roles: usr.Roles},
	})
}

func (api *authApi) register(ctx echo.Context) error {
	var data user.NewUser
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewUser")
	}
	if err := data.Validate(api.deps.Validate); err != nil {
		return err
	}

	usr, err := api.deps.UserSvc.Register(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "registering user")
	}

	return ctx.JSON(http.StatusCreated, RegisterResponse{
		Message: "Registration successful",
		User:    registeredUser{Email: usr.Email, FullName: usr.FullName},
	})
}

func (api *authApi) logout(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	if api.deps.Revoker != nil {
		err = api.deps.Revoker.Revoke(ctx.Request().Context(), claims.Id, time.Unix(claims.ExpiresAt, 0))
		if err != nil {
			return errors.Wrap(err, "revoking token")
		}
	}
	return ctx.JSON(http.StatusOK, MessageResponse{Message: "Logged out successfully"})
}

func (api *authApi) me(ctx echo.Context) error {
	usr, ok := ctx.Get(contextUserKey).(user.User)
	if !ok {
		return errUnauthorized
	}
	return ctx.JSON(http.StatusOK, ProfileResponse{User: profile{
		ID:            usr.ID,
		Email:         usr.Email,
		FullName:      usr.FullName,
		Qualification: usr.Qualification,
		DOB:           usr.DOB,
		Roles:         usr.Roles,
	}})
}
