package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/emlakhub/apiserver/internal/services"
	"github.com/emlakhub/apiserver/internal/store"
	"github.com/emlakhub/apiserver/types"
	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
)

const defaultTokenTTL = 24 * time.Hour

// UserService is the subset of services.UserService used by the HTTP layer.
type UserService interface {
	GetByID(ctx context.Context, id int) (types.User, error)
	List(ctx context.Context, offset, limit int) ([]types.User, int, error)
	Register(ctx context.Context, in services.RegisterInput) (services.Result[types.User], error)
	Authenticate(ctx context.Context, email, password string) (services.Result[types.User], error)
	UpdateRole(ctx context.Context, id int, role string) (services.Result[types.User], error)
	SetActive(ctx context.Context, callerID, id int, active bool) (services.Result[types.User], error)
	Delete(ctx context.Context, callerID, id int) (services.Result[bool], error)
}

// Authenticator issues and verifies JWTs. Every authenticated request loads
// the user so role changes and deactivation take effect immediately.
type Authenticator struct {
	users    UserService
	secret   []byte
	tokenTTL time.Duration
}

func NewAuthenticator(users UserService, jwtSecret string, tokenTTL time.Duration) *Authenticator {
	if tokenTTL <= 0 {
		tokenTTL = defaultTokenTTL
	}
	return &Authenticator{users: users, secret: []byte(jwtSecret), tokenTTL: tokenTTL}
}

// AuthRouter registers auth routes on the given router.
func AuthRouter(r chi.Router, auth *Authenticator) {
	r.Post("/register", auth.Register)
	r.Post("/login", auth.Login)
	r.With(auth.RequireAuth).Get("/me", auth.Me)
	r.With(auth.RequireAuth).Post("/logout", auth.Logout)
}

// RequireAuth rejects requests without a valid bearer token for an active user.
func (a *Authenticator) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenString, err := bearerToken(r)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		a.serveAs(w, r, next, tokenString)
	})
}

// OptionalAuth attaches the caller when a valid token is present and lets
// anonymous requests through otherwise.
func (a *Authenticator) OptionalAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenString, err := bearerToken(r)
		if err != nil {
			next.ServeHTTP(w, r)
			return
		}
		user, err := a.userFromToken(r.Context(), tokenString)
		if err != nil {
			next.ServeHTTP(w, r)
			return
		}
		next.ServeHTTP(w, r.WithContext(withUser(r.Context(), user)))
	})
}

// QueryTokenAuth authenticates with the token query parameter. Browsers
// cannot set headers on websocket handshakes.
func (a *Authenticator) QueryTokenAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenString := strings.TrimSpace(r.URL.Query().Get(tokenQueryParam))
		if tokenString == "" {
			var err error
			if tokenString, err = bearerToken(r); err != nil {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
		}
		a.serveAs(w, r, next, tokenString)
	})
}

// RequireAdmin must run after RequireAuth.
func (a *Authenticator) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := userFromContext(r.Context())
		if !ok {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		if !user.IsAdmin() {
			writeError(w, http.StatusForbidden, "admin access required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (a *Authenticator) serveAs(w http.ResponseWriter, r *http.Request, next http.Handler, tokenString string) {
	user, err := a.userFromToken(r.Context(), tokenString)
	if errors.Is(err, errUnauthenticated) {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	if err != nil {
		writeInternal(w, r, "failed to load user", err)
		return
	}
	next.ServeHTTP(w, r.WithContext(withUser(r.Context(), user)))
}

var errUnauthenticated = errors.New("unauthenticated")

func (a *Authenticator) userFromToken(ctx context.Context, tokenString string) (types.User, error) {
	subject, err := parseTokenSubject(tokenString, a.secret)
	if err != nil {
		return types.User{}, errUnauthenticated
	}
	id, err := strconv.Atoi(subject)
	if err != nil || id < 1 {
		return types.User{}, errUnauthenticated
	}

	user, err := a.users.GetByID(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return types.User{}, errUnauthenticated
	}
	if err != nil {
		return types.User{}, err
	}
	if !user.IsActive {
		return types.User{}, errUnauthenticated
	}
	return user, nil
}

// Register creates a new user account and returns a JWT.
func (a *Authenticator) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := a.users.Register(r.Context(), services.RegisterInput{
		Email:     req.Email,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Phone:     req.Phone,
	})
	if err != nil {
		writeInternal(w, r, "failed to create user", err)
		return
	}
	if !res.OK() {
		writeFailure(w, res.Kind, res.Message)
		return
	}

	a.respondWithToken(w, r, http.StatusCreated, res.Data)
}

// Login verifies credentials and returns a JWT.
func (a *Authenticator) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := a.users.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		writeInternal(w, r, "failed to authenticate", err)
		return
	}
	if !res.OK() {
		writeFailure(w, res.Kind, res.Message)
		return
	}

	a.respondWithToken(w, r, http.StatusOK, res.Data)
}

// Me returns the current authenticated user.
func (a *Authenticator) Me(w http.ResponseWriter, r *http.Request) {
	user, ok := userFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// Logout is a client-side operation for stateless tokens; the endpoint only
// confirms it.
func (a *Authenticator) Logout(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, MessageResponse{Message: "logout successful"})
}

func (a *Authenticator) respondWithToken(w http.ResponseWriter, r *http.Request, status int, user types.User) {
	token, expiresAt, err := issueToken(user.ID, a.secret, a.tokenTTL)
	if err != nil {
		writeInternal(w, r, "failed to create token", err)
		return
	}
	writeJSON(w, status, AuthResponse{Token: token, ExpiresAt: expiresAt, User: user})
}

type RegisterRequest struct {
	Email     string  `json:"email"`
	Password  string  `json:"password"`
	FirstName string  `json:"first_name"`
	LastName  string  `json:"last_name"`
	Phone     *string `json:"phone"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type AuthResponse struct {
	Token     string     `json:"token"`
	ExpiresAt time.Time  `json:"expires_at"`
	User      types.User `json:"user"`
}

func issueToken(userID int, secret []byte, ttl time.Duration) (string, time.Time, error) {
	now := time.Now()
	expiresAt := now.Add(ttl)
	claims := jwt.RegisteredClaims{
		Subject:   strconv.Itoa(userID),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

func parseTokenSubject(tokenString string, secret []byte) (string, error) {
	claims := jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid signing method")
		}
		return secret, nil
	})
	if err != nil {
		return "", err
	}
	if !token.Valid {
		return "", errors.New("invalid token")
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return "", errors.New("missing subject")
	}
	return claims.Subject, nil
}

func bearerToken(r *http.Request) (string, error) {
	auth := strings.TrimSpace(r.Header.Get("Authorization"))
	if auth == "" {
		return "", errors.New("missing authorization")
	}
	parts := strings.SplitN(auth, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", errors.New("invalid authorization")
	}
	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", errors.New("invalid authorization")
	}
	return token, nil
}
