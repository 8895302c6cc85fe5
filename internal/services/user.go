package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/emlakhub/apiserver/internal/store"
	"github.com/emlakhub/apiserver/types"
	"golang.org/x/crypto/bcrypt"
)

const (
	msgUserNotFound       = "user not found"
	msgEmailTaken         = "email is already registered"
	msgMissingCredentials = "email and password are required"
	msgInvalidCredentials = "invalid credentials"
	msgAccountDisabled    = "account is deactivated"
	msgInvalidRole        = "role must be User or Admin"
	msgSelfDeactivate     = "you cannot deactivate your own account"
	msgSelfDelete         = "you cannot delete your own account"
)

// UserRepository defines persistence operations for users.
type UserRepository interface {
	GetByID(ctx context.Context, id int) (types.User, error)
	GetByEmail(ctx context.Context, email string) (types.User, error)
	List(ctx context.Context, offset, limit int) ([]types.User, int, error)
	Create(ctx context.Context, user types.User) (types.User, error)
	Update(ctx context.Context, user types.User) (types.User, error)
	Delete(ctx context.Context, id int) error
}

// RegisterInput is the data needed to open an account.
type RegisterInput struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
	Phone     *string
}

// UserService encapsulates user use-cases.
type UserService struct {
	repo UserRepository
	cost int
}

func NewUserService(repo UserRepository) *UserService {
	return &UserService{repo: repo, cost: bcrypt.DefaultCost}
}

func (s *UserService) GetByID(ctx context.Context, id int) (types.User, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *UserService) List(ctx context.Context, offset, limit int) ([]types.User, int, error) {
	return s.repo.List(ctx, offset, clampLimit(limit))
}

// Register opens a regular account.
func (s *UserService) Register(ctx context.Context, in RegisterInput) (Result[types.User], error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if email == "" || in.Password == "" {
		return fail[types.User](KindValidation, msgMissingCredentials), nil
	}

	if _, err := s.repo.GetByEmail(ctx, email); err == nil {
		return fail[types.User](KindValidation, msgEmailTaken), nil
	} else if !errors.Is(err, store.ErrNotFound) {
		return Result[types.User]{}, fmt.Errorf("check email: %w", err)
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.cost)
	if err != nil {
		return Result[types.User]{}, fmt.Errorf("hash password: %w", err)
	}

	user, err := s.repo.Create(ctx, types.User{
		Email:        email,
		FirstName:    strings.TrimSpace(in.FirstName),
		LastName:     strings.TrimSpace(in.LastName),
		Phone:        in.Phone,
		Role:         types.RoleUser,
		IsActive:     true,
		PasswordHash: string(hashed),
	})
	if errors.Is(err, store.ErrConflict) {
		return fail[types.User](KindValidation, msgEmailTaken), nil
	}
	if err != nil {
		return Result[types.User]{}, fmt.Errorf("create user: %w", err)
	}
	return succeed(user), nil
}

// Authenticate checks credentials. Deactivated accounts cannot sign in.
func (s *UserService) Authenticate(ctx context.Context, email, password string) (Result[types.User], error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return fail[types.User](KindValidation, msgMissingCredentials), nil
	}

	user, err := s.repo.GetByEmail(ctx, email)
	if errors.Is(err, store.ErrNotFound) {
		return fail[types.User](KindUnauthorized, msgInvalidCredentials), nil
	}
	if err != nil {
		return Result[types.User]{}, fmt.Errorf("load user: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return fail[types.User](KindUnauthorized, msgInvalidCredentials), nil
	}
	if !user.IsActive {
		return fail[types.User](KindUnauthorized, msgAccountDisabled), nil
	}
	return succeed(user), nil
}

// UpdateRole sets the role of a user. The role name is matched case-insensitively.
func (s *UserService) UpdateRole(ctx context.Context, id int, role string) (Result[types.User], error) {
	canonical, ok := canonicalRole(role)
	if !ok {
		return fail[types.User](KindValidation, msgInvalidRole), nil
	}
	return s.mutate(ctx, id, func(u *types.User) { u.Role = canonical })
}

// SetActive enables or disables an account. Admins cannot disable themselves.
func (s *UserService) SetActive(ctx context.Context, callerID, id int, active bool) (Result[types.User], error) {
	if !active && callerID == id {
		return fail[types.User](KindValidation, msgSelfDeactivate), nil
	}
	return s.mutate(ctx, id, func(u *types.User) { u.IsActive = active })
}

// Delete removes an account. Listings it owned stay behind without an owner.
func (s *UserService) Delete(ctx context.Context, callerID, id int) (Result[bool], error) {
	if callerID == id {
		return fail[bool](KindValidation, msgSelfDelete), nil
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fail[bool](KindNotFound, msgUserNotFound), nil
		}
		return Result[bool]{}, fmt.Errorf("delete user %d: %w", id, err)
	}
	return succeed(true), nil
}

// EnsureAdmin creates the admin account unless the email is already taken.
// It reports whether an account was created.
func (s *UserService) EnsureAdmin(ctx context.Context, in RegisterInput) (types.User, bool, error) {
	existing, err := s.repo.GetByEmail(ctx, in.Email)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return types.User{}, false, fmt.Errorf("check admin: %w", err)
	}

	res, err := s.Register(ctx, in)
	if err != nil {
		return types.User{}, false, err
	}
	if !res.OK() {
		return types.User{}, false, errors.New(res.Message)
	}

	admin := res.Data
	admin.Role = types.RoleAdmin
	admin, err = s.repo.Update(ctx, admin)
	if err != nil {
		return types.User{}, false, fmt.Errorf("promote admin: %w", err)
	}
	return admin, true, nil
}

func (s *UserService) mutate(ctx context.Context, id int, change func(u *types.User)) (Result[types.User], error) {
	user, err := s.repo.GetByID(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return fail[types.User](KindNotFound, msgUserNotFound), nil
	}
	if err != nil {
		return Result[types.User]{}, fmt.Errorf("load user %d: %w", id, err)
	}

	change(&user)
	updated, err := s.repo.Update(ctx, user)
	if errors.Is(err, store.ErrNotFound) {
		return fail[types.User](KindNotFound, msgUserNotFound), nil
	}
	if err != nil {
		return Result[types.User]{}, fmt.Errorf("update user %d: %w", id, err)
	}
	return succeed(updated), nil
}

func canonicalRole(role string) (string, bool) {
	switch {
	case strings.EqualFold(strings.TrimSpace(role), types.RoleUser):
		return types.RoleUser, true
	case strings.EqualFold(strings.TrimSpace(role), types.RoleAdmin):
		return types.RoleAdmin, true
	default:
		return "", false
	}
}
