package store

import (
	"context"
	"strings"
	"time"

	"github.com/emlakhub/apiserver/types"
	"github.com/jmoiron/sqlx"
)

const userColumns = `id, email, first_name, last_name, phone, role, is_active, password_hash, created_at, updated_at`

// UserRepository handles persistence for users.
type UserRepository struct {
	db *sqlx.DB
}

func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) GetByID(ctx context.Context, id int) (types.User, error) {
	var user types.User
	err := sqlx.GetContext(ctx, conn(ctx, r.db), &user,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	if err != nil {
		return types.User{}, mapError(err)
	}
	return user, nil
}

// GetByEmail matches case-insensitively.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (types.User, error) {
	var user types.User
	err := sqlx.GetContext(ctx, conn(ctx, r.db), &user,
		`SELECT `+userColumns+` FROM users WHERE LOWER(email) = $1`, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return types.User{}, mapError(err)
	}
	return user, nil
}

func (r *UserRepository) List(ctx context.Context, offset, limit int) ([]types.User, int, error) {
	q := conn(ctx, r.db)

	var total int
	if err := sqlx.GetContext(ctx, q, &total, `SELECT COUNT(1) FROM users`); err != nil {
		return nil, 0, err
	}

	users := []types.User{}
	err := sqlx.SelectContext(ctx, q, &users, `
		SELECT `+userColumns+`
		FROM users
		ORDER BY created_at DESC, id DESC
		OFFSET $1 LIMIT $2`, offset, limit)
	if err != nil {
		return nil, 0, err
	}
	return users, total, nil
}

func (r *UserRepository) Create(ctx context.Context, user types.User) (types.User, error) {
	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now

	const query = `
		INSERT INTO users (email, first_name, last_name, phone, role, is_active, password_hash, created_at, updated_at)
		VALUES (:email, :first_name, :last_name, :phone, :role, :is_active, :password_hash, :created_at, :updated_at)
		RETURNING id`
	if err := namedGet(ctx, conn(ctx, r.db), &user, query, user); err != nil {
		return types.User{}, mapError(err)
	}
	return user, nil
}

func (r *UserRepository) Update(ctx context.Context, user types.User) (types.User, error) {
	user.UpdatedAt = time.Now()

	const query = `
		UPDATE users
		SET email = :email,
			first_name = :first_name,
			last_name = :last_name,
			phone = :phone,
			role = :role,
			is_active = :is_active,
			password_hash = :password_hash,
			updated_at = :updated_at
		WHERE id = :id`
	result, err := sqlx.NamedExecContext(ctx, conn(ctx, r.db), query, user)
	if err != nil {
		return types.User{}, mapError(err)
	}
	if err := expectAffected(result); err != nil {
		return types.User{}, err
	}
	return user, nil
}

func (r *UserRepository) Delete(ctx context.Context, id int) error {
	result, err := conn(ctx, r.db).ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return expectAffected(result)
}
