package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/and161185/coursemart/internal/errs"
	"github.com/and161185/coursemart/internal/model"
	"github.com/jackc/pgx/v5"
)

func (store *PostgresStorage) CreateUser(ctx context.Context, user model.User, passwordHash string) (model.User, error) {
	const insertUserQuery = `
		INSERT INTO users (email, name, password_hash, role)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`

	err := store.conn(ctx).QueryRow(ctx, insertUserQuery, user.Email, user.Name, passwordHash, user.Role).
		Scan(&user.ID, &user.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return model.User{}, errs.ErrEmailTaken
		}
		return model.User{}, fmt.Errorf("insert user: %w", err)
	}

	return user, nil
}

func (store *PostgresStorage) GetUserByEmail(ctx context.Context, email string) (model.User, string, error) {
	const query = `SELECT id, email, name, role, created_at, password_hash FROM users WHERE email = $1`

	var user model.User
	var hash string

	err := store.conn(ctx).QueryRow(ctx, query, email).
		Scan(&user.ID, &user.Email, &user.Name, &user.Role, &user.CreatedAt, &hash)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.User{}, "", errs.ErrUserNotFound
		}
		return model.User{}, "", fmt.Errorf("get user by email: %w", err)
	}

	return user, hash, nil
}

func (store *PostgresStorage) GetUserByID(ctx context.Context, id int64) (model.User, error) {
	const query = `SELECT id, email, name, role, created_at FROM users WHERE id = $1`

	var user model.User

	err := store.conn(ctx).QueryRow(ctx, query, id).
		Scan(&user.ID, &user.Email, &user.Name, &user.Role, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.User{}, errs.ErrUserNotFound
		}
		return model.User{}, fmt.Errorf("get user by id: %w", err)
	}

	return user, nil
}

func (store *PostgresStorage) SetUserRole(ctx context.Context, email string, role model.Role) (model.User, error) {
	const query = `
		UPDATE users SET role = $2 WHERE email = $1
		RETURNING id, email, name, role, created_at`

	var user model.User
	err := store.conn(ctx).QueryRow(ctx, query, email, role).
		Scan(&user.ID, &user.Email, &user.Name, &user.Role, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.User{}, errs.ErrUserNotFound
		}
		return model.User{}, fmt.Errorf("set user role: %w", err)
	}

	return user, nil
}
