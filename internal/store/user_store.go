package store

import (
	"context"

	"diamonds/internal/models"
)

type UserStore struct {
	db DB
}

func NewUserStore(db DB) *UserStore {
	return &UserStore{db: db}
}

func (s *UserStore) Create(ctx context.Context, tx Execer, id, username, email, passwordHash string) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO users (id, username, email, password_hash)
		VALUES ($1, $2, $3, $4)
	`, id, username, email, passwordHash)
	return err
}

func (s *UserStore) GetByEmail(ctx context.Context, email string) (models.User, error) {
	var user models.User
	err := s.db.GetContext(ctx, &user, `
		SELECT id, username, email, password_hash, phone_verified, created_at
		FROM users
		WHERE email = $1
	`, email)
	return user, err
}

func (s *UserStore) GetByUsername(ctx context.Context, username string) (models.User, error) {
	var user models.User
	err := s.db.GetContext(ctx, &user, `
		SELECT id, username, email, password_hash, phone_verified, created_at
		FROM users
		WHERE username = $1
	`, username)
	return user, err
}

func (s *UserStore) GetByID(ctx context.Context, userID string) (models.User, error) {
	var user models.User
	err := s.db.GetContext(ctx, &user, `
		SELECT id, username, email, password_hash, phone_verified, created_at
		FROM users
		WHERE id = $1
	`, userID)
	return user, err
}

func (s *UserStore) IsPhoneVerified(ctx context.Context, userID string) (bool, error) {
	var verified bool
	err := s.db.GetContext(ctx, &verified, `
		SELECT phone_verified
		FROM users
		WHERE id = $1
	`, userID)
	return verified, err
}

func (s *UserStore) SetPhoneVerified(ctx context.Context, tx Execer, userID string) (bool, error) {
	res, err := tx.ExecContext(ctx, `
		UPDATE users
		SET phone_verified = TRUE
		WHERE id = $1 AND phone_verified = FALSE
	`, userID)
	if err != nil {
		return false, err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows > 0, nil
}
