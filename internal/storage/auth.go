package storage

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"taskdeck/internal/task"
)

var (
	// ErrUserExists is returned when the email is already registered.
	ErrUserExists = errors.New("user already exists")
	// ErrInvalidCredentials is returned when email or password do not match.
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// HashPassword hashes the password
func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(bytes), err
}

// CheckPasswordHash checks if the password matches the hash
func CheckPasswordHash(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}

// CreateUser registers the credential and the user_details row in one
// transaction. Only the bcrypt hash is stored.
func (s *Store) CreateUser(ctx context.Context, req task.SignUpRequest) (task.User, error) {
	email := normalizeEmail(req.Email)
	hash, err := HashPassword(req.Password)
	if err != nil {
		return task.User{}, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return task.User{}, err
	}
	defer tx.Rollback()

	var existing string
	err = tx.QueryRowContext(ctx, `SELECT user_id FROM credentials WHERE email = ?;`, email).Scan(&existing)
	if err == nil {
		return task.User{}, ErrUserExists
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return task.User{}, err
	}

	u := task.User{ID: uuid.NewString(), Email: email}
	now := s.now().UTC().Format(timeLayout)
	if _, err := tx.ExecContext(ctx, `INSERT INTO credentials (user_id, email, password_hash, created_at) VALUES (?, ?, ?, ?);`,
		u.ID, u.Email, hash, now); err != nil {
		return task.User{}, err
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO user_details (UUID, email, first_name, last_name) VALUES (?, ?, ?, ?);`,
		u.ID, u.Email, req.FirstName, req.LastName); err != nil {
		return task.User{}, err
	}
	if err := tx.Commit(); err != nil {
		return task.User{}, err
	}
	return u, nil
}

// Authenticate checks the credentials and returns the bound user.
func (s *Store) Authenticate(ctx context.Context, email, password string) (task.User, error) {
	var u task.User
	var hash string
	err := s.db.QueryRowContext(ctx, `SELECT user_id, email, password_hash FROM credentials WHERE email = ?;`, normalizeEmail(email)).
		Scan(&u.ID, &u.Email, &hash)
	if errors.Is(err, sql.ErrNoRows) {
		return task.User{}, ErrInvalidCredentials
	}
	if err != nil {
		return task.User{}, err
	}
	if !CheckPasswordHash(password, hash) {
		return task.User{}, ErrInvalidCredentials
	}
	return u, nil
}

func (s *Store) UserByID(ctx context.Context, id string) (task.User, error) {
	var u task.User
	err := s.db.QueryRowContext(ctx, `SELECT user_id, email FROM credentials WHERE user_id = ?;`, id).Scan(&u.ID, &u.Email)
	if errors.Is(err, sql.ErrNoRows) {
		return task.User{}, &task.NotFoundError{Kind: "user", ID: id}
	}
	if err != nil {
		return task.User{}, err
	}
	return u, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
