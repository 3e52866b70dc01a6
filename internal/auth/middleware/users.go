package auth

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/mind-engage/academy/internal/db"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserExists         = errors.New("user already exists")
)

const (
	RoleAdmin   = "admin"
	RoleTeacher = "teacher"
	RoleStudent = "student"
)

type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Role     string `json:"role"`
}

// Users checks passwords against the users table. With devFallback set, an
// unknown username logs in when it equals the password and the requested
// role is teacher or student; offline classroom installs rely on this.
type Users struct {
	db          *sql.DB
	devFallback bool
}

func NewUsers(dbh *sql.DB, devFallback bool) *Users {
	return &Users{db: dbh, devFallback: devFallback}
}

func (u *Users) Create(ctx context.Context, username, password, role string) (User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), 12)
	if err != nil {
		return User{}, err
	}
	return u.insert(ctx, username, string(hash), role)
}

func (u *Users) insert(ctx context.Context, username, hash, role string) (User, error) {
	usr := User{ID: uuid.NewString(), Username: strings.TrimSpace(username), Role: role}
	var exists int
	err := u.db.QueryRowContext(ctx, `SELECT 1 FROM users WHERE username=$1`, usr.Username).Scan(&exists)
	switch {
	case err == nil:
		return User{}, ErrUserExists
	case !errors.Is(err, sql.ErrNoRows):
		return User{}, db.Wrap("check user", err)
	}
	_, err = u.db.ExecContext(ctx, `INSERT INTO users (id,username,password_hash,role,created_at) VALUES ($1,$2,$3,$4,$5)`,
		usr.ID, usr.Username, hash, usr.Role, time.Now().Unix())
	if err != nil {
		return User{}, db.Wrap("insert user", err)
	}
	return usr, nil
}

// EnsureAdmin creates the bootstrap admin from a bcrypt hash unless a user
// with that name exists.
func (u *Users) EnsureAdmin(ctx context.Context, username, passHash string) error {
	if username == "" || passHash == "" {
		return nil
	}
	_, err := u.insert(ctx, username, passHash, RoleAdmin)
	if errors.Is(err, ErrUserExists) {
		return nil
	}
	if err == nil {
		log.Printf("auth: bootstrap admin %q created", username)
	}
	return err
}

func (u *Users) Authenticate(ctx context.Context, username, password, role string) (User, error) {
	var usr User
	var hash string
	err := u.db.QueryRowContext(ctx, `SELECT id,username,role,password_hash FROM users WHERE username=$1`,
		username).Scan(&usr.ID, &usr.Username, &usr.Role, &hash)
	switch {
	case err == nil:
		if bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) != nil {
			return User{}, ErrInvalidCredentials
		}
		return usr, nil
	case errors.Is(err, sql.ErrNoRows):
		if u.devFallback && username != "" && username == password && (role == RoleTeacher || role == RoleStudent) {
			return User{ID: username, Username: username, Role: role}, nil
		}
		return User{}, ErrInvalidCredentials
	default:
		return User{}, db.Wrap("get user", err)
	}
}

// ChangePassword replaces a stored user's password after checking the old one.
func (u *Users) ChangePassword(ctx context.Context, userID, oldPassword, newPassword string) error {
	var stored string
	err := u.db.QueryRowContext(ctx, `SELECT password_hash FROM users WHERE id=$1`, userID).Scan(&stored)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrInvalidCredentials
		}
		return db.Wrap("get user", err)
	}
	if bcrypt.CompareHashAndPassword([]byte(stored), []byte(oldPassword)) != nil {
		return ErrInvalidCredentials
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), 12)
	if err != nil {
		return err
	}
	_, err = u.db.ExecContext(ctx, `UPDATE users SET password_hash=$1 WHERE id=$2`, string(hash), userID)
	return db.Wrap("update password", err)
}

// POST /auth/login  { "username": "...", "password": "...", "role": "teacher|student" }
func LoginHandler(a *AuthService, users *Users) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Username string `json:"username"`
			Password string `json:"password"`
			Role     string `json:"role"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		usr, err := users.Authenticate(r.Context(), strings.TrimSpace(req.Username), req.Password, req.Role)
		if err != nil {
			if errors.Is(err, ErrInvalidCredentials) {
				http.Error(w, "invalid credentials", http.StatusUnauthorized)
				return
			}
			log.Printf("login: %v", err)
			http.Error(w, "login failed", http.StatusInternalServerError)
			return
		}
		tok, err := a.IssueJWT(usr.ID, usr.Role)
		if err != nil {
			http.Error(w, "issue token", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"access_token": tok, "role": usr.Role, "sub": usr.ID})
	}
}
