package auth

import (
	"context"
	"database/sql"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/mind-engage/academy/internal/db"
	"github.com/mind-engage/academy/internal/rbac"
)

func openDB(t *testing.T) *sql.DB {
	t.Helper()
	dbh, err := db.Open(context.Background(), db.DriverSQLite, "file:"+t.Name()+"?mode=memory&cache=shared")
	require.NoError(t, err)
	t.Cleanup(func() { _ = dbh.Close() })
	return dbh
}

func TestIssueAndParse(t *testing.T) {
	a := NewAuthService("secret")
	tok, err := a.IssueJWT("u1", RoleTeacher)
	require.NoError(t, err)
	c, err := a.Parse(tok)
	require.NoError(t, err)
	assert.Equal(t, "u1", c.Sub)
	assert.Equal(t, RoleTeacher, c.Role)

	_, err = NewAuthService("other").Parse(tok)
	assert.Error(t, err)
}

func TestJWTMiddlewareSetsIdentity(t *testing.T) {
	a := NewAuthService("secret")
	var sub, role string
	h := JWTMiddleware(a)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sub, role = Identity(r.Context())
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	tok, err := a.IssueJWT("stu", RoleStudent)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "stu", sub)
	assert.Equal(t, RoleStudent, role)
}

func TestAuthenticate(t *testing.T) {
	ctx := context.Background()
	users := NewUsers(openDB(t), true)
	created, err := users.Create(ctx, "alice", "s3cret", RoleTeacher)
	require.NoError(t, err)
	_, err = users.Create(ctx, "alice", "again", RoleStudent)
	assert.ErrorIs(t, err, ErrUserExists)

	got, err := users.Authenticate(ctx, "alice", "s3cret", "")
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)
	assert.Equal(t, RoleTeacher, got.Role)

	_, err = users.Authenticate(ctx, "alice", "wrong", "")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	dev, err := users.Authenticate(ctx, "bob", "bob", RoleStudent)
	require.NoError(t, err)
	assert.Equal(t, "bob", dev.ID)
	_, err = users.Authenticate(ctx, "bob", "bob", RoleAdmin)
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	strict := NewUsers(users.db, false)
	_, err = strict.Authenticate(ctx, "bob", "bob", RoleStudent)
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	require.NoError(t, users.ChangePassword(ctx, created.ID, "s3cret", "n3w"))
	_, err = users.Authenticate(ctx, "alice", "n3w", "")
	assert.NoError(t, err)
	assert.ErrorIs(t, users.ChangePassword(ctx, created.ID, "s3cret", "x"), ErrInvalidCredentials)
}

func TestEnsureAdminAndLogin(t *testing.T) {
	ctx := context.Background()
	users := NewUsers(openDB(t), false)
	hash, err := bcrypt.GenerateFromPassword([]byte("root-pass"), bcrypt.MinCost)
	require.NoError(t, err)
	require.NoError(t, users.EnsureAdmin(ctx, "root", string(hash)))
	require.NoError(t, users.EnsureAdmin(ctx, "root", string(hash)))

	a := NewAuthService("secret")
	h := LoginHandler(a, users)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(`{"username":"root","password":"root-pass"}`)))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"role":"admin"`)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(`{"username":"root","password":"nope"}`)))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(`{`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAttachRoleFromDB(t *testing.T) {
	ctx := context.Background()
	dbh := openDB(t)
	users := NewUsers(dbh, true)
	u, err := users.Create(ctx, "carol", "pw", RoleStudent)
	require.NoError(t, err)

	var seen string
	h := AttachRoleFromDB(dbh, true)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = rbac.RoleFromContext(r.Context())
	}))
	serve := func(sub, role string) int {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req = req.WithContext(rbac.WithRole(WithSubject(req.Context(), sub), role))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusOK, serve(u.ID, RoleTeacher))
	assert.Equal(t, RoleStudent, seen, "stored role wins over the token")
	assert.Equal(t, http.StatusOK, serve("dev-user", RoleTeacher))
	assert.Equal(t, RoleTeacher, seen)
	assert.Equal(t, http.StatusForbidden, serve("ghost", RoleAdmin))
}
