package http

import (
	"context"
	"database/sql"
	"net/http"

	authmw "github.com/mind-engage/academy/internal/auth/middleware"
	"github.com/mind-engage/academy/internal/course"
	"github.com/mind-engage/academy/internal/quiz"
	"github.com/mind-engage/academy/internal/service"
)

// Deps are the stores and services the handlers share.
type Deps struct {
	DB                 *sql.DB
	Auth               *authmw.AuthService
	Users              *authmw.Users
	Courses            *course.SQLStore
	Content            *service.ContentService
	Quizzes            quiz.Store
	Attempts           *service.QuizService
	DefaultMaxAttempts int
	EnableLogin        bool // mount POST /auth/login
}

// access is the caller identity taken from the token. Admins may touch any
// course; teachers only the ones they created. Students need an active
// enrolment to view a course.
type access struct {
	sub, role string
}

func caller(r *http.Request) access {
	sub, role := authmw.Identity(r.Context())
	return access{sub: sub, role: role}
}

func (a access) isStudent() bool { return a.role == authmw.RoleStudent }

func (d Deps) canManage(ctx context.Context, a access, courseID string) error {
	if a.role == authmw.RoleAdmin {
		return nil
	}
	if _, err := d.Courses.GetCourse(ctx, courseID); err != nil {
		return err
	}
	if a.role != authmw.RoleTeacher {
		return errForbidden
	}
	ok, err := d.Courses.IsOwner(ctx, courseID, a.sub)
	if err != nil {
		return err
	}
	if !ok {
		return errForbidden
	}
	return nil
}

func (d Deps) canView(ctx context.Context, a access, courseID string) error {
	if !a.isStudent() {
		return d.canManage(ctx, a, courseID)
	}
	if _, err := d.Courses.GetCourse(ctx, courseID); err != nil {
		return err
	}
	ok, err := d.Courses.IsEnrolled(ctx, courseID, a.sub)
	if err != nil {
		return err
	}
	if !ok {
		return errForbidden
	}
	return nil
}
