package http

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	authmw "github.com/mind-engage/academy/internal/auth/middleware"
	rbac "github.com/mind-engage/academy/internal/rbac"
)

// Mount registers the JSON API on r. Extra middlewares run inside the
// authenticated group, after the token has been parsed.
func Mount(r chi.Router, d Deps, mws ...func(http.Handler) http.Handler) {
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	r.Get("/readyz", ReadyHandler(d))

	if d.EnableLogin {
		r.Post("/auth/login", authmw.LoginHandler(d.Auth, d.Users))
	}

	// Protected API (JWT → role in context → RBAC)
	r.Group(func(pr chi.Router) {
		pr.Use(authmw.JWTMiddleware(d.Auth))
		for _, mw := range mws {
			pr.Use(mw)
		}

		pr.With(rbac.Require("course:create")).
			Post("/courses", CreateCourseHandler(d))
		pr.With(rbac.Require("course:view")).
			Get("/courses", ListCoursesHandler(d))
		pr.With(rbac.Require("course:enroll")).
			Post("/courses/{courseID}/students", EnrollStudentsHandler(d))

		// Course content
		pr.With(rbac.Require("course:view")).
			Get("/courses/{courseID}/content", ListContentHandler(d))
		pr.With(rbac.Require("content:reorder")).
			Put("/courses/{courseID}/content/order", ReorderContentHandler(d))
		pr.With(rbac.Require("content:create")).
			Post("/courses/{courseID}/chapters", CreateChapterHandler(d))
		pr.With(rbac.Require("course:view")).
			Get("/chapters/{chapterID}", GetChapterHandler(d))
		pr.With(rbac.Require("content:publish")).
			Post("/chapters/{chapterID}/publish", PublishChapterHandler(d))
		pr.With(rbac.Require("content:delete")).
			Delete("/chapters/{chapterID}", DeleteChapterHandler(d))

		// Quiz authoring
		pr.With(rbac.Require("quiz:create")).
			Post("/courses/{courseID}/quizzes", CreateQuizHandler(d))
		pr.With(rbac.Require("quiz:create")).
			Post("/courses/{courseID}/quizzes/import", ImportQuizHandler(d))
		pr.With(rbac.Require("quiz:view")).
			Get("/quizzes/{quizID}", GetQuizHandler(d))
		pr.With(rbac.Require("quiz:edit")).
			Post("/quizzes/{quizID}/questions", AddQuestionHandler(d))
		pr.With(rbac.Require("quiz:edit")).
			Put("/quizzes/{quizID}/questions/{questionID}", UpdateQuestionHandler(d))
		pr.With(rbac.Require("quiz:publish")).
			Post("/quizzes/{quizID}/publish", PublishQuizHandler(d))
		pr.With(rbac.Require("quiz:delete")).
			Delete("/quizzes/{quizID}", DeleteQuizHandler(d))

		// Student flow
		pr.With(rbac.Require("attempt:start")).
			Post("/quizzes/{quizID}/attempts", StartAttemptHandler(d))
		pr.With(rbac.Require("attempt:submit")).
			Put("/attempts/{sessionID}/answers", SaveAnswersHandler(d))
		pr.With(rbac.Require("attempt:submit")).
			Post("/quizzes/{quizID}/submit", SubmitQuizHandler(d))

		// Results; handlers narrow students to their own rows
		pr.With(rbac.RequireAny("result:view-own", "result:view-all")).
			Get("/quizzes/{quizID}/results", QuizResultsHandler(d))
		pr.With(rbac.RequireAny("result:view-own", "result:view-all")).
			Get("/results/{resultID}", GetResultHandler(d))
		pr.With(rbac.RequireAny("result:view-own", "result:view-all")).
			Get("/courses/{courseID}/dashboard", DashboardHandler(d))

		pr.With(rbac.Require("user:change_password")).
			Post("/users/change-password", ChangePasswordHandler(d))
	})
}

// ReadyHandler reports 503 until the database answers a ping.
func ReadyHandler(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if d.DB == nil || d.DB.PingContext(ctx) != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}
}
