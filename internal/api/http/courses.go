package http

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	authmw "github.com/mind-engage/academy/internal/auth/middleware"
	"github.com/mind-engage/academy/internal/course"
)

type createCourseReq struct {
	Title       string `json:"title" validate:"required,max=200"`
	Description string `json:"description" validate:"max=5000"`
	Published   bool   `json:"published"`
}

func CreateCourseHandler(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createCourseReq
		if err := decode(r, &req); err != nil {
			writeError(w, r, err)
			return
		}
		c, err := d.Courses.CreateCourse(r.Context(), course.Course{
			Title:       req.Title,
			Description: req.Description,
			CreatedBy:   caller(r).sub,
			Published:   req.Published,
		})
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, c)
	}
}

// ListCoursesHandler returns the courses a teacher owns or a student is
// enrolled in. Admins see all of them, narrowed by ?teacher_id or ?student_id.
func ListCoursesHandler(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a := caller(r)
		q := r.URL.Query()
		opts := course.ListOpts{Query: q.Get("q")}
		if v, err := strconv.Atoi(q.Get("limit")); err == nil {
			opts.Limit = v
		}
		if v, err := strconv.Atoi(q.Get("offset")); err == nil && v >= 0 {
			opts.Offset = v
		}
		switch a.role {
		case authmw.RoleAdmin:
			opts.TeacherID = q.Get("teacher_id")
			opts.StudentID = q.Get("student_id")
		case authmw.RoleTeacher:
			opts.TeacherID = a.sub
		default:
			opts.StudentID = a.sub
		}
		out, err := d.Courses.ListCourses(r.Context(), opts)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, out)
	}
}

type enrollReq struct {
	StudentIDs []string `json:"student_ids" validate:"required,min=1,dive,required"`
	Status     string   `json:"status" validate:"omitempty,oneof=active invited dropped"`
}

func EnrollStudentsHandler(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		courseID := chi.URLParam(r, "courseID")
		if err := d.canManage(r.Context(), caller(r), courseID); err != nil {
			writeError(w, r, err)
			return
		}
		var req enrollReq
		if err := decode(r, &req); err != nil {
			writeError(w, r, err)
			return
		}
		n, err := d.Courses.Enroll(r.Context(), courseID, req.StudentIDs, req.Status)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]int{"enrolled": n})
	}
}

type createChapterReq struct {
	Title         string `json:"title" validate:"required,max=200"`
	Description   string `json:"description"`
	VideoURL      string `json:"video_url" validate:"omitempty,url"`
	AudioURL      string `json:"audio_url" validate:"omitempty,url"`
	AttachmentURL string `json:"attachment_url" validate:"omitempty,url"`
	Position      int    `json:"position" validate:"gte=0"`
	Published     bool   `json:"published"`
}

func CreateChapterHandler(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		courseID := chi.URLParam(r, "courseID")
		if err := d.canManage(r.Context(), caller(r), courseID); err != nil {
			writeError(w, r, err)
			return
		}
		var req createChapterReq
		if err := decode(r, &req); err != nil {
			writeError(w, r, err)
			return
		}
		ch, err := d.Courses.CreateChapter(r.Context(), course.Chapter{
			CourseID:      courseID,
			Title:         req.Title,
			Description:   req.Description,
			VideoURL:      req.VideoURL,
			AudioURL:      req.AudioURL,
			AttachmentURL: req.AttachmentURL,
			Position:      req.Position,
			Published:     req.Published,
		})
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, ch)
	}
}

func DeleteChapterHandler(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ch, err := d.Courses.GetChapter(r.Context(), chi.URLParam(r, "chapterID"))
		if err != nil {
			writeError(w, r, err)
			return
		}
		if err := d.canManage(r.Context(), caller(r), ch.CourseID); err != nil {
			writeError(w, r, err)
			return
		}
		if err := d.Courses.DeleteChapter(r.Context(), ch.ID); err != nil {
			writeError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// GetChapterHandler returns a chapter with its media URLs. Students need an
// active enrolment and only see published chapters.
func GetChapterHandler(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a := caller(r)
		ch, err := d.Courses.GetChapter(r.Context(), chi.URLParam(r, "chapterID"))
		if err != nil {
			writeError(w, r, err)
			return
		}
		if err := d.canView(r.Context(), a, ch.CourseID); err != nil {
			writeError(w, r, err)
			return
		}
		if a.isStudent() && !ch.Published {
			writeError(w, r, course.ErrChapterNotFound)
			return
		}
		writeJSON(w, http.StatusOK, ch)
	}
}

func PublishChapterHandler(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ch, err := d.Courses.GetChapter(r.Context(), chi.URLParam(r, "chapterID"))
		if err != nil {
			writeError(w, r, err)
			return
		}
		if err := d.canManage(r.Context(), caller(r), ch.CourseID); err != nil {
			writeError(w, r, err)
			return
		}
		var req publishReq
		if err := decode(r, &req); err != nil {
			writeError(w, r, err)
			return
		}
		if err := d.Courses.SetChapterPublished(r.Context(), ch.ID, *req.Published); err != nil {
			writeError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
