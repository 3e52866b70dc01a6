package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mind-engage/academy/internal/content"
)

// ListContentHandler returns chapters and quizzes as one ordered sequence.
// Students only see published items.
func ListContentHandler(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		courseID := chi.URLParam(r, "courseID")
		a := caller(r)
		if err := d.canView(r.Context(), a, courseID); err != nil {
			writeError(w, r, err)
			return
		}
		items, err := d.Content.List(r.Context(), courseID)
		if err != nil {
			writeError(w, r, err)
			return
		}
		if a.isStudent() {
			visible := items[:0]
			for _, it := range items {
				if it.Published {
					visible = append(visible, it)
				}
			}
			items = visible
		}
		writeJSON(w, http.StatusOK, items)
	}
}

type reorderReq struct {
	Items []content.Placement `json:"items" validate:"required,dive"`
}

// ReorderContentHandler persists a drag-and-drop reorder. The request must
// place every item of the course; otherwise nothing changes.
func ReorderContentHandler(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		courseID := chi.URLParam(r, "courseID")
		if err := d.canManage(r.Context(), caller(r), courseID); err != nil {
			writeError(w, r, err)
			return
		}
		var req reorderReq
		if err := decode(r, &req); err != nil {
			writeError(w, r, err)
			return
		}
		items, err := d.Content.Reorder(r.Context(), courseID, req.Items)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, items)
	}
}
