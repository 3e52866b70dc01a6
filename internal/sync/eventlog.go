package syncx

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/mind-engage/academy/internal/db"
)

const (
	TypeQuizSubmitted     = "quiz.submitted"
	TypeQuizAutoSubmitted = "quiz.auto_submitted"
	TypeContentReordered  = "content.reordered"
)

type Event struct {
	Seq       int64           `json:"seq"`
	SiteID    string          `json:"site_id"`
	Type      string          `json:"type"`
	Key       string          `json:"key"`
	Data      json.RawMessage `json:"data"`
	CreatedAt int64           `json:"created_at"`
}

// EventRepo is the append-only event log. Offline sites replay it upstream
// in seq order.
type EventRepo struct {
	db     *sql.DB
	siteID string
	now    func() time.Time
}

func NewEventRepo(dbh *sql.DB, siteID string) *EventRepo {
	if siteID == "" {
		siteID = "local"
	}
	return &EventRepo{db: dbh, siteID: siteID, now: time.Now}
}

// Append writes one event. Pass a transaction as q to commit the event with
// the change it records, or nil to use the repo's handle.
func (r *EventRepo) Append(ctx context.Context, q db.Querier, typ, key string, data any) error {
	if q == nil {
		q = r.db
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}
	_, err = q.ExecContext(ctx,
		`INSERT INTO event_log (site_id, typ, key, data, created_at)
		 VALUES ($1,$2,$3,$4,$5)`,
		r.siteID, typ, key, string(raw), r.now().Unix())
	return db.Wrap("append event", err)
}

// Since returns up to limit events with seq greater than after.
func (r *EventRepo) Since(ctx context.Context, after int64, limit int) ([]Event, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT seq, site_id, typ, key, data, created_at FROM event_log
		 WHERE seq > $1 ORDER BY seq LIMIT $2`, after, limit)
	if err != nil {
		return nil, db.Wrap("list events", err)
	}
	defer rows.Close()
	out := []Event{}
	for rows.Next() {
		var e Event
		var data string
		if err := rows.Scan(&e.Seq, &e.SiteID, &e.Type, &e.Key, &data, &e.CreatedAt); err != nil {
			return nil, db.Wrap("scan event", err)
		}
		e.Data = json.RawMessage(data)
		out = append(out, e)
	}
	return out, db.Wrap("list events", rows.Err())
}
