// Package syncx is the append-only audit log. Writers append inside the
// transaction that made the change, so an event exists iff the change does.
package syncx

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"
)

// Event types.
const (
	TypeQuestionIngested = "QuestionIngested"
	TypeQuestionVetted   = "QuestionVetted"
	TypeReviewEnqueued   = "ReviewEnqueued"
	TypeReviewDecided    = "ReviewDecided"
	TypeReviewReconciled = "ReviewReconciled"
	TypeBlueprintSaved   = "BlueprintSaved"
	TypeTestLaunched     = "TestLaunched"
	TypeAttemptRecorded  = "AttemptRecorded"
)

const DefaultSiteID = "local"

type Event struct {
	Offset    int64  `json:"offset"`
	SiteID    string `json:"site_id"`
	Type      string `json:"type"`
	Key       string `json:"key"`
	DataJSON  string `json:"data"`
	CreatedAt int64  `json:"created_at"`
}

// Execer is satisfied by *sql.DB and *sql.Tx.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// NewEvent builds an event whose payload is data encoded as JSON.
func NewEvent(typ, key string, data any) (Event, error) {
	b, err := json.Marshal(data)
	if err != nil {
		return Event{}, err
	}
	return Event{SiteID: DefaultSiteID, Type: typ, Key: key, DataJSON: string(b)}, nil
}

type EventRepo struct{ db *sql.DB }

func NewEventRepo(db *sql.DB) *EventRepo { return &EventRepo{db: db} }

func (r *EventRepo) Append(ctx context.Context, e Event) error {
	return Append(ctx, r.db, e)
}

// Append writes e through x, which may be a transaction.
func Append(ctx context.Context, x Execer, e Event) error {
	if e.SiteID == "" {
		e.SiteID = DefaultSiteID
	}
	if e.DataJSON == "" {
		e.DataJSON = "{}"
	}
	_, err := x.ExecContext(ctx,
		`INSERT INTO event_log (site_id, typ, key, data, created_at)
		 VALUES ($1,$2,$3,$4,$5)`,
		e.SiteID, e.Type, e.Key, e.DataJSON, time.Now().Unix())
	return err
}

// Since returns up to limit events with an offset greater than after.
func (r *EventRepo) Since(ctx context.Context, after int64, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT "offset", site_id, typ, key, data, created_at FROM event_log
		 WHERE "offset" > $1 ORDER BY "offset" LIMIT $2`, after, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Event{}
	for rows.Next() {
		var e Event
		if err := rows.Scan(&e.Offset, &e.SiteID, &e.Type, &e.Key, &e.DataJSON, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
