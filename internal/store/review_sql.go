package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/mind-engage/examprep/internal/apperr"
	"github.com/mind-engage/examprep/internal/question"
	"github.com/mind-engage/examprep/internal/review"
	syncx "github.com/mind-engage/examprep/internal/sync"
)

const reviewCols = `id, question_id, reasons_json, priority, status, notes, created_at, decided_at`

// enqueueReview inserts an open item unless one exists. The partial unique
// index on open items makes the check-and-insert atomic.
func enqueueReview(ctx context.Context, x queryer, item review.Item, now int64) (bool, error) {
	r, err := x.ExecContext(ctx, `INSERT INTO review_queue (id, question_id, reasons_json, priority, status, notes, created_at)
		VALUES ($1,$2,$3,$4,'open','',$5)
		ON CONFLICT DO NOTHING`,
		item.ID, item.QuestionID, encodeStrings(item.Reasons), item.Priority, now)
	if err != nil {
		return false, err
	}
	n, err := r.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

const (
	defaultQueueLimit = 100
	maxQueueLimit     = 1000
)

// ListReviewQueue lists items in status, most urgent first.
func (s *SQLStore) ListReviewQueue(ctx context.Context, status review.Status, limit int) ([]review.Item, error) {
	const op = "store.ListReviewQueue"
	if status == "" {
		status = review.Open
	}
	if !status.Valid() {
		return nil, apperr.Invalidf(op, "unknown review status %q", status)
	}
	if limit <= 0 {
		limit = defaultQueueLimit
	}
	if limit > maxQueueLimit {
		limit = maxQueueLimit
	}
	rows, err := s.db.QueryContext(ctx, `SELECT `+reviewCols+` FROM review_queue
		WHERE status=$1 ORDER BY priority, created_at, id LIMIT $2`, string(status), limit)
	if err != nil {
		return nil, dbErr(op, err)
	}
	defer rows.Close()
	out := []review.Item{}
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, dbErr(op, err)
		}
		out = append(out, it)
	}
	return out, dbErr(op, rows.Err())
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanItem(r rowScanner) (review.Item, error) {
	var (
		it              review.Item
		reasons, status string
		created         int64
		decided         sql.NullInt64
	)
	if err := r.Scan(&it.ID, &it.QuestionID, &reasons, &it.Priority, &status, &it.Notes, &created, &decided); err != nil {
		return review.Item{}, err
	}
	it.Reasons = decodeStrings(reasons)
	it.Status = review.Status(status)
	it.CreatedAt = unixTime(created)
	it.DecidedAt = nullUnix(decided)
	return it, nil
}

// DecideReview closes the open item for a question and applies the verdict
// to the question in one transaction. If either write touches no row the
// transaction is rolled back and an Inconsistent error is returned.
func (s *SQLStore) DecideReview(ctx context.Context, d Decision) (review.Item, error) {
	const op = "store.DecideReview"
	var out review.Item
	err := s.inTx(ctx, op, func(tx *sql.Tx) error {
		it, err := scanItem(tx.QueryRowContext(ctx, `SELECT `+reviewCols+` FROM review_queue
			WHERE question_id=$1 AND status='open'`, d.QuestionID))
		if errors.Is(err, sql.ErrNoRows) {
			return apperr.NotFoundf(op, "no open review item for question %s", d.QuestionID)
		}
		if err != nil {
			return dbErr(op, err)
		}

		next, err := review.Transition(it.Status, d.Decision)
		if err != nil {
			return apperr.Wrap(apperr.InvalidInput, op, err)
		}
		outcome := review.Apply(d.Decision, d.Publish)
		now := s.now().Unix()

		r, err := tx.ExecContext(ctx, `UPDATE review_queue SET status=$1, notes=$2, decided_at=$3
			WHERE id=$4 AND status='open'`, string(next), d.Notes, now, it.ID)
		if err := requireOneRow(op, "review item", r, err); err != nil {
			return err
		}
		r, err = tx.ExecContext(ctx, `UPDATE questions SET review_status=$1, is_published=$2, updated_at=$3
			WHERE id=$4`, string(outcome.ReviewStatus), outcome.Published, now, d.QuestionID)
		if err := requireOneRow(op, "question", r, err); err != nil {
			return err
		}

		if err := appendEvent(ctx, tx, syncx.TypeReviewDecided, d.QuestionID, map[string]any{
			"item_id":      it.ID,
			"decision":     d.Decision,
			"notes":        d.Notes,
			"is_published": outcome.Published,
			"decided_by":   d.DecidedBy,
		}); err != nil {
			return dbErr(op, err)
		}

		decided := unixTime(now)
		it.Status, it.Notes, it.DecidedAt = next, d.Notes, &decided
		out = it
		return nil
	})
	if err != nil {
		return review.Item{}, err
	}
	return out, nil
}

func requireOneRow(op, what string, r sql.Result, err error) error {
	if err != nil {
		return dbErr(op, err)
	}
	n, err := r.RowsAffected()
	if err != nil {
		return dbErr(op, err)
	}
	if n != 1 {
		return apperr.Newf(apperr.Inconsistent, op, "%s update affected %d rows, decision rolled back", what, n)
	}
	return nil
}

// ReconcileReviewQueue repairs the queue against question state: open items
// whose question already carries a human decision are closed with that
// decision, and needs_review questions without an open item get one.
func (s *SQLStore) ReconcileReviewQueue(ctx context.Context) (ReconcileReport, error) {
	const op = "store.ReconcileReviewQueue"
	var rep ReconcileReport
	err := s.inTx(ctx, op, func(tx *sql.Tx) error {
		now := s.now().Unix()

		type stale struct{ itemID, questionID, status string }
		rows, err := tx.QueryContext(ctx, `SELECT r.id, r.question_id, q.review_status
			FROM review_queue r JOIN questions q ON q.id = r.question_id
			WHERE r.status='open' AND q.review_status IN ('approved','rejected')
			ORDER BY r.id`)
		if err != nil {
			return dbErr(op, err)
		}
		var closes []stale
		for rows.Next() {
			var st stale
			if err := rows.Scan(&st.itemID, &st.questionID, &st.status); err != nil {
				rows.Close()
				return dbErr(op, err)
			}
			closes = append(closes, st)
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return dbErr(op, err)
		}
		rows.Close()

		for _, st := range closes {
			if _, err := tx.ExecContext(ctx, `UPDATE review_queue SET status=$1, notes=$2, decided_at=$3
				WHERE id=$4 AND status='open'`, st.status, "reconciled", now, st.itemID); err != nil {
				return dbErr(op, err)
			}
			if st.status == string(question.Rejected) {
				if _, err := tx.ExecContext(ctx, `UPDATE questions SET is_published=$1 WHERE id=$2`,
					false, st.questionID); err != nil {
					return dbErr(op, err)
				}
			}
			if err := appendEvent(ctx, tx, syncx.TypeReviewReconciled, st.questionID,
				map[string]any{"item_id": st.itemID, "closed_as": st.status}); err != nil {
				return dbErr(op, err)
			}
			rep.Closed++
		}

		type missing struct {
			id     string
			score  float64
			issues string
		}
		rows, err = tx.QueryContext(ctx, `SELECT q.id, q.quality_score, q.issues_json FROM questions q
			WHERE q.review_status='needs_review'
			AND NOT EXISTS (SELECT 1 FROM review_queue r WHERE r.question_id = q.id AND r.status='open')
			ORDER BY q.id`)
		if err != nil {
			return dbErr(op, err)
		}
		var adds []missing
		for rows.Next() {
			var m missing
			if err := rows.Scan(&m.id, &m.score, &m.issues); err != nil {
				rows.Close()
				return dbErr(op, err)
			}
			adds = append(adds, m)
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return dbErr(op, err)
		}
		rows.Close()

		for _, m := range adds {
			item := review.Item{
				ID:         s.newID(),
				QuestionID: m.id,
				Reasons:    review.Reasons(decodeStrings(m.issues)),
				Priority:   review.Priority(m.score),
			}
			ok, err := enqueueReview(ctx, tx, item, now)
			if err != nil {
				return dbErr(op, err)
			}
			if !ok {
				continue
			}
			if err := appendEvent(ctx, tx, syncx.TypeReviewEnqueued, m.id, item); err != nil {
				return dbErr(op, err)
			}
			rep.Enqueued++
		}
		return nil
	})
	if err != nil {
		return ReconcileReport{}, err
	}
	return rep, nil
}
