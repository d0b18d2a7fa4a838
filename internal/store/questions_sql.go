package store

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"strings"

	"github.com/mind-engage/examprep/internal/apperr"
	"github.com/mind-engage/examprep/internal/question"
	"github.com/mind-engage/examprep/internal/review"
	"github.com/mind-engage/examprep/internal/sampler"
	syncx "github.com/mind-engage/examprep/internal/sync"
)

const questionCols = `id,type,subject,topic,subtopic,difficulty,stem,stem_latex,marks,negative_marks,
	quality_score,review_status,is_published,fingerprint,diagram_ref,issues_json,vetted_at,created_at,updated_at`

type existingQuestion struct {
	id        string
	status    question.ReviewStatus
	published bool
}

// SaveQuestion upserts by fingerprint. The unique index on fingerprint is
// the real guard: a concurrent insert that wins the race turns this call
// into an update. Human decisions (approved/rejected) are never overwritten
// here; only content, score and issues are refreshed.
func (s *SQLStore) SaveQuestion(ctx context.Context, w QuestionWrite) (SaveResult, error) {
	const op = "store.SaveQuestion"
	q := w.Question
	if strings.TrimSpace(q.Fingerprint) == "" {
		return SaveResult{}, apperr.Invalidf(op, "fingerprint is required")
	}
	if q.ReviewStatus == "" {
		q.ReviewStatus = question.NeedsReview
	}

	var res SaveResult
	err := s.inTx(ctx, op, func(tx *sql.Tx) error {
		now := s.now().Unix()
		prev, found, err := lookupFingerprint(ctx, tx, q.Fingerprint)
		if err != nil {
			return dbErr(op, err)
		}

		status := q.ReviewStatus
		published := review.PublishFlag(status, w.Publish)
		if !found {
			id := q.ID
			if id == "" {
				id = s.newID()
			}
			var got string
			err := tx.QueryRowContext(ctx, `INSERT INTO questions (`+questionCols+`)
				VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19)
				ON CONFLICT (fingerprint) DO NOTHING
				RETURNING id`,
				id, string(q.Type), q.Subject, q.Topic, q.Subtopic, string(q.Difficulty), q.Stem, q.StemLatex,
				q.Marks, q.NegativeMarks, q.QualityScore, string(status), published, q.Fingerprint,
				q.DiagramRef, encodeStrings(q.Issues), vettedAt(q), now, now,
			).Scan(&got)
			switch {
			case err == nil:
				res.ID, res.Inserted = got, true
			case errors.Is(err, sql.ErrNoRows):
				prev, found, err = lookupFingerprint(ctx, tx, q.Fingerprint)
				if err != nil {
					return dbErr(op, err)
				}
				if !found {
					return apperr.New(apperr.Inconsistent, op, "fingerprint conflict without a matching row")
				}
			default:
				return dbErr(op, err)
			}
		}

		if !res.Inserted {
			res.ID = prev.id
			if prev.status.Decided() {
				status = prev.status
				published = review.PublishFlag(status, w.Publish)
			}
			_, err := tx.ExecContext(ctx, `UPDATE questions SET
				type=$1, subject=$2, topic=$3, subtopic=$4, difficulty=$5, stem=$6, stem_latex=$7,
				marks=$8, negative_marks=$9, quality_score=$10, review_status=$11, is_published=$12,
				diagram_ref=$13, issues_json=$14, vetted_at=COALESCE($15, vetted_at), updated_at=$16
				WHERE id=$17`,
				string(q.Type), q.Subject, q.Topic, q.Subtopic, string(q.Difficulty), q.Stem, q.StemLatex,
				q.Marks, q.NegativeMarks, q.QualityScore, string(status), published,
				q.DiagramRef, encodeStrings(q.Issues), vettedAt(q), now, prev.id)
			if err != nil {
				return dbErr(op, err)
			}
		}
		res.ReviewStatus, res.Published = status, published

		if err := replaceOptions(ctx, tx, res.ID, q); err != nil {
			return dbErr(op, err)
		}
		if err := upsertAnswer(ctx, tx, res.ID, q); err != nil {
			return dbErr(op, err)
		}

		if review.NeedsItem(status) {
			item := review.Item{
				ID:         s.newID(),
				QuestionID: res.ID,
				Reasons:    review.Reasons(q.Issues),
				Priority:   review.Priority(q.QualityScore),
			}
			enq, err := enqueueReview(ctx, tx, item, now)
			if err != nil {
				return dbErr(op, err)
			}
			res.Enqueued = enq
			if enq {
				if err := appendEvent(ctx, tx, syncx.TypeReviewEnqueued, res.ID, item); err != nil {
					return dbErr(op, err)
				}
			}
		}

		typ := syncx.TypeQuestionIngested
		if w.Source == "vet" {
			typ = syncx.TypeQuestionVetted
		}
		return dbErr(op, appendEvent(ctx, tx, typ, res.ID, map[string]any{
			"fingerprint":   q.Fingerprint,
			"inserted":      res.Inserted,
			"review_status": res.ReviewStatus,
			"is_published":  res.Published,
			"quality_score": q.QualityScore,
			"issues":        q.Issues,
		}))
	})
	if err != nil {
		return SaveResult{}, err
	}
	return res, nil
}

func lookupFingerprint(ctx context.Context, q queryer, fp string) (existingQuestion, bool, error) {
	var e existingQuestion
	var status string
	err := q.QueryRowContext(ctx,
		`SELECT id, review_status, is_published FROM questions WHERE fingerprint=$1`, fp).
		Scan(&e.id, &status, &e.published)
	if errors.Is(err, sql.ErrNoRows) {
		return existingQuestion{}, false, nil
	}
	if err != nil {
		return existingQuestion{}, false, err
	}
	e.status = question.ReviewStatus(status)
	return e, true, nil
}

func vettedAt(q question.Question) sql.NullInt64 {
	if q.VettedAt == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: q.VettedAt.Unix(), Valid: true}
}

func replaceOptions(ctx context.Context, tx *sql.Tx, id string, q question.Question) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM question_options WHERE question_id=$1`, id); err != nil {
		return err
	}
	if q.Type != question.SingleChoice {
		return nil
	}
	for _, o := range q.Options {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO question_options (question_id, opt_key, text, text_latex) VALUES ($1,$2,$3,$4)`,
			id, o.Key, o.Text, o.TextLatex); err != nil {
			return err
		}
	}
	return nil
}

func upsertAnswer(ctx context.Context, tx *sql.Tx, id string, q question.Question) error {
	ans := question.AnswerKey{Type: q.Type}
	if q.Answer != nil {
		ans = *q.Answer
	}
	var integer sql.NullInt64
	if ans.CorrectInteger != nil {
		integer = sql.NullInt64{Int64: *ans.CorrectInteger, Valid: true}
	}
	_, err := tx.ExecContext(ctx, `INSERT INTO answer_keys (question_id, answer_type, correct_option, correct_integer, solution)
		VALUES ($1,$2,$3,$4,$5)
		ON CONFLICT (question_id) DO UPDATE SET answer_type=EXCLUDED.answer_type,
			correct_option=EXCLUDED.correct_option, correct_integer=EXCLUDED.correct_integer, solution=EXCLUDED.solution`,
		id, string(q.Type), ans.CorrectOption, integer, ans.Solution)
	return err
}

func (s *SQLStore) GetQuestion(ctx context.Context, id string) (question.Question, error) {
	qs, err := s.GetQuestions(ctx, []string{id})
	if err != nil {
		return question.Question{}, err
	}
	q, ok := qs[id]
	if !ok {
		return question.Question{}, apperr.NotFoundf("store.GetQuestion", "question %s not found", id)
	}
	return q, nil
}

func (s *SQLStore) GetQuestions(ctx context.Context, ids []string) (map[string]question.Question, error) {
	const op = "store.GetQuestions"
	out := make(map[string]question.Question, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+questionCols+` FROM questions WHERE id IN (`+placeholders(1, len(ids))+`)`, anyArgs(ids)...)
	if err != nil {
		return nil, dbErr(op, err)
	}
	list, err := scanQuestions(rows)
	if err != nil {
		return nil, dbErr(op, err)
	}
	if err := s.loadDetails(ctx, list); err != nil {
		return nil, dbErr(op, err)
	}
	for _, q := range list {
		out[q.ID] = q
	}
	return out, nil
}

const (
	defaultVetLimit = 50
	maxVetLimit     = 500
)

func (s *SQLStore) ListForVetting(ctx context.Context, sel VetSelection) ([]question.Question, error) {
	const op = "store.ListForVetting"
	limit := sel.Limit
	if limit <= 0 {
		limit = defaultVetLimit
	}
	if limit > maxVetLimit {
		limit = maxVetLimit
	}
	where := ""
	if sel.OnlyUnvetted {
		where = "WHERE vetted_at IS NULL"
	}
	rows, err := s.db.QueryContext(ctx, `SELECT `+questionCols+` FROM questions `+where+`
		ORDER BY CASE WHEN vetted_at IS NULL THEN 0 ELSE 1 END, vetted_at, created_at, id
		LIMIT $1`, limit)
	if err != nil {
		return nil, dbErr(op, err)
	}
	list, err := scanQuestions(rows)
	if err != nil {
		return nil, dbErr(op, err)
	}
	if err := s.loadDetails(ctx, list); err != nil {
		return nil, dbErr(op, err)
	}
	return list, nil
}

// PublishedPools returns publishable ids per difficulty, ordered by id.
func (s *SQLStore) PublishedPools(ctx context.Context, f PoolFilter) (sampler.Pools, error) {
	const op = "store.PublishedPools"
	query := `SELECT id, difficulty FROM questions
		WHERE is_published = TRUE AND review_status IN ('auto_pass','approved')`
	var args []any
	if f.Subject != "" {
		args = append(args, f.Subject)
		query += ` AND LOWER(subject) = LOWER($` + strconv.Itoa(len(args)) + `)`
	}
	if f.Topic != "" {
		args = append(args, f.Topic)
		query += ` AND LOWER(topic) = LOWER($` + strconv.Itoa(len(args)) + `)`
	}
	query += ` ORDER BY id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return sampler.Pools{}, dbErr(op, err)
	}
	defer rows.Close()
	var p sampler.Pools
	for rows.Next() {
		var id, diff string
		if err := rows.Scan(&id, &diff); err != nil {
			return sampler.Pools{}, dbErr(op, err)
		}
		switch question.Difficulty(diff) {
		case question.Easy:
			p.Easy = append(p.Easy, id)
		case question.Medium:
			p.Medium = append(p.Medium, id)
		case question.Hard:
			p.Hard = append(p.Hard, id)
		}
	}
	return p, dbErr(op, rows.Err())
}

func scanQuestions(rows *sql.Rows) ([]question.Question, error) {
	defer rows.Close()
	var out []question.Question
	for rows.Next() {
		var (
			q                         question.Question
			typ, diff, status, issues string
			vetted                    sql.NullInt64
			created, updated          int64
		)
		if err := rows.Scan(&q.ID, &typ, &q.Subject, &q.Topic, &q.Subtopic, &diff, &q.Stem, &q.StemLatex,
			&q.Marks, &q.NegativeMarks, &q.QualityScore, &status, &q.Published, &q.Fingerprint,
			&q.DiagramRef, &issues, &vetted, &created, &updated); err != nil {
			return nil, err
		}
		q.Type = question.Type(typ)
		q.Difficulty = question.Difficulty(diff)
		q.ReviewStatus = question.ReviewStatus(status)
		q.Issues = decodeStrings(issues)
		q.VettedAt = nullUnix(vetted)
		q.CreatedAt = unixTime(created)
		q.UpdatedAt = unixTime(updated)
		out = append(out, q)
	}
	return out, rows.Err()
}

// loadDetails attaches options and answer keys to list in place.
func (s *SQLStore) loadDetails(ctx context.Context, list []question.Question) error {
	if len(list) == 0 {
		return nil
	}
	ids := make([]string, len(list))
	index := make(map[string]int, len(list))
	for i, q := range list {
		ids[i] = q.ID
		index[q.ID] = i
	}
	in := placeholders(1, len(ids))

	rows, err := s.db.QueryContext(ctx, `SELECT question_id, opt_key, text, text_latex FROM question_options
		WHERE question_id IN (`+in+`) ORDER BY question_id, opt_key`, anyArgs(ids)...)
	if err != nil {
		return err
	}
	for rows.Next() {
		var qid string
		var o question.Option
		if err := rows.Scan(&qid, &o.Key, &o.Text, &o.TextLatex); err != nil {
			rows.Close()
			return err
		}
		i := index[qid]
		list[i].Options = append(list[i].Options, o)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return err
	}
	rows.Close()

	rows, err = s.db.QueryContext(ctx, `SELECT question_id, answer_type, correct_option, correct_integer, solution
		FROM answer_keys WHERE question_id IN (`+in+`)`, anyArgs(ids)...)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			qid, typ string
			a        question.AnswerKey
			integer  sql.NullInt64
		)
		if err := rows.Scan(&qid, &typ, &a.CorrectOption, &integer, &a.Solution); err != nil {
			return err
		}
		a.Type = question.Type(typ)
		if integer.Valid {
			n := integer.Int64
			a.CorrectInteger = &n
		}
		list[index[qid]].Answer = &a
	}
	return rows.Err()
}

func appendEvent(ctx context.Context, x syncx.Execer, typ, key string, data any) error {
	e, err := syncx.NewEvent(typ, key, data)
	if err != nil {
		return err
	}
	return syncx.Append(ctx, x, e)
}
