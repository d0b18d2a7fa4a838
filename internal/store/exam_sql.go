package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strconv"
	"strings"

	"github.com/mind-engage/examprep/internal/apperr"
	"github.com/mind-engage/examprep/internal/question"
	syncx "github.com/mind-engage/examprep/internal/sync"
)

const blueprintCols = `id, name, scope, subject, topic, question_count, w_easy, w_medium, w_hard,
	duration_minutes, negative_marking, is_active, created_at`

func (s *SQLStore) ListBlueprints(ctx context.Context, f BlueprintFilter) ([]Blueprint, error) {
	const op = "store.ListBlueprints"
	var (
		conds []string
		args  []any
	)
	add := func(cond string, v any) {
		args = append(args, v)
		conds = append(conds, strings.ReplaceAll(cond, "?", "$"+strconv.Itoa(len(args))))
	}
	if f.Scope != "" {
		add("scope = ?", string(f.Scope))
	}
	if f.Subject != "" {
		add("LOWER(subject) = LOWER(?)", f.Subject)
	}
	if f.Topic != "" {
		add("LOWER(topic) = LOWER(?)", f.Topic)
	}
	if f.ActiveOnly {
		add("is_active = ?", true)
	}
	query := `SELECT ` + blueprintCols + ` FROM blueprints`
	if len(conds) > 0 {
		query += ` WHERE ` + strings.Join(conds, " AND ")
	}
	query += ` ORDER BY name, id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, dbErr(op, err)
	}
	defer rows.Close()
	out := []Blueprint{}
	for rows.Next() {
		b, err := scanBlueprint(rows)
		if err != nil {
			return nil, dbErr(op, err)
		}
		out = append(out, b)
	}
	return out, dbErr(op, rows.Err())
}

func (s *SQLStore) GetBlueprint(ctx context.Context, id string) (Blueprint, error) {
	const op = "store.GetBlueprint"
	b, err := scanBlueprint(s.db.QueryRowContext(ctx, `SELECT `+blueprintCols+` FROM blueprints WHERE id=$1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Blueprint{}, apperr.NotFoundf(op, "blueprint %s not found", id)
	}
	if err != nil {
		return Blueprint{}, dbErr(op, err)
	}
	return b, nil
}

// PutBlueprint creates or replaces a blueprint. A blueprint referenced by
// any test instance is frozen.
func (s *SQLStore) PutBlueprint(ctx context.Context, b Blueprint) error {
	const op = "store.PutBlueprint"
	return s.inTx(ctx, op, func(tx *sql.Tx) error {
		var one int
		err := tx.QueryRowContext(ctx, `SELECT 1 FROM test_instances WHERE blueprint_id=$1 LIMIT 1`, b.ID).Scan(&one)
		switch {
		case err == nil:
			return apperr.Invalidf(op, "blueprint %s is referenced by a test instance and cannot change", b.ID)
		case !errors.Is(err, sql.ErrNoRows):
			return dbErr(op, err)
		}

		created := b.CreatedAt
		if created.IsZero() {
			created = s.now()
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO blueprints (`+blueprintCols+`)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
			ON CONFLICT (id) DO UPDATE SET name=EXCLUDED.name, scope=EXCLUDED.scope, subject=EXCLUDED.subject,
				topic=EXCLUDED.topic, question_count=EXCLUDED.question_count, w_easy=EXCLUDED.w_easy,
				w_medium=EXCLUDED.w_medium, w_hard=EXCLUDED.w_hard, duration_minutes=EXCLUDED.duration_minutes,
				negative_marking=EXCLUDED.negative_marking, is_active=EXCLUDED.is_active`,
			b.ID, b.Name, string(b.Scope), b.Subject, b.Topic, b.QuestionCount,
			b.Distribution.Easy, b.Distribution.Medium, b.Distribution.Hard,
			b.DurationMinutes, b.NegativeMarking, b.Active, created.Unix()); err != nil {
			return dbErr(op, err)
		}
		return dbErr(op, appendEvent(ctx, tx, syncx.TypeBlueprintSaved, b.ID, b))
	})
}

func scanBlueprint(r rowScanner) (Blueprint, error) {
	var (
		b       Blueprint
		scope   string
		created int64
	)
	if err := r.Scan(&b.ID, &b.Name, &scope, &b.Subject, &b.Topic, &b.QuestionCount,
		&b.Distribution.Easy, &b.Distribution.Medium, &b.Distribution.Hard,
		&b.DurationMinutes, &b.NegativeMarking, &b.Active, &created); err != nil {
		return Blueprint{}, err
	}
	b.Scope = Scope(scope)
	b.CreatedAt = unixTime(created)
	return b, nil
}

// CreateTestInstance persists the instance and its ordered links together.
func (s *SQLStore) CreateTestInstance(ctx context.Context, inst TestInstance) error {
	const op = "store.CreateTestInstance"
	if len(inst.QuestionIDs) == 0 {
		return apperr.Invalidf(op, "test instance %s has no questions", inst.ID)
	}
	if err := inst.checkSnapshot(op); err != nil {
		return err
	}
	created := inst.CreatedAt
	if created.IsZero() {
		created = s.now()
	}
	return s.inTx(ctx, op, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `INSERT INTO test_instances (id, blueprint_id, seed, created_at)
			VALUES ($1,$2,$3,$4)`, inst.ID, inst.BlueprintID, inst.Seed, created.Unix()); err != nil {
			if isUniqueViolation(err) {
				return apperr.Newf(apperr.InvalidInput, op, "test instance %s already exists", inst.ID)
			}
			return dbErr(op, err)
		}
		for i, qid := range inst.QuestionIDs {
			snap, err := json.Marshal(inst.Questions[i])
			if err != nil {
				return apperr.Wrap(apperr.Internal, op, err)
			}
			if _, err := tx.ExecContext(ctx, `INSERT INTO test_instance_questions (test_instance_id, position, question_id, snapshot)
				VALUES ($1,$2,$3,$4)`, inst.ID, i+1, qid, string(snap)); err != nil {
				return dbErr(op, err)
			}
		}
		return dbErr(op, appendEvent(ctx, tx, syncx.TypeTestLaunched, inst.ID, map[string]any{
			"blueprint_id": inst.BlueprintID,
			"seed":         inst.Seed,
			"questions":    len(inst.QuestionIDs),
		}))
	})
}

func (s *SQLStore) GetTestInstance(ctx context.Context, id string) (TestInstance, error) {
	const op = "store.GetTestInstance"
	var (
		inst    TestInstance
		created int64
	)
	err := s.db.QueryRowContext(ctx, `SELECT id, blueprint_id, seed, created_at FROM test_instances WHERE id=$1`, id).
		Scan(&inst.ID, &inst.BlueprintID, &inst.Seed, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return TestInstance{}, apperr.NotFoundf(op, "test instance %s not found", id)
	}
	if err != nil {
		return TestInstance{}, dbErr(op, err)
	}
	inst.CreatedAt = unixTime(created)

	rows, err := s.db.QueryContext(ctx, `SELECT question_id, snapshot FROM test_instance_questions
		WHERE test_instance_id=$1 ORDER BY position`, id)
	if err != nil {
		return TestInstance{}, dbErr(op, err)
	}
	defer rows.Close()
	for rows.Next() {
		var qid, snap string
		if err := rows.Scan(&qid, &snap); err != nil {
			return TestInstance{}, dbErr(op, err)
		}
		var q question.Question
		if err := json.Unmarshal([]byte(snap), &q); err != nil || q.ID != qid {
			return TestInstance{}, apperr.Newf(apperr.Inconsistent, op, "test instance %s has a corrupt snapshot for question %s", id, qid)
		}
		inst.QuestionIDs = append(inst.QuestionIDs, qid)
		inst.Questions = append(inst.Questions, q)
	}
	if err := rows.Err(); err != nil {
		return TestInstance{}, dbErr(op, err)
	}
	return inst, nil
}

func (s *SQLStore) RecordAttempt(ctx context.Context, a Attempt) error {
	const op = "store.RecordAttempt"
	if a.ID == "" {
		a.ID = s.newID()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = s.now()
	}
	return s.inTx(ctx, op, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `INSERT INTO attempts (id, user_id, blueprint_id, blueprint_name, test_instance_id,
			score, max_score, percentile, correct, attempted, total, accuracy, elapsed_seconds, created_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)`,
			a.ID, a.UserID, a.BlueprintID, a.BlueprintName, a.TestInstanceID,
			a.Score, a.MaxScore, a.Percentile, a.Correct, a.Attempted, a.Total, a.Accuracy,
			a.ElapsedSeconds, a.CreatedAt.Unix()); err != nil {
			return dbErr(op, err)
		}
		return dbErr(op, appendEvent(ctx, tx, syncx.TypeAttemptRecorded, a.ID, map[string]any{
			"user_id":          a.UserID,
			"test_instance_id": a.TestInstanceID,
			"score":            a.Score,
		}))
	})
}

func (s *SQLStore) ListAttempts(ctx context.Context, userID string, limit int) ([]Attempt, error) {
	const op = "store.ListAttempts"
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `SELECT id, user_id, blueprint_id, blueprint_name, test_instance_id,
		score, max_score, percentile, correct, attempted, total, accuracy, elapsed_seconds, created_at
		FROM attempts WHERE user_id=$1 ORDER BY created_at DESC, id DESC LIMIT $2`, userID, limit)
	if err != nil {
		return nil, dbErr(op, err)
	}
	defer rows.Close()
	out := []Attempt{}
	for rows.Next() {
		var (
			a       Attempt
			created int64
		)
		if err := rows.Scan(&a.ID, &a.UserID, &a.BlueprintID, &a.BlueprintName, &a.TestInstanceID,
			&a.Score, &a.MaxScore, &a.Percentile, &a.Correct, &a.Attempted, &a.Total, &a.Accuracy,
			&a.ElapsedSeconds, &created); err != nil {
			return nil, dbErr(op, err)
		}
		a.CreatedAt = unixTime(created)
		out = append(out, a)
	}
	return out, dbErr(op, rows.Err())
}
