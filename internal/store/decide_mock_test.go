package store

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mind-engage/examprep/internal/apperr"
	"github.com/mind-engage/examprep/internal/review"
)

func newMockStore(t *testing.T) (*SQLStore, sqlmock.Sqlmock) {
	t.Helper()
	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return NewSQLStore(conn, "postgres"), mock
}

func openItemRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "question_id", "reasons_json", "priority", "status", "notes", "created_at", "decided_at"}).
		AddRow("item-1", "q-1", `["answer_disputed"]`, int64(3), "open", "", int64(100), nil)
}

func TestDecideReviewCommitsBothWrites(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT .* FROM review_queue WHERE question_id=\$1 AND status='open'`).
		WithArgs("q-1").WillReturnRows(openItemRows())
	mock.ExpectExec(`UPDATE review_queue SET status=\$1`).
		WithArgs("approved", "looks right", sqlmock.AnyArg(), "item-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE questions SET review_status=\$1, is_published=\$2`).
		WithArgs("approved", true, sqlmock.AnyArg(), "q-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO event_log`).WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	item, err := s.DecideReview(context.Background(), Decision{QuestionID: "q-1", Decision: review.Approve, Notes: "looks right"})
	require.NoError(t, err)
	assert.Equal(t, review.Approved, item.Status)
	assert.Equal(t, []string{"answer_disputed"}, item.Reasons)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDecideReviewRollsBackWhenQuestionMissing(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT .* FROM review_queue`).WithArgs("q-1").WillReturnRows(openItemRows())
	mock.ExpectExec(`UPDATE review_queue SET status`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE questions SET review_status`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	no := false
	_, err := s.DecideReview(context.Background(), Decision{QuestionID: "q-1", Decision: review.Approve, Publish: &no})
	require.Error(t, err)
	assert.Equal(t, apperr.Inconsistent, apperr.KindOf(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDecideReviewRollsBackWhenItemAlreadyClosed(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT .* FROM review_queue`).WithArgs("q-1").WillReturnRows(openItemRows())
	mock.ExpectExec(`UPDATE review_queue SET status`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	_, err := s.DecideReview(context.Background(), Decision{QuestionID: "q-1", Decision: review.Reject})
	assert.True(t, apperr.Is(err, apperr.Inconsistent))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDecideReviewStoreFailures(t *testing.T) {
	t.Run("begin", func(t *testing.T) {
		s, mock := newMockStore(t)
		mock.ExpectBegin().WillReturnError(errors.New("connection refused"))

		_, err := s.DecideReview(context.Background(), Decision{QuestionID: "q-1", Decision: review.Approve})
		assert.True(t, apperr.Is(err, apperr.UpstreamUnavailable))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
	t.Run("commit", func(t *testing.T) {
		s, mock := newMockStore(t)
		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT .* FROM review_queue`).WillReturnRows(openItemRows())
		mock.ExpectExec(`UPDATE review_queue`).WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(`UPDATE questions`).WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(`INSERT INTO event_log`).WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectCommit().WillReturnError(errors.New("serialization failure"))

		_, err := s.DecideReview(context.Background(), Decision{QuestionID: "q-1", Decision: review.Approve})
		assert.True(t, apperr.Is(err, apperr.UpstreamUnavailable))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
	t.Run("event append", func(t *testing.T) {
		s, mock := newMockStore(t)
		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT .* FROM review_queue`).WillReturnRows(openItemRows())
		mock.ExpectExec(`UPDATE review_queue`).WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(`UPDATE questions`).WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(`INSERT INTO event_log`).WillReturnError(errors.New("disk full"))
		mock.ExpectRollback()

		_, err := s.DecideReview(context.Background(), Decision{QuestionID: "q-1", Decision: review.Approve})
		assert.True(t, apperr.Is(err, apperr.UpstreamUnavailable))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
