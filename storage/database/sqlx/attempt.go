package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/quizmaster/core"
	"github.com/trezcool/quizmaster/core/attempt"
	"github.com/trezcool/quizmaster/core/catalog"
)

const attemptColumns = `id, user_id, quiz_id, attempt_number, total_scored, total_possible, question_ids,
	time_stamp_of_attempt, started_at, completed_at`

var errAttemptConflict = core.NewConflictError("attempt already recorded", false)

type attemptRow struct {
	ID                 int           `db:"id"`
	UserID             int           `db:"user_id"`
	QuizID             int           `db:"quiz_id"`
	AttemptNumber      int           `db:"attempt_number"`
	TotalScored        int           `db:"total_scored"`
	TotalPossible      int           `db:"total_possible"`
	QuestionIDs        pq.Int64Array `db:"question_ids"`
	TimeStampOfAttempt null.Time     `db:"time_stamp_of_attempt"`
	StartedAt          time.Time     `db:"started_at"`
	CompletedAt        null.Time     `db:"completed_at"`
}

func utcPtr(t null.Time) *time.Time {
	if !t.Valid {
		return nil
	}
	utc := t.Time.UTC()
	return &utc
}

func (row attemptRow) toAttempt() attempt.Attempt {
	qids := make([]int, 0, len(row.QuestionIDs))
	for _, id := range row.QuestionIDs {
		qids = append(qids, int(id))
	}
	return attempt.Attempt{
		ID:                 row.ID,
		UserID:             row.UserID,
		QuizID:             row.QuizID,
		AttemptNumber:      row.AttemptNumber,
		TotalScored:        row.TotalScored,
		TotalPossible:      row.TotalPossible,
		QuestionIDs:        qids,
		TimeStampOfAttempt: utcPtr(row.TimeStampOfAttempt),
		StartedAt:          row.StartedAt.UTC(),
		CompletedAt:        utcPtr(row.CompletedAt),
	}
}

func int64s(ids []int) pq.Int64Array {
	arr := make(pq.Int64Array, 0, len(ids))
	for _, id := range ids {
		arr = append(arr, int64(id))
	}
	return arr
}

type attemptRepository struct {
	store
}

var _ attempt.Repository = (*attemptRepository)(nil)

func NewAttemptRepository(db *sqlx.DB) attempt.Repository {
	return &attemptRepository{store{db: db}}
}

func (repo *attemptRepository) WithinTx(ctx context.Context, fn func(repo attempt.Repository) error) error {
	return repo.withinTx(ctx, func(s store) error {
		return fn(&attemptRepository{s})
	})
}

// LockUserQuiz takes a transaction level advisory lock on the (user, quiz) pair.
func (repo *attemptRepository) LockUserQuiz(ctx context.Context, userID, quizID int) error {
	_, err := repo.exec(ctx, "SELECT pg_advisory_xact_lock(?, ?)", userID, quizID)
	return err
}

func (repo *attemptRepository) GetQuiz(ctx context.Context, id int) (catalog.Quiz, error) {
	return getQuiz(ctx, repo.store, id)
}

func (repo *attemptRepository) QueryQuestions(ctx context.Context, quizID int) ([]catalog.Question, error) {
	return queryQuestions(ctx, repo.store, quizID)
}

func (repo *attemptRepository) GetLatestAttempt(ctx context.Context, userID, quizID int) (attempt.Attempt, error) {
	var row attemptRow
	err := repo.get(
		ctx, &row,
		"SELECT "+attemptColumns+" FROM attempt WHERE user_id = ? AND quiz_id = ? ORDER BY attempt_number DESC LIMIT 1",
		userID, quizID,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return attempt.Attempt{}, attempt.ErrNotFound
		}
		return attempt.Attempt{}, err
	}
	return row.toAttempt(), nil
}

func (repo *attemptRepository) CountAttempts(ctx context.Context, userID, quizID int) (int, error) {
	return repo.count(ctx, "SELECT COUNT(*) FROM attempt WHERE user_id = ? AND quiz_id = ?", userID, quizID)
}

func (repo *attemptRepository) MaxAttemptNumber(ctx context.Context, userID, quizID int) (int, error) {
	return repo.count(ctx, "SELECT COALESCE(MAX(attempt_number), 0) FROM attempt WHERE user_id = ? AND quiz_id = ?", userID, quizID)
}

func (repo *attemptRepository) CreateAttempt(ctx context.Context, a attempt.Attempt) (attempt.Attempt, error) {
	var row attemptRow
	err := repo.get(
		ctx, &row,
		`INSERT INTO attempt (user_id, quiz_id, attempt_number, total_scored, total_possible, question_ids,
		time_stamp_of_attempt, started_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?) RETURNING `+attemptColumns,
		a.UserID, a.QuizID, a.AttemptNumber, a.TotalScored, a.TotalPossible, int64s(a.QuestionIDs),
		null.TimeFromPtr(a.TimeStampOfAttempt), a.StartedAt.UTC(), null.TimeFromPtr(a.CompletedAt),
	)
	if err != nil {
		return attempt.Attempt{}, translate(err, errAttemptConflict, catalog.ErrQuizNotFound)
	}
	return row.toAttempt(), nil
}

func (repo *attemptRepository) CompleteAttempt(ctx context.Context, a attempt.Attempt) (attempt.Attempt, error) {
	var row attemptRow
	err := repo.get(
		ctx, &row,
		`UPDATE attempt SET total_scored = ?, time_stamp_of_attempt = ?, completed_at = ?
		WHERE id = ? AND completed_at IS NULL RETURNING `+attemptColumns,
		a.TotalScored, null.TimeFromPtr(a.TimeStampOfAttempt), null.TimeFromPtr(a.CompletedAt), a.ID,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return attempt.Attempt{}, attempt.ErrNoActiveAttempt
		}
		return attempt.Attempt{}, err
	}
	return row.toAttempt(), nil
}

func (repo *attemptRepository) QueryScoreDetails(ctx context.Context, filter attempt.DetailFilter) ([]attempt.ScoreDetail, error) {
	return queryScoreDetails(ctx, repo.store, filter)
}
