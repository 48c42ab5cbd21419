package sqlxrepos

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/trezcool/quizmaster/core/attempt"
	"github.com/trezcool/quizmaster/core/catalog"
	"github.com/trezcool/quizmaster/core/dashboard"
)

type statsRepository struct {
	store
}

var _ dashboard.Repository = (*statsRepository)(nil)

// NewStatsRepository returns the read-only projections used by the dashboard and the reporting jobs.
func NewStatsRepository(db *sqlx.DB) dashboard.Repository {
	return &statsRepository{store{db: db}}
}

func (repo *statsRepository) QueryQuizSummaries(ctx context.Context, filter catalog.QuizFilter) ([]catalog.QuizSummary, error) {
	return querySummaries(ctx, repo.store, filter)
}

func (repo *statsRepository) QueryScoreDetails(ctx context.Context, filter attempt.DetailFilter) ([]attempt.ScoreDetail, error) {
	return queryScoreDetails(ctx, repo.store, filter)
}

type summaryRow struct {
	ID             int       `db:"id"`
	ChapterID      int       `db:"chapter_id"`
	ChapterName    string    `db:"chapter_name"`
	SubjectName    string    `db:"subject_name"`
	DateOfQuiz     time.Time `db:"date_of_quiz"`
	TimeDuration   string    `db:"time_duration"`
	TotalQuestions int       `db:"total_questions"`
	CreatedAt      time.Time `db:"created_at"`
}

func querySummaries(ctx context.Context, s store, filter catalog.QuizFilter) ([]catalog.QuizSummary, error) {
	w := quizWhere(filter, "q.")
	query := `SELECT q.id, q.chapter_id, c.name AS chapter_name, s.name AS subject_name, q.date_of_quiz,
		q.time_duration, q.created_at, (SELECT COUNT(*) FROM question qn WHERE qn.quiz_id = q.id) AS total_questions
		FROM quiz q
		JOIN chapter c ON c.id = q.chapter_id
		JOIN subject s ON s.id = c.subject_id` + w.String() + ` ORDER BY q.date_of_quiz, q.id` + limit(filter.Limit)

	var rows []summaryRow
	if err := s.selectAll(ctx, &rows, query, w.args...); err != nil {
		return nil, err
	}
	summaries := make([]catalog.QuizSummary, 0, len(rows))
	for _, row := range rows {
		row.DateOfQuiz = row.DateOfQuiz.UTC()
		row.CreatedAt = row.CreatedAt.UTC()
		summaries = append(summaries, catalog.QuizSummary(row))
	}
	return summaries, nil
}

type detailRow struct {
	attemptRow
	QuizDate      time.Time `db:"quiz_date"`
	ChapterName   string    `db:"chapter_name"`
	SubjectName   string    `db:"subject_name"`
	QuestionCount int       `db:"question_count"`
}

func queryScoreDetails(ctx context.Context, s store, filter attempt.DetailFilter) ([]attempt.ScoreDetail, error) {
	w := &where{}
	w.add("a.completed_at IS NOT NULL")
	if filter.UserID != 0 {
		w.add("a.user_id = ?", filter.UserID)
	}
	if !filter.CompletedFrom.IsZero() {
		w.add("a.completed_at >= ?", filter.CompletedFrom.UTC())
	}
	if !filter.CompletedTo.IsZero() {
		w.add("a.completed_at <= ?", filter.CompletedTo.UTC())
	}
	order := " ORDER BY COALESCE(a.time_stamp_of_attempt, a.completed_at) DESC, a.id DESC"
	if filter.OrderByCompletion {
		order = " ORDER BY a.completed_at, a.id"
	}

	query := `SELECT a.id, a.user_id, a.quiz_id, a.attempt_number, a.total_scored, a.total_possible, a.question_ids,
		a.time_stamp_of_attempt, a.started_at, a.completed_at,
		q.date_of_quiz AS quiz_date, c.name AS chapter_name, s.name AS subject_name,
		(SELECT COUNT(*) FROM question qn WHERE qn.quiz_id = a.quiz_id) AS question_count
		FROM attempt a
		JOIN quiz q ON q.id = a.quiz_id
		JOIN chapter c ON c.id = q.chapter_id
		JOIN subject s ON s.id = c.subject_id` + w.String() + order + limit(filter.Limit)

	var rows []detailRow
	if err := s.selectAll(ctx, &rows, query, w.args...); err != nil {
		return nil, err
	}
	details := make([]attempt.ScoreDetail, 0, len(rows))
	for _, row := range rows {
		details = append(details, attempt.ScoreDetail{
			Attempt:       row.toAttempt(),
			QuizDate:      row.QuizDate.UTC(),
			ChapterName:   row.ChapterName,
			SubjectName:   row.SubjectName,
			QuestionCount: row.QuestionCount,
		})
	}
	return details, nil
}
