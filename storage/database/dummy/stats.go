package dummydb

import (
	"context"
	"sort"

	"github.com/trezcool/quizmaster/core/attempt"
	"github.com/trezcool/quizmaster/core/catalog"
	"github.com/trezcool/quizmaster/core/dashboard"
)

// statsRepository serves the read-only projections of the dashboard and the reporting jobs.
type statsRepository struct {
	db *DB
}

var _ dashboard.Repository = (*statsRepository)(nil)

func NewStatsRepository(db *DB) dashboard.Repository {
	return &statsRepository{db: db}
}

func (repo *statsRepository) QueryQuizSummaries(_ context.Context, filter catalog.QuizFilter) ([]catalog.QuizSummary, error) {
	return repo.db.querySummaries(filter), nil
}

func (repo *statsRepository) QueryScoreDetails(_ context.Context, filter attempt.DetailFilter) ([]attempt.ScoreDetail, error) {
	return repo.db.queryScoreDetails(filter), nil
}

func (db *DB) getQuiz(id int) (quiz catalog.Quiz, err error) {
	err = catalog.ErrQuizNotFound
	db.read(func(t *tables) {
		if q, ok := t.quizzes[id]; ok {
			quiz, err = copyQuiz(q), nil
		}
	})
	return quiz, err
}

func (db *DB) queryQuestions(quizID int) []catalog.Question {
	questions := make([]catalog.Question, 0)
	db.read(func(t *tables) {
		for _, q := range t.questions {
			if q.QuizID == quizID {
				questions = append(questions, q)
			}
		}
	})
	sortByID(questions, func(q catalog.Question) int { return q.ID })
	return questions
}

func matchQuiz(filter catalog.QuizFilter, quiz catalog.Quiz) bool {
	if filter.ChapterID != 0 && quiz.ChapterID != filter.ChapterID {
		return false
	}
	if !filter.CreatedFrom.IsZero() && quiz.CreatedAt.Before(filter.CreatedFrom) {
		return false
	}
	if !filter.ScheduledAfter.IsZero() && !quiz.DateOfQuiz.After(filter.ScheduledAfter) {
		return false
	}
	return true
}

func (db *DB) querySummaries(filter catalog.QuizFilter) []catalog.QuizSummary {
	summaries := make([]catalog.QuizSummary, 0)
	db.read(func(t *tables) {
		counts := make(map[int]int)
		for _, q := range t.questions {
			counts[q.QuizID]++
		}
		for _, quiz := range t.quizzes {
			if !matchQuiz(filter, quiz) {
				continue
			}
			chap := t.chapters[quiz.ChapterID]
			summaries = append(summaries, catalog.QuizSummary{
				ID:             quiz.ID,
				ChapterID:      quiz.ChapterID,
				ChapterName:    chap.Name,
				SubjectName:    t.subjects[chap.SubjectID].Name,
				DateOfQuiz:     quiz.DateOfQuiz,
				TimeDuration:   quiz.TimeDuration,
				TotalQuestions: counts[quiz.ID],
				CreatedAt:      quiz.CreatedAt,
			})
		}
	})
	sort.Slice(summaries, func(i, j int) bool {
		if !summaries[i].DateOfQuiz.Equal(summaries[j].DateOfQuiz) {
			return summaries[i].DateOfQuiz.Before(summaries[j].DateOfQuiz)
		}
		return summaries[i].ID < summaries[j].ID
	})
	if filter.Limit > 0 && len(summaries) > filter.Limit {
		summaries = summaries[:filter.Limit]
	}
	return summaries
}

func matchDetail(filter attempt.DetailFilter, a attempt.Attempt) bool {
	if !a.Completed() {
		return false
	}
	if filter.UserID != 0 && a.UserID != filter.UserID {
		return false
	}
	if !filter.CompletedFrom.IsZero() && a.CompletedAt.Before(filter.CompletedFrom) {
		return false
	}
	if !filter.CompletedTo.IsZero() && a.CompletedAt.After(filter.CompletedTo) {
		return false
	}
	return true
}

func (db *DB) queryScoreDetails(filter attempt.DetailFilter) []attempt.ScoreDetail {
	details := make([]attempt.ScoreDetail, 0)
	db.read(func(t *tables) {
		counts := make(map[int]int)
		for _, q := range t.questions {
			counts[q.QuizID]++
		}
		for _, a := range t.attempts {
			if !matchDetail(filter, a) {
				continue
			}
			quiz := t.quizzes[a.QuizID]
			chap := t.chapters[quiz.ChapterID]
			details = append(details, attempt.ScoreDetail{
				Attempt:       copyAttempt(a),
				QuizDate:      quiz.DateOfQuiz,
				ChapterName:   chap.Name,
				SubjectName:   t.subjects[chap.SubjectID].Name,
				QuestionCount: counts[a.QuizID],
			})
		}
	})

	if filter.OrderByCompletion {
		sort.Slice(details, func(i, j int) bool {
			ci, cj := *details[i].CompletedAt, *details[j].CompletedAt
			if !ci.Equal(cj) {
				return ci.Before(cj)
			}
			return details[i].ID < details[j].ID
		})
	} else {
		sort.Slice(details, func(i, j int) bool {
			ti, tj := details[i].AttemptedAt(), details[j].AttemptedAt()
			if !ti.Equal(tj) {
				return ti.After(tj)
			}
			return details[i].ID > details[j].ID
		})
	}
	if filter.Limit > 0 && len(details) > filter.Limit {
		details = details[:filter.Limit]
	}
	return details
}
