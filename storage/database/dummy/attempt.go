package dummydb

import (
	"context"

	"github.com/trezcool/quizmaster/core"
	"github.com/trezcool/quizmaster/core/attempt"
	"github.com/trezcool/quizmaster/core/catalog"
)

var (
	errAttemptNumberTaken = core.NewConflictError("attempt number already taken", false)
	errAttemptInProgress  = core.NewConflictError("an attempt is already in progress", false)
)

type attemptRepository struct {
	db   *DB
	inTx bool
}

var _ attempt.Repository = (*attemptRepository)(nil)

func NewAttemptRepository(db *DB) attempt.Repository {
	return &attemptRepository{db: db}
}

func (repo *attemptRepository) WithinTx(_ context.Context, fn func(repo attempt.Repository) error) error {
	return repo.db.withinTx(repo.inTx, func() error {
		return fn(&attemptRepository{db: repo.db, inTx: true})
	})
}

// LockUserQuiz is a no-op: transactions are serialized.
func (repo *attemptRepository) LockUserQuiz(_ context.Context, _, _ int) error {
	return nil
}

func (repo *attemptRepository) GetQuiz(_ context.Context, id int) (catalog.Quiz, error) {
	return repo.db.getQuiz(id)
}

func (repo *attemptRepository) QueryQuestions(_ context.Context, quizID int) ([]catalog.Question, error) {
	return repo.db.queryQuestions(quizID), nil
}

func (repo *attemptRepository) GetLatestAttempt(_ context.Context, userID, quizID int) (latest attempt.Attempt, err error) {
	err = attempt.ErrNotFound
	repo.db.read(func(t *tables) {
		for _, a := range t.attempts {
			if a.UserID == userID && a.QuizID == quizID && a.AttemptNumber > latest.AttemptNumber {
				latest, err = copyAttempt(a), nil
			}
		}
	})
	return latest, err
}

func (repo *attemptRepository) CountAttempts(_ context.Context, userID, quizID int) (count int, _ error) {
	repo.db.read(func(t *tables) {
		for _, a := range t.attempts {
			if a.UserID == userID && a.QuizID == quizID {
				count++
			}
		}
	})
	return count, nil
}

func (repo *attemptRepository) MaxAttemptNumber(_ context.Context, userID, quizID int) (max int, _ error) {
	repo.db.read(func(t *tables) {
		for _, a := range t.attempts {
			if a.UserID == userID && a.QuizID == quizID && a.AttemptNumber > max {
				max = a.AttemptNumber
			}
		}
	})
	return max, nil
}

func (repo *attemptRepository) CreateAttempt(_ context.Context, a attempt.Attempt) (attempt.Attempt, error) {
	a.StartedAt = a.StartedAt.UTC()
	err := repo.db.withinTx(repo.inTx, func() error {
		return repo.db.write(func(t *tables) error {
			if _, ok := t.users[a.UserID]; !ok {
				return core.NewNotFoundError("user")
			}
			if _, ok := t.quizzes[a.QuizID]; !ok {
				return catalog.ErrQuizNotFound
			}
			for _, other := range t.attempts {
				if other.UserID != a.UserID || other.QuizID != a.QuizID {
					continue
				}
				if other.AttemptNumber == a.AttemptNumber {
					return errAttemptNumberTaken
				}
				if !other.Completed() && !a.Completed() {
					return errAttemptInProgress
				}
			}
			a.ID = t.nextID("attempt")
			t.attempts[a.ID] = copyAttempt(a)
			return nil
		})
	})
	if err != nil {
		return attempt.Attempt{}, err
	}
	return a, nil
}

func (repo *attemptRepository) CompleteAttempt(_ context.Context, a attempt.Attempt) (attempt.Attempt, error) {
	err := repo.db.withinTx(repo.inTx, func() error {
		return repo.db.write(func(t *tables) error {
			orig, ok := t.attempts[a.ID]
			if !ok {
				return attempt.ErrNotFound
			}
			if orig.Completed() {
				return attempt.ErrNoActiveAttempt
			}
			orig.TotalScored = a.TotalScored
			orig.TimeStampOfAttempt = a.TimeStampOfAttempt
			orig.CompletedAt = a.CompletedAt
			t.attempts[a.ID] = copyAttempt(orig)
			a = orig
			return nil
		})
	})
	if err != nil {
		return attempt.Attempt{}, err
	}
	return a, nil
}

func (repo *attemptRepository) QueryScoreDetails(_ context.Context, filter attempt.DetailFilter) ([]attempt.ScoreDetail, error) {
	return repo.db.queryScoreDetails(filter), nil
}
