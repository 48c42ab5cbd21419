package attempt

import (
	"context"
	"strconv"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/quizmaster/core"
	"github.com/trezcool/quizmaster/core/catalog"
)

var (
	NowFunc = time.Now // mockable

	// errors
	ErrNotFound            = core.NewNotFoundError("attempt")
	ErrQuizExpired         = core.NewStateError("Quiz has expired")
	ErrNoAttemptsRemaining = core.NewStateError("No attempts remaining")
	ErrNoActiveAttempt     = core.NewStateError("No active quiz attempt found")
)

type (
	Repository interface {
		// WithinTx runs fn in a transaction, committed if fn returns nil and rolled back otherwise.
		// Nested calls join the outer transaction.
		WithinTx(ctx context.Context, fn func(repo Repository) error) error
		// LockUserQuiz serializes the attempt writes of a (user, quiz) pair until the transaction ends.
		LockUserQuiz(ctx context.Context, userID, quizID int) error

		GetQuiz(ctx context.Context, id int) (catalog.Quiz, error)
		QueryQuestions(ctx context.Context, quizID int) ([]catalog.Question, error)

		// GetLatestAttempt returns the attempt with the highest number, or ErrNotFound.
		GetLatestAttempt(ctx context.Context, userID, quizID int) (Attempt, error)
		// CountAttempts counts the attempts of the pair, in progress ones included.
		CountAttempts(ctx context.Context, userID, quizID int) (int, error)
		MaxAttemptNumber(ctx context.Context, userID, quizID int) (int, error)
		CreateAttempt(ctx context.Context, a Attempt) (Attempt, error)
		// CompleteAttempt stores the tally of an in-progress attempt. It returns ErrNoActiveAttempt
		// if the attempt is already completed.
		CompleteAttempt(ctx context.Context, a Attempt) (Attempt, error)
		QueryScoreDetails(ctx context.Context, filter DetailFilter) ([]ScoreDetail, error)
	}

	Service struct {
		repo     Repository
		tracking bool
	}
)

func NewService(repo Repository, conf *core.Config) *Service {
	return &Service{
		repo:     repo,
		tracking: conf.Attempts.Tracking,
	}
}

func (svc *Service) latestAttempt(ctx context.Context, repo Repository, userID, quizID int) (*Attempt, error) {
	latest, err := repo.GetLatestAttempt(ctx, userID, quizID)
	if err != nil {
		if err == ErrNotFound {
			return nil, nil
		}
		return nil, errors.Wrap(err, "getting latest attempt")
	}
	return &latest, nil
}

func attemptsRemain(quiz catalog.Quiz, used int) bool {
	return quiz.MaxAttempts == nil || used < *quiz.MaxAttempts
}

// GetQuizStatusForUser returns the state of the quiz for the user along with their attempt counters.
func (svc *Service) GetQuizStatusForUser(ctx context.Context, quizID, userID int) (QuizStatus, error) {
	quiz, err := svc.repo.GetQuiz(ctx, quizID)
	if err != nil {
		return QuizStatus{}, err
	}
	latest, err := svc.latestAttempt(ctx, svc.repo, userID, quizID)
	if err != nil {
		return QuizStatus{}, err
	}
	used, err := svc.repo.CountAttempts(ctx, userID, quizID)
	if err != nil {
		return QuizStatus{}, errors.Wrap(err, "counting attempts")
	}

	status := QuizStatus{
		ID:           quiz.ID,
		HasAttempt:   latest != nil,
		MaxAttempts:  quiz.MaxAttempts,
		AttemptsUsed: used,
	}
	if latest != nil {
		num := latest.AttemptNumber
		status.CurrentAttempt = &num
	}

	switch {
	case quiz.Expired(NowFunc()):
		status.Status = StatusExpired
	case latest != nil && latest.Completed() && !attemptsRemain(quiz, used):
		status.Status = StatusCompleted
	case latest != nil && !latest.Completed():
		status.Status = StatusInProgress
	default:
		status.Status = StatusNotStarted
	}
	return status, nil
}

// StartAttempt resumes the in-progress attempt of the user or starts a new one if attempts remain.
// The question set and total_possible of a new attempt are frozen.
func (svc *Service) StartAttempt(ctx context.Context, quizID, userID int) (started StartedAttempt, err error) {
	err = svc.repo.WithinTx(ctx, func(repo Repository) error {
		if err := repo.LockUserQuiz(ctx, userID, quizID); err != nil {
			return errors.Wrap(err, "locking user quiz")
		}
		quiz, err := repo.GetQuiz(ctx, quizID)
		if err != nil {
			return err
		}
		now := NowFunc().UTC()
		if quiz.Expired(now) {
			return ErrQuizExpired
		}
		questions, err := repo.QueryQuestions(ctx, quizID)
		if err != nil {
			return errors.Wrap(err, "querying questions")
		}
		started = StartedAttempt{QuizID: quiz.ID, TimeDuration: quiz.TimeDuration}

		if !svc.tracking {
			started.Questions = toQuizQuestions(questions, nil)
			return nil
		}

		latest, err := svc.latestAttempt(ctx, repo, userID, quizID)
		if err != nil {
			return err
		}
		if latest != nil && !latest.Completed() {
			// resume
			started.AttemptNumber = latest.AttemptNumber
			started.Questions = toQuizQuestions(questions, latest.QuestionIDs)
			return nil
		}

		used, err := repo.CountAttempts(ctx, userID, quizID)
		if err != nil {
			return errors.Wrap(err, "counting attempts")
		}
		if !attemptsRemain(quiz, used) {
			return ErrNoAttemptsRemaining
		}
		maxNum, err := repo.MaxAttemptNumber(ctx, userID, quizID)
		if err != nil {
			return errors.Wrap(err, "getting max attempt number")
		}

		qids := make([]int, 0, len(questions))
		for _, q := range questions {
			qids = append(qids, q.ID)
		}
		att, err := repo.CreateAttempt(ctx, Attempt{
			UserID:        userID,
			QuizID:        quizID,
			AttemptNumber: maxNum + 1,
			TotalPossible: len(qids),
			QuestionIDs:   qids,
			StartedAt:     now,
		})
		if err != nil {
			return errors.Wrap(err, "creating attempt")
		}
		started.AttemptNumber = att.AttemptNumber
		started.Questions = toQuizQuestions(questions, att.QuestionIDs)
		return nil
	})
	return started, err
}

// SubmitAttempt scores the answers against the in-progress attempt of the user and completes it.
// Unknown question ids and wrong options are not credited.
func (svc *Service) SubmitAttempt(ctx context.Context, quizID, userID int, sub Submission) (res Result, err error) {
	err = svc.repo.WithinTx(ctx, func(repo Repository) error {
		if err := repo.LockUserQuiz(ctx, userID, quizID); err != nil {
			return errors.Wrap(err, "locking user quiz")
		}
		if _, err := repo.GetQuiz(ctx, quizID); err != nil {
			return err
		}
		questions, err := repo.QueryQuestions(ctx, quizID)
		if err != nil {
			return errors.Wrap(err, "querying questions")
		}

		now := NowFunc().UTC()
		stamp := now
		if sub.TimeStampOfAttempt != nil {
			stamp = sub.TimeStampOfAttempt.UTC()
		}

		latest, err := svc.latestAttempt(ctx, repo, userID, quizID)
		if err != nil {
			return err
		}

		var att Attempt
		switch {
		case svc.tracking && (latest == nil || latest.Completed()):
			return ErrNoActiveAttempt
		case latest != nil && !latest.Completed():
			// legacy submissions also close an attempt left open under tracking
			att = *latest
		default:
			maxNum, err := repo.MaxAttemptNumber(ctx, userID, quizID)
			if err != nil {
				return errors.Wrap(err, "getting max attempt number")
			}
			att = Attempt{
				UserID:        userID,
				QuizID:        quizID,
				AttemptNumber: maxNum + 1,
				StartedAt:     now,
			}
			for _, q := range questions {
				att.QuestionIDs = append(att.QuestionIDs, q.ID)
			}
			att.TotalPossible = len(att.QuestionIDs)
			if att, err = repo.CreateAttempt(ctx, att); err != nil {
				return errors.Wrap(err, "creating attempt")
			}
		}

		att.TotalScored = score(questions, att.QuestionIDs, sub.Answers)
		att.TimeStampOfAttempt = &stamp
		att.CompletedAt = &now
		if att, err = repo.CompleteAttempt(ctx, att); err != nil {
			if err == ErrNoActiveAttempt {
				return err
			}
			return errors.Wrap(err, "completing attempt")
		}

		res = Result{
			ScoreID:       att.ID,
			TotalScored:   att.TotalScored,
			TotalPossible: att.TotalPossible,
			Percentage:    core.Percentage(att.TotalScored, att.TotalPossible),
			AttemptNumber: att.AttemptNumber,
		}
		return nil
	})
	return res, err
}

// score credits 1 for each frozen question still present whose correct option matches the answer.
func score(questions []catalog.Question, frozenIDs []int, answers map[string]int) int {
	correct := make(map[int]int, len(questions))
	for _, q := range questions {
		correct[q.ID] = q.CorrectOption
	}

	var scored int
	for _, qid := range frozenIDs {
		opt, ok := correct[qid]
		if !ok {
			continue // deleted since start
		}
		if ans, ok := answers[strconv.Itoa(qid)]; ok && ans == opt {
			scored++
		}
	}
	return scored
}

// toQuizQuestions hides the correct options. If ids is not nil, only those questions are kept.
func toQuizQuestions(questions []catalog.Question, ids []int) []QuizQuestion {
	var keep map[int]bool
	if ids != nil {
		keep = make(map[int]bool, len(ids))
		for _, id := range ids {
			keep[id] = true
		}
	}

	qqs := make([]QuizQuestion, 0, len(questions))
	for _, q := range questions {
		if keep != nil && !keep[q.ID] {
			continue
		}
		qqs = append(qqs, QuizQuestion{ID: q.ID, Question: q.QuestionStatement, Options: q.Options()})
	}
	return qqs
}

// ListUserAttempts returns the completed attempts of the user, latest time_stamp_of_attempt first.
func (svc *Service) ListUserAttempts(ctx context.Context, userID int) ([]ScoreDetail, error) {
	details, err := svc.repo.QueryScoreDetails(ctx, DetailFilter{UserID: userID})
	return details, errors.Wrap(err, "querying score details")
}

// GetUserScores returns the scores of the completed attempts of the user, latest first.
func (svc *Service) GetUserScores(ctx context.Context, userID int) ([]Score, error) {
	details, err := svc.ListUserAttempts(ctx, userID)
	if err != nil {
		return nil, err
	}
	scores := make([]Score, 0, len(details))
	for _, sd := range details {
		scores = append(scores, sd.Score())
	}
	return scores, nil
}
