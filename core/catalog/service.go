package catalog

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/quizmaster/core"
)

var (
	NowFunc = time.Now // mockable

	// errors
	ErrSubjectNotFound   = core.NewNotFoundError("subject")
	ErrChapterNotFound   = core.NewNotFoundError("chapter")
	ErrQuizNotFound      = core.NewNotFoundError("quiz")
	ErrQuestionNotFound  = core.NewNotFoundError("question")
	ErrSubjectNameExists = core.NewConflictError("Subject name must be unique", false)
	ErrSubjectInUse      = core.NewConflictError("Cannot delete subject with existing chapters", true)
	ErrChapterInUse      = core.NewConflictError("Cannot delete chapter with existing quizzes", true)
	ErrQuizInUse         = core.NewConflictError("Cannot delete quiz with existing questions or scores", true)
)

type (
	Repository interface {
		// WithinTx runs fn in a transaction, committed if fn returns nil and rolled back otherwise.
		// Nested calls join the outer transaction.
		WithinTx(ctx context.Context, fn func(repo Repository) error) error

		// QuerySubjects returns all subjects ordered by id, without their chapters.
		QuerySubjects(ctx context.Context) ([]Subject, error)
		GetSubject(ctx context.Context, id int) (Subject, error)
		// SubjectNameExists does a case-insensitive match on Subject.Name.
		SubjectNameExists(ctx context.Context, name string, excludedIDs ...int) (bool, error)
		CreateSubject(ctx context.Context, subj Subject) (Subject, error)
		UpdateSubject(ctx context.Context, subj Subject) (Subject, error)
		DeleteSubject(ctx context.Context, id int) error

		// QueryChapters returns the chapters of the given subjects (all if none), ordered by id.
		QueryChapters(ctx context.Context, subjectIDs ...int) ([]Chapter, error)
		GetChapter(ctx context.Context, id int) (Chapter, error)
		CountChapters(ctx context.Context, subjectID int) (int, error)
		CreateChapter(ctx context.Context, chap Chapter) (Chapter, error)
		UpdateChapter(ctx context.Context, chap Chapter) (Chapter, error)
		DeleteChapter(ctx context.Context, id int) error

		// QueryQuizzes returns the quizzes matching filter, ordered by id.
		QueryQuizzes(ctx context.Context, filter QuizFilter) ([]Quiz, error)
		// QueryQuizSummaries returns the summaries matching filter, ordered by date_of_quiz then id.
		QueryQuizSummaries(ctx context.Context, filter QuizFilter) ([]QuizSummary, error)
		GetQuiz(ctx context.Context, id int) (Quiz, error)
		CountQuizzes(ctx context.Context, chapterID int) (int, error)
		CreateQuiz(ctx context.Context, quiz Quiz) (Quiz, error)
		UpdateQuiz(ctx context.Context, quiz Quiz) (Quiz, error)
		DeleteQuiz(ctx context.Context, id int) error

		// QueryQuestions returns the questions of a quiz ordered by id.
		QueryQuestions(ctx context.Context, quizID int) ([]Question, error)
		GetQuestion(ctx context.Context, id int) (Question, error)
		CountQuestions(ctx context.Context, quizID int) (int, error)
		CreateQuestion(ctx context.Context, q Question) (Question, error)
		UpdateQuestion(ctx context.Context, q Question) (Question, error)
		DeleteQuestion(ctx context.Context, id int) error

		// CountQuizAttempts counts the attempts (any state) recorded on a quiz.
		CountQuizAttempts(ctx context.Context, quizID int) (int, error)
	}

	Service struct {
		repo Repository
	}
)

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Subjects

// ListSubjects returns all subjects, with their chapters if withChapters is set.
func (svc *Service) ListSubjects(ctx context.Context, withChapters bool) ([]Subject, error) {
	subjects, err := svc.repo.QuerySubjects(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "querying subjects")
	}
	if !withChapters || len(subjects) == 0 {
		return subjects, nil
	}

	chapters, err := svc.repo.QueryChapters(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "querying chapters")
	}
	bySubject := make(map[int][]Chapter, len(subjects))
	for _, chap := range chapters {
		bySubject[chap.SubjectID] = append(bySubject[chap.SubjectID], chap)
	}
	for i := range subjects {
		subjects[i].Chapters = bySubject[subjects[i].ID]
	}
	return subjects, nil
}

func (svc *Service) CreateSubject(ctx context.Context, in SubjectInput) (subj Subject, err error) {
	err = svc.repo.WithinTx(ctx, func(repo Repository) error {
		exists, err := repo.SubjectNameExists(ctx, in.Name)
		if err != nil {
			return errors.Wrap(err, "checking subject name")
		}
		if exists {
			return ErrSubjectNameExists
		}
		subj, err = repo.CreateSubject(ctx, Subject{Name: in.Name})
		return errors.Wrap(err, "creating subject")
	})
	return subj, err
}

func (svc *Service) UpdateSubject(ctx context.Context, id int, in SubjectInput) (subj Subject, err error) {
	err = svc.repo.WithinTx(ctx, func(repo Repository) error {
		if subj, err = repo.GetSubject(ctx, id); err != nil {
			return err
		}
		exists, err := repo.SubjectNameExists(ctx, in.Name, id)
		if err != nil {
			return errors.Wrap(err, "checking subject name")
		}
		if exists {
			return ErrSubjectNameExists
		}
		subj.Name = in.Name
		subj, err = repo.UpdateSubject(ctx, subj)
		return errors.Wrap(err, "updating subject")
	})
	return subj, err
}

// DeleteSubject deletes a subject without chapters.
func (svc *Service) DeleteSubject(ctx context.Context, id int) error {
	return svc.repo.WithinTx(ctx, func(repo Repository) error {
		if _, err := repo.GetSubject(ctx, id); err != nil {
			return err
		}
		count, err := repo.CountChapters(ctx, id)
		if err != nil {
			return errors.Wrap(err, "counting chapters")
		}
		if count > 0 {
			return ErrSubjectInUse
		}
		return errors.Wrap(repo.DeleteSubject(ctx, id), "deleting subject")
	})
}

// Chapters

func (svc *Service) ListChapters(ctx context.Context, subjectID int) ([]Chapter, error) {
	if _, err := svc.repo.GetSubject(ctx, subjectID); err != nil {
		return nil, err
	}
	return svc.repo.QueryChapters(ctx, subjectID)
}

func (svc *Service) CreateChapter(ctx context.Context, subjectID int, in ChapterInput) (chap Chapter, err error) {
	err = svc.repo.WithinTx(ctx, func(repo Repository) error {
		if _, err := repo.GetSubject(ctx, subjectID); err != nil {
			return err
		}
		chap, err = repo.CreateChapter(ctx, Chapter{SubjectID: subjectID, Name: in.Name})
		return errors.Wrap(err, "creating chapter")
	})
	return chap, err
}

func (svc *Service) UpdateChapter(ctx context.Context, id int, in ChapterInput) (chap Chapter, err error) {
	err = svc.repo.WithinTx(ctx, func(repo Repository) error {
		if chap, err = repo.GetChapter(ctx, id); err != nil {
			return err
		}
		chap.Name = in.Name
		chap, err = repo.UpdateChapter(ctx, chap)
		return errors.Wrap(err, "updating chapter")
	})
	return chap, err
}

// DeleteChapter deletes a chapter without quizzes.
func (svc *Service) DeleteChapter(ctx context.Context, id int) error {
	return svc.repo.WithinTx(ctx, func(repo Repository) error {
		if _, err := repo.GetChapter(ctx, id); err != nil {
			return err
		}
		count, err := repo.CountQuizzes(ctx, id)
		if err != nil {
			return errors.Wrap(err, "counting quizzes")
		}
		if count > 0 {
			return ErrChapterInUse
		}
		return errors.Wrap(repo.DeleteChapter(ctx, id), "deleting chapter")
	})
}

// Quizzes

func (svc *Service) ListQuizzes(ctx context.Context, chapterID int) ([]Quiz, error) {
	if _, err := svc.repo.GetChapter(ctx, chapterID); err != nil {
		return nil, err
	}
	return svc.repo.QueryQuizzes(ctx, QuizFilter{ChapterID: chapterID})
}

// ListQuizSummaries returns every quiz with its chapter and subject names and question count.
func (svc *Service) ListQuizSummaries(ctx context.Context, filter QuizFilter) ([]QuizSummary, error) {
	return svc.repo.QueryQuizSummaries(ctx, filter)
}

func (svc *Service) GetQuiz(ctx context.Context, id int) (Quiz, error) {
	return svc.repo.GetQuiz(ctx, id)
}

func (svc *Service) CreateQuiz(ctx context.Context, chapterID int, nq NewQuiz) (quiz Quiz, err error) {
	date, err := core.ParseTime(nq.DateOfQuiz)
	if err != nil {
		return Quiz{}, core.NewValidationError(err, core.FieldError{Field: "date_of_quiz", Error: "Invalid date format"})
	}

	err = svc.repo.WithinTx(ctx, func(repo Repository) error {
		if _, err := repo.GetChapter(ctx, chapterID); err != nil {
			return err
		}
		quiz, err = repo.CreateQuiz(ctx, Quiz{
			ChapterID:    chapterID,
			DateOfQuiz:   date,
			TimeDuration: nq.TimeDuration,
			MaxAttempts:  nq.MaxAttempts,
			CreatedAt:    NowFunc().UTC(),
		})
		return errors.Wrap(err, "creating quiz")
	})
	return quiz, err
}

func (svc *Service) UpdateQuiz(ctx context.Context, id int, uq UpdateQuiz) (quiz Quiz, err error) {
	var date time.Time
	if uq.DateOfQuiz != nil {
		if date, err = core.ParseTime(*uq.DateOfQuiz); err != nil {
			return Quiz{}, core.NewValidationError(err, core.FieldError{Field: "date_of_quiz", Error: "Invalid date format"})
		}
	}

	err = svc.repo.WithinTx(ctx, func(repo Repository) error {
		if quiz, err = repo.GetQuiz(ctx, id); err != nil {
			return err
		}
		if uq.DateOfQuiz != nil {
			quiz.DateOfQuiz = date
		}
		if uq.TimeDuration != nil {
			quiz.TimeDuration = *uq.TimeDuration
		}
		if uq.ClearMaxAttempts {
			quiz.MaxAttempts = nil
		} else if uq.MaxAttempts != nil {
			quiz.MaxAttempts = uq.MaxAttempts
		}
		quiz, err = repo.UpdateQuiz(ctx, quiz)
		return errors.Wrap(err, "updating quiz")
	})
	return quiz, err
}

// DeleteQuiz deletes a quiz without questions nor attempts.
func (svc *Service) DeleteQuiz(ctx context.Context, id int) error {
	return svc.repo.WithinTx(ctx, func(repo Repository) error {
		if _, err := repo.GetQuiz(ctx, id); err != nil {
			return err
		}
		questions, err := repo.CountQuestions(ctx, id)
		if err != nil {
			return errors.Wrap(err, "counting questions")
		}
		attempts, err := repo.CountQuizAttempts(ctx, id)
		if err != nil {
			return errors.Wrap(err, "counting attempts")
		}
		if questions > 0 || attempts > 0 {
			return ErrQuizInUse
		}
		return errors.Wrap(repo.DeleteQuiz(ctx, id), "deleting quiz")
	})
}

// Questions

// ListQuestions returns the questions of a quiz, including their correct option.
func (svc *Service) ListQuestions(ctx context.Context, quizID int) ([]Question, error) {
	if _, err := svc.repo.GetQuiz(ctx, quizID); err != nil {
		return nil, err
	}
	return svc.repo.QueryQuestions(ctx, quizID)
}

func (svc *Service) CreateQuestion(ctx context.Context, quizID int, nq NewQuestion) (q Question, err error) {
	err = svc.repo.WithinTx(ctx, func(repo Repository) error {
		if _, err := repo.GetQuiz(ctx, quizID); err != nil {
			return err
		}
		q, err = repo.CreateQuestion(ctx, Question{
			QuizID:            quizID,
			QuestionStatement: nq.QuestionStatement,
			Option1:           nq.Option1,
			Option2:           nq.Option2,
			Option3:           nq.Option3,
			Option4:           nq.Option4,
			CorrectOption:     nq.CorrectOption,
		})
		return errors.Wrap(err, "creating question")
	})
	return q, err
}

func (svc *Service) UpdateQuestion(ctx context.Context, id int, uq UpdateQuestion) (q Question, err error) {
	err = svc.repo.WithinTx(ctx, func(repo Repository) error {
		if q, err = repo.GetQuestion(ctx, id); err != nil {
			return err
		}
		uq.apply(&q)
		q, err = repo.UpdateQuestion(ctx, q)
		return errors.Wrap(err, "updating question")
	})
	return q, err
}

func (svc *Service) DeleteQuestion(ctx context.Context, id int) error {
	return svc.repo.WithinTx(ctx, func(repo Repository) error {
		if _, err := repo.GetQuestion(ctx, id); err != nil {
			return err
		}
		return errors.Wrap(repo.DeleteQuestion(ctx, id), "deleting question")
	})
}
