package dummydb

import (
	"context"
	"sort"
	"strings"

	"github.com/trezcool/quizmaster/core/catalog"
)

type catalogRepository struct {
	db   *DB
	inTx bool
}

var _ catalog.Repository = (*catalogRepository)(nil)

func NewCatalogRepository(db *DB) catalog.Repository {
	return &catalogRepository{db: db}
}

func (repo *catalogRepository) WithinTx(_ context.Context, fn func(repo catalog.Repository) error) error {
	return repo.db.withinTx(repo.inTx, func() error {
		return fn(&catalogRepository{db: repo.db, inTx: true})
	})
}

func sortByID[T any](s []T, id func(T) int) {
	sort.Slice(s, func(i, j int) bool { return id(s[i]) < id(s[j]) })
}

// Subjects

func (repo *catalogRepository) QuerySubjects(_ context.Context) ([]catalog.Subject, error) {
	subjects := make([]catalog.Subject, 0)
	repo.db.read(func(t *tables) {
		for _, subj := range t.subjects {
			subjects = append(subjects, subj)
		}
	})
	sortByID(subjects, func(s catalog.Subject) int { return s.ID })
	return subjects, nil
}

func (repo *catalogRepository) GetSubject(_ context.Context, id int) (subj catalog.Subject, err error) {
	err = catalog.ErrSubjectNotFound
	repo.db.read(func(t *tables) {
		if s, ok := t.subjects[id]; ok {
			subj, err = s, nil
		}
	})
	return subj, err
}

func subjectNameTaken(t *tables, name string, excludedIDs ...int) bool {
	excluded := make(map[int]bool, len(excludedIDs))
	for _, id := range excludedIDs {
		excluded[id] = true
	}
	for _, subj := range t.subjects {
		if strings.EqualFold(subj.Name, name) && !excluded[subj.ID] {
			return true
		}
	}
	return false
}

func (repo *catalogRepository) SubjectNameExists(_ context.Context, name string, excludedIDs ...int) (exists bool, _ error) {
	repo.db.read(func(t *tables) {
		exists = subjectNameTaken(t, name, excludedIDs...)
	})
	return exists, nil
}

func (repo *catalogRepository) CreateSubject(_ context.Context, subj catalog.Subject) (catalog.Subject, error) {
	subj.Chapters = nil
	err := repo.db.withinTx(repo.inTx, func() error {
		return repo.db.write(func(t *tables) error {
			if subjectNameTaken(t, subj.Name) {
				return catalog.ErrSubjectNameExists
			}
			subj.ID = t.nextID("subject")
			t.subjects[subj.ID] = subj
			return nil
		})
	})
	if err != nil {
		return catalog.Subject{}, err
	}
	return subj, nil
}

func (repo *catalogRepository) UpdateSubject(_ context.Context, subj catalog.Subject) (catalog.Subject, error) {
	subj.Chapters = nil
	err := repo.db.withinTx(repo.inTx, func() error {
		return repo.db.write(func(t *tables) error {
			if _, ok := t.subjects[subj.ID]; !ok {
				return catalog.ErrSubjectNotFound
			}
			if subjectNameTaken(t, subj.Name, subj.ID) {
				return catalog.ErrSubjectNameExists
			}
			t.subjects[subj.ID] = subj
			return nil
		})
	})
	if err != nil {
		return catalog.Subject{}, err
	}
	return subj, nil
}

func (repo *catalogRepository) DeleteSubject(_ context.Context, id int) error {
	return repo.db.withinTx(repo.inTx, func() error {
		return repo.db.write(func(t *tables) error {
			for _, chap := range t.chapters {
				if chap.SubjectID == id {
					return catalog.ErrSubjectInUse
				}
			}
			delete(t.subjects, id)
			return nil
		})
	})
}

// Chapters

func (repo *catalogRepository) QueryChapters(_ context.Context, subjectIDs ...int) ([]catalog.Chapter, error) {
	keep := make(map[int]bool, len(subjectIDs))
	for _, id := range subjectIDs {
		keep[id] = true
	}
	chapters := make([]catalog.Chapter, 0)
	repo.db.read(func(t *tables) {
		for _, chap := range t.chapters {
			if len(keep) == 0 || keep[chap.SubjectID] {
				chapters = append(chapters, chap)
			}
		}
	})
	sortByID(chapters, func(c catalog.Chapter) int { return c.ID })
	return chapters, nil
}

func (repo *catalogRepository) GetChapter(_ context.Context, id int) (chap catalog.Chapter, err error) {
	err = catalog.ErrChapterNotFound
	repo.db.read(func(t *tables) {
		if c, ok := t.chapters[id]; ok {
			chap, err = c, nil
		}
	})
	return chap, err
}

func (repo *catalogRepository) CountChapters(_ context.Context, subjectID int) (count int, _ error) {
	repo.db.read(func(t *tables) {
		for _, chap := range t.chapters {
			if chap.SubjectID == subjectID {
				count++
			}
		}
	})
	return count, nil
}

func (repo *catalogRepository) CreateChapter(_ context.Context, chap catalog.Chapter) (catalog.Chapter, error) {
	err := repo.db.withinTx(repo.inTx, func() error {
		return repo.db.write(func(t *tables) error {
			if _, ok := t.subjects[chap.SubjectID]; !ok {
				return catalog.ErrSubjectNotFound
			}
			chap.ID = t.nextID("chapter")
			t.chapters[chap.ID] = chap
			return nil
		})
	})
	if err != nil {
		return catalog.Chapter{}, err
	}
	return chap, nil
}

func (repo *catalogRepository) UpdateChapter(_ context.Context, chap catalog.Chapter) (catalog.Chapter, error) {
	err := repo.db.withinTx(repo.inTx, func() error {
		return repo.db.write(func(t *tables) error {
			orig, ok := t.chapters[chap.ID]
			if !ok {
				return catalog.ErrChapterNotFound
			}
			orig.Name = chap.Name
			t.chapters[chap.ID] = orig
			chap = orig
			return nil
		})
	})
	if err != nil {
		return catalog.Chapter{}, err
	}
	return chap, nil
}

func (repo *catalogRepository) DeleteChapter(_ context.Context, id int) error {
	return repo.db.withinTx(repo.inTx, func() error {
		return repo.db.write(func(t *tables) error {
			for _, quiz := range t.quizzes {
				if quiz.ChapterID == id {
					return catalog.ErrChapterInUse
				}
			}
			delete(t.chapters, id)
			return nil
		})
	})
}

// Quizzes

func (repo *catalogRepository) QueryQuizzes(_ context.Context, filter catalog.QuizFilter) ([]catalog.Quiz, error) {
	quizzes := make([]catalog.Quiz, 0)
	repo.db.read(func(t *tables) {
		for _, quiz := range t.quizzes {
			if matchQuiz(filter, quiz) {
				quizzes = append(quizzes, copyQuiz(quiz))
			}
		}
	})
	sortByID(quizzes, func(q catalog.Quiz) int { return q.ID })
	if filter.Limit > 0 && len(quizzes) > filter.Limit {
		quizzes = quizzes[:filter.Limit]
	}
	return quizzes, nil
}

func (repo *catalogRepository) QueryQuizSummaries(_ context.Context, filter catalog.QuizFilter) ([]catalog.QuizSummary, error) {
	return repo.db.querySummaries(filter), nil
}

func (repo *catalogRepository) GetQuiz(_ context.Context, id int) (catalog.Quiz, error) {
	return repo.db.getQuiz(id)
}

func (repo *catalogRepository) CountQuizzes(_ context.Context, chapterID int) (count int, _ error) {
	repo.db.read(func(t *tables) {
		for _, quiz := range t.quizzes {
			if quiz.ChapterID == chapterID {
				count++
			}
		}
	})
	return count, nil
}

func (repo *catalogRepository) CreateQuiz(_ context.Context, quiz catalog.Quiz) (catalog.Quiz, error) {
	quiz.DateOfQuiz = quiz.DateOfQuiz.UTC()
	quiz.CreatedAt = quiz.CreatedAt.UTC()
	err := repo.db.withinTx(repo.inTx, func() error {
		return repo.db.write(func(t *tables) error {
			if _, ok := t.chapters[quiz.ChapterID]; !ok {
				return catalog.ErrChapterNotFound
			}
			quiz.ID = t.nextID("quiz")
			t.quizzes[quiz.ID] = copyQuiz(quiz)
			return nil
		})
	})
	if err != nil {
		return catalog.Quiz{}, err
	}
	return quiz, nil
}

func (repo *catalogRepository) UpdateQuiz(_ context.Context, quiz catalog.Quiz) (catalog.Quiz, error) {
	quiz.DateOfQuiz = quiz.DateOfQuiz.UTC()
	err := repo.db.withinTx(repo.inTx, func() error {
		return repo.db.write(func(t *tables) error {
			orig, ok := t.quizzes[quiz.ID]
			if !ok {
				return catalog.ErrQuizNotFound
			}
			quiz.ChapterID = orig.ChapterID
			quiz.CreatedAt = orig.CreatedAt
			t.quizzes[quiz.ID] = copyQuiz(quiz)
			return nil
		})
	})
	if err != nil {
		return catalog.Quiz{}, err
	}
	return quiz, nil
}

func (repo *catalogRepository) DeleteQuiz(_ context.Context, id int) error {
	return repo.db.withinTx(repo.inTx, func() error {
		return repo.db.write(func(t *tables) error {
			for _, q := range t.questions {
				if q.QuizID == id {
					return catalog.ErrQuizInUse
				}
			}
			for _, a := range t.attempts {
				if a.QuizID == id {
					return catalog.ErrQuizInUse
				}
			}
			delete(t.quizzes, id)
			return nil
		})
	})
}

// Questions

func (repo *catalogRepository) QueryQuestions(_ context.Context, quizID int) ([]catalog.Question, error) {
	return repo.db.queryQuestions(quizID), nil
}

func (repo *catalogRepository) GetQuestion(_ context.Context, id int) (q catalog.Question, err error) {
	err = catalog.ErrQuestionNotFound
	repo.db.read(func(t *tables) {
		if qq, ok := t.questions[id]; ok {
			q, err = qq, nil
		}
	})
	return q, err
}

func (repo *catalogRepository) CountQuestions(_ context.Context, quizID int) (int, error) {
	return len(repo.db.queryQuestions(quizID)), nil
}

func (repo *catalogRepository) CreateQuestion(_ context.Context, q catalog.Question) (catalog.Question, error) {
	err := repo.db.withinTx(repo.inTx, func() error {
		return repo.db.write(func(t *tables) error {
			if _, ok := t.quizzes[q.QuizID]; !ok {
				return catalog.ErrQuizNotFound
			}
			q.ID = t.nextID("question")
			t.questions[q.ID] = q
			return nil
		})
	})
	if err != nil {
		return catalog.Question{}, err
	}
	return q, nil
}

func (repo *catalogRepository) UpdateQuestion(_ context.Context, q catalog.Question) (catalog.Question, error) {
	err := repo.db.withinTx(repo.inTx, func() error {
		return repo.db.write(func(t *tables) error {
			orig, ok := t.questions[q.ID]
			if !ok {
				return catalog.ErrQuestionNotFound
			}
			q.QuizID = orig.QuizID
			t.questions[q.ID] = q
			return nil
		})
	})
	if err != nil {
		return catalog.Question{}, err
	}
	return q, nil
}

func (repo *catalogRepository) DeleteQuestion(_ context.Context, id int) error {
	return repo.db.withinTx(repo.inTx, func() error {
		return repo.db.write(func(t *tables) error {
			delete(t.questions, id)
			return nil
		})
	})
}

func (repo *catalogRepository) CountQuizAttempts(_ context.Context, quizID int) (count int, _ error) {
	repo.db.read(func(t *tables) {
		for _, a := range t.attempts {
			if a.QuizID == quizID {
				count++
			}
		}
	})
	return count, nil
}
