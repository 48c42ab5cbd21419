package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/trezcool/quizmaster/core/attempt"
	"github.com/trezcool/quizmaster/core/catalog"
	"github.com/trezcool/quizmaster/core/dashboard"
	"github.com/trezcool/quizmaster/core/user"
	dummydb "github.com/trezcool/quizmaster/storage/database/dummy"
)

// Store groups the in-memory repositories of one test.
type Store struct {
	DB       *dummydb.DB
	Users    user.Repository
	Catalog  catalog.Repository
	Attempts attempt.Repository
	Stats    dashboard.Repository
}

func NewStore(t *testing.T) *Store {
	db, err := dummydb.Open()
	if err != nil {
		t.Fatalf("NewStore() failed: %v", err)
	}
	return &Store{
		DB:       db,
		Users:    dummydb.NewUserRepository(db),
		Catalog:  dummydb.NewCatalogRepository(db),
		Attempts: dummydb.NewAttemptRepository(db),
		Stats:    dummydb.NewStatsRepository(db),
	}
}

func CreateUser(
	t *testing.T,
	repo user.Repository,
	fullName, email, pwd string,
	roles []string,
	isActive bool,
	createdAt ...time.Time,
) user.User {
	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	if roles == nil {
		roles = []string{}
	}
	usr := user.User{
		Email:         email,
		FullName:      fullName,
		Qualification: "B.Sc",
		DOB:           "2000-01-02",
		Roles:         roles,
		IsActive:      isActive,
		CreatedAt:     tstamp,
	}
	if pwd != "" {
		if err := usr.SetPassword(pwd); err != nil {
			t.Fatalf("CreateUser() failed: %v", err)
		}
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	return usr
}

func CreateSubject(t *testing.T, repo catalog.Repository, name string) catalog.Subject {
	subj, err := repo.CreateSubject(context.Background(), catalog.Subject{Name: name})
	if err != nil {
		t.Fatalf("CreateSubject() failed: %v", err)
	}
	return subj
}

func CreateChapter(t *testing.T, repo catalog.Repository, subjectID int, name string) catalog.Chapter {
	chap, err := repo.CreateChapter(context.Background(), catalog.Chapter{SubjectID: subjectID, Name: name})
	if err != nil {
		t.Fatalf("CreateChapter() failed: %v", err)
	}
	return chap
}

func CreateQuiz(
	t *testing.T,
	repo catalog.Repository,
	chapterID int,
	date time.Time,
	maxAttempts *int,
	createdAt ...time.Time,
) catalog.Quiz {
	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	quiz, err := repo.CreateQuiz(context.Background(), catalog.Quiz{
		ChapterID:    chapterID,
		DateOfQuiz:   date.UTC(),
		TimeDuration: "00:30",
		MaxAttempts:  maxAttempts,
		CreatedAt:    tstamp,
	})
	if err != nil {
		t.Fatalf("CreateQuiz() failed: %v", err)
	}
	return quiz
}

func CreateQuestion(t *testing.T, repo catalog.Repository, quizID int, statement string, correct int) catalog.Question {
	q, err := repo.CreateQuestion(context.Background(), catalog.Question{
		QuizID:            quizID,
		QuestionStatement: statement,
		Option1:           "A",
		Option2:           "B",
		Option3:           "C",
		Option4:           "D",
		CorrectOption:     correct,
	})
	if err != nil {
		t.Fatalf("CreateQuestion() failed: %v", err)
	}
	return q
}

// CreateCompletedAttempt stores a completed attempt submitted at completedAt.
func CreateCompletedAttempt(
	t *testing.T,
	repo attempt.Repository,
	userID, quizID, number, scored, possible int,
	completedAt time.Time,
) attempt.Attempt {
	completedAt = completedAt.UTC()
	a, err := repo.CreateAttempt(context.Background(), attempt.Attempt{
		UserID:             userID,
		QuizID:             quizID,
		AttemptNumber:      number,
		TotalScored:        scored,
		TotalPossible:      possible,
		TimeStampOfAttempt: &completedAt,
		StartedAt:          completedAt.Add(-10 * time.Minute),
		CompletedAt:        &completedAt,
	})
	if err != nil {
		t.Fatalf("CreateCompletedAttempt() failed: %v", err)
	}
	return a
}
