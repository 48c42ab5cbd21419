// Package dashboard builds the read-only home page projection of a user.
package dashboard

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/quizmaster/core"
	"github.com/trezcool/quizmaster/core/attempt"
	"github.com/trezcool/quizmaster/core/catalog"
)

var (
	NowFunc = time.Now // mockable

	upcomingLimit = 5
	recentLimit   = 5
)

type (
	// Repository is the subset of the catalog and attempt stores the dashboard reads.
	Repository interface {
		QueryQuizSummaries(ctx context.Context, filter catalog.QuizFilter) ([]catalog.QuizSummary, error)
		QueryScoreDetails(ctx context.Context, filter attempt.DetailFilter) ([]attempt.ScoreDetail, error)
	}

	UpcomingQuiz struct {
		ID          int       `json:"id"`
		ChapterName string    `json:"chapter_name"`
		SubjectName string    `json:"subject_name"`
		Date        time.Time `json:"date"`
		Duration    string    `json:"duration"`
	}

	RecentScore struct {
		QuizID          int       `json:"quiz_id"`
		ChapterName     string    `json:"chapter_name"`
		ScorePercentage float64   `json:"score_percentage"`
		AttemptedAt     time.Time `json:"attempted_at"`
	}

	Stats struct {
		TotalQuizzesAttempted int     `json:"total_quizzes_attempted"`
		AverageScore          float64 `json:"average_score"`
	}

	Dashboard struct {
		UpcomingQuizzes  []UpcomingQuiz `json:"upcoming_quizzes"`
		RecentScores     []RecentScore  `json:"recent_scores"`
		PerformanceStats Stats          `json:"performance_stats"`
	}

	Service struct {
		repo Repository
	}
)

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Get returns the dashboard of user userID.
func (svc *Service) Get(ctx context.Context, userID int) (Dashboard, error) {
	summaries, err := svc.repo.QueryQuizSummaries(ctx, catalog.QuizFilter{
		ScheduledAfter: NowFunc().UTC(),
		Limit:          upcomingLimit,
	})
	if err != nil {
		return Dashboard{}, errors.Wrap(err, "querying upcoming quizzes")
	}
	details, err := svc.repo.QueryScoreDetails(ctx, attempt.DetailFilter{UserID: userID})
	if err != nil {
		return Dashboard{}, errors.Wrap(err, "querying score details")
	}

	dash := Dashboard{
		UpcomingQuizzes: make([]UpcomingQuiz, 0, len(summaries)),
		RecentScores:    make([]RecentScore, 0, recentLimit),
	}
	for _, qs := range summaries {
		dash.UpcomingQuizzes = append(dash.UpcomingQuizzes, UpcomingQuiz{
			ID:          qs.ID,
			ChapterName: qs.ChapterName,
			SubjectName: qs.SubjectName,
			Date:        qs.DateOfQuiz,
			Duration:    qs.TimeDuration,
		})
	}

	var sum float64
	for i, sd := range details {
		pct := sd.Percentage()
		sum += pct
		if i < recentLimit {
			dash.RecentScores = append(dash.RecentScores, RecentScore{
				QuizID:          sd.QuizID,
				ChapterName:     sd.ChapterName,
				ScorePercentage: pct,
				AttemptedAt:     sd.AttemptedAt(),
			})
		}
	}
	dash.PerformanceStats.TotalQuizzesAttempted = len(details)
	if len(details) > 0 {
		dash.PerformanceStats.AverageScore = core.Round2(sum / float64(len(details)))
	}
	return dash, nil
}
