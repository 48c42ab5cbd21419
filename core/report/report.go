package report

import (
	"context"
	"fmt"
	"net/mail"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/quizmaster/core"
	"github.com/trezcool/quizmaster/core/attempt"
	"github.com/trezcool/quizmaster/core/catalog"
	"github.com/trezcool/quizmaster/core/user"
)

// Jobs
const (
	JobNewQuizReminder = "new_quiz_reminder"
	JobMonthlyReport   = "monthly_report"
	JobExportScores    = "export_scores"
)

// Run statuses
const (
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
)

var (
	NowFunc = time.Now // mockable

	newQuizWindow     = 24 * time.Hour
	monthlyReportLag  = 15 // days
	notAvailable      = "N/A"
	errNoMailService  = errors.New("mail service not configured")
	errNothingToClaim = errors.New("empty run key or recipient")
)

type (
	// Repository is the subset of the catalog and attempt stores the jobs read.
	Repository interface {
		QueryQuizSummaries(ctx context.Context, filter catalog.QuizFilter) ([]catalog.QuizSummary, error)
		QueryScoreDetails(ctx context.Context, filter attempt.DetailFilter) ([]attempt.ScoreDetail, error)
	}

	// Users finds the recipients of the jobs.
	Users interface {
		ActiveStudents(ctx context.Context) ([]user.User, error)
		GetByID(ctx context.Context, id int) (user.User, error)
	}

	// Ledger records which recipients a job run already sent to.
	Ledger interface {
		// Claim marks (runKey, recipient) as sent. It returns false if it was already claimed.
		Claim(ctx context.Context, runKey, recipient string) (bool, error)
		// Release forgets a claim, so that a failed send can be retried by a later run.
		Release(ctx context.Context, runKey, recipient string) error
	}

	// ExportDispatcher schedules an asynchronous score export.
	ExportDispatcher interface {
		DispatchExport(ctx context.Context, userID int) error
	}

	// RunResult is the outcome of one job run.
	RunResult struct {
		Job     string `json:"job"`
		RunKey  string `json:"run_key"`
		Status  string `json:"status"`
		Sent    int    `json:"sent"`
		Failed  int    `json:"failed"`
		Skipped int    `json:"skipped"`
		Message string `json:"message"`
	}

	Runner struct {
		repo    Repository
		users   Users
		mailSvc core.EmailService
		ledger  Ledger
		logger  core.Logger
		conf    *core.Config
	}
)

func (res RunResult) Succeeded() bool { return res.Status == StatusSucceeded }

func NewRunner(
	repo Repository,
	users Users,
	mailSvc core.EmailService,
	ledger Ledger,
	logger core.Logger,
	conf *core.Config,
) *Runner {
	return &Runner{
		repo:    repo,
		users:   users,
		mailSvc: mailSvc,
		ledger:  ledger,
		logger:  logger,
		conf:    conf,
	}
}

func (r *Runner) succeed(res RunResult, msg string) RunResult {
	res.Status = StatusSucceeded
	res.Message = msg
	r.logger.Info(fmt.Sprintf("%s [%s]: %s", res.Job, res.RunKey, msg))
	return res
}

func (r *Runner) fail(res RunResult, err error, input map[string]interface{}) RunResult {
	res.Status = StatusFailed
	res.Message = "Task failed: " + err.Error()
	if input == nil {
		input = make(map[string]interface{})
	}
	input["job"] = res.Job
	input["run_key"] = res.RunKey
	r.logger.Error(fmt.Sprintf("%s [%s] failed: %v", res.Job, res.RunKey, err), err, input)
	return res
}

// deliver claims the recipient for the run and sends msg, updating the counters of res.
// A send failure is logged and releases the claim. It never aborts the run.
func (r *Runner) deliver(ctx context.Context, res *RunResult, usr user.User, msg *core.EmailMessage) {
	claimed, err := r.ledger.Claim(ctx, res.RunKey, usr.Email)
	if err != nil {
		res.Failed++
		r.logger.Error(fmt.Sprintf("claiming %s for %s: %v", usr.Email, res.RunKey, err), err, usr)
		return
	}
	if !claimed {
		res.Skipped++
		return
	}

	msg.To = []mail.Address{{Name: usr.FullName, Address: usr.Email}}
	if err = r.mailSvc.Send(ctx, msg); err != nil {
		res.Failed++
		r.logger.Error(fmt.Sprintf("failed to send %s email to %s: %v", res.Job, usr.Email, err), err, usr)
		if rErr := r.ledger.Release(ctx, res.RunKey, usr.Email); rErr != nil {
			r.logger.Error(fmt.Sprintf("releasing %s for %s: %v", usr.Email, res.RunKey, rErr), rErr, usr)
		}
		return
	}
	res.Sent++
}

// NewQuizReminder emails a digest of the quizzes created in the last 24 hours to every active student.
func (r *Runner) NewQuizReminder(ctx context.Context) RunResult {
	now := NowFunc().UTC()
	res := RunResult{Job: JobNewQuizReminder, RunKey: JobNewQuizReminder + ":" + now.Format(core.DateLayout)}
	if r.mailSvc == nil {
		return r.fail(res, errNoMailService, nil)
	}

	since := now.Add(-newQuizWindow)
	quizzes, err := r.repo.QueryQuizSummaries(ctx, catalog.QuizFilter{CreatedFrom: since})
	if err != nil {
		return r.fail(res, errors.Wrap(err, "querying new quizzes"), map[string]interface{}{"since": since})
	}
	if len(quizzes) == 0 {
		return r.succeed(res, "No new quizzes to notify about.")
	}

	students, err := r.users.ActiveStudents(ctx)
	if err != nil {
		return r.fail(res, errors.Wrap(err, "querying active students"), nil)
	}
	if len(students) == 0 {
		return r.succeed(res, "No active students to notify.")
	}

	lines := make([]string, 0, len(quizzes))
	for _, qs := range quizzes {
		lines = append(lines, QuizLine(qs))
	}

	for _, usr := range students {
		if usr.Email == "" {
			res.Skipped++
			continue
		}
		r.deliver(ctx, &res, usr, &core.EmailMessage{
			Subject:      fmt.Sprintf("New Quizzes Available on %s!", r.conf.AppName),
			TemplateName: "new_quiz_reminder",
			TemplateData: map[string]interface{}{"Lines": lines},
		})
	}
	return r.succeed(res, fmt.Sprintf("Sent notifications for %d new quizzes to %d students.", len(quizzes), res.Sent))
}

// QuizLine renders one quiz of the new quiz digest.
func QuizLine(qs catalog.QuizSummary) string {
	subj, chap := qs.SubjectName, qs.ChapterName
	if subj == "" {
		subj = notAvailable
	}
	if chap == "" {
		chap = notAvailable
	}
	return fmt.Sprintf("%s - %s (Quiz ID: %d)", subj, chap, qs.ID)
}

// MonthWindow returns the first and last second (UTC) of the month that was current 15 days before now.
func MonthWindow(now time.Time) (start, end time.Time) {
	target := now.UTC().AddDate(0, 0, -monthlyReportLag)
	start = time.Date(target.Year(), target.Month(), 1, 0, 0, 0, 0, time.UTC)
	end = start.AddDate(0, 1, 0).Add(-time.Second)
	return start, end
}

// MonthlyActivityReport emails every active student with completed attempts in the reported month
// a summary of their activity.
func (r *Runner) MonthlyActivityReport(ctx context.Context) RunResult {
	start, end := MonthWindow(NowFunc())
	res := RunResult{Job: JobMonthlyReport, RunKey: JobMonthlyReport + ":" + start.Format("2006-01")}
	if r.mailSvc == nil {
		return r.fail(res, errNoMailService, nil)
	}

	students, err := r.users.ActiveStudents(ctx)
	if err != nil {
		return r.fail(res, errors.Wrap(err, "querying active students"), nil)
	}
	if len(students) == 0 {
		return r.succeed(res, "No active students to report.")
	}

	month := start.Format("January 2006")
	for _, usr := range students {
		if usr.Email == "" {
			res.Skipped++
			continue
		}
		details, err := r.repo.QueryScoreDetails(ctx, attempt.DetailFilter{
			UserID:            usr.ID,
			CompletedFrom:     start,
			CompletedTo:       end,
			OrderByCompletion: true,
		})
		if err != nil {
			res.Failed++
			r.logger.Error(fmt.Sprintf("querying activity of %s: %v", usr.Email, err), err, usr)
			continue
		}
		if len(details) == 0 {
			res.Skipped++
			continue
		}

		r.deliver(ctx, &res, usr, &core.EmailMessage{
			Subject:      fmt.Sprintf("Your %s Activity Report for %s", r.conf.AppName, month),
			TemplateName: "monthly_report",
			TemplateData: NewActivity(usr, month, details),
		})
	}
	return r.succeed(res, fmt.Sprintf("Finished generating monthly reports for %s: %d sent.", month, res.Sent))
}

// Activity is the monthly report of one student.
type Activity struct {
	FullName      string
	Month         string
	TotalAttempts int
	AverageScore  string
	Lines         []string
}

func NewActivity(usr user.User, month string, details []attempt.ScoreDetail) Activity {
	var scored, possible int
	lines := make([]string, 0, len(details))
	for _, sd := range details {
		scored += sd.TotalScored
		possible += sd.Possible()
		lines = append(lines, ActivityLine(sd))
	}
	return Activity{
		FullName:      usr.FullName,
		Month:         month,
		TotalAttempts: len(details),
		AverageScore:  formatPercentage(core.Percentage(scored, possible)),
		Lines:         lines,
	}
}

// ActivityLine renders one attempt of the monthly report.
func ActivityLine(sd attempt.ScoreDetail) string {
	name := fmt.Sprintf("Quiz ID %d", sd.QuizID)
	if sd.SubjectName != "" && sd.ChapterName != "" {
		name = fmt.Sprintf("%s - %s | %s", sd.SubjectName, sd.ChapterName, name)
	}
	return fmt.Sprintf(
		"%s: %s - Scored %d/%d (%s%%)",
		core.FormatDateTime(sd.AttemptedAt()), name, sd.TotalScored, sd.Possible(), formatPercentage(sd.Percentage()),
	)
}

func formatPercentage(pct float64) string {
	return fmt.Sprintf("%.2f", pct)
}
