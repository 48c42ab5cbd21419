package jobs

import (
	"context"

	"github.com/pkg/errors"

	"github.com/trezcool/quizmaster/core"
	"github.com/trezcool/quizmaster/core/report"
)

// RegisterReportHandlers binds the report jobs to their task types.
// A failed run is returned as an error so that the pool logs it.
func RegisterReportHandlers(pool *Pool, runner *report.Runner) {
	pool.Handle(report.JobNewQuizReminder, func(ctx context.Context, _ Task) error {
		return runError(runner.NewQuizReminder(ctx))
	})
	pool.Handle(report.JobMonthlyReport, func(ctx context.Context, _ Task) error {
		return runError(runner.MonthlyActivityReport(ctx))
	})
	pool.Handle(report.JobExportScores, func(ctx context.Context, task Task) error {
		var payload report.ExportPayload
		if err := task.Decode(&payload); err != nil {
			return err
		}
		return runError(runner.ExportUserScoresCSV(ctx, payload.UserID))
	})
}

func runError(res report.RunResult) error {
	if res.Succeeded() {
		return nil
	}
	return errors.Errorf("%s [%s]: %s", res.Job, res.RunKey, res.Message)
}

// ScheduleReports registers the periodic report jobs on the scheduler.
func ScheduleReports(s *Scheduler, conf *core.Config) error {
	if err := s.Add(conf.Jobs.NewQuizCron, report.JobNewQuizReminder); err != nil {
		return err
	}
	return s.Add(conf.Jobs.MonthlyReportCron, report.JobMonthlyReport)
}

// ExportDispatcher enqueues the score export tasks.
type ExportDispatcher struct {
	queue Queue
}

var _ report.ExportDispatcher = (*ExportDispatcher)(nil)

func NewExportDispatcher(queue Queue) *ExportDispatcher {
	return &ExportDispatcher{queue: queue}
}

func (d *ExportDispatcher) DispatchExport(ctx context.Context, userID int) error {
	_, err := Enqueue(ctx, d.queue, report.JobExportScores, report.ExportPayload{UserID: userID})
	return err
}
