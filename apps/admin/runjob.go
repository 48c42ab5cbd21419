package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/pkg/errors"

	"github.com/trezcool/quizmaster/core/report"
)

// runJob runs a report job synchronously and prints its RunResult.
func (cli *commandLine) runJob(name string, userID int) error {
	if name == report.JobExportScores && userID < 1 {
		return errors.New("export_scores requires -user")
	}
	runner, err := cli.newRunner()
	if err != nil {
		return errors.Wrap(err, "setting up job runner")
	}

	ctx := context.Background()
	var res report.RunResult
	switch name {
	case report.JobNewQuizReminder:
		res = runner.NewQuizReminder(ctx)
	case report.JobMonthlyReport:
		res = runner.MonthlyActivityReport(ctx)
	case report.JobExportScores:
		res = runner.ExportUserScoresCSV(ctx, userID)
	default:
		return errors.Errorf("%q: no such job", name)
	}

	out, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	if !res.Succeeded() {
		return errors.Errorf("%s failed: %s", name, res.Message)
	}
	return nil
}
