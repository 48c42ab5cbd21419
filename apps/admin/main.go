package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/trezcool/quizmaster/core"
	"github.com/trezcool/quizmaster/core/report"
	"github.com/trezcool/quizmaster/core/user"
	emailsvc "github.com/trezcool/quizmaster/services/email"
	"github.com/trezcool/quizmaster/services/jobs"
	logsvc "github.com/trezcool/quizmaster/services/logger"
	"github.com/trezcool/quizmaster/storage/database"
	sqlxrepos "github.com/trezcool/quizmaster/storage/database/sqlx"
	redisstore "github.com/trezcool/quizmaster/storage/redis"
)

const keyPrefix = "quizmaster"

func main() {
	conf := core.NewConfig()

	logger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	logger.Enable(!conf.Debug)

	// set up DB
	errAndDie(logger, database.CreateIfNotExist(conf))
	db, err := database.Open(conf)
	errAndDie(logger, err)

	usrRepo := sqlxrepos.NewUserRepository(db)
	usrSvc := user.NewService(usrRepo)

	// start CLI
	cli := commandLine{
		db:      db.DB,
		usrSvc:  usrSvc,
		usrRepo: usrRepo,
		newRunner: func() (*report.Runner, error) {
			rdb, err := redisstore.Open(context.Background(), conf)
			if err != nil {
				return nil, err
			}
			core.ParseEmailTemplates(logger)
			return report.NewRunner(
				sqlxrepos.NewStatsRepository(db),
				usrSvc,
				emailsvc.NewService(conf, logger),
				jobs.NewRedisLedger(rdb, keyPrefix, conf.Jobs.LedgerTTL),
				logger,
				conf,
			), nil
		},
	}
	err = cli.run(os.Args)
	_ = db.Close()
	if err != nil {
		if err != errHelp {
			logger.Error(fmt.Sprintf("\nerror: %s\n", err), err)
		}
		os.Exit(1)
	}
}

func errAndDie(logger core.Logger, err error) {
	if err != nil {
		logger.Fatal(err.Error(), err)
	}
}
