package dig_container

import (
	"context"
	"fmt"
	"log"
	"os"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/dig"

	echoapi "github.com/trezcool/quizmaster/apps/api/echo"
	"github.com/trezcool/quizmaster/core"
	"github.com/trezcool/quizmaster/core/attempt"
	"github.com/trezcool/quizmaster/core/catalog"
	"github.com/trezcool/quizmaster/core/dashboard"
	"github.com/trezcool/quizmaster/core/report"
	"github.com/trezcool/quizmaster/core/user"
	emailsvc "github.com/trezcool/quizmaster/services/email"
	"github.com/trezcool/quizmaster/services/jobs"
	logsvc "github.com/trezcool/quizmaster/services/logger"
	"github.com/trezcool/quizmaster/storage/database"
	sqlxrepos "github.com/trezcool/quizmaster/storage/database/sqlx"
	redisstore "github.com/trezcool/quizmaster/storage/redis"
)

// KeyPrefix namespaces the Redis keys of the application.
const KeyPrefix = "quizmaster"

type DBLoggerParam struct {
	dig.In
	Logger core.Logger `name:"dbLogger"`
}

// ServerParam gathers the dependencies of the API server.
type ServerParam struct {
	dig.In
	Conf         *core.Config
	Logger       core.Logger
	UserSvc      *user.Service
	CatalogSvc   *catalog.Service
	AttemptSvc   *attempt.Service
	DashboardSvc *dashboard.Service
	Exporter     report.ExportDispatcher
	Revoker      echoapi.TokenRevoker
	Validate     *validator.Validate
	Translator   ut.Translator
}

func newLogger(process string) func(conf *core.Config) core.Logger {
	return func(conf *core.Config) core.Logger {
		stdLogger := log.New(os.Stdout, process+" : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
		logger := logsvc.NewRollbarLogger(stdLogger, conf)
		logger.Enable(!conf.Debug)
		return logger
	}
}

func newDBLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stdout, "DB : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	logger := logsvc.NewRollbarLogger(stdLogger, conf)
	logger.Enable(!conf.Debug)
	return logger
}

func newDB(conf *core.Config, loggerParam DBLoggerParam) *sqlx.DB {
	setUp := func() (*sqlx.DB, error) {
		if err := database.CreateIfNotExist(conf); err != nil {
			return nil, err
		}

		db, err := database.Open(conf)
		if err != nil {
			return nil, err
		}

		if err = database.Migrate(db); err != nil {
			_ = db.Close()
			return nil, err
		}
		return db, nil
	}

	db, err := setUp()
	if err != nil {
		loggerParam.Logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	return db
}

func newRedis(conf *core.Config, logger core.Logger) *redis.Client {
	ctx, cancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout*4)
	defer cancel()

	rdb, err := redisstore.Open(ctx, conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("connecting to redis: %v", err), err)
	}
	return rdb
}

func newQueue(conf *core.Config, rdb *redis.Client) jobs.Queue {
	return jobs.NewRedisQueue(rdb, conf.Jobs.QueueKey)
}

func newRevoker(rdb *redis.Client) echoapi.TokenRevoker {
	return redisstore.NewTokenRevoker(rdb, KeyPrefix)
}

func newLedger(conf *core.Config, rdb *redis.Client) report.Ledger {
	return jobs.NewRedisLedger(rdb, KeyPrefix, conf.Jobs.LedgerTTL)
}

// the stats repository serves the report reads as well
func newReportRepository(repo dashboard.Repository) report.Repository {
	return repo
}

func newReportUsers(svc *user.Service) report.Users {
	return svc
}

func newPool(conf *core.Config, queue jobs.Queue, logger core.Logger, runner *report.Runner) *jobs.Pool {
	pool := jobs.NewPool(queue, logger, conf.Jobs.Workers)
	jobs.RegisterReportHandlers(pool, runner)
	return pool
}

func newScheduler(conf *core.Config, queue jobs.Queue, logger core.Logger) (*jobs.Scheduler, error) {
	s := jobs.NewScheduler(queue, logger)
	if err := jobs.ScheduleReports(s, conf); err != nil {
		return nil, err
	}
	return s, nil
}

func newServer(p ServerParam) *echoapi.Server {
	return echoapi.NewServer(echoapi.ServerDeps{
		Conf:         p.Conf,
		Logger:       p.Logger,
		UserSvc:      p.UserSvc,
		CatalogSvc:   p.CatalogSvc,
		AttemptSvc:   p.AttemptSvc,
		DashboardSvc: p.DashboardSvc,
		Exporter:     p.Exporter,
		Revoker:      p.Revoker,
		Validate:     p.Validate,
		Translator:   p.Translator,
	})
}

// New returns a new dependency injection dig.Container.
// process prefixes the log lines of the main logger (API, WORKER).
func New(process string) *dig.Container {
	c := dig.New()

	must(c.Provide(core.NewConfig))
	must(c.Provide(newLogger(process)))
	must(c.Provide(newDBLogger, dig.Name("dbLogger")))
	must(c.Provide(newDB))
	must(c.Provide(newRedis))
	must(c.Provide(emailsvc.NewService))

	// repositories
	must(c.Provide(sqlxrepos.NewUserRepository))
	must(c.Provide(sqlxrepos.NewCatalogRepository))
	must(c.Provide(sqlxrepos.NewAttemptRepository))
	must(c.Provide(sqlxrepos.NewStatsRepository))
	must(c.Provide(newReportRepository))

	// services
	must(c.Provide(user.NewService))
	must(c.Provide(catalog.NewService))
	must(c.Provide(attempt.NewService))
	must(c.Provide(dashboard.NewService))
	must(c.Provide(newReportUsers))

	// jobs
	must(c.Provide(newQueue))
	must(c.Provide(newLedger))
	must(c.Provide(report.NewRunner))
	must(c.Provide(jobs.NewExportDispatcher, dig.As(new(report.ExportDispatcher))))
	must(c.Provide(newPool))
	must(c.Provide(newScheduler))

	must(c.Provide(validator.New))
	must(c.Provide(core.NewTranslator))
	must(c.Provide(newRevoker))
	must(c.Provide(newServer))

	return c
}

// must exits program if err happened
func must(err error) {
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to provide dependency").Error())
	}
}
