package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"

	dig_container "github.com/trezcool/quizmaster/apps/api/di/dig"
	"github.com/trezcool/quizmaster/core"
	"github.com/trezcool/quizmaster/services/jobs"
)

// The worker consumes the job queue and triggers the periodic report jobs.
func main() {
	c := dig_container.New("WORKER")

	must(c.Invoke(func(
		conf *core.Config,
		logger core.Logger,
		db *sqlx.DB,
		rdb *redis.Client,
		pool *jobs.Pool,
		scheduler *jobs.Scheduler,
	) {
		logger.Info(fmt.Sprintf("Worker initializing : version %q", conf.Build))
		defer logger.Info("Worker stopped")

		core.ParseEmailTemplates(logger)

		defer func() {
			if err := db.Close(); err != nil {
				logger.Error(fmt.Sprintf("closing database: %v", err), err)
			}
		}()
		defer func() {
			if err := rdb.Close(); err != nil {
				logger.Error(fmt.Sprintf("closing redis: %v", err), err)
			}
		}()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		pool.Start(ctx)
		scheduler.Start()
		for _, entry := range scheduler.Entries() {
			logger.Info(fmt.Sprintf("next scheduled run: %s", entry.Next.Format(core.DateTimeLayout)))
		}
		logger.Info(fmt.Sprintf("%d workers started", conf.Jobs.Workers))

		shutdown := make(chan os.Signal, 1)
		signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)
		sig := <-shutdown
		logger.Info(fmt.Sprintf("%v: Start shutdown...", sig))

		// let the running triggers enqueue, then stop the workers after their current task
		<-scheduler.Stop().Done()
		cancel()
		pool.Wait()
	}))
}

func must(err error) {
	if err != nil {
		log.Fatal(err)
	}
}
