package core

import (
	"log"
	"net"
	"net/mail"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type (
	ServerConfig struct {
		Host            string
		DebugHost       string
		ShutdownTimeout time.Duration
	}

	DatabaseConfig struct {
		Engine        string
		Host          string
		Port          int
		Name          string
		User          string
		Password      string
		AdminUser     string
		AdminPassword string
		DisableTLS    bool
	}

	RedisConfig struct {
		Addr     string
		Password string
		DB       int
	}

	JobsConfig struct {
		Workers           int
		Inline            bool // run the worker pool inside the API process
		QueueKey          string
		LedgerTTL         time.Duration
		NewQuizCron       string
		MonthlyReportCron string
	}

	AttemptsConfig struct {
		// Tracking enables resumable attempts and max_attempts enforcement.
		// When disabled, every submission is recorded as a new completed attempt.
		Tracking bool
	}

	Config struct {
		Env                string
		Build              string
		AppName            string
		Debug              bool
		TestMode           bool
		SecretKey          string
		JWTExpirationDelta time.Duration
		FrontendBaseURL    string
		DefaultFromName    string
		DefaultFromAddress string
		SendgridApiKey     string
		RollbarToken       string
		Server             ServerConfig
		Database           DatabaseConfig
		Redis              RedisConfig
		Jobs               JobsConfig
		Attempts           AttemptsConfig
	}
)

func (db DatabaseConfig) Address() string {
	return net.JoinHostPort(db.Host, strconv.Itoa(db.Port))
}

func (conf Config) DefaultFromEmail() mail.Address {
	return mail.Address{Name: conf.DefaultFromName, Address: conf.DefaultFromAddress}
}

// NewConfig loads the configuration for the current ENV (DEV by default) from the environment,
// after loading `config/.env.<env>` if it exists.
func NewConfig() *Config {
	v := viper.New()

	// defaults
	v.SetTypeByDefaultValue(true)
	v.SetDefault("build", "develop")
	v.SetDefault("debug", true)
	v.SetDefault("testMode", false)
	v.SetDefault("appName", "Quiz Master")
	v.SetDefault("secretKey", "9d!x)k2v$+quiz=master&w#r1(t7p@u*e%h^m0y_s4n6b8c")
	v.SetDefault("jwtExpirationDelta", 24*time.Hour)
	v.SetDefault("frontendBaseURL", "http://localhost:8080")
	v.SetDefault("defaultFromName", "Quiz Master")
	v.SetDefault("defaultFromAddress", "noreply@localhost")
	v.SetDefault("sendgridApiKey", "")
	v.SetDefault("rollbarToken", "")
	v.SetDefault("serverHost", ":8000")
	v.SetDefault("serverDebugHost", ":4000")
	v.SetDefault("serverShutdownTimeout", 5*time.Second)
	v.SetDefault("dbEngine", "postgres")
	v.SetDefault("dbHost", "localhost")
	v.SetDefault("dbPort", 5432)
	v.SetDefault("dbName", "quizmaster")
	v.SetDefault("dbUser", "quizmaster")
	v.SetDefault("dbPassword", "quizmaster")
	v.SetDefault("dbAdminUser", "postgres")
	v.SetDefault("dbAdminPassword", "postgres")
	v.SetDefault("dbDisableTLS", true)
	v.SetDefault("redisAddr", "localhost:6379")
	v.SetDefault("redisPassword", "")
	v.SetDefault("redisDB", 0)
	v.SetDefault("jobsWorkers", 4)
	v.SetDefault("jobsInline", false)
	v.SetDefault("jobsQueueKey", "quizmaster:jobs")
	v.SetDefault("jobsLedgerTTL", 40*24*time.Hour)
	v.SetDefault("jobsNewQuizCron", "0 8 * * *")       // daily
	v.SetDefault("jobsMonthlyReportCron", "0 9 1 * *") // 1st of each month
	v.SetDefault("attemptsTracking", true)

	env := strings.ToUpper(os.Getenv("ENV")) // DEV (local; default), TEST, QA, PROD
	switch env {
	case "":
		env = "DEV"
	case "TEST":
		v.SetDefault("testMode", true)
	}
	v.SetEnvPrefix(env)

	// load .env if it exists (ignore if it does not)
	wd, err := os.Getwd()
	if err != nil {
		log.Fatalf("config.os.Getwd(): %v", err)
	}
	dotEnvPath := filepath.Join(wd, "config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	v.AutomaticEnv()

	return &Config{
		Env:                env,
		Build:              v.GetString("build"),
		AppName:            v.GetString("appName"),
		Debug:              v.GetBool("debug"),
		TestMode:           v.GetBool("testMode"),
		SecretKey:          v.GetString("secretKey"),
		JWTExpirationDelta: v.GetDuration("jwtExpirationDelta"),
		FrontendBaseURL:    v.GetString("frontendBaseURL"),
		DefaultFromName:    v.GetString("defaultFromName"),
		DefaultFromAddress: v.GetString("defaultFromAddress"),
		SendgridApiKey:     v.GetString("sendgridApiKey"),
		RollbarToken:       v.GetString("rollbarToken"),
		Server: ServerConfig{
			Host:            v.GetString("serverHost"),
			DebugHost:       v.GetString("serverDebugHost"),
			ShutdownTimeout: v.GetDuration("serverShutdownTimeout"),
		},
		Database: DatabaseConfig{
			Engine:        v.GetString("dbEngine"),
			Host:          v.GetString("dbHost"),
			Port:          v.GetInt("dbPort"),
			Name:          v.GetString("dbName"),
			User:          v.GetString("dbUser"),
			Password:      v.GetString("dbPassword"),
			AdminUser:     v.GetString("dbAdminUser"),
			AdminPassword: v.GetString("dbAdminPassword"),
			DisableTLS:    v.GetBool("dbDisableTLS"),
		},
		Redis: RedisConfig{
			Addr:     v.GetString("redisAddr"),
			Password: v.GetString("redisPassword"),
			DB:       v.GetInt("redisDB"),
		},
		Jobs: JobsConfig{
			Workers:           v.GetInt("jobsWorkers"),
			Inline:            v.GetBool("jobsInline"),
			QueueKey:          v.GetString("jobsQueueKey"),
			LedgerTTL:         v.GetDuration("jobsLedgerTTL"),
			NewQuizCron:       v.GetString("jobsNewQuizCron"),
			MonthlyReportCron: v.GetString("jobsMonthlyReportCron"),
		},
		Attempts: AttemptsConfig{
			Tracking: v.GetBool("attemptsTracking"),
		},
	}
}
