package config

import (
	"database/sql"
	"io"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	mysqldriver "github.com/go-sql-driver/mysql"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/gorm/schema"
)

var (
	db *gorm.DB
)

func GetDB() *gorm.DB {
	return db
}

// SetDB installs an already opened connection (tests, tools running against sqlite).
func SetDB(conn *gorm.DB) {
	db = conn
}

func init() {
	godotenv.Load()
}

// ledgerDSN builds the MySQL DSN from DB_USER, DB_PASSWORD, DB_HOST, DB_PORT and DB_NAME.
// A DB_HOST starting with "/" is a unix socket.
func ledgerDSN() string {
	cfg := mysqldriver.NewConfig()
	cfg.User = os.Getenv("DB_USER")
	cfg.Passwd = os.Getenv("DB_PASSWORD")
	cfg.DBName = os.Getenv("DB_NAME")
	cfg.ParseTime = true
	cfg.MultiStatements = true
	cfg.Loc = time.Local

	host := os.Getenv("DB_HOST")
	if strings.HasPrefix(host, "/") {
		cfg.Net = "unix"
		cfg.Addr = host
	} else {
		cfg.Net = "tcp"
		cfg.Addr = host + ":" + os.Getenv("DB_PORT")
	}
	return cfg.FormatDSN()
}

// ConnectDatabaseWithRetry blocks until the ledger database answers and sets the global DB.
func ConnectDatabaseWithRetry() {
	dsn := ledgerDSN()
	for attempt := 1; ; attempt++ {
		conn, err := gorm.Open(mysql.Open(dsn), initConfig())
		if err == nil {
			if sqlDB, derr := conn.DB(); derr == nil && sqlDB != nil {
				tunePool(sqlDB)
			}
			InstallPlugins(conn)
			db = conn
			GetLogger().WithFields(logrus.Fields{"field": "database", "attempt": attempt}).Info("connected to ledger database")
			return
		}

		wait := retryDelay(attempt)
		GetLogger().WithFields(logrus.Fields{"field": "database", "attempt": attempt, "retry_in": wait.String()}).
			Warn("failed to connect database: " + err.Error())
		time.Sleep(wait)
	}
}

// retryDelay doubles from 2s and caps at 30s.
func retryDelay(attempt int) time.Duration {
	if attempt > 5 {
		attempt = 5
	}
	wait := time.Second * time.Duration(1<<attempt)
	if wait > 30*time.Second {
		wait = 30 * time.Second
	}
	return wait
}

// tunePool applies the optional pool overrides:
// - DB_MAX_OPEN_CONNS (default 20)
// - DB_MAX_IDLE_CONNS (default 10)
// - DB_CONN_MAX_LIFETIME_SECONDS (default 300)
// - DB_CONN_MAX_IDLE_TIME_SECONDS (default 60)
func tunePool(sqlDB *sql.DB) {
	if n := intFromEnv("DB_MAX_OPEN_CONNS", 20); n > 0 {
		sqlDB.SetMaxOpenConns(n)
	}
	if n := intFromEnv("DB_MAX_IDLE_CONNS", 10); n >= 0 {
		sqlDB.SetMaxIdleConns(n)
	}
	if s := intFromEnv("DB_CONN_MAX_LIFETIME_SECONDS", 300); s > 0 {
		sqlDB.SetConnMaxLifetime(time.Duration(s) * time.Second)
	}
	if s := intFromEnv("DB_CONN_MAX_IDLE_TIME_SECONDS", 60); s > 0 {
		sqlDB.SetConnMaxIdleTime(time.Duration(s) * time.Second)
	}
}

// InstallPlugins registers tracing and company scoping on a connection.
func InstallPlugins(conn *gorm.DB) {
	if err := conn.Use(otelgorm.NewPlugin()); err != nil {
		LogError(GetLogger(), "database.go", "InstallPlugins", "otelgorm", nil, err)
	}
	if err := conn.Use(NewCompanyGuardPlugin()); err != nil {
		LogError(GetLogger(), "database.go", "InstallPlugins", "company guard", nil, err)
	}
}

// GormConfig is the configuration every ledger connection is opened with.
func GormConfig() *gorm.Config {
	return initConfig()
}

func intFromEnv(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func initConfig() *gorm.Config {
	return &gorm.Config{
		Logger:         WriteGormLog(),
		NamingStrategy: initNamingStrategy(),
	}
}

func initLog() logger.Interface {
	return logger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		logger.Config{
			LogLevel:                  logger.Error,
			SlowThreshold:             time.Second,
			IgnoreRecordNotFoundError: true,
		},
	)
}

// Tartan table names are fixed six letter names (genmst, drstrn, ...) set through TableName().
func initNamingStrategy() *schema.NamingStrategy {
	return &schema.NamingStrategy{SingularTable: true}
}

// WriteGormLog sends SQL at info level to GORM_LOG when it is set.
func WriteGormLog() logger.Interface {
	path := os.Getenv("GORM_LOG")
	if path == "" {
		return initLog()
	}
	f, err := os.Create(path)
	if err != nil {
		return initLog()
	}
	return logger.New(log.New(io.MultiWriter(f), "\r\n", log.LstdFlags), logger.Config{
		LogLevel:      logger.Info,
		SlowThreshold: time.Second,
	})
}
