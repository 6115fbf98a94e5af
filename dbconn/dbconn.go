// Package dbconn открывает gorm соединение по настройкам из config.
package dbconn

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/Maksumys/app-migrator/config"
	_ "github.com/jackc/pgx/v5/stdlib"
	sqldblogger "github.com/simukti/sqldb-logger"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
	_ "modernc.org/sqlite"
)

// имена database/sql драйверов для каждого диалекта
var driverNames = map[string]string{
	"postgres": "pgx",
	"mysql":    "mysql",
	"sqlite":   "sqlite",
}

// Open открывает соединение. При cfg.Debug каждый запрос пишется в log через sqldb-logger.
func Open(cfg config.Database, log *logrus.Logger) (*gorm.DB, error) {
	driverName, ok := driverNames[cfg.Driver]
	if !ok {
		return nil, fmt.Errorf("unsupported driver %q", cfg.Driver)
	}

	sqlDB, err := sql.Open(driverName, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", cfg.Driver, err)
	}

	if cfg.Debug {
		plain := sqlDB
		sqlDB = sqldblogger.OpenDriver(
			cfg.DSN,
			plain.Driver(),
			logrusAdapter{log: log},
			sqldblogger.WithSQLQueryAsMessage(true),
			sqldblogger.WithMinimumLevel(sqldblogger.LevelDebug),
		)
		_ = plain.Close()
	}

	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	sqlDB.SetConnMaxIdleTime(5 * time.Minute)

	db, err := gorm.Open(dialector(cfg.Driver, sqlDB), &gorm.Config{
		Logger: gormlogger.New(log, gormlogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormLogLevel(log.GetLevel()),
			IgnoreRecordNotFoundError: true,
		}),
	})
	if err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("open gorm %s: %w", cfg.Driver, err)
	}

	return db, nil
}

func dialector(driver string, conn *sql.DB) gorm.Dialector {
	switch driver {
	case "postgres":
		return postgres.New(postgres.Config{Conn: conn})
	case "mysql":
		return mysql.New(mysql.Config{Conn: conn, SkipInitializeWithVersion: true})
	default:
		return sqlite.New(sqlite.Config{DriverName: driverNames["sqlite"], Conn: conn})
	}
}

func gormLogLevel(level logrus.Level) gormlogger.LogLevel {
	switch {
	case level >= logrus.DebugLevel:
		return gormlogger.Info
	case level >= logrus.WarnLevel:
		return gormlogger.Warn
	default:
		return gormlogger.Error
	}
}

// Close закрывает пул соединений gorm.
func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
