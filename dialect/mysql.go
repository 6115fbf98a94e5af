package dialect

import (
	"context"
	"database/sql"
	"fmt"

	migrator "github.com/Maksumys/app-migrator"
	"gorm.io/gorm"
)

const mysqlCreateTable = `CREATE TABLE IF NOT EXISTS %s (
	id INT PRIMARY KEY NOT NULL AUTO_INCREMENT,
	app VARCHAR(384) NOT NULL,
	name VARCHAR(384) NOT NULL,
	applied_time TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
	UNIQUE (app, name)
)`

// MySQL использует именованную блокировку GET_LOCK с именем текущей базы.
type MySQL struct {
	bookkeeping
}

var _ migrator.DatabaseOperation = MySQL{}

func NewMySQL() MySQL {
	return MySQL{bookkeeping: bookkeeping{createTable: mysqlCreateTable}}
}

func (m MySQL) Lock(ctx context.Context, db *gorm.DB) error {
	name, err := currentDatabase(ctx, db, "SELECT DATABASE()")
	if err != nil {
		return err
	}

	var acquired sql.NullInt64
	if err = db.WithContext(ctx).Raw("SELECT GET_LOCK(?, -1)", name).Row().Scan(&acquired); err != nil {
		return fmt.Errorf("get_lock: %w", err)
	}
	if !acquired.Valid || acquired.Int64 != 1 {
		return fmt.Errorf("get_lock: lock %q was not acquired", name)
	}
	return nil
}

func (m MySQL) Unlock(ctx context.Context, db *gorm.DB) error {
	name, err := currentDatabase(ctx, db, "SELECT DATABASE()")
	if err != nil {
		return err
	}
	if err = db.WithContext(ctx).Exec("SELECT RELEASE_LOCK(?)", name).Error; err != nil {
		return fmt.Errorf("release_lock: %w", err)
	}
	return nil
}
