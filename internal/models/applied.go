package models

// AppliedMigration - строка служебной таблицы примененных миграций.
// Имя таблицы настраивается, поэтому запросы выполняются через db.Table(name).
type AppliedMigration struct {
	Id          int32     `gorm:"column:id;primaryKey"`
	App         string    `gorm:"column:app"`
	Name        string    `gorm:"column:name"`
	AppliedTime Timestamp `gorm:"column:applied_time"`
}
