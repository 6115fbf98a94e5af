package app_migrator

import "errors"

var (
	// Ошибки планирования: неизвестные идентификаторы.
	ErrAppNameNotExists       = errors.New("app name does not exist")
	ErrMigrationNameNotExists = errors.New("migration name does not exist for app")
	ErrAppNameRequired        = errors.New("app name is required when migration name is set")

	// Ошибки согласованности замен (replaces).
	ErrAppliedMigrationExists   = errors.New("applied migration exists")
	ErrBothMigrationTypeApplied = errors.New("both replacing and replaced migrations are applied")

	ErrPendingMigrationPresent     = errors.New("pending migration present")
	ErrIrreversibleOperation       = errors.New("operation is irreversible")
	ErrFailedToCreateMigrationPlan = errors.New("failed to create migration plan")
	ErrCountGreater                = errors.New("count is greater than number of migrations in plan")
	ErrNonASCIIAlphaNumeric        = errors.New("table prefix must contain only ascii alphanumeric characters or underscore")
	ErrUnsupportedDatabase         = errors.New("unsupported database")

	ErrMigrationAlreadyRegistered = errors.New("migration already registered")
	ErrMigrationNameRequired      = errors.New("migration name is required")
	ErrPlanChanged                = errors.New("migration plan changed before run")
)
