package storage

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/MarkoPoloResearchLab/testimonial_svc/internal/model"
)

const (
	DriverNameSQLite   = "sqlite"
	DriverNamePostgres = "postgres"

	postgresMaxOpenConnections = 20
	postgresMaxIdleConnections = 5
	postgresConnectionIdleTime = 5 * time.Minute

	openDatabaseMessage = "storage: open %s database"
)

var (
	ErrMissingDatabaseDriverName = errors.New("storage: missing database driver name")
	ErrUnsupportedDatabaseDriver = errors.New("storage: unsupported database driver")
	ErrMissingDataSourceName     = errors.New("storage: missing database data source name")
)

// driver pairs a gorm dialector constructor with the pool limits applied after opening.
type driver struct {
	dialector          func(dataSourceName string) gorm.Dialector
	maxOpenConnections int
	maxIdleConnections int
	idleTime           time.Duration
}

// SQLite keeps database/sql defaults; shared in-memory databases vanish once every connection closes.
var drivers = map[string]driver{
	DriverNameSQLite: {dialector: sqlite.Open},
	DriverNamePostgres: {
		dialector:          postgres.Open,
		maxOpenConnections: postgresMaxOpenConnections,
		maxIdleConnections: postgresMaxIdleConnections,
		idleTime:           postgresConnectionIdleTime,
	},
}

// Config selects the driver and data source for OpenDatabase.
type Config struct {
	DriverName     string
	DataSourceName string
}

// OpenDatabase opens the configured database with gorm error translation enabled, so unique
// violations surface as gorm.ErrDuplicatedKey on both drivers.
func OpenDatabase(configuration Config) (*gorm.DB, error) {
	driverName := strings.ToLower(strings.TrimSpace(configuration.DriverName))
	if driverName == "" {
		return nil, ErrMissingDatabaseDriverName
	}
	selected, supported := drivers[driverName]
	if !supported {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedDatabaseDriver, driverName)
	}
	dataSourceName := strings.TrimSpace(configuration.DataSourceName)
	if dataSourceName == "" {
		return nil, ErrMissingDataSourceName
	}

	database, openErr := gorm.Open(selected.dialector(dataSourceName), &gorm.Config{TranslateError: true})
	if openErr != nil {
		return nil, fmt.Errorf(openDatabaseMessage+": %w", driverName, openErr)
	}
	if poolErr := selected.configurePool(database); poolErr != nil {
		return nil, fmt.Errorf(openDatabaseMessage+": %w", driverName, poolErr)
	}
	return database, nil
}

func (selected driver) configurePool(database *gorm.DB) error {
	if selected.maxOpenConnections == 0 {
		return nil
	}
	sqlDatabase, err := database.DB()
	if err != nil {
		return err
	}
	sqlDatabase.SetMaxOpenConns(selected.maxOpenConnections)
	sqlDatabase.SetMaxIdleConns(selected.maxIdleConnections)
	sqlDatabase.SetConnMaxIdleTime(selected.idleTime)
	return nil
}

// AutoMigrate creates or updates every table and repairs legacy testimonial rows.
func AutoMigrate(database *gorm.DB) error {
	if err := database.AutoMigrate(
		&model.Project{},
		&model.Group{},
		&model.Testimonial{},
		&model.Form{},
		&model.FormSubmission{},
	); err != nil {
		return err
	}
	return backfillTestimonialDefaults(database)
}

// NewID returns a random UUID string for primary keys.
func NewID() string {
	return uuid.NewString()
}
