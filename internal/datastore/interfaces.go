// interfaces.go: this code defines the interface for the database operations
package datastore

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/fancyplanties/fancy-planties/internal/conf"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Interface abstracts the underlying database implementation and defines the
// operations available to the rest of the application.
type Interface interface {
	Open() error
	Close() error
	SetMetrics(m *Metrics)

	// Users
	CreateUser(user *User) error
	GetUser(id uint) (User, error)
	GetUserByEmail(email string) (User, error)
	UpdateUser(user *User) error
	CountUsers() (int64, error)

	// Plant taxonomy
	CreatePlant(plant *Plant) error
	GetPlant(id uint) (Plant, error)
	UpdatePlant(plant *Plant) error
	DeletePlant(id uint) error
	ListPlants(offset, limit int) ([]Plant, int64, error)
	AllPlants() ([]Plant, error)
	FindPlant(family, genus, species, cultivar string) (Plant, error)
	ResolveOrCreatePlant(plant *Plant) (Plant, bool, error)

	// Plant instances
	CreatePlantInstance(instance *PlantInstance) error
	GetPlantInstance(userID, id uint) (PlantInstance, error)
	UpdatePlantInstance(instance *PlantInstance) error
	DeletePlantInstance(userID, id uint) error
	FilterPlantInstances(userID uint, filters *InstanceFilters) ([]PlantInstance, int64, error)
	InstanceFacets(userID uint) (Facets, error)

	// Care history
	AddCareEvent(event *CareHistory) error
	GetCareHistory(userID, instanceID uint) ([]CareHistory, error)

	// Propagations
	CreatePropagation(prop *Propagation) error
	GetPropagation(userID, id uint) (Propagation, error)
	UpdatePropagation(prop *Propagation) error
	DeletePropagation(userID, id uint) error
	ListPropagations(userID uint, activeOnly bool) ([]Propagation, error)
	PromotePropagation(userID, id uint, instance *PlantInstance) error

	// Search presets
	SaveSearchPreset(preset *SearchPreset) error
	ListSearchPresets(userID uint) ([]SearchPreset, error)
	DeleteSearchPreset(userID, id uint) error

	// CSV imports
	CreateImportRecord(record *ImportRecord) error
	UpdateImportRecord(record *ImportRecord) error
	GetImportRecord(userID, id uint) (ImportRecord, error)
	ListImportRecords(userID uint, limit int) ([]ImportRecord, error)
}

// InstanceFilters narrows FilterPlantInstances results. Zero values mean
// "no constraint" except ActiveOnly which defaults to including everything.
type InstanceFilters struct {
	PlantID      uint
	Location     string
	ActiveOnly   bool
	InactiveOnly bool
	OverdueOnly  bool // fertilizer_due in the past
	DateStart    string
	DateEnd      string
	Page         int
	PerPage      int
	SortBy       string
}

// Facets holds per-field counts over a user's collection.
type Facets struct {
	ByFamily   map[string]int `json:"by_family"`
	ByLocation map[string]int `json:"by_location"`
	Active     int            `json:"active"`
	Inactive   int            `json:"inactive"`
	Overdue    int            `json:"overdue"`
}

// DataStore implements Interface using a GORM database.
type DataStore struct {
	DB      *gorm.DB // GORM database instance
	metrics *Metrics // optional operation metrics
}

// New creates a new datastore instance based on the configured backend.
func New(settings *conf.Settings) Interface {
	switch {
	case settings.Database.SQLite.Enabled:
		return &SQLiteStore{
			Settings: settings,
		}
	case settings.Database.MySQL.Enabled:
		return &MySQLStore{
			Settings: settings,
		}
	default:
		// Settings validation rejects this before we get here
		return nil
	}
}

// performAutoMigration automates database migrations with error handling.
func performAutoMigration(db *gorm.DB, debug bool, dbType, connectionInfo string) error {
	if err := db.AutoMigrate(&User{}, &Plant{}, &PlantInstance{}, &Propagation{},
		&CareHistory{}, &SearchPreset{}, &ImportRecord{}); err != nil {
		return fmt.Errorf("failed to auto-migrate %s database: %w", dbType, err)
	}

	if debug {
		log.Printf("%s database connection initialized: %s", dbType, connectionInfo)
	}

	return nil
}

// createGormLogger configures and returns a new GORM logger instance.
func createGormLogger() logger.Interface {
	return logger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		logger.Config{
			SlowThreshold: 200 * time.Millisecond,
			LogLevel:      logger.Warn,
			Colorful:      true,
		},
	)
}

// sortAscendingString returns "ASC" or "DESC" based on the boolean input.
func sortAscendingString(asc bool) string {
	if asc {
		return "ASC"
	}
	return "DESC"
}
