// model.go this code defines the data model for the application
package datastore

import "time"

// User roles. Curators may edit shared taxonomy data.
const (
	RoleUser    = "user"
	RoleCurator = "curator"
)

// User represents an account holder.
type User struct {
	ID           uint   `gorm:"primaryKey"`
	Email        string `gorm:"uniqueIndex;size:255;not null"`
	PasswordHash string `gorm:"size:100;not null"`
	Name         string `gorm:"size:100"`
	Role         string `gorm:"size:20;default:user"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// IsCurator reports whether the user holds the curator role.
func (u *User) IsCurator() bool {
	return u.Role == RoleCurator
}

// Plant is a shared taxonomy record. Uniqueness over the botanical name is
// enforced case-insensitively by the resolve helpers; the composite index
// backs those lookups.
type Plant struct {
	ID         uint   `gorm:"primaryKey"`
	Family     string `gorm:"size:100;not null;index:idx_plants_taxonomy"`
	Genus      string `gorm:"size:100;not null;index:idx_plants_taxonomy"`
	Species    string `gorm:"size:100;not null;index:idx_plants_taxonomy"`
	Cultivar   string `gorm:"size:100;index:idx_plants_taxonomy"`
	CommonName string `gorm:"size:100;index:idx_plants_common_name"`
	CareGuide  string `gorm:"type:text"`
	IsVerified bool   // set by curators for reviewed taxonomy entries
	CreatedBy  uint   `gorm:"index"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// BotanicalName returns "Genus species 'Cultivar'" for display and matching.
func (p *Plant) BotanicalName() string {
	name := p.Genus + " " + p.Species
	if p.Cultivar != "" {
		name += " '" + p.Cultivar + "'"
	}
	return name
}

// PlantInstance is a user's owned specimen of a taxonomy record with
// care-schedule metadata.
type PlantInstance struct {
	ID                 uint  `gorm:"primaryKey"`
	UserID             uint  `gorm:"index:idx_instances_user;not null"`
	PlantID            uint  `gorm:"index;not null"`
	Plant              Plant `gorm:"foreignKey:PlantID"`
	Nickname           string
	Location           string `gorm:"size:100;index:idx_instances_location"`
	FertilizerSchedule string `gorm:"size:50"` // e.g. "every 4 weeks"
	FertilizerDue      *time.Time
	LastFertilized     *time.Time
	LastRepot          *time.Time
	Notes              string        `gorm:"type:text"`
	Images             string        `gorm:"type:text"` // JSON array of image keys
	// No gorm default; a default tag makes Create drop the zero value, so an
	// explicitly-inactive record would be stored active. Creators set this.
	IsActive           bool          `gorm:"index:idx_instances_user"`
	CareEvents         []CareHistory `gorm:"foreignKey:PlantInstanceID;constraint:OnDelete:CASCADE"`
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// Propagation statuses form a simple lifecycle; only established propagations
// may be promoted to plant instances.
const (
	PropagationStarted     = "started"
	PropagationRooting     = "rooting"
	PropagationPlanted     = "planted"
	PropagationEstablished = "established"
)

// Propagation sources.
const (
	SourceInternal = "internal" // cutting from an owned plant instance
	SourceExternal = "external" // gift, trade or purchase
)

// Propagation tracks a cutting or seedling until it becomes a full instance.
type Propagation struct {
	ID               uint  `gorm:"primaryKey"`
	UserID           uint  `gorm:"index:idx_propagations_user;not null"`
	PlantID          uint  `gorm:"index;not null"`
	Plant            Plant `gorm:"foreignKey:PlantID"`
	ParentInstanceID *uint `gorm:"index"` // set for internal source
	Nickname         string
	Location         string `gorm:"size:100"`
	DateStarted      time.Time
	Status           string `gorm:"size:20;default:started"`
	Source           string `gorm:"size:20;default:internal"`
	ExternalSource   string `gorm:"size:100"` // where an external propagation came from
	Notes            string `gorm:"type:text"`
	Images           string `gorm:"type:text"`
	IsActive         bool   `gorm:"index:idx_propagations_user"`
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Care event types recorded against plant instances.
const (
	CareFertilizer = "fertilizer"
	CareWater      = "water"
	CareRepot      = "repot"
	CarePrune      = "prune"
	CareInspect    = "inspect"
)

// CareHistory records a single care event for a plant instance.
type CareHistory struct {
	ID              uint      `gorm:"primaryKey"`
	PlantInstanceID uint      `gorm:"index;not null"`
	UserID          uint      `gorm:"index"`
	CareType        string    `gorm:"size:20;not null"`
	CareDate        time.Time `gorm:"index"`
	Notes           string    `gorm:"type:text"`
	CreatedAt       time.Time
}

// SearchPreset is a saved set of search filters for a user.
type SearchPreset struct {
	ID        uint   `gorm:"primaryKey"`
	UserID    uint   `gorm:"index:idx_presets_user;not null"`
	Name      string `gorm:"size:100;not null"`
	Filters   string `gorm:"type:text"` // JSON-encoded filter set
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Import lifecycle statuses.
const (
	ImportPending    = "pending"
	ImportProcessing = "processing"
	ImportCompleted  = "completed"
	ImportFailed     = "failed"
)

// Import types determine the expected CSV columns.
const (
	ImportTypeTaxonomy     = "plant_taxonomy"
	ImportTypeInstances    = "plant_instances"
	ImportTypePropagations = "propagations"
)

// ImportRecord tracks the progress and outcome of one CSV import.
type ImportRecord struct {
	ID           uint   `gorm:"primaryKey"`
	UserID       uint   `gorm:"index;not null"`
	ImportType   string `gorm:"size:30;not null"`
	FileName     string `gorm:"size:255"`
	Status       string `gorm:"size:20;default:pending"`
	TotalRows    int
	ImportedRows int
	SkippedRows  int
	RowErrors    string `gorm:"type:text"` // JSON array of per-row errors
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
