package datastore

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
)

// ErrPlantInUse is returned when deleting a taxonomy record that is still
// referenced by plant instances or propagations.
var ErrPlantInUse = errors.New("plant is referenced by existing records")

// CreatePlant inserts a new taxonomy record.
func (ds *DataStore) CreatePlant(plant *Plant) error {
	normalizePlant(plant)
	if err := ds.DB.Create(plant).Error; err != nil {
		return fmt.Errorf("creating plant: %w", err)
	}
	return nil
}

// GetPlant retrieves a taxonomy record by id.
func (ds *DataStore) GetPlant(id uint) (Plant, error) {
	var plant Plant
	if err := ds.DB.First(&plant, id).Error; err != nil {
		return Plant{}, fmt.Errorf("getting plant %d: %w", id, err)
	}
	return plant, nil
}

// UpdatePlant persists changes to a taxonomy record.
func (ds *DataStore) UpdatePlant(plant *Plant) error {
	normalizePlant(plant)
	if err := ds.DB.Save(plant).Error; err != nil {
		return fmt.Errorf("updating plant %d: %w", plant.ID, err)
	}
	return nil
}

// DeletePlant removes a taxonomy record. Records still referenced by plant
// instances or propagations are protected.
func (ds *DataStore) DeletePlant(id uint) error {
	var refs int64
	if err := ds.DB.Model(&PlantInstance{}).Where("plant_id = ?", id).Count(&refs).Error; err != nil {
		return fmt.Errorf("checking plant references: %w", err)
	}
	if refs == 0 {
		if err := ds.DB.Model(&Propagation{}).Where("plant_id = ?", id).Count(&refs).Error; err != nil {
			return fmt.Errorf("checking plant references: %w", err)
		}
	}
	if refs > 0 {
		return fmt.Errorf("plant %d is referenced by %d records: %w", id, refs, ErrPlantInUse)
	}
	result := ds.DB.Delete(&Plant{}, id)
	if result.Error != nil {
		return fmt.Errorf("deleting plant %d: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("deleting plant %d: %w", id, gorm.ErrRecordNotFound)
	}
	return nil
}

// ListPlants returns a page of taxonomy records and the total count.
func (ds *DataStore) ListPlants(offset, limit int) ([]Plant, int64, error) {
	var total int64
	if err := ds.DB.Model(&Plant{}).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("counting plants: %w", err)
	}

	var plants []Plant
	err := ds.DB.Order("genus ASC, species ASC, cultivar ASC").
		Limit(limit).
		Offset(offset).
		Find(&plants).Error
	if err != nil {
		return nil, 0, fmt.Errorf("listing plants: %w", err)
	}
	return plants, total, nil
}

// AllPlants returns every taxonomy record, used by the search index.
func (ds *DataStore) AllPlants() ([]Plant, error) {
	var plants []Plant
	if err := ds.DB.Find(&plants).Error; err != nil {
		return nil, fmt.Errorf("loading plants: %w", err)
	}
	return plants, nil
}

// FindPlant looks up a taxonomy record case-insensitively by botanical name.
func (ds *DataStore) FindPlant(family, genus, species, cultivar string) (Plant, error) {
	var plant Plant
	err := ds.DB.Where(
		"LOWER(family) = ? AND LOWER(genus) = ? AND LOWER(species) = ? AND LOWER(cultivar) = ?",
		strings.ToLower(strings.TrimSpace(family)),
		strings.ToLower(strings.TrimSpace(genus)),
		strings.ToLower(strings.TrimSpace(species)),
		strings.ToLower(strings.TrimSpace(cultivar)),
	).First(&plant).Error
	if err != nil {
		return Plant{}, fmt.Errorf("finding plant: %w", err)
	}
	return plant, nil
}

// ResolveOrCreatePlant returns the existing taxonomy record matching the
// botanical name, or creates one. The boolean result is true when a new
// record was created.
func (ds *DataStore) ResolveOrCreatePlant(plant *Plant) (_ Plant, _ bool, err error) {
	defer func(start time.Time) { ds.recordOp("resolve_or_create_plant", start, err) }(time.Now())

	existing, err := ds.FindPlant(plant.Family, plant.Genus, plant.Species, plant.Cultivar)
	if err == nil {
		return existing, false, nil
	}
	if !isNotFound(err) {
		return Plant{}, false, err
	}

	normalizePlant(plant)
	if err := ds.DB.Create(plant).Error; err != nil {
		return Plant{}, false, fmt.Errorf("creating plant: %w", err)
	}
	return *plant, true, nil
}

func isNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}

func normalizePlant(plant *Plant) {
	plant.Family = strings.TrimSpace(plant.Family)
	plant.Genus = strings.TrimSpace(plant.Genus)
	plant.Species = strings.TrimSpace(plant.Species)
	plant.Cultivar = strings.TrimSpace(plant.Cultivar)
	plant.CommonName = strings.TrimSpace(plant.CommonName)
}
