package datastore

import (
	"fmt"

	"gorm.io/gorm"
)

// SaveSearchPreset inserts or updates a saved search preset. A preset with
// the same name for the same user is overwritten.
func (ds *DataStore) SaveSearchPreset(preset *SearchPreset) error {
	var existing SearchPreset
	err := ds.DB.Where("user_id = ? AND name = ?", preset.UserID, preset.Name).
		First(&existing).Error
	switch {
	case err == nil:
		existing.Filters = preset.Filters
		if err := ds.DB.Save(&existing).Error; err != nil {
			return fmt.Errorf("updating search preset: %w", err)
		}
		*preset = existing
		return nil
	case isNotFound(err):
		if err := ds.DB.Create(preset).Error; err != nil {
			return fmt.Errorf("creating search preset: %w", err)
		}
		return nil
	default:
		return fmt.Errorf("looking up search preset: %w", err)
	}
}

// ListSearchPresets returns a user's saved presets, newest first.
func (ds *DataStore) ListSearchPresets(userID uint) ([]SearchPreset, error) {
	var presets []SearchPreset
	err := ds.DB.Where("user_id = ?", userID).
		Order("updated_at DESC").
		Find(&presets).Error
	if err != nil {
		return nil, fmt.Errorf("listing search presets: %w", err)
	}
	return presets, nil
}

// DeleteSearchPreset removes a preset, scoped to the owning user.
func (ds *DataStore) DeleteSearchPreset(userID, id uint) error {
	result := ds.DB.Where("id = ? AND user_id = ?", id, userID).Delete(&SearchPreset{})
	if result.Error != nil {
		return fmt.Errorf("deleting search preset %d: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("deleting search preset %d: %w", id, gorm.ErrRecordNotFound)
	}
	return nil
}
