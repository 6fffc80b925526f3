package datastore

import (
	"fmt"

	"gorm.io/gorm"
)

// CreatePropagation inserts a new propagation for a user.
func (ds *DataStore) CreatePropagation(prop *Propagation) error {
	if prop.Status == "" {
		prop.Status = PropagationStarted
	}
	if prop.Source == "" {
		if prop.ParentInstanceID != nil {
			prop.Source = SourceInternal
		} else {
			prop.Source = SourceExternal
		}
	}
	if err := ds.DB.Create(prop).Error; err != nil {
		return fmt.Errorf("creating propagation: %w", err)
	}
	return nil
}

// GetPropagation retrieves a propagation by id, scoped to the owning user.
func (ds *DataStore) GetPropagation(userID, id uint) (Propagation, error) {
	var prop Propagation
	err := ds.DB.Preload("Plant").
		Where("id = ? AND user_id = ?", id, userID).
		First(&prop).Error
	if err != nil {
		return Propagation{}, fmt.Errorf("getting propagation %d: %w", id, err)
	}
	return prop, nil
}

// UpdatePropagation persists changes to a propagation.
func (ds *DataStore) UpdatePropagation(prop *Propagation) error {
	if err := ds.DB.Save(prop).Error; err != nil {
		return fmt.Errorf("updating propagation %d: %w", prop.ID, err)
	}
	return nil
}

// DeletePropagation removes a propagation, scoped to the owning user.
func (ds *DataStore) DeletePropagation(userID, id uint) error {
	result := ds.DB.Where("id = ? AND user_id = ?", id, userID).Delete(&Propagation{})
	if result.Error != nil {
		return fmt.Errorf("deleting propagation %d: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("deleting propagation %d: %w", id, gorm.ErrRecordNotFound)
	}
	return nil
}

// ListPropagations returns a user's propagations, newest first.
func (ds *DataStore) ListPropagations(userID uint, activeOnly bool) ([]Propagation, error) {
	query := ds.DB.Preload("Plant").Where("user_id = ?", userID)
	if activeOnly {
		query = query.Where("is_active = ?", true)
	}

	var props []Propagation
	if err := query.Order("date_started DESC, id DESC").Find(&props).Error; err != nil {
		return nil, fmt.Errorf("listing propagations: %w", err)
	}
	return props, nil
}

// PromotePropagation converts an established propagation into a plant
// instance. The new instance is created and the propagation deactivated in a
// single transaction; the propagation must belong to the user and have
// reached the established status.
func (ds *DataStore) PromotePropagation(userID, id uint, instance *PlantInstance) error {
	return ds.DB.Transaction(func(tx *gorm.DB) error {
		var prop Propagation
		err := tx.Where("id = ? AND user_id = ?", id, userID).First(&prop).Error
		if err != nil {
			return fmt.Errorf("looking up propagation %d: %w", id, err)
		}

		if prop.Status != PropagationEstablished {
			return fmt.Errorf("propagation %d has status %q, want %q", id, prop.Status, PropagationEstablished)
		}
		if !prop.IsActive {
			return fmt.Errorf("propagation %d is no longer active", id)
		}

		instance.UserID = userID
		instance.PlantID = prop.PlantID
		if instance.Nickname == "" {
			instance.Nickname = prop.Nickname
		}
		if instance.Location == "" {
			instance.Location = prop.Location
		}
		instance.IsActive = true

		if err := tx.Create(instance).Error; err != nil {
			return fmt.Errorf("creating instance from propagation %d: %w", id, err)
		}

		if err := tx.Model(&Propagation{}).Where("id = ?", id).
			Update("is_active", false).Error; err != nil {
			return fmt.Errorf("deactivating propagation %d: %w", id, err)
		}
		return nil
	})
}
