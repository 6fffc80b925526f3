package datastore

import (
	"fmt"
	"time"

	"gorm.io/gorm"
)

// CreatePlantInstance inserts a new plant instance for a user.
func (ds *DataStore) CreatePlantInstance(instance *PlantInstance) (err error) {
	defer func(start time.Time) { ds.recordOp("create_plant_instance", start, err) }(time.Now())
	if err := ds.DB.Create(instance).Error; err != nil {
		return fmt.Errorf("creating plant instance: %w", err)
	}
	return nil
}

// GetPlantInstance retrieves an instance by id, scoped to the owning user.
// A foreign user's instance yields gorm.ErrRecordNotFound so the API cannot
// leak existence.
func (ds *DataStore) GetPlantInstance(userID, id uint) (PlantInstance, error) {
	var instance PlantInstance
	err := ds.DB.Preload("Plant").
		Where("id = ? AND user_id = ?", id, userID).
		First(&instance).Error
	if err != nil {
		return PlantInstance{}, fmt.Errorf("getting plant instance %d: %w", id, err)
	}
	return instance, nil
}

// UpdatePlantInstance persists changes to an instance.
func (ds *DataStore) UpdatePlantInstance(instance *PlantInstance) error {
	if err := ds.DB.Save(instance).Error; err != nil {
		return fmt.Errorf("updating plant instance %d: %w", instance.ID, err)
	}
	return nil
}

// DeletePlantInstance removes an instance and its care history in one
// transaction, scoped to the owning user.
func (ds *DataStore) DeletePlantInstance(userID, id uint) error {
	return ds.DB.Transaction(func(tx *gorm.DB) error {
		result := tx.Where("id = ? AND user_id = ?", id, userID).Delete(&PlantInstance{})
		if result.Error != nil {
			return fmt.Errorf("deleting plant instance %d: %w", id, result.Error)
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("deleting plant instance %d: %w", id, gorm.ErrRecordNotFound)
		}
		if err := tx.Where("plant_instance_id = ?", id).Delete(&CareHistory{}).Error; err != nil {
			return fmt.Errorf("deleting care history for instance %d: %w", id, err)
		}
		return nil
	})
}

// FilterPlantInstances applies the given filters and returns a page of
// instances plus the total match count.
func (ds *DataStore) FilterPlantInstances(userID uint, filters *InstanceFilters) (_ []PlantInstance, _ int64, err error) {
	defer func(start time.Time) { ds.recordOp("filter_plant_instances", start, err) }(time.Now())

	query := ds.DB.Model(&PlantInstance{}).Where("user_id = ?", userID)

	if filters.PlantID != 0 {
		query = query.Where("plant_id = ?", filters.PlantID)
	}
	if filters.Location != "" {
		query = query.Where("location = ?", filters.Location)
	}
	switch {
	case filters.ActiveOnly:
		query = query.Where("is_active = ?", true)
	case filters.InactiveOnly:
		query = query.Where("is_active = ?", false)
	}
	if filters.OverdueOnly {
		query = query.Where("fertilizer_due IS NOT NULL AND fertilizer_due < ?", time.Now())
	}
	if filters.DateStart != "" {
		query = query.Where("created_at >= ?", filters.DateStart)
	}
	if filters.DateEnd != "" {
		query = query.Where("created_at <= ?", filters.DateEnd)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("counting plant instances: %w", err)
	}

	sortOrder := "created_at DESC"
	switch filters.SortBy {
	case "nickname":
		sortOrder = "nickname ASC"
	case "location":
		sortOrder = "location ASC, nickname ASC"
	case "fertilizer_due":
		sortOrder = "fertilizer_due ASC"
	case "oldest":
		sortOrder = "created_at ASC"
	}

	perPage := filters.PerPage
	if perPage < 1 {
		perPage = 20
	}
	page := filters.Page
	if page < 1 {
		page = 1
	}

	var instances []PlantInstance
	err = query.Preload("Plant").
		Order(sortOrder).
		Limit(perPage).
		Offset((page - 1) * perPage).
		Find(&instances).Error
	if err != nil {
		return nil, 0, fmt.Errorf("filtering plant instances: %w", err)
	}

	return instances, total, nil
}

// InstanceFacets computes per-field counts over a user's collection.
func (ds *DataStore) InstanceFacets(userID uint) (Facets, error) {
	facets := Facets{
		ByFamily:   make(map[string]int),
		ByLocation: make(map[string]int),
	}

	var familyCounts []struct {
		Family string
		Count  int
	}
	err := ds.DB.Table("plant_instances").
		Select("plants.family as family, COUNT(*) as count").
		Joins("INNER JOIN plants ON plants.id = plant_instances.plant_id").
		Where("plant_instances.user_id = ?", userID).
		Group("plants.family").
		Scan(&familyCounts).Error
	if err != nil {
		return facets, fmt.Errorf("computing family facets: %w", err)
	}
	for _, fc := range familyCounts {
		facets.ByFamily[fc.Family] = fc.Count
	}

	var locationCounts []struct {
		Location string
		Count    int
	}
	err = ds.DB.Model(&PlantInstance{}).
		Select("location, COUNT(*) as count").
		Where("user_id = ? AND location != ''", userID).
		Group("location").
		Scan(&locationCounts).Error
	if err != nil {
		return facets, fmt.Errorf("computing location facets: %w", err)
	}
	for _, lc := range locationCounts {
		facets.ByLocation[lc.Location] = lc.Count
	}

	type statusCounts struct {
		Active   int64
		Inactive int64
		Overdue  int64
	}
	var sc statusCounts
	base := ds.DB.Model(&PlantInstance{}).Where("user_id = ?", userID)
	if err := base.Session(&gorm.Session{}).Where("is_active = ?", true).Count(&sc.Active).Error; err != nil {
		return facets, fmt.Errorf("counting active instances: %w", err)
	}
	if err := base.Session(&gorm.Session{}).Where("is_active = ?", false).Count(&sc.Inactive).Error; err != nil {
		return facets, fmt.Errorf("counting inactive instances: %w", err)
	}
	if err := base.Session(&gorm.Session{}).
		Where("fertilizer_due IS NOT NULL AND fertilizer_due < ?", time.Now()).
		Count(&sc.Overdue).Error; err != nil {
		return facets, fmt.Errorf("counting overdue instances: %w", err)
	}

	facets.Active = int(sc.Active)
	facets.Inactive = int(sc.Inactive)
	facets.Overdue = int(sc.Overdue)
	return facets, nil
}

// AddCareEvent records a care event and updates the instance's schedule
// fields in the same transaction.
func (ds *DataStore) AddCareEvent(event *CareHistory) (err error) {
	defer func(start time.Time) { ds.recordOp("add_care_event", start, err) }(time.Now())
	return ds.DB.Transaction(func(tx *gorm.DB) error {
		var instance PlantInstance
		err := tx.Where("id = ? AND user_id = ?", event.PlantInstanceID, event.UserID).
			First(&instance).Error
		if err != nil {
			return fmt.Errorf("looking up instance %d: %w", event.PlantInstanceID, err)
		}

		if err := tx.Create(event).Error; err != nil {
			return fmt.Errorf("recording care event: %w", err)
		}

		// Fertilizer and repot events advance the schedule fields
		updates := map[string]any{}
		switch event.CareType {
		case CareFertilizer:
			updates["last_fertilized"] = event.CareDate
			if next, ok := nextFertilizerDue(instance.FertilizerSchedule, event.CareDate); ok {
				updates["fertilizer_due"] = next
			}
		case CareRepot:
			updates["last_repot"] = event.CareDate
		}
		if len(updates) > 0 {
			if err := tx.Model(&PlantInstance{}).Where("id = ?", instance.ID).
				Updates(updates).Error; err != nil {
				return fmt.Errorf("updating care schedule: %w", err)
			}
		}
		return nil
	})
}

// GetCareHistory returns care events for an instance, newest first, scoped to
// the owning user.
func (ds *DataStore) GetCareHistory(userID, instanceID uint) ([]CareHistory, error) {
	// Ownership check first so foreign instances 404 rather than return empty
	var instance PlantInstance
	err := ds.DB.Select("id").
		Where("id = ? AND user_id = ?", instanceID, userID).
		First(&instance).Error
	if err != nil {
		return nil, fmt.Errorf("looking up instance %d: %w", instanceID, err)
	}

	var events []CareHistory
	err = ds.DB.Where("plant_instance_id = ?", instanceID).
		Order("care_date DESC, id DESC").
		Find(&events).Error
	if err != nil {
		return nil, fmt.Errorf("loading care history: %w", err)
	}
	return events, nil
}

// nextFertilizerDue derives the next due date from a schedule string like
// "every 2 weeks". Unparseable schedules leave the due date unchanged.
func nextFertilizerDue(schedule string, from time.Time) (time.Time, bool) {
	interval, ok := ParseScheduleInterval(schedule)
	if !ok {
		return time.Time{}, false
	}
	return from.Add(interval), true
}
