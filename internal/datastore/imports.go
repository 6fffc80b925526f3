package datastore

import "fmt"

// CreateImportRecord inserts a new import tracking row.
func (ds *DataStore) CreateImportRecord(record *ImportRecord) error {
	if record.Status == "" {
		record.Status = ImportPending
	}
	if err := ds.DB.Create(record).Error; err != nil {
		return fmt.Errorf("creating import record: %w", err)
	}
	return nil
}

// UpdateImportRecord persists progress updates for an import.
func (ds *DataStore) UpdateImportRecord(record *ImportRecord) error {
	if err := ds.DB.Save(record).Error; err != nil {
		return fmt.Errorf("updating import record %d: %w", record.ID, err)
	}
	return nil
}

// GetImportRecord retrieves an import record, scoped to the owning user.
func (ds *DataStore) GetImportRecord(userID, id uint) (ImportRecord, error) {
	var record ImportRecord
	err := ds.DB.Where("id = ? AND user_id = ?", id, userID).First(&record).Error
	if err != nil {
		return ImportRecord{}, fmt.Errorf("getting import record %d: %w", id, err)
	}
	return record, nil
}

// ListImportRecords returns a user's recent imports, newest first.
func (ds *DataStore) ListImportRecords(userID uint, limit int) ([]ImportRecord, error) {
	if limit < 1 {
		limit = 20
	}
	var records []ImportRecord
	err := ds.DB.Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("listing import records: %w", err)
	}
	return records, nil
}
