package model

import "gorm.io/gorm"

// AutoMigrate runs GORM auto-migration for all models and creates custom indexes.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&DraftRecord{}); err != nil {
		return err
	}

	// The purge sweep only looks at rows that can expire.
	return db.Exec(
		"CREATE INDEX IF NOT EXISTS idx_draft_records_expiring " +
			"ON draft_records (expires_at) WHERE expires_at IS NOT NULL",
	).Error
}
