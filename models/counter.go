package models

import (
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ChestNumberCounter names the sequence behind Participant.ChestNumber.
const ChestNumberCounter = "participant.chest_number"

// Counter is a named integer sequence.
type Counter struct {
	Name  string `json:"name" gorm:"primaryKey"`
	Count int64  `json:"count" gorm:"column:current_value;not null"`
}

// NextSequence increments the named counter and returns the new value.
// Run it inside the transaction that consumes the value.
func NextSequence(tx *gorm.DB, name string) (int64, error) {
	if err := tx.Clauses(clause.OnConflict{DoNothing: true}).
		Create(&Counter{Name: name, Count: 0}).Error; err != nil {
		return 0, fmt.Errorf("failed to ensure counter %s: %w", name, err)
	}
	if err := tx.Model(&Counter{}).
		Where("name = ?", name).
		UpdateColumn("current_value", gorm.Expr("current_value + ?", 1)).Error; err != nil {
		return 0, fmt.Errorf("failed to increment counter %s: %w", name, err)
	}
	var c Counter
	if err := tx.Where("name = ?", name).First(&c).Error; err != nil {
		return 0, fmt.Errorf("failed to read counter %s: %w", name, err)
	}
	return c.Count, nil
}
