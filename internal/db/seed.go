package database

import (
	"log"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/lordblackfox/aircox/internal/models"
)

// SeedPrograms populates the DB with a small demo grid, enough to get a
// station on air from an empty database.
func SeedPrograms(db *gorm.DB) {
	programs := []models.Program{
		{
			Slug:   "morning_jazz",
			Name:   "Morning Jazz",
			Active: true,
			Streams: []models.Stream{
				{Begin: "06:00", End: "09:00"},
			},
		},
		{
			Slug:   "night_drone",
			Name:   "Night Drone",
			Active: true,
			Streams: []models.Stream{
				{Begin: "23:00", End: "05:00"},
			},
		},
		{
			Slug:   "rotation",
			Name:   "Daily Rotation",
			Active: true,
			Streams: []models.Stream{
				{Delay: 600},
			},
		},
	}

	err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&programs).Error
	if err != nil {
		log.Printf("⚠️ Seed failed: %v", err)
		return
	}
	log.Printf("✅ Seeded %d demo programs", len(programs))
}
