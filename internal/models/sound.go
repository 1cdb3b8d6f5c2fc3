package models

import (
	"time"

	"gorm.io/gorm"
)

// Sound types. Archives are aired; excerpts exist for the website only
// and never end up in a playlist.
const (
	SoundArchive = "archive"
	SoundExcerpt = "excerpt"
)

// Sound is one audio file known to the station.
type Sound struct {
	gorm.Model

	Path      string `gorm:"uniqueIndex;not null" json:"path"`
	Type      string `gorm:"index;default:archive" json:"type"`
	ProgramID uint   `gorm:"index" json:"program_id"`

	Title  string `json:"title"`
	Artist string `json:"artist"`

	// A removed sound stays in the database (play history may point at
	// it) but is excluded from playlists.
	Removed     bool `gorm:"default:false" json:"removed"`
	GoodQuality bool `gorm:"default:true" json:"good_quality"`
}

// Diffusion is one scheduled airing of a program. When it carries an
// explicit playlist, that playlist wins over the program's archives.
type Diffusion struct {
	gorm.Model

	ProgramID uint      `gorm:"index" json:"program_id"`
	Program   Program   `json:"-"`
	Start     time.Time `gorm:"index" json:"start"`
	End       time.Time `json:"end"`

	Sounds []DiffusionSound `json:"sounds,omitempty"`
}

// DiffusionSound orders sounds inside a diffusion's playlist.
type DiffusionSound struct {
	gorm.Model

	DiffusionID uint  `gorm:"index" json:"diffusion_id"`
	SoundID     uint  `json:"sound_id"`
	Sound       Sound `json:"-"`
	Position    int   `json:"position"`
}
