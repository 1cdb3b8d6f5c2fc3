package models

import (
	"time"

	"gorm.io/gorm"
)

// Program is a show or a continuous stream declared on the station.
// Its slug names the engine source (`<station>_stream_<slug>`).
type Program struct {
	gorm.Model

	Slug   string `gorm:"uniqueIndex;not null" json:"slug"`
	Name   string `json:"name"`
	Active bool   `gorm:"default:true;index" json:"active"`

	// Streams declared for this program. A program with at least one
	// stream gets its own engine source.
	Streams []Stream `json:"streams,omitempty"`
	Sounds  []Sound  `json:"-"`
}

// Stream describes when a program's continuous stream plays.
// Begin/End are "HH:MM" wall-clock bounds; Delay is the pause in
// seconds between two sounds. Either the window or the delay is set.
type Stream struct {
	gorm.Model

	ProgramID uint   `gorm:"index" json:"program_id"`
	Begin     string `json:"begin"`
	End       string `json:"end"`
	Delay     int    `json:"delay"`
}

// BeginSeconds returns Begin as seconds since midnight, or -1 when the
// stream has no window.
func (s *Stream) BeginSeconds() int {
	return clockSeconds(s.Begin)
}

func (s *Stream) EndSeconds() int {
	return clockSeconds(s.End)
}

func clockSeconds(hhmm string) int {
	t, err := time.Parse("15:04", hhmm)
	if err != nil {
		return -1
	}
	return t.Hour()*3600 + t.Minute()*60
}
