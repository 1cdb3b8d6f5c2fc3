package database

import (
	"github.com/lordblackfox/aircox/internal/models"
)

// ActiveStreamPrograms returns the active programs that declare at
// least one stream, each getting its own engine source.
func (c *Client) ActiveStreamPrograms() ([]models.Program, error) {
	var programs []models.Program
	err := c.DB.Preload("Streams").
		Where("active = ?", true).
		Order("slug asc").
		Find(&programs).Error
	if err != nil {
		return nil, err
	}

	out := programs[:0]
	for _, p := range programs {
		if len(p.Streams) > 0 {
			out = append(out, p)
		}
	}
	return out, nil
}

// ArchiveSounds returns the playable archive paths of a program.
func (c *Client) ArchiveSounds(programID uint) ([]string, error) {
	var sounds []models.Sound
	err := c.DB.
		Where("program_id = ? AND type = ? AND removed = ? AND good_quality = ?",
			programID, models.SoundArchive, false, true).
		Order("path asc").
		Find(&sounds).Error
	if err != nil {
		return nil, err
	}

	paths := make([]string, 0, len(sounds))
	for _, s := range sounds {
		paths = append(paths, s.Path)
	}
	return paths, nil
}

// DiffusionPlaylist returns a diffusion's explicit playlist, in its
// recorded order.
func (c *Client) DiffusionPlaylist(diffusionID uint) ([]string, error) {
	var entries []models.DiffusionSound
	err := c.DB.Preload("Sound").
		Where("diffusion_id = ?", diffusionID).
		Order("position asc").
		Find(&entries).Error
	if err != nil {
		return nil, err
	}

	paths := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.Sound.Removed {
			continue
		}
		paths = append(paths, e.Sound.Path)
	}
	return paths, nil
}
