// Package sounds imports archive files into the database. This is a
// one-shot scan run from the CLI; continuous directory watching is out
// of scope.
package sounds

import (
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/dhowden/tag"
	"gorm.io/gorm/clause"

	database "github.com/lordblackfox/aircox/internal/db"
	"github.com/lordblackfox/aircox/internal/models"
	"github.com/lordblackfox/aircox/internal/utils"
)

var supportedExt = map[string]bool{
	".mp3": true, ".flac": true, ".ogg": true, ".wav": true,
	".m4a": true, ".aac": true, ".opus": true,
}

func IsSupportedFormat(filename string) bool {
	return supportedExt[strings.ToLower(filepath.Ext(filename))]
}

// ImportProgram scans dir and upserts one archive Sound per supported
// file, keyed by absolute path. Sounds of the program whose file is
// gone are flagged removed, never deleted: play history may reference
// them. Returns how many files were seen.
func ImportProgram(db *database.Client, program *models.Program, dir string) (int, error) {
	seen := make(map[string]bool)
	count := 0

	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || !IsSupportedFormat(path) {
			return nil
		}

		abs, err := filepath.Abs(path)
		if err != nil {
			return err
		}

		sound := models.Sound{
			Path:        abs,
			Type:        models.SoundArchive,
			ProgramID:   program.ID,
			Title:       utils.CleanFilename(abs),
			GoodQuality: true,
		}
		readTags(abs, &sound)

		err = db.DB.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "path"}},
			DoUpdates: clause.AssignmentColumns([]string{"title", "artist", "removed", "program_id"}),
		}).Create(&sound).Error
		if err != nil {
			return err
		}

		seen[abs] = true
		count++
		return nil
	})
	if err != nil {
		return count, err
	}

	// Flag sounds whose file disappeared since the last import.
	var existing []models.Sound
	if err := db.DB.Where("program_id = ?", program.ID).Find(&existing).Error; err != nil {
		return count, err
	}
	for _, s := range existing {
		if seen[s.Path] || s.Removed {
			continue
		}
		if _, err := os.Stat(s.Path); os.IsNotExist(err) {
			log.Printf("🗑️ Sound gone, flagging removed: %s", s.Path)
			db.DB.Model(&s).Update("removed", true)
		}
	}

	return count, nil
}

// readTags fills title/artist from the file's tags when readable; an
// untagged or unreadable file keeps the filename-derived title.
func readTags(path string, sound *models.Sound) {
	f, err := os.Open(path)
	if err != nil {
		return
	}
	defer f.Close()

	meta, err := tag.ReadFrom(f)
	if err != nil {
		return
	}
	if title := strings.TrimSpace(meta.Title()); title != "" {
		sound.Title = title
	}
	sound.Artist = strings.TrimSpace(meta.Artist())
}
