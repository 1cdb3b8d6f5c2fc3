package database

import (
	"fmt"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/lordblackfox/aircox/internal/models"
)

func setupTestDB(t *testing.T, name string) *Client {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	d, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	d.AutoMigrate(&models.Program{}, &models.Stream{}, &models.Sound{},
		&models.Diffusion{}, &models.DiffusionSound{})
	return &Client{DB: d}
}

func TestActiveStreamPrograms(t *testing.T) {
	db := setupTestDB(t, "q_programs")

	db.DB.Create(&models.Program{
		Slug: "jazz", Name: "Jazz", Active: true,
		Streams: []models.Stream{{Begin: "06:00", End: "09:00"}},
	})
	db.DB.Create(&models.Program{
		Slug: "talk", Name: "Talk", Active: true, // no stream
	})
	db.DB.Create(&models.Program{
		Slug: "dead", Name: "Dead", Active: false,
		Streams: []models.Stream{{Delay: 60}},
	})

	programs, err := db.ActiveStreamPrograms()
	if err != nil {
		t.Fatalf("ActiveStreamPrograms: %v", err)
	}
	if len(programs) != 1 || programs[0].Slug != "jazz" {
		t.Errorf("programs = %v, want only jazz", programs)
	}
}

func TestArchiveSoundsFilters(t *testing.T) {
	db := setupTestDB(t, "q_sounds")

	p := models.Program{Slug: "jazz", Name: "Jazz", Active: true}
	db.DB.Create(&p)

	sounds := []models.Sound{
		{Path: "/a/2.mp3", Type: models.SoundArchive, ProgramID: p.ID, GoodQuality: true},
		{Path: "/a/1.mp3", Type: models.SoundArchive, ProgramID: p.ID, GoodQuality: true},
		{Path: "/a/gone.mp3", Type: models.SoundArchive, ProgramID: p.ID, GoodQuality: true, Removed: true},
		{Path: "/a/bad.mp3", Type: models.SoundArchive, ProgramID: p.ID, GoodQuality: false},
		{Path: "/a/cut.mp3", Type: models.SoundExcerpt, ProgramID: p.ID, GoodQuality: true},
	}
	for i := range sounds {
		if err := db.DB.Create(&sounds[i]).Error; err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	paths, err := db.ArchiveSounds(p.ID)
	if err != nil {
		t.Fatalf("ArchiveSounds: %v", err)
	}
	want := []string{"/a/1.mp3", "/a/2.mp3"}
	if len(paths) != 2 || paths[0] != want[0] || paths[1] != want[1] {
		t.Errorf("paths = %v, want %v", paths, want)
	}
}

func TestDiffusionPlaylistKeepsOrder(t *testing.T) {
	db := setupTestDB(t, "q_diffusion")

	p := models.Program{Slug: "jazz", Name: "Jazz", Active: true}
	db.DB.Create(&p)

	a := models.Sound{Path: "/a/z-last.mp3", Type: models.SoundArchive, ProgramID: p.ID, GoodQuality: true}
	b := models.Sound{Path: "/a/a-first.mp3", Type: models.SoundArchive, ProgramID: p.ID, GoodQuality: true}
	db.DB.Create(&a)
	db.DB.Create(&b)

	diff := models.Diffusion{ProgramID: p.ID}
	db.DB.Create(&diff)
	// Explicit order: z before a, unlike the path sort.
	db.DB.Create(&models.DiffusionSound{DiffusionID: diff.ID, SoundID: a.ID, Position: 0})
	db.DB.Create(&models.DiffusionSound{DiffusionID: diff.ID, SoundID: b.ID, Position: 1})

	paths, err := db.DiffusionPlaylist(diff.ID)
	if err != nil {
		t.Fatalf("DiffusionPlaylist: %v", err)
	}
	if len(paths) != 2 || paths[0] != "/a/z-last.mp3" || paths[1] != "/a/a-first.mp3" {
		t.Errorf("paths = %v, want recorded order", paths)
	}
}
