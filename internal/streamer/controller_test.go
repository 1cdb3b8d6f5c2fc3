package streamer

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/lordblackfox/aircox/internal/config"
	database "github.com/lordblackfox/aircox/internal/db"
	"github.com/lordblackfox/aircox/internal/models"
)

// setupTestDB creates a throwaway in-memory database.
func setupTestDB(t *testing.T, name string) *database.Client {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	d, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	d.AutoMigrate(&models.Program{}, &models.Stream{}, &models.Sound{},
		&models.Diffusion{}, &models.DiffusionSound{})
	return &database.Client{DB: d}
}

func seedJazz(t *testing.T, db *database.Client) {
	t.Helper()
	jazz := models.Program{
		Slug:    "jazz",
		Name:    "Jazz",
		Active:  true,
		Streams: []models.Stream{{Delay: 600}},
	}
	if err := db.DB.Create(&jazz).Error; err != nil {
		t.Fatalf("seed program: %v", err)
	}

	for _, p := range []string{"/archives/jazz/c.mp3", "/archives/jazz/a.mp3", "/archives/jazz/b.mp3"} {
		sound := models.Sound{
			Path: p, Type: models.SoundArchive,
			ProgramID: jazz.ID, GoodQuality: true,
		}
		if err := db.DB.Create(&sound).Error; err != nil {
			t.Fatalf("seed sound: %v", err)
		}
	}
}

type stubRenderer struct {
	out string
}

func (r stubRenderer) Render(c *Controller) (string, error) {
	return r.out, nil
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := &config.Config{}
	cfg.Station.Name = "radio1"
	cfg.Station.Path = t.TempDir()
	cfg.Engine.SocketTimeout = 2
	cfg.Engine.RetryCount = 1
	cfg.Engine.RestartSeekBack = 2160000
	return cfg
}

func TestControllerBuildsSourceSet(t *testing.T) {
	db := setupTestDB(t, "ctl_sources")
	seedJazz(t, db)

	ctl, err := NewController(testConfig(t), db, stubRenderer{})
	if err != nil {
		t.Fatalf("NewController: %v", err)
	}

	if ctl.ID != "radio1" {
		t.Errorf("id = %q", ctl.ID)
	}
	if ctl.Get("radio1") != ctl.Master() {
		t.Error("master not reachable by id")
	}
	if ctl.Get("radio1_dealer") != ctl.Dealer() {
		t.Error("dealer not reachable by id")
	}
	if ctl.Get("radio1_stream_jazz") == nil {
		t.Error("stream source missing")
	}
	if got := ctl.Get("radio1_stream_nope"); got != nil {
		t.Errorf("unknown id should yield nil, got %v", got)
	}
	if len(ctl.StreamList()) != 1 {
		t.Errorf("streams = %d, want 1", len(ctl.StreamList()))
	}
}

func TestInactiveProgramGetsNoSource(t *testing.T) {
	db := setupTestDB(t, "ctl_inactive")
	seedJazz(t, db)
	dead := models.Program{
		Slug: "dead", Name: "Dead", Active: false,
		Streams: []models.Stream{{Delay: 60}},
	}
	db.DB.Create(&dead)
	nostream := models.Program{Slug: "talk", Name: "Talk", Active: true}
	db.DB.Create(&nostream)

	ctl, err := NewController(testConfig(t), db, stubRenderer{})
	if err != nil {
		t.Fatalf("NewController: %v", err)
	}
	if len(ctl.StreamList()) != 1 {
		t.Errorf("streams = %v, want only jazz", ctl.StreamList())
	}
}

func TestWritePlaylistFiles(t *testing.T) {
	db := setupTestDB(t, "ctl_write")
	seedJazz(t, db)

	ctl, err := NewController(testConfig(t), db, stubRenderer{})
	if err != nil {
		t.Fatalf("NewController: %v", err)
	}
	if err := ctl.Write(true, false); err != nil {
		t.Fatalf("Write: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(ctl.Path, "radio1_stream_jazz.m3u"))
	if err != nil {
		t.Fatalf("read playlist: %v", err)
	}
	want := "/archives/jazz/a.mp3\n/archives/jazz/b.mp3\n/archives/jazz/c.mp3"
	if string(data) != want {
		t.Errorf("playlist = %q, want %q", data, want)
	}
}

func TestWriteConfigNormalized(t *testing.T) {
	db := setupTestDB(t, "ctl_config")
	renderer := stubRenderer{out: "a = 1 \\\n  + 2\n\n\n\n\nb = 3   \n"}

	ctl, err := NewController(testConfig(t), db, renderer)
	if err != nil {
		t.Fatalf("NewController: %v", err)
	}
	if err := ctl.Write(false, true); err != nil {
		t.Fatalf("Write: %v", err)
	}

	data, err := os.ReadFile(ctl.ConfigPath())
	if err != nil {
		t.Fatalf("read config: %v", err)
	}
	got := string(data)
	if strings.Contains(got, "\\\n") {
		t.Errorf("continuation left in config: %q", got)
	}
	if strings.Contains(got, "\n\n\n") {
		t.Errorf("blank run left in config: %q", got)
	}
	if !strings.Contains(got, "a = 1 + 2") {
		t.Errorf("continuation not joined: %q", got)
	}
}

func TestNormalizeConfig(t *testing.T) {
	in := "x \\\n   y\nkeep\n\n\n\n\nend  \n"
	want := "x y\nkeep\n\nend\n"
	if got := normalizeConfig(in); got != want {
		t.Errorf("normalizeConfig = %q, want %q", got, want)
	}
}

func TestRefreshThrottle(t *testing.T) {
	db := setupTestDB(t, "ctl_refresh")
	seedJazz(t, db)

	cfg := testConfig(t)
	ctl, err := NewController(cfg, db, stubRenderer{})
	if err != nil {
		t.Fatalf("NewController: %v", err)
	}
	ctl.RefreshInterval = time.Hour
	ctl.Connector.Timeout = 100 * time.Millisecond

	// No engine is running: Update yields nothing but the rebuild runs.
	ctl.Refresh(false)

	blues := models.Program{
		Slug: "blues", Name: "Blues", Active: true,
		Streams: []models.Stream{{Delay: 60}},
	}
	db.DB.Create(&blues)

	ctl.Refresh(false)
	if len(ctl.StreamList()) != 1 {
		t.Errorf("throttled refresh rebuilt sources: %v", ctl.StreamList())
	}

	ctl.Refresh(true)
	if len(ctl.StreamList()) != 2 {
		t.Errorf("forced refresh missed new program: %v", ctl.StreamList())
	}
}

// Handlers read the source set while the refresh loop swaps it; both
// directions must go through the controller's locks. Run with -race.
func TestConcurrentRefreshAndReads(t *testing.T) {
	db := setupTestDB(t, "ctl_concurrent")
	seedJazz(t, db)

	ctl, err := NewController(testConfig(t), db, stubRenderer{})
	if err != nil {
		t.Fatalf("NewController: %v", err)
	}
	ctl.Connector.Timeout = 100 * time.Millisecond

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 20; i++ {
			ctl.Refresh(true)
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 20; i++ {
			ctl.Update()
			if ctl.Get("radio1_stream_jazz") == nil {
				t.Error("stream source vanished during refresh")
			}
			for _, s := range ctl.Sources() {
				s.CurrentSound()
			}
		}
	}()
	wg.Wait()
}

func TestRebuildKeepsUnchangedPlaylistFile(t *testing.T) {
	db := setupTestDB(t, "ctl_unchanged")
	seedJazz(t, db)

	ctl, err := NewController(testConfig(t), db, stubRenderer{})
	if err != nil {
		t.Fatalf("NewController: %v", err)
	}

	// Backdate the playlist file: a rebuild against an unchanged
	// database must not touch it, the engine watches it.
	path := filepath.Join(ctl.Path, "radio1_stream_jazz.m3u")
	past := time.Now().Add(-time.Hour)
	if err := os.Chtimes(path, past, past); err != nil {
		t.Fatalf("backdate playlist: %v", err)
	}

	if err := ctl.Rebuild(); err != nil {
		t.Fatalf("Rebuild: %v", err)
	}

	stat, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat playlist: %v", err)
	}
	if stat.ModTime().After(past.Add(time.Minute)) {
		t.Errorf("rebuild rewrote unchanged playlist %s", path)
	}
}

func TestUpdateIsolatesSourceFailures(t *testing.T) {
	e := newFakeEngine(t)
	ctl := testStation(t, e)
	jazz := testStream(t, ctl, "jazz")
	ctl.streams = map[string]*Source{jazz.ID: jazz}

	// The engine reports foreign metadata for jazz: its update fails,
	// the dealer's still runs.
	e.mu.Lock()
	e.meta["radio1_stream_jazz"] = map[string]string{"source": "radio1_stream_blues"}
	e.meta["radio1_dealer"] = map[string]string{
		"source": "radio1_dealer", "initial_uri": "/d.mp3",
	}
	e.mu.Unlock()

	err := ctl.Update()
	if err == nil {
		t.Fatal("Update should surface the mismatch")
	}
	if ctl.Dealer().CurrentSound() != "/d.mp3" {
		t.Error("dealer update did not run after stream failure")
	}
}
