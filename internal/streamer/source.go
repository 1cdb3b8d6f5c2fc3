package streamer

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/lordblackfox/aircox/internal/models"
)

// Role tags the three source variants the engine knows about.
type Role int

const (
	RoleMaster Role = iota
	RoleDealer
	RoleStream
)

func (r Role) String() string {
	switch r {
	case RoleMaster:
		return "master"
	case RoleDealer:
		return "dealer"
	case RoleStream:
		return "stream"
	}
	return "unknown"
}

var (
	// ErrSourceMismatch signals metadata that belongs to another source.
	ErrSourceMismatch = errors.New("metadata belongs to another source")
	// ErrNotDealer signals a dealer-only operation on another source.
	ErrNotDealer = errors.New("only the dealer has an on switch")
)

// SourceConfig enumerates the recognized construction fields per
// variant. Invalid combinations are construction-time errors.
type SourceConfig struct {
	Role    Role
	Program *models.Program // required for RoleStream, forbidden otherwise
	Path    string          // optional playlist file override
}

// Source is one engine-addressable unit: the master output, the dealer
// or a program stream. Its playlist is a projection of the database,
// regenerable at any time; the engine reads it from the backing .m3u
// file. Metadata is a cache of the engine's last answer.
type Source struct {
	ID      string
	Name    string
	Role    Role
	Program *models.Program
	// Path of the backing playlist file. Empty for the master.
	Path string

	ctl *Controller

	// mu guards the playlist and metadata. Both are replaced
	// wholesale, never mutated in place, so handing the current slice
	// or map to a caller is safe.
	mu       sync.Mutex
	playlist []string
	metadata map[string]string
}

func newSource(ctl *Controller, cfg SourceConfig) (*Source, error) {
	if cfg.Role == RoleStream && cfg.Program == nil {
		return nil, fmt.Errorf("stream source requires a program")
	}
	if cfg.Role != RoleStream && cfg.Program != nil {
		return nil, fmt.Errorf("%s source does not take a program", cfg.Role)
	}
	if cfg.Role == RoleMaster && cfg.Path != "" {
		return nil, fmt.Errorf("master source has no playlist file")
	}

	s := &Source{
		Role:    cfg.Role,
		Program: cfg.Program,
		Path:    cfg.Path,
		ctl:     ctl,
	}

	switch cfg.Role {
	case RoleMaster:
		s.ID = ctl.ID
		s.Name = ctl.Name
	case RoleDealer:
		s.ID = ctl.ID + "_dealer"
		s.Name = "Dealer"
	case RoleStream:
		s.ID = ctl.ID + "_stream_" + cfg.Program.Slug
		s.Name = cfg.Program.Name
	}

	if s.Role != RoleMaster && s.Path == "" {
		s.Path = filepath.Join(ctl.Path, s.ID+".m3u")
	}

	switch s.Role {
	case RoleDealer:
		// The dealer's playlist is set by hand; pick up whatever the
		// previous run left in the file.
		s.loadPlaylistFile()
	case RoleStream:
		// Read the prior file back first: when the database has not
		// changed, the reconciliation below leaves the engine-watched
		// file untouched.
		s.loadPlaylistFile()
		if err := s.PlaylistFromDB(); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *Source) send(parts ...string) string {
	return s.ctl.Send(parts...)
}

// Fetch refreshes the cached metadata from the engine.
func (s *Source) Fetch() error {
	return s.Update(nil)
}

// Update replaces the cached metadata wholesale. With nil it queries
// the engine instead. Metadata whose source field does not carry this
// source's id prefix is rejected with ErrSourceMismatch.
func (s *Source) Update(metadata map[string]string) error {
	if metadata == nil {
		metadata = s.fetchMetadata()
		if metadata == nil {
			return nil
		}
	}

	if source, ok := metadata["source"]; ok && !strings.HasPrefix(source, s.ID) {
		return ErrSourceMismatch
	}
	s.mu.Lock()
	s.metadata = metadata
	s.mu.Unlock()
	return nil
}

func (s *Source) fetchMetadata() map[string]string {
	if s.Role == RoleMaster {
		// The master has no <id>.get; ask what request is on air and
		// fetch that request's metadata.
		rid := s.send("request.on_air")
		if i := strings.IndexByte(rid, ' '); i >= 0 {
			rid = rid[:i]
		}
		if rid == "" {
			return nil
		}
		return s.ctl.Connector.Parse(s.send("request.metadata ", rid))
	}

	reply := s.send(s.ID, ".get")
	if reply == "" {
		return nil
	}
	return s.ctl.Connector.Parse(reply)
}

// CurrentSound is the uri of the sound last reported by the engine.
func (s *Source) CurrentSound() string {
	return s.Metadata()["initial_uri"]
}

// RequestID is the engine's request id for the current sound.
func (s *Source) RequestID() string {
	return s.Metadata()["rid"]
}

// Metadata returns the cached metadata of the last Fetch/Update.
func (s *Source) Metadata() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.metadata
}

// FirstStream returns the program's first declared stream, nil when
// there is none. Multiple streams per program are not supported yet.
func (s *Source) FirstStream() *models.Stream {
	if s.Program == nil || len(s.Program.Streams) == 0 {
		return nil
	}
	return &s.Program.Streams[0]
}

// Playlist refreshes metadata from the engine, then returns the
// current playlist. The read-through fetch is deliberate: reading
// playlist state is not side-effect-free.
func (s *Source) Playlist() []string {
	s.Fetch()
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.playlist
}

// SetPlaylist sorts the given paths and, when they differ from the
// current playlist, persists them to the backing file. An unchanged
// playlist is not rewritten.
func (s *Source) SetPlaylist(paths []string) error {
	sorted := append([]string(nil), paths...)
	sort.Strings(sorted)

	s.mu.Lock()
	if equalPaths(sorted, s.playlist) {
		s.mu.Unlock()
		return nil
	}
	s.playlist = sorted
	s.mu.Unlock()
	return s.WritePlaylist()
}

func equalPaths(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// WritePlaylist persists the playlist to the .m3u file, one absolute
// path per line. The engine watches this file.
func (s *Source) WritePlaylist() error {
	if s.Path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(s.Path), 0755); err != nil {
		return err
	}

	s.mu.Lock()
	data := strings.Join(s.playlist, "\n")
	s.mu.Unlock()

	tmp := s.Path + ".tmp"
	if err := os.WriteFile(tmp, []byte(data), 0644); err != nil {
		return err
	}
	if err := os.Rename(tmp, s.Path); err != nil {
		return err
	}
	playlistWrites.Inc()
	return nil
}

func (s *Source) loadPlaylistFile() {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		return
	}
	var paths []string
	for _, line := range strings.Split(string(data), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			paths = append(paths, line)
		}
	}
	s.mu.Lock()
	s.playlist = paths
	s.mu.Unlock()
}

// PlaylistFromDB rebuilds the playlist from the program's archived
// sounds. This is the reconciliation path run whenever the database
// changes.
func (s *Source) PlaylistFromDB() error {
	if s.Program == nil || s.ctl.db == nil {
		return nil
	}
	paths, err := s.ctl.db.ArchiveSounds(s.Program.ID)
	if err != nil {
		return err
	}
	return s.SetPlaylist(paths)
}

// PlaylistFromDiffusion loads a specific diffusion's explicit playlist
// instead of the program's archives.
func (s *Source) PlaylistFromDiffusion(diffusionID uint) error {
	if s.ctl.db == nil {
		return errors.New("no database configured")
	}
	paths, err := s.ctl.db.DiffusionPlaylist(diffusionID)
	if err != nil {
		return err
	}
	return s.SetPlaylist(paths)
}

// Skip drops the current sound of the source.
func (s *Source) Skip() {
	s.send(s.ID, ".skip")
}

// Seek moves inside the current sound by n frames.
func (s *Source) Seek(n int) {
	s.send(s.ID, ".seek ", strconv.Itoa(n))
}

// Restart rewinds the current sound to its start. The engine exposes
// no absolute position, so this seeks back by a configured offset
// large enough to cover any sound shorter than ~10 hours.
func (s *Source) Restart() {
	s.Seek(-s.ctl.SeekBack)
}

// Active asks the engine whether the source is enabled. The answer is
// never cached: the engine is the source of truth.
func (s *Source) Active() bool {
	return s.send("var.get ", s.ID, "_active") == "true"
}

func (s *Source) SetActive(value bool) {
	s.send("var.set ", s.ID, "_active", "=", strconv.FormatBool(value))
}

// On reports the dealer's manual on-air switch. Calling it on another
// source is a usage error.
func (s *Source) On() (bool, error) {
	if s.Role != RoleDealer {
		return false, ErrNotDealer
	}
	return s.send("var.get ", s.ID, "_on") == "true", nil
}

func (s *Source) SetOn(value bool) error {
	if s.Role != RoleDealer {
		return ErrNotDealer
	}
	s.send("var.set ", s.ID, "_on", "=", strconv.FormatBool(value))
	return nil
}
