package streamer

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"sync"
	"time"

	"github.com/lordblackfox/aircox/internal/config"
	database "github.com/lordblackfox/aircox/internal/db"
	"github.com/lordblackfox/aircox/internal/utils"
)

// ConfigRenderer produces the engine configuration text from the
// controller's state. The default implementation lives in the
// liquidsoap package.
type ConfigRenderer interface {
	Render(c *Controller) (string, error)
}

// Controller owns one station's connector and full source set, and the
// files the engine reads: one playlist per dealer/stream source plus
// the rendered configuration.
type Controller struct {
	// ID is derived from the station name and is stable across
	// restarts: it prefixes every source id and the socket path.
	ID   string
	Name string
	// Path is the station's directory, holding socket, config and
	// playlist files.
	Path string

	Connector *Connector

	// SeekBack is the offset used by Source.Restart.
	SeekBack int
	// RefreshInterval throttles Refresh; a zero interval disables the
	// throttle.
	RefreshInterval time.Duration

	db       *database.Client
	renderer ConfigRenderer

	// rpcMu enforces one in-flight command at a time on the connector.
	// mu is the single-writer lock for files and source rebuilds.
	// srcMu guards the source set and the refresh throttle: handlers
	// read sources while the refresh loop swaps them.
	rpcMu sync.Mutex
	mu    sync.Mutex
	srcMu sync.RWMutex

	master      *Source
	dealer      *Source
	streams     map[string]*Source
	lastRefresh time.Time
}

// NewController derives the station id, opens a connector on the
// station's socket path and builds the full source set from the
// database.
func NewController(cfg *config.Config, db *database.Client, renderer ConfigRenderer) (*Controller, error) {
	id := utils.Slugify(cfg.Station.Name)
	if id == "" {
		return nil, fmt.Errorf("station name %q yields an empty id", cfg.Station.Name)
	}

	c := &Controller{
		ID:              id,
		Name:            cfg.Station.Name,
		Path:            filepath.Join(cfg.Station.Path, id),
		SeekBack:        cfg.Engine.RestartSeekBack,
		RefreshInterval: time.Duration(cfg.Engine.RefreshInterval) * time.Second,
		db:              db,
		renderer:        renderer,
	}

	c.Connector = NewConnector(c.SocketPath())
	c.Connector.Timeout = time.Duration(cfg.Engine.SocketTimeout) * time.Second
	c.Connector.TryCount = cfg.Engine.RetryCount

	if err := c.Rebuild(); err != nil {
		return nil, err
	}
	return c, nil
}

// SocketPath is where the engine listens for control commands.
func (c *Controller) SocketPath() string {
	return filepath.Join(c.Path, "station.sock")
}

// ConfigPath is where the rendered engine configuration goes.
func (c *Controller) ConfigPath() string {
	return filepath.Join(c.Path, "station.liq")
}

// Send serializes one command through the connector. All source RPC
// goes through here so that only one command is in flight at a time.
func (c *Controller) Send(parts ...string) string {
	c.rpcMu.Lock()
	defer c.rpcMu.Unlock()
	return c.Connector.Send(parts...)
}

// Rebuild replaces the whole source set from the database: the master,
// the dealer, and one stream source per active program that declares a
// stream. Old sources are discarded wholesale, never patched. The new
// set is built first, then swapped in under srcMu so readers never see
// a partial set.
func (c *Controller) Rebuild() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	master, err := newSource(c, SourceConfig{Role: RoleMaster})
	if err != nil {
		return err
	}
	dealer, err := newSource(c, SourceConfig{Role: RoleDealer})
	if err != nil {
		return err
	}

	streams := make(map[string]*Source)
	if c.db != nil {
		programs, err := c.db.ActiveStreamPrograms()
		if err != nil {
			return err
		}
		for i := range programs {
			source, err := newSource(c, SourceConfig{Role: RoleStream, Program: &programs[i]})
			if err != nil {
				return err
			}
			streams[source.ID] = source
		}
	}

	c.srcMu.Lock()
	c.master, c.dealer, c.streams = master, dealer, streams
	c.srcMu.Unlock()
	return nil
}

// Master is the station's output source.
func (c *Controller) Master() *Source {
	c.srcMu.RLock()
	defer c.srcMu.RUnlock()
	return c.master
}

// Dealer is the station's hand-fed source.
func (c *Controller) Dealer() *Source {
	c.srcMu.RLock()
	defer c.srcMu.RUnlock()
	return c.dealer
}

// Get looks a source up by id across the master/dealer/stream
// namespace. It returns nil when the id is unknown.
func (c *Controller) Get(sourceID string) *Source {
	c.srcMu.RLock()
	defer c.srcMu.RUnlock()

	if c.master != nil && sourceID == c.master.ID {
		return c.master
	}
	if c.dealer != nil && sourceID == c.dealer.ID {
		return c.dealer
	}
	return c.streams[sourceID]
}

// Sources returns master, dealer and streams, streams ordered by id.
func (c *Controller) Sources() []*Source {
	out := []*Source{c.Master(), c.Dealer()}
	return append(out, c.StreamList()...)
}

// StreamList returns the stream sources ordered by id, for stable
// iteration and templating.
func (c *Controller) StreamList() []*Source {
	c.srcMu.RLock()
	defer c.srcMu.RUnlock()

	ids := make([]string, 0, len(c.streams))
	for id := range c.streams {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	out := make([]*Source, 0, len(ids))
	for _, id := range ids {
		out = append(out, c.streams[id])
	}
	return out
}

// Update fetches fresh metadata for every source. A failure on one
// source does not stop the others; the joined errors come back to the
// caller.
func (c *Controller) Update() error {
	var errs []error
	for _, source := range c.Sources() {
		if err := source.Fetch(); err != nil {
			log.Printf("⚠️ Source %s: update failed: %v", source.ID, err)
			errs = append(errs, fmt.Errorf("%s: %w", source.ID, err))
		}
	}
	return errors.Join(errs...)
}

// Refresh rebuilds the source set from the database and refreshes
// metadata, at most once per RefreshInterval unless forced.
func (c *Controller) Refresh(force bool) error {
	if !c.shouldRefresh(force) {
		return nil
	}
	if err := c.Rebuild(); err != nil {
		return err
	}
	return c.Update()
}

// shouldRefresh applies the throttle and claims the slot: of several
// concurrent callers at most one proceeds per interval.
func (c *Controller) shouldRefresh(force bool) bool {
	c.srcMu.Lock()
	defer c.srcMu.Unlock()

	if !force && c.RefreshInterval > 0 &&
		time.Since(c.lastRefresh) < c.RefreshInterval {
		return false
	}
	c.lastRefresh = time.Now()
	return true
}

// Write persists the files the engine consumes. With playlist set it
// writes every dealer/stream playlist; with config set it renders the
// configuration, normalizes its whitespace and atomically replaces the
// target. A write failure is fatal to the operation: a stale config
// desynchronizes the engine from the database.
func (c *Controller) Write(playlist, config bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if playlist {
		for _, source := range c.StreamList() {
			if err := source.WritePlaylist(); err != nil {
				return fmt.Errorf("playlist %s: %w", source.ID, err)
			}
		}
		if dealer := c.Dealer(); dealer != nil {
			if err := dealer.WritePlaylist(); err != nil {
				return fmt.Errorf("playlist %s: %w", dealer.ID, err)
			}
		}
	}

	if !config {
		return nil
	}
	if c.renderer == nil {
		return fmt.Errorf("no config renderer")
	}

	data, err := c.renderer.Render(c)
	if err != nil {
		return fmt.Errorf("render config: %w", err)
	}
	data = normalizeConfig(data)

	if err := os.MkdirAll(c.Path, 0755); err != nil {
		return err
	}
	tmp := c.ConfigPath() + ".tmp"
	if err := os.WriteFile(tmp, []byte(data), 0644); err != nil {
		return err
	}
	if err := os.Rename(tmp, c.ConfigPath()); err != nil {
		return err
	}
	configWrites.Inc()
	return nil
}

var (
	contReg  = regexp.MustCompile(`[ \t]*\\\n\s*`)
	trailReg = regexp.MustCompile(`[ \t]+\n`)
	blankReg = regexp.MustCompile(`\n{3,}`)
)

// normalizeConfig collapses backslash-continued lines, then squeezes
// runs of blank lines down to a single one.
func normalizeConfig(data string) string {
	data = contReg.ReplaceAllString(data, " ")
	data = trailReg.ReplaceAllString(data, "\n")
	data = blankReg.ReplaceAllString(data, "\n\n")
	return data
}
