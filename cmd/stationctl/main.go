// stationctl drives a station from the command line: run the engine
// synchronously, poke sources, import archives, sync storage.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/lordblackfox/aircox/internal/config"
	database "github.com/lordblackfox/aircox/internal/db"
	"github.com/lordblackfox/aircox/internal/liquidsoap"
	"github.com/lordblackfox/aircox/internal/models"
	"github.com/lordblackfox/aircox/internal/sounds"
	"github.com/lordblackfox/aircox/internal/storage"
	"github.com/lordblackfox/aircox/internal/streamer"
)

func main() {
	run := flag.Bool("run", false, "Launch the engine and wait for it to exit")
	write := flag.Bool("write", false, "Regenerate config and playlist files")
	skip := flag.String("skip", "", "Skip the current sound of the given source id")
	restart := flag.String("restart", "", "Restart the current sound of the given source id")
	on := flag.String("on", "", "Dealer switch: 'true' or 'false'")
	importDir := flag.String("import", "", "Import archive sounds from this directory")
	program := flag.String("program", "", "Program slug for -import / -sync")
	sync := flag.Bool("sync", false, "Mirror a program's archives from storage to disk")
	list := flag.Bool("list", false, "List the station's sources and their state")
	flag.Parse()

	log.SetFlags(0)

	cfg := config.Load()
	db := database.New(cfg)
	db.AutoMigrate()

	renderer, err := liquidsoap.New()
	if err != nil {
		log.Fatalf("Bad station template: %v", err)
	}
	ctl, err := streamer.NewController(cfg, db, renderer)
	if err != nil {
		log.Fatalf("Controller init failed: %v", err)
	}

	switch {
	case *run:
		runEngine(ctl, cfg)

	case *write:
		if err := ctl.Write(true, true); err != nil {
			log.Fatalf("Write failed: %v", err)
		}
		log.Printf("✅ Wrote %s and playlists", ctl.ConfigPath())

	case *skip != "":
		withSource(ctl, *skip, func(s *streamer.Source) { s.Skip() })

	case *restart != "":
		withSource(ctl, *restart, func(s *streamer.Source) { s.Restart() })

	case *on != "":
		if err := ctl.Dealer().SetOn(*on == "true"); err != nil {
			log.Fatalf("%v", err)
		}
		state, _ := ctl.Dealer().On()
		log.Printf("Dealer on: %v", state)

	case *importDir != "":
		p := findProgram(db, *program)
		n, err := sounds.ImportProgram(db, p, *importDir)
		if err != nil {
			log.Fatalf("Import failed after %d files: %v", n, err)
		}
		log.Printf("✅ Imported %d sounds into %s", n, p.Slug)

	case *sync:
		p := findProgram(db, *program)
		store := storage.New(cfg)
		n, err := store.SyncProgram(p.Slug, ctl.Path)
		if err != nil {
			log.Fatalf("Sync failed after %d files: %v", n, err)
		}
		log.Printf("✅ Synced %d files for %s", n, p.Slug)

	case *list:
		ctl.Update()
		for _, s := range ctl.Sources() {
			fmt.Printf("%-30s %-8s active=%-5v %s\n",
				s.ID, s.Role, s.Active(), s.CurrentSound())
		}

	default:
		flag.Usage()
		os.Exit(2)
	}
}

func runEngine(ctl *streamer.Controller, cfg *config.Config) {
	sup := streamer.NewSupervisor(ctl, cfg)

	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		<-sig
		sup.Terminate()
		os.Exit(0)
	}()

	if err := sup.Run(); err != nil {
		log.Fatalf("Engine start failed: %v", err)
	}
	if err := sup.Wait(); err != nil {
		log.Fatalf("Engine exited: %v", err)
	}
}

func withSource(ctl *streamer.Controller, id string, fn func(*streamer.Source)) {
	source := ctl.Get(id)
	if source == nil {
		log.Fatalf("Unknown source %q", id)
	}
	fn(source)
}

func findProgram(db *database.Client, slug string) *models.Program {
	if slug == "" {
		log.Fatal("-program is required")
	}
	var p models.Program
	if err := db.DB.Where("slug = ?", slug).First(&p).Error; err != nil {
		log.Fatalf("Unknown program %q: %v", slug, err)
	}
	return &p
}
