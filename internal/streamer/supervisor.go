package streamer

import (
	"fmt"
	"log"
	"os"
	"os/exec"
	"sync"
	"syscall"

	psnet "github.com/shirou/gopsutil/v4/net"

	"github.com/lordblackfox/aircox/internal/config"
)

// Supervisor starts, watches and stops the external engine process.
// There is at most one live engine per controller; the zombie check
// enforces that across restarts of the supervising program itself.
type Supervisor struct {
	ctl *Controller
	cfg *config.Config

	mu  sync.Mutex
	cmd *exec.Cmd
	// reap wraps cmd.Wait in a sync.Once: Terminate and Wait may race
	// on the same handle, and exec.Cmd.Wait must run exactly once.
	reap func() error
}

func NewSupervisor(ctl *Controller, cfg *config.Config) *Supervisor {
	return &Supervisor{ctl: ctl, cfg: cfg}
}

func (s *Supervisor) processArgs() []string {
	args := []string{s.cfg.Engine.Binary}
	if s.cfg.Engine.Verbose {
		args = append(args, "-v")
	}
	return append(args, s.ctl.ConfigPath())
}

// Run launches the engine. It is a no-op while a process handle is
// held. Before launching it brings the config and playlist files up to
// date and kills any zombie bound to the socket path. The supervisor
// does not auto-retry a failed start.
func (s *Supervisor) Run() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cmd != nil {
		return nil
	}

	if err := s.ctl.Write(true, true); err != nil {
		return err
	}
	if err := s.killZombie(); err != nil {
		return fmt.Errorf("zombie check: %w", err)
	}

	args := s.processArgs()
	cmd := exec.Command(args[0], args[1:]...)
	cmd.Stdout = log.Writer()
	cmd.Stderr = log.Writer()

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start engine: %w", err)
	}
	s.cmd = cmd

	var once sync.Once
	var werr error
	s.reap = func() error {
		once.Do(func() { werr = cmd.Wait() })
		return werr
	}
	processStarts.Inc()
	log.Printf("🚀 Engine started (pid %d): %v", cmd.Process.Pid, args)
	return nil
}

// killZombie force-kills any process still bound to the control socket
// from a previous, uncleanly terminated run.
func (s *Supervisor) killZombie() error {
	socket := s.ctl.SocketPath()
	if _, err := os.Stat(socket); err != nil {
		return nil
	}

	conns, err := psnet.Connections("unix")
	if err != nil {
		return err
	}
	for _, pid := range socketPIDs(socket, conns) {
		log.Printf("💀 Killing zombie engine (pid %d) bound to %s", pid, socket)
		if err := syscall.Kill(int(pid), syscall.SIGKILL); err != nil && err != syscall.ESRCH {
			return err
		}
		processKills.Inc()
	}
	return nil
}

// socketPIDs extracts the pids bound to the given unix socket path.
func socketPIDs(socket string, conns []psnet.ConnectionStat) []int32 {
	var pids []int32
	for _, conn := range conns {
		if conn.Laddr.IP == socket && conn.Pid > 0 {
			pids = append(pids, conn.Pid)
		}
	}
	return pids
}

// Running reports whether a process handle is held.
func (s *Supervisor) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cmd != nil
}

// Terminate force-kills the engine and clears the handle. Idempotent.
func (s *Supervisor) Terminate() {
	s.mu.Lock()
	cmd, reap := s.cmd, s.reap
	s.cmd, s.reap = nil, nil
	s.mu.Unlock()

	if cmd == nil {
		return
	}
	log.Printf("Killing engine (pid %d): %v", cmd.Process.Pid, s.processArgs())
	cmd.Process.Kill()
	reap()
	processKills.Inc()
}

// Wait blocks until the engine exits, then clears the handle. For
// synchronous CLI use only, never on the RPC path.
func (s *Supervisor) Wait() error {
	s.mu.Lock()
	cmd, reap := s.cmd, s.reap
	s.mu.Unlock()

	if cmd == nil {
		return nil
	}
	err := reap()

	s.mu.Lock()
	if s.cmd == cmd {
		s.cmd, s.reap = nil, nil
	}
	s.mu.Unlock()
	return err
}

// Ready probes the engine over the control socket; any non-empty
// var.list reply means it is up.
func (s *Supervisor) Ready() bool {
	return s.ctl.Send("var.list") != ""
}
