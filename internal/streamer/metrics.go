package streamer

import "github.com/prometheus/client_golang/prometheus"

// Metrics
var (
	rpcCommands = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "aircox_rpc_commands_total", Help: "Commands sent to the engine"},
	)
	rpcReopens = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "aircox_rpc_reopens_total", Help: "Socket reopens after I/O errors"},
	)
	rpcFailures = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "aircox_rpc_failures_total", Help: "Commands that returned no data"},
	)
	playlistWrites = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "aircox_playlist_writes_total", Help: "Playlist files written"},
	)
	configWrites = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "aircox_config_writes_total", Help: "Engine config files written"},
	)
	processStarts = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "aircox_engine_starts_total", Help: "Engine processes launched"},
	)
	processKills = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "aircox_engine_kills_total", Help: "Engine processes killed (incl. zombies)"},
	)
)

func RegisterMetrics() {
	prometheus.MustRegister(
		rpcCommands, rpcReopens, rpcFailures,
		playlistWrites, configWrites,
		processStarts, processKills,
	)
}
