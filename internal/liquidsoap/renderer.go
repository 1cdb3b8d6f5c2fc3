// Package liquidsoap renders the engine's configuration file from a
// controller's state. The engine reads the rendered .liq at startup;
// playlist changes are picked up through the watched .m3u files, config
// changes need a process restart.
package liquidsoap

import (
	"strings"
	"text/template"

	"github.com/lordblackfox/aircox/internal/streamer"
)

type Renderer struct {
	tmpl *template.Template
}

// New parses the built-in station template.
func New() (*Renderer, error) {
	tmpl, err := template.New("station.liq").
		Funcs(template.FuncMap{"liqtime": liqTime}).
		Parse(stationTemplate)
	if err != nil {
		return nil, err
	}
	return &Renderer{tmpl: tmpl}, nil
}

// liqTime converts an "HH:MM" clock value to liquidsoap's time
// predicate notation ("06:30" -> "6h30", "18:00" -> "18h").
func liqTime(clock string) string {
	parts := strings.SplitN(clock, ":", 2)
	if len(parts) != 2 {
		return clock
	}
	h := strings.TrimLeft(parts[0], "0")
	if h == "" {
		h = "0"
	}
	if parts[1] == "00" {
		return h + "h"
	}
	return h + "h" + parts[1]
}

func (r *Renderer) Render(c *streamer.Controller) (string, error) {
	var buf strings.Builder
	err := r.tmpl.Execute(&buf, templateContext{
		ID:         c.ID,
		Name:       c.Name,
		SocketPath: c.SocketPath(),
		LogPath:    c.Path + "/station.log",
		Dealer:     c.Dealer(),
		Streams:    c.StreamList(),
	})
	if err != nil {
		return "", err
	}
	return buf.String(), nil
}

type templateContext struct {
	ID         string
	Name       string
	SocketPath string
	LogPath    string
	Dealer     *streamer.Source
	Streams    []*streamer.Source
}

// Continuation backslashes below are collapsed by the controller's
// whitespace normalization before the file hits disk.
const stationTemplate = `#!/usr/bin/liquidsoap
# {{.Name}} — generated file, do not edit.

set("log.file.path", "{{.LogPath}}")
set("server.socket", true)
set("server.socket.path", "{{.SocketPath}}")

def interactive_source (id, s) = \
  s = store_metadata(id=id, size=1, s) \
  add_skip_command(s) \
  s \
end

def stream (id, file) = \
  s = playlist(id = '#{id}_playlist', mode = "random", reload_mode="watch", file) \
  interactive_source(id, s) \
end

{{range $src := .Streams}}
{{$src.ID}} = stream("{{$src.ID}}", "{{$src.Path}}")
{{- with $st := $src.FirstStream}}
{{- if gt $st.Delay 0}}
{{$src.ID}} = delay({{$st.Delay}}., {{$src.ID}})
{{- else if $st.Begin}}
{{$src.ID}} = at({ {{liqtime $st.Begin}}-{{liqtime $st.End}} }, {{$src.ID}})
{{- end}}
{{- end}}
{{$src.ID}} = switch(id="{{$src.ID}}_switch", track_sensitive = false, \
    [({interactive.bool("{{$src.ID}}_active", true)}, {{$src.ID}})])
{{end}}

{{.Dealer.ID}} = interactive_source("{{.Dealer.ID}}", \
    playlist.once(id="{{.Dealer.ID}}_playlist", reload_mode="watch", "{{.Dealer.Path}}"))
{{.Dealer.ID}}_on = interactive.bool("{{.Dealer.ID}}_on", false)

{{.ID}} = fallback(id="{{.ID}}", track_sensitive = false, [
    switch(id="{{.ID}}_dealer_switch", track_sensitive = false, \
        [({ {{.Dealer.ID}}_on() }, {{.Dealer.ID}})]),
    rotate(id="{{.ID}}_streams", [
{{- range .Streams}}
        {{.ID}},
{{- end}}
    ]),
    blank(id="{{.ID}}_blank", duration=0.1),
])

output.dummy({{.ID}})
`
