/*
Copyright © 2026 the GreenGrids authors.
This file is part of GreenGrids.

GreenGrids is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

GreenGrids is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with GreenGrids.  If not, see <http://www.gnu.org/licenses/>.*/

package web

import (
	"html/template"
	"net/http"

	greengrids "github.com/HMNS19/greengrids"
	"github.com/HMNS19/greengrids/capture"
)

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>GreenGrids</title>
<style>
body { font-family: sans-serif; margin: 2em auto; max-width: 52em; padding: 0 1em; }
code { background: #f4f4f4; padding: 0.1em 0.3em; }
img { max-width: 100%; border: 1px solid #ddd; margin: 0.5em 0; }
</style>
</head>
<body>
<h1>GreenGrids v{{.Version}}</h1>
<p>Urban CO2 emission, dispersion, and capture simulation for the
survey districts.</p>

<h2>Dataset</h2>
<p>Years: {{range $i, $y := .Years}}{{if $i}}, {{end}}<code>{{$y}}</code>{{end}}</p>
<p>Capture scenarios: {{range $i, $s := .Scenarios}}{{if $i}}, {{end}}<code>{{$s}}</code>{{end}}</p>

<h2>API</h2>
<ul>
<li><code>GET /api/emissions/district/{name}</code></li>
<li><code>GET /api/emissions/all</code></li>
<li><code>POST /api/dispersion/simulate</code></li>
<li><code>GET /api/dispersion/results</code></li>
<li><code>POST /api/capture/simulate</code></li>
<li><code>GET /api/capture/results/{scenario}</code></li>
<li><code>POST /api/workflow/run</code></li>
<li><code>POST /api/workflow/compare</code></li>
<li><code>GET /api/workflow/history</code></li>
<li><code>GET /ws/status</code> (websocket simulation progress)</li>
</ul>
<p>Endpoints that take a year accept <code>?year=</code>; the default
is <code>{{.Year}}</code>.</p>

<h2>Charts</h2>
<img src="/api/charts/concentrations.png?year={{.Year}}" alt="district concentrations">
<img src="/api/charts/heatmap.png?year={{.Year}}" alt="concentration grid">
</body>
</html>`

var indexTmpl = template.Must(template.New("index").Parse(indexHTML))

type indexData struct {
	Version   string
	Year      string
	Years     []string
	Scenarios []string
}

func (s *Server) index(w http.ResponseWriter, r *http.Request) {
	data := indexData{
		Version:   greengrids.Version,
		Year:      s.defaultYear,
		Years:     s.dataset().Years(),
		Scenarios: capture.ScenarioNames(),
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := indexTmpl.Execute(w, data); err != nil {
		s.Log.WithError(err).Error("greengrids web rendering index")
	}
}
