// SPDX-FileCopyrightText: 2025 Deutsche Telekom IT GmbH
//
// SPDX-License-Identifier: Apache-2.0

// Package report renders path snapshots into self-contained HTML
// documents. It is used by the api and the diagnose command; the
// measurement engine itself never imports it.
package report

import (
	"html/template"
	"io"
	"strconv"
	"time"

	"github.com/telekom/sandpiper/pkg/session"
)

const reportHTML = `<!DOCTYPE html>
<html>
<head>
<title>Path report for {{.Target}}</title>
<style>
  body { font-family: sans-serif; }
  table { border-collapse: collapse; width: 100%; }
  th, td { border: 1px solid #dddddd; text-align: left; padding: 8px; }
  th { background-color: #f2f2f2; }
  tr.grade-poor { background-color: #e65151; color: white; }
  tr.grade-fair { background-color: #ffd670; }
  tr.grade-good { background-color: #c8e6c9; }
  tr.grade-excellent { background-color: #a5d6a7; }
</style>
</head>
<body>
<h1>Path report for {{.Target}}</h1>
<p>Generated on: {{.Generated}}</p>
<p>Resolved address: {{.Address}} | State: {{.State}} | Cycles: {{.Cycles}}</p>
<table>
<tr><th>Hop #</th><th>Hostname</th><th>Loss %</th><th>Sent</th><th>Recv</th><th>Best</th><th>Avg</th><th>Worst</th><th>Last</th><th>Jitter (ms)</th><th>Stability</th></tr>
{{- range .Hops}}
<tr class="grade-{{.Grade}}"><td>{{.Distance}}</td><td>{{.Host}}</td><td>{{.Loss}}</td><td>{{.Sent}}</td><td>{{.Received}}</td><td>{{.Best}}</td><td>{{.Avg}}</td><td>{{.Worst}}</td><td>{{.Last}}</td><td>{{.Jitter}}</td><td>{{.Grade}}</td></tr>
{{- end}}
</table>
</body>
</html>
`

var reportTemplate = template.Must(template.New("report").Parse(reportHTML))

// reportData is the view model behind the template. All round trip
// columns are preformatted in milliseconds with one decimal.
type reportData struct {
	Target    string
	Address   string
	State     session.State
	Cycles    uint64
	Generated string
	Hops      []hopRow
}

type hopRow struct {
	Distance int
	Host     string
	Loss     string
	Sent     uint64
	Received uint64
	Best     string
	Avg      string
	Worst    string
	Last     string
	Jitter   string
	Grade    session.Grade
}

// Render writes a self-contained HTML report of the snapshot to w.
// The generation time shown in the document is the snapshot's own
// timestamp, so the report always states how old its data is.
func Render(w io.Writer, snap session.Snapshot) error {
	data := reportData{
		Target:    snap.Target,
		Address:   snap.Address,
		State:     snap.State,
		Cycles:    snap.Cycles,
		Generated: snap.Timestamp.UTC().Format("2006-01-02 15:04:05 MST"),
		Hops:      make([]hopRow, 0, len(snap.Hops)),
	}
	if data.Address == "" {
		data.Address = "unresolved"
	}

	for _, hop := range snap.Hops {
		host := hop.Name
		if host == "" {
			host = "*"
		}
		if hop.IsDestination {
			host += " (destination)"
		}
		data.Hops = append(data.Hops, hopRow{
			Distance: hop.Distance,
			Host:     host,
			Loss:     strconv.FormatFloat(hop.Stats.Loss, 'f', 1, 64),
			Sent:     hop.Stats.Sent,
			Received: hop.Stats.Received,
			Best:     ms(hop.Stats.Best),
			Avg:      ms(hop.Stats.Avg),
			Worst:    ms(hop.Stats.Worst),
			Last:     ms(hop.Stats.Last),
			Jitter:   ms(hop.Stats.Jitter),
			Grade:    hop.Grade,
		})
	}

	return reportTemplate.Execute(w, data)
}

// ms formats a duration as milliseconds with one decimal.
func ms(d time.Duration) string {
	return strconv.FormatFloat(float64(d)/float64(time.Millisecond), 'f', 1, 64)
}
