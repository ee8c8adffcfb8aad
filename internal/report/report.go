// Package report defines the health checks the agent can run and how
// their results leave the host, either rendered for a terminal or
// posted to the collection endpoint as JSON.
package report

import (
	"fmt"
	"io"
	"sort"
)

// Report is one host health check. Collect gathers the data and is the
// only method allowed to fail; Payload and Render present what the last
// Collect found.
type Report interface {
	Name() string
	Collect() error
	Payload() any
	Render(w io.Writer)
}

// Envelope is the document posted to the collection endpoint: one
// entry per collected report, keyed by report name.
type Envelope struct {
	RunID    string         `json:"uuid"`
	Hostname string         `json:"hostname"`
	Reports  map[string]any `json:"reports"`
}

// NewEnvelope pairs collected reports with the host identity.
func NewEnvelope(runID, hostname string, reports []Report) *Envelope {
	env := &Envelope{
		RunID:    runID,
		Hostname: hostname,
		Reports:  make(map[string]any, len(reports)),
	}
	for _, r := range reports {
		env.Reports[r.Name()] = r.Payload()
	}
	return env
}

// Names lists the report names in an envelope, sorted for stable logs.
func (e *Envelope) Names() []string {
	names := make([]string, 0, len(e.Reports))
	for name := range e.Reports {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// RenderAll writes every report's terminal rendering, separated by a
// blank line.
func RenderAll(w io.Writer, reports []Report) {
	for i, r := range reports {
		if i > 0 {
			fmt.Fprintln(w)
		}
		r.Render(w)
	}
}
