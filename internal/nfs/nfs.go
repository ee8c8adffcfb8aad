// Package nfs detects stale NFS mounts. A stale handle makes any
// access hang, so each mount point is listed through a timed probe and
// a timeout is the staleness signal.
package nfs

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/rs/zerolog/log"
	"github.com/shirou/gopsutil/v3/disk"

	"github.com/ccbr/server-reports/internal/probe"
	"github.com/ccbr/server-reports/internal/render"
)

// partitions is swapped out in tests.
var partitions = disk.Partitions

const payloadVersion = 1

// Mount is the probe verdict for one NFS mount point.
type Mount struct {
	Path  string `json:"path"`
	Stale bool   `json:"is_stale"`
}

// Report probes every mounted NFS filesystem for staleness.
type Report struct {
	timeout     time.Duration
	concurrency int

	mounts []Mount
}

// New builds the stale-mount check. Zero values fall back to a 10s
// probe timeout and the default worker count.
func New(timeout time.Duration, concurrency int) *Report {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if concurrency <= 0 {
		concurrency = probe.DefaultWorkers
	}
	return &Report{timeout: timeout, concurrency: concurrency}
}

// Name is the delivery key for this report. The config gates the check
// as "stale_nfs", but the wire payload has always used "nfs".
func (r *Report) Name() string { return "nfs" }

// Collect lists NFS mount points and probes each with a timed ls. Only
// a timeout marks a mount stale; a quick failure (permission denied,
// empty export) means the server answered.
func (r *Report) Collect() error {
	parts, err := partitions(true)
	if err != nil {
		return fmt.Errorf("stale_nfs: listing mounts: %w", err)
	}

	var paths []string
	for _, p := range parts {
		if isNFS(p.Fstype) {
			paths = append(paths, p.Mountpoint)
		}
	}
	sort.Strings(paths)
	log.Debug().Int("mounts", len(paths)).Msg("probing NFS mounts")

	outcomes := probe.Map(paths, r.concurrency, func(path string) probe.Result {
		return probe.Run(r.timeout, "ls", path)
	})

	r.mounts = make([]Mount, 0, len(outcomes))
	for _, outcome := range outcomes {
		stale := outcome.Result.State == probe.TimedOut
		if stale {
			log.Warn().Str("mount", outcome.Item).Msg("stale NFS mount")
		}
		r.mounts = append(r.mounts, Mount{Path: outcome.Item, Stale: stale})
	}
	return nil
}

// isNFS matches nfs, nfs4 and friends but not the server-side nfsd
// pseudo filesystem.
func isNFS(fstype string) bool {
	return strings.HasPrefix(fstype, "nfs") && fstype != "nfsd"
}

func (r *Report) Payload() any {
	return struct {
		Ver          int     `json:"ver"`
		StaleTimeout float64 `json:"stale_timeout"`
		MountPoints  []Mount `json:"mount_points"`
	}{payloadVersion, r.timeout.Seconds(), r.mounts}
}

func (r *Report) Render(w io.Writer) {
	if len(r.mounts) == 0 {
		fmt.Fprintln(w, "stale_nfs: no NFS mounts")
		return
	}

	t := render.NewTable(w, "NFS mounts")
	t.AppendHeader(table.Row{"Mount", "Status"})
	for _, m := range r.mounts {
		verdict := "ok"
		if m.Stale {
			verdict = "STALE"
		}
		t.AppendRow(table.Row{m.Path, render.StatusCell(w, verdict, !m.Stale)})
	}
	t.Render()
}
