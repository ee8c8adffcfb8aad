// Package usage reports filesystem capacity for locally backed mounts.
package usage

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/rs/zerolog/log"
	"github.com/shirou/gopsutil/v3/disk"

	"github.com/ccbr/server-reports/internal/render"
)

// Swapped out in tests.
var (
	partitions = disk.Partitions
	usageOf    = disk.Usage
)

const payloadVersion = 1

// Filesystem is the measured capacity of one mounted filesystem.
type Filesystem struct {
	Device     string  `json:"device"`
	MountPoint string  `json:"mount_point"`
	FSType     string  `json:"fs_type"`
	Size       uint64  `json:"size"`
	Used       uint64  `json:"used"`
	Free       uint64  `json:"free"`
	UsedPct    float64 `json:"used_pct"`
}

// Report measures every device-backed mount. Network filesystems are
// excluded; a stale NFS mount would hang the statfs call.
type Report struct {
	filesystems []Filesystem
}

func New() *Report { return &Report{} }

func (r *Report) Name() string { return "disk_usage" }

func (r *Report) Collect() error {
	parts, err := partitions(false)
	if err != nil {
		return fmt.Errorf("disk_usage: listing mounts: %w", err)
	}

	r.filesystems = r.filesystems[:0]
	for _, p := range parts {
		if !strings.HasPrefix(p.Device, "/dev/") {
			continue
		}
		stat, err := usageOf(p.Mountpoint)
		if err != nil {
			log.Warn().Err(err).Str("mount", p.Mountpoint).Msg("statfs failed")
			continue
		}
		r.filesystems = append(r.filesystems, Filesystem{
			Device:     p.Device,
			MountPoint: p.Mountpoint,
			FSType:     p.Fstype,
			Size:       stat.Total,
			Used:       stat.Used,
			Free:       stat.Free,
			UsedPct:    stat.UsedPercent,
		})
	}

	sort.Slice(r.filesystems, func(i, j int) bool {
		return r.filesystems[i].MountPoint < r.filesystems[j].MountPoint
	})
	return nil
}

func (r *Report) Payload() any {
	return struct {
		Ver         int          `json:"ver"`
		Filesystems []Filesystem `json:"filesystems"`
	}{payloadVersion, r.filesystems}
}

func (r *Report) Render(w io.Writer) {
	if len(r.filesystems) == 0 {
		fmt.Fprintln(w, "disk_usage: no local filesystems")
		return
	}

	t := render.NewTable(w, "Disk usage")
	t.AppendHeader(table.Row{"Mount", "Device", "Type", "Size", "Used", "Free", "Use%"})
	for _, fs := range r.filesystems {
		use := fmt.Sprintf("%.0f%%", fs.UsedPct)
		t.AppendRow(table.Row{
			fs.MountPoint, fs.Device, fs.FSType,
			humanize.IBytes(fs.Size), humanize.IBytes(fs.Used), humanize.IBytes(fs.Free),
			render.StatusCell(w, use, fs.UsedPct < 90),
		})
	}
	t.Render()
}
