package report

import (
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/ccbr/server-reports/internal/raid"
	"github.com/ccbr/server-reports/internal/render"
)

// raidPayloadVersion identifies the wire schema so the endpoint can
// evolve it without guessing.
const raidPayloadVersion = 2

// RAID reports the controller topology found by a RAID manager.
type RAID struct {
	manager  raid.Manager
	topology *raid.Topology
}

// NewRAID wraps an already selected manager in a Report.
func NewRAID(m raid.Manager) *RAID {
	return &RAID{manager: m}
}

func (r *RAID) Name() string { return "raid" }

// Collect runs the manager's three parse phases and links the result.
func (r *RAID) Collect() error {
	topology, err := raid.Collect(r.manager)
	if err != nil {
		return fmt.Errorf("raid report: %w", err)
	}
	r.topology = topology
	return nil
}

// Wire types. The payload carries the normalized fields only; the raw
// vendor properties never leave the host.

type raidPayload struct {
	Ver      int              `json:"ver"`
	Manager  string           `json:"manager"`
	Adapters []adapterPayload `json:"adapters"`
}

type adapterPayload struct {
	ID            string                 `json:"id"`
	Name          string                 `json:"name"`
	Serial        string                 `json:"serial,omitempty"`
	Temperature   *int                   `json:"temperature,omitempty"`
	LogicalDrives []logicalDrivePayload  `json:"logical_drives"`
	SpareDrives   []physicalDrivePayload `json:"spare_drives"`
}

type logicalDrivePayload struct {
	ID             string                 `json:"id"`
	RaidLevel      string                 `json:"raid_level"`
	Size           string                 `json:"size"`
	State          string                 `json:"state"`
	Problem        bool                   `json:"problem"`
	PhysicalDrives []physicalDrivePayload `json:"physical_drives"`
}

type physicalDrivePayload struct {
	ID          string      `json:"id"`
	Slot        string      `json:"slot,omitempty"`
	State       string      `json:"state"`
	Status      raid.Status `json:"status"`
	Size        string      `json:"size"`
	Protocol    string      `json:"protocol,omitempty"`
	DriveType   string      `json:"drive_type,omitempty"`
	FRU         string      `json:"fru,omitempty"`
	Temperature string      `json:"temperature,omitempty"`
	Hotspare    bool        `json:"hotspare"`
}

func physicalPayload(d *raid.PhysicalDrive) physicalDrivePayload {
	return physicalDrivePayload{
		ID:          d.ID,
		Slot:        d.Slot,
		State:       d.State,
		Status:      d.Status,
		Size:        d.Size,
		Protocol:    d.Protocol,
		DriveType:   d.DriveType,
		FRU:         d.FRU,
		Temperature: d.Temperature,
		Hotspare:    d.Hotspare,
	}
}

// Payload projects the linked topology into the versioned wire form.
func (r *RAID) Payload() any {
	payload := raidPayload{Ver: raidPayloadVersion, Manager: r.manager.Name()}
	if r.topology == nil {
		return payload
	}

	for _, adapter := range r.topology.Adapters {
		ap := adapterPayload{
			ID:            adapter.ID,
			Name:          adapter.Name,
			Serial:        adapter.Serial,
			Temperature:   adapter.Temperature,
			LogicalDrives: []logicalDrivePayload{},
			SpareDrives:   []physicalDrivePayload{},
		}
		for _, ld := range adapter.LogicalDrives {
			lp := logicalDrivePayload{
				ID:             ld.ID,
				RaidLevel:      ld.RaidLevel,
				Size:           ld.Size,
				State:          ld.State,
				Problem:        ld.Problem,
				PhysicalDrives: []physicalDrivePayload{},
			}
			for _, pd := range ld.PhysicalDrives {
				lp.PhysicalDrives = append(lp.PhysicalDrives, physicalPayload(pd))
			}
			ap.LogicalDrives = append(ap.LogicalDrives, lp)
		}
		for _, pd := range adapter.SparePhysicalDrives {
			ap.SpareDrives = append(ap.SpareDrives, physicalPayload(pd))
		}
		payload.Adapters = append(payload.Adapters, ap)
	}
	return payload
}

// Render prints one table per adapter: logical drives first, then every
// physical drive with its array assignment.
func (r *RAID) Render(w io.Writer) {
	if r.topology == nil {
		fmt.Fprintln(w, "raid: nothing collected")
		return
	}

	for _, adapter := range r.topology.Adapters {
		title := fmt.Sprintf("Adapter %s: %s", adapter.ID, adapter.Name)
		if adapter.Temperature != nil {
			title = fmt.Sprintf("%s (%dC)", title, *adapter.Temperature)
		}

		lt := render.NewTable(w, title)
		lt.AppendHeader(table.Row{"Array", "Level", "Size", "State", "Drives"})
		for _, ld := range adapter.LogicalDrives {
			lt.AppendRow(table.Row{
				ld.ID, ld.RaidLevel, ld.Size,
				render.StatusCell(w, ld.State, !ld.Problem),
				len(ld.PhysicalDrives),
			})
		}
		lt.Render()

		dt := render.NewTable(w, "")
		dt.AppendHeader(table.Row{"Slot", "Drive", "Size", "Model", "Array", "State", "Status"})
		for _, ld := range adapter.LogicalDrives {
			for _, pd := range ld.PhysicalDrives {
				appendDriveRow(dt, w, pd, ld.ID)
			}
		}
		for _, pd := range adapter.SparePhysicalDrives {
			appendDriveRow(dt, w, pd, "spare")
		}
		dt.Render()
	}
}

func appendDriveRow(t table.Writer, w io.Writer, pd *raid.PhysicalDrive, array string) {
	t.AppendRow(table.Row{
		pd.Slot, pd.ID, pd.Size, pd.DriveType, array, pd.State,
		render.StatusCell(w, pd.Status.String(), pd.Status == raid.StatusGood),
	})
}
