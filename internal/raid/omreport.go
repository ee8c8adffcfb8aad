package raid

import (
	"fmt"
	"sort"
	"strings"
)

// omreportStatusMap normalizes Dell OpenManage status values. Anything
// not listed classifies as failed.
var omreportStatusMap = map[string]Status{
	"Ok":           StatusGood,
	"Non-Critical": StatusFailing,
	"Critical":     StatusFailed,
}

// Omreport parses Dell PERC controllers through omreport. Physical and
// logical drive queries are scoped per controller, so adapters have to
// be parsed first; membership needs one extra pdisk query per vdisk.
type Omreport struct {
	exe      string
	adapters []*Adapter
}

// NewOmreport returns an Omreport manager, or ErrExecutableNotFound when
// omreport is not on PATH.
func NewOmreport() (Manager, error) {
	exe, err := FindExecutable("omreport")
	if err != nil {
		return nil, err
	}
	return &Omreport{exe: exe}, nil
}

func (o *Omreport) Name() string { return "omreport" }

// parseOmreportBlocks cuts "key : value" output into blocks, each
// starting at a line with the given prefix ("Controller" or "ID").
func parseOmreportBlocks(out []byte, prefix string) []map[string]string {
	var blocks []map[string]string
	var block map[string]string

	for _, line := range strings.Split(string(out), "\n") {
		line = strings.TrimRight(line, " \t\r")

		if strings.HasPrefix(line, prefix) {
			block = map[string]string{}
			blocks = append(blocks, block)
		}
		if block == nil {
			continue
		}
		if key, value, ok := matchProp(line); ok {
			block[key] = value
		}
	}

	return blocks
}

// ParseAdapters runs "storage controller".
func (o *Omreport) ParseAdapters() ([]*Adapter, error) {
	out, err := runCli("omreport", o.exe, "storage", "controller")
	if err != nil {
		return nil, err
	}
	adapters, err := parseOmreportAdapters(out)
	if err != nil {
		return nil, err
	}
	o.adapters = adapters
	return adapters, nil
}

func parseOmreportAdapters(out []byte) ([]*Adapter, error) {
	blocks := parseOmreportBlocks(out, "Controller")

	var adapters []*Adapter
	for _, block := range blocks {
		id, ok := block["ID"]
		if !ok {
			continue // controller banner without a body
		}
		name, ok := block["Name"]
		if !ok {
			return nil, fmt.Errorf("%w: omreport: controller %s has no name", ErrCliFailed, id)
		}
		adapters = append(adapters, &Adapter{
			ID:   id,
			Name: name,
			Raw:  block,
		})
	}
	if len(adapters) == 0 {
		return nil, fmt.Errorf("%w: omreport: no controllers in output", ErrCliFailed)
	}

	sort.Slice(adapters, func(i, j int) bool { return adapters[i].ID < adapters[j].ID })
	return adapters, nil
}

// omreportDriveKey builds the composite physical-drive key. Raw omreport
// drive ids (like "0:0:4") repeat across controllers.
func omreportDriveKey(adapterID, driveID string) string {
	return adapterID + ":" + driveID
}

// ParsePhysicalDrives runs "storage pdisk controller=N" for every parsed
// adapter. ParseAdapters must have run first.
func (o *Omreport) ParsePhysicalDrives() (map[string]*PhysicalDrive, error) {
	if len(o.adapters) == 0 {
		return nil, fmt.Errorf("%w: omreport: physical drives need controller info first", ErrCliFailed)
	}

	drives := map[string]*PhysicalDrive{}
	for _, adapter := range o.adapters {
		out, err := runCli("omreport", o.exe, "storage", "pdisk", "controller="+adapter.ID)
		if err != nil {
			return nil, err
		}
		for key, drive := range parseOmreportPhysicalDrives(out, adapter.ID) {
			drives[key] = drive
		}
	}
	return drives, nil
}

func parseOmreportPhysicalDrives(out []byte, adapterID string) map[string]*PhysicalDrive {
	drives := map[string]*PhysicalDrive{}

	for _, block := range parseOmreportBlocks(out, "ID") {
		id, ok := block["ID"]
		if !ok {
			continue
		}
		drives[omreportDriveKey(adapterID, id)] = &PhysicalDrive{
			ID:        id,
			AdapterID: adapterID,
			State:     block["Status"],
			Size:      strings.TrimSpace(strings.Split(block["Capacity"], "(")[0]),
			Protocol:  block["Bus Protocol"],
			DriveType: block["Product ID"],
			Status:    classifyOmreportStatus(block["Status"]),
			Slot:      id,
			Hotspare:  block["Hot Spare"] != "No",
			Raw:       block,
		}
	}

	return drives
}

func classifyOmreportStatus(status string) Status {
	if s, ok := omreportStatusMap[status]; ok {
		return s
	}
	return StatusFailed
}

// ParseLogicalDrives runs "storage vdisk controller=N" per adapter, then
// resolves each vdisk's membership with a scoped pdisk query.
func (o *Omreport) ParseLogicalDrives() ([]*LogicalDrive, error) {
	if len(o.adapters) == 0 {
		return nil, fmt.Errorf("%w: omreport: logical drives need controller info first", ErrCliFailed)
	}

	var drives []*LogicalDrive
	for _, adapter := range o.adapters {
		out, err := runCli("omreport", o.exe, "storage", "vdisk", "controller="+adapter.ID)
		if err != nil {
			return nil, err
		}

		for _, block := range parseOmreportBlocks(out, "ID") {
			id, ok := block["ID"]
			if !ok {
				continue
			}

			memberOut, err := runCli("omreport", o.exe, "storage", "pdisk",
				"controller="+adapter.ID, "vdisk="+id)
			if err != nil {
				return nil, err
			}

			drives = append(drives, newOmreportLogicalDrive(adapter.ID, block,
				parseOmreportMembers(memberOut, adapter.ID)))
		}
	}
	return drives, nil
}

// parseOmreportMembers extracts the member drive keys from a
// vdisk-scoped pdisk listing.
func parseOmreportMembers(out []byte, adapterID string) []string {
	var members []string
	for _, line := range strings.Split(string(out), "\n") {
		line = strings.TrimRight(line, " \t\r")
		if !strings.HasPrefix(line, "ID") {
			continue
		}
		if _, value, ok := matchProp(line); ok {
			members = append(members, omreportDriveKey(adapterID, value))
		}
	}
	return members
}

func newOmreportLogicalDrive(adapterID string, block map[string]string, members []string) *LogicalDrive {
	return &LogicalDrive{
		ID:          block["ID"],
		RaidLevel:   block["Layout"],
		Size:        strings.TrimSpace(strings.Split(block["Size"], "(")[0]),
		State:       fmt.Sprintf("%s (%s)", block["Status"], block["State"]),
		Problem:     block["Status"] != "Ok",
		AdapterID:   adapterID,
		PhyDriveIDs: members,
		Raw:         block,
	}
}
