package raid

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var (
	arcconfCountRe  = regexp.MustCompile(`Controllers found:\s*(\d+)`)
	arcconfDeviceRe = regexp.MustCompile(`^Device #(\d+)$`)
	arcconfLdRe     = regexp.MustCompile(`(?i)^Logical device number (\d+)$`)
	arcconfMemberRe = regexp.MustCompile(`^Device (\d+)$`)
	arcconfSlotRe   = regexp.MustCompile(`Slot (\d+)`)
)

// arcconfGoodStates is the usable-drive vocabulary for Adaptec/Microchip
// controllers. Unknown states classify as failed.
var arcconfGoodStates = map[string]bool{
	"Online":              true,
	"Optimal":             true,
	"Ready":               true,
	"Hot Spare":           true,
	"Global Hot-Spare":    true,
	"Dedicated Hot-Spare": true,
	"Raw (Pass Through)":  true,
}

// Arcconf parses Adaptec/Microchip SmartRAID controllers through the
// arcconf tool: indented "key : value" text under Device / Logical
// Device headers.
type Arcconf struct {
	exe string
}

// NewArcconf returns an Arcconf manager, or ErrExecutableNotFound when
// arcconf is not on PATH.
func NewArcconf() (Manager, error) {
	exe, err := FindExecutable("arcconf", "Arcconf")
	if err != nil {
		return nil, err
	}
	return &Arcconf{exe: exe}, nil
}

func (a *Arcconf) Name() string { return "arcconf" }

// arcconfDriveKey builds the composite physical-drive key. arcconf
// numbers devices per controller, so bare device numbers repeat across
// controllers.
func arcconfDriveKey(adapterID, deviceID string) string {
	return adapterID + ":" + deviceID
}

// controllerIDs runs "arcconf list" and returns the controller numbers,
// which arcconf counts from 1.
func (a *Arcconf) controllerIDs() ([]string, error) {
	out, err := runCli("arcconf", a.exe, "list")
	if err != nil {
		return nil, err
	}
	return parseArcconfControllerIDs(out)
}

func parseArcconfControllerIDs(out []byte) ([]string, error) {
	m := arcconfCountRe.FindSubmatch(out)
	if m == nil {
		return nil, fmt.Errorf("%w: arcconf: no controller count in list output", ErrCliFailed)
	}
	count, _ := strconv.Atoi(string(m[1]))
	if count == 0 {
		return nil, fmt.Errorf("%w: arcconf: no controllers found", ErrCliFailed)
	}

	ids := make([]string, count)
	for i := range ids {
		ids[i] = strconv.Itoa(i + 1)
	}
	return ids, nil
}

// ParseAdapters runs "getconfig N ad" for every controller.
func (a *Arcconf) ParseAdapters() ([]*Adapter, error) {
	ids, err := a.controllerIDs()
	if err != nil {
		return nil, err
	}

	var adapters []*Adapter
	for _, id := range ids {
		out, err := runCli("arcconf", a.exe, "getconfig", id, "ad")
		if err != nil {
			return nil, err
		}
		adapter, err := parseArcconfAdapter(out, id)
		if err != nil {
			return nil, err
		}
		adapters = append(adapters, adapter)
	}
	return adapters, nil
}

func parseArcconfAdapter(out []byte, id string) (*Adapter, error) {
	props := map[string]string{}
	for _, line := range strings.Split(string(out), "\n") {
		if key, value, ok := matchProp(strings.TrimSpace(line)); ok {
			if _, seen := props[key]; !seen { // later sections reuse key names
				props[key] = value
			}
		}
	}

	name, ok := props["Controller Model"]
	if !ok {
		return nil, fmt.Errorf("%w: arcconf: controller %s has no model", ErrCliFailed, id)
	}

	adapter := &Adapter{
		ID:     id,
		Name:   name,
		Serial: props["Controller Serial Number"],
		Raw:    props,
	}
	if temp, ok := props["Temperature"]; ok {
		adapter.Temperature = intField(temp)
	}
	return adapter, nil
}

// ParsePhysicalDrives runs "getconfig N pd" for every controller and
// parses the "Device #N" blocks. Non-disk devices (enclosure processors,
// SGPIO endpoints) are skipped.
func (a *Arcconf) ParsePhysicalDrives() (map[string]*PhysicalDrive, error) {
	ids, err := a.controllerIDs()
	if err != nil {
		return nil, err
	}

	drives := map[string]*PhysicalDrive{}
	for _, id := range ids {
		out, err := runCli("arcconf", a.exe, "getconfig", id, "pd")
		if err != nil {
			return nil, err
		}
		for key, drive := range parseArcconfPhysicalDrives(out, id) {
			drives[key] = drive
		}
	}
	return drives, nil
}

func parseArcconfPhysicalDrives(out []byte, adapterID string) map[string]*PhysicalDrive {
	type pdBlock struct {
		id     string
		isDisk bool
		props  map[string]string
	}

	var blocks []*pdBlock
	var block *pdBlock

	for _, line := range strings.Split(string(out), "\n") {
		line = strings.TrimSpace(line)

		if m := arcconfDeviceRe.FindStringSubmatch(line); m != nil {
			block = &pdBlock{id: m[1], props: map[string]string{}}
			blocks = append(blocks, block)
			continue
		}
		if block == nil {
			continue
		}
		if line == "Device is a Hard drive" {
			block.isDisk = true
			continue
		}
		if key, value, ok := matchProp(line); ok {
			if _, seen := block.props[key]; !seen {
				block.props[key] = value
			}
		}
	}

	drives := map[string]*PhysicalDrive{}
	for _, block := range blocks {
		if !block.isDisk {
			continue
		}

		slot := ""
		if m := arcconfSlotRe.FindStringSubmatch(block.props["Reported Location"]); m != nil {
			slot = m[1]
		}
		temperature := ""
		if t := intField(block.props["Current Temperature"]); t != nil {
			temperature = strconv.Itoa(*t)
		}
		state := block.props["State"]

		drives[arcconfDriveKey(adapterID, block.id)] = &PhysicalDrive{
			ID:          block.id,
			AdapterID:   adapterID,
			State:       state,
			Size:        block.props["Total Size"],
			Protocol:    firstField(block.props["Transfer Speed"]),
			DriveType:   strings.TrimSpace(block.props["Vendor"] + " " + block.props["Model"]),
			Temperature: temperature,
			Status:      classifyArcconfDrive(state, block.props["S.M.A.R.T. warnings"]),
			Slot:        slot,
			Hotspare:    strings.Contains(strings.ToLower(state), "spare"),
			Raw:         block.props,
		}
	}

	return drives
}

// classifyArcconfDrive combines the device state vocabulary with the
// S.M.A.R.T. warning counter.
func classifyArcconfDrive(state, smartWarnings string) Status {
	if !arcconfGoodStates[state] {
		return StatusFailed
	}
	if smartWarnings != "" && smartWarnings != "0" {
		return StatusFailing
	}
	return StatusGood
}

// ParseLogicalDrives runs "getconfig N ld". Each "Logical Device number"
// block carries its membership as trailing "Device N : Present (...)"
// rows, so no secondary query is needed.
func (a *Arcconf) ParseLogicalDrives() ([]*LogicalDrive, error) {
	ids, err := a.controllerIDs()
	if err != nil {
		return nil, err
	}

	var drives []*LogicalDrive
	for _, id := range ids {
		out, err := runCli("arcconf", a.exe, "getconfig", id, "ld")
		if err != nil {
			return nil, err
		}
		drives = append(drives, parseArcconfLogicalDrives(out, id)...)
	}
	return drives, nil
}

func parseArcconfLogicalDrives(out []byte, adapterID string) []*LogicalDrive {
	type ldBlock struct {
		id      string
		props   map[string]string
		members []string
	}

	var blocks []*ldBlock
	var block *ldBlock

	for _, line := range strings.Split(string(out), "\n") {
		line = strings.TrimSpace(line)

		if m := arcconfLdRe.FindStringSubmatch(line); m != nil {
			block = &ldBlock{id: m[1], props: map[string]string{}}
			blocks = append(blocks, block)
			continue
		}
		if block == nil {
			continue
		}
		key, value, ok := matchProp(line)
		if !ok {
			continue
		}
		if m := arcconfMemberRe.FindStringSubmatch(key); m != nil {
			if strings.HasPrefix(value, "Present") {
				block.members = append(block.members, arcconfDriveKey(adapterID, m[1]))
			}
			continue
		}
		if _, seen := block.props[key]; !seen {
			block.props[key] = value
		}
	}

	drives := make([]*LogicalDrive, 0, len(blocks))
	for _, block := range blocks {
		status := block.props["Status of Logical Device"]
		level := block.props["RAID level"]
		if level != "" && !strings.HasPrefix(strings.ToUpper(level), "RAID") {
			level = "RAID" + level
		}

		drives = append(drives, &LogicalDrive{
			ID:          block.id,
			RaidLevel:   level,
			Size:        block.props["Size"],
			State:       status,
			Problem:     status != "Optimal",
			AdapterID:   adapterID,
			PhyDriveIDs: block.members,
			Raw:         block.props,
		})
	}

	return drives
}
