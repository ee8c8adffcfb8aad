package raid

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// megaCliRaidLevels maps MegaCli's verbose RAID level descriptions to the
// conventional names. Unlisted combinations render as "?".
var megaCliRaidLevels = map[string]string{
	"Primary-0, Secondary-0, RAID Level Qualifier-0": "RAID0",
	"Primary-1, Secondary-0, RAID Level Qualifier-0": "RAID1",
	"Primary-5, Secondary-0, RAID Level Qualifier-3": "RAID5",
	"Primary-6, Secondary-0, RAID Level Qualifier-3": "RAID6",
}

// megaCliGoodStates are firmware state substrings that mean a drive is
// usable. Anything not matched here (and not caught by the failure
// checks first) classifies as failed, never as good.
var megaCliGoodStates = []string{
	"online", "spun up", "spun down", "hotspare", "unconfigured(good)", "jbod", "rebuild", "copyback",
}

// MegaCli parses LSI MegaRAID controllers through the MegaCli tool.
type MegaCli struct {
	exe string
}

// NewMegaCli returns a MegaCli manager, or ErrExecutableNotFound when no
// MegaCli binary is on PATH.
func NewMegaCli() (Manager, error) {
	exe, err := FindExecutable("megacli", "MegaCli", "MegaCli64")
	if err != nil {
		return nil, err
	}
	return &MegaCli{exe: exe}, nil
}

func (m *MegaCli) Name() string { return "megacli" }

// megaCliDriveKey builds the composite physical-drive key. Device Ids
// are assigned per adapter, so the bare id can repeat across adapters.
func megaCliDriveKey(adapterID, deviceID string) string {
	return adapterID + ":" + deviceID
}

// ParseAdapters runs "adpallinfo" and extracts one adapter per
// "Adapter #N" block.
func (m *MegaCli) ParseAdapters() ([]*Adapter, error) {
	out, err := runCli("megacli", m.exe, "adpallinfo", "aall", "nolog")
	if err != nil {
		return nil, err
	}
	return parseMegaCliAdapters(out)
}

func parseMegaCliAdapters(out []byte) ([]*Adapter, error) {
	var blocks []map[string]string
	var block map[string]string

	for _, line := range strings.Split(string(out), "\n") {
		line = strings.TrimRight(line, " \t\r")

		if strings.HasPrefix(line, "Adapter #") {
			block = map[string]string{"id": strings.TrimPrefix(line, "Adapter #")}
			blocks = append(blocks, block)
		} else if block != nil {
			if key, value, ok := matchProp(line); ok {
				block[key] = value
			}
		}
	}

	sort.Slice(blocks, func(i, j int) bool { return blocks[i]["id"] < blocks[j]["id"] })

	adapters := make([]*Adapter, 0, len(blocks))
	for _, block := range blocks {
		name, ok := block["Product Name"]
		if !ok {
			return nil, fmt.Errorf("%w: megacli: adapter %s has no product name", ErrCliFailed, block["id"])
		}

		adapter := &Adapter{
			ID:     block["id"],
			Name:   name,
			Serial: block["Serial No"],
			Raw:    block,
		}
		if temp, ok := block["ROC temperature"]; ok {
			adapter.Temperature = intField(temp)
		}
		adapters = append(adapters, adapter)
	}

	return adapters, nil
}

// ParsePhysicalDrives runs "pdlist" and splits the output into per-drive
// blocks, which MegaCli separates with a run of three blank lines.
func (m *MegaCli) ParsePhysicalDrives() (map[string]*PhysicalDrive, error) {
	out, err := runCli("megacli", m.exe, "pdlist", "aall", "nolog")
	if err != nil {
		return nil, err
	}
	return parseMegaCliPhysicalDrives(out)
}

func parseMegaCliPhysicalDrives(out []byte) (map[string]*PhysicalDrive, error) {
	adapter := ""
	var blocks []map[string]string
	block := map[string]string{}
	blanks := 0
	hotspares := map[int]bool{}

	flush := func() {
		if len(block) > 1 { // more than the implicit adapter_id
			blocks = append(blocks, block)
		}
		block = map[string]string{}
	}

	for _, line := range strings.Split(string(out), "\n") {
		line = strings.TrimRight(line, " \t\r")

		if line == "" {
			blanks++
		} else {
			blanks = 0
		}
		if blanks == 3 {
			flush()
		}

		if strings.HasPrefix(line, "Adapter #") {
			adapter = strings.TrimPrefix(line, "Adapter #")
		}
		if adapter == "" { // ignore the banner before the first adapter
			continue
		}

		block["adapter_id"] = adapter
		if key, value, ok := matchProp(line); ok {
			block[key] = value
		} else if strings.HasPrefix(line, "Hotspare Information:") {
			hotspares[len(blocks)] = true
		}
	}
	flush()

	drives := make(map[string]*PhysicalDrive, len(blocks))
	for i, block := range blocks {
		id, ok := block["Device Id"]
		if !ok {
			return nil, fmt.Errorf("%w: megacli: physical drive block without device id", ErrCliFailed)
		}

		drives[megaCliDriveKey(block["adapter_id"], id)] = &PhysicalDrive{
			ID:          id,
			AdapterID:   block["adapter_id"],
			State:       block["Firmware state"],
			Size:        strings.TrimSpace(strings.Split(block["Raw Size"], "[")[0]),
			Protocol:    block["PD Type"],
			DriveType:   strings.Join(strings.Fields(block["Inquiry Data"]), " "),
			FRU:         block["IBM FRU/CRU"],
			Temperature: firstField(block["Drive Temperature"]),
			Status:      classifyMegaCliDrive(block["Firmware state"], block["Predictive Failure Count"]),
			Slot:        block["Slot Number"],
			Hotspare:    hotspares[i],
			Raw:         block,
		}
	}

	return drives, nil
}

// classifyMegaCliDrive maps a firmware state plus the predictive failure
// counter into a severity. Unknown firmware vocabulary is failed.
func classifyMegaCliDrive(firmwareState, predictiveFailures string) Status {
	state := strings.ToLower(firmwareState)

	if strings.Contains(state, "bad") || strings.Contains(state, "failed") || strings.Contains(state, "offline") {
		return StatusFailed
	}
	if predictiveFailures != "" && predictiveFailures != "0" {
		return StatusFailing
	}
	for _, good := range megaCliGoodStates {
		if strings.Contains(state, good) {
			return StatusGood
		}
	}
	return StatusFailed
}

var (
	megaCliAdapterRe = regexp.MustCompile(`Adapter #(\d+)`)
	megaCliVdriveRe  = regexp.MustCompile(`Virtual Drive: (\d+)`)
)

// ParseLogicalDrives runs "ldpdinfo", whose output nests virtual-drive
// blocks and their member drives under each adapter.
func (m *MegaCli) ParseLogicalDrives() ([]*LogicalDrive, error) {
	out, err := runCli("megacli", m.exe, "ldpdinfo", "aall", "nolog")
	if err != nil {
		return nil, err
	}
	return parseMegaCliLogicalDrives(out)
}

func parseMegaCliLogicalDrives(out []byte) ([]*LogicalDrive, error) {
	type vdBlock struct {
		props   map[string]string
		members []string
	}

	adapterID := ""
	driveID := ""
	inProps := false

	var order []*vdBlock
	var block *vdBlock

	for _, line := range strings.Split(string(out), "\n") {
		line = strings.TrimRight(line, " \t\r")

		switch {
		case strings.HasPrefix(line, "Adapter #"):
			adapterID = megaCliAdapterRe.FindStringSubmatch(line)[1]
		case strings.HasPrefix(line, "Virtual Drive: "):
			driveID = megaCliVdriveRe.FindStringSubmatch(line)[1]
			block = &vdBlock{props: map[string]string{"id": driveID, "adapter_id": adapterID}}
			order = append(order, block)
			inProps = true
		case strings.HasPrefix(line, "PD:"):
			inProps = false
		}

		if adapterID == "" || driveID == "" {
			continue
		}

		if inProps {
			if key, value, ok := matchProp(line); ok {
				block.props[key] = value
			}
		} else if strings.HasPrefix(line, "Device Id:") {
			_, value, _ := matchProp(line)
			block.members = append(block.members, megaCliDriveKey(adapterID, value))
		}
	}

	drives := make([]*LogicalDrive, 0, len(order))
	for _, block := range order {
		level, ok := megaCliRaidLevels[block.props["RAID Level"]]
		if !ok {
			level = "?"
		}
		drives = append(drives, &LogicalDrive{
			ID:          block.props["id"],
			RaidLevel:   level,
			Size:        block.props["Size"],
			State:       block.props["State"],
			Problem:     block.props["State"] != "Optimal",
			AdapterID:   block.props["adapter_id"],
			PhyDriveIDs: block.members,
			Raw:         block.props,
		})
	}

	return drives, nil
}

// firstField returns the first whitespace-separated token, dropping
// trailers like the Fahrenheit half of "30C (86.00 F)".
func firstField(value string) string {
	fields := strings.Fields(value)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}
