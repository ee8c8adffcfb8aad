package raid

import (
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

var (
	storCliDriveRe = regexp.MustCompile(`Drive /c(\d+)/e(\d+)/s(\d+)`)
	storCliVdRe    = regexp.MustCompile(`/c(\d+)/v(\d+)`)
)

// storCliGoodStates are the drive states that mean the slot is usable:
// online, hotspares, unconfigured-good, JBOD. Everything else is failed.
var storCliGoodStates = map[string]bool{
	"Onln":  true,
	"GHS":   true,
	"DHS":   true,
	"UGood": true,
	"JBOD":  true,
}

// StorCli parses Broadcom/LSI controllers through storcli, which talks
// JSON: every response is a Controllers array whose per-controller
// "Response Data" object carries dynamic, drive-addressed keys.
type StorCli struct {
	exe string
}

// NewStorCli returns a StorCli manager, or ErrExecutableNotFound when no
// storcli binary is on PATH.
func NewStorCli() (Manager, error) {
	exe, err := FindExecutable("storcli", "storcli64")
	if err != nil {
		return nil, err
	}
	return &StorCli{exe: exe}, nil
}

func (s *StorCli) Name() string { return "storcli" }

// storCliResponse is the envelope common to all storcli JSON output.
type storCliResponse struct {
	Controllers []struct {
		CommandStatus struct {
			Controller int    `json:"Controller"`
			Status     string `json:"Status"`
		} `json:"Command Status"`
		ResponseData map[string]json.RawMessage `json:"Response Data"`
	} `json:"Controllers"`
}

func decodeStorCli(out []byte) (*storCliResponse, error) {
	var resp storCliResponse
	if err := json.Unmarshal(out, &resp); err != nil {
		return nil, fmt.Errorf("%w: storcli: decoding response: %v", ErrCliFailed, err)
	}
	return &resp, nil
}

// ParseAdapters runs "/call show all" and reads each controller's Basics
// and HwCfg sections.
func (s *StorCli) ParseAdapters() ([]*Adapter, error) {
	out, err := runCli("storcli", s.exe, "/call", "show", "all", "j", "nolog")
	if err != nil {
		return nil, err
	}
	return parseStorCliAdapters(out)
}

func parseStorCliAdapters(out []byte) ([]*Adapter, error) {
	resp, err := decodeStorCli(out)
	if err != nil {
		return nil, err
	}

	var adapters []*Adapter
	for _, controller := range resp.Controllers {
		var basics struct {
			Controller   json.Number `json:"Controller"`
			Model        string      `json:"Model"`
			SerialNumber string      `json:"Serial Number"`
		}
		if raw, ok := controller.ResponseData["Basics"]; ok {
			if err := json.Unmarshal(raw, &basics); err != nil {
				return nil, fmt.Errorf("%w: storcli: decoding Basics: %v", ErrCliFailed, err)
			}
		} else {
			return nil, fmt.Errorf("%w: storcli: controller response without Basics", ErrCliFailed)
		}

		adapter := &Adapter{
			ID:     basics.Controller.String(),
			Name:   basics.Model,
			Serial: basics.SerialNumber,
			Raw:    rawStringMap(controller.ResponseData["Basics"]),
		}

		var hwcfg map[string]any
		if raw, ok := controller.ResponseData["HwCfg"]; ok && json.Unmarshal(raw, &hwcfg) == nil {
			if temp, ok := jsonInt(hwcfg["ROC temperature(Degree Celsius)"]); ok {
				adapter.Temperature = &temp
			}
		}

		adapters = append(adapters, adapter)
	}

	return adapters, nil
}

// storCliBasic is one row of the EID:Slt drive summary table.
type storCliBasic struct {
	EIDSlt string      `json:"EID:Slt"`
	DID    json.Number `json:"DID"`
	State  string      `json:"State"`
	Size   string      `json:"Size"`
	Intf   string      `json:"Intf"`
	Med    string      `json:"Med"`
	Model  string      `json:"Model"`
}

// ParsePhysicalDrives runs "/call/eall/sall show all". The response data
// keys come in pairs: "Drive /cC/eE/sS" holds the summary row and
// "Drive /cC/eE/sS - Detailed Information" the per-drive sections.
func (s *StorCli) ParsePhysicalDrives() (map[string]*PhysicalDrive, error) {
	out, err := runCli("storcli", s.exe, "/call/eall/sall", "show", "all", "j", "nolog")
	if err != nil {
		return nil, err
	}
	return parseStorCliPhysicalDrives(out)
}

func parseStorCliPhysicalDrives(out []byte) (map[string]*PhysicalDrive, error) {
	resp, err := decodeStorCli(out)
	if err != nil {
		return nil, err
	}

	type driveData struct {
		controller string
		basic      storCliBasic
		sections   map[string]map[string]any
	}
	collected := map[string]*driveData{}

	get := func(id string) *driveData {
		if d, ok := collected[id]; ok {
			return d
		}
		d := &driveData{sections: map[string]map[string]any{}}
		collected[id] = d
		return d
	}

	for _, controller := range resp.Controllers {
		for key, raw := range controller.ResponseData {
			switch {
			case strings.HasSuffix(key, "Detailed Information"):
				driveID := strings.TrimSpace(strings.Split(key, "-")[0])
				var detail map[string]map[string]any
				if err := json.Unmarshal(raw, &detail); err != nil {
					return nil, fmt.Errorf("%w: storcli: decoding %q: %v", ErrCliFailed, key, err)
				}
				d := get(driveID)
				for section, values := range detail {
					d.sections[strings.TrimSpace(strings.ReplaceAll(section, driveID, ""))] = values
				}
			case strings.HasPrefix(key, "Drive /c"):
				var rows []storCliBasic
				if err := json.Unmarshal(raw, &rows); err != nil || len(rows) == 0 {
					return nil, fmt.Errorf("%w: storcli: decoding %q", ErrCliFailed, key)
				}
				d := get(key)
				d.basic = rows[0]
				d.controller = strconv.Itoa(controller.CommandStatus.Controller)
			}
		}
	}

	drives := make(map[string]*PhysicalDrive, len(collected))
	for driveID, d := range collected {
		m := storCliDriveRe.FindStringSubmatch(driveID)
		if m == nil {
			return nil, fmt.Errorf("%w: storcli: unexpected drive id %q", ErrCliFailed, driveID)
		}
		slot := m[3]

		state := d.sections["State"]
		mediaErrs, _ := jsonInt(state["Media Error Count"])
		otherErrs, _ := jsonInt(state["Other Error Count"])
		predFails, _ := jsonInt(state["Predictive Failure Count"])

		temperature := ""
		if t, ok := state["Drive Temperature"].(string); ok {
			temperature = firstField(strings.TrimSpace(t)) // keep Celsius, drop Fahrenheit
		}
		fru := ""
		if f, ok := d.sections["Device attributes"]["FRU/CRU"].(string); ok {
			fru = strings.TrimSpace(f)
		}
		hotspare := false
		if cs, ok := d.sections["Policies/Settings"]["Commissioned Spare"].(string); ok {
			hotspare = cs != "No"
		}

		drives[d.basic.EIDSlt] = &PhysicalDrive{
			ID:          d.basic.DID.String(),
			AdapterID:   d.controller,
			State:       d.basic.State,
			Size:        d.basic.Size,
			Protocol:    d.basic.Intf,
			DriveType:   d.basic.Model,
			FRU:         fru,
			Temperature: temperature,
			Status:      classifyStorCliDrive(d.basic.State, mediaErrs, otherErrs, predFails),
			Slot:        slot,
			Hotspare:    hotspare,
		}
	}

	return drives, nil
}

// classifyStorCliDrive applies storcli's state vocabulary: unusable or
// unknown states are failed, nonzero error counters on a usable drive
// mean failing.
func classifyStorCliDrive(state string, mediaErrs, otherErrs, predFails int) Status {
	if !storCliGoodStates[state] {
		return StatusFailed
	}
	if mediaErrs != 0 || otherErrs != 0 || predFails != 0 {
		return StatusFailing
	}
	return StatusGood
}

// ParseLogicalDrives runs "/call/vall show all". Each virtual drive
// spreads over three response keys: "/cC/vV" (summary), "PDs for VD N"
// (membership) and "VDN Properties".
func (s *StorCli) ParseLogicalDrives() ([]*LogicalDrive, error) {
	out, err := runCli("storcli", s.exe, "/call/vall", "show", "all", "j", "nolog")
	if err != nil {
		return nil, err
	}
	return parseStorCliLogicalDrives(out)
}

func parseStorCliLogicalDrives(out []byte) ([]*LogicalDrive, error) {
	resp, err := decodeStorCli(out)
	if err != nil {
		return nil, err
	}

	type vdData struct {
		controller string
		summary    map[string]any
		members    []string
		properties map[string]any
	}
	collected := map[string]*vdData{}

	get := func(id string) *vdData {
		if d, ok := collected[id]; ok {
			return d
		}
		d := &vdData{}
		collected[id] = d
		return d
	}

	for _, controller := range resp.Controllers {
		for key, raw := range controller.ResponseData {
			switch {
			case strings.HasPrefix(key, "PDs for"):
				fields := strings.Fields(key)
				var rows []struct {
					EIDSlt string `json:"EID:Slt"`
				}
				if err := json.Unmarshal(raw, &rows); err != nil {
					return nil, fmt.Errorf("%w: storcli: decoding %q: %v", ErrCliFailed, key, err)
				}
				d := get(fields[len(fields)-1])
				for _, row := range rows {
					d.members = append(d.members, row.EIDSlt)
				}
			case strings.HasSuffix(key, "Properties"):
				vd := strings.TrimPrefix(strings.Fields(key)[0], "VD")
				var props map[string]any
				if err := json.Unmarshal(raw, &props); err != nil {
					return nil, fmt.Errorf("%w: storcli: decoding %q: %v", ErrCliFailed, key, err)
				}
				get(vd).properties = props
			default:
				m := storCliVdRe.FindStringSubmatch(key)
				if m == nil {
					continue
				}
				var rows []map[string]any
				if err := json.Unmarshal(raw, &rows); err != nil || len(rows) == 0 {
					return nil, fmt.Errorf("%w: storcli: decoding %q", ErrCliFailed, key)
				}
				d := get(m[2])
				d.controller = m[1]
				d.summary = rows[0]
			}
		}
	}

	ids := make([]string, 0, len(collected))
	for id := range collected {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	drives := make([]*LogicalDrive, 0, len(ids))
	for _, id := range ids {
		d := collected[id]
		if d.summary == nil {
			return nil, fmt.Errorf("%w: storcli: virtual drive %s has no summary row", ErrCliFailed, id)
		}
		state, _ := d.summary["State"].(string)
		level, _ := d.summary["TYPE"].(string)
		size, _ := d.summary["Size"].(string)

		drives = append(drives, &LogicalDrive{
			ID:          id,
			RaidLevel:   level,
			Size:        size,
			State:       state,
			Problem:     state != "Optl",
			AdapterID:   d.controller,
			PhyDriveIDs: d.members,
			Raw:         stringifyMap(d.properties),
		})
	}

	return drives, nil
}

// jsonInt coerces a decoded JSON value (float64 or numeric string) into
// an int. storcli reports counters as numbers but placeholders like
// "N/A" as strings.
func jsonInt(v any) (int, bool) {
	switch n := v.(type) {
	case float64:
		return int(n), true
	case string:
		fields := strings.Fields(n)
		if len(fields) == 0 {
			return 0, false
		}
		i, err := strconv.Atoi(fields[0])
		if err != nil {
			return 0, false
		}
		return i, true
	default:
		return 0, false
	}
}

// rawStringMap flattens a JSON object into string key/values for the
// opaque Raw field.
func rawStringMap(raw json.RawMessage) map[string]string {
	var m map[string]any
	if raw == nil || json.Unmarshal(raw, &m) != nil {
		return nil
	}
	return stringifyMap(m)
}

func stringifyMap(m map[string]any) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = fmt.Sprint(v)
	}
	return out
}
