package raid

import (
	"fmt"
	"os"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/ccbr/server-reports/internal/probe"
)

// mdAdapterID is the synthetic adapter standing in for the kernel's md
// layer; software RAID has no controller hardware to report.
const mdAdapterID = "Linux RAID"

// hexEscapeRe matches the \x## escapes lsblk emits for odd bytes in
// model strings.
var hexEscapeRe = regexp.MustCompile(`\\x[0-9a-fA-F]{2}`)

// Mdraid parses Linux software RAID through mdadm. Unlike the hardware
// CLIs there is no single call that associates drives with arrays, so
// membership is reconstructed by joining the Array UUID each drive
// reports under "mdadm --examine" against the UUID in each array's
// "mdadm --detail" output. The per-drive examinations go through the
// bounded prober because a dying drive can hang them.
type Mdraid struct {
	exe         string
	timeout     time.Duration
	concurrency int
	mtabPath    string

	arrays  []string
	pdrives map[string]*PhysicalDrive
}

// NewMdraid returns an Mdraid manager, or ErrExecutableNotFound when
// mdadm is not on PATH.
func NewMdraid(opts Options) (Manager, error) {
	exe, err := FindExecutable("mdadm")
	if err != nil {
		return nil, err
	}
	m := &Mdraid{
		exe:         exe,
		timeout:     10 * time.Second,
		concurrency: probe.DefaultWorkers,
		mtabPath:    "/etc/mtab",
	}
	if opts.ProbeTimeout > 0 {
		m.timeout = opts.ProbeTimeout
	}
	if opts.ProbeConcurrency > 0 {
		m.concurrency = opts.ProbeConcurrency
	}
	return m, nil
}

func (m *Mdraid) Name() string { return "mdraid" }

// ParseAdapters emits the synthetic software-RAID adapter and scans for
// managed arrays. A host where mdadm manages nothing fails here, before
// any drive work.
func (m *Mdraid) ParseAdapters() ([]*Adapter, error) {
	out, err := runCli("mdadm", m.exe, "--detail", "--scan")
	if err != nil {
		return nil, err
	}
	arrays, err := parseMdadmScan(out)
	if err != nil {
		return nil, err
	}
	m.arrays = arrays

	return []*Adapter{{ID: mdAdapterID, Name: mdAdapterID}}, nil
}

func parseMdadmScan(out []byte) ([]string, error) {
	var arrays []string
	for _, line := range strings.Split(string(out), "\n") {
		fields := strings.Fields(line)
		if len(fields) >= 2 && fields[0] == "ARRAY" {
			arrays = append(arrays, fields[1])
		}
	}
	if len(arrays) == 0 {
		return nil, fmt.Errorf("%w: mdadm: not managing any arrays", ErrCliFailed)
	}
	return arrays, nil
}

// ParsePhysicalDrives lists candidate drives with lsblk, drops the ones
// carrying OS partitions, then examines each remaining device with a
// timed mdadm probe. A drive whose examination times out or fails is
// kept with a failing status; it must not sink the run.
func (m *Mdraid) ParsePhysicalDrives() (map[string]*PhysicalDrive, error) {
	osDrives, err := m.osDrives()
	if err != nil {
		return nil, err
	}
	log.Debug().Strs("os_drives", osDrives).Msg("ignoring drives with OS partitions")

	out, err := runCli("lsblk", "lsblk",
		"--ascii", "--nodeps", "--noheadings", "--raw",
		"--output", "NAME,MAJ:MIN,MODEL,SIZE,STATE")
	if err != nil {
		return nil, err
	}

	drives := parseLsblkDrives(out, osDrives)

	// mdadm reads the superblock from the partition when one exists.
	byPath := make(map[string]string, len(drives))
	for name := range drives {
		path := "/dev/" + name
		if _, err := os.Stat(path + "1"); err == nil {
			path += "1"
		}
		byPath[path] = name
	}

	m.examineDrives(drives, byPath)

	m.pdrives = drives
	return drives, nil
}

// osDrives lists whole-disk devices that hold mounted OS partitions.
func (m *Mdraid) osDrives() ([]string, error) {
	mtab, err := os.ReadFile(m.mtabPath)
	if err != nil {
		return nil, fmt.Errorf("mdraid: reading mtab: %w", err)
	}

	var drives []string
	for _, line := range strings.Split(string(mtab), "\n") {
		if !strings.HasPrefix(line, "/dev/sd") {
			continue
		}
		partition := strings.Fields(line)[0]
		drives = append(drives, strings.TrimRight(partition, "0123456789"))
	}
	return drives, nil
}

// parseLsblkDrives turns raw lsblk rows into physical drives keyed by
// device name.
func parseLsblkDrives(out []byte, osDrives []string) map[string]*PhysicalDrive {
	excluded := map[string]bool{}
	for _, d := range osDrives {
		excluded[d] = true
	}

	drives := map[string]*PhysicalDrive{}
	for _, line := range strings.Split(string(out), "\n") {
		line = hexEscapeRe.ReplaceAllString(line, "_")
		fields := strings.Fields(line)
		if len(fields) < 5 {
			continue
		}
		name, devNum, model, size, state := fields[0], fields[1], fields[2], fields[3], fields[4]

		if excluded["/dev/"+name] {
			continue
		}

		status := StatusGood
		if state != "running" {
			status = StatusFailed
		}

		drives[name] = &PhysicalDrive{
			ID:        name,
			AdapterID: mdAdapterID,
			State:     state,
			Size:      size,
			Protocol:  devNum,
			DriveType: model,
			Status:    status,
			Slot:      devNum,
		}
	}

	return drives
}

// examineDrives runs "mdadm --examine" for every device through the
// bounded prober and folds the results back into the drive table.
func (m *Mdraid) examineDrives(drives map[string]*PhysicalDrive, byPath map[string]string) {
	paths := make([]string, 0, len(byPath))
	for path := range byPath {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	outcomes := probe.Map(paths, m.concurrency, func(path string) probe.Result {
		return probe.Run(m.timeout, m.exe, "--examine", path)
	})

	for _, outcome := range outcomes {
		drive, ok := drives[byPath[outcome.Item]]
		if !ok {
			continue
		}

		if !outcome.Result.OK() {
			// Timed out or mdadm rejected the device; the drive stays in
			// the report but is flagged.
			drive.Status = StatusFailing
			continue
		}

		examined := map[string]string{}
		for _, line := range strings.Split(string(outcome.Result.Output), "\n") {
			if key, value, ok := matchProp(strings.TrimSpace(line)); ok {
				examined[key] = value
			}
		}
		drive.Hotspare = examined["Device Role"] == "spare"
		drive.Raw = examined
	}
}

// ParseLogicalDrives queries each array's detail through the bounded
// prober and joins members in by Array UUID. ParsePhysicalDrives must
// have run first. An array whose detail query times out or fails is
// reported as a problem array rather than sinking the run; --detail on
// a broken array can hang the same way --examine on a dying drive can.
func (m *Mdraid) ParseLogicalDrives() ([]*LogicalDrive, error) {
	if m.pdrives == nil {
		return nil, fmt.Errorf("%w: mdadm: logical drives need examined physical drives first", ErrCliFailed)
	}

	byUUID := map[string][]string{}
	for id, drive := range m.pdrives {
		if drive.Hotspare {
			continue
		}
		if uuid, ok := drive.Raw["Array UUID"]; ok {
			byUUID[uuid] = append(byUUID[uuid], id)
		}
	}
	for _, members := range byUUID {
		sort.Strings(members)
	}

	outcomes := probe.Map(m.arrays, m.concurrency, func(array string) probe.Result {
		return probe.Run(m.timeout, m.exe, "--detail", array)
	})

	drives := make([]*LogicalDrive, 0, len(outcomes))
	for _, outcome := range outcomes {
		if !outcome.Result.OK() {
			log.Warn().Str("array", outcome.Item).
				Msg("array detail query did not complete, reporting it degraded")
			drives = append(drives, &LogicalDrive{
				ID:        outcome.Item,
				State:     "unresponsive",
				Problem:   true,
				AdapterID: mdAdapterID,
			})
			continue
		}
		drives = append(drives, parseMdadmDetail(outcome.Result.Output, outcome.Item, byUUID))
	}
	return drives, nil
}

func parseMdadmDetail(out []byte, array string, byUUID map[string][]string) *LogicalDrive {
	props := map[string]string{}
	for _, line := range strings.Split(string(out), "\n") {
		if key, value, ok := matchProp(strings.TrimSpace(line)); ok {
			props[key] = value
		}
	}

	// Failed arrays do not report a size.
	sizeKiB := 0
	if raw, ok := props["Array Size"]; ok {
		sizeKiB, _ = strconv.Atoi(strings.TrimSpace(strings.Split(raw, "(")[0]))
	}

	state := props["State"]
	return &LogicalDrive{
		ID:          array,
		RaidLevel:   strings.ToUpper(props["Raid Level"]),
		Size:        fmt.Sprintf("%.1fTB", float64(sizeKiB)/(1024*1024*1024)),
		State:       state,
		Problem:     strings.Contains(state, "FAILED"),
		AdapterID:   mdAdapterID,
		PhyDriveIDs: byUUID[props["UUID"]],
		Raw:         props,
	}
}
