// Package raid normalizes the output of vendor RAID management CLIs into
// one adapter/logical-drive/physical-drive model. Each supported CLI gets
// its own Manager implementation; the topology linker then reconstructs
// the object graph from the foreign-key references the parsers emit.
package raid

import "encoding/json"

// Status is the normalized health severity of a drive.
type Status int

const (
	// StatusGood means no failure indicators are present.
	StatusGood Status = iota
	// StatusFailing means the drive works but shows failure precursors
	// (predictive failure counters, media errors, probe timeouts).
	StatusFailing
	// StatusFailed means the drive is dead or unusable. Unknown vendor
	// states classify here, never as good.
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusGood:
		return "good"
	case StatusFailing:
		return "failing"
	default:
		return "failed"
	}
}

// MarshalJSON emits the lowercase severity name.
func (s Status) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// Adapter is one RAID controller, or the synthetic software-RAID
// controller. The drive lists are populated by Link, not by parsers.
type Adapter struct {
	ID          string
	Name        string
	Serial      string
	Temperature *int
	Raw         map[string]string

	LogicalDrives       []*LogicalDrive
	PhysicalDrives      []*PhysicalDrive
	SparePhysicalDrives []*PhysicalDrive
}

// PhysicalDrive is one physical device or drive slot. Raw vendor drive
// ids may collide across adapters, so the composite (AdapterID, ID) is
// the real key.
type PhysicalDrive struct {
	ID          string
	AdapterID   string
	State       string
	Size        string
	Protocol    string
	DriveType   string
	FRU         string
	Temperature string
	Status      Status
	Slot        string
	Hotspare    bool
	Raw         map[string]string

	Adapter      *Adapter
	LogicalDrive *LogicalDrive
}

// LogicalDrive is one RAID array / virtual disk. PhyDriveIDs are foreign
// keys into the parser's physical-drive table; Link resolves them into
// PhysicalDrives.
type LogicalDrive struct {
	ID          string
	RaidLevel   string
	Size        string
	State       string
	Problem     bool
	AdapterID   string
	PhyDriveIDs []string
	Raw         map[string]string

	Adapter        *Adapter
	PhysicalDrives []*PhysicalDrive
}

// Manager is the contract every vendor CLI parser satisfies. The three
// parse operations run external commands and return raw, unlinked
// collections; the physical-drive map is keyed by whatever id scheme the
// vendor uses in its logical-drive membership lists. A Manager instance
// serves exactly one collection run.
type Manager interface {
	Name() string
	ParseAdapters() ([]*Adapter, error)
	ParsePhysicalDrives() (map[string]*PhysicalDrive, error)
	ParseLogicalDrives() ([]*LogicalDrive, error)
}

// Collect runs all three parse operations in order and links the result.
// Parse order matters: omreport needs adapters before drives, mdraid
// needs examined physical drives before arrays.
func Collect(m Manager) (*Topology, error) {
	adapters, err := m.ParseAdapters()
	if err != nil {
		return nil, err
	}
	pdrives, err := m.ParsePhysicalDrives()
	if err != nil {
		return nil, err
	}
	ldrives, err := m.ParseLogicalDrives()
	if err != nil {
		return nil, err
	}
	return Link(adapters, pdrives, ldrives)
}
