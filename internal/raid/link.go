package raid

import (
	"fmt"
	"sort"
)

// Topology is the fully linked adapter graph for one collection run.
type Topology struct {
	Adapters []*Adapter
}

// Link connects the three raw collections a Manager produced into one
// graph: every logical drive gets its adapter and member drives, every
// physical drive gets its adapter, and each adapter's spare set is
// computed as the drives left without a logical-drive reference.
//
// Link is pure graph construction, no I/O. It resets the derived fields
// it populates, so running it twice over the same collections yields the
// same graph. Any unresolved id is an ErrGraphIntegrity, never skipped.
func Link(adapters []*Adapter, pdrives map[string]*PhysicalDrive, ldrives []*LogicalDrive) (*Topology, error) {
	adapterMap := make(map[string]*Adapter, len(adapters))
	for _, adapter := range adapters {
		adapter.LogicalDrives = nil
		adapter.PhysicalDrives = nil
		adapter.SparePhysicalDrives = nil
		adapterMap[adapter.ID] = adapter
	}

	for _, drive := range pdrives {
		drive.LogicalDrive = nil
	}

	for _, drive := range ldrives {
		adapter, ok := adapterMap[drive.AdapterID]
		if !ok {
			return nil, fmt.Errorf("%w: logical drive %q references unknown adapter %q",
				ErrGraphIntegrity, drive.ID, drive.AdapterID)
		}
		drive.Adapter = adapter

		drive.PhysicalDrives = make([]*PhysicalDrive, 0, len(drive.PhyDriveIDs))
		for _, id := range drive.PhyDriveIDs {
			pdrive, ok := pdrives[id]
			if !ok {
				return nil, fmt.Errorf("%w: logical drive %q references unknown physical drive %q",
					ErrGraphIntegrity, drive.ID, id)
			}
			pdrive.LogicalDrive = drive
			drive.PhysicalDrives = append(drive.PhysicalDrives, pdrive)
		}

		adapter.LogicalDrives = append(adapter.LogicalDrives, drive)
	}

	// Deterministic order regardless of map iteration.
	keys := make([]string, 0, len(pdrives))
	for key := range pdrives {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		pdrive := pdrives[key]
		adapter, ok := adapterMap[pdrive.AdapterID]
		if !ok {
			return nil, fmt.Errorf("%w: physical drive %q references unknown adapter %q",
				ErrGraphIntegrity, pdrive.ID, pdrive.AdapterID)
		}
		pdrive.Adapter = adapter
		adapter.PhysicalDrives = append(adapter.PhysicalDrives, pdrive)
	}

	for _, adapter := range adapters {
		for _, pdrive := range adapter.PhysicalDrives {
			if pdrive.LogicalDrive == nil {
				adapter.SparePhysicalDrives = append(adapter.SparePhysicalDrives, pdrive)
			}
		}
	}

	return &Topology{Adapters: adapters}, nil
}
