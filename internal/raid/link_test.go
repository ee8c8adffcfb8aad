package raid

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// twoArraysFixture models one controller with a mirror, a two-disk
// stripe and one unassigned spare.
func twoArraysFixture() ([]*Adapter, map[string]*PhysicalDrive, []*LogicalDrive) {
	adapters := []*Adapter{{ID: "0", Name: "PERC H710 Mini"}}

	pdrives := map[string]*PhysicalDrive{}
	for _, id := range []string{"4", "5", "6", "7", "8"} {
		pdrives[id] = &PhysicalDrive{ID: id, AdapterID: "0", Status: StatusGood}
	}
	pdrives["8"].Hotspare = true

	ldrives := []*LogicalDrive{
		{ID: "0", RaidLevel: "RAID1", AdapterID: "0", PhyDriveIDs: []string{"4", "5"}},
		{ID: "1", RaidLevel: "RAID0", AdapterID: "0", PhyDriveIDs: []string{"6", "7"}},
	}
	return adapters, pdrives, ldrives
}

func TestLinkBuildsGraph(t *testing.T) {
	adapters, pdrives, ldrives := twoArraysFixture()

	topology, err := Link(adapters, pdrives, ldrives)
	require.NoError(t, err)
	require.Len(t, topology.Adapters, 1)

	adapter := topology.Adapters[0]
	require.Len(t, adapter.LogicalDrives, 2)
	require.Len(t, adapter.PhysicalDrives, 5)

	mirror := adapter.LogicalDrives[0]
	assert.Same(t, adapter, mirror.Adapter)
	require.Len(t, mirror.PhysicalDrives, 2)
	assert.Same(t, pdrives["4"], mirror.PhysicalDrives[0])
	assert.Same(t, mirror, pdrives["4"].LogicalDrive)

	// Exactly the unassigned drive is a spare.
	require.Len(t, adapter.SparePhysicalDrives, 1)
	assert.Equal(t, "8", adapter.SparePhysicalDrives[0].ID)

	for _, pdrive := range adapter.PhysicalDrives {
		assert.Same(t, adapter, pdrive.Adapter)
	}
}

func TestLinkSparesAndMembersAreDisjoint(t *testing.T) {
	adapters, pdrives, ldrives := twoArraysFixture()

	topology, err := Link(adapters, pdrives, ldrives)
	require.NoError(t, err)

	adapter := topology.Adapters[0]
	assigned := map[string]bool{}
	for _, ld := range adapter.LogicalDrives {
		for _, pd := range ld.PhysicalDrives {
			assigned[pd.ID] = true
		}
	}
	for _, spare := range adapter.SparePhysicalDrives {
		assert.False(t, assigned[spare.ID], "spare %s also assigned to an array", spare.ID)
	}
	assert.Equal(t, len(adapter.PhysicalDrives),
		len(assigned)+len(adapter.SparePhysicalDrives))
}

func TestLinkIsIdempotent(t *testing.T) {
	adapters, pdrives, ldrives := twoArraysFixture()

	_, err := Link(adapters, pdrives, ldrives)
	require.NoError(t, err)
	topology, err := Link(adapters, pdrives, ldrives)
	require.NoError(t, err)

	adapter := topology.Adapters[0]
	assert.Len(t, adapter.LogicalDrives, 2)
	assert.Len(t, adapter.PhysicalDrives, 5)
	assert.Len(t, adapter.SparePhysicalDrives, 1)
	assert.Len(t, adapter.LogicalDrives[0].PhysicalDrives, 2)
}

func TestLinkUnknownPhysicalDrive(t *testing.T) {
	adapters, pdrives, ldrives := twoArraysFixture()
	ldrives[0].PhyDriveIDs = append(ldrives[0].PhyDriveIDs, "99")

	_, err := Link(adapters, pdrives, ldrives)
	assert.ErrorIs(t, err, ErrGraphIntegrity)
}

func TestLinkUnknownAdapter(t *testing.T) {
	adapters, pdrives, ldrives := twoArraysFixture()
	ldrives[1].AdapterID = "7"

	_, err := Link(adapters, pdrives, ldrives)
	assert.ErrorIs(t, err, ErrGraphIntegrity)

	adapters, pdrives, ldrives = twoArraysFixture()
	pdrives["6"].AdapterID = "7"

	_, err = Link(adapters, pdrives, ldrives)
	assert.ErrorIs(t, err, ErrGraphIntegrity)
}

func TestLinkSoftwareRaidScenario(t *testing.T) {
	adapters := []*Adapter{{ID: mdAdapterID, Name: mdAdapterID}}

	pdrives := map[string]*PhysicalDrive{}
	for _, name := range []string{"sdb", "sdc", "sdd", "sde", "sdf", "sdg"} {
		pdrives[name] = &PhysicalDrive{ID: name, AdapterID: mdAdapterID, Status: StatusGood}
	}
	pdrives["sdg"].Hotspare = true

	ldrives := []*LogicalDrive{
		{ID: "/dev/md0", RaidLevel: "RAID5", AdapterID: mdAdapterID,
			PhyDriveIDs: []string{"sdb", "sdc", "sdd"}},
		{ID: "/dev/md1", RaidLevel: "RAID1", AdapterID: mdAdapterID,
			PhyDriveIDs: []string{"sde", "sdf"}},
	}

	topology, err := Link(adapters, pdrives, ldrives)
	require.NoError(t, err)

	adapter := topology.Adapters[0]
	require.Len(t, adapter.LogicalDrives, 2)
	assert.Len(t, adapter.LogicalDrives[0].PhysicalDrives, 3)
	assert.Len(t, adapter.LogicalDrives[1].PhysicalDrives, 2)
	require.Len(t, adapter.SparePhysicalDrives, 1)
	assert.Equal(t, "sdg", adapter.SparePhysicalDrives[0].ID)
}

func TestStatusString(t *testing.T) {
	assert.Equal(t, "good", StatusGood.String())
	assert.Equal(t, "failing", StatusFailing.String())
	assert.Equal(t, "failed", StatusFailed.String())
}

func TestStatusMarshalJSON(t *testing.T) {
	out, err := json.Marshal(StatusFailing)
	require.NoError(t, err)
	assert.Equal(t, `"failing"`, string(out))
}

// phaseRecorder verifies Collect runs the parse phases in order.
type phaseRecorder struct {
	phases []string
}

func (p *phaseRecorder) Name() string { return "recorder" }

func (p *phaseRecorder) ParseAdapters() ([]*Adapter, error) {
	p.phases = append(p.phases, "adapters")
	return []*Adapter{{ID: "0", Name: "fake"}}, nil
}

func (p *phaseRecorder) ParsePhysicalDrives() (map[string]*PhysicalDrive, error) {
	p.phases = append(p.phases, "pdrives")
	return map[string]*PhysicalDrive{
		"a": {ID: "a", AdapterID: "0"},
	}, nil
}

func (p *phaseRecorder) ParseLogicalDrives() ([]*LogicalDrive, error) {
	p.phases = append(p.phases, "ldrives")
	return []*LogicalDrive{
		{ID: "0", AdapterID: "0", PhyDriveIDs: []string{"a"}},
	}, nil
}

func TestCollectRunsPhasesInOrder(t *testing.T) {
	recorder := &phaseRecorder{}

	topology, err := Collect(recorder)
	require.NoError(t, err)

	assert.Equal(t, []string{"adapters", "pdrives", "ldrives"}, recorder.phases)
	require.Len(t, topology.Adapters, 1)
	assert.Len(t, topology.Adapters[0].LogicalDrives, 1)
	assert.Empty(t, topology.Adapters[0].SparePhysicalDrives)
}
