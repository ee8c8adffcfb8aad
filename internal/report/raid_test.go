package report

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ccbr/server-reports/internal/raid"
)

// fixedManager returns a canned topology without touching any CLI.
type fixedManager struct {
	adapters []*raid.Adapter
	pdrives  map[string]*raid.PhysicalDrive
	ldrives  []*raid.LogicalDrive
	err      error
}

func (f *fixedManager) Name() string { return "fixed" }

func (f *fixedManager) ParseAdapters() ([]*raid.Adapter, error) {
	return f.adapters, f.err
}

func (f *fixedManager) ParsePhysicalDrives() (map[string]*raid.PhysicalDrive, error) {
	return f.pdrives, nil
}

func (f *fixedManager) ParseLogicalDrives() ([]*raid.LogicalDrive, error) {
	return f.ldrives, nil
}

func newFixedManager() *fixedManager {
	temp := 52
	return &fixedManager{
		adapters: []*raid.Adapter{{
			ID: "0", Name: "PERC H740P", Serial: "93D02AV", Temperature: &temp,
			Raw: map[string]string{"FW Package Build": "51.13.0-3485"},
		}},
		pdrives: map[string]*raid.PhysicalDrive{
			"4": {ID: "4", AdapterID: "0", State: "Onln", Size: "278.875 GB",
				Status: raid.StatusGood, Slot: "0",
				Raw: map[string]string{"WWN": "5000C50084CE3EA8"}},
			"5": {ID: "5", AdapterID: "0", State: "Onln", Size: "278.875 GB",
				Status: raid.StatusFailing, Slot: "1"},
			"6": {ID: "6", AdapterID: "0", State: "GHS", Size: "278.875 GB",
				Status: raid.StatusGood, Slot: "2", Hotspare: true},
		},
		ldrives: []*raid.LogicalDrive{{
			ID: "0", RaidLevel: "RAID1", Size: "278.875 GB", State: "Optl",
			AdapterID: "0", PhyDriveIDs: []string{"4", "5"},
			Raw: map[string]string{"Strip Size": "64 KB"},
		}},
	}
}

func TestRAIDPayloadProjection(t *testing.T) {
	r := NewRAID(newFixedManager())
	require.NoError(t, r.Collect())

	out, err := json.Marshal(r.Payload())
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(out, &decoded))

	assert.Equal(t, float64(2), decoded["ver"])
	assert.Equal(t, "fixed", decoded["manager"])

	adapters := decoded["adapters"].([]any)
	require.Len(t, adapters, 1)
	adapter := adapters[0].(map[string]any)
	assert.Equal(t, "PERC H740P", adapter["name"])
	assert.Equal(t, float64(52), adapter["temperature"])

	lds := adapter["logical_drives"].([]any)
	require.Len(t, lds, 1)
	ld := lds[0].(map[string]any)
	assert.Equal(t, "RAID1", ld["raid_level"])
	assert.Equal(t, false, ld["problem"])
	assert.Len(t, ld["physical_drives"].([]any), 2)

	spares := adapter["spare_drives"].([]any)
	require.Len(t, spares, 1)
	assert.Equal(t, "6", spares[0].(map[string]any)["id"])

	// Raw vendor properties must never reach the wire.
	assert.NotContains(t, string(out), "FW Package Build")
	assert.NotContains(t, string(out), "5000C50084CE3EA8")
	assert.NotContains(t, string(out), "Strip Size")
}

func TestRAIDPayloadStatusNames(t *testing.T) {
	r := NewRAID(newFixedManager())
	require.NoError(t, r.Collect())

	out, err := json.Marshal(r.Payload())
	require.NoError(t, err)

	assert.Contains(t, string(out), `"status":"good"`)
	assert.Contains(t, string(out), `"status":"failing"`)
}

func TestRAIDCollectPropagatesErrors(t *testing.T) {
	r := NewRAID(&fixedManager{err: errors.New("controller gone")})
	err := r.Collect()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "controller gone")
}

func TestRAIDRender(t *testing.T) {
	r := NewRAID(newFixedManager())
	require.NoError(t, r.Collect())

	var buf bytes.Buffer
	r.Render(&buf)

	out := buf.String()
	assert.Contains(t, out, "Adapter 0: PERC H740P (52C)")
	assert.Contains(t, out, "RAID1")
	assert.Contains(t, out, "spare")
}
