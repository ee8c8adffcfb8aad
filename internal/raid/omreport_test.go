package raid

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const omreportControllerOutput = ` Controller  PERC H700 Integrated (Slot 4)

Controller
ID                            : 0
Status                        : Ok
Name                          : PERC H700 Integrated
Slot ID                       : PCI Slot 4
State                         : Ready
Firmware Version              : 12.10.1-0001
Cache Memory Size             : 512 MB
`

func TestParseOmreportAdapters(t *testing.T) {
	adapters, err := parseOmreportAdapters([]byte(omreportControllerOutput))
	require.NoError(t, err)
	require.Len(t, adapters, 1)

	adapter := adapters[0]
	assert.Equal(t, "0", adapter.ID)
	assert.Equal(t, "PERC H700 Integrated", adapter.Name)
	assert.Equal(t, "Ready", adapter.Raw["State"])
}

func TestParseOmreportAdaptersNoControllers(t *testing.T) {
	_, err := parseOmreportAdapters([]byte("No controllers found\n"))
	assert.ErrorIs(t, err, ErrCliFailed)
}

const omreportPdiskOutput = `List of Physical Disks on Controller PERC H700 Integrated (Slot 4)

Controller PERC H700 Integrated (Slot 4)
ID                        : 0:0:0
Status                    : Ok
Name                      : Physical Disk 0:0:0
State                     : Online
Bus Protocol              : SAS
Media                     : HDD
Capacity                  : 278.88 GB (299439751168 bytes)
Hot Spare                 : No
Product ID                : ST3300657SS

ID                        : 0:0:1
Status                    : Non-Critical
Name                      : Physical Disk 0:0:1
State                     : Online
Bus Protocol              : SAS
Media                     : HDD
Capacity                  : 278.88 GB (299439751168 bytes)
Hot Spare                 : Global
Product ID                : ST3300657SS
`

func TestParseOmreportPhysicalDrives(t *testing.T) {
	drives := parseOmreportPhysicalDrives([]byte(omreportPdiskOutput), "0")
	require.Len(t, drives, 2)

	first := drives["0:0:0:0"]
	require.NotNil(t, first)
	assert.Equal(t, "0:0:0", first.ID)
	assert.Equal(t, "0", first.AdapterID)
	assert.Equal(t, "Ok", first.State)
	assert.Equal(t, "278.88 GB", first.Size)
	assert.Equal(t, "SAS", first.Protocol)
	assert.Equal(t, "ST3300657SS", first.DriveType)
	assert.Equal(t, StatusGood, first.Status)
	assert.False(t, first.Hotspare)

	second := drives["0:0:0:1"]
	require.NotNil(t, second)
	assert.Equal(t, StatusFailing, second.Status)
	assert.True(t, second.Hotspare)
}

func TestClassifyOmreportStatus(t *testing.T) {
	assert.Equal(t, StatusGood, classifyOmreportStatus("Ok"))
	assert.Equal(t, StatusFailing, classifyOmreportStatus("Non-Critical"))
	assert.Equal(t, StatusFailed, classifyOmreportStatus("Critical"))
	// Unknown status words classify as failed.
	assert.Equal(t, StatusFailed, classifyOmreportStatus("Degraded"))
	assert.Equal(t, StatusFailed, classifyOmreportStatus(""))
}

func TestParseOmreportMembers(t *testing.T) {
	members := parseOmreportMembers([]byte(omreportPdiskOutput), "0")
	assert.Equal(t, []string{"0:0:0:0", "0:0:0:1"}, members)
}

func TestNewOmreportLogicalDrive(t *testing.T) {
	block := map[string]string{
		"ID":     "0",
		"Status": "Ok",
		"Name":   "Virtual Disk 0",
		"State":  "Ready",
		"Layout": "RAID-1",
		"Size":   "278.88 GB (299439751168 bytes)",
	}

	drive := newOmreportLogicalDrive("0", block, []string{"0:0:0:0", "0:0:0:1"})
	assert.Equal(t, "0", drive.ID)
	assert.Equal(t, "RAID-1", drive.RaidLevel)
	assert.Equal(t, "278.88 GB", drive.Size)
	assert.Equal(t, "Ok (Ready)", drive.State)
	assert.False(t, drive.Problem)
	assert.Equal(t, []string{"0:0:0:0", "0:0:0:1"}, drive.PhyDriveIDs)

	degraded := newOmreportLogicalDrive("0", map[string]string{
		"ID": "1", "Status": "Critical", "State": "Degraded",
	}, nil)
	assert.True(t, degraded.Problem)
	assert.Equal(t, "Critical (Degraded)", degraded.State)
}

func TestOmreportPhaseOrder(t *testing.T) {
	o := &Omreport{exe: "omreport"}

	_, err := o.ParsePhysicalDrives()
	assert.ErrorIs(t, err, ErrCliFailed)

	_, err = o.ParseLogicalDrives()
	assert.ErrorIs(t, err, ErrCliFailed)
}
