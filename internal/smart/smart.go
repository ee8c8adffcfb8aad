// Package smart collects per-device SMART data through smartctl's JSON
// output.
package smart

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/rs/zerolog/log"

	"github.com/ccbr/server-reports/internal/probe"
	"github.com/ccbr/server-reports/internal/raid"
	"github.com/ccbr/server-reports/internal/render"
)

// exitBitMeanings decodes smartctl's exit status, which is a bitmask.
// The bit index is what goes into the payload; the text is for logs.
var exitBitMeanings = []string{
	"command line did not parse",
	"device open failed or device is in a low-power mode",
	"a SMART or other ATA command to the disk failed",
	"SMART status check returned DISK FAILING",
	"prefail attributes at or below threshold",
	"attributes have been at or below threshold in the past",
	"the device error log contains records of errors",
	"the device self-test log contains records of errors",
}

const payloadVersion = 1

// scannedDevice is one entry of "smartctl --json=c --scan".
type scannedDevice struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// Report queries every device smartctl can scan. Each disk's payload is
// smartctl's own JSON document, decoded as-is, with an "errors" list of
// exit-status bit indices added.
type Report struct {
	exe         string
	timeout     time.Duration
	concurrency int

	disks []map[string]any
}

// New locates and version-checks smartctl. An explicit exec path from
// configuration wins over PATH lookup. smartctl 7 introduced --json, so
// anything older is rejected.
func New(exec string, timeout time.Duration, concurrency int) (*Report, error) {
	exe := exec
	if exe == "" {
		found, err := raid.FindExecutable("smartctl")
		if err != nil {
			return nil, err
		}
		exe = found
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if concurrency <= 0 {
		concurrency = probe.DefaultWorkers
	}

	r := &Report{exe: exe, timeout: timeout, concurrency: concurrency}
	if err := r.checkVersion(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Report) checkVersion() error {
	result := probe.Run(r.timeout, r.exe, "-V")
	if !result.OK() {
		return fmt.Errorf("smartctl: version check failed: %w", result.Err)
	}

	major, err := parseMajorVersion(result.Output)
	if err != nil {
		return err
	}
	if major < 7 {
		return fmt.Errorf("smartctl: version %d too old, 7.0 or later required for --json", major)
	}
	return nil
}

// parseMajorVersion reads the second word of the first "-V" line, like
// "smartctl 7.3 2022-02-28 r5338 ...".
func parseMajorVersion(out []byte) (int, error) {
	lines := strings.SplitN(string(out), "\n", 2)
	fields := strings.Fields(lines[0])
	if len(fields) < 2 {
		return 0, fmt.Errorf("smartctl: unexpected version banner %q", lines[0])
	}
	major, err := strconv.Atoi(strings.SplitN(fields[1], ".", 2)[0])
	if err != nil {
		return 0, fmt.Errorf("smartctl: unexpected version %q", fields[1])
	}
	return major, nil
}

func (r *Report) Name() string { return "smartctl" }

// Collect scans for devices and queries each through the bounded
// prober. smartctl exits nonzero for disks with recorded problems, so a
// nonzero exit with output is data, not failure.
func (r *Report) Collect() error {
	scan := probe.Run(r.timeout, r.exe, "--json=c", "--scan")
	if !scan.OK() {
		return fmt.Errorf("smartctl: scan failed: %w", scan.Err)
	}

	var scanned struct {
		Devices []scannedDevice `json:"devices"`
	}
	if err := json.Unmarshal(scan.Output, &scanned); err != nil {
		return fmt.Errorf("smartctl: decoding scan output: %w", err)
	}
	log.Debug().Int("devices", len(scanned.Devices)).Msg("smartctl scan")

	outcomes := probe.Map(scanned.Devices, r.concurrency, func(dev scannedDevice) probe.Result {
		args := []string{"--json=c", "--all"}
		// RAID passthrough addressing needs the scanned type repeated.
		if strings.Contains(dev.Type, "megaraid") {
			args = append(args, "--device", dev.Type)
		}
		args = append(args, dev.Name)
		return probe.Run(r.timeout, r.exe, args...)
	})

	r.disks = r.disks[:0]
	for _, outcome := range outcomes {
		if outcome.Result.State != probe.Completed {
			log.Warn().Str("device", outcome.Item.Name).Err(outcome.Result.Err).
				Msg("smartctl query did not complete")
			continue
		}

		errorBits := decodeExitBits(outcome.Result.ExitCode)
		for _, bit := range errorBits {
			log.Warn().Str("device", outcome.Item.Name).
				Str("problem", exitBitMeanings[bit]).Msg("smartctl flagged device")
		}

		if len(outcome.Result.Output) == 0 {
			continue
		}
		var doc map[string]any
		if err := json.Unmarshal(outcome.Result.Output, &doc); err != nil {
			return fmt.Errorf("smartctl: decoding output for %s: %w", outcome.Item.Name, err)
		}
		doc["errors"] = errorBits
		r.disks = append(r.disks, doc)
	}
	return nil
}

// decodeExitBits returns the set bit indices of a smartctl exit status.
func decodeExitBits(code int) []int {
	bits := []int{}
	for bit := range exitBitMeanings {
		if (code>>bit)&1 == 1 {
			bits = append(bits, bit)
		}
	}
	return bits
}

func (r *Report) Payload() any {
	return struct {
		Ver   int              `json:"ver"`
		Disks []map[string]any `json:"disks"`
	}{payloadVersion, r.disks}
}

func (r *Report) Render(w io.Writer) {
	if len(r.disks) == 0 {
		fmt.Fprintln(w, "smartctl: no devices")
		return
	}

	t := render.NewTable(w, "SMART")
	t.AppendHeader(table.Row{"Device", "Model", "Serial", "Healthy", "Problems"})
	for _, disk := range r.disks {
		device := nestedString(disk, "device", "name")
		model, _ := disk["model_name"].(string)
		serial, _ := disk["serial_number"].(string)

		healthy := false
		if status, ok := disk["smart_status"].(map[string]any); ok {
			healthy, _ = status["passed"].(bool)
		}
		verdict := "no"
		if healthy {
			verdict = "yes"
		}

		problems := 0
		if bits, ok := disk["errors"].([]int); ok {
			problems = len(bits)
		}

		t.AppendRow(table.Row{
			device, model, serial,
			render.StatusCell(w, verdict, healthy),
			problems,
		})
	}
	t.Render()
}

func nestedString(doc map[string]any, keys ...string) string {
	current := any(doc)
	for _, key := range keys {
		m, ok := current.(map[string]any)
		if !ok {
			return ""
		}
		current = m[key]
	}
	s, _ := current.(string)
	return s
}
