package raid

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/ccbr/server-reports/internal/probe"
)

// cliTimeout bounds every hardware-RAID CLI invocation. The tools answer
// in seconds; a controller that needs longer than this is itself news.
const cliTimeout = 30 * time.Second

// propRe matches the "key : value" line grammar shared by megacli,
// omreport, arcconf and mdadm output.
var propRe = regexp.MustCompile(`^(.*?)\s*:\s*(.+)$`)

// matchProp splits one "key : value" line.
func matchProp(line string) (key, value string, ok bool) {
	m := propRe.FindStringSubmatch(line)
	if m == nil {
		return "", "", false
	}
	return m[1], m[2], true
}

// runCli executes one vendor CLI command and enforces the common failure
// policy: a missing process, a timeout or a non-zero exit all abort the
// collection run.
func runCli(tool, exe string, args ...string) ([]byte, error) {
	res := probe.Run(cliTimeout, exe, args...)
	switch {
	case res.State == probe.LaunchFailed:
		return nil, fmt.Errorf("%w: %s: %v", ErrCliFailed, tool, res.Err)
	case res.State == probe.TimedOut:
		return nil, fmt.Errorf("%w: %s: command timed out", ErrCliFailed, tool)
	case res.ExitCode != 0:
		return nil, fmt.Errorf("%w: %s: exit status %d", ErrCliFailed, tool, res.ExitCode)
	}
	return res.Output, nil
}

// intField parses the first whitespace-separated token of a raw value as
// an integer, for fields like "30 C (86 F)" or "33 C/ 91 F (Normal)".
func intField(value string) *int {
	fields := strings.Fields(value)
	if len(fields) == 0 {
		return nil
	}
	n, err := strconv.Atoi(fields[0])
	if err != nil {
		return nil
	}
	return &n
}
