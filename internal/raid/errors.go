package raid

import (
	"errors"
	"os/exec"
)

var (
	// ErrExecutableNotFound means a vendor CLI binary is not on PATH.
	// The manager selector treats this as "try the next candidate".
	ErrExecutableNotFound = errors.New("raid: executable not found")

	// ErrNoManager means no supported RAID manager is usable on this host.
	ErrNoManager = errors.New("raid: no supported RAID manager found")

	// ErrCliFailed means a vendor tool ran but returned a non-zero status
	// or output that does not match its expected grammar. Always fatal to
	// the collection run.
	ErrCliFailed = errors.New("raid: cli execution failed")

	// ErrGraphIntegrity means a parsed foreign key did not resolve during
	// linking. This is a parser bug, never defaulted around.
	ErrGraphIntegrity = errors.New("raid: graph integrity violation")
)

// lookPath is swapped out in tests.
var lookPath = exec.LookPath

// FindExecutable returns the path of the first name found on PATH, or
// ErrExecutableNotFound when none is.
func FindExecutable(names ...string) (string, error) {
	for _, name := range names {
		if path, err := lookPath(name); err == nil {
			return path, nil
		}
	}
	return "", ErrExecutableNotFound
}
