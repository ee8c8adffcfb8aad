package raid

import (
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
)

// Options tune the managers that query drives one by one; hardware CLIs
// answer in a single call and ignore them.
type Options struct {
	ProbeTimeout     time.Duration
	ProbeConcurrency int
}

// managerEntry is one compiled-in parser candidate. Hardware managers
// come before software RAID so that a host with both (hardware arrays
// plus an md boot mirror) reports the hardware topology.
type managerEntry struct {
	name  string
	build func(Options) (Manager, error)
}

var registry = []managerEntry{
	{"megacli", func(Options) (Manager, error) { return NewMegaCli() }},
	{"storcli", func(Options) (Manager, error) { return NewStorCli() }},
	{"omreport", func(Options) (Manager, error) { return NewOmreport() }},
	{"arcconf", func(Options) (Manager, error) { return NewArcconf() }},
	{"mdraid", func(o Options) (Manager, error) { return NewMdraid(o) }},
}

// Detect tries each registered manager in order and returns the first
// one whose CLI binary is present. A candidate whose binary is missing
// is skipped; any other constructor error is real and propagates.
func Detect(opts Options) (Manager, error) {
	for _, entry := range registry {
		m, err := entry.build(opts)
		if err != nil {
			if errors.Is(err, ErrExecutableNotFound) {
				log.Debug().Str("manager", entry.name).Msg("manager not available")
				continue
			}
			return nil, err
		}
		log.Info().Str("manager", entry.name).Msg("selected RAID manager")
		return m, nil
	}
	return nil, ErrNoManager
}

// ByName instantiates a specific manager, for configurations that pin
// the RAID type instead of relying on detection.
func ByName(name string, opts Options) (Manager, error) {
	for _, entry := range registry {
		if entry.name == name {
			return entry.build(opts)
		}
	}
	return nil, fmt.Errorf("%w: unknown manager %q", ErrNoManager, name)
}

// ManagerNames lists the supported manager names in detection order.
func ManagerNames() []string {
	names := make([]string, len(registry))
	for i, entry := range registry {
		names[i] = entry.name
	}
	return names
}
