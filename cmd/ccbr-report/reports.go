package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"

	"github.com/ccbr/server-reports/internal/config"
	"github.com/ccbr/server-reports/internal/nfs"
	"github.com/ccbr/server-reports/internal/raid"
	"github.com/ccbr/server-reports/internal/report"
	"github.com/ccbr/server-reports/internal/smart"
	"github.com/ccbr/server-reports/internal/usage"
)

// buildReports instantiates every enabled check. A check whose
// prerequisites are missing on this host (no RAID CLI, no smartctl) is
// skipped with a log line, not a failure; "send" runs on heterogeneous
// fleets.
func buildReports(cfg *config.Config) []report.Report {
	var reports []report.Report

	if cfg.CheckEnabled("raid") {
		if r, err := buildRAID(cfg); err != nil {
			log.Warn().Err(err).Msg("skipping raid check")
		} else {
			reports = append(reports, r)
		}
	}
	if cfg.CheckEnabled("stale_nfs") {
		reports = append(reports, buildNFS(cfg))
	}
	if cfg.CheckEnabled("disk_usage") {
		reports = append(reports, usage.New())
	}
	if cfg.CheckEnabled("smartctl") {
		if r, err := buildSmart(cfg); err != nil {
			log.Warn().Err(err).Msg("skipping smartctl check")
		} else {
			reports = append(reports, r)
		}
	}
	return reports
}

func raidOptions(cfg *config.Config) raid.Options {
	return raid.Options{
		ProbeTimeout:     config.Seconds(cfg.RAID.ProbeTimeout, 0),
		ProbeConcurrency: cfg.RAID.ProbeConcurrency,
	}
}

// buildRAID honors a pinned manager and otherwise autodetects.
func buildRAID(cfg *config.Config) (report.Report, error) {
	var (
		manager raid.Manager
		err     error
	)
	if cfg.RAID.Manager != "" {
		manager, err = raid.ByName(cfg.RAID.Manager, raidOptions(cfg))
	} else {
		manager, err = raid.Detect(raidOptions(cfg))
	}
	if err != nil {
		return nil, err
	}
	return report.NewRAID(manager), nil
}

func buildNFS(cfg *config.Config) report.Report {
	return nfs.New(config.Seconds(cfg.NFS.StaleTimeout, 0), cfg.NFS.Concurrency)
}

func buildSmart(cfg *config.Config) (report.Report, error) {
	return smart.New(cfg.Smart.Exec,
		config.Seconds(cfg.Smart.Timeout, 0), cfg.Smart.Concurrency)
}

// runOne collects a single report and shows it, as a table or as the
// JSON payload that would be posted.
func runOne(r report.Report, jsonOut bool) {
	if err := r.Collect(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if jsonOut {
		out, err := json.MarshalIndent(r.Payload(), "", "    ")
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(string(out))
		return
	}
	r.Render(os.Stdout)
}
