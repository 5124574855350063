// Package main provides a one-shot mirror reconciliation tool. It walks the
// source tree once, copies everything eligible that is missing or stale in
// the target, and exits. No watcher, no daemon.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/mirrordapp/mirrord-server/internal/engine"
	"github.com/mirrordapp/mirrord-server/internal/logger"
)

func main() {
	source := flag.String("source", "", "Source directory to mirror from (required)")
	target := flag.String("target", "", "Target directory to mirror into (required)")
	extensions := flag.String("extensions", ".gd,.tscn,.tres,.res", "Comma-separated file suffixes to mirror")
	allowDeletion := flag.Bool("allow-deletion", false, "Propagate source deletions to the target")
	includeHidden := flag.Bool("include-hidden", false, "Mirror dotfiles as well")
	syncImports := flag.Bool("sync-import-artifacts", false, "Also mirror reserved .import artifact files")
	dryRun := flag.Bool("dry-run", false, "Count eligible files and exit without copying anything")
	logLevel := flag.String("log-level", "info", "Log level (debug, info, warn, error)")
	flag.Parse()

	if *source == "" || *target == "" {
		fmt.Fprintln(os.Stderr, "both -source and -target are required")
		flag.Usage()
		os.Exit(2)
	}

	log := logger.New(logger.Config{
		Level: logger.ParseLevel(*logLevel),
	})

	cfg := engine.Config{
		SourceDir:           *source,
		TargetDir:           *target,
		Extensions:          splitList(*extensions),
		AllowDeletion:       *allowDeletion,
		IncludeHidden:       *includeHidden,
		SyncImportArtifacts: *syncImports,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if *dryRun {
		eligible, err := engine.CountEligible(ctx, log, cfg)
		if err != nil {
			log.Error("Dry run failed", "error", err)
			os.Exit(1)
		}
		fmt.Printf("eligible=%d\n", eligible)
		return
	}

	counters, err := engine.ReconcileOnce(ctx, log, cfg)
	if err != nil {
		log.Error("Reconcile failed", "error", err)
		os.Exit(1)
	}

	fmt.Printf("copied=%d skipped=%d deleted=%d blocked=%d errors=%d\n",
		counters.Copied, counters.Skipped, counters.Deleted, counters.Blocked, counters.Errors)

	if counters.Errors > 0 {
		os.Exit(1)
	}
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
