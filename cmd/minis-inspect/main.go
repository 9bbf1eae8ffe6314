package main

// main.go implements the minis-inspect CLI: it parses command-line flags,
// reads a snapshot (single-file .mdb or an incremental shard-*.mdb
// directory) from disk, and prints it either as pretty text or JSON.
//
// Structurally grounded in the teacher's arena-cache-inspect CLI, which
// polled an HTTP debug endpoint for a live process; this inspector instead
// reads the on-disk snapshot format directly, since minis is an embedded
// library with no server process to poll. The flag shape (-json, -watch)
// is kept the same.
//
// © 2025 minis authors. MIT License.

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/minisdb/minis/pkg/minis"
)

type options struct {
	path     string
	dir      bool
	json     bool
	watch    bool
	interval time.Duration
}

func parseFlags() *options {
	opts := &options{}
	flag.StringVar(&opts.path, "path", "", "snapshot file or incremental snapshot directory to inspect")
	flag.BoolVar(&opts.dir, "dir", false, "treat -path as an incremental snapshot directory (shard-*.mdb files)")
	flag.BoolVar(&opts.json, "json", false, "print JSON instead of text")
	flag.BoolVar(&opts.watch, "watch", false, "re-read and reprint on an interval")
	flag.DurationVar(&opts.interval, "interval", 2*time.Second, "poll interval for -watch")
	flag.Parse()
	return opts
}

func main() {
	opts := parseFlags()
	if opts.path == "" {
		fmt.Fprintln(os.Stderr, "minis-inspect: -path is required")
		os.Exit(2)
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	done := make(chan struct{})
	go func() {
		<-sig
		close(done)
	}()

	if opts.watch {
		ticker := time.NewTicker(opts.interval)
		defer ticker.Stop()
		for {
			if err := dumpOnce(opts); err != nil {
				fmt.Fprintln(os.Stderr, "error:", err)
			}
			select {
			case <-ticker.C:
				continue
			case <-done:
				return
			}
		}
	}

	if err := dumpOnce(opts); err != nil {
		fatal(err)
	}
}

func dumpOnce(opts *options) error {
	if opts.dir {
		reports, err := minis.InspectDir(opts.path)
		if err != nil {
			return err
		}
		if opts.json {
			return encodeJSON(reports)
		}
		return prettyPrintDir(reports)
	}

	report, err := minis.InspectFile(opts.path)
	if err != nil && report.Path == "" {
		return err
	}
	if opts.json {
		return encodeJSON(report)
	}
	return prettyPrintFile(report)
}

func encodeJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func prettyPrintFile(r minis.FileReport) error {
	fmt.Printf("Path:     %s\n", r.Path)
	fmt.Printf("Version:  %d\n", r.Version)
	fmt.Printf("CRC32:    %08x (ok: %v)\n", r.CRC32, r.CRCOK)
	fmt.Printf("Keys:     %d\n", r.Keys)
	fmt.Printf("TTL span: %s\n", formatTTLSpan(r))
	return nil
}

func prettyPrintDir(reports []minis.FileReport) error {
	total := 0
	for _, r := range reports {
		fmt.Printf("%-28s keys=%-6d crc_ok=%-5v version=%d  ttl=%s\n",
			r.Path, r.Keys, r.CRCOK, r.Version, formatTTLSpan(r))
		total += r.Keys
	}
	fmt.Printf("total keys across %d shard file(s): %d\n", len(reports), total)
	return nil
}

func formatTTLSpan(r minis.FileReport) string {
	if r.SoonestTTL == 0 && r.OldestTTL == 0 {
		return "none"
	}
	return fmt.Sprintf("%d..%d us", r.SoonestTTL, r.OldestTTL)
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, "minis-inspect:", err)
	os.Exit(1)
}
