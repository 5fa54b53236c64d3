// Utility functions for the Kairos CLI
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/agilira/go-errors"
	"github.com/agilira/kairos"
	"github.com/agilira/orpheus/pkg/orpheus"
)

// maxArgs bounds positional argument scanning.
const maxArgs = 256

// collectArgs returns the positional arguments up to the first empty one.
func collectArgs(ctx *orpheus.Context) []string {
	var args []string
	for i := 0; i < maxArgs; i++ {
		arg := ctx.GetArg(i)
		if arg == "" {
			break
		}
		args = append(args, arg)
	}
	return args
}

// resolveFormat honours an explicit format and falls back to the extension.
func resolveFormat(filePath, explicitFormat string) kairos.ConfigFormat {
	if explicitFormat != "" && explicitFormat != "auto" {
		return kairos.ParseFormat(explicitFormat)
	}
	return kairos.DetectFormat(filePath)
}

// loadConfig reads and parses filePath once.
func loadConfig(filePath string, format kairos.ConfigFormat) (map[string]interface{}, error) {
	if err := kairos.ValidateSecurePath(filePath); err != nil {
		return nil, err
	}

	// #nosec G304 -- path checked by ValidateSecurePath
	data, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.New(kairos.ErrCodeInvalidPath, "configuration file does not exist: "+filePath)
		}
		return nil, errors.Wrap(err, kairos.ErrCodeLoaderFailed, "failed to read "+filePath+": "+err.Error())
	}

	return kairos.ParseConfig(data, format)
}

// parseTimeout parses the --timeout flag; "0" and "" mean no timeout.
func parseTimeout(s string) (time.Duration, error) {
	if s == "" || s == "0" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil || d < 0 {
		return 0, errors.New(kairos.ErrCodeInvalidConfig, fmt.Sprintf("invalid timeout: %s", s))
	}
	return d, nil
}

// effectiveDebounce reports the window a Watch built from cfg would use.
func effectiveDebounce(cfg *kairos.Config) time.Duration {
	if cfg.DisableDebounce {
		return 0
	}
	return cfg.Debounce
}

// printSnapshot prints a published value as indented JSON.
func printSnapshot(path string, snapshot map[string]interface{}) {
	fmt.Printf("[%s] %s\n", time.Now().Format("15:04:05.000"), path)
	if snapshot == nil {
		fmt.Println("  (absent)")
		return
	}
	data, err := json.MarshalIndent(snapshot, "  ", "  ")
	if err != nil {
		fmt.Printf("  %v\n", snapshot)
		return
	}
	fmt.Printf("  %s\n", data)
}

// printStats prints engine counters.
func printStats(stats kairos.Stats) {
	fmt.Printf("State: %s, generation %d\n", stats.State, stats.Generation)
	fmt.Printf("Reloads: %d, failures: %d, panics: %d\n", stats.Reloads, stats.Failures, stats.Panics)
	fmt.Printf("Events: %d seen, %d discarded, %d dropped, %d buffered\n",
		stats.EventsSeen, stats.EventsDiscarded, stats.RingDropped, stats.RingBuffered)
	fmt.Printf("Pending reloads: %d path(s)\n", stats.PendingPaths)
	fmt.Printf("Watching %d path(s) in %d director(ies)\n", stats.WatchedPaths, stats.WatchedDirs)
}

// printCounts prints a map of counters sorted by key.
func printCounts(title string, counts map[string]int64) {
	if len(counts) == 0 {
		return
	}
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	fmt.Printf("%s:\n", title)
	for _, k := range keys {
		fmt.Printf("  %-20s %d\n", k, counts[k])
	}
}

// formatAuditEvent renders one event on a single line.
func formatAuditEvent(event kairos.AuditEvent) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %-8s %s", event.Timestamp.Format(time.RFC3339), event.Level, event.Event)
	if event.FilePath != "" {
		fmt.Fprintf(&b, " %s", event.FilePath)
	}
	if len(event.Context) > 0 {
		keys := make([]string, 0, len(event.Context))
		for k := range event.Context {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&b, " %s=%v", k, event.Context[k])
		}
	}
	return b.String()
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
