// main.go: Kairos command-line entry point
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package main

import (
	"fmt"
	"os"

	"github.com/agilira/kairos"
	"github.com/agilira/kairos/cmd/cli"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	manager := cli.NewManager()

	// KAIROS_AUDIT_ENABLED audits CLI operations as well
	if cfg, err := kairos.LoadConfigFromEnv(); err == nil && cfg.Audit.Enabled {
		if auditLogger, err := kairos.NewAuditLogger(cfg.Audit); err == nil {
			defer func() { _ = auditLogger.Close() }()
			manager = manager.WithAudit(auditLogger)
		}
	}

	if err := manager.Run(args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}
