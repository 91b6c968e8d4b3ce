// Copyright (C) 2025 Mera Learn (progress-core@mera-learn.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package root

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/mattn/go-isatty"
)

const (
	exitSuccess = 0
	exitError   = 1
)

// commandResult wraps one subcommand's output in a stable envelope so
// `--json` output has the same shape across every progressd subcommand.
type commandResult struct {
	Command   string `json:"command"`
	Timestamp string `json:"timestamp"`
	Success   bool   `json:"success"`
	Data      any    `json:"data,omitempty"`
	Error     string `json:"error,omitempty"`
}

// stdoutIsTerminal reports whether stdout is an interactive terminal, used
// to decide whether to emit ANSI color and run interactive forms.
func stdoutIsTerminal() bool {
	return isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())
}

func emitResult(command string, data any, err error) error {
	result := commandResult{
		Command:   command,
		Timestamp: nowRFC3339(),
		Success:   err == nil,
	}
	if err != nil {
		result.Error = err.Error()
	} else {
		result.Data = data
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if encErr := enc.Encode(result); encErr != nil {
			return encErr
		}
	} else if !quiet {
		printPlain(command, data, err)
	}

	if err != nil {
		return err
	}
	return nil
}

func nowRFC3339() string {
	return timeNow().UTC().Format(time.RFC3339)
}

// timeNow is overridable in tests.
var timeNow = time.Now

func printPlain(command string, data any, err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: error: %v\n", command, err)
		return
	}
	fmt.Printf("%s: ok\n", command)
	if data == nil {
		return
	}
	pretty, marshalErr := json.MarshalIndent(data, "  ", "  ")
	if marshalErr != nil {
		fmt.Printf("  %+v\n", data)
		return
	}
	fmt.Printf("  %s\n", pretty)
}
