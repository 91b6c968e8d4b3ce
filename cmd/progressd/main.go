// Copyright (C) 2025 Mera Learn (progress-core@mera-learn.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Command progressd operates the progress core outside the browser runtime
// it's normally embedded in: a standalone daemon for serving the save/clean
// loops, plus one-shot recover/status/init tooling for local development and
// ops debugging.
package main

import (
	"fmt"
	"os"

	"github.com/mera-learn/progress-core/cmd/progressd/internal/root"
)

func main() {
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
