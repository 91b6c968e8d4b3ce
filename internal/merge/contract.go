// Copyright (C) 2025 Mera Learn (progress-core@mera-learn.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package merge

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mera-learn/progress-core/internal/integrity"
	"github.com/mera-learn/progress-core/internal/progress"
	"github.com/mera-learn/progress-core/internal/registry"
)

// ErrMergerCorruption is raised when re-running Integrity over a merge
// result reports corruption. Per §4.6 this can only mean a bug in Merge
// itself, since both inputs were already sanitized, and is therefore
// treated as fatal rather than absorbed (I8).
var ErrMergerCorruption = errors.New("merge: post-merge corruption detected, this is a merger bug")

// ValidateMergeResult re-runs Progress Integrity over merged and returns
// ErrMergerCorruption if it reports corruption, per the Loader's validation
// step (§4.7.2) and the I8 invariant.
func ValidateMergeResult(merged []byte, expectedWebID string, reg registry.Registry, parsedLessonsCount int) error {
	result, err := integrity.Enforce(string(merged), expectedWebID, reg, parsedLessonsCount)
	if err != nil {
		return fmt.Errorf("merge: validating merge result: %w", err)
	}
	if result.RecoveryMetrics.OverallProgress.CorruptionDetected {
		return ErrMergerCorruption
	}
	return nil
}

// MergeAndValidate merges a and b, serializes the result, and validates it
// against Integrity, returning the merged Bundle only if it is clean.
func MergeAndValidate(a, b progress.Bundle, expectedWebID string, reg registry.Registry, parsedLessonsCount int) (progress.Bundle, error) {
	merged := Merge(a, b)
	raw, err := json.Marshal(merged)
	if err != nil {
		return progress.Bundle{}, fmt.Errorf("merge: marshaling merge result: %w", err)
	}
	if err := ValidateMergeResult(raw, expectedWebID, reg, parsedLessonsCount); err != nil {
		return progress.Bundle{}, err
	}
	return merged, nil
}
