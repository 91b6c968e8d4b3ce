// Copyright (C) 2025 Mera Learn (progress-core@mera-learn.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package progress

import (
	"fmt"
	"strconv"
	"strings"
)

// Kind is one of the seven backup-file kinds named in §3's filename
// grammar.
type Kind string

const (
	KindPodPrimary      Kind = "sp"
	KindPodDuplicate    Kind = "sd"
	KindLocalOffPrimary Kind = "lofp"
	KindLocalOffDup     Kind = "lofd"
	KindLocalOnPrimary  Kind = "lonp"
	KindLocalOnDup      Kind = "lond"
	KindEscapeHatch     Kind = "ehb"
)

// SchemaVersion is the three-part version embedded in every filename.
type SchemaVersion struct {
	Major, Minor, Patch int
}

func (v SchemaVersion) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
}

// ParseSchemaVersion parses a "major.minor.patch" string, the form schema
// versions take in config files and CLI flags before being embedded in a
// filename.
func ParseSchemaVersion(s string) (SchemaVersion, error) {
	parts := strings.Split(s, ".")
	if len(parts) != 3 {
		return SchemaVersion{}, fmt.Errorf("progress: invalid schema version %q, want major.minor.patch", s)
	}
	major, err1 := strconv.Atoi(parts[0])
	minor, err2 := strconv.Atoi(parts[1])
	patch, err3 := strconv.Atoi(parts[2])
	if err1 != nil || err2 != nil || err3 != nil {
		return SchemaVersion{}, fmt.Errorf("progress: invalid schema version %q, want major.minor.patch", s)
	}
	return SchemaVersion{major, minor, patch}, nil
}

// Filename is a parsed backup-file name: mera.<major>.<minor>.<patch>.<kind>.<unix-ms>.json
type Filename struct {
	Version   SchemaVersion
	Kind      Kind
	TimestampMS int64
}

// String renders the filename grammar of §3.
func (f Filename) String() string {
	return fmt.Sprintf("mera.%d.%d.%d.%s.%d.json",
		f.Version.Major, f.Version.Minor, f.Version.Patch, f.Kind, f.TimestampMS)
}

// ParseFilename parses a backup filename, returning ok==false for anything
// that doesn't match the grammar (malformed names are simply discarded by
// every caller, Cleaner and Loader alike, per their "discard malformed" steps).
func ParseFilename(name string) (Filename, bool) {
	parts := strings.Split(name, ".")
	if len(parts) != 7 {
		return Filename{}, false
	}
	if parts[0] != "mera" || parts[6] != "json" {
		return Filename{}, false
	}
	major, err1 := strconv.Atoi(parts[1])
	minor, err2 := strconv.Atoi(parts[2])
	patch, err3 := strconv.Atoi(parts[3])
	if err1 != nil || err2 != nil || err3 != nil {
		return Filename{}, false
	}
	kind := Kind(parts[4])
	switch kind {
	case KindPodPrimary, KindPodDuplicate, KindLocalOffPrimary, KindLocalOffDup,
		KindLocalOnPrimary, KindLocalOnDup, KindEscapeHatch:
	default:
		return Filename{}, false
	}
	ts, err := strconv.ParseInt(parts[5], 10, 64)
	if err != nil {
		return Filename{}, false
	}
	return Filename{
		Version:     SchemaVersion{major, minor, patch},
		Kind:        kind,
		TimestampMS: ts,
	}, true
}

// NewFilename builds a Filename for the given kind/version/timestamp.
func NewFilename(version SchemaVersion, kind Kind, tsMS int64) Filename {
	return Filename{Version: version, Kind: kind, TimestampMS: tsMS}
}

// StageFilenames generates the six save filenames G needs for one save
// cycle at the given version/timestamp (§4.2): lofp, lofd, sp, sd, lonp,
// lond, returned as a map keyed by Kind.
func StageFilenames(version SchemaVersion, tsMS int64) map[Kind]Filename {
	kinds := []Kind{KindLocalOffPrimary, KindLocalOffDup, KindPodPrimary, KindPodDuplicate, KindLocalOnPrimary, KindLocalOnDup}
	out := make(map[Kind]Filename, len(kinds))
	for _, k := range kinds {
		out[k] = NewFilename(version, k, tsMS)
	}
	return out
}

// PairedDuplicate returns the duplicate-kind name that forms a primary's pair
// for the cleaner's "delete primary and its derived duplicate name as a
// unit" step (§4.4 step 5).
func PairedDuplicate(f Filename) (Filename, bool) {
	var dup Kind
	switch f.Kind {
	case KindPodPrimary:
		dup = KindPodDuplicate
	case KindLocalOffPrimary:
		dup = KindLocalOffDup
	case KindLocalOnPrimary:
		dup = KindLocalOnDup
	default:
		return Filename{}, false
	}
	return NewFilename(f.Version, dup, f.TimestampMS), true
}

// IsOfflineTag reports whether filename carries the offline-work flag
// (§3: the ".lofp." kind) meaning Pod write was not yet known-good.
func IsOfflineTag(name string) bool {
	return strings.Contains(name, "."+string(KindLocalOffPrimary)+".")
}
