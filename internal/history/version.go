package history

import (
	"fmt"

	"golang.org/x/mod/semver"
)

// SchemaVersion is the layout of the run records this build writes.
const SchemaVersion = "v1.0.0"

// IsCompatibleSchema reports whether a ledger written with stored can be
// read by a build at current. Major versions must match; minor and patch
// versions may differ.
func IsCompatibleSchema(stored, current string) (bool, error) {
	if !semver.IsValid(stored) {
		return false, fmt.Errorf("invalid stored schema version: %q", stored)
	}
	if !semver.IsValid(current) {
		return false, fmt.Errorf("invalid schema version: %q", current)
	}

	return semver.Major(stored) == semver.Major(current), nil
}
