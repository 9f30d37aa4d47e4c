/*
 * Copyright (c) 2019 Conclave IM.
 * See the LICENSE file for more information.
 */

package version

import "fmt"

// ApplicationVersion holds the current application version.
var ApplicationVersion = NewVersion(0, 1, 0)

// SemanticVersion represents a semantic version value.
type SemanticVersion struct {
	major uint
	minor uint
	patch uint
}

// NewVersion initializes a new SemanticVersion instance.
func NewVersion(major, minor, patch uint) *SemanticVersion {
	return &SemanticVersion{
		major: major,
		minor: minor,
		patch: patch,
	}
}

// String returns a readable representation of the version.
func (v *SemanticVersion) String() string {
	return fmt.Sprintf("v%d.%d.%d", v.major, v.minor, v.patch)
}

// IsEqual returns true if both versions are equivalent.
func (v *SemanticVersion) IsEqual(v2 *SemanticVersion) bool {
	if v == v2 {
		return true
	}
	return v.major == v2.major && v.minor == v2.minor && v.patch == v2.patch
}

// IsGreater returns true if v is strictly greater than v2.
func (v *SemanticVersion) IsGreater(v2 *SemanticVersion) bool {
	if v == v2 {
		return false
	}
	if v.major != v2.major {
		return v.major > v2.major
	}
	if v.minor != v2.minor {
		return v.minor > v2.minor
	}
	return v.patch > v2.patch
}

// IsLess returns true if v is strictly smaller than v2.
func (v *SemanticVersion) IsLess(v2 *SemanticVersion) bool {
	return !v.IsEqual(v2) && !v.IsGreater(v2)
}
