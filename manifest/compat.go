package manifest

import (
	"fmt"

	"github.com/Masterminds/semver/v3"
)

// CompatibilityResult is the outcome of checking a manifest's declared
// hostVersionRange against the running host version.
type CompatibilityResult struct {
	Compatible    bool
	RequiredRange string
	ActualVersion string
	Message       string
}

// CheckCompatibility reports whether hostVersion satisfies the manifest's
// hostVersionRange. Pre-release host versions only satisfy ranges that
// themselves reference a pre-release tag, per standard semver-range
// convention (delegated to Masterminds/semver).
func CheckCompatibility(m *Manifest, hostVersion string) CompatibilityResult {
	result := CompatibilityResult{
		RequiredRange: m.HostVersionRange,
		ActualVersion: hostVersion,
	}

	constraint, err := semver.NewConstraint(m.HostVersionRange)
	if err != nil {
		result.Message = fmt.Sprintf("plugin %q declares an invalid hostVersionRange %q: %v", m.Name, m.HostVersionRange, err)
		return result
	}

	actual, err := semver.NewVersion(hostVersion)
	if err != nil {
		result.Message = fmt.Sprintf("host version %q is not a valid semantic version: %v", hostVersion, err)
		return result
	}

	if constraint.Check(actual) {
		result.Compatible = true
		result.Message = fmt.Sprintf("host version %s satisfies %s", hostVersion, m.HostVersionRange)
		return result
	}

	result.Message = fmt.Sprintf("host version %s does not satisfy required range %s", hostVersion, m.HostVersionRange)
	return result
}
