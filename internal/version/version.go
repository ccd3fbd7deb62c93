package version

import (
	"github.com/earthboundkid/versioninfo/v2"
)

// GetVersion returns the module version with the short commit if available
func GetVersion() string {
	return versioninfo.Short()
}

// GetFullVersion returns version with commit info
func GetFullVersion() string {
	ver := versioninfo.Version
	if versioninfo.Revision == "" || versioninfo.Revision == "unknown" {
		return ver
	}
	full := ver + " (commit: " + versioninfo.Revision
	if versioninfo.DirtyBuild {
		full += ", dirty"
	}
	if !versioninfo.LastCommit.IsZero() {
		full += ", " + versioninfo.LastCommit.Format("2006-01-02")
	}
	return full + ")"
}
