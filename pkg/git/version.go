package git

import (
	"regexp"

	"golang.org/x/mod/semver"
)

// minimumVersion is the oldest git release the CLI-backed operations are
// exercised against. Older versions mostly work but are not tested.
const minimumVersion = "v2.22.0"

var versionRe = regexp.MustCompile(`(\d+\.\d+(?:\.\d+)?)`)

// Version represents the version of the git binary in use.
type Version struct {
	Version string
}

// NewVersion parses the output of `git version` into a Version.
func NewVersion(raw string) Version {
	ver := ""
	if m := versionRe.FindString(raw); m != "" {
		ver = "v" + m
	}

	return Version{Version: ver}
}

// Supported returns whether the git binary is recent enough for the
// operations the gateway performs.
func (v Version) Supported() bool {
	if v.Version == "" {
		return false
	}

	return semver.Compare(v.Version, minimumVersion) >= 0
}
