package dcservice

import (
	"fmt"
	"strings"
)

// FormatVersion formats a version string with optional commit, date and meta suffixes.
func FormatVersion(version string, gitCommit string, gitDate string, meta string) string {
	v := version
	if meta != "" {
		v += "-" + meta
	}
	if gitCommit != "" {
		if len(gitCommit) > 8 {
			gitCommit = gitCommit[:8]
		}
		v += "-" + gitCommit
	}
	if gitDate != "" {
		v += "-" + gitDate
	}
	return v
}

// PrefixEnvVar returns the upper-cased env var name under the given prefix.
func PrefixEnvVar(prefix, suffix string) []string {
	return []string{strings.ToUpper(fmt.Sprintf("%s_%s", prefix, suffix))}
}
