package projectstatus

import (
	"fmt"

	"github.com/Masterminds/semver/v3"
)

// VersionComparer decides whether an upstream version is newer than the packaged one
type VersionComparer interface {
	Newer(current, upstream string) bool
}

// LexicalComparer compares version strings byte by byte
type LexicalComparer struct{}

func (LexicalComparer) Newer(current, upstream string) bool {
	return current < upstream
}

// SemverComparer compares semantic versions and falls back to lexical
// comparison when either side does not parse.
type SemverComparer struct{}

func (SemverComparer) Newer(current, upstream string) bool {
	cur, err := semver.NewVersion(current)
	if err != nil {
		return current < upstream
	}
	up, err := semver.NewVersion(upstream)
	if err != nil {
		return current < upstream
	}
	return up.GreaterThan(cur)
}

// NewVersionComparer returns the comparer for mode "lexical" (the default) or "semver"
func NewVersionComparer(mode string) (VersionComparer, error) {
	switch mode {
	case "", "lexical":
		return LexicalComparer{}, nil
	case "semver":
		return SemverComparer{}, nil
	default:
		return nil, fmt.Errorf("unknown version comparison %q", mode)
	}
}
