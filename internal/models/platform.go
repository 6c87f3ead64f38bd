package models

import (
	"fmt"
	"strings"
)

type Platform string

const (
	PlatformInstagram Platform = "INSTAGRAM"
	PlatformFacebook  Platform = "FACEBOOK"
	PlatformTwitter   Platform = "TWITTER"
	PlatformLinkedIn  Platform = "LINKEDIN"
	PlatformTiktok    Platform = "TIKTOK"
	PlatformThreads   Platform = "THREADS"
	PlatformYoutube   Platform = "YOUTUBE"
)

// AllPlatforms lists every platform a post can target, supported or not.
var AllPlatforms = []Platform{
	PlatformInstagram,
	PlatformFacebook,
	PlatformTwitter,
	PlatformLinkedIn,
	PlatformTiktok,
	PlatformThreads,
	PlatformYoutube,
}

func ParsePlatform(s string) (Platform, error) {
	p := Platform(strings.ToUpper(strings.TrimSpace(s)))
	for _, known := range AllPlatforms {
		if p == known {
			return p, nil
		}
	}
	return "", fmt.Errorf("unknown platform %q", s)
}

// Key is the lower-case name used in per-platform content payloads.
func (p Platform) Key() string {
	return strings.ToLower(string(p))
}

// PlatformSet is a small lookup set of platforms.
type PlatformSet map[Platform]struct{}

func NewPlatformSet(platforms ...Platform) PlatformSet {
	set := make(PlatformSet, len(platforms))
	for _, p := range platforms {
		set[p] = struct{}{}
	}
	return set
}

func (s PlatformSet) Has(p Platform) bool {
	_, ok := s[p]
	return ok
}

// Slice returns the members in AllPlatforms order so queries are deterministic.
func (s PlatformSet) Slice() []Platform {
	out := make([]Platform, 0, len(s))
	for _, p := range AllPlatforms {
		if s.Has(p) {
			out = append(out, p)
		}
	}
	return out
}
