package model

import (
	"fmt"
	"strings"
)

// Platform identifies a supported content platform
type Platform string

const (
	PlatformYouTube  Platform = "youtube"
	PlatformFacebook Platform = "facebook"
)

// Platforms lists every platform with an adapter
var Platforms = []Platform{PlatformYouTube, PlatformFacebook}

// ParsePlatform normalizes a platform tag and rejects unknown ones
func ParsePlatform(s string) (Platform, error) {
	p := Platform(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Platforms {
		if p == known {
			return p, nil
		}
	}
	return "", fmt.Errorf("unsupported platform: %q", s)
}

// HiddenStatus is the platform-native status we set when hiding content
func (p Platform) HiddenStatus() string {
	switch p {
	case PlatformYouTube:
		return "private"
	case PlatformFacebook:
		return "hidden"
	default:
		return ""
	}
}

// DefaultVisibleStatus is used on restore when no original status was recorded
func (p Platform) DefaultVisibleStatus() string {
	switch p {
	case PlatformYouTube:
		return "public"
	case PlatformFacebook:
		return "visible"
	default:
		return ""
	}
}

func (p Platform) String() string { return string(p) }
