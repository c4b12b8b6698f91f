package core

import "strings"

// Slugify lowercases value and replaces every run of non [a-z0-9] characters
// with a single hyphen, trimming leading/trailing hyphens. Used to derive a
// project's channel name from its directory path, and to normalize
// user-supplied custom channel names.
func Slugify(value string) string {
	var b strings.Builder
	b.Grow(len(value))
	lastHyphen := true // treat the start as if a hyphen was just written

	for _, r := range value {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastHyphen = false
		case r >= 'A' && r <= 'Z':
			b.WriteRune(r - 'A' + 'a')
			lastHyphen = false
		default:
			if !lastHyphen {
				b.WriteByte('-')
				lastHyphen = true
			}
		}
	}

	slug := strings.TrimSuffix(b.String(), "-")
	return slug
}

// ProjectChannelName derives the per-project channel name from an absolute
// project path, taking the final path component.
func ProjectChannelName(projectPath string) string {
	trimmed := strings.TrimRight(projectPath, "/")
	idx := strings.LastIndex(trimmed, "/")
	base := trimmed
	if idx >= 0 {
		base = trimmed[idx+1:]
	}
	slug := Slugify(base)
	if slug == "" {
		return "project"
	}
	return slug
}
