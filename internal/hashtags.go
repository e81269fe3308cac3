package instagrab

import (
	"regexp"
	"strings"
)

// hashtagRegex matches a '#' followed by one or more word characters, Unicode letters included.
var hashtagRegex = regexp.MustCompile(`#([\p{L}\p{M}\p{N}_]+)`)

// NormalizeTag lower-cases a tag and strips any leading '#' markers.
func NormalizeTag(raw string) string {
	return strings.ToLower(strings.TrimLeft(strings.TrimSpace(raw), "#"))
}

// ExtractHashtags returns the distinct normalized hashtags of a caption in
// order of first appearance.
func ExtractHashtags(caption string) []string {
	matches := hashtagRegex.FindAllStringSubmatch(caption, -1)
	seen := make(map[string]bool, len(matches))
	tags := make([]string, 0, len(matches))
	for _, m := range matches {
		tag := NormalizeTag(m[1])
		if tag == "" || seen[tag] {
			continue
		}
		seen[tag] = true
		tags = append(tags, tag)
	}
	return tags
}
