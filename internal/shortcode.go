package instagrab

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// postMarkers are the first path segments that identify a post URL.
var postMarkers = map[string]bool{
	"p":    true,
	"reel": true,
	"tv":   true,
}

// ResolveShortID extracts the short identifier from a post URL such as
// https://www.instagram.com/p/ABC123/.
func ResolveShortID(rawURL string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", &InvalidReferenceError{URL: rawURL, Reason: err.Error()}
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(parts) < 2 {
		return "", &InvalidReferenceError{URL: rawURL, Reason: "path needs a post marker and a short code"}
	}
	if !postMarkers[parts[0]] {
		return "", &InvalidReferenceError{URL: rawURL, Reason: "unrecognized post marker " + `"` + parts[0] + `"`}
	}
	if parts[1] == "" {
		return "", &InvalidReferenceError{URL: rawURL, Reason: "empty short code"}
	}
	if err := CheckPathSegment(parts[1]); err != nil {
		return "", &InvalidReferenceError{URL: rawURL, Reason: err.Error()}
	}
	return parts[1], nil
}

// CheckPathSegment rejects names that cannot be used as a single directory
// level below the output root.
func CheckPathSegment(name string) error {
	switch {
	case strings.TrimSpace(name) == "":
		return errors.New("name is empty")
	case name == "." || name == "..":
		return fmt.Errorf("name %q is a relative path element", name)
	case strings.ContainsAny(name, `/\`+"\x00"):
		return fmt.Errorf("name %q contains a path separator", name)
	}
	return nil
}
