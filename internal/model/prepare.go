package model

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"
)

var (
	// hostnamePattern validates domain names (label.label, no scheme, no port).
	hostnamePattern = regexp.MustCompile(`^[a-z0-9]([a-z0-9-]{0,61}[a-z0-9])?(\.[a-z0-9]([a-z0-9-]{0,61}[a-z0-9])?)+$`)

	// segmentPattern is the strict filename-safe pattern applied to every
	// path segment of template filenames and asset paths.
	segmentPattern = regexp.MustCompile(`^[A-Za-z0-9._-]+$`)

	slugSquash = regexp.MustCompile(`[^a-z0-9]+`)
)

// ValidDomainName reports whether name looks like a hostname.
func ValidDomainName(name string) bool {
	return hostnamePattern.MatchString(strings.ToLower(name))
}

// ValidPathSegment reports whether a single path segment is filename-safe.
// "." and ".." never qualify.
func ValidPathSegment(seg string) bool {
	if seg == "" || seg == "." || seg == ".." {
		return false
	}
	return segmentPattern.MatchString(seg)
}

// ValidRelPath reports whether a slash-separated path consists solely of
// filename-safe segments. Absolute paths and parent-directory escapes fail.
func ValidRelPath(p string) bool {
	if p == "" || strings.HasPrefix(p, "/") {
		return false
	}
	for _, seg := range strings.Split(p, "/") {
		if !ValidPathSegment(seg) {
			return false
		}
	}
	return true
}

// Slugify derives the deterministic slug for a (domain, locale, name) triple.
func Slugify(domain, locale, name string) string {
	s := strings.ToLower(domain + "-" + locale + "-" + name)
	s = slugSquash.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}

// randomKey returns n random bytes hex-encoded.
func randomKey(n int) string {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		panic(err) // crypto/rand failure is not recoverable
	}
	return hex.EncodeToString(b)
}

// PrepareTemplate fills derived fields before insert/update and enforces the
// filename invariants. Called explicitly by the store, never via lifecycle
// hooks.
func PrepareTemplate(t *Template) error {
	if t.Name == "" {
		return fmt.Errorf("template name is required")
	}
	if t.Slug == "" {
		t.Slug = Slugify(t.Domain, t.Locale, t.Name)
	}
	if t.Filename == "" {
		t.Filename = t.Slug + ".liquid"
	}
	if !ValidRelPath(t.Filename) {
		return fmt.Errorf("template filename %q is not a safe relative path", t.Filename)
	}
	for _, a := range t.Assets {
		if !ValidRelPath(a) {
			return fmt.Errorf("asset path %q is not a safe relative path", a)
		}
	}
	return nil
}

// PrepareForm fills derived fields before insert/update: a fresh form key
// when unset, the storage filename, and the same path invariants templates
// get.
func PrepareForm(f *Form) error {
	if f.IDName == "" {
		return fmt.Errorf("form idname is required")
	}
	if f.FormKey == "" {
		f.FormKey = randomKey(20)
	}
	if f.Filename == "" {
		f.Filename = Slugify(f.Domain, f.Locale, f.IDName) + ".liquid"
	}
	if !ValidRelPath(f.Filename) {
		return fmt.Errorf("form filename %q is not a safe relative path", f.Filename)
	}
	for _, a := range f.Assets {
		if !ValidRelPath(a) {
			return fmt.Errorf("asset path %q is not a safe relative path", a)
		}
	}
	return nil
}
