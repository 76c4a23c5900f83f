package steering

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"
)

const (
	// maxSlugLength bounds filenames; longer slugs are truncated with a
	// hash suffix to preserve uniqueness.
	maxSlugLength = 64

	// hashSuffixLength is "-" plus eight hex characters.
	hashSuffixLength = 9

	// defaultSlug is used when sanitization produces an empty result.
	defaultSlug = "note"
)

// validSlug accepts filename components as produced by Slug or written by
// hand; anything with separators or a leading dot is rejected.
var slugPattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._-]*$`)

func validSlug(s string) bool {
	return slugPattern.MatchString(s)
}

// Slug sanitizes a note title for use as a filename.
//
// Rules applied:
//   - Lowercases the title
//   - Replaces invalid characters with dashes
//   - Collapses runs of dashes
//   - Trims leading/trailing dashes
//   - Truncates to maxSlugLength with a hash suffix if too long
//   - Returns defaultSlug if the result would be empty
//
// Examples:
//
//	"Checkout Latency!" -> "checkout-latency"
//	"order_pipeline"    -> "order-pipeline"
//	"" or "!!!"         -> "note"
func Slug(s string) string {
	if s == "" {
		return defaultSlug
	}

	s = strings.ToLower(s)

	var result strings.Builder
	result.Grow(len(s))
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			result.WriteRune(r)
		} else {
			result.WriteRune('-')
		}
	}

	slug := result.String()
	for strings.Contains(slug, "--") {
		slug = strings.ReplaceAll(slug, "--", "-")
	}
	slug = strings.Trim(slug, "-")

	if slug == "" {
		return defaultSlug
	}

	if len(slug) > maxSlugLength {
		slug = truncateWithHash(slug)
	}

	return slug
}

// truncateWithHash truncates a slug to fit within maxSlugLength,
// appending a hash of the full slug to preserve uniqueness.
func truncateWithHash(s string) string {
	hash := sha256.Sum256([]byte(s))
	suffix := "-" + hex.EncodeToString(hash[:])[:8]

	truncated := s[:maxSlugLength-hashSuffixLength]
	truncated = strings.TrimRight(truncated, "-")

	return truncated + suffix
}
