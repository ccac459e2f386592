package textutil

import (
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// fileNameReplacer replaces filesystem-unsafe characters with safe alternatives.
var fileNameReplacer = strings.NewReplacer(
	"/", "-",
	"\\", "-",
	":", "-",
	"*", "-",
	"?", "",
	"\"", "",
	"<", "",
	">", "",
	"|", "",
)

// SanitizeFileName replaces filesystem-unsafe characters in a filename.
// Slashes, backslashes, colons, and asterisks become dashes; other unsafe
// characters are removed. The result is trimmed of leading/trailing whitespace.
func SanitizeFileName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}
	return strings.TrimSpace(fileNameReplacer.Replace(name))
}

// StripMarks returns value in decomposed form with combining marks removed.
func StripMarks(value string) string {
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, value)
	if err != nil {
		return value
	}
	return out
}

// FolderName converts a title into a single path element. Control characters
// are dropped and dot-only names are replaced so the result never climbs out
// of its parent. Returns "clip" when nothing usable remains.
func FolderName(title string) string {
	name := SanitizeFileName(StripMarks(title))
	name = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, name)
	name = strings.TrimSpace(name)
	if strings.Trim(name, ".") == "" {
		return "clip"
	}
	return name
}

// UniqueName returns name, or name with a numeric suffix, such that the result
// is not yet in taken. The chosen name is added to taken. Comparison ignores
// case so archives stay portable to case-insensitive filesystems.
func UniqueName(name string, taken map[string]struct{}) string {
	candidate := name
	for i := 2; ; i++ {
		key := strings.ToLower(candidate)
		if _, ok := taken[key]; !ok {
			taken[key] = struct{}{}
			return candidate
		}
		candidate = name + " (" + strconv.Itoa(i) + ")"
	}
}
