// Package icons handles file-type icon registration for the host platform.
// Resolution is a pure function over the set of available icon files, so the
// fallback policy is testable without touching the filesystem.
package icons

// GenericIcon is the fallback icon used when no extension-specific icon exists.
const GenericIcon = "gen.svg"

// Resolve picks the best icon for a file extension from the available icon
// file names: <extension>.svg when present, otherwise gen.svg, otherwise
// nothing. The second return value is false when neither candidate exists.
func Resolve(ext string, available []string) (string, bool) {
	set := make(map[string]bool, len(available))
	for _, name := range available {
		set[name] = true
	}

	specific := ext + ".svg"
	if set[specific] {
		return specific, true
	}
	if set[GenericIcon] {
		return GenericIcon, true
	}
	return "", false
}
