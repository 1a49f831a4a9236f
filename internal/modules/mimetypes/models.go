// Package mimetypes implements the install-time registration flow: it teaches
// the host platform which file extensions belong to KiCad and which MIME types
// and icons they map to. The same extension table also backs the viewing
// flow's MIME lookup, so the two flows can never drift apart.
package mimetypes

import (
	"path/filepath"
	"strings"
)

// Entry maps one file extension to its canonical MIME type plus alias MIME
// types. The host platform's filecache holds exactly one MIME type per file,
// so the canonical MIME is the one written there; aliases only appear in the
// host's mapping/alias configuration files.
type Entry struct {
	Extension string
	Mime      string
	Aliases   []string
}

// KiCadEntries is the fixed registration table for KiCad file formats.
// Every extension the viewer opens must be listed here.
var KiCadEntries = []Entry{
	{Extension: "kicad_pro", Mime: "application/x-kicad-project", Aliases: []string{"text/plain"}},
	{Extension: "kicad_sch", Mime: "application/x-kicad-schematic", Aliases: []string{"text/plain"}},
	{Extension: "kicad_pcb", Mime: "application/x-kicad-pcb", Aliases: []string{"text/plain"}},
	{Extension: "kicad_sym", Mime: "application/x-kicad-symbol", Aliases: []string{"text/plain"}},
	{Extension: "kicad_mod", Mime: "application/x-kicad-footprint", Aliases: []string{"text/plain"}},
	{Extension: "kicad_wks", Mime: "application/x-kicad-worksheet", Aliases: []string{"text/plain"}},
	{Extension: "kicad_dru", Mime: "application/x-kicad-design-rules", Aliases: []string{"text/plain"}},
}

// mimeByExtension is derived from KiCadEntries at init time.
var mimeByExtension = func() map[string]string {
	m := make(map[string]string, len(KiCadEntries))
	for _, e := range KiCadEntries {
		m[e.Extension] = e.Mime
	}
	return m
}()

// MimeTypeForExtension returns the canonical MIME type for a file extension.
// Unknown extensions fall back to text/plain, which keeps the embedded viewer
// usable for files the table doesn't know about.
func MimeTypeForExtension(ext string) string {
	if mime, ok := mimeByExtension[strings.ToLower(ext)]; ok {
		return mime
	}
	return "text/plain"
}

// ExtensionOf returns the lowercase extension of a basename: the substring
// after the last dot, without the dot. Returns "" for names with no dot.
func ExtensionOf(basename string) string {
	ext := filepath.Ext(basename)
	if ext == "" {
		return ""
	}
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}
