package mimetypes

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
)

const (
	mappingFileName = "mimetypemapping.json"
	aliasesFileName = "mimetypealiases.json"
)

// MappingFiles appends extension/MIME/alias entries to the host platform's
// JSON configuration files. Existing entries written by the host or by other
// plugins are never clobbered; our keys are only added when absent. Writes
// are atomic (tmp file + rename) because the host may read these files at
// any moment.
type MappingFiles struct {
	configDir string // host config directory holding both JSON files
	log       zerolog.Logger
}

// NewMappingFiles creates a MappingFiles writer for the host config directory
func NewMappingFiles(configDir string, log zerolog.Logger) *MappingFiles {
	return &MappingFiles{
		configDir: configDir,
		log:       log.With().Str("component", "mapping_files").Logger(),
	}
}

// Append merges the entries into mimetypemapping.json (extension -> list of
// MIME types, canonical first) and mimetypealiases.json (alias MIME ->
// canonical MIME). Files are created when missing. Returns an error only
// when a file cannot be read or written; individual keys that already exist
// are silently kept as-is.
func (m *MappingFiles) Append(entries []Entry) error {
	if err := os.MkdirAll(m.configDir, 0755); err != nil {
		return fmt.Errorf("failed to create host config directory: %w", err)
	}

	mapping := make(map[string][]string)
	if err := m.readJSON(mappingFileName, &mapping); err != nil {
		return err
	}

	aliases := make(map[string]string)
	if err := m.readJSON(aliasesFileName, &aliases); err != nil {
		return err
	}

	mappingChanged := false
	aliasesChanged := false

	for _, entry := range entries {
		if _, exists := mapping[entry.Extension]; !exists {
			mimes := append([]string{entry.Mime}, entry.Aliases...)
			mapping[entry.Extension] = mimes
			mappingChanged = true
		}

		for _, alias := range entry.Aliases {
			// text/plain belongs to the host; aliasing it away would
			// reroute every plain text file to our viewer.
			if alias == "text/plain" {
				continue
			}
			if _, exists := aliases[alias]; !exists {
				aliases[alias] = entry.Mime
				aliasesChanged = true
			}
		}
	}

	if mappingChanged {
		if err := m.writeJSON(mappingFileName, mapping); err != nil {
			return err
		}
		m.log.Info().Int("extensions", len(entries)).Msg("Updated mimetype mapping file")
	}

	if aliasesChanged {
		if err := m.writeJSON(aliasesFileName, aliases); err != nil {
			return err
		}
		m.log.Info().Msg("Updated mimetype aliases file")
	}

	return nil
}

// readJSON loads a JSON config file into out. A missing file is not an
// error; out is left at its zero (empty map) value.
func (m *MappingFiles) readJSON(name string, out interface{}) error {
	path := filepath.Join(m.configDir, name)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", name, err)
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to parse %s: %w", name, err)
	}
	return nil
}

// writeJSON atomically replaces a JSON config file.
func (m *MappingFiles) writeJSON(name string, value interface{}) error {
	data, err := json.MarshalIndent(value, "", "    ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", name, err)
	}
	data = append(data, '\n')

	path := filepath.Join(m.configDir, name)
	tmp, err := os.CreateTemp(m.configDir, name+".tmp*")
	if err != nil {
		return fmt.Errorf("failed to create temp file for %s: %w", name, err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to close temp file for %s: %w", name, err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to replace %s: %w", name, err)
	}

	return nil
}
