package preset

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
	"gopkg.in/yaml.v3"
)

// Store holds the currently loaded presets. Load replaces the whole set
// atomically, so readers never observe a partially reloaded state.
type Store struct {
	logger   *slog.Logger
	patterns []string

	mu      sync.RWMutex
	presets map[string]Preset
}

// NewStore creates a store that loads presets from files matching the
// given glob patterns. The built-in default preset is available before
// the first Load.
func NewStore(patterns []string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		logger:   logger,
		patterns: patterns,
		presets:  map[string]Preset{DefaultPresetName: DefaultPreset()},
	}
}

// Load reads all matching preset files and swaps in the new set. Files
// that fail to parse or validate are skipped with a warning so a single
// bad file cannot take down a reload. A file preset named "default"
// overrides the built-in one.
func (s *Store) Load() error {
	presets := make(map[string]Preset)
	builtin := DefaultPreset()
	presets[builtin.Name] = builtin

	files, err := resolveFiles(s.patterns)
	if err != nil {
		return err
	}

	for _, path := range files {
		p, err := loadFile(path)
		if err != nil {
			s.logger.Warn("Skipping unreadable preset file",
				slog.String("path", path),
				slog.String("error", err.Error()))
			continue
		}
		if err := p.Validate(); err != nil {
			s.logger.Warn("Skipping invalid preset",
				slog.String("path", path),
				slog.String("error", err.Error()))
			continue
		}
		if _, exists := presets[p.Name]; exists {
			s.logger.Debug("Preset overrides earlier definition",
				slog.String("name", p.Name),
				slog.String("path", path))
		}
		presets[p.Name] = p
	}

	s.mu.Lock()
	s.presets = presets
	s.mu.Unlock()

	s.logger.Debug("Presets loaded",
		slog.Int("count", len(presets)),
		slog.Int("files", len(files)))
	return nil
}

// Get returns the preset with the given name.
func (s *Store) Get(name string) (Preset, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.presets[name]
	return p, ok
}

// List returns all presets, the default preset first and the rest sorted
// by name.
func (s *Store) List() []Preset {
	s.mu.RLock()
	defer s.mu.RUnlock()

	list := make([]Preset, 0, len(s.presets))
	for _, p := range s.presets {
		list = append(list, p)
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].Name == DefaultPresetName {
			return list[j].Name != DefaultPresetName
		}
		if list[j].Name == DefaultPresetName {
			return false
		}
		return list[i].Name < list[j].Name
	})
	return list
}

// Count returns the number of loaded presets, including the built-in one.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.presets)
}

// loadFile parses a single preset file. A missing name defaults to the
// file name without its extension.
func loadFile(path string) (Preset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Preset{}, err
	}

	var p Preset
	if err := yaml.Unmarshal(data, &p); err != nil {
		return Preset{}, fmt.Errorf("parse preset: %w", err)
	}
	if p.Name == "" {
		p.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return p, nil
}

// resolveFiles expands glob patterns to preset files. Supports both
// single-level wildcards (*) and recursive wildcards (**). Only YAML
// files are returned; a pattern that matches nothing is not an error.
// The result is sorted so duplicate names resolve deterministically.
func resolveFiles(patterns []string) ([]string, error) {
	var files []string
	seen := make(map[string]bool)

	for _, pattern := range patterns {
		matches, err := doublestar.FilepathGlob(pattern)
		if err != nil {
			return nil, fmt.Errorf("resolve pattern %q: %w", pattern, err)
		}

		for _, match := range matches {
			info, err := os.Stat(match)
			if err != nil || info.IsDir() {
				continue
			}
			if ext := filepath.Ext(match); ext != ".yaml" && ext != ".yml" {
				continue
			}
			if !seen[match] {
				seen[match] = true
				files = append(files, match)
			}
		}
	}

	sort.Strings(files)
	return files, nil
}
