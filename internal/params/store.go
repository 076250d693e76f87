// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package params

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/jeranaias/thinkchat/internal/ollama"
	"github.com/jeranaias/thinkchat/internal/util"
)

// ErrNoModel is returned when an operation needs a model name and got "".
var ErrNoModel = errors.New("no model defined")

// Store reads and writes parameter files in one directory.
type Store struct {
	dir string
	mu  sync.Mutex
}

// NewStore opens the store at dir, creating the directory if needed.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create params dir: %w", err)
	}
	return &Store{dir: dir}, nil
}

// Dir returns the directory holding the parameter files.
func (s *Store) Dir() string {
	return s.dir
}

// Path returns the parameter file used for model.
func (s *Store) Path(model string) string {
	return filepath.Join(s.dir, ModelKey(model)+".json")
}

// Defaults returns the stored parameters for model. When no file exists the
// built-in defaults are written and returned.
func (s *Store) Defaults(model string) (Params, error) {
	if model == "" {
		return Params{}, ErrNoModel
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	p, err := s.read(model)
	if errors.Is(err, fs.ErrNotExist) {
		p = Builtin()
		return p, s.write(model, p)
	}
	return p, err
}

// Update replaces the stored options for model, keeping its icon. It
// reports false without touching disk when model is empty.
func (s *Store) Update(model string, opts ollama.Options) (bool, error) {
	if model == "" {
		return false, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	icon := DefaultIcon
	existing, err := s.read(model)
	switch {
	case err == nil:
		icon = existing.Icon
	case !errors.Is(err, fs.ErrNotExist):
		return false, err
	}

	if err := s.write(model, Params{Options: opts, Icon: icon}); err != nil {
		return false, err
	}
	return true, nil
}

// SetIcon changes the avatar stored for model.
func (s *Store) SetIcon(model, icon string) error {
	p, err := s.Defaults(model)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	p.Icon = icon
	return s.write(model, p)
}

// Reset restores the built-in options for model, keeping its icon.
func (s *Store) Reset(model string) (Params, error) {
	p := Builtin()
	if _, err := s.Update(model, p.Options); err != nil {
		return Params{}, err
	}
	return s.Defaults(model)
}

// Keys lists the model keys that have a parameter file.
func (s *Store) Keys() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, err
	}

	var keys []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		keys = append(keys, strings.TrimSuffix(name, ".json"))
	}
	sort.Strings(keys)
	return keys, nil
}

func (s *Store) read(model string) (Params, error) {
	data, err := os.ReadFile(s.Path(model))
	if err != nil {
		return Params{}, err
	}

	var p Params
	if err := json.Unmarshal(data, &p); err != nil {
		return Params{}, fmt.Errorf("parse %s: %w", s.Path(model), err)
	}
	if p.Icon == "" {
		p.Icon = DefaultIcon
	}
	return p, nil
}

func (s *Store) write(model string, p Params) error {
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return err
	}
	return util.AtomicWriteFile(s.Path(model), data, 0644)
}
