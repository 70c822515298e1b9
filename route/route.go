// Package route manages hardware audio routing as named mixer paths.
//
// A path is an ordered list of control settings ("speaker",
// "builtin-mic", ...). Callers stage paths with Reset and ApplyPath and
// push the accumulated state to the hardware with Commit; controls not
// covered by any applied path fall back to the defaults captured when
// the table was loaded.
package route

import (
	"fmt"
	"sort"

	"github.com/spf13/viper"
)

// Controls is the mixer surface a routing table drives. It is
// implemented by *Mixer and by test fakes.
type Controls interface {
	SetInt(name string, value int) error
	SetEnum(name string, item string) error
	Int(name string) (int, error)
	Enum(name string) (string, error)
}

// Setting is one control assignment within a path. Enum settings carry
// the item name; everything else is an integer (booleans are 0/1).
type Setting struct {
	Ctl   string `mapstructure:"ctl"`
	Value int    `mapstructure:"value"`
	Enum  string `mapstructure:"enum"`
}

// Table holds the named paths and tracks the staged and applied state
// of every control the paths touch.
type Table struct {
	ctls     Controls
	paths    map[string][]Setting
	defaults map[string]Setting
	staged   map[string]Setting
	applied  map[string]Setting
}

// Load reads a path table from a YAML file and snapshots the current
// hardware values of every referenced control as the defaults.
//
// File format:
//
//	paths:
//	  speaker:
//	    - ctl: "HF Left Playback"
//	      enum: "HF DAC"
//	    - ctl: "HF Playback Volume"
//	      value: 26
func Load(file string, ctls Controls) (*Table, error) {
	v := viper.New()
	v.SetConfigFile(file)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("route: read %s: %w", file, err)
	}

	var paths map[string][]Setting
	if err := v.UnmarshalKey("paths", &paths); err != nil {
		return nil, fmt.Errorf("route: parse %s: %w", file, err)
	}

	return New(paths, ctls)
}

// New builds a table from an already-parsed path set. The current value
// of every referenced control is read once and kept as its default.
func New(paths map[string][]Setting, ctls Controls) (*Table, error) {
	t := &Table{
		ctls:     ctls,
		paths:    paths,
		defaults: make(map[string]Setting),
		staged:   make(map[string]Setting),
		applied:  make(map[string]Setting),
	}

	for name, settings := range paths {
		for _, s := range settings {
			if s.Ctl == "" {
				return nil, fmt.Errorf("route: path %q has a setting without a ctl name", name)
			}

			if _, ok := t.defaults[s.Ctl]; ok {
				continue
			}

			def := Setting{Ctl: s.Ctl}
			if s.Enum != "" {
				item, err := ctls.Enum(s.Ctl)
				if err != nil {
					return nil, fmt.Errorf("route: snapshot %q: %w", s.Ctl, err)
				}
				def.Enum = item
			} else {
				val, err := ctls.Int(s.Ctl)
				if err != nil {
					return nil, fmt.Errorf("route: snapshot %q: %w", s.Ctl, err)
				}
				def.Value = val
			}

			t.defaults[s.Ctl] = def
		}
	}

	t.Reset()

	return t, nil
}

// Paths returns the sorted names of all defined paths.
func (t *Table) Paths() []string {
	names := make([]string, 0, len(t.paths))
	for name := range t.paths {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}

// HasPath reports whether the table defines the named path.
func (t *Table) HasPath(name string) bool {
	_, ok := t.paths[name]

	return ok
}

// Reset stages the default value for every control known to the table.
// Nothing is written until Commit.
func (t *Table) Reset() {
	for name, def := range t.defaults {
		t.staged[name] = def
	}
}

// ApplyPath stages the settings of the named path on top of whatever is
// already staged. Applying the same path twice is idempotent.
func (t *Table) ApplyPath(name string) error {
	settings, ok := t.paths[name]
	if !ok {
		return fmt.Errorf("route: unknown path %q", name)
	}

	for _, s := range settings {
		t.staged[s.Ctl] = s
	}

	log.Tracef("route: staged path %q (%d settings)", name, len(settings))

	return nil
}

// Commit writes every staged control whose value differs from the last
// committed one. Controls are written in name order so failures are
// reproducible.
func (t *Table) Commit() error {
	names := make([]string, 0, len(t.staged))
	for name := range t.staged {
		names = append(names, name)
	}

	sort.Strings(names)

	for _, name := range names {
		s := t.staged[name]
		if prev, ok := t.applied[name]; ok && prev == s {
			continue
		}

		var err error
		if s.Enum != "" {
			err = t.ctls.SetEnum(s.Ctl, s.Enum)
		} else {
			err = t.ctls.SetInt(s.Ctl, s.Value)
		}

		if err != nil {
			return fmt.Errorf("route: commit %q: %w", name, err)
		}

		t.applied[name] = s
	}

	return nil
}
