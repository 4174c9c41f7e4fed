// Package script runs ownership scenarios described in YAML against
// sharedptr and uniqueptr, recording how counts and values evolve.
package script

import (
	"embed"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"sort"

	"gopkg.in/yaml.v3"
)

//go:embed scenarios/*.yaml
var builtin embed.FS

// Scenario is one named sequence of steps.
type Scenario struct {
	Name  string `yaml:"name"`
	Steps []Step `yaml:"steps"`
}

// Step is a single operation. Which fields apply depends on Op:
//
//	make    kind name value     allocate a fresh owner (reassigns name if taken)
//	adopt   kind name [value]   wrap an existing value, or nothing when value is omitted
//	clone   from name           share from's value (shared only)
//	move    from name           transfer from's value, leaving from empty
//	reset   name [value]        replace name's value, or empty it
//	release name                detach the value from a unique owner
//	free    name                destroy a value previously detached with release
//	swap    name with           exchange two owners' values
//	drop    name                close the owner and forget it
//	expect  name ...            check valid, count, unique, value, released
type Step struct {
	Op    string `yaml:"op"`
	Kind  string `yaml:"kind,omitempty"`
	Name  string `yaml:"name,omitempty"`
	From  string `yaml:"from,omitempty"`
	With  string `yaml:"with,omitempty"`
	Value *int   `yaml:"value,omitempty"`

	Valid    *bool `yaml:"valid,omitempty"`
	Count    *int  `yaml:"count,omitempty"`
	Unique   *bool `yaml:"unique,omitempty"`
	Released *int  `yaml:"released,omitempty"`
}

var ErrEmptyScenario = errors.New("scenario has no steps")

// Decode reads every YAML document in r as a Scenario.
func Decode(r io.Reader) ([]Scenario, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var out []Scenario
	for {
		var sc Scenario
		err := dec.Decode(&sc)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("decode scenario %d: %w", len(out)+1, err)
		}
		if len(sc.Steps) == 0 {
			return nil, fmt.Errorf("scenario %q: %w", sc.Name, ErrEmptyScenario)
		}
		out = append(out, sc)
	}
	return out, nil
}

func Load(file string) ([]Scenario, error) {
	f, err := os.Open(file)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	scs, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", file, err)
	}
	return scs, nil
}

// Builtins returns the scenarios shipped with the binary, sorted by file name.
func Builtins() ([]Scenario, error) {
	names, err := fs.Glob(builtin, "scenarios/*.yaml")
	if err != nil {
		return nil, err
	}
	sort.Strings(names)
	var out []Scenario
	for _, name := range names {
		f, err := builtin.Open(name)
		if err != nil {
			return nil, err
		}
		scs, err := Decode(f)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path.Base(name), err)
		}
		out = append(out, scs...)
	}
	return out, nil
}
