// Package config finds and decodes mirvm.toml.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"mirvm/internal/layout"
	"mirvm/internal/machine"
	"mirvm/internal/trace"
)

// FileName is the name searched for in the working directory and its parents.
const FileName = "mirvm.toml"

// File mirrors the TOML document.
type File struct {
	Target  TargetSection  `toml:"target"`
	Machine MachineSection `toml:"machine"`
	Limits  LimitsSection  `toml:"limits"`
	Trace   TraceSection   `toml:"trace"`
}

type TargetSection struct {
	Triple string `toml:"triple"`
}

type MachineSection struct {
	Personality string `toml:"personality"`
	UBChecks    *bool  `toml:"ub_checks"`
}

type LimitsSection struct {
	Steps          uint64 `toml:"steps"`
	ConstEvalSteps uint64 `toml:"const_eval_steps"`
	Terminators    uint64 `toml:"terminators"`
	Timeout        string `toml:"timeout"`
	Jobs           int    `toml:"jobs"`
}

type TraceSection struct {
	Level string `toml:"level"`
}

// Settings is the validated configuration used by the driver and the CLI.
type Settings struct {
	Path string // empty when no file was found

	Target      layout.Target
	Personality machine.Personality
	UBChecks    bool
	Machine     machine.Config
	Steps       uint64
	Timeout     time.Duration
	Jobs        int
	TraceLevel  trace.Level
}

// Default returns the settings used without a mirvm.toml.
func Default() Settings {
	return Settings{
		Target:      layout.X86_64LinuxGNU(),
		Personality: machine.PersonalityConstEval,
		UBChecks:    true,
		Machine:     machine.Config{ConstEvalSteps: 2_000_000},
		Steps:       10_000_000,
		Jobs:        4,
		TraceLevel:  trace.LevelOff,
	}
}

// Find walks from startDir up to the filesystem root looking for FileName.
func Find(startDir string) (string, bool, error) {
	if startDir == "" {
		startDir = "."
	}
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", false, fmt.Errorf("failed to resolve start directory: %w", err)
	}
	for {
		candidate := filepath.Join(dir, FileName)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, true, nil
		} else if !errors.Is(err, os.ErrNotExist) {
			return "", false, fmt.Errorf("failed to stat %q: %w", candidate, err)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", false, nil
}

// Discover loads the nearest mirvm.toml, or returns Default when none exists.
func Discover(startDir string) (Settings, error) {
	path, ok, err := Find(startDir)
	if err != nil {
		return Settings{}, err
	}
	if !ok {
		return Default(), nil
	}
	return Load(path)
}

// Load decodes and validates the file at path.
func Load(path string) (Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Settings{}, err
	}
	s, err := Parse(string(data))
	if err != nil {
		return Settings{}, fmt.Errorf("%s: %w", path, err)
	}
	s.Path = path
	return s, nil
}

// Parse decodes a TOML document over Default. Keys absent from the document
// keep their default values.
func Parse(doc string) (Settings, error) {
	var f File
	meta, err := toml.Decode(doc, &f)
	if err != nil {
		return Settings{}, fmt.Errorf("failed to parse TOML: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return Settings{}, fmt.Errorf("unknown keys: %s", strings.Join(keys, ", "))
	}

	s := Default()
	var errs []error
	if meta.IsDefined("target", "triple") {
		t, err := layout.TargetByTriple(strings.TrimSpace(f.Target.Triple))
		if err != nil {
			errs = append(errs, fmt.Errorf("[target].triple: %w", err))
		}
		s.Target = t
	}
	if meta.IsDefined("machine", "personality") {
		p, err := machine.ParsePersonality(f.Machine.Personality)
		if err != nil {
			errs = append(errs, fmt.Errorf("[machine].personality: %w", err))
		}
		s.Personality = p
	}
	if f.Machine.UBChecks != nil {
		s.UBChecks = *f.Machine.UBChecks
	}
	if meta.IsDefined("limits", "steps") {
		s.Steps = f.Limits.Steps
	}
	if meta.IsDefined("limits", "const_eval_steps") {
		s.Machine.ConstEvalSteps = f.Limits.ConstEvalSteps
	}
	if meta.IsDefined("limits", "terminators") {
		s.Machine.Terminators = f.Limits.Terminators
	}
	if meta.IsDefined("limits", "timeout") {
		d, err := time.ParseDuration(strings.TrimSpace(f.Limits.Timeout))
		switch {
		case err != nil:
			errs = append(errs, fmt.Errorf("[limits].timeout: %w", err))
		case d < 0:
			errs = append(errs, fmt.Errorf("[limits].timeout: negative duration %s", d))
		}
		s.Timeout = d
	}
	if meta.IsDefined("limits", "jobs") {
		if f.Limits.Jobs < 1 {
			errs = append(errs, fmt.Errorf("[limits].jobs: must be at least 1, got %d", f.Limits.Jobs))
		}
		s.Jobs = f.Limits.Jobs
	}
	if meta.IsDefined("trace", "level") {
		l, err := trace.ParseLevel(f.Trace.Level)
		if err != nil {
			errs = append(errs, fmt.Errorf("[trace].level: %w", err))
		}
		s.TraceLevel = l
	}
	if err := errors.Join(errs...); err != nil {
		return Settings{}, err
	}
	return s, nil
}
