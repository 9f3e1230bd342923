package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"mirvm/internal/config"
	"mirvm/internal/driver"
	"mirvm/internal/layout"
	"mirvm/internal/machine"
)

// loadSettings reads mirvm.toml and applies the global flag overrides.
func loadSettings(cmd *cobra.Command) (config.Settings, error) {
	flags := cmd.Root().PersistentFlags()

	path, err := flags.GetString("config")
	if err != nil {
		return config.Settings{}, err
	}
	var s config.Settings
	if path != "" {
		s, err = config.Load(path)
	} else {
		s, err = config.Discover(".")
	}
	if err != nil {
		return config.Settings{}, err
	}

	if flags.Changed("machine") {
		name, _ := flags.GetString("machine")
		p, err := machine.ParsePersonality(name)
		if err != nil {
			return config.Settings{}, fmt.Errorf("--machine: %w", err)
		}
		s.Personality = p
	}
	if flags.Changed("target") {
		triple, _ := flags.GetString("target")
		t, err := layout.TargetByTriple(triple)
		if err != nil {
			return config.Settings{}, fmt.Errorf("--target: %w", err)
		}
		s.Target = t
	}
	if steps, _ := flags.GetUint64("steps"); steps > 0 {
		s.Steps = steps
	}
	if timeout, _ := flags.GetDuration("timeout"); timeout > 0 {
		s.Timeout = timeout
	}
	return s, nil
}

func loadOptions(cmd *cobra.Command) (config.Settings, driver.Options, error) {
	s, err := loadSettings(cmd)
	if err != nil {
		return config.Settings{}, driver.Options{}, err
	}
	return s, driver.OptionsFrom(s), nil
}

func boolFlag(cmd *cobra.Command, name string) bool {
	v, err := cmd.Root().PersistentFlags().GetBool(name)
	return err == nil && v
}
