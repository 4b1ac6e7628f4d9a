// Copyright 2025 The flareprox Authors. All rights reserved.
// Use of this source code is governed by a MPL
// license that can be found in the LICENSE file.

// Package cobrautil layers environment variables and a config file under
// cobra command flags.
package cobrautil

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

var envReplacer = strings.NewReplacer(".", "_", "-", "_") //nolint:gochecknoglobals // stateless

// BindAll updates the command flags with values from environment
// variables and the config file named by the configFileFlagName flag.
// The precedence order is: command flags, environment variables, config
// file, default values. The config file format is determined by the
// file extension, YAML is assumed when there is none.
func BindAll(cmd *cobra.Command, envPrefix, configFileFlagName string) error {
	v := viper.New()

	for _, fs := range []*pflag.FlagSet{cmd.PersistentFlags(), cmd.Flags()} {
		if err := v.BindPFlags(fs); err != nil {
			return err
		}
	}

	v.SetEnvKeyReplacer(envReplacer)
	v.SetEnvPrefix(envReplacer.Replace(strings.ToUpper(envPrefix)))
	v.AutomaticEnv()

	if configFileFlagName != "" {
		if f := v.GetString(configFileFlagName); f != "" {
			v.SetConfigType("yaml")
			v.SetConfigFile(f)
			if err := v.ReadInConfig(); err != nil {
				return fmt.Errorf("read config file: %w", err)
			}
		}
	}

	for _, fs := range []*pflag.FlagSet{cmd.PersistentFlags(), cmd.Flags()} {
		if err := updateFlagSet(fs, v); err != nil {
			return err
		}
	}

	return nil
}

// updateFlagSet overwrites flags the user did not set on the command
// line with values viper resolved from the lower-precedence sources.
func updateFlagSet(fs *pflag.FlagSet, v *viper.Viper) error {
	var errs []string
	fs.VisitAll(func(f *pflag.Flag) {
		if f.Changed || !v.IsSet(f.Name) {
			return
		}
		if err := fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name))); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %s", f.Name, err))
		}
	})
	if len(errs) > 0 {
		return fmt.Errorf("set flags: %s", strings.Join(errs, "; "))
	}
	return nil
}
