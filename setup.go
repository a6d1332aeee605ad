// SPDX-FileCopyrightText: 2025 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/xmidt-org/arrange"
	"github.com/xmidt-org/sallust"
	"go.uber.org/zap"
)

type bootFlags struct {
	configFile string
	debug      bool
}

func parseFlags(args []string) (bootFlags, error) {
	fs := pflag.NewFlagSet(applicationName, pflag.ContinueOnError)
	file := fs.StringP("file", "f", "", "the configuration file to use.  Overrides the search path.")
	debug := fs.BoolP("debug", "d", false, "enables debug logging.  Overrides configuration.")
	version := fs.BoolP("version", "v", false, "print version and exit")

	if err := fs.Parse(args); err != nil {
		return bootFlags{}, err
	}
	if *version {
		printVersionInfo()
	}
	return bootFlags{configFile: *file, debug: *debug}, nil
}

// loadConfig reads the configuration, either from the file named on the
// command line or from the usual search path.
func loadConfig(flags bootFlags) (*viper.Viper, error) {
	v := viper.New()
	if len(flags.configFile) > 0 {
		v.SetConfigFile(flags.configFile)
	} else {
		v.SetConfigName(applicationName)
		for _, path := range []string{
			fmt.Sprintf("/etc/%s", applicationName),
			fmt.Sprintf("$HOME/.%s", applicationName),
			".",
		} {
			v.AddConfigPath(path)
		}
	}
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if flags.debug {
		v.Set("logging.level", "DEBUG")
	}
	return v, nil
}

func buildLogger(v *viper.Viper) (*zap.Logger, error) {
	var c sallust.Config
	if err := v.UnmarshalKey("logging", &c, arrange.ComposeDecodeHooks(sallust.DecodeHook)); err != nil {
		return nil, err
	}
	return c.Build()
}

func setup(args []string) (*viper.Viper, *zap.Logger, error) {
	flags, err := parseFlags(args)
	if err != nil {
		return nil, nil, err
	}
	v, err := loadConfig(flags)
	if err != nil {
		return nil, nil, err
	}
	l, err := buildLogger(v)
	return v, l, err
}

func printVersionInfo() {
	fmt.Fprintf(os.Stdout, "%s:\n", applicationName)
	fmt.Fprintf(os.Stdout, "  version: \t%s\n", Version)
	fmt.Fprintf(os.Stdout, "  go version: \t%s\n", runtime.Version())
	fmt.Fprintf(os.Stdout, "  built time: \t%s\n", BuildTime)
	fmt.Fprintf(os.Stdout, "  git commit: \t%s\n", GitCommit)
	fmt.Fprintf(os.Stdout, "  os/arch: \t%s/%s\n", runtime.GOOS, runtime.GOARCH)
	os.Exit(0)
}
