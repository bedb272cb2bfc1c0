// Copyright 2025 walteh LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"context"
	"os"

	"github.com/amiller-gh/hoist/cmd/hoist/commands"
	"github.com/amiller-gh/hoist/cmd/hoist/opts"
	"github.com/amiller-gh/hoist/pkg/config"
	"github.com/amiller-gh/hoist/pkg/log"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"gitlab.com/tozd/go/errors"
)

func addRootFlags(cmd *cobra.Command, o *opts.RootOpts) {
	cmd.PersistentFlags().BoolVarP(&o.Debug, "debug", "d", false, "enable debug logging and per-object output")
	cmd.PersistentFlags().StringVarP(&o.Bucket, "bucket", "b", "", "override the configured bucket")
	cmd.PersistentFlags().BoolVar(&o.Delete, "delete", false, "delete stale remote objects once their grace period has passed")
	cmd.PersistentFlags().IntVar(&o.Concurrency, "concurrency", 0, "number of upload lanes (default from config, else 12)")
	cmd.PersistentFlags().StringVar(&o.MetricsFile, "metrics-file", "", "write prometheus metrics to this textfile after the run")
}

func setupLogging(ctx context.Context, o *opts.RootOpts) context.Context {
	level := zerolog.InfoLevel
	if o.Debug {
		level = zerolog.DebugLevel
	}
	zlog := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger().Level(level)
	zerolog.DefaultContextLogger = &zlog

	console := log.NewWithZerolog(os.Stdout, zlog, o.Debug)
	return log.NewContext(zlog.WithContext(ctx), console)
}

func newRootCmd() *cobra.Command {
	o := &opts.RootOpts{}

	rootCmd := &cobra.Command{
		Use:   "hoist",
		Short: "Publish a static site to an object store",
		Long: `hoist uploads a local directory to a bucket as an immutable,
cache-friendly static site. Assets are renamed to their content hash,
references are rewritten, unchanged objects are skipped and stale objects are
deleted after a grace period.

Configuration is read from the nearest hoist.yaml, hoist.hcl, hoist.json or
gcloud.json above the published directory. Set ` + "`HOIST_EMULATE`" + ` to a URL to
publish into the local emulator instead.`,
		Version:       readBuild().short(),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			cmd.SetContext(setupLogging(cmd.Context(), o))
		},
	}

	addRootFlags(rootCmd, o)

	rootCmd.AddCommand(
		commands.NewDeployCmd(o),
		commands.NewUpCmd(o),
		commands.NewDownCmd(o),
		newVersionCmd(),
	)

	return rootCmd
}

// exitCode maps an error to the process exit status.
func exitCode(err error) int {
	if err == nil {
		return 0
	}
	if errors.Is(err, config.ErrConfigMissing) {
		return 2
	}
	return 1
}
