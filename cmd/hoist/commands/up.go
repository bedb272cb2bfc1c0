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

package commands

import (
	"github.com/amiller-gh/hoist/cmd/hoist/opts"
	"github.com/spf13/cobra"
	"gitlab.com/tozd/go/errors"
)

// NewUpCmd creates the up command
func NewUpCmd(o *opts.RootOpts) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "up [dir] [subdir]",
		Short: "Deploy and make the bucket publicly readable",
		Args:  cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			t, err := parseTarget(args)
			if err != nil {
				return err
			}

			op, finish, err := newOperator(ctx, o, t)
			if err != nil {
				return err
			}
			report, err := op.Up(ctx)
			finish()
			if err != nil {
				return errors.Errorf("bringing up %s: %w", t.Root, err)
			}
			if report.Errored > 0 {
				return errors.Errorf("%d objects failed to publish", report.Errored)
			}
			return nil
		},
	}

	return cmd
}
