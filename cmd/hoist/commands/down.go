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

// NewDownCmd creates the down command
func NewDownCmd(o *opts.RootOpts) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "down [dir]",
		Short: "Make the bucket private again",
		Long: `Down revokes public read access on the bucket configured for dir.
Objects are left in place; run up to publish them again.`,
		Args: cobra.MaximumNArgs(1),
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
			defer finish()

			if err := op.Down(ctx); err != nil {
				return errors.Errorf("taking down %s: %w", t.Root, err)
			}
			return nil
		},
	}

	return cmd
}
