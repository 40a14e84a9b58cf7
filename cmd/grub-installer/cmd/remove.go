// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package cmd

import (
	"context"
	"fmt"

	"github.com/hashicorp/go-multierror"
	"github.com/spf13/cobra"

	"github.com/siderolabs/go-grubinstall/pkg/cli"
	"github.com/siderolabs/go-grubinstall/pkg/grubinstall"
	"github.com/siderolabs/go-grubinstall/pkg/grubinstall/platform"
)

var removeCmd = &cobra.Command{
	Use:   "remove <platform>...",
	Short: "Remove the boot payload of the given platforms",
	Long:  ``,
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return cli.WithContext(context.Background(), func(ctx context.Context) error {
			return runRemove(ctx, args)
		})
	},
}

func init() {
	rootCmd.AddCommand(removeCmd)
}

func runRemove(ctx context.Context, args []string) error {
	platforms := make([]platform.Type, 0, len(args))

	for _, name := range args {
		p, err := platform.Parse(name)
		if err != nil {
			return err
		}

		platforms = append(platforms, p)
	}

	target, err := openTarget(ctx, grubinstall.ModeReadWrite)
	if err != nil {
		return err
	}

	defer target.Close() //nolint:errcheck

	var result *multierror.Error

	for _, p := range platforms {
		if err = target.RemovePlatform(ctx, p); err != nil {
			result = multierror.Append(result, fmt.Errorf("error removing %s: %w", p, err))
		}
	}

	return result.ErrorOrNil()
}
