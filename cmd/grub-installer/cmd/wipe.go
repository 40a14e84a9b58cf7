// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package cmd

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"github.com/siderolabs/go-grubinstall/pkg/cli"
	"github.com/siderolabs/go-grubinstall/pkg/grubinstall"
)

var wipeCmdFlags struct {
	force bool
}

var wipeCmd = &cobra.Command{
	Use:   "wipe",
	Short: "Remove every installed platform, stray EFI loaders and the whole grub tree",
	Long:  ``,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cli.WithContext(context.Background(), func(ctx context.Context) error {
			if !wipeCmdFlags.force {
				return errors.New("wipe removes the whole grub tree, pass --force to confirm")
			}

			target, err := openTarget(ctx, grubinstall.ModeReadWrite)
			if err != nil {
				return err
			}

			defer target.Close() //nolint:errcheck

			return target.RemoveAll(ctx)
		})
	},
}

func init() {
	wipeCmd.Flags().BoolVar(&wipeCmdFlags.force, "force", false, "Confirm the teardown")
	rootCmd.AddCommand(wipeCmd)
}
