// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package cmd

import (
	"context"
	"errors"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/siderolabs/go-grubinstall/pkg/cli"
	"github.com/siderolabs/go-grubinstall/pkg/grubinstall"
)

var dataCmd = &cobra.Command{
	Use:   "data",
	Short: "Manage optional boot-time assets (message catalogs, fonts, themes)",
	Long:  ``,
}

var dataInstallCmdFlags grubinstall.AssetRequest

var dataInstallCmd = &cobra.Command{
	Use:   "install",
	Short: "Install the selected assets into the grub tree",
	Long:  ``,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cli.WithContext(context.Background(), func(ctx context.Context) error {
			if err := checkAssetSelection(dataInstallCmdFlags); err != nil {
				return err
			}

			src, err := newSource()
			if err != nil {
				return err
			}

			target, err := openTarget(ctx, grubinstall.ModeReadWrite)
			if err != nil {
				return err
			}

			defer target.Close() //nolint:errcheck

			return target.InstallData(src, dataInstallCmdFlags)
		})
	},
}

var dataRemoveCmdFlags grubinstall.AssetRequest

var dataRemoveCmd = &cobra.Command{
	Use:   "remove",
	Short: "Remove the selected assets from the grub tree",
	Long:  ``,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cli.WithContext(context.Background(), func(ctx context.Context) error {
			if err := checkAssetSelection(dataRemoveCmdFlags); err != nil {
				return err
			}

			target, err := openTarget(ctx, grubinstall.ModeReadWrite)
			if err != nil {
				return err
			}

			defer target.Close() //nolint:errcheck

			return target.RemoveData(dataRemoveCmdFlags)
		})
	},
}

func init() {
	addAssetFlags(dataInstallCmd.Flags(), &dataInstallCmdFlags)
	addAssetFlags(dataRemoveCmd.Flags(), &dataRemoveCmdFlags)
	dataCmd.AddCommand(dataInstallCmd)
	dataCmd.AddCommand(dataRemoveCmd)
	rootCmd.AddCommand(dataCmd)
}

// addAssetFlags registers the asset selection flags shared by the commands
// touching optional boot-time data.
func addAssetFlags(flags *pflag.FlagSet, req *grubinstall.AssetRequest) {
	flags.StringSliceVar(&req.Locales, "locale", nil, "Message catalog language to include (\"*\" selects all available)")
	flags.StringSliceVar(&req.Fonts, "font", nil, "Font to include (\"*\" selects all available)")
	flags.StringSliceVar(&req.Themes, "theme", nil, "Theme to include (\"*\" selects all available)")
}

func checkAssetSelection(req grubinstall.AssetRequest) error {
	if len(req.Locales)+len(req.Fonts)+len(req.Themes) == 0 {
		return errors.New("no assets selected, pass --locale, --font or --theme")
	}

	return nil
}
