// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/siderolabs/go-grubinstall/pkg/cli"
	"github.com/siderolabs/go-grubinstall/pkg/grubinstall"
	"github.com/siderolabs/go-grubinstall/pkg/grubinstall/platform"
)

var installCmdFlags struct {
	allowFloppy bool
	rsCodes     bool
	assets      grubinstall.AssetRequest
}

var installCmd = &cobra.Command{
	Use:   "install <platform>...",
	Short: "Install the boot payload for the given platforms",
	Long:  ``,
	Args:  cobra.ArbitraryArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cli.WithContext(context.Background(), func(ctx context.Context) error {
			return runInstall(ctx, cmd, args)
		})
	},
}

func init() {
	installCmd.Flags().BoolVar(&installCmdFlags.allowFloppy, "allow-floppy", false, "Make the MBR boot code probe floppy drives")
	installCmd.Flags().BoolVar(&installCmdFlags.rsCodes, "rs-codes", false, "Reserve space for Reed-Solomon error correction")
	addAssetFlags(installCmd.Flags(), &installCmdFlags.assets)
	rootCmd.AddCommand(installCmd)
}

func runInstall(ctx context.Context, cmd *cobra.Command, args []string) error {
	platformNames := args
	if len(platformNames) == 0 {
		platformNames = profile.Platforms
	}

	if len(platformNames) == 0 {
		return errors.New("no platforms requested")
	}

	opts := grubinstall.InstallOptions{
		AllowFloppy: installCmdFlags.allowFloppy,
		RSCodes:     installCmdFlags.rsCodes,
	}

	if !cmd.Flags().Changed("allow-floppy") {
		opts.AllowFloppy = profile.AllowFloppyEnabled()
	}

	if !cmd.Flags().Changed("rs-codes") {
		opts.RSCodes = profile.RSCodesEnabled()
	}

	assets := installCmdFlags.assets

	if len(assets.Locales) == 0 {
		assets.Locales = profile.Locales
	}

	if len(assets.Fonts) == 0 {
		assets.Fonts = profile.Fonts
	}

	if len(assets.Themes) == 0 {
		assets.Themes = profile.Themes
	}

	platforms := make([]platform.Type, 0, len(platformNames))

	for _, name := range platformNames {
		p, err := platform.Parse(name)
		if err != nil {
			return err
		}

		platforms = append(platforms, p)
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

	for _, p := range platforms {
		if err = target.InstallPlatform(ctx, p, src, opts); err != nil {
			return fmt.Errorf("error installing %s: %w", p, err)
		}
	}

	if len(assets.Locales)+len(assets.Fonts)+len(assets.Themes) > 0 {
		if err = target.InstallData(src, assets); err != nil {
			return err
		}
	}

	return target.TouchEnvFile()
}
