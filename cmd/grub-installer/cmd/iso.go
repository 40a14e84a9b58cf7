// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package cmd

import (
	"context"

	"github.com/siderolabs/gen/xslices"
	"github.com/spf13/cobra"

	"github.com/siderolabs/go-grubinstall/pkg/cli"
	"github.com/siderolabs/go-grubinstall/pkg/grubinstall"
	"github.com/siderolabs/go-grubinstall/pkg/grubinstall/iso"
	"github.com/siderolabs/go-grubinstall/pkg/grubinstall/platform"
)

var isoCmdFlags struct {
	output string
	label  string
}

var isoCmd = &cobra.Command{
	Use:   "iso",
	Short: "Pack the boot directory into an ISO9660 image",
	Long:  ``,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cli.WithContext(context.Background(), func(ctx context.Context) error {
			return runISO(ctx)
		})
	},
}

func init() {
	isoCmd.Flags().StringVar(&isoCmdFlags.output, "output", "grub.iso", "The path of the ISO image to write")
	isoCmd.Flags().StringVar(&isoCmdFlags.label, "label", "", "The volume label; derived from the installed platforms when empty")
	rootCmd.AddCommand(isoCmd)
}

func runISO(ctx context.Context) error {
	target, err := openTarget(ctx, grubinstall.ModeRead)
	if err != nil {
		return err
	}

	defer target.Close() //nolint:errcheck

	label := isoCmdFlags.label
	if label == "" {
		parts := append(
			[]string{"grub"},
			xslices.Map(target.Platforms(), func(p platform.Type) string { return string(p) })...,
		)

		label = iso.VolumeLabel(parts...)
	} else {
		label = iso.VolumeLabel(label)
	}

	return iso.Create(target.BootDir(), isoCmdFlags.output, label, newLogger().Sugar().Infof)
}
