// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package cmd implements the grub-installer commands.
package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/siderolabs/go-grubinstall/pkg/grubinstall"
	"github.com/siderolabs/go-grubinstall/pkg/grubinstall/source"
	"github.com/siderolabs/go-grubinstall/pkg/logging"
)

var rootCmdFlags struct {
	config     string
	bootDir    string
	device     string
	source     string
	mkimage    string
	localeRoot string
	fontRoot   string
	themeRoot  string
	verbose    bool
}

// profile holds the configuration loaded from --config; the zero value is in
// effect when no profile was given.
var profile Profile

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:          "grub-installer",
	Short:        "Install, verify and remove GRUB boot payloads.",
	Long:         ``,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if rootCmdFlags.config == "" {
			return nil
		}

		prof, err := loadProfile(rootCmdFlags.config)
		if err != nil {
			return err
		}

		profile = *prof

		applyProfileDefaults(cmd)

		return nil
	},
}

// applyProfileDefaults overlays the loaded profile onto the persistent flags
// which were left at their defaults.
func applyProfileDefaults(cmd *cobra.Command) {
	flags := cmd.Flags()

	if !flags.Changed("boot-dir") && profile.BootDir != "" {
		rootCmdFlags.bootDir = profile.BootDir
	}

	if !flags.Changed("device") && profile.Device != "" {
		rootCmdFlags.device = profile.Device
	}

	if !flags.Changed("source") && profile.Source != "" {
		rootCmdFlags.source = profile.Source
	}

	if !flags.Changed("mkimage") && profile.Mkimage != "" {
		rootCmdFlags.mkimage = profile.Mkimage
	}
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&rootCmdFlags.config, "config", "", "Load defaults from a YAML configuration profile (\"-\" for stdin)")
	rootCmd.PersistentFlags().StringVar(&rootCmdFlags.bootDir, "boot-dir", "/boot", "The boot directory holding (or receiving) the payload")
	rootCmd.PersistentFlags().StringVar(&rootCmdFlags.device, "device", "", "The whole disk backing the boot directory; when empty the boot directory is treated as a staging directory")
	rootCmd.PersistentFlags().StringVar(&rootCmdFlags.source, "source", "", "Override the directory holding the per-platform payloads")
	rootCmd.PersistentFlags().StringVar(&rootCmdFlags.mkimage, "mkimage", "", "Override the core image builder binary")
	rootCmd.PersistentFlags().StringVar(&rootCmdFlags.localeRoot, "locale-root", "", "Override the directory holding message catalogs")
	rootCmd.PersistentFlags().StringVar(&rootCmdFlags.fontRoot, "font-root", "", "Override the directory holding fonts")
	rootCmd.PersistentFlags().StringVar(&rootCmdFlags.themeRoot, "theme-root", "", "Override the directory holding themes")
	rootCmd.PersistentFlags().BoolVar(&rootCmdFlags.verbose, "verbose", false, "Enable debug logging")
}

// newLogger builds the console logger the commands report progress through.
func newLogger() *zap.Logger {
	level := zapcore.InfoLevel
	if rootCmdFlags.verbose {
		level = zapcore.DebugLevel
	}

	return logging.ZapLogger(
		logging.NewLogDestination(os.Stderr, level, logging.WithoutTimestamp(), logging.WithColoredLevels()),
	)
}

// openTarget opens the boot directory selected by the persistent flags.
func openTarget(ctx context.Context, mode grubinstall.AccessMode) (*grubinstall.Target, error) {
	printf := newLogger().Sugar().Infof

	if rootCmdFlags.device != "" {
		return grubinstall.NewMountedDevice(ctx, rootCmdFlags.bootDir, rootCmdFlags.device, mode, grubinstall.WithPrintf(printf))
	}

	return grubinstall.NewStagingDir(ctx, rootCmdFlags.bootDir, mode, grubinstall.WithPrintf(printf))
}

// newSource builds the payload source selected by the persistent flags.
func newSource() (*source.HostSource, error) {
	var opts []source.HostOption

	if rootCmdFlags.source != "" {
		opts = append(opts, source.WithPlatformRoot(rootCmdFlags.source))
	}

	if rootCmdFlags.mkimage != "" {
		opts = append(opts, source.WithMkimage(rootCmdFlags.mkimage))
	}

	if rootCmdFlags.localeRoot != "" {
		opts = append(opts, source.WithLocaleRoot(rootCmdFlags.localeRoot))
	}

	if rootCmdFlags.fontRoot != "" {
		opts = append(opts, source.WithFontRoot(rootCmdFlags.fontRoot))
	}

	if rootCmdFlags.themeRoot != "" {
		opts = append(opts, source.WithThemeRoot(rootCmdFlags.themeRoot))
	}

	return source.NewHostSource(opts...)
}
