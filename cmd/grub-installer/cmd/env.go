// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/siderolabs/go-grubinstall/pkg/cli"
	"github.com/siderolabs/go-grubinstall/pkg/grubinstall"
	"github.com/siderolabs/go-grubinstall/pkg/grubinstall/envblock"
)

var envCmd = &cobra.Command{
	Use:   "env",
	Short: "Manage the GRUB environment block",
	Long:  ``,
}

var envCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create an empty environment block if none exists",
	Long:  ``,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cli.WithContext(context.Background(), func(ctx context.Context) error {
			target, err := openTarget(ctx, grubinstall.ModeReadWrite)
			if err != nil {
				return err
			}

			defer target.Close() //nolint:errcheck

			return target.TouchEnvFile()
		})
	},
}

var envListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the environment block variables",
	Long:  ``,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cli.WithContext(context.Background(), func(ctx context.Context) error {
			target, err := openTarget(ctx, grubinstall.ModeRead)
			if err != nil {
				return err
			}

			defer target.Close() //nolint:errcheck

			blk, err := target.ReadEnv()
			if err != nil {
				return err
			}

			for _, name := range blk.Names() {
				fmt.Printf("%s=%s\n", name, blk.Get(name).ValueOrZero())
			}

			return nil
		})
	},
}

var envGetCmd = &cobra.Command{
	Use:   "get <name>",
	Short: "Print the value of one environment block variable",
	Long:  ``,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return cli.WithContext(context.Background(), func(ctx context.Context) error {
			target, err := openTarget(ctx, grubinstall.ModeRead)
			if err != nil {
				return err
			}

			defer target.Close() //nolint:errcheck

			blk, err := target.ReadEnv()
			if err != nil {
				return err
			}

			value, ok := blk.Get(args[0]).Get()
			if !ok {
				return fmt.Errorf("variable %q is not set", args[0])
			}

			fmt.Println(value)

			return nil
		})
	},
}

var envSetCmd = &cobra.Command{
	Use:   "set <name> <value>",
	Short: "Set one environment block variable",
	Long:  ``,
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return cli.WithContext(context.Background(), func(ctx context.Context) error {
			return updateEnv(ctx, func(blk *envblock.Block) error {
				return blk.Set(args[0], args[1])
			})
		})
	},
}

var envUnsetCmd = &cobra.Command{
	Use:   "unset <name>",
	Short: "Delete one environment block variable",
	Long:  ``,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return cli.WithContext(context.Background(), func(ctx context.Context) error {
			return updateEnv(ctx, func(blk *envblock.Block) error {
				blk.Delete(args[0])

				return nil
			})
		})
	},
}

var envRemoveCmd = &cobra.Command{
	Use:   "remove",
	Short: "Delete the environment block file",
	Long:  ``,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cli.WithContext(context.Background(), func(ctx context.Context) error {
			target, err := openTarget(ctx, grubinstall.ModeReadWrite)
			if err != nil {
				return err
			}

			defer target.Close() //nolint:errcheck

			return target.RemoveEnvFile()
		})
	},
}

func init() {
	envCmd.AddCommand(envCreateCmd)
	envCmd.AddCommand(envListCmd)
	envCmd.AddCommand(envGetCmd)
	envCmd.AddCommand(envSetCmd)
	envCmd.AddCommand(envUnsetCmd)
	envCmd.AddCommand(envRemoveCmd)
	rootCmd.AddCommand(envCmd)
}

func updateEnv(ctx context.Context, mutate func(*envblock.Block) error) error {
	target, err := openTarget(ctx, grubinstall.ModeReadWrite)
	if err != nil {
		return err
	}

	defer target.Close() //nolint:errcheck

	blk, err := target.ReadEnv()
	if err != nil {
		return err
	}

	if err = mutate(blk); err != nil {
		return err
	}

	return target.WriteEnv(blk)
}
