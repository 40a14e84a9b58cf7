// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/siderolabs/go-grubinstall/pkg/cli"
	"github.com/siderolabs/go-grubinstall/pkg/grubinstall"
)

var checkCmdFlags struct {
	withSource bool
	autoFix    bool
}

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Check the installation for drift and stray files",
	Long:  ``,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cli.WithContext(context.Background(), func(ctx context.Context) error {
			return runCheck(ctx)
		})
	},
}

func init() {
	checkCmd.Flags().BoolVar(&checkCmdFlags.withSource, "with-source", false, "Also compare the installed payload against the payload source")
	checkCmd.Flags().BoolVar(&checkCmdFlags.autoFix, "auto-fix", false, "Accepted for compatibility, checking never modifies the target")
	rootCmd.AddCommand(checkCmd)
}

func runCheck(ctx context.Context) error {
	target, err := openTarget(ctx, grubinstall.ModeRead)
	if err != nil {
		return err
	}

	defer target.Close() //nolint:errcheck

	opts := grubinstall.CheckOptions{
		AutoFix: checkCmdFlags.autoFix,
	}

	var report *grubinstall.Report

	if checkCmdFlags.withSource {
		src, err := newSource()
		if err != nil {
			return err
		}

		report, err = target.CheckWithSource(ctx, src, opts)
		if err != nil {
			return err
		}
	} else {
		report, err = target.Check(ctx, opts)
		if err != nil {
			return err
		}
	}

	if verifyErr := report.Err.ErrorOrNil(); verifyErr != nil {
		cli.Warning("%s", verifyErr)
	}

	for _, f := range report.Findings {
		fmt.Println(color.YellowString("%s", f))
	}

	if !report.Ok() {
		return errors.New("consistency check failed")
	}

	fmt.Println("no issues found")

	return nil
}
