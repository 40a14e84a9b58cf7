// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/siderolabs/go-grubinstall/pkg/cli"
	"github.com/siderolabs/go-grubinstall/pkg/grubinstall"
	"github.com/siderolabs/go-grubinstall/pkg/grubinstall/platform"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the installation status of every platform",
	Long:  ``,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cli.WithContext(context.Background(), func(ctx context.Context) error {
			return runStatus(ctx)
		})
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(ctx context.Context) error {
	target, err := openTarget(ctx, grubinstall.ModeRead)
	if err != nil {
		return err
	}

	defer target.Close() //nolint:errcheck

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)

	fmt.Fprintln(w, strings.Join([]string{"PLATFORM", "FAMILY", "STATUS", "DETAILS"}, "\t"))

	for _, p := range platform.All() {
		info := target.PlatformInstallInfo(p)

		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", p, p.Family(), colorizeStatus(info.Status), statusDetails(p, info))
	}

	return w.Flush()
}

func colorizeStatus(s platform.Status) string {
	switch s {
	case platform.StatusBootable:
		return color.GreenString("%s", s)
	case platform.StatusExist:
		return color.YellowString("%s", s)
	case platform.StatusNotExist:
		fallthrough
	default:
		return s.String()
	}
}

func statusDetails(p platform.Type, info platform.InstallInfo) string {
	var details []string

	switch p.Family() {
	case platform.FamilyBIOS:
		if info.MBRInstalled {
			details = append(details, "mbr")
		}

		if info.AllowFloppy {
			details = append(details, "floppy")
		}

		if info.RSCodes {
			details = append(details, "rs-codes")
		}
	case platform.FamilyEFI:
		if info.Removable {
			details = append(details, "removable")
		}

		if info.NVRAM {
			details = append(details, "nvram")
		}
	case platform.FamilyOther:
	}

	if len(details) == 0 {
		return "-"
	}

	return strings.Join(details, ",")
}
