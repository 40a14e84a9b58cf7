// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package cmd

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/siderolabs/go-grubinstall/pkg/grubinstall/platform"
)

var platformsCmd = &cobra.Command{
	Use:   "platforms",
	Short: "List the known GRUB platform targets",
	Long:  ``,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)

		fmt.Fprintln(w, strings.Join([]string{"PLATFORM", "FAMILY", "INSTALLABLE", "CORE IMAGE"}, "\t"))

		for _, p := range platform.All() {
			installable := "no"
			if p.Installable() {
				installable = "yes"
			}

			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", p, p.Family(), installable, p.CoreImageName())
		}

		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(platformsCmd)
}
