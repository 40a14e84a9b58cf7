// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package cli

import (
	"fmt"
	"os"
)

// Warning prints a formatted warning to stderr.
func Warning(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "WARNING: %s\n", fmt.Sprintf(format, args...))
}
