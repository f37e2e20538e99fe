// SPDX-License-Identifier: AGPL-3.0-or-later

package stages

import (
	"fmt"
	"strconv"
	"strings"
)

// nextMinorID bumps the minor component of a MAJOR.MINOR release id,
// the same allocation scheme internal/motifs uses for motif releases
// (spec.md §4.8), reused here for the type-less loop release.
func nextMinorID(prior string) (string, error) {
	parts := strings.SplitN(prior, ".", 2)
	if len(parts) != 2 {
		return "", fmt.Errorf("stages: malformed release id %q", prior)
	}
	major, err := strconv.Atoi(parts[0])
	if err != nil {
		return "", fmt.Errorf("stages: malformed release id %q: %w", prior, err)
	}
	minor, err := strconv.Atoi(parts[1])
	if err != nil {
		return "", fmt.Errorf("stages: malformed release id %q: %w", prior, err)
	}
	return fmt.Sprintf("%d.%d", major, minor+1), nil
}
