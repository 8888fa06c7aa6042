// Copyright (C) 2025-2026 CardinalHQ, Inc
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, version 3.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

package artifact

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/hashicorp/go-multierror"
)

// CleanupResult counts the outcome of ClearDirectory.
type CleanupResult struct {
	Deleted int
	Failed  int
}

// ClearDirectory removes every regular file directly inside dir and leaves
// subdirectories alone. Individual failures are counted and returned
// together; they never stop the sweep.
func ClearDirectory(dir string) (CleanupResult, error) {
	var res CleanupResult

	entries, err := os.ReadDir(dir)
	if err != nil {
		return res, fmt.Errorf("list %s: %w", dir, err)
	}

	var errs *multierror.Error
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		path := filepath.Join(dir, e.Name())
		if err := os.Remove(path); err != nil {
			res.Failed++
			errs = multierror.Append(errs, err)
			continue
		}
		res.Deleted++
	}
	return res, errs.ErrorOrNil()
}
