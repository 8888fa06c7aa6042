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

package workqueue

import (
	"strings"

	"github.com/cardinalhq/callrunner/internal/kvstore"
)

// Store keys for the user-entered sending identities.
const (
	KeyPrimaryIdentity   = "simNumber1"
	KeySecondaryIdentity = "simNumber2"
)

// LoadIdentities reads the persisted identities. Missing keys are blank.
func LoadIdentities(store kvstore.Store) (Identities, error) {
	snap, err := store.Snapshot()
	if err != nil {
		return Identities{}, err
	}
	r := kvstore.MapReader(snap)
	return Identities{
		Primary:   kvstore.String(r, KeyPrimaryIdentity, ""),
		Secondary: kvstore.String(r, KeySecondaryIdentity, ""),
	}, nil
}

// SaveIdentities persists both identities in one update.
func SaveIdentities(store kvstore.Store, ids Identities) error {
	return store.Update(func(tx kvstore.Tx) error {
		tx.Set(KeyPrimaryIdentity, strings.TrimSpace(ids.Primary))
		tx.Set(KeySecondaryIdentity, strings.TrimSpace(ids.Secondary))
		return nil
	})
}
