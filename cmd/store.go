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

package cmd

import (
	"fmt"

	"github.com/cardinalhq/callrunner/config"
	"github.com/cardinalhq/callrunner/internal/kvstore"
	"github.com/cardinalhq/callrunner/internal/lease"
)

// openState opens the store a running worker uses, so admin commands see
// and change the same lease and identities.
func openState() (*config.Config, kvstore.Store, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, nil, err
	}
	kv, err := kvstore.Open(cfg.StorePath)
	if err != nil {
		return nil, nil, fmt.Errorf("open state store %s: %w", cfg.StorePath, err)
	}
	return cfg, kv, nil
}

func openLeases() (*lease.Store, *config.Config, error) {
	cfg, kv, err := openState()
	if err != nil {
		return nil, nil, err
	}
	return lease.NewStore(kv, lease.WithStaleAfter(cfg.Lease.StaleAfter)), cfg, nil
}
