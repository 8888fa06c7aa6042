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
	"github.com/spf13/cobra"

	"github.com/cardinalhq/callrunner/internal/workqueue"
)

type identitiesView struct {
	Primary   string `yaml:"primary"`
	Secondary string `yaml:"secondary"`
}

func init() {
	identitiesCmd := &cobra.Command{
		Use:   "identities",
		Short: "Manage the sending identities offered to the work queue",
	}

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Print the stored identities",
		RunE: func(c *cobra.Command, _ []string) error {
			_, kv, err := openState()
			if err != nil {
				return err
			}
			ids, err := workqueue.LoadIdentities(kv)
			if err != nil {
				return err
			}
			return writeYAML(c.OutOrStdout(), identitiesView(ids))
		},
	}

	var primary, secondary string
	setCmd := &cobra.Command{
		Use:   "set",
		Short: "Store the identities for SIM slot 1 and 2",
		RunE: func(c *cobra.Command, _ []string) error {
			_, kv, err := openState()
			if err != nil {
				return err
			}
			ids, err := workqueue.LoadIdentities(kv)
			if err != nil {
				return err
			}
			if c.Flags().Changed("primary") {
				ids.Primary = primary
			}
			if c.Flags().Changed("secondary") {
				ids.Secondary = secondary
			}
			if err := workqueue.SaveIdentities(kv, ids); err != nil {
				return err
			}
			ids, err = workqueue.LoadIdentities(kv)
			if err != nil {
				return err
			}
			return writeYAML(c.OutOrStdout(), identitiesView(ids))
		},
	}
	setCmd.Flags().StringVar(&primary, "primary", "", "identity of SIM slot 1")
	setCmd.Flags().StringVar(&secondary, "secondary", "", "identity of SIM slot 2")

	identitiesCmd.AddCommand(showCmd, setCmd)
	rootCmd.AddCommand(identitiesCmd)
}
