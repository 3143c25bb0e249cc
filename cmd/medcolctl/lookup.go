package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jwalitptl/dispensing-api/internal/lookup"
	"github.com/jwalitptl/dispensing-api/internal/model"
)

func lookupCmd(load loader) *cobra.Command {
	var kind string

	cmd := &cobra.Command{
		Use:   "lookup <term>",
		Short: "Search the patient directory as the capture page does",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := load()
			if err != nil {
				return err
			}

			q, err := lookup.NewQuery(model.SearchKind(kind), args[0])
			if err != nil {
				return err
			}

			var client lookup.Client = lookup.NewSeedDirectory()
			if cfg.Lookup.Mode == "http" {
				client = lookup.NewHTTPClient(cfg.Lookup.BaseURL, cfg.Lookup.APIKey, cfg.Lookup.Timeout)
			}

			records, err := client.Search(cmd.Context(), q)
			if err != nil {
				return err
			}
			if len(records) == 0 {
				return fmt.Errorf("no patient found for %s %q", kind, args[0])
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(records)
		},
	}
	cmd.Flags().StringVar(&kind, "type", string(model.SearchByNationalID), "invoice or national_id")
	return cmd
}
