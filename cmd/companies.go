package main

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sells-group/metrics-cli/internal/model"
)

var companiesJSON bool

var companiesCmd = &cobra.Command{
	Use:   "companies",
	Short: "Show stored canonical records",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		if err := st.Migrate(ctx); err != nil {
			return err
		}

		var records []model.CanonicalRecord
		if len(args) > 0 {
			for _, sym := range args {
				rec, err := st.GetRecord(ctx, strings.ToUpper(sym))
				if err != nil {
					return err
				}
				if rec == nil {
					fmt.Fprintf(cmd.OutOrStdout(), "%s: no record\n", strings.ToUpper(sym))
					continue
				}
				records = append(records, *rec)
			}
		} else {
			records, err = st.ListRecords(ctx)
			if err != nil {
				return err
			}
		}

		if companiesJSON {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(records)
		}

		for _, rec := range records {
			fmt.Fprintf(cmd.OutOrStdout(), "%s (%d fields, updated %s)\n",
				rec.CompanySymbol, len(rec.Fields), rec.LastUpdated.Format("2006-01-02"))
			for _, field := range sortedFields(rec) {
				fv := rec.Fields[field]
				fmt.Fprintf(cmd.OutOrStdout(), "  %-18s %-30s [%s, conf %.2f, %s]\n",
					field, fv.Value.String(), fv.SourceID, fv.Confidence,
					fv.ObservedAt.Format("2006-01-02"))
			}
		}
		return nil
	},
}

func sortedFields(rec model.CanonicalRecord) []string {
	fields := make([]string, 0, len(rec.Fields))
	for f := range rec.Fields {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	return fields
}

func init() {
	companiesCmd.Flags().BoolVar(&companiesJSON, "json", false, "emit JSON")
	rootCmd.AddCommand(companiesCmd)
}
