package main

import (
	"fmt"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/metrics-cli/internal/collect"
	"github.com/sells-group/metrics-cli/internal/model"
)

var (
	collectIndustry string
	collectSymbols  []string
	collectSources  []string
)

var collectCmd = &cobra.Command{
	Use:   "collect",
	Short: "Fetch and reconcile metrics for an industry or explicit symbols",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		runner, st, err := initRuntime(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		if len(collectSources) > 0 {
			if err := runner.Registry.Require(collectSources); err != nil {
				return err
			}
		}

		symbols := collectSymbols
		industry := collectIndustry
		if len(symbols) == 0 {
			if industry == "" {
				return eris.New("either --industry or --symbols is required")
			}
			var ok bool
			symbols, ok = cfg.Industries[strings.ToLower(industry)]
			if !ok {
				return eris.Errorf("unknown industry %q (known: %s)",
					industry, strings.Join(industryNames(), ", "))
			}
		}

		companies := make([]model.Company, 0, len(symbols))
		for _, sym := range symbols {
			companies = append(companies, model.NewCompany(sym, "", industry))
		}

		summary, err := runner.Run(ctx, collect.Options{
			Industry:  industry,
			Companies: companies,
		})
		if err != nil {
			return err
		}

		fmt.Fprint(cmd.OutOrStdout(), collect.FormatSummary(summary))

		if days := cfg.Collect.ExtractRetentionDays; days > 0 {
			cutoff := time.Now().UTC().AddDate(0, 0, -days)
			pruned, err := st.PruneExtracts(ctx, cutoff)
			if err != nil {
				zap.L().Warn("pruning raw extracts failed", zap.Error(err))
			} else if pruned > 0 {
				zap.L().Info("pruned raw extracts", zap.Int("count", pruned))
			}
		}

		return nil
	},
}

func industryNames() []string {
	names := make([]string, 0, len(cfg.Industries))
	for name := range cfg.Industries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func init() {
	collectCmd.Flags().StringVar(&collectIndustry, "industry", "", "industry ticker list to collect")
	collectCmd.Flags().StringSliceVar(&collectSymbols, "symbols", nil, "explicit symbols to collect")
	collectCmd.Flags().StringSliceVar(&collectSources, "sources", nil, "require these sources to be enabled")
	rootCmd.AddCommand(collectCmd)
}
