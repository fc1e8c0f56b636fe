package collect

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// FormatSummary renders a run summary as plain text for the CLI.
func FormatSummary(s *Summary) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Run %s (%s)\n", s.RunID, s.Industry)
	fmt.Fprintf(&b, "Started %s, finished %s (%s)\n",
		s.StartedAt.Format("2006-01-02 15:04:05"),
		s.FinishedAt.Format("15:04:05"),
		s.FinishedAt.Sub(s.StartedAt).Round(10*time.Millisecond),
	)
	fmt.Fprintf(&b, "Companies: %d ok, %d failed, %d conflicts\n",
		s.Succeeded, s.Failed, s.TotalConflicts)

	companies := make([]CompanyResult, len(s.Companies))
	copy(companies, s.Companies)
	sort.Slice(companies, func(i, j int) bool {
		return companies[i].Symbol < companies[j].Symbol
	})

	for _, cr := range companies {
		fmt.Fprintf(&b, "\n%s: %d fields\n", cr.Symbol, cr.FieldsPresent)
		if cr.StoreError != "" {
			fmt.Fprintf(&b, "  STORE ERROR: %s\n", cr.StoreError)
		}
		for _, w := range cr.Warnings {
			fmt.Fprintf(&b, "  warn [%s] %s failure after %d attempt(s): %s\n",
				w.SourceID, w.Kind, w.Attempts, w.Message)
		}
		for _, c := range cr.Conflicts {
			vals := make([]string, 0, len(c.Values))
			for _, v := range c.Values {
				vals = append(vals, fmt.Sprintf("%s=%s", v.SourceID, v.Value.String()))
			}
			fmt.Fprintf(&b, "  conflict %s: kept %s (%s)\n",
				c.Field, c.WinnerSource, strings.Join(vals, ", "))
		}
	}
	return b.String()
}
