package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/claimvault/internal/model"
	"github.com/ppiankov/claimvault/internal/worker"
)

// importResult is one printed line of the import report
type importResult struct {
	Entry      int             `json:"entry" yaml:"entry"`
	PaymentID  model.PaymentID `json:"payment_id" yaml:"payment_id"`
	Originator model.Identity  `json:"originator,omitempty" yaml:"originator,omitempty"`
	Error      string          `json:"error,omitempty" yaml:"error,omitempty"`
}

// importReport is the output of import
type importReport struct {
	Total    int            `json:"total" yaml:"total"`
	Success  int            `json:"success" yaml:"success"`
	Failures int            `json:"failures" yaml:"failures"`
	Results  []importResult `json:"results" yaml:"results"`
}

func newImportCmd(a *app) *cobra.Command {
	var (
		workers       int
		rps           float64
		burst         int
		importTimeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Register many claims from a YAML file",
		Long: `Import registers every claim listed in a YAML file:
- Entries are registered through a worker pool
- Registrations are rate limited per originator
- Entries with private_key are signed on import; others need signature
- A failed entry does not stop the remaining ones

With more than one worker the index order follows completion order.
Use --workers 1 (the default) to keep file order.

File format:
  claims:
    - private_key: <hex>
      recipient: <identity>
      payment_amount: 1000
      fee_amount: 50
      claim_period: 100
      payment_id: <64 hex characters>

Example:
  claimvault import claims.yaml
  claimvault import claims.yaml --workers 4 --rps 20 --timeout 5m`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			sess, err := a.openSession(cmd)
			if err != nil {
				return err
			}
			defer closeSession(sess, &err)

			cfg := sess.cfg.Import
			if cmd.Flags().Changed("workers") {
				cfg.Workers = workers
			}
			if cmd.Flags().Changed("rps") {
				cfg.RequestsPerSecond = rps
			}
			if cmd.Flags().Changed("burst") {
				cfg.BurstSize = burst
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), importTimeout)
			defer cancel()

			sess.logger.Info().
				Str("file", args[0]).
				Int("workers", cfg.Workers).
				Float64("rps", cfg.RequestsPerSecond).
				Dur("timeout", importTimeout).
				Msg("importing claims")

			importer := worker.NewImporter(sess.registry, cfg.Workers, cfg.RequestsPerSecond, cfg.BurstSize, sess.logger)
			results, err := importer.ImportFile(ctx, args[0])
			if err != nil {
				return err
			}

			report := importReport{Total: len(results), Results: make([]importResult, 0, len(results))}
			for _, res := range results {
				line := importResult{Entry: res.Position, PaymentID: res.PaymentID, Originator: res.Originator}
				if res.Error != nil {
					report.Failures++
					line.Error = res.Error.Error()
				} else {
					report.Success++
				}
				report.Results = append(report.Results, line)
			}

			sess.logger.Info().
				Int("total", report.Total).
				Int("success", report.Success).
				Int("failures", report.Failures).
				Msg("import complete")

			if err := a.print(cmd.OutOrStdout(), report); err != nil {
				return err
			}
			if report.Failures > 0 {
				return fmt.Errorf("%d of %d claims failed to import", report.Failures, report.Total)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&workers, "workers", 1, "number of concurrent workers (overrides import.workers)")
	cmd.Flags().Float64Var(&rps, "rps", 0, "registrations per second per originator (overrides import.requests_per_second)")
	cmd.Flags().IntVar(&burst, "burst", 0, "rate limiter burst (overrides import.burst_size)")
	cmd.Flags().DurationVar(&importTimeout, "timeout", 10*time.Minute, "total timeout for the import")

	return cmd
}
