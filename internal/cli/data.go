package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/finsight-labs/finsight-go/internal/models"
	"github.com/finsight-labs/finsight-go/internal/remote"
)

// fetchOnce builds a client, runs fetch and prints the value with render,
// or as JSON. A failed Result becomes the command's error.
func fetchOnce[T any](cmd *cobra.Command, fetch func(context.Context, *remote.Client) remote.Result[T], render func(io.Writer, T)) error {
	opts := GetOptions(cmd.Context())
	client, err := newClient(opts)
	if err != nil {
		return err
	}
	res := fetch(cmd.Context(), client)
	if !res.OK {
		return errors.New(res.Reason)
	}
	if opts.Output == OutputJSON {
		return renderJSON(cmd.OutOrStdout(), res.Value)
	}
	render(cmd.OutOrStdout(), res.Value)
	return nil
}

func newDashboardCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "dashboard",
		Short: "Show dashboard KPIs, trend and top exposure",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return fetchOnce(cmd, func(ctx context.Context, c *remote.Client) remote.Result[models.Dashboard] {
				return c.Dashboard(ctx)
			}, renderDashboard)
		},
	}
}

func newRiskCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "risk",
		Short: "Show the risk overview",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return fetchOnce(cmd, func(ctx context.Context, c *remote.Client) remote.Result[models.RiskOverview] {
				return c.RiskOverview(ctx)
			}, renderRisk)
		},
	}
}

func newOperationsCommand() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "operations",
		Short: "Show operational status by region",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if limit <= 0 {
				limit = GetOptions(cmd.Context()).OperationsLimit
			}
			return fetchOnce(cmd, func(ctx context.Context, c *remote.Client) remote.Result[[]models.Operation] {
				return c.Operations(ctx, limit)
			}, renderOperations)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum operations to list (default operations_limit)")
	return cmd
}

func newClientsCommand() *cobra.Command {
	var (
		search string
		page   int
	)
	cmd := &cobra.Command{
		Use:   "clients",
		Short: "List clients, optionally filtered by name",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if page < 0 {
				return fmt.Errorf("page must be >= 0, got %d", page)
			}
			size := GetOptions(cmd.Context()).PageSize
			return fetchOnce(cmd, func(ctx context.Context, c *remote.Client) remote.Result[[]models.Client] {
				return c.Clients(ctx, page*size, size, search)
			}, func(w io.Writer, clients []models.Client) {
				renderClients(w, clients, page)
			})
		},
	}
	cmd.Flags().StringVarP(&search, "search", "s", "", "filter by client name")
	cmd.Flags().IntVarP(&page, "page", "p", 0, "page number, starting at 0")
	return cmd
}

func newTransactionsCommand() *cobra.Command {
	var page int
	cmd := &cobra.Command{
		Use:   "transactions",
		Short: "List transactions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if page < 0 {
				return fmt.Errorf("page must be >= 0, got %d", page)
			}
			size := GetOptions(cmd.Context()).PageSize
			return fetchOnce(cmd, func(ctx context.Context, c *remote.Client) remote.Result[[]models.Transaction] {
				return c.Transactions(ctx, page*size, size)
			}, func(w io.Writer, txns []models.Transaction) {
				renderTransactions(w, txns, page)
			})
		},
	}
	cmd.Flags().IntVarP(&page, "page", "p", 0, "page number, starting at 0")
	return cmd
}

func newPredictCommand() *cobra.Command {
	var req models.PredictionRequest
	cmd := &cobra.Command{
		Use:       "predict sla|failure|anomaly",
		Short:     "Run an ML model on a hypothetical transaction",
		ValidArgs: []string{"sla", "failure", "anomaly"},
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			model := args[0]
			return fetchOnce(cmd, func(ctx context.Context, c *remote.Client) remote.Result[models.Prediction] {
				switch model {
				case "failure":
					return c.PredictFailure(ctx, req)
				case "anomaly":
					return c.DetectAnomaly(ctx, req)
				default:
					return c.PredictSLA(ctx, req)
				}
			}, func(w io.Writer, p models.Prediction) {
				renderPrediction(w, model, p)
			})
		},
	}
	f := cmd.Flags()
	f.Float64Var(&req.Amount, "amount", 1000, "transaction amount")
	f.StringVar(&req.RiskRating, "risk-rating", "Medium", "client risk rating")
	f.StringVar(&req.Region, "region", "North America", "transaction region")
	f.IntVar(&req.HourOfDay, "hour", 12, "hour of day (0-23)")
	f.StringVar(&req.TransactionType, "type", "wire", "transaction type")
	return cmd
}
