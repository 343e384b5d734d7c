package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/finsight-labs/finsight-go/internal/events"
	"github.com/finsight-labs/finsight-go/internal/models"
	"github.com/finsight-labs/finsight-go/internal/poll"
	"github.com/finsight-labs/finsight-go/internal/remote"
)

func newWatchCommand() *cobra.Command {
	var maxFailures int
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Poll the dashboard and operations and print every update",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts := GetOptions(cmd.Context())
			client, err := newClient(opts)
			if err != nil {
				return err
			}
			return runWatch(cmd.Context(), cmd.OutOrStdout(), opts, client, maxFailures)
		},
	}
	cmd.Flags().IntVar(&maxFailures, "max-failures", 0, "exit after this many consecutive failed dashboard fetches (0 = never)")
	return cmd
}

// runWatch prints one line per snapshot change until ctx is cancelled.
func runWatch(ctx context.Context, w io.Writer, opts *Options, client *remote.Client, maxFailures int) error {
	dashBus := events.NewBus[poll.Snapshot[models.Dashboard]]()
	opsBus := events.NewBus[poll.Snapshot[[]models.Operation]]()
	dashCh := dashBus.Subscribe("watch")
	opsCh := opsBus.Subscribe("watch")

	dashboard := poll.New(func(ctx context.Context) remote.Result[models.Dashboard] {
		return client.Dashboard(ctx)
	}, poll.Options[models.Dashboard]{Name: "dashboard", Interval: opts.Poll.Dashboard, Bus: dashBus})
	limit := opts.OperationsLimit
	operations := poll.New(func(ctx context.Context) remote.Result[[]models.Operation] {
		return client.Operations(ctx, limit)
	}, poll.Options[[]models.Operation]{Name: "operations", Interval: opts.Poll.Operations, Bus: opsBus})

	stopDash := dashboard.Start(ctx)
	stopOps := operations.Start(ctx)
	defer func() {
		stopDash()
		stopOps()
		dashboard.Wait()
		operations.Wait()
	}()

	slog.Info("watch: started", "backend", client.BaseURL())
	consecutive := 0
	for {
		select {
		case <-ctx.Done():
			return nil
		case snap := <-dashCh:
			if snap.Error != "" {
				consecutive++
				if maxFailures > 0 && consecutive >= maxFailures {
					return fmt.Errorf("too many consecutive failures (%d): %s", consecutive, snap.Error)
				}
			} else {
				consecutive = 0
			}
			if err := printDashboardLine(w, opts.Output, snap); err != nil {
				return err
			}
		case snap := <-opsCh:
			if err := printOperationsLine(w, opts.Output, snap); err != nil {
				return err
			}
		}
	}
}

func printDashboardLine(w io.Writer, output string, snap poll.Snapshot[models.Dashboard]) error {
	if output == OutputJSON {
		return renderJSON(w, map[string]any{"type": "dashboard", "snapshot": snap})
	}
	if snap.Data == nil {
		_, err := fmt.Fprintf(w, "dashboard: no data (%s)\n", snap.Error)
		return err
	}
	k := snap.Data.KPIs
	line := fmt.Sprintf("dashboard: volume %s, %s transactions, %s high risk, %s SLA breaches",
		money(k.TotalVolume), humanize.Comma(int64(k.TotalTransactions)), humanize.Comma(int64(k.HighRiskCount)), percent(k.SLABreachRate))
	line += staleness(snap.LastUpdated, snap.Error)
	_, err := fmt.Fprintln(w, line)
	return err
}

func printOperationsLine(w io.Writer, output string, snap poll.Snapshot[[]models.Operation]) error {
	if output == OutputJSON {
		return renderJSON(w, map[string]any{"type": "operations", "snapshot": snap})
	}
	if snap.Data == nil {
		_, err := fmt.Fprintf(w, "operations: no data (%s)\n", snap.Error)
		return err
	}
	byStatus := map[string]int{}
	for _, op := range *snap.Data {
		byStatus[op.Status]++
	}
	healthy := byStatus["Operational"]
	line := fmt.Sprintf("operations: %d/%d operational", healthy, len(*snap.Data))
	if n := len(*snap.Data) - healthy; n > 0 {
		line += fmt.Sprintf(", %d need attention", n)
	}
	line += staleness(snap.LastUpdated, snap.Error)
	_, err := fmt.Fprintln(w, line)
	return err
}

// staleness notes a failed refresh behind data that is still shown.
func staleness(updated *time.Time, reason string) string {
	if reason == "" {
		return ""
	}
	if updated == nil {
		return " [stale: " + reason + "]"
	}
	return fmt.Sprintf(" [stale since %s: %s]", humanize.Time(*updated), reason)
}
