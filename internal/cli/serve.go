package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/finsight-labs/finsight-go/internal/api"
	"github.com/finsight-labs/finsight-go/internal/discovery"
	"github.com/finsight-labs/finsight-go/internal/events"
	"github.com/finsight-labs/finsight-go/internal/health"
	"github.com/finsight-labs/finsight-go/internal/models"
	"github.com/finsight-labs/finsight-go/internal/poll"
	"github.com/finsight-labs/finsight-go/internal/query"
	"github.com/finsight-labs/finsight-go/internal/remote"
)

const shutdownTimeout = 15 * time.Second

func newServeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the synchronizers and serve the local dashboard API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), GetOptions(cmd.Context()))
		},
	}
	f := cmd.Flags()
	f.String("listen", "", "HTTP listen address (default "+DefaultListen+")")
	f.Duration("debounce", 0, "client search debounce")
	f.Int("page-size", 0, "rows per page for clients and transactions")
	f.Bool("advertise", false, "advertise the local API over mDNS")
	return cmd
}

// agent is every long-lived component behind the local API.
type agent struct {
	opts   *Options
	client *remote.Client
	events *events.Bus[events.Event]
	health *health.Monitor

	dashboardBus  *events.Bus[poll.Snapshot[models.Dashboard]]
	operationsBus *events.Bus[poll.Snapshot[[]models.Operation]]
	riskBus       *events.Bus[poll.Snapshot[models.RiskOverview]]

	dashboard  *poll.Poller[models.Dashboard]
	operations *poll.Poller[[]models.Operation]
	risk       *poll.Poller[models.RiskOverview]

	clients      *query.Controller[models.Client]
	transactions *query.Controller[models.Transaction]
}

func newAgent(opts *Options, client *remote.Client) (*agent, error) {
	a := &agent{
		opts:          opts,
		client:        client,
		events:        events.NewBus[events.Event](),
		dashboardBus:  events.NewBus[poll.Snapshot[models.Dashboard]](),
		operationsBus: events.NewBus[poll.Snapshot[[]models.Operation]](),
		riskBus:       events.NewBus[poll.Snapshot[models.RiskOverview]](),
	}
	log := slog.Default()

	addr, err := health.HostPort(client.BaseURL())
	if err != nil {
		return nil, err
	}
	a.health = health.New(addr, health.Options{
		Interval: opts.HealthInterval,
		OnChange: func(online bool) {
			a.events.Publish(events.Event{Type: api.EventBackend, Data: map[string]bool{"online": online}})
		},
		Logger: log,
	})

	a.dashboard = poll.New(func(ctx context.Context) remote.Result[models.Dashboard] {
		return client.Dashboard(ctx)
	}, poll.Options[models.Dashboard]{Name: "dashboard", Interval: opts.Poll.Dashboard, Bus: a.dashboardBus, Logger: log})

	limit := opts.OperationsLimit
	a.operations = poll.New(func(ctx context.Context) remote.Result[[]models.Operation] {
		return client.Operations(ctx, limit)
	}, poll.Options[[]models.Operation]{Name: "operations", Interval: opts.Poll.Operations, Bus: a.operationsBus, Logger: log})

	a.risk = poll.New(func(ctx context.Context) remote.Result[models.RiskOverview] {
		return client.RiskOverview(ctx)
	}, poll.Options[models.RiskOverview]{Name: "risk", Interval: opts.Poll.Risk, Bus: a.riskBus, Logger: log})

	a.clients = query.New(func(ctx context.Context, p query.Params) remote.Result[[]models.Client] {
		return client.Clients(ctx, p.Skip(), p.Limit, p.Search)
	}, query.Options[models.Client]{Name: "clients", Limit: opts.PageSize, Debounce: opts.Debounce, Logger: log})

	a.transactions = query.New(func(ctx context.Context, p query.Params) remote.Result[[]models.Transaction] {
		return client.Transactions(ctx, p.Skip(), p.Limit)
	}, query.Options[models.Transaction]{Name: "transactions", Limit: opts.PageSize, Logger: log})

	return a, nil
}

// start launches the synchronizers and returns a function that stops them
// and waits for their in-flight fetches.
func (a *agent) start(ctx context.Context) (stop func()) {
	stops := []func(){
		a.dashboard.Start(ctx),
		a.operations.Start(ctx),
		a.risk.Start(ctx),
		a.clients.Start(ctx),
		a.transactions.Start(ctx),
	}
	return func() {
		for _, s := range stops {
			s()
		}
		a.dashboard.Wait()
		a.operations.Wait()
		a.risk.Wait()
		a.clients.Wait()
		a.transactions.Wait()
	}
}

func runServe(ctx context.Context, opts *Options) error {
	client, err := newClient(opts)
	if err != nil {
		return err
	}
	st, err := openSettings(ctx, opts)
	if err != nil {
		return err
	}
	defer func() {
		if err := st.Close(); err != nil {
			slog.Warn("serve: failed to close settings storage", "err", err)
		}
	}()

	a, err := newAgent(opts, client)
	if err != nil {
		return err
	}

	var advertiser *discovery.Service
	if opts.Advertise {
		port, err := discovery.PortOf(opts.Listen)
		if err != nil {
			return err
		}
		host, _ := os.Hostname()
		if host == "" {
			host = "finsight"
		}
		advertiser = discovery.New(host, port, discovery.TXT(Version, client.BaseURL()), slog.Default())
	}

	g, gctx := errgroup.WithContext(ctx)

	// Fan every typed bus into the SSE stream.
	g.Go(func() error {
		events.Forward(gctx, st.bus, a.events, "serve-settings", api.EventSettings)
		return nil
	})
	g.Go(func() error {
		events.Forward(gctx, a.dashboardBus, a.events, "serve-dashboard", api.EventDashboard)
		return nil
	})
	g.Go(func() error {
		events.Forward(gctx, a.operationsBus, a.events, "serve-operations", api.EventOperations)
		return nil
	})
	g.Go(func() error {
		events.Forward(gctx, a.riskBus, a.events, "serve-risk", api.EventRisk)
		return nil
	})
	g.Go(func() error {
		a.health.Run(gctx)
		return nil
	})

	stop := a.start(gctx)
	defer stop()

	router := api.NewRouter(api.Deps{
		Version:      Version,
		BackendURL:   client.BaseURL(),
		Settings:     st.store,
		Presentation: st.presentation,
		Health:       a.health,
		Predictor:    client,
		Events:       a.events,
		Dashboard:    api.FromPoller(a.dashboard),
		Operations:   api.FromPoller(a.operations),
		Risk:         api.FromPoller(a.risk),
		Clients:      api.FromController(a.clients),
		Transactions: api.FromController(a.transactions),
	})

	srv := &http.Server{
		Addr:         opts.Listen,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // 0 = no timeout (needed for SSE)
		IdleTimeout:  120 * time.Second,
	}

	if advertiser != nil {
		g.Go(func() error {
			if err := advertiser.Start(gctx); err != nil {
				slog.Warn("serve: mDNS advertisement failed", "err", err)
			}
			return nil
		})
	}

	g.Go(func() error {
		slog.Info("finsight listening", "addr", opts.Listen, "backend", client.BaseURL(), "storage", st.backend.Path())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down...")
		shutCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutCtx); err != nil {
			slog.Warn("serve: server shutdown error", "err", err)
		}
		return nil
	})

	err = g.Wait()
	slog.Info("shutdown complete")
	return err
}
