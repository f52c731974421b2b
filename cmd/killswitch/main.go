package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"ad_kill_switch/internal/app"
	"ad_kill_switch/internal/domain/decision"
	"ad_kill_switch/internal/domain/notify"
	"ad_kill_switch/internal/infra/config"
	idb "ad_kill_switch/internal/infra/database"
	"ad_kill_switch/internal/infra/logger"
	"ad_kill_switch/internal/infra/meta"
	notifyinfra "ad_kill_switch/internal/infra/notify"
	"ad_kill_switch/internal/infra/scheduler"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gopkg.in/telebot.v3"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "killswitch",
		Short: "Automatic pause/scale control loop for running ad campaigns",
		Long: `killswitch monitors every active ad on the configured Meta ad account,
pauses underperformers by a four-tier policy and raises the budget of
winners. Configuration is read from environment variables / .env.`,
		SilenceUsage: true,
	}
	rootCmd.AddCommand(newRunCmd(), newOnceCmd(), newReportCmd(), newCheckCmd(), newHistoryCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// application bundles everything a command needs after bootstrap.
type application struct {
	cfg      *config.AppConfig
	log      *logrus.Logger
	db       *sql.DB
	monitor  *app.MonitorService
	notifier notify.Notifier
}

func newApplication() (*application, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("could not load configuration: %w", err)
	}

	logger.Init(cfg)
	log := logger.Get()
	log.Infof("configuration loaded: account %s, environment %s", cfg.MetaAdAccountID, cfg.Environment)

	db, err := idb.NewPostgresConnection(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("could not connect to database: %w", err)
	}
	log.Info("database connection established")

	history := idb.NewPostgresMonitorRepository(db)

	platform := meta.NewClient(meta.Config{
		AccessToken: cfg.MetaAccessToken,
		AdAccountID: cfg.MetaAdAccountID,
		APIVersion:  cfg.MetaAPIVersion,
		Timeout:     cfg.HTTPTimeout,
	}, log)

	var sinks notifyinfra.Multi
	slack := notifyinfra.NewSlackNotifier(cfg.SlackWebhookURL, log)
	if slack.Enabled() {
		sinks = append(sinks, slack)
		log.Info("slack notifications enabled")
	}
	if cfg.TelegramToken != "" {
		bot, err := telebot.NewBot(telebot.Settings{Token: cfg.TelegramToken})
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("could not create telegram bot: %w", err)
		}
		sinks = append(sinks, notifyinfra.NewTelegramNotifier(bot, cfg.TelegramChatID, log))
		log.Info("telegram notifications enabled")
	}
	var notifier notify.Notifier = notify.Noop{}
	if len(sinks) > 0 {
		notifier = sinks
	} else {
		log.Warn("no notification sink configured, running silently")
	}

	monitorService := app.NewMonitorService(
		platform,
		cfg.Thresholds,
		app.MultiplierPolicy{Rate: cfg.ScaleRate},
		notifier,
		history,
		log,
		cfg.MonitorWorkers,
	)

	return &application{
		cfg:      cfg,
		log:      log,
		db:       db,
		monitor:  monitorService,
		notifier: notifier,
	}, nil
}

func (a *application) Close() {
	a.db.Close()
}

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the monitoring loop until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApplication()
			if err != nil {
				return err
			}
			defer a.Close()

			// Catch signals before any cycle runs, so an interrupt during
			// the initial cycle still shuts down gracefully.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a.notifier.Notify(
				"Kill switch monitoring started.",
				"Monitoring started",
				notify.SeverityInfo,
				map[string]string{
					"Account":  a.cfg.MetaAdAccountID,
					"Interval": a.cfg.MonitorInterval.String(),
				},
			)

			// First cycle right away; the scheduler takes over from there.
			cycleCtx, cancel := context.WithTimeout(ctx, a.cfg.CycleTimeout)
			if _, err := a.monitor.RunCycle(cycleCtx); err != nil {
				a.log.Errorf("initial monitoring cycle failed: %v", err)
			}
			cancel()

			sched := scheduler.NewMonitorScheduler(
				a.monitor,
				a.log,
				a.cfg.MonitorInterval,
				a.cfg.CycleTimeout,
				a.cfg.CronSpecDailyReport,
			)
			if err := sched.Start(); err != nil {
				return err
			}

			<-ctx.Done()

			a.log.Info("shutting down...")
			sched.Stop()
			a.notifier.Notify("Kill switch monitoring stopped.", "Monitoring stopped", notify.SeverityWarning, nil)
			a.log.Info("shut down gracefully")
			return nil
		},
	}
}

func newOnceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "once",
		Short: "Run a single monitoring cycle and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApplication()
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), a.cfg.CycleTimeout)
			defer cancel()

			summary, err := a.monitor.RunCycle(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("result: total %d / kept %d / paused %d / scaled %d / errors %d\n",
				summary.Total, summary.Kept, summary.Paused, summary.Scaled, summary.Errors)
			return nil
		},
	}
}

func newReportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "report",
		Short: "Print a trailing 7-day performance report, no actions taken",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApplication()
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), a.cfg.CycleTimeout)
			defer cancel()

			reports, err := a.monitor.Report(ctx)
			if err != nil {
				return err
			}

			fmt.Printf("\n=== active ads performance (trailing 7 days) ===\n\n")
			for _, r := range reports {
				fmt.Printf("ad: %s (%s)\n", r.Name, r.AdID)
				fmt.Printf("  impressions: %d  clicks: %d\n", r.Snapshot.Impressions, r.Snapshot.Clicks)
				fmt.Printf("  ctr: %.2f%%  cpc: %.0f\n", r.Snapshot.CTR, r.Snapshot.CPC)
				fmt.Printf("  spend: %.0f  revenue: %.0f\n", r.Snapshot.Spend, r.Snapshot.Revenue)
				fmt.Printf("  roas: %.2f  conversions: %d\n", r.Snapshot.ROAS, r.Snapshot.Conversions)
				printDecision(r.Decision)
				fmt.Println()
			}
			fmt.Printf("%d ads total\n", len(reports))
			return nil
		},
	}
}

func newCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check <ad-id>",
		Short: "Show today's metrics and the would-be decision for one ad",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApplication()
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), a.cfg.HTTPTimeout*3)
			defer cancel()

			diag, err := a.monitor.Diagnose(ctx, args[0])
			if err != nil {
				return err
			}

			fmt.Printf("\nad: %s\n", diag.AdID)
			fmt.Printf("impressions: %d  clicks: %d\n", diag.Snapshot.Impressions, diag.Snapshot.Clicks)
			fmt.Printf("ctr: %.2f%%  cpc: %.0f\n", diag.Snapshot.CTR, diag.Snapshot.CPC)
			fmt.Printf("spend: %.0f  revenue: %.0f  roas: %.2f\n", diag.Snapshot.Spend, diag.Snapshot.Revenue, diag.Snapshot.ROAS)
			printDecision(diag.Decision)
			return nil
		},
	}
}

func newHistoryCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Print recent monitoring cycles",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApplication()
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
			defer cancel()

			cycles, err := a.monitor.RecentCycles(ctx, limit)
			if err != nil {
				return err
			}
			for _, c := range cycles {
				finished := "running"
				if c.FinishedAt.Valid {
					finished = c.FinishedAt.Time.Format("2006-01-02 15:04:05")
				}
				fmt.Printf("cycle %d  %s -> %s  total %d  kept %d  paused %d  scaled %d  errors %d\n",
					c.ID, c.StartedAt.Format("2006-01-02 15:04:05"), finished,
					c.Total, c.Kept, c.Paused, c.Scaled, c.Errors)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 10, "number of cycles to show")
	return cmd
}

func printDecision(d decision.Decision) {
	if d.Action == decision.ActionKill {
		fmt.Printf("decision: %s (%s)\n", strings.ToUpper(string(d.Action)), d.Reason)
		return
	}
	fmt.Printf("decision: %s\n", strings.ToUpper(string(d.Action)))
}
