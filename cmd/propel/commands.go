package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"

	"propel/internal/cli"
	"propel/internal/config"
	"propel/internal/core"
	httpstatus "propel/internal/http"
	"propel/internal/ledger"
	"propel/internal/log"
	"propel/internal/services"
)

const shutdownTimeout = 2 * time.Minute

// CLI represents the command-line interface structure
type CLI struct {
	Version  kong.VersionFlag `help:"Show version information"`
	DBPath   string           `help:"Path to SQLite database (overrides PROPEL_DB_PATH)" name:"db" type:"path"`
	LogLevel string           `help:"Log level: debug, info, warn or error (overrides PROPEL_LOG_LEVEL)"`

	Run      RunCmd      `cmd:"" help:"Run the full billing cycle for one biweek"`
	Invoices InvoicesCmd `cmd:"" help:"Generate and email invoices only"`
	Payroll  PayrollCmd  `cmd:"" help:"Generate the tutor payroll only"`
	Ingest   IngestCmd   `cmd:"" help:"Import sessions from the tracking spreadsheet"`
	Schedule ScheduleCmd `cmd:"" help:"Run the billing cycle on the configured cron schedule"`

	cfg    *config.Config `kong:"-"`
	logger *log.Logger    `kong:"-"`
}

// AfterApply loads the environment and configuration once flags are parsed.
func (c *CLI) AfterApply() error {
	cli.LoadEnvFile()
	cfg, err := cli.LoadAndValidateConfig(func(cfg *config.Config) {
		if c.DBPath != "" {
			cfg.DBPath = c.DBPath
		}
		if c.LogLevel != "" {
			cfg.LogLevel = c.LogLevel
		}
	})
	if err != nil {
		return err
	}
	c.cfg = cfg
	c.logger = cli.SetupLogger(cfg.LogLevel, cfg.LogFormat)
	return nil
}

func (c *CLI) openApp(ctx context.Context) (*cli.App, error) {
	return cli.NewApp(ctx, c.cfg, c.logger)
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// PeriodFlags selects the biweek to process.
type PeriodFlags struct {
	Start string `help:"First day of the period (YYYY-MM-DD). Defaults to 14 days ago."`
	End   string `help:"Day after the period (YYYY-MM-DD). Defaults to start + 14 days."`
}

func (p PeriodFlags) period() (core.Period, error) {
	return cli.ResolvePeriod(p.Start, p.End, core.DateOf(time.Now()))
}

// RunCmd runs ingest (optional), invoices and payroll.
type RunCmd struct {
	PeriodFlags `embed:""`
	Ingest      bool `help:"Import sessions from the spreadsheet before billing"`
}

func (r *RunCmd) Run(root *CLI) error {
	period, err := r.period()
	if err != nil {
		return err
	}
	ctx, stop := signalContext()
	defer stop()

	app, err := root.openApp(ctx)
	if err != nil {
		return err
	}
	defer app.Close()

	if r.Ingest && app.Ingestor == nil {
		return errors.New("--ingest requires SPREADSHEET_KEY")
	}

	rep, err := app.Cycle.RunCycle(ctx, period, services.RunOptions{Ingest: r.Ingest})
	cli.PrintCycleReport(os.Stdout, rep)
	app.PushMetrics(ctx)
	return err
}

// InvoicesCmd invoices and emails every billed account.
type InvoicesCmd struct {
	PeriodFlags `embed:""`
}

func (i *InvoicesCmd) Run(root *CLI) error {
	period, err := i.period()
	if err != nil {
		return err
	}
	ctx, stop := signalContext()
	defer stop()

	app, err := root.openApp(ctx)
	if err != nil {
		return err
	}
	defer app.Close()

	rep, err := app.Cycle.GenerateAndSendInvoices(ctx, period)
	if err != nil {
		return err
	}
	cli.PrintInvoiceReport(os.Stdout, rep)
	app.PushMetrics(ctx)
	return nil
}

// PayrollCmd builds the payroll for one period.
type PayrollCmd struct {
	PeriodFlags `embed:""`
}

func (p *PayrollCmd) Run(root *CLI) error {
	period, err := p.period()
	if err != nil {
		return err
	}
	ctx, stop := signalContext()
	defer stop()

	app, err := root.openApp(ctx)
	if err != nil {
		return err
	}
	defer app.Close()

	rep, err := app.Cycle.GeneratePayroll(ctx, period, ledger.Ledger{})
	if err != nil {
		return err
	}
	cli.PrintPayrollReport(os.Stdout, rep)
	app.PushMetrics(ctx)
	return nil
}

// IngestCmd imports spreadsheet sessions without billing.
type IngestCmd struct {
	PeriodFlags `embed:""`
}

func (i *IngestCmd) Run(root *CLI) error {
	period, err := i.period()
	if err != nil {
		return err
	}
	ctx, stop := signalContext()
	defer stop()

	app, err := root.openApp(ctx)
	if err != nil {
		return err
	}
	defer app.Close()

	if app.Ingestor == nil {
		return errors.New("ingest requires SPREADSHEET_KEY")
	}
	rep, err := app.Ingestor.Ingest(ctx, period)
	if err != nil {
		return err
	}
	cli.PrintIngestReport(os.Stdout, rep)
	return nil
}

// ScheduleCmd keeps running and triggers the cycle from cron.
type ScheduleCmd struct{}

func (s *ScheduleCmd) Run(root *CLI) error {
	logger := root.logger
	anchor, err := root.cfg.Anchor()
	if err != nil {
		return err
	}

	app, err := root.openApp(context.Background())
	if err != nil {
		return err
	}
	defer app.Close()

	var status *httpstatus.Server
	if root.cfg.StatusAddr != "" {
		status = httpstatus.NewServer(root.cfg.StatusAddr, app.Repo, app.Metrics.Handler(), logger)
	}

	ingest := app.Ingestor != nil
	scheduler, err := services.NewScheduler(root.cfg.BillingSchedule, anchor,
		func(ctx context.Context, period core.Period) error {
			rep, err := app.Cycle.RunCycle(ctx, period, services.RunOptions{Ingest: ingest})
			cli.PrintCycleReport(os.Stdout, rep)
			app.PushMetrics(ctx)
			if status != nil {
				status.RecordRun(rep, err, time.Now())
			}
			return err
		}, logger)
	if err != nil {
		return err
	}

	ctx, done := cli.GracefulShutdown(logger, shutdownTimeout, func(ctx context.Context) {
		if err := scheduler.Stop(ctx); err != nil {
			logger.Error("Scheduler stop error", log.FieldError, err)
		}
		if status != nil {
			if err := status.Shutdown(ctx); err != nil {
				logger.Error("Status server shutdown error", log.FieldError, err)
			}
		}
	})

	if status != nil {
		status.Start()
	}

	if err := scheduler.Start(ctx); err != nil {
		return err
	}
	logger.Info("Billing scheduler running",
		log.FieldOperation, log.OpStartup,
		"db", root.cfg.DBPath,
		"ingest", ingest)

	cli.WaitForShutdown(ctx, done)
	return nil
}
