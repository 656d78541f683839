package cli

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"propel/internal/amqp"
	"propel/internal/archive"
	"propel/internal/billing"
	"propel/internal/config"
	"propel/internal/ledger"
	"propel/internal/log"
	"propel/internal/mailer"
	"propel/internal/metrics"
	"propel/internal/notify"
	"propel/internal/render"
	"propel/internal/services"
	"propel/internal/sheets/google"
	"propel/internal/storage"
)

// App holds every wired component of a billing process.
type App struct {
	Config   *config.Config
	Logger   *log.Logger
	Repo     *storage.SQLiteRepository
	Cycle    *services.Cycle
	Ingestor *services.Ingestor // nil without a spreadsheet
	Metrics  *metrics.Metrics

	amqp *amqp.Client
}

// NewApp opens the database and wires the billing cycle. Optional
// integrations are enabled by their configuration: Sheets by SPREADSHEET_KEY,
// AMQP by AMQP_URL, S3 by S3_BUCKET.
func NewApp(ctx context.Context, cfg *config.Config, logger *log.Logger) (*App, error) {
	repo, err := InitSQLite(logger, cfg.DBPath)
	if err != nil {
		return nil, err
	}
	app := &App{
		Config:  cfg,
		Logger:  logger,
		Repo:    repo,
		Metrics: metrics.NewMetrics(prometheus.NewRegistry()),
	}

	sender, err := mailer.NewSMTPSender(mailer.SMTPConfig{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUser,
		Password: cfg.SMTPPassword,
	})
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("smtp sender: %w", err)
	}

	renderer := render.NewPDFRenderer(cfg.OutputDir, render.Business{
		Name:  cfg.Business.Name,
		Email: cfg.Business.Email,
		Phone: cfg.Business.Phone,
	})

	dispatcher := notify.NewDispatcher(repo, sender, notify.Profile{
		BusinessName: cfg.Business.Name,
		FromAddress:  cfg.Business.Email,
		Signature:    cfg.Business.Signature,
		KnownEmails:  cfg.Business.KnownEmails,

		PaymentDueDays: cfg.Business.PaymentDueDays,
		PaymentMethod:  cfg.Business.PaymentMethod,
	}, logger)

	deps := services.CycleDeps{
		Ledger:      ledger.NewReader(repo, logger),
		Invoices:    billing.NewInvoiceBuilder(repo, renderer, logger),
		Payroll:     billing.NewPayrollBuilder(repo, renderer, logger),
		Notifier:    dispatcher,
		Metrics:     app.Metrics,
		Concurrency: cfg.Concurrency,
		Logger:      logger,
	}

	if cfg.SpreadsheetKey != "" {
		source, err := google.New(ctx, google.Options{
			SpreadsheetKey:  cfg.SpreadsheetKey,
			SessionRange:    cfg.SessionRange,
			CredentialsJSON: cfg.GoogleServiceAccountJSON,
			CredentialsFile: cfg.GoogleServiceAccountFile,
		})
		if err != nil {
			app.Close()
			return nil, fmt.Errorf("session sheet: %w", err)
		}
		app.Ingestor = services.NewIngestor(source, repo, logger)
		deps.Ingestor = app.Ingestor
	}

	if cfg.AMQPURL != "" {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			// Billing runs without the broker; events are skipped.
			logger.Warn("AMQP unavailable, billing events disabled", log.FieldError, err)
		} else {
			app.amqp = client
			deps.Publisher = client
		}
	}

	if cfg.S3Bucket != "" {
		archiver, err := archive.NewS3Archiver(ctx, archive.Config{
			Bucket:    cfg.S3Bucket,
			Region:    cfg.S3Region,
			Endpoint:  cfg.S3Endpoint,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
			Prefix:    cfg.CurrentSemester,
		})
		if err != nil {
			app.Close()
			return nil, fmt.Errorf("s3 archive: %w", err)
		}
		deps.Archiver = archiver
	}

	app.Cycle = services.NewCycle(deps)
	return app, nil
}

// PushMetrics sends the run's metrics to the Pushgateway when one is configured.
func (a *App) PushMetrics(ctx context.Context) {
	if err := a.Metrics.Push(ctx, a.Config.PushgatewayURL); err != nil {
		a.Logger.WarnContext(ctx, "Failed to push metrics", log.FieldError, err)
	}
}

// Close releases the broker connection and the database.
func (a *App) Close() {
	if a.amqp != nil {
		if err := a.amqp.Close(); err != nil {
			a.Logger.Error("Error closing AMQP client", log.FieldError, err)
		}
	}
	if err := a.Repo.Close(); err != nil {
		a.Logger.Error("Error closing database", log.FieldError, err)
	}
}
