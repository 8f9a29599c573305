package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/arzan03/tourbook/internal/config"
	"github.com/arzan03/tourbook/internal/logging"
	"github.com/arzan03/tourbook/internal/mail"
	"github.com/arzan03/tourbook/internal/payment"
	"github.com/arzan03/tourbook/internal/ratestore"
	"github.com/arzan03/tourbook/internal/server"
	"github.com/arzan03/tourbook/internal/storage"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 15 * time.Second

var staticDir string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		log := logging.New(os.Stdout, cfg.IsProduction())

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		client, database, err := openDatabase(ctx, cfg)
		if err != nil {
			return err
		}
		defer func() { _ = client.Disconnect(context.Background()) }()
		log.Info(ctx, "connected to MongoDB", "database", cfg.Mongo.Name)

		sender, closeSender, err := newSender(cfg, log)
		if err != nil {
			return err
		}
		defer closeSender()

		repos := newRepositories(database, cfg.Mongo.Timeout)
		deps := server.Deps{
			Config:   cfg,
			Log:      log,
			Users:    repos.users,
			Tours:    repos.tours,
			Reviews:  repos.reviews,
			Bookings: repos.bookings,
			Mailer:   mail.NewMailer(sender, cfg.Mail.From, cfg.Mail.Timeout),
			Payments: payment.NewStripe(payment.Config{
				SecretKey: cfg.Stripe.SecretKey,
				Currency:  cfg.Stripe.Currency,
				BaseURL:   cfg.Stripe.BaseURL,
				Timeout:   cfg.Stripe.Timeout,
			}),
			StaticDir: staticDir,
		}

		if cfg.Minio.Endpoint != "" {
			photos, err := storage.NewMinioClient(storage.Config{
				Endpoint:  cfg.Minio.Endpoint,
				AccessKey: cfg.Minio.AccessKey,
				SecretKey: cfg.Minio.SecretKey,
				Bucket:    cfg.Minio.Bucket,
				UseSSL:    cfg.Minio.UseSSL,
			})
			if err != nil {
				return err
			}
			if err := photos.EnsureBucket(ctx); err != nil {
				return err
			}
			deps.Photos = photos
		} else {
			log.Warn(ctx, "MINIO_ENDPOINT not set, photo uploads disabled")
		}

		if cfg.Redis.Addr != "" {
			limits, err := ratestore.Connect(ctx, ratestore.Config{
				Addr:     cfg.Redis.Addr,
				Password: cfg.Redis.Password,
				DB:       cfg.Redis.DB,
			})
			if err != nil {
				return err
			}
			defer limits.Close()
			deps.RateStorage = limits
		}

		app := server.New(deps)

		errCh := make(chan error, 1)
		go func() {
			log.Info(ctx, "server starting", "port", cfg.Port, "env", cfg.Env)
			errCh <- app.Listen(":" + cfg.Port)
		}()

		select {
		case err := <-errCh:
			return fmt.Errorf("listen: %w", err)
		case <-ctx.Done():
		}

		log.Info(context.Background(), "shutdown signal received, draining connections")
		if err := app.ShutdownWithTimeout(shutdownTimeout); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		log.Info(context.Background(), "server stopped")
		return nil
	},
}

// newSender picks the mail transport. The returned func releases its connections.
func newSender(cfg *config.Config, log logging.Logger) (mail.Sender, func(), error) {
	switch cfg.Mail.Transport {
	case "smtp":
		s, err := mail.NewSMTPSender(smtpConfig(cfg))
		return s, func() {}, err
	case "amqp":
		q, err := mail.NewQueueSender(cfg.Mail.AMQPURL, cfg.Mail.Queue)
		if err != nil {
			return nil, nil, err
		}
		return q, func() { closeQuietly(q) }, nil
	case "log":
		return mail.LogSender{Log: log}, func() {}, nil
	}
	return nil, nil, errors.New("unknown mail transport " + cfg.Mail.Transport)
}

func smtpConfig(cfg *config.Config) mail.SMTPConfig {
	return mail.SMTPConfig{
		Host:     cfg.Mail.Host,
		Port:     cfg.Mail.Port,
		Username: cfg.Mail.Username,
		Password: cfg.Mail.Password,
		Timeout:  cfg.Mail.Timeout,
	}
}

func closeQuietly(c io.Closer) {
	_ = c.Close()
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&staticDir, "static", "public", "directory with css, js and images; empty disables")
}
