package cli

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/arzan03/tourbook/internal/config"
	"github.com/arzan03/tourbook/internal/logging"
	"github.com/arzan03/tourbook/internal/mail"
	"github.com/spf13/cobra"
)

var prefetch int

var mailWorkerCmd = &cobra.Command{
	Use:   "mail-worker",
	Short: "Deliver queued e-mails over SMTP",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		log := logging.New(os.Stdout, cfg.IsProduction())

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		smtpSender, err := mail.NewSMTPSender(smtpConfig(cfg))
		if err != nil {
			return err
		}
		queue, err := mail.NewQueueSender(cfg.Mail.AMQPURL, cfg.Mail.Queue)
		if err != nil {
			return err
		}
		defer closeQuietly(queue)

		log.Info(ctx, "mail worker started", "queue", cfg.Mail.Queue, "prefetch", prefetch)
		err = queue.Subscribe(ctx, prefetch, func(ctx context.Context, msg mail.Message) error {
			sendCtx, cancel := context.WithTimeout(ctx, cfg.Mail.Timeout)
			defer cancel()
			if err := smtpSender.Send(sendCtx, msg); err != nil {
				log.Warn(ctx, "mail delivery failed, requeued", "id", msg.ID, "err", err)
				return err
			}
			log.Info(ctx, "mail delivered", "id", msg.ID, "subject", msg.Subject)
			return nil
		})
		if errors.Is(err, context.Canceled) {
			log.Info(context.Background(), "mail worker stopped")
			return nil
		}
		return err
	},
}

func init() {
	rootCmd.AddCommand(mailWorkerCmd)
	mailWorkerCmd.Flags().IntVar(&prefetch, "prefetch", 10, "unacknowledged messages held at once")
}
