package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/oksasatya/vidtube-api/config"
	"github.com/oksasatya/vidtube-api/pkg/helpers"
	"github.com/oksasatya/vidtube-api/pkg/mailer"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	logger := helpers.NewLogger(cfg.AppName+"-email-worker", cfg.Env)

	if !cfg.MailSendEnabled {
		logger.Info("MAIL_SEND_ENABLED=false; email worker disabled")
		return
	}
	if cfg.RabbitMQURL == "" || cfg.RabbitMQEmailQueue == "" {
		logger.Fatal("RabbitMQ not configured")
	}
	if cfg.MailgunDomain == "" || cfg.MailgunAPIKey == "" || cfg.MailgunSender == "" {
		logger.Fatal("Mailgun not configured")
	}

	queue, err := helpers.NewRabbitQueue(cfg.RabbitMQURL, cfg.RabbitMQEmailQueue)
	if err != nil {
		logger.WithError(err).Fatal("rabbitmq connect failed")
	}
	defer queue.Close()

	worker := &mailer.Worker{
		Cfg:    cfg,
		Sender: mailer.NewMailgun(cfg.MailgunDomain, cfg.MailgunAPIKey, cfg.MailgunSender),
		Logger: logger,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	helpers.LogInfo(logger, "email worker listening", logrus.Fields{"queue": cfg.RabbitMQEmailQueue})
	err = queue.Consume(ctx, 16, func(ctx context.Context, body []byte) helpers.Ack {
		err := worker.Handle(ctx, body)
		switch {
		case err == nil:
			return helpers.AckDone
		case errors.Is(err, mailer.ErrBadJob):
			logger.WithError(err).Warn("dropping email job")
			return helpers.AckDrop
		default:
			logger.WithError(err).Error("email send failed")
			return helpers.AckRetry
		}
	})
	if err != nil {
		logger.WithError(err).Fatal("consume failed")
	}
	logger.Info("email worker stopped")
}
