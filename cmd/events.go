/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/tasktrack/apiserver/config"
	"github.com/tasktrack/apiserver/internal/logging"
	"github.com/tasktrack/apiserver/internal/mq"
	"github.com/tasktrack/apiserver/internal/services"
)

// eventsCmd groups commands that work with the change-event channel.
var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Inspect change events",
}

var eventsTailCmd = &cobra.Command{
	Use:   "tail",
	Short: "Log every change event published on the configured channel",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.LoadConfig()
		log := logging.New(cfg.Log)

		broker, err := mq.Connect(cmd.Context(), cfg.MQ)
		if err != nil {
			return err
		}
		if broker == nil {
			return errors.New("no MQ_BACKEND configured")
		}
		defer func() {
			_ = broker.Close()
		}()

		channel := cfg.MQ.Channel
		if channel == "" {
			channel = services.DefaultEventChannel
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		log.WithField("channel", channel).Info("waiting for events")
		err = broker.Subscribe(ctx, channel, func(_ context.Context, msg mq.Message) error {
			event, err := msg.Event()
			if err != nil {
				log.WithError(err).Warn("skipping malformed event")
				return nil
			}
			log.WithFields(logrus.Fields{
				"type":      event.Type,
				"user_id":   event.UserID,
				"entity_id": event.EntityID,
				"at":        event.OccurredAt,
			}).Info("event")
			return nil
		})
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	},
}

func init() {
	rootCmd.AddCommand(eventsCmd)
	eventsCmd.AddCommand(eventsTailCmd)
}
