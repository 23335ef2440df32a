package writer

import (
	"Go2FctSpectra/internal/config"
	"Go2FctSpectra/internal/model"
	"encoding/json"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/streadway/amqp"
)

// AMQPWriter publishes every report as JSON to a durable topic exchange.
type AMQPWriter struct {
	conn       *amqp.Connection
	channel    *amqp.Channel
	exchange   string
	routingKey string
}

// NewAMQPWriter dials the broker and declares the exchange.
func NewAMQPWriter(cfg config.AMQPConfig) (*AMQPWriter, error) {
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("Dial: %w", err)
	}
	log.Infoln("got AMQP Connection, getting Channel...")

	channel, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("Channel: %w", err)
	}

	log.Infof("got Channel, declaring topic Exchange (%q)", cfg.Exchange)
	if err := channel.ExchangeDeclare(
		cfg.Exchange, // name
		"topic",      // type
		true,         // durable
		false,        // auto-deleted
		false,        // internal
		false,        // noWait
		nil,          // arguments
	); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("Exchange Declare: %w", err)
	}

	return &AMQPWriter{conn: conn, channel: channel, exchange: cfg.Exchange, routingKey: cfg.RoutingKey}, nil
}

func (w *AMQPWriter) Name() string { return "amqp" }

func (w *AMQPWriter) Write(report *model.Report) error {
	body, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}

	err = w.channel.Publish(
		w.exchange,   // publish to an exchange
		w.routingKey, // routing key
		false,        // mandatory
		false,        // immediate
		amqp.Publishing{
			Timestamp:    time.Now(),
			DeliveryMode: amqp.Persistent,
			ContentType:  "application/json",
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("Exchange Publish: %w", err)
	}
	log.Debugf("published report of %d bytes to %q", len(body), w.exchange)
	return nil
}

func (w *AMQPWriter) Close() error {
	return w.conn.Close()
}
