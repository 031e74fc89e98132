package queue

import (
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/iliyamo/flash-sale/internal/config"
)

// declareTopology creates the direct exchange and one durable queue per
// partition.  Every declaration is idempotent, so both the publisher and
// each consumer call it on (re)connect.
func declareTopology(ch *amqp.Channel, cfg config.RabbitConfig) error {
	if err := ch.ExchangeDeclare(
		cfg.Exchange, // name
		"direct",     // kind
		true,         // durable
		false,        // autoDelete
		false,        // internal
		false,        // noWait
		nil,          // args
	); err != nil {
		return fmt.Errorf("exchange declare: %w", err)
	}
	for p := 0; p < cfg.Partitions; p++ {
		name := partitionName(cfg.QueuePrefix, p)
		if _, err := ch.QueueDeclare(name, true, false, false, false, nil); err != nil {
			return fmt.Errorf("queue declare %s: %w", name, err)
		}
		if err := ch.QueueBind(name, name, cfg.Exchange, false, nil); err != nil {
			return fmt.Errorf("queue bind %s: %w", name, err)
		}
	}
	return nil
}
