package kafka

import (
	"context"
	"errors"
	"fmt"

	"github.com/segmentio/kafka-go"

	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/config"
)

// Ping succeeds when any configured broker accepts a connection.
func Ping(ctx context.Context, cfg config.KafkaConfig) error {
	if !cfg.Enabled() {
		return errors.New("no kafka brokers configured")
	}
	var lastErr error
	for _, broker := range cfg.Brokers {
		conn, err := kafka.DialContext(ctx, "tcp", broker)
		if err != nil {
			lastErr = err
			continue
		}
		conn.Close()
		return nil
	}
	return fmt.Errorf("dialing kafka: %w", lastErr)
}
