package mq

import (
	"context"
	"fmt"
	"net/url"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Connection is the broker connection shared by publisher channels.
type Connection struct {
	conn *amqp.Connection
	once sync.Once
}

// dialConfig names the connection after the service so it can be told apart
// in the broker's management UI.
func dialConfig(service string) amqp.Config {
	props := amqp.NewConnectionProperties()
	props.SetClientConnectionName(service)
	return amqp.Config{Properties: props}
}

// brokerHost is the part of the broker URL that is safe to log.
func brokerHost(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return "<unparsed url>"
	}
	return u.Host + u.Path
}

// NewConnection dials the broker. The connection is closed when the app stops.
func NewConnection(lc fx.Lifecycle, logger *zap.Logger, rawURL, service string) (*Connection, error) {
	broker := zap.String("broker", brokerHost(rawURL))

	conn, err := amqp.DialConfig(rawURL, dialConfig(service))
	if err != nil {
		logger.Error("event broker unreachable", broker, zap.Error(err))
		return nil, fmt.Errorf("[RABBITMQ CONNECTION FAILED] %s refused the connection, check RABBITMQ_URL and its credentials: %w", brokerHost(rawURL), err)
	}
	logger.Info("connected to event broker", broker, zap.String("connection_name", service))

	c := &Connection{conn: conn}
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			if err := c.Close(); err != nil {
				logger.Error("failed to close event broker connection", zap.Error(err))
				return err
			}
			logger.Info("event broker connection closed")
			return nil
		},
	})

	return c, nil
}

// Channel opens a channel on the connection
func (c *Connection) Channel() (*amqp.Channel, error) {
	return c.conn.Channel()
}

// Close closes the underlying connection. Later calls are no-ops.
func (c *Connection) Close() error {
	var err error
	c.once.Do(func() {
		err = c.conn.Close()
	})
	return err
}
