// Package bus provides NATS connectivity for the service: the shared
// connection, the command server, and the product validation client.
package bus

import (
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// Connect establishes the process-wide NATS connection shared by the RPC
// server and the product validator client. The connection reconnects
// indefinitely; handlers observe outages as request errors, not as a dead
// process.
func Connect(servers []string, name string, lg *zap.Logger) (*nats.Conn, error) {
	conn, err := nats.Connect(strings.Join(servers, ","),
		nats.Name(name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			lg.Warn("NATS disconnected", zap.Error(err))
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			lg.Info("NATS reconnected", zap.String("url", c.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, errors.Wrap(err, "connect nats")
	}
	return conn, nil
}
