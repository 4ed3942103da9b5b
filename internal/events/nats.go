package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
)

// NATS publishes cart events on subject "cart.<cartId>.changed" and catalog
// events on "catalog.changed".
type NATS struct {
	conn   *nats.Conn
	logger zerolog.Logger
}

func ConnectNATS(url string, logger zerolog.Logger) (*NATS, error) {
	conn, err := nats.Connect(url,
		nats.Name("storefront"),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn().Err(err).Msg("nats disconnected")
			}
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return &NATS{conn: conn, logger: logger}, nil
}

func Subject(cartID string) string {
	if cartID == CatalogKey {
		return "catalog.changed"
	}
	return "cart." + cartID + ".changed"
}

func (n *NATS) Publish(_ context.Context, ev CartChanged) error {
	raw, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return n.conn.Publish(Subject(ev.CartID), raw)
}

func (n *NATS) Subscribe(cartID string, fn func(CartChanged)) (func(), error) {
	sub, err := n.conn.Subscribe(Subject(cartID), func(msg *nats.Msg) {
		var ev CartChanged
		if err := json.Unmarshal(msg.Data, &ev); err != nil {
			n.logger.Warn().Err(err).Str("subject", msg.Subject).Msg("drop undecodable cart event")
			return
		}
		fn(ev)
	})
	if err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", Subject(cartID), err)
	}
	return func() {
		if err := sub.Unsubscribe(); err != nil && err != nats.ErrConnectionClosed {
			n.logger.Debug().Err(err).Str("cart_id", cartID).Msg("unsubscribe")
		}
	}, nil
}

func (n *NATS) Close() error {
	return n.conn.Drain()
}
