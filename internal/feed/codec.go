// Package feed holds the snapshot encoding shared by the network feeds.
//
// Every message on a feed is one whole order record encoded as JSON. Enum
// text the decoder does not recognize degrades to the unset variant, the
// same as everywhere else an order is read.
package feed

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/roach88/pickup/internal/order"
)

// ErrNoID is returned when a decoded snapshot has no order id.
var ErrNoID = errors.New("feed: snapshot has no id")

// Encode serializes a whole snapshot.
func Encode(o order.Order) ([]byte, error) {
	if o.ID == "" {
		return nil, ErrNoID
	}
	data, err := json.Marshal(o)
	if err != nil {
		return nil, fmt.Errorf("encode snapshot %s: %w", o.ID, err)
	}
	return data, nil
}

// Decode parses a snapshot message.
func Decode(data []byte) (order.Order, error) {
	var o order.Order
	if err := json.Unmarshal(data, &o); err != nil {
		return order.Order{}, fmt.Errorf("decode snapshot: %w", err)
	}
	if o.ID == "" {
		return order.Order{}, ErrNoID
	}
	return o, nil
}
