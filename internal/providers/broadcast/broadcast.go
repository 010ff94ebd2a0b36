// Package broadcast implements named broadcast channels between tabs.
//
// A Bus carries messages for any number of named channels. A Channel binds
// a bus, a channel name and the local tab: like the browser's
// BroadcastChannel, a message is never delivered back to the tab that
// posted it.
package broadcast

import (
	"context"
	"errors"

	"github.com/GriffinCanCode/AgentOS/shell/internal/shared/id"
)

// ErrClosed is returned after the bus is closed
var ErrClosed = errors.New("broadcast bus closed")

// Message is one posted payload
type Message struct {
	Channel string   `json:"channel"`
	Sender  id.TabID `json:"sender"`
	Data    []byte   `json:"data"`
}

// Bus transports messages for named channels
type Bus interface {
	Publish(ctx context.Context, msg Message) error
	// Subscribe streams messages on channel until ctx is done
	Subscribe(ctx context.Context, channel string) (<-chan Message, error)
	Close() error
}

// Channel is one tab's handle on a named channel
type Channel struct {
	bus  Bus
	name string
	tab  id.TabID
}

// Open binds a named channel to a tab
func Open(bus Bus, name string, tab id.TabID) *Channel {
	return &Channel{bus: bus, name: name, tab: tab}
}

// Name returns the channel name
func (c *Channel) Name() string {
	return c.name
}

// Post sends data to every other tab listening on the channel
func (c *Channel) Post(ctx context.Context, data []byte) error {
	return c.bus.Publish(ctx, Message{Channel: c.name, Sender: c.tab, Data: data})
}

// Messages streams messages posted by other tabs until ctx is done
func (c *Channel) Messages(ctx context.Context) (<-chan Message, error) {
	in, err := c.bus.Subscribe(ctx, c.name)
	if err != nil {
		return nil, err
	}

	out := make(chan Message, cap(in))
	go func() {
		defer close(out)
		for msg := range in {
			if msg.Sender == c.tab {
				continue
			}
			select {
			case out <- msg:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}
