// ABOUTME: Adapter exposing the gateway client through the Sender interface.
// ABOUTME: Narrows the concrete *gateway.Stream to the ChunkStream the coordinator uses.

package session

import (
	"context"

	"github.com/lifeos/companion/internal/agents"
	"github.com/lifeos/companion/internal/gateway"
)

// gatewaySender adapts *gateway.Client to Sender. The indirection exists
// because SendStream returns a concrete *gateway.Stream.
type gatewaySender struct {
	client *gateway.Client
}

// NewGatewaySender wraps a gateway client for use by coordinators.
func NewGatewaySender(client *gateway.Client) Sender {
	return &gatewaySender{client: client}
}

func (g *gatewaySender) Send(ctx context.Context, agent agents.Config, message string) (string, error) {
	return g.client.Send(ctx, agent, message)
}

func (g *gatewaySender) SendStream(ctx context.Context, agent agents.Config, message string) (ChunkStream, error) {
	return g.client.SendStream(ctx, agent, message)
}

func (g *gatewaySender) Ping(ctx context.Context) bool {
	return g.client.Ping(ctx)
}
