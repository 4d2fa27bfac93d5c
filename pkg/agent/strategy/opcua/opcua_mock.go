//go:build !opcua

package opcua

import (
	"context"

	"github.com/icsnexus/otcollector/models"
)

func newClientImpl() client {
	return &mockClient{}
}

// mockClient substitutes deterministic records preserving the real client's
// shape, so the pipeline downstream of the strategy is exercised identically
// whether or not the real OPC-UA dependency is compiled in.
type mockClient struct {
	connected bool
}

func (c *mockClient) Connect(ctx context.Context, endpointURL string, mode models.OPCUASecurityMode, policy string) error {
	c.connected = true
	return nil
}

func (c *mockClient) ReadNodes(ctx context.Context, nodeIDs []string) (map[string]interface{}, error) {
	values := make(map[string]interface{}, len(nodeIDs))
	for _, id := range nodeIDs {
		values[id] = 0.0
	}
	return values, nil
}

func (c *mockClient) Close() error {
	c.connected = false
	return nil
}

func (c *mockClient) Connected() bool {
	return c.connected
}
