//go:build opcua

package opcua

import (
	"context"
	"fmt"

	"github.com/gopcua/opcua"
	"github.com/gopcua/opcua/ua"

	"github.com/icsnexus/otcollector/models"
)

func newClientImpl() client {
	return &realClient{}
}

// realClient wraps github.com/gopcua/opcua, built only when the "opcua"
// build tag is set — the real protocol dependency is otherwise excluded
// from the default build.
type realClient struct {
	conn      *opcua.Client
	connected bool
}

func securityModeString(mode models.OPCUASecurityMode) string {
	switch mode {
	case models.OPCUASecurityModeSign:
		return "Sign"
	case models.OPCUASecurityModeSignAndEncrypt:
		return "SignAndEncrypt"
	default:
		return "None"
	}
}

func (c *realClient) Connect(ctx context.Context, endpointURL string, mode models.OPCUASecurityMode, policy string) error {
	opts := []opcua.Option{
		opcua.SecurityModeString(securityModeString(mode)),
	}
	if policy != "" {
		opts = append(opts, opcua.SecurityPolicy(policy))
	}

	cli, err := opcua.NewClient(endpointURL, opts...)
	if err != nil {
		return fmt.Errorf("opcua: new client: %w", err)
	}
	if err := cli.Connect(ctx); err != nil {
		return fmt.Errorf("opcua: connect %s: %w", endpointURL, err)
	}
	c.conn = cli
	c.connected = true
	return nil
}

func (c *realClient) ReadNodes(ctx context.Context, nodeIDs []string) (map[string]interface{}, error) {
	if c.conn == nil {
		return nil, fmt.Errorf("opcua: not connected")
	}

	readValueIDs := make([]*ua.ReadValueID, 0, len(nodeIDs))
	parsed := make([]string, 0, len(nodeIDs))
	for _, id := range nodeIDs {
		nodeID, err := ua.ParseNodeID(id)
		if err != nil {
			continue
		}
		readValueIDs = append(readValueIDs, &ua.ReadValueID{NodeID: nodeID})
		parsed = append(parsed, id)
	}

	req := &ua.ReadRequest{
		MaxAge:             2000,
		NodesToRead:        readValueIDs,
		TimestampsToReturn: ua.TimestampsToReturnBoth,
	}
	resp, err := c.conn.Read(ctx, req)
	if err != nil {
		c.connected = false
		return nil, fmt.Errorf("opcua: read: %w", err)
	}

	values := make(map[string]interface{}, len(parsed))
	for i, result := range resp.Results {
		if i >= len(parsed) {
			break
		}
		if result.Value != nil {
			values[parsed[i]] = result.Value.Value()
		}
	}
	return values, nil
}

func (c *realClient) Close() error {
	if c.conn == nil {
		return nil
	}
	c.connected = false
	return c.conn.Close(context.Background())
}

func (c *realClient) Connected() bool {
	return c.connected
}
