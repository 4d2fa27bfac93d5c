//go:build !modbus

package modbus

import "github.com/icsnexus/otcollector/models"

func newClientImpl() client {
	return &mockClient{}
}

// mockClient substitutes deterministic register reads preserving the real
// client's shape.
type mockClient struct {
	connected bool
}

func (c *mockClient) Connect(address string, protocol string, unitID byte) error {
	c.connected = true
	return nil
}

func (c *mockClient) ReadRegister(reg models.ModbusRegister) (interface{}, error) {
	return uint16(0), nil
}

func (c *mockClient) Close() error {
	c.connected = false
	return nil
}

func (c *mockClient) Connected() bool {
	return c.connected
}
