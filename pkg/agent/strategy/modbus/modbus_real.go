//go:build modbus

package modbus

import (
	"fmt"

	"github.com/goburrow/modbus"

	"github.com/icsnexus/otcollector/models"
)

func newClientImpl() client {
	return &realClient{}
}

// realClient wraps github.com/goburrow/modbus, built only when the
// "modbus" build tag is set.
type realClient struct {
	tcpHandler *modbus.TCPClientHandler
	rtuHandler *modbus.RTUClientHandler
	cli        modbus.Client
	connected  bool
}

func (c *realClient) Connect(address string, protocol string, unitID byte) error {
	switch protocol {
	case "rtu":
		h := modbus.NewRTUClientHandler(address)
		h.SlaveId = unitID
		if err := h.Connect(); err != nil {
			return fmt.Errorf("modbus: rtu connect %s: %w", address, err)
		}
		c.rtuHandler = h
		c.cli = modbus.NewClient(h)
	default:
		h := modbus.NewTCPClientHandler(address)
		h.SlaveId = unitID
		if err := h.Connect(); err != nil {
			return fmt.Errorf("modbus: tcp connect %s: %w", address, err)
		}
		c.tcpHandler = h
		c.cli = modbus.NewClient(h)
	}
	c.connected = true
	return nil
}

func (c *realClient) ReadRegister(reg models.ModbusRegister) (interface{}, error) {
	if c.cli == nil {
		return nil, fmt.Errorf("modbus: not connected")
	}

	var raw []byte
	var err error
	switch reg.Kind {
	case "input":
		raw, err = c.cli.ReadInputRegisters(reg.Address, reg.Quantity)
	case "coil":
		raw, err = c.cli.ReadCoils(reg.Address, reg.Quantity)
	case "discrete":
		raw, err = c.cli.ReadDiscreteInputs(reg.Address, reg.Quantity)
	default:
		raw, err = c.cli.ReadHoldingRegisters(reg.Address, reg.Quantity)
	}
	if err != nil {
		c.connected = false
		return nil, fmt.Errorf("modbus: read %s: %w", reg.Name, err)
	}
	return raw, nil
}

func (c *realClient) Close() error {
	c.connected = false
	if c.tcpHandler != nil {
		return c.tcpHandler.Close()
	}
	if c.rtuHandler != nil {
		return c.rtuHandler.Close()
	}
	return nil
}

func (c *realClient) Connected() bool {
	return c.connected
}
