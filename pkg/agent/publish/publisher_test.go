package publish

import (
	"context"
	"errors"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/icsnexus/otcollector/models"
)

// fakeToken is a minimal mqtt.Token for tests.
type fakeToken struct {
	err error
}

func (t *fakeToken) Wait() bool                     { return true }
func (t *fakeToken) WaitTimeout(time.Duration) bool  { return true }
func (t *fakeToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}
func (t *fakeToken) Error() error { return t.err }

// fakeClient is a minimal mqtt.Client stub for tests; only the methods
// Publisher actually calls are meaningfully implemented.
type fakeClient struct {
	open            bool
	connectErr      error
	publishErr      error
	publishedTo     string
	published       []byte
	disconnectCalls int
}

func (c *fakeClient) IsConnected() bool      { return c.open }
func (c *fakeClient) IsConnectionOpen() bool { return c.open }
func (c *fakeClient) Connect() mqtt.Token {
	if c.connectErr == nil {
		c.open = true
	}
	return &fakeToken{err: c.connectErr}
}
func (c *fakeClient) Disconnect(quiesce uint) {
	c.open = false
	c.disconnectCalls++
}
func (c *fakeClient) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	c.publishedTo = topic
	if b, ok := payload.([]byte); ok {
		c.published = b
	}
	return &fakeToken{err: c.publishErr}
}
func (c *fakeClient) Subscribe(topic string, qos byte, callback mqtt.MessageHandler) mqtt.Token {
	return &fakeToken{}
}
func (c *fakeClient) SubscribeMultiple(filters map[string]byte, callback mqtt.MessageHandler) mqtt.Token {
	return &fakeToken{}
}
func (c *fakeClient) Unsubscribe(topics ...string) mqtt.Token { return &fakeToken{} }
func (c *fakeClient) AddRoute(topic string, callback mqtt.MessageHandler) {}
func (c *fakeClient) OptionsReader() mqtt.ClientOptionsReader {
	return mqtt.ClientOptionsReader{}
}

func TestPublisher_PublishSuccess(t *testing.T) {
	client := &fakeClient{open: true}
	p := New(Config{BrokerURL: "tcp://localhost:1883", Topic: "test/topic"}, client, nil, nil)

	envelope := models.Envelope{Collector: "snmp", Source: models.SourceSNMP, Count: 1}
	if err := p.Publish(context.Background(), envelope); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	if client.publishedTo != "test/topic" {
		t.Fatalf("publishedTo = %q, want test/topic", client.publishedTo)
	}
}

func TestPublisher_FallsBackWhenDisconnected(t *testing.T) {
	client := &fakeClient{open: false}
	var fallbackCalled bool
	localEmit := func(data []byte) error {
		fallbackCalled = true
		return nil
	}
	p := New(Config{BrokerURL: "tcp://localhost:1883"}, client, localEmit, nil)

	if err := p.Publish(context.Background(), models.Envelope{}); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	if !fallbackCalled {
		t.Fatal("expected local fallback to be invoked when disconnected")
	}
}

func TestPublisher_FallsBackOnPublishError(t *testing.T) {
	client := &fakeClient{open: true, publishErr: errors.New("broker rejected")}
	var fallbackCalled bool
	localEmit := func(data []byte) error {
		fallbackCalled = true
		return nil
	}
	p := New(Config{BrokerURL: "tcp://localhost:1883"}, client, localEmit, nil)

	if err := p.Publish(context.Background(), models.Envelope{}); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	if !fallbackCalled {
		t.Fatal("expected local fallback to be invoked on publish error")
	}
}

func TestPublisher_FallbackFailureIsReturned(t *testing.T) {
	client := &fakeClient{open: false}
	localEmit := func(data []byte) error { return errors.New("disk full") }
	p := New(Config{BrokerURL: "tcp://localhost:1883"}, client, localEmit, nil)

	if err := p.Publish(context.Background(), models.Envelope{}); err == nil {
		t.Fatal("expected error when both MQTT and local fallback fail")
	}
}

func TestPublisher_Connected(t *testing.T) {
	client := &fakeClient{open: true}
	p := New(Config{BrokerURL: "tcp://localhost:1883"}, client, nil, nil)
	if !p.Connected() {
		t.Fatal("Connected() = false, want true")
	}
}

func TestPublisher_ConnectOpensClient(t *testing.T) {
	client := &fakeClient{open: false}
	p := New(Config{BrokerURL: "tcp://localhost:1883"}, client, nil, nil)

	if err := p.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	if !p.Connected() {
		t.Fatal("expected Connected() = true after Connect()")
	}
}

func TestPublisher_ConnectErrorIsReturned(t *testing.T) {
	client := &fakeClient{open: false, connectErr: errors.New("refused")}
	p := New(Config{BrokerURL: "tcp://localhost:1883"}, client, nil, nil)

	if err := p.Connect(context.Background()); err == nil {
		t.Fatal("expected Connect() to return an error")
	}
}

func TestPublisher_ConnectNilClientIsNoop(t *testing.T) {
	p := New(Config{}, nil, nil, nil)
	if err := p.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error = %v, want nil for unconfigured client", err)
	}
}

func TestPublisher_DisconnectClosesClient(t *testing.T) {
	client := &fakeClient{open: true}
	p := New(Config{BrokerURL: "tcp://localhost:1883"}, client, nil, nil)

	p.Disconnect()
	if client.disconnectCalls != 1 {
		t.Fatalf("disconnectCalls = %d, want 1", client.disconnectCalls)
	}
	if p.Connected() {
		t.Fatal("expected Connected() = false after Disconnect()")
	}
}

func TestPublisher_DisconnectNilClientIsNoop(t *testing.T) {
	p := New(Config{}, nil, nil, nil)
	p.Disconnect()
}
