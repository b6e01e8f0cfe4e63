package mirror

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// ErrConnectTimeout is returned by Dial when the broker does not answer in
// time.
var ErrConnectTimeout = errors.New("mirror: mqtt connect timed out")

// onlineTopic carries the retained presence flag; the broker publishes the
// will when gsmctl disappears.
const onlineTopic = "online"

// ClientOptions configures the broker connection.
type ClientOptions struct {
	Broker       string
	ClientID     string
	Username     string
	Password     string //nolint:gosec // configuration field, not a hardcoded secret
	Prefix       string
	QoS          byte
	ConnectWait  time.Duration // Defaults to 10s.
	Logger       *slog.Logger
}

// Client is a Publisher backed by an MQTT broker.
type Client struct {
	c      mqtt.Client
	prefix string
	qos    byte
}

// Dial connects to the broker and marks the client online.
func Dial(ctx context.Context, opts ClientOptions) (*Client, error) {
	log := opts.Logger
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	wait := opts.ConnectWait
	if wait <= 0 {
		wait = 10 * time.Second
	}
	prefix := opts.Prefix
	if prefix == "" {
		prefix = "gsmgate"
	}
	presence := prefix + "/" + onlineTopic

	mo := mqtt.NewClientOptions().
		AddBroker(opts.Broker).
		SetClientID(opts.ClientID).
		SetCleanSession(true).
		SetKeepAlive(30*time.Second).
		SetPingTimeout(10*time.Second).
		SetAutoReconnect(true).
		SetConnectRetryInterval(5*time.Second).
		SetWill(presence, "false", opts.QoS, true)

	if opts.Username != "" {
		mo.SetUsername(opts.Username)
	}
	if opts.Password != "" {
		mo.SetPassword(opts.Password)
	}

	mo.OnConnect = func(c mqtt.Client) {
		log.Info("mqtt connected", "broker", opts.Broker)
		c.Publish(presence, opts.QoS, true, "true")
	}
	mo.OnConnectionLost = func(_ mqtt.Client, err error) {
		log.Warn("mqtt connection lost", "error", err)
	}

	c := mqtt.NewClient(mo)
	if err := awaitToken(ctx, c.Connect(), wait); err != nil {
		return nil, fmt.Errorf("mirror: connect %s: %w", opts.Broker, err)
	}

	return &Client{c: c, prefix: prefix, qos: opts.QoS}, nil
}

// Publish implements Publisher.
func (c *Client) Publish(ctx context.Context, topic string, qos byte, retained bool, payload []byte) error {
	return awaitToken(ctx, c.c.Publish(topic, qos, retained, payload), 0)
}

// Close marks the client offline and disconnects.
func (c *Client) Close() {
	tok := c.c.Publish(c.prefix+"/"+onlineTopic, c.qos, true, "false")
	tok.WaitTimeout(time.Second)
	c.c.Disconnect(250)
}

// awaitToken waits for tok, ctx or, when positive, the timeout.
func awaitToken(ctx context.Context, tok mqtt.Token, timeout time.Duration) error {
	var expired <-chan time.Time
	if timeout > 0 {
		t := time.NewTimer(timeout)
		defer t.Stop()
		expired = t.C
	}

	select {
	case <-tok.Done():
		return tok.Error()
	case <-ctx.Done():
		return ctx.Err()
	case <-expired:
		return ErrConnectTimeout
	}
}
