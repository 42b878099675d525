// Package mqttcontrol provides a control.Link backed by an MQTT broker,
// letting the simulation controller live in a separate process from the
// client: commands are published to one topic, events to another.
package mqttcontrol

import (
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/relaynet/mediaclient/control"
)

const (
	// DefaultCommandTopic is the topic the controller publishes commands
	// to and the client subscribes on.
	DefaultCommandTopic = "mediaclient/commands"
	// DefaultEventTopic is the topic the client publishes events to.
	DefaultEventTopic = "mediaclient/events"
)

// Config holds the configuration for an MQTT-backed control.Link.
type Config struct {
	// Broker is the MQTT broker URL (e.g. "tcp://broker.example.com:1883").
	Broker string
	// Username/Password authenticate against the broker. Optional.
	Username string
	Password string
	// UseTLS enables TLS for the MQTT connection.
	UseTLS bool
	// ClientID is the MQTT client identifier. If empty, a random one is
	// generated.
	ClientID string
	// CommandTopic/EventTopic override the default topic names.
	CommandTopic string
	EventTopic   string
	// Logger is the logger to use. If nil, slog.Default() is used.
	Logger *slog.Logger
}

// Link implements control.Link over an MQTT broker connection.
type Link struct {
	cfg    Config
	log    *slog.Logger
	client paho.Client

	mu        sync.RWMutex
	connected bool

	commands chan control.Command
}

// New returns a Link configured against cfg. Call Start to actually
// connect to the broker.
func New(cfg Config) *Link {
	if cfg.CommandTopic == "" {
		cfg.CommandTopic = DefaultCommandTopic
	}
	if cfg.EventTopic == "" {
		cfg.EventTopic = DefaultEventTopic
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Link{
		cfg:      cfg,
		log:      cfg.Logger.WithGroup("mqttcontrol"),
		commands: make(chan control.Command, 256),
	}
}

// Start connects to the broker and subscribes to the command topic.
func (l *Link) Start() error {
	if l.cfg.Broker == "" {
		return errors.New("broker URL is required")
	}

	clientID := l.cfg.ClientID
	if clientID == "" {
		clientID = "mediaclient-" + randomString(16)
	}

	opts := paho.NewClientOptions().
		AddBroker(l.cfg.Broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetMaxReconnectInterval(2 * time.Minute).
		SetKeepAlive(60 * time.Second).
		SetPingTimeout(10 * time.Second).
		SetCleanSession(true).
		SetOrderMatters(false).
		SetOnConnectHandler(l.onConnected).
		SetConnectionLostHandler(l.onConnectionLost)

	if l.cfg.Username != "" {
		opts.SetUsername(l.cfg.Username)
	}
	if l.cfg.Password != "" {
		opts.SetPassword(l.cfg.Password)
	}
	if l.cfg.UseTLS {
		opts.SetTLSConfig(&tls.Config{MinVersion: tls.VersionTLS12})
	}

	l.client = paho.NewClient(opts)

	token := l.client.Connect()
	if !token.WaitTimeout(30 * time.Second) {
		return errors.New("connection timeout")
	}
	if token.Error() != nil {
		return fmt.Errorf("connecting to broker: %w", token.Error())
	}
	return nil
}

// Stop disconnects from the broker.
func (l *Link) Stop() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.client != nil {
		l.client.Disconnect(1000)
		l.connected = false
	}
	return nil
}

// IsConnected reports whether the broker connection is currently up.
func (l *Link) IsConnected() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.connected && l.client != nil && l.client.IsConnected()
}

// Commands returns the channel of decoded inbound commands.
func (l *Link) Commands() <-chan control.Command {
	return l.commands
}

// Emit encodes ev and publishes it to the event topic. A publish that
// fails or does not complete within 10 seconds is logged and dropped;
// the caller waits at most that long.
func (l *Link) Emit(ev control.Event) {
	if !l.IsConnected() {
		l.log.Warn("dropping event, not connected", "event", fmt.Sprintf("%T", ev))
		return
	}
	data, err := EncodeEvent(ev)
	if err != nil {
		l.log.Error("failed to encode event", "error", err)
		return
	}
	token := l.client.Publish(l.cfg.EventTopic, 0, false, data)
	if !token.WaitTimeout(10 * time.Second) {
		l.log.Error("timeout publishing event")
	} else if err := token.Error(); err != nil {
		l.log.Error("failed to publish event", "error", err)
	}
}

// Close disconnects from the broker and closes the commands channel.
func (l *Link) Close() error {
	err := l.Stop()
	close(l.commands)
	return err
}

func (l *Link) onConnected(client paho.Client) {
	l.mu.Lock()
	l.connected = true
	l.mu.Unlock()

	token := client.Subscribe(l.cfg.CommandTopic, 0, l.handleMessage)
	token.Wait()
	l.log.Info("connected to MQTT broker", "broker", l.cfg.Broker, "topic", l.cfg.CommandTopic)
}

func (l *Link) onConnectionLost(_ paho.Client, err error) {
	l.mu.Lock()
	l.connected = false
	l.mu.Unlock()
	l.log.Error("MQTT connection lost", "error", err)
}

func (l *Link) handleMessage(_ paho.Client, message paho.Message) {
	cmd, err := DecodeCommand(message.Payload())
	if err != nil {
		l.log.Debug("failed to decode command", "error", err)
		return
	}
	select {
	case l.commands <- cmd:
	default:
		l.log.Warn("dropping command, backlog full")
	}
}

func randomString(n int) string {
	const alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
	b := make([]byte, n)
	for i := range b {
		b[i] = alphabet[rand.IntN(len(alphabet))]
	}
	return string(b)
}
