package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
)

var ErrPublishTimeout = errors.New("mqtt publish not acknowledged in time")

type MQTTOptions struct {
	Broker         string // tcp://host
	Port           int
	ClientID       string
	Username       string
	Password       string
	QoS            byte
	KeepAlive      time.Duration
	ConnectTimeout time.Duration
	Quiesce        uint // milliseconds
}

// MQTTPublisher is the port.Dispatcher for the dispenser controller. The
// client reconnects on its own; Check forces a connect when it is down.
type MQTTPublisher struct {
	client  mqtt.Client
	qos     byte
	timeout time.Duration
	quiesce uint
}

func NewMQTTPublisher(o MQTTOptions) *MQTTPublisher {
	mqtt.ERROR = log.New(os.Stderr, "mqtt.error ", 0)

	if o.ClientID == "" {
		o.ClientID = "vending-" + uuid.NewString()[:8]
	}
	if o.KeepAlive <= 0 {
		o.KeepAlive = 60 * time.Second
	}
	if o.ConnectTimeout <= 0 {
		o.ConnectTimeout = 5 * time.Second
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("%s:%d", o.Broker, o.Port))
	opts.SetClientID(o.ClientID)
	opts.SetKeepAlive(o.KeepAlive)
	opts.SetConnectTimeout(o.ConnectTimeout)
	opts.SetAutoReconnect(true)
	opts.SetCleanSession(true)
	opts.Username = o.Username
	opts.Password = o.Password

	opts.OnConnect = func(mqtt.Client) {
		log.Printf("mqtt connected to %s:%d", o.Broker, o.Port)
	}
	opts.OnConnectionLost = func(client mqtt.Client, err error) {
		log.Printf("mqtt connection lost: %v", err)
	}

	return &MQTTPublisher{
		client:  mqtt.NewClient(opts),
		qos:     o.QoS,
		timeout: o.ConnectTimeout,
		quiesce: o.Quiesce,
	}
}

func (p *MQTTPublisher) Connect(ctx context.Context) error {
	return wait(ctx, p.client.Connect(), p.timeout)
}

// Check reconnects when the connection is down. Auto-reconnect only covers
// connections that were up once.
func (p *MQTTPublisher) Check(ctx context.Context) error {
	if p.client.IsConnectionOpen() {
		return nil
	}
	return p.Connect(ctx)
}

func (p *MQTTPublisher) Publish(ctx context.Context, topic string, payload []byte) error {
	if !p.client.IsConnectionOpen() {
		return errors.New("mqtt not connected")
	}
	return wait(ctx, p.client.Publish(topic, p.qos, false, payload), p.timeout)
}

func (p *MQTTPublisher) Close() {
	p.client.Disconnect(p.quiesce)
}

// wait blocks until token completes, ctx is done or timeout elapses.
func wait(ctx context.Context, token mqtt.Token, timeout time.Duration) error {
	if deadline, ok := ctx.Deadline(); ok {
		if d := time.Until(deadline); d < timeout {
			timeout = d
		}
	}
	if timeout <= 0 || !token.WaitTimeout(timeout) {
		if err := ctx.Err(); err != nil {
			return err
		}
		return ErrPublishTimeout
	}
	return token.Error()
}
