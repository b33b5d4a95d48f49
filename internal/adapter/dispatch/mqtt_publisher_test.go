package dispatch

import (
	"context"
	"os"
	"strconv"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func brokerOptions(t *testing.T) MQTTOptions {
	broker := os.Getenv("MQTT_BROKER")
	if broker == "" {
		broker = "tcp://localhost"
	}
	port := 1883
	if p, err := strconv.Atoi(os.Getenv("MQTT_PORT")); err == nil {
		port = p
	}
	return MQTTOptions{Broker: broker, Port: port, QoS: 1, ConnectTimeout: time.Second}
}

func getPublisher(t *testing.T) *MQTTPublisher {
	p := NewMQTTPublisher(brokerOptions(t))
	if err := p.Connect(context.Background()); err != nil {
		t.Skipf("MQTT broker not available: %v", err)
	}
	t.Cleanup(p.Close)
	return p
}

func TestPublish_NotConnected(t *testing.T) {
	p := NewMQTTPublisher(MQTTOptions{Broker: "tcp://127.0.0.1", Port: 1, ConnectTimeout: 100 * time.Millisecond})

	err := p.Publish(context.Background(), "vending/dispense", []byte("A1"))
	require.Error(t, err)
}

func TestCheck_UnreachableBroker(t *testing.T) {
	p := NewMQTTPublisher(MQTTOptions{Broker: "tcp://127.0.0.1", Port: 1, ConnectTimeout: 100 * time.Millisecond})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.Error(t, p.Check(ctx))
}

func TestPublish_RoundTrip(t *testing.T) {
	p := getPublisher(t)
	require.NoError(t, p.Check(context.Background()))

	opts := brokerOptions(t)
	sub := NewMQTTPublisher(opts)
	require.NoError(t, sub.Connect(context.Background()))
	defer sub.Close()

	topic := "vending/test/" + strconv.FormatInt(time.Now().UnixNano(), 10)
	got := make(chan string, 1)
	token := sub.client.Subscribe(topic, 1, func(_ mqtt.Client, msg mqtt.Message) {
		got <- string(msg.Payload())
	})
	require.True(t, token.WaitTimeout(time.Second))
	require.NoError(t, token.Error())

	require.NoError(t, p.Publish(context.Background(), topic, []byte("A1")))

	select {
	case payload := <-got:
		assert.Equal(t, "A1", payload)
	case <-time.After(3 * time.Second):
		t.Fatal("message not delivered")
	}
}
