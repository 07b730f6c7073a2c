package clientmqtt

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"artnetctl/internal/logger"
	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeMessage struct {
	topic   string
	payload []byte
}

func (m fakeMessage) Duplicate() bool   { return false }
func (m fakeMessage) Qos() byte         { return 0 }
func (m fakeMessage) Retained() bool    { return false }
func (m fakeMessage) Topic() string     { return m.topic }
func (m fakeMessage) MessageID() uint16 { return 1 }
func (m fakeMessage) Payload() []byte   { return m.payload }
func (m fakeMessage) Ack()              {}

type doneToken struct{ done chan struct{} }

func newDoneToken() *doneToken {
	t := &doneToken{done: make(chan struct{})}
	close(t.done)
	return t
}

func (t *doneToken) Wait() bool                     { return true }
func (t *doneToken) WaitTimeout(time.Duration) bool { return true }
func (t *doneToken) Done() <-chan struct{}          { return t.done }
func (t *doneToken) Error() error                   { return nil }

type published struct {
	topic    string
	retained bool
	payload  []byte
}

// fakeClient implements the parts of mqtt.Client the bridge uses.
type fakeClient struct {
	mqtt.Client
	mu        sync.Mutex
	published []published
}

func (f *fakeClient) IsConnected() bool { return true }

func (f *fakeClient) Publish(topic string, _ byte, retained bool, payload interface{}) mqtt.Token {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published = append(f.published, published{topic: topic, retained: retained, payload: payload.([]byte)})
	return newDoneToken()
}

func TestParseTopic(t *testing.T) {
	addr, err := parseTopic("artnet", "artnet/1/2/3/set")
	require.NoError(t, err)
	assert.Equal(t, uint16(0x0123), addr)

	for _, topic := range []string{
		"other/1/2/3/set",
		"artnet/1/2/3",
		"artnet/1/2/3/get",
		"artnet/128/0/0/set",
		"artnet/0/16/0/set",
		"artnet/0/0/x/set",
	} {
		_, err := parseTopic("artnet", topic)
		assert.Error(t, err, topic)
	}
}

func TestSetTopic(t *testing.T) {
	c := NewClient(logger.Discard(), MQTTConf{})
	assert.Equal(t, "artnet/1/2/3/set", c.SetTopic(0x0123))
	addr, err := parseTopic("artnet", c.SetTopic(0x7fff))
	require.NoError(t, err)
	assert.Equal(t, uint16(0x7fff), addr)
}

func TestSendDataToArtNet(t *testing.T) {
	ch := make(chan DataCh, 1)
	c := NewClient(logger.Discard(), MQTTConf{TopicPrefix: "lights"})
	c.ctx = context.Background()
	c.dmxDataCh = ch

	c.sendDataToArtNet(fakeMessage{
		topic:   "lights/0/0/1/set",
		payload: []byte(`[{"channel":0,"value":255},{"channel":3,"value":7}]`),
	})
	select {
	case d := <-ch:
		assert.Equal(t, uint16(1), d.Addr)
		assert.Equal(t, Payload{{Channel: 0, Value: 255}, {Channel: 3, Value: 7}}, d.Data)
	default:
		t.Fatal("no data forwarded")
	}

	c.sendDataToArtNet(fakeMessage{topic: "lights/0/0/1/set", payload: []byte("{")})
	c.sendDataToArtNet(fakeMessage{topic: "lights/nope", payload: []byte("[]")})
	assert.Empty(t, ch)
}

func TestPublishNode(t *testing.T) {
	fc := &fakeClient{}
	c := NewClient(logger.Discard(), MQTTConf{})
	c.ctx = context.Background()
	c.client = fc

	c.PublishNode(NodeInfo{IP: "10.0.0.7", ShortName: "rack", Outputs: []uint16{1, 2}})

	fc.mu.Lock()
	defer fc.mu.Unlock()
	require.Len(t, fc.published, 1)
	p := fc.published[0]
	assert.Equal(t, "artnet/nodes/10.0.0.7", p.topic)
	assert.True(t, p.retained)

	var info NodeInfo
	require.NoError(t, json.Unmarshal(p.payload, &info))
	assert.Equal(t, "rack", info.ShortName)
	assert.Equal(t, []uint16{1, 2}, info.Outputs)
}

func TestPublishNodeWithoutClient(t *testing.T) {
	c := NewClient(logger.Discard(), MQTTConf{})
	assert.NotPanics(t, func() { c.PublishNode(NodeInfo{IP: "10.0.0.7"}) })
}
