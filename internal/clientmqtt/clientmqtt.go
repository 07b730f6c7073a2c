package clientmqtt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"artnetctl/internal/logger"
	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// ClientMQTT структура клиента MQTT.
type ClientMQTT struct {
	ctx       context.Context
	log       logger.Logger
	cfgClient MQTTConf
	client    mqtt.Client
	opts      *mqtt.ClientOptions
	dmxDataCh chan<- DataCh
}

// MQTTClient is a convenience interface to use within this application.
type MQTTClient interface {
	Start(ctx context.Context, dmxDataCh chan<- DataCh) error
	Stop() error
	PublishNode(info NodeInfo)
}

var _ MQTTClient = (*ClientMQTT)(nil)

// NewClient конструктор.
func NewClient(log logger.Logger, cfgClient MQTTConf) *ClientMQTT {
	if cfgClient.Schema == "" {
		cfgClient.Schema = "tcp"
	}
	if cfgClient.TopicPrefix == "" {
		cfgClient.TopicPrefix = "artnet"
	}
	return &ClientMQTT{
		log:       log,
		cfgClient: cfgClient,
	}
}

func (c *ClientMQTT) Start(ctx context.Context, dmxDataCh chan<- DataCh) error {
	if c.log.GetLevel() == "debug" || c.log.GetLevel() == "trace" {
		mqtt.ERROR = log.New(os.Stdout, "[ERROR] ", 0)
		mqtt.CRITICAL = log.New(os.Stdout, "[CRIT] ", 0)
		mqtt.WARN = log.New(os.Stdout, "[WARN]  ", 0)
	}

	c.ctx = ctx
	c.dmxDataCh = dmxDataCh

	c.opts = mqtt.NewClientOptions().
		AddBroker(fmt.Sprintf("%s://%s:%s", c.cfgClient.Schema, c.cfgClient.Host, c.cfgClient.Port)).
		SetUsername(c.cfgClient.User).
		SetPassword(c.cfgClient.Password).
		SetDefaultPublishHandler(c.messageHandler).
		SetOnConnectHandler(c.connectHandler).
		SetConnectionLostHandler(c.connectLostHandler).
		SetClientID(c.cfgClient.ClientID).
		SetOrderMatters(false).
		SetCleanSession(false).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetMaxReconnectInterval(5 * time.Second).
		SetKeepAlive(30 * time.Second)

	c.client = mqtt.NewClient(c.opts)

	token := c.client.Connect()
	select {
	case <-token.Done():
		if token.Error() != nil {
			return token.Error()
		}
	case <-c.ctx.Done():
		return errors.New("context canceled")
	}

	c.log.With(logger.Fields{"module": "mqtt"}).Infof("Status: %v", c.client.IsConnected())
	return nil
}

func (c *ClientMQTT) Stop() error {
	if c.client != nil && c.client.IsConnected() {
		c.client.Disconnect(500)
	}
	return nil
}

// SetTopic returns the topic that sets channels of the universe at addr.
func (c *ClientMQTT) SetTopic(addr uint16) string {
	return fmt.Sprintf("%s/%d/%d/%d/set", c.cfgClient.TopicPrefix, addr>>8&0x7f, addr>>4&0x0f, addr&0x0f)
}

// connectHandler (re)subscribes after every connect; the session may be new.
func (c *ClientMQTT) connectHandler(_ mqtt.Client) {
	c.log.With(logger.Fields{"module": "mqtt"}).Info("client connected to server")
	c.sub(c.cfgClient.TopicPrefix + "/+/+/+/set")
}

func (c *ClientMQTT) connectLostHandler(_ mqtt.Client, err error) {
	c.log.With(logger.Fields{"module": "mqtt"}).Errorf("server connect lost: %v\n", err)
}

func (c *ClientMQTT) messageHandler(_ mqtt.Client, msg mqtt.Message) {
	c.log.With(logger.Fields{"module": "mqtt"}).Debugf("received message: %v from topic: %s", msg.Payload(), msg.Topic())
	go c.sendDataToArtNet(msg)
}

// parseTopic extracts the port address from <prefix>/<net>/<subnet>/<universe>/set.
func parseTopic(prefix, topic string) (uint16, error) {
	rest, ok := strings.CutPrefix(topic, prefix+"/")
	if !ok {
		return 0, fmt.Errorf("topic %q outside %q", topic, prefix)
	}
	parts := strings.Split(rest, "/")
	if len(parts) != 4 || parts[3] != "set" {
		return 0, fmt.Errorf("topic %q is not <net>/<subnet>/<universe>/set", topic)
	}
	limits := [3]int{127, 15, 15}
	var v [3]int
	for i := range v {
		n, err := strconv.Atoi(parts[i])
		if err != nil || n < 0 || n > limits[i] {
			return 0, fmt.Errorf("topic %q: bad address part %q", topic, parts[i])
		}
		v[i] = n
	}
	return uint16(v[0]<<8 | v[1]<<4 | v[2]), nil
}

func (c *ClientMQTT) sendDataToArtNet(msg mqtt.Message) {
	addr, err := parseTopic(c.cfgClient.TopicPrefix, msg.Topic())
	if err != nil {
		c.log.With(logger.Fields{"module": "mqtt"}).Errorf("recording in Art-net was canceled: %v", err)
		return
	}

	var data Payload
	if err := json.Unmarshal(msg.Payload(), &data); err != nil {
		c.log.With(logger.Fields{"module": "mqtt"}).Errorf("message could not be parsed (%v): %v\n", msg.Payload(), err)
		return
	}
	c.log.With(logger.Fields{"module": "mqtt"}).Debugf("message payload parsed. Result: %v\n", data)
	select {
	case c.dmxDataCh <- DataCh{Addr: addr, Data: data}:
	case <-c.ctx.Done():
	}
}

func (c *ClientMQTT) sub(topic string) {
	token := c.client.Subscribe(topic, c.cfgClient.Qos, nil)
	go func() {
		select {
		case <-c.ctx.Done():
			return
		case <-token.Done():
			if token.Error() != nil {
				c.log.With(logger.Fields{"module": "mqtt"}).Errorf("topic %s subscription error. %v\n", topic, token.Error())
				return
			}
		}
		c.log.With(logger.Fields{"module": "mqtt"}).Debugf("topic %s subscribed\n", topic)
	}()
}

// PublishNode publishes info as a retained message under <prefix>/nodes/<ip>.
func (c *ClientMQTT) PublishNode(info NodeInfo) {
	if c.client == nil || !c.client.IsConnected() {
		return
	}
	msg, err := json.Marshal(info)
	if err != nil {
		c.log.With(logger.Fields{"module": "mqtt"}).Errorf("public topic. msg: %v", err)
		return
	}
	topic := fmt.Sprintf("%s/nodes/%s", c.cfgClient.TopicPrefix, info.IP)
	token := c.client.Publish(topic, c.cfgClient.Qos, true, msg)
	go func() {
		select {
		case <-c.ctx.Done():
			return
		case <-token.Done():
			if token.Error() != nil {
				c.log.With(logger.Fields{"module": "mqtt"}).Errorf("error publish topic %s. %v\n", topic, token.Error())
			}
		}
	}()
}
