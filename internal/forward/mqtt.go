package forward

import (
	"fmt"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/juju/errors"
	"github.com/openaqua/tdslink/internal/link"
	"github.com/openaqua/tdslink/internal/wire"
	"github.com/openaqua/tdslink/log2"
)

// MQTT forwards readings as ThingSpeak-style publish payloads and doubles
// as the link.Provider: paho connection handlers are the link-layer event
// source, translated onto a channel so the connectivity manager never runs
// on paho's callback goroutine.
var _ Forwarder = &MQTT{}     // compile-time interface test
var _ link.Provider = &MQTT{} // compile-time interface test

type MQTT struct {
	cfg    Config
	log    *log2.Log
	m      mqtt.Client
	events chan link.Event
	topic  string
}

func NewMQTT(cfg Config, log *log2.Log) *MQTT {
	cfg.SetDefaults()
	self := &MQTT{
		cfg:    cfg,
		log:    log,
		events: make(chan link.Event, 8),
		topic:  cfg.MqttTopic,
	}
	mqtt.ERROR = log
	mqtt.CRITICAL = log
	mqtt.WARN = log

	credFun := func() (string, string) {
		return self.cfg.MqttUser, self.cfg.MqttPassword
	}
	mopt := mqtt.NewClientOptions().
		AddBroker(cfg.MqttBroker).
		SetClientID(cfg.MqttClientID).
		SetCredentialsProvider(credFun).
		SetAutoReconnect(false). // reconnect policy belongs to the link manager
		SetConnectTimeout(cfg.Timeout()).
		SetOnConnectHandler(self.onConnectHandler).
		SetConnectionLostHandler(self.connectLostHandler)
	self.m = mqtt.NewClient(mopt)
	return self
}

// Connect is the link manager's connect request.
func (self *MQTT) Connect() error {
	if self.m.IsConnected() {
		return nil
	}
	token := self.m.Connect()
	go func() {
		if token.Wait() && token.Error() != nil {
			self.log.Errorf("mqtt connect err=%v", token.Error())
			self.emit(link.EventLinkDrop)
		}
	}()
	return nil
}

func (self *MQTT) Events() <-chan link.Event { return self.events }

func (self *MQTT) Forward(m wire.Measurement) error {
	payload := fmt.Sprintf("field1=%.0f&field2=%.2f", m.ConcentrationPPM, m.SensorVoltage)
	token := self.m.Publish(self.topic, 1, false, payload)
	if !token.WaitTimeout(self.cfg.Timeout()) {
		return errors.Timeoutf("publish %s", m.String())
	}
	if err := token.Error(); err != nil {
		return errors.Annotatef(err, "publish %s", m.String())
	}
	return nil
}

func (self *MQTT) onConnectHandler(c mqtt.Client) {
	self.log.Infof("mqtt connect")
	self.emit(link.EventAddrAcquired)
}

func (self *MQTT) connectLostHandler(c mqtt.Client, err error) {
	self.log.Infof("mqtt disconnect err=%v", err)
	self.emit(link.EventLinkDrop)
}

func (self *MQTT) emit(kind link.EventKind) {
	select {
	case self.events <- link.Event{Kind: kind}:
	default:
		self.log.Errorf("mqtt link event=%s dropped, consumer stalled", kind.String())
	}
}
