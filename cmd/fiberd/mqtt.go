/* Copyright 2019 Comcast Cable Communications Management, LLC
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 * http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"
)

// MQTTCoupling takes requests from a subscription and publishes
// replies.
//
// The subscription handler only queues messages.  A single goroutine
// takes them off the queue in arrival order, dispatches them, and
// publishes the replies.
type MQTTCoupling struct {
	Client  mqtt.Client
	Quiesce uint

	// InTimeout is how long the handler waits on a full queue
	// before dropping a message.
	InTimeout time.Duration

	sub      string
	pub      string
	s        *Service
	incoming chan mqtt.Message

	// publish defaults to publishing with Client.
	publish func(topic string, qos byte, payload []byte) error
}

func NewMQTTCoupling(s *Service, cfg *MQTTConfig) (*MQTTCoupling, error) {
	if cfg.Broker == "" {
		return nil, fmt.Errorf("no MQTT broker")
	}
	if cfg.Sub == "" {
		return nil, fmt.Errorf("no MQTT subscription topic")
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientId)
	opts.SetKeepAlive(10 * time.Second)
	opts.Username = cfg.Username
	opts.Password = cfg.Password
	opts.CleanSession = true

	opts.OnConnectionLost = func(client mqtt.Client, err error) {
		s.Logger.Warn("MQTT connection lost", zap.Error(err))
	}

	c := newMQTTCoupling(s, cfg)
	c.Client = mqtt.NewClient(opts)
	c.publish = func(topic string, qos byte, payload []byte) error {
		token := c.Client.Publish(topic, qos, false, payload)
		token.Wait()
		return token.Error()
	}

	return c, nil
}

func newMQTTCoupling(s *Service, cfg *MQTTConfig) *MQTTCoupling {
	return &MQTTCoupling{
		Quiesce:   100,
		InTimeout: time.Second,
		sub:       cfg.Sub,
		pub:       cfg.Pub,
		s:         s,
		incoming:  make(chan mqtt.Message, 64),
	}
}

// Start connects, subscribes, and handles messages until ctx is
// done.
func (c *MQTTCoupling) Start(ctx context.Context) error {
	if token := c.Client.Connect(); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	c.s.Logger.Info("connected to MQTT broker")

	go c.loop(ctx)

	handler := func(client mqtt.Client, msg mqtt.Message) {
		c.inHandler(ctx, msg)
	}

	topic, qos := parseTopic(c.sub)
	c.s.Logger.Info("subscribing", zap.String("topic", topic), zap.Uint8("qos", qos))
	if t := c.Client.Subscribe(topic, qos, handler); t.Wait() && t.Error() != nil {
		return t.Error()
	}

	go func() {
		<-ctx.Done()
		c.Client.Disconnect(c.Quiesce)
	}()

	return nil
}

// inHandler queues an incoming message.  It doesn't wait forever
// because the client can't do anything else until it returns.
func (c *MQTTCoupling) inHandler(ctx context.Context, msg mqtt.Message) {
	to := time.NewTimer(c.InTimeout)
	defer to.Stop()

	select {
	case <-ctx.Done():
	case c.incoming <- msg:
	case <-to.C:
		c.s.Logger.Warn("MQTT message dropped due to stall",
			zap.String("topic", msg.Topic()),
			zap.ByteString("payload", msg.Payload()))
	}
}

// loop handles queued messages one at a time until ctx is done.
func (c *MQTTCoupling) loop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-c.incoming:
			c.handle(ctx, msg.Topic(), msg.Payload())
		}
	}
}

func (c *MQTTCoupling) handle(ctx context.Context, topic string, payload []byte) {
	c.s.Logger.Debug("MQTT incoming", zap.String("topic", topic), zap.ByteString("payload", payload))

	reply := &Reply{
		Kind: "input",
	}
	req, err := ParseRequest(string(payload))
	switch {
	case err != nil:
		reply.Error = err.Error()
	case req == nil:
		return
	default:
		if reply, err = c.s.Do(ctx, req); err != nil {
			c.s.Logger.Warn("MQTT request dropped", zap.Error(err))
			return
		}
	}

	if c.pub == "" {
		return
	}

	js, err := json.Marshal(reply)
	if err != nil {
		c.s.Logger.Error("reply marshal failed", zap.Error(err))
		return
	}
	pub, qos := parseTopic(c.pub)
	if err = c.publish(pub, qos, js); err != nil {
		c.s.Logger.Error("MQTT publish failed", zap.Error(err))
	}
}

// parseTopic extracts QoS from a topic name of the form TOPIC:QOS.
func parseTopic(s string) (string, byte) {
	i := strings.LastIndex(s, ":")
	if i < 0 {
		return s, 0
	}
	var qos byte
	if _, err := fmt.Sscanf(s[i+1:], "%d", &qos); err != nil || 2 < qos {
		return s, 0
	}
	return s[:i], qos
}
