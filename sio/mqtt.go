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

package sio

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// MQTTTap publishes digests to an MQTT broker.  Updates go to
// Prefix + "/update" and validation failures to Prefix + "/invalid".
type MQTTTap struct {
	Broker   string
	ClientID string
	Username string
	Password string

	// Prefix is the topic prefix.
	Prefix string

	QoS    int
	Retain bool

	// PublishTimeout bounds the wait for each publish.  Zero
	// doesn't wait.
	PublishTimeout time.Duration

	// Quiesce is the disconnection quiescence in milliseconds.
	Quiesce uint

	Client mqtt.Client
}

// NewMQTTTap parses the flags for an MQTTTap.  Flag names follow
// mosquitto_pub.
func NewMQTTTap(args []string) (*MQTTTap, *flag.FlagSet) {
	t := &MQTTTap{}
	fs := flag.NewFlagSet("mqtt", flag.ContinueOnError)
	fs.StringVar(&t.Broker, "h", "tcp://localhost:1883", "Broker URL")
	fs.StringVar(&t.ClientID, "i", "arbor", "Client id")
	fs.StringVar(&t.Username, "u", "", "Username")
	fs.StringVar(&t.Password, "P", "", "Password")
	fs.StringVar(&t.Prefix, "t", "arbor", "Topic prefix")
	fs.IntVar(&t.QoS, "q", 0, "QoS")
	fs.BoolVar(&t.Retain, "r", false, "Retain messages")
	fs.DurationVar(&t.PublishTimeout, "publish-timeout", time.Second, "Publish timeout")
	fs.UintVar(&t.Quiesce, "quiesce", 100, "Disconnection quiescence (in milliseconds)")
	if args == nil {
		return nil, fs
	}
	if err := fs.Parse(args); err != nil {
		return nil, fs
	}
	return t, fs
}

// Topic returns the topic for the digest.
func (t *MQTTTap) Topic(d *Digest) string {
	return t.Prefix + "/" + d.Kind
}

// Start connects to the broker unless Client is already set.
func (t *MQTTTap) Start(ctx context.Context) error {
	if t.QoS < 0 || 2 < t.QoS {
		return fmt.Errorf("bad QoS %d", t.QoS)
	}
	if t.Client != nil {
		return nil
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(t.Broker)
	opts.SetClientID(t.ClientID)
	opts.SetUsername(t.Username)
	opts.SetPassword(t.Password)
	opts.SetAutoReconnect(true)
	opts.SetPingTimeout(10 * time.Second)

	t.Client = mqtt.NewClient(opts)
	timeout := 30 * time.Second
	if deadline, have := ctx.Deadline(); have {
		timeout = time.Until(deadline)
	}
	token := t.Client.Connect()
	if !token.WaitTimeout(timeout) {
		return fmt.Errorf("mqtt connect to %s timed out", t.Broker)
	}
	return token.Error()
}

// Publish sends the digest as JSON.
func (t *MQTTTap) Publish(ctx context.Context, d *Digest) error {
	if t.Client == nil {
		return errors.New("mqtt tap not started")
	}
	js, err := json.Marshal(d)
	if err != nil {
		return err
	}
	token := t.Client.Publish(t.Topic(d), byte(t.QoS), t.Retain, js)
	if t.PublishTimeout <= 0 {
		return nil
	}
	if !token.WaitTimeout(t.PublishTimeout) {
		return fmt.Errorf("mqtt publish to %s timed out", t.Topic(d))
	}
	return token.Error()
}

// Stop disconnects.
func (t *MQTTTap) Stop(ctx context.Context) error {
	if t.Client != nil && t.Client.IsConnected() {
		t.Client.Disconnect(t.Quiesce)
	}
	return nil
}
