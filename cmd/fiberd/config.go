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
	"io/ioutil"

	"github.com/jsccast/yaml"
)

// Config is the optional YAML configuration file.  Command-line flags
// override these values.
type Config struct {
	// Engine is "lua" or "ecmascript".
	Engine string `yaml:"engine" json:"engine"`

	// Script is the driver script filename.  Empty means the
	// engine's built-in driver.
	Script string `yaml:"script,omitempty" json:"script,omitempty"`

	// ModuleDir is where scripts find modules.
	ModuleDir string `yaml:"modules,omitempty" json:"modules,omitempty"`

	// Journal is a bbolt filename for dispatch records.
	Journal string `yaml:"journal,omitempty" json:"journal,omitempty"`

	// WebSocket is the listen address for the websocket API.
	WebSocket string `yaml:"websocket,omitempty" json:"websocket,omitempty"`

	// Client is a websocket URL that sends us requests.
	Client string `yaml:"client,omitempty" json:"client,omitempty"`

	MQTT *MQTTConfig `yaml:"mqtt,omitempty" json:"mqtt,omitempty"`

	Production bool `yaml:"production,omitempty" json:"production,omitempty"`

	// MaxDiagnostic bounds diagnostic text in errors.
	MaxDiagnostic int `yaml:"maxDiagnostic,omitempty" json:"maxDiagnostic,omitempty"`
}

// MQTTConfig says how to couple to an MQTT broker.
type MQTTConfig struct {
	Broker   string `yaml:"broker" json:"broker"`
	ClientId string `yaml:"clientId,omitempty" json:"clientId,omitempty"`
	Username string `yaml:"username,omitempty" json:"username,omitempty"`
	Password string `yaml:"password,omitempty" json:"password,omitempty"`

	// Sub is the topic (TOPIC or TOPIC:QOS) for requests.
	Sub string `yaml:"sub" json:"sub"`

	// Pub is the topic (TOPIC or TOPIC:QOS) for replies.
	Pub string `yaml:"pub" json:"pub"`
}

func DefaultConfig() *Config {
	return &Config{
		Engine: "lua",
	}
}

// ReadConfig reads a YAML file on top of DefaultConfig.
func ReadConfig(filename string) (*Config, error) {
	cfg := DefaultConfig()
	if filename == "" {
		return cfg, nil
	}
	bs, err := ioutil.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	if err = yaml.Unmarshal(bs, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
