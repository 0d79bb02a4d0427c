/*
Copyright 2024 Telespazio UK.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"
)

// AWSConfig anchors the deterministic parts of a plan to one account and
// region.
type AWSConfig struct {
	AccountID string `yaml:"accountID"`
	Region    string `yaml:"region"`
}

// PulsarConfig configures plan notification. An empty URL disables it.
type PulsarConfig struct {
	URL   string `yaml:"url"`
	Topic string `yaml:"topic"`
}

// Config is the planner's own operating configuration.
type Config struct {
	AWS    AWSConfig    `yaml:"aws"`
	Pulsar PulsarConfig `yaml:"pulsar"`
	// UniqueString suffixes resource names to keep them distinct across
	// deployments sharing one account
	UniqueString string `yaml:"uniqueString"`
}

func (c *Config) Load(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("problem reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("problem unmarshalling config file: %w", err)
	}

	return nil
}

func (c *Config) Validate() error {
	if c.AWS.AccountID == "" {
		return fmt.Errorf("aws.accountID is required")
	}
	if c.AWS.Region == "" {
		return fmt.Errorf("aws.region is required")
	}
	if c.Pulsar.URL != "" && c.Pulsar.Topic == "" {
		return fmt.Errorf("pulsar.topic is required when pulsar.url is set")
	}
	return nil
}
