/**
 * Copyright 2025-present Coinbase Global, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package config loads the recognized configuration keys of spec.md
// §6 with github.com/spf13/viper, grounded on wyfcoding-pkg/config's
// viper-backed loader (YAML file plus FIX_-prefixed environment
// variable overrides) rather than a hand-rolled flag/env parser.
package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// Config is the recognized key set of spec.md §6, "Configuration".
type Config struct {
	Host              string      `mapstructure:"host"`
	Port              int         `mapstructure:"port"`
	SenderCompID      string      `mapstructure:"sender_comp_id"`
	TargetCompID      string      `mapstructure:"target_comp_id"`
	Username          string      `mapstructure:"username"`
	Password          string      `mapstructure:"password"`
	HeartbeatInterval int         `mapstructure:"heartbeat_interval"`
	ResetOnLogon      bool        `mapstructure:"reset_on_logon"`
	BeginString       string      `mapstructure:"begin_string"`
	PipelineApps      []string    `mapstructure:"pipeline_apps"`
	MessageStore      StoreConfig `mapstructure:"message_store"`
	ConnectionName    string      `mapstructure:"connection_name"`
}

// StoreConfig selects and configures a message store backend (spec.md
// §6, "message_store (selector + options)").
type StoreConfig struct {
	Selector string `mapstructure:"selector"` // "memory", "sqlite", "redis"
	Path     string `mapstructure:"path"`     // sqlite file path
	Addr     string `mapstructure:"addr"`     // redis address
}

// ErrConfig wraps any configuration problem, surfaced by the caller as
// exit code 3 (spec.md §6, "Exit codes").
type ErrConfig struct {
	Key string
	Err error
}

func (e *ErrConfig) Error() string {
	return fmt.Sprintf("config: %s: %v", e.Key, e.Err)
}

func (e *ErrConfig) Unwrap() error { return e.Err }

// Load reads configuration from path (a YAML file) with FIX_-prefixed
// environment variables overriding file values (spec.md §6,
// "Configuration (recognized keys)"), and validates that every
// required key is present.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("FIX")
	v.AutomaticEnv()

	v.SetDefault("begin_string", "FIX.4.4")
	v.SetDefault("heartbeat_interval", 30)
	v.SetDefault("reset_on_logon", false)
	v.SetDefault("message_store.selector", "memory")

	if err := v.ReadInConfig(); err != nil {
		return nil, &ErrConfig{Key: "file", Err: err}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, &ErrConfig{Key: "unmarshal", Err: err}
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	required := map[string]string{
		"host":            c.Host,
		"sender_comp_id":  c.SenderCompID,
		"target_comp_id":  c.TargetCompID,
		"connection_name": c.ConnectionName,
	}
	for key, v := range required {
		if v == "" {
			return &ErrConfig{Key: key, Err: fmt.Errorf("required key is empty")}
		}
	}
	if c.Port <= 0 {
		return &ErrConfig{Key: "port", Err: fmt.Errorf("must be a positive integer")}
	}
	return nil
}
