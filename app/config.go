/*
 * Copyright (c) 2019 Conclave IM.
 * See the LICENSE file for more information.
 */

package app

import (
	"bytes"
	"io/ioutil"

	"github.com/conclave-im/conclave/admin"
	"github.com/conclave-im/conclave/log"
	"github.com/conclave-im/conclave/module/roster"
	"github.com/conclave-im/conclave/module/xep0045"
	"github.com/conclave-im/conclave/module/xep0060"
	"github.com/conclave-im/conclave/router"
	"github.com/conclave-im/conclave/storage"
	"gopkg.in/yaml.v2"
)

// Config represents a global configuration.
type Config struct {
	PIDFile string          `yaml:"pid_path"`
	Logger  log.Config      `yaml:"logger"`
	Storage storage.Config  `yaml:"storage"`
	Router  router.Config   `yaml:"router"`
	Admin   *admin.Config   `yaml:"admin"`
	Roster  roster.Config   `yaml:"roster"`
	MUC     *xep0045.Config `yaml:"muc"`
	PubSub  *xep0060.Config `yaml:"pubsub"`
}

// FromFile loads default global configuration from
// a specified file.
func (cfg *Config) FromFile(configFile string) error {
	b, err := ioutil.ReadFile(configFile)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(b, cfg)
}

// FromBuffer loads default global configuration from
// a specified byte buffer.
func (cfg *Config) FromBuffer(buf *bytes.Buffer) error {
	return yaml.Unmarshal(buf.Bytes(), cfg)
}
