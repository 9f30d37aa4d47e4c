/*
 * Copyright (c) 2019 Conclave IM.
 * See the LICENSE file for more information.
 */

package xep0045

import (
	mucmodel "github.com/conclave-im/conclave/model/muc"
	"github.com/pkg/errors"
)

const defaultServiceName = "Chatroom Server"

// Config represents XEP-0045 Multi-User Chat configuration.
type Config struct {
	MucHost           string
	Name              string
	Sysadmins         []string
	RestrictNicknames bool
	RoomDefaults      mucmodel.RoomConfig
}

type configProxy struct {
	MucHost           string              `yaml:"host"`
	Name              string              `yaml:"name"`
	Sysadmins         []string            `yaml:"sysadmins"`
	RestrictNicknames bool                `yaml:"restrict_nicknames"`
	RoomDefaults      mucmodel.RoomConfig `yaml:"room_defaults"`
}

// UnmarshalYAML satisfies Unmarshaler interface.
func (cfg *Config) UnmarshalYAML(unmarshal func(interface{}) error) error {
	p := configProxy{}
	if err := unmarshal(&p); err != nil {
		return err
	}
	cfg.MucHost = p.MucHost
	if len(cfg.MucHost) == 0 {
		return errors.New("muc: must specify a service hostname")
	}
	cfg.Name = p.Name
	if len(cfg.Name) == 0 {
		cfg.Name = defaultServiceName
	}
	cfg.Sysadmins = p.Sysadmins
	cfg.RestrictNicknames = p.RestrictNicknames
	cfg.RoomDefaults = p.RoomDefaults
	return nil
}

// IsSysadmin tells whether a user bare JID belongs to the service
// administrator list.
func (cfg *Config) IsSysadmin(userBareJID string) bool {
	for _, adm := range cfg.Sysadmins {
		if adm == userBareJID {
			return true
		}
	}
	return false
}
