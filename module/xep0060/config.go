/*
 * Copyright (c) 2019 Conclave IM.
 * See the LICENSE file for more information.
 */

package xep0060

import (
	"time"

	pubsubmodel "github.com/conclave-im/conclave/model/pubsub"
	"github.com/pkg/errors"
)

const (
	defaultServiceName   = "Publish-Subscribe"
	defaultFlushInterval = time.Minute * 2
	defaultFlushBatch    = 50
	defaultMaxNodeItems  = 1000
)

// Config represents XEP-0060 publish-subscribe service configuration.
type Config struct {
	Host                   string
	Name                   string
	NodeCreationRestricted bool
	AllowedToCreate        []string
	Sysadmins              []string
	FlushInterval          time.Duration
	FlushBatchSize         int
	MaxNodeItems           int
	DefaultNodeOptions     pubsubmodel.Options
}

type configProxy struct {
	Host                   string   `yaml:"host"`
	Name                   string   `yaml:"name"`
	NodeCreationRestricted bool     `yaml:"restrict_node_creation"`
	AllowedToCreate        []string `yaml:"allowed_to_create"`
	Sysadmins              []string `yaml:"sysadmins"`
	FlushInterval          int      `yaml:"flush_interval"`
	FlushBatchSize         int      `yaml:"flush_batch_size"`
	MaxNodeItems           int      `yaml:"max_node_items"`
}

// UnmarshalYAML satisfies Unmarshaler interface.
func (cfg *Config) UnmarshalYAML(unmarshal func(interface{}) error) error {
	p := configProxy{}
	if err := unmarshal(&p); err != nil {
		return err
	}
	cfg.Host = p.Host
	if len(cfg.Host) == 0 {
		return errors.New("pubsub: must specify a service hostname")
	}
	cfg.Name = p.Name
	if len(cfg.Name) == 0 {
		cfg.Name = defaultServiceName
	}
	cfg.NodeCreationRestricted = p.NodeCreationRestricted
	cfg.AllowedToCreate = p.AllowedToCreate
	cfg.Sysadmins = p.Sysadmins
	cfg.FlushInterval = time.Duration(p.FlushInterval) * time.Second
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = defaultFlushInterval
	}
	cfg.FlushBatchSize = p.FlushBatchSize
	if cfg.FlushBatchSize <= 0 {
		cfg.FlushBatchSize = defaultFlushBatch
	}
	cfg.MaxNodeItems = p.MaxNodeItems
	if cfg.MaxNodeItems <= 0 {
		cfg.MaxNodeItems = defaultMaxNodeItems
	}
	cfg.DefaultNodeOptions = defaultNodeOptions()
	return nil
}

// IsServiceAdmin tells whether a user bare JID is allowed to administer
// the service: either a sysadmin or a member of the node creation
// allow-list.
func (cfg *Config) IsServiceAdmin(userBareJID string) bool {
	for _, adm := range cfg.Sysadmins {
		if adm == userBareJID {
			return true
		}
	}
	for _, allowed := range cfg.AllowedToCreate {
		if allowed == userBareJID {
			return true
		}
	}
	return false
}

func defaultNodeOptions() pubsubmodel.Options {
	return pubsubmodel.Options{
		DeliverNotifications:  true,
		DeliverPayloads:       true,
		PersistItems:          true,
		MaxItems:              1,
		AccessModel:           pubsubmodel.Open,
		PublishModel:          pubsubmodel.Publishers,
		SendLastPublishedItem: pubsubmodel.OnSubAndPresence,
		NotificationType:      "headline",
		NotifyDelete:          true,
		NotifyRetract:         true,
	}
}
