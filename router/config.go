/*
 * Copyright (c) 2019 Conclave IM.
 * See the LICENSE file for more information.
 */

package router

import "fmt"

// Config represents a router configuration.
type Config struct {
	Hosts []string `yaml:"hosts"`
}

type configProxy struct {
	Hosts []string `yaml:"hosts"`
}

// UnmarshalYAML satisfies Unmarshaler interface.
func (c *Config) UnmarshalYAML(unmarshal func(interface{}) error) error {
	p := configProxy{}
	if err := unmarshal(&p); err != nil {
		return err
	}
	seen := make(map[string]bool, len(p.Hosts))
	for _, h := range p.Hosts {
		if len(h) == 0 {
			return fmt.Errorf("router.Config: empty host name")
		}
		if seen[h] {
			return fmt.Errorf("router.Config: duplicated host name: %s", h)
		}
		seen[h] = true
	}
	c.Hosts = p.Hosts
	return nil
}
