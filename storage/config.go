/*
 * Copyright (c) 2019 Conclave IM.
 * See the LICENSE file for more information.
 */

package storage

import (
	"errors"
	"fmt"

	"github.com/conclave-im/conclave/storage/boltdb"
	"github.com/conclave-im/conclave/storage/mysql"
	"github.com/conclave-im/conclave/storage/pgsql"
)

// Type represents a storage backend type.
type Type int

const (
	// MySQL represents a MySQL storage type.
	MySQL Type = iota

	// PostgreSQL represents a PostgreSQL storage type.
	PostgreSQL

	// BoltDB represents a BoltDB storage type.
	BoltDB

	// Memory represents an in-memory storage type.
	Memory
)

// String returns Type string representation.
func (t Type) String() string {
	switch t {
	case MySQL:
		return "mysql"
	case PostgreSQL:
		return "pgsql"
	case BoltDB:
		return "boltdb"
	case Memory:
		return "memory"
	}
	return ""
}

// Config represents a storage configuration.
type Config struct {
	Type       Type
	MySQL      *mysql.Config
	PostgreSQL *pgsql.Config
	BoltDB     *boltdb.Config
}

type configProxy struct {
	Type       string        `yaml:"type"`
	MySQL      *mysql.Config `yaml:"mysql"`
	PostgreSQL *pgsql.Config `yaml:"pgsql"`
	BoltDB     *boltdb.Config `yaml:"boltdb"`
}

// UnmarshalYAML satisfies Unmarshaler interface.
func (c *Config) UnmarshalYAML(unmarshal func(interface{}) error) error {
	p := configProxy{}
	if err := unmarshal(&p); err != nil {
		return err
	}
	switch p.Type {
	case "mysql":
		if p.MySQL == nil {
			return errors.New("storage.Config: couldn't read MySQL configuration")
		}
		c.Type = MySQL
		c.MySQL = p.MySQL
		if c.MySQL.PoolSize == 0 {
			c.MySQL.PoolSize = mysql.DefaultPoolSize
		}

	case "pgsql":
		if p.PostgreSQL == nil {
			return errors.New("storage.Config: couldn't read PostgreSQL configuration")
		}
		c.Type = PostgreSQL
		c.PostgreSQL = p.PostgreSQL
		if c.PostgreSQL.PoolSize == 0 {
			c.PostgreSQL.PoolSize = pgsql.DefaultPoolSize
		}

	case "boltdb":
		if p.BoltDB == nil {
			return errors.New("storage.Config: couldn't read BoltDB configuration")
		}
		c.Type = BoltDB
		c.BoltDB = p.BoltDB
		if len(c.BoltDB.Path) == 0 {
			c.BoltDB.Path = "./data/conclave.db"
		}

	case "memory":
		c.Type = Memory

	case "":
		return errors.New("storage.Config: unspecified storage type")

	default:
		return fmt.Errorf("storage.Config: unrecognized storage type: %s", p.Type)
	}
	return nil
}
