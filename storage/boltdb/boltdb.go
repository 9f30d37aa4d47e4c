/*
 * Copyright (c) 2019 Conclave IM.
 * See the LICENSE file for more information.
 */

package boltdb

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/conclave-im/conclave/storage/repository"
	bolt "go.etcd.io/bbolt"
)

// Config represents BoltDB storage configuration.
type Config struct {
	Path string `yaml:"path"`
}

type boltDBContainer struct {
	user      *boltDBUser
	roster    *boltDBRoster
	group     *boltDBGroup
	room      *boltDBRoom
	blockList *boltDBBlockList
	pubSub    *boltDBPubSub

	db *bolt.DB
}

// New initializes BoltDB storage and returns associated container.
func New(cfg *Config) (repository.Container, error) {
	var c boltDBContainer

	if err := os.MkdirAll(filepath.Dir(cfg.Path), os.ModePerm); err != nil {
		return nil, err
	}
	db, err := bolt.Open(cfg.Path, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, err
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(entitiesBucket)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	c.db = db

	c.user = newUser(c.db)
	c.roster = newRoster(c.db)
	c.group = newGroup(c.db)
	c.room = newRoom(c.db)
	c.blockList = newBlockList(c.db)
	c.pubSub = newPubSub(c.db)

	return &c, nil
}

func (c *boltDBContainer) User() repository.User           { return c.user }
func (c *boltDBContainer) Roster() repository.Roster       { return c.roster }
func (c *boltDBContainer) Group() repository.Group         { return c.group }
func (c *boltDBContainer) Room() repository.Room           { return c.room }
func (c *boltDBContainer) BlockList() repository.BlockList { return c.blockList }
func (c *boltDBContainer) PubSub() repository.PubSub       { return c.pubSub }

func (c *boltDBContainer) Close(_ context.Context) error { return c.db.Close() }
