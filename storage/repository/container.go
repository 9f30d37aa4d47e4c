/*
 * Copyright (c) 2019 Conclave IM.
 * See the LICENSE file for more information.
 */

package repository

import "context"

// Container defines the set of repositories provided by a storage backend.
type Container interface {
	// User returns the user repository.
	User() User

	// Roster returns the roster repository.
	Roster() Roster

	// Group returns the shared group repository.
	Group() Group

	// Room returns the chat room repository.
	Room() Room

	// BlockList returns the block list repository.
	BlockList() BlockList

	// PubSub returns the pubsub repository.
	PubSub() PubSub

	// Close releases all underlying storage resources.
	Close(ctx context.Context) error
}
