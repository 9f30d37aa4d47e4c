/*
 * Copyright (c) 2019 Conclave IM.
 * See the LICENSE file for more information.
 */

package model

import (
	"bytes"
	"encoding/gob"
	"time"

	"github.com/conclave-im/conclave/xmpp"
)

// User represents a user storage entity.
type User struct {
	Username       string
	LastPresence   *xmpp.Presence
	LastPresenceAt time.Time
}

// FromBytes deserializes a User entity from its gob binary representation.
func (u *User) FromBytes(buf *bytes.Buffer) error {
	dec := gob.NewDecoder(buf)
	if err := dec.Decode(&u.Username); err != nil {
		return err
	}
	var hasPresence bool
	if err := dec.Decode(&hasPresence); err != nil {
		return err
	}
	if hasPresence {
		p, err := xmpp.NewPresenceFromGob(dec)
		if err != nil {
			return err
		}
		u.LastPresence = p
		return dec.Decode(&u.LastPresenceAt)
	}
	return nil
}

// ToBytes converts a User entity to its gob binary representation.
func (u *User) ToBytes(buf *bytes.Buffer) error {
	enc := gob.NewEncoder(buf)
	if err := enc.Encode(&u.Username); err != nil {
		return err
	}
	hasPresence := u.LastPresence != nil
	if err := enc.Encode(&hasPresence); err != nil {
		return err
	}
	if hasPresence {
		u.LastPresence.ToGob(enc)
		u.LastPresenceAt = time.Now()
		return enc.Encode(&u.LastPresenceAt)
	}
	return nil
}
