/*
 * Copyright (c) 2019 Conclave IM.
 * See the LICENSE file for more information.
 */

package mucmodel

import (
	"bytes"
	"encoding/gob"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// "Who can" permission scopes.
const (
	All = "all"

	Moderators = "moderators"

	Nobody = "none"
)

// RoomConfig represents a room configuration. The zero value is not usable,
// rooms start from the service defaults and are adjusted by the owner.
type RoomConfig struct {
	Public          bool
	Persistent      bool
	PwdProtected    bool
	Open            bool
	Moderated       bool
	AllowInvites    bool
	MaxOccCnt       int
	HistCnt         int
	AllowSubjChange bool
	EnableLogging   bool
	pwdHash         string
	realJIDDisc     string
	sendPM          string
}

type roomConfigProxy struct {
	Public          bool   `yaml:"public"`
	Persistent      bool   `yaml:"persistent"`
	PwdProtected    bool   `yaml:"password_protected"`
	Open            bool   `yaml:"open"`
	Moderated       bool   `yaml:"moderated"`
	AllowInvites    bool   `yaml:"allow_invites"`
	HistCnt         int    `yaml:"history_length"`
	MaxOccCnt       int    `yaml:"occupant_count"`
	RealJIDDisc     string `yaml:"real_jid_discovery"`
	SendPM          string `yaml:"send_pm"`
	AllowSubjChange bool   `yaml:"allow_subject_change"`
	EnableLogging   bool   `yaml:"enable_logging"`
}

// UnmarshalYAML satisfies Unmarshaler interface. Used to read the
// service-wide room defaults.
func (r *RoomConfig) UnmarshalYAML(unmarshal func(interface{}) error) error {
	p := roomConfigProxy{}
	if err := unmarshal(&p); err != nil {
		return err
	}
	r.Public = p.Public
	r.Persistent = p.Persistent
	r.PwdProtected = p.PwdProtected
	r.Open = p.Open
	r.Moderated = p.Moderated
	r.AllowInvites = p.AllowInvites
	r.HistCnt = p.HistCnt
	r.MaxOccCnt = p.MaxOccCnt
	r.AllowSubjChange = p.AllowSubjChange
	r.EnableLogging = p.EnableLogging
	if err := r.SetWhoCanRealJIDDisc(p.RealJIDDisc); err != nil {
		return err
	}
	return r.SetWhoCanSendPM(p.SendPM)
}

// SetPassword stores a bcrypt hash of the room password.
func (r *RoomConfig) SetPassword(pwd string) error {
	if len(pwd) == 0 {
		r.pwdHash = ""
		return nil
	}
	h, err := bcrypt.GenerateFromPassword([]byte(pwd), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	r.pwdHash = string(h)
	return nil
}

// CheckPassword tells whether pwd matches the stored room password.
func (r *RoomConfig) CheckPassword(pwd string) bool {
	if len(r.pwdHash) == 0 {
		return len(pwd) == 0
	}
	return bcrypt.CompareHashAndPassword([]byte(r.pwdHash), []byte(pwd)) == nil
}

// SetWhoCanRealJIDDisc sets which occupants may discover real JIDs.
// A room where everybody can is non-anonymous.
func (r *RoomConfig) SetWhoCanRealJIDDisc(s string) error {
	switch s {
	case All, Moderators, Nobody:
		r.realJIDDisc = s
	default:
		return fmt.Errorf("mucmodel: cannot set who can discover real JIDs to %s", s)
	}
	return nil
}

// GetRealJIDDisc returns the real JID discovery scope.
func (r *RoomConfig) GetRealJIDDisc() string {
	return r.realJIDDisc
}

// NonAnonymous tells whether every occupant may see real JIDs.
func (r *RoomConfig) NonAnonymous() bool {
	return r.realJIDDisc == All
}

// OccupantCanDiscoverRealJID tells whether o may see other occupants' real JIDs.
func (r *RoomConfig) OccupantCanDiscoverRealJID(o *Occupant) bool {
	switch r.realJIDDisc {
	case All:
		return true
	case Moderators:
		return o.IsModerator()
	}
	return false
}

// SetWhoCanSendPM sets which occupants may exchange private messages.
func (r *RoomConfig) SetWhoCanSendPM(s string) error {
	switch s {
	case All, Moderators, Nobody:
		r.sendPM = s
	default:
		return fmt.Errorf("mucmodel: cannot set who can send private messages to %s", s)
	}
	return nil
}

// GetSendPM returns the private message scope.
func (r *RoomConfig) GetSendPM() string {
	return r.sendPM
}

// OccupantCanSendPM tells whether o may send private messages in the room.
func (r *RoomConfig) OccupantCanSendPM(o *Occupant) bool {
	switch r.sendPM {
	case All:
		return true
	case Moderators:
		return o.IsModerator()
	}
	return false
}

// FromBytes deserializes a RoomConfig entity from its gob binary representation.
func (r *RoomConfig) FromBytes(buf *bytes.Buffer) error {
	dec := gob.NewDecoder(buf)
	if err := dec.Decode(&r.Public); err != nil {
		return err
	}
	if err := dec.Decode(&r.Persistent); err != nil {
		return err
	}
	if err := dec.Decode(&r.PwdProtected); err != nil {
		return err
	}
	if err := dec.Decode(&r.pwdHash); err != nil {
		return err
	}
	if err := dec.Decode(&r.Open); err != nil {
		return err
	}
	if err := dec.Decode(&r.Moderated); err != nil {
		return err
	}
	if err := dec.Decode(&r.AllowInvites); err != nil {
		return err
	}
	if err := dec.Decode(&r.MaxOccCnt); err != nil {
		return err
	}
	if err := dec.Decode(&r.HistCnt); err != nil {
		return err
	}
	if err := dec.Decode(&r.AllowSubjChange); err != nil {
		return err
	}
	if err := dec.Decode(&r.EnableLogging); err != nil {
		return err
	}
	if err := dec.Decode(&r.realJIDDisc); err != nil {
		return err
	}
	return dec.Decode(&r.sendPM)
}

// ToBytes converts a RoomConfig entity to its gob binary representation.
func (r *RoomConfig) ToBytes(buf *bytes.Buffer) error {
	enc := gob.NewEncoder(buf)
	if err := enc.Encode(&r.Public); err != nil {
		return err
	}
	if err := enc.Encode(&r.Persistent); err != nil {
		return err
	}
	if err := enc.Encode(&r.PwdProtected); err != nil {
		return err
	}
	if err := enc.Encode(&r.pwdHash); err != nil {
		return err
	}
	if err := enc.Encode(&r.Open); err != nil {
		return err
	}
	if err := enc.Encode(&r.Moderated); err != nil {
		return err
	}
	if err := enc.Encode(&r.AllowInvites); err != nil {
		return err
	}
	if err := enc.Encode(&r.MaxOccCnt); err != nil {
		return err
	}
	if err := enc.Encode(&r.HistCnt); err != nil {
		return err
	}
	if err := enc.Encode(&r.AllowSubjChange); err != nil {
		return err
	}
	if err := enc.Encode(&r.EnableLogging); err != nil {
		return err
	}
	if err := enc.Encode(&r.realJIDDisc); err != nil {
		return err
	}
	return enc.Encode(&r.sendPM)
}

// NewConfigFromBytes creates and returns a new RoomConfig element from its bytes representation.
func NewConfigFromBytes(buf *bytes.Buffer) (*RoomConfig, error) {
	c := &RoomConfig{}
	if err := c.FromBytes(buf); err != nil {
		return nil, err
	}
	return c, nil
}
