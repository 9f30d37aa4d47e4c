/*
 * Copyright (c) 2019 Conclave IM.
 * See the LICENSE file for more information.
 */

package mucmodel

import (
	"testing"

	"github.com/stretchr/testify/require"
	yaml "gopkg.in/yaml.v2"
)

func TestModelConfig_UnmarshalYAML(t *testing.T) {
	raw := `
public: true
persistent: true
open: true
moderated: true
allow_invites: true
history_length: 20
occupant_count: 50
real_jid_discovery: moderators
send_pm: all
allow_subject_change: true
`
	cfg := &RoomConfig{}
	require.Nil(t, yaml.Unmarshal([]byte(raw), cfg))
	require.True(t, cfg.Moderated)
	require.Equal(t, 20, cfg.HistCnt)
	require.Equal(t, 50, cfg.MaxOccCnt)
	require.Equal(t, Moderators, cfg.GetRealJIDDisc())
	require.False(t, cfg.NonAnonymous())

	badRaw := raw + "\nsend_pm: everyone\n"
	require.NotNil(t, yaml.Unmarshal([]byte(badRaw), &RoomConfig{}))
}

func TestModelConfig_Password(t *testing.T) {
	cfg := &RoomConfig{}
	require.True(t, cfg.CheckPassword(""))
	require.False(t, cfg.CheckPassword("anything"))

	require.Nil(t, cfg.SetPassword("s3cr3t"))
	require.True(t, cfg.CheckPassword("s3cr3t"))
	require.False(t, cfg.CheckPassword("guess"))
}

func TestModelConfig_Permissions(t *testing.T) {
	cfg := &RoomConfig{}
	require.Nil(t, cfg.SetWhoCanRealJIDDisc(All))
	require.Nil(t, cfg.SetWhoCanSendPM(Moderators))
	require.True(t, cfg.NonAnonymous())

	mod := testOccupant(t, "alice", Owner, Moderator)
	visitor := testOccupant(t, "bob", NoAffiliation, Visitor)

	require.True(t, cfg.OccupantCanDiscoverRealJID(visitor))
	require.True(t, cfg.OccupantCanSendPM(mod))
	require.False(t, cfg.OccupantCanSendPM(visitor))

	require.Nil(t, cfg.SetWhoCanRealJIDDisc(Nobody))
	require.False(t, cfg.OccupantCanDiscoverRealJID(mod))
}
