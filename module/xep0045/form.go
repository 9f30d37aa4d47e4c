/*
 * Copyright (c) 2019 Conclave IM.
 * See the LICENSE file for more information.
 */

package xep0045

import (
	"context"
	"strconv"

	"github.com/conclave-im/conclave/log"
	mucmodel "github.com/conclave-im/conclave/model/muc"
	"github.com/conclave-im/conclave/module/xep0004"
	"github.com/conclave-im/conclave/xmpp/jid"
)

const mucNamespaceRoomConfig = "http://jabber.org/protocol/muc#roomconfig"

// Room configuration form fields.
const (
	ConfigName         = "muc#roomconfig_roomname"
	ConfigDesc         = "muc#roomconfig_roomdesc"
	ConfigChangeSubj   = "muc#roomconfig_changesubject"
	ConfigAllowInvites = "muc#roomconfig_allowinvites"
	ConfigMembersOnly  = "muc#roomconfig_membersonly"
	ConfigModerated    = "muc#roomconfig_moderatedroom"
	ConfigPersistent   = "muc#roomconfig_persistentroom"
	ConfigPublic       = "muc#roomconfig_publicroom"
	ConfigPwdProtected = "muc#roomconfig_passwordprotectedroom"
	ConfigPwd          = "muc#roomconfig_roomsecret"
	ConfigAllowPM      = "muc#roomconfig_allowpm"
	ConfigWhoIs        = "muc#roomconfig_whois"
	ConfigMaxUsers     = "muc#roomconfig_maxusers"
	ConfigHistCnt      = "muc#roomconfig_historylength"
	ConfigLogging      = "muc#roomconfig_enablelogging"
	ConfigAdmins       = "muc#roomconfig_roomadmins"
	ConfigOwners       = "muc#roomconfig_roomowners"
)

func (s *Muc) getRoomConfigForm(_ context.Context, room *mucmodel.Room) *xep0004.DataForm {
	form := &xep0004.DataForm{
		Type:         xep0004.Form,
		Title:        "Configuration for " + room.Name,
		Instructions: "Complete and submit this form to configure the room",
	}
	form.Fields = append(form.Fields, xep0004.Field{
		Var:    xep0004.FormType,
		Type:   xep0004.Hidden,
		Values: []string{mucNamespaceRoomConfig},
	})
	form.Fields = append(form.Fields, xep0004.Field{
		Var:    ConfigName,
		Type:   xep0004.TextSingle,
		Label:  "Natural-Language Room Name",
		Values: []string{room.Name},
	})
	form.Fields = append(form.Fields, xep0004.Field{
		Var:    ConfigDesc,
		Type:   xep0004.TextSingle,
		Label:  "Short Description of Room",
		Values: []string{room.Desc},
	})
	form.Fields = append(form.Fields, xep0004.Field{
		Var:    ConfigChangeSubj,
		Type:   xep0004.Boolean,
		Label:  "Allow Occupants to Change Subject?",
		Values: []string{boolFieldValue(room.Config.AllowSubjChange)},
	})
	form.Fields = append(form.Fields, xep0004.Field{
		Var:    ConfigAllowInvites,
		Type:   xep0004.Boolean,
		Label:  "Allow Occupants to Invite Others?",
		Values: []string{boolFieldValue(room.Config.AllowInvites)},
	})
	form.Fields = append(form.Fields, xep0004.Field{
		Var:    ConfigMembersOnly,
		Type:   xep0004.Boolean,
		Label:  "Make Room Members Only?",
		Values: []string{boolFieldValue(!room.Config.Open)},
	})
	form.Fields = append(form.Fields, xep0004.Field{
		Var:    ConfigModerated,
		Type:   xep0004.Boolean,
		Label:  "Make Room Moderated?",
		Values: []string{boolFieldValue(room.Config.Moderated)},
	})
	form.Fields = append(form.Fields, xep0004.Field{
		Var:    ConfigPersistent,
		Type:   xep0004.Boolean,
		Label:  "Make Room Persistent?",
		Values: []string{boolFieldValue(room.Config.Persistent)},
	})
	form.Fields = append(form.Fields, xep0004.Field{
		Var:    ConfigPublic,
		Type:   xep0004.Boolean,
		Label:  "Make Room Publicly Searchable?",
		Values: []string{boolFieldValue(room.Config.Public)},
	})
	form.Fields = append(form.Fields, xep0004.Field{
		Var:    ConfigPwdProtected,
		Type:   xep0004.Boolean,
		Label:  "Password Required to Enter?",
		Values: []string{boolFieldValue(room.Config.PwdProtected)},
	})
	form.Fields = append(form.Fields, xep0004.Field{
		Var:   ConfigPwd,
		Type:  xep0004.TextPrivate,
		Label: "Password",
	})
	form.Fields = append(form.Fields, xep0004.Field{
		Var:    ConfigAllowPM,
		Type:   xep0004.ListSingle,
		Label:  "Who Can Send Private Messages?",
		Values: []string{room.Config.GetSendPM()},
		Options: []xep0004.Option{
			{Label: "Anyone", Value: mucmodel.All},
			{Label: "Moderators Only", Value: mucmodel.Moderators},
			{Label: "Nobody", Value: mucmodel.Nobody},
		},
	})
	form.Fields = append(form.Fields, xep0004.Field{
		Var:    ConfigWhoIs,
		Type:   xep0004.ListSingle,
		Label:  "Who May Discover Real JIDs?",
		Values: []string{whoisFieldValue(room.Config.GetRealJIDDisc())},
		Options: []xep0004.Option{
			{Label: "Anyone", Value: "anyone"},
			{Label: "Moderators Only", Value: "moderators"},
			{Label: "Nobody", Value: "none"},
		},
	})
	form.Fields = append(form.Fields, xep0004.Field{
		Var:    ConfigMaxUsers,
		Type:   xep0004.TextSingle,
		Label:  "Maximum Number of Occupants",
		Values: []string{strconv.Itoa(room.Config.MaxOccCnt)},
	})
	form.Fields = append(form.Fields, xep0004.Field{
		Var:    ConfigHistCnt,
		Type:   xep0004.TextSingle,
		Label:  "Maximum Number of History Messages Returned by Room",
		Values: []string{strconv.Itoa(room.Config.HistCnt)},
	})
	form.Fields = append(form.Fields, xep0004.Field{
		Var:    ConfigLogging,
		Type:   xep0004.Boolean,
		Label:  "Enable Public Logging?",
		Values: []string{boolFieldValue(room.Config.EnableLogging)},
	})
	form.Fields = append(form.Fields, xep0004.Field{
		Var:    ConfigAdmins,
		Type:   xep0004.JidMulti,
		Label:  "Room Admins",
		Values: room.Admins(),
	})
	form.Fields = append(form.Fields, xep0004.Field{
		Var:    ConfigOwners,
		Type:   xep0004.JidMulti,
		Label:  "Room Owners",
		Values: room.Owners(),
	})
	return form
}

// updateRoomWithForm applies a submitted configuration form. Valid fields are
// applied even when other fields are rejected, and the room is unlocked only
// when every field was accepted.
func (s *Muc) updateRoomWithForm(ctx context.Context, room *mucmodel.Room,
	form *xep0004.DataForm) (ok bool) {
	ok = true
	prevNonAnonymous := room.Config.NonAnonymous()
	pwdSupplied := false

	for _, field := range form.Fields {
		if len(field.Values) == 0 {
			continue
		}
		switch field.Var {
		case ConfigName:
			room.Name = field.Values[0]
		case ConfigDesc:
			room.Desc = field.Values[0]
		case ConfigChangeSubj:
			ok = applyBoolField(field.Values[0], &room.Config.AllowSubjChange) && ok
		case ConfigAllowInvites:
			ok = applyBoolField(field.Values[0], &room.Config.AllowInvites) && ok
		case ConfigMembersOnly:
			var membersOnly bool
			if applyBoolField(field.Values[0], &membersOnly) {
				room.Config.Open = !membersOnly
			} else {
				ok = false
			}
		case ConfigModerated:
			ok = applyBoolField(field.Values[0], &room.Config.Moderated) && ok
		case ConfigPersistent:
			ok = applyBoolField(field.Values[0], &room.Config.Persistent) && ok
		case ConfigPublic:
			ok = applyBoolField(field.Values[0], &room.Config.Public) && ok
		case ConfigPwdProtected:
			ok = applyBoolField(field.Values[0], &room.Config.PwdProtected) && ok
		case ConfigPwd:
			if err := room.Config.SetPassword(field.Values[0]); err != nil {
				log.Error(err)
				ok = false
			} else {
				pwdSupplied = len(field.Values[0]) > 0
			}
		case ConfigAllowPM:
			if err := room.Config.SetWhoCanSendPM(field.Values[0]); err != nil {
				ok = false
			}
		case ConfigWhoIs:
			if err := room.Config.SetWhoCanRealJIDDisc(whoisConfigValue(field.Values[0])); err != nil {
				ok = false
			}
		case ConfigMaxUsers:
			n, err := strconv.Atoi(field.Values[0])
			if err != nil || n < 0 {
				ok = false
				continue
			}
			room.Config.MaxOccCnt = n
		case ConfigHistCnt:
			n, err := strconv.Atoi(field.Values[0])
			if err != nil || n < 0 {
				ok = false
				continue
			}
			room.Config.HistCnt = n
		case ConfigAdmins:
			ok = s.applyAffiliationField(room, field.Values, mucmodel.Admin) && ok
		case ConfigOwners:
			ok = s.applyAffiliationField(room, field.Values, mucmodel.Owner) && ok
		}
	}

	// a password protected room is unusable without a password
	if room.Config.PwdProtected && !pwdSupplied && room.Config.CheckPassword("") {
		ok = false
	}

	// occupants already hold history messages stamped under the previous
	// anonymity policy, rewrite them before anything else runs on this room
	if room.Config.NonAnonymous() != prevNonAnonymous {
		room.History().RewriteFrom(room.Config.NonAnonymous())
	}

	if ok {
		room.Unlock()
		if err := s.saveRoom(ctx, room); err != nil {
			log.Error(err)
			return false
		}
	}
	return ok
}

func (s *Muc) applyAffiliationField(room *mucmodel.Room, values []string,
	aff mucmodel.Affiliation) bool {
	ok := true
	for _, v := range values {
		bareJID, err := jid.NewWithString(v, false)
		if err != nil {
			ok = false
			continue
		}
		if err := room.SetAffiliation(bareJID.ToBareJID().String(), aff); err != nil {
			ok = false
		}
	}
	return ok
}

func applyBoolField(value string, dst *bool) bool {
	n, err := strconv.ParseBool(value)
	if err != nil {
		return false
	}
	*dst = n
	return true
}

func boolFieldValue(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

func whoisFieldValue(disc string) string {
	if disc == mucmodel.All {
		return "anyone"
	}
	return disc
}

func whoisConfigValue(v string) string {
	if v == "anyone" {
		return mucmodel.All
	}
	return v
}
