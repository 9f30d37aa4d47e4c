/*
 * Copyright (c) 2019 Conclave IM.
 * See the LICENSE file for more information.
 */

package xep0060

import (
	"context"
	"fmt"

	pubsubmodel "github.com/conclave-im/conclave/model/pubsub"
	"github.com/conclave-im/conclave/model/rostermodel"
	"github.com/conclave-im/conclave/storage"
	"github.com/conclave-im/conclave/xmpp/jid"
	"github.com/pkg/errors"
)

var (
	errOutcastMember                = errors.New("pubsub: outcast member")
	errPresenceSubscriptionRequired = errors.New("pubsub: presence subscription required")
	errNotInRosterGroup             = errors.New("pubsub: not in roster group")
	errNotOnWhiteList               = errors.New("pubsub: not on whitelist")
)

type accessChecker struct {
	owner               string
	accessModel         string
	rosterAllowedGroups []string
	affiliation         *pubsubmodel.Affiliation
}

func (ac *accessChecker) checkAccess(ctx context.Context, j string) error {
	aff := ac.affiliation
	if aff != nil && aff.Affiliation == pubsubmodel.Outcast {
		return errOutcastMember
	}
	switch ac.accessModel {
	case pubsubmodel.Open:
		return nil

	case pubsubmodel.Presence:
		allowed, err := ac.checkPresenceAccess(ctx, j)
		if err != nil {
			return err
		}
		if !allowed {
			return errPresenceSubscriptionRequired
		}

	case pubsubmodel.Roster:
		allowed, err := ac.checkRosterAccess(ctx, j)
		if err != nil {
			return err
		}
		if !allowed {
			return errNotInRosterGroup
		}

	case pubsubmodel.WhiteList:
		if aff == nil {
			return errNotOnWhiteList
		}

	default:
		return fmt.Errorf("pubsub: unrecognized access model: %s", ac.accessModel)
	}
	return nil
}

func (ac *accessChecker) checkPresenceAccess(ctx context.Context, j string) (bool, error) {
	ownerJID, err := jid.NewWithString(ac.owner, true)
	if err != nil {
		return false, nil
	}
	contactJID, _ := jid.NewWithString(j, true)

	ri, err := storage.FetchRosterItem(ctx, ownerJID.Node(), contactJID.ToBareJID().String())
	if err != nil {
		return false, err
	}
	allowed := ri != nil && (ri.Subscription == rostermodel.SubscriptionFrom || ri.Subscription == rostermodel.SubscriptionBoth)
	return allowed, nil
}

func (ac *accessChecker) checkRosterAccess(ctx context.Context, j string) (bool, error) {
	ownerJID, err := jid.NewWithString(ac.owner, true)
	if err != nil {
		return false, nil
	}
	contactJID, _ := jid.NewWithString(j, true)

	ri, err := storage.FetchRosterItem(ctx, ownerJID.Node(), contactJID.ToBareJID().String())
	if err != nil {
		return false, err
	}
	if ri == nil {
		return false, nil
	}
	for _, group := range ri.Groups {
		for _, allowedGroup := range ac.rosterAllowedGroups {
			if group == allowedGroup {
				return true, nil
			}
		}
	}
	return false, nil
}
