/*
 * Copyright (c) 2019 Conclave IM.
 * See the LICENSE file for more information.
 */

package boltdb

import (
	"context"
	"sort"
	"strings"

	pubsubmodel "github.com/conclave-im/conclave/model/pubsub"
	bolt "go.etcd.io/bbolt"
)

type boltDBPubSub struct {
	*boltDBStorage
}

func newPubSub(db *bolt.DB) *boltDBPubSub {
	return &boltDBPubSub{boltDBStorage: newStorage(db)}
}

// UpsertNode inserts a new pubsub node entity into storage, or updates it if previously inserted.
func (b *boltDBPubSub) UpsertNode(_ context.Context, node *pubsubmodel.Node) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		return b.upsert(node, pubSubNodeKey(node.Host, node.Name), tx)
	})
}

// FetchNode retrieves from storage a pubsub node entity.
func (b *boltDBPubSub) FetchNode(_ context.Context, host, name string) (*pubsubmodel.Node, error) {
	var node pubsubmodel.Node
	err := b.db.View(func(tx *bolt.Tx) error {
		return b.fetch(&node, pubSubNodeKey(host, name), tx)
	})
	switch err {
	case nil:
		return &node, nil
	case errEntityNotFound:
		return nil, nil
	default:
		return nil, err
	}
}

// FetchNodes retrieves from storage all node entities associated with a host.
func (b *boltDBPubSub) FetchNodes(_ context.Context, host string) ([]pubsubmodel.Node, error) {
	var nodes []pubsubmodel.Node
	err := b.db.View(func(tx *bolt.Tx) error {
		return b.forEachKeyInTx([]byte("pubSubNodes:"+host+":"), tx, func(k []byte) error {
			var node pubsubmodel.Node
			if err := b.fetch(&node, k, tx); err != nil {
				return err
			}
			nodes = append(nodes, node)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].Name < nodes[j].Name })
	return nodes, nil
}

// FetchSubscribedNodes retrieves from storage all nodes to which a given jid is subscribed.
func (b *boltDBPubSub) FetchSubscribedNodes(_ context.Context, jid string) ([]pubsubmodel.Node, error) {
	var nodes []pubsubmodel.Node
	err := b.db.View(func(tx *bolt.Tx) error {
		return b.forEachKeyInTx([]byte("pubSubSubscriptions:"), tx, func(k []byte) error {
			var subs []pubsubmodel.Subscription
			if err := b.fetchSlice(&subs, k, tx); err != nil {
				return err
			}
			for _, sub := range subs {
				if sub.JID != jid || sub.Subscription != pubsubmodel.Subscribed {
					continue
				}
				host, name := splitPubSubKey(string(k))
				var node pubsubmodel.Node
				err := b.fetch(&node, pubSubNodeKey(host, name), tx)
				switch err {
				case nil:
					nodes = append(nodes, node)
				case errEntityNotFound:
				default:
					return err
				}
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].Name < nodes[j].Name })
	return nodes, nil
}

// DeleteNode deletes a pubsub node from storage.
func (b *boltDBPubSub) DeleteNode(_ context.Context, host, name string) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		if err := b.delete(pubSubNodeKey(host, name), tx); err != nil {
			return err
		}
		if err := b.delete(pubSubItemsKey(host, name), tx); err != nil {
			return err
		}
		if err := b.delete(pubSubAffiliationsKey(host, name), tx); err != nil {
			return err
		}
		return b.delete(pubSubSubscriptionsKey(host, name), tx)
	})
}

// UpsertNodeItem inserts a new pubsub node item entity into storage, or updates it if previously inserted.
func (b *boltDBPubSub) UpsertNodeItem(_ context.Context, item *pubsubmodel.Item, host, name string, maxNodeItems int) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		var items []pubsubmodel.Item
		if err := b.fetchSlice(&items, pubSubItemsKey(host, name), tx); err != nil {
			return err
		}
		var found bool
		for i, itm := range items {
			if itm.ID == item.ID {
				items[i] = *item
				found = true
				break
			}
		}
		if !found {
			items = append(items, *item)
		}
		if maxNodeItems > 0 && len(items) > maxNodeItems {
			items = items[len(items)-maxNodeItems:]
		}
		return b.upsertSlice(&items, pubSubItemsKey(host, name), tx)
	})
}

// DeleteNodeItem deletes a pubsub node item from storage.
func (b *boltDBPubSub) DeleteNodeItem(_ context.Context, host, name, itemID string) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		var items []pubsubmodel.Item
		if err := b.fetchSlice(&items, pubSubItemsKey(host, name), tx); err != nil {
			return err
		}
		for i, itm := range items {
			if itm.ID == itemID {
				items = append(items[:i], items[i+1:]...)
				return b.upsertSlice(&items, pubSubItemsKey(host, name), tx)
			}
		}
		return nil
	})
}

// FetchNodeItems retrieves all items associated to a node.
func (b *boltDBPubSub) FetchNodeItems(_ context.Context, host, name string) ([]pubsubmodel.Item, error) {
	var items []pubsubmodel.Item
	err := b.db.View(func(tx *bolt.Tx) error {
		return b.fetchSlice(&items, pubSubItemsKey(host, name), tx)
	})
	if err != nil {
		return nil, err
	}
	return items, nil
}

// FetchNodeItemsWithIDs retrieves all items matching any of the passed identifiers.
func (b *boltDBPubSub) FetchNodeItemsWithIDs(_ context.Context, host, name string, identifiers []string) ([]pubsubmodel.Item, error) {
	identifierSet := make(map[string]bool, len(identifiers))
	for _, id := range identifiers {
		identifierSet[id] = true
	}
	var ret []pubsubmodel.Item
	err := b.db.View(func(tx *bolt.Tx) error {
		var items []pubsubmodel.Item
		if err := b.fetchSlice(&items, pubSubItemsKey(host, name), tx); err != nil {
			return err
		}
		for _, itm := range items {
			if identifierSet[itm.ID] {
				ret = append(ret, itm)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ret, nil
}

// FetchNodeLastItem retrieves last published node item.
func (b *boltDBPubSub) FetchNodeLastItem(_ context.Context, host, name string) (*pubsubmodel.Item, error) {
	var ret *pubsubmodel.Item
	err := b.db.View(func(tx *bolt.Tx) error {
		var items []pubsubmodel.Item
		if err := b.fetchSlice(&items, pubSubItemsKey(host, name), tx); err != nil {
			return err
		}
		if len(items) > 0 {
			it := items[len(items)-1]
			ret = &it
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ret, nil
}

// UpsertNodeAffiliation inserts a new pubsub node affiliation into storage, or updates it if previously inserted.
func (b *boltDBPubSub) UpsertNodeAffiliation(_ context.Context, affiliation *pubsubmodel.Affiliation, host, name string) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		var affs []pubsubmodel.Affiliation
		if err := b.fetchSlice(&affs, pubSubAffiliationsKey(host, name), tx); err != nil {
			return err
		}
		var found bool
		for i, aff := range affs {
			if aff.JID == affiliation.JID {
				affs[i] = *affiliation
				found = true
				break
			}
		}
		if !found {
			affs = append(affs, *affiliation)
		}
		return b.upsertSlice(&affs, pubSubAffiliationsKey(host, name), tx)
	})
}

// FetchNodeAffiliation retrieves a concrete node affiliation from storage.
func (b *boltDBPubSub) FetchNodeAffiliation(ctx context.Context, host, name, jid string) (*pubsubmodel.Affiliation, error) {
	affs, err := b.FetchNodeAffiliations(ctx, host, name)
	if err != nil {
		return nil, err
	}
	for _, aff := range affs {
		if aff.JID == jid {
			a := aff
			return &a, nil
		}
	}
	return nil, nil
}

// FetchNodeAffiliations retrieves all affiliations associated to a node.
func (b *boltDBPubSub) FetchNodeAffiliations(_ context.Context, host, name string) ([]pubsubmodel.Affiliation, error) {
	var affs []pubsubmodel.Affiliation
	err := b.db.View(func(tx *bolt.Tx) error {
		return b.fetchSlice(&affs, pubSubAffiliationsKey(host, name), tx)
	})
	if err != nil {
		return nil, err
	}
	return affs, nil
}

// DeleteNodeAffiliation deletes a pubsub node affiliation from storage.
func (b *boltDBPubSub) DeleteNodeAffiliation(_ context.Context, jid, host, name string) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		var affs []pubsubmodel.Affiliation
		if err := b.fetchSlice(&affs, pubSubAffiliationsKey(host, name), tx); err != nil {
			return err
		}
		for i, aff := range affs {
			if aff.JID == jid {
				affs = append(affs[:i], affs[i+1:]...)
				return b.upsertSlice(&affs, pubSubAffiliationsKey(host, name), tx)
			}
		}
		return nil
	})
}

// UpsertNodeSubscription inserts a new pubsub node subscription into storage, or updates it if previously inserted.
func (b *boltDBPubSub) UpsertNodeSubscription(_ context.Context, subscription *pubsubmodel.Subscription, host, name string) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		var subs []pubsubmodel.Subscription
		if err := b.fetchSlice(&subs, pubSubSubscriptionsKey(host, name), tx); err != nil {
			return err
		}
		var found bool
		for i, sub := range subs {
			if sub.JID == subscription.JID {
				subs[i] = *subscription
				found = true
				break
			}
		}
		if !found {
			subs = append(subs, *subscription)
		}
		return b.upsertSlice(&subs, pubSubSubscriptionsKey(host, name), tx)
	})
}

// FetchNodeSubscriptions retrieves all subscriptions associated to a node.
func (b *boltDBPubSub) FetchNodeSubscriptions(_ context.Context, host, name string) ([]pubsubmodel.Subscription, error) {
	var subs []pubsubmodel.Subscription
	err := b.db.View(func(tx *bolt.Tx) error {
		return b.fetchSlice(&subs, pubSubSubscriptionsKey(host, name), tx)
	})
	if err != nil {
		return nil, err
	}
	return subs, nil
}

// DeleteNodeSubscription deletes a pubsub node subscription from storage.
func (b *boltDBPubSub) DeleteNodeSubscription(_ context.Context, jid, host, name string) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		var subs []pubsubmodel.Subscription
		if err := b.fetchSlice(&subs, pubSubSubscriptionsKey(host, name), tx); err != nil {
			return err
		}
		for i, sub := range subs {
			if sub.JID == jid {
				subs = append(subs[:i], subs[i+1:]...)
				return b.upsertSlice(&subs, pubSubSubscriptionsKey(host, name), tx)
			}
		}
		return nil
	})
}

func pubSubNodeKey(host, name string) []byte {
	return []byte("pubSubNodes:" + host + ":" + name)
}

func pubSubItemsKey(host, name string) []byte {
	return []byte("pubSubItems:" + host + ":" + name)
}

func pubSubAffiliationsKey(host, name string) []byte {
	return []byte("pubSubAffiliations:" + host + ":" + name)
}

func pubSubSubscriptionsKey(host, name string) []byte {
	return []byte("pubSubSubscriptions:" + host + ":" + name)
}

func splitPubSubKey(k string) (host, name string) {
	s := k[strings.Index(k, ":")+1:]
	i := strings.Index(s, ":")
	return s[:i], s[i+1:]
}
