/*
 * Copyright (c) 2019 Conclave IM.
 * See the LICENSE file for more information.
 */

package memstorage

import (
	"context"
	"sort"
	"strings"

	pubsubmodel "github.com/conclave-im/conclave/model/pubsub"
)

// UpsertNode inserts a new pubsub node entity into storage, or updates it if previously inserted.
func (m *Storage) UpsertNode(_ context.Context, node *pubsubmodel.Node) error {
	return m.inWriteLock(func() error {
		return m.saveEntity(pubSubNodeKey(node.Host, node.Name), node)
	})
}

// FetchNode retrieves from storage a pubsub node entity.
func (m *Storage) FetchNode(_ context.Context, host, name string) (*pubsubmodel.Node, error) {
	var node pubsubmodel.Node
	var ok bool
	err := m.inReadLock(func() error {
		var fnErr error
		ok, fnErr = m.getEntity(pubSubNodeKey(host, name), &node)
		return fnErr
	})
	switch {
	case err != nil:
		return nil, err
	case ok:
		return &node, nil
	default:
		return nil, nil
	}
}

// FetchNodes retrieves from storage all node entities associated with a host.
func (m *Storage) FetchNodes(_ context.Context, host string) ([]pubsubmodel.Node, error) {
	var nodes []pubsubmodel.Node
	err := m.inReadLock(func() error {
		return m.forEachKeyPrefix("pubSubNodes:"+host+":", func(k string) error {
			var node pubsubmodel.Node
			if _, err := m.getEntity(k, &node); err != nil {
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
func (m *Storage) FetchSubscribedNodes(_ context.Context, jid string) ([]pubsubmodel.Node, error) {
	var nodes []pubsubmodel.Node
	err := m.inReadLock(func() error {
		return m.forEachKeyPrefix("pubSubSubscriptions:", func(k string) error {
			var subs []pubsubmodel.Subscription
			if err := m.getSlice(k, &subs); err != nil {
				return err
			}
			for _, sub := range subs {
				if sub.JID != jid || sub.Subscription != pubsubmodel.Subscribed {
					continue
				}
				host, name := splitPubSubKey(k)
				var node pubsubmodel.Node
				ok, err := m.getEntity(pubSubNodeKey(host, name), &node)
				if err != nil {
					return err
				}
				if ok {
					nodes = append(nodes, node)
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
func (m *Storage) DeleteNode(_ context.Context, host, name string) error {
	return m.inWriteLock(func() error {
		delete(m.b, pubSubNodeKey(host, name))
		delete(m.b, pubSubItemsKey(host, name))
		delete(m.b, pubSubAffiliationsKey(host, name))
		delete(m.b, pubSubSubscriptionsKey(host, name))
		return nil
	})
}

// UpsertNodeItem inserts a new pubsub node item entity into storage, or updates it if previously inserted.
func (m *Storage) UpsertNodeItem(_ context.Context, item *pubsubmodel.Item, host, name string, maxNodeItems int) error {
	return m.inWriteLock(func() error {
		var items []pubsubmodel.Item
		if err := m.getSlice(pubSubItemsKey(host, name), &items); err != nil {
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
		return m.saveSlice(pubSubItemsKey(host, name), &items)
	})
}

// DeleteNodeItem deletes a pubsub node item from storage.
func (m *Storage) DeleteNodeItem(_ context.Context, host, name, itemID string) error {
	return m.inWriteLock(func() error {
		var items []pubsubmodel.Item
		if err := m.getSlice(pubSubItemsKey(host, name), &items); err != nil {
			return err
		}
		for i, itm := range items {
			if itm.ID == itemID {
				items = append(items[:i], items[i+1:]...)
				return m.saveSlice(pubSubItemsKey(host, name), &items)
			}
		}
		return nil
	})
}

// FetchNodeItems retrieves all items associated to a node.
func (m *Storage) FetchNodeItems(_ context.Context, host, name string) ([]pubsubmodel.Item, error) {
	var items []pubsubmodel.Item
	err := m.inReadLock(func() error {
		return m.getSlice(pubSubItemsKey(host, name), &items)
	})
	if err != nil {
		return nil, err
	}
	return items, nil
}

// FetchNodeItemsWithIDs retrieves all items matching any of the passed identifiers.
func (m *Storage) FetchNodeItemsWithIDs(_ context.Context, host, name string, identifiers []string) ([]pubsubmodel.Item, error) {
	identifierSet := make(map[string]bool, len(identifiers))
	for _, id := range identifiers {
		identifierSet[id] = true
	}
	var ret []pubsubmodel.Item
	err := m.inReadLock(func() error {
		var items []pubsubmodel.Item
		if err := m.getSlice(pubSubItemsKey(host, name), &items); err != nil {
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
func (m *Storage) FetchNodeLastItem(_ context.Context, host, name string) (*pubsubmodel.Item, error) {
	var ret *pubsubmodel.Item
	err := m.inReadLock(func() error {
		var items []pubsubmodel.Item
		if err := m.getSlice(pubSubItemsKey(host, name), &items); err != nil {
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
func (m *Storage) UpsertNodeAffiliation(_ context.Context, affiliation *pubsubmodel.Affiliation, host, name string) error {
	return m.inWriteLock(func() error {
		var affs []pubsubmodel.Affiliation
		if err := m.getSlice(pubSubAffiliationsKey(host, name), &affs); err != nil {
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
		return m.saveSlice(pubSubAffiliationsKey(host, name), &affs)
	})
}

// FetchNodeAffiliation retrieves a concrete node affiliation from storage.
func (m *Storage) FetchNodeAffiliation(ctx context.Context, host, name, jid string) (*pubsubmodel.Affiliation, error) {
	affs, err := m.FetchNodeAffiliations(ctx, host, name)
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
func (m *Storage) FetchNodeAffiliations(_ context.Context, host, name string) ([]pubsubmodel.Affiliation, error) {
	var affs []pubsubmodel.Affiliation
	err := m.inReadLock(func() error {
		return m.getSlice(pubSubAffiliationsKey(host, name), &affs)
	})
	if err != nil {
		return nil, err
	}
	return affs, nil
}

// DeleteNodeAffiliation deletes a pubsub node affiliation from storage.
func (m *Storage) DeleteNodeAffiliation(_ context.Context, jid, host, name string) error {
	return m.inWriteLock(func() error {
		var affs []pubsubmodel.Affiliation
		if err := m.getSlice(pubSubAffiliationsKey(host, name), &affs); err != nil {
			return err
		}
		for i, aff := range affs {
			if aff.JID == jid {
				affs = append(affs[:i], affs[i+1:]...)
				return m.saveSlice(pubSubAffiliationsKey(host, name), &affs)
			}
		}
		return nil
	})
}

// UpsertNodeSubscription inserts a new pubsub node subscription into storage, or updates it if previously inserted.
func (m *Storage) UpsertNodeSubscription(_ context.Context, subscription *pubsubmodel.Subscription, host, name string) error {
	return m.inWriteLock(func() error {
		var subs []pubsubmodel.Subscription
		if err := m.getSlice(pubSubSubscriptionsKey(host, name), &subs); err != nil {
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
		return m.saveSlice(pubSubSubscriptionsKey(host, name), &subs)
	})
}

// FetchNodeSubscriptions retrieves all subscriptions associated to a node.
func (m *Storage) FetchNodeSubscriptions(_ context.Context, host, name string) ([]pubsubmodel.Subscription, error) {
	var subs []pubsubmodel.Subscription
	err := m.inReadLock(func() error {
		return m.getSlice(pubSubSubscriptionsKey(host, name), &subs)
	})
	if err != nil {
		return nil, err
	}
	return subs, nil
}

// DeleteNodeSubscription deletes a pubsub node subscription from storage.
func (m *Storage) DeleteNodeSubscription(_ context.Context, jid, host, name string) error {
	return m.inWriteLock(func() error {
		var subs []pubsubmodel.Subscription
		if err := m.getSlice(pubSubSubscriptionsKey(host, name), &subs); err != nil {
			return err
		}
		for i, sub := range subs {
			if sub.JID == jid {
				subs = append(subs[:i], subs[i+1:]...)
				return m.saveSlice(pubSubSubscriptionsKey(host, name), &subs)
			}
		}
		return nil
	})
}

func pubSubNodeKey(host, name string) string {
	return "pubSubNodes:" + host + ":" + name
}

func pubSubItemsKey(host, name string) string {
	return "pubSubItems:" + host + ":" + name
}

func pubSubAffiliationsKey(host, name string) string {
	return "pubSubAffiliations:" + host + ":" + name
}

func pubSubSubscriptionsKey(host, name string) string {
	return "pubSubSubscriptions:" + host + ":" + name
}

func splitPubSubKey(k string) (host, name string) {
	s := k[strings.Index(k, ":")+1:]
	i := strings.Index(s, ":")
	return s[:i], s[i+1:]
}
