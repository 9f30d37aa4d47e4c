/*
 * Copyright (c) 2019 Conclave IM.
 * See the LICENSE file for more information.
 */

package pgsql

import (
	"context"
	"database/sql"

	sq "github.com/Masterminds/squirrel"
	pubsubmodel "github.com/conclave-im/conclave/model/pubsub"
	"github.com/conclave-im/conclave/model/serializer"
)

type pgSQLPubSub struct {
	*pgSQLStorage
}

func newPubSub(db *sql.DB) *pgSQLPubSub {
	return &pgSQLPubSub{pgSQLStorage: newStorage(db)}
}

func (s *pgSQLPubSub) UpsertNode(ctx context.Context, node *pubsubmodel.Node) error {
	return s.inTransaction(ctx, func(tx *sql.Tx) error {
		// if not existing, insert new node
		_, err := sq.Insert("pubsub_nodes").
			Columns("host", "name", "parent", "collection", "updated_at", "created_at").
			Values(node.Host, node.Name, node.Parent, node.Collection, nowExpr, nowExpr).
			Suffix("ON CONFLICT (host, name) DO UPDATE SET parent = $3, collection = $4, updated_at = NOW()").
			RunWith(tx).ExecContext(ctx)
		if err != nil {
			return err
		}
		nodeIdentifier, err := fetchPubSubNodeIdentifier(ctx, node.Host, node.Name, tx)
		if err != nil {
			return err
		}
		// delete previous node options
		_, err = sq.Delete("pubsub_node_options").
			Where(sq.Eq{"node_id": nodeIdentifier}).
			RunWith(tx).ExecContext(ctx)
		if err != nil {
			return err
		}
		// insert new option set
		optionSetMap, err := node.Options.Map()
		if err != nil {
			return err
		}
		for name, value := range optionSetMap {
			_, err = sq.Insert("pubsub_node_options").
				Columns("node_id", "name", "value").
				Values(nodeIdentifier, name, value).
				RunWith(tx).ExecContext(ctx)
			if err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *pgSQLPubSub) FetchNode(ctx context.Context, host, name string) (*pubsubmodel.Node, error) {
	var node pubsubmodel.Node
	var collection bool

	q := sq.Select("parent", "collection").
		From("pubsub_nodes").
		Where(sq.And{sq.Eq{"host": host}, sq.Eq{"name": name}})

	err := q.RunWith(s.db).QueryRowContext(ctx).Scan(&node.Parent, &collection)
	switch err {
	case nil:
		break
	case sql.ErrNoRows:
		return nil, nil
	default:
		return nil, err
	}
	node.Host = host
	node.Name = name
	node.Collection = collection

	opts, err := s.fetchPubSubNodeOptions(ctx, host, name)
	if err != nil {
		return nil, err
	}
	if opts != nil {
		node.Options = *opts
	}
	return &node, nil
}

func (s *pgSQLPubSub) FetchNodes(ctx context.Context, host string) ([]pubsubmodel.Node, error) {
	rows, err := sq.Select("name").
		From("pubsub_nodes").
		Where(sq.Eq{"host": host}).
		OrderBy("name").
		RunWith(s.db).QueryContext(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	var nodes []pubsubmodel.Node
	for _, name := range names {
		node, err := s.FetchNode(ctx, host, name)
		if err != nil {
			return nil, err
		}
		if node != nil {
			nodes = append(nodes, *node)
		}
	}
	return nodes, nil
}

func (s *pgSQLPubSub) FetchSubscribedNodes(ctx context.Context, jid string) ([]pubsubmodel.Node, error) {
	rows, err := sq.Select("host", "name").
		From("pubsub_nodes").
		Where(sq.Expr("id IN (SELECT DISTINCT(node_id) FROM pubsub_subscriptions WHERE jid = ? AND subscription = ?)", jid, pubsubmodel.Subscribed)).
		RunWith(s.db).QueryContext(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	type hostName struct{ host, name string }
	var refs []hostName
	for rows.Next() {
		var ref hostName
		if err := rows.Scan(&ref.host, &ref.name); err != nil {
			return nil, err
		}
		refs = append(refs, ref)
	}
	var nodes []pubsubmodel.Node
	for _, ref := range refs {
		node, err := s.FetchNode(ctx, ref.host, ref.name)
		if err != nil {
			return nil, err
		}
		if node != nil {
			nodes = append(nodes, *node)
		}
	}
	return nodes, nil
}

func (s *pgSQLPubSub) DeleteNode(ctx context.Context, host, name string) error {
	return s.inTransaction(ctx, func(tx *sql.Tx) error {
		nodeIdentifier, err := fetchPubSubNodeIdentifier(ctx, host, name, tx)
		switch err {
		case nil:
			break
		case sql.ErrNoRows:
			return nil
		default:
			return err
		}
		_, err = sq.Delete("pubsub_nodes").
			Where(sq.Eq{"id": nodeIdentifier}).
			RunWith(tx).ExecContext(ctx)
		if err != nil {
			return err
		}
		_, err = sq.Delete("pubsub_node_options").
			Where(sq.Eq{"node_id": nodeIdentifier}).
			RunWith(tx).ExecContext(ctx)
		if err != nil {
			return err
		}
		_, err = sq.Delete("pubsub_items").
			Where(sq.Eq{"node_id": nodeIdentifier}).
			RunWith(tx).ExecContext(ctx)
		if err != nil {
			return err
		}
		_, err = sq.Delete("pubsub_affiliations").
			Where(sq.Eq{"node_id": nodeIdentifier}).
			RunWith(tx).ExecContext(ctx)
		if err != nil {
			return err
		}
		_, err = sq.Delete("pubsub_subscriptions").
			Where(sq.Eq{"node_id": nodeIdentifier}).
			RunWith(tx).ExecContext(ctx)
		return err
	})
}

func (s *pgSQLPubSub) UpsertNodeItem(ctx context.Context, item *pubsubmodel.Item, host, name string, maxNodeItems int) error {
	return s.inTransaction(ctx, func(tx *sql.Tx) error {
		nodeIdentifier, err := fetchPubSubNodeIdentifier(ctx, host, name, tx)
		switch err {
		case nil:
			break
		case sql.ErrNoRows:
			return nil
		default:
			return err
		}
		b, err := serializer.Serialize(item)
		if err != nil {
			return err
		}
		_, err = sq.Insert("pubsub_items").
			Columns("node_id", "item_id", "serialized", "updated_at", "created_at").
			Values(nodeIdentifier, item.ID, b, nowExpr, nowExpr).
			Suffix("ON CONFLICT (node_id, item_id) DO UPDATE SET serialized = $3, updated_at = NOW()").
			RunWith(tx).ExecContext(ctx)
		if err != nil {
			return err
		}
		if maxNodeItems <= 0 {
			return nil
		}
		// check if maximum item count was reached and delete oldest ones
		_, err = tx.ExecContext(ctx, `
DELETE FROM pubsub_items WHERE node_id = $1 AND item_id IN (
  SELECT item_id FROM pubsub_items WHERE node_id = $1 ORDER BY created_at DESC OFFSET $2
)`, nodeIdentifier, maxNodeItems)
		return err
	})
}

func (s *pgSQLPubSub) DeleteNodeItem(ctx context.Context, host, name, itemID string) error {
	_, err := sq.Delete("pubsub_items").
		Where(sq.Expr("node_id = (SELECT id FROM pubsub_nodes WHERE host = ? AND name = ?) AND item_id = ?", host, name, itemID)).
		RunWith(s.db).ExecContext(ctx)
	return err
}

func (s *pgSQLPubSub) FetchNodeItems(ctx context.Context, host, name string) ([]pubsubmodel.Item, error) {
	rows, err := sq.Select("serialized").
		From("pubsub_items").
		Where(sq.Expr("node_id = (SELECT id FROM pubsub_nodes WHERE host = ? AND name = ?)", host, name)).
		OrderBy("created_at").
		RunWith(s.db).QueryContext(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	return scanPubSubNodeItems(rows)
}

func (s *pgSQLPubSub) FetchNodeItemsWithIDs(ctx context.Context, host, name string, identifiers []string) ([]pubsubmodel.Item, error) {
	rows, err := sq.Select("serialized").
		From("pubsub_items").
		Where(sq.And{
			sq.Expr("node_id = (SELECT id FROM pubsub_nodes WHERE host = ? AND name = ?)", host, name),
			sq.Eq{"item_id": identifiers},
		}).
		OrderBy("created_at").
		RunWith(s.db).QueryContext(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	return scanPubSubNodeItems(rows)
}

func (s *pgSQLPubSub) FetchNodeLastItem(ctx context.Context, host, name string) (*pubsubmodel.Item, error) {
	row := sq.Select("serialized").
		From("pubsub_items").
		Where(sq.Expr("node_id = (SELECT id FROM pubsub_nodes WHERE host = ? AND name = ?)", host, name)).
		OrderBy("created_at DESC").
		Limit(1).
		RunWith(s.db).QueryRowContext(ctx)

	item, err := scanPubSubNodeItem(row)
	switch err {
	case nil:
		return item, nil
	case sql.ErrNoRows:
		return nil, nil
	default:
		return nil, err
	}
}

func (s *pgSQLPubSub) UpsertNodeAffiliation(ctx context.Context, affiliation *pubsubmodel.Affiliation, host, name string) error {
	return s.inTransaction(ctx, func(tx *sql.Tx) error {
		nodeIdentifier, err := fetchPubSubNodeIdentifier(ctx, host, name, tx)
		switch err {
		case nil:
			break
		case sql.ErrNoRows:
			return nil
		default:
			return err
		}
		_, err = sq.Insert("pubsub_affiliations").
			Columns("node_id", "jid", "affiliation", "updated_at", "created_at").
			Values(nodeIdentifier, affiliation.JID, affiliation.Affiliation, nowExpr, nowExpr).
			Suffix("ON CONFLICT (node_id, jid) DO UPDATE SET affiliation = $3, updated_at = NOW()").
			RunWith(tx).ExecContext(ctx)
		return err
	})
}

func (s *pgSQLPubSub) FetchNodeAffiliation(ctx context.Context, host, name, jid string) (*pubsubmodel.Affiliation, error) {
	var aff pubsubmodel.Affiliation

	row := sq.Select("jid", "affiliation").
		From("pubsub_affiliations").
		Where(sq.Expr("node_id = (SELECT id FROM pubsub_nodes WHERE host = ? AND name = ?) AND jid = ?", host, name, jid)).
		RunWith(s.db).QueryRowContext(ctx)
	err := row.Scan(&aff.JID, &aff.Affiliation)
	switch err {
	case nil:
		return &aff, nil
	case sql.ErrNoRows:
		return nil, nil
	default:
		return nil, err
	}
}

func (s *pgSQLPubSub) FetchNodeAffiliations(ctx context.Context, host, name string) ([]pubsubmodel.Affiliation, error) {
	rows, err := sq.Select("jid", "affiliation").
		From("pubsub_affiliations").
		Where(sq.Expr("node_id = (SELECT id FROM pubsub_nodes WHERE host = ? AND name = ?)", host, name)).
		RunWith(s.db).QueryContext(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var affiliations []pubsubmodel.Affiliation
	for rows.Next() {
		var affiliation pubsubmodel.Affiliation
		if err := rows.Scan(&affiliation.JID, &affiliation.Affiliation); err != nil {
			return nil, err
		}
		affiliations = append(affiliations, affiliation)
	}
	return affiliations, nil
}

func (s *pgSQLPubSub) DeleteNodeAffiliation(ctx context.Context, jid, host, name string) error {
	_, err := sq.Delete("pubsub_affiliations").
		Where(sq.Expr("jid = ? AND node_id = (SELECT id FROM pubsub_nodes WHERE host = ? AND name = ?)", jid, host, name)).
		RunWith(s.db).ExecContext(ctx)
	return err
}

func (s *pgSQLPubSub) UpsertNodeSubscription(ctx context.Context, subscription *pubsubmodel.Subscription, host, name string) error {
	return s.inTransaction(ctx, func(tx *sql.Tx) error {
		nodeIdentifier, err := fetchPubSubNodeIdentifier(ctx, host, name, tx)
		switch err {
		case nil:
			break
		case sql.ErrNoRows:
			return nil
		default:
			return err
		}
		_, err = sq.Insert("pubsub_subscriptions").
			Columns("node_id", "subid", "jid", "subscription", "updated_at", "created_at").
			Values(nodeIdentifier, subscription.SubID, subscription.JID, subscription.Subscription, nowExpr, nowExpr).
			Suffix("ON CONFLICT (node_id, jid) DO UPDATE SET subid = $2, subscription = $4, updated_at = NOW()").
			RunWith(tx).ExecContext(ctx)
		return err
	})
}

func (s *pgSQLPubSub) FetchNodeSubscriptions(ctx context.Context, host, name string) ([]pubsubmodel.Subscription, error) {
	rows, err := sq.Select("subid", "jid", "subscription").
		From("pubsub_subscriptions").
		Where(sq.Expr("node_id = (SELECT id FROM pubsub_nodes WHERE host = ? AND name = ?)", host, name)).
		RunWith(s.db).QueryContext(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var subscriptions []pubsubmodel.Subscription
	for rows.Next() {
		var subscription pubsubmodel.Subscription
		if err := rows.Scan(&subscription.SubID, &subscription.JID, &subscription.Subscription); err != nil {
			return nil, err
		}
		subscriptions = append(subscriptions, subscription)
	}
	return subscriptions, nil
}

func (s *pgSQLPubSub) DeleteNodeSubscription(ctx context.Context, jid, host, name string) error {
	_, err := sq.Delete("pubsub_subscriptions").
		Where(sq.Expr("jid = ? AND node_id = (SELECT id FROM pubsub_nodes WHERE host = ? AND name = ?)", jid, host, name)).
		RunWith(s.db).ExecContext(ctx)
	return err
}

func (s *pgSQLPubSub) fetchPubSubNodeOptions(ctx context.Context, host, name string) (*pubsubmodel.Options, error) {
	rows, err := sq.Select("name", "value").
		From("pubsub_node_options").
		Where(sq.Expr("node_id = (SELECT id FROM pubsub_nodes WHERE host = ? AND name = ?)", host, name)).
		RunWith(s.db).QueryContext(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var optMap = make(map[string]string)
	for rows.Next() {
		var opt, value string
		if err := rows.Scan(&opt, &value); err != nil {
			return nil, err
		}
		optMap[opt] = value
	}
	if len(optMap) == 0 {
		return nil, nil
	}
	return pubsubmodel.NewOptionsFromMap(optMap)
}

func fetchPubSubNodeIdentifier(ctx context.Context, host, name string, tx *sql.Tx) (string, error) {
	var nodeIdentifier string
	err := sq.Select("id").
		From("pubsub_nodes").
		Where(sq.And{sq.Eq{"host": host}, sq.Eq{"name": name}}).
		RunWith(tx).QueryRowContext(ctx).Scan(&nodeIdentifier)
	if err != nil {
		return "", err
	}
	return nodeIdentifier, nil
}

func scanPubSubNodeItems(scanner rowsScanner) ([]pubsubmodel.Item, error) {
	var items []pubsubmodel.Item
	for scanner.Next() {
		var b []byte
		if err := scanner.Scan(&b); err != nil {
			return nil, err
		}
		var item pubsubmodel.Item
		if err := serializer.Deserialize(b, &item); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}

func scanPubSubNodeItem(scanner rowScanner) (*pubsubmodel.Item, error) {
	var b []byte
	if err := scanner.Scan(&b); err != nil {
		return nil, err
	}
	var item pubsubmodel.Item
	if err := serializer.Deserialize(b, &item); err != nil {
		return nil, err
	}
	return &item, nil
}
