/*
 * Copyright (c) 2019 Conclave IM.
 * See the LICENSE file for more information.
 */

package mysql

import (
	"context"
	"database/sql"
	"encoding/json"

	sq "github.com/Masterminds/squirrel"
	"github.com/conclave-im/conclave/model/rostermodel"
	"github.com/conclave-im/conclave/model/serializer"
)

type mySQLRoster struct {
	*mySQLStorage
}

func newRoster(db *sql.DB) *mySQLRoster {
	return &mySQLRoster{mySQLStorage: newStorage(db)}
}

func (s *mySQLRoster) UpsertRosterItem(ctx context.Context, ri *rostermodel.Item) (rostermodel.Version, error) {
	var ver rostermodel.Version

	err := s.inTransaction(ctx, func(tx *sql.Tx) error {
		q := sq.Insert("roster_versions").
			Columns("username", "created_at", "updated_at").
			Values(ri.Username, nowExpr, nowExpr).
			Suffix("ON DUPLICATE KEY UPDATE ver = ver + 1, updated_at = NOW()")
		if _, err := q.RunWith(tx).ExecContext(ctx); err != nil {
			return err
		}
		groupsBytes, err := json.Marshal(ri.Groups)
		if err != nil {
			return err
		}
		verExpr := sq.Expr("(SELECT ver FROM roster_versions WHERE username = ?)", ri.Username)
		q = sq.Insert("roster_items").
			Columns("username", "jid", "name", "subscription", "`groups`", "ask", "ver", "created_at", "updated_at").
			Values(ri.Username, ri.JID, ri.Name, ri.Subscription, groupsBytes, ri.Ask, verExpr, nowExpr, nowExpr).
			Suffix("ON DUPLICATE KEY UPDATE name = ?, subscription = ?, `groups` = ?, ask = ?, ver = ver + 1, updated_at = NOW()", ri.Name, ri.Subscription, groupsBytes, ri.Ask)
		res, err := q.RunWith(tx).ExecContext(ctx)
		if err != nil {
			return err
		}
		if ri.ID == 0 {
			id, err := res.LastInsertId()
			if err != nil {
				return err
			}
			ri.ID = id
		}
		ver, err = fetchRosterVer(ctx, ri.Username, tx)
		if err != nil {
			return err
		}
		ri.Ver = ver.Ver
		return nil
	})
	if err != nil {
		return rostermodel.Version{}, err
	}
	return ver, nil
}

func (s *mySQLRoster) DeleteRosterItem(ctx context.Context, username, jid string) (rostermodel.Version, error) {
	var ver rostermodel.Version

	err := s.inTransaction(ctx, func(tx *sql.Tx) error {
		q := sq.Insert("roster_versions").
			Columns("username", "created_at", "updated_at").
			Values(username, nowExpr, nowExpr).
			Suffix("ON DUPLICATE KEY UPDATE ver = ver + 1, last_deletion_ver = ver, updated_at = NOW()")
		if _, err := q.RunWith(tx).ExecContext(ctx); err != nil {
			return err
		}
		_, err := sq.Delete("roster_items").
			Where(sq.And{sq.Eq{"username": username}, sq.Eq{"jid": jid}}).
			RunWith(tx).ExecContext(ctx)
		if err != nil {
			return err
		}
		ver, err = fetchRosterVer(ctx, username, tx)
		return err
	})
	if err != nil {
		return rostermodel.Version{}, err
	}
	return ver, nil
}

func (s *mySQLRoster) FetchRosterItems(ctx context.Context, username string) ([]rostermodel.Item, rostermodel.Version, error) {
	q := sq.Select("id", "username", "jid", "name", "subscription", "`groups`", "ask", "ver").
		From("roster_items").
		Where(sq.Eq{"username": username}).
		OrderBy("created_at DESC")

	rows, err := q.RunWith(s.db).QueryContext(ctx)
	if err != nil {
		return nil, rostermodel.Version{}, err
	}
	defer func() { _ = rows.Close() }()

	items, err := scanRosterItemEntities(rows)
	if err != nil {
		return nil, rostermodel.Version{}, err
	}
	ver, err := fetchRosterVer(ctx, username, s.db)
	if err != nil {
		return nil, rostermodel.Version{}, err
	}
	return items, ver, nil
}

func (s *mySQLRoster) FetchRosterItem(ctx context.Context, username, jid string) (*rostermodel.Item, error) {
	q := sq.Select("id", "username", "jid", "name", "subscription", "`groups`", "ask", "ver").
		From("roster_items").
		Where(sq.And{sq.Eq{"username": username}, sq.Eq{"jid": jid}})

	var ri rostermodel.Item
	err := scanRosterItemEntity(&ri, q.RunWith(s.db).QueryRowContext(ctx))
	switch err {
	case nil:
		return &ri, nil
	case sql.ErrNoRows:
		return nil, nil
	default:
		return nil, err
	}
}

func (s *mySQLRoster) UpsertRosterNotification(ctx context.Context, rn *rostermodel.Notification) error {
	b, err := serializer.Serialize(rn)
	if err != nil {
		return err
	}
	q := sq.Insert("roster_notifications").
		Columns("contact", "jid", "serialized", "updated_at", "created_at").
		Values(rn.Contact, rn.JID, b, nowExpr, nowExpr).
		Suffix("ON DUPLICATE KEY UPDATE serialized = ?, updated_at = NOW()", b)
	_, err = q.RunWith(s.db).ExecContext(ctx)
	return err
}

func (s *mySQLRoster) DeleteRosterNotification(ctx context.Context, contact, jid string) error {
	_, err := sq.Delete("roster_notifications").
		Where(sq.And{sq.Eq{"contact": contact}, sq.Eq{"jid": jid}}).
		RunWith(s.db).ExecContext(ctx)
	return err
}

func (s *mySQLRoster) FetchRosterNotifications(ctx context.Context, contact string) ([]rostermodel.Notification, error) {
	q := sq.Select("serialized").
		From("roster_notifications").
		Where(sq.Eq{"contact": contact}).
		OrderBy("created_at")

	rows, err := q.RunWith(s.db).QueryContext(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var rns []rostermodel.Notification
	for rows.Next() {
		var b []byte
		if err := rows.Scan(&b); err != nil {
			return nil, err
		}
		var rn rostermodel.Notification
		if err := serializer.Deserialize(b, &rn); err != nil {
			return nil, err
		}
		rns = append(rns, rn)
	}
	return rns, nil
}

func fetchRosterVer(ctx context.Context, username string, runner sq.BaseRunner) (rostermodel.Version, error) {
	q := sq.Select("IFNULL(MAX(ver), 0)", "IFNULL(MAX(last_deletion_ver), 0)").
		From("roster_versions").
		Where(sq.Eq{"username": username})

	var ver rostermodel.Version
	row := q.RunWith(runner).QueryRowContext(ctx)
	err := row.Scan(&ver.Ver, &ver.DeletionVer)
	switch err {
	case nil, sql.ErrNoRows:
		return ver, nil
	default:
		return ver, err
	}
}

func scanRosterItemEntity(ri *rostermodel.Item, scanner rowScanner) error {
	var groups []byte
	if err := scanner.Scan(&ri.ID, &ri.Username, &ri.JID, &ri.Name, &ri.Subscription, &groups, &ri.Ask, &ri.Ver); err != nil {
		return err
	}
	return json.Unmarshal(groups, &ri.Groups)
}

func scanRosterItemEntities(scanner rowsScanner) ([]rostermodel.Item, error) {
	var ret []rostermodel.Item
	for scanner.Next() {
		var ri rostermodel.Item
		if err := scanRosterItemEntity(&ri, scanner); err != nil {
			return nil, err
		}
		ret = append(ret, ri)
	}
	return ret, nil
}
