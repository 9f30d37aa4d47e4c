/*
 * Copyright (c) 2019 Conclave IM.
 * See the LICENSE file for more information.
 */

package mysql

import (
	"context"
	"database/sql"

	sq "github.com/Masterminds/squirrel"
	"github.com/conclave-im/conclave/model/groupmodel"
	"github.com/conclave-im/conclave/model/serializer"
)

type mySQLGroup struct {
	*mySQLStorage
}

func newGroup(db *sql.DB) *mySQLGroup {
	return &mySQLGroup{mySQLStorage: newStorage(db)}
}

func (g *mySQLGroup) UpsertGroup(ctx context.Context, group *groupmodel.Group) error {
	b, err := serializer.Serialize(group)
	if err != nil {
		return err
	}
	return g.inTransaction(ctx, func(tx *sql.Tx) error {
		q := sq.Insert("shared_groups").
			Columns("name", "serialized", "updated_at", "created_at").
			Values(group.Name, b, nowExpr, nowExpr).
			Suffix("ON DUPLICATE KEY UPDATE serialized = ?, updated_at = NOW()", b)
		if _, err := q.RunWith(tx).ExecContext(ctx); err != nil {
			return err
		}
		// rebuild membership rows so user lookups stay in sync
		_, err := sq.Delete("shared_group_members").
			Where(sq.Eq{"group_name": group.Name}).
			RunWith(tx).ExecContext(ctx)
		if err != nil {
			return err
		}
		for _, member := range group.Members() {
			q := sq.Insert("shared_group_members").
				Columns("group_name", "username", "created_at").
				Values(group.Name, member, nowExpr)
			if _, err := q.RunWith(tx).ExecContext(ctx); err != nil {
				return err
			}
		}
		return nil
	})
}

func (g *mySQLGroup) DeleteGroup(ctx context.Context, name string) error {
	return g.inTransaction(ctx, func(tx *sql.Tx) error {
		_, err := sq.Delete("shared_group_members").
			Where(sq.Eq{"group_name": name}).
			RunWith(tx).ExecContext(ctx)
		if err != nil {
			return err
		}
		_, err = sq.Delete("shared_groups").
			Where(sq.Eq{"name": name}).
			RunWith(tx).ExecContext(ctx)
		return err
	})
}

func (g *mySQLGroup) FetchGroup(ctx context.Context, name string) (*groupmodel.Group, error) {
	q := sq.Select("serialized").
		From("shared_groups").
		Where(sq.Eq{"name": name})

	var b []byte
	err := q.RunWith(g.db).QueryRowContext(ctx).Scan(&b)
	switch err {
	case nil:
		var group groupmodel.Group
		if err := serializer.Deserialize(b, &group); err != nil {
			return nil, err
		}
		return &group, nil
	case sql.ErrNoRows:
		return nil, nil
	default:
		return nil, err
	}
}

func (g *mySQLGroup) FetchGroups(ctx context.Context) ([]groupmodel.Group, error) {
	q := sq.Select("serialized").
		From("shared_groups").
		OrderBy("name")

	rows, err := q.RunWith(g.db).QueryContext(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	return scanGroupEntities(rows)
}

func (g *mySQLGroup) FetchUserGroups(ctx context.Context, username string) ([]groupmodel.Group, error) {
	q := sq.Select("g.serialized").
		From("shared_groups g").
		Join("shared_group_members m ON g.name = m.group_name").
		Where(sq.Eq{"m.username": username}).
		OrderBy("g.name")

	rows, err := q.RunWith(g.db).QueryContext(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	return scanGroupEntities(rows)
}

func scanGroupEntities(scanner rowsScanner) ([]groupmodel.Group, error) {
	var groups []groupmodel.Group
	for scanner.Next() {
		var b []byte
		if err := scanner.Scan(&b); err != nil {
			return nil, err
		}
		var group groupmodel.Group
		if err := serializer.Deserialize(b, &group); err != nil {
			return nil, err
		}
		groups = append(groups, group)
	}
	return groups, nil
}
