/*
 * Copyright (c) 2019 Conclave IM.
 * See the LICENSE file for more information.
 */

package pgsql

import (
	"context"
	"database/sql"

	sq "github.com/Masterminds/squirrel"
	"github.com/conclave-im/conclave/model"
)

type pgSQLBlockList struct {
	*pgSQLStorage
}

func newBlockList(db *sql.DB) *pgSQLBlockList {
	return &pgSQLBlockList{pgSQLStorage: newStorage(db)}
}

func (b *pgSQLBlockList) InsertBlockListItem(ctx context.Context, item *model.BlockListItem) error {
	q := sq.Insert("block_list_items").
		Columns("username", "jid", "created_at").
		Values(item.Username, item.JID, nowExpr).
		Suffix("ON CONFLICT (username, jid) DO NOTHING")

	_, err := q.RunWith(b.db).ExecContext(ctx)
	return err
}

func (b *pgSQLBlockList) DeleteBlockListItem(ctx context.Context, item *model.BlockListItem) error {
	q := sq.Delete("block_list_items").
		Where(sq.And{sq.Eq{"username": item.Username}, sq.Eq{"jid": item.JID}})

	_, err := q.RunWith(b.db).ExecContext(ctx)
	return err
}

func (b *pgSQLBlockList) FetchBlockListItems(ctx context.Context, username string) ([]model.BlockListItem, error) {
	q := sq.Select("username", "jid").
		From("block_list_items").
		Where(sq.Eq{"username": username}).
		OrderBy("created_at")

	rows, err := q.RunWith(b.db).QueryContext(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var items []model.BlockListItem
	for rows.Next() {
		var item model.BlockListItem
		if err := rows.Scan(&item.Username, &item.JID); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}
