/*
 * Copyright (c) 2019 Conclave IM.
 * See the LICENSE file for more information.
 */

package mysql

import (
	"context"
	"database/sql"

	sq "github.com/Masterminds/squirrel"
	"github.com/conclave-im/conclave/model"
)

type mySQLBlockList struct {
	*mySQLStorage
}

func newBlockList(db *sql.DB) *mySQLBlockList {
	return &mySQLBlockList{mySQLStorage: newStorage(db)}
}

func (b *mySQLBlockList) InsertBlockListItem(ctx context.Context, item *model.BlockListItem) error {
	q := sq.Insert("block_list_items").
		Options("IGNORE").
		Columns("username", "jid", "created_at").
		Values(item.Username, item.JID, nowExpr)

	_, err := q.RunWith(b.db).ExecContext(ctx)
	return err
}

func (b *mySQLBlockList) DeleteBlockListItem(ctx context.Context, item *model.BlockListItem) error {
	q := sq.Delete("block_list_items").
		Where(sq.And{sq.Eq{"username": item.Username}, sq.Eq{"jid": item.JID}})

	_, err := q.RunWith(b.db).ExecContext(ctx)
	return err
}

func (b *mySQLBlockList) FetchBlockListItems(ctx context.Context, username string) ([]model.BlockListItem, error) {
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
