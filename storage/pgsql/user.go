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
	"github.com/conclave-im/conclave/model/serializer"
)

type pgSQLUser struct {
	*pgSQLStorage
}

func newUser(db *sql.DB) *pgSQLUser {
	return &pgSQLUser{pgSQLStorage: newStorage(db)}
}

func (u *pgSQLUser) UpsertUser(ctx context.Context, usr *model.User) error {
	b, err := serializer.Serialize(usr)
	if err != nil {
		return err
	}
	q := sq.Insert("users").
		Columns("username", "serialized", "updated_at", "created_at").
		Values(usr.Username, b, nowExpr, nowExpr).
		Suffix("ON CONFLICT (username) DO UPDATE SET serialized = $2, updated_at = NOW()")

	_, err = q.RunWith(u.db).ExecContext(ctx)
	return err
}

func (u *pgSQLUser) FetchUser(ctx context.Context, username string) (*model.User, error) {
	q := sq.Select("serialized").
		From("users").
		Where(sq.Eq{"username": username})

	var b []byte
	err := q.RunWith(u.db).QueryRowContext(ctx).Scan(&b)
	switch err {
	case nil:
		var usr model.User
		if err := serializer.Deserialize(b, &usr); err != nil {
			return nil, err
		}
		return &usr, nil
	case sql.ErrNoRows:
		return nil, nil
	default:
		return nil, err
	}
}

func (u *pgSQLUser) DeleteUser(ctx context.Context, username string) error {
	return u.inTransaction(ctx, func(tx *sql.Tx) error {
		var err error
		_, err = sq.Delete("roster_items").Where(sq.Eq{"username": username}).RunWith(tx).ExecContext(ctx)
		if err != nil {
			return err
		}
		_, err = sq.Delete("roster_versions").Where(sq.Eq{"username": username}).RunWith(tx).ExecContext(ctx)
		if err != nil {
			return err
		}
		_, err = sq.Delete("block_list_items").Where(sq.Eq{"username": username}).RunWith(tx).ExecContext(ctx)
		if err != nil {
			return err
		}
		_, err = sq.Delete("users").Where(sq.Eq{"username": username}).RunWith(tx).ExecContext(ctx)
		return err
	})
}

func (u *pgSQLUser) UserExists(ctx context.Context, username string) (bool, error) {
	q := sq.Select("COUNT(*)").
		From("users").
		Where(sq.Eq{"username": username})

	var count int
	err := q.RunWith(u.db).QueryRowContext(ctx).Scan(&count)
	switch err {
	case nil:
		return count > 0, nil
	default:
		return false, err
	}
}
