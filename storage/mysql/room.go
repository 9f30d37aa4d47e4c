/*
 * Copyright (c) 2019 Conclave IM.
 * See the LICENSE file for more information.
 */

package mysql

import (
	"context"
	"database/sql"

	sq "github.com/Masterminds/squirrel"
	mucmodel "github.com/conclave-im/conclave/model/muc"
	"github.com/conclave-im/conclave/model/serializer"
)

type mySQLRoom struct {
	*mySQLStorage
}

func newRoom(db *sql.DB) *mySQLRoom {
	return &mySQLRoom{mySQLStorage: newStorage(db)}
}

func (r *mySQLRoom) UpsertRoom(ctx context.Context, room *mucmodel.Room) error {
	return r.inTransaction(ctx, func(tx *sql.Tx) error {
		if room.ID < 0 {
			res, err := sq.Insert("rooms").
				Columns("name", "room_jid", "created_at", "updated_at").
				Values(room.Name, room.RoomJID.String(), nowExpr, nowExpr).
				RunWith(tx).ExecContext(ctx)
			if err != nil {
				return err
			}
			id, err := res.LastInsertId()
			if err != nil {
				return err
			}
			room.ID = id
		}
		b, err := serializer.Serialize(room)
		if err != nil {
			return err
		}
		_, err = sq.Update("rooms").
			Set("serialized", b).
			Set("updated_at", nowExpr).
			Where(sq.Eq{"name": room.Name}).
			RunWith(tx).ExecContext(ctx)
		return err
	})
}

func (r *mySQLRoom) DeleteRoom(ctx context.Context, roomName string) error {
	_, err := sq.Delete("rooms").
		Where(sq.Eq{"name": roomName}).
		RunWith(r.db).ExecContext(ctx)
	return err
}

func (r *mySQLRoom) FetchRoom(ctx context.Context, roomName string) (*mucmodel.Room, error) {
	q := sq.Select("serialized").
		From("rooms").
		Where(sq.Eq{"name": roomName})

	var b []byte
	err := q.RunWith(r.db).QueryRowContext(ctx).Scan(&b)
	switch err {
	case nil:
		var room mucmodel.Room
		if err := serializer.Deserialize(b, &room); err != nil {
			return nil, err
		}
		return &room, nil
	case sql.ErrNoRows:
		return nil, nil
	default:
		return nil, err
	}
}

func (r *mySQLRoom) FetchRooms(ctx context.Context) ([]*mucmodel.Room, error) {
	q := sq.Select("serialized").
		From("rooms").
		OrderBy("name")

	rows, err := q.RunWith(r.db).QueryContext(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var rooms []*mucmodel.Room
	for rows.Next() {
		var b []byte
		if err := rows.Scan(&b); err != nil {
			return nil, err
		}
		var room mucmodel.Room
		if err := serializer.Deserialize(b, &room); err != nil {
			return nil, err
		}
		rooms = append(rooms, &room)
	}
	return rooms, nil
}

func (r *mySQLRoom) RoomExists(ctx context.Context, roomName string) (bool, error) {
	q := sq.Select("COUNT(*)").
		From("rooms").
		Where(sq.Eq{"name": roomName})

	var count int
	err := q.RunWith(r.db).QueryRowContext(ctx).Scan(&count)
	switch err {
	case nil:
		return count > 0, nil
	default:
		return false, err
	}
}
