/*
 * Copyright (c) 2019 Conclave IM.
 * See the LICENSE file for more information.
 */

package pgsql

import (
	"context"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	mucmodel "github.com/conclave-im/conclave/model/muc"
	"github.com/conclave-im/conclave/model/serializer"
	"github.com/conclave-im/conclave/xmpp/jid"
	"github.com/stretchr/testify/require"
)

func TestPgSQLStorageUpsertRoom(t *testing.T) {
	room := testPgSQLRoom(t)

	s, mock := newRoomMock()
	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO rooms (.+) RETURNING id").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(12))
	mock.ExpectExec("UPDATE rooms SET (.+)").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := s.UpsertRoom(context.Background(), room)
	require.Nil(t, mock.ExpectationsWereMet())
	require.Nil(t, err)
	require.Equal(t, int64(12), room.ID)

	// previously saved rooms keep their identifier
	s, mock = newRoomMock()
	mock.ExpectBegin()
	mock.ExpectExec("UPDATE rooms SET (.+)").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err = s.UpsertRoom(context.Background(), room)
	require.Nil(t, mock.ExpectationsWereMet())
	require.Nil(t, err)
	require.Equal(t, int64(12), room.ID)
}

func TestPgSQLStorageFetchRoom(t *testing.T) {
	room := testPgSQLRoom(t)
	room.ID = 12
	b, err := serializer.Serialize(room)
	require.Nil(t, err)

	s, mock := newRoomMock()
	mock.ExpectQuery("SELECT serialized FROM rooms (.+)").
		WithArgs("lobby").
		WillReturnRows(sqlmock.NewRows([]string{"serialized"}).AddRow(b))

	got, err := s.FetchRoom(context.Background(), "lobby")
	require.Nil(t, mock.ExpectationsWereMet())
	require.Nil(t, err)
	require.NotNil(t, got)
	require.Equal(t, "lobby", got.Name)
	require.Equal(t, int64(12), got.ID)

	s, mock = newRoomMock()
	mock.ExpectQuery("SELECT serialized FROM rooms (.+)").
		WithArgs("garden").
		WillReturnRows(sqlmock.NewRows([]string{"serialized"}))

	got, err = s.FetchRoom(context.Background(), "garden")
	require.Nil(t, mock.ExpectationsWereMet())
	require.Nil(t, err)
	require.Nil(t, got)
}

func TestPgSQLStorageDeleteRoom(t *testing.T) {
	s, mock := newRoomMock()
	mock.ExpectExec("DELETE FROM rooms (.+)").
		WithArgs("lobby").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := s.DeleteRoom(context.Background(), "lobby")
	require.Nil(t, mock.ExpectationsWereMet())
	require.Nil(t, err)
}

func TestPgSQLStorageRoomExists(t *testing.T) {
	s, mock := newRoomMock()
	mock.ExpectQuery("SELECT COUNT(.+) FROM rooms (.+)").
		WithArgs("lobby").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	ok, err := s.RoomExists(context.Background(), "lobby")
	require.Nil(t, mock.ExpectationsWereMet())
	require.Nil(t, err)
	require.True(t, ok)
}

func testPgSQLRoom(t *testing.T) *mucmodel.Room {
	t.Helper()
	j, err := jid.NewWithString("lobby@conference.jackal.im", true)
	require.Nil(t, err)
	return mucmodel.NewRoom("lobby", j, &mucmodel.RoomConfig{Public: true, Persistent: true, HistCnt: 20})
}
