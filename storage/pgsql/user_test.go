/*
 * Copyright (c) 2019 Conclave IM.
 * See the LICENSE file for more information.
 */

package pgsql

import (
	"context"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/conclave-im/conclave/model"
	"github.com/conclave-im/conclave/model/serializer"
	"github.com/stretchr/testify/require"
)

func TestPgSQLStorageUpsertUser(t *testing.T) {
	user := model.User{Username: "ortuman"}

	s, mock := newUserMock()
	mock.ExpectExec("INSERT INTO users (.+) ON CONFLICT (.+) DO UPDATE SET (.+)").
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := s.UpsertUser(context.Background(), &user)
	require.Nil(t, mock.ExpectationsWereMet())
	require.Nil(t, err)

	s, mock = newUserMock()
	mock.ExpectExec("INSERT INTO users (.+) ON CONFLICT (.+) DO UPDATE SET (.+)").
		WillReturnError(errMocked)

	err = s.UpsertUser(context.Background(), &user)
	require.Nil(t, mock.ExpectationsWereMet())
	require.Equal(t, errMocked, err)
}

func TestPgSQLStorageFetchUser(t *testing.T) {
	user := model.User{Username: "ortuman"}
	b, err := serializer.Serialize(&user)
	require.Nil(t, err)

	s, mock := newUserMock()
	mock.ExpectQuery("SELECT serialized FROM users (.+)").
		WithArgs("ortuman").
		WillReturnRows(sqlmock.NewRows([]string{"serialized"}).AddRow(b))

	usr, err := s.FetchUser(context.Background(), "ortuman")
	require.Nil(t, mock.ExpectationsWereMet())
	require.Nil(t, err)
	require.NotNil(t, usr)
	require.Equal(t, "ortuman", usr.Username)

	s, mock = newUserMock()
	mock.ExpectQuery("SELECT serialized FROM users (.+)").
		WithArgs("romeo").
		WillReturnRows(sqlmock.NewRows([]string{"serialized"}))

	usr, err = s.FetchUser(context.Background(), "romeo")
	require.Nil(t, mock.ExpectationsWereMet())
	require.Nil(t, err)
	require.Nil(t, usr)
}

func TestPgSQLStorageDeleteUser(t *testing.T) {
	s, mock := newUserMock()
	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM roster_items (.+)").
		WithArgs("ortuman").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("DELETE FROM roster_versions (.+)").
		WithArgs("ortuman").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("DELETE FROM block_list_items (.+)").
		WithArgs("ortuman").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("DELETE FROM users (.+)").
		WithArgs("ortuman").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := s.DeleteUser(context.Background(), "ortuman")
	require.Nil(t, mock.ExpectationsWereMet())
	require.Nil(t, err)

	s, mock = newUserMock()
	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM roster_items (.+)").
		WithArgs("ortuman").WillReturnError(errMocked)
	mock.ExpectRollback()

	err = s.DeleteUser(context.Background(), "ortuman")
	require.Nil(t, mock.ExpectationsWereMet())
	require.Equal(t, errMocked, err)
}

func TestPgSQLStorageUserExists(t *testing.T) {
	s, mock := newUserMock()
	mock.ExpectQuery("SELECT COUNT(.+) FROM users (.+)").
		WithArgs("ortuman").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	ok, err := s.UserExists(context.Background(), "ortuman")
	require.Nil(t, mock.ExpectationsWereMet())
	require.Nil(t, err)
	require.True(t, ok)
}
