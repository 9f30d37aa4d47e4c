/*
 * Copyright (c) 2019 Conclave IM.
 * See the LICENSE file for more information.
 */

package mysql

import (
	"context"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/conclave-im/conclave/model"
	"github.com/conclave-im/conclave/model/serializer"
	"github.com/stretchr/testify/require"
)

func TestMySQLStorageUpsertUser(t *testing.T) {
	user := model.User{Username: "ortuman"}

	s, mock := newUserMock()
	mock.ExpectExec("INSERT INTO users (.+) ON DUPLICATE KEY UPDATE (.+)").
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := s.UpsertUser(context.Background(), &user)
	require.Nil(t, mock.ExpectationsWereMet())
	require.Nil(t, err)

	s, mock = newUserMock()
	mock.ExpectExec("INSERT INTO users (.+) ON DUPLICATE KEY UPDATE (.+)").
		WillReturnError(errMocked)

	err = s.UpsertUser(context.Background(), &user)
	require.Nil(t, mock.ExpectationsWereMet())
	require.Equal(t, errMocked, err)
}

func TestMySQLStorageFetchUser(t *testing.T) {
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

func TestMySQLStorageDeleteUser(t *testing.T) {
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
}

func TestMySQLStorageUserExists(t *testing.T) {
	s, mock := newUserMock()
	mock.ExpectQuery("SELECT COUNT(.+) FROM users (.+)").
		WithArgs("ortuman").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	ok, err := s.UserExists(context.Background(), "ortuman")
	require.Nil(t, mock.ExpectationsWereMet())
	require.Nil(t, err)
	require.True(t, ok)
}
