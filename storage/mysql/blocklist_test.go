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
	"github.com/stretchr/testify/require"
)

func TestMySQLStorageInsertBlockListItem(t *testing.T) {
	s, mock := newBlockListMock()
	mock.ExpectExec("INSERT IGNORE INTO block_list_items (.+)").
		WithArgs("ortuman", "juliet@jackal.im").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := s.InsertBlockListItem(context.Background(), &model.BlockListItem{Username: "ortuman", JID: "juliet@jackal.im"})
	require.Nil(t, mock.ExpectationsWereMet())
	require.Nil(t, err)
}

func TestMySQLStorageDeleteBlockListItem(t *testing.T) {
	s, mock := newBlockListMock()
	mock.ExpectExec("DELETE FROM block_list_items (.+)").
		WithArgs("ortuman", "juliet@jackal.im").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := s.DeleteBlockListItem(context.Background(), &model.BlockListItem{Username: "ortuman", JID: "juliet@jackal.im"})
	require.Nil(t, mock.ExpectationsWereMet())
	require.Nil(t, err)
}

func TestMySQLStorageFetchBlockListItems(t *testing.T) {
	s, mock := newBlockListMock()
	mock.ExpectQuery("SELECT (.+) FROM block_list_items (.+)").
		WithArgs("ortuman").
		WillReturnRows(sqlmock.NewRows([]string{"username", "jid"}).AddRow("ortuman", "juliet@jackal.im"))

	items, err := s.FetchBlockListItems(context.Background(), "ortuman")
	require.Nil(t, mock.ExpectationsWereMet())
	require.Nil(t, err)
	require.Equal(t, 1, len(items))
	require.Equal(t, "juliet@jackal.im", items[0].JID)
}
