/*
 * Copyright (c) 2019 Conclave IM.
 * See the LICENSE file for more information.
 */

package mysql

import (
	"context"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	pubsubmodel "github.com/conclave-im/conclave/model/pubsub"
	"github.com/conclave-im/conclave/model/serializer"
	"github.com/stretchr/testify/require"
)

func TestMySQLStorageUpsertPubSubNode(t *testing.T) {
	node := pubsubmodel.Node{Host: "ortuman@jackal.im", Name: "princely_musings"}

	optMap, err := node.Options.Map()
	require.Nil(t, err)

	s, mock := newPubSubMock()
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO pubsub_nodes (.+) ON DUPLICATE KEY UPDATE (.+)").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectQuery("SELECT id FROM pubsub_nodes (.+)").
		WithArgs("ortuman@jackal.im", "princely_musings").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("1"))
	mock.ExpectExec("DELETE FROM pubsub_node_options (.+)").
		WithArgs("1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	for range optMap {
		mock.ExpectExec("INSERT INTO pubsub_node_options (.+)").
			WillReturnResult(sqlmock.NewResult(0, 1))
	}
	mock.ExpectCommit()

	err = s.UpsertNode(context.Background(), &node)
	require.Nil(t, mock.ExpectationsWereMet())
	require.Nil(t, err)
}

func TestMySQLStorageFetchPubSubNodeItems(t *testing.T) {
	item := pubsubmodel.Item{ID: "1", Publisher: "ortuman@jackal.im"}
	b, err := serializer.Serialize(&item)
	require.Nil(t, err)

	s, mock := newPubSubMock()
	mock.ExpectQuery("SELECT serialized FROM pubsub_items (.+)").
		WithArgs("ortuman@jackal.im", "princely_musings").
		WillReturnRows(sqlmock.NewRows([]string{"serialized"}).AddRow(b))

	items, err := s.FetchNodeItems(context.Background(), "ortuman@jackal.im", "princely_musings")
	require.Nil(t, mock.ExpectationsWereMet())
	require.Nil(t, err)
	require.Equal(t, 1, len(items))
	require.Equal(t, "1", items[0].ID)
}

func TestMySQLStorageDeletePubSubNodeItem(t *testing.T) {
	s, mock := newPubSubMock()
	mock.ExpectExec("DELETE FROM pubsub_items (.+)").
		WithArgs("ortuman@jackal.im", "princely_musings", "1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := s.DeleteNodeItem(context.Background(), "ortuman@jackal.im", "princely_musings", "1")
	require.Nil(t, mock.ExpectationsWereMet())
	require.Nil(t, err)
}
