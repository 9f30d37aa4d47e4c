/*
 * Copyright (c) 2019 Conclave IM.
 * See the LICENSE file for more information.
 */

package mysql

import (
	"context"
	"encoding/json"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/conclave-im/conclave/model/rostermodel"
	"github.com/stretchr/testify/require"
)

func TestMySQLStorageUpsertRosterItem(t *testing.T) {
	ri := rostermodel.Item{
		Username:     "ortuman",
		JID:          "juliet@jackal.im",
		Name:         "Juliet",
		Subscription: rostermodel.SubscriptionBoth,
		Groups:       []string{"people"},
	}
	s, mock := newRosterMock()
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO roster_versions (.+) ON DUPLICATE KEY UPDATE (.+)").
		WithArgs("ortuman").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO roster_items (.+) ON DUPLICATE KEY UPDATE (.+)").
		WillReturnResult(sqlmock.NewResult(5, 1))
	mock.ExpectQuery("SELECT (.+) FROM roster_versions (.+)").
		WithArgs("ortuman").
		WillReturnRows(sqlmock.NewRows([]string{"ver", "last_deletion_ver"}).AddRow(1, 0))
	mock.ExpectCommit()

	v, err := s.UpsertRosterItem(context.Background(), &ri)
	require.Nil(t, mock.ExpectationsWereMet())
	require.Nil(t, err)
	require.Equal(t, 1, v.Ver)
	require.Equal(t, int64(5), ri.ID)
}

func TestMySQLStorageDeleteRosterItem(t *testing.T) {
	s, mock := newRosterMock()
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO roster_versions (.+) ON DUPLICATE KEY UPDATE (.+)").
		WithArgs("ortuman").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("DELETE FROM roster_items (.+)").
		WithArgs("ortuman", "juliet@jackal.im").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("SELECT (.+) FROM roster_versions (.+)").
		WithArgs("ortuman").
		WillReturnRows(sqlmock.NewRows([]string{"ver", "last_deletion_ver"}).AddRow(2, 2))
	mock.ExpectCommit()

	v, err := s.DeleteRosterItem(context.Background(), "ortuman", "juliet@jackal.im")
	require.Nil(t, mock.ExpectationsWereMet())
	require.Nil(t, err)
	require.Equal(t, 2, v.DeletionVer)
}

func TestMySQLStorageFetchRosterItems(t *testing.T) {
	groups, _ := json.Marshal([]string{"people"})

	var cols = []string{"id", "username", "jid", "name", "subscription", "groups", "ask", "ver"}

	s, mock := newRosterMock()
	mock.ExpectQuery("SELECT (.+) FROM roster_items (.+)").
		WithArgs("ortuman").
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow(5, "ortuman", "juliet@jackal.im", "Juliet", "both", groups, false, 1))
	mock.ExpectQuery("SELECT (.+) FROM roster_versions (.+)").
		WithArgs("ortuman").
		WillReturnRows(sqlmock.NewRows([]string{"ver", "last_deletion_ver"}).AddRow(1, 0))

	items, v, err := s.FetchRosterItems(context.Background(), "ortuman")
	require.Nil(t, mock.ExpectationsWereMet())
	require.Nil(t, err)
	require.Equal(t, 1, len(items))
	require.Equal(t, []string{"people"}, items[0].Groups)
	require.Equal(t, 1, v.Ver)
}
