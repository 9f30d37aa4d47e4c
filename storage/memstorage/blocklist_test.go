/*
 * Copyright (c) 2019 Conclave IM.
 * See the LICENSE file for more information.
 */

package memstorage

import (
	"context"
	"testing"

	"github.com/conclave-im/conclave/model"
	"github.com/stretchr/testify/require"
)

func TestMemoryStorageBlockListItems(t *testing.T) {
	s := New()

	item1 := model.BlockListItem{Username: "ortuman", JID: "juliet@jackal.im"}
	item2 := model.BlockListItem{Username: "ortuman", JID: "romeo@jackal.im"}

	require.Nil(t, s.InsertBlockListItem(context.Background(), &item1))
	require.Nil(t, s.InsertBlockListItem(context.Background(), &item2))

	// duplicate insertion is a no-op
	require.Nil(t, s.InsertBlockListItem(context.Background(), &item1))

	items, err := s.FetchBlockListItems(context.Background(), "ortuman")
	require.Nil(t, err)
	require.Equal(t, 2, len(items))

	require.Nil(t, s.DeleteBlockListItem(context.Background(), &item1))

	items, err = s.FetchBlockListItems(context.Background(), "ortuman")
	require.Nil(t, err)
	require.Equal(t, 1, len(items))
	require.Equal(t, "romeo@jackal.im", items[0].JID)
}
