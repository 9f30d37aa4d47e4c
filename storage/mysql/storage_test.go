/*
 * Copyright (c) 2019 Conclave IM.
 * See the LICENSE file for more information.
 */

package mysql

import (
	"errors"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/conclave-im/conclave/log"
)

var errMocked = errors.New("mysql: storage error")

// newStorageMock returns a mocked MySQL storage instance.
func newStorageMock() (*mySQLStorage, sqlmock.Sqlmock) {
	db, sqlMock, err := sqlmock.New()
	if err != nil {
		log.Fatalf("%v", err)
	}
	return &mySQLStorage{db: db}, sqlMock
}

func newUserMock() (*mySQLUser, sqlmock.Sqlmock) {
	s, sqlMock := newStorageMock()
	return &mySQLUser{mySQLStorage: s}, sqlMock
}

func newRosterMock() (*mySQLRoster, sqlmock.Sqlmock) {
	s, sqlMock := newStorageMock()
	return &mySQLRoster{mySQLStorage: s}, sqlMock
}

func newGroupMock() (*mySQLGroup, sqlmock.Sqlmock) {
	s, sqlMock := newStorageMock()
	return &mySQLGroup{mySQLStorage: s}, sqlMock
}

func newRoomMock() (*mySQLRoom, sqlmock.Sqlmock) {
	s, sqlMock := newStorageMock()
	return &mySQLRoom{mySQLStorage: s}, sqlMock
}

func newBlockListMock() (*mySQLBlockList, sqlmock.Sqlmock) {
	s, sqlMock := newStorageMock()
	return &mySQLBlockList{mySQLStorage: s}, sqlMock
}

func newPubSubMock() (*mySQLPubSub, sqlmock.Sqlmock) {
	s, sqlMock := newStorageMock()
	return &mySQLPubSub{mySQLStorage: s}, sqlMock
}
