/*
 * Copyright (c) 2019 Conclave IM.
 * See the LICENSE file for more information.
 */

package pgsql

import (
	"errors"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/conclave-im/conclave/log"
)

var errMocked = errors.New("pgsql: storage error")

// newStorageMock returns a mocked PostgreSQL storage instance.
func newStorageMock() (*pgSQLStorage, sqlmock.Sqlmock) {
	db, sqlMock, err := sqlmock.New()
	if err != nil {
		log.Fatalf("%v", err)
	}
	return &pgSQLStorage{db: db}, sqlMock
}

func newUserMock() (*pgSQLUser, sqlmock.Sqlmock) {
	s, sqlMock := newStorageMock()
	return &pgSQLUser{pgSQLStorage: s}, sqlMock
}

func newRoomMock() (*pgSQLRoom, sqlmock.Sqlmock) {
	s, sqlMock := newStorageMock()
	return &pgSQLRoom{pgSQLStorage: s}, sqlMock
}

func newBlockListMock() (*pgSQLBlockList, sqlmock.Sqlmock) {
	s, sqlMock := newStorageMock()
	return &pgSQLBlockList{pgSQLStorage: s}, sqlMock
}
