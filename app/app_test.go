/*
 * Copyright (c) 2019 Conclave IM.
 * See the LICENSE file for more information.
 */

package app

import (
	"bytes"
	"fmt"
	"os"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/conclave-im/conclave/version"
	"github.com/stretchr/testify/require"
)

type writerBuffer struct {
	mu  sync.RWMutex
	buf *bytes.Buffer
}

func newWriterBuffer() *writerBuffer {
	return &writerBuffer{buf: bytes.NewBuffer(nil)}
}

func (wb *writerBuffer) Write(p []byte) (int, error) {
	wb.mu.Lock()
	defer wb.mu.Unlock()
	return wb.buf.Write(p)
}

func (wb *writerBuffer) String() string {
	wb.mu.RLock()
	defer wb.mu.RUnlock()
	return wb.buf.String()
}

func TestApplicationEmptyArgs(t *testing.T) {
	a := New(nil, nil)
	require.NotNil(t, a)
	require.NotNil(t, a.Run())
}

func TestApplicationShowUsage(t *testing.T) {
	w := newWriterBuffer()
	err := New(w, []string{"./conclave", "-h"}).Run()
	require.Nil(t, err)
	require.Equal(t, expectedUsageString(), w.String())
}

func TestApplicationPrintVersion(t *testing.T) {
	w := newWriterBuffer()
	args := []string{"./conclave", "--version"}
	err := New(w, args).Run()
	require.Nil(t, err)
	require.Equal(t, fmt.Sprintf("conclave version: %v\n", version.ApplicationVersion), w.String())
}

func TestApplicationBadConfig(t *testing.T) {
	w := newWriterBuffer()
	args := []string{"./conclave", "--config=../testdata/not_a_config.yml"}
	require.NotNil(t, New(w, args).Run())
}

func TestApplication_Run(t *testing.T) {
	w := newWriterBuffer()
	args := []string{"./conclave", "--config=../testdata/config_basic.yml"}
	ap := New(w, args)
	go func() {
		time.Sleep(time.Millisecond * 1500) // wait until initialized
		ap.waitStopCh <- syscall.SIGTERM
	}()
	ap.shutDownWaitSecs = time.Duration(2) * time.Second // wait only two seconds
	err := ap.Run()
	require.Nil(t, err)

	// make sure pid and log files had been created
	_, err = os.Stat("test.conclave.pid")
	require.False(t, os.IsNotExist(err))
	os.Remove("test.conclave.pid")

	_, err = os.Stat("test.conclave.log")
	require.False(t, os.IsNotExist(err))
	os.Remove("test.conclave.log")
}

func expectedUsageString() string {
	var r string
	for i := range logoStr {
		r += fmt.Sprintf("%s\n", logoStr[i])
	}
	r += fmt.Sprintf("%s\n", usageStr)
	return r
}
