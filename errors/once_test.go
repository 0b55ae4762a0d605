// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package errors_test

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/khonsulabs/file-manager/errors"
)

func TestOnce(t *testing.T) {
	var o errors.Once
	require.NoError(t, o.Err())

	o.Set(errors.New("first"))
	o.Set(errors.New("second"))
	require.EqualError(t, o.Err(), "first")
}

func TestOnceConcurrent(t *testing.T) {
	var o errors.Once
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			o.Set(errors.New("failure"))
		}()
	}
	wg.Wait()
	require.EqualError(t, o.Err(), "failure")
}
