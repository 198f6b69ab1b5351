// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package id

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name       string
		prefix     string
		wantPrefix string
		wantLen    int
	}{
		{"no-prefix", "", "", 32},
		{"prefix", "st", "st_", 35},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert, require := assert.New(t), require.New(t)
			got, err := New(tc.prefix)
			require.NoError(err)
			assert.Len(got, tc.wantLen)
			assert.True(strings.HasPrefix(got, tc.wantPrefix))
			assert.NotContains(strings.TrimPrefix(got, tc.wantPrefix), "-")

			again, err := New(tc.prefix)
			require.NoError(err)
			assert.NotEqual(got, again)
		})
	}
}
