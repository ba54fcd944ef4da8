package esjc

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMetastreamFor(t *testing.T) {
	require.Equal(t, "$$orders-1", metastreamFor("orders-1"))
}

func TestIsMetastream(t *testing.T) {
	require.True(t, isMetastream("$$orders-1"))
	require.False(t, isMetastream("orders-1"))
	require.False(t, isMetastream("$"))
}
