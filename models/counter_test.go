package models

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCounter(t *testing.T) {
	require := require.New(t)

	var c Counter
	c.Sync(3)
	require.Equal(Counter{Confirmed: 3, Projected: 3}, c)

	c.Bump(1)
	require.Equal(Counter{Confirmed: 3, Projected: 4}, c)

	c.Bump(-10)
	require.Equal(Counter{Confirmed: 3, Projected: 0}, c)

	c.Sync(5)
	require.Equal(Counter{Confirmed: 5, Projected: 5}, c)
}
