package ledger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phuetz/MySoulmate-sub000/internal/testhelpers"
)

func TestSettle_CacheHitSkipsDatabase(t *testing.T) {
	// A Gate with no pool panics on any query; a cached request id must
	// return before reaching the database at all.
	g, err := New(nil, testhelpers.NewTestLogger())
	require.NoError(t, err)

	g.settled.Add("req-1", struct{}{})

	assert.NoError(t, g.Settle(context.Background(), "acct-1", "req-1", 50))
}

func TestErrors_AreDistinct(t *testing.T) {
	assert.NotErrorIs(t, ErrInsufficientFunds, ErrAccountNotFound)
	assert.NotErrorIs(t, ErrAccountNotFound, ErrInsufficientFunds)
}
