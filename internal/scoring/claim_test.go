package scoring

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalClaimerExclusive(t *testing.T) {
	c := NewLocalClaimer()
	ctx := context.Background()

	release, err := c.Claim(ctx, "K1", "ahmadi")
	require.NoError(t, err)

	_, err = c.Claim(ctx, "K1", "ahmadi")
	assert.ErrorIs(t, err, ErrClaimHeld)

	other, err := c.Claim(ctx, "K1", "rezazadeh")
	require.NoError(t, err)
	other()

	release()
	release()

	again, err := c.Claim(ctx, "K1", "ahmadi")
	require.NoError(t, err)
	again()
}

func TestCellKeyDistinguishesSeparator(t *testing.T) {
	assert.NotEqual(t, CellKey("a b", "c"), CellKey("a", "b c"))
}
