package redis

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abbasKakoolvand/OKR-analyze/internal/scoring"
	"github.com/abbasKakoolvand/OKR-analyze/pkg/config"
)

func newTestClient(t *testing.T) (*Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	port, err := strconv.Atoi(mr.Port())
	require.NoError(t, err)

	c, err := NewClient(config.RedisConfig{Host: mr.Host(), Port: port})
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c, mr
}

func TestNewClientFailsWithoutServer(t *testing.T) {
	_, err := NewClient(config.RedisConfig{Host: "127.0.0.1", Port: 1})
	assert.Error(t, err)
}

func TestAnalysisCacheRoundTrip(t *testing.T) {
	c, mr := newTestClient(t)
	ctx := context.Background()

	type payload struct {
		Risks []string `json:"risks"`
	}

	var got payload
	found, err := c.GetAnalysis(ctx, "k1", &got)
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, c.SetAnalysis(ctx, "k1", payload{Risks: []string{"late vendor"}}, time.Minute))

	found, err = c.GetAnalysis(ctx, "k1", &got)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, []string{"late vendor"}, got.Risks)

	mr.FastForward(2 * time.Minute)
	found, err = c.GetAnalysis(ctx, "k1", &got)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestInvalidateAnalyses(t *testing.T) {
	c, mr := newTestClient(t)
	ctx := context.Background()

	require.NoError(t, c.SetAnalysis(ctx, "a", 1, 0))
	require.NoError(t, c.SetAnalysis(ctx, "b", 2, 0))
	require.NoError(t, mr.Set("other", "keep"))

	require.NoError(t, c.InvalidateAnalyses(ctx))

	assert.False(t, mr.Exists(analysisPrefix+"a"))
	assert.False(t, mr.Exists(analysisPrefix+"b"))
	assert.True(t, mr.Exists("other"))
}

func TestClaimerExclusiveAndReleasable(t *testing.T) {
	c, mr := newTestClient(t)
	ctx := context.Background()
	cl := c.Claimer(time.Minute)

	release, err := cl.Claim(ctx, "K-B2B-048", "rezazadeh")
	require.NoError(t, err)

	_, err = cl.Claim(ctx, "K-B2B-048", "rezazadeh")
	assert.ErrorIs(t, err, scoring.ErrClaimHeld)

	otherRelease, err := cl.Claim(ctx, "K-B2B-048", "ahmadi")
	require.NoError(t, err)
	otherRelease()

	release()
	assert.False(t, mr.Exists(claimKey("K-B2B-048", "rezazadeh")))

	again, err := cl.Claim(ctx, "K-B2B-048", "rezazadeh")
	require.NoError(t, err)
	again()
}

func TestClaimerReleaseKeepsForeignToken(t *testing.T) {
	c, mr := newTestClient(t)
	ctx := context.Background()
	cl := c.Claimer(time.Second)

	release, err := cl.Claim(ctx, "K1", "p")
	require.NoError(t, err)

	// The claim expires and another worker takes it.
	mr.FastForward(2 * time.Second)
	_, err = cl.Claim(ctx, "K1", "p")
	require.NoError(t, err)

	release()
	assert.True(t, mr.Exists(claimKey("K1", "p")))
}
