package launch

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFakeLauncher_ReturnsDistinctIDs(t *testing.T) {
	l := NewFakeLauncher()
	a, err := l.Launch(context.Background(), Request{ImageID: "ami-1"})
	require.NoError(t, err)
	b, err := l.Launch(context.Background(), Request{ImageID: "ami-1"})
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(a.InstanceID, "i-fake-"))
	assert.NotEqual(t, a.InstanceID, b.InstanceID)
	assert.Equal(t, "fake", a.Provider)
}

func TestFakeLauncher_ExpiredContextTimesOut(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Nanosecond)
	defer cancel()
	<-ctx.Done()

	_, err := NewFakeLauncher().Launch(ctx, Request{ImageID: "ami-1"})
	require.Error(t, err)
	assert.Equal(t, KindTimeout, KindOf(err))
}
