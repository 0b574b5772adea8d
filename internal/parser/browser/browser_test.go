package browser

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Vodeneev/ttmonitor/internal/pkg/config"
)

func TestWrap(t *testing.T) {
	assert.NoError(t, Wrap("fetch", "https://example.test", nil))

	err := Wrap("fetch", "https://example.test", fmt.Errorf("navigate: %w", context.DeadlineExceeded))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAcquisition)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	var ae *AcquisitionError
	require.ErrorAs(t, err, &ae)
	assert.True(t, ae.Timeout)
	assert.Equal(t, "fetch", ae.Op)
	assert.Contains(t, err.Error(), "timed out")

	again := Wrap("refresh", "", err)
	assert.Same(t, err, again)
}

func TestWrapNonTimeout(t *testing.T) {
	err := Wrap("refresh", "", errors.New("tab crashed"))
	var ae *AcquisitionError
	require.ErrorAs(t, err, &ae)
	assert.False(t, ae.Timeout)
	assert.Equal(t, "browser refresh: tab crashed", err.Error())
}

func TestChromeNotStarted(t *testing.T) {
	c := NewChrome(config.BrowserConfig{Headless: true})

	assert.False(t, c.IsAlive(context.Background()))

	_, err := c.RefreshInPlace(context.Background())
	assert.ErrorIs(t, err, ErrAcquisition)

	assert.NoError(t, c.Close())
}
