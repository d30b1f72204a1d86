// ABOUTME: Tests for telemetry provider setup
// ABOUTME: Verifies disabled mode is a no-op and enabled mode exports spans to disk

package telemetry

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/kbchat/internal/config"
)

func TestSetup_DisabledIsNoop(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "telemetry")

	shutdown, err := Setup(context.Background(), config.TelemetryConfig{Enabled: false}, dir)
	require.NoError(t, err)
	require.NoError(t, shutdown(context.Background()))

	_, err = os.Stat(dir)
	assert.True(t, os.IsNotExist(err), "disabled telemetry should not create files")
}

func TestNewProviders_ExportsSpans(t *testing.T) {
	ctx := context.Background()
	var traces, metrics bytes.Buffer

	tp, mp, err := newProviders(ctx, "kbchat-test", &traces, &metrics)
	require.NoError(t, err)

	_, span := tp.Tracer("test").Start(ctx, "client.Me")
	span.End()

	require.NoError(t, tp.Shutdown(ctx))
	require.NoError(t, mp.Shutdown(ctx))

	assert.Contains(t, traces.String(), "client.Me")
	assert.Contains(t, traces.String(), "kbchat-test")
}

func TestServiceName(t *testing.T) {
	assert.Equal(t, DefaultServiceName, serviceName(""))
	assert.Equal(t, "custom", serviceName("custom"))
}
