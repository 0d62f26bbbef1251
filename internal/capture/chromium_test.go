package capture

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestOptionsDefaults(t *testing.T) {
	o, err := Options{URL: "http://127.0.0.1:8080/report", OutputPath: "out.png"}.withDefaults()
	require.NoError(t, err)
	require.Equal(t, DefaultWidth, o.Width)
	require.Equal(t, DefaultHeight, o.Height)
	require.Equal(t, DefaultTimeoutSec*time.Second, o.Timeout)
	require.Nil(t, o.headers())
}

func TestOptionsRequireURLAndOutput(t *testing.T) {
	_, err := Options{OutputPath: "out.png"}.withDefaults()
	require.ErrorContains(t, err, "URL")

	_, err = Options{URL: "http://x"}.withDefaults()
	require.ErrorContains(t, err, "OutputPath")

	require.Error(t, CaptureReportPNG(context.Background(), Options{}))
}

func TestBasicAuthHeader(t *testing.T) {
	h := Options{Username: "ana", Password: "secret"}.headers()
	require.Equal(t, "Basic YW5hOnNlY3JldA==", h["Authorization"])
}
