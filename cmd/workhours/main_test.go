package main

import (
	"context"
	"net"
	"net/url"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/antonio-leblanc/working-hours/internal/config"
	appLog "github.com/antonio-leblanc/working-hours/internal/log"
	"github.com/antonio-leblanc/working-hours/internal/pipeline"
)

func TestServeReturnsWhenListenFails(t *testing.T) {
	busy, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer busy.Close()

	dir := t.TempDir()
	conf := config.DefaultConfig()
	conf.Listen = busy.Addr().String()
	conf.OutputDir = filepath.Join(dir, "reports")
	conf.CacheDir = filepath.Join(dir, "cache")

	runner, err := pipeline.New(conf, appLog.Discard())
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- serve(context.Background(), conf, runner, false) }()

	select {
	case err := <-done:
		require.Error(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("serve kept running after the listener failed")
	}
}

func TestSchedulePeriodQuery(t *testing.T) {
	q, err := schedulePeriodQuery("month")
	require.NoError(t, err)
	require.Equal(t, url.Values{"period": {"month"}}, q)

	q, err = schedulePeriodQuery("period=isoweek&year=2024&week=11")
	require.NoError(t, err)
	require.Equal(t, "isoweek", q.Get("period"))
	require.Equal(t, "11", q.Get("week"))

	q, err = schedulePeriodQuery("period=range&from=2024-03-01&to=2024-03-15")
	require.NoError(t, err)
	require.Equal(t, "from=2024-03-01&period=range&to=2024-03-15", q.Encode())

	_, err = schedulePeriodQuery("period=%zz")
	require.Error(t, err)
}
