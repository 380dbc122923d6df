package cmd

import (
	"bytes"
	"context"
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teemow/drivedesk/internal/config"
)

func testConfig() *config.Config {
	return &config.Config{
		Addr:           "127.0.0.1:0",
		BaseURL:        "http://localhost:8080",
		SessionTimeout: time.Hour,
		MaxUploadSize:  1 << 20,
		LogLevel:       "info",
		LogFormat:      "text",
	}
}

func TestNewServeCmd_Flags(t *testing.T) {
	cmd := newServeCmd()

	for _, name := range []string{
		config.KeyAddr,
		config.KeyBaseURL,
		config.KeyGoogleClientID,
		config.KeyGoogleClientSecret,
		config.KeyMaxUploadSize,
		config.KeyOpenBrowser,
		config.KeyMetricsAddr,
	} {
		assert.NotNil(t, cmd.Flags().Lookup(name), "flag --%s", name)
	}

	assert.Equal(t, config.DefaultAddr, cmd.Flags().Lookup(config.KeyAddr).DefValue)
}

func TestServeCmd_RejectsInsecureBaseURL(t *testing.T) {
	cmd := newServeCmd()
	cmd.SetArgs([]string{"--base-url", "http://drive.example.com"})
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)

	err := cmd.ExecuteContext(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTTPS")
}

func TestRunServe_StopsOnCancel(t *testing.T) {
	t.Setenv("INSTRUMENTATION_ENABLED", "false")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- runServe(ctx, testConfig(), io.Discard) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("runServe did not return after cancel")
	}
}

func TestRunServe_OpensBrowser(t *testing.T) {
	t.Setenv("INSTRUMENTATION_ENABLED", "false")

	opened := make(chan string, 1)
	previous := openBrowser
	openBrowser = func(url string) error {
		opened <- url
		return nil
	}
	t.Cleanup(func() { openBrowser = previous })

	cfg := testConfig()
	cfg.OpenBrowser = true

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- runServe(ctx, cfg, io.Discard) }()

	select {
	case url := <-opened:
		assert.Equal(t, cfg.BaseURL, url)
	case <-time.After(10 * time.Second):
		t.Fatal("browser was not opened")
	}

	cancel()
	assert.NoError(t, <-done)
}

func TestRunServe_ListenError(t *testing.T) {
	t.Setenv("INSTRUMENTATION_ENABLED", "false")

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	cfg := testConfig()
	cfg.Addr = ln.Addr().String()

	err = runServe(context.Background(), cfg, io.Discard)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to listen")
}

func TestRunServe_InvalidLogFormat(t *testing.T) {
	cfg := testConfig()
	cfg.LogFormat = "xml"

	err := runServe(context.Background(), cfg, io.Discard)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid log format")
}

func TestVersionCmd(t *testing.T) {
	var out bytes.Buffer
	cmd := newVersionCmd()
	cmd.SetOut(&out)
	cmd.SetArgs(nil)

	require.NoError(t, cmd.Execute())
	assert.Equal(t, "drivedesk version "+version+"\n", out.String())
}
