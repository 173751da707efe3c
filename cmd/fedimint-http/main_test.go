package main

import (
	"bytes"
	"context"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/nerrad567/fedimint-http/internal/auth"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return path
}

// freePort returns a TCP port that was free a moment ago.
func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port
}

func TestRun_InvalidConfig(t *testing.T) {
	path := writeConfig(t, `
gateway:
  mode: grpc
security:
  password: "x"
`)

	err := run(context.Background(), path)
	if err == nil {
		t.Fatal("run() should fail with an invalid mode")
	}
	if !strings.Contains(err.Error(), "loading config") {
		t.Errorf("error = %v, want a config error", err)
	}
}

func TestRun_MissingCredential(t *testing.T) {
	t.Setenv("PASSWORD", "")
	t.Setenv("FEDIMINT_HTTP_PASSWORD", "")
	t.Setenv("FEDIMINT_HTTP_PASSWORD_HASH", "")

	path := writeConfig(t, `
database:
  path: "`+filepath.Join(t.TempDir(), "fm.db")+`"
`)

	if err := run(context.Background(), path); err == nil {
		t.Fatal("run() should fail without a password")
	}
}

func TestRun_StartsAndStops(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, `
gateway:
  invite_code: "fed11alpha"
  sim:
    step_delay_ms: 1
database:
  path: "`+filepath.Join(dir, "fm.db")+`"
api:
  host: "127.0.0.1"
logging:
  level: error
security:
  password: "hunter2"
`)
	t.Setenv("FEDIMINT_HTTP_API_PORT", strconv.Itoa(freePort(t)))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- run(ctx, path) }()

	time.Sleep(300 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run() error: %v", err)
		}
	case <-time.After(15 * time.Second):
		t.Fatal("run() did not stop after cancellation")
	}

	if _, err := os.Stat(filepath.Join(dir, "fm.db")); err != nil {
		t.Errorf("database file not created: %v", err)
	}
}

func TestApplyFlags(t *testing.T) {
	t.Setenv("FEDIMINT_HTTP_MODE", "")
	t.Setenv("FEDIMINT_HTTP_API_PORT", "")

	cmd := newRootCmd()
	if err := cmd.ParseFlags([]string{"--mode", "ws", "--port", "4100"}); err != nil {
		t.Fatalf("ParseFlags() error: %v", err)
	}
	if err := applyFlags(cmd); err != nil {
		t.Fatalf("applyFlags() error: %v", err)
	}

	if got := os.Getenv("FEDIMINT_HTTP_MODE"); got != "ws" {
		t.Errorf("FEDIMINT_HTTP_MODE = %q, want ws", got)
	}
	if got := os.Getenv("FEDIMINT_HTTP_API_PORT"); got != "4100" {
		t.Errorf("FEDIMINT_HTTP_API_PORT = %q, want 4100", got)
	}
}

func TestHashPasswordCmd(t *testing.T) {
	var out bytes.Buffer
	cmd := hashPasswordCmd()
	cmd.SetOut(&out)
	cmd.SetIn(strings.NewReader("hunter2\n"))
	cmd.SetArgs([]string{})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("Execute() error: %v", err)
	}

	hash := strings.TrimSpace(out.String())
	ok, err := auth.VerifyPassword("hunter2", hash)
	if err != nil || !ok {
		t.Errorf("VerifyPassword(%q) = %v, %v", hash, ok, err)
	}
}

func TestHashPasswordCmd_Empty(t *testing.T) {
	cmd := hashPasswordCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetIn(strings.NewReader("\n"))
	cmd.SetArgs([]string{})

	if err := cmd.Execute(); err == nil {
		t.Error("Execute() should fail for an empty password")
	}
}

func TestVersionCmd(t *testing.T) {
	var out bytes.Buffer
	cmd := versionCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("Execute() error: %v", err)
	}
	if !strings.HasPrefix(out.String(), "fedimint-http dev") {
		t.Errorf("output = %q", out.String())
	}
}
