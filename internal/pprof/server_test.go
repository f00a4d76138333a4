package pprof

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"
)

func TestServerStartStop(t *testing.T) {
	srv := NewServer(nil)

	port, err := srv.Start(0)
	if err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	if port == 0 || srv.Port() != port {
		t.Fatalf("Start() port = %d, Port() = %d", port, srv.Port())
	}

	resp, err := http.Get(fmt.Sprintf("http://127.0.0.1:%d/debug/pprof/", port))
	if err != nil {
		t.Fatalf("GET /debug/pprof/ error: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("GET /debug/pprof/ status = %d, want 200", resp.StatusCode)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Stop(ctx); err != nil {
		t.Errorf("Stop() error: %v", err)
	}
	if err := srv.Stop(ctx); err != nil {
		t.Errorf("second Stop() error: %v", err)
	}
}

func TestServerStartTwice(t *testing.T) {
	srv := NewServer(nil)
	if _, err := srv.Start(0); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	defer srv.Stop(context.Background())

	if _, err := srv.Start(0); err == nil {
		t.Fatal("second Start() should fail")
	}
}

func TestStopUnstarted(t *testing.T) {
	if err := NewServer(nil).Stop(context.Background()); err != nil {
		t.Fatalf("Stop() error: %v", err)
	}
}

func TestPrintUsage(t *testing.T) {
	var buf bytes.Buffer
	PrintUsage(&buf, 6060)
	out := buf.String()
	for _, want := range []string{"http://127.0.0.1:6060/debug/pprof/", "profile?seconds=30", "heap", "goroutine"} {
		if !strings.Contains(out, want) {
			t.Errorf("PrintUsage() missing %q:\n%s", want, out)
		}
	}
}

func TestServerStopRightAfterStart(t *testing.T) {
	for i := 0; i < 200; i++ {
		srv := NewServer(nil)
		if _, err := srv.Start(0); err != nil {
			t.Fatalf("Start() error: %v", err)
		}
		if err := srv.Stop(context.Background()); err != nil {
			t.Fatalf("Stop() iteration %d error: %v", i, err)
		}
	}
}
