package api

import (
	"bufio"
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"
)

func TestEventsStreamsCommittedChanges(t *testing.T) {
	f := newFixture(t)
	admin := f.addPrincipal("admin", "Admin")

	srv := httptest.NewServer(f.router)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, "GET", srv.URL+"/api/events", nil)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.Header.Set("X-Principal-ID", strconv.FormatInt(admin, 10))

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("open stream: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("content type = %q", ct)
	}

	// The subscription is registered before the handler writes the header,
	// so a mutation after the stream opens must be delivered.
	if _, err := f.svc.CreateSpace(context.Background(), "P-01"); err != nil {
		t.Fatalf("create space: %v", err)
	}

	scanner := bufio.NewScanner(resp.Body)
	var event, data string
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "event: "):
			event = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			data = strings.TrimPrefix(line, "data: ")
		}
		if event != "" && data != "" {
			break
		}
	}
	if err := scanner.Err(); err != nil {
		t.Fatalf("read stream: %v", err)
	}
	if event != "change" {
		t.Fatalf("event = %q", event)
	}
	if !strings.Contains(data, `"collection":"spaces"`) || !strings.Contains(data, `"op":"created"`) {
		t.Fatalf("data = %q", data)
	}
}
