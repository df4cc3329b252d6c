// Command healthcheck probes the running service's health endpoint. It is
// the container HEALTHCHECK binary: exit 0 when the API answers and reports
// itself healthy, exit 1 otherwise.
package main

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"os"
	"time"
)

const probeTimeout = 2 * time.Second

func main() {
	os.Exit(check())
}

func check() int {
	url := "http://" + probeAddr(os.Getenv("REPOPULSE_LISTEN_ADDR")) + "/api/v1/health"

	ctx, cancel := context.WithTimeout(context.Background(), probeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 1
	}

	resp, err := (&http.Client{Timeout: probeTimeout}).Do(req)
	if err != nil {
		return 1
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 1
	}

	// A 200 with a non-ok body still counts as unhealthy.
	var body struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil || body.Status != "ok" {
		return 1
	}

	return 0
}

// probeAddr maps the server's bind address to one the probe can dial from
// inside the same container: bind-all becomes loopback, empty becomes the
// default listen address.
func probeAddr(raw string) string {
	if raw == "" {
		return "127.0.0.1:8080"
	}

	host, port, err := net.SplitHostPort(raw)
	if err != nil {
		return "127.0.0.1:8080"
	}

	if host == "" || host == "0.0.0.0" {
		host = "127.0.0.1"
	}

	return net.JoinHostPort(host, port)
}
