// Command smoke probes a running API instance after deploy. It logs in with
// the supplied member credentials, walks the read surface and reports status
// codes and latency per endpoint. A non-2xx on a critical probe exits 1.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"time"
)

type probe struct {
	Method   string
	Path     string
	Auth     bool
	Critical bool
}

var probes = []probe{
	{Method: http.MethodGet, Path: "/health", Critical: true},
	{Method: http.MethodGet, Path: "/ready", Critical: true},
	{Method: http.MethodGet, Path: "/api/v1/auth/me", Auth: true, Critical: true},
	{Method: http.MethodGet, Path: "/api/v1/announcements", Auth: true, Critical: true},
	{Method: http.MethodGet, Path: "/api/v1/events", Auth: true, Critical: true},
	{Method: http.MethodGet, Path: "/api/v1/help-posts", Auth: true, Critical: true},
	{Method: http.MethodGet, Path: "/api/v1/help-posts?mine=true", Auth: true},
	{Method: http.MethodGet, Path: "/metrics"},
}

func main() {
	var (
		base     string
		email    string
		password string
		timeout  time.Duration
	)
	flag.StringVar(&base, "base", "http://localhost:8080", "API base URL")
	flag.StringVar(&email, "email", "", "member email used to log in")
	flag.StringVar(&password, "password", "", "member password used to log in")
	flag.DurationVar(&timeout, "timeout", 5*time.Second, "HTTP client timeout")
	flag.Parse()

	client := &http.Client{Timeout: timeout}

	var token string
	if email != "" {
		var err error
		token, err = login(client, base, email, password)
		if err != nil {
			log.Fatalf("login failed: %v", err)
		}
	}

	failures := 0
	for _, p := range probes {
		if p.Auth && token == "" {
			fmt.Printf("SKIP %-6s %-40s (no credentials)\n", p.Method, p.Path)
			continue
		}
		status, elapsed, err := run(client, base, p, token)
		switch {
		case err != nil:
			fmt.Printf("FAIL %-6s %-40s %v\n", p.Method, p.Path, err)
			if p.Critical {
				failures++
			}
		case status >= 200 && status < 300:
			fmt.Printf("OK   %-6s %-40s %d %s\n", p.Method, p.Path, status, elapsed.Round(time.Millisecond))
		default:
			fmt.Printf("FAIL %-6s %-40s %d %s\n", p.Method, p.Path, status, elapsed.Round(time.Millisecond))
			if p.Critical {
				failures++
			}
		}
	}

	if failures > 0 {
		fmt.Printf("\n%d critical probe(s) failed\n", failures)
		os.Exit(1)
	}
	fmt.Println("\nall critical probes passed")
}

func login(client *http.Client, base, email, password string) (string, error) {
	payload, err := json.Marshal(map[string]string{"email": email, "password": password})
	if err != nil {
		return "", err
	}
	resp, err := client.Post(base+"/api/v1/auth/login", "application/json", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var body struct {
		Data struct {
			AccessToken string `json:"access_token"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", err
	}
	if body.Data.AccessToken == "" {
		return "", fmt.Errorf("empty access token in response")
	}
	return body.Data.AccessToken, nil
}

func run(client *http.Client, base string, p probe, token string) (int, time.Duration, error) {
	req, err := http.NewRequest(p.Method, base+p.Path, nil)
	if err != nil {
		return 0, 0, err
	}
	if p.Auth {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	start := time.Now()
	resp, err := client.Do(req)
	elapsed := time.Since(start)
	if err != nil {
		return 0, elapsed, err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body) //nolint:errcheck
	return resp.StatusCode, elapsed, nil
}
