// Command smoke probes a running deployment and fails when any critical
// endpoint misbehaves. It is meant to run after a deploy, before traffic
// is shifted.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strings"
	"time"
)

type probe struct {
	Method     string `json:"method"`
	Path       string `json:"path"`
	WantStatus int    `json:"want_status"`
	Critical   bool   `json:"critical"`
}

type result struct {
	Probe    probe
	Status   int
	Duration time.Duration
	Error    error
}

func defaultProbes() []probe {
	return []probe{
		{Method: http.MethodGet, Path: "/health", WantStatus: http.StatusOK, Critical: true},
		{Method: http.MethodGet, Path: "/ready", WantStatus: http.StatusOK, Critical: true},
		{Method: http.MethodGet, Path: "/metrics", WantStatus: http.StatusOK, Critical: false},
		{Method: http.MethodGet, Path: "/api/v1/courses", WantStatus: http.StatusOK, Critical: true},
		{Method: http.MethodGet, Path: "/api/v1/courses/catalog", WantStatus: http.StatusOK, Critical: true},
	}
}

func main() {
	var (
		base       string
		probesPath string
		timeout    time.Duration
	)

	flag.StringVar(&base, "base", "http://localhost:4000", "API base URL")
	flag.StringVar(&probesPath, "probes", "", "Optional JSON probes file; the built-in set runs when empty")
	flag.DurationVar(&timeout, "timeout", 5*time.Second, "HTTP client timeout")
	flag.Parse()

	probes := defaultProbes()
	if probesPath != "" {
		loaded, err := loadProbes(probesPath)
		if err != nil {
			log.Fatalf("failed to load probes: %v", err)
		}
		probes = loaded
	}

	client := &http.Client{Timeout: timeout}
	var (
		results  []result
		breaking int
		warnings int
	)

	for _, p := range probes {
		res := runProbe(client, base, p)
		if res.Error != nil || res.Status != p.WantStatus {
			if p.Critical {
				breaking++
			} else {
				warnings++
			}
		}
		results = append(results, res)
	}

	printReport(results)

	fmt.Printf("Critical failures: %d, Warnings: %d\n", breaking, warnings)
	if breaking > 0 {
		os.Exit(1)
	}
}

func loadProbes(path string) ([]probe, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg struct {
		Probes []probe `json:"probes"`
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	if len(cfg.Probes) == 0 {
		return nil, fmt.Errorf("no probes defined in %s", path)
	}
	return cfg.Probes, nil
}

func runProbe(client *http.Client, base string, p probe) result {
	res := result{Probe: p}

	method := strings.ToUpper(strings.TrimSpace(p.Method))
	if method == "" {
		method = http.MethodGet
	}
	path := p.Path
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	url := strings.TrimRight(base, "/") + path

	req, err := http.NewRequest(method, url, nil)
	if err != nil {
		res.Error = err
		return res
	}

	start := time.Now()
	resp, err := client.Do(req)
	res.Duration = time.Since(start)
	if err != nil {
		res.Error = err
		return res
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	res.Status = resp.StatusCode
	return res
}

func printReport(results []result) {
	fmt.Println("Smoke Report")
	fmt.Println("============")
	for _, res := range results {
		status := "OK"
		if res.Error != nil {
			status = "ERROR"
		} else if res.Status != res.Probe.WantStatus {
			status = "FAIL"
		}
		fmt.Printf("[%s] %s %s\n", status, res.Probe.Method, res.Probe.Path)
		if res.Error != nil {
			fmt.Printf("  Error: %v\n", res.Error)
			continue
		}
		fmt.Printf("  Status: %d (want %d) in %s | Critical: %t\n", res.Status, res.Probe.WantStatus, res.Duration, res.Probe.Critical)
	}
}
