// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"bytes"
	"fmt"
	"log"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/spf13/cobra"
)

var (
	targetURL   string
	concurrency int
	iterations  int
	payload     string

	rootCmd = &cobra.Command{
		Use:   "vehiclesearch-bench",
		Short: "Load-tests a running vehiclesearchd's /search endpoint and reports latency percentiles",
		RunE:  runBench,
	}
)

func init() {
	rootCmd.Flags().StringVar(&targetURL, "url", "http://localhost:8080/search", "URL of the /search endpoint to hit")
	rootCmd.Flags().IntVar(&concurrency, "concurrency", 10, "number of concurrent requesters")
	rootCmd.Flags().IntVar(&iterations, "iterations", 100, "total number of requests to issue")
	rootCmd.Flags().StringVar(&payload, "body", defaultSearchBody, "JSON request body posted to --url on every request")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatalf("vehiclesearch-bench: %v", err)
	}
}

const defaultSearchBody = `{"composedQuery":{"filterExpr":""},"maxResults":10}`

// latencyStats mirrors the percentile shape reported by every other
// benchmarking surface in the pipeline: min/max plus p50/p95/p99, not just a
// mean that hides tail latency.
type latencyStats struct {
	Count      int
	Errors     int
	Min        time.Duration
	Max        time.Duration
	P50        time.Duration
	P95        time.Duration
	P99        time.Duration
	TotalBytes int64
}

func runBench(cmd *cobra.Command, args []string) error {
	if concurrency < 1 {
		return fmt.Errorf("--concurrency must be at least 1")
	}
	if iterations < 1 {
		return fmt.Errorf("--iterations must be at least 1")
	}

	jobs := make(chan struct{}, iterations)
	for i := 0; i < iterations; i++ {
		jobs <- struct{}{}
	}
	close(jobs)

	var mu sync.Mutex
	var latencies []time.Duration
	var errs int
	var totalBytes int64

	client := &http.Client{Timeout: 30 * time.Second}

	var wg sync.WaitGroup
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range jobs {
				d, n, err := fireOnce(client)
				mu.Lock()
				if err != nil {
					errs++
				} else {
					latencies = append(latencies, d)
					totalBytes += n
				}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	stats := summarize(latencies, errs, totalBytes)
	printStats(stats)
	return nil
}

func fireOnce(client *http.Client) (time.Duration, int64, error) {
	started := time.Now()
	resp, err := client.Post(targetURL, "application/json", bytes.NewBufferString(payload))
	if err != nil {
		return 0, 0, err
	}
	defer resp.Body.Close()
	n, _ := bytesRead(resp)
	elapsed := time.Since(started)
	if resp.StatusCode >= 400 {
		return elapsed, n, fmt.Errorf("status %d", resp.StatusCode)
	}
	return elapsed, n, nil
}

func bytesRead(resp *http.Response) (int64, error) {
	buf := make([]byte, 4096)
	var total int64
	for {
		n, err := resp.Body.Read(buf)
		total += int64(n)
		if err != nil {
			break
		}
	}
	return total, nil
}

func summarize(latencies []time.Duration, errs int, totalBytes int64) latencyStats {
	if len(latencies) == 0 {
		return latencyStats{Errors: errs}
	}
	sorted := append([]time.Duration(nil), latencies...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	return latencyStats{
		Count:      len(sorted),
		Errors:     errs,
		Min:        sorted[0],
		Max:        sorted[len(sorted)-1],
		P50:        percentile(sorted, 0.50),
		P95:        percentile(sorted, 0.95),
		P99:        percentile(sorted, 0.99),
		TotalBytes: totalBytes,
	}
}

func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(p * float64(len(sorted)))
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

func printStats(s latencyStats) {
	fmt.Printf("requests: %d ok, %d failed\n", s.Count, s.Errors)
	if s.Count == 0 {
		return
	}
	fmt.Printf("latency:  min=%v p50=%v p95=%v p99=%v max=%v\n", s.Min, s.P50, s.P95, s.P99, s.Max)
	fmt.Printf("bytes:    %d total received\n", s.TotalBytes)
}
