package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

const (
	baseURL = "http://localhost:8080"
)

func main() {
	// Wait for server to start
	time.Sleep(2 * time.Second)

	fmt.Println("Starting Integration Test...")

	fmt.Println("1. Checking health...")
	if _, ok := sendRequest("GET", "/healthz", nil); !ok {
		fmt.Println("FAILED: Health")
		os.Exit(1)
	}
	fmt.Println("PASSED: Health")

	runTag := fmt.Sprintf("smoke_%d", time.Now().Unix())
	records := []map[string]any{
		{
			"document_id": runTag + "_a",
			"text":        "Drug A was started together with Drug B.",
			"extractions": []map[string]any{
				{"extraction_class": "medication", "extraction_text": "Drug A", "alignment_status": "match_exact"},
				{"extraction_class": "medication", "extraction_text": "Drug B", "alignment_status": "match_exact"},
				{"extraction_class": "relationship", "extraction_text": "Drug A was started together with Drug B",
					"attributes": map[string]string{"entity_1": "Drug A", "entity_2": "Drug B"}},
			},
		},
		{
			"document_id": runTag + "_b",
			"text":        "Drug B interacts with Drug A.",
			"extractions": []map[string]any{
				{"extraction_class": "relationship", "extraction_text": "Drug B interacts with Drug A",
					"attributes": map[string]string{"entity_1": "Drug B", "entity_2": "Drug A"}},
			},
		},
	}

	fmt.Println("2. Ingesting records...")
	var body bytes.Buffer
	enc := json.NewEncoder(&body)
	for _, rec := range records {
		_ = enc.Encode(rec)
	}
	respBody, ok := sendRequest("POST", "/ingest", &body)
	if !ok {
		fmt.Println("FAILED: Ingest")
		os.Exit(1)
	}
	var report struct {
		Documents int `json:"documents"`
		Skipped   int `json:"skipped"`
	}
	if err := json.Unmarshal(respBody, &report); err != nil || report.Documents != len(records) || report.Skipped != 0 {
		fmt.Printf("FAILED: Ingest report %s\n", respBody)
		os.Exit(1)
	}
	fmt.Println("PASSED: Ingest")

	fmt.Println("3. Checking metrics...")
	metrics, ok := sendRequest("GET", "/metrics", nil)
	if !ok || !strings.Contains(string(metrics), "clinigraph_records_ingested_total") {
		fmt.Println("FAILED: Metrics")
		os.Exit(1)
	}
	fmt.Println("PASSED: Metrics")
}

func sendRequest(method, endpoint string, body io.Reader) ([]byte, bool) {
	req, err := http.NewRequest(method, baseURL+endpoint, body)
	if err != nil {
		fmt.Printf("Error creating request: %v\n", err)
		return nil, false
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/x-ndjson")
	}

	client := &http.Client{Timeout: 30 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		fmt.Printf("Error sending request: %v\n", err)
		return nil, false
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		fmt.Printf("Request failed with status %d: %s\n", resp.StatusCode, string(respBody))
		return nil, false
	}

	if endpoint != "/metrics" {
		fmt.Printf("Response: %s\n", string(respBody))
	}
	return respBody, true
}
