package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/spf13/pflag"
)

func main() {
	baseURL := pflag.String("url", "http://localhost:8080", "synergy server base URL")
	wait := pflag.Duration("wait", 2*time.Second, "time to wait for the server to start")
	pflag.Parse()

	time.Sleep(*wait)

	fmt.Println("Starting Integration Test...")

	channel := fmt.Sprintf("smoke-%d", time.Now().Unix())
	base := *baseURL + "/channels/" + channel

	// 1. Post items
	fmt.Println("1. Posting items...")
	items := []map[string]string{
		{"type": "message", "body": "Has anyone tried the new ramen place downtown?"},
		{"type": "message", "body": "Yes, the miso broth is excellent."},
		{"type": "message", "body": "They also do a vegetarian version."},
		{"type": "post", "title": "Best ramen in town", "body": "A short review."},
		{"type": "message", "body": "We should go on Friday."},
		{"type": "task", "name": "Book a table for Friday"},
		{"type": "message", "body": "Unrelated, but the deploy is broken."},
		{"type": "message", "body": "Rolling back now."},
	}
	for _, item := range items {
		if !sendRequest("POST", base+"/items", item, http.StatusCreated) {
			fmt.Println("FAILED: Post items")
			os.Exit(1)
		}
	}
	fmt.Println("PASSED: Post items")

	// 2. Run a processing check
	fmt.Println("2. Running processing check...")
	if !sendRequest("POST", base+"/check", nil, http.StatusOK) {
		fmt.Println("FAILED: Processing check")
		os.Exit(1)
	}
	fmt.Println("PASSED: Processing check")

	// 3. Read conversations
	fmt.Println("3. Reading conversations...")
	if !sendRequest("GET", base+"/conversations", nil, http.StatusOK) {
		fmt.Println("FAILED: Conversations")
		os.Exit(1)
	}
	fmt.Println("PASSED: Conversations")
}

func sendRequest(method, url string, payload interface{}, want int) bool {
	var body io.Reader
	if payload != nil {
		jsonBytes, _ := json.Marshal(payload)
		body = bytes.NewBuffer(jsonBytes)
	}

	req, err := http.NewRequest(method, url, body)
	if err != nil {
		fmt.Printf("Error creating request: %v\n", err)
		return false
	}
	req.Header.Set("Content-Type", "application/json")

	client := &http.Client{Timeout: 2 * time.Minute}
	resp, err := client.Do(req)
	if err != nil {
		fmt.Printf("Error sending request: %v\n", err)
		return false
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != want {
		fmt.Printf("Request failed with status %d: %s\n", resp.StatusCode, string(respBody))
		return false
	}
	fmt.Printf("Response: %s\n", string(respBody))
	return true
}
