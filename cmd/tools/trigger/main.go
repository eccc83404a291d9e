package main

import (
	"flag"
	"fmt"
	"io"
	"net/http"
	neturl "net/url"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

func main() {
	baseURL := flag.String("url", "http://localhost:8081", "API base URL")
	source := flag.String("source", "", "source to sync; empty syncs every active source")
	next := flag.Bool("next", false, "sync the next due source instead")
	async := flag.Bool("async", false, "start the sync as a background job")
	flag.Parse()

	_ = godotenv.Load()
	adminSecret := strings.TrimSpace(os.Getenv("ADMIN_SECRET"))
	if adminSecret == "" {
		fmt.Println("Missing ADMIN_SECRET environment variable")
		os.Exit(1)
	}

	url := strings.TrimRight(*baseURL, "/") + "/api/v1/sync"
	if *next {
		url += "/next"
	} else {
		q := neturl.Values{}
		if *source != "" {
			q.Set("source", *source)
		}
		if *async {
			q.Set("async", "true")
		}
		if len(q) > 0 {
			url += "?" + q.Encode()
		}
	}

	req, err := http.NewRequest(http.MethodPost, url, nil)
	if err != nil {
		fmt.Printf("Error creating request: %v\n", err)
		os.Exit(1)
	}
	req.Header.Set("X-Admin-Secret", adminSecret)

	client := &http.Client{Timeout: 10 * time.Minute}
	resp, err := client.Do(req)
	if err != nil {
		fmt.Printf("Error sending request: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()

	fmt.Printf("Response Status: %s\n", resp.Status)
	_, _ = io.Copy(os.Stdout, resp.Body)
	fmt.Println()
	if resp.StatusCode >= 300 {
		os.Exit(1)
	}
}
