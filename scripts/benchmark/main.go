// Command benchmark scans a list of stores through a running sitescan API
// and prints a score and timing table.
package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/samber/lo"

	"github.com/fyxxlabs/sitescan/models"
)

// CLI flags
var (
	apiURL    = flag.String("api-url", "http://localhost:8080", "sitescan API base URL")
	apiKey    = flag.String("api-key", "", "API key for authenticated requests")
	storesArg = flag.String("stores", "", "file with one store URL per line (default: built-in list)")
	fetchMode = flag.String("fetch-mode", models.FetchModeRendered, "rendered or plain")
	skipAI    = flag.Bool("skip-ai", false, "baseline audit only")
	output    = flag.String("output", "benchmark-results.json", "JSON output file path")
	timeout   = flag.Duration("timeout", 3*time.Minute, "per-store timeout")
)

// Stores covering the common platforms.
var defaultStores = []string{
	"https://www.allbirds.com/",
	"https://www.gymshark.com/",
	"https://www.bombas.com/",
	"https://www.kyliecosmetics.com/",
	"https://www.brooklinen.com/",
}

type storeResult struct {
	URL        string            `json:"url"`
	Success    bool              `json:"success"`
	Score      int               `json:"score"`
	Breakdown  models.Breakdown  `json:"breakdown"`
	Confidence string            `json:"confidence"`
	Pages      int               `json:"pages"`
	FetchMode  string            `json:"fetch_mode"`
	AIStatus   string            `json:"ai_status"`
	Timing     models.TimingInfo `json:"timing"`
	WallMs     int64             `json:"wall_ms"`
	Error      string            `json:"error,omitempty"`
}

type benchmarkReport struct {
	Timestamp string        `json:"timestamp"`
	APIURL    string        `json:"api_url"`
	Results   []storeResult `json:"results"`
}

func main() {
	flag.Parse()

	stores := defaultStores
	if *storesArg != "" {
		var err error
		if stores, err = readStores(*storesArg); err != nil {
			fmt.Fprintf(os.Stderr, "Error reading stores: %v\n", err)
			os.Exit(1)
		}
	}

	fmt.Println("=== sitescan benchmark ===")
	fmt.Printf("API URL:   %s\n", *apiURL)
	fmt.Printf("Stores:    %d\n", len(stores))
	fmt.Printf("Output:    %s\n", *output)
	fmt.Println()

	if err := checkAPI(*apiURL); err != nil {
		fmt.Fprintf(os.Stderr, "Error: cannot reach API at %s: %v\n", *apiURL, err)
		os.Exit(1)
	}

	report := benchmarkReport{Timestamp: time.Now().UTC().Format(time.RFC3339), APIURL: *apiURL}
	for _, u := range stores {
		fmt.Printf("Scanning %s ... ", u)
		r := scanStore(u)
		if r.Success {
			fmt.Printf("OK  score %d  %dms\n", r.Score, r.WallMs)
		} else {
			fmt.Printf("FAILED: %s\n", r.Error)
		}
		report.Results = append(report.Results, r)
	}
	fmt.Println()

	printTable(report.Results)

	if err := writeJSON(*output, report); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing JSON output: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("\nDetailed results written to %s\n", *output)
}

func readStores(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var out []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line != "" && !strings.HasPrefix(line, "#") {
			out = append(out, line)
		}
	}
	return lo.Uniq(out), sc.Err()
}

func checkAPI(baseURL string) error {
	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Get(baseURL + "/api/v1/health")
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

func call(ctx context.Context, method, path string, payload, out any) error {
	var body bytes.Buffer
	if payload != nil {
		if err := json.NewEncoder(&body).Encode(payload); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, *apiURL+path, &body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if *apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+*apiKey)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		var er models.ErrorResponse
		if json.NewDecoder(resp.Body).Decode(&er) == nil && er.Error != nil {
			return fmt.Errorf("%d %s: %s", resp.StatusCode, er.Error.Code, er.Error.Message)
		}
		return fmt.Errorf("status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func scanStore(u string) storeResult {
	r := storeResult{URL: u}
	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()
	start := time.Now()

	var accepted models.ScanAcceptedResponse
	req := models.ScanRequest{URL: u, FetchMode: *fetchMode, SkipAI: *skipAI}
	if err := call(ctx, http.MethodPost, "/api/v1/scans", req, &accepted); err != nil {
		r.Error = err.Error()
		return r
	}

	for {
		var st models.ScanStatusResponse
		if err := call(ctx, http.MethodGet, "/api/v1/scans/"+accepted.ID, nil, &st); err != nil {
			r.Error = err.Error()
			return r
		}
		if st.Status == models.JobFailed {
			r.Error = "scan failed"
			if st.Error != nil {
				r.Error = st.Error.Message
			}
			return r
		}
		if st.Status == models.JobSucceeded {
			break
		}
		select {
		case <-ctx.Done():
			r.Error = ctx.Err().Error()
			return r
		case <-time.After(2 * time.Second):
		}
	}

	var res models.ScanResultResponse
	if err := call(ctx, http.MethodGet, "/api/v1/scans/"+accepted.ID+"/result", nil, &res); err != nil || res.Result == nil {
		r.Error = fmt.Sprintf("fetch result: %v", err)
		return r
	}
	r.WallMs = time.Since(start).Milliseconds()
	r.Success = true
	r.Score = res.Result.Score
	r.Breakdown = res.Result.Breakdown
	r.Confidence = res.Result.Confidence
	r.Pages = len(res.Result.PagesScanned)
	r.FetchMode = res.Result.Raw.FetchMode
	r.AIStatus = res.Result.Raw.AI.Status
	r.Timing = res.Result.Raw.Timing
	return r
}

func printTable(results []storeResult) {
	fmt.Println(strings.Repeat("─", 100))
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "Store\tScore\tClarity\tTrust\tOffer\tPages\tMode\tAI\tTotal\n")
	fmt.Fprintf(w, "─────\t─────\t───────\t─────\t─────\t─────\t────\t──\t─────\n")
	for _, r := range results {
		if !r.Success {
			fmt.Fprintf(w, "%s\tFAILED\t-\t-\t-\t-\t-\t-\t-\n", truncateURL(r.URL, 40))
			continue
		}
		fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%d\t%d\t%s\t%s\t%dms\n",
			truncateURL(r.URL, 40), r.Score, r.Breakdown.Clarity, r.Breakdown.Trust, r.Breakdown.Offer,
			r.Pages, r.FetchMode, r.AIStatus, r.Timing.TotalMs)
	}
	w.Flush()

	ok := lo.Filter(results, func(r storeResult, _ int) bool { return r.Success })
	if len(ok) > 0 {
		avg := float64(lo.SumBy(ok, func(r storeResult) int { return r.Score })) / float64(len(ok))
		fmt.Printf("%d/%d succeeded, average score %.1f\n", len(ok), len(results), avg)
	}
	fmt.Println(strings.Repeat("─", 100))
}

func truncateURL(u string, max int) string {
	if len(u) <= max {
		return u
	}
	return u[:max-3] + "..."
}

func writeJSON(path string, report benchmarkReport) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
