package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"sort"

	"github.com/spf13/pflag"

	"github.com/andres10976/certwatch/internal/config"
	"github.com/andres10976/certwatch/internal/service/ctlog"
	"github.com/andres10976/certwatch/internal/service/matcher"
)

// Replays the newest entries of a CT log through the pattern matcher and
// prints how many certificates each include pattern would have flagged.
func main() {
	logURL := pflag.String("log", "https://ct.cloudflare.com/logs/nimbus2027/", "CT log base URL")
	count := pflag.Int64("count", 100, "number of most recent entries to analyze")
	patternFile := pflag.String("config", "certstream_monitor_config.json", "pattern configuration file")
	pflag.Parse()

	patterns := config.LoadPatterns(*patternFile, config.NewLogger(os.Stderr, "text", "warn"))

	ctx := context.Background()
	client := ctlog.NewClient(*logURL)

	sth, err := client.GetSTH(ctx)
	if err != nil {
		log.Fatalf("Failed to get STH: %v", err)
	}
	fmt.Printf("Tree size: %d\n", sth.TreeSize)

	start := max(sth.TreeSize-*count, 0)
	end := sth.TreeSize - 1

	fmt.Printf("Fetching entries %d to %d...\n", start, end)
	entries, err := client.GetEntries(ctx, start, end)
	if err != nil {
		log.Fatalf("Failed to fetch entries: %v", err)
	}
	fmt.Printf("Fetched %d entries\n\n", len(entries))

	patternMatches := make(map[string][]string)
	parseErrors := 0

	for i, entry := range entries {
		cert, err := ctlog.ParseLeafInput(entry.LeafInput, entry.ExtraData)
		if err != nil {
			parseErrors++
			continue
		}

		domains := cert.Domains()
		if d := matcher.DecideConfig(domains, patterns); d.Matched {
			patternMatches[d.Pattern] = append(patternMatches[d.Pattern], domains[0])
		}

		if (i+1)%25 == 0 {
			fmt.Printf("Processed %d/%d entries...\n", i+1, len(entries))
		}
	}

	fmt.Printf("\n=== RESULTS ===\n")
	fmt.Printf("Parse errors: %d\n", parseErrors)
	fmt.Printf("Successfully parsed: %d\n\n", len(entries)-parseErrors)

	matched := make([]string, 0, len(patternMatches))
	for p := range patternMatches {
		matched = append(matched, p)
	}
	sort.Strings(matched)

	for _, p := range matched {
		domains := patternMatches[p]
		fmt.Printf("✓ %s: %d matches\n", p, len(domains))
		for i, domain := range domains {
			if i >= 5 {
				fmt.Printf("  ... and %d more\n", len(domains)-5)
				break
			}
			fmt.Printf("  - %s\n", domain)
		}
		fmt.Println()
	}

	fmt.Printf("Patterns with NO matches:\n")
	for _, p := range patterns.IncludePatterns {
		if _, found := patternMatches[p]; !found {
			fmt.Printf("✗ %s\n", p)
		}
	}
	fmt.Printf("Excluded substrings: %v\n", patterns.ExcludePatterns)
}
