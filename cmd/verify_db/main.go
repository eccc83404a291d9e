package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/david/opportunity-radar/internal/config"
	"github.com/david/opportunity-radar/internal/db"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Config: %v", err)
	}
	ctx := context.Background()

	pool, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Unable to connect to database: %v", err)
	}
	defer pool.Close()

	now := time.Now().In(cfg.Location)
	st, err := db.NewStore(pool).GetStats(ctx, time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC))
	if err != nil {
		log.Fatalf("Stats failed: %v", err)
	}

	fmt.Printf("Total opportunities: %d\n", st.Total)
	fmt.Printf("Average total score: %.2f\n", st.AverageScore)
	fmt.Printf("Due this week: %d\n", st.DueThisWeek)

	var missingDue, missingValue, unscored int
	err = pool.QueryRow(ctx, `
		SELECT
			count(*) FILTER (WHERE due_date IS NULL),
			count(*) FILTER (WHERE estimated_value IS NULL),
			count(*) FILTER (WHERE total_score = 0)
		FROM opportunities
	`).Scan(&missingDue, &missingValue, &unscored)
	if err != nil {
		log.Fatalf("Query failed: %v", err)
	}
	fmt.Printf("Without due date: %d\n", missingDue)
	fmt.Printf("Without estimated value: %d\n", missingValue)
	fmt.Printf("Total score of zero: %d\n", unscored)

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"Source Type", "Count"})
	for k, n := range st.BySourceType {
		t.AppendRow(table.Row{k, n})
	}
	t.SortBy([]table.SortBy{{Name: "Count", Mode: table.DscNumeric}})
	t.Render()

	// (source_name, external_id) must be unique; any row here is a dedup bug.
	rows, err := pool.Query(ctx, `
		SELECT source_name, external_id, count(*)
		FROM opportunities
		GROUP BY source_name, external_id
		HAVING count(*) > 1
		LIMIT 20
	`)
	if err != nil {
		log.Fatalf("Duplicate check failed: %v", err)
	}
	defer rows.Close()

	dupes := 0
	for rows.Next() {
		var source, externalID string
		var n int
		if err := rows.Scan(&source, &externalID, &n); err != nil {
			log.Fatalf("Scan error: %v", err)
		}
		fmt.Printf("DUPLICATE %s/%s x%d\n", source, externalID, n)
		dupes++
	}
	if err := rows.Err(); err != nil {
		log.Fatalf("Duplicate check failed: %v", err)
	}
	if dupes > 0 {
		os.Exit(1)
	}
	fmt.Println("No duplicate (source_name, external_id) keys")
}
