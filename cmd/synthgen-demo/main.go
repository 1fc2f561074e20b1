// Command synthgen-demo wires the three subsystems end to end: introspect a
// live Postgres catalog (or reload a cached schema.json), validate a plan
// against it, and run generation to a CSV output directory.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/synthforge/synthgen/internal/dbdriver"
	"github.com/synthforge/synthgen/internal/logging"
	"github.com/synthforge/synthgen/pkg/engine"
	"github.com/synthforge/synthgen/pkg/generators"
	"github.com/synthforge/synthgen/pkg/introspect"
	"github.com/synthforge/synthgen/pkg/plan"
	"github.com/synthforge/synthgen/pkg/schemamodel"
)

func main() {
	connStr := flag.String("conn", "", "Postgres connection string (omit to reload --schema instead of introspecting live)")
	driver := flag.String("driver", dbdriver.DriverPgx, "database/sql driver to use: pgx or postgres")
	schemaPath := flag.String("schema", "schema.json", "Path to read/write the introspected schema document")
	planPath := flag.String("plan", "", "Path to plan.json")
	outDir := flag.String("out", "out", "Output directory for CSV files, resolved_plan.json, and generation_report.json")
	strict := flag.Bool("strict", false, "Fail fast on any defaulted value or unresolved dependency")
	autoParents := flag.Bool("auto-generate-parents", true, "Auto-generate rows for referenced tables the plan doesn't target")
	development := flag.Bool("dev", false, "Use colorized console logging instead of JSON")
	flag.Parse()

	if *planPath == "" {
		log.Fatal("a --plan is required")
	}

	logger, err := logging.New(*development)
	if err != nil {
		log.Fatalf("build logger: %v", err)
	}
	defer logger.Sync()

	var db *schemamodel.Database
	if *connStr != "" {
		fmt.Println("→ Introspecting database schema...")
		sqlDB, err := dbdriver.Open("postgres", *driver, *connStr)
		if err != nil {
			log.Fatalf("connect: %v", err)
		}
		defer sqlDB.Close()

		ins := introspect.New(sqlDB, introspect.DefaultOptions(), logger)
		db, err = ins.Run(context.Background())
		if err != nil {
			log.Fatalf("introspect: %v", err)
		}
		if err := schemamodel.WriteJSON(db, *schemaPath); err != nil {
			log.Printf("WARNING: schema not cached: %v", err)
		} else {
			fmt.Printf("✓ Wrote schema to %s (%d table(s))\n", *schemaPath, countTables(db))
		}
	} else {
		fmt.Printf("→ Reloading cached schema from %s...\n", *schemaPath)
		db, err = schemamodel.LoadJSON(*schemaPath)
		if err != nil {
			log.Fatalf("load schema: %v", err)
		}
	}

	p, err := plan.Load(*planPath)
	if err != nil {
		log.Fatalf("load plan: %v", err)
	}

	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		log.Fatalf("create output directory: %v", err)
	}

	reg := generators.NewDefaultRegistry()

	opts := engine.DefaultOptions(*outDir)
	opts.Strict = *strict
	opts.AutoGenerateParents = *autoParents
	opts.Logger = logger

	fmt.Println("→ Generating...")
	report, err := engine.Run(context.Background(), opts, p, db, reg)
	if err != nil {
		fmt.Printf("generation failed: %v\n", err)
		if report != nil {
			printReport(report)
		}
		os.Exit(1)
	}

	printReport(report)
}

func countTables(db *schemamodel.Database) int {
	n := 0
	for _, s := range db.Schemas {
		n += len(s.Tables)
	}
	return n
}

func printReport(r *engine.Report) {
	fmt.Println("\n=== Generation Report ===")
	fmt.Printf("status: %s (%dms)\n", r.Status, r.ElapsedMillis)
	for _, tr := range r.Tables {
		fmt.Printf("  %s.%s: %d/%d rows written, %d skipped, %d bytes\n",
			tr.Schema, tr.Table, tr.RowsWritten, tr.RowsRequested, tr.RowsSkipped, tr.BytesWritten)
	}
	if r.FallbackCount > 0 || r.HeuristicCount > 0 {
		fmt.Printf("fallbacks: %d, retries: %d\n", r.FallbackCount, r.HeuristicCount)
	}
	if len(r.PIIColumnsTouched) > 0 {
		fmt.Printf("PII tags touched: %v\n", r.PIIColumnsTouched)
	}
	for code, count := range r.WarningsByCode {
		fmt.Printf("warning %s: %d\n", code, count)
	}
}
