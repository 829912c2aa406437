package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"brickbus-go/internal/logsink"
	"brickbus-go/internal/topic"
	"brickbus-go/internal/types"
)

var errLimit = errors.New("limit reached")

func main() {
	var (
		path     = flag.String("path", "", "Path to a sink record .bin file")
		limit    = flag.Int("limit", 0, "Number of records to dump, 0 for all")
		minLevel = flag.String("min-severity", "debug", "Skip records below this severity")
		asJSON   = flag.Bool("json", false, "Print one JSON object per record")
	)
	flag.Parse()

	if *path == "" {
		log.Fatal("path is required")
	}
	f, err := os.Open(*path)
	if err != nil {
		log.Fatalf("open record file: %v", err)
	}
	defer f.Close()

	floor := topic.ParseSeverity(*minLevel)
	count := 0
	err = logsink.ReadRecords(f, func(at time.Time, rec types.LogRecord) error {
		if *limit > 0 && count >= *limit {
			return errLimit
		}
		if topic.ParseSeverity(rec.Severity) < floor {
			return nil
		}
		count++
		if *asJSON {
			line, err := json.Marshal(map[string]any{
				"time":     at.Format(time.RFC3339Nano),
				"severity": rec.Severity,
				"message":  rec.Message,
			})
			if err != nil {
				return err
			}
			fmt.Println(string(line))
			return nil
		}
		fmt.Printf("%s %-8s %s\n", at.Format(time.RFC3339Nano), rec.Severity, rec.Message)
		return nil
	})
	if err != nil && !errors.Is(err, errLimit) {
		log.Fatalf("read records: %v", err)
	}
}
