package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/papernavigator/papernav/internal/testutils"
)

func main() {
	var (
		size       = flag.Int("size", 100, "Number of candidate papers to generate")
		duplicates = flag.Int("duplicates", 5, "Number of near-duplicate titles to append")
		seed       = flag.Int64("seed", 0, "Random seed (0 uses the current time)")
		outputPath = flag.String("output", "testdata/candidates/synthetic_candidates.json", "Output file path")
	)
	flag.Parse()

	if *seed == 0 {
		*seed = time.Now().UnixNano()
	}
	pool := testutils.GenerateSyntheticPool(*size, *duplicates, *seed)

	if err := testutils.SaveSyntheticPool(pool, *outputPath); err != nil {
		log.Fatalf("Failed to save candidate pool: %v", err)
	}

	stats := pool.Stats()
	ranked := pool.Ranked()

	fmt.Printf("Generated candidate pool:\n")
	fmt.Printf("- Path: %s\n", *outputPath)
	fmt.Printf("- Query: %s\n", pool.Query)
	fmt.Printf("- Papers: %d (%d near-duplicates)\n", stats.Papers, stats.Duplicates)
	fmt.Printf("- By depth: %v\n", stats.ByDepth)
	fmt.Printf("- By edge type: %v\n", stats.ByEdge)
	fmt.Printf("- Seed: %d\n", *seed)

	// The hidden order sits next to the pool so a ranking run can be
	// scored against it.
	truthPath := filepath.Join(filepath.Dir(*outputPath), "ground_truth.txt")
	f, err := os.Create(filepath.Clean(truthPath))
	if err != nil {
		log.Printf("Warning: failed to write ground truth: %v", err)
		return
	}
	defer f.Close()
	for i, id := range ranked {
		fmt.Fprintf(f, "%d\t%s\t%.4f\n", i+1, id, pool.Strength[id])
	}
	fmt.Printf("- Ground truth: %s\n", truthPath)
}
