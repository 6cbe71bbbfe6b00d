package testutils

import (
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"os"
	"path/filepath"
	"sort"

	"github.com/papernavigator/papernav/internal/domain"
)

// SyntheticPool is a generated candidate pool with a hidden relevance score
// per paper, usable as ground truth when judging ranking quality.
type SyntheticPool struct {
	Query  string         `json:"query"`
	Papers []domain.Paper `json:"papers"`
	// Strength is kept out of the candidate file.
	Strength map[string]float64 `json:"-"`
}

// PoolStats summarises a synthetic pool.
type PoolStats struct {
	Papers     int
	Duplicates int
	ByDepth    map[int]int
	ByEdge     map[string]int
}

var (
	poolTopics = []string{
		"graph neural networks", "contrastive learning", "sparse attention",
		"retrieval augmented generation", "diffusion models", "federated learning",
		"neural architecture search", "protein structure prediction",
	}
	poolVerbs = []string{
		"Scaling", "Revisiting", "Understanding", "Accelerating", "Benchmarking", "Regularising",
	}
	poolSettings = []string{
		"for molecular property prediction", "under distribution shift", "at web scale",
		"with limited labels", "on commodity hardware", "in the low data regime",
	}
	poolEdges = []string{"seed", "forward", "backward"}
)

// GenerateSyntheticPool builds n papers for a random query. Papers on the
// query topic get higher hidden strength. duplicates extra entries copy an
// earlier title with a trailing period under a fresh ID.
func GenerateSyntheticPool(n, duplicates int, seed int64) *SyntheticPool {
	rng := rand.New(rand.NewPCG(uint64(seed), uint64(seed)^0x9e3779b97f4a7c15))
	query := poolTopics[rng.IntN(len(poolTopics))]

	pool := &SyntheticPool{
		Query:    query,
		Papers:   make([]domain.Paper, 0, n+duplicates),
		Strength: make(map[string]float64, n+duplicates),
	}
	for i := range n {
		topic := poolTopics[rng.IntN(len(poolTopics))]
		strength := rng.Float64()
		if topic == query {
			strength += 1
		}
		depth := rng.IntN(3)
		edge := poolEdges[min(depth, len(poolEdges)-1)]
		p := domain.Paper{
			ID: fmt.Sprintf("S%04d", i+1),
			Title: fmt.Sprintf("%s %s %s (%d)",
				poolVerbs[rng.IntN(len(poolVerbs))], topic, poolSettings[rng.IntN(len(poolSettings))], i+1),
			Abstract:      fmt.Sprintf("We study %s. Hidden relevance %.3f.", topic, strength),
			Year:          2015 + rng.IntN(10),
			CitationCount: rng.IntN(2000),
			EdgeType:      edge,
			Depth:         depth,
		}
		if depth > 0 && i > 0 {
			p.DiscoveredFrom = pool.Papers[rng.IntN(i)].ID
		}
		pool.Papers = append(pool.Papers, p)
		pool.Strength[p.ID] = strength
	}
	for i := range min(duplicates, n) {
		orig := pool.Papers[rng.IntN(n)]
		dup := orig
		dup.ID = fmt.Sprintf("D%04d", i+1)
		dup.Title = orig.Title + "."
		pool.Papers = append(pool.Papers, dup)
		pool.Strength[dup.ID] = pool.Strength[orig.ID]
	}
	return pool
}

// Ranked returns paper IDs ordered by hidden strength, strongest first.
func (p *SyntheticPool) Ranked() []string {
	ids := make([]string, 0, len(p.Strength))
	for id := range p.Strength {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		if p.Strength[ids[i]] != p.Strength[ids[j]] {
			return p.Strength[ids[i]] > p.Strength[ids[j]]
		}
		return ids[i] < ids[j]
	})
	return ids
}

// Stats counts papers by search depth and edge type.
func (p *SyntheticPool) Stats() PoolStats {
	s := PoolStats{ByDepth: make(map[int]int), ByEdge: make(map[string]int)}
	for _, paper := range p.Papers {
		s.Papers++
		if paper.ID[0] == 'D' {
			s.Duplicates++
		}
		s.ByDepth[paper.Depth]++
		s.ByEdge[paper.EdgeType]++
	}
	return s
}

// SaveSyntheticPool writes the pool as a candidate file, creating parent
// directories as needed.
func SaveSyntheticPool(pool *SyntheticPool, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}
	data, err := json.MarshalIndent(pool, "", "  ")
	if err != nil {
		return fmt.Errorf("encode pool: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write pool: %w", err)
	}
	return nil
}
