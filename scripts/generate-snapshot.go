//go:build ignore

// Package main generates a synthetic bucket snapshot for load testing.
// Usage: go run scripts/generate-snapshot.go -entries 50000 -output testdata/bench/tree.json
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"time"
)

var (
	numEntries = flag.Int("entries", 50000, "Number of entries to generate")
	output     = flag.String("output", "testdata/bench/tree.json", "Output snapshot file")
	prefix     = flag.String("prefix", "合集系列/", "Path prefix for most entries")
	seed       = flag.Int64("seed", 42, "Random seed for reproducibility")
)

var (
	titles = []string{
		"Summer Pockets", "Fate stay night", "魔法使いの夜", "浮士德", "月姫",
		"Little Busters", "Clannad", "白色相簿2", "素晴らしき日々", "Steins Gate",
		"Ever17", "Muv-Luv", "千恋万花", "サクラノ詩", "星之终途",
	}
	tags     = []string{"完全版", "汉化", "v1.02", "DLC", "OST", "REFLECTION BLUE", "体验版", "steam"}
	suffixes = []string{".zip", ".7z", ".rar", ".iso"}
	folders  = []string{"galgame/", "音声/", "patch/"}
)

type record struct {
	Path       string `json:"file_path"`
	Size       int64  `json:"file_size"`
	UploadedAt int64  `json:"upload_timestamp"`
}

func main() {
	flag.Parse()
	r := rand.New(rand.NewSource(*seed))

	start := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC).UnixMilli()
	span := time.Since(time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)).Milliseconds()

	recs := make([]record, *numEntries)
	for i := range recs {
		name := titles[r.Intn(len(titles))]
		for range r.Intn(3) {
			name += " " + tags[r.Intn(len(tags))]
		}
		name += fmt.Sprintf(" %d%s", i, suffixes[r.Intn(len(suffixes))])

		// One entry in ten lives outside the trimmed prefix.
		p := *prefix + folders[r.Intn(len(folders))] + name
		if r.Intn(10) == 0 {
			p = "其他/" + name
		}
		recs[i] = record{
			Path:       strings.TrimSpace(p),
			Size:       r.Int63n(8 << 30),
			UploadedAt: start + r.Int63n(span),
		}
	}

	if err := os.MkdirAll(filepath.Dir(*output), 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "Error creating output directory: %v\n", err)
		os.Exit(1)
	}
	data, err := json.Marshal(recs)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error encoding snapshot: %v\n", err)
		os.Exit(1)
	}
	if err := os.WriteFile(*output, data, 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing snapshot: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Generated %d entries in %s\n", len(recs), *output)
}
