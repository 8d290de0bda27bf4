package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/agbru/keffcalc/internal/eigen"
	"github.com/agbru/keffcalc/internal/linsolve"
	"github.com/agbru/keffcalc/internal/problem"
)

// GoldenData represents a single test case in the golden file
type GoldenData struct {
	Problem   string  `json:"problem"`
	K         float64 `json:"k"`
	Tolerance float64 `json:"tolerance"`
}

// toleranceFor keeps the larger problems affordable; the golden test
// compares at 1e-4 either way.
func toleranceFor(def problem.Definition) float64 {
	if def.Groups > 2 {
		return 1e-5
	}
	return 1e-6
}

func main() {
	outputDir := flag.String("out", "internal/problem/testdata", "Output directory for the golden file and decks")
	flag.Parse()

	if err := os.MkdirAll(filepath.Join(*outputDir, "decks"), 0755); err != nil {
		fmt.Fprintf(os.Stderr, "Error creating output directory: %v\n", err)
		os.Exit(1)
	}

	var data []GoldenData
	fmt.Println("Generating golden data...")

	for _, def := range problem.GlobalCatalog().All() {
		tol := toleranceFor(def)
		k, err := solve(def, tol)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error solving %s: %v\n", def.Name, err)
			os.Exit(1)
		}
		data = append(data, GoldenData{Problem: def.Name, K: k, Tolerance: tol})
		fmt.Printf("Generated %s: k = %.10f\n", def.Name, k)

		if err := writeDeck(filepath.Join(*outputDir, "decks", def.Name+".yaml"), def); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing deck: %v\n", err)
			os.Exit(1)
		}
	}

	filename := filepath.Join(*outputDir, "reference_golden.json")
	file, err := os.Create(filename)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating output file: %v\n", err)
		os.Exit(1)
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(data); err != nil {
		fmt.Fprintf(os.Stderr, "Error encoding JSON: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Successfully generated golden file at %s\n", filename)
}

// solve runs the problem with the direct solver, which is the reference
// for the iterative one.
func solve(def problem.Definition, tol float64) (float64, error) {
	inst, err := problem.Build(def, 0)
	if err != nil {
		return 0, err
	}
	engine, err := inst.NewEngine(linsolve.NewLU())
	if err != nil {
		return 0, err
	}
	if err := engine.Initialize(inst.Guess(1), 1); err != nil {
		return 0, err
	}
	res, err := engine.Run(context.Background(), eigen.RunOptions{Tolerance: tol})
	if err != nil {
		return 0, err
	}
	return res.K, nil
}

func writeDeck(path string, def problem.Definition) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := problem.WriteDeck(f, def); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
