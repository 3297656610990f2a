// Command x86trace runs one or more debug-JSON instruction streams
// through the interpreter and writes the resulting snapshot sequence(s)
// to stdout or a file.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"

	"golang.org/x/sync/errgroup"

	"github.com/otley-labs/x86trace/vm"
)

func main() {
	outFile := flag.String("o", "", "Output file (default: stdout)")
	maxSteps := flag.Int("max-steps", vm.DefaultMaxSteps, "Maximum instructions to execute per program")
	indent := flag.Bool("pretty", false, "Pretty-print the output JSON")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: x86trace [options] program.json [program2.json ...]\n\nRuns one or more debug-JSON instruction streams and emits their snapshot traces.\n\nOptions:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  x86trace program.json\n")
		fmt.Fprintf(os.Stderr, "  x86trace -pretty -o trace.json program.json\n")
		fmt.Fprintf(os.Stderr, "  x86trace program_a.json program_b.json\n")
	}
	flag.Parse()

	if flag.NArg() < 1 {
		flag.Usage()
		os.Exit(1)
	}

	paths := flag.Args()
	results := make([][]vm.Snapshot, len(paths))

	// Each path gets a fresh CPUState inside vm.Run, so nothing is shared
	// across goroutines; errgroup runs one goroutine per path (no limit),
	// waits for all of them, and reports the first error.
	var g errgroup.Group
	for i, path := range paths {
		i, path := i, path
		g.Go(func() error {
			prog, err := loadProgram(path)
			if err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			results[i] = vm.Run(prog, *maxSteps)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		log.Fatalf("x86trace: %v", err)
	}

	var out interface{} = results
	if len(results) == 1 {
		out = results[0]
	}

	var data []byte
	var err error
	if *indent {
		data, err = json.MarshalIndent(out, "", "  ")
	} else {
		data, err = json.Marshal(out)
	}
	if err != nil {
		log.Fatalf("x86trace: encoding snapshots: %v", err)
	}
	data = append(data, '\n')

	if *outFile == "" {
		os.Stdout.Write(data)
		return
	}
	if err := os.WriteFile(*outFile, data, 0644); err != nil {
		log.Fatalf("x86trace: writing %s: %v", *outFile, err)
	}
}

func loadProgram(path string) (vm.Program, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return vm.Program{}, err
	}
	var prog vm.Program
	if err := json.Unmarshal(data, &prog); err != nil {
		return vm.Program{}, fmt.Errorf("parsing %s: %w", path, err)
	}
	return prog, nil
}
