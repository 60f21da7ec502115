// Sable CLI - runs encoded statement trees
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/chazu/sable/ast"
	"github.com/chazu/sable/lower"
	"github.com/chazu/sable/manifest"
	"github.com/chazu/sable/quote"
	"github.com/chazu/sable/runtime"
	"github.com/chazu/sable/store"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("sable", flag.ContinueOnError)
	fs.SetOutput(stderr)
	verbose := fs.Bool("v", false, "Verbose output")
	configDir := fs.String("C", ".", "Directory to search for sable.toml")
	hashOnly := fs.Bool("hash", false, "Print the content hash of each file instead of running it")
	recoverMode := fs.Bool("recover", false, "Translate in recover mode regardless of sable.toml")
	moduleObject := fs.Bool("module", false, "Evaluate each file to an object of its top-level declarations")
	storePath := fs.String("store", "", "Code store database (overrides [store] path)")

	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: sable [options] files...\n\n")
		fmt.Fprintf(stderr, "Runs CBOR-encoded statement trees. A file holds one node; a complex\n")
		fmt.Fprintf(stderr, "node at the top is run as a list of statements.\n\n")
		fmt.Fprintf(stderr, "Options:\n")
		fs.PrintDefaults()
		fmt.Fprintf(stderr, "\nExamples:\n")
		fmt.Fprintf(stderr, "  sable prog.cbor          # Run, print the result\n")
		fmt.Fprintf(stderr, "  sable -hash a.cbor b.cbor  # Compare code by content\n")
		fmt.Fprintf(stderr, "  sable -store code.db -hash a.cbor  # Hash and store\n")
	}
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return 2
	}

	m, err := manifest.FindAndLoad(*configDir)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	if m == nil {
		m = manifest.Default()
	}
	if *verbose && m.Log.Verbosity < 2 {
		m.Log.Verbosity = 2
	}
	m.ConfigureLogging()

	if *storePath == "" {
		*storePath = m.StorePath()
	}
	var code *store.Store
	if *storePath != "" {
		if code, err = store.Open(*storePath); err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
		defer code.Close()
	}

	if *hashOnly {
		for _, path := range fs.Args() {
			node, err := readNode(path)
			if err != nil {
				fmt.Fprintf(stderr, "Error: %v\n", err)
				return 1
			}
			key, err := store.Key(node)
			if code != nil {
				key, err = code.Put(node)
			}
			if err != nil {
				fmt.Fprintf(stderr, "Error: %s: %v\n", path, err)
				return 1
			}
			fmt.Fprintf(stdout, "%s  %s\n", key, path)
		}
		return 0
	}

	rt, err := m.NewRuntime()
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	st := rt.NewState(ctx)
	quote.Define(st, nil)
	if code != nil {
		store.Define(st, code)
	}

	opts := m.CompileOptions()
	opts.Contracts = rt.Contracts
	if *recoverMode {
		opts.ErrorMode = lower.Recover
	}
	if *moduleObject {
		opts.ModuleObject = true
	}

	var result runtime.Value = runtime.Void
	for _, path := range fs.Args() {
		node, err := readNode(path)
		if err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
		unit, err := lower.Translate(statements(node), opts)
		if err != nil {
			fmt.Fprintf(stderr, "Error: %s: %v\n", path, err)
			return 1
		}
		for _, e := range unit.Errors {
			fmt.Fprintf(stderr, "Warning: %s: %v\n", path, e)
		}
		if *verbose {
			fmt.Fprintf(stderr, "%s: unit %s, %d interned literals\n", path, unit.ID, unit.Pool.Len())
		}
		result, err = unit.Run(st)
		if err != nil {
			fmt.Fprintf(stderr, "Error: %s: %v\n", path, err)
			return 1
		}
		fmt.Fprintln(stdout, runtime.Format(result))
	}

	// Forks nobody awaited still run to completion before exit
	if pool, ok := rt.Executor.(*runtime.PoolExecutor); ok {
		pool.Wait()
	}

	// If the last file yields a small integer, use it as exit code
	if i, ok := result.(runtime.Integer); ok && i >= 0 && i < 126 {
		return int(i)
	}
	return 0
}

func readNode(path string) (ast.Node, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}
	node, err := ast.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("cannot decode %s: %w", path, err)
	}
	return node, nil
}

func statements(n ast.Node) []ast.Node {
	if c, ok := n.(*ast.Complex); ok {
		return c.Body
	}
	return []ast.Node{n}
}
