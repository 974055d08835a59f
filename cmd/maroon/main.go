package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/fsnotify/fsnotify"
	"github.com/pterm/pterm"

	"github.com/piarun/maroon/pkg/differ"
	"github.com/piarun/maroon/pkg/driver"
	"github.com/piarun/maroon/pkg/ir"
	"github.com/piarun/maroon/pkg/runner"
	"github.com/piarun/maroon/pkg/schema"
)

const cliToolVersion = "maroon-cli 0.1.0-dev"

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	if len(args) == 0 {
		printUsage()
		return 1
	}
	switch args[0] {
	case "--help", "-h", "help":
		printUsage()
		return 0
	case "--version", "-V", "version":
		fmt.Fprintln(os.Stdout, cliToolVersion)
		return 0
	case "run":
		return runTests(args[1:])
	case "diff":
		return runDiff(args[1:])
	case "schema":
		return runSchema(args[1:])
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n", args[0])
		printUsage()
		return 1
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, `usage:
  maroon run [--manifest scenarios.yml] [--verbose] [ir.json ...]
      execute the registered test cases of each serialized program
  maroon diff --a one.json --b two.json [--verbose] [--watch]
      compare two serialized programs, ignoring line numbers
  maroon schema [--out path] [--rust]
      emit the IR schema description (Markdown, or Rust source with --rust)`)
}

func runTests(args []string) int {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	manifestPath := fs.String("manifest", "", "Suite manifest listing serialized programs to run.")
	verbose := fs.Bool("verbose", false, "Report source provenance and per-case details.")
	if err := fs.Parse(args); err != nil {
		return 1
	}

	paths := fs.Args()
	if *manifestPath != "" {
		manifest, err := driver.LoadManifest(*manifestPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%v\n", err)
			return 1
		}
		for _, s := range manifest.Scenarios {
			paths = append(paths, s.Path)
		}
	}
	if len(paths) == 0 {
		fmt.Fprintln(os.Stderr, "maroon run needs a manifest or at least one serialized program")
		return 1
	}

	failed := 0
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to read %s: %v\n", path, err)
			return 1
		}
		prog, err := ir.Decode(data)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to parse the IR JSON from %s: %v\n", path, err)
			return 1
		}
		if err := ir.Validate(prog); err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", path, err)
			return 1
		}
		if *verbose && prog.Src != "" {
			if commit, err := driver.Provenance(prog.Src); err == nil {
				pterm.Info.Printfln("%s: source %s @ %s", path, prog.Src, commit)
			}
		}
		results := runner.RunAll(prog)
		for _, r := range results {
			if r.Pass {
				pterm.Success.Printfln("%s: %s", path, r.Name)
				continue
			}
			failed++
			pterm.Error.Printfln("%s: %s", path, r.Name)
			if r.Detail != "" {
				fmt.Fprintln(os.Stderr, r.Detail)
			}
		}
	}
	if failed > 0 {
		return 1
	}
	return 0
}

func runDiff(args []string) int {
	fs := flag.NewFlagSet("diff", flag.ContinueOnError)
	aPath := fs.String("a", "", "One IR file as JSON.")
	bPath := fs.String("b", "", "Another IR file as JSON.")
	verbose := fs.Bool("verbose", false, "Actually dump post-line-nullified JSONs.")
	watch := fs.Bool("watch", false, "Keep watching both files and re-compare on change.")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if *aPath == "" || *bPath == "" {
		fmt.Fprintln(os.Stderr, "The `--a` and `--b` parameters are required.")
		return 1
	}

	code := compareOnce(*aPath, *bPath, *verbose)
	if !*watch {
		return code
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to start watching: %v\n", err)
		return 1
	}
	defer watcher.Close()
	for _, p := range []string{*aPath, *bPath} {
		if err := watcher.Add(p); err != nil {
			fmt.Fprintf(os.Stderr, "failed to watch %s: %v\n", p, err)
			return 1
		}
	}
	for {
		select {
		case ev, ok := <-watcher.Events:
			if !ok {
				return code
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				code = compareOnce(*aPath, *bPath, *verbose)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return code
			}
			fmt.Fprintf(os.Stderr, "watch error: %v\n", err)
		}
	}
}

func compareOnce(aPath, bPath string, verbose bool) int {
	a, err := os.ReadFile(aPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to read the IR JSON from `%s`.\n", aPath)
		return 1
	}
	b, err := os.ReadFile(bPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to read the IR JSON from `%s`.\n", bPath)
		return 1
	}
	cmp, err := differ.Compare(a, b)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return 1
	}
	if !cmp.Equal {
		fmt.Fprintln(os.Stdout, "The IR JSONs are not identical.")
		if verbose {
			fmt.Fprintf(os.Stdout, "\n%s\n%s\n\n", cmp.A, cmp.B)
			fmt.Fprintln(os.Stdout, cmp.PrettyDiff())
		}
		return 1
	}
	if verbose {
		pterm.Success.Println("The IR JSONs are identical.")
	}
	return 0
}

func runSchema(args []string) int {
	fs := flag.NewFlagSet("schema", flag.ContinueOnError)
	outPath := fs.String("out", "", "The output file; standard output when empty.")
	rust := fs.Bool("rust", false, "Emit Rust source instead of the Markdown description.")
	if err := fs.Parse(args); err != nil {
		return 1
	}

	model := schema.Walk()
	var rendered string
	if *rust {
		rendered = schema.Rust(model)
	} else {
		rendered = schema.Markdown(model)
	}
	if *outPath == "" {
		fmt.Fprint(os.Stdout, rendered)
		return 0
	}
	if err := os.WriteFile(*outPath, []byte(rendered), 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "failed to write %s: %v\n", *outPath, err)
		return 1
	}
	return 0
}
