// Package main is the character-database tool: it compiles JSON and TOML
// table sources into the SQLite form the runtime resolver can serve, and
// exports compiled tables back out as editable JSON.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"
	"gopkg.in/yaml.v3"

	"github.com/textmesh/mtext/chardb"
)

// Version information (set via ldflags during build).
var (
	version = "dev"
	commit  = "unknown"
)

// manifest lists the sources of one database build.
type manifest struct {
	Output  string   `yaml:"output"`
	Sources []string `yaml:"sources"`
}

func main() {
	os.Exit(run())
}

func run() int {
	if len(os.Args) < 2 {
		usage()
		return 2
	}
	commonlog.Configure(1, nil)

	switch os.Args[1] {
	case "compile":
		return runCompile(os.Args[2:])
	case "export":
		return runExport(os.Args[2:])
	case "version":
		fmt.Printf("mtextdb %s (%s)\n", version, commit)
		return 0
	default:
		usage()
		return 2
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage:
  mtextdb compile -manifest <manifest.yaml>
  mtextdb export -db <chartabs.db> -key <table> [-out <file.json>]
  mtextdb version`)
}

func runCompile(args []string) int {
	fs := flag.NewFlagSet("compile", flag.ExitOnError)
	manifestPath := fs.String("manifest", "manifest.yaml", "Path to the build manifest")
	fs.Parse(args)

	data, err := os.ReadFile(*manifestPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: reading manifest: %v\n", err)
		return 1
	}
	var m manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		fmt.Fprintf(os.Stderr, "Error: parsing manifest: %v\n", err)
		return 1
	}
	if len(m.Sources) == 0 {
		fmt.Fprintln(os.Stderr, "Error: manifest lists no sources")
		return 1
	}
	if m.Output == "" {
		m.Output = chardb.CompiledName
	}

	// Source and output paths are relative to the manifest.
	base := filepath.Dir(*manifestPath)
	sources := make([]*chardb.Source, 0, len(m.Sources))
	for _, name := range m.Sources {
		src, err := chardb.ParseSourceFile(filepath.Join(base, name))
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %s: %v\n", name, err)
			return 1
		}
		sources = append(sources, src)
	}
	out := m.Output
	if !filepath.IsAbs(out) {
		out = filepath.Join(base, out)
	}
	if err := chardb.Compile(out, sources); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	fmt.Printf("compiled %d tables into %s\n", len(sources), out)
	return 0
}

func runExport(args []string) int {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	dbPath := fs.String("db", chardb.CompiledName, "Path to the compiled database")
	key := fs.String("key", "", "Table key to export")
	outPath := fs.String("out", "", "Output file (default <key>.json beside the database)")
	fs.Parse(args)

	if *key == "" {
		fmt.Fprintln(os.Stderr, "Error: -key is required")
		return 2
	}
	src, err := chardb.ReadCompiled(*dbPath, *key)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	data, err := chardb.ExportJSON(src)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	out := *outPath
	if out == "" {
		out = filepath.Join(filepath.Dir(*dbPath), *key+".json")
	}
	if err := os.WriteFile(out, data, 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	fmt.Printf("exported %s to %s\n", *key, out)
	return 0
}
