package main

import (
	"context"
	"flag"
	"fmt"
	"image/png"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	json "github.com/goccy/go-json"

	"github.com/draftware/dwgkit/geom"
	"github.com/draftware/dwgkit/graph"
	"github.com/draftware/dwgkit/notify"
	"github.com/draftware/dwgkit/object"
	"github.com/draftware/dwgkit/reader"
	"github.com/draftware/dwgkit/snapshot"
	"github.com/draftware/dwgkit/version"
	"github.com/draftware/dwgkit/writer"
)

type featureSelection struct {
	Header   bool
	Objects  bool
	Classes  bool
	Summary  bool
	Preview  bool
	Warnings bool
}

type options struct {
	drawingPath  string
	outDir       string
	convert      string
	convertPath  string
	snapshotPath string
	lenient      bool
	workers      int
	verbose      bool
	features     featureSelection
}

func main() {
	opts, err := parseFlags()
	if err != nil {
		fmt.Fprintf(os.Stderr, "dwgdump: %v\n", err)
		os.Exit(2)
	}
	if err := run(opts); err != nil {
		fmt.Fprintf(os.Stderr, "dwgdump: %v\n", err)
		os.Exit(1)
	}
}

func parseFlags() (options, error) {
	var opts options
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: go run ./cmd/dwgdump [flags] <drawing|snapshot>\n")
		flag.PrintDefaults()
	}
	header := flag.Bool("header", false, "Dump the header variables and root handles")
	objects := flag.Bool("objects", false, "Dump the object graph as JSON")
	classTable := flag.Bool("classes", false, "Dump the proxy class table")
	summary := flag.Bool("summary", false, "Dump the summary information section")
	previews := flag.Bool("preview", false, "Write preview thumbnails to disk")
	warnings := flag.Bool("warnings", false, "Dump the notification log")
	outDir := flag.String("out", "dwgdump_output", "Directory for binary artifacts (thumbnails)")
	convert := flag.String("convert", "", "Re-encode to the given revision magic, e.g. AC1018")
	convertOut := flag.String("o", "", "Output path for -convert (default <drawing>.<magic>.dwg)")
	snapshotPath := flag.String("snapshot", "", "Write a decoded-graph snapshot to this path")
	lenient := flag.Bool("lenient", false, "Degrade checksum mismatches to warnings")
	workers := flag.Int("workers", 0, "Concurrent page and object decoding (0 = sequential)")
	verbose := flag.Bool("v", false, "Trace pipeline stages to stderr")
	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		return options{}, fmt.Errorf("missing drawing path")
	}
	opts.drawingPath = flag.Arg(0)
	opts.outDir = *outDir
	opts.convert = *convert
	opts.convertPath = *convertOut
	opts.snapshotPath = *snapshotPath
	opts.lenient = *lenient
	opts.workers = *workers
	opts.verbose = *verbose
	opts.features = featureSelection{
		Header:   *header,
		Objects:  *objects,
		Classes:  *classTable,
		Summary:  *summary,
		Preview:  *previews,
		Warnings: *warnings,
	}
	if opts.features == (featureSelection{}) && opts.convert == "" && opts.snapshotPath == "" {
		opts.features = featureSelection{Header: true, Classes: true, Summary: true, Warnings: true}
	}
	return opts, nil
}

func run(opts options) error {
	data, err := os.ReadFile(opts.drawingPath)
	if err != nil {
		return fmt.Errorf("read drawing: %w", err)
	}
	var logger *slog.Logger
	if opts.verbose {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}

	doc, log, err := load(data, opts, logger)
	if err != nil {
		return err
	}

	if opts.features.Header {
		if err := emitSection("header", summarize(doc)); err != nil {
			return err
		}
	}
	if opts.features.Classes {
		if err := emitSection("classes", doc.Classes); err != nil {
			return err
		}
	}
	if opts.features.Summary {
		if err := emitSection("summary", doc.Summary); err != nil {
			return err
		}
	}
	if opts.features.Objects {
		fmt.Println("== objects ==")
		if err := doc.WriteJSON(os.Stdout); err != nil {
			return fmt.Errorf("dump objects: %w", err)
		}
		fmt.Println()
	}
	if opts.features.Preview {
		paths, err := writeThumbnails(filepath.Join(opts.outDir, "preview"), doc)
		if err != nil {
			return err
		}
		if err := emitSection("preview", paths); err != nil {
			return err
		}
	}
	if opts.features.Warnings {
		fmt.Println("== warnings ==")
		if err := log.WriteJSON(os.Stdout); err != nil {
			return fmt.Errorf("dump warnings: %w", err)
		}
		fmt.Println()
	}

	if opts.snapshotPath != "" {
		if err := writeSnapshot(opts.snapshotPath, doc); err != nil {
			return err
		}
	}
	if opts.convert != "" {
		if err := convertDrawing(opts, doc, logger); err != nil {
			return err
		}
	}
	return nil
}

// load decodes either a drawing file or a previously saved snapshot,
// dispatching on the leading magic.
func load(data []byte, opts options, logger *slog.Logger) (*graph.Document, *notify.Log, error) {
	if snapshot.Is(data) {
		doc, err := snapshot.Load(data)
		if err != nil {
			return nil, nil, fmt.Errorf("load snapshot: %w", err)
		}
		return doc, &notify.Log{}, nil
	}
	doc, log, err := reader.Decode(context.Background(), data, reader.Options{
		LenientChecksums: opts.lenient,
		Workers:          opts.workers,
		Logger:           logger,
	})
	if err != nil {
		return nil, log, fmt.Errorf("decode drawing: %w", err)
	}
	return doc, log, nil
}

type drawingSummary struct {
	Version     string            `json:"version"`
	Family      string            `json:"family"`
	Objects     int               `json:"objects"`
	HandleSeed  object.Handle     `json:"handleSeed"`
	Measurement int16             `json:"measurement"`
	ExtMin      geom.Point3       `json:"extMin"`
	ExtMax      geom.Point3       `json:"extMax"`
	Roots       map[string]string `json:"roots"`
}

func summarize(doc *graph.Document) drawingSummary {
	s := drawingSummary{
		Version:     string(doc.Version),
		Family:      doc.Version.Family().String(),
		Objects:     doc.Len(),
		HandleSeed:  doc.Header.HandleSeed,
		Measurement: doc.Header.Measurement,
		ExtMin:      doc.Header.ExtMin,
		ExtMax:      doc.Header.ExtMax,
		Roots:       make(map[string]string),
	}
	for _, root := range doc.Header.Roots() {
		if !root.Handle.IsNull() {
			s.Roots[root.Name] = root.Handle.String()
		}
	}
	return s
}

// writeThumbnails decodes each preview entry to pixels and writes it
// back out as PNG. Entries that do not decode keep their stored bytes
// under a .bin name.
func writeThumbnails(dir string, doc *graph.Document) ([]string, error) {
	if doc.Preview == nil || len(doc.Preview.Images) == 0 {
		return nil, nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create preview dir: %w", err)
	}
	paths := make([]string, 0, len(doc.Preview.Images))
	for i := range doc.Preview.Images {
		img, err := doc.Preview.Image(i)
		if err != nil {
			path := filepath.Join(dir, fmt.Sprintf("thumb_%d.bin", i+1))
			if err := os.WriteFile(path, doc.Preview.Images[i].Data, 0o644); err != nil {
				return nil, fmt.Errorf("write thumbnail %q: %w", path, err)
			}
			paths = append(paths, path)
			continue
		}
		path := filepath.Join(dir, fmt.Sprintf("thumb_%d.png", i+1))
		f, err := os.Create(path)
		if err != nil {
			return nil, fmt.Errorf("write thumbnail %q: %w", path, err)
		}
		if err := png.Encode(f, img); err != nil {
			f.Close()
			return nil, fmt.Errorf("encode thumbnail %q: %w", path, err)
		}
		if err := f.Close(); err != nil {
			return nil, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}

func writeSnapshot(path string, doc *graph.Document) error {
	data, err := snapshot.Save(doc)
	if err != nil {
		return fmt.Errorf("snapshot: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %q: %w", path, err)
	}
	fmt.Printf("wrote %s (%d bytes)\n", path, len(data))
	return nil
}

func convertDrawing(opts options, doc *graph.Document, logger *slog.Logger) error {
	target := version.Tag(strings.ToUpper(opts.convert))
	out, log, err := writer.Encode(context.Background(), doc, target, writer.Options{
		Workers: opts.workers,
		Logger:  logger,
	})
	if err != nil {
		return fmt.Errorf("encode %s: %w", target, err)
	}
	for _, e := range log.Warnings() {
		fmt.Fprintf(os.Stderr, "dwgdump: %s\n", e.Message)
	}
	path := opts.convertPath
	if path == "" {
		base := strings.TrimSuffix(opts.drawingPath, filepath.Ext(opts.drawingPath))
		path = fmt.Sprintf("%s.%s.dwg", base, strings.ToLower(string(target)))
	}
	if err := os.WriteFile(path, out, 0o644); err != nil {
		return fmt.Errorf("write %q: %w", path, err)
	}
	fmt.Printf("wrote %s (%d bytes)\n", path, len(out))
	return nil
}

func emitSection(name string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", name, err)
	}
	fmt.Printf("== %s ==\n%s\n\n", name, data)
	return nil
}
