package main

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/standardbeagle/mrsdb/internal/config"
	"github.com/standardbeagle/mrsdb/internal/databank"
	"github.com/standardbeagle/mrsdb/internal/query"
)

func queryCommand(c *cli.Context) error {
	dir := c.String("dir")
	if dir == "" {
		return fmt.Errorf("query: --dir is required")
	}
	if c.NArg() < 1 {
		return fmt.Errorf("usage: mrsdb query --dir <path> <query>")
	}
	raw := c.Args().First()

	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	db, err := databank.Open(dir, cfg)
	if err != nil {
		return fmt.Errorf("opening databank %s: %w", dir, err)
	}
	defer db.Close()

	if c.Bool("boolean") {
		bm, err := db.Boolean(raw)
		if err != nil {
			return fmt.Errorf("boolean query: %w", err)
		}
		for _, docNr := range bm.Docs() {
			fmt.Fprintf(c.App.Writer, "%d\n", docNr)
		}
		return nil
	}

	opts := query.RankedOptions{
		Limit:       c.Int("limit"),
		AllRequired: c.Bool("all-required"),
	}
	hits, err := db.Query(raw, opts)
	if err != nil {
		return fmt.Errorf("query: %w", err)
	}

	for _, h := range hits {
		doc, ok, err := db.Fetch(h.Doc)
		if err != nil {
			return fmt.Errorf("fetch %d: %w", h.Doc, err)
		}
		if !ok {
			fmt.Fprintf(c.App.Writer, "%d\t%.4f\t<missing>\n", h.Doc, h.Rank)
			continue
		}
		fmt.Fprintf(c.App.Writer, "%d\t%.4f\t%s\n", h.Doc, h.Rank, firstLine(doc.Text))
	}
	return nil
}

func firstLine(text []byte) string {
	for i, b := range text {
		if b == '\n' {
			return string(text[:i])
		}
	}
	if len(text) > 120 {
		return string(text[:120])
	}
	return string(text)
}

func completeCommand(c *cli.Context) error {
	dir := c.String("dir")
	if dir == "" {
		return fmt.Errorf("complete: --dir is required")
	}
	if c.NArg() < 1 {
		return fmt.Errorf("usage: mrsdb complete --dir <path> <prefix>")
	}

	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	db, err := databank.Open(dir, cfg)
	if err != nil {
		return fmt.Errorf("opening databank %s: %w", dir, err)
	}
	defer db.Close()

	for _, comp := range db.Complete([]byte(c.Args().First())) {
		fmt.Fprintf(c.App.Writer, "%s\t%d\n", comp.Term, comp.DF)
	}
	return nil
}
