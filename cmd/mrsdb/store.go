package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/standardbeagle/mrsdb/internal/config"
	"github.com/standardbeagle/mrsdb/internal/databank"
	"github.com/standardbeagle/mrsdb/internal/docstore"
	"github.com/standardbeagle/mrsdb/internal/indexer"
)

// storeRecord is one line of the newline-delimited JSON stream `store`
// reads from stdin — the external record-format parser's output,
// which spec.md §1 leaves out of scope; this is this binary's stand-in
// for it.
type storeRecord struct {
	Attributes  []docstore.Attribute `json:"attributes"`
	Text        string               `json:"text"`
	TokenFields map[string]string    `json:"token_fields"`
	Values      map[string]string    `json:"values"`
	MultiValues map[string][]string  `json:"multi_values"`
	Links       map[string][]string  `json:"links"`
}

func storeCommand(c *cli.Context) error {
	dir := c.String("dir")
	if dir == "" {
		return fmt.Errorf("store: --dir is required")
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

	var progress indexer.Progress = indexer.NoopProgress{}
	if c.Bool("verbose") {
		progress = verboseProgress{}
	}
	if err := db.StartBatch(progress); err != nil {
		return fmt.Errorf("start_batch: %w", err)
	}

	decoder := json.NewDecoder(bufio.NewReader(os.Stdin))
	count := 0
	for {
		var rec storeRecord
		if err := decoder.Decode(&rec); err != nil {
			if err == io.EOF {
				break
			}
			return fmt.Errorf("decoding record %d: %w", count+1, err)
		}
		docNr, err := db.StoreDocument(databank.RawDocument{
			Attributes:  rec.Attributes,
			Text:        []byte(rec.Text),
			TokenFields: rec.TokenFields,
			Values:      rec.Values,
			MultiValues: rec.MultiValues,
			Links:       rec.Links,
		})
		if err != nil {
			return fmt.Errorf("store: %w", err)
		}
		count++
		_ = docNr
	}

	if err := db.EndBatch(); err != nil {
		return fmt.Errorf("end_batch: %w", err)
	}
	if err := db.FinishBatch(); err != nil {
		return fmt.Errorf("finish_batch: %w", err)
	}

	fmt.Fprintf(c.App.Writer, "stored %d documents\n", count)
	return nil
}

type verboseProgress struct{}

func (verboseProgress) Phase(name string)      { fmt.Fprintf(os.Stderr, "phase: %s\n", name) }
func (verboseProgress) Document(docNr uint32)  { fmt.Fprintf(os.Stderr, "doc %d\n", docNr) }
