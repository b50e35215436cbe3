package main

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/standardbeagle/mrsdb/internal/config"
	"github.com/standardbeagle/mrsdb/internal/databank"
)

func createCommand(c *cli.Context) error {
	dir := c.String("dir")
	if dir == "" {
		return fmt.Errorf("create: --dir is required")
	}
	schemaPath := c.String("schema")
	if schemaPath == "" {
		return fmt.Errorf("create: --schema is required")
	}

	fields, err := loadSchema(schemaPath)
	if err != nil {
		return err
	}

	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	db, err := databank.Create(dir, fields, cfg)
	if err != nil {
		return fmt.Errorf("create: %w", err)
	}
	defer db.Close()

	fmt.Fprintf(c.App.Writer, "created databank at %s with %d fields\n", dir, len(fields))
	return nil
}
