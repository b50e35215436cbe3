package main

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"

	"github.com/standardbeagle/mrsdb/internal/databank"
	"github.com/standardbeagle/mrsdb/internal/index"
	"github.com/standardbeagle/mrsdb/internal/indexer"
)

// schemaFile is the on-disk shape of a databank's field schema, parsed
// from the file named by `create --schema`. Each entry names a field
// by its storage kind rather than an internal/index.Kind constant, so
// schema files stay readable without this module's own vocabulary.
type schemaFile struct {
	Fields []schemaField `toml:"field"`
}

type schemaField struct {
	Name        string `toml:"name"`
	Description string `toml:"description"`
	Kind        string `toml:"kind"`
}

var fieldKinds = map[string]struct {
	indexKind index.Kind
	collect   indexer.FieldKind
}{
	"token":          {index.KindCharMulti, indexer.FieldToken},
	"token-excluded": {index.KindCharMulti, indexer.FieldTokenExcluded},
	"sequence":       {index.KindCharMultiIDL, indexer.FieldToken},
	"number":         {index.KindNumber, indexer.FieldValueUnique},
	"float":          {index.KindFloat, indexer.FieldValueUnique},
	"string":         {index.KindChar, indexer.FieldValueUnique},
	"number-multi":   {index.KindNumberMulti, indexer.FieldValueMulti},
	"float-multi":    {index.KindFloatMulti, indexer.FieldValueMulti},
	"link":           {index.KindLink, indexer.FieldLink},
}

func loadSchema(path string) ([]databank.FieldDef, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading schema %s: %w", path, err)
	}
	var raw schemaFile
	if err := toml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing schema %s: %w", path, err)
	}

	defs := make([]databank.FieldDef, 0, len(raw.Fields))
	for _, f := range raw.Fields {
		kind, ok := fieldKinds[f.Kind]
		if !ok {
			return nil, fmt.Errorf("schema %s: field %q has unknown kind %q", path, f.Name, f.Kind)
		}
		defs = append(defs, databank.FieldDef{
			Name:        f.Name,
			Description: f.Description,
			IndexKind:   kind.indexKind,
			Collect:     kind.collect,
		})
	}
	return defs, nil
}
