package databank

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/standardbeagle/mrsdb/internal/config"
	"github.com/standardbeagle/mrsdb/internal/docstore"
	"github.com/standardbeagle/mrsdb/internal/index"
	"github.com/standardbeagle/mrsdb/internal/indexer"
	"github.com/standardbeagle/mrsdb/internal/query"
)

func testFields() []FieldDef {
	return []FieldDef{
		{Name: "title", Description: "title text", IndexKind: index.KindCharMulti, Collect: indexer.FieldToken},
		{Name: "year", Description: "publication year", IndexKind: index.KindNumber, Collect: indexer.FieldValueUnique},
		{Name: "xref", Description: "", IndexKind: index.KindLink, Collect: indexer.FieldLink},
	}
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Storage.PageSize = 4096
	cfg.Cache.CapacityPages = 256
	cfg.RunMerge.ScratchDir = t.TempDir()
	return cfg
}

func mustIngest(t *testing.T, db *Databank) {
	t.Helper()
	require.NoError(t, db.StartBatch(nil))

	_, err := db.StoreDocument(RawDocument{
		Attributes:  []docstore.Attribute{{Name: "accession", Value: "P00001"}},
		Text:        []byte("kinase activity and domain structure"),
		TokenFields: map[string]string{"title": "Kinase activity in signal transduction"},
		Values:      map[string]string{"year": "2001"},
		Links:       map[string][]string{"xref": {"p12345"}},
	})
	require.NoError(t, err)

	_, err = db.StoreDocument(RawDocument{
		Attributes:  []docstore.Attribute{{Name: "accession", Value: "P00002"}},
		Text:        []byte("kinase domain binding site"),
		TokenFields: map[string]string{"title": "Domain architecture of kinase family"},
		Values:      map[string]string{"year": "2005"},
		Links:       map[string][]string{"xref": {"p99999"}},
	})
	require.NoError(t, err)

	require.NoError(t, db.EndBatch())
	require.NoError(t, db.FinishBatch())
}

func TestCreateIngestQueryFetchRoundTrip(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "bank")
	cfg := testConfig(t)

	db, err := Create(dir, testFields(), cfg)
	require.NoError(t, err)
	mustIngest(t, db)

	info := db.GetInfo()
	require.Equal(t, uint32(2), info.DocCount)
	require.Len(t, info.Fields, 3)

	doc, ok, err := db.Fetch(1)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "kinase activity and domain structure", string(doc.Text))
	require.Equal(t, []docstore.Attribute{{Name: "accession", Value: "P00001"}}, doc.Attributes)

	hits, err := db.Query("kinase", query.RankedOptions{Limit: 10})
	require.NoError(t, err)
	require.Len(t, hits, 2)

	bm, err := db.Boolean("title:kinase")
	require.NoError(t, err)
	require.ElementsMatch(t, []uint32{1, 2}, bm.Docs())

	require.NoError(t, db.Close())

	reopened, err := Open(dir, cfg)
	require.NoError(t, err)
	defer reopened.Close()

	reInfo := reopened.GetInfo()
	require.Equal(t, info.UUID, reInfo.UUID)
	require.Equal(t, uint32(2), reInfo.DocCount)

	reHits, err := reopened.Query("kinase", query.RankedOptions{Limit: 10})
	require.NoError(t, err)
	require.Len(t, reHits, 2)

	// "kinase" occurs in only two documents, below the dictionary's
	// minimum count of 4, so no completion survives the build filter.
	completions := reopened.Complete([]byte("kin"))
	require.Empty(t, completions)
}

func TestVacuumAndRecomputeWeights(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "bank")
	cfg := testConfig(t)

	db, err := Create(dir, testFields(), cfg)
	require.NoError(t, err)
	defer db.Close()
	mustIngest(t, db)

	require.NoError(t, db.Vacuum())

	before := append([]float64(nil), db.docWeights...)
	require.NoError(t, db.RecomputeWeights())
	require.Equal(t, before, db.docWeights)
}

func TestLinkFieldRoundTripsThroughEncodedName(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "bank")
	cfg := testConfig(t)

	fields := testFields()
	fields[2].Name = "other/databank"

	db, err := Create(dir, fields, cfg)
	require.NoError(t, err)
	mustIngest(t, db)
	require.NoError(t, db.Close())

	reopened, err := Open(dir, cfg)
	require.NoError(t, err)
	defer reopened.Close()

	_, ok := reopened.Index("other/databank")
	require.True(t, ok)
}
