package indexer

// Progress is the side-band reporting collaborator of spec.md §4.H
// ("progress reporting is side-band, emitted to an external
// collaborator"). The batch indexer never blocks on it.
type Progress interface {
	Phase(name string)
	Document(docNr uint32)
}

// NoopProgress discards every report; New uses it when passed a nil
// Progress.
type NoopProgress struct{}

func (NoopProgress) Phase(string)    {}
func (NoopProgress) Document(uint32) {}
