package docstore

import (
	"bufio"
	"bytes"
	"strings"

	mrserrors "github.com/standardbeagle/mrsdb/internal/errors"
)

// decodeDocument splits the inflated payload back into its attribute
// table, optional links block, and raw text (the inverse of
// encodePayload in docstore.go).
func decodeDocument(docNr uint32, data []byte, attrName func(id uint8) string) (*Document, bool, error) {
	doc := &Document{DocNr: docNr}
	off := 0
	for {
		if off >= len(data) {
			return nil, false, mrserrors.NewCorruptError("docstore.decodeDocument: truncated attribute table", nil)
		}
		id := data[off]
		off++
		if id == 0 {
			break
		}
		if off >= len(data) {
			return nil, false, mrserrors.NewCorruptError("docstore.decodeDocument: truncated attribute value", nil)
		}
		l := int(data[off])
		off++
		if off+l > len(data) {
			return nil, false, mrserrors.NewCorruptError("docstore.decodeDocument: attribute value overruns payload", nil)
		}
		doc.Attributes = append(doc.Attributes, Attribute{
			Name:  attrName(id),
			Value: string(data[off : off+l]),
		})
		off += l
	}

	rest := data[off:]
	if bytes.HasPrefix(rest, []byte("[[\n")) {
		end := bytes.Index(rest, []byte("]]\n"))
		if end < 0 {
			return nil, false, mrserrors.NewCorruptError("docstore.decodeDocument: unterminated links block", nil)
		}
		block := rest[len("[[\n"):end]
		doc.Links = make(map[string][]string)
		sc := bufio.NewScanner(bytes.NewReader(block))
		for sc.Scan() {
			line := sc.Text()
			if line == "" {
				continue
			}
			tab := strings.IndexByte(line, '\t')
			if tab < 0 {
				continue
			}
			db := line[:tab]
			ids := strings.Split(line[tab+1:], ";")
			doc.Links[db] = ids
		}
		rest = rest[end+len("]]\n"):]
	}
	doc.Text = rest
	return doc, true, nil
}
