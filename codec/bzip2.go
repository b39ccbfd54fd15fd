package codec

import (
	"bytes"
	"compress/bzip2"
	"io"
)

// bzip2Decode wraps the standard library's bzip2 reader. The standard
// library ships no bzip2 writer, and no example in this project's corpus
// vendors one; bzip2Encode therefore refuses rather than fabricate a
// hand-rolled encoder (see DESIGN.md).
func bzip2Decode(data []byte) ([]byte, error) {
	r := bzip2.NewReader(bytes.NewReader(data))
	out, err := io.ReadAll(r)
	if err != nil {
		return nil, errf("bzip2-decode", "%v", err)
	}
	return out, nil
}

func bzip2Encode(data []byte) ([]byte, error) {
	return nil, errf("bzip2-encode", "encoding is not supported; no bzip2 writer is available")
}
