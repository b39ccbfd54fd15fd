package codec

import (
	"bytes"
	"io"

	"github.com/pierrec/lz4/v4"
)

// lz4Encode/lz4Decode back the LZ4 auxiliary codec slot: a ninth,
// non-wire-format compression option this module accepts in its own
// chain mask (bit 0x04, unused by the real format's eight codecs) for
// payloads the caller explicitly opts into via EncodeOptions.Method =
// LZ4Extra, e.g. per file through the Builder's AddFileOptions.Compression.
func lz4Encode(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := lz4.NewWriter(&buf)
	if _, err := w.Write(data); err != nil {
		return nil, errf("lz4-encode", "%v", err)
	}
	if err := w.Close(); err != nil {
		return nil, errf("lz4-encode", "%v", err)
	}
	return buf.Bytes(), nil
}

func lz4Decode(data []byte) ([]byte, error) {
	r := lz4.NewReader(bytes.NewReader(data))
	out, err := io.ReadAll(r)
	if err != nil {
		return nil, errf("lz4-decode", "%v", err)
	}
	return out, nil
}
