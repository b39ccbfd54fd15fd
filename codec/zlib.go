package codec

import (
	"bytes"
	"io"

	"github.com/klauspost/compress/zlib"
)

func zlibEncode(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := zlib.NewWriter(&buf)
	if _, err := w.Write(data); err != nil {
		return nil, errf("zlib-encode", "%v", err)
	}
	if err := w.Close(); err != nil {
		return nil, errf("zlib-encode", "%v", err)
	}
	return buf.Bytes(), nil
}

func zlibDecode(data []byte) ([]byte, error) {
	r, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, errf("zlib-decode", "%v", err)
	}
	defer r.Close()
	out, err := io.ReadAll(r)
	if err != nil {
		return nil, errf("zlib-decode", "%v", err)
	}
	return out, nil
}
