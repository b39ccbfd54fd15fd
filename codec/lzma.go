package codec

import (
	"bytes"
	"io"

	"github.com/ulikunitz/xz/lzma"
)

func lzmaEncode(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := lzma.NewWriter(&buf)
	if err != nil {
		return nil, errf("lzma-encode", "%v", err)
	}
	if _, err := w.Write(data); err != nil {
		return nil, errf("lzma-encode", "%v", err)
	}
	if err := w.Close(); err != nil {
		return nil, errf("lzma-encode", "%v", err)
	}
	return buf.Bytes(), nil
}

func lzmaDecode(data []byte) ([]byte, error) {
	r, err := lzma.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, errf("lzma-decode", "%v", err)
	}
	out, err := io.ReadAll(r)
	if err != nil {
		return nil, errf("lzma-decode", "%v", err)
	}
	return out, nil
}
