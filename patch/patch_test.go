package patch

import (
	"crypto/md5"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildHeaderAndMD5Block(sizeBefore, sizeAfter uint32, before, after [16]byte) []byte {
	var buf []byte
	put32 := func(v uint32) {
		b := make([]byte, 4)
		binary.LittleEndian.PutUint32(b, v)
		buf = append(buf, b...)
	}
	put32(magicPTCH)
	put32(16) // header size
	put32(sizeBefore)
	put32(sizeAfter)
	put32(magicMD5)
	put32(40)
	buf = append(buf, before[:]...)
	buf = append(buf, after[:]...)
	return buf
}

// TestApplyCopy mirrors the literal COPY scenario: 100 zero bytes
// replaced wholesale with "Hello, Warcraft!".
func TestApplyCopy(t *testing.T) {
	base := make([]byte, 100)
	result := []byte("Hello, Warcraft!")

	before := md5.Sum(base)
	after := md5.Sum(result)

	raw := buildHeaderAndMD5Block(100, uint32(len(result)), before, after)
	put32 := func(v uint32) {
		b := make([]byte, 4)
		binary.LittleEndian.PutUint32(b, v)
		raw = append(raw, b...)
	}
	put32(uint32(0x4D524658)) // XFRM
	put32(uint32(4 + len(result)))
	put32(uint32(TransformCOPY))
	raw = append(raw, result...)

	p, err := Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, TransformCOPY, p.Transform)

	got, err := Apply(p, base)
	require.NoError(t, err)
	assert.Equal(t, result, got)
}

func rleEncodeLiteral(b []byte) []byte {
	var out []byte
	for len(b) > 0 {
		n := len(b)
		if n > 128 {
			n = 128
		}
		out = append(out, 0x80|byte(n-1))
		out = append(out, b[:n]...)
		b = b[n:]
	}
	return out
}

// TestApplyBSD0WrapAround mirrors the literal bsdiff40 wrap-around
// scenario: base [0xFF], one ctrl entry (add=1, mov=0, old_move=0), data
// byte 0x02, expect new [0x01] (0xFF + 0x02 mod 256).
func TestApplyBSD0WrapAround(t *testing.T) {
	base := []byte{0xFF}

	var ctrl []byte
	put32le := func(dst *[]byte, v uint32) {
		b := make([]byte, 4)
		binary.LittleEndian.PutUint32(b, v)
		*dst = append(*dst, b...)
	}
	put32le(&ctrl, 1) // add_len
	put32le(&ctrl, 0) // mov_len
	put32le(&ctrl, 0) // old_move_raw

	data := []byte{0x02}
	var extra []byte

	var body []byte
	body = append(body, []byte(bsdiffMagic)...)
	put64le := func(dst *[]byte, v uint64) {
		b := make([]byte, 8)
		binary.LittleEndian.PutUint64(b, v)
		*dst = append(*dst, b...)
	}
	put64le(&body, uint64(len(ctrl)))
	put64le(&body, uint64(len(data)))
	put64le(&body, 1) // new_file_size
	body = append(body, ctrl...)
	body = append(body, data...)
	body = append(body, extra...)

	rle := rleEncodeLiteral(body)

	var payload []byte
	sizeHdr := make([]byte, 4)
	binary.LittleEndian.PutUint32(sizeHdr, uint32(len(body)))
	payload = append(payload, sizeHdr...)
	payload = append(payload, rle...)

	result := []byte{0x01}
	before := md5.Sum(base)
	after := md5.Sum(result)

	raw := buildHeaderAndMD5Block(uint32(len(base)), uint32(len(result)), before, after)
	put32 := func(v uint32) {
		b := make([]byte, 4)
		binary.LittleEndian.PutUint32(b, v)
		raw = append(raw, b...)
	}
	put32(uint32(0x4D524658)) // XFRM
	put32(uint32(4 + len(payload)))
	put32(uint32(TransformBSD0))
	raw = append(raw, payload...)

	p, err := Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, TransformBSD0, p.Transform)

	got, err := Apply(p, base)
	require.NoError(t, err)
	assert.Equal(t, result, got)
}

func TestApplyRejectsBadBaseMD5(t *testing.T) {
	base := []byte("wrong base")
	result := []byte("result")
	before := md5.Sum([]byte("expected base"))
	after := md5.Sum(result)

	raw := buildHeaderAndMD5Block(uint32(len(base)), uint32(len(result)), before, after)
	put32 := func(v uint32) {
		b := make([]byte, 4)
		binary.LittleEndian.PutUint32(b, v)
		raw = append(raw, b...)
	}
	put32(uint32(0x4D524658))
	put32(uint32(4 + len(result)))
	put32(uint32(TransformCOPY))
	raw = append(raw, result...)

	p, err := Parse(raw)
	require.NoError(t, err)

	_, err = Apply(p, base)
	require.Error(t, err)
}

func TestRLEDecompressZeroRuns(t *testing.T) {
	in := []byte{3, 0x80, 'a'}
	out, err := rleDecompress(in, 4)
	require.NoError(t, err)
	assert.Equal(t, []byte{0, 0, 0, 'a'}, out)
}
