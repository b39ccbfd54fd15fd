package codec

// sparseEncode/sparseDecode implement the SPARSE primitive: a byte-oriented
// run-length codec intended for data with long runs of a repeated byte
// (silence in raw audio, padding in bitmaps). Encoding alternates between
// literal runs and repeat runs, each prefixed with a control byte whose
// high bit selects which kind follows:
//
//	0x80 | (n-1): n literal bytes follow (n in 1..128)
//	0x00 | (n-1): a single byte follows, repeated n times (n in 1..128)
func sparseEncode(in []byte) ([]byte, error) {
	out := make([]byte, 0, len(in)/2+2)
	i := 0
	for i < len(in) {
		runLen := 1
		for i+runLen < len(in) && in[i+runLen] == in[i] && runLen < 128 {
			runLen++
		}
		if runLen >= 3 {
			out = append(out, byte(runLen-1), in[i])
			i += runLen
			continue
		}

		// Accumulate a literal run until a repeat run of >=3 would pay off.
		start := i
		i++
		for i < len(in) {
			j := i
			rl := 1
			for j+rl < len(in) && in[j+rl] == in[j] && rl < 128 {
				rl++
			}
			if rl >= 3 {
				break
			}
			i += rl
			if i-start >= 128 {
				break
			}
		}
		litLen := i - start
		for litLen > 0 {
			chunk := litLen
			if chunk > 128 {
				chunk = 128
			}
			out = append(out, 0x80|byte(chunk-1))
			out = append(out, in[start:start+chunk]...)
			start += chunk
			litLen -= chunk
		}
	}
	return out, nil
}

func sparseDecode(in []byte, uncompressedSize int) ([]byte, error) {
	out := make([]byte, 0, uncompressedSize)
	i := 0
	for i < len(in) {
		ctrl := in[i]
		i++
		n := int(ctrl&0x7F) + 1
		if ctrl&0x80 != 0 {
			if i+n > len(in) {
				return nil, errf("sparse-decode", "literal run overruns input")
			}
			out = append(out, in[i:i+n]...)
			i += n
		} else {
			if i >= len(in) {
				return nil, errf("sparse-decode", "repeat run missing value byte")
			}
			v := in[i]
			i++
			for k := 0; k < n; k++ {
				out = append(out, v)
			}
		}
		if len(out) > uncompressedSize {
			return nil, errf("sparse-decode", "decoded beyond declared uncompressed size")
		}
	}
	return out, nil
}
