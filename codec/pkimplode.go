package codec

// pkimplodeEncode/pkimplodeDecode implement PKWARE_IMPLODE as an LZSS
// variant: a sliding window of up to 4096 bytes, matches of length 3..18,
// and one flag byte ahead of every 8 tokens marking each as a literal (1)
// or a (distance, length) back-reference (0). This satisfies the legacy
// implode-only sector path (no mask byte, used alone) and the general
// chained-mask path (PKImplode bit) identically.
//
// uncompressedSize of -1 means "unknown, decode until input exhausted" —
// used when this codec runs as one stage of a chained mask, where the
// overall pipeline checks the final length instead.

const (
	windowSize  = 4096
	minMatch    = 3
	maxMatch    = 18
)

func pkimplodeEncode(data []byte) ([]byte, error) {
	out := make([]byte, 0, len(data))
	var flagPos int
	var flags byte
	var flagBits int
	pending := make([]byte, 0, 8*3)

	flush := func() {
		out = append(out, flags)
		out = append(out, pending...)
		pending = pending[:0]
		flags = 0
		flagBits = 0
		flagPos = len(out)
		_ = flagPos
	}

	i := 0
	for i < len(data) {
		bestLen, bestDist := 0, 0
		start := i - windowSize
		if start < 0 {
			start = 0
		}
		maxLen := len(data) - i
		if maxLen > maxMatch {
			maxLen = maxMatch
		}
		for j := start; j < i; j++ {
			l := 0
			for l < maxLen && data[j+l] == data[i+l] {
				l++
			}
			if l >= minMatch && l > bestLen {
				bestLen = l
				bestDist = i - j
			}
		}

		if bestLen >= minMatch {
			flags = flags | (0 << uint(flagBits))
			pending = append(pending, byte(bestDist), byte(bestDist>>8), byte(bestLen))
			i += bestLen
		} else {
			flags |= 1 << uint(flagBits)
			pending = append(pending, data[i])
			i++
		}
		flagBits++
		if flagBits == 8 {
			flush()
		}
	}
	if flagBits > 0 {
		flush()
	}
	return out, nil
}

func pkimplodeDecode(in []byte, uncompressedSize int) ([]byte, error) {
	out := make([]byte, 0, len(in)*2)
	i := 0
	for i < len(in) {
		if uncompressedSize >= 0 && len(out) >= uncompressedSize {
			break
		}
		flags := in[i]
		i++
		for bit := 0; bit < 8; bit++ {
			if uncompressedSize >= 0 && len(out) >= uncompressedSize {
				break
			}
			if i >= len(in) {
				break
			}
			if flags&(1<<uint(bit)) != 0 {
				out = append(out, in[i])
				i++
			} else {
				if i+3 > len(in) {
					return nil, errf("pkimplode-decode", "truncated back-reference")
				}
				dist := int(in[i]) | int(in[i+1])<<8
				length := int(in[i+2])
				i += 3
				if dist <= 0 || dist > len(out) {
					return nil, errf("pkimplode-decode", "back-reference distance %d out of range", dist)
				}
				srcStart := len(out) - dist
				for k := 0; k < length; k++ {
					out = append(out, out[srcStart+k])
				}
			}
		}
	}
	if uncompressedSize >= 0 && len(out) != uncompressedSize {
		return nil, errf("pkimplode-decode", "decoded length %d does not match expected %d", len(out), uncompressedSize)
	}
	return out, nil
}
