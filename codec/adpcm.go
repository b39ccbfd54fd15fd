package codec

import "encoding/binary"

// adpcmEncode/adpcmDecode implement the ADPCM_MONO/ADPCM_STEREO primitives:
// an IMA-ADPCM-family codec parameterized by a compression level in
// [1..5]. The stream is: a zero byte, a bit-shift byte (the compression
// level), one little-endian int16 initial sample per channel, then a
// sequence of per-channel-interleaved bytes. A data byte's bit 5 is the
// delta's sign and its low 5 bits are a magnitude code that both
// reconstruct the delta and — via the fixed 32-entry step table below —
// adjust that channel's step index. Two reserved control bytes, 0x80
// ("shrink step") and 0x81 ("grow step"), never appear as data bytes
// (those only ever occupy values 0..63) and let the encoder correct the
// running step index without producing a sample.

var adpcmStepSizeTable = [89]int{
	7, 8, 9, 10, 11, 12, 13, 14, 16, 17, 19, 21, 23, 25, 28, 31,
	34, 37, 41, 45, 50, 55, 60, 66, 73, 80, 88, 97, 107, 118, 130, 143,
	157, 173, 190, 209, 230, 253, 279, 307, 337, 371, 408, 449, 494, 544, 598, 658,
	724, 796, 876, 963, 1060, 1166, 1282, 1411, 1552, 1707, 1878, 2066, 2272, 2499, 2749, 3024,
	3327, 3660, 4026, 4428, 4871, 5358, 5894, 6484, 7132, 7845, 8630, 9493, 10442, 11487, 12635, 13899,
	15289, 16818, 18500, 20350, 22385, 24623, 27086, 29794, 32767,
}

var adpcmIndexTable = [32]int{
	-1, -1, -1, -1, -1, -1, -1, -1, 1, 2, 4, 6, 8, 10, 13, 16,
	-1, -1, -1, -1, -1, -1, -1, -1, 1, 2, 4, 6, 8, 10, 13, 16,
}

const (
	ctrlShrinkStep byte = 0x80
	ctrlGrowStep   byte = 0x81
)

func clampStepIndex(i int) int {
	if i < 0 {
		return 0
	}
	if i > 88 {
		return 88
	}
	return i
}

func clampInt16(v int) int16 {
	if v > 32767 {
		return 32767
	}
	if v < -32768 {
		return -32768
	}
	return int16(v)
}

type adpcmChannel struct {
	predicted int
	stepIndex int
}

func adpcmDecodeSample(ch *adpcmChannel, code byte) int16 {
	mag := int(code & 0x1F)
	sign := code&0x20 != 0

	stepSize := adpcmStepSizeTable[ch.stepIndex]
	diff := (stepSize * mag) >> 4
	if sign {
		ch.predicted -= diff
	} else {
		ch.predicted += diff
	}
	if ch.predicted > 32767 {
		ch.predicted = 32767
	} else if ch.predicted < -32768 {
		ch.predicted = -32768
	}

	ch.stepIndex = clampStepIndex(ch.stepIndex + adpcmIndexTable[mag])
	return int16(ch.predicted)
}

func adpcmEncodeSample(ch *adpcmChannel, sample int16, level int) byte {
	maxAdjust := level
	for attempt := 0; attempt < maxAdjust; attempt++ {
		stepSize := adpcmStepSizeTable[ch.stepIndex]
		diff := int(sample) - ch.predicted
		absDiff := diff
		sign := false
		if absDiff < 0 {
			absDiff = -absDiff
			sign = true
		}

		mag := (absDiff << 4) / stepSize
		if mag > 31 {
			if ch.stepIndex < 88 {
				ch.stepIndex++
				continue
			}
			mag = 31
		} else if mag == 0 && absDiff > stepSize>>5 && ch.stepIndex > 0 {
			ch.stepIndex--
			continue
		}

		code := byte(mag)
		if sign {
			code |= 0x20
		}
		return code
	}
	// Fall through: accept whatever the current step index yields.
	stepSize := adpcmStepSizeTable[ch.stepIndex]
	diff := int(sample) - ch.predicted
	sign := diff < 0
	if sign {
		diff = -diff
	}
	mag := (diff << 4) / stepSize
	if mag > 31 {
		mag = 31
	}
	code := byte(mag)
	if sign {
		code |= 0x20
	}
	return code
}

func adpcmEncode(data []byte, level int, channels int) ([]byte, error) {
	if level < 1 || level > 5 {
		return nil, errf("adpcm-encode", "compression level %d out of range [1,5]", level)
	}
	if channels != 1 && channels != 2 {
		return nil, errf("adpcm-encode", "unsupported channel count %d", channels)
	}
	if len(data)%2 != 0 {
		return nil, errf("adpcm-encode", "PCM input length %d is not a whole number of 16-bit samples", len(data))
	}
	samples := len(data) / 2 / channels

	out := make([]byte, 0, 2+channels*2+len(data))
	out = append(out, 0x00, byte(level))

	chans := make([]adpcmChannel, channels)
	for c := 0; c < channels; c++ {
		s := int16(binary.LittleEndian.Uint16(data[c*2:]))
		chans[c].predicted = int(s)
		out = binary.LittleEndian.AppendUint16(out, uint16(s))
	}

	for i := 1; i < samples; i++ {
		for c := 0; c < channels; c++ {
			off := (i*channels + c) * 2
			if off+2 > len(data) {
				break
			}
			s := int16(binary.LittleEndian.Uint16(data[off:]))

			before := chans[c].stepIndex
			code := adpcmEncodeSample(&chans[c], s, level)
			if chans[c].stepIndex > before {
				for k := before; k < chans[c].stepIndex; k++ {
					out = append(out, ctrlGrowStep)
				}
			} else if chans[c].stepIndex < before {
				for k := chans[c].stepIndex; k < before; k++ {
					out = append(out, ctrlShrinkStep)
				}
			}
			adpcmDecodeSample(&chans[c], code) // advance predictor in lockstep with decode
			out = append(out, code)
		}
	}
	return out, nil
}

func adpcmDecode(in []byte, channels int) ([]byte, error) {
	if len(in) < 2+channels*2 {
		return nil, errf("adpcm-decode", "truncated stream header")
	}
	if in[0] != 0x00 {
		return nil, errf("adpcm-decode", "bad reserved byte")
	}
	pos := 2

	chans := make([]adpcmChannel, channels)
	var out []byte
	for c := 0; c < channels; c++ {
		s := int16(binary.LittleEndian.Uint16(in[pos:]))
		chans[c].predicted = int(s)
		pos += 2
		out = binary.LittleEndian.AppendUint16(out, uint16(s))
	}

	c := 0
	for pos < len(in) {
		b := in[pos]
		pos++
		switch b {
		case ctrlShrinkStep:
			chans[c].stepIndex = clampStepIndex(chans[c].stepIndex - 1)
		case ctrlGrowStep:
			chans[c].stepIndex = clampStepIndex(chans[c].stepIndex + 1)
		default:
			s := adpcmDecodeSample(&chans[c], b)
			out = binary.LittleEndian.AppendUint16(out, uint16(s))
			c = (c + 1) % channels
		}
	}
	return out, nil
}
