// Copyright (c) 2025 suprsokr
// SPDX-License-Identifier: MIT

package mpq

import (
	"encoding/binary"
	"fmt"
)

// IMA-style ADPCM used for mono and stereo wave files.

const adpcmInitialStepIndex = 0x2C

var adpcmNextStep = [32]int{
	-1, 0, -1, 4, -1, 2, -1, 6, -1, 1, -1, 5, -1, 3, -1, 7,
	-1, 1, -1, 5, -1, 3, -1, 7, -1, 2, -1, 4, -1, 6, -1, 8,
}

var adpcmStepSize = [89]int{
	7, 8, 9, 10, 11, 12, 13, 14, 16, 17, 19, 21, 23, 25, 28, 31,
	34, 37, 41, 45, 50, 55, 60, 66, 73, 80, 88, 97, 107, 118, 130, 143,
	157, 173, 190, 209, 230, 253, 279, 307, 337, 371, 408, 449, 494, 544, 598, 658,
	724, 796, 876, 963, 1060, 1166, 1282, 1411, 1552, 1707, 1878, 2066, 2272, 2499, 2749, 3024,
	3327, 3660, 4026, 4428, 4871, 5358, 5894, 6484, 7132, 7845, 8630, 9493, 10442, 11487, 12635, 13899,
	15289, 16818, 18500, 20350, 22385, 24623, 27086, 29794, 32767,
}

// decompressADPCM decodes channels interleaved 16-bit channels into at most size bytes.
func decompressADPCM(data []byte, size int, channels int) ([]byte, error) {
	if len(data) < 2+2*channels {
		return nil, fmt.Errorf("%w: adpcm stream of %d bytes is too short", ErrCorruptData, len(data))
	}

	out := make([]byte, 0, size)
	put := func(sample int) bool {
		if len(out)+2 > size {
			return false
		}
		out = binary.LittleEndian.AppendUint16(out, uint16(int16(sample)))
		return true
	}

	// data[0] is always zero, data[1] is the bit shift.
	shift := uint(data[1])
	pos := 2

	var predicted [2]int
	stepIndex := [2]int{adpcmInitialStepIndex, adpcmInitialStepIndex}
	for ch := 0; ch < channels; ch++ {
		predicted[ch] = int(int16(binary.LittleEndian.Uint16(data[pos:])))
		pos += 2
		if !put(predicted[ch]) {
			return out, nil
		}
	}

	ch := channels - 1
	for ; pos < len(data); pos++ {
		encoded := data[pos]
		ch = (ch + 1) % channels

		if encoded&0x80 != 0 {
			switch encoded & 0x7F {
			case 0:
				if stepIndex[ch] != 0 {
					stepIndex[ch]--
				}
				if !put(predicted[ch]) {
					return out, nil
				}
			case 1:
				stepIndex[ch] += 8
				if stepIndex[ch] > len(adpcmStepSize)-1 {
					stepIndex[ch] = len(adpcmStepSize) - 1
				}
				ch = (ch + 1) % channels
			case 2:
				ch = (ch + 1) % channels
			default:
				stepIndex[ch] -= 8
				if stepIndex[ch] < 0 {
					stepIndex[ch] = 0
				}
				ch = (ch + 1) % channels
			}
			continue
		}

		step := adpcmStepSize[stepIndex[ch]]
		diff := step >> shift
		for bit := uint(0); bit < 6; bit++ {
			if encoded&(1<<bit) != 0 {
				diff += step >> bit
			}
		}

		if encoded&0x40 != 0 {
			predicted[ch] -= diff
			if predicted[ch] < -32768 {
				predicted[ch] = -32768
			}
		} else {
			predicted[ch] += diff
			if predicted[ch] > 32767 {
				predicted[ch] = 32767
			}
		}
		if !put(predicted[ch]) {
			return out, nil
		}

		stepIndex[ch] += adpcmNextStep[encoded&0x1F]
		if stepIndex[ch] < 0 {
			stepIndex[ch] = 0
		} else if stepIndex[ch] > len(adpcmStepSize)-1 {
			stepIndex[ch] = len(adpcmStepSize) - 1
		}
	}

	return out, nil
}
