package audio

import "math"

// DownmixMono averages interleaved multi-channel int16 PCM down to mono.
// Uses int32 arithmetic to prevent overflow and clamps to the int16 range.
// If channels <= 1 the input is returned unchanged.
func DownmixMono(pcm []byte, channels int) []byte {
	if channels <= 1 {
		return pcm
	}
	frames := len(pcm) / (2 * channels)
	out := make([]byte, frames*2)
	for i := range frames {
		var sum int32
		for ch := range channels {
			idx := (i*channels + ch) * 2
			sum += int32(int16(pcm[idx]) | int16(pcm[idx+1])<<8)
		}
		avg := sum / int32(channels)

		// Clamp to int16 range.
		if avg > 32767 {
			avg = 32767
		} else if avg < -32768 {
			avg = -32768
		}

		out[i*2] = byte(avg)
		out[i*2+1] = byte(avg >> 8)
	}
	return out
}

// ResampleMono16 resamples 16-bit mono PCM from srcRate to dstRate using
// linear interpolation. The input must be little-endian int16 samples. The
// output holds round(srcSamples * dstRate / srcRate) samples. If srcRate ==
// dstRate, the input is returned unchanged.
//
// The function is a pure function of its inputs: identical bytes at the same
// rates always produce identical output bytes.
func ResampleMono16(pcm []byte, srcRate, dstRate int) []byte {
	if srcRate <= 0 || dstRate <= 0 {
		return pcm
	}
	if srcRate == dstRate || len(pcm) < 2 {
		return pcm
	}
	srcSamples := len(pcm) / 2
	dstSamples := int(math.Round(float64(srcSamples) * float64(dstRate) / float64(srcRate)))
	if dstSamples == 0 {
		return nil
	}

	out := make([]byte, dstSamples*2)
	ratio := float64(srcRate) / float64(dstRate)

	for i := range dstSamples {
		srcPos := float64(i) * ratio
		srcIdx := int(srcPos)
		frac := srcPos - float64(srcIdx)

		if srcIdx >= srcSamples {
			srcIdx = srcSamples - 1
			frac = 0
		}

		s0 := int16(pcm[srcIdx*2]) | int16(pcm[srcIdx*2+1])<<8
		var s1 int16
		if srcIdx+1 < srcSamples {
			s1 = int16(pcm[(srcIdx+1)*2]) | int16(pcm[(srcIdx+1)*2+1])<<8
		} else {
			s1 = s0
		}

		interpolated := int16(float64(s0)*(1-frac) + float64(s1)*frac)
		out[i*2] = byte(interpolated)
		out[i*2+1] = byte(interpolated >> 8)
	}
	return out
}

// ToMono16k converts interleaved int16 PCM at an arbitrary capture format to
// the fixed recognizer format (mono 16 kHz): channels are averaged first, then
// the mono signal is resampled. Neither input nor output buffers are retained
// between calls.
func ToMono16k(pcm []byte, srcRate, channels int) []byte {
	mono := DownmixMono(pcm, channels)
	return ResampleMono16(mono, srcRate, RecognizerFormat.SampleRate)
}
