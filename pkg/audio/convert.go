// Package audio converts little-endian int16 PCM between formats. The
// recognizer session expects a fixed sample rate and channel count; the
// microphone delivers whatever the device produces. A [Converter] bridges
// the two inside the recognition pump.
package audio

import (
	"log/slog"
	"sync"
)

// Format describes the sample rate and channel count of a PCM stream.
type Format struct {
	SampleRate int
	Channels   int
}

// Converter converts PCM buffers from a fixed source format to a fixed
// target format. The zero value is not usable; set both formats.
// Create one per stream; not safe for concurrent use.
type Converter struct {
	Source Format
	Target Format

	warnedMismatch sync.Once
	warnedCorrupt  sync.Once
}

// Convert returns pcm converted from the source to the target format.
// When the formats already match, pcm is returned unchanged with no
// allocation. Buffers with an odd byte count cannot be int16 samples and
// are dropped (nil return); the first drop logs a warning.
func (c *Converter) Convert(pcm []byte) []byte {
	if len(pcm)%2 != 0 {
		c.warnedCorrupt.Do(func() {
			slog.Warn("audio: odd byte count in PCM buffer, dropping",
				"bytes", len(pcm),
				"sampleRate", c.Source.SampleRate,
				"channels", c.Source.Channels,
			)
		})
		return nil
	}
	if c.Source == c.Target {
		return pcm
	}

	c.warnedMismatch.Do(func() {
		slog.Info("audio: converting capture format",
			"from", c.Source, "to", c.Target)
	})

	rate := c.Source.SampleRate
	channels := c.Source.Channels

	// Resample before any channel change so stereo input headed for a
	// mono target is not resampled twice per sample pair.
	if rate != c.Target.SampleRate {
		if channels == 1 {
			pcm = ResampleMono16(pcm, rate, c.Target.SampleRate)
		} else {
			pcm = ResampleStereo16(pcm, rate, c.Target.SampleRate)
		}
	}
	if channels != c.Target.Channels {
		switch {
		case channels == 1 && c.Target.Channels == 2:
			pcm = MonoToStereo(pcm)
		case channels == 2 && c.Target.Channels == 1:
			pcm = StereoToMono(pcm)
		}
	}
	return pcm
}

// MonoToStereo duplicates each mono sample into an L+R pair.
func MonoToStereo(pcm []byte) []byte {
	out := make([]byte, (len(pcm)/2)*4)
	for i := 0; i+1 < len(pcm); i += 2 {
		lo, hi := pcm[i], pcm[i+1]
		j := i * 2
		out[j], out[j+1] = lo, hi
		out[j+2], out[j+3] = lo, hi
	}
	return out
}

// StereoToMono averages each L+R pair into a single sample, clamped to the
// int16 range.
func StereoToMono(pcm []byte) []byte {
	pairs := len(pcm) / 4
	out := make([]byte, pairs*2)
	for i := range pairs {
		l := int32(sampleAt(pcm, i*2))
		r := int32(sampleAt(pcm, i*2+1))
		avg := (l + r) / 2
		if avg > 32767 {
			avg = 32767
		} else if avg < -32768 {
			avg = -32768
		}
		putSample(out, i, int16(avg))
	}
	return out
}

// ResampleMono16 resamples mono PCM from srcRate to dstRate using linear
// interpolation. Returns the input unchanged when no work is needed or the
// rates are invalid.
func ResampleMono16(pcm []byte, srcRate, dstRate int) []byte {
	if srcRate <= 0 || dstRate <= 0 || srcRate == dstRate || len(pcm) < 2 {
		return pcm
	}
	srcSamples := len(pcm) / 2
	dstSamples := int(int64(srcSamples) * int64(dstRate) / int64(srcRate))
	if dstSamples == 0 {
		return nil
	}

	out := make([]byte, dstSamples*2)
	ratio := float64(srcRate) / float64(dstRate)
	for i := range dstSamples {
		pos := float64(i) * ratio
		idx := int(pos)
		frac := pos - float64(idx)

		s0 := sampleAt(pcm, idx)
		s1 := s0
		if idx+1 < srcSamples {
			s1 = sampleAt(pcm, idx+1)
		}
		putSample(out, i, lerp(s0, s1, frac))
	}
	return out
}

// ResampleStereo16 resamples interleaved stereo PCM from srcRate to dstRate
// using linear interpolation per channel.
func ResampleStereo16(pcm []byte, srcRate, dstRate int) []byte {
	if srcRate <= 0 || dstRate <= 0 || srcRate == dstRate || len(pcm) < 4 {
		return pcm
	}
	srcFrames := len(pcm) / 4
	dstFrames := int(int64(srcFrames) * int64(dstRate) / int64(srcRate))
	if dstFrames == 0 {
		return nil
	}

	out := make([]byte, dstFrames*4)
	ratio := float64(srcRate) / float64(dstRate)
	for i := range dstFrames {
		pos := float64(i) * ratio
		idx := int(pos)
		frac := pos - float64(idx)

		for ch := range 2 {
			s0 := sampleAt(pcm, idx*2+ch)
			s1 := s0
			if idx+1 < srcFrames {
				s1 = sampleAt(pcm, (idx+1)*2+ch)
			}
			putSample(out, i*2+ch, lerp(s0, s1, frac))
		}
	}
	return out
}

func sampleAt(pcm []byte, i int) int16 {
	return int16(pcm[i*2]) | int16(pcm[i*2+1])<<8
}

func putSample(pcm []byte, i int, s int16) {
	pcm[i*2] = byte(s)
	pcm[i*2+1] = byte(s >> 8)
}

func lerp(s0, s1 int16, frac float64) int16 {
	return int16(float64(s0)*(1-frac) + float64(s1)*frac)
}
