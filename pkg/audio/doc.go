// ABOUTME: Audio fundamentals package providing core types and utilities
// ABOUTME: Defines PCM Format and sample conversion functions
// Package audio provides fundamental audio types and utilities for PCM handling.
//
// This package defines core types used throughout pcmenc:
//   - Format: Describes raw PCM framing (codec, sample rate, channels, bit depth)
//
// It also provides utilities for converting between different sample formats:
//   - 16-bit ↔ 24-bit conversions
//   - int32 ↔ packed byte conversions
//
// Example:
//
//	format := audio.Format{
//	    Codec:      "pcm",
//	    SampleRate: 44100,
//	    Channels:   1,
//	    BitDepth:   16,
//	}
//
//	rate := format.ByteRate() // 88200 bytes per second
package audio
