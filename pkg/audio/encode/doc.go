// ABOUTME: Audio encoder package for encoding PCM to various formats
// ABOUTME: Provides Encoder interface and implementations for PCM, Opus
// Package encode provides audio encoders for various codecs.
//
// Supports: PCM (16-bit and 24-bit), Opus
//
// All encoders accept int32 samples in 24-bit range. Frame encoders
// (Opus) additionally report a fixed frame size and an optional codec
// header that a container needs before the first packet.
//
// Example:
//
//	encoder, err := encode.NewOpus(format, encode.OpusOptions{Bitrate: 64000})
//	packet, err := encoder.Encode(frame)
package encode
