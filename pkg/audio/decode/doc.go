// ABOUTME: Audio decoder package for multiple codec support
// ABOUTME: Provides Decoder interface and PCM stream readers for MP3 and FLAC
// Package decode provides audio decoders for various codecs.
//
// Packet decoders (PCM, Opus) implement the Decoder interface and output
// int32 samples in 24-bit range.
//
// Stream readers (MP3, FLAC) wrap a compressed file and expose it as an
// io.Reader of interleaved 16-bit little-endian PCM, the layout the
// encode pump consumes.
//
// Example:
//
//	r, err := decode.NewMP3Reader(f)
//	n, err := r.Read(buf)
package decode
