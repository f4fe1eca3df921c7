// ABOUTME: Encoder interface definitions
// ABOUTME: Common interfaces for sample and frame based audio encoders
package encode

// Encoder encodes PCM int32 samples to various formats
type Encoder interface {
	// Encode converts PCM samples to encoded audio data
	Encode(samples []int32) ([]byte, error)

	// Close releases encoder resources
	Close() error
}

// FrameEncoder is an Encoder that only accepts whole frames
type FrameEncoder interface {
	Encoder

	// FrameSize is the number of samples per channel in one frame
	FrameSize() int

	// Header returns codec setup data emitted ahead of the first packet, or nil
	Header() []byte
}
