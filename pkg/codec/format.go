// ABOUTME: Media format and buffer descriptors
// ABOUTME: Mime types, encoder profiles, buffer flags and buffer info records
package codec

import "fmt"

// Mime types understood by the engines in this module
const (
	MimeOpus = "audio/opus"
	MimeAAC  = "audio/mp4a-latm"
)

// ContainerMPEG4 selects the MP4 container engine
const ContainerMPEG4 = "mpeg4"

// Profile selects an encoder tuning
type Profile int

const (
	ProfileDefault Profile = iota
	ProfileOpusAudio
	ProfileOpusVoIP
	ProfileOpusLowDelay
	ProfileAACLC
)

var profileNames = map[Profile]string{
	ProfileDefault:      "default",
	ProfileOpusAudio:    "opus-audio",
	ProfileOpusVoIP:     "opus-voip",
	ProfileOpusLowDelay: "opus-lowdelay",
	ProfileAACLC:        "aac-lc",
}

func (p Profile) String() string {
	if name, ok := profileNames[p]; ok {
		return name
	}
	return fmt.Sprintf("profile(%d)", int(p))
}

// ParseProfile maps a profile name back to its value
func ParseProfile(name string) (Profile, error) {
	if name == "" {
		return ProfileDefault, nil
	}
	for p, n := range profileNames {
		if n == name {
			return p, nil
		}
	}
	return ProfileDefault, fmt.Errorf("unknown profile %q", name)
}

// MediaFormat describes an encoder configuration or its output
type MediaFormat struct {
	MimeType     string
	SampleRate   int
	ChannelCount int
	Bitrate      int
	Profile      Profile

	// Set on output formats only
	CodecConfig []byte
	FrameSize   int // samples per channel per compressed frame
}

func (f MediaFormat) String() string {
	return fmt.Sprintf("%s %dHz %dch %dbps %s", f.MimeType, f.SampleRate, f.ChannelCount, f.Bitrate, f.Profile)
}

// BufferFlags annotate queued input and dequeued output
type BufferFlags uint32

const (
	FlagKeyFrame BufferFlags = 1 << iota
	FlagCodecConfig
	FlagEndOfStream
)

// Has reports whether all bits of f are set
func (b BufferFlags) Has(f BufferFlags) bool {
	return b&f == f
}

// BufferInfo describes the valid region of an output slot
type BufferInfo struct {
	Offset             int
	Size               int
	Flags              BufferFlags
	PresentationTimeUs int64
}
