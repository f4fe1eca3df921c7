// ABOUTME: Reads back a fragmented MP4 file written by this package
// ABOUTME: Splits top-level boxes and summarizes the audio track timing
package mp4mux

import (
	"bytes"
	"fmt"
	"os"
	"time"

	gomp4 "github.com/abema/go-mp4"
	"github.com/bluenviron/mediacommon/v2/pkg/formats/fmp4"
	"github.com/bluenviron/mediacommon/v2/pkg/formats/mp4"
)

// Summary describes the audio track of a file
type Summary struct {
	Codec        string
	ChannelCount int
	TimeScale    uint32
	Fragments    int
	Samples      int
	PayloadBytes int64
	FirstPTSUs   int64
	LastPTSUs    int64
	Duration     time.Duration

	// PTSUs holds every sample timestamp in decode order
	PTSUs []int64
}

// Inspect parses path and summarizes its single audio track
func Inspect(path string) (Summary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Summary{}, fmt.Errorf("failed to read %s: %w", path, err)
	}

	initData, fragData, err := splitBoxes(data)
	if err != nil {
		return Summary{}, err
	}
	if len(initData) == 0 {
		return Summary{}, fmt.Errorf("%s has no init segment", path)
	}

	var init fmp4.Init
	if err := init.Unmarshal(bytes.NewReader(initData)); err != nil {
		return Summary{}, fmt.Errorf("failed to parse init segment: %w", err)
	}
	if len(init.Tracks) != 1 {
		return Summary{}, fmt.Errorf("expected one track, found %d", len(init.Tracks))
	}

	track := init.Tracks[0]
	summary := Summary{TimeScale: track.TimeScale}
	switch c := track.Codec.(type) {
	case *mp4.CodecOpus:
		summary.Codec = "opus"
		summary.ChannelCount = c.ChannelCount
	case *mp4.CodecMPEG4Audio:
		summary.Codec = "aac"
		summary.ChannelCount = c.Config.ChannelCount
	default:
		return Summary{}, fmt.Errorf("unexpected codec %T", track.Codec)
	}

	if len(fragData) == 0 {
		return summary, nil
	}

	var parts fmp4.Parts
	if err := parts.Unmarshal(fragData); err != nil {
		return Summary{}, fmt.Errorf("failed to parse fragments: %w", err)
	}

	toUs := func(ts uint64) int64 {
		return int64(ts * 1_000_000 / uint64(track.TimeScale))
	}

	var end uint64
	for _, part := range parts {
		for _, pt := range part.Tracks {
			if pt.ID != track.ID {
				continue
			}
			summary.Fragments++
			dts := pt.BaseTime
			for _, s := range pt.Samples {
				if summary.Samples == 0 {
					summary.FirstPTSUs = toUs(dts)
				}
				summary.PTSUs = append(summary.PTSUs, toUs(dts))
				summary.LastPTSUs = toUs(dts)
				summary.Samples++
				summary.PayloadBytes += int64(len(s.Payload))
				dts += uint64(s.Duration)
			}
			end = dts
		}
	}

	if summary.Samples > 0 {
		summary.Duration = time.Duration(toUs(end)-summary.FirstPTSUs) * time.Microsecond
	}
	return summary, nil
}

// splitBoxes separates ftyp/moov bytes from moof/mdat bytes
func splitBoxes(data []byte) (initData, fragData []byte, err error) {
	var end uint64
	_, err = gomp4.ReadBoxStructure(bytes.NewReader(data), func(h *gomp4.ReadHandle) (interface{}, error) {
		bi := h.BoxInfo
		if bi.Size < bi.HeaderSize || bi.Offset+bi.Size > uint64(len(data)) {
			return nil, fmt.Errorf("box %q at offset %d has invalid size %d", bi.Type.String(), bi.Offset, bi.Size)
		}

		box := data[bi.Offset : bi.Offset+bi.Size]
		switch bi.Type {
		case gomp4.BoxTypeFtyp(), gomp4.BoxTypeMoov():
			initData = append(initData, box...)
		case gomp4.BoxTypeMoof(), gomp4.BoxTypeMdat():
			fragData = append(fragData, box...)
		}
		end = bi.Offset + bi.Size
		return nil, nil
	})
	if err != nil {
		return nil, nil, err
	}
	if end != uint64(len(data)) {
		return nil, nil, fmt.Errorf("truncated box header at offset %d", end)
	}
	return initData, fragData, nil
}
