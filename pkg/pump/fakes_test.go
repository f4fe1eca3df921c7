// ABOUTME: Scripted encoder and container engines for pump tests
// ABOUTME: Simulate slot saturation, retries, config chunks and format timing
package pump

import (
	"errors"
	"sync"
	"time"

	"github.com/Resonate-Protocol/pcmenc/pkg/codec"
)

const fakeMime = "audio/fake"

type fakeOutput struct {
	kind  codec.OutputKind
	data  []byte
	info  codec.BufferInfo
	input int // input slot freed when this output is released, or -1
}

// fakeEncoder echoes each queued input slot back as one output chunk
type fakeEncoder struct {
	mu sync.Mutex

	slots    int
	capacity int

	// holdSlots keeps an input slot busy until its chunk is released
	holdSlots bool
	// retryEvery inserts a retry before every n-th output
	retryEvery int
	// emptyChunks emits an unflagged zero-size chunk after the config chunk
	emptyChunks bool
	// dropEOS never emits the end-of-stream chunk
	dropEOS bool
	// failQueue fails the n-th queue call
	failQueue int

	configured, started, released bool
	formatSent                    bool

	free      []int
	inOwned   map[int]bool
	inBufs    [][]byte
	outputs   []fakeOutput
	outOwned  map[int]fakeOutput
	nextOut   int
	queued    int
	dequeues  int
	consumed  []byte
	inputPTS  []int64
	eosQueued int
}

func newFakeEncoder(slots, capacity int) *fakeEncoder {
	return &fakeEncoder{
		slots:    slots,
		capacity: capacity,
		inOwned:  make(map[int]bool),
		outOwned: make(map[int]fakeOutput),
	}
}

func (f *fakeEncoder) Configure(format codec.MediaFormat) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if format.SampleRate == 12345 {
		return errors.New("rate rejected")
	}
	f.configured = true
	f.inBufs = make([][]byte, f.slots)
	for i := range f.inBufs {
		f.inBufs[i] = make([]byte, f.capacity)
		f.free = append(f.free, i)
	}
	return nil
}

func (f *fakeEncoder) Start() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.configured {
		return codec.ErrIllegalState
	}
	f.started = true
	return nil
}

func (f *fakeEncoder) live() error {
	if f.released {
		return codec.ErrReleased
	}
	if !f.started {
		return codec.ErrIllegalState
	}
	return nil
}

func (f *fakeEncoder) DequeueInputBuffer(time.Duration) (int, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.live(); err != nil {
		return -1, false, err
	}
	if len(f.free) == 0 {
		return -1, false, nil
	}
	idx := f.free[0]
	f.free = f.free[1:]
	f.inOwned[idx] = true
	return idx, true, nil
}

func (f *fakeEncoder) InputBuffer(i int) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.inOwned[i] {
		return nil, codec.ErrIllegalState
	}
	return f.inBufs[i], nil
}

func (f *fakeEncoder) QueueInputBuffer(i, size int, pts int64, flags codec.BufferFlags) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.live(); err != nil {
		return err
	}
	if !f.inOwned[i] {
		return codec.ErrIllegalState
	}
	f.queued++
	if f.failQueue > 0 && f.queued == f.failQueue {
		return errors.New("hardware fault")
	}
	delete(f.inOwned, i)

	f.consumed = append(f.consumed, f.inBufs[i][:size]...)
	f.inputPTS = append(f.inputPTS, pts)

	if !f.formatSent {
		f.formatSent = true
		f.outputs = append(f.outputs,
			fakeOutput{kind: codec.OutputFormatChanged, input: -1},
			fakeOutput{kind: codec.OutputReady, data: []byte{0xC0, 0xDE},
				info: codec.BufferInfo{Size: 2, Flags: codec.FlagCodecConfig}, input: -1})
		if f.emptyChunks {
			f.outputs = append(f.outputs, fakeOutput{kind: codec.OutputReady, input: -1})
		}
	}

	held := -1
	if size > 0 {
		if f.holdSlots {
			held = i
		}
		f.outputs = append(f.outputs, fakeOutput{
			kind:  codec.OutputReady,
			data:  append([]byte(nil), f.inBufs[i][:size]...),
			info:  codec.BufferInfo{Size: size, PresentationTimeUs: pts, Flags: codec.FlagKeyFrame},
			input: held,
		})
	}
	if held < 0 {
		f.free = append(f.free, i)
	}

	if flags.Has(codec.FlagEndOfStream) {
		f.eosQueued++
		if !f.dropEOS {
			f.outputs = append(f.outputs, fakeOutput{
				kind:  codec.OutputReady,
				info:  codec.BufferInfo{Flags: codec.FlagEndOfStream, PresentationTimeUs: pts},
				input: -1,
			})
		}
	}
	return nil
}

func (f *fakeEncoder) DequeueOutputBuffer(time.Duration) (codec.OutputResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.live(); err != nil {
		return codec.OutputResult{}, err
	}
	f.dequeues++
	if len(f.outputs) == 0 || (f.retryEvery > 0 && f.dequeues%f.retryEvery == 0) {
		return codec.OutputResult{Kind: codec.OutputRetry, Index: -1}, nil
	}

	out := f.outputs[0]
	f.outputs = f.outputs[1:]
	if out.kind == codec.OutputFormatChanged {
		return codec.OutputResult{Kind: out.kind, Index: -1, Format: codec.MediaFormat{MimeType: fakeMime, SampleRate: 11025, ChannelCount: 1}}, nil
	}

	idx := f.nextOut
	f.nextOut++
	f.outOwned[idx] = out
	return codec.OutputResult{Kind: codec.OutputReady, Index: idx, Info: out.info}, nil
}

func (f *fakeEncoder) OutputBuffer(i int) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out, ok := f.outOwned[i]
	if !ok {
		return nil, codec.ErrIllegalState
	}
	return out.data, nil
}

func (f *fakeEncoder) OutputFormat() codec.MediaFormat {
	return codec.MediaFormat{MimeType: fakeMime}
}

func (f *fakeEncoder) ReleaseOutputBuffer(i int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.live(); err != nil {
		return err
	}
	out, ok := f.outOwned[i]
	if !ok {
		return codec.ErrIllegalState
	}
	delete(f.outOwned, i)
	if out.input >= 0 {
		f.free = append(f.free, out.input)
	}
	return nil
}

func (f *fakeEncoder) Stop() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.released {
		return codec.ErrReleased
	}
	f.released = true
	return nil
}

func (f *fakeEncoder) Release() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.released = true
	return nil
}

// outstanding counts slots the caller still holds
func (f *fakeEncoder) outstanding() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.inOwned) + len(f.outOwned)
}

type writtenSample struct {
	data []byte
	info codec.BufferInfo
}

// fakeContainer records every call
type fakeContainer struct {
	path      string
	tracks    int
	starts    int
	stops     int
	releases  int
	samples   []writtenSample
	failWrite bool
}

func (c *fakeContainer) AddTrack(codec.MediaFormat) (int, error) {
	c.tracks++
	if c.tracks > 1 {
		return -1, codec.ErrIllegalState
	}
	return 0, nil
}

func (c *fakeContainer) Start() error {
	c.starts++
	return nil
}

func (c *fakeContainer) WriteSampleData(track int, data []byte, info codec.BufferInfo) error {
	if c.failWrite {
		return errors.New("disk full")
	}
	c.samples = append(c.samples, writtenSample{data: append([]byte(nil), data...), info: info})
	return nil
}

func (c *fakeContainer) Stop() error {
	c.stops++
	if c.starts == 0 {
		return codec.ErrIllegalState
	}
	return nil
}

func (c *fakeContainer) Release() error {
	c.releases++
	return nil
}

// fakeRegistry wires one fake encoder and container into a registry
func fakeRegistry(enc *fakeEncoder, mux *fakeContainer) *codec.Registry {
	r := codec.NewRegistry()
	r.RegisterEncoder(fakeMime, func() (codec.EncoderEngine, error) { return enc, nil })
	r.RegisterContainer(codec.ContainerMPEG4, func(path string) (codec.ContainerEngine, error) {
		mux.path = path
		return mux, nil
	})
	return r
}
