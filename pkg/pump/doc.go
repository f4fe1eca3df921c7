// ABOUTME: Encode pump package documentation
// ABOUTME: Sessions around encoder/container engines and the loop that joins them
// Package pump drives PCM byte sources through a buffer-queue encoder
// into a single-track container.
//
// An EncoderSession and a WriterSession wrap the engine lifecycles. A
// Pump feeds one source at a time into the encoder in bounded batches,
// drains compressed chunks into the writer and keeps the presentation
// clock running across sources so N sources become one timeline.
//
// Example:
//
//	enc := pump.NewEncoderSession(registry, logger)
//	err := enc.Prepare(cfg, outPath)
//	w, err := pump.OpenWriter(registry, outPath, codec.ContainerMPEG4, logger)
//	p := pump.New(enc, w, pump.Options{})
//	err = p.Encode(src)
package pump
