// ABOUTME: Encoder and container engine contracts
// ABOUTME: Defines media formats, buffer records and the engine registry
// Package codec defines the two engine contracts the encode pump drives:
//
//   - EncoderEngine: a buffer-queue encoder. Callers dequeue an input
//     slot, fill it with PCM, queue it back, then dequeue output slots
//     holding compressed frames and release them when done.
//   - ContainerEngine: a single-file container writer that binds one
//     track, starts, accepts samples and finalizes.
//
// Engines are looked up by mime type or container format through a
// Registry so the pump stays independent of any concrete codec.
package codec
