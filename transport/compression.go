// MIT License
//
// Copyright (c) 2022-2026 GoAkt Team
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.

package transport

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/zstd"
)

// Compression selects how serialized payloads are compressed on the wire.
// Every silo of a cluster must use the same value.
type Compression int

const (
	NoCompression Compression = iota
	ZstdCompression
	BrotliCompression
)

// String returns the compression name
func (c Compression) String() string {
	switch c {
	case NoCompression:
		return "none"
	case ZstdCompression:
		return "zstd"
	case BrotliCompression:
		return "brotli"
	default:
		return fmt.Sprintf("Compression(%d)", int(c))
	}
}

// Compressor compresses and restores encoded payloads. Implementations are safe for concurrent use.
type Compressor interface {
	Compress(data []byte) ([]byte, error)
	Decompress(data []byte) ([]byte, error)
}

// NewCompressor returns the Compressor of the given compression
func NewCompressor(compression Compression) (Compressor, error) {
	switch compression {
	case NoCompression:
		return identity{}, nil
	case ZstdCompression:
		return newZstdCompressor()
	case BrotliCompression:
		return newBrotliCompressor(), nil
	default:
		return nil, fmt.Errorf("unsupported compression %s", compression)
	}
}

type identity struct{}

func (identity) Compress(data []byte) ([]byte, error)   { return data, nil }
func (identity) Decompress(data []byte) ([]byte, error) { return data, nil }

// zstdCompressor pools encoders and decoders and works on whole frames
type zstdCompressor struct {
	encoders sync.Pool
	decoders sync.Pool
}

func newZstdCompressor() (*zstdCompressor, error) {
	encoderOpts := []zstd.EOption{
		zstd.WithEncoderLevel(zstd.SpeedDefault),
		zstd.WithEncoderConcurrency(1),
		zstd.WithLowerEncoderMem(true),
	}
	decoderOpts := []zstd.DOption{
		zstd.WithDecoderConcurrency(1),
		zstd.WithDecoderLowmem(true),
		zstd.WithDecoderMaxMemory(64 << 20),
	}

	enc, err := zstd.NewWriter(nil, encoderOpts...)
	if err != nil {
		return nil, err
	}
	dec, err := zstd.NewReader(nil, decoderOpts...)
	if err != nil {
		enc.Close()
		return nil, err
	}

	z := new(zstdCompressor)
	z.encoders.Put(enc)
	z.decoders.Put(dec)
	z.encoders.New = func() any {
		e, err := zstd.NewWriter(nil, encoderOpts...)
		if err != nil {
			return nil
		}
		return e
	}
	z.decoders.New = func() any {
		d, err := zstd.NewReader(nil, decoderOpts...)
		if err != nil {
			return nil
		}
		return d
	}
	return z, nil
}

func (z *zstdCompressor) Compress(data []byte) ([]byte, error) {
	enc, ok := z.encoders.Get().(*zstd.Encoder)
	if !ok || enc == nil {
		return nil, errors.New("failed to create zstd encoder")
	}
	defer z.encoders.Put(enc)
	return enc.EncodeAll(data, make([]byte, 0, len(data))), nil
}

func (z *zstdCompressor) Decompress(data []byte) ([]byte, error) {
	dec, ok := z.decoders.Get().(*zstd.Decoder)
	if !ok || dec == nil {
		return nil, errors.New("failed to create zstd decoder")
	}
	defer z.decoders.Put(dec)
	return dec.DecodeAll(data, nil)
}

// brotliCompressor pools writers. Readers are cheap and created per payload.
type brotliCompressor struct {
	writers sync.Pool
}

func newBrotliCompressor() *brotliCompressor {
	b := new(brotliCompressor)
	b.writers.New = func() any {
		return brotli.NewWriterLevel(nil, brotli.DefaultCompression)
	}
	return b
}

func (b *brotliCompressor) Compress(data []byte) ([]byte, error) {
	writer := b.writers.Get().(*brotli.Writer)
	defer b.writers.Put(writer)

	var buf bytes.Buffer
	writer.Reset(&buf)
	if _, err := writer.Write(data); err != nil {
		return nil, err
	}
	if err := writer.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (b *brotliCompressor) Decompress(data []byte) ([]byte, error) {
	return io.ReadAll(brotli.NewReader(bytes.NewReader(data)))
}
