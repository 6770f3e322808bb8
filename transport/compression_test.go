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
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompressor(t *testing.T) {
	payload, err := Marshal(&Envelope{Route: "directory.register", Payload: ping{Value: string(bytes.Repeat([]byte("grain"), 512))}})
	require.NoError(t, err)

	for _, compression := range []Compression{NoCompression, ZstdCompression, BrotliCompression} {
		t.Run(compression.String(), func(t *testing.T) {
			compressor, err := NewCompressor(compression)
			require.NoError(t, err)

			compressed, err := compressor.Compress(payload)
			require.NoError(t, err)
			if compression != NoCompression {
				assert.Less(t, len(compressed), len(payload))
			}

			restored, err := compressor.Decompress(compressed)
			require.NoError(t, err)
			assert.Equal(t, payload, restored)

			envelope := new(Envelope)
			require.NoError(t, Unmarshal(restored, envelope))
			assert.Equal(t, "directory.register", envelope.Route)
		})
	}

	t.Run("With concurrent callers", func(t *testing.T) {
		compressor, err := NewCompressor(ZstdCompression)
		require.NoError(t, err)

		var wg sync.WaitGroup
		for range 8 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				compressed, err := compressor.Compress(payload)
				assert.NoError(t, err)
				restored, err := compressor.Decompress(compressed)
				assert.NoError(t, err)
				assert.Equal(t, payload, restored)
			}()
		}
		wg.Wait()
	})

	t.Run("With corrupted input", func(t *testing.T) {
		compressor, err := NewCompressor(ZstdCompression)
		require.NoError(t, err)
		_, err = compressor.Decompress([]byte("not a zstd frame"))
		require.Error(t, err)
	})

	t.Run("With unsupported compression", func(t *testing.T) {
		_, err := NewCompressor(Compression(42))
		require.Error(t, err)
		assert.Equal(t, "Compression(42)", Compression(42).String())
	})
}
