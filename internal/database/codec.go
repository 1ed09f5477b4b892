package database

import (
	"fmt"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/kozaktomas/facecluster/internal/facematch"
)

// MarshalEmbedding encodes a single embedding for key-value and blob backends.
func MarshalEmbedding(emb facematch.Embedding) ([]byte, error) {
	data, err := msgpack.Marshal([]float32(emb))
	if err != nil {
		return nil, fmt.Errorf("encoding embedding: %w", err)
	}
	return data, nil
}

// UnmarshalEmbedding decodes an embedding written by MarshalEmbedding.
func UnmarshalEmbedding(data []byte) (facematch.Embedding, error) {
	var v []float32
	if err := msgpack.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("decoding embedding: %w", err)
	}
	return facematch.Embedding(v), nil
}

var (
	zstdEncoderPool sync.Pool
	zstdDecoderPool sync.Pool
)

func getZstdEncoder() (*zstd.Encoder, error) {
	if v := zstdEncoderPool.Get(); v != nil {
		return v.(*zstd.Encoder), nil
	}
	return zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
}

func getZstdDecoder() (*zstd.Decoder, error) {
	if v := zstdDecoderPool.Get(); v != nil {
		return v.(*zstd.Decoder), nil
	}
	return zstd.NewReader(nil)
}

func compress(data []byte) ([]byte, error) {
	enc, err := getZstdEncoder()
	if err != nil {
		return nil, fmt.Errorf("creating zstd encoder: %w", err)
	}
	defer zstdEncoderPool.Put(enc)
	return enc.EncodeAll(data, nil), nil
}

func decompress(data []byte) ([]byte, error) {
	dec, err := getZstdDecoder()
	if err != nil {
		return nil, fmt.Errorf("creating zstd decoder: %w", err)
	}
	defer zstdDecoderPool.Put(dec)
	out, err := dec.DecodeAll(data, nil)
	if err != nil {
		return nil, fmt.Errorf("decompressing: %w", err)
	}
	return out, nil
}

// encodeCollections serializes the full mapping to the compressed file format.
func encodeCollections(data Collections, f storeFile) ([]byte, error) {
	f.Version = currentStoreVersion
	f.Identities = make(map[int64][][]float32, len(data))
	for id, embs := range data {
		vecs := make([][]float32, len(embs))
		for i, e := range embs {
			vecs[i] = []float32(e)
		}
		f.Identities[int64(id)] = vecs
	}
	raw, err := msgpack.Marshal(&f)
	if err != nil {
		return nil, fmt.Errorf("encoding identity store: %w", err)
	}
	return compress(raw)
}

// decodeCollections parses the compressed file format.
func decodeCollections(blob []byte) (Collections, error) {
	raw, err := decompress(blob)
	if err != nil {
		return nil, err
	}
	var f storeFile
	if err := msgpack.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("decoding identity store: %w", err)
	}
	if f.Version != currentStoreVersion {
		return nil, fmt.Errorf("unsupported identity store version %d", f.Version)
	}
	out := make(Collections, len(f.Identities))
	for id, vecs := range f.Identities {
		embs := make([]facematch.Embedding, len(vecs))
		for i, v := range vecs {
			embs[i] = facematch.Embedding(v)
		}
		out[facematch.Identity(id)] = embs
	}
	return out, nil
}
