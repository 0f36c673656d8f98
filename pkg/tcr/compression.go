package tcr

import (
	"bytes"
	"compress/gzip"
	"io"

	"github.com/klauspost/compress/zstd"
)

// CompressWithZstd compresses data with zstd and places the result in the supplied buffer.
func CompressWithZstd(data []byte, buffer *bytes.Buffer) error {

	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return err
	}
	defer encoder.Close()

	buffer.Reset()
	buffer.Write(encoder.EncodeAll(data, make([]byte, 0, len(data))))

	return nil
}

// DecompressWithZstd replaces the supplied buffer's zstd contents with the decompressed data.
func DecompressWithZstd(buffer *bytes.Buffer) error {

	decoder, err := zstd.NewReader(nil)
	if err != nil {
		return err
	}
	defer decoder.Close()

	data, err := decoder.DecodeAll(buffer.Bytes(), nil)
	if err != nil {
		return err
	}

	*buffer = *bytes.NewBuffer(data)

	return nil
}

// CompressWithGzip uses the standard Gzip Writer to compress data and places data in the supplied buffer.
func CompressWithGzip(data []byte, buffer *bytes.Buffer) error {

	buffer.Reset()
	gzipWriter := gzip.NewWriter(buffer)

	if _, err := gzipWriter.Write(data); err != nil {
		return err
	}

	return gzipWriter.Close()
}

// DecompressWithGzip replaces the supplied buffer's gzip contents with the decompressed data.
func DecompressWithGzip(buffer *bytes.Buffer) error {

	gzipReader, err := gzip.NewReader(buffer)
	if err != nil {
		return err
	}

	data, err := io.ReadAll(gzipReader)
	if err != nil {
		return err
	}

	if err := gzipReader.Close(); err != nil {
		return err
	}

	*buffer = *bytes.NewBuffer(data)

	return nil
}
