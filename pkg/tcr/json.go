package tcr

import (
	"bytes"
	"os"

	jsoniter "github.com/json-iterator/go"
)

const (
	// GzipCompressionType helps identify which compression/decompression to use.
	GzipCompressionType = "gzip"

	// ZstdCompressionType helps identify which compression/decompression to use.
	ZstdCompressionType = "zstd"

	// AesSymmetricType helps identity which encryption/decryption to use.
	AesSymmetricType = "aes"
)

// ConvertJSONFileToConfig opens a file.json and converts to RedisSeasoning.
func ConvertJSONFileToConfig(fileNamePath string) (*RedisSeasoning, error) {

	byteValue, err := os.ReadFile(fileNamePath)
	if err != nil {
		return nil, err
	}

	config := &RedisSeasoning{}
	var json = jsoniter.ConfigFastest
	err = json.Unmarshal(byteValue, config)

	return config, err
}

// CreatePayload creates a JSON marshal and optionally compresses and encrypts the bytes.
func CreatePayload(
	input interface{},
	compression *CompressionConfig,
	encryption *EncryptionConfig) ([]byte, error) {

	var json = jsoniter.ConfigFastest
	data, err := json.Marshal(input)
	if err != nil {
		return nil, err
	}

	buffer := &bytes.Buffer{}
	if compression != nil && compression.Enabled {
		err := handleCompression(compression, data, buffer)
		if err != nil {
			return nil, err
		}

		// Update data - data is now compressed
		data = buffer.Bytes()
	}

	if encryption != nil && encryption.Enabled {
		err := handleEncryption(encryption, data, buffer)
		if err != nil {
			return nil, err
		}

		// Update data - data is now encrypted
		data = buffer.Bytes()
	}

	return data, nil
}

// ReadPayload unencrypts and uncompresses payloads
func ReadPayload(buffer *bytes.Buffer, compression *CompressionConfig, encryption *EncryptionConfig) error {

	if encryption != nil && encryption.Enabled {
		if err := handleDecryption(encryption, buffer); err != nil {
			return err
		}
	}

	if compression != nil && compression.Enabled {
		if err := handleDecompression(compression, buffer); err != nil {
			return err
		}
	}

	return nil
}

// ReadNotification reverses CreatePayload for a Notification.
func ReadNotification(data []byte, compression *CompressionConfig, encryption *EncryptionConfig) (*Notification, error) {

	buffer := bytes.NewBuffer(data)
	if err := ReadPayload(buffer, compression, encryption); err != nil {
		return nil, err
	}

	not := &Notification{}
	var json = jsoniter.ConfigFastest
	if err := json.Unmarshal(buffer.Bytes(), not); err != nil {
		return nil, err
	}

	return not, nil
}

func handleCompression(compression *CompressionConfig, data []byte, buffer *bytes.Buffer) error {
	if compression.Type == ZstdCompressionType {
		return CompressWithZstd(data, buffer)
	}

	return CompressWithGzip(data, buffer)
}

func handleDecompression(compression *CompressionConfig, buffer *bytes.Buffer) error {
	if compression.Type == ZstdCompressionType {
		return DecompressWithZstd(buffer)
	}

	return DecompressWithGzip(buffer)
}

// AES-GCM is the only symmetric type, so Type is not consulted.
func handleEncryption(encryption *EncryptionConfig, data []byte, buffer *bytes.Buffer) error {
	sealed, err := EncryptWithAes(data, encryption.key(), defaultNonceSize)
	if err != nil {
		return err
	}

	*buffer = *bytes.NewBuffer(sealed)
	return nil
}

func handleDecryption(encryption *EncryptionConfig, buffer *bytes.Buffer) error {
	opened, err := DecryptWithAes(buffer.Bytes(), encryption.key(), defaultNonceSize)
	if err != nil {
		return err
	}

	*buffer = *bytes.NewBuffer(opened)
	return nil
}
