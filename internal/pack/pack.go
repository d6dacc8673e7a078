// Package pack serializes the portable message package: the unit persisted to
// content-addressed storage. A package carries only public metadata and
// authenticated ciphertext; the tag serial never appears in any field.
package pack

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/whispertag/whispertag/internal/common"
)

// Version is the current package format version, stored in metadata so old
// packages stay readable if the layout ever changes.
const Version = 1

// MaxAudioSize is the ceiling for the encrypted audio payload. Oversized
// input is rejected before any upload is attempted.
const MaxAudioSize = 25 << 20

// audioChunkSize is the number of ciphertext bytes encoded per chunk. It is a
// multiple of 3 so concatenated chunk encodings decode as one base64 stream.
const audioChunkSize = 32766

// Metadata holds the non-secret descriptive fields of a package.
type Metadata struct {
	DurationSeconds float64 `json:"duration_seconds"`
	CreatedAt       int64   `json:"created_at"`
	Version         int     `json:"version"`
}

// MessagePackage is the decoded form of a stored message.
//
// Timestamp is the key-derivation input: public by itself, useless without
// the tag serial.
type MessagePackage struct {
	MessageID           string   `json:"message_id"`
	Timestamp           int64    `json:"timestamp"`
	EncryptedAudio      []byte   `json:"-"`
	EncryptedTranscript string   `json:"encrypted_transcript"`
	Metadata            Metadata `json:"metadata"`
}

// document is the wire form; audio ciphertext travels base64-encoded inside
// the JSON document.
type document struct {
	MessageID           string   `json:"message_id"`
	Timestamp           int64    `json:"timestamp"`
	EncryptedAudio      string   `json:"encrypted_audio"`
	EncryptedTranscript string   `json:"encrypted_transcript"`
	Metadata            Metadata `json:"metadata"`
}

// Pack encodes p into portable bytes. It fails with
// common.ErrSizeLimitExceeded when the audio ciphertext is over MaxAudioSize
// and with common.ErrMalformedPackage when required fields are missing.
func Pack(p *MessagePackage) ([]byte, error) {
	if p.MessageID == "" || p.Timestamp == 0 {
		return nil, fmt.Errorf("%w: missing message id or timestamp", common.ErrMalformedPackage)
	}
	if len(p.EncryptedAudio) == 0 || p.EncryptedTranscript == "" {
		return nil, fmt.Errorf("%w: missing ciphertext fields", common.ErrMalformedPackage)
	}
	if len(p.EncryptedAudio) > MaxAudioSize {
		return nil, fmt.Errorf("%w: audio ciphertext is %d bytes, limit %d",
			common.ErrSizeLimitExceeded, len(p.EncryptedAudio), MaxAudioSize)
	}

	doc := document{
		MessageID:           p.MessageID,
		Timestamp:           p.Timestamp,
		EncryptedAudio:      encodeChunked(p.EncryptedAudio),
		EncryptedTranscript: p.EncryptedTranscript,
		Metadata:            p.Metadata,
	}
	if doc.Metadata.Version == 0 {
		doc.Metadata.Version = Version
	}

	return json.Marshal(doc)
}

// Unpack is the exact inverse of Pack. Any structural defect (unparsable
// JSON, absent required fields, invalid base64) yields
// common.ErrMalformedPackage; transport corruption is always rejected, never
// silently truncated.
func Unpack(data []byte) (*MessagePackage, error) {
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrMalformedPackage, err)
	}

	if doc.MessageID == "" || doc.Timestamp == 0 {
		return nil, fmt.Errorf("%w: missing message id or timestamp", common.ErrMalformedPackage)
	}
	if doc.EncryptedAudio == "" || doc.EncryptedTranscript == "" {
		return nil, fmt.Errorf("%w: missing ciphertext fields", common.ErrMalformedPackage)
	}

	audio, err := base64.StdEncoding.Strict().DecodeString(doc.EncryptedAudio)
	if err != nil {
		return nil, fmt.Errorf("%w: audio transport decode: %v", common.ErrMalformedPackage, err)
	}

	return &MessagePackage{
		MessageID:           doc.MessageID,
		Timestamp:           doc.Timestamp,
		EncryptedAudio:      audio,
		EncryptedTranscript: doc.EncryptedTranscript,
		Metadata:            doc.Metadata,
	}, nil
}

// encodeChunked base64-encodes data in fixed-size chunks to keep any single
// intermediate buffer bounded for large payloads. Because the chunk size is a
// multiple of 3, the concatenation is a valid base64 encoding of the whole
// input.
func encodeChunked(data []byte) string {
	var b strings.Builder
	b.Grow(base64.StdEncoding.EncodedLen(len(data)))
	for len(data) > 0 {
		n := len(data)
		if n > audioChunkSize {
			n = audioChunkSize
		}
		b.WriteString(base64.StdEncoding.EncodeToString(data[:n]))
		data = data[n:]
	}
	return b.String()
}
