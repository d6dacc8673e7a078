package session

import "github.com/whispertag/whispertag/internal/locator"

// Command is a side effect requested by the reducer and executed by the
// Machine. Commands report back as events, never by touching State directly.
type Command interface {
	commandName() string
}

// CmdEncrypt derives the key from (Serial, Timestamp), encrypts audio and
// transcript, builds the package and computes its content address.
type CmdEncrypt struct {
	MessageID       string
	Timestamp       int64
	Serial          string
	Audio           []byte
	Transcript      string
	DurationSeconds float64
}

// CmdWriteTag writes the encoded locator onto the next presented tag.
type CmdWriteTag struct {
	MessageID    string
	LocatorBytes []byte
}

// CmdUpload publishes the package. Issued only after a successful tag write,
// so no ciphertext is published without a retrievable locator on a physical
// token.
type CmdUpload struct {
	MessageID string
	Data      []byte
}

// CmdDownload fetches the package for a read session.
type CmdDownload struct {
	MessageID      string
	ContentAddress string
}

// CmdDecrypt unpacks downloaded bytes and decrypts them with the key derived
// from Serial and the package's own timestamp.
type CmdDecrypt struct {
	MessageID string
	Serial    string
	Data      []byte
}

// CmdStashSerial hands the serial to the relay ahead of a navigation.
type CmdStashSerial struct {
	Serial string
	Bound  locator.Locator
}

// CmdNavigate asks the shell to load a different message.
type CmdNavigate struct {
	Target locator.Locator
}

// CmdRevokeAudio asks the shell to release any playback handles derived from
// decrypted audio. Security teardown, not just cleanup.
type CmdRevokeAudio struct{}

func (CmdEncrypt) commandName() string { return "encrypt" }
func (CmdWriteTag) commandName() string { return "write-tag" }
func (CmdUpload) commandName() string { return "upload" }
func (CmdDownload) commandName() string { return "download" }
func (CmdDecrypt) commandName() string { return "decrypt" }
func (CmdStashSerial) commandName() string { return "stash-serial" }
func (CmdNavigate) commandName() string { return "navigate" }
func (CmdRevokeAudio) commandName() string { return "revoke-audio" }
