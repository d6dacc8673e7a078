package session

// Event is a named occurrence driving the state machine. Events are the only
// way state changes; late-arriving ones carry enough identity for the reducer
// to drop them when the machine has already moved on.
type Event interface {
	eventName() string
}

// EvSessionStarted begins the flow. In read mode the locator comes from the
// page being loaded; in create mode both fields are empty.
type EvSessionStarted struct {
	MessageID      string
	ContentAddress string
}

// EvGatewayReady signals that the storage gateway became usable. It may
// arrive before or after the tag scan; the auto-decrypt guard handles either
// order.
type EvGatewayReady struct{}

// EvTokenScanned is a tag read. Locator is empty for a blank tag.
type EvTokenScanned struct {
	Serial  string
	Locator string
}

// EvRecordingStarted and EvRecordingStopped bracket one capture.
type EvRecordingStarted struct{}

type EvRecordingStopped struct {
	Audio           []byte
	DurationSeconds float64
	Transcript      string
}

// EvSaveRequested asks the machine to publish the reviewed recording.
type EvSaveRequested struct{}

// EvEncrypted reports a finished encryption command. ContentAddress is
// computed locally from the package bytes, so the tag can be written before
// anything is uploaded.
type EvEncrypted struct {
	MessageID      string
	PackageBytes   []byte
	ContentAddress string
}

// EvEncryptFailed reports a failed encryption command.
type EvEncryptFailed struct {
	MessageID string
	Err       error
}

// EvTagWritten and EvTagWriteFailed report the outcome of a tag write.
type EvTagWritten struct {
	MessageID string
}

type EvTagWriteFailed struct {
	MessageID string
	Err       error
}

// EvUploaded and EvUploadFailed report the outcome of a package upload.
type EvUploaded struct {
	MessageID      string
	ContentAddress string
}

type EvUploadFailed struct {
	MessageID string
	Err       error
}

// EvPackageDownloaded carries the raw package fetched for MessageID.
type EvPackageDownloaded struct {
	MessageID string
	Data      []byte
}

// EvDownloadFailed reports that every storage endpoint failed.
type EvDownloadFailed struct {
	MessageID string
	Err       error
}

// EvPackageDecrypted carries the recovered plaintext fields.
type EvPackageDecrypted struct {
	MessageID       string
	Audio           []byte
	Transcript      string
	DurationSeconds float64
}

// EvDecryptionFailed reports an unpack, mismatch or decrypt failure.
type EvDecryptionFailed struct {
	MessageID string
	Err       error
}

// EvPlayerClosed tears the read session down and returns to create mode.
type EvPlayerClosed struct{}

func (EvSessionStarted) eventName() string { return "session-started" }
func (EvGatewayReady) eventName() string { return "gateway-ready" }
func (EvTokenScanned) eventName() string { return "token-scanned" }
func (EvRecordingStarted) eventName() string { return "recording-started" }
func (EvRecordingStopped) eventName() string { return "recording-stopped" }
func (EvSaveRequested) eventName() string { return "save-requested" }
func (EvEncrypted) eventName() string { return "encrypted" }
func (EvEncryptFailed) eventName() string { return "encrypt-failed" }
func (EvTagWritten) eventName() string { return "tag-written" }
func (EvTagWriteFailed) eventName() string { return "tag-write-failed" }
func (EvUploaded) eventName() string { return "uploaded" }
func (EvUploadFailed) eventName() string { return "upload-failed" }
func (EvPackageDownloaded) eventName() string { return "package-downloaded" }
func (EvDownloadFailed) eventName() string { return "download-failed" }
func (EvPackageDecrypted) eventName() string { return "package-decrypted" }
func (EvDecryptionFailed) eventName() string { return "decryption-failed" }
func (EvPlayerClosed) eventName() string { return "player-closed" }
