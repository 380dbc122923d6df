package filemanager

import "github.com/teemow/drivedesk/internal/drive"

// NoticeKind selects the banner a notice is shown in.
type NoticeKind string

const (
	NoticeSuccess NoticeKind = "success"
	NoticeError   NoticeKind = "error"
)

// Messages shown to the user.
const (
	MsgSignInRequired  = "Please sign in before performing operations"
	MsgLoadFailed      = "Could not load files. Please try again."
	MsgSelectFile      = "Please select a file to upload"
	MsgUploadSucceeded = "File uploaded successfully!"
	MsgUploadFailed    = "Upload failed: "
	MsgUnknownError    = "Unknown error"
	MsgDownloadInvalid = "Unable to download file: Invalid file ID"
	MsgDownloadFailed  = "Could not download file. Please try again."
	MsgViewInvalid     = "Unable to view file: Invalid file ID"
	MsgDeleteInvalid   = "Unable to delete file: Invalid file ID"
	MsgDeleteConfirm   = "Are you sure you want to delete this file?"
	MsgDeleteFailed    = "Could not delete file. Please try again."
	MsgDeleteSucceeded = "File deleted successfully!"
)

// Notice is a transient banner message.
type Notice struct {
	Kind    NoticeKind
	Message string
}

// Success returns a success notice.
func Success(msg string) *Notice {
	return &Notice{Kind: NoticeSuccess, Message: msg}
}

// Failure returns an error notice.
func Failure(msg string) *Notice {
	return &Notice{Kind: NoticeError, Message: msg}
}

// IsError reports whether the notice belongs in the error banner.
func (n *Notice) IsError() bool {
	return n != nil && n.Kind == NoticeError
}

// Result is what the page shows after an operation: the file list, the active
// search term and an optional banner.
type Result struct {
	Files  []drive.FileRecord
	Query  string
	Notice *Notice

	// Cancelled is set when the user declined a delete confirmation
	Cancelled bool

	// Listed reports whether Files reflects a fresh list call
	Listed bool

	// LoadError is set when the list refresh after a successful upload or
	// delete failed. Notice then still reports the change itself.
	LoadError *Notice
}

// Confirmer asks the user to confirm a destructive action.
type Confirmer interface {
	Confirm(prompt string) bool
}

// ConfirmFunc adapts a function to Confirmer.
type ConfirmFunc func(prompt string) bool

// Confirm calls f.
func (f ConfirmFunc) Confirm(prompt string) bool {
	return f(prompt)
}

// Confirmed is a Confirmer whose answer is fixed, as when the user already
// answered on a confirmation page.
type Confirmed bool

// Confirm returns the fixed answer.
func (c Confirmed) Confirm(string) bool {
	return bool(c)
}
