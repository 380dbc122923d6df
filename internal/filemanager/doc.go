// Package filemanager orchestrates the user-facing Drive operations: list,
// search, upload, download, view and delete.
//
// Every operation first asks the Authenticator whether the session may call
// Drive; a session without a token never reaches the Drive client. Results
// carry the file list to display and a banner Notice. Upload and Delete
// refresh the list exactly once after they succeed.
package filemanager
