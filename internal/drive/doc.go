// Package drive provides a client for the Google Drive REST v3 API, scoped to
// what the file manager needs.
//
// Operations:
//   - Listing the 50 most recently modified files, optionally filtered by name
//   - Uploading a file as a single multipart/related POST
//   - Downloading file content (metadata first, for the filename)
//   - Deleting files
//   - Validating an access token through about.get
//
// A Client is bound to one session's token source. Requests are authorized by
// the oauth2 HTTP client, so a refreshed session token is picked up on the next
// call without rebuilding the client.
//
// Upload bodies use a fixed boundary and carry the content base64-encoded:
//
//	--<MultipartBoundary>
//	Content-Type: application/json
//
//	{"mimeType":"text/plain","name":"notes.txt"}
//	--<MultipartBoundary>
//	Content-Transfer-Encoding: base64
//	Content-Type: text/plain
//
//	aGVsbG8=
//	--<MultipartBoundary>--
//
// Example usage:
//
//	client, err := drive.NewClient(ctx, session.TokenSource(), drive.Options{})
//	if err != nil {
//	    return err
//	}
//	files, err := client.ListFiles(ctx, "report")
package drive
