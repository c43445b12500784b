// Package blob routes document source references to the blob store that
// can read them.
//
// References are matched by scheme:
//   - file:///path or a bare relative path: filesystem
//   - http:// and https://: HTTP download
//   - gs://bucket/object: Google Cloud Storage
//   - gdrive://files/<id>: Google Drive
package blob
