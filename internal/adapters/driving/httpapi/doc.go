// Package httpapi exposes the indexing, retrieval and query services over HTTP.
//
// Processing routes answer 202 and hand the work to a background task runner;
// the document's status route reports how the round ended. Query routes
// identify the caller through the X-User-ID header.
package httpapi
