// Package http exposes hosted documents over REST.
//
// Every route that names a document resolves it through the document
// manager; node keys in paths are the stable "{index}v{generation}" strings
// returned by layout and node listings. Guest failures map to HTTP status
// codes in respond.go.
package http
