// Package blob streams object-store entries back to HTTP clients.
//
// The default mode passes the stored gzip bytes through untouched with
// Content-Type application/gzip and no Content-Encoding, leaving
// decompression to the client. Small index artifacts can optionally be
// gunzipped on the way out.
package blob
