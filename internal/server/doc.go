// Package server hosts the Fiber HTTP service: the middleware chain that
// stamps request ids, answers CORS preflights and records metrics, the
// /search and /lookup handlers, and the catch-all that resolves every other
// path to an artifact and hands it to the blob responder. Diagnostics under
// /-/ are registered separately by the routes subpackage.
package server
