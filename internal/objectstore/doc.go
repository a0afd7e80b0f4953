// Package objectstore defines the read-only blob store the dataset artifacts
// are served from. A Bucket maps flat keys such as "graph_data.json.gz" or
// "components/component_7.json.gz" to a streaming body plus its reported
// size. Two backends exist: a local directory (development, tests, mirrors)
// and any S3-compatible service reached through minio-go (Cloudflare R2 in
// production). Absence is reported with ErrNotFound and is a normal outcome.
package objectstore
