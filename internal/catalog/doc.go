// Package catalog loads the model → component index and answers lookup and
// search queries against it.
//
// The index is read from the object store (model_lookup first, then
// component_index), gunzipped, and kept in the edge cache for one epoch.
// Concurrent cold loads are allowed; Loader can optionally collapse them per
// process with singleflight.
package catalog
