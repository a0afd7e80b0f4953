// Package artifact maps request paths to object-store keys. The mapping is an
// ordered list of rules evaluated first-match-wins; most rules match on a
// substring of the path so that clients using older URL shapes keep working.
package artifact
