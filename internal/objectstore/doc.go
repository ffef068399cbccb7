// Package objectstore relocates asset blobs between data source buckets on an
// S3-compatible object store when an asset changes data source.
//
// Relocator decorates the asset store used by the pipeline engine: it copies
// the asset's object into the destination bucket, repoints the asset, then
// removes the source copy. Assets without an object key, or data sources
// without a bucket, only have their pointer updated.
package objectstore
