// Package source is the default row producer: it opens line-oriented input
// from local files, stdin or object storage, decompresses it when the name
// says so, and splits each line into fields.
//
// Supported locations:
//
//	path/to/file.tsv       local file ("-" reads standard input)
//	file:///abs/file.tsv   local file through gocloud fileblob
//	s3://bucket/key        AWS S3 or an S3-compatible store (?region=, ?endpoint=)
//	gs://bucket/key        Google Cloud Storage
//	mem://bucket/key       in-process memblob bucket
//
// Names ending in .zst or .gz are decompressed transparently.
package source
