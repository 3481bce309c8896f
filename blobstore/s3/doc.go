// Package s3 stores blobs in Amazon S3.
//
//	store, err := s3.New(ctx, "my-bucket",
//	    s3.WithPrefix("snapshots/"),
//	    s3.WithRegion("eu-central-1"),
//	)
//
// Reads use ranged GETs, streaming writes use multipart uploads, and Put
// sends a CRC32C checksum for server-side validation. DDBCommitStore adds a
// DynamoDB commit log so that concurrent writers can publish a CURRENT
// pointer safely.
package s3
