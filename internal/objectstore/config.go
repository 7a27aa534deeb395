package objectstore

// Config carries the connection parameters for an S3-compatible bucket.
// Endpoint is optional; when set the client talks to a non-AWS endpoint
// (e.g. MinIO) using path-style addressing instead of virtual-hosted-style.
type Config struct {
	BucketName    string
	Region        string
	AccessKey     string
	SecretKey     string
	Endpoint      string
	UseAccelerate bool
}
