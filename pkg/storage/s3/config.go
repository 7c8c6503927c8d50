package s3

// Config holds S3 configuration
type Config struct {
	Endpoint        string `json:"endpoint"`      // Optional: for MinIO or LocalStack
	Region          string `json:"region"`        // AWS region
	Bucket          string `json:"bucket"`        // S3 bucket name
	AccessKeyID     string `json:"access_key_id"` // AWS credentials
	SecretAccessKey string `json:"secret_access_key"`
	ForcePathStyle  bool   `json:"force_path_style"` // For MinIO
	CheckBucket     bool   `json:"check_bucket"`     // HeadBucket on connect, needs s3:ListBucket
}
