package configuration

import "strings"

// Record is one configuration document fetched from the blob store. All
// fields are set by NewRecord; records are handed out by value.
type Record struct {
	ObjectName string `json:"object_name"`
	Extension  string `json:"extension"`
	BucketName string `json:"bucket_name"`
	ObjectKey  string `json:"object_key"`
	Prefix     string `json:"prefix"`
	Body       string `json:"body"`
}

// NewRecord derives the name, extension and prefix of key and combines them
// with the bucket and fetched body.
//
//	dir/file1.json -> name "file1.json", extension "json", prefix "dir/"
//	file2          -> name "file2", extension "", prefix ""
func NewRecord(bucket, key, body string) Record {
	name, prefix := splitKey(key)

	return Record{
		ObjectName: name,
		Extension:  extension(name),
		BucketName: bucket,
		ObjectKey:  key,
		Prefix:     prefix,
		Body:       body,
	}
}

// splitKey returns the final path segment and everything before it, with
// leading separators removed from the prefix.
func splitKey(key string) (name, prefix string) {
	idx := strings.LastIndexAny(key, `/\`)
	if idx < 0 {
		return key, ""
	}
	return key[idx+1:], strings.TrimLeft(key[:idx+1], `/\`)
}

func extension(name string) string {
	idx := strings.LastIndexByte(name, '.')
	if idx < 0 {
		return ""
	}
	return name[idx+1:]
}
