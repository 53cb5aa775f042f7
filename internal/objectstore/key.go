package objectstore

import (
	"path"
	"strings"
	"time"
)

// dumpTimeLayout sorts lexicographically in time order.
const dumpTimeLayout = "20060102T150405.000Z"

// DumpKey builds the object key for one dump:
// <prefix>/<UTC timestamp>-<dumpID>.log. An empty prefix yields a bare name.
func DumpKey(prefix string, at time.Time, dumpID string) string {
	name := at.UTC().Format(dumpTimeLayout) + "-" + dumpID + ".log"
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return name
	}
	return path.Join(prefix, name)
}

// ListPrefix returns the prefix that matches every key DumpKey builds for prefix.
func ListPrefix(prefix string) string {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return ""
	}
	return prefix + "/"
}

// NormalizeKey strips an s3://bucket/ prefix to return a bucket-relative key.
// Non-S3 paths are returned unchanged.
func NormalizeKey(p string) string {
	if strings.HasPrefix(p, "s3://") {
		trimmed := strings.TrimPrefix(p, "s3://")
		parts := strings.SplitN(trimmed, "/", 2)
		if len(parts) == 2 {
			return parts[1]
		}
	}
	return p
}
