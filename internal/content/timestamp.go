package content

import (
	"os"
	"time"
)

// TimestampOf converts a modification time to a DiskTimestamp.
func TimestampOf(t time.Time) DiskTimestamp {
	return DiskTimestamp(t.UnixMilli())
}

// ModTimestamp reads the modification time of absPath.
func ModTimestamp(absPath string) (DiskTimestamp, error) {
	info, err := os.Stat(absPath)
	if err != nil {
		return 0, err
	}
	return TimestampOf(info.ModTime()), nil
}
