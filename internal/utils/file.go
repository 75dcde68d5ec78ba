package utils

import (
	"crypto/md5"
	"fmt"
	"io"
	"os"
)

// FileHash calculates the MD5 hash of a file
func FileHash(filePath string) (string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return "", err
	}
	defer file.Close()

	return ReaderHash(file)
}

// ReaderHash calculates the MD5 hash of everything left in r
func ReaderHash(r io.Reader) (string, error) {
	hash := md5.New()
	if _, err := io.Copy(hash, r); err != nil {
		return "", err
	}
	return fmt.Sprintf("%x", hash.Sum(nil)), nil
}

// FileSize returns the size of a file, or zero if it cannot be read
func FileSize(filePath string) uint64 {
	info, err := os.Stat(filePath)
	if err != nil || info.IsDir() {
		return 0
	}
	return uint64(info.Size())
}
