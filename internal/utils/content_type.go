package utils

import (
	"mime"
	"path/filepath"
	"strings"
)

// DetectContentType guesses the MIME type of an upload from its file name.
func DetectContentType(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	if isTextLike(ext) {
		return "text/plain; charset=utf-8"
	}
	if mimeType := mime.TypeByExtension(ext); mimeType != "" {
		return mimeType
	}
	return "application/octet-stream"
}

// text extensions missing from mime's builtin table
func isTextLike(ext string) bool {
	switch ext {
	case ".txt", ".md", ".markdown", ".yaml", ".yml", ".toml", ".log", ".ini":
		return true
	}
	return false
}
