package model

import (
	"path/filepath"
	"strings"
	"time"
)

// File is the metadata of an uploaded document. It is written once per
// submission and never updated.
type File struct {
	ID        int64     `json:"file_id"`
	UserID    int64     `json:"user_id"`
	FileName  string    `json:"file_name"`
	FilePath  string    `json:"file_path"`
	FileType  string    `json:"file_type"`
	CreatedAt time.Time `json:"created_at"`
}

// FileMeta is what the file picker hands over: a local path, a display name
// and an optional type.
type FileMeta struct {
	LocalPath string `json:"local_path"`
	FileName  string `json:"file_name"`
	FileType  string `json:"file_type"`
}

// TypeFromName returns the lowercase extension of name without the dot.
func TypeFromName(name string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
}
