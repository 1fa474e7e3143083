// Package pathutil provides path helpers for item folders.
package pathutil

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// JoinAbsPath safely joins a base path with another path (which could be absolute or relative).
// If the second path is absolute and starts with the base path, it returns the second path as is.
// Otherwise, it joins them normally.
func JoinAbsPath(basePath, otherPath string) string {
	if basePath == "" {
		return otherPath
	}

	// Ensure consistent slashes for comparison
	cleanBase := strings.TrimSuffix(filepath.ToSlash(basePath), "/")
	cleanOther := filepath.ToSlash(otherPath)

	if filepath.IsAbs(cleanOther) && (cleanOther == cleanBase || strings.HasPrefix(cleanOther, cleanBase+"/")) {
		return filepath.FromSlash(cleanOther)
	}

	relOther := strings.TrimPrefix(cleanOther, "/")
	return filepath.Join(basePath, filepath.FromSlash(relOther))
}

// FolderPath returns the on-disk folder of an item: the folder name joined
// onto its root. It is empty when either part is missing.
func FolderPath(rootPath, folderName string) string {
	if rootPath == "" || folderName == "" {
		return ""
	}
	return JoinAbsPath(rootPath, folderName)
}

// Sibling returns the path of name next to path.
func Sibling(path, name string) string {
	return filepath.Join(filepath.Dir(path), name)
}

// CheckFileDirectoryWritable checks if the directory containing a file path is writable.
func CheckFileDirectoryWritable(filePath string, fileType string) error {
	if filePath == "" {
		return nil // Empty path is valid for optional files like the log file
	}

	dir := filepath.Dir(filePath)
	if dir == "" || dir == "." {
		dir = "./"
	}

	if err := checkDirectoryWritable(dir); err != nil {
		return fmt.Errorf("%s file directory check failed: %w", fileType, err)
	}

	return nil
}

// checkDirectoryWritable checks that a directory exists and is writable,
// creating it when missing.
func checkDirectoryWritable(path string) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		absPath = path
	}

	info, err := os.Stat(absPath)
	switch {
	case os.IsNotExist(err):
		if err := os.MkdirAll(absPath, 0755); err != nil {
			return fmt.Errorf("directory %s does not exist and cannot be created: %w", absPath, err)
		}
	case err != nil:
		return fmt.Errorf("cannot access directory %s: %w", absPath, err)
	case !info.IsDir():
		return fmt.Errorf("path %s exists but is not a directory", absPath)
	}

	file, err := os.CreateTemp(absPath, ".metadatarr-write-test-*")
	if err != nil {
		return fmt.Errorf("directory %s is not writable: %w", absPath, err)
	}
	name := file.Name()
	file.Close()
	os.Remove(name)

	return nil
}
