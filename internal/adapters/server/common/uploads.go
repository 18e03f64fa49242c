package common

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hylla/morfo/internal/domain"
)

// ErrPathNotAllowed marks a file path rejected by the upload root policy.
var ErrPathNotAllowed = errors.New("path not allowed")

// uploadExt is the only file extension remote callers may upload.
const uploadExt = ".txt"

// ResolveFormInput maps one transport request into controller input. File
// paths from remote callers are confined to uploadRoot; an empty root
// disables file mode on the transport.
func ResolveFormInput(req AnalyzeRequest, mode domain.Mode, fallbackCredential, uploadRoot string) (domain.FormInput, error) {
	in := req.FormInput(fallbackCredential)
	if mode != domain.ModeFile {
		in.FilePath = ""
		return in, nil
	}
	if strings.TrimSpace(in.FilePath) == "" {
		return in, nil
	}
	resolved, err := ConfineUploadPath(uploadRoot, in.FilePath)
	if err != nil {
		return domain.FormInput{}, err
	}
	in.FilePath = resolved
	return in, nil
}

// ConfineUploadPath resolves raw against root and returns the real path of a
// .txt file inside root. Relative paths are taken relative to root. Symlinks
// are resolved before the containment check.
func ConfineUploadPath(root, raw string) (string, error) {
	root = strings.TrimSpace(root)
	if root == "" {
		return "", fmt.Errorf("file uploads are disabled (set serve.upload_root): %w", ErrPathNotAllowed)
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("file path is required: %w", ErrInvalidRequest)
	}
	if !strings.EqualFold(filepath.Ext(raw), uploadExt) {
		return "", fmt.Errorf("only %s files may be uploaded: %w", uploadExt, ErrPathNotAllowed)
	}

	absRoot, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("resolve upload root: %w", err)
	}
	realRoot, err := filepath.EvalSymlinks(absRoot)
	if err != nil {
		return "", fmt.Errorf("resolve upload root: %w", err)
	}
	candidate := raw
	if !filepath.IsAbs(candidate) {
		candidate = filepath.Join(realRoot, candidate)
	}
	candidate = filepath.Clean(candidate)
	if !within(realRoot, candidate) && !within(absRoot, candidate) {
		return "", fmt.Errorf("path %q is outside the upload root: %w", raw, ErrPathNotAllowed)
	}

	realCandidate, err := realPath(candidate)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("file %q: %w", raw, ErrNotFound)
		}
		return "", fmt.Errorf("resolve upload path: %w", err)
	}
	if !within(realRoot, realCandidate) || !strings.EqualFold(filepath.Ext(realCandidate), uploadExt) {
		return "", fmt.Errorf("path %q is outside the upload root: %w", raw, ErrPathNotAllowed)
	}
	info, err := os.Stat(realCandidate)
	if err != nil {
		return "", fmt.Errorf("stat upload path: %w", err)
	}
	if !info.Mode().IsRegular() {
		return "", fmt.Errorf("path %q is not a regular file: %w", raw, ErrPathNotAllowed)
	}
	return realCandidate, nil
}

// realPath returns the absolute, symlink-free form of path.
func realPath(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	return filepath.EvalSymlinks(abs)
}

// within reports whether path is root or lies beneath it.
func within(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}
