package sandbox

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
)

// MountConfig describes a host directory exposed to extensions under a name,
// such as "data" or "lua".
type MountConfig struct {
	Name         string
	Root         string
	ReadOnly     bool
	MaxFileSize  int64 // zero disables the limit
	MaxFiles     int   // zero disables the limit
	MaxTotalSize int64 // zero disables the limit
}

// Usage tracks how much of a mount is in use
type Usage struct {
	TotalBytes int64
	FileCount  int
}

// FileSystem routes extension file access to named mounts
type FileSystem struct {
	mounts map[string]*mount
}

type mount struct {
	cfg   MountConfig
	usage Usage
	mu    sync.RWMutex
}

// FileRequest is a file operation requested by an extension
type FileRequest struct {
	Path    string `json:"path"`
	Content string `json:"content,omitempty"`
}

// FileResponse is the outcome of a file operation
type FileResponse struct {
	Success bool     `json:"success"`
	Data    string   `json:"data,omitempty"`
	Files   []string `json:"files,omitempty"`
	Error   string   `json:"error,omitempty"`
}

// NewFileSystem creates the mount roots and measures their current usage
func NewFileSystem(mounts []MountConfig) (*FileSystem, error) {
	fs := &FileSystem{mounts: make(map[string]*mount, len(mounts))}

	for _, cfg := range mounts {
		if cfg.Name == "" || strings.ContainsAny(cfg.Name, `/\`) {
			return nil, fmt.Errorf("invalid mount name %q", cfg.Name)
		}
		if _, dup := fs.mounts[cfg.Name]; dup {
			return nil, fmt.Errorf("duplicate mount %q", cfg.Name)
		}
		root, err := filepath.Abs(cfg.Root)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve mount %s: %w", cfg.Name, err)
		}
		cfg.Root = root
		if err := os.MkdirAll(root, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create mount %s: %w", cfg.Name, err)
		}

		m := &mount{cfg: cfg}
		if err := m.measure(); err != nil {
			return nil, fmt.Errorf("failed to measure mount %s: %w", cfg.Name, err)
		}
		fs.mounts[cfg.Name] = m
	}

	return fs, nil
}

// Mounts returns the mount names in sorted order
func (fs *FileSystem) Mounts() []string {
	names := make([]string, 0, len(fs.mounts))
	for name := range fs.mounts {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Usage reports the current usage of a mount
func (fs *FileSystem) Usage(name string) (Usage, bool) {
	m, ok := fs.mounts[name]
	if !ok {
		return Usage{}, false
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.usage, true
}

// resolve splits "data/sub/file.txt" into the "data" mount and "sub/file.txt"
func (fs *FileSystem) resolve(userPath string) (*mount, string, error) {
	userPath = strings.TrimPrefix(filepath.ToSlash(userPath), "./")
	userPath = strings.TrimPrefix(userPath, "/")

	name, rel, _ := strings.Cut(userPath, "/")
	if name == "" {
		return nil, "", errors.New("invalid path: empty")
	}
	m, ok := fs.mounts[name]
	if !ok {
		return nil, "", fmt.Errorf("unknown mount '%s', available: %v", name, fs.Mounts())
	}
	return m, rel, nil
}

// ReadFile reads a file through its mount
func (fs *FileSystem) ReadFile(userPath string) (string, error) {
	m, rel, err := fs.resolve(userPath)
	if err != nil {
		return "", err
	}
	return m.read(rel)
}

// WriteFile writes a file through a writable mount
func (fs *FileSystem) WriteFile(userPath, content string) error {
	m, rel, err := fs.resolve(userPath)
	if err != nil {
		return err
	}
	if m.cfg.ReadOnly {
		return fmt.Errorf("mount '%s' is read-only", m.cfg.Name)
	}
	return m.write(rel, content)
}

// ListFiles lists a directory; subdirectories carry a trailing slash
func (fs *FileSystem) ListFiles(userPath string) ([]string, error) {
	m, rel, err := fs.resolve(userPath)
	if err != nil {
		return nil, err
	}
	return m.list(rel)
}

// DeleteFile removes a file from a writable mount
func (fs *FileSystem) DeleteFile(userPath string) error {
	m, rel, err := fs.resolve(userPath)
	if err != nil {
		return err
	}
	if m.cfg.ReadOnly {
		return fmt.Errorf("mount '%s' is read-only", m.cfg.Name)
	}
	return m.remove(rel)
}

// HandleReadFile processes a file_read request from an extension
func (fs *FileSystem) HandleReadFile(requestJSON []byte) []byte {
	return fs.handle(requestJSON, func(req FileRequest) (FileResponse, error) {
		data, err := fs.ReadFile(req.Path)
		return FileResponse{Data: data}, err
	})
}

// HandleWriteFile processes a file_write request from an extension
func (fs *FileSystem) HandleWriteFile(requestJSON []byte) []byte {
	return fs.handle(requestJSON, func(req FileRequest) (FileResponse, error) {
		return FileResponse{}, fs.WriteFile(req.Path, req.Content)
	})
}

// HandleListFiles processes a file_list request from an extension
func (fs *FileSystem) HandleListFiles(requestJSON []byte) []byte {
	return fs.handle(requestJSON, func(req FileRequest) (FileResponse, error) {
		files, err := fs.ListFiles(req.Path)
		return FileResponse{Files: files}, err
	})
}

// HandleDeleteFile processes a file_delete request from an extension
func (fs *FileSystem) HandleDeleteFile(requestJSON []byte) []byte {
	return fs.handle(requestJSON, func(req FileRequest) (FileResponse, error) {
		return FileResponse{}, fs.DeleteFile(req.Path)
	})
}

func (fs *FileSystem) handle(requestJSON []byte, op func(FileRequest) (FileResponse, error)) []byte {
	var req FileRequest
	if err := json.Unmarshal(requestJSON, &req); err != nil {
		return mustMarshal(FileResponse{Success: false, Error: "invalid request"})
	}
	resp, err := op(req)
	if err != nil {
		return mustMarshal(FileResponse{Success: false, Error: err.Error()})
	}
	resp.Success = true
	return mustMarshal(resp)
}

// path maps a mount-relative path onto disk, rejecting escapes from the root
func (m *mount) path(rel string) (string, error) {
	if rel == "" || rel == "." {
		return m.cfg.Root, nil
	}
	if !filepath.IsLocal(filepath.FromSlash(rel)) {
		return "", errors.New("path traversal not allowed")
	}
	return filepath.Join(m.cfg.Root, filepath.FromSlash(rel)), nil
}

func (m *mount) read(rel string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	full, err := m.path(rel)
	if err != nil {
		return "", err
	}
	content, err := os.ReadFile(full)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("file not found: %s", rel)
		}
		return "", fmt.Errorf("failed to read file: %w", err)
	}
	return string(content), nil
}

func (m *mount) write(rel, content string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	full, err := m.path(rel)
	if err != nil {
		return err
	}
	if full == m.cfg.Root {
		return errors.New("cannot write to mount root")
	}

	size := int64(len(content))
	if m.cfg.MaxFileSize > 0 && size > m.cfg.MaxFileSize {
		return fmt.Errorf("file size %d exceeds limit %d", size, m.cfg.MaxFileSize)
	}

	var existing int64
	exists := false
	if info, err := os.Stat(full); err == nil {
		if info.IsDir() {
			return fmt.Errorf("%s is a directory", rel)
		}
		existing, exists = info.Size(), true
	}
	if !exists && m.cfg.MaxFiles > 0 && m.usage.FileCount >= m.cfg.MaxFiles {
		return fmt.Errorf("file count limit reached: %d", m.cfg.MaxFiles)
	}
	total := m.usage.TotalBytes + size - existing
	if m.cfg.MaxTotalSize > 0 && total > m.cfg.MaxTotalSize {
		return fmt.Errorf("total size limit would be exceeded: %d > %d", total, m.cfg.MaxTotalSize)
	}

	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	if err := os.WriteFile(full, []byte(content), 0o644); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}

	if !exists {
		m.usage.FileCount++
	}
	m.usage.TotalBytes = total
	return nil
}

func (m *mount) list(rel string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	full, err := m.path(rel)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(full)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("directory not found: %s", rel)
		}
		return nil, fmt.Errorf("failed to read directory: %w", err)
	}

	files := make([]string, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() {
			name += "/"
		}
		files = append(files, name)
	}
	return files, nil
}

func (m *mount) remove(rel string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	full, err := m.path(rel)
	if err != nil {
		return err
	}
	info, err := os.Stat(full)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("file not found: %s", rel)
		}
		return err
	}
	if info.IsDir() {
		return fmt.Errorf("%s is a directory", rel)
	}
	if err := os.Remove(full); err != nil {
		return fmt.Errorf("failed to delete file: %w", err)
	}

	m.usage.FileCount--
	m.usage.TotalBytes -= info.Size()
	return nil
}

func (m *mount) measure() error {
	return filepath.WalkDir(m.cfg.Root, func(_ string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		m.usage.FileCount++
		m.usage.TotalBytes += info.Size()
		return nil
	})
}
