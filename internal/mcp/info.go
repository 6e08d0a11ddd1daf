package mcp

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/a3tai/mcp-form-filler/internal/descriptions"
)

const (
	maxListedFiles  = 10
	maxScannedFiles = 500
)

// formFileExts are the directory entries worth listing
var formFileExts = map[string]bool{
	".pdf":  true,
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".yaml": true,
	".yml":  true,
	".json": true,
}

type fileInfo struct {
	Name string
	Path string
	Size int64
}

type serverInfo struct {
	ServerName    string
	Version       string
	Directory     string
	Template      string
	TemplatePages int
	Background    string
	FieldsSource  string
	FieldCount    int
	DispatchURL   string
	MaxFileSize   int64
	MaxPayload    int
	Sessions      int
	Files         []fileInfo
	Tools         []string
}

func (s *Server) collectServerInfo(ctx context.Context) (*serverInfo, error) {
	files, err := listFormFiles(s.paths.Root(), maxScannedFiles)
	if err != nil {
		return nil, err
	}

	info := &serverInfo{
		ServerName:   s.config.ServerName,
		Version:      s.config.Version,
		Directory:    s.paths.Root(),
		Template:     s.config.Template,
		Background:   s.config.Background,
		FieldsSource: "built-in",
		FieldCount:   s.service.Registry().Len(),
		DispatchURL:  s.config.DispatchURL,
		MaxFileSize:  s.config.MaxFileSize,
		MaxPayload:   s.service.Compressor().Ceiling(),
		Sessions:     len(s.service.Sessions()),
		Files:        files,
		Tools:        descriptions.GetAllToolNames(),
	}
	if s.config.FieldsFile != "" {
		info.FieldsSource = s.config.FieldsFile
	}
	if info.Template == "" {
		info.Template = "none (blank A4 page)"
	}
	if pages, err := s.service.TemplatePages(ctx); err == nil {
		info.TemplatePages = len(pages)
	}
	return info, nil
}

// listFormFiles lists PDFs, images and field files directly inside dir,
// skipping hidden entries and symlinks
func listFormFiles(dir string, limit int) ([]fileInfo, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot read form directory: %w", err)
	}

	var files []fileInfo
	for _, entry := range entries {
		if len(files) >= limit {
			break
		}
		name := entry.Name()
		if strings.HasPrefix(name, ".") || !entry.Type().IsRegular() {
			continue
		}
		if !formFileExts[strings.ToLower(filepath.Ext(name))] {
			continue
		}
		fi, err := entry.Info()
		if err != nil {
			continue
		}
		files = append(files, fileInfo{
			Name: name,
			Path: filepath.Join(dir, name),
			Size: fi.Size(),
		})
	}

	return files, nil
}
