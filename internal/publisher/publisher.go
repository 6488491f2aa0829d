// Package publisher persists rendered bundles to the workspace directory
// and maps them to the three URLs a client needs: the local path, the
// served HTTP root, and the zip download.
package publisher

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zip"
	"go.uber.org/zap"

	"github.com/forgeworks/appforge/internal/domain/renderer"
	"github.com/forgeworks/appforge/internal/generator"
	"github.com/forgeworks/appforge/internal/infrastructure/config"
	"github.com/forgeworks/appforge/internal/infrastructure/logging"
)

// Result locates one published app.
type Result struct {
	AppDir      string // absolute filesystem path of the bundle
	AppURL      string // file path shown to local tooling
	HTTPURL     string // served root, ends with /
	DownloadURL string // zip archive of the bundle
}

// Publisher writes bundles under a single workspace root. Publishing the
// same app again replaces its files in place; the zip is rebuilt from
// scratch each time so stale artifacts never linger in the archive.
type Publisher struct {
	root    string
	baseURL string
	log     *logging.Logger
}

// New ensures the workspace root exists and returns a Publisher.
func New(workspace config.WorkspaceConfig, server config.ServerConfig, log *logging.Logger) (*Publisher, error) {
	root, err := filepath.Abs(workspace.Dir)
	if err != nil {
		return nil, fmt.Errorf("resolve workspace dir: %w", err)
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create workspace dir: %w", err)
	}
	return &Publisher{
		root:    root,
		baseURL: strings.TrimRight(server.BaseURL, "/"),
		log:     log,
	}, nil
}

// Root returns the workspace root served under /apps/.
func (p *Publisher) Root() string {
	return p.root
}

// Publish writes the bundle plus any scaffold artifacts for the named app
// and returns its URLs.
func (p *Publisher) Publish(appName string, bundle *renderer.Bundle, extras []generator.Artifact) (Result, error) {
	slug := renderer.Slug(appName)
	dir := filepath.Join(p.root, slug)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Result{}, fmt.Errorf("create app dir: %w", err)
	}

	var paths []string
	for _, f := range bundle.Files {
		if err := p.writeFile(dir, f.Path, f.Content); err != nil {
			return Result{}, err
		}
		paths = append(paths, f.Path)
	}
	for _, a := range extras {
		if err := p.writeFile(dir, a.Path, a.Content); err != nil {
			return Result{}, err
		}
		paths = append(paths, a.Path)
	}

	zipPath := filepath.Join(p.root, slug+".zip")
	if err := p.archive(dir, paths, zipPath); err != nil {
		return Result{}, err
	}

	p.log.Info("published app",
		zap.String("app", slug),
		zap.Int("files", len(paths)))

	return Result{
		AppDir:      dir,
		AppURL:      filepath.Join(dir, "index.html"),
		HTTPURL:     fmt.Sprintf("%s/apps/%s/", p.baseURL, slug),
		DownloadURL: fmt.Sprintf("%s/apps/%s.zip", p.baseURL, slug),
	}, nil
}

// writeFile places one relative path under dir, rejecting traversal.
func (p *Publisher) writeFile(dir, rel string, content []byte) error {
	clean := filepath.Clean(filepath.FromSlash(rel))
	if clean == "." || filepath.IsAbs(clean) || strings.HasPrefix(clean, "..") {
		return fmt.Errorf("unsafe artifact path %q", rel)
	}
	target := filepath.Join(dir, clean)
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("create artifact dir for %s: %w", rel, err)
	}
	if err := os.WriteFile(target, content, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", rel, err)
	}
	return nil
}

// archive zips the given relative paths from dir into zipPath. Paths use
// forward slashes inside the archive regardless of host OS.
func (p *Publisher) archive(dir string, paths []string, zipPath string) error {
	out, err := os.Create(zipPath)
	if err != nil {
		return fmt.Errorf("create archive: %w", err)
	}
	defer out.Close()

	w := zip.NewWriter(out)
	for _, rel := range paths {
		entry, err := w.Create(filepath.ToSlash(rel))
		if err != nil {
			w.Close()
			return fmt.Errorf("archive entry %s: %w", rel, err)
		}
		data, err := os.ReadFile(filepath.Join(dir, filepath.FromSlash(rel)))
		if err != nil {
			w.Close()
			return fmt.Errorf("read %s for archive: %w", rel, err)
		}
		if _, err := entry.Write(data); err != nil {
			w.Close()
			return fmt.Errorf("archive write %s: %w", rel, err)
		}
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("finish archive: %w", err)
	}
	return nil
}
