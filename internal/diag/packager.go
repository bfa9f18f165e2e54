package diag

import (
	"archive/zip"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"time"

	"doze/internal/logging"
	"doze/internal/statestore"
)

// Packager assembles the bundle ZIP.
type Packager struct {
	cfg       *Config
	collector *Collector
	logger    *logging.Logger
}

// NewPackager builds a packager. store may be nil, see NewCollector.
func NewPackager(cfg *Config, store statestore.Store, logger *logging.Logger) *Packager {
	return &Packager{
		cfg:       cfg,
		collector: NewCollector(cfg, store, logger),
		logger:    logger,
	}
}

// CreatePackage collects everything, writes the ZIP and returns its
// path. Individual collections are best-effort; only an unwritable
// output fails the bundle.
func (p *Packager) CreatePackage() (string, error) {
	p.logger.Info("diag.package.start", "Creating support bundle", map[string]interface{}{
		"output": p.cfg.OutputPath,
	})

	files := make(map[string][]byte)
	merge(files, p.collector.CollectSystemInfo())
	merge(files, p.collector.CollectConfig())
	merge(files, p.collector.CollectState())
	merge(files, p.collector.CollectLogs())
	merge(files, p.collector.CollectWoL())
	merge(files, p.collector.CollectGPU())

	manifest := p.buildManifest(files)
	manifestJSON, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal manifest: %w", err)
	}
	files["diag_manifest.json"] = manifestJSON

	if err := p.writeZIP(files); err != nil {
		return "", err
	}

	p.logger.Info("diag.package.done", "Support bundle created", map[string]interface{}{
		"output":     p.cfg.OutputPath,
		"file_count": len(files),
	})
	return p.cfg.OutputPath, nil
}

func merge(dst, src map[string][]byte) {
	for path, content := range src {
		dst[path] = content
	}
}

// buildManifest lists every bundled file with size and checksum, sorted
// by path so two bundles of the same state diff cleanly.
func (p *Packager) buildManifest(files map[string][]byte) Manifest {
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}

	manifest := Manifest{
		Timestamp:   time.Now().UTC().Format(time.RFC3339),
		Host:        hostname,
		DozeVersion: p.cfg.Version,
		Files:       make([]ManifestFile, 0, len(files)),
	}
	for path, content := range files {
		manifest.Files = append(manifest.Files, ManifestFile{
			Path:      path,
			SizeBytes: int64(len(content)),
			SHA256:    CalculateSHA256(content),
		})
	}
	sort.Slice(manifest.Files, func(i, j int) bool {
		return manifest.Files[i].Path < manifest.Files[j].Path
	})
	return manifest
}

func (p *Packager) writeZIP(files map[string][]byte) error {
	zipFile, err := os.Create(p.cfg.OutputPath)
	if err != nil {
		return fmt.Errorf("create bundle: %w", err)
	}

	zipWriter := zip.NewWriter(zipFile)

	// Stable entry order inside the archive too.
	paths := make([]string, 0, len(files))
	for path := range files {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	for _, path := range paths {
		writer, err := zipWriter.Create(path)
		if err != nil {
			_ = zipWriter.Close()
			_ = zipFile.Close()
			return fmt.Errorf("add %s: %w", path, err)
		}
		if _, err := writer.Write(files[path]); err != nil {
			_ = zipWriter.Close()
			_ = zipFile.Close()
			return fmt.Errorf("write %s: %w", path, err)
		}
	}

	if err := zipWriter.Close(); err != nil {
		_ = zipFile.Close()
		return fmt.Errorf("finish bundle: %w", err)
	}
	return zipFile.Close()
}
