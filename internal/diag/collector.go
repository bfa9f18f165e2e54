package diag

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"time"

	"doze/internal/fsutil"
	"doze/internal/gpu"
	"doze/internal/logging"
	"doze/internal/statestore"
	"doze/internal/wol"
)

// maxLogTailBytes caps how much of the agent log goes into the bundle.
const maxLogTailBytes = 512 * 1024

// Collector gathers bundle artifacts. Every collection is best-effort:
// a missing or unreadable source is logged and skipped, never fatal, so
// a half-broken system can still produce a (partial) bundle.
type Collector struct {
	cfg      *Config
	store    statestore.Store
	redactor *Redactor
	logger   *logging.Logger
}

// NewCollector builds a collector. store may be nil when the state store
// could not be opened; state collection is skipped then.
func NewCollector(cfg *Config, store statestore.Store, logger *logging.Logger) *Collector {
	return &Collector{
		cfg:      cfg,
		store:    store,
		redactor: NewRedactor(),
		logger:   logger,
	}
}

// CollectSystemInfo records host identity and versions.
func (c *Collector) CollectSystemInfo() map[string][]byte {
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}

	info := map[string]interface{}{
		"timestamp":    time.Now().UTC().Format(time.RFC3339),
		"host":         hostname,
		"doze_version": c.cfg.Version,
		"domain":       c.cfg.Domain,
		"state_dir":    fsutil.GetStateDir(fsutil.DefaultStateDir),
	}

	data, err := json.MarshalIndent(info, "", "  ")
	if err != nil {
		c.logger.Warn("diag.sysinfo.failed", "Could not marshal system info", map[string]interface{}{
			"error": err.Error(),
		})
		return nil
	}
	return map[string][]byte{"system_info.json": data}
}

// CollectConfig copies the present configuration files with secrets
// redacted.
func (c *Collector) CollectConfig() map[string][]byte {
	if !c.cfg.IncludeConfig {
		return nil
	}

	files := make(map[string][]byte)
	for _, path := range c.cfg.ConfigPaths {
		if path == "" {
			continue
		}
		content, err := os.ReadFile(filepath.Clean(path))
		if err != nil {
			if !os.IsNotExist(err) {
				c.logger.Warn("diag.config.unreadable", "Could not read config file", map[string]interface{}{
					"path":  path,
					"error": err.Error(),
				})
			}
			continue
		}
		files["config/"+filepath.Base(path)] = []byte(c.redactor.Redact(string(content)))
	}
	return files
}

// CollectState freezes the persisted records into the bundle. These are
// the primary debugging artifact: they show what the agent last saw and
// what the hooks last did.
func (c *Collector) CollectState() map[string][]byte {
	if !c.cfg.IncludeState || c.store == nil {
		return nil
	}

	files := make(map[string][]byte)

	snapshot, found, err := c.store.LoadSnapshot()
	c.addRecord(files, "state/snapshot.json", snapshot, found, err)
	tracking, found, err := c.store.LoadIdleTracking()
	c.addRecord(files, "state/idle_tracking.json", tracking, found, err)
	wake, found, err := c.store.LoadWakeRecord()
	c.addRecord(files, "state/last_wake.json", wake, found, err)
	intent, found, err := c.store.LoadHibernationIntent()
	c.addRecord(files, "state/hibernation_intent.json", intent, found, err)

	return files
}

// addRecord marshals one record into the file set. Missing records are
// skipped silently; unreadable ones are logged.
func (c *Collector) addRecord(files map[string][]byte, path string, rec interface{}, found bool, err error) {
	if err != nil {
		c.logger.Warn("diag.state.unreadable", "Could not read state record", map[string]interface{}{
			"record": path,
			"error":  err.Error(),
		})
		return
	}
	if !found {
		return
	}
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return
	}
	files[path] = data
}

// CollectLogs bundles the tail of the agent log file, when one is
// configured.
func (c *Collector) CollectLogs() map[string][]byte {
	if !c.cfg.IncludeLogs || c.cfg.LogFile == "" {
		return nil
	}

	tail, err := readTail(c.cfg.LogFile, maxLogTailBytes)
	if err != nil {
		if !os.IsNotExist(err) {
			c.logger.Warn("diag.logs.unreadable", "Could not read log file", map[string]interface{}{
				"path":  c.cfg.LogFile,
				"error": err.Error(),
			})
		}
		return nil
	}
	return map[string][]byte{"logs/" + filepath.Base(c.cfg.LogFile): tail}
}

// CollectWoL records the NIC wake readiness, the first thing to check
// when a host "never came back".
func (c *Collector) CollectWoL() map[string][]byte {
	detector := wol.NewDetector(c.logger)

	iface := c.cfg.WoLInterface
	if iface == "" {
		found, err := detector.DefaultInterface()
		if err != nil {
			c.logger.Warn("diag.wol.no_interface", "Could not determine an interface", map[string]interface{}{
				"error": err.Error(),
			})
			return nil
		}
		iface = found
	}

	status := detector.Detect(iface)
	data, err := json.MarshalIndent(status, "", "  ")
	if err != nil {
		return nil
	}
	return map[string][]byte{"wol_status.json": data}
}

// CollectGPU inventories host-visible GPUs. A passthrough card that
// shows up here never made it to the guest, which is usually the story
// behind "the VM is slow".
func (c *Collector) CollectGPU() map[string][]byte {
	report := gpu.NewSampler(c.logger).Snapshot()
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return nil
	}
	return map[string][]byte{"gpu_report.json": data}
}

// readTail returns up to limit bytes from the end of the file.
func readTail(path string, limit int64) ([]byte, error) {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, err
	}
	defer fsutil.CloseWithError(f.Close, nil, "diag log file")

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}

	if info.Size() > limit {
		if _, err := f.Seek(-limit, io.SeekEnd); err != nil {
			return nil, err
		}
	}
	return io.ReadAll(f)
}

// CalculateSHA256 returns the hex checksum recorded in the manifest.
func CalculateSHA256(data []byte) string {
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:])
}
