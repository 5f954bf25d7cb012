// Package users manages the optional list of Zoom hosts whose meetings the
// batch sync processes
package users

import (
	"bufio"
	"fmt"
	"os"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/curtbushko/zoom-to-moodle/internal/email"
	"github.com/curtbushko/zoom-to-moodle/internal/logging"
)

// ActiveHostManager answers whether a host is enabled for the sync
type ActiveHostManager interface {
	// IsHostActive reports whether any of the identifiers (Zoom user id or
	// email) is listed. With no file configured every host is active.
	IsHostActive(identifiers ...string) bool
	GetActiveHosts() []string
	GetStats() HostStats
	Reload() error
	Close() error
}

// ActiveHostConfig holds configuration for the active host manager
type ActiveHostConfig struct {
	FilePath  string // empty disables filtering
	WatchFile bool
	Logger    logging.Logger
}

// HostStats provides statistics about the active host list
type HostStats struct {
	TotalHosts  int
	LastUpdated time.Time
	FilePath    string
	FileSize    int64
	IsWatching  bool
	Reloads     int
}

type activeHostManager struct {
	config    ActiveHostConfig
	logger    logging.Logger
	hosts     map[string]bool
	hostList  []string
	mutex     sync.RWMutex
	watcher   *fsnotify.Watcher
	stopWatch chan struct{}
	stopOnce  sync.Once
	stats     HostStats
}

// Zoom user ids are opaque url-safe tokens
var hostIDRegex = regexp.MustCompile(`^[A-Za-z0-9_-]{6,64}$`)

// NewActiveHostManager creates a manager, loading the file when one is configured
func NewActiveHostManager(config ActiveHostConfig) (ActiveHostManager, error) {
	logger := config.Logger
	if logger == nil {
		logger = logging.GetDefaultLogger()
	}

	manager := &activeHostManager{
		config:    config,
		logger:    logger,
		hosts:     make(map[string]bool),
		hostList:  make([]string, 0),
		stopWatch: make(chan struct{}),
		stats: HostStats{
			FilePath:   config.FilePath,
			IsWatching: config.WatchFile && config.FilePath != "",
		},
	}

	if config.FilePath == "" {
		return manager, nil
	}

	if err := manager.loadHostList(); err != nil {
		return nil, fmt.Errorf("failed to load initial host list: %w", err)
	}

	if config.WatchFile {
		if err := manager.setupFileWatcher(); err != nil {
			return nil, fmt.Errorf("failed to setup file watcher: %w", err)
		}
	}

	return manager, nil
}

func (m *activeHostManager) IsHostActive(identifiers ...string) bool {
	if m.config.FilePath == "" {
		return true
	}

	m.mutex.RLock()
	defer m.mutex.RUnlock()
	for _, id := range identifiers {
		if id != "" && m.hosts[normalize(id)] {
			return true
		}
	}
	return false
}

func (m *activeHostManager) GetActiveHosts() []string {
	if m.config.FilePath == "" {
		return []string{}
	}

	m.mutex.RLock()
	defer m.mutex.RUnlock()
	result := make([]string, len(m.hostList))
	copy(result, m.hostList)
	return result
}

func (m *activeHostManager) GetStats() HostStats {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return m.stats
}

func (m *activeHostManager) Reload() error {
	if m.config.FilePath == "" {
		return nil
	}
	return m.loadHostList()
}

func (m *activeHostManager) Close() error {
	if m.watcher == nil {
		return nil
	}
	var err error
	m.stopOnce.Do(func() {
		close(m.stopWatch)
		err = m.watcher.Close()
	})
	return err
}

// loadHostList reads one host per line. Blank lines and # comments are
// skipped, as are entries that are neither an email nor a Zoom user id.
func (m *activeHostManager) loadHostList() error {
	file, err := os.Open(m.config.FilePath)
	if err != nil {
		return fmt.Errorf("failed to open host list file: %w", err)
	}
	defer file.Close()

	fileInfo, err := file.Stat()
	if err != nil {
		return fmt.Errorf("failed to get file info: %w", err)
	}

	newHosts := make(map[string]bool)
	newHostList := make([]string, 0)

	scanner := bufio.NewScanner(file)
	lineNumber := 0
	for scanner.Scan() {
		lineNumber++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		if !email.IsValidEmail(line) && !hostIDRegex.MatchString(line) {
			m.logger.Warn("Skipping invalid host entry on line %d of %s: %q", lineNumber, m.config.FilePath, line)
			continue
		}

		host := normalize(line)
		if !newHosts[host] {
			newHosts[host] = true
			newHostList = append(newHostList, host)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("error reading host list file: %w", err)
	}

	m.mutex.Lock()
	m.hosts = newHosts
	m.hostList = newHostList
	m.stats.TotalHosts = len(newHostList)
	m.stats.LastUpdated = time.Now()
	m.stats.FileSize = fileInfo.Size()
	m.stats.Reloads++
	m.mutex.Unlock()

	return nil
}

func (m *activeHostManager) setupFileWatcher() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}

	if err := watcher.Add(m.config.FilePath); err != nil {
		watcher.Close()
		return fmt.Errorf("failed to watch file: %w", err)
	}

	m.watcher = watcher
	go m.watchFileChanges()
	return nil
}

func (m *activeHostManager) watchFileChanges() {
	for {
		select {
		case event, ok := <-m.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				// let the writer finish
				time.Sleep(10 * time.Millisecond)
				if err := m.loadHostList(); err != nil {
					m.logger.Warn("Failed to reload host list: %v", err)
					continue
				}
				m.logger.Info("Reloaded active host list (%d hosts)", m.GetStats().TotalHosts)
			}

		case err, ok := <-m.watcher.Errors:
			if !ok {
				return
			}
			m.logger.Warn("Host list watcher error: %v", err)

		case <-m.stopWatch:
			return
		}
	}
}

func normalize(id string) string {
	id = strings.TrimSpace(id)
	if strings.Contains(id, "@") {
		return email.Normalize(id)
	}
	return id
}
