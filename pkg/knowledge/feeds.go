// pkg/knowledge/feeds.go
package knowledge

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// FeedFetcher pulls a full snapshot from an external intelligence feed.
// The knowledge base periodically replaces its store with the fetched
// snapshot; real deployments plug in vendor- or TAXII-backed fetchers.
type FeedFetcher interface {
	Fetch(ctx context.Context) (*Snapshot, error)
}

// StaticFetcher is the built-in fetcher: a fixed seed set so the pipeline
// has baseline intelligence before any real feed is configured.
type StaticFetcher struct{}

// NewStaticFetcher returns the built-in seed fetcher.
func NewStaticFetcher() *StaticFetcher { return &StaticFetcher{} }

// Fetch returns the seed snapshot.
func (f *StaticFetcher) Fetch(ctx context.Context) (*Snapshot, error) {
	now := time.Now()
	meta := func(source string, confidence float64) EntryMeta {
		return EntryMeta{Timestamp: now, Source: source, Confidence: confidence}
	}

	return &Snapshot{
		Intel: []ThreatIntelligence{
			{
				EntryMeta:   meta("seed", 0.9),
				ThreatType:  "sql_injection",
				Category:    "web_attack",
				Indicators:  []string{"union select", "' or '1'='1", "drop table"},
				Description: "SQL injection attempts against web endpoints",
			},
			{
				EntryMeta:   meta("seed", 0.85),
				ThreatType:  "credential_stuffing",
				Category:    "account_takeover",
				Indicators:  []string{"failed login", "multiple attempts", "password spray"},
				Description: "Automated login attempts with breached credential lists",
			},
		},
		AttackPatterns: []AttackPattern{
			{
				EntryMeta:   meta("seed", 0.8),
				TechniqueID: "T1059",
				Name:        "Command and Scripting Interpreter",
				Tactic:      "execution",
				Indicators:  []string{"powershell", "/bin/sh", "cmd.exe"},
				Mitigations: []string{"restrict script interpreters", "application allowlisting"},
			},
			{
				EntryMeta:   meta("seed", 0.75),
				TechniqueID: "T1048",
				Name:        "Exfiltration Over Alternative Protocol",
				Tactic:      "exfiltration",
				Indicators:  []string{"unusual outbound", "dns tunnel", "large transfer"},
			},
		},
		Vulnerabilities: []Vulnerability{
			{
				EntryMeta:   meta("seed", 0.9),
				CVE:         "CVE-2021-44228",
				Severity:    "critical",
				CVSS:        10.0,
				Affected:    []string{"log4j 2.0", "log4j 2.14"},
				Description: "Log4Shell remote code execution",
			},
		},
		IOCs: []IOC{
			{
				EntryMeta: meta("seed", 0.95),
				IOCType:   IOCTypeIP,
				Value:     "203.0.113.66",
				FirstSeen: now.Add(-30 * 24 * time.Hour),
				LastSeen:  now,
			},
			{
				EntryMeta: meta("seed", 0.9),
				IOCType:   IOCTypeDomain,
				Value:     "cdn.malicious-example.net",
				FirstSeen: now.Add(-10 * 24 * time.Hour),
				LastSeen:  now,
			},
		},
		Profiles: []BehaviorProfile{
			{
				EntryMeta:  meta("seed", 0.7),
				Name:       "after_hours_exfiltration",
				Category:   "insider_threat",
				Indicators: []string{"unusual outbound", "off hours", "large transfer"},
			},
		},
	}, nil
}

// RefreshTask adapts Base.Refresh to the scheduler's Task interface so the
// knowledge base refreshes on an interval independent of request serving.
type RefreshTask struct {
	base *Base
}

// NewRefreshTask wraps the base for the interval scheduler.
func NewRefreshTask(base *Base) *RefreshTask { return &RefreshTask{base: base} }

func (t *RefreshTask) Name() string { return "knowledge_refresh" }

func (t *RefreshTask) Run(ctx context.Context) {
	if err := t.base.Refresh(ctx); err != nil {
		t.base.logger.Error().Err(err).Msg("Scheduled knowledge refresh failed")
	}
}

// FeedWatcher ingests intelligence snapshots dropped as JSON files into a
// feed directory. It complements the periodic refresh: drops take effect
// immediately instead of waiting for the next interval.
type FeedWatcher struct {
	base    *Base
	dir     string
	watcher *fsnotify.Watcher
	logger  zerolog.Logger
}

// NewFeedWatcher starts watching dir for *.json intelligence drops.
func NewFeedWatcher(logger zerolog.Logger, base *Base, dir string) (*FeedWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return nil, err
	}

	return &FeedWatcher{
		base:    base,
		dir:     dir,
		watcher: watcher,
		logger:  logger.With().Str("component", "feed_watcher").Logger(),
	}, nil
}

// Start processes watch events until the context is cancelled.
func (fw *FeedWatcher) Start(ctx context.Context) {
	go func() {
		defer fw.watcher.Close()
		for {
			select {
			case event, ok := <-fw.watcher.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
					continue
				}
				if !strings.HasSuffix(event.Name, ".json") {
					continue
				}
				fw.ingestFile(event.Name)
			case err, ok := <-fw.watcher.Errors:
				if !ok {
					return
				}
				fw.logger.Error().Err(err).Msg("Feed watcher error")
			case <-ctx.Done():
				fw.logger.Info().Msg("Feed watcher stopping")
				return
			}
		}
	}()
	fw.logger.Info().Str("dir", fw.dir).Msg("Feed watcher started")
}

func (fw *FeedWatcher) ingestFile(path string) {
	raw, err := os.ReadFile(path)
	if err != nil {
		fw.logger.Error().Err(err).Str("file", path).Msg("Failed to read feed file")
		return
	}

	var snapshot Snapshot
	if err := json.Unmarshal(raw, &snapshot); err != nil {
		fw.logger.Error().Err(err).Str("file", filepath.Base(path)).Msg("Malformed feed file ignored")
		return
	}

	added := fw.base.Ingest(&snapshot)
	fw.logger.Info().
		Str("file", filepath.Base(path)).
		Int("entries", added).
		Msg("Feed file ingested")
}
