package scanner

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"runtime/debug"
	"sync"
	"time"

	"github.com/ethanolivertroy/plugin-vuln-checker/internal/logging"
	"github.com/ethanolivertroy/plugin-vuln-checker/internal/models"
	"github.com/ethanolivertroy/plugin-vuln-checker/internal/plugins"
	"github.com/ethanolivertroy/plugin-vuln-checker/internal/reporter"
	"github.com/ethanolivertroy/plugin-vuln-checker/internal/version"
	"go.uber.org/zap"
)

// ErrRootNotDir is returned when the scan root is not a directory.
var ErrRootNotDir = errors.New("scan root is not a directory")

// Scanner matches the plugins installed under a root directory against a
// threat list
type Scanner struct {
	config  *models.Config
	walker  plugins.Walker
	matcher version.Matcher
	writer  *reporter.FileWriter
	logger  *zap.SugaredLogger

	customFS bool
}

// Option configures a Scanner.
type Option func(*Scanner)

// WithFS scans fsys instead of the OS directory named by Config.Root.
// Config.Root is still used to build plugin paths and site names.
func WithFS(fsys fs.FS) Option {
	return func(s *Scanner) {
		s.walker.FS = fsys
		s.customFS = true
	}
}

// WithLogger sets the logger for scan progress and per-site failures.
func WithLogger(l *zap.SugaredLogger) Option {
	return func(s *Scanner) { s.logger = l }
}

// WithClock sets the clock used to name the report file.
func WithClock(now func() time.Time) Option {
	return func(s *Scanner) { s.writer.Now = now }
}

// WithHostname sets the host name source used to name the report file.
func WithHostname(hostname func() (string, error)) Option {
	return func(s *Scanner) { s.writer.Hostname = hostname }
}

// New creates a new Scanner with the given configuration
func New(config *models.Config, opts ...Option) (*Scanner, error) {
	if config == nil {
		config = models.DefaultConfig()
	}

	cmp, err := version.ParseScheme(config.VersionCompare)
	if err != nil {
		return nil, err
	}

	s := &Scanner{
		config:  config,
		walker:  plugins.NewWalker(config.Root),
		matcher: version.NewMatcher(cmp),
		writer:  reporter.NewFileWriter(config.OutputDir),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = logging.OrNop(s.logger)

	return s, nil
}

// Failure records a site or plugin that could not be evaluated.
type Failure struct {
	Site   string
	Plugin string // empty when the whole site or a directory failed
	Err    error
}

func (f Failure) Error() string {
	switch {
	case f.Plugin != "":
		return fmt.Sprintf("%s/%s: %v", f.Site, f.Plugin, f.Err)
	case f.Site != "":
		return fmt.Sprintf("%s: %v", f.Site, f.Err)
	default:
		return f.Err.Error()
	}
}

// Result is the outcome of one scan.
type Result struct {
	// Matches carries no particular order.
	Matches []models.MatchRecord

	// ReportPath is empty when no report was written.
	ReportPath string

	Sites    int
	Plugins  int
	Failures []Failure
}

// siteResult is what one site task hands to the collector.
type siteResult struct {
	plugins  int
	matches  []models.MatchRecord
	failures []Failure
	counted  bool // a site was scanned, as opposed to a walk error
}

// pluginResult is what one plugin task hands to its site task.
type pluginResult struct {
	matches []models.MatchRecord
	failure *Failure
}

// CheckVulnerabilities scans config.Root for plugins affected by threats and
// writes the report file when anything matched.
func CheckVulnerabilities(ctx context.Context, config *models.Config, threats []models.ThreatRecord, opts ...Option) (*Result, error) {
	s, err := New(config, opts...)
	if err != nil {
		return nil, err
	}
	return s.Scan(ctx, threats)
}

// Scan evaluates every plugin installation under the root against threats,
// then writes the report. Failures inside a site or plugin are logged and
// listed in Result.Failures without stopping the scan. A report write
// failure is returned together with the result.
func (s *Scanner) Scan(ctx context.Context, threats []models.ThreatRecord) (*Result, error) {
	if !s.customFS {
		info, err := os.Stat(s.config.Root)
		if err != nil {
			return nil, fmt.Errorf("failed to stat root %s: %w", s.config.Root, err)
		}
		if !info.IsDir() {
			return nil, fmt.Errorf("%w: %s", ErrRootNotDir, s.config.Root)
		}
	}

	start := time.Now()
	index := indexThreats(threats)
	s.logger.Infow("scan started", "root", s.config.Root, "threats", len(threats), "slugs", len(index))

	results := make(chan siteResult)
	collected := make(chan *Result)

	// single collector, so no task touches the aggregate
	go func() {
		res := &Result{}
		for r := range results {
			if r.counted {
				res.Sites++
			}
			res.Plugins += r.plugins
			res.Matches = append(res.Matches, r.matches...)
			res.Failures = append(res.Failures, r.failures...)
		}
		collected <- res
	}()

	sem := make(chan struct{}, max(1, s.config.Concurrency))
	var wg sync.WaitGroup

walk:
	for site, err := range s.walker.Sites(ctx) {
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			s.logger.Warnw("skipping unreadable directory", "error", err)
			results <- siteResult{failures: []Failure{{Err: err}}}
			continue
		}

		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
			break walk
		}

		wg.Add(1)
		go func(site plugins.Site) {
			defer wg.Done()
			defer func() { <-sem }()
			results <- s.scanSite(ctx, site, index)
		}(site)
	}

	wg.Wait()
	close(results)
	res := <-collected

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("scan cancelled: %w", err)
	}

	s.logger.Infow("scan complete",
		"sites", res.Sites,
		"plugins", res.Plugins,
		"matches", len(res.Matches),
		"failures", len(res.Failures),
		"duration", time.Since(start).Round(time.Millisecond),
	)

	path, err := s.writer.Write(res.Matches)
	if err != nil {
		s.logger.Errorw("report write failed", "error", err)
		return res, err
	}
	res.ReportPath = path
	if path == "" {
		s.logger.Info("no matches found")
	} else {
		s.logger.Infow("report generated", "path", path)
	}

	return res, nil
}

// scanSite evaluates one site. Each plugin installation runs in its own task
// and returns its matches to this site's collector.
func (s *Scanner) scanSite(ctx context.Context, site plugins.Site, index map[string][]models.ThreatRecord) (res siteResult) {
	res.counted = true

	defer func() {
		if r := recover(); r != nil {
			s.logger.Errorw("site scan panicked", "site", site.Name, "panic", r, "stack", string(debug.Stack()))
			res = siteResult{counted: true, failures: []Failure{{Site: site.Name, Err: fmt.Errorf("panic: %v", r)}}}
		}
	}()

	installs, err := s.walker.Installations(site)
	if err != nil {
		s.logger.Warnw("skipping site", "site", site.Name, "error", err)
		res.failures = append(res.failures, Failure{Site: site.Name, Err: err})
		return res
	}
	res.plugins = len(installs)
	s.logger.Debugw("scanning site", "site", site.Name, "plugins", len(installs))

	out := make(chan pluginResult)
	sem := make(chan struct{}, max(1, s.config.PluginConcurrency))
	var wg sync.WaitGroup

	go func() {
		defer close(out)
		for _, inst := range installs {
			if ctx.Err() != nil {
				break
			}
			sem <- struct{}{}
			wg.Add(1)
			go func(inst plugins.Installation) {
				defer wg.Done()
				defer func() { <-sem }()
				out <- s.checkPlugin(inst, index[inst.Slug])
			}(inst)
		}
		wg.Wait()
	}()

	for r := range out {
		res.matches = append(res.matches, r.matches...)
		if r.failure != nil {
			res.failures = append(res.failures, *r.failure)
		}
	}

	return res
}

// checkPlugin tests one installation against the threats sharing its slug.
// Each threat contributes at most one match.
func (s *Scanner) checkPlugin(inst plugins.Installation, threats []models.ThreatRecord) (res pluginResult) {
	if len(threats) == 0 {
		return res
	}

	defer func() {
		if r := recover(); r != nil {
			s.logger.Errorw("plugin check panicked", "site", inst.SiteName, "plugin", inst.Slug, "panic", r)
			res = pluginResult{failure: &Failure{Site: inst.SiteName, Plugin: inst.Slug, Err: fmt.Errorf("panic: %v", r)}}
		}
	}()

	installed, err := plugins.ExtractVersion(s.walker.FS, inst.Dir, s.config.DescriptorExt)
	if err != nil {
		s.logger.Warnw("skipping plugin", "site", inst.SiteName, "plugin", inst.Slug, "error", err)
		return pluginResult{failure: &Failure{Site: inst.SiteName, Plugin: inst.Slug, Err: err}}
	}
	inst.InstalledVersion = installed

	for _, t := range threats {
		if s.matcher.IsVulnerable(installed, t.AffectedVersions) {
			s.logger.Debugw("vulnerable plugin",
				"site", inst.SiteName,
				"plugin", inst.Slug,
				"version", installed,
				"cve", t.CVE,
			)
			res.matches = append(res.matches, models.NewMatch(inst.PluginInstallation, t))
		}
	}
	return res
}

// indexThreats groups threats by case-folded slug, keeping feed order.
func indexThreats(threats []models.ThreatRecord) map[string][]models.ThreatRecord {
	index := make(map[string][]models.ThreatRecord)
	for _, t := range threats {
		slug := plugins.Slug(t.Slug)
		if slug == "" {
			continue
		}
		index[slug] = append(index[slug], t)
	}
	return index
}
