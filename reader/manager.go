package reader

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/spf13/afero"
	"github.com/tliron/commonlog"
	"gopkg.in/ini.v1"

	"github.com/tsawler/upkg/core"
	"github.com/tsawler/upkg/filecache"
	"github.com/tsawler/upkg/format"
	"github.com/tsawler/upkg/internal/textenc"
	"github.com/tsawler/upkg/object"
	"github.com/tsawler/upkg/resolver"
)

var log = commonlog.GetLogger("upkg.reader")

// DefaultLanguage is the extension of localisation files.
const DefaultLanguage = "int"

// Folder is a directory below the base directory and the glob pattern of
// the package files it holds.
type Folder struct {
	Dir     string
	Pattern string
}

// DefaultFolders is the conventional layout of a game directory, one
// folder per package kind.
var DefaultFolders = defaultFolders()

func defaultFolders() []Folder {
	var folders []Folder
	for _, k := range format.Kinds() {
		folders = append(folders, Folder{Dir: k.Folder(), Pattern: "*" + k.Extension()})
	}
	return folders
}

// StreamCache hands out open files by path. filecache.Cache is the
// default implementation.
type StreamCache interface {
	Get(path string) (afero.File, error)
	Close() error
}

// Manager maps package names to files below a base directory and owns
// every Package it opens. All public methods of Manager and Package
// serialise on one lock.
type Manager struct {
	mu sync.Mutex

	fs        afero.Fs
	baseDir   string
	streams   StreamCache
	cacheSize int
	natives   func(*Registrar) error
	resolver  *resolver.Resolver
	language  string
	folders   []Folder

	paths    map[string]string // folded package name -> file
	maps     []string
	packages map[string]*Package

	delayDepth int
	pending    []postLoad

	iniMu    sync.Mutex
	iniFiles map[string]*ini.File
}

// Option configures a Manager.
type Option func(*Manager)

// WithFs sets the filesystem packages are read from. The default is the
// operating system's.
func WithFs(fs afero.Fs) Option {
	return func(m *Manager) {
		m.fs = fs
	}
}

// WithStreamCache replaces the open-file cache.
func WithStreamCache(c StreamCache) Option {
	return func(m *Manager) {
		m.streams = c
	}
}

// WithStreamCacheSize sets how many package files stay open.
func WithStreamCacheSize(n int) Option {
	return func(m *Manager) {
		m.cacheSize = n
	}
}

// WithNatives sets the hook that registers native classes on every
// package as it is opened.
func WithNatives(fn func(*Registrar) error) Option {
	return func(m *Manager) {
		m.natives = fn
	}
}

// WithLanguage sets the extension of the localisation files Localize
// reads, "int" by default.
func WithLanguage(ext string) Option {
	return func(m *Manager) {
		m.language = strings.TrimPrefix(ext, ".")
	}
}

// WithMaxDepth bounds import group chains and class chains.
func WithMaxDepth(depth int) Option {
	return func(m *Manager) {
		m.resolver = resolver.New(resolver.WithMaxDepth(depth))
	}
}

// WithFolders sets the folders ScanDefaultFolders scans.
func WithFolders(folders []Folder) Option {
	return func(m *Manager) {
		m.folders = folders
	}
}

// New creates a manager for the game directory baseDir. No folder is
// scanned until ScanFolder or ScanDefaultFolders is called.
func New(baseDir string, opts ...Option) (*Manager, error) {
	m := &Manager{
		baseDir:   baseDir,
		cacheSize: filecache.DefaultCapacity,
		language:  DefaultLanguage,
		folders:   DefaultFolders,
		paths:     make(map[string]string),
		packages:  make(map[string]*Package),
		iniFiles:  make(map[string]*ini.File),
	}
	for _, opt := range opts {
		opt(m)
	}

	if m.fs == nil {
		m.fs = afero.NewOsFs()
	}
	if m.resolver == nil {
		m.resolver = resolver.New()
	}
	if m.streams == nil {
		c, err := filecache.New(m.fs, m.cacheSize)
		if err != nil {
			return nil, err
		}
		m.streams = c
	}
	return m, nil
}

// BaseDir returns the game directory.
func (m *Manager) BaseDir() string { return m.baseDir }

// Fs returns the filesystem the manager reads from.
func (m *Manager) Fs() afero.Fs { return m.fs }

// Resolver returns the resolver used for import chains.
func (m *Manager) Resolver() *resolver.Resolver { return m.resolver }

func packageKey(name string) string {
	base := filepath.Base(name)
	return textenc.Fold(strings.TrimSuffix(base, filepath.Ext(base)))
}

// ScanFolder registers every file in dir (relative to the base directory)
// matching pattern. A later scan overrides an earlier file of the same
// name. Files in the Maps folder are also listed by Maps. It returns the
// number of files found.
func (m *Manager) ScanFolder(dir, pattern string) (int, error) {
	matches, err := afero.Glob(m.fs, filepath.Join(m.baseDir, dir, pattern))
	if err != nil {
		return 0, fmt.Errorf("failed to scan %s: %w", dir, err)
	}
	sort.Strings(matches)

	m.mu.Lock()
	defer m.mu.Unlock()

	isMaps := textenc.Equal(dir, format.Map.Folder())
	for _, path := range matches {
		key := packageKey(path)
		if _, seen := m.paths[key]; !seen && isMaps {
			base := filepath.Base(path)
			m.maps = append(m.maps, strings.TrimSuffix(base, filepath.Ext(base)))
		}
		m.paths[key] = path
	}
	log.Infof("scanned %s: %d packages", filepath.Join(dir, pattern), len(matches))
	return len(matches), nil
}

// ScanDefaultFolders scans the configured folders, DefaultFolders unless
// WithFolders was given.
func (m *Manager) ScanDefaultFolders() (int, error) {
	total := 0
	for _, f := range m.folders {
		n, err := m.ScanFolder(f.Dir, f.Pattern)
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

// Maps returns the names of the scanned map files.
func (m *Manager) Maps() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.maps...)
}

// Packages returns the names of every scanned package, sorted.
func (m *Manager) Packages() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	names := make([]string, 0, len(m.paths))
	for _, path := range m.paths {
		base := filepath.Base(path)
		names = append(names, strings.TrimSuffix(base, filepath.Ext(base)))
	}
	sort.Slice(names, func(i, j int) bool {
		return textenc.Fold(names[i]) < textenc.Fold(names[j])
	})
	return names
}

// PackagePath returns the scanned file path of the named package.
func (m *Manager) PackagePath(name string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	path, ok := m.paths[packageKey(name)]
	return path, ok
}

// Loaded returns the packages opened so far.
func (m *Manager) Loaded() []*Package {
	m.mu.Lock()
	defer m.mu.Unlock()

	pkgs := make([]*Package, 0, len(m.packages))
	for _, p := range m.packages {
		pkgs = append(pkgs, p)
	}
	sort.Slice(pkgs, func(i, j int) bool { return pkgs[i].path < pkgs[j].path })
	return pkgs
}

// GetPackage returns the package called name, ignoring case, reading its
// tables on first use. Packages are never evicted.
func (m *Manager) GetPackage(name string) (*Package, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.getPackageLocked(name)
}

func (m *Manager) getPackageLocked(name string) (*Package, error) {
	key := packageKey(name)
	if p, ok := m.packages[key]; ok {
		return p, nil
	}
	path, ok := m.paths[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", core.ErrUnknownPackage, name)
	}

	p := newPackage(m, path)
	if err := p.readTables(); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	if m.natives != nil {
		if err := m.natives(&Registrar{p: p}); err != nil {
			return nil, fmt.Errorf("failed to register natives on %s: %w", p.name, err)
		}
	}

	m.packages[key] = p
	log.Infof("opened %s (version %d, %d names, %d imports, %d exports)",
		p.name, p.header.Version, len(p.names), len(p.imports), len(p.exports))
	return p, nil
}

// GetStream returns the open file behind p.
func (m *Manager) GetStream(p *Package) (afero.File, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.getStreamLocked(p)
}

func (m *Manager) getStreamLocked(p *Package) (afero.File, error) {
	return m.streams.Get(p.path)
}

// FindObject resolves a dotted path "Package.Object" or
// "Package.Group.Object" to an object of class. An empty class matches
// any class.
func (m *Manager) FindObject(class, path string) (object.Object, error) {
	parts := strings.Split(path, ".")
	if len(parts) < 2 {
		return nil, fmt.Errorf("%w: %q is not a qualified path", core.ErrUnknownObject, path)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	p, err := m.getPackageLocked(parts[0])
	if err != nil {
		return nil, err
	}
	group := ""
	if len(parts) > 2 {
		group = parts[len(parts)-2]
	}
	ref := p.findObjectReferenceLocked(class, parts[len(parts)-1], group)
	if ref.IsNull() {
		return nil, fmt.Errorf("%w: %s %s", core.ErrUnknownObject, class, path)
	}
	return p.getUObjectLocked(ref)
}

// postLoad is an object waiting for post-load processing and the export
// slot it occupies.
type postLoad struct {
	pkg   *Package
	index int
	obj   object.PostLoader
}

// setDelayLoadActive marks the start of a resolution. The returned
// function ends it with the resolution's error. When the outermost
// resolution succeeds the queued objects are post-loaded; when it fails
// they are marked failed in their slots.
func (m *Manager) setDelayLoadActive() func(failed error) error {
	m.delayDepth++
	return func(failed error) error {
		m.delayDepth--
		if m.delayDepth > 0 {
			return nil
		}
		if failed != nil {
			m.abandonPostLoad(failed)
			return nil
		}
		return m.drainPostLoad()
	}
}

func (m *Manager) queuePostLoad(p *Package, index int, pl object.PostLoader) {
	m.pending = append(m.pending, postLoad{pkg: p, index: index, obj: pl})
}

func (m *Manager) drainPostLoad() error {
	if len(m.pending) > 0 {
		log.Debugf("post-loading %d objects", len(m.pending))
	}
	// Loads started by PostLoad queue behind the current batch.
	m.delayDepth++
	defer func() { m.delayDepth-- }()
	for len(m.pending) > 0 {
		e := m.pending[0]
		m.pending = m.pending[1:]
		if err := e.obj.PostLoad(); err != nil {
			err = fmt.Errorf("post-load of %s failed: %w", e.pkg.exportLabelLocked(e.index), err)
			e.pkg.loadErrs[e.index] = err
			m.abandonPostLoad(err)
			return err
		}
	}
	m.pending = nil
	return nil
}

// abandonPostLoad fails every queued object with cause, so none of them
// is handed out without its post-load pass.
func (m *Manager) abandonPostLoad(cause error) {
	for _, e := range m.pending {
		e.pkg.loadErrs[e.index] = fmt.Errorf("post-load of %s abandoned: %w", e.pkg.exportLabelLocked(e.index), cause)
	}
	if len(m.pending) > 0 {
		log.Warningf("abandoned post-load of %d objects: %s", len(m.pending), cause)
	}
	m.pending = nil
}

// Close closes every open package file. Packages and their objects stay
// usable; files are reopened on demand.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.streams.Close()
}
