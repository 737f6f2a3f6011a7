package reader

import (
	"encoding/binary"
	"errors"
	"fmt"
	"path/filepath"
	"reflect"
	"testing"
	"unicode/utf16"

	"github.com/spf13/afero"

	"github.com/tsawler/upkg/core"
	"github.com/tsawler/upkg/filecache"
	"github.com/tsawler/upkg/internal/pkgtest"
)

func TestGetPackageIgnoresCase(t *testing.T) {
	fs := afero.NewMemMapFs()
	coreBuilder().Write(t, fs, systemPath("Core"))
	m := newTestManager(t, fs)

	p := mustPackage(t, m, "Core")
	for _, name := range []string{"core", "CORE", "Core.u", "/elsewhere/core.U"} {
		if got := mustPackage(t, m, name); got != p {
			t.Errorf("GetPackage(%q) returned a different package", name)
		}
	}
	if p.Name() != "Core" {
		t.Errorf("Name() = %q, want Core", p.Name())
	}
	if p.Version() != 69 {
		t.Errorf("Version() = %d, want 69", p.Version())
	}

	if _, err := m.GetPackage("Engine"); !errors.Is(err, core.ErrUnknownPackage) {
		t.Errorf("expected ErrUnknownPackage, got %v", err)
	}
}

func TestGetPackageBadFiles(t *testing.T) {
	fs := afero.NewMemMapFs()

	bad := pkgtest.New(69)
	bad.Signature = 0xDEADBEEF
	bad.Write(t, fs, systemPath("Bad"))

	old := pkgtest.New(59)
	old.Write(t, fs, systemPath("Old"))

	if err := afero.WriteFile(fs, systemPath("Short"), []byte{0xC1, 0x83}, 0o644); err != nil {
		t.Fatal(err)
	}

	m := newTestManager(t, fs)
	tests := []struct {
		name string
		want error
	}{
		{"Bad", core.ErrNotAPackage},
		{"Old", core.ErrUnsupportedVersion},
		{"Short", core.ErrNotAPackage},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for i := 0; i < 2; i++ {
				if _, err := m.GetPackage(tt.name); !errors.Is(err, tt.want) {
					t.Errorf("attempt %d: expected %v, got %v", i, tt.want, err)
				}
			}
		})
	}
	if n := len(m.Loaded()); n != 0 {
		t.Errorf("failed packages were kept: %d", n)
	}
}

func TestStreamCacheEviction(t *testing.T) {
	fs := afero.NewMemMapFs()
	for i := 0; i < 11; i++ {
		pkgtest.New(69).Write(t, fs, systemPath(fmt.Sprintf("Pkg%02d", i)))
	}
	cache, err := filecache.New(fs, filecache.DefaultCapacity)
	if err != nil {
		t.Fatal(err)
	}
	m := newTestManager(t, fs, WithStreamCache(cache))

	pkgs := make([]*Package, 11)
	for i := range pkgs {
		pkgs[i] = mustPackage(t, m, fmt.Sprintf("Pkg%02d", i))
	}

	if cache.Len() != 10 {
		t.Errorf("cache holds %d handles, want 10", cache.Len())
	}
	if cache.Contains(pkgs[0].Path()) {
		t.Error("least recently used handle was not evicted")
	}
	for _, p := range pkgs[1:] {
		if !cache.Contains(p.Path()) {
			t.Errorf("%s was evicted", p.Name())
		}
	}

	if _, err := m.GetStream(pkgs[0]); err != nil {
		t.Fatalf("GetStream failed: %v", err)
	}
	if cache.Opens() != 12 {
		t.Errorf("Opens() = %d, want 12 after reopening the evicted file", cache.Opens())
	}
	if cache.Contains(pkgs[1].Path()) {
		t.Error("reopening should evict the next least recently used handle")
	}
	if keys := cache.Keys(); keys[0] != pkgs[0].Path() {
		t.Errorf("most recent handle is %s, want %s", keys[0], pkgs[0].Path())
	}
}

func TestStreamCacheSizeOption(t *testing.T) {
	fs := afero.NewMemMapFs()
	if _, err := New(gameDir, WithFs(fs), WithStreamCacheSize(0)); err == nil {
		t.Error("expected an error for a zero-sized cache")
	}
}

func TestScanFolders(t *testing.T) {
	fs := afero.NewMemMapFs()
	empty := pkgtest.New(69)
	empty.Write(t, fs, filepath.Join(gameDir, "Maps", "DM-Deck16.unr"))
	empty.Write(t, fs, filepath.Join(gameDir, "Maps", "CTF-Face.unr"))
	empty.Write(t, fs, filepath.Join(gameDir, "System", "Engine.u"))
	empty.Write(t, fs, filepath.Join(gameDir, "Textures", "Skins.utx"))
	empty.Write(t, fs, filepath.Join(gameDir, "Sounds", "Ambient.uax"))
	empty.Write(t, fs, filepath.Join(gameDir, "System", "Readme.txt"))

	m, err := New(gameDir, WithFs(fs), WithNatives(testNatives))
	if err != nil {
		t.Fatal(err)
	}
	defer m.Close()

	n, err := m.ScanDefaultFolders()
	if err != nil {
		t.Fatalf("ScanDefaultFolders failed: %v", err)
	}
	if n != 5 {
		t.Errorf("found %d packages, want 5", n)
	}

	wantMaps := []string{"CTF-Face", "DM-Deck16"}
	if got := m.Maps(); !reflect.DeepEqual(got, wantMaps) {
		t.Errorf("Maps() = %v, want %v", got, wantMaps)
	}
	wantPkgs := []string{"Ambient", "CTF-Face", "DM-Deck16", "Engine", "Skins"}
	if got := m.Packages(); !reflect.DeepEqual(got, wantPkgs) {
		t.Errorf("Packages() = %v, want %v", got, wantPkgs)
	}

	if _, err := m.GetPackage("dm-deck16"); err != nil {
		t.Errorf("GetPackage(map) failed: %v", err)
	}
}

func TestScanCustomFolders(t *testing.T) {
	fs := afero.NewMemMapFs()
	pkgtest.New(69).Write(t, fs, filepath.Join(gameDir, "Mods", "Extra.u"))

	m, err := New(gameDir, WithFs(fs), WithFolders([]Folder{{Dir: "Mods", Pattern: "*.u"}}))
	if err != nil {
		t.Fatal(err)
	}
	defer m.Close()

	if n, err := m.ScanDefaultFolders(); err != nil || n != 1 {
		t.Errorf("ScanDefaultFolders() = %d, %v; want 1", n, err)
	}
	if n, err := m.ScanFolder("Missing", "*.u"); err != nil || n != 0 {
		t.Errorf("ScanFolder(missing) = %d, %v; want 0, nil", n, err)
	}
}

func TestNativesHookError(t *testing.T) {
	fs := afero.NewMemMapFs()
	coreBuilder().Write(t, fs, systemPath("Core"))
	boom := errors.New("boom")
	m := newTestManager(t, fs, WithNatives(func(*Registrar) error { return boom }))

	if _, err := m.GetPackage("Core"); !errors.Is(err, boom) {
		t.Errorf("expected the hook's error, got %v", err)
	}
}

func writeText(t *testing.T, fs afero.Fs, name, text string) {
	t.Helper()
	path := filepath.Join(gameDir, SystemDir, name)
	if err := afero.WriteFile(fs, path, []byte(text), 0o644); err != nil {
		t.Fatal(err)
	}
}

func utf16File(text string) []byte {
	out := []byte{0xFF, 0xFE}
	for _, u := range utf16.Encode([]rune(text)) {
		out = binary.LittleEndian.AppendUint16(out, u)
	}
	return out
}

func TestGetIniValue(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeText(t, fs, "Game.ini", "[Engine.Engine]\n"+
		"GameRenderDevice=SoftDrv.SoftwareRenderDevice\n"+
		"Language=int\n"+
		"\n"+
		"[Engine.GameInfo]\n"+
		"ServerPackages=SoldierSkins\n"+
		"ServerPackages=BossSkins\n")
	m := newTestManager(t, fs)

	v, err := m.GetIniValue("Game", "Engine.Engine", "GameRenderDevice")
	if err != nil || v != "SoftDrv.SoftwareRenderDevice" {
		t.Errorf("GetIniValue = %q, %v", v, err)
	}
	v, err = m.GetIniValue("game.ini", "engine.engine", "LANGUAGE")
	if err != nil || v != "int" {
		t.Errorf("GetIniValue ignoring case = %q, %v", v, err)
	}

	vs, err := m.GetIniValues("Game", "Engine.GameInfo", "ServerPackages")
	if err != nil {
		t.Fatalf("GetIniValues failed: %v", err)
	}
	if want := []string{"SoldierSkins", "BossSkins"}; !reflect.DeepEqual(vs, want) {
		t.Errorf("GetIniValues = %v, want %v", vs, want)
	}

	if _, err := m.GetIniValue("Game", "Engine.Engine", "Missing"); !errors.Is(err, ErrKeyNotFound) {
		t.Errorf("expected ErrKeyNotFound for a key, got %v", err)
	}
	if _, err := m.GetIniValue("Game", "Engine", "GameRenderDevice"); !errors.Is(err, ErrKeyNotFound) {
		t.Errorf("expected ErrKeyNotFound for a section, got %v", err)
	}
	if _, err := m.GetIniValue("Nope", "A", "B"); err == nil {
		t.Error("expected an error for a missing file")
	}
}

func TestLocalize(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeText(t, fs, "Engine.int", "[Errors]\nUnknown=\"Unknown error\"\nNone=Nothing\n")
	if err := afero.WriteFile(fs, filepath.Join(gameDir, SystemDir, "Core.int"), utf16File("[General]\nYes=Oui\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	writeText(t, fs, "Engine.det", "[Errors]\nNone=Nichts\n")

	m := newTestManager(t, fs)
	tests := []struct {
		section, key, pkg, want string
	}{
		{"Errors", "Unknown", "Engine", "Unknown error"},
		{"errors", "none", "engine", "Nothing"},
		{"General", "Yes", "Core", "Oui"},
	}
	for _, tt := range tests {
		got, err := m.Localize(tt.section, tt.key, tt.pkg)
		if err != nil || got != tt.want {
			t.Errorf("Localize(%q, %q, %q) = %q, %v; want %q", tt.section, tt.key, tt.pkg, got, err, tt.want)
		}
	}

	de := newTestManager(t, fs, WithLanguage(".det"))
	if got, err := de.Localize("Errors", "None", "Engine"); err != nil || got != "Nichts" {
		t.Errorf("Localize(det) = %q, %v; want Nichts", got, err)
	}
}
