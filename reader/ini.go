package reader

import (
	"bytes"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
	"gopkg.in/ini.v1"

	"github.com/tsawler/upkg/internal/textenc"
)

// ErrKeyNotFound is returned when an ini or localisation lookup finds no
// such section or key.
var ErrKeyNotFound = errors.New("key not found")

// SystemDir holds ini and localisation files.
const SystemDir = "System"

var utf16BOM = []byte{0xFF, 0xFE}

// iniFile loads name from the System folder, once.
func (m *Manager) iniFile(name string) (*ini.File, error) {
	if filepath.Ext(name) == "" {
		name += ".ini"
	}
	path := filepath.Join(m.baseDir, SystemDir, name)
	key := textenc.Fold(path)

	m.iniMu.Lock()
	defer m.iniMu.Unlock()

	if f, ok := m.iniFiles[key]; ok {
		return f, nil
	}

	data, err := afero.ReadFile(m.fs, path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	if bytes.HasPrefix(data, utf16BOM) {
		text, err := textenc.DecodeUTF16(data[len(utf16BOM):])
		if err != nil {
			return nil, fmt.Errorf("failed to decode %s: %w", path, err)
		}
		data = []byte(text)
	}

	f, err := ini.LoadSources(ini.LoadOptions{
		Insensitive:             true,
		AllowShadows:            true,
		IgnoreInlineComment:     true,
		SkipUnrecognizableLines: true,
		ChildSectionDelimiter:   "::",
	}, data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	m.iniFiles[key] = f
	log.Debugf("loaded %s", path)
	return f, nil
}

func (m *Manager) iniKey(file, section, key string) (*ini.Key, error) {
	f, err := m.iniFile(file)
	if err != nil {
		return nil, err
	}
	sec, err := f.GetSection(section)
	if err != nil {
		return nil, fmt.Errorf("%w: [%s] in %s", ErrKeyNotFound, section, file)
	}
	k, err := sec.GetKey(key)
	if err != nil {
		return nil, fmt.Errorf("%w: [%s] %s in %s", ErrKeyNotFound, section, key, file)
	}
	return k, nil
}

// GetIniValue returns the value of key in section of the ini file called
// file in the System folder. ".ini" is appended when file has no
// extension. Section and key names ignore case.
func (m *Manager) GetIniValue(file, section, key string) (string, error) {
	k, err := m.iniKey(file, section, key)
	if err != nil {
		return "", err
	}
	return k.String(), nil
}

// GetIniValues returns every value of a key that repeats within its
// section, in file order.
func (m *Manager) GetIniValues(file, section, key string) ([]string, error) {
	k, err := m.iniKey(file, section, key)
	if err != nil {
		return nil, err
	}
	return k.ValueWithShadows(), nil
}

// Localize returns the localised text for key in section from the
// localisation file of pkg, System/<pkg>.<language>. Surrounding quotes
// are removed.
func (m *Manager) Localize(section, key, pkg string) (string, error) {
	v, err := m.GetIniValue(pkg+"."+m.language, section, key)
	if err != nil {
		return "", err
	}
	if len(v) >= 2 && strings.HasPrefix(v, `"`) && strings.HasSuffix(v, `"`) {
		v = v[1 : len(v)-1]
	}
	return v, nil
}
