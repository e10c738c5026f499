// Package namelist reads the Fortran namelist files MPAS cores are
// configured with (e.g. mpas-o_in), exposing physical constants such as
// config_density0 and config_specific_heat_sea_water.
package namelist

import (
	"bufio"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/oceanstats/mpas-diag/internal/diagerr"
)

// NameList holds option values keyed by lowercase option name.
// Group names (&run_modes, &time_management, ...) are not part of the key.
type NameList struct {
	Path   string
	values map[string]string
}

// Open reads the namelist at filename. A relative filename is resolved
// against dir.
func Open(filename, dir string) (*NameList, error) {
	path := filename
	if !filepath.IsAbs(path) && dir != "" {
		path = filepath.Join(dir, filename)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, diagerr.Config(eris.Wrapf(err, "namelist: open %s", path))
	}
	defer f.Close() //nolint:errcheck

	nl, err := Parse(f)
	if err != nil {
		return nil, eris.Wrapf(err, "namelist: parse %s", path)
	}
	nl.Path = path
	return nl, nil
}

// Parse reads namelist text from r.
func Parse(r io.Reader) (*NameList, error) {
	nl := &NameList{values: make(map[string]string)}
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := stripComment(sc.Text())
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "&") || line == "/" {
			continue
		}
		key, val, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.ToLower(strings.TrimSpace(key))
		val = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(val), ","))
		nl.values[key] = unquote(val)
	}
	if err := sc.Err(); err != nil {
		return nil, eris.Wrap(err, "namelist: scan")
	}
	return nl, nil
}

// Get returns the raw string value of option.
func (n *NameList) Get(option string) (string, error) {
	v, ok := n.values[strings.ToLower(option)]
	if !ok {
		return "", diagerr.Configf("namelist: option %s not found in %s", option, n.Path)
	}
	return v, nil
}

// GetFloat returns option as a float64; Fortran double exponents (1.0d0)
// are accepted.
func (n *NameList) GetFloat(option string) (float64, error) {
	v, err := n.Get(option)
	if err != nil {
		return 0, err
	}
	v = strings.NewReplacer("d", "e", "D", "e").Replace(v)
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, diagerr.Config(eris.Wrapf(err, "namelist: option %s is not a number", option))
	}
	return f, nil
}

// GetInt returns option as an int.
func (n *NameList) GetInt(option string) (int, error) {
	v, err := n.Get(option)
	if err != nil {
		return 0, err
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return 0, diagerr.Config(eris.Wrapf(err, "namelist: option %s is not an integer", option))
	}
	return i, nil
}

// GetBool returns option as a bool (.true./.false./T/F).
func (n *NameList) GetBool(option string) (bool, error) {
	v, err := n.Get(option)
	if err != nil {
		return false, err
	}
	switch strings.ToLower(strings.Trim(v, ".")) {
	case "true", "t":
		return true, nil
	case "false", "f":
		return false, nil
	default:
		return false, diagerr.Configf("namelist: option %s is not a logical: %q", option, v)
	}
}

func stripComment(line string) string {
	inQuote := byte(0)
	for i := 0; i < len(line); i++ {
		c := line[i]
		switch {
		case inQuote != 0:
			if c == inQuote {
				inQuote = 0
			}
		case c == '\'' || c == '"':
			inQuote = c
		case c == '!':
			return line[:i]
		}
	}
	return line
}

func unquote(v string) string {
	if len(v) >= 2 && (v[0] == '\'' || v[0] == '"') && v[len(v)-1] == v[0] {
		return v[1 : len(v)-1]
	}
	return v
}
