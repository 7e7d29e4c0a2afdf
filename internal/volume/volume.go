// Package volume reconstructs split archive sets from their sibling files
// and checks them for missing parts.
package volume

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/xxxsen/arccheck/internal/model"
)

type Scheme int

const (
	SchemeUnknown Scheme = iota
	SchemeZipSplit
	SchemeRarPartNew
	SchemeRarPartOld
	SchemeSevenZSplit
)

func (s Scheme) String() string {
	switch s {
	case SchemeZipSplit:
		return "zip"
	case SchemeRarPartNew, SchemeRarPartOld:
		return "rar"
	case SchemeSevenZSplit:
		return "7z"
	default:
		return "unknown"
	}
}

type schemeDef struct {
	scheme Scheme
	part   *regexp.Regexp
	final  string
}

// schemes is ordered by lookup priority.
var schemes = []schemeDef{
	{scheme: SchemeZipSplit, part: regexp.MustCompile(`(?i)^(.+)\.z(\d{2,})$`), final: ".zip"},
	{scheme: SchemeRarPartNew, part: regexp.MustCompile(`(?i)^(.+)\.part(\d+)\.rar$`)},
	{scheme: SchemeRarPartOld, part: regexp.MustCompile(`(?i)^(.+)\.r(\d{2,})$`), final: ".rar"},
	{scheme: SchemeSevenZSplit, part: regexp.MustCompile(`(?i)^(.+)\.(\d{3,})$`), final: ".7z"},
}

func defOf(s Scheme) (schemeDef, bool) {
	for _, d := range schemes {
		if d.scheme == s {
			return d, true
		}
	}
	return schemeDef{}, false
}

// finalSuffix is the unnumbered closing part for the scheme and base, or ""
// when the naming has none (modern RAR, "x.7z.001" style 7z splits).
func (d schemeDef) finalSuffix(base string) string {
	if d.scheme == SchemeSevenZSplit && strings.HasSuffix(strings.ToLower(base), ".7z") {
		return ""
	}
	return d.final
}

// Member describes a numbered volume file name.
type Member struct {
	Base   string
	Scheme Scheme
	Index  int
	Digits string
}

// Detect recognizes numbered part names such as "x.z01", "x.part2.rar",
// "x.r00" or "x.001". Unnumbered closing parts (x.zip, x.rar, x.7z) are not
// members on their own; see FinalOf.
func Detect(name string) (Member, bool) {
	for _, d := range schemes {
		m := d.part.FindStringSubmatch(name)
		if m == nil {
			continue
		}
		idx, err := strconv.Atoi(m[2])
		if err != nil {
			continue
		}
		return Member{Base: m[1], Scheme: d.scheme, Index: idx, Digits: m[2]}, true
	}
	return Member{}, false
}

// FirstPartName is the name the first numbered part of m's set carries,
// e.g. "x.001" for "x.003" or "c.part01.rar" for "c.part07.rar".
func FirstPartName(m Member) string {
	switch m.Scheme {
	case SchemeZipSplit:
		return m.Base + ".z01"
	case SchemeRarPartNew:
		width := 1
		if len(m.Digits) > 1 && strings.HasPrefix(m.Digits, "0") {
			width = len(m.Digits)
		}
		return fmt.Sprintf("%s.part%0*d.rar", m.Base, width, 1)
	case SchemeRarPartOld:
		return m.Base + ".r00"
	case SchemeSevenZSplit:
		return fmt.Sprintf("%s.%0*d", m.Base, len(m.Digits), 1)
	}
	return ""
}

// FinalOf reports which scheme name could close as its unnumbered last part.
func FinalOf(name string) (string, Scheme, bool) {
	ext := filepath.Ext(name)
	base := strings.TrimSuffix(name, ext)
	if base == "" {
		return "", SchemeUnknown, false
	}
	switch strings.ToLower(ext) {
	case ".zip":
		return base, SchemeZipSplit, true
	case ".rar":
		return base, SchemeRarPartOld, true
	case ".7z":
		return base, SchemeSevenZSplit, true
	}
	return "", SchemeUnknown, false
}

// SetBase returns the base name shared by every part of the set name
// belongs to: the numbered suffix is stripped for members, the final
// extension otherwise.
func SetBase(name string) string {
	if m, ok := Detect(name); ok {
		return m.Base
	}
	return strings.TrimSuffix(name, filepath.Ext(name))
}

type VolumeSet struct {
	BaseName string
	Dir      string
	Parts    []model.CandidateFile
	Scheme   Scheme
}

// Multi reports whether at least one numbered part was found.
func (s *VolumeSet) Multi() bool {
	if s == nil {
		return false
	}
	for _, p := range s.Parts {
		if _, ok := Detect(p.Name); ok {
			return true
		}
	}
	return false
}

// Entry is the volume an external tester should be started on. Old style
// RAR and split ZIP sets are opened through their unnumbered part.
func (s *VolumeSet) Entry() (model.CandidateFile, bool) {
	if s == nil || len(s.Parts) == 0 {
		return model.CandidateFile{}, false
	}
	last := s.Parts[len(s.Parts)-1]
	if s.Scheme == SchemeRarPartOld || s.Scheme == SchemeZipSplit {
		if _, numbered := Detect(last.Name); !numbered {
			return last, true
		}
	}
	return s.Parts[0], true
}

// FindParts lists the parts of the set seed belongs to. The schemes are
// tried in priority order and the first one with a numbered part wins. An
// empty set is returned when seed has no numbered siblings.
func FindParts(seed string) (*VolumeSet, error) {
	dir := filepath.Dir(seed)
	base := SetBase(filepath.Base(seed))
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read volume dir %s: %w", dir, err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		names = append(names, e.Name())
	}

	set := &VolumeSet{BaseName: base, Dir: dir, Scheme: SchemeUnknown}
	for _, d := range schemes {
		type indexed struct {
			name string
			idx  int
		}
		var found []indexed
		for _, name := range names {
			m := d.part.FindStringSubmatch(name)
			if m == nil || !strings.EqualFold(m[1], base) {
				continue
			}
			idx, err := strconv.Atoi(m[2])
			if err != nil {
				continue
			}
			found = append(found, indexed{name: name, idx: idx})
		}
		if len(found) == 0 {
			continue
		}
		sort.SliceStable(found, func(i, j int) bool {
			if found[i].idx != found[j].idx {
				return found[i].idx < found[j].idx
			}
			return found[i].name < found[j].name
		})
		for _, f := range found {
			set.Parts = append(set.Parts, model.NewCandidateFile(filepath.Join(dir, f.name)))
		}
		if suffix := d.finalSuffix(base); suffix != "" {
			for _, name := range names {
				if strings.EqualFold(name, base+suffix) {
					set.Parts = append(set.Parts, model.NewCandidateFile(filepath.Join(dir, name)))
					break
				}
			}
		}
		set.Scheme = d.scheme
		break
	}
	return set, nil
}
