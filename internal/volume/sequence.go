package volume

import (
	"fmt"
	"sort"
	"strings"

	"github.com/xxxsen/arccheck/internal/model"
)

const (
	msgNoParts       = "no parts found"
	msgUnknownFormat = "unknown multi-volume format"
)

// SequenceCheck is the outcome of comparing the observed parts of a set
// with the names its scheme expects.
type SequenceCheck struct {
	Complete bool
	Missing  []string
	Message  string
}

// CheckSequence rebuilds the expected part names for the scheme of the
// first part and reports the ones not present in parts. The expected count
// covers both the number of observed parts and the highest observed index,
// so holes anywhere before the last present part are caught.
func CheckSequence(parts []model.CandidateFile) SequenceCheck {
	if len(parts) == 0 {
		return SequenceCheck{Message: msgNoParts}
	}
	first, ok := Detect(parts[0].Name)
	if !ok {
		return SequenceCheck{Message: msgUnknownFormat}
	}
	def, _ := defOf(first.Scheme)

	maxIdx := 0
	observed := make(map[string]struct{}, len(parts))
	for _, p := range parts {
		observed[strings.ToLower(p.Name)] = struct{}{}
		if m, ok := Detect(p.Name); ok && m.Scheme == first.Scheme && m.Index > maxIdx {
			maxIdx = m.Index
		}
	}

	expected := expectedNames(def, first, len(parts), maxIdx)
	var missing []string
	for _, name := range expected {
		if _, ok := observed[strings.ToLower(name)]; !ok {
			missing = append(missing, name)
		}
	}
	sort.Strings(missing)
	if len(missing) > 0 {
		return SequenceCheck{
			Missing: missing,
			Message: fmt.Sprintf("missing parts: %s", strings.Join(missing, ", ")),
		}
	}
	return SequenceCheck{Complete: true}
}

func expectedNames(def schemeDef, first Member, count, maxIdx int) []string {
	base := first.Base
	final := def.finalSuffix(base)
	var names []string
	switch def.scheme {
	case SchemeZipSplit:
		// z01..zK then .zip
		n := maxInt(count-1, maxIdx)
		for i := 1; i <= n; i++ {
			names = append(names, fmt.Sprintf("%s.z%02d", base, i))
		}
	case SchemeRarPartNew:
		width := 1
		if len(first.Digits) > 1 && strings.HasPrefix(first.Digits, "0") {
			width = len(first.Digits)
		}
		n := maxInt(count, maxIdx)
		for i := 1; i <= n; i++ {
			names = append(names, fmt.Sprintf("%s.part%0*d.rar", base, width, i))
		}
	case SchemeRarPartOld:
		// r00..rK then .rar
		n := maxInt(count-1, maxIdx+1)
		for i := 0; i < n; i++ {
			names = append(names, fmt.Sprintf("%s.r%02d", base, i))
		}
	case SchemeSevenZSplit:
		n := maxIdx
		if final != "" {
			n = maxInt(n, count-1)
		} else {
			n = maxInt(n, count)
		}
		for i := 1; i <= n; i++ {
			names = append(names, fmt.Sprintf("%s.%03d", base, i))
		}
	}
	if final != "" {
		names = append(names, base+final)
	}
	return names
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
