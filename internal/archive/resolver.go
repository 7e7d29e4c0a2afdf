package archive

import (
	"fmt"
	"strings"
)

// Kind selects the verifier used for a file.
type Kind int

const (
	KindUnknown Kind = iota
	KindZip
	KindRar
	KindSevenZ
)

func (k Kind) String() string {
	switch k {
	case KindZip:
		return "zip"
	case KindRar:
		return "rar"
	case KindSevenZ:
		return "7z"
	default:
		return "unknown"
	}
}

// ParseKind maps a check method or type name ("zip", "rar", "unrar", "7z") to a Kind.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(strings.TrimPrefix(s, "."))) {
	case "zip", "internal":
		return KindZip, nil
	case "rar", "unrar":
		return KindRar, nil
	case "7z", "7zip", "sevenzip":
		return KindSevenZ, nil
	}
	return KindUnknown, fmt.Errorf("unknown archive kind %q", s)
}

// Rule maps a file name suffix to a kind. A '#' in Suffix matches a run of
// one or more ASCII digits, so ".part#.rar" covers every modern RAR volume.
type Rule struct {
	Suffix string
	Kind   Kind
}

var DefaultRules = []Rule{
	{Suffix: ".zip", Kind: KindZip},
	{Suffix: ".7z", Kind: KindSevenZ},
	{Suffix: ".rar", Kind: KindRar},
	{Suffix: ".r00", Kind: KindRar},
	{Suffix: ".part#.rar", Kind: KindRar},
	{Suffix: ".001", Kind: KindSevenZ},
}

// Resolver picks a Kind for a file name. The longest matching suffix wins.
type Resolver struct {
	rules []Rule
}

func NewResolver(rules ...Rule) *Resolver {
	if len(rules) == 0 {
		rules = DefaultRules
	}
	cp := make([]Rule, 0, len(rules))
	for _, r := range rules {
		r.Suffix = strings.ToLower(strings.TrimSpace(r.Suffix))
		if r.Suffix == "" || r.Kind == KindUnknown {
			continue
		}
		cp = append(cp, r)
	}
	return &Resolver{rules: cp}
}

// Resolve returns KindUnknown when no rule matches.
func (r *Resolver) Resolve(fileName string) Kind {
	lower := strings.ToLower(fileName)
	best := KindUnknown
	bestLen := 0
	for _, rule := range r.rules {
		n, ok := matchSuffix(lower, rule.Suffix)
		if !ok || n <= bestLen {
			continue
		}
		best = rule.Kind
		bestLen = n
	}
	return best
}

// matchSuffix reports whether name ends with pattern and how many bytes of
// name the match consumed. Both arguments are expected in lower case.
func matchSuffix(name, pattern string) (int, bool) {
	i := len(name)
	for j := len(pattern) - 1; j >= 0; j-- {
		if pattern[j] != '#' {
			if i == 0 || name[i-1] != pattern[j] {
				return 0, false
			}
			i--
			continue
		}
		start := i
		for i > 0 && isDigit(name[i-1]) {
			i--
		}
		if i == start {
			return 0, false
		}
	}
	return len(name) - i, true
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}
