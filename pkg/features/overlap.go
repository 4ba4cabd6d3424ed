package features

import (
	"fmt"
	"strings"
	"unicode"
)

// Overlap reports an element named in an action's process that also
// appears in an info description.
type Overlap struct {
	Action   int    // index into Features.Actions
	Info     int    // index into Features.Info
	Fragment string // the shared element text
}

func (o Overlap) String() string {
	return fmt.Sprintf("actions[%d] element %q also appears in info[%d]", o.Action, o.Fragment, o.Info)
}

// quotePairs maps opening quotes to their closing counterpart. Models cite
// element labels as 'Sign In', "Email", ‘Apply’ or “Remember me”.
var quotePairs = map[rune]rune{
	'\'': '\'',
	'"':  '"',
	'‘':  '’',
	'“':  '”',
}

// minFragmentLen ignores one-character quotes.
const minFragmentLen = 2

// Fragments returns the quoted element labels cited in a process description,
// in order of first appearance. Straight apostrophes inside words (user's,
// don't) are not treated as quotes.
func Fragments(process string) []string {
	rs := []rune(process)
	seen := make(map[string]bool)
	var out []string

	for i := 0; i < len(rs); i++ {
		closing, ok := quotePairs[rs[i]]
		if !ok || (rs[i] == '\'' && i > 0 && isWordRune(rs[i-1])) {
			continue
		}

		end := -1
		for j := i + 1; j < len(rs); j++ {
			if rs[j] != closing {
				continue
			}
			if closing == '\'' && j+1 < len(rs) && isWordRune(rs[j+1]) {
				continue
			}
			end = j
			break
		}
		if end < 0 {
			continue
		}

		frag := strings.TrimSpace(string(rs[i+1 : end]))
		i = end
		if len([]rune(frag)) < minFragmentLen {
			continue
		}
		key := strings.ToLower(frag)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, frag)
	}
	return out
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

// Overlaps checks the content-disjointness of actions and info. Every quoted
// element of every action process is searched case-insensitively in each info
// description. A nil result means the two lists are disjoint.
func (f *Features) Overlaps() []Overlap {
	if f == nil || len(f.Actions) == 0 || len(f.Info) == 0 {
		return nil
	}

	infos := make([]string, len(f.Info))
	for j, in := range f.Info {
		infos[j] = strings.ToLower(in.Description)
	}

	var out []Overlap
	for i, a := range f.Actions {
		for _, frag := range Fragments(a.Process) {
			needle := strings.ToLower(frag)
			for j, desc := range infos {
				if strings.Contains(desc, needle) {
					out = append(out, Overlap{Action: i, Info: j, Fragment: frag})
				}
			}
		}
	}
	return out
}
