package memfit

import "github.com/bnclabs/memfit/lib"
import "github.com/bnclabs/memfit/memfitlog"

// DefaultSettings returns memfit's tunables before any MALLOC_OPTIONS-
// style override (spec.md §6): the reference max_dirty, debug junk-fill
// and debug zero-fill both off.
func DefaultSettings() lib.Settings {
	return lib.Settings{
		"arena.max_dirty": int64(512),
		"debug.junk":       false,
		"debug.zero":       false,
	}
}

// ParseTunables parses spec.md §6's MALLOC_OPTIONS-style grammar: the
// string is a sequence of option groups, each an optional decimal
// repeat count (default 1) followed by a single option character.
// 'f'/'F' halve/double max_dirty (clamped at the int64 shift boundary,
// exactly as the source clamps at size_t); 'j'/'J' disable/enable debug
// junk-fill; 'z'/'Z' disable/enable debug zero-fill. An unrecognized
// character is logged via memfitlog.Warnf and otherwise ignored, never
// fatal — tunable strings come from the environment and must not crash
// the process that set them.
func ParseTunables(s string) lib.Settings {
	setts := DefaultSettings()
	i := 0
	for i < len(s) {
		nreps, nseen := 0, false
		for i < len(s) && s[i] >= '0' && s[i] <= '9' {
			nreps = nreps*10 + int(s[i]-'0')
			i++
			nseen = true
		}
		if !nseen {
			nreps = 1
		}
		if i >= len(s) {
			break
		}
		opt := s[i]
		i++
		for j := 0; j < nreps; j++ {
			applyTunable(setts, opt)
		}
	}
	return setts
}

func applyTunable(setts lib.Settings, opt byte) {
	switch opt {
	case 'f':
		setts["arena.max_dirty"] = setts.Int64("arena.max_dirty") >> 1
	case 'F':
		md := setts.Int64("arena.max_dirty")
		switch {
		case md == 0:
			setts["arena.max_dirty"] = int64(1)
		case md<<1 != 0:
			setts["arena.max_dirty"] = md << 1
		}
	case 'j':
		setts["debug.junk"] = false
	case 'J':
		setts["debug.junk"] = true
	case 'z':
		setts["debug.zero"] = false
	case 'Z':
		setts["debug.zero"] = true
	default:
		memfitlog.Warnf("memfit: unsupported character in tunables: %q", string(rune(opt)))
	}
}
