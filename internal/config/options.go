package config

import (
	"fmt"
	"sort"
	"strings"
)

// Encode renders an OptionMap into rclone command-line flags per spec.md
// §4.6's value-encoding table: null/true -> bare flag, false -> omit, list
// -> repeated flag, scalar -> flag + value. Keys are kebab-cased on the way
// out (an operator may write rclone_options keys with underscores or
// hyphens; rclone itself only accepts hyphenated flags), matching
// original_source/config.py's get_rclone_args, which does
// `key.replace('_', '-')`. Keys are sorted for deterministic argv, which
// also makes Encode/Decode round-trip-testable.
func Encode(opts OptionMap) []string {
	keys := make([]string, 0, len(opts))
	for k := range opts {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var args []string
	for _, key := range keys {
		flag := "--" + strings.ReplaceAll(key, "_", "-")
		switch v := opts[key].(type) {
		case nil:
			args = append(args, flag)
		case bool:
			if v {
				args = append(args, flag)
			}
		case []any:
			for _, item := range v {
				args = append(args, flag, fmt.Sprint(item))
			}
		case []string:
			for _, item := range v {
				args = append(args, flag, item)
			}
		default:
			args = append(args, flag, fmt.Sprint(v))
		}
	}
	return args
}

// Decode parses an argv slice built by Encode back into an OptionMap. It
// supports exactly the subset Encode produces: bare flags decode to true,
// flags followed by a value decode to that string (repeats accumulate into
// a []any), matching spec.md §8's "option encoding round-trip" property for
// the encoder-supported subset.
func Decode(args []string) OptionMap {
	opts := make(OptionMap)
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if !strings.HasPrefix(arg, "--") {
			continue
		}
		key := strings.TrimPrefix(arg, "--")
		hasValue := i+1 < len(args) && !strings.HasPrefix(args[i+1], "--")
		if !hasValue {
			opts[key] = true
			continue
		}
		value := args[i+1]
		i++
		switch existing := opts[key].(type) {
		case nil:
			opts[key] = value
		case string:
			opts[key] = []any{existing, value}
		case []any:
			opts[key] = append(existing, value)
		}
	}
	return opts
}
