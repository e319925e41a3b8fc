package nscache

import (
	"maps"
	"math"
	"os"
	"strconv"
	"strings"
	"time"
)

// Settings are the loosely typed options an adapter is built from. Values come
// from YAML or JSON, so numbers may arrive as any integer or float type.
// Accessors return a *ConfigError when a present value has the wrong type;
// absent keys yield the supplied default. Unknown keys are ignored.
type Settings map[string]any

// Clone returns a shallow copy.
func (s Settings) Clone() Settings {
	if s == nil {
		return Settings{}
	}
	return maps.Clone(s)
}

// Merge returns a copy of s overlaid with o.
func (s Settings) Merge(o Settings) Settings {
	out := s.Clone()
	maps.Copy(out, o)
	return out
}

func (s Settings) lookup(keys ...string) (string, any, bool) {
	for _, k := range keys {
		if v, ok := s[k]; ok && v != nil {
			return k, v, true
		}
	}
	return "", nil, false
}

func settingErr(key string, v any, want string) error {
	return configErrf("settings", key, "want %s, got %T(%v)", want, v, v)
}

// Str reads a string option. Aliases are tried after key.
func (s Settings) Str(def string, key string, aliases ...string) (string, error) {
	k, v, ok := s.lookup(append([]string{key}, aliases...)...)
	if !ok {
		return def, nil
	}
	str, ok := v.(string)
	if !ok {
		return def, settingErr(k, v, "string")
	}
	return str, nil
}

// Int reads an integer option. Integral floats and numeric strings are accepted.
func (s Settings) Int(def int, key string, aliases ...string) (int, error) {
	k, v, ok := s.lookup(append([]string{key}, aliases...)...)
	if !ok {
		return def, nil
	}
	if str, isStr := v.(string); isStr {
		n, err := strconv.Atoi(strings.TrimSpace(str))
		if err != nil {
			return def, settingErr(k, v, "integer")
		}
		return n, nil
	}
	n, ok := toInt64(v)
	if !ok || n > math.MaxInt || n < math.MinInt {
		return def, settingErr(k, v, "integer")
	}
	return int(n), nil
}

// Bool reads a boolean option. Numbers are true when nonzero; strings follow
// strconv.ParseBool.
func (s Settings) Bool(def bool, key string, aliases ...string) (bool, error) {
	k, v, ok := s.lookup(append([]string{key}, aliases...)...)
	if !ok {
		return def, nil
	}
	switch b := v.(type) {
	case bool:
		return b, nil
	case string:
		parsed, err := strconv.ParseBool(strings.TrimSpace(b))
		if err != nil {
			return def, settingErr(k, v, "boolean")
		}
		return parsed, nil
	}
	if n, ok := toInt64(v); ok {
		return n != 0, nil
	}
	return def, settingErr(k, v, "boolean")
}

// Duration reads a TTL-like option: a number of seconds, or a string that is
// either a number of seconds or a Go duration ("90s", "24h").
func (s Settings) Duration(def time.Duration, key string, aliases ...string) (time.Duration, error) {
	k, v, ok := s.lookup(append([]string{key}, aliases...)...)
	if !ok {
		return def, nil
	}
	switch d := v.(type) {
	case time.Duration:
		return d, nil
	case string:
		d = strings.TrimSpace(d)
		if secs, err := strconv.ParseInt(d, 10, 64); err == nil {
			return seconds(secs), nil
		}
		parsed, err := time.ParseDuration(d)
		if err != nil {
			return def, settingErr(k, v, "seconds or duration")
		}
		return parsed, nil
	case float32, float64:
		f, _ := toFloat64(v)
		if math.IsNaN(f) {
			return def, settingErr(k, v, "seconds or duration")
		}
		return floatSeconds(f), nil
	}
	if n, ok := toInt64(v); ok {
		return seconds(n), nil
	}
	return def, settingErr(k, v, "seconds or duration")
}

// seconds and floatSeconds saturate instead of overflowing.
func seconds(n int64) time.Duration {
	switch {
	case n > math.MaxInt64/int64(time.Second):
		return time.Duration(math.MaxInt64)
	case n < math.MinInt64/int64(time.Second):
		return time.Duration(math.MinInt64)
	}
	return time.Duration(n) * time.Second
}

func floatSeconds(f float64) time.Duration {
	ns := f * float64(time.Second)
	switch {
	case ns >= math.MaxInt64:
		return time.Duration(math.MaxInt64)
	case ns <= math.MinInt64:
		return time.Duration(math.MinInt64)
	}
	return time.Duration(ns)
}

// FileMode reads permission bits. Integers are taken as mode bits (YAML 0700
// is already octal); strings are parsed as octal ("0700", "0o700", "700").
func (s Settings) FileMode(def os.FileMode, key string, aliases ...string) (os.FileMode, error) {
	k, v, ok := s.lookup(append([]string{key}, aliases...)...)
	if !ok {
		return def, nil
	}
	if str, isStr := v.(string); isStr {
		str = strings.TrimPrefix(strings.TrimPrefix(strings.TrimSpace(str), "0o"), "0O")
		m, err := strconv.ParseUint(str, 8, 32)
		if err != nil || m > 0o7777 {
			return def, settingErr(k, v, "octal permission")
		}
		return os.FileMode(m), nil
	}
	n, ok := toInt64(v)
	if !ok || n < 0 || n > 0o7777 {
		return def, settingErr(k, v, "permission bits")
	}
	return os.FileMode(n), nil
}

// Strings reads a list option: a sequence of strings or one comma-separated
// string.
func (s Settings) Strings(key string, aliases ...string) ([]string, error) {
	k, v, ok := s.lookup(append([]string{key}, aliases...)...)
	if !ok {
		return nil, nil
	}
	switch l := v.(type) {
	case []string:
		return append([]string(nil), l...), nil
	case string:
		var out []string
		for _, part := range strings.Split(l, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
		return out, nil
	case []any:
		out := make([]string, 0, len(l))
		for _, e := range l {
			str, ok := e.(string)
			if !ok {
				return nil, settingErr(k, v, "list of strings")
			}
			out = append(out, str)
		}
		return out, nil
	}
	return nil, settingErr(k, v, "list of strings")
}

func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int8:
		return int64(n), true
	case int16:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint:
		return int64(n), uint64(n) <= math.MaxInt64
	case uint8:
		return int64(n), true
	case uint16:
		return int64(n), true
	case uint32:
		return int64(n), true
	case uint64:
		return int64(n), n <= math.MaxInt64
	case float32, float64:
		f, _ := toFloat64(v)
		if f != math.Trunc(f) || f > math.MaxInt64 || f < math.MinInt64 {
			return 0, false
		}
		return int64(f), true
	}
	return 0, false
}

func toFloat64(v any) (float64, bool) {
	switch f := v.(type) {
	case float32:
		return float64(f), true
	case float64:
		return f, true
	}
	return 0, false
}

// settingsReader keeps the first error so constructors can read a batch of
// options and check once.
type settingsReader struct {
	s   Settings
	err error
}

func (s Settings) reader() *settingsReader { return &settingsReader{s: s} }

func (r *settingsReader) keep(err error) {
	if r.err == nil && err != nil {
		r.err = err
	}
}

func (r *settingsReader) str(def, key string, aliases ...string) string {
	v, err := r.s.Str(def, key, aliases...)
	r.keep(err)
	return v
}

func (r *settingsReader) num(def int, key string, aliases ...string) int {
	v, err := r.s.Int(def, key, aliases...)
	r.keep(err)
	return v
}

func (r *settingsReader) flag(def bool, key string, aliases ...string) bool {
	v, err := r.s.Bool(def, key, aliases...)
	r.keep(err)
	return v
}

func (r *settingsReader) duration(def time.Duration, key string, aliases ...string) time.Duration {
	v, err := r.s.Duration(def, key, aliases...)
	r.keep(err)
	return v
}

func (r *settingsReader) mode(def os.FileMode, key string, aliases ...string) os.FileMode {
	v, err := r.s.FileMode(def, key, aliases...)
	r.keep(err)
	return v
}

func (r *settingsReader) list(key string, aliases ...string) []string {
	v, err := r.s.Strings(key, aliases...)
	r.keep(err)
	return v
}
