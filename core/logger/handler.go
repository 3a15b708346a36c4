package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"
)

type logFormat string

const (
	formatJSON logFormat = "json"
	formatKV   logFormat = "kv"

	timeFormatMillis = "2006-01-02T15:04:05.000Z07:00"
)

type handlerConfig struct {
	level    slog.Leveler
	writer   *asyncWriter
	format   logFormat
	keyOrder []string
}

// kv is an attribute already flattened and normalized.
type kv struct {
	key string
	val any
}

// structuredHandler renders records as one JSON object or one key=value
// line with a stable key order.
type structuredHandler struct {
	cfg    handlerConfig
	preset []kv
	prefix string
}

func newStructuredHandler(cfg handlerConfig) *structuredHandler {
	if cfg.level == nil {
		cfg.level = slog.LevelInfo
	}
	if cfg.keyOrder == nil {
		cfg.keyOrder = append([]string(nil), defaultKeyOrder...)
	}
	return &structuredHandler{cfg: cfg}
}

func (h *structuredHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.cfg.level.Level()
}

func (h *structuredHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	clone.preset = append([]kv(nil), h.preset...)
	for _, a := range attrs {
		clone.preset = appendAttr(clone.preset, h.prefix, a)
	}
	return &clone
}

func (h *structuredHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	clone := *h
	clone.prefix = joinKey(h.prefix, name)
	return &clone
}

func (h *structuredHandler) Handle(ctx context.Context, r slog.Record) error {
	if h.cfg.writer == nil {
		return errors.New("logger: writer not initialized")
	}
	isJSON := h.cfg.format == formatJSON

	f := make(fields, 16)
	ts := r.Time.UTC()
	f["ts"] = ts.Truncate(time.Millisecond).Format(timeFormatMillis)
	f["level"] = r.Level.String()
	if isJSON {
		f["ts_unix_nano"] = ts.UnixNano()
	}
	for _, p := range h.preset {
		f[p.key] = p.val
	}
	r.Attrs(func(a slog.Attr) bool {
		for _, p := range appendAttr(nil, h.prefix, a) {
			f[p.key] = p.val
		}
		return true
	})
	f.addMeta(MetaFrom(ctx))

	if rid := f.str("rid"); rid != "" {
		if compact := CompactRID(rid); compact != rid {
			if isJSON {
				f.setDefault("rid_full", rid)
			}
			f["rid"] = compact
		}
	}
	if f.str("event") == "" {
		f["event"] = r.Message
		if r.Message == "" {
			f["event"] = "unknown"
		}
	}
	if f.str("component") == "" {
		f["component"] = "app"
	}
	f.normalize()

	keys := f.keys(h.cfg.keyOrder)
	var (
		line []byte
		err  error
	)
	if isJSON {
		line, err = encodeJSON(f, keys)
		if err != nil {
			return err
		}
	} else {
		line = encodeKV(f, keys)
	}
	return h.cfg.writer.Write(append(line, '\n'))
}

func appendAttr(dst []kv, prefix string, a slog.Attr) []kv {
	a.Value = a.Value.Resolve()
	key := joinKey(prefix, a.Key)
	if a.Value.Kind() == slog.KindGroup {
		for _, child := range a.Value.Group() {
			dst = appendAttr(dst, key, child)
		}
		return dst
	}
	if key == "" {
		return dst
	}
	if k, v, ok := normalizeAttr(key, a.Value); ok {
		dst = append(dst, kv{key: k, val: v})
	}
	return dst
}

func joinKey(prefix, key string) string {
	switch {
	case prefix == "":
		return key
	case key == "":
		return prefix
	}
	return prefix + "." + key
}

// normalizeAttr maps slog values onto JSON friendly types. Durations become
// integer milliseconds under a key ending in _ms.
func normalizeAttr(key string, v slog.Value) (string, any, bool) {
	switch v.Kind() {
	case slog.KindString:
		return key, strings.TrimSpace(v.String()), true
	case slog.KindBool:
		return key, v.Bool(), true
	case slog.KindInt64:
		return key, v.Int64(), true
	case slog.KindUint64:
		if u := v.Uint64(); u <= math.MaxInt64 {
			return key, int64(u), true
		}
		return key, v.Uint64(), true
	case slog.KindFloat64:
		return key, v.Float64(), true
	case slog.KindDuration:
		return durationKey(key), RoundMS(v.Duration()).Milliseconds(), true
	case slog.KindTime:
		return key, v.Time().UTC().Format(time.RFC3339Nano), true
	}
	switch x := v.Any().(type) {
	case nil:
		return key, nil, false
	case error:
		return key, x.Error(), true
	case string:
		return key, strings.TrimSpace(x), true
	case time.Duration:
		return durationKey(key), RoundMS(x).Milliseconds(), true
	case fmt.Stringer:
		return key, x.String(), true
	default:
		return key, fmt.Sprint(x), true
	}
}

func durationKey(key string) string {
	switch {
	case key == "duration":
		return "duration_ms"
	case strings.HasSuffix(key, "_ms"):
		return key
	}
	return key + "_ms"
}

type fields map[string]any

func (f fields) str(key string) string {
	switch v := f[key].(type) {
	case nil:
		return ""
	case string:
		return v
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprint(v)
	}
}

func (f fields) setDefault(key string, v any) {
	if _, ok := f[key]; !ok {
		f[key] = v
	}
}

// addMeta fills update identifiers the record did not set itself.
func (f fields) addMeta(m Meta) {
	if m.RID != "" {
		f.setDefault("rid", m.RID)
	}
	if m.UserID != 0 {
		f.setDefault("user_id", m.UserID)
	}
	if m.UpdateID != 0 {
		f.setDefault("update_id", m.UpdateID)
	}
	if m.ChatID != 0 {
		f.setDefault("chat_id", m.ChatID)
	}
	if m.Handler != "" {
		f.setDefault("handler", m.Handler)
	}
}

func (f fields) normalize() {
	f["level"] = normalizeLevel(f.str("level"))
	if s := f.str("status"); s != "" {
		f["status"], _ = normalizeEnum(s, statuses)
	}
	if o := f.str("outcome"); o != "" {
		if v, ok := normalizeEnum(o, outcomes); ok {
			f["outcome"] = v
		} else {
			delete(f, "outcome")
		}
	}
	for k, v := range f {
		switch x := v.(type) {
		case nil:
			delete(f, k)
		case string:
			if x == "" {
				delete(f, k)
			}
		}
	}
}

// keys lists order entries present in f, then the rest sorted.
func (f fields) keys(order []string) []string {
	out := make([]string, 0, len(f))
	seen := make(map[string]struct{}, len(f))
	for _, k := range order {
		if _, ok := f[k]; ok {
			if _, dup := seen[k]; !dup {
				out = append(out, k)
				seen[k] = struct{}{}
			}
		}
	}
	n := len(out)
	for k := range f {
		if _, ok := seen[k]; !ok {
			out = append(out, k)
		}
	}
	sort.Strings(out[n:])
	return out
}

func encodeJSON(f fields, keys []string) ([]byte, error) {
	var b bytes.Buffer
	b.WriteByte('{')
	for i, k := range keys {
		name, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(f[k])
		if err != nil {
			return nil, err
		}
		if i > 0 {
			b.WriteByte(',')
		}
		b.Write(name)
		b.WriteByte(':')
		b.Write(val)
	}
	b.WriteByte('}')
	return b.Bytes(), nil
}

func encodeKV(f fields, keys []string) []byte {
	var b bytes.Buffer
	for i, k := range keys {
		if i > 0 {
			b.WriteByte(' ')
		}
		s, ok := f[k].(string)
		if !ok {
			s = fmt.Sprint(f[k])
		}
		if strings.IndexFunc(s, needsQuote) >= 0 {
			s = strconv.Quote(s)
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(s)
	}
	return b.Bytes()
}

func needsQuote(r rune) bool {
	return r <= ' ' || r == '=' || r == '"'
}
