package gather

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
)

// Configuration keys recognized by the gather stage
const (
	KeyContentKey       = "content_key"
	KeyDocIDKey         = "doc_id_key"
	KeyOrderKey         = "order_key"
	KeyPeripheralChunks = "peripheral_chunks"
	KeyMainChunkStart   = "main_chunk_start"
	KeyMainChunkEnd     = "main_chunk_end"
	KeySkipAccounting   = "skip_accounting"
	KeyCount            = "count"

	DirectionPrevious = "previous"
	DirectionNext     = "next"

	SectionHead   = "head"
	SectionMiddle = "middle"
	SectionTail   = "tail"
)

const (
	// DefaultMainChunkStart opens the wrapped main chunk
	DefaultMainChunkStart = "--- Begin Main Chunk ---"
	// DefaultMainChunkEnd closes the wrapped main chunk
	DefaultMainChunkEnd = "--- End Main Chunk ---"
)

// ErrInvalidConfig is wrapped by every configuration error
var ErrInvalidConfig = errors.New("invalid gather configuration")

// ConfigError identifies the missing or malformed configuration key
type ConfigError struct {
	Key    string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("%s: %s: %s", ErrInvalidConfig, e.Key, e.Reason)
}

func (e *ConfigError) Unwrap() error {
	return ErrInvalidConfig
}

func configErr(key, format string, args ...any) error {
	return &ConfigError{Key: key, Reason: fmt.Sprintf(format, args...)}
}

// SkipAccounting selects how omitted neighbors are counted in skip placeholders
type SkipAccounting int

const (
	// SkipRemaining adds, at every skipped index, the length of every neighbor from
	// that index to the end of the scanned list. Consecutive skips therefore count
	// some characters more than once.
	SkipRemaining SkipAccounting = iota
	// SkipExact adds only the skipped neighbor's own length.
	SkipExact
)

func (a SkipAccounting) String() string {
	if a == SkipExact {
		return "exact"
	}
	return "remaining"
}

// Section configures one display bucket of a window
type Section struct {
	Count      int    // Number of neighbors claimed; unused for middle
	ContentKey string // Field rendered for this bucket; empty means the global content key
}

// Window configures the neighbors shown in one direction
type Window struct {
	Head   *Section
	Middle *Section
	Tail   *Section
}

// HeadCount returns the configured head count, zero when head is absent
func (w Window) HeadCount() int {
	if w.Head == nil {
		return 0
	}
	return w.Head.Count
}

// TailCount returns the configured tail count, zero when tail is absent
func (w Window) TailCount() int {
	if w.Tail == nil {
		return 0
	}
	return w.Tail.Count
}

// Peripheral holds both direction windows
type Peripheral struct {
	Previous Window
	Next     Window
}

// Config is the validated gather stage configuration
type Config struct {
	ContentKey     string
	DocIDKey       string
	OrderKey       string
	Peripheral     Peripheral
	MainChunkStart string
	MainChunkEnd   string
	SkipAccounting SkipAccounting
}

// FormattedKey is the output field added to every record
func (c *Config) FormattedKey() string {
	return c.ContentKey + "_formatted"
}

// SyntaxCheck validates a raw configuration without keeping any state
func SyntaxCheck(raw map[string]any) error {
	_, err := ParseConfig(raw)
	return err
}

// ParseConfig validates a raw configuration mapping and converts it to a Config.
// Keys it does not recognize are ignored, so a whole pipeline operation block
// (with name, type, and so on) can be passed as-is.
func ParseConfig(raw map[string]any) (*Config, error) {
	if raw == nil {
		return nil, configErr(KeyContentKey, "configuration is empty")
	}

	cfg := &Config{
		MainChunkStart: DefaultMainChunkStart,
		MainChunkEnd:   DefaultMainChunkEnd,
	}

	var err error
	if cfg.ContentKey, err = requiredString(raw, KeyContentKey); err != nil {
		return nil, err
	}
	if cfg.DocIDKey, err = requiredString(raw, KeyDocIDKey); err != nil {
		return nil, err
	}
	if cfg.OrderKey, err = requiredString(raw, KeyOrderKey); err != nil {
		return nil, err
	}

	pcRaw, ok := raw[KeyPeripheralChunks]
	if !ok {
		return nil, configErr(KeyPeripheralChunks, "missing required key")
	}
	if cfg.Peripheral, err = parsePeripheral(pcRaw); err != nil {
		return nil, err
	}

	if cfg.MainChunkStart, err = optionalString(raw, KeyMainChunkStart, DefaultMainChunkStart); err != nil {
		return nil, err
	}
	if cfg.MainChunkEnd, err = optionalString(raw, KeyMainChunkEnd, DefaultMainChunkEnd); err != nil {
		return nil, err
	}

	accounting, err := optionalString(raw, KeySkipAccounting, SkipRemaining.String())
	if err != nil {
		return nil, err
	}
	switch accounting {
	case "remaining":
		cfg.SkipAccounting = SkipRemaining
	case "exact":
		cfg.SkipAccounting = SkipExact
	default:
		return nil, configErr(KeySkipAccounting, "must be \"remaining\" or \"exact\", got %q", accounting)
	}

	return cfg, nil
}

func requiredString(raw map[string]any, key string) (string, error) {
	v, ok := raw[key]
	if !ok {
		return "", configErr(key, "missing required key")
	}
	s, ok := v.(string)
	if !ok {
		return "", configErr(key, "must be a string, got %T", v)
	}
	if s == "" {
		return "", configErr(key, "must not be empty")
	}
	return s, nil
}

func optionalString(raw map[string]any, key, def string) (string, error) {
	v, ok := raw[key]
	if !ok {
		return def, nil
	}
	s, ok := v.(string)
	if !ok {
		return "", configErr(key, "must be a string, got %T", v)
	}
	return s, nil
}

func parsePeripheral(v any) (Peripheral, error) {
	var p Peripheral
	if v == nil {
		return p, nil
	}
	m, ok := v.(map[string]any)
	if !ok {
		return p, configErr(KeyPeripheralChunks, "must be a mapping, got %T", v)
	}

	var err error
	if dv, ok := m[DirectionPrevious]; ok {
		if p.Previous, err = parseWindow(DirectionPrevious, dv); err != nil {
			return p, err
		}
	}
	if dv, ok := m[DirectionNext]; ok {
		if p.Next, err = parseWindow(DirectionNext, dv); err != nil {
			return p, err
		}
	}
	return p, nil
}

func parseWindow(direction string, v any) (Window, error) {
	var w Window
	if v == nil {
		return w, nil
	}
	path := KeyPeripheralChunks + "." + direction
	m, ok := v.(map[string]any)
	if !ok {
		return w, configErr(path, "must be a mapping, got %T", v)
	}

	var err error
	if sv, ok := m[SectionHead]; ok {
		if w.Head, err = parseSection(path+"."+SectionHead, sv, true); err != nil {
			return w, err
		}
	}
	if sv, ok := m[SectionMiddle]; ok {
		if w.Middle, err = parseSection(path+"."+SectionMiddle, sv, false); err != nil {
			return w, err
		}
	}
	if sv, ok := m[SectionTail]; ok {
		if w.Tail, err = parseSection(path+"."+SectionTail, sv, true); err != nil {
			return w, err
		}
	}
	return w, nil
}

func parseSection(path string, v any, needsCount bool) (*Section, error) {
	s := &Section{}
	if v == nil {
		if needsCount {
			return nil, configErr(path+"."+KeyCount, "missing required key")
		}
		return s, nil
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil, configErr(path, "must be a mapping, got %T", v)
	}

	if needsCount {
		cv, ok := m[KeyCount]
		if !ok {
			return nil, configErr(path+"."+KeyCount, "missing required key")
		}
		n, err := toCount(cv)
		if err != nil {
			return nil, configErr(path+"."+KeyCount, "%v", err)
		}
		s.Count = n
	}

	if ck, ok := m[KeyContentKey]; ok {
		str, ok := ck.(string)
		if !ok || str == "" {
			return nil, configErr(path+"."+KeyContentKey, "must be a non-empty string, got %T", ck)
		}
		s.ContentKey = str
	}
	return s, nil
}

// toCount converts the count forms produced by JSON, YAML and Go callers
func toCount(v any) (int, error) {
	var n int64
	switch c := v.(type) {
	case int:
		n = int64(c)
	case int32:
		n = int64(c)
	case int64:
		n = c
	case uint:
		n = int64(c)
	case uint64:
		if c > math.MaxInt32 {
			return 0, fmt.Errorf("count %d is too large", c)
		}
		n = int64(c)
	case float64:
		if c != math.Trunc(c) {
			return 0, fmt.Errorf("count must be an integer, got %v", c)
		}
		n = int64(c)
	case json.Number:
		i, err := c.Int64()
		if err != nil {
			return 0, fmt.Errorf("count must be an integer, got %s", c)
		}
		n = i
	case string:
		i, err := strconv.ParseInt(c, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("count must be an integer, got %q", c)
		}
		n = i
	default:
		return 0, fmt.Errorf("count must be an integer, got %T", v)
	}
	if n < 0 {
		return 0, fmt.Errorf("count must not be negative, got %d", n)
	}
	if n > math.MaxInt32 {
		return 0, fmt.Errorf("count %d is too large", n)
	}
	return int(n), nil
}
