package gather

import (
	"fmt"
	"strings"

	"github.com/dshills/gather-mcp/pkg/types"
)

// Section headers framing the peripheral context
const (
	PreviousHeader = "--- Previous Context ---"
	PreviousFooter = "--- End Previous Context ---"
	NextHeader     = "--- Next Context ---"
	NextFooter     = "--- End Next Context ---"
)

// FormatChunkWithContext renders the chunk at index within its sorted group,
// surrounded by the previous and next context windows of cfg.
func FormatChunkWithContext(group []types.Record, index int, cfg *Config) (string, error) {
	if index < 0 || index >= len(group) {
		return "", fmt.Errorf("chunk index %d out of range [0, %d)", index, len(group))
	}

	prev, err := RenderPeripheral(group[:index], cfg.Peripheral.Previous,
		cfg.ContentKey, cfg.OrderKey, true, cfg.SkipAccounting)
	if err != nil {
		return "", fmt.Errorf("previous context: %w", err)
	}

	content, err := group[index].String(cfg.ContentKey)
	if err != nil {
		return "", err
	}

	next, err := RenderPeripheral(group[index+1:], cfg.Peripheral.Next,
		cfg.ContentKey, cfg.OrderKey, false, cfg.SkipAccounting)
	if err != nil {
		return "", fmt.Errorf("next context: %w", err)
	}

	parts := make([]string, 0, len(prev)+len(next)+5)
	parts = append(parts, PreviousHeader)
	parts = append(parts, prev...)
	parts = append(parts, PreviousFooter+"\n")
	parts = append(parts, cfg.MainChunkStart+"\n"+content+"\n"+cfg.MainChunkEnd)
	parts = append(parts, "\n"+NextHeader)
	parts = append(parts, next...)
	parts = append(parts, NextFooter)

	return strings.Join(parts, "\n"), nil
}
