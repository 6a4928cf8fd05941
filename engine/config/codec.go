package config

import (
	"fmt"
	"strconv"
	"strings"
)

// This file holds the hand-rolled key-value text codec for RenderConfiguration.
// The asset registry (engine/asset/registry.go) has its own, separate codec.
// Neither file format is YAML — YAML I/O is a named Non-goal — so rather than
// reach for a YAML library this follows the teacher's own habit of hand-rolling
// a small parser for a format it controls end to end (engine/shader's WGSL
// reflection does the same instead of importing a WGSL toolchain).

// line is one parsed "Key: Value" line, optionally a list item ("- Key: Value").
type line struct {
	indent   int
	listItem bool
	key      string
	value    string
}

// parseLine splits one source line into indent depth, an optional leading "- "
// list-item marker, and a "Key: Value" pair. ok is false for blank lines, lines
// with no ":" separator, and lines with an empty key. A bare "Assets:" list header
// parses with an empty value, which callers check for by key. Comment lines get no
// special handling.
func parseLine(raw string) (line, bool) {
	indent := 0
	for indent < len(raw) && raw[indent] == ' ' {
		indent++
	}
	trimmed := strings.TrimRight(raw[indent:], " \t\r")
	if trimmed == "" {
		return line{}, false
	}

	listItem := false
	if strings.HasPrefix(trimmed, "- ") {
		listItem = true
		trimmed = trimmed[2:]
		indent += 2
	}

	idx := strings.Index(trimmed, ":")
	if idx < 0 {
		return line{}, false
	}
	key := strings.TrimSpace(trimmed[:idx])
	value := strings.TrimSpace(trimmed[idx+1:])
	if key == "" {
		return line{}, false
	}
	return line{indent: indent, listItem: listItem, key: key, value: value}, true
}

func formatLine(indentSteps int, listItem bool, key, value string) string {
	prefix := strings.Repeat("  ", indentSteps)
	if listItem {
		prefix += "- "
	}
	return fmt.Sprintf("%s%s: %s", prefix, key, value)
}

func formatBool(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

func parseBool(s string) bool { return s == "true" }

func parseUint32(s string) (uint32, error) {
	v, err := strconv.ParseUint(s, 10, 32)
	return uint32(v), err
}

// Marshal serializes c into the flat "Key: Value" text format RendererConfiguration
// is persisted under. Fields appear in declaration order.
func (c RenderConfiguration) Marshal() []byte {
	lines := []string{
		formatLine(0, false, "FramesInFlight", strconv.FormatUint(uint64(c.FramesInFlight), 10)),
		formatLine(0, false, "ComputeEnvironmentMaps", formatBool(c.ComputeEnvironmentMaps)),
		formatLine(0, false, "EnvironmentMapResolution", strconv.FormatUint(uint64(c.EnvironmentMapResolution), 10)),
		formatLine(0, false, "IrradianceSamples", strconv.FormatUint(uint64(c.IrradianceSamples), 10)),
		formatLine(0, false, "MaxPointLights", strconv.FormatUint(uint64(c.MaxPointLights), 10)),
		formatLine(0, false, "MaxSpotLights", strconv.FormatUint(uint64(c.MaxSpotLights), 10)),
	}
	return []byte(strings.Join(lines, "\n") + "\n")
}

// UnmarshalRenderConfiguration parses the text format Marshal produces. Unknown
// keys are ignored (forward-compatible with a newer writer); missing keys keep
// the zero value, so callers should start from DefaultRenderConfiguration and
// overlay the parsed result only for fields actually present — this function
// always returns the full set it found, parsed independently.
func UnmarshalRenderConfiguration(data []byte) (RenderConfiguration, error) {
	var c RenderConfiguration
	for _, raw := range strings.Split(string(data), "\n") {
		parsed, ok := parseLine(raw)
		if !ok {
			continue
		}
		var err error
		switch parsed.key {
		case "FramesInFlight":
			c.FramesInFlight, err = parseUint32(parsed.value)
		case "ComputeEnvironmentMaps":
			c.ComputeEnvironmentMaps = parseBool(parsed.value)
		case "EnvironmentMapResolution":
			c.EnvironmentMapResolution, err = parseUint32(parsed.value)
		case "IrradianceSamples":
			c.IrradianceSamples, err = parseUint32(parsed.value)
		case "MaxPointLights":
			c.MaxPointLights, err = parseUint32(parsed.value)
		case "MaxSpotLights":
			c.MaxSpotLights, err = parseUint32(parsed.value)
		}
		if err != nil {
			return RenderConfiguration{}, fmt.Errorf("config: parse %s: %w", parsed.key, err)
		}
	}
	return c, nil
}
