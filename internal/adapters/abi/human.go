package abi

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// abiEntry is one element of a JSON ABI
type abiEntry struct {
	Type            string     `json:"type"`
	Name            string     `json:"name,omitempty"`
	Inputs          []abiParam `json:"inputs"`
	Outputs         []abiParam `json:"outputs,omitempty"`
	StateMutability string     `json:"stateMutability,omitempty"`
	Anonymous       bool       `json:"anonymous,omitempty"`
}

type abiParam struct {
	Name       string     `json:"name"`
	Type       string     `json:"type"`
	Indexed    bool       `json:"indexed,omitempty"`
	Components []abiParam `json:"components,omitempty"`
}

var (
	headerRe = regexp.MustCompile(`^(function|event|error|constructor|fallback|receive)\b\s*([A-Za-z_$][A-Za-z0-9_$]*)?\s*\(`)
	arrayRe  = regexp.MustCompile(`^(\[\d*\])+`)
)

// IsHumanReadable reports whether data looks like a list of signatures
// rather than a JSON ABI.
func IsHumanReadable(data []byte) bool {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "" || strings.HasPrefix(trimmed, "{") {
		return false
	}
	if strings.HasPrefix(trimmed, "[") {
		var list []string
		return json.Unmarshal([]byte(trimmed), &list) == nil
	}
	return true
}

// ParseHumanReadable parses signatures such as
// "function store(uint256 num) public" into an ABI. data may be a JSON
// array of strings or one signature per line; blank lines and // comments
// are skipped. The JSON ABI equivalent is returned alongside.
func ParseHumanReadable(data []byte) (abi.ABI, []byte, error) {
	var lines []string
	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, "[") {
		if err := json.Unmarshal([]byte(trimmed), &lines); err != nil {
			return abi.ABI{}, nil, fmt.Errorf("invalid signature list: %w", err)
		}
	} else {
		lines = strings.Split(trimmed, "\n")
	}

	entries := make([]abiEntry, 0, len(lines))
	for i, line := range lines {
		line = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(line), ";"))
		if line == "" || strings.HasPrefix(line, "//") {
			continue
		}
		entry, err := parseSignature(line)
		if err != nil {
			return abi.ABI{}, nil, fmt.Errorf("line %d %q: %w", i+1, line, err)
		}
		entries = append(entries, entry)
	}

	raw, err := json.Marshal(entries)
	if err != nil {
		return abi.ABI{}, nil, err
	}
	parsed, err := abi.JSON(strings.NewReader(string(raw)))
	if err != nil {
		return abi.ABI{}, nil, fmt.Errorf("invalid abi: %w", err)
	}
	return parsed, raw, nil
}

func parseSignature(line string) (abiEntry, error) {
	m := headerRe.FindStringSubmatchIndex(line)
	if m == nil {
		return abiEntry{}, fmt.Errorf("expected function, event, error or constructor")
	}
	entry := abiEntry{Type: line[m[2]:m[3]], Inputs: []abiParam{}}
	if m[4] >= 0 {
		entry.Name = line[m[4]:m[5]]
	}
	switch entry.Type {
	case "function", "event", "error":
		if entry.Name == "" {
			return abiEntry{}, fmt.Errorf("%s without a name", entry.Type)
		}
	}

	open := m[1] - 1
	end, err := matchParen(line, open)
	if err != nil {
		return abiEntry{}, err
	}
	if entry.Inputs, err = parseParams(line[open+1 : end]); err != nil {
		return abiEntry{}, err
	}

	rest := strings.TrimSpace(line[end+1:])
	if entry.Type == "event" {
		entry.Anonymous = strings.Contains(rest, "anonymous")
		return entry, nil
	}
	for _, in := range entry.Inputs {
		if in.Indexed {
			return abiEntry{}, fmt.Errorf("indexed is only valid on event parameters")
		}
	}
	if entry.Type == "error" {
		return entry, nil
	}

	entry.StateMutability = "nonpayable"
	if idx := strings.Index(rest, "returns"); idx >= 0 {
		ret := strings.TrimSpace(rest[idx+len("returns"):])
		if !strings.HasPrefix(ret, "(") {
			return abiEntry{}, fmt.Errorf("expected ( after returns")
		}
		retEnd, err := matchParen(ret, 0)
		if err != nil {
			return abiEntry{}, err
		}
		if entry.Outputs, err = parseParams(ret[1:retEnd]); err != nil {
			return abiEntry{}, err
		}
		rest = rest[:idx]
	}
	if entry.Type == "function" && entry.Outputs == nil {
		entry.Outputs = []abiParam{}
	}
	for _, word := range strings.Fields(rest) {
		switch word {
		case "view", "pure", "payable", "nonpayable":
			entry.StateMutability = word
		case "constant":
			entry.StateMutability = "view"
		}
	}
	return entry, nil
}

func parseParams(s string) ([]abiParam, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return []abiParam{}, nil
	}
	parts, err := splitList("("+s+")", '(', ')')
	if err != nil {
		return nil, err
	}
	params := make([]abiParam, 0, len(parts))
	for _, part := range parts {
		p, err := parseParam(part)
		if err != nil {
			return nil, err
		}
		params = append(params, p)
	}
	return params, nil
}

func parseParam(s string) (abiParam, error) {
	s = strings.TrimSpace(s)
	var p abiParam

	if strings.HasPrefix(s, "tuple(") {
		s = s[len("tuple"):]
	}
	if strings.HasPrefix(s, "(") {
		end, err := matchParen(s, 0)
		if err != nil {
			return p, err
		}
		if p.Components, err = parseParams(s[1:end]); err != nil {
			return p, err
		}
		p.Type = "tuple"
		s = s[end+1:]
		if arr := arrayRe.FindString(s); arr != "" {
			p.Type += arr
			s = s[len(arr):]
		}
		s = strings.TrimSpace(s)
	} else {
		fields := strings.Fields(s)
		if len(fields) == 0 {
			return p, fmt.Errorf("empty parameter")
		}
		p.Type = normalizeType(fields[0])
		s = strings.Join(fields[1:], " ")
	}

	for _, word := range strings.Fields(s) {
		switch word {
		case "indexed":
			p.Indexed = true
		case "memory", "calldata", "storage", "payable":
		default:
			if p.Name != "" {
				return p, fmt.Errorf("unexpected %q in parameter", word)
			}
			p.Name = word
		}
	}
	return p, nil
}

func normalizeType(t string) string {
	base, suffix := t, ""
	if i := strings.Index(t, "["); i >= 0 {
		base, suffix = t[:i], t[i:]
	}
	switch base {
	case "uint":
		base = "uint256"
	case "int":
		base = "int256"
	case "byte":
		base = "bytes1"
	}
	return base + suffix
}

func matchParen(s string, open int) (int, error) {
	depth := 0
	for i := open; i < len(s); i++ {
		switch s[i] {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return i, nil
			}
		}
	}
	return 0, fmt.Errorf("unbalanced parentheses")
}
