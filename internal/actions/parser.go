package actions

import (
	"encoding/json"
	"regexp"
	"strings"
)

// Directive is one action request found in model output.
type Directive struct {
	Name   Name
	Params Params
}

var (
	actionTagPattern    = regexp.MustCompile(`\[ACTION:\s*([^\]\n]*)\]`)
	paramsTagPattern    = regexp.MustCompile(`\[PARAMS:`)
	blankRunPattern     = regexp.MustCompile(`\n{3,}`)
	trailingBlankSpaces = regexp.MustCompile(`[ \t]+\n`)
)

// Parse finds the first [ACTION: name] tag and the first [PARAMS: ...] payload after it.
// Unregistered names report no directive. Params degrade from a JSON object to a
// single {"value": ...} entry and finally to nil; a malformed tag never fails.
func Parse(text string, registry *Registry) (Directive, bool) {
	loc := actionTagPattern.FindStringSubmatchIndex(text)
	if len(loc) < 4 {
		return Directive{}, false
	}
	definition, ok := registry.Lookup(text[loc[2]:loc[3]])
	if !ok {
		return Directive{}, false
	}
	directive := Directive{Name: definition.Name}
	// Only a PARAMS tag after the action belongs to it.
	if span, found := findParamsTag(text[loc[1]:]); found {
		directive.Params = span.params()
	}
	return directive, true
}

// StripDirectives removes every ACTION and PARAMS tag, known or not.
func StripDirectives(text string) string {
	cleaned := actionTagPattern.ReplaceAllString(text, "")
	for {
		span, found := findParamsTag(cleaned)
		if !found {
			break
		}
		cleaned = cleaned[:span.start] + cleaned[span.end:]
	}
	cleaned = trailingBlankSpaces.ReplaceAllString(cleaned, "\n")
	cleaned = blankRunPattern.ReplaceAllString(cleaned, "\n\n")
	return strings.TrimSpace(cleaned)
}

type paramsSpan struct {
	start   int
	end     int
	raw     string
	decoded any
	valid   bool
}

// findParamsTag locates the first PARAMS tag. A JSON value is decoded in full first so
// brackets inside it do not end the tag; otherwise the tag ends at the first "]".
func findParamsTag(text string) (paramsSpan, bool) {
	loc := paramsTagPattern.FindStringIndex(text)
	if loc == nil {
		return paramsSpan{}, false
	}
	bodyStart := loc[1]
	body := text[bodyStart:]

	decoder := json.NewDecoder(strings.NewReader(body))
	var decoded any
	if err := decoder.Decode(&decoded); err == nil {
		offset := int(decoder.InputOffset())
		rest := body[offset:]
		trimmed := strings.TrimLeft(rest, " \t\r\n")
		if strings.HasPrefix(trimmed, "]") {
			closeAt := bodyStart + offset + (len(rest) - len(trimmed))
			return paramsSpan{
				start:   loc[0],
				end:     closeAt + 1,
				raw:     strings.TrimSpace(body[:offset]),
				decoded: decoded,
				valid:   true,
			}, true
		}
	}

	closeIndex := strings.Index(body, "]")
	if closeIndex < 0 {
		return paramsSpan{}, false
	}
	return paramsSpan{
		start: loc[0],
		end:   bodyStart + closeIndex + 1,
		raw:   strings.TrimSpace(body[:closeIndex]),
	}, true
}

func (s paramsSpan) params() Params {
	if s.valid {
		if object, ok := s.decoded.(map[string]any); ok {
			return Params(object)
		}
		if s.decoded == nil {
			return nil
		}
		return Params{"value": s.decoded}
	}
	if s.raw == "" {
		return nil
	}
	return Params{"value": s.raw}
}
