// Package jsonrepair recovers structured values from malformed model output.
//
// Recovery is progressive and the step order is fixed: each step runs only
// after the previous parse attempt failed, and every step that changes the
// text is recorded in Result.FixesApplied.
package jsonrepair

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/dgallion1/edugest/internal/textnorm"
)

// Fix names, in the order they are attempted.
const (
	FixCodeFences      = "strip_code_fences"
	FixFractions       = "normalize_fractions"
	FixSingleQuotes    = "normalize_single_quotes"
	FixComments        = "strip_comments"
	FixDropTrailing    = "drop_unterminated_entry"
	FixTrailingCommas  = "strip_trailing_commas"
	FixOpenKey         = "complete_open_key"
	FixDanglingKey     = "complete_dangling_key"
	FixMissingClosers  = "append_missing_closers"
	tailDiagnosticSize = 120
)

// Result is a successfully parsed value.
type Result struct {
	Value        any
	Recovered    bool
	FixesApplied []string
}

// ParseError reports text that could not be recovered.
type ParseError struct {
	OriginalLen  int
	FinalLen     int
	FixesApplied []string
	Tail         string
	Err          error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("unrecoverable json (original %d bytes, final %d bytes, fixes %v): %v; tail: %q",
		e.OriginalLen, e.FinalLen, e.FixesApplied, e.Err, e.Tail)
}

func (e *ParseError) Unwrap() error { return e.Err }

type step struct {
	name  string
	apply func(string) string
}

var steps = []step{
	{FixCodeFences, stripCodeFences},
	{FixFractions, normalizeFractions},
	{FixSingleQuotes, normalizeSingleQuotes},
	{FixComments, stripComments},
	{FixDropTrailing, dropUnterminatedEntry},
	{FixTrailingCommas, stripTrailingCommas},
	{FixOpenKey, completeOpenKey},
	{FixDanglingKey, completeDanglingKey},
	{FixMissingClosers, appendMissingClosers},
}

// Recover parses raw, applying repairs until it parses or the steps run out.
func Recover(raw string) (Result, error) {
	text := strings.TrimSpace(raw)
	v, err := parse(text)
	if err == nil {
		return Result{Value: v}, nil
	}

	var fixes []string
	for _, st := range steps {
		next := st.apply(text)
		if next == text {
			continue
		}
		text = next
		fixes = append(fixes, st.name)
		if v, err = parse(text); err == nil {
			return Result{Value: v, Recovered: true, FixesApplied: fixes}, nil
		}
	}

	return Result{}, &ParseError{
		OriginalLen:  len(raw),
		FinalLen:     len(text),
		FixesApplied: fixes,
		Tail:         textnorm.Tail(text, tailDiagnosticSize),
		Err:          err,
	}
}

// Unmarshal recovers raw and decodes the value into v.
func Unmarshal(raw string, v any) (Result, error) {
	res, err := Recover(raw)
	if err != nil {
		return res, err
	}
	b, err := json.Marshal(res.Value)
	if err != nil {
		return res, fmt.Errorf("re-encode recovered value: %w", err)
	}
	if err := json.Unmarshal(b, v); err != nil {
		return res, fmt.Errorf("decode recovered value: %w", err)
	}
	return res, nil
}

func parse(s string) (any, error) {
	if s == "" {
		return nil, fmt.Errorf("empty input")
	}
	var v any
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return nil, err
	}
	return v, nil
}

var fenceRe = regexp.MustCompile("(?s)```[a-zA-Z]*\\s*(.*?)\\s*```")

func stripCodeFences(s string) string {
	if m := fenceRe.FindStringSubmatch(s); len(m) > 1 {
		return strings.TrimSpace(m[1])
	}
	// Truncated output may open a fence and never close it.
	if strings.HasPrefix(s, "```") {
		if nl := strings.IndexByte(s, '\n'); nl >= 0 {
			return strings.TrimSpace(s[nl+1:])
		}
		return strings.TrimSpace(strings.TrimLeft(s, "`"))
	}
	// Leading prose before the first container.
	if i := strings.IndexAny(s, "{["); i > 0 {
		return s[i:]
	}
	return s
}

var (
	danglingDotRe = regexp.MustCompile(`(\d)\.(\s*(?:[,}\]]|$))`)
	leadingDotRe  = regexp.MustCompile(`([:\[,]\s*-?)\.(\d)`)
)

// normalizeFractions turns 2. into 2.0 and .5 into 0.5 outside string
// values.
func normalizeFractions(s string) string {
	s = insertZeros(s, danglingDotRe, 1)
	return insertZeros(s, leadingDotRe, 0)
}

// insertZeros writes a '0' at offset bytes past the end of group 1 for each
// match of re outside string values.
func insertZeros(s string, re *regexp.Regexp, offset int) string {
	locs := re.FindAllStringSubmatchIndex(maskStrings(s), -1)
	if len(locs) == 0 {
		return s
	}
	var b strings.Builder
	b.Grow(len(s) + len(locs))
	last := 0
	for _, loc := range locs {
		at := loc[3] + offset
		b.WriteString(s[last:at])
		b.WriteByte('0')
		last = at
	}
	b.WriteString(s[last:])
	return b.String()
}

// maskStrings blanks the contents of double-quoted strings, keeping the
// quotes and byte offsets.
func maskStrings(s string) string {
	b := []byte(s)
	inString := false
	escaped := false
	for i, c := range b {
		if !inString {
			inString = c == '"'
			continue
		}
		switch {
		case escaped:
			escaped = false
		case c == '\\':
			escaped = true
		case c == '"':
			inString = false
			continue
		}
		b[i] = 'x'
	}
	return string(b)
}

// normalizeSingleQuotes rewrites 'key' and 'value' tokens to double-quoted
// strings. A quote opens a token only where a key or value may start, and
// closes only where one may end, so apostrophes inside words survive.
func normalizeSingleQuotes(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	inDouble := false
	escaped := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if inDouble {
			b.WriteByte(c)
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inDouble = false
			}
			continue
		}
		if c == '"' {
			inDouble = true
			b.WriteByte(c)
			continue
		}
		if c == '\'' && valueMayStart(s, i) {
			if end := singleQuoteEnd(s, i+1); end > 0 {
				inner := strings.ReplaceAll(s[i+1:end], `\'`, `'`)
				inner = strings.ReplaceAll(inner, `"`, `\"`)
				b.WriteByte('"')
				b.WriteString(inner)
				b.WriteByte('"')
				i = end
				continue
			}
		}
		b.WriteByte(c)
	}
	return b.String()
}

func valueMayStart(s string, i int) bool {
	for j := i - 1; j >= 0; j-- {
		switch s[j] {
		case ' ', '\t', '\n', '\r':
			continue
		case '{', '[', ',', ':':
			return true
		default:
			return false
		}
	}
	return true
}

func singleQuoteEnd(s string, from int) int {
	for j := from; j < len(s); j++ {
		if s[j] == '\\' {
			j++
			continue
		}
		if s[j] != '\'' {
			continue
		}
		k := j + 1
		for k < len(s) && strings.IndexByte(" \t\r\n", s[k]) >= 0 {
			k++
		}
		if k == len(s) || strings.IndexByte(":,}]", s[k]) >= 0 {
			return j
		}
	}
	return -1
}

func stripComments(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	inString := false
	escaped := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if inString {
			b.WriteByte(c)
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		if c == '"' {
			inString = true
			b.WriteByte(c)
			continue
		}
		if c == '/' && i+1 < len(s) {
			switch s[i+1] {
			case '/':
				for i < len(s) && s[i] != '\n' {
					i++
				}
				if i < len(s) {
					b.WriteByte('\n')
				}
				continue
			case '*':
				end := strings.Index(s[i+2:], "*/")
				if end < 0 {
					i = len(s)
				} else {
					i += end + 3
				}
				continue
			}
		}
		b.WriteByte(c)
	}
	return strings.TrimSpace(b.String())
}

// scanState is the lexical state of s after a left-to-right scan that only
// tracks strings and containers.
type scanState struct {
	stack    []byte
	inString bool

	// Separator (',', '{', '[') last seen outside strings before the open or
	// most recent string.
	sepBeforeString int
	// Punctuation (',', '{', '[', ':') before the most recent string.
	punctBeforeString int
	lastStringEnd     int
}

func scan(s string) scanState {
	st := scanState{sepBeforeString: -1, punctBeforeString: -1, lastStringEnd: -1}
	lastSep, lastPunct := -1, -1
	escaped := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if st.inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				st.inString = false
				st.lastStringEnd = i
			}
			continue
		}
		switch c {
		case '"':
			st.inString = true
			st.sepBeforeString = lastSep
			st.punctBeforeString = lastPunct
		case '{', '[':
			st.stack = append(st.stack, c)
			lastSep, lastPunct = i, i
		case '}', ']':
			if n := len(st.stack); n > 0 && closerFor(st.stack[n-1]) == c {
				st.stack = st.stack[:n-1]
			}
		case ',':
			lastSep, lastPunct = i, i
		case ':':
			lastPunct = i
		}
	}
	return st
}

func closerFor(open byte) byte {
	if open == '{' {
		return '}'
	}
	return ']'
}

// dropUnterminatedEntry removes a trailing entry cut off inside a string,
// which shows up as an odd number of unescaped quotes.
func dropUnterminatedEntry(s string) string {
	st := scan(s)
	if !st.inString || st.sepBeforeString < 0 {
		return s
	}
	if s[st.sepBeforeString] == ',' {
		return strings.TrimSpace(s[:st.sepBeforeString])
	}
	return s[:st.sepBeforeString+1]
}

func stripTrailingCommas(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	inString := false
	escaped := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if inString {
			b.WriteByte(c)
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		if c == '"' {
			inString = true
		}
		if c == ',' {
			j := i + 1
			for j < len(s) && strings.IndexByte(" \t\r\n", s[j]) >= 0 {
				j++
			}
			if j == len(s) || s[j] == '}' || s[j] == ']' {
				continue
			}
		}
		b.WriteByte(c)
	}
	return strings.TrimSpace(b.String())
}

// completeOpenKey gives a trailing `"key":` a placeholder value.
func completeOpenKey(s string) string {
	st := scan(s)
	if st.inString || !strings.HasSuffix(s, ":") {
		return s
	}
	return s + " null"
}

// completeDanglingKey gives a trailing `"key"` inside an object a colon and
// a placeholder value.
func completeDanglingKey(s string) string {
	st := scan(s)
	n := len(st.stack)
	if st.inString || n == 0 || st.stack[n-1] != '{' {
		return s
	}
	if st.lastStringEnd != len(s)-1 || st.punctBeforeString < 0 {
		return s
	}
	if p := s[st.punctBeforeString]; p != '{' && p != ',' {
		return s
	}
	return s + ": null"
}

func appendMissingClosers(s string) string {
	st := scan(s)
	if st.inString || len(st.stack) == 0 {
		return s
	}
	var b strings.Builder
	b.WriteString(s)
	for i := len(st.stack) - 1; i >= 0; i-- {
		b.WriteByte(closerFor(st.stack[i]))
	}
	return b.String()
}
