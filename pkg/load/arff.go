package load

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/mchmarny/riskprep/pkg/table"
)

const (
	arffMissing   = "?"
	maxLineLength = 1024 * 1024
)

var errSparseARFF = errors.New("sparse ARFF data is not supported")

// ARFF decodes attribute-relation files. Numeric, real and integer
// attributes become numeric columns; nominal, string and date attributes
// become categorical columns holding the decoded text.
type ARFF struct{}

type arffAttr struct {
	name    string
	numeric bool
	floats  []float64
	texts   []string
	null    []bool
}

func (ARFF) Decode(r io.Reader) (*table.Table, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineLength)

	var attrs []*arffAttr
	inData := false
	lineNo := 0
	sawRelation := false

	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "%") {
			continue
		}

		if !inData {
			keyword, rest := splitKeyword(line)
			switch strings.ToLower(keyword) {
			case "@relation":
				sawRelation = true
			case "@attribute":
				a, err := parseAttribute(rest)
				if err != nil {
					return nil, fmt.Errorf("line %d: %w", lineNo, err)
				}
				attrs = append(attrs, a)
			case "@data":
				if len(attrs) == 0 {
					return nil, fmt.Errorf("line %d: @data before any @attribute", lineNo)
				}
				inData = true
			default:
				return nil, fmt.Errorf("line %d: unexpected header line: %q", lineNo, line)
			}
			continue
		}

		if strings.HasPrefix(line, "{") {
			return nil, fmt.Errorf("line %d: %w", lineNo, errSparseARFF)
		}

		vals, err := splitDataLine(line)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		if len(vals) != len(attrs) {
			return nil, fmt.Errorf("line %d: expected %d values, got %d", lineNo, len(attrs), len(vals))
		}
		for i, v := range vals {
			if err := attrs[i].append(v); err != nil {
				return nil, fmt.Errorf("line %d: %w", lineNo, err)
			}
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading ARFF content: %w", err)
	}

	if !sawRelation || !inData {
		return nil, errors.New("not an ARFF document: missing @relation or @data")
	}

	cols := make([]*table.Column, len(attrs))
	for i, a := range attrs {
		if a.numeric {
			cols[i] = table.NewNumeric(a.name, a.floats)
			continue
		}
		cols[i] = table.NewCategorical(a.name, a.texts, a.null)
	}
	return table.New(cols...)
}

func (a *arffAttr) append(v string) error {
	missing := v == arffMissing
	if a.numeric {
		if missing {
			a.floats = append(a.floats, math.NaN())
			return nil
		}
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("attribute %s: invalid numeric value %q", a.name, v)
		}
		a.floats = append(a.floats, f)
		return nil
	}
	if missing {
		a.texts = append(a.texts, "")
		a.null = append(a.null, true)
		return nil
	}
	a.texts = append(a.texts, v)
	a.null = append(a.null, false)
	return nil
}

func splitKeyword(line string) (string, string) {
	i := strings.IndexAny(line, " \t")
	if i < 0 {
		return line, ""
	}
	return line[:i], strings.TrimSpace(line[i+1:])
}

func parseAttribute(def string) (*arffAttr, error) {
	name, rest, err := readName(def)
	if err != nil {
		return nil, err
	}
	if name == "" {
		return nil, errors.New("attribute without a name")
	}

	kind := strings.ToLower(strings.TrimSpace(rest))
	switch {
	case kind == "numeric" || kind == "real" || kind == "integer":
		return &arffAttr{name: name, numeric: true}, nil
	case strings.HasPrefix(kind, "{"), kind == "string", strings.HasPrefix(kind, "date"):
		return &arffAttr{name: name}, nil
	case kind == "":
		return nil, fmt.Errorf("attribute %s has no type", name)
	default:
		return nil, fmt.Errorf("attribute %s has unsupported type %q", name, rest)
	}
}

// readName reads a possibly quoted attribute name and returns the remainder.
func readName(s string) (string, string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", "", nil
	}
	if q := s[0]; q == '\'' || q == '"' {
		end := strings.IndexByte(s[1:], q)
		if end < 0 {
			return "", "", fmt.Errorf("unterminated quoted name: %s", s)
		}
		return s[1 : end+1], s[end+2:], nil
	}
	name, rest := splitKeyword(s)
	return name, rest, nil
}

// splitDataLine splits a dense data row on commas, honoring single and
// double quotes and trimming unquoted whitespace.
func splitDataLine(line string) ([]string, error) {
	var (
		out    []string
		cur    strings.Builder
		quote  byte
		quoted bool
	)
	for i := 0; i < len(line); i++ {
		ch := line[i]
		switch {
		case quote != 0:
			if ch == '\\' && i+1 < len(line) {
				i++
				cur.WriteByte(line[i])
				continue
			}
			if ch == quote {
				quote = 0
				continue
			}
			cur.WriteByte(ch)
		case ch == '\'' || ch == '"':
			quote = ch
			quoted = true
		case ch == ',':
			out = append(out, finishToken(cur.String(), quoted))
			cur.Reset()
			quoted = false
		default:
			cur.WriteByte(ch)
		}
	}
	if quote != 0 {
		return nil, errors.New("unterminated quoted value")
	}
	out = append(out, finishToken(cur.String(), quoted))
	return out, nil
}

func finishToken(s string, quoted bool) string {
	if quoted {
		return s
	}
	return strings.TrimSpace(s)
}
