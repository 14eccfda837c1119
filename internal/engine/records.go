package engine

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"
)

// Position is a zero-based line/column pair as ast-grep reports it.
type Position struct {
	Line   int `json:"line"`
	Column int `json:"column"`
}

type ByteOffset struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

type Range struct {
	ByteOffset ByteOffset `json:"byteOffset"`
	Start      Position   `json:"start"`
	End        Position   `json:"end"`
}

// MetaNode is the text and location captured by one metavariable.
type MetaNode struct {
	Text  string `json:"text"`
	Range Range  `json:"range"`
}

// SingleCapture is a $NAME capture.
type SingleCapture struct {
	Name string
	Node MetaNode
}

// MultiCapture is a $$$NAME capture.
type MultiCapture struct {
	Name  string
	Nodes []MetaNode
}

// SingleCaptures keeps the engine's key order when decoded.
type SingleCaptures []SingleCapture

// MultiCaptures keeps the engine's key order when decoded.
type MultiCaptures []MultiCapture

// MetaVariables groups all captures of one match.
type MetaVariables struct {
	Single      SingleCaptures    `json:"single"`
	Multi       MultiCaptures     `json:"multi"`
	Transformed map[string]string `json:"transformed"`
}

// RawMatch mirrors one record of ast-grep's JSON output.
type RawMatch struct {
	Text               string         `json:"text"`
	Range              Range          `json:"range"`
	File               string         `json:"file"`
	Lines              string         `json:"lines"`
	Replacement        *string        `json:"replacement,omitempty"`
	ReplacementOffsets *ByteOffset    `json:"replacementOffsets,omitempty"`
	Language           string         `json:"language"`
	MetaVariables      *MetaVariables `json:"metaVariables,omitempty"`

	// scan only
	RuleID   string `json:"ruleId,omitempty"`
	Severity string `json:"severity,omitempty"`
	Message  string `json:"message,omitempty"`
	Note     string `json:"note,omitempty"`
}

func (s *SingleCaptures) UnmarshalJSON(data []byte) error {
	var out SingleCaptures
	err := decodeOrderedObject(data, func(key string, dec *json.Decoder) error {
		var node MetaNode
		if err := dec.Decode(&node); err != nil {
			return err
		}
		out = append(out, SingleCapture{Name: key, Node: node})
		return nil
	})
	*s = out
	return err
}

func (s SingleCaptures) MarshalJSON() ([]byte, error) {
	return marshalOrdered(len(s), func(i int) (string, any) { return s[i].Name, s[i].Node })
}

func (m *MultiCaptures) UnmarshalJSON(data []byte) error {
	var out MultiCaptures
	err := decodeOrderedObject(data, func(key string, dec *json.Decoder) error {
		var nodes []MetaNode
		if err := dec.Decode(&nodes); err != nil {
			return err
		}
		out = append(out, MultiCapture{Name: key, Nodes: nodes})
		return nil
	})
	*m = out
	return err
}

func (m MultiCaptures) MarshalJSON() ([]byte, error) {
	return marshalOrdered(len(m), func(i int) (string, any) { return m[i].Name, m[i].Nodes })
}

// decodeOrderedObject walks a JSON object key by key so callers see keys in
// document order. null decodes as an empty object.
func decodeOrderedObject(data []byte, each func(key string, dec *json.Decoder) error) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("expected object, got %v", tok)
	}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("expected object key, got %v", tok)
		}
		if err := each(key, dec); err != nil {
			return fmt.Errorf("capture %s: %w", key, err)
		}
	}
	_, err = dec.Token()
	return err
}

func marshalOrdered(n int, at func(int) (string, any)) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i := 0; i < n; i++ {
		key, value := at(i)
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(key)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(value)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// DecodeMatches lazily decodes engine output in emission order. It accepts
// --json=stream output (one object per line) as well as a single JSON array
// (--json / --json=pretty). The sequence stops at the first decode error,
// which is yielded once with a zero RawMatch.
func DecodeMatches(r io.Reader) iter.Seq2[RawMatch, error] {
	return func(yield func(RawMatch, error) bool) {
		br := bufio.NewReader(r)
		first, err := peekNonSpace(br)
		if errors.Is(err, io.EOF) {
			return
		}
		if err != nil {
			yield(RawMatch{}, err)
			return
		}

		dec := json.NewDecoder(br)
		if first == '[' {
			if _, err := dec.Token(); err != nil {
				yield(RawMatch{}, err)
				return
			}
			for dec.More() {
				var m RawMatch
				if err := dec.Decode(&m); err != nil {
					yield(RawMatch{}, fmt.Errorf("decode engine output: %w", err))
					return
				}
				if !yield(m, nil) {
					return
				}
			}
			return
		}

		for {
			var m RawMatch
			err := dec.Decode(&m)
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				yield(RawMatch{}, fmt.Errorf("decode engine output: %w", err))
				return
			}
			if !yield(m, nil) {
				return
			}
		}
	}
}

// CollectMatches materialises DecodeMatches.
func CollectMatches(r io.Reader) ([]RawMatch, error) {
	var out []RawMatch
	for m, err := range DecodeMatches(r) {
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

func peekNonSpace(br *bufio.Reader) (byte, error) {
	for {
		b, err := br.ReadByte()
		if err != nil {
			return 0, err
		}
		switch b {
		case ' ', '\t', '\r', '\n':
			continue
		}
		return b, br.UnreadByte()
	}
}
