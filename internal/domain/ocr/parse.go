package ocr

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"reflect"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

const (
	keyLines  = "dynamic"
	keyHeader = "static"
)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func structValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		// Report violations with the JSON field names OCR producers use.
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
	})
	return validate
}

// Parse decodes a JSON OCR payload of the form
// {"dynamic": [...lines], "static": {...header}}.
func Parse(data []byte) (*Document, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw any
	if err := dec.Decode(&raw); err != nil {
		ec := NewErrorCollection()
		ec.Add(FieldError{Code: ErrCodeInvalidPayload, Message: fmt.Sprintf("payload is not valid JSON: %v", err)})
		return nil, ec.Err()
	}
	m, ok := raw.(map[string]any)
	if !ok {
		ec := NewErrorCollection()
		ec.AddTypeError("", "object", raw)
		return nil, ec.Err()
	}
	return FromMap(m)
}

// FromMap builds a Document from an already decoded payload. Every
// violation is collected; a partially typed document is never returned.
func FromMap(m map[string]any) (*Document, error) {
	ec := NewErrorCollection()
	doc := &Document{}

	rawLines, ok := m[keyLines]
	switch {
	case !ok || rawLines == nil:
		ec.AddRequiredError(keyLines)
	default:
		items, isList := rawLines.([]any)
		if !isList {
			ec.AddTypeError(keyLines, "array", rawLines)
			break
		}
		doc.Lines = make([]InvoiceLine, 0, len(items))
		for i, item := range items {
			path := fmt.Sprintf("%s[%d]", keyLines, i)
			obj, isObj := item.(map[string]any)
			if !isObj {
				ec.AddTypeError(path, "object", item)
				// keep indices aligned with the payload for later reports
				doc.Lines = append(doc.Lines, InvoiceLine{})
				continue
			}
			doc.Lines = append(doc.Lines, decodeLine(path, obj, ec))
		}
	}

	rawHeader, ok := m[keyHeader]
	switch {
	case !ok || rawHeader == nil:
		ec.AddRequiredError(keyHeader)
	default:
		obj, isObj := rawHeader.(map[string]any)
		if !isObj {
			ec.AddTypeError(keyHeader, "object", rawHeader)
			break
		}
		doc.Header = decodeHeader(keyHeader, obj, ec)
	}

	reported := make(map[string]bool, len(ec.Errors()))
	for _, e := range ec.Errors() {
		reported[e.Path] = true
	}
	if err := structValidator().Struct(doc); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return nil, fmt.Errorf("validate OCR document: %w", err)
		}
		for _, fe := range verrs {
			path := strings.TrimPrefix(fe.Namespace(), "Document.")
			if reported[path] {
				continue
			}
			switch fe.Tag() {
			case "max":
				ec.AddLengthError(path, atoiOr(fe.Param(), 0))
			case "required":
				ec.AddRequiredError(path)
			default:
				ec.Add(FieldError{Path: path, Code: ErrCodeInvalidValue, Message: "invalid value"})
			}
		}
	}

	if err := ec.Err(); err != nil {
		return nil, err
	}
	return doc, nil
}

func decodeLine(path string, obj map[string]any, ec *ErrorCollection) InvoiceLine {
	var line InvoiceLine
	fields := lineFields(&line)
	assign := func(name, key string, v any) {
		target := fields[name]
		if *target != "" {
			return
		}
		s, ok := scalarString(v)
		if !ok {
			ec.AddTypeError(path+"."+key, "string", v)
			return
		}
		*target = s
	}
	keys := slices.Sorted(maps.Keys(obj))
	for _, key := range keys {
		if _, ok := fields[key]; ok {
			assign(key, key, obj[key])
		}
	}
	for _, key := range keys {
		if name, ok := lineAliases[key]; ok {
			assign(name, key, obj[key])
		}
	}
	return line
}

func decodeHeader(path string, obj map[string]any, ec *ErrorCollection) *Header {
	h := &Header{}
	fields := headerFields(h)
	assign := func(name, key string, v any) {
		target := fields[name]
		if *target != nil {
			return
		}
		f, ok := toField(v)
		if !ok {
			ec.AddTypeError(path+"."+key, "string or list of strings", v)
			return
		}
		*target = f
	}
	keys := slices.Sorted(maps.Keys(obj))
	for _, key := range keys {
		if _, ok := fields[key]; ok {
			assign(key, key, obj[key])
		}
	}
	for _, key := range keys {
		if name, ok := headerAliases[key]; ok {
			assign(name, key, obj[key])
		}
	}
	return h
}

func toField(v any) (Field, bool) {
	switch t := v.(type) {
	case nil:
		return nil, true
	case []string:
		return Field(t), true
	case []any:
		f := make(Field, 0, len(t))
		for _, item := range t {
			s, ok := scalarString(item)
			if !ok {
				return nil, false
			}
			f = append(f, s)
		}
		return f, true
	}
	s, ok := scalarString(v)
	if !ok {
		return nil, false
	}
	return Field{s}, true
}

func scalarString(v any) (string, bool) {
	switch t := v.(type) {
	case nil:
		return "", true
	case string:
		return t, true
	case json.Number:
		return t.String(), true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32), true
	case int:
		return strconv.Itoa(t), true
	case int64:
		return strconv.FormatInt(t, 10), true
	case int32:
		return strconv.FormatInt(int64(t), 10), true
	}
	return "", false
}

func atoiOr(s string, def int) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}
