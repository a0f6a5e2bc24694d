package graph

import (
	"bytes"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/matzehuels/bnfold/pkg/errors"
)

// Format selects a model encoding.
type Format string

// Supported encodings.
const (
	FormatJSON    Format = "json"
	FormatMsgpack Format = "msgpack"
)

// FormatFromPath picks the encoding from a file extension:
// .json for JSON, .msgpack or .mp for msgpack.
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON, nil
	case ".msgpack", ".mp":
		return FormatMsgpack, nil
	default:
		return "", errors.New(errors.ErrCodeInvalidFormat, "cannot infer model format from %q (want .json, .msgpack or .mp)", path)
	}
}

// ParseFormat parses a format name or content type.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "json", "application/json", "":
		return FormatJSON, nil
	case "msgpack", "mp", "application/msgpack", "application/x-msgpack", "application/vnd.msgpack":
		return FormatMsgpack, nil
	default:
		return "", errors.New(errors.ErrCodeInvalidFormat, "unsupported model format %q", s)
	}
}

// ContentType returns the MIME type for the format.
func (f Format) ContentType() string {
	if f == FormatMsgpack {
		return "application/msgpack"
	}
	return "application/json"
}

// Ext returns the canonical file extension, including the dot.
func (f Format) Ext() string {
	if f == FormatMsgpack {
		return ".msgpack"
	}
	return ".json"
}

// =============================================================================
// Model Serialization API
// =============================================================================

// Marshal encodes v (a *Model or any other tagged value) in format f.
// Msgpack output sorts map keys, so equal models encode to equal bytes.
func Marshal(v any, f Format) ([]byte, error) {
	var buf bytes.Buffer
	if err := Encode(&buf, v, f); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Encode writes v to w in format f. JSON output is indented.
func Encode(w io.Writer, v any, f Format) error {
	switch f {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(v); err != nil {
			return fmt.Errorf("encode: %w", err)
		}
	case FormatMsgpack:
		enc := msgpack.NewEncoder(w)
		enc.SetSortMapKeys(true)
		if err := enc.Encode(v); err != nil {
			return fmt.Errorf("encode: %w", err)
		}
	default:
		return errors.New(errors.ErrCodeInvalidFormat, "unsupported model format %q", f)
	}
	return nil
}

// Decode reads a value in format f from r into v.
func Decode(r io.Reader, v any, f Format) error {
	var err error
	switch f {
	case FormatJSON:
		err = json.NewDecoder(r).Decode(v)
	case FormatMsgpack:
		dec := msgpack.NewDecoder(r)
		err = dec.Decode(v)
	default:
		return errors.New(errors.ErrCodeInvalidFormat, "unsupported model format %q", f)
	}
	if err != nil {
		return errors.Wrap(errors.ErrCodeInvalidFormat, err, "decode %s", f)
	}
	return nil
}

// Unmarshal decodes a model from data.
func Unmarshal(data []byte, f Format) (*Model, error) {
	return Read(bytes.NewReader(data), f)
}

// Read decodes a model from r.
func Read(r io.Reader, f Format) (*Model, error) {
	var m Model
	if err := Decode(r, &m, f); err != nil {
		return nil, err
	}
	return &m, nil
}

// Write encodes m to w.
func Write(m *Model, w io.Writer, f Format) error {
	return Encode(w, m, f)
}

// ReadFile reads a model file, choosing the codec by extension.
func ReadFile(path string) (*Model, error) {
	if err := errors.ValidateModelPath(path); err != nil {
		return nil, err
	}
	f, err := FormatFromPath(path)
	if err != nil {
		return nil, err
	}
	file, err := os.Open(path)
	if err != nil {
		if stderrors.Is(err, fs.ErrNotExist) {
			return nil, errors.Wrap(errors.ErrCodeFileNotFound, err, "model %s", path)
		}
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer file.Close()

	m, err := Read(file, f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

// WriteFile writes a model file, choosing the codec by extension.
// The file is created with 0644 permissions.
func WriteFile(m *Model, path string) error {
	if err := errors.ValidateModelPath(path); err != nil {
		return err
	}
	f, err := FormatFromPath(path)
	if err != nil {
		return err
	}
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := Write(m, file, f); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}
