package catalog

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/parquet-go/parquet-go"
	"github.com/spf13/cast"
	"gopkg.in/yaml.v3"

	"github.com/lehigh-university-libraries/scanpos/internal/models"
)

// Format is a catalog document encoding
type Format string

const (
	FormatJSON    Format = "json"
	FormatYAML    Format = "yaml"
	FormatParquet Format = "parquet"
)

// FormatFromPath picks a format from the file extension
func FormatFromPath(path string) (Format, error) {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".json":
		return FormatJSON, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".parquet":
		return FormatParquet, nil
	default:
		return "", fmt.Errorf("unsupported file format: %q (supported: .json, .yaml, .yml, .parquet)", ext)
	}
}

// ParseFormat accepts a format name such as "json" or "yml"
func ParseFormat(name string) (Format, error) {
	return FormatFromPath("." + strings.TrimPrefix(strings.ToLower(strings.TrimSpace(name)), "."))
}

type parquetRow struct {
	Code  string `parquet:"code"`
	Name  string `parquet:"name"`
	Price int64  `parquet:"price"`
}

// ReadFile loads a catalog document from disk
func ReadFile(path string) (Entries, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return nil, err
	}

	slog.Debug("Reading catalog document", "path", path, "format", format)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog document: %w", err)
	}
	return Decode(data, format)
}

// WriteFile writes entries to disk in the format implied by the extension
func WriteFile(path string, entries Entries) error {
	format, err := FormatFromPath(path)
	if err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create catalog document: %w", err)
	}
	if err := Encode(f, entries, format); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Decode parses a document of the given format. Any parse or shape error
// wraps ErrMalformedDocument.
func Decode(data []byte, format Format) (Entries, error) {
	switch format {
	case FormatJSON:
		return DecodeJSON(data)
	case FormatYAML:
		return decodeYAML(data)
	case FormatParquet:
		return decodeParquet(data)
	default:
		return nil, fmt.Errorf("unsupported catalog format: %q", format)
	}
}

// Encode writes entries in the given format, ordered by code
func Encode(w io.Writer, entries Entries, format Format) error {
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(entries); err != nil {
			return fmt.Errorf("failed to encode catalog: %w", err)
		}
		return nil
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(entries); err != nil {
			return fmt.Errorf("failed to encode catalog: %w", err)
		}
		return enc.Close()
	case FormatParquet:
		return encodeParquet(w, entries)
	default:
		return fmt.Errorf("unsupported catalog format: %q", format)
	}
}

// DecodeJSON parses a {"code": {"name": ..., "price": ...}} document
func DecodeJSON(data []byte) (Entries, error) {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedDocument, err)
	}
	if raw == nil {
		return nil, fmt.Errorf("%w: document is empty", ErrMalformedDocument)
	}
	return fromRaw(raw)
}

// EncodeJSON produces the compact form stored under storage.KeyCatalog
func EncodeJSON(entries Entries) ([]byte, error) {
	return json.Marshal(entries)
}

func decodeYAML(data []byte) (Entries, error) {
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedDocument, err)
	}
	if raw == nil {
		return nil, fmt.Errorf("%w: document is empty", ErrMalformedDocument)
	}
	return fromRaw(raw)
}

func fromRaw(raw map[string]any) (Entries, error) {
	entries := make(Entries, len(raw))
	for code, v := range raw {
		fields, err := cast.ToStringMapE(v)
		if err != nil {
			return nil, fmt.Errorf("%w: entry %q is not an object", ErrMalformedDocument, code)
		}
		entries[code] = models.CatalogEntry{
			Code:  code,
			Name:  cast.ToString(fields["name"]),
			Price: models.Int(fields["price"], 0),
		}
	}
	return normalize(entries), nil
}

func decodeParquet(data []byte) (Entries, error) {
	pf, err := parquet.OpenFile(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedDocument, err)
	}
	slog.Debug("Parquet catalog opened", "num_rows", pf.NumRows(), "num_row_groups", len(pf.RowGroups()))

	reader := parquet.NewGenericReader[parquetRow](pf)
	defer reader.Close()

	entries := Entries{}
	rows := make([]parquetRow, 128)
	for {
		n, err := reader.Read(rows)
		for _, row := range rows[:n] {
			entries[row.Code] = models.CatalogEntry{Code: row.Code, Name: row.Name, Price: row.Price}
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrMalformedDocument, err)
		}
	}
	return normalize(entries), nil
}

func encodeParquet(w io.Writer, entries Entries) error {
	codes := make([]string, 0, len(entries))
	for code := range entries {
		codes = append(codes, code)
	}
	slices.Sort(codes)

	rows := make([]parquetRow, 0, len(codes))
	for _, code := range codes {
		e := entries[code]
		rows = append(rows, parquetRow{Code: code, Name: e.Name, Price: e.Price})
	}

	writer := parquet.NewGenericWriter[parquetRow](w)
	if _, err := writer.Write(rows); err != nil {
		return fmt.Errorf("failed to write parquet rows: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to finish parquet document: %w", err)
	}
	return nil
}
