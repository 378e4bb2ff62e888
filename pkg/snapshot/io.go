package snapshot

import (
	"bufio"
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schema.json
var schemaJSON string

const schemaURL = "https://asphalt.local/snapshot.schema.json"

var (
	schemaOnce sync.Once
	schema     *jsonschema.Schema
	schemaErr  error
)

func compiledSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		schema, schemaErr = jsonschema.CompileString(schemaURL, schemaJSON)
	})
	return schema, schemaErr
}

// zstdMagic starts every zstd frame.
var zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}

// Options control how a document is written.
type Options struct {
	Compress bool
}

// Write encodes doc to w as JSON, zstd-compressed if requested.
func Write(w io.Writer, doc Document, opts Options) error {
	if !opts.Compress {
		return writeJSON(w, doc)
	}
	enc, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return err
	}
	if err := writeJSON(enc, doc); err != nil {
		enc.Close()
		return err
	}
	return enc.Close()
}

func writeJSON(w io.Writer, doc Document) error {
	bw := bufio.NewWriterSize(w, 64*1024)
	je := json.NewEncoder(bw)
	je.SetIndent("", "  ")
	if err := je.Encode(doc); err != nil {
		return fmt.Errorf("json encode: %w", err)
	}
	return bw.Flush()
}

// Read decodes a document written by Write. Compression is detected from
// the stream. The raw document is checked against the snapshot schema
// before it is decoded.
func Read(r io.Reader) (Document, error) {
	var doc Document
	br := bufio.NewReaderSize(r, 64*1024)
	magic, _ := br.Peek(len(zstdMagic))

	var src io.Reader = br
	if bytes.Equal(magic, zstdMagic) {
		dec, err := zstd.NewReader(br)
		if err != nil {
			return doc, err
		}
		defer dec.Close()
		src = dec
	}
	data, err := io.ReadAll(src)
	if err != nil {
		return doc, err
	}

	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return doc, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	sch, err := compiledSchema()
	if err != nil {
		return doc, fmt.Errorf("snapshot schema: %w", err)
	}
	if err := sch.Validate(raw); err != nil {
		return doc, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return doc, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	if doc.Header.Version != Version {
		return doc, fmt.Errorf("%w: %d", ErrUnsupportedVersion, doc.Header.Version)
	}
	return doc, nil
}

// WriteFile writes doc to path, creating parent directories. The file is
// written to a temporary name first and renamed into place.
func WriteFile(path string, doc Document, opts Options) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if err := Write(f, doc, opts); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}

// ReadFile reads a document from path.
func ReadFile(path string) (Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return Document{}, err
	}
	defer f.Close()
	return Read(f)
}
