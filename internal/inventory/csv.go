// Package inventory imports lock records from CSV exports. Facility
// management tools export inventories with varying header casing and,
// occasionally, UTF-16 encoding with a BOM.
package inventory

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"lototrak/internal/locks"
	"lototrak/internal/storage"
)

// Separator between checklist steps inside the procedures column.
const procedureSeparator = ";"

// Recognized header names, matched case-insensitively.
const (
	fieldName       = "NAME"
	fieldLocation   = "LOCATION"
	fieldCode       = "CODE"
	fieldProcedures = "PROCEDURES"
)

// Record is one inventory row. Code and Procedures are optional: a missing
// code gets generated on import.
type Record struct {
	Name       string
	Location   string
	Code       string
	Procedures []string
}

// Result summarizes an import run.
type Result struct {
	Created int
	Skipped []RowError
}

// RowError is an import failure for a single row. Line is 1-based and counts
// the header.
type RowError struct {
	Line int
	Err  error
}

// ParseFile reads an inventory CSV. A UTF-16 BOM is detected and decoded;
// anything else is read as UTF-8.
func ParseFile(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open CSV file: %w", err)
	}
	defer f.Close()

	return Parse(f)
}

// Parse reads inventory records from r.
func Parse(r io.Reader) ([]Record, error) {
	reader, err := newBOMReader(r)
	if err != nil {
		return nil, err
	}

	headers, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}

	// Find index of relevant fields
	var idxName, idxLocation, idxCode, idxProcedures = -1, -1, -1, -1
	for i, h := range headers {
		switch strings.ToUpper(strings.TrimSpace(h)) {
		case fieldName:
			idxName = i
		case fieldLocation:
			idxLocation = i
		case fieldCode:
			idxCode = i
		case fieldProcedures:
			idxProcedures = i
		}
	}
	if idxName == -1 || idxLocation == -1 {
		return nil, fmt.Errorf("CSV file missing required fields")
	}

	var records []Record
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("error reading CSV: %w", err)
		}

		rec := Record{
			Name:     strings.TrimSpace(row[idxName]),
			Location: strings.TrimSpace(row[idxLocation]),
		}
		if idxCode != -1 {
			rec.Code = strings.TrimSpace(row[idxCode])
		}
		if idxProcedures != -1 {
			for _, p := range strings.Split(row[idxProcedures], procedureSeparator) {
				if p = strings.TrimSpace(p); p != "" {
					rec.Procedures = append(rec.Procedures, p)
				}
			}
		}
		records = append(records, rec)
	}
	return records, nil
}

// newBOMReader sniffs the first two bytes for a UTF-16 BOM and wraps the
// stream in a decoder when one is found.
func newBOMReader(r io.Reader) (*csv.Reader, error) {
	bom := make([]byte, 2)
	n, err := io.ReadFull(r, bom)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return nil, fmt.Errorf("failed to read BOM: %w", err)
	}
	rest := io.MultiReader(strings.NewReader(string(bom[:n])), r)

	var reader *csv.Reader
	if n == 2 && (bom[0] == 0xFE && bom[1] == 0xFF || bom[0] == 0xFF && bom[1] == 0xFE) {
		utf16bom := unicode.BOMOverride(unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewDecoder())
		reader = csv.NewReader(transform.NewReader(rest, utf16bom))
	} else {
		reader = csv.NewReader(rest)
	}

	reader.LazyQuotes = true
	reader.FieldsPerRecord = 0
	return reader, nil
}

// Import creates a lock per record, attributing the creation events to actor.
// Rows that fail validation are skipped and reported, not fatal: a duplicate
// code in the file should not abort the rest of the inventory.
func Import(ctx context.Context, manager *locks.Manager, actor *storage.User, records []Record) Result {
	var result Result
	for i, rec := range records {
		_, err := manager.Create(ctx, locks.CreateInput{
			Name:             rec.Name,
			Location:         rec.Location,
			Code:             rec.Code,
			SafetyProcedures: rec.Procedures,
		}, actor)
		if err != nil {
			line := i + 2 // 1-based, after the header
			slog.Warn("Skipping inventory row", "line", line, "name", rec.Name, "error", err)
			result.Skipped = append(result.Skipped, RowError{Line: line, Err: err})
			continue
		}
		result.Created++
	}
	return result
}
