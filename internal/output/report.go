package output

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/vinceaperri/azure-linux-pkg-impact-analyzer/internal/analyzer"
)

// ReportHeader is the first row of every report.
var ReportHeader = []string{
	"Package",
	"Size",
	"Size (Bytes)",
	"Total Removal Size",
	"Total Removal Size (Bytes)",
	"Co-removed Packages",
}

// ReportOptions controls report formatting.
type ReportOptions struct {
	// Delimiter separates fields. Zero means ','.
	Delimiter rune
}

// ParseDelimiter validates a user-supplied delimiter. It must be a single
// character that is not a quote, space, carriage return or newline.
func ParseDelimiter(s string) (rune, error) {
	if s == `\t` || s == "tab" {
		return '\t', nil
	}
	r, size := utf8.DecodeRuneInString(s)
	if size == 0 || size != len(s) || r == utf8.RuneError {
		return 0, fmt.Errorf("delimiter must be a single character, got %q", s)
	}
	if strings.ContainsRune("\"\r\n ", r) {
		return 0, fmt.Errorf("delimiter %q is not allowed", s)
	}
	return r, nil
}

// WriteReport writes one row per record, in the order given.
func WriteReport(w io.Writer, records []analyzer.Record, opts ReportOptions) error {
	cw := csv.NewWriter(w)
	if opts.Delimiter != 0 {
		cw.Comma = opts.Delimiter
	}

	if err := cw.Write(ReportHeader); err != nil {
		return fmt.Errorf("failed to write report header: %w", err)
	}
	for _, r := range records {
		row := []string{
			r.Identity,
			analyzer.FormatSize(r.SizeBytes),
			strconv.FormatInt(r.SizeBytes, 10),
			analyzer.FormatSize(r.TotalRemovalBytes),
			strconv.FormatInt(r.TotalRemovalBytes, 10),
			strings.Join(r.CoRemoved, " "),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("failed to write report row for %s: %w", r.Identity, err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("failed to flush report: %w", err)
	}
	return nil
}
