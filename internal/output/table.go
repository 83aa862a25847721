// Package output provides terminal output utilities for pkgimpact.
//
// This package includes:
//   - Table rendering for impact records, explanations and run history
//   - The delimited report written by the analyze command
//   - Progress bars and spinners for long-running scans
//
// Tables use box-drawing rules and lipgloss styling when stdout is a
// terminal. Progress indicators are safe for use from multiple goroutines.
package output

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/dustin/go-humanize"

	"github.com/vinceaperri/azure-linux-pkg-impact-analyzer/internal/analyzer"
	"github.com/vinceaperri/azure-linux-pkg-impact-analyzer/internal/store"
)

// RenderImpactTable renders records in the order given, one per row.
func RenderImpactTable(records []analyzer.Record) string {
	if len(records) == 0 {
		return "No packages found.\n"
	}

	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("%-4s %-44s %12s %14s %10s\n",
		"#", "Package", "Size", "Removal Size", "Co-removed"))
	sb.WriteString(strings.Repeat("─", 88))
	sb.WriteString("\n")

	for i, r := range records {
		// Pad before styling so escape codes do not skew the columns.
		sb.WriteString(fmt.Sprintf("%-4d %-44s %12s %s %10s\n",
			i+1,
			truncate(r.Identity, 44),
			analyzer.FormatSize(r.SizeBytes),
			colorize(styleNumber, fmt.Sprintf("%14s", analyzer.FormatSize(r.TotalRemovalBytes))),
			humanize.Comma(int64(len(r.CoRemoved)))))
	}

	return sb.String()
}

// RenderExplain renders the removal impact of one package. members holds
// the records of its co-removed packages, used for their sizes.
func RenderExplain(r analyzer.Record, members []analyzer.Record) string {
	var sb strings.Builder

	sb.WriteString(colorize(styleTitle, r.Identity))
	sb.WriteString("\n\n")
	sb.WriteString(fmt.Sprintf("  %-20s %s (%s bytes)\n", "Package size:", analyzer.FormatSize(r.SizeBytes), humanize.Comma(r.SizeBytes)))
	sb.WriteString(fmt.Sprintf("  %-20s %s (%s bytes)\n", "Removal size:", analyzer.FormatSize(r.TotalRemovalBytes), humanize.Comma(r.TotalRemovalBytes)))

	if len(r.CoRemoved) == 0 {
		sb.WriteString("\nNothing else depends on this package.\n")
		return sb.String()
	}

	sizes := make(map[string]int64, len(members))
	for _, m := range members {
		sizes[m.Identity] = m.SizeBytes
	}

	sb.WriteString(fmt.Sprintf("\nRemoving it also removes %d package(s):\n", len(r.CoRemoved)))
	for _, id := range r.CoRemoved {
		size, ok := sizes[id]
		label := colorize(styleDim, "unknown")
		if ok {
			label = analyzer.FormatSize(size)
		}
		sb.WriteString(fmt.Sprintf("  %-50s %12s\n", truncate(id, 50), label))
	}

	return sb.String()
}

// RenderRemoval renders the combined impact of removing several packages.
func RenderRemoval(r analyzer.Removal) string {
	var sb strings.Builder

	sb.WriteString(colorize(styleTitle, fmt.Sprintf("Removing %d package(s) together", len(r.Roots))))
	sb.WriteString("\n\n")
	for _, id := range r.Roots {
		sb.WriteString("  " + id + "\n")
	}
	sb.WriteString(fmt.Sprintf("\n  %-20s %s (%s bytes)\n", "Removal size:", analyzer.FormatSize(r.TotalRemovalBytes), humanize.Comma(r.TotalRemovalBytes)))

	if len(r.CoRemoved) > 0 {
		sb.WriteString(fmt.Sprintf("\nAlso removed (%d):\n", len(r.CoRemoved)))
		for _, id := range r.CoRemoved {
			sb.WriteString("  " + id + "\n")
		}
	}

	return sb.String()
}

// RenderSummary renders totals for a set of records.
func RenderSummary(s analyzer.Summary) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Packages: %s  Installed size: %s  Leaves: %s\n",
		humanize.Comma(int64(s.Packages)),
		analyzer.FormatSize(s.TotalBytes),
		humanize.Comma(int64(s.Leaves))))
	if s.Largest != nil {
		sb.WriteString(fmt.Sprintf("Largest removal: %s (%s)\n",
			s.Largest.Identity, analyzer.FormatSize(s.Largest.TotalRemovalBytes)))
	}
	return sb.String()
}

// RenderRunTable renders recorded runs.
func RenderRunTable(runs []*store.Run) string {
	if len(runs) == 0 {
		return "No runs recorded.\n"
	}

	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("%-5s %-17s %-10s %-8s %-9s %s\n",
		"ID", "Started", "Packages", "Edges", "Graph", "Fingerprint"))
	sb.WriteString(strings.Repeat("─", 72))
	sb.WriteString("\n")

	for _, run := range runs {
		sb.WriteString(fmt.Sprintf("%-5d %-17s %-10s %-8s %-9s %016x\n",
			run.ID,
			formatRelativeTime(run.StartedAt),
			humanize.Comma(int64(run.PackageCount)),
			humanize.Comma(int64(run.EdgeCount)),
			run.GraphSource,
			run.Fingerprint))
	}

	return sb.String()
}

// formatRelativeTime converts a timestamp to relative time (e.g., "2 days ago").
func formatRelativeTime(t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	if time.Since(t) < time.Minute {
		return "just now"
	}
	return humanize.Time(t)
}

// truncate shortens s to maxLen runes, adding "..." if truncated.
func truncate(s string, maxLen int) string {
	if utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	runes := []rune(s)
	if maxLen <= 3 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-3]) + "..."
}
