package output_test

import (
	"fmt"
	"os"

	"github.com/vinceaperri/azure-linux-pkg-impact-analyzer/internal/analyzer"
	"github.com/vinceaperri/azure-linux-pkg-impact-analyzer/internal/output"
)

// Example showing the report written by the analyze command
func ExampleWriteReport() {
	records := []analyzer.Record{
		{
			Identity:          "openssl-libs-1-3.1.4-3.azl3.x86_64",
			Name:              "openssl-libs",
			SizeBytes:         6291456,
			TotalRemovalBytes: 7340032,
			CoRemoved:         []string{"curl-0-8.5.0-1.azl3.x86_64"},
		},
		{
			Identity:          "curl-0-8.5.0-1.azl3.x86_64",
			Name:              "curl",
			SizeBytes:         1048576,
			TotalRemovalBytes: 1048576,
		},
	}

	if err := output.WriteReport(os.Stdout, records, output.ReportOptions{}); err != nil {
		fmt.Println(err)
	}
	// Output:
	// Package,Size,Size (Bytes),Total Removal Size,Total Removal Size (Bytes),Co-removed Packages
	// openssl-libs-1-3.1.4-3.azl3.x86_64,6.00 MiB,6291456,7.00 MiB,7340032,curl-0-8.5.0-1.azl3.x86_64
	// curl-0-8.5.0-1.azl3.x86_64,1.00 MiB,1048576,1.00 MiB,1048576,
}

// Example showing how to drive a progress bar from a worker callback
func ExampleProgressBar() {
	progress := output.NewProgress(os.Stdout, 3, "Querying dependents")
	for done := 1; done <= 3; done++ {
		progress.Update(done, 3)
	}
	progress.Finish()
	// Output:
	// [=============================>] 100% 3/3 Querying dependents
}
