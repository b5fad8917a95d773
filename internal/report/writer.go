package report

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Files are named after the original audit tooling so downstream
// spreadsheets keep working.
const (
	auditFilePattern     = "REPOSITORY_AUDIT_REPORT_%s.csv"
	frequencyFilePattern = "eid_frequency_%s.csv"
	chartFilePattern     = "eid_frequency_%s.html"
)

// WrittenFiles lists what WriteFiles produced.
type WrittenFiles struct {
	Audit     string
	Frequency string
	Chart     string
}

// WriteFiles serializes the report into dir: the audit CSV, the frequency
// CSV, and (when there are findings) the HTML frequency chart.
func WriteFiles(dir string, rep *Report) (WrittenFiles, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return WrittenFiles{}, fmt.Errorf("create output dir: %w", err)
	}

	files := WrittenFiles{
		Audit:     filepath.Join(dir, fmt.Sprintf(auditFilePattern, rep.Meta.RepoName)),
		Frequency: filepath.Join(dir, fmt.Sprintf(frequencyFilePattern, rep.Meta.RepoName)),
	}

	if err := writeTo(files.Audit, rep, WriteAuditCSV); err != nil {
		return files, err
	}

	if err := writeTo(files.Frequency, rep, WriteFrequencyCSV); err != nil {
		return files, err
	}

	if len(rep.Frequency) > 0 {
		files.Chart = filepath.Join(dir, fmt.Sprintf(chartFilePattern, rep.Meta.RepoName))
		if err := writeTo(files.Chart, rep, WriteFrequencyChart); err != nil {
			return files, err
		}
	}

	return files, nil
}

func writeTo(path string, rep *Report, write func(w io.Writer, rep *Report) error) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}

	if writeErr := write(file, rep); writeErr != nil {
		_ = file.Close()

		return writeErr
	}

	if closeErr := file.Close(); closeErr != nil {
		return fmt.Errorf("close %s: %w", path, closeErr)
	}

	return nil
}
