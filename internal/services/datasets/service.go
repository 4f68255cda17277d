// Package datasets moves processed meter data in and out of Excel
// workbooks through the backend.
package datasets

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/sirupsen/logrus"
	"github.com/xuri/excelize/v2"

	"gvsdash/internal/api"
)

// ErrUnsupportedFile is returned when an import file is not an Excel workbook.
var ErrUnsupportedFile = errors.New("unsupported file type")

var acceptedTypes = []string{
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	"application/vnd.ms-excel",
}

// Backend is the processed-data part of the API client.
// *api.ProcessedDataClient implements it.
type Backend interface {
	ImportExcel(ctx context.Context, files []api.ImportFile, dedupe bool) (api.ImportReport, error)
	ExportXLSX(ctx context.Context, req api.ExportRequest) (*api.ExportResult, error)
}

type Service struct {
	backend Backend
	log     logrus.FieldLogger
}

func NewService(backend Backend, log logrus.FieldLogger) *Service {
	return &Service{backend: backend, log: log.WithField("component", "datasets")}
}

// Import checks every file is a workbook and uploads them together.
// Nothing is sent if any file is rejected.
func (s *Service) Import(ctx context.Context, paths []string, dedupe bool) (api.ImportReport, error) {
	if len(paths) == 0 {
		return nil, fmt.Errorf("no files selected")
	}

	files := make([]api.ImportFile, 0, len(paths))
	var opened []*os.File
	defer func() {
		for _, f := range opened {
			f.Close()
		}
	}()

	for _, path := range paths {
		mtype, err := mimetype.DetectFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
		if !isWorkbook(path, mtype) {
			s.log.WithFields(logrus.Fields{"path": path, "mime": mtype.String()}).Warn("Rejected import file")
			return nil, fmt.Errorf("%w: %s (%s)", ErrUnsupportedFile, filepath.Base(path), mtype.String())
		}

		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open %s: %w", path, err)
		}
		opened = append(opened, f)
		files = append(files, api.ImportFile{
			Name:        filepath.Base(path),
			ContentType: mtype.String(),
			Reader:      f,
		})
	}

	report, err := s.backend.ImportExcel(ctx, files, dedupe)
	if err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{"files": len(files), "dedupe": dedupe}).Info("Import completed")
	return report, nil
}

// isWorkbook accepts sniffed Excel types. Some writers put the xl/ parts
// past the sniffing window, so a plain zip named .xlsx is accepted too.
func isWorkbook(path string, mtype *mimetype.MIME) bool {
	if mimetype.EqualsAny(mtype.String(), acceptedTypes...) {
		return true
	}
	return mtype.Is("application/zip") && strings.EqualFold(filepath.Ext(path), ".xlsx")
}

// SheetSummary describes one worksheet of an exported workbook.
type SheetSummary struct {
	Name string `json:"name"`
	Rows int    `json:"rows"`
}

// ExportOutcome is either a saved workbook (Path, Sheets) or the backend's
// JSON status (Status).
type ExportOutcome struct {
	Path   string                 `json:"path,omitempty"`
	Sheets []SheetSummary         `json:"sheets,omitempty"`
	Status map[string]interface{} `json:"status,omitempty"`
}

// Export runs the anomaly export and, when the backend returns a file,
// writes it into dir.
func (s *Service) Export(ctx context.Context, req api.ExportRequest, dir string) (*ExportOutcome, error) {
	result, err := s.backend.ExportXLSX(ctx, req)
	if err != nil {
		return nil, err
	}
	if !result.IsFile() {
		return &ExportOutcome{Status: result.Status}, nil
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create export directory: %w", err)
	}
	path := filepath.Join(dir, exportName(result.Filename, req.Filename))
	if err := os.WriteFile(path, result.Data, 0644); err != nil {
		return nil, fmt.Errorf("failed to write export: %w", err)
	}

	outcome := &ExportOutcome{Path: path}
	sheets, err := Summarize(bytes.NewReader(result.Data))
	if err != nil {
		s.log.WithError(err).WithField("path", path).Warn("Export saved but could not be read back")
	} else {
		outcome.Sheets = sheets
	}

	s.log.WithFields(logrus.Fields{"path": path, "bytes": len(result.Data)}).Info("Export saved")
	return outcome, nil
}

// exportName strips directories from the name the backend chose and falls
// back to the requested one, then the default, when nothing usable is left.
func exportName(names ...string) string {
	for _, name := range append(names, api.DefaultExportFilename) {
		base := filepath.Base(name)
		switch base {
		case ".", "..", string(filepath.Separator):
			continue
		}
		return base
	}
	return api.DefaultExportFilename
}

// Summarize lists the sheets of a workbook with their data row counts,
// not counting the header row.
func Summarize(r io.Reader) ([]SheetSummary, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	var sheets []SheetSummary
	for _, name := range f.GetSheetList() {
		rows, err := f.GetRows(name)
		if err != nil {
			return nil, fmt.Errorf("failed to read sheet %s: %w", name, err)
		}
		n := len(rows) - 1
		if n < 0 {
			n = 0
		}
		sheets = append(sheets, SheetSummary{Name: name, Rows: n})
	}
	return sheets, nil
}
