package datasets

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"gvsdash/internal/api"
	"gvsdash/internal/logging"
)

type fakeBackend struct {
	imported []string
	contents [][]byte
	dedupe   bool
	export   *api.ExportResult
}

func (f *fakeBackend) ImportExcel(_ context.Context, files []api.ImportFile, dedupe bool) (api.ImportReport, error) {
	f.dedupe = dedupe
	for _, file := range files {
		data, err := io.ReadAll(file.Reader)
		if err != nil {
			return nil, err
		}
		f.imported = append(f.imported, file.Name)
		f.contents = append(f.contents, data)
	}
	return api.ImportReport{"inserted": len(files)}, nil
}

func (f *fakeBackend) ExportXLSX(context.Context, api.ExportRequest) (*api.ExportResult, error) {
	return f.export, nil
}

// workbook builds an xlsx with a header and n data rows.
func workbook(t *testing.T, n int) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	require.NoError(t, f.SetSheetRow("Sheet1", "A1", &[]interface{}{"datetime", "consumption_gvs"}))
	for i := 0; i < n; i++ {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow("Sheet1", cell, &[]interface{}{"2025-04-01T00:00:00", 12.5}))
	}
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf.Bytes()
}

func TestImport(t *testing.T) {
	ctx := context.Background()

	t.Run("Should upload workbooks in one request", func(t *testing.T) {
		dir := t.TempDir()
		a := filepath.Join(dir, "april.xlsx")
		b := filepath.Join(dir, "may.xlsx")
		require.NoError(t, os.WriteFile(a, workbook(t, 2), 0644))
		require.NoError(t, os.WriteFile(b, workbook(t, 3), 0644))

		backend := &fakeBackend{}
		svc := NewService(backend, logging.Discard())

		report, err := svc.Import(ctx, []string{a, b}, true)
		require.NoError(t, err)
		assert.EqualValues(t, 2, report["inserted"])
		assert.Equal(t, []string{"april.xlsx", "may.xlsx"}, backend.imported)
		assert.True(t, backend.dedupe)
		assert.NotEmpty(t, backend.contents[0])
	})

	t.Run("Should reject non-Excel files before uploading anything", func(t *testing.T) {
		dir := t.TempDir()
		good := filepath.Join(dir, "april.xlsx")
		bad := filepath.Join(dir, "notes.xlsx")
		require.NoError(t, os.WriteFile(good, workbook(t, 1), 0644))
		require.NoError(t, os.WriteFile(bad, []byte("just some text"), 0644))

		backend := &fakeBackend{}
		svc := NewService(backend, logging.Discard())

		_, err := svc.Import(ctx, []string{good, bad}, true)
		assert.ErrorIs(t, err, ErrUnsupportedFile)
		assert.Contains(t, err.Error(), "notes.xlsx")
		assert.Empty(t, backend.imported)
	})

	t.Run("Should require at least one file", func(t *testing.T) {
		svc := NewService(&fakeBackend{}, logging.Discard())
		_, err := svc.Import(ctx, nil, true)
		assert.Error(t, err)
	})
}

func TestExport(t *testing.T) {
	ctx := context.Background()

	t.Run("Should save the workbook and summarise its sheets", func(t *testing.T) {
		data := workbook(t, 4)
		backend := &fakeBackend{export: &api.ExportResult{Filename: "processed_anomalies.xlsx", Data: data}}
		svc := NewService(backend, logging.Discard())
		dir := t.TempDir()

		outcome, err := svc.Export(ctx, api.ExportRequest{}, dir)
		require.NoError(t, err)

		assert.Equal(t, filepath.Join(dir, "processed_anomalies.xlsx"), outcome.Path)
		saved, err := os.ReadFile(outcome.Path)
		require.NoError(t, err)
		assert.Equal(t, data, saved)
		assert.Equal(t, []SheetSummary{{Name: "Sheet1", Rows: 4}}, outcome.Sheets)
	})

	t.Run("Should pass a JSON status through without writing", func(t *testing.T) {
		backend := &fakeBackend{export: &api.ExportResult{Status: map[string]interface{}{"saved": 3.0}}}
		svc := NewService(backend, logging.Discard())
		dir := t.TempDir()

		outcome, err := svc.Export(ctx, api.ExportRequest{}, dir)
		require.NoError(t, err)
		assert.Empty(t, outcome.Path)
		assert.Equal(t, 3.0, outcome.Status["saved"])

		entries, err := os.ReadDir(dir)
		require.NoError(t, err)
		assert.Empty(t, entries)
	})

	t.Run("Should keep a file that is not a readable workbook", func(t *testing.T) {
		backend := &fakeBackend{export: &api.ExportResult{Filename: "../out.xlsx", Data: []byte("PK broken")}}
		svc := NewService(backend, logging.Discard())
		dir := t.TempDir()

		outcome, err := svc.Export(ctx, api.ExportRequest{}, dir)
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(dir, "out.xlsx"), outcome.Path)
		assert.Nil(t, outcome.Sheets)
	})

	t.Run("Should save under the requested name when the backend name is a directory", func(t *testing.T) {
		backend := &fakeBackend{export: &api.ExportResult{Filename: "..", Data: workbook(t, 1)}}
		svc := NewService(backend, logging.Discard())
		dir := t.TempDir()

		outcome, err := svc.Export(ctx, api.ExportRequest{Filename: "march.xlsx"}, dir)
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(dir, "march.xlsx"), outcome.Path)
		assert.FileExists(t, outcome.Path)
	})
}

func TestExportName(t *testing.T) {
	tests := []struct {
		name      string
		backend   string
		requested string
		want      string
	}{
		{"Should keep a plain backend name", "april.xlsx", "x.xlsx", "april.xlsx"},
		{"Should strip directories", "../../out.xlsx", "", "out.xlsx"},
		{"Should fall back to the requested name for ..", "..", "mine.xlsx", "mine.xlsx"},
		{"Should fall back to the requested name for a root path", "/", "mine.xlsx", "mine.xlsx"},
		{"Should use the default when nothing is usable", "", ".", api.DefaultExportFilename},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, exportName(tt.backend, tt.requested))
		})
	}
}

func TestSummarize(t *testing.T) {
	t.Run("Should count an empty sheet as zero rows", func(t *testing.T) {
		sheets, err := Summarize(bytes.NewReader(workbook(t, 0)))
		require.NoError(t, err)
		assert.Equal(t, []SheetSummary{{Name: "Sheet1", Rows: 0}}, sheets)
	})
}
