package api

import (
	"context"
	"encoding/json"
	"fmt"
	"mime"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"strings"
)

const defaultExportThreshold = 10.0

// DefaultExportFilename names the export when the request leaves it unset.
const DefaultExportFilename = "processed_anomalies.xlsx"

// ProcessedDataClient reads hourly meter data and moves it in and out as
// spreadsheets.
type ProcessedDataClient struct {
	c *Client
}

func (p *ProcessedDataClient) List(ctx context.Context, params ListParams) ([]ProcessedRecord, error) {
	var records []ProcessedRecord
	if err := p.c.query(ctx, "/processed-data/", params.Values(), []Tag{TagProcessedList}, &records); err != nil {
		return nil, err
	}
	return records, nil
}

// Count ignores paging and ordering in params.
func (p *ProcessedDataClient) Count(ctx context.Context, params ListParams) (int64, error) {
	var n Count
	if err := p.c.query(ctx, "/processed-data/count", params.filterValues(), []Tag{TagProcessedCount}, &n); err != nil {
		return 0, err
	}
	return int64(n), nil
}

// ImportExcel uploads spreadsheets as repeated "files" parts.
func (p *ProcessedDataClient) ImportExcel(ctx context.Context, files []ImportFile, dedupe bool) (ImportReport, error) {
	if len(files) == 0 {
		return nil, fmt.Errorf("no files to import")
	}

	req := p.c.http.R().
		SetContext(ctx).
		SetQueryParam("dedupe", strconv.FormatBool(dedupe))
	for _, f := range files {
		req.SetMultipartField("files", f.Name, f.ContentType, f.Reader)
	}

	var report ImportReport
	err := p.c.send(req, http.MethodPost, "/processed-data/import-excel", &report,
		[]Tag{TagProcessedList, TagProcessedCount})
	if err != nil {
		return nil, err
	}
	return report, nil
}

// ExportXLSX asks the backend to build the anomaly workbook. The backend
// answers either with the file or with a JSON status, told apart by
// Content-Type. Exports are never cached.
func (p *ProcessedDataClient) ExportXLSX(ctx context.Context, r ExportRequest) (*ExportResult, error) {
	threshold := defaultExportThreshold
	if r.ThresholdPct != nil {
		threshold = *r.ThresholdPct
	}
	saveToDB := true
	if r.SaveToDB != nil {
		saveToDB = *r.SaveToDB
	}
	filename := r.Filename
	if filename == "" {
		filename = DefaultExportFilename
	}

	params := url.Values{}
	if r.DtFrom != "" {
		params.Set("dt_from", r.DtFrom)
	}
	if r.DtTo != "" {
		params.Set("dt_to", r.DtTo)
	}
	params.Set("threshold_pct", strconv.FormatFloat(threshold, 'f', -1, 64))
	params.Set("save_to_db", strconv.FormatBool(saveToDB))
	params.Set("filename", filename)

	const path = "/processed-data/export-xlsx"
	resp, err := p.c.http.R().
		SetContext(ctx).
		SetHeader("Accept", "*/*").
		SetQueryParamsFromValues(params).
		Get(path)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", path, err)
	}
	if !resp.IsSuccess() {
		return nil, newHTTPError(http.MethodGet, path, resp)
	}

	result := &ExportResult{
		ContentType: resp.Header().Get("Content-Type"),
		Filename:    filename,
	}
	if strings.Contains(result.ContentType, "application/json") {
		var status map[string]interface{}
		if err := json.Unmarshal(resp.Body(), &status); err != nil {
			return nil, fmt.Errorf("failed to decode %s response: %w", path, err)
		}
		if status == nil {
			status = map[string]interface{}{}
		}
		result.Status = status
		return result, nil
	}

	if name := attachmentName(resp.Header().Get("Content-Disposition")); name != "" {
		result.Filename = name
	}
	result.Data = resp.Body()
	return result, nil
}

// attachmentName returns the bare file name from a Content-Disposition
// header, or "" when it names no usable file.
func attachmentName(disposition string) string {
	if disposition == "" {
		return ""
	}
	_, params, err := mime.ParseMediaType(disposition)
	if err != nil {
		return ""
	}
	name := path.Base(strings.ReplaceAll(params["filename"], `\`, "/"))
	switch name {
	case ".", "..", "/":
		return ""
	}
	return name
}
