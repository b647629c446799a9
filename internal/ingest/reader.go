package ingest

import (
	"context"
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/leadenrich/internal/fetch"
	"github.com/sells-group/leadenrich/internal/model"
)

// Reader loads lead lists from local paths, HTTP(S), or FTP sources and maps
// their rows into RawRecords.
type Reader struct {
	http *fetch.HTTPClient
	ftp  *fetch.FTPClient
}

// NewReader builds a Reader. Either client may be nil to disable its scheme.
func NewReader(httpClient *fetch.HTTPClient, ftpClient *fetch.FTPClient) *Reader {
	return &Reader{http: httpClient, ftp: ftpClient}
}

// Read resolves the source and parses it by extension. XLSX sources must be
// local paths because the format is not streamable.
func (r *Reader) Read(ctx context.Context, source string) ([]model.RawRecord, error) {
	switch {
	case strings.HasPrefix(source, "http://"), strings.HasPrefix(source, "https://"):
		if r.http == nil {
			return nil, eris.New("ingest: http source given but no http client configured")
		}
		body, err := r.http.Download(ctx, source)
		if err != nil {
			return nil, eris.Wrap(err, "ingest: download")
		}
		defer body.Close()
		return ReadCSV(ctx, body)

	case strings.HasPrefix(source, "ftp://"):
		if r.ftp == nil {
			return nil, eris.New("ingest: ftp source given but no ftp client configured")
		}
		body, err := r.ftp.Download(ctx, source)
		if err != nil {
			return nil, eris.Wrap(err, "ingest: ftp download")
		}
		defer body.Close()
		return ReadCSV(ctx, body)

	case strings.EqualFold(filepath.Ext(source), ".xlsx"):
		return ReadXLSX(source)

	default:
		f, err := os.Open(source)
		if err != nil {
			return nil, eris.Wrap(err, "ingest: open file")
		}
		defer f.Close()
		return ReadCSV(ctx, f)
	}
}

// ReadCSV parses a CSV stream. The first row is the header; rows with a
// different field count are tolerated.
func ReadCSV(ctx context.Context, r io.Reader) ([]model.RawRecord, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1 // allow variable fields

	header, err := reader.Read()
	if err == io.EOF {
		return nil, eris.New("ingest: empty file")
	}
	if err != nil {
		return nil, eris.Wrap(err, "ingest: read header")
	}
	mapper := NewMapper(header)

	var records []model.RawRecord
	for {
		if ctx.Err() != nil {
			return nil, eris.Wrap(ctx.Err(), "ingest: cancelled")
		}
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, eris.Wrap(err, "ingest: read row")
		}
		rec := mapper.Map(row)
		if isEmptyRecord(rec) {
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}

// ReadXLSX reads the first sheet of an XLSX workbook.
func ReadXLSX(path string) ([]model.RawRecord, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "ingest: open xlsx")
	}
	if len(f.Sheets) == 0 {
		return nil, eris.New("ingest: workbook has no sheets")
	}

	sheet := f.Sheets[0]
	var mapper *Mapper
	var records []model.RawRecord
	for i, row := range sheet.Rows {
		cells := rowToStrings(row)
		if i == 0 {
			mapper = NewMapper(cells)
			continue
		}
		rec := mapper.Map(cells)
		if isEmptyRecord(rec) {
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}

func rowToStrings(row *xlsx.Row) []string {
	out := make([]string, len(row.Cells))
	for i, cell := range row.Cells {
		out[i] = cell.String()
	}
	return out
}

func isEmptyRecord(rec model.RawRecord) bool {
	return rec.FirstName == "" && rec.LastName == "" && rec.Email == "" &&
		rec.Phone == "" && rec.CompanyName == "" && rec.Website == "" &&
		rec.City == "" && rec.State == "" && rec.Title == "" &&
		rec.LinkedInURL == "" && len(rec.Extras) == 0
}
