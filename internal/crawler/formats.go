package crawler

import (
	"bytes"
	"encoding/csv"
	"encoding/xml"
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"
)

// Format adapters turn source bytes into raw records, a mapping from
// source key (column header or tag name) to string value. The Mapping
// layer consumes raw records without caring which format produced them.

// DelimitedRecords parses delimited text into raw records using the first
// row as the header.
func DelimitedRecords(content string, delimiter rune) ([]map[string]string, error) {
	reader := csv.NewReader(strings.NewReader(content))
	reader.Comma = delimiter
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	// Trimming leading space would swallow empty fields when the
	// delimiter itself is whitespace, as with tab-separated sources.
	reader.TrimLeadingSpace = delimiter != '\t'

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header row: %w", err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(strings.TrimPrefix(header[i], "\uFEFF"))
	}

	var records []map[string]string
	for {
		fields, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read row: %w", err)
		}
		row := make(map[string]string, len(header))
		for i, name := range header {
			if i < len(fields) {
				row[name] = fields[i]
			}
		}
		records = append(records, row)
	}
	return records, nil
}

// XMLRecords extracts one raw record per element named recordTag. Keys are
// the names of the record's direct children, values their text content.
// Chains with deeper structures override parsing instead of using this.
func XMLRecords(content []byte, recordTag string) ([]map[string]string, error) {
	decoder := xml.NewDecoder(bytes.NewReader(content))
	// Content is already UTF-8 by the time it gets here, whatever charset
	// the XML declaration claims.
	decoder.CharsetReader = func(_ string, input io.Reader) (io.Reader, error) {
		return input, nil
	}
	var records []map[string]string

	for {
		tok, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("malformed XML: %w", err)
		}

		start, ok := tok.(xml.StartElement)
		if !ok || start.Name.Local != recordTag {
			continue
		}

		record, err := decodeFlatElement(decoder, start)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, nil
}

// XMLElement extracts the first element named tag as a flat record. Used
// for store metadata blocks that accompany the product list.
func XMLElement(content []byte, tag string) (map[string]string, error) {
	decoder := xml.NewDecoder(bytes.NewReader(content))
	decoder.CharsetReader = func(_ string, input io.Reader) (io.Reader, error) {
		return input, nil
	}

	for {
		tok, err := decoder.Token()
		if err == io.EOF {
			return nil, fmt.Errorf("no <%s> element found", tag)
		}
		if err != nil {
			return nil, fmt.Errorf("malformed XML: %w", err)
		}
		if start, ok := tok.(xml.StartElement); ok && start.Name.Local == tag {
			return decodeFlatElement(decoder, start)
		}
	}
}

// decodeFlatElement reads the children of start until its end tag,
// collecting direct child name → text pairs.
func decodeFlatElement(decoder *xml.Decoder, start xml.StartElement) (map[string]string, error) {
	record := make(map[string]string)
	depth := 0
	var field string
	var text strings.Builder

	for {
		tok, err := decoder.Token()
		if err != nil {
			return nil, fmt.Errorf("malformed XML inside <%s>: %w", start.Name.Local, err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			depth++
			if depth == 1 {
				field = t.Name.Local
				text.Reset()
			}
		case xml.CharData:
			if depth == 1 {
				text.Write(t)
			}
		case xml.EndElement:
			if depth == 0 {
				return record, nil
			}
			if depth == 1 && field != "" {
				if _, seen := record[field]; !seen {
					record[field] = strings.TrimSpace(text.String())
				}
				field = ""
			}
			depth--
		}
	}
}

// SheetRecords parses the first worksheet of a spreadsheet into raw
// records. locateHeader inspects each row top to bottom and returns the
// normalized column names once it recognizes the header row; rows above
// the header are preamble and skipped. A nil locateHeader takes the first
// row as the header verbatim.
func SheetRecords(data []byte, locateHeader func(cells []string) []string) ([]map[string]string, error) {
	wb, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer wb.Close()

	sheets := wb.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("workbook has no sheets")
	}

	rows, err := wb.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q: %w", sheets[0], err)
	}

	if locateHeader == nil {
		locateHeader = func(cells []string) []string {
			header := make([]string, len(cells))
			for i, c := range cells {
				header[i] = strings.TrimSpace(c)
			}
			return header
		}
	}

	var header []string
	var records []map[string]string
	for _, cells := range rows {
		if header == nil {
			header = locateHeader(cells)
			continue
		}
		row := make(map[string]string, len(header))
		for i, name := range header {
			if name == "" {
				continue
			}
			if i < len(cells) {
				row[name] = strings.TrimSpace(cells[i])
			}
		}
		records = append(records, row)
	}
	if header == nil {
		return nil, fmt.Errorf("no header row found in sheet %q", sheets[0])
	}
	return records, nil
}
