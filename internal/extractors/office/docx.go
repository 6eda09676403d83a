package office

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/toricodesthings/wordcloud-service/internal/extract"
)

const documentPart = "word/document.xml"

type DOCXExtractor struct {
	maxBytes      int64
	maxEntryBytes int64
	maxMetaBytes  int64
}

func NewDOCX(maxBytes, maxEntryBytes, maxMetaBytes int64) *DOCXExtractor {
	return &DOCXExtractor{maxBytes: maxBytes, maxEntryBytes: maxEntryBytes, maxMetaBytes: maxMetaBytes}
}

func (e *DOCXExtractor) Name() string           { return "docx" }
func (e *DOCXExtractor) Format() extract.Format { return extract.FormatWordXML }
func (e *DOCXExtractor) MaxFileSize() int64     { return e.maxBytes }
func (e *DOCXExtractor) SupportedTypes() []string {
	return []string{extract.MIMEWordXML}
}
func (e *DOCXExtractor) SupportedExtensions() []string { return []string{".docx"} }

func (e *DOCXExtractor) Extract(ctx context.Context, doc extract.Document) (extract.Result, error) {
	select {
	case <-ctx.Done():
		return extract.Result{Success: false}, ctx.Err()
	default:
	}

	text, meta, err := e.extractText(doc.Data)
	if err != nil {
		if !errors.Is(err, extract.ErrFileTooLarge) {
			err = &extract.FormatError{Format: extract.FormatWordXML, Err: err}
		}
		msg := err.Error()
		return extract.Result{Success: false, FileType: e.Format().String(), MIMEType: extract.MIMEWordXML, Error: &msg}, err
	}

	words, chars := extract.BuildCounts(text)
	return extract.Result{
		Success:   true,
		Text:      text,
		Method:    "native",
		FileType:  e.Format().String(),
		MIMEType:  extract.MIMEWordXML,
		Metadata:  meta,
		WordCount: words,
		CharCount: chars,
	}, nil
}

func (e *DOCXExtractor) extractText(data []byte) (string, map[string]string, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", nil, err
	}

	body, err := readZipFile(zr, documentPart, e.maxEntryBytes)
	if err != nil {
		return "", nil, err
	}

	paras, err := bodyParagraphs(body)
	if err != nil {
		return "", nil, fmt.Errorf("%s: %w", documentPart, err)
	}

	return strings.Join(paras, " "), parseCoreMetadata(zr, e.maxMetaBytes), nil
}

// bodyParagraphs returns the text of every paragraph that is a direct child
// of <w:body>, in document order. Empty paragraphs yield "". Tables, content
// controls and section properties are skipped.
func bodyParagraphs(b []byte) ([]string, error) {
	dec := xml.NewDecoder(bytes.NewReader(b))

	paras := []string{}
	inBody, sawBody := false, false
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if !inBody {
				if t.Name.Local == "body" {
					inBody, sawBody = true, true
				}
				continue
			}
			if t.Name.Local == "p" {
				text, err := docxParagraph(dec)
				if err != nil {
					return nil, err
				}
				paras = append(paras, text)
				continue
			}
			if err := dec.Skip(); err != nil {
				return nil, err
			}
		case xml.EndElement:
			if inBody && t.Name.Local == "body" {
				inBody = false
			}
		}
	}
	if !sawBody {
		return nil, errors.New("missing w:body element")
	}
	return paras, nil
}

// docxParagraph reads the remainder of one <w:p> element and returns its run
// text. Tabs and breaks inside runs become \t and \n.
func docxParagraph(dec *xml.Decoder) (string, error) {
	var sb strings.Builder
	depth := 1

	for depth > 0 {
		tok, err := dec.Token()
		if err != nil {
			if err == io.EOF {
				err = io.ErrUnexpectedEOF
			}
			return "", err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "pPr", "rPr":
				// tab stops and run styling live here, not text
				if err := dec.Skip(); err != nil {
					return "", err
				}
				continue
			case "t":
				text, err := readCharData(dec)
				if err != nil {
					return "", err
				}
				sb.WriteString(text)
				continue
			case "tab":
				sb.WriteByte('\t')
			case "br", "cr":
				sb.WriteByte('\n')
			}
			depth++
		case xml.EndElement:
			depth--
		}
	}
	return sb.String(), nil
}

// readCharData reads character data up to the end of the current element.
func readCharData(dec *xml.Decoder) (string, error) {
	var sb strings.Builder
	depth := 1
	for depth > 0 {
		tok, err := dec.Token()
		if err != nil {
			if err == io.EOF {
				err = io.ErrUnexpectedEOF
			}
			return "", err
		}
		switch t := tok.(type) {
		case xml.CharData:
			if depth == 1 {
				sb.Write(t)
			}
		case xml.StartElement:
			depth++
		case xml.EndElement:
			depth--
		}
	}
	return sb.String(), nil
}

// --- Shared helpers ---

// readZipFile returns the named entry, refusing to inflate more than limit bytes.
func readZipFile(zr *zip.Reader, name string, limit int64) ([]byte, error) {
	for _, f := range zr.File {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, err
		}
		defer rc.Close()

		if limit <= 0 {
			return io.ReadAll(rc)
		}
		b, err := io.ReadAll(io.LimitReader(rc, limit+1))
		if err != nil {
			return nil, err
		}
		if int64(len(b)) > limit {
			return nil, fmt.Errorf("%w: %s exceeds %s uncompressed limit", extract.ErrFileTooLarge, name, extract.FormatBytes(limit))
		}
		return b, nil
	}
	return nil, fmt.Errorf("missing %s", name)
}

// parseCoreMetadata extracts title, author, dates from docProps/core.xml.
func parseCoreMetadata(zr *zip.Reader, limit int64) map[string]string {
	b, err := readZipFile(zr, "docProps/core.xml", limit)
	if err != nil {
		return nil
	}

	meta := map[string]string{}
	dec := xml.NewDecoder(bytes.NewReader(b))
	var currentTag string

	for {
		tok, err := dec.Token()
		if err != nil {
			break
		}
		switch t := tok.(type) {
		case xml.StartElement:
			currentTag = t.Name.Local
		case xml.CharData:
			val := strings.TrimSpace(string(t))
			if val == "" {
				continue
			}
			switch currentTag {
			case "title":
				meta["title"] = val
			case "creator":
				meta["author"] = val
			case "created":
				meta["created"] = val
			case "modified":
				meta["modified"] = val
			case "description":
				meta["description"] = val
			case "subject":
				meta["subject"] = val
			case "lastModifiedBy":
				meta["lastModifiedBy"] = val
			}
		case xml.EndElement:
			currentTag = ""
		}
	}

	if len(meta) == 0 {
		return nil
	}
	return meta
}
