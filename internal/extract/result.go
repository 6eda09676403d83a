package extract

import "unicode"

// Document is an uploaded file held in memory. Extractors must not modify Data.
type Document struct {
	FileName     string
	DeclaredType string
	SniffedType  string
	Data         []byte
}

func (d Document) Size() int64 { return int64(len(d.Data)) }

type Result struct {
	Success      bool              `json:"success"`
	Text         string            `json:"text"`
	Method       string            `json:"method"`
	FileType     string            `json:"fileType"`
	MIMEType     string            `json:"mimeType"`
	Pages        []PageResult      `json:"pages,omitempty"`
	SkippedPages []int             `json:"skippedPages,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
	WordCount    int               `json:"wordCount"`
	CharCount    int               `json:"charCount"`
	Error        *string           `json:"error,omitempty"`
}

type PageResult struct {
	PageNumber int    `json:"pageNumber"`
	Text       string `json:"text"`
	Method     string `json:"method"`
	WordCount  int    `json:"wordCount"`
}

func BuildCounts(text string) (wordCount int, charCount int) {
	charCount = len([]rune(text))
	wordCount = 0
	inWord := false
	for _, r := range text {
		if unicode.IsSpace(r) {
			if inWord {
				wordCount++
				inWord = false
			}
			continue
		}
		inWord = true
	}
	if inWord {
		wordCount++
	}
	return
}
