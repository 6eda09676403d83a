package extract

// Format is the closed set of document kinds the service can turn into text.
type Format int

const (
	FormatUnknown Format = iota
	FormatPlain
	FormatPDF
	FormatWordXML
)

const (
	MIMEPlain   = "text/plain"
	MIMEPDF     = "application/pdf"
	MIMEWordXML = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
)

func (f Format) String() string {
	switch f {
	case FormatPlain:
		return "plain"
	case FormatPDF:
		return "pdf"
	case FormatWordXML:
		return "word-xml"
	default:
		return "unknown"
	}
}

// MIMEType returns the canonical MIME type for the format, or "" for FormatUnknown.
func (f Format) MIMEType() string {
	switch f {
	case FormatPlain:
		return MIMEPlain
	case FormatPDF:
		return MIMEPDF
	case FormatWordXML:
		return MIMEWordXML
	default:
		return ""
	}
}
