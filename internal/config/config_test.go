package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoadDefaultsValidate(t *testing.T) {
	for _, k := range []string{"PDF_ENGINE", "DEFAULT_IMAGE_FORMAT", "INTERNAL_SHARED_SECRET", "DEFAULT_WIDTH", "MAX_UPLOAD_BYTES", "TRUST_PROXY_HEADERS", "MAX_OUTPUT_PIXELS"} {
		t.Setenv(k, "")
	}

	c := Load()
	if err := c.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
	if c.DefaultWidth != 1200 || c.DefaultHeight != 800 || c.DefaultMaxWords != 200 || c.DefaultResolution != 300 {
		t.Fatalf("unexpected render defaults %+v", c)
	}
	if !c.UseBaselineStopwords || c.TopWordsLimit != 50 {
		t.Fatalf("unexpected stopword defaults %+v", c)
	}
	if c.PDFEngine != "auto" || c.TrustProxyHeaders || c.MaxOutputPixels != 36_000_000 {
		t.Fatalf("unexpected engine or limit defaults %+v", c)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("DEFAULT_WIDTH", "640")
	t.Setenv("REQUEST_TIMEOUT", "5s")
	t.Setenv("USE_BASELINE_STOPWORDS", "off")
	t.Setenv("PDF_ENGINE", "LEDONGTHUC")
	t.Setenv("MAX_PDF_PAGES", "-3")

	c := Load()
	if c.DefaultWidth != 640 || c.RequestTimeout != 5*time.Second || c.UseBaselineStopwords {
		t.Fatalf("overrides not applied: %+v", c)
	}
	if c.PDFEngine != "ledongthuc" {
		t.Fatalf("expected engine to be lowercased, got %q", c.PDFEngine)
	}
	if c.MaxPDFPages != 2000 {
		t.Fatalf("negative values should fall back, got %d", c.MaxPDFPages)
	}
}

func TestValidateRejects(t *testing.T) {
	base := func() Config {
		t.Setenv("INTERNAL_SHARED_SECRET", "")
		t.Setenv("PDF_ENGINE", "")
		t.Setenv("DEFAULT_IMAGE_FORMAT", "")
		return Load()
	}

	cases := map[string]func(*Config){
		"short secret":  func(c *Config) { c.InternalSharedSecret = "short" },
		"engine":        func(c *Config) { c.PDFEngine = "mupdf" },
		"format":        func(c *Config) { c.DefaultImageFormat = "gif" },
		"width range":   func(c *Config) { c.DefaultWidth = 100 },
		"height bounds": func(c *Config) { c.MinHeight, c.MaxHeight = 900, 800 },
		"max words":     func(c *Config) { c.DefaultMaxWords = c.MaxWordsLimit + 1 },
		"upload limit":  func(c *Config) { c.MaxUploadBytes = c.MaxPDFBytes - 1 },
		"pixel cap":     func(c *Config) { c.MaxOutputPixels = 1_000_000 },
	}
	for name, mutate := range cases {
		c := base()
		mutate(&c)
		if err := c.Validate(); err == nil {
			t.Fatalf("%s: expected validation error", name)
		}
	}

	c := base()
	c.InternalSharedSecret = strings.Repeat("k", 32)
	if err := c.Validate(); err != nil {
		t.Fatalf("32-character secret should be accepted: %v", err)
	}
}
