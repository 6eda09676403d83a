package extract

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"path"
	"strings"
	"syscall"
	"time"

	"github.com/gabriel-vasile/mimetype"
)

// ReadUpload buffers at most maxBytes from body and sniffs its content type.
func ReadUpload(body io.Reader, fileName, declaredType string, maxBytes int64) (Document, error) {
	lr := &io.LimitedReader{R: body, N: maxBytes + 1}
	var buf bytes.Buffer
	n, err := io.Copy(&buf, lr)
	if err != nil {
		return Document{}, fmt.Errorf("read upload: %w", err)
	}
	if n > maxBytes {
		return Document{}, TooLarge("upload", maxBytes)
	}

	data := buf.Bytes()
	return Document{
		FileName:     safeFileName(fileName),
		DeclaredType: NormalizeMIME(declaredType),
		SniffedType:  sniffMIMEType(data),
		Data:         data,
	}, nil
}

// FetchDocument downloads a document over HTTPS into memory. Private and
// loopback hosts are refused unless ALLOW_PRIVATE_DOWNLOAD_URLS is set.
func FetchDocument(ctx context.Context, rawURL, fileName string, maxBytes int64, timeout time.Duration) (Document, error) {
	if err := validateDownloadURL(rawURL); err != nil {
		return Document{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return Document{}, fmt.Errorf("download: %w", err)
	}
	req.Header.Set("User-Agent", "wordcloud/1.0")

	resp, err := downloadClient(timeout).Do(req)
	if err != nil {
		return Document{}, fmt.Errorf("download: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Document{}, fmt.Errorf("download failed: HTTP %d", resp.StatusCode)
	}

	if strings.TrimSpace(fileName) == "" {
		if u, err := url.Parse(rawURL); err == nil {
			fileName = path.Base(u.Path)
		}
	}

	doc, err := ReadUpload(resp.Body, fileName, resp.Header.Get("Content-Type"), maxBytes)
	if err != nil {
		return Document{}, err
	}
	return doc, nil
}

const maxDownloadRedirects = 5

// downloadClient re-checks every redirect target and every dialed address,
// so neither a redirect nor a DNS answer can reach a private host.
func downloadClient(timeout time.Duration) *http.Client {
	var transport *http.Transport
	if t, ok := http.DefaultTransport.(*http.Transport); ok {
		transport = t.Clone()
	} else {
		transport = &http.Transport{Proxy: http.ProxyFromEnvironment}
	}
	dialer := &net.Dialer{
		Timeout:   timeout,
		KeepAlive: 30 * time.Second,
		Control: func(_, address string, _ syscall.RawConn) error {
			return checkDialAddress(address)
		},
	}
	transport.DialContext = dialer.DialContext

	return &http.Client{
		Timeout:       timeout,
		Transport:     transport,
		CheckRedirect: checkRedirect,
	}
}

func checkRedirect(req *http.Request, via []*http.Request) error {
	if len(via) >= maxDownloadRedirects {
		return fmt.Errorf("download: stopped after %d redirects", maxDownloadRedirects)
	}
	if err := validateDownloadURL(req.URL.String()); err != nil {
		return fmt.Errorf("download redirect: %w", err)
	}
	return nil
}

// checkDialAddress runs after name resolution, on the ip:port actually dialed.
func checkDialAddress(address string) error {
	if allowPrivateDownloadURLs() {
		return nil
	}
	host, _, err := net.SplitHostPort(address)
	if err != nil {
		return fmt.Errorf("download: invalid address %q", address)
	}
	ip := net.ParseIP(host)
	if ip == nil || isPrivateOrLocalIP(ip) {
		return fmt.Errorf("download URL host is not allowed")
	}
	return nil
}

func safeFileName(name string) string {
	name = strings.TrimSpace(strings.ReplaceAll(name, "\\", "/"))
	name = path.Base(name)
	if name == "" || name == "." || name == "/" {
		return "input.bin"
	}
	return name
}

func validateDownloadURL(rawURL string) error {
	allowPrivate := allowPrivateDownloadURLs()

	parsed, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || parsed == nil {
		return fmt.Errorf("invalid download URL")
	}

	host := strings.ToLower(strings.TrimSpace(parsed.Hostname()))
	if host == "" {
		return fmt.Errorf("download URL host is required")
	}

	isLocalName := host == "localhost" || strings.HasSuffix(host, ".localhost")
	isPrivateIP := false

	if ip := net.ParseIP(host); ip != nil {
		isPrivateIP = isPrivateOrLocalIP(ip)
	}

	switch strings.ToLower(parsed.Scheme) {
	case "https":
	case "http":
		if !(allowPrivate && (isLocalName || isPrivateIP)) {
			return fmt.Errorf("download URL must use https")
		}
	default:
		return fmt.Errorf("download URL must use https")
	}

	if (isLocalName || isPrivateIP) && !allowPrivate {
		return fmt.Errorf("download URL host is not allowed")
	}
	return nil
}

func allowPrivateDownloadURLs() bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv("ALLOW_PRIVATE_DOWNLOAD_URLS")))
	return v == "1" || v == "true" || v == "yes"
}

func isPrivateOrLocalIP(ip net.IP) bool {
	if ip.IsLoopback() || ip.IsLinkLocalMulticast() || ip.IsLinkLocalUnicast() || ip.IsMulticast() || ip.IsUnspecified() {
		return true
	}
	if ip.IsPrivate() {
		return true
	}
	// RFC6598 carrier-grade NAT range: 100.64.0.0/10
	if v4 := ip.To4(); v4 != nil && v4[0] == 100 && v4[1] >= 64 && v4[1] <= 127 {
		return true
	}
	return false
}

func sniffMIMEType(data []byte) string {
	if len(data) == 0 {
		return ""
	}
	if m := mimetype.Detect(data); m != nil {
		return NormalizeMIME(m.String())
	}
	return NormalizeMIME(http.DetectContentType(data))
}
