package nmj

import (
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/net/html/charset"
)

// DefaultControlPort is where the Popcorn Hour serves metadata_database.
const DefaultControlPort = 8008

// ErrRemoteScan is returned when the device answers with a non-zero return code.
var ErrRemoteScan = errors.New("popcorn hour returned an error code")

// ScanClient starts background NMJ scans over the device's HTTP control port.
type ScanClient struct {
	httpClient *http.Client
	port       int
}

// NewScanClient constructs a scan client. A nil client gets a 30 second timeout.
func NewScanClient(client *http.Client) *ScanClient {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &ScanClient{httpClient: client, port: DefaultControlPort}
}

// WithPort overrides the control port, mainly for emulated devices.
func (c *ScanClient) WithPort(port int) *ScanClient {
	if port > 0 {
		c.port = port
	}
	return c
}

type scanResponse struct {
	ReturnValue *string `xml:"returnValue"`
}

// Scan optionally opens the mount URL so the device mounts the share, then
// asks it to rescan the database in the background. There are no retries.
func (c *ScanClient) Scan(ctx context.Context, dev DeviceSettings) error {
	if strings.TrimSpace(dev.Host) == "" || strings.TrimSpace(dev.Database) == "" {
		return errors.New("host and database are required")
	}

	if dev.Mount != "" {
		log.Printf("[nmj] Try to mount network drive via url: %s", dev.Mount)
		if _, err := c.get(ctx, dev.Mount); err != nil {
			return fmt.Errorf("mount network drive on %s: %w", dev.Host, err)
		}
	}

	updateURL := c.scanURL(dev)
	log.Printf("[nmj] Sending NMJ scan update command via url: %s", updateURL)
	body, err := c.get(ctx, updateURL)
	if err != nil {
		return fmt.Errorf("contact popcorn hour on host %s: %w", dev.Host, err)
	}

	code, err := parseReturnValue(body)
	if err != nil {
		return fmt.Errorf("parse popcorn hour response: %w", err)
	}
	if code > 0 {
		return fmt.Errorf("%w: %d", ErrRemoteScan, code)
	}
	return nil
}

func (c *ScanClient) scanURL(dev DeviceSettings) string {
	params := url.Values{}
	params.Set("arg0", "scanner_start")
	params.Set("arg1", dev.Database)
	params.Set("arg2", "background")
	params.Set("arg3", "")
	address := net.JoinHostPort(dev.Host, strconv.Itoa(c.port))
	return fmt.Sprintf("http://%s/metadata_database?%s", address, params.Encode())
}

func (c *ScanClient) get(ctx context.Context, target string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("unexpected status %s", resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	return body, nil
}

// parseReturnValue extracts the integer returnValue child of the root element.
func parseReturnValue(body []byte) (int, error) {
	dec := xml.NewDecoder(bytes.NewReader(body))
	dec.CharsetReader = charset.NewReaderLabel

	var resp scanResponse
	if err := dec.Decode(&resp); err != nil {
		return 0, err
	}
	if resp.ReturnValue == nil {
		return 0, errors.New("returnValue missing")
	}
	code, err := strconv.Atoi(strings.TrimSpace(*resp.ReturnValue))
	if err != nil {
		return 0, fmt.Errorf("returnValue %q: %w", *resp.ReturnValue, err)
	}
	return code, nil
}
