// Package instruments manages the brokerage scrip master: download,
// parsing and contract-code resolution.
package instruments

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/gocarina/gocsv"

	apperrors "paisa-trader/internal/errors"
	"paisa-trader/pkg/utils"
)

// downloadTimeout bounds the scrip master fetch; the file is tens of MB.
const downloadTimeout = 5 * time.Minute

// ScripRow is one row of the scrip master CSV. Only the columns the
// resolver needs are mapped; the rest of the row is ignored.
type ScripRow struct {
	Exch      string `csv:"Exch"`
	ExchType  string `csv:"ExchType"`
	ScripCode int    `csv:"ScripCode"`
	Name      string `csv:"Name"`
	Expiry    string `csv:"Expiry"`
	LotSize   int    `csv:"LotSize"`
}

// Master resolves contract symbols to broker scrip codes.
type Master struct {
	byName map[string]int
}

// Download fetches the scrip master to path unless a copy newer than
// maxAge already exists.
func Download(ctx context.Context, url, path string, maxAge time.Duration) error {
	if info, err := os.Stat(path); err == nil {
		if time.Since(info.ModTime()) < maxAge {
			return nil
		}
	}

	ctx, cancel := context.WithTimeout(ctx, downloadTimeout)
	defer cancel()

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}

	return utils.Retry(ctx, utils.DefaultRetryConfig(), func() error {
		return fetch(ctx, url, path)
	})
}

func fetch(ctx context.Context, url, path string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("building scrip master request: %w", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("downloading scrip master: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("downloading scrip master: unexpected status %s", resp.Status)
	}

	// Write to a temp file first so a torn download never replaces a
	// good master.
	tmp, err := os.CreateTemp(filepath.Dir(path), "scripmaster-*.csv")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, resp.Body); err != nil {
		tmp.Close()
		return fmt.Errorf("writing scrip master: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing scrip master: %w", err)
	}
	return os.Rename(tmp.Name(), path)
}

// Load parses the scrip master CSV at path into a Master.
func Load(path string) (*Master, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening scrip master: %w", err)
	}
	defer f.Close()
	return Parse(f)
}

// Parse reads scrip master CSV rows from r.
func Parse(r io.Reader) (*Master, error) {
	var rows []ScripRow
	if err := gocsv.Unmarshal(r, &rows); err != nil {
		return nil, fmt.Errorf("parsing scrip master: %w", err)
	}

	byName := make(map[string]int, len(rows))
	for _, row := range rows {
		if row.Name == "" || row.ScripCode == 0 {
			continue
		}
		byName[row.Name] = row.ScripCode
	}
	return &Master{byName: byName}, nil
}

// Resolve returns the scrip code for a contract symbol.
func (m *Master) Resolve(symbol string) (int, error) {
	code, ok := m.byName[symbol]
	if !ok {
		return 0, apperrors.Wrapf(apperrors.ErrUnresolvedContract, "symbol %q", symbol)
	}
	return code, nil
}

// Len returns the number of indexed scrips.
func (m *Master) Len() int {
	return len(m.byName)
}
