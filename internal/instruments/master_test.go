package instruments

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "paisa-trader/internal/errors"
)

const sampleCSV = `Exch,ExchType,ScripCode,Name,Expiry,LotSize
N,D,51001,NIFTY 25 Jan 2024 CE 22000.00,2024-01-25,25
N,D,51002,NIFTY 25 Jan 2024 PE 22000.00,2024-01-25,25
B,D,61001,SENSEX 26 Jan 2024 CE 72000.00,2024-01-26,10
N,D,0,BROKEN ROW,2024-01-25,25
`

func TestParse_IndexesByName(t *testing.T) {
	master, err := Parse(strings.NewReader(sampleCSV))
	require.NoError(t, err)
	assert.Equal(t, 3, master.Len())

	code, err := master.Resolve("NIFTY 25 Jan 2024 CE 22000.00")
	require.NoError(t, err)
	assert.Equal(t, 51001, code)

	code, err = master.Resolve("SENSEX 26 Jan 2024 CE 72000.00")
	require.NoError(t, err)
	assert.Equal(t, 61001, code)
}

func TestResolve_UnknownSymbol(t *testing.T) {
	master, err := Parse(strings.NewReader(sampleCSV))
	require.NoError(t, err)

	_, err = master.Resolve("NIFTY 25 Jan 2024 CE 99999.00")
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrUnresolvedContract))
}

func TestDownload_WritesAndSkipsFresh(t *testing.T) {
	var hits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.Write([]byte(sampleCSV))
	}))
	defer srv.Close()

	path := filepath.Join(t.TempDir(), "scrip-master.csv")
	ctx := context.Background()

	require.NoError(t, Download(ctx, srv.URL, path, 48*time.Hour))
	assert.Equal(t, 1, hits)

	master, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 3, master.Len())

	// A fresh copy on disk skips the network entirely.
	require.NoError(t, Download(ctx, srv.URL, path, 48*time.Hour))
	assert.Equal(t, 1, hits)
}

func TestDownload_RefreshesStaleCopy(t *testing.T) {
	var hits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.Write([]byte(sampleCSV))
	}))
	defer srv.Close()

	path := filepath.Join(t.TempDir(), "scrip-master.csv")
	require.NoError(t, os.WriteFile(path, []byte("stale"), 0644))
	stale := time.Now().Add(-72 * time.Hour)
	require.NoError(t, os.Chtimes(path, stale, stale))

	require.NoError(t, Download(context.Background(), srv.URL, path, 48*time.Hour))
	assert.Equal(t, 1, hits)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, sampleCSV, string(data))
}

func TestDownload_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	path := filepath.Join(t.TempDir(), "scrip-master.csv")
	err := Download(context.Background(), srv.URL, path, 48*time.Hour)
	require.Error(t, err)

	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))
}
