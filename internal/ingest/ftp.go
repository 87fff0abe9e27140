package ingest

import (
	"bytes"
	"fmt"
	"io"
	"log"
	"path"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jlaffaye/ftp"

	"github.com/coastwatch/tercile/internal/metrics"
	"github.com/coastwatch/tercile/internal/models"
	"github.com/coastwatch/tercile/internal/store"
)

const (
	regionMasksFile = "region_masks.csv"
	cellAreasFile   = "cell_areas.csv"
)

// Syncer mirrors the upstream hindcast archive directory into the
// local store: per-(variable, init month) hindcast CSVs plus the static
// region mask and cell area files.
type Syncer struct {
	host  string
	root  string
	store *store.Store
}

func NewSyncer(host, root string, st *store.Store) *Syncer {
	return &Syncer{host: host, root: root, store: st}
}

// Sync fetches the remote directory listing and imports every
// recognized file. Transient FTP failures are retried with exponential
// backoff; a file that fails to parse is skipped with a diagnostic so
// one malformed upload cannot stall the whole mirror.
func (s *Syncer) Sync() error {
	conn, err := s.dial()
	if err != nil {
		return err
	}
	defer conn.Quit()

	entries, err := conn.List(s.root)
	if err != nil {
		return fmt.Errorf("ftp list %s: %w", s.root, err)
	}

	for _, entry := range entries {
		if entry.Type != ftp.EntryTypeFile {
			continue
		}
		if err := s.syncFile(conn, entry.Name); err != nil {
			log.Printf("sync: %s: %v", entry.Name, err)
			metrics.ArchiveFilesSynced.WithLabelValues("error").Inc()
			continue
		}
	}
	return nil
}

func (s *Syncer) dial() (*ftp.ServerConn, error) {
	var conn *ftp.ServerConn
	operation := func() error {
		c, err := ftp.Dial(s.host, ftp.DialWithTimeout(30*time.Second))
		if err != nil {
			return fmt.Errorf("ftp dial: %w", err)
		}
		if err := c.Login("anonymous", "anonymous"); err != nil {
			c.Quit()
			return backoff.Permanent(fmt.Errorf("ftp login: %w", err))
		}
		conn = c
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = 2 * time.Minute
	if err := backoff.Retry(operation, bo); err != nil {
		return nil, err
	}
	return conn, nil
}

func (s *Syncer) syncFile(conn *ftp.ServerConn, name string) error {
	variable, month, isArchive := ParseArchiveName(name)
	qVariable, qMonth, isQuantiles := ParseQuantilesName(name)
	if !isArchive && !isQuantiles && name != regionMasksFile && name != cellAreasFile {
		return nil
	}

	body, err := s.retrieve(conn, path.Join(s.root, name))
	if err != nil {
		return err
	}

	switch {
	case isArchive:
		rows, err := ParseHindcastCSV(bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("parse: %w", err)
		}
		source := fmt.Sprintf("ftp://%s%s", s.host, path.Join(s.root, name))
		if err := s.store.ImportHindcast(variable, month, source, rows); err != nil {
			return fmt.Errorf("import: %w", err)
		}
		log.Printf("sync: imported %s (%d rows)", name, len(rows))

	case isQuantiles:
		b, err := ParseGriddedBoundaryCSV(bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("parse: %w", err)
		}
		if err := s.store.ReplaceGriddedBoundary(qVariable, qMonth, b); err != nil {
			return fmt.Errorf("import: %w", err)
		}
		log.Printf("sync: imported %s (%d leads x %d cells)", name, len(b.Leads), b.Cells)

	case name == regionMasksFile:
		masks, err := ParseRegionMasksCSV(bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("parse: %w", err)
		}
		for region, cells := range masks {
			if err := s.store.ReplaceRegionMask(region, cells); err != nil {
				return fmt.Errorf("import region %s: %w", region, err)
			}
		}
		log.Printf("sync: imported %d region masks", len(masks))

	case name == cellAreasFile:
		areas, err := ParseCellAreasCSV(bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("parse: %w", err)
		}
		if err := s.store.ReplaceCellAreas(areas); err != nil {
			return fmt.Errorf("import areas: %w", err)
		}
		log.Printf("sync: imported %d cell areas", len(areas))
	}

	metrics.ArchiveFilesSynced.WithLabelValues("ok").Inc()
	return nil
}

func (s *Syncer) retrieve(conn *ftp.ServerConn, remotePath string) ([]byte, error) {
	resp, err := conn.Retr(remotePath)
	if err != nil {
		return nil, fmt.Errorf("ftp retr: %w", err)
	}
	defer resp.Close()

	body, err := io.ReadAll(resp)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return body, nil
}

// ImportLocal imports one already-downloaded archive file, for operator
// use when the upstream mirror is unreachable.
func ImportLocal(st *store.Store, name string, r io.Reader) (*models.Dataset, error) {
	variable, month, ok := ParseArchiveName(name)
	if !ok {
		return nil, fmt.Errorf("%s: not an archive file name", name)
	}
	rows, err := ParseHindcastCSV(r)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	if err := st.ImportHindcast(variable, month, "local import: "+name, rows); err != nil {
		return nil, err
	}
	return st.FindDataset(variable, rows[0].InitYear, month)
}
