package addressbook

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hugwawi/hugwawi-admin/internal/searchlist"
)

const (
	csvFlushEvery = 200
	csvBufferSize = 32 * 1024
)

type csvStreamer struct {
	buf          *bufio.Writer
	csv          *csv.Writer
	flushEvery   int
	pendingLines int
}

func newCSVStreamer(w io.Writer) *csvStreamer {
	buf := bufio.NewWriterSize(w, csvBufferSize)
	writer := csv.NewWriter(buf)
	writer.UseCRLF = true
	return &csvStreamer{buf: buf, csv: writer, flushEvery: csvFlushEvery}
}

func (s *csvStreamer) writeComment(line string) error {
	if s == nil || s.buf == nil {
		return fmt.Errorf("csv streamer not initialised")
	}
	if !strings.HasSuffix(line, "\r\n") {
		line = strings.TrimSuffix(line, "\n")
		line += "\r\n"
	}
	if _, err := s.buf.WriteString(line); err != nil {
		return err
	}
	return nil
}

func (s *csvStreamer) writeRow(row []string) error {
	if s == nil || s.csv == nil {
		return fmt.Errorf("csv streamer not initialised")
	}
	if err := s.csv.Write(row); err != nil {
		return err
	}
	s.pendingLines++
	if s.flushEvery > 0 && s.pendingLines >= s.flushEvery {
		return s.Flush()
	}
	return nil
}

func (s *csvStreamer) Flush() error {
	if s == nil || s.csv == nil || s.buf == nil {
		return fmt.Errorf("csv streamer not initialised")
	}
	s.csv.Flush()
	if err := s.csv.Error(); err != nil {
		return err
	}
	if err := s.buf.Flush(); err != nil {
		return err
	}
	s.pendingLines = 0
	return nil
}

// handleExportCSV streams the rows the search screen currently shows,
// the loaded page narrowed by the column filters.
func (h *Handler) handleExportCSV(w http.ResponseWriter, r *http.Request) {
	ctrl := h.controller(r)
	if ctrl == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	snap := ctrl.Snapshot()

	filename := fmt.Sprintf("adressen-%s-%s.csv", snap.Group, time.Now().Format("20060102"))
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s", filename))
	if err := writeAddressCSV(w, snap); err != nil {
		h.logger.Error("stream address csv", "error", err)
	}
}

func writeAddressCSV(w io.Writer, snap searchlist.Snapshot) error {
	streamer := newCSVStreamer(w)
	if err := streamer.writeComment("# HUGWAWI Adresssuche"); err != nil {
		return err
	}
	if err := streamer.writeComment(fmt.Sprintf("# Suchgruppe: %s", snap.Group)); err != nil {
		return err
	}
	if err := streamer.writeComment(fmt.Sprintf("# Seite %d von %d, %d Treffer gesamt", snap.Page, snap.TotalPages, snap.Total)); err != nil {
		return err
	}
	if err := streamer.writeComment(fmt.Sprintf("# Sortierung: %s %s", snap.SortField, snap.SortDir)); err != nil {
		return err
	}
	if filters := columnFilterSummary(snap.ColumnFilters); filters != "" {
		if err := streamer.writeComment("# Spaltenfilter: " + filters); err != nil {
			return err
		}
	}
	if err := streamer.writeRow([]string{"Kdn", "Suchname", "Name", "Strasse", "PLZ", "Ort", "Land", "Telefon", "E-Mail", "Aktiv"}); err != nil {
		return err
	}
	for _, item := range snap.Visible {
		aktiv := "nein"
		if item.Aktiv {
			aktiv = "ja"
		}
		if err := streamer.writeRow([]string{
			item.Kdn,
			item.Suchname,
			item.Name1,
			item.Strasse,
			item.Plz,
			item.Ort,
			item.Land,
			item.Telefon,
			item.Email,
			aktiv,
		}); err != nil {
			return err
		}
	}
	return streamer.Flush()
}

func columnFilterSummary(filters searchlist.ColumnFilterSet) string {
	parts := make([]string, 0, len(filters))
	for _, col := range searchlist.Columns {
		if v := strings.TrimSpace(filters[col]); v != "" {
			parts = append(parts, fmt.Sprintf("%s=%s", col, v))
		}
	}
	return strings.Join(parts, ", ")
}
