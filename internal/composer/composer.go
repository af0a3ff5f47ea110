// Package composer encodes query results for HTTP and CLI output.
package composer

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/mohammed-shakir/emission-explorer/internal/core/model"
)

type Format int

const (
	FormatJSON Format = iota
	FormatGeoJSON
	FormatCSV
	FormatArrow
)

const (
	ContentTypeJSON    = "application/json"
	ContentTypeGeoJSON = "application/geo+json"
	ContentTypeCSV     = "text/csv; charset=utf-8"
	ContentTypeArrow   = "application/vnd.apache.arrow.stream"
)

// ErrGeoJSONScalar is returned when GeoJSON is requested for a scalar series,
// which has no geometry to render.
var ErrGeoJSONScalar = fmt.Errorf("%w: geojson output requires gridded mode", model.ErrUnsupportedMode)

func (f Format) String() string {
	switch f {
	case FormatGeoJSON:
		return "geojson"
	case FormatCSV:
		return "csv"
	case FormatArrow:
		return "arrow"
	default:
		return "json"
	}
}

func (f Format) ContentType() string {
	switch f {
	case FormatGeoJSON:
		return ContentTypeGeoJSON
	case FormatCSV:
		return ContentTypeCSV
	case FormatArrow:
		return ContentTypeArrow
	default:
		return ContentTypeJSON
	}
}

type NegotiationInput struct {
	AcceptHeader string
	OutputFormat string
	Gridded      bool
}

type Negotiation struct {
	Format      Format
	ContentType string
}

func negotiation(f Format) Negotiation {
	return Negotiation{Format: f, ContentType: f.ContentType()}
}

func parseOutputFormat(of string) (Format, bool) {
	switch {
	case of == "json", strings.HasPrefix(of, "application/json"):
		return FormatJSON, true
	case of == "geojson", strings.HasPrefix(of, "application/geo+json"):
		return FormatGeoJSON, true
	case of == "csv", strings.HasPrefix(of, "text/csv"):
		return FormatCSV, true
	case of == "arrow", strings.Contains(of, "apache.arrow"):
		return FormatArrow, true
	}
	return 0, false
}

// NegotiateFormat picks the output format. An explicit outputFormat wins over
// the Accept header; JSON is the default.
func NegotiateFormat(in NegotiationInput) (Negotiation, error) {
	of := strings.ToLower(strings.TrimSpace(in.OutputFormat))
	if of != "" {
		f, ok := parseOutputFormat(of)
		if !ok {
			return Negotiation{}, fmt.Errorf("%w: output format %q", model.ErrUnsupportedMode, in.OutputFormat)
		}
		if f == FormatGeoJSON && !in.Gridded {
			return Negotiation{}, ErrGeoJSONScalar
		}
		return negotiation(f), nil
	}

	ah := strings.ToLower(in.AcceptHeader)
	bestQ := -1.0
	best := Negotiation{}
	for part := range strings.SplitSeq(ah, ",") {
		token := strings.TrimSpace(part)
		if token == "" {
			continue
		}
		mt := token
		params := ""
		if i := strings.Index(token, ";"); i >= 0 {
			mt = strings.TrimSpace(token[:i])
			params = token[i+1:]
		}
		q := 1.0
		for p := range strings.SplitSeq(params, ";") {
			p = strings.TrimSpace(p)
			if after, ok := strings.CutPrefix(p, "q="); ok {
				if v, err := strconv.ParseFloat(after, 64); err == nil {
					q = v
				}
			}
		}
		if q <= 0 {
			continue
		}
		var cand Format
		switch {
		case mt == "*/*" || mt == "application/*" || mt == "application/json":
			cand = FormatJSON
		case strings.Contains(mt, "geo+json"):
			if !in.Gridded {
				continue
			}
			cand = FormatGeoJSON
		case mt == "text/csv":
			cand = FormatCSV
		case strings.Contains(mt, "apache.arrow"):
			cand = FormatArrow
		default:
			continue
		}
		if q > bestQ {
			bestQ = q
			best = negotiation(cand)
		}
	}
	if bestQ >= 0 {
		return best, nil
	}
	return negotiation(FormatJSON), nil
}

// Encode writes r to w in format f.
func Encode(w io.Writer, f Format, r model.Result) error {
	gridded := r.Mode == model.ModeGridded
	if gridded && r.Grid == nil {
		r.Grid = &model.GriddedSeries{}
	}
	if !gridded && r.Series == nil {
		r.Series = &model.Series{}
	}
	switch f {
	case FormatJSON:
		if gridded {
			return encodeGridJSON(w, r.Grid)
		}
		return encodeSeriesJSON(w, r.Series)
	case FormatGeoJSON:
		if !gridded {
			return ErrGeoJSONScalar
		}
		return encodeGeoJSON(w, r.Grid)
	case FormatCSV:
		if gridded {
			return encodeGridCSV(w, r.Grid)
		}
		return encodeSeriesCSV(w, r.Series)
	case FormatArrow:
		if gridded {
			return encodeGridArrow(w, r.Grid)
		}
		return encodeSeriesArrow(w, r.Series)
	}
	return errors.New("unsupported format")
}

const dateLayout = time.DateOnly
