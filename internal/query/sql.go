package query

import (
	"fmt"
	"strings"

	"github.com/mohammed-shakir/emission-explorer/internal/aggregate"
)

type Dialect int

const (
	PostGIS Dialect = iota
	DuckDB
)

func (d Dialect) String() string {
	switch d {
	case PostGIS:
		return "postgis"
	case DuckDB:
		return "duckdb"
	default:
		return fmt.Sprintf("Dialect(%d)", int(d))
	}
}

func (d Dialect) doubleType() string {
	if d == PostGIS {
		return "double precision"
	}
	return "DOUBLE"
}

type Kind int

const (
	// KindDaily aggregates server side into one row per observed day.
	KindDaily Kind = iota
	// KindPoints returns raw rows: datetime, lon, lat, value.
	KindPoints
)

var aggFuncs = map[Dialect]map[aggregate.Operator]string{
	PostGIS: {
		aggregate.Sum:    "SUM(value)",
		aggregate.Mean:   "AVG(value)",
		aggregate.Median: "percentile_cont(0.5) WITHIN GROUP (ORDER BY value)",
		aggregate.Std:    "stddev_samp(value)",
		aggregate.Min:    "MIN(value)",
		aggregate.Max:    "MAX(value)",
		aggregate.Count:  "COUNT(value)",
	},
	DuckDB: {
		aggregate.Sum:    "SUM(value)",
		aggregate.Mean:   "AVG(value)",
		aggregate.Median: "median(value)",
		aggregate.Std:    "stddev_samp(value)",
		aggregate.Min:    "MIN(value)",
		aggregate.Max:    "MAX(value)",
		aggregate.Count:  "COUNT(value)",
	},
}

// SQL renders a parameterised statement. source is the already-quoted
// relation to read (a table name or a table function call).
func (f Filter) SQL(d Dialect, k Kind, source string) (string, []any, error) {
	if source == "" {
		return "", nil, fmt.Errorf("empty source for %s", f.Table)
	}

	var (
		b    strings.Builder
		args []any
	)
	ph := func(v any) string {
		args = append(args, v)
		if d == PostGIS {
			return fmt.Sprintf("$%d", len(args))
		}
		return "?"
	}

	switch k {
	case KindDaily:
		agg, ok := aggFuncs[d][f.Operator]
		if !ok {
			return "", nil, fmt.Errorf("operator %q not supported by %s", f.Operator, d)
		}
		fmt.Fprintf(&b, "SELECT datetime, CAST(%s AS %s) AS value FROM %s\n", agg, d.doubleType(), source)
	case KindPoints:
		switch d {
		case PostGIS:
			fmt.Fprintf(&b, "SELECT datetime, ST_X(geom) AS lon, ST_Y(geom) AS lat, value FROM %s\n", source)
		default:
			fmt.Fprintf(&b, "SELECT datetime, lon, lat, value FROM %s\n", source)
		}
	default:
		return "", nil, fmt.Errorf("unknown query kind %d", k)
	}

	fmt.Fprintf(&b, "WHERE datetime >= %s AND datetime <= %s\n", ph(f.Start), ph(f.End))
	env := f.Envelope
	switch d {
	case PostGIS:
		fmt.Fprintf(&b, "AND geom && ST_MakeEnvelope(%s, %s, %s, %s, 4326)\n", ph(env.X1), ph(env.Y1), ph(env.X2), ph(env.Y2))
		// members of a region union may overlap; dissolve them so the
		// multipolygon handed to ST_Contains is valid
		fmt.Fprintf(&b, "AND ST_Contains(ST_UnaryUnion(ST_GeomFromText(%s, 4326)), geom)\n", ph(f.WKT))
	case DuckDB:
		fmt.Fprintf(&b, "AND lon BETWEEN %s AND %s AND lat BETWEEN %s AND %s\n", ph(env.X1), ph(env.X2), ph(env.Y1), ph(env.Y2))
		if len(f.Area) <= 1 {
			fmt.Fprintf(&b, "AND ST_Contains(ST_GeomFromText(%s), ST_Point(lon, lat))\n", ph(f.WKT))
			break
		}
		// members may overlap; test each on its own
		preds := make([]string, len(f.Area))
		for i, p := range f.Area {
			preds[i] = fmt.Sprintf("ST_Contains(ST_GeomFromText(%s), ST_Point(lon, lat))", ph(p.WKT()))
		}
		fmt.Fprintf(&b, "AND (%s)\n", strings.Join(preds, " OR "))
	default:
		return "", nil, fmt.Errorf("unknown dialect %s", d)
	}

	if k == KindDaily {
		b.WriteString("GROUP BY datetime\n")
	}
	b.WriteString("ORDER BY datetime")
	return b.String(), args, nil
}
