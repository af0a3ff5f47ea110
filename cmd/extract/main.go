// Command extract runs one aggregation query against the configured store and
// writes the result to stdout.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/url"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/mohammed-shakir/emission-explorer/internal/aggregate"
	"github.com/mohammed-shakir/emission-explorer/internal/app"
	"github.com/mohammed-shakir/emission-explorer/internal/composer"
	"github.com/mohammed-shakir/emission-explorer/internal/core/config"
	"github.com/mohammed-shakir/emission-explorer/internal/core/model"
	"github.com/mohammed-shakir/emission-explorer/internal/core/router"
	"github.com/mohammed-shakir/emission-explorer/internal/extract"
	"github.com/mohammed-shakir/emission-explorer/internal/logger"
	"github.com/mohammed-shakir/emission-explorer/internal/pipeline"
)

// multi collects a repeatable flag.
type multi []string

func (m *multi) String() string     { return strings.Join(*m, ",") }
func (m *multi) Set(v string) error { *m = append(*m, v); return nil }

type options struct {
	envFile  string
	gridded  bool
	format   string
	polygon  string
	regions  multi
	values   url.Values
	resValue string
	h3Res    int
}

// h3Unset leaves the H3 resolution to the router default.
const h3Unset = -1

func parseFlags(args []string) (options, error) {
	fs := flag.NewFlagSet("extract", flag.ContinueOnError)
	var o options
	var variable, start, end, operator, granularity, refStart, refEnd, grid string
	var keep bool

	fs.StringVar(&o.envFile, "env", ".env", "optional dotenv file")
	fs.StringVar(&variable, "variable", "", "GFAS variable, e.g. co2fire")
	fs.StringVar(&start, "start", "", "first day, DD-MM-YYYY")
	fs.StringVar(&end, "end", "", "last day, DD-MM-YYYY")
	fs.StringVar(&operator, "operator", string(aggregate.Sum), joinOf(aggregate.Operators()))
	fs.BoolVar(&o.gridded, "gridded", false, "aggregate per grid cell instead of a single series")
	fs.StringVar(&granularity, "granularity", "", joinOf([]model.Granularity{model.Daily, model.Weekly, model.Monthly}))
	fs.BoolVar(&keep, "keep-separate-dates", false, "keep per-day values: no climatology collapse of the series, per-day gridded cells")
	fs.StringVar(&refStart, "reference-start", "", "reference period start, DD-MM-YYYY")
	fs.StringVar(&refEnd, "reference-end", "", "reference period end, DD-MM-YYYY")
	fs.StringVar(&o.polygon, "polygon", "", "GeoJSON polygon or multipolygon")
	fs.Var(&o.regions, "region", "region or continent name (repeatable)")
	fs.StringVar(&grid, "grid", "", "square|h3 (gridded only)")
	fs.StringVar(&o.resValue, "resolution", "", "square cell size in degrees (gridded only)")
	fs.IntVar(&o.h3Res, "h3-res", h3Unset, fmt.Sprintf("H3 resolution 0..15 (gridded only, default %d)", router.DefaultH3Res))
	fs.StringVar(&o.format, "format", "csv", "json|geojson|csv|arrow")
	if err := fs.Parse(args); err != nil {
		return options{}, err
	}

	v := url.Values{}
	set := func(k, s string) {
		if s != "" {
			v.Set(k, s)
		}
	}
	set("variable", variable)
	set("start", start)
	set("end", end)
	set("operator", operator)
	set("granularity", granularity)
	set("reference_start", refStart)
	set("reference_end", refEnd)
	set("polygon", o.polygon)
	set("region", strings.Join(o.regions, "+"))
	set("grid", grid)
	set("resolution", o.resValue)
	if keep {
		v.Set("keep_separate_dates", "true")
	}
	if o.h3Res != h3Unset {
		v.Set("h3_res", strconv.Itoa(o.h3Res))
	}
	o.values = v
	return o, nil
}

func joinOf[T ~string](vs []T) string {
	s := make([]string, len(vs))
	for i, v := range vs {
		s[i] = string(v)
	}
	return strings.Join(s, "|")
}

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "extract:", err)
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		os.Exit(1)
	}
}

func run(args []string, stdout io.Writer) error {
	o, err := parseFlags(args)
	if err != nil {
		return err
	}
	_ = godotenv.Load(o.envFile)
	cfg := config.FromEnv()

	zl := logger.Build(logger.Config{Level: cfg.LogLevel, Console: true, Component: "extract"}, os.Stderr)
	log := logger.NewSlog(&zl)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	resolver, err := app.OpenRegions(cfg, log)
	if err != nil && len(o.regions) > 0 {
		return err
	}

	mode := model.ModeScalar
	if o.gridded {
		mode = model.ModeGridded
	}
	q, err := router.ParseQuery(o.values, mode, resolver, router.Defaults{Resolution: cfg.DefaultResolution, H3Res: router.DefaultH3Res})
	if err != nil {
		return err
	}
	neg, err := composer.NegotiateFormat(composer.NegotiationInput{OutputFormat: o.format, Gridded: o.gridded})
	if err != nil {
		return err
	}

	st, err := app.OpenStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	res, err := pipeline.New(extract.New(st, log), log).Run(ctx, q)
	if err != nil {
		return err
	}

	bw := bufio.NewWriter(stdout)
	if err := composer.Encode(bw, neg.Format, res); err != nil {
		return err
	}
	return bw.Flush()
}
