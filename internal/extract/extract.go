// Package extract runs one request against a store and shapes the rows into
// a daily series or a gridded table.
package extract

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/mohammed-shakir/emission-explorer/internal/aggregate"
	"github.com/mohammed-shakir/emission-explorer/internal/core/model"
	"github.com/mohammed-shakir/emission-explorer/internal/geo"
	"github.com/mohammed-shakir/emission-explorer/internal/mapper"
	"github.com/mohammed-shakir/emission-explorer/internal/query"
	"github.com/mohammed-shakir/emission-explorer/internal/store"
)

type Extractor struct {
	store store.Store
	log   *slog.Logger
}

func New(st store.Store, log *slog.Logger) *Extractor {
	if log == nil {
		log = slog.Default()
	}
	return &Extractor{store: st, log: log}
}

// Extract validates req, then acquires one session and performs exactly one
// fetch. No matching records yields an empty result of the request's mode.
func (e *Extractor) Extract(ctx context.Context, req model.AggregationRequest) (model.Result, error) {
	if err := req.Validate(); err != nil {
		return model.Result{}, err
	}
	f, err := query.FromRequest(req)
	if err != nil {
		return model.Result{}, err
	}
	var binner mapper.Binner
	if req.Mode == model.ModeGridded {
		if binner, err = mapper.ForRequest(req); err != nil {
			return model.Result{}, err
		}
	}

	sess, err := e.store.Acquire(ctx)
	if err != nil {
		if !errors.Is(err, model.ErrConnectionFailure) && ctx.Err() == nil {
			err = fmt.Errorf("%w: %w", model.ErrConnectionFailure, err)
		}
		return model.Result{}, err
	}
	defer func() {
		if cerr := sess.Close(); cerr != nil {
			e.log.WarnContext(ctx, "session close failed", "error", cerr)
		}
	}()

	if req.Mode == model.ModeGridded {
		return e.gridded(ctx, sess, f, req, binner)
	}
	return e.scalar(ctx, sess, f, req)
}

func (e *Extractor) scalar(ctx context.Context, sess store.Session, f query.Filter, req model.AggregationRequest) (model.Result, error) {
	vals, err := sess.Daily(ctx, f)
	if err != nil {
		return model.Result{}, fmt.Errorf("fetch daily %s: %w", f.Table, err)
	}
	if len(vals) == 0 {
		e.log.DebugContext(ctx, "no records", "variable", f.Field, "mode", req.Mode)
		return model.EmptyResult(model.ModeScalar), nil
	}
	slices.SortStableFunc(vals, func(a, b model.DailyValue) int { return a.Date.Compare(b.Date) })

	s := &model.Series{
		Index:   make([]time.Time, len(vals)),
		Columns: []model.Column{{Name: model.RangeLabel(vals[0].Date, vals[len(vals)-1].Date), Values: make([]float64, len(vals))}},
	}
	for i, v := range vals {
		s.Index[i] = v.Date
		s.Columns[0].Values[i] = v.Value
	}
	if err := s.Validate(); err != nil {
		return model.Result{}, fmt.Errorf("daily %s: %w", f.Table, err)
	}
	if !req.KeepSeparateDates {
		s = Climatology(s)
	}
	e.log.DebugContext(ctx, "extracted series", "variable", f.Field, "rows", s.Len())
	return model.Result{Mode: model.ModeScalar, Series: s}, nil
}

func (e *Extractor) gridded(ctx context.Context, sess store.Session, f query.Filter, req model.AggregationRequest, binner mapper.Binner) (model.Result, error) {
	pts, err := sess.Points(ctx, f)
	if err != nil {
		return model.Result{}, fmt.Errorf("fetch points %s: %w", f.Table, err)
	}
	if len(pts) == 0 {
		e.log.DebugContext(ctx, "no records", "variable", f.Field, "mode", req.Mode)
		return model.EmptyResult(model.ModeGridded), nil
	}

	first, last := pts[0].Date, pts[0].Date
	in := aggregate.Input{Fields: []string{f.Field}, Records: make([]aggregate.Record, len(pts))}
	for i, p := range pts {
		id, err := binner.CellID(p.Point)
		if err != nil {
			return model.Result{}, err
		}
		in.Records[i] = aggregate.Record{Date: p.Date, Cell: id, Values: []float64{p.Value}}
		if p.Date.Before(first) {
			first = p.Date
		}
		if p.Date.After(last) {
			last = p.Date
		}
	}

	cells := make(map[string]model.GridCell)
	geom := func(id string) (geo.Ring, error) {
		c, err := binner.Cell(id)
		if err != nil {
			return nil, err
		}
		cells[id] = c
		return c.Boundary, nil
	}
	tbl, err := aggregate.Aggregate(in, req.GroupKeys(), []aggregate.Operator{f.Operator}, aggregate.WithCellGeometry(geom))
	if err != nil {
		return model.Result{}, fmt.Errorf("aggregate %s: %w", f.Table, err)
	}

	label := model.RangeLabel(first, last)
	g := &model.GriddedSeries{Keys: tbl.Keys, Columns: make([]string, len(tbl.Columns)), Rows: make([]model.GridRow, len(tbl.Groups))}
	for i := range tbl.Columns {
		g.Columns[i] = label
	}
	for i, grp := range tbl.Groups {
		g.Rows[i] = model.GridRow{Date: grp.Date, Cell: cells[grp.Cell], Values: grp.Values}
	}
	e.log.DebugContext(ctx, "extracted grid", "variable", f.Field, "rows", g.Len(), "cells", len(cells))
	return model.Result{Mode: model.ModeGridded, Grid: g}, nil
}
