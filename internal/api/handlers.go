package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"OptionSentinel/internal/export"
	"OptionSentinel/internal/logger"
	"OptionSentinel/internal/model"
	"OptionSentinel/internal/recorder"
	"OptionSentinel/internal/strategy"
)

// loadResult resolves the {side} variable and loads its latest run.
// On failure it has already written the error response.
func (s *Server) loadResult(w http.ResponseWriter, r *http.Request) (*model.ScreenResult, bool) {
	side, err := model.ParseSide(mux.Vars(r)["side"])
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return nil, false
	}
	res, err := s.store.LoadResults(r.Context(), side)
	if errors.Is(err, recorder.ErrNoResults) {
		writeError(w, http.StatusNotFound, fmt.Sprintf("no %s screen has run yet", side))
		return nil, false
	}
	if err != nil {
		logger.Errorf("load %s results: %v", side, err)
		writeError(w, http.StatusInternalServerError, "failed to load results")
		return nil, false
	}
	return res, true
}

func (s *Server) getCandidates(w http.ResponseWriter, r *http.Request) {
	res, ok := s.loadResult(w, r)
	if !ok {
		return
	}
	data := res.Candidates
	if r.URL.Query().Get("flagged") == "true" {
		data = nil
		for _, c := range res.Candidates {
			if c.PutCandidateInd {
				data = append(data, c)
			}
		}
	}
	if data == nil {
		data = []model.CandidateIndicator{}
	}
	writeJSON(w, http.StatusOK, Response[[]model.CandidateIndicator]{Data: data, Meta: metaOf(res, len(data))})
}

func (s *Server) getOptions(w http.ResponseWriter, r *http.Request) {
	res, ok := s.loadResult(w, r)
	if !ok {
		return
	}
	f, err := parseFilter(r, res.Side)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	data := strategy.FilterOptions(res.Options, f)
	if data == nil {
		data = []model.RankedOption{}
	}
	writeJSON(w, http.StatusOK, Response[[]model.RankedOption]{Data: data, Meta: metaOf(res, len(data))})
}

func (s *Server) getOptionsCSV(w http.ResponseWriter, r *http.Request) {
	res, ok := s.loadResult(w, r)
	if !ok {
		return
	}
	f, err := parseFilter(r, res.Side)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", export.FileName(res.Side)))
	if err := export.WriteCSV(w, strategy.FilterOptions(res.Options, f)); err != nil {
		logger.Warnf("write csv: %v", err)
	}
}

func (s *Server) getSummary(w http.ResponseWriter, r *http.Request) {
	res, ok := s.loadResult(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, Response[model.Summary]{Data: strategy.Summarize(res), Meta: metaOf(res, 0)})
}

// parseFilter reads min_days, max_days, min_discount and max_discount,
// defaulting each bound to the side's strategy.DefaultFilterFor.
func parseFilter(r *http.Request, side model.Side) (strategy.OptionFilter, error) {
	f := strategy.DefaultFilterFor(side)
	q := r.URL.Query()

	ints := []struct {
		key string
		dst *int
	}{{"min_days", &f.MinDays}, {"max_days", &f.MaxDays}}
	for _, p := range ints {
		if v := q.Get(p.key); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return f, fmt.Errorf("invalid %s: %q", p.key, v)
			}
			*p.dst = n
		}
	}

	floats := []struct {
		key string
		dst *float64
	}{{"min_discount", &f.MinDiscount}, {"max_discount", &f.MaxDiscount}}
	for _, p := range floats {
		if v := q.Get(p.key); v != "" {
			n, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return f, fmt.Errorf("invalid %s: %q", p.key, v)
			}
			*p.dst = n
		}
	}

	if f.MinDays > f.MaxDays || f.MinDiscount > f.MaxDiscount {
		return f, fmt.Errorf("filter range is empty")
	}
	return f, nil
}
