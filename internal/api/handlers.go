package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/hrg-lab/chamber/internal/db"
	"github.com/hrg-lab/chamber/internal/network"
	"github.com/hrg-lab/chamber/internal/scan"
	"github.com/hrg-lab/chamber/internal/units"
)

// errUnknownPolarization is returned when ?pol= names a label with no
// published model; a typo should not read as an empty dataset.
var errUnknownPolarization = errors.New("unknown polarization")

// model resolves the ?pol= query parameter to a published model. With a
// single published polarization the parameter may be omitted.
func (s *Server) model(r *http.Request) (*network.Model, error) {
	pol := r.URL.Query().Get("pol")
	pols := s.mgr.Polarizations()
	if pol != "" {
		for _, p := range pols {
			if p == pol {
				return s.mgr.Model(pol), nil
			}
		}
		return nil, fmt.Errorf("%w %q", errUnknownPolarization, pol)
	}
	switch len(pols) {
	case 0:
		return network.NewModel(), nil
	case 1:
		return s.mgr.Model(pols[0]), nil
	default:
		return nil, fmt.Errorf("multiple polarizations published, 'pol' parameter required")
	}
}

// modelErrStatus maps a model resolution failure to its HTTP status.
func modelErrStatus(err error) int {
	if errors.Is(err, errUnknownPolarization) {
		return http.StatusNotFound
	}
	return http.StatusBadRequest
}

// nonNil keeps empty axes encoding as [] rather than null.
func nonNil(v []float64) []float64 {
	if v == nil {
		return []float64{}
	}
	return v
}

func (s *Server) listFrequencies(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	model, err := s.model(r)
	if err != nil {
		s.writeJSONError(w, modelErrStatus(err), err.Error())
		return
	}
	s.writeJSON(w, nonNil(model.Frequencies()))
}

func (s *Server) listAzimuths(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	model, err := s.model(r)
	if err != nil {
		s.writeJSONError(w, modelErrStatus(err), err.Error())
		return
	}
	s.writeJSON(w, nonNil(model.Azimuths()))
}

func (s *Server) listElevations(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	model, err := s.model(r)
	if err != nil {
		s.writeJSONError(w, modelErrStatus(err), err.Error())
		return
	}
	s.writeJSON(w, nonNil(model.Elevations()))
}

// magnitudesQuery builds a network.Query from the request's freq, azimuth
// and elevation parameters. Absent parameters leave the axis unfiltered;
// an explicit 0 filters on angle zero.
func magnitudesQuery(r *http.Request) (network.Query, error) {
	var q network.Query

	if f := r.URL.Query().Get("freq"); f != "" {
		hz, err := units.ParseFrequency(f)
		if err != nil {
			return q, err
		}
		q.Freq = &hz
	}
	if a := r.URL.Query().Get("azimuth"); a != "" {
		deg, err := strconv.ParseFloat(a, 64)
		if err != nil {
			return q, fmt.Errorf("invalid azimuth %q", a)
		}
		q.Azimuth = &deg
	}
	if e := r.URL.Query().Get("elevation"); e != "" {
		deg, err := strconv.ParseFloat(e, 64)
		if err != nil {
			return q, fmt.Errorf("invalid elevation %q", e)
		}
		q.Elevation = &deg
	}
	return q, nil
}

func (s *Server) listMagnitudes(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	model, err := s.model(r)
	if err != nil {
		s.writeJSONError(w, modelErrStatus(err), err.Error())
		return
	}
	q, err := magnitudesQuery(r)
	if err != nil {
		s.writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	mags, err := model.Magnitudes(q)
	if err != nil {
		if errors.Is(err, network.ErrFreqNotFound) {
			s.writeJSONError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, nonNil(mags))
}

func (s *Server) startScan(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	var params scan.Params
	if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
		s.writeJSONError(w, http.StatusBadRequest, fmt.Sprintf("invalid scan params: %v", err))
		return
	}
	id, err := s.mgr.Start(params)
	if err != nil {
		if errors.Is(err, scan.ErrScanRunning) {
			s.writeJSONError(w, http.StatusConflict, err.Error())
			return
		}
		s.writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.writeJSON(w, map[string]string{"session_id": id})
}

func (s *Server) abortScan(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	s.mgr.Abort()
	s.writeJSON(w, s.mgr.Status())
}

func (s *Server) scanStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	s.writeJSON(w, s.mgr.Status())
}

func (s *Server) showPose(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	s.writeJSON(w, map[string]float64{
		"azimuth":   s.pos.CurrentAzimuth(),
		"elevation": s.pos.CurrentElevation(),
	})
}

type jogRequest struct {
	Axis    string  `json:"axis"` // "azimuth" or "elevation"
	Degrees float64 `json:"degrees"`
}

func (s *Server) jogPositioner(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	if s.mgr.Status().Running {
		s.writeJSONError(w, http.StatusConflict, "cannot jog while a scan is running")
		return
	}
	var req jogRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeJSONError(w, http.StatusBadRequest, fmt.Sprintf("invalid jog request: %v", err))
		return
	}

	var err error
	switch req.Axis {
	case "azimuth":
		err = s.pos.MoveAzimuthBy(r.Context(), req.Degrees)
	case "elevation":
		err = s.pos.MoveElevationBy(r.Context(), req.Degrees)
	default:
		s.writeJSONError(w, http.StatusBadRequest, fmt.Sprintf("unknown axis %q", req.Axis))
		return
	}
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("jog failed: %v", err))
		return
	}
	s.writeJSON(w, map[string]float64{
		"azimuth":   s.pos.CurrentAzimuth(),
		"elevation": s.pos.CurrentElevation(),
	})
}

func (s *Server) zeroPositioner(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	if s.mgr.Status().Running {
		s.writeJSONError(w, http.StatusConflict, "cannot zero while a scan is running")
		return
	}
	s.pos.Zero()
	s.writeJSON(w, map[string]float64{"azimuth": 0, "elevation": 0})
}

func (s *Server) listSessions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	sessions, err := s.store.Sessions()
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to list sessions: %v", err))
		return
	}
	if sessions == nil {
		sessions = []db.Session{}
	}
	s.writeJSON(w, sessions)
}

func (s *Server) saveSession(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	if s.mgr.Status().Running {
		s.writeJSONError(w, http.StatusConflict, "cannot save while a scan is running")
		return
	}

	var req struct {
		Note string `json:"note"`
	}
	if r.Body != nil {
		json.NewDecoder(r.Body).Decode(&req) // note is optional
	}

	id := s.mgr.SessionID()
	if id == "" {
		s.writeJSONError(w, http.StatusBadRequest, "no scan data to save")
		return
	}
	if err := s.store.SaveSession(id, time.Now(), req.Note, s.mgr.Models()); err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to save session: %v", err))
		return
	}
	s.writeJSON(w, map[string]string{"session_id": id})
}

func (s *Server) loadSession(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	var req struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ID == "" {
		s.writeJSONError(w, http.StatusBadRequest, "session id required")
		return
	}

	models, err := s.store.LoadSession(req.ID)
	if err != nil {
		if errors.Is(err, db.ErrSessionNotFound) {
			s.writeJSONError(w, http.StatusNotFound, err.Error())
			return
		}
		s.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to load session: %v", err))
		return
	}
	if err := s.mgr.Replace(req.ID, models); err != nil {
		s.writeJSONError(w, http.StatusConflict, err.Error())
		return
	}
	s.writeJSON(w, map[string]string{"session_id": req.ID})
}

func (s *Server) clearModels(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	if err := s.mgr.Clear(); err != nil {
		s.writeJSONError(w, http.StatusConflict, err.Error())
		return
	}
	s.writeJSON(w, map[string]string{"status": "cleared"})
}
