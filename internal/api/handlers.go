package api

import (
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"strconv"

	"github.com/Veraticus/quest/internal/achievement"
	"github.com/Veraticus/quest/internal/importer"
	"github.com/Veraticus/quest/internal/leaderboard"
	"github.com/Veraticus/quest/internal/model"
	"github.com/Veraticus/quest/internal/record"
	"github.com/Veraticus/quest/internal/tracker"
	"github.com/Veraticus/quest/internal/view"
	"github.com/gorilla/mux"
)

const (
	defaultLeaderboardLimit = 10
	maxLeaderboardLimit     = 100
)

type applicationRequest struct {
	Company     *string `json:"company"`
	Position    *string `json:"position"`
	Status      *string `json:"status"`
	AppliedDate *string `json:"applied_date"`
	Notes       *string `json:"notes"`
}

func (req applicationRequest) row() record.RawRow {
	row := record.RawRow{}
	set := func(field string, v *string) {
		if v != nil {
			row[field] = *v
		}
	}
	set(record.FieldCompany, req.Company)
	set(record.FieldPosition, req.Position)
	set(record.FieldStatus, req.Status)
	set(record.FieldAppliedDate, req.AppliedDate)
	set(record.FieldNotes, req.Notes)
	return row
}

func (req applicationRequest) patch() (tracker.Patch, bool) {
	p := tracker.Patch{
		Company:     req.Company,
		Position:    req.Position,
		AppliedDate: req.AppliedDate,
		Notes:       req.Notes,
	}
	return p, p.Company != nil || p.Position != nil || p.AppliedDate != nil || p.Notes != nil
}

type progressView struct {
	XP            int `json:"xp"`
	Level         int `json:"level"`
	XPToNextLevel int `json:"xp_to_next_level"`
}

type mutationResponse struct {
	Application     model.Application      `json:"application"`
	NewAchievements []model.Achievement    `json:"new_achievements"`
	Notifications   []tracker.Notification `json:"notifications"`
	Progress        progressView           `json:"progress"`
	XPGained        int                    `json:"xp_gained"`
	AchievementXP   int                    `json:"achievement_xp"`
}

func (s *Server) progressOf(xp int) progressView {
	return progressView{XP: xp, Level: s.scorer.LevelOf(xp), XPToNextLevel: s.scorer.XPToNextLevel(xp)}
}

func (s *Server) mutation(results ...tracker.Result) mutationResponse {
	resp := mutationResponse{
		NewAchievements: []model.Achievement{},
		Notifications:   []tracker.Notification{},
	}
	for _, res := range results {
		resp.Application = res.Application
		resp.NewAchievements = append(resp.NewAchievements, res.NewAchievements...)
		resp.Notifications = append(resp.Notifications, res.Notifications...)
		resp.XPGained += res.XPGained
		resp.AchievementXP += res.AchievementXP
		resp.Progress = s.progressOf(res.State.Progress.XP)
	}
	s.metrics.RecordAward(resp.XPGained+resp.AchievementXP, len(resp.NewAchievements))
	return resp
}

// tolerate logs an achievement rule cycle and lets the request succeed with what was unlocked.
func (s *Server) tolerate(r *http.Request, err error) error {
	if err != nil && errors.Is(err, achievement.ErrPredicateCycle) {
		s.logger.Warn("Achievement rules did not settle",
			"user_id", userFrom(r.Context()),
			"error", err)
		return nil
	}
	return err
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleListApplications(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	filter := view.Filter{
		Status:   q.Get("status"),
		Company:  q.Get("company"),
		Position: q.Get("position"),
	}
	for param, dst := range map[string]**model.Date{"from": &filter.DateFrom, "to": &filter.DateTo} {
		if v := q.Get(param); v != "" {
			d, err := model.ParseDate(v)
			if err != nil {
				s.writeError(w, r, badRequest("%s: %v", param, err))
				return
			}
			*dst = &d
		}
	}
	if err := filter.Validate(); err != nil {
		s.writeError(w, r, err)
		return
	}

	key, err := view.ParseSortKey(q.Get("sort"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	order, err := view.ParseSortOrder(q.Get("order"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	st, err := s.tracker.Snapshot(r.Context(), userFrom(r.Context()))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	apps := view.View(st.Applications, filter, key, order)
	s.writeJSON(w, http.StatusOK, map[string]any{
		"applications": apps,
		"total":        len(apps),
	})
}

func (s *Server) handleCreateApplication(w http.ResponseWriter, r *http.Request) {
	var req applicationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, r, badRequest("invalid JSON: %v", err))
		return
	}

	unlock, err := s.lockUser(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	defer unlock()

	result, err := s.tracker.Create(r.Context(), userFrom(r.Context()), req.row())
	if err = s.tolerate(r, err); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, s.mutation(result))
}

func (s *Server) handleUpdateApplication(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		s.writeError(w, r, badRequest("invalid application id"))
		return
	}

	var req applicationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, r, badRequest("invalid JSON: %v", err))
		return
	}
	patch, hasPatch := req.patch()
	if !hasPatch && req.Status == nil {
		s.writeError(w, r, badRequest("nothing to update"))
		return
	}

	unlock, err := s.lockUser(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	defer unlock()

	ctx, userID := r.Context(), userFrom(r.Context())
	var results []tracker.Result
	if hasPatch {
		result, err := s.tracker.Update(ctx, userID, id, patch)
		if err = s.tolerate(r, err); err != nil {
			s.writeError(w, r, err)
			return
		}
		results = append(results, result)
	}
	if req.Status != nil {
		result, err := s.tracker.UpdateStatus(ctx, userID, id, *req.Status)
		if err = s.tolerate(r, err); err != nil {
			s.writeError(w, r, err)
			return
		}
		results = append(results, result)
	}

	s.writeJSON(w, http.StatusOK, s.mutation(results...))
}

func (s *Server) handleDeleteApplication(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		s.writeError(w, r, badRequest("invalid application id"))
		return
	}

	unlock, err := s.lockUser(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	defer unlock()

	if _, err := s.tracker.Delete(r.Context(), userFrom(r.Context()), id); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)

	var (
		payload io.Reader = r.Body
		format            = importer.FormatJSON
	)

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mediaType {
	case "multipart/form-data":
		file, header, err := r.FormFile("file")
		if err != nil {
			s.writeError(w, r, badRequest("multipart upload needs a file field: %v", err))
			return
		}
		defer func() { _ = file.Close() }()

		format, err = importer.FormatFromFilename(header.Filename)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		payload = file
	case "text/csv":
		format = importer.FormatCSV
	}

	unlock, err := s.lockUser(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	defer unlock()

	report, err := s.importer.ImportPayload(r.Context(), userFrom(r.Context()), format, payload)
	if report == nil {
		s.writeError(w, r, err)
		return
	}
	if err = s.tolerate(r, err); err != nil {
		s.writeError(w, r, err)
		return
	}

	s.metrics.RecordImport(report.Summary.Successful, report.Summary.Failed, report.DuplicatesSkipped)
	s.metrics.RecordAward(report.TotalXPGained+report.AchievementXP, len(report.NewAchievements))
	s.writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleTemplate(w http.ResponseWriter, r *http.Request) {
	switch format := r.URL.Query().Get("format"); format {
	case "", "json":
		s.writeJSON(w, http.StatusOK, s.importer.TemplateInfo())
	case "csv":
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", `attachment; filename="applications_template.csv"`)
		if err := importer.WriteTemplate(w); err != nil {
			s.logger.Warn("Failed to write template", "format", format, "error", err)
		}
	case "xlsx":
		w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		w.Header().Set("Content-Disposition", `attachment; filename="applications_template.xlsx"`)
		if err := importer.WriteTemplateXLSX(w); err != nil {
			s.logger.Warn("Failed to write template", "format", format, "error", err)
		}
	default:
		s.writeError(w, r, badRequest("unknown template format %q (use json, csv or xlsx)", format))
	}
}

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	profile, err := s.tracker.Profile(r.Context(), userFrom(r.Context()))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, profile)
}

func (s *Server) handleAchievements(w http.ResponseWriter, r *http.Request) {
	catalog, err := s.tracker.Achievements(r.Context(), userFrom(r.Context()))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, catalog)
}

type leaderboardResponse struct {
	You     *leaderboard.Position    `json:"you,omitempty"`
	By      leaderboard.By           `json:"by"`
	Entries []model.LeaderboardEntry `json:"entries"`
}

func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	by, err := leaderboard.ParseBy(r.URL.Query().Get("by"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	limit := defaultLeaderboardLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		limit, err = strconv.Atoi(v)
		if err != nil || limit <= 0 || limit > maxLeaderboardLimit {
			s.writeError(w, r, badRequest("limit must be between 1 and %d", maxLeaderboardLimit))
			return
		}
	}

	entries, err := s.leaders.GetLeaderboardEntries(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	ranked, err := leaderboard.Rank(entries, by, s.scorer.LevelOf)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	resp := leaderboardResponse{By: by, Entries: leaderboard.Top(ranked, limit)}
	if pos, ok := leaderboard.Find(ranked, userFrom(r.Context())); ok {
		resp.You = &pos
	}
	s.writeJSON(w, http.StatusOK, resp)
}
