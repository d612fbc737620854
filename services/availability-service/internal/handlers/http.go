package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/purelife/meetings/libs/auth"
	"github.com/purelife/meetings/services/availability-service/internal/model"
	"github.com/purelife/meetings/services/availability-service/internal/schedule"
	"github.com/purelife/meetings/services/availability-service/internal/storage"
)

type Handler struct {
	repo   *storage.Repository
	logger *slog.Logger
	secret []byte
}

func New(repo *storage.Repository, logger *slog.Logger, tokenSecret []byte) *Handler {
	return &Handler{repo: repo, logger: logger, secret: tokenSecret}
}

// hostFromRequest authenticates the authoring endpoints. Tokens are minted by
// the platform identity system; only hosts may author availability.
func (h *Handler) hostFromRequest(w http.ResponseWriter, r *http.Request) (string, bool) {
	token, ok := auth.BearerToken(r.Header.Get("Authorization"))
	if !ok {
		http.Error(w, "missing bearer token", http.StatusUnauthorized)
		return "", false
	}
	claims, err := auth.VerifyHS256(token, h.secret)
	if err != nil {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return "", false
	}
	if claims.Role != "host" || claims.HostID == "" {
		http.Error(w, "host role required", http.StatusForbidden)
		return "", false
	}
	return claims.HostID, true
}

type ruleItem struct {
	RuleID      string `json:"rule_id"`
	Kind        string `json:"kind"`
	Weekday     int    `json:"weekday,omitempty"`
	Date        string `json:"date,omitempty"`
	StartMinute int    `json:"start_minute"`
	EndMinute   int    `json:"end_minute"`
	SlotMinutes int    `json:"slot_minutes"`
	MeetingType string `json:"meeting_type,omitempty"`
	Active      bool   `json:"active"`
}

func (h *Handler) Profile(w http.ResponseWriter, r *http.Request) {
	hostID, ok := h.hostFromRequest(w, r)
	if !ok {
		return
	}

	switch r.Method {
	case http.MethodGet:
		p, err := h.repo.GetOrCreateProfile(r.Context(), hostID)
		if err != nil {
			http.Error(w, "failed to load profile", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"host_id":  p.HostID,
			"name":     p.Name,
			"timezone": p.Timezone,
		})
	case http.MethodPut:
		var req struct {
			Name     string `json:"name"`
			Timezone string `json:"timezone"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json body", http.StatusBadRequest)
			return
		}
		req.Name = strings.TrimSpace(req.Name)
		req.Timezone = strings.TrimSpace(req.Timezone)
		if req.Timezone == "" {
			req.Timezone = "UTC"
		}
		if _, err := time.LoadLocation(req.Timezone); err != nil {
			http.Error(w, "unknown timezone", http.StatusBadRequest)
			return
		}
		if err := h.repo.UpdateProfile(r.Context(), hostID, req.Name, req.Timezone); err != nil {
			http.Error(w, "failed to update profile", http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *Handler) Rules(w http.ResponseWriter, r *http.Request) {
	hostID, ok := h.hostFromRequest(w, r)
	if !ok {
		return
	}

	switch r.Method {
	case http.MethodGet:
		rules, err := h.repo.ListRules(r.Context(), hostID)
		if err != nil {
			http.Error(w, "failed to list rules", http.StatusInternalServerError)
			return
		}
		items := make([]ruleItem, 0, len(rules))
		for _, rule := range rules {
			items = append(items, toRuleItem(rule))
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(items)
	case http.MethodPost:
		var req struct {
			Kind        string `json:"kind"`
			Weekday     int    `json:"weekday"`
			Date        string `json:"date"`
			StartMinute int    `json:"start_minute"`
			EndMinute   int    `json:"end_minute"`
			SlotMinutes int    `json:"slot_minutes"`
			MeetingType string `json:"meeting_type"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json body", http.StatusBadRequest)
			return
		}

		rule := model.AvailabilityRule{
			HostID:      hostID,
			Kind:        model.RuleKind(strings.TrimSpace(req.Kind)),
			Weekday:     req.Weekday,
			StartMinute: req.StartMinute,
			EndMinute:   req.EndMinute,
			SlotMinutes: req.SlotMinutes,
			MeetingType: strings.TrimSpace(req.MeetingType),
			Active:      true,
		}
		if rule.Kind == model.RuleKindDate {
			d, err := time.ParseInLocation("2006-01-02", strings.TrimSpace(req.Date), time.UTC)
			if err != nil {
				http.Error(w, "invalid date", http.StatusBadRequest)
				return
			}
			rule.Date = d
		}
		if err := schedule.ValidateRule(rule); err != nil {
			var verr *schedule.ValidationError
			if errors.As(err, &verr) {
				http.Error(w, verr.Error(), http.StatusBadRequest)
				return
			}
			http.Error(w, "invalid rule", http.StatusBadRequest)
			return
		}

		id, err := h.repo.CreateRule(r.Context(), rule)
		if err != nil {
			http.Error(w, "failed to create rule", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(map[string]string{"rule_id": id})
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *Handler) ToggleRule(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	hostID, ok := h.hostFromRequest(w, r)
	if !ok {
		return
	}

	var req struct {
		RuleID string `json:"rule_id"`
		Active bool   `json:"active"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.RuleID = strings.TrimSpace(req.RuleID)
	if req.RuleID == "" {
		http.Error(w, "rule_id required", http.StatusBadRequest)
		return
	}

	if err := h.repo.SetRuleActive(r.Context(), hostID, req.RuleID, req.Active); err != nil {
		if storage.IsNotFound(err) {
			http.Error(w, "rule not found", http.StatusNotFound)
			return
		}
		http.Error(w, "failed to update rule", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) DeleteRule(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	hostID, ok := h.hostFromRequest(w, r)
	if !ok {
		return
	}

	var req struct {
		RuleID string `json:"rule_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.RuleID = strings.TrimSpace(req.RuleID)
	if req.RuleID == "" {
		http.Error(w, "rule_id required", http.StatusBadRequest)
		return
	}

	if err := h.repo.DeleteRule(r.Context(), hostID, req.RuleID); err != nil {
		if storage.IsNotFound(err) {
			http.Error(w, "rule not found", http.StatusNotFound)
			return
		}
		http.Error(w, "failed to delete rule", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) Exceptions(w http.ResponseWriter, r *http.Request) {
	hostID, ok := h.hostFromRequest(w, r)
	if !ok {
		return
	}

	switch r.Method {
	case http.MethodGet:
		from, to, ok := parseRange(w, r)
		if !ok {
			return
		}
		exceptions, err := h.repo.ListExceptions(r.Context(), hostID, from, to)
		if err != nil {
			http.Error(w, "failed to list exceptions", http.StatusInternalServerError)
			return
		}
		type item struct {
			ExceptionID string `json:"exception_id"`
			Date        string `json:"date"`
			Reason      string `json:"reason,omitempty"`
			MeetingType string `json:"meeting_type,omitempty"`
		}
		items := make([]item, 0, len(exceptions))
		for _, ex := range exceptions {
			items = append(items, item{
				ExceptionID: ex.ID,
				Date:        ex.Date.Format("2006-01-02"),
				Reason:      ex.Reason,
				MeetingType: ex.MeetingType,
			})
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(items)
	case http.MethodPost:
		var req struct {
			Date        string `json:"date"`
			Reason      string `json:"reason"`
			MeetingType string `json:"meeting_type"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json body", http.StatusBadRequest)
			return
		}
		d, err := time.ParseInLocation("2006-01-02", strings.TrimSpace(req.Date), time.UTC)
		if err != nil {
			http.Error(w, "invalid date", http.StatusBadRequest)
			return
		}
		id, err := h.repo.CreateException(r.Context(), model.DateException{
			HostID:      hostID,
			Date:        d,
			Reason:      strings.TrimSpace(req.Reason),
			MeetingType: strings.TrimSpace(req.MeetingType),
		})
		if err != nil {
			http.Error(w, "failed to create exception", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(map[string]string{"exception_id": id})
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *Handler) DeleteException(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	hostID, ok := h.hostFromRequest(w, r)
	if !ok {
		return
	}

	var req struct {
		ExceptionID string `json:"exception_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.ExceptionID = strings.TrimSpace(req.ExceptionID)
	if req.ExceptionID == "" {
		http.Error(w, "exception_id required", http.StatusBadRequest)
		return
	}

	if err := h.repo.DeleteException(r.Context(), hostID, req.ExceptionID); err != nil {
		if storage.IsNotFound(err) {
			http.Error(w, "exception not found", http.StatusNotFound)
			return
		}
		http.Error(w, "failed to delete exception", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Day is the internal endpoint the booking service uses to resolve one host's
// availability for a date. It is not exposed through the public edge.
func (h *Handler) Day(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	hostID := strings.TrimSpace(r.URL.Query().Get("host_id"))
	dateStr := strings.TrimSpace(r.URL.Query().Get("date"))
	meetingType := strings.TrimSpace(r.URL.Query().Get("meeting_type"))
	if hostID == "" || dateStr == "" {
		http.Error(w, "host_id and date are required", http.StatusBadRequest)
		return
	}
	date, err := time.ParseInLocation("2006-01-02", dateStr, time.UTC)
	if err != nil {
		http.Error(w, "invalid date", http.StatusBadRequest)
		return
	}

	profile, err := h.repo.GetOrCreateProfile(r.Context(), hostID)
	if err != nil {
		http.Error(w, "failed to load profile", http.StatusInternalServerError)
		return
	}

	exceptions, err := h.repo.ExceptionsForDate(r.Context(), hostID, date)
	if err != nil {
		http.Error(w, "failed to load exceptions", http.StatusInternalServerError)
		return
	}
	var rules []model.AvailabilityRule
	if len(exceptions) == 0 {
		// Blackout days never need the rules at all.
		rules, err = h.repo.RulesForDate(r.Context(), hostID, date)
		if err != nil {
			http.Error(w, "failed to load rules", http.StatusInternalServerError)
			return
		}
	}

	day := schedule.ResolveDay(rules, exceptions, date, meetingType)

	type windowItem struct {
		StartMinute int `json:"start_minute"`
		EndMinute   int `json:"end_minute"`
		SlotMinutes int `json:"slot_minutes"`
	}
	windows := make([]windowItem, 0, len(day.Windows))
	for _, win := range day.Windows {
		windows = append(windows, windowItem(win))
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"date":     dateStr,
		"timezone": profile.Timezone,
		"blackout": day.Blackout,
		"windows":  windows,
	})
}

func toRuleItem(rule model.AvailabilityRule) ruleItem {
	item := ruleItem{
		RuleID:      rule.ID,
		Kind:        string(rule.Kind),
		StartMinute: rule.StartMinute,
		EndMinute:   rule.EndMinute,
		SlotMinutes: rule.SlotMinutes,
		MeetingType: rule.MeetingType,
		Active:      rule.Active,
	}
	if rule.Kind == model.RuleKindRecurring {
		item.Weekday = rule.Weekday
	} else {
		item.Date = rule.Date.Format("2006-01-02")
	}
	return item
}

func parseRange(w http.ResponseWriter, r *http.Request) (time.Time, time.Time, bool) {
	fromStr := strings.TrimSpace(r.URL.Query().Get("from"))
	toStr := strings.TrimSpace(r.URL.Query().Get("to"))

	from := time.Now().UTC().Truncate(24 * time.Hour)
	to := from.AddDate(0, 3, 0)
	var err error
	if fromStr != "" {
		from, err = time.ParseInLocation("2006-01-02", fromStr, time.UTC)
		if err != nil {
			http.Error(w, "invalid from", http.StatusBadRequest)
			return time.Time{}, time.Time{}, false
		}
	}
	if toStr != "" {
		to, err = time.ParseInLocation("2006-01-02", toStr, time.UTC)
		if err != nil {
			http.Error(w, "invalid to", http.StatusBadRequest)
			return time.Time{}, time.Time{}, false
		}
	}
	if !to.After(from) {
		http.Error(w, "to must be after from", http.StatusBadRequest)
		return time.Time{}, time.Time{}, false
	}
	return from, to, true
}
