package server

import (
	"encoding/json"
	"net/http"
	"strconv"

	"clearway/meridian/pkg/claims"
	"clearway/meridian/pkg/review"
	"clearway/meridian/pkg/rules"
)

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Error("failed to encode response", "error", err)
	}
}

func (s *Server) respondError(w http.ResponseWriter, status int, msg string) {
	s.respondJSON(w, status, errorResponse{Error: msg})
}

func (s *Server) decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return false
	}
	return true
}

type evaluateRequest struct {
	ClaimType string         `json:"claim_type"`
	ClaimData map[string]any `json:"claim_data"`
}

func (s *Server) handleEvaluateClaim(w http.ResponseWriter, r *http.Request) {
	var req evaluateRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	if req.ClaimType == "" {
		s.respondError(w, http.StatusBadRequest, "claim_type is required")
		return
	}

	result := s.evaluator.EvaluateClaim(r.Context(), req.ClaimType, req.ClaimData)
	s.respondJSON(w, http.StatusOK, result)
}

func (s *Server) handleListRules(w http.ResponseWriter, r *http.Request) {
	claimType := r.URL.Query().Get("claim_type")
	if claimType == "" {
		s.respondError(w, http.StatusBadRequest, "claim_type query parameter is required")
		return
	}
	ruleType := claims.RuleType(r.URL.Query().Get("rule_type"))
	if ruleType != "" && !ruleType.Valid() {
		s.respondError(w, http.StatusBadRequest, "unknown rule_type")
		return
	}

	result := s.rules.GetClaimRules(r.Context(), claimType, ruleType)
	s.respondJSON(w, http.StatusOK, map[string]any{"rules": result})
}

type createRuleRequest struct {
	RuleName   string         `json:"rule_name"`
	ClaimType  string         `json:"claim_type"`
	RuleType   claims.RuleType `json:"rule_type"`
	Conditions map[string]any `json:"conditions"`
	Actions    map[string]any `json:"actions"`
	Priority   int            `json:"priority"`
	IsActive   *bool          `json:"is_active"`
	CreatedBy  string         `json:"created_by"`
}

func (s *Server) handleCreateRule(w http.ResponseWriter, r *http.Request) {
	var req createRuleRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	if req.RuleName == "" || req.ClaimType == "" {
		s.respondError(w, http.StatusBadRequest, "rule_name and claim_type are required")
		return
	}
	if !req.RuleType.Valid() {
		s.respondError(w, http.StatusBadRequest, "unknown rule_type")
		return
	}

	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}
	id, ok := s.rules.CreateRule(r.Context(), &claims.ClaimRule{
		RuleName:   req.RuleName,
		ClaimType:  req.ClaimType,
		RuleType:   req.RuleType,
		Conditions: req.Conditions,
		Actions:    req.Actions,
		Priority:   req.Priority,
		IsActive:   active,
	}, req.CreatedBy)
	if !ok {
		s.respondError(w, http.StatusInternalServerError, "failed to create rule")
		return
	}
	s.respondJSON(w, http.StatusCreated, map[string]string{"id": id})
}

type updateRuleRequest struct {
	Updates   map[string]any `json:"updates"`
	UpdatedBy string         `json:"updated_by"`
}

func (s *Server) handleUpdateRule(w http.ResponseWriter, r *http.Request) {
	var req updateRuleRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	if len(req.Updates) == 0 {
		s.respondError(w, http.StatusBadRequest, "updates is required")
		return
	}

	ruleID := r.PathValue("id")
	if !s.rules.UpdateRule(r.Context(), ruleID, rules.RuleUpdateFromMap(req.Updates), req.UpdatedBy) {
		s.respondError(w, http.StatusConflict, "rule update failed")
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"id": ruleID})
}

func (s *Server) handleListEvidence(w http.ResponseWriter, r *http.Request) {
	claimType := r.URL.Query().Get("claim_type")
	if claimType == "" {
		s.respondError(w, http.StatusBadRequest, "claim_type query parameter is required")
		return
	}
	result := s.rules.GetEvidenceRequirements(r.Context(), claimType)
	s.respondJSON(w, http.StatusOK, map[string]any{"mappings": result})
}

type createEvidenceRequest struct {
	ClaimType        string                  `json:"claim_type"`
	EvidenceType     string                  `json:"evidence_type"`
	RequirementLevel claims.RequirementLevel `json:"requirement_level"`
	Conditions       map[string]any          `json:"conditions"`
	Weight           float64                 `json:"weight"`
	Description      string                  `json:"description"`
	CreatedBy        string                  `json:"created_by"`
}

func (s *Server) handleCreateEvidence(w http.ResponseWriter, r *http.Request) {
	var req createEvidenceRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	if req.ClaimType == "" || req.EvidenceType == "" {
		s.respondError(w, http.StatusBadRequest, "claim_type and evidence_type are required")
		return
	}
	if !req.RequirementLevel.Valid() {
		s.respondError(w, http.StatusBadRequest, "unknown requirement_level")
		return
	}

	id, ok := s.rules.CreateEvidenceMapping(r.Context(), &claims.EvidenceMapping{
		ClaimType:        req.ClaimType,
		EvidenceType:     req.EvidenceType,
		RequirementLevel: req.RequirementLevel,
		Conditions:       req.Conditions,
		Weight:           req.Weight,
		Description:      req.Description,
	}, req.CreatedBy)
	if !ok {
		s.respondError(w, http.StatusInternalServerError, "failed to create evidence mapping")
		return
	}
	s.respondJSON(w, http.StatusCreated, map[string]string{"id": id})
}

func (s *Server) handleUpdateEvidence(w http.ResponseWriter, r *http.Request) {
	var req updateRuleRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	claimType := r.PathValue("claim_type")
	evidenceType := r.PathValue("evidence_type")

	if !s.rules.UpdateEvidenceMapping(r.Context(), claimType, evidenceType,
		rules.MappingUpdateFromMap(req.Updates), req.UpdatedBy) {
		s.respondError(w, http.StatusConflict, "evidence mapping update failed")
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{
		"claim_type":    claimType,
		"evidence_type": evidenceType,
	})
}

func (s *Server) handleListReviews(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := claims.ReviewFilter{
		Priority:   claims.ReviewPriority(q.Get("priority")),
		ReviewType: claims.ReviewType(q.Get("review_type")),
	}
	if v := q.Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 0 {
			s.respondError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		filter.Limit = limit
	}

	items := s.queue.PendingReviews(r.Context(), filter)
	s.respondJSON(w, http.StatusOK, map[string]any{"reviews": items})
}

type enqueueReviewRequest struct {
	UserID           string                `json:"user_id"`
	DisputeID        string                `json:"dispute_id"`
	ReviewType       claims.ReviewType     `json:"review_type"`
	Priority         claims.ReviewPriority `json:"priority"`
	Context          map[string]any        `json:"context"`
	RejectionHistory []claims.Rejection    `json:"rejection_history"`
}

func (s *Server) handleEnqueueReview(w http.ResponseWriter, r *http.Request) {
	var req enqueueReviewRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	if req.UserID == "" {
		s.respondError(w, http.StatusBadRequest, "user_id is required")
		return
	}
	if !req.ReviewType.Valid() {
		s.respondError(w, http.StatusBadRequest, "unknown review_type")
		return
	}

	id, ok := s.queue.Add(r.Context(), req.UserID, req.ReviewType, req.Context, review.AddOptions{
		DisputeID:        req.DisputeID,
		Priority:         req.Priority,
		RejectionHistory: req.RejectionHistory,
	})
	if !ok {
		s.respondError(w, http.StatusInternalServerError, "failed to enqueue review")
		return
	}
	s.respondJSON(w, http.StatusCreated, map[string]string{"id": id})
}

func (s *Server) handleReviewStats(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, s.queue.GetReviewStats(r.Context()))
}

type assignRequest struct {
	AnalystID string `json:"analyst_id"`
}

func (s *Server) handleAssignReview(w http.ResponseWriter, r *http.Request) {
	var req assignRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	if req.AnalystID == "" {
		s.respondError(w, http.StatusBadRequest, "analyst_id is required")
		return
	}

	reviewID := r.PathValue("id")
	if !s.queue.Assign(r.Context(), reviewID, req.AnalystID) {
		s.respondError(w, http.StatusConflict, "review not assignable")
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"id": reviewID})
}

func (s *Server) handleStartReview(w http.ResponseWriter, r *http.Request) {
	reviewID := r.PathValue("id")
	if !s.queue.Start(r.Context(), reviewID) {
		s.respondError(w, http.StatusConflict, "review not startable")
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"id": reviewID})
}

func (s *Server) handleArchiveReview(w http.ResponseWriter, r *http.Request) {
	reviewID := r.PathValue("id")
	if !s.queue.Archive(r.Context(), reviewID) {
		s.respondError(w, http.StatusConflict, "review not archivable")
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"id": reviewID})
}

type correctionRequest struct {
	AnalystID        string                `json:"analyst_id"`
	CorrectionType   claims.CorrectionType `json:"correction_type"`
	BeforeState      map[string]any        `json:"before_state"`
	AfterState       map[string]any        `json:"after_state"`
	Reasoning        string                `json:"reasoning"`
	ImpactAssessment string                `json:"impact_assessment"`
}

func (s *Server) handleSubmitCorrection(w http.ResponseWriter, r *http.Request) {
	var req correctionRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	if req.AnalystID == "" {
		s.respondError(w, http.StatusBadRequest, "analyst_id is required")
		return
	}

	id, ok := s.processor.SubmitCorrection(r.Context(), r.PathValue("id"), req.AnalystID, review.CorrectionInput{
		CorrectionType:   req.CorrectionType,
		BeforeState:      req.BeforeState,
		AfterState:       req.AfterState,
		Reasoning:        req.Reasoning,
		ImpactAssessment: req.ImpactAssessment,
	})
	if !ok {
		s.respondError(w, http.StatusConflict, "correction rejected")
		return
	}
	s.respondJSON(w, http.StatusCreated, map[string]string{"correction_id": id})
}

type schemaCheckRequest struct {
	APIName string            `json:"api_name"`
	Schema  *claims.APISchema `json:"schema"`
}

func (s *Server) handleSchemaCheck(w http.ResponseWriter, r *http.Request) {
	var req schemaCheckRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}

	// Without a body payload, sweep every API the source describes.
	if req.APIName == "" && req.Schema == nil {
		if s.scheduler == nil {
			s.respondError(w, http.StatusBadRequest, "api_name and schema are required")
			return
		}
		if err := s.scheduler.CheckAllSchemas(r.Context()); err != nil {
			s.respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
		s.respondJSON(w, http.StatusOK, map[string]string{"status": "checked"})
		return
	}

	if req.APIName == "" || req.Schema == nil {
		s.respondError(w, http.StatusBadRequest, "api_name and schema are required")
		return
	}
	changes, err := s.differ.CheckAPISchema(r.Context(), req.APIName, req.Schema)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if changes == nil {
		changes = []*claims.SchemaChange{}
	}
	s.respondJSON(w, http.StatusOK, map[string]any{"changes": changes})
}

func (s *Server) handleListSchemaChanges(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := claims.ChangeFilter{
		APIName:        q.Get("api_name"),
		Unacknowledged: q.Get("unacknowledged") == "true",
	}
	if v := q.Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 0 {
			s.respondError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		filter.Limit = limit
	}

	changes, err := s.store.ListSchemaChanges(r.Context(), filter)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, "failed to list schema changes")
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]any{"changes": changes})
}

func (s *Server) handleAcknowledgeChange(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.store.AcknowledgeSchemaChange(r.Context(), id); err != nil {
		if claims.IsNotFound(err) {
			s.respondError(w, http.StatusNotFound, "schema change not found")
			return
		}
		s.respondError(w, http.StatusInternalServerError, "failed to acknowledge change")
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"id": id})
}

func (s *Server) handleLiveness(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, s.health.CheckLiveness(r.Context()))
}

func (s *Server) handleReadiness(w http.ResponseWriter, r *http.Request) {
	status := s.health.CheckReadiness(r.Context())
	code := http.StatusOK
	if status.Status == "degraded" {
		code = http.StatusServiceUnavailable
	}
	s.respondJSON(w, code, status)
}
