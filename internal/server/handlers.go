package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hireloop/recall/internal/extract"
	"github.com/hireloop/recall/internal/models"
	"github.com/hireloop/recall/internal/storage"
)

const maxUploadBytes = 32 << 20

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "no file provided")
		return
	}
	defer file.Close()

	filename := filepath.Base(header.Filename)
	if filename == "" || filename == "." {
		s.respondError(w, http.StatusBadRequest, "no file selected")
		return
	}
	ext := strings.ToLower(filepath.Ext(filename))
	if !extract.Supported(ext) {
		s.respondError(w, http.StatusBadRequest, "file type not allowed")
		return
	}

	uploadDir := s.config.Storage.UploadDir
	if err := os.MkdirAll(uploadDir, 0o755); err != nil {
		s.logger.Error("create upload dir failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	dest := filepath.Join(uploadDir, uuid.New().String()+"_"+filename)
	out, err := os.Create(dest)
	if err != nil {
		s.logger.Error("save upload failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if _, err := io.Copy(out, file); err != nil {
		out.Close()
		os.Remove(dest)
		s.logger.Error("save upload failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	out.Close()

	nameOverride := r.FormValue("candidate_name")
	candidate, err := s.ingestor.IngestFile(r.Context(), dest, nameOverride)
	if err != nil {
		os.Remove(dest)
		s.logger.Error("ingestion failed", zap.String("file", filename), zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.respondJSON(w, http.StatusCreated, map[string]interface{}{
		"message":        "CV uploaded and processed successfully",
		"candidate_id":   candidate.ID,
		"candidate_name": candidate.Name,
		"parsed_data": map[string]interface{}{
			"name":             candidate.Name,
			"email":            candidate.Email,
			"phone":            candidate.Phone,
			"skills":           candidate.Skills,
			"experience_count": len(candidate.Experience),
			"project_count":    len(candidate.Projects),
			"interests":        candidate.Interests,
		},
	})
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req models.QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := s.validate.Struct(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.logger.Debug("query request",
		zap.String("question", req.Question),
		zap.String("candidate_id", req.CandidateID),
		zap.Int("top_k", req.TopK))
	answer, err := s.engine.AnswerQuestion(r.Context(), req.Question, req.CandidateID, req.TopK)
	if err != nil {
		s.logger.Error("query failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, answer)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req models.SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := s.validate.Struct(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	results, err := s.engine.Search(r.Context(), req.Query, req.CandidateID, req.TopK)
	if err != nil {
		s.logger.Error("search failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, models.SearchResponse{
		Query:   req.Query,
		Results: results,
		Total:   len(results),
	})
}

func (s *Server) handleKeywordSearch(w http.ResponseWriter, r *http.Request) {
	var req models.KeywordSearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := s.validate.Struct(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	limit := req.Limit
	if limit <= 0 {
		limit = 10
	}
	results, err := s.keyword.Search(r.Context(), req.Query, limit)
	if err != nil {
		s.logger.Error("keyword search failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"query":         req.Query,
		"results":       results,
		"total_results": len(results),
	})
}

func (s *Server) handleFilterCandidates(w http.ResponseWriter, r *http.Request) {
	var req models.FilterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := s.validate.Struct(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	candidates, err := s.storage.FilterCandidates(r.Context(), storage.FilterCriteria{
		Skills:             req.Skills,
		MinExperienceYears: req.MinExperienceYears,
		Company:            req.Company,
		Limit:              req.Limit,
	})
	if err != nil {
		s.logger.Error("filter failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"filters":       req,
		"results":       candidates,
		"total_results": len(candidates),
	})
}

func (s *Server) handleListCandidates(w http.ResponseWriter, r *http.Request) {
	candidates, err := s.storage.ListCandidates(r.Context())
	if err != nil {
		s.logger.Error("list candidates failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"candidates": candidates,
		"total":      len(candidates),
	})
}

func (s *Server) handleGetCandidate(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	candidate, err := s.storage.GetCandidate(r.Context(), id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			s.respondError(w, http.StatusNotFound, "candidate not found")
			return
		}
		s.logger.Error("get candidate failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, candidate)
}

func (s *Server) handleDeleteCandidate(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	candidate, err := s.storage.GetCandidate(r.Context(), id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			s.respondError(w, http.StatusNotFound, "candidate not found")
			return
		}
		s.logger.Error("get candidate failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if err := s.ingestor.Delete(r.Context(), id); err != nil {
		s.logger.Error("deletion failed", zap.String("candidate_id", id), zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if candidate.FilePath != "" {
		if err := os.Remove(candidate.FilePath); err != nil && !os.IsNotExist(err) {
			s.logger.Warn("could not delete uploaded file",
				zap.String("path", candidate.FilePath), zap.Error(err))
		}
	}
	s.respondJSON(w, http.StatusOK, map[string]string{
		"message":        "Candidate deleted successfully",
		"candidate_id":   id,
		"candidate_name": candidate.Name,
	})
}

func (s *Server) handleCandidateContext(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	candidate, err := s.storage.GetCandidate(r.Context(), id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			s.respondError(w, http.StatusNotFound, "candidate not found")
			return
		}
		s.logger.Error("get candidate failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	sections := s.index.RecordsFor(id)
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"candidate":        candidate,
		"indexed_sections": sections,
		"total_sections":   len(sections),
	})
}

func (s *Server) handleCandidateFullSummary(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	c, err := s.storage.GetCandidate(r.Context(), id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			s.respondError(w, http.StatusNotFound, "candidate not found")
			return
		}
		s.logger.Error("get candidate failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"candidate_id":   c.ID,
		"name":           c.Name,
		"email":          c.Email,
		"phone":          c.Phone,
		"summary":        c.Summary,
		"skills":         c.Skills,
		"experience":     c.Experience,
		"projects":       c.Projects,
		"education":      c.Education,
		"certifications": c.Certifications,
		"interests":      c.Interests,
		"totals": map[string]int{
			"skills_count":        len(c.Skills),
			"experience_count":    len(c.Experience),
			"project_count":       len(c.Projects),
			"education_count":     len(c.Education),
			"certification_count": len(c.Certifications),
			"interests_count":     len(c.Interests),
		},
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	candidateCount, err := s.storage.CountCandidates(r.Context())
	if err != nil {
		s.logger.Error("status: count candidates failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	keywordDocs, err := s.keyword.DocCount()
	if err != nil {
		s.logger.Error("status: keyword doc count failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	stats := s.index.Stats()
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"candidates":     candidateCount,
		"keyword_chunks": keywordDocs,
		"vector_index":   stats,
		"config": map[string]interface{}{
			"embedding_provider":   s.config.Embedding.Provider,
			"embedding_model":      s.config.Embedding.Model,
			"embedding_dimensions": s.config.Embedding.Dimensions,
			"llm_model":            s.config.LLM.Model,
			"database_path":        s.config.Storage.DatabasePath,
			"vector_index_path":    s.config.Storage.VectorIndexPath,
			"keyword_index_path":   s.config.Storage.KeywordIndexPath,
		},
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
