package api

import (
	"context"
	"database/sql"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/atlasestates/newsletter-service/internal/domain"
	"github.com/atlasestates/newsletter-service/internal/pkg/logger"
	"github.com/atlasestates/newsletter-service/internal/service/dispatch"
	"github.com/atlasestates/newsletter-service/internal/service/newsletter"
)

// Handlers holds the services the HTTP layer dispatches into.
type Handlers struct {
	newsletter *newsletter.Service
	dispatch   *dispatch.Engine

	db          *sql.DB
	redisClient *redis.Client
}

// NewHandlers creates the handler set for the newsletter API.
func NewHandlers(ns *newsletter.Service, eng *dispatch.Engine) *Handlers {
	return &Handlers{newsletter: ns, dispatch: eng}
}

// SetDB wires the database handle used by the health check.
func (h *Handlers) SetDB(db *sql.DB) {
	h.db = db
}

// SetRedisClient wires the optional Redis client used by the health check.
func (h *Handlers) SetRedisClient(client *redis.Client) {
	h.redisClient = client
}

// Subscription endpoints

type subscribeRequest struct {
	Email     string `json:"email"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

// HandleSubscribe registers a visitor and sends the confirmation email.
func (h *Handlers) HandleSubscribe(w http.ResponseWriter, r *http.Request) {
	var req subscribeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.newsletter.Subscribe(r.Context(), req.Email, req.FirstName, req.LastName); err != nil {
		if errors.Is(err, newsletter.ErrInvalidEmail) {
			respondError(w, http.StatusBadRequest, "invalid email address")
			return
		}
		logger.Error("subscribe failed", "email", req.Email, "error", err.Error())
		respondError(w, http.StatusInternalServerError, "subscription failed")
		return
	}

	respondJSON(w, http.StatusCreated, map[string]interface{}{
		"success": true,
		"message": "Please check your inbox to confirm your subscription",
	})
}

// HandleConfirm completes double opt-in via the emailed token link.
func (h *Handlers) HandleConfirm(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		respondError(w, http.StatusBadRequest, "missing token")
		return
	}

	if err := h.newsletter.Confirm(r.Context(), token); err != nil {
		if errors.Is(err, newsletter.ErrNotFound) {
			respondError(w, http.StatusNotFound, "invalid or expired confirmation link")
			return
		}
		logger.Error("confirm failed", "error", err.Error())
		respondError(w, http.StatusInternalServerError, "confirmation failed")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "Subscription confirmed",
	})
}

// HandleUnsubscribe opts a subscriber out via the footer token link.
func (h *Handlers) HandleUnsubscribe(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		respondError(w, http.StatusBadRequest, "missing token")
		return
	}

	if err := h.newsletter.Unsubscribe(r.Context(), token); err != nil {
		if errors.Is(err, newsletter.ErrNotFound) {
			respondError(w, http.StatusNotFound, "invalid unsubscribe link")
			return
		}
		logger.Error("unsubscribe failed", "error", err.Error())
		respondError(w, http.StatusInternalServerError, "unsubscribe failed")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "You have been unsubscribed",
	})
}

// Admin endpoints

// HandleListSubscribers returns every subscriber regardless of status.
func (h *Handlers) HandleListSubscribers(w http.ResponseWriter, r *http.Request) {
	subs, err := h.newsletter.List(r.Context())
	if err != nil {
		logger.Error("list subscribers failed", "error", err.Error())
		respondError(w, http.StatusInternalServerError, "failed to list subscribers")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"subscribers": subs,
		"total":       len(subs),
	})
}

type sendRequest struct {
	Subject     string              `json:"subject"`
	HTML        string              `json:"html"`
	Attachments []attachmentPayload `json:"attachments"`
}

type attachmentPayload struct {
	Filename     string `json:"filename"`
	BufferBase64 string `json:"bufferBase64"`
	ContentType  string `json:"contentType"`
}

// HandleSend dispatches a campaign to every eligible subscriber. The send
// runs synchronously in the request, so the response reports the outcome
// of the whole campaign.
func (h *Handlers) HandleSend(w http.ResponseWriter, r *http.Request) {
	var req sendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Subject) == "" || strings.TrimSpace(req.HTML) == "" {
		respondError(w, http.StatusBadRequest, "subject and html are required")
		return
	}

	// Decode attachments up front so a bad payload fails before anything sends.
	attachments := make([]domain.Attachment, 0, len(req.Attachments))
	for _, a := range req.Attachments {
		content, err := base64.StdEncoding.DecodeString(a.BufferBase64)
		if err != nil {
			respondError(w, http.StatusBadRequest, "attachment content must be base64")
			return
		}
		attachments = append(attachments, domain.Attachment{
			Filename:    a.Filename,
			Content:     content,
			ContentType: a.ContentType,
		})
	}

	report, err := h.dispatch.Send(r.Context(), domain.Campaign{
		Subject:     req.Subject,
		HTMLBody:    req.HTML,
		Attachments: attachments,
	})
	if err != nil {
		if errors.Is(err, dispatch.ErrCampaignInProgress) {
			respondError(w, http.StatusConflict, "a campaign send is already in progress")
			return
		}
		logger.Error("campaign send failed", "error", err.Error())
		respondError(w, http.StatusInternalServerError, "campaign send failed")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success":   report.Failed == 0,
		"count":     report.Eligible,
		"succeeded": report.Succeeded,
		"failed":    report.Failed,
		"batches":   report.Batches,
	})
}

// Health check

// HealthCheck reports service health, including database and Redis
// reachability when those are wired.
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := "healthy"
	checks := map[string]string{}

	if h.db != nil {
		if err := h.db.PingContext(ctx); err != nil {
			status = "degraded"
			checks["database"] = "unreachable"
		} else {
			checks["database"] = "ok"
		}
	}
	if h.redisClient != nil {
		if err := h.redisClient.Ping(ctx).Err(); err != nil {
			status = "degraded"
			checks["redis"] = "unreachable"
		} else {
			checks["redis"] = "ok"
		}
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":    status,
		"timestamp": time.Now(),
		"checks":    checks,
	})
}

// Response helpers

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
