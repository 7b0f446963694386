package progression

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/biopeak/backend/internal/middleware"
	"github.com/biopeak/backend/internal/progression/ledger"
	"github.com/biopeak/backend/internal/telemetry/metrics"
	"github.com/biopeak/backend/internal/telemetry/tracing"
	"github.com/biopeak/backend/pkg"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
)

//go:generate mockgen -source=$GOFILE -destination=handler_mocks_test.go -package=progression_test

type progressionService interface {
	RecordActivity(ctx context.Context, params RecordActivityParams) (*Snapshot, error)
	GetSnapshot(ctx context.Context, userID, timezone string) (*Snapshot, error)
	ListAchievements(ctx context.Context, userID string) ([]AchievementStatus, error)
}

type Handler struct {
	service progressionService
}

func NewHandler(service progressionService) *Handler {
	return &Handler{
		service: service,
	}
}

func (handler *Handler) SetupRoutes(
	mainRouter *mux.Router,
	rateLimiter middleware.RequestRateLimiter,
	activityRateLimitAllowedPerMin int,
	metricsManager *metrics.Manager,
) {
	// write path gets its own subrouter so only recording is rate limited
	activityRouter := mainRouter.PathPrefix("/progression/activity").Subrouter()
	activityRouter.
		HandleFunc("", handler.handleRecordActivity).
		Methods("POST", "OPTIONS").Name("record-activity")
	activityRouter.Use(middleware.RateLimit(rateLimiter, "record-activity", activityRateLimitAllowedPerMin, metricsManager))

	progressionRouter := mainRouter.PathPrefix("/progression").Subrouter()
	progressionRouter.
		HandleFunc("/snapshot/{userId}", handler.handleGetSnapshot).
		Methods("GET").Name("snapshot")
	progressionRouter.
		HandleFunc("/achievements/{userId}", handler.handleListAchievements).
		Methods("GET").Name("achievements")
}

func (handler *Handler) handleRecordActivity(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.progression.recordactivity")
	defer span.End()

	if r.Method == http.MethodOptions {
		w.Header().Add("Allow", "POST, OPTIONS")
		w.WriteHeader(http.StatusOK)
		return
	}

	if r.Header.Get("Content-Type") != "application/json" {
		http.Error(w, "invalid content type", http.StatusBadRequest)
		return
	}

	var params RecordActivityParams
	if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
		log.Errorf("record activity, unmarshal json params: %s", err)
		http.Error(w, "record activity failed", http.StatusBadRequest)
		return
	}

	snapshot, err := handler.service.RecordActivity(ctx, params)
	if err != nil {
		if isValidationErr(err) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		log.Errorf("record activity for user %s: %s", params.UserID, err)
		http.Error(w, "record activity failed", http.StatusInternalServerError)
		return
	}

	snapshotJson, err := json.Marshal(snapshot)
	if err != nil {
		log.Errorf("failed to marshal snapshot: %s", err)
		http.Error(w, "record activity failed", http.StatusInternalServerError)
		return
	}

	status := http.StatusCreated
	if snapshot.Duplicate {
		status = http.StatusOK
	}
	pkg.WriteResponseBytes(w, pkg.ContentType.JSON, snapshotJson, status)
}

func (handler *Handler) handleGetSnapshot(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.progression.getsnapshot")
	defer span.End()

	vars := mux.Vars(r)
	userID := vars["userId"]

	snapshot, err := handler.service.GetSnapshot(ctx, userID, r.URL.Query().Get("tz"))
	if err != nil {
		switch {
		case errors.Is(err, ErrUnknownUser):
			http.Error(w, "unknown user", http.StatusNotFound)
		case isValidationErr(err):
			http.Error(w, err.Error(), http.StatusBadRequest)
		default:
			log.Errorf("get snapshot for user %s: %s", userID, err)
			http.Error(w, "get snapshot failed", http.StatusInternalServerError)
		}
		return
	}

	snapshotJson, err := json.Marshal(snapshot)
	if err != nil {
		log.Errorf("failed to marshal snapshot: %s", err)
		http.Error(w, "get snapshot failed", http.StatusInternalServerError)
		return
	}

	pkg.WriteResponseBytesOK(w, pkg.ContentType.JSON, snapshotJson)
}

func (handler *Handler) handleListAchievements(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.progression.listachievements")
	defer span.End()

	vars := mux.Vars(r)
	userID := vars["userId"]

	statuses, err := handler.service.ListAchievements(ctx, userID)
	if err != nil {
		if isValidationErr(err) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		log.Errorf("list achievements for user %s: %s", userID, err)
		http.Error(w, "list achievements failed", http.StatusInternalServerError)
		return
	}

	statusesJson, err := json.Marshal(statuses)
	if err != nil {
		log.Errorf("failed to marshal achievement statuses: %s", err)
		http.Error(w, "list achievements failed", http.StatusInternalServerError)
		return
	}

	pkg.WriteResponseBytesOK(w, pkg.ContentType.JSON, statusesJson)
}

func isValidationErr(err error) bool {
	return errors.Is(err, ledger.ErrEmptyUserID) ||
		errors.Is(err, ledger.ErrEmptyCategory) ||
		errors.Is(err, ledger.ErrInvalidKind) ||
		errors.Is(err, ErrInvalidTimezone)
}
