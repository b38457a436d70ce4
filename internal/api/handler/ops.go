package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/ridepool/ridepool/internal/api/models"
	"github.com/ridepool/ridepool/internal/api/response"
)

// OpsHandler handles operational endpoints.
type OpsHandler struct {
	version   string
	buildTime string
	pool      *pgxpool.Pool
	redis     *redis.Client
}

// NewOpsHandler creates a new OpsHandler. Pool and redis may be nil; the
// readiness check then skips them.
func NewOpsHandler(version, buildTime string, pool *pgxpool.Pool, redisClient *redis.Client) *OpsHandler {
	return &OpsHandler{
		version:   version,
		buildTime: buildTime,
		pool:      pool,
		redis:     redisClient,
	}
}

// HealthCheck handles GET /v1/ops/health - liveness check.
func (h *OpsHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	health := models.Health{
		Status: models.HealthStatusOK,
		Time:   models.Timestamp(time.Now()),
		Details: map[string]interface{}{
			"version":   h.version,
			"buildTime": h.buildTime,
		},
	}
	response.JSON(w, r, http.StatusOK, health)
}

// ReadinessCheck handles GET /v1/ops/ready - readiness check. Fails when a
// backing store does not answer a ping.
func (h *OpsHandler) ReadinessCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := models.HealthStatusOK
	var subsystems []models.SubsystemStatus

	if h.pool != nil {
		subsystems = append(subsystems, subsystemStatus("postgres", h.pool.Ping(ctx)))
	}
	if h.redis != nil {
		subsystems = append(subsystems, subsystemStatus("redis", h.redis.Ping(ctx).Err()))
	}
	for _, s := range subsystems {
		if s.Status != models.HealthStatusOK {
			status = models.HealthStatusFail
		}
	}

	body := models.SystemStatus{
		Status:     status,
		Time:       models.Timestamp(time.Now()),
		Subsystems: subsystems,
	}
	code := http.StatusOK
	if status != models.HealthStatusOK {
		code = http.StatusServiceUnavailable
	}
	response.JSON(w, r, code, body)
}

func subsystemStatus(name string, err error) models.SubsystemStatus {
	if err != nil {
		detail := err.Error()
		return models.SubsystemStatus{Name: name, Status: models.HealthStatusFail, Detail: &detail}
	}
	return models.SubsystemStatus{Name: name, Status: models.HealthStatusOK}
}
