package httpapi

import (
	"context"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ghalamif/FactoryBatch/internal/domain"
	"github.com/ghalamif/FactoryBatch/internal/ports"
)

// maxBody caps one pushed payload.
const maxBody = 4 << 20

// PayloadHandler ingests one raw request body.
type PayloadHandler interface {
	HandlePayload(ctx context.Context, payload []byte) (domain.IngestResult, error)
}

// Handler exposes the ingestion adapter over HTTP for gateways that push.
type Handler struct {
	ingest PayloadHandler
	obs    ports.Observability
}

func NewHandler(ingest PayloadHandler, obs ports.Observability) *Handler {
	return &Handler{ingest: ingest, obs: obs}
}

// Routes builds the gin engine with every endpoint registered.
func (h *Handler) Routes() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/healthz", h.health)

	v1 := router.Group("/v1")
	{
		v1.POST("/telemetry", h.postTelemetry)
	}
	return router
}

func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// postTelemetry answers 200 when every reading was buffered, 400 for a
// malformed event and 503 when the store failed so the sender retries.
func (h *Handler) postTelemetry(c *gin.Context) {
	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxBody))
	if err != nil {
		c.JSON(http.StatusRequestEntityTooLarge, domain.IngestResult{
			Status:    domain.StatusRejected,
			ErrorKind: domain.ErrorKindMalformedInput,
			Error:     err.Error(),
		})
		return
	}

	res, err := h.ingest.HandlePayload(c.Request.Context(), body)
	switch {
	case err != nil:
		h.obs.LogError("http_ingest_failed", err, ports.Field{Key: "remote", Value: c.ClientIP()})
		c.JSON(http.StatusServiceUnavailable, res)
	case res.Status == domain.StatusRejected:
		c.JSON(http.StatusBadRequest, res)
	default:
		c.JSON(http.StatusOK, res)
	}
}
