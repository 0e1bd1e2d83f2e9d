package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"FinCast/internal/domain/models"
	domrepo "FinCast/internal/domain/repository"
	mid "FinCast/internal/middleware"
	xhttp "FinCast/pkg/http"
	pkgkafka "FinCast/pkg/kafka"
	applogger "FinCast/pkg/logger"
)

// KafkaTicksHandler ingests ticks published as AddTickRequest JSON.
type KafkaTicksHandler struct {
	topic   string
	ingest  mid.Ingester
	metrics domrepo.Metrics
	logger  *applogger.Logger
	now     func() time.Time
}

func NewKafkaTicksHandler(topic string, ingest mid.Ingester, metrics domrepo.Metrics, l *applogger.Logger) *KafkaTicksHandler {
	if l == nil {
		l = applogger.NewNop()
	}
	return &KafkaTicksHandler{topic: topic, ingest: ingest, metrics: metrics, logger: l.Named("kafka_ticks"), now: time.Now}
}

func (h *KafkaTicksHandler) Topic() string { return h.topic }

// Handle drops malformed payloads (returning nil so they are committed)
// and returns ingest errors so the consumer retries them.
func (h *KafkaTicksHandler) Handle(ctx context.Context, b []byte) error {
	var req models.AddTickRequest
	if err := json.Unmarshal(b, &req); err != nil {
		h.metrics.RecordTickRejected("unmarshal")
		h.logger.Warn("malformed tick", applogger.String("trace_id", pkgkafka.TraceIDFrom(ctx)), applogger.Error(err))
		return nil
	}
	if err := xhttp.ValidateStruct(ctx, &req); err != nil {
		h.metrics.RecordTickRejected("invalid")
		h.logger.Warn("invalid tick", applogger.String("symbol", req.Symbol), applogger.Error(err))
		return nil
	}

	t := req.Tick(h.now())
	h.metrics.RecordLatency("ingest_e2e", h.now().Sub(t.Timestamp).Seconds())

	if err := h.ingest.Ingest(ctx, t); err != nil {
		return fmt.Errorf("ingest %s: %w", t.Key(), err)
	}
	return nil
}

var _ pkgkafka.MessageHandler = (*KafkaTicksHandler)(nil)
