package service

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"sync"
	"time"

	"pricetrack/tracker-service/internal/app/tracker/collector"
	"pricetrack/tracker-service/internal/app/tracker/entity"

	"pricetrack/pkg/logger"
	"pricetrack/pkg/metrics"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// ErrRunInProgress is returned when a run is requested while another one
// is still active.
var ErrRunInProgress = errors.New("ingestion run already in progress")

// EventRunCompleted is the event type published after each finished run.
const EventRunCompleted = "RUN_COMPLETED"

// IngestService orchestrates one full ingestion run: all collectors in
// parallel, one capture timestamp, per-source reports, then an automatic
// matching pass over every product the run touched.
type IngestService struct {
	collectors []collector.Collector
	catalog    *CatalogService
	matcher    *MatcherService
	publisher  MessagePublisher // nil when eventing is disabled
	topic      string
	autoMatch  bool

	mu         sync.Mutex
	running    bool
	lastReport *entity.RunReport
}

// NewIngestService wires the orchestrator. publisher may be nil.
func NewIngestService(collectors []collector.Collector, catalog *CatalogService, matcher *MatcherService, publisher MessagePublisher, topic string, autoMatch bool) *IngestService {
	return &IngestService{
		collectors: collectors,
		catalog:    catalog,
		matcher:    matcher,
		publisher:  publisher,
		topic:      topic,
		autoMatch:  autoMatch,
	}
}

// sourceResult is one collector goroutine's output.
type sourceResult struct {
	report  entity.SourceReport
	touched []uint
}

// Run executes one ingestion run. A failing source never aborts the run;
// it is reported and the other sources continue. Cancellation stops all
// sources but whatever was committed before it stays committed.
func (s *IngestService) Run(ctx context.Context) (*entity.RunReport, error) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil, ErrRunInProgress
	}
	s.running = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	startedAt := time.Now().UTC()
	report := &entity.RunReport{
		RunID:      uuid.New(),
		StartedAt:  startedAt,
		CapturedAt: startedAt,
		Sources:    make(map[string]entity.SourceReport, len(s.collectors)),
	}

	logger.Info().
		Str("run_id", report.RunID.String()).
		Int("sources", len(s.collectors)).
		Msg("ingestion run started")

	results := make([]sourceResult, len(s.collectors))
	g, runCtx := errgroup.WithContext(ctx)
	for i, col := range s.collectors {
		g.Go(func() error {
			results[i] = s.runSource(runCtx, col, startedAt)
			return nil
		})
	}
	// goroutines only report, they never fail the group
	_ = g.Wait()

	var touched []uint
	for _, res := range results {
		report.Sources[res.report.SourceID] = res.report
		touched = append(touched, res.touched...)
	}
	report.Cancelled = ctx.Err() != nil

	if s.autoMatch && !report.Cancelled && len(touched) > 0 {
		summary, err := s.matcher.RunPass(ctx, dedupe(touched))
		if err != nil {
			logger.Error().Err(err).Str("run_id", report.RunID.String()).Msg("matching pass failed")
		} else {
			report.Matching = summary
		}
	}

	report.Duration = time.Since(startedAt)

	status := "completed"
	if report.Cancelled {
		status = "cancelled"
	}
	metrics.IngestRunsTotal.WithLabelValues(status).Inc()
	metrics.IngestRunDuration.Observe(report.Duration.Seconds())

	s.mu.Lock()
	s.lastReport = report
	s.mu.Unlock()

	s.publishRunEvent(report)

	logger.Info().
		Str("run_id", report.RunID.String()).
		Str("status", status).
		Int("observations", report.TotalObservations()).
		Strs("failed_sources", report.FailedSources()).
		Dur("duration", report.Duration).
		Msg("ingestion run finished")
	return report, nil
}

// LastReport returns the most recent run's report, or nil before the
// first run of this process.
func (s *IngestService) LastReport() *entity.RunReport {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastReport
}

func (s *IngestService) runSource(ctx context.Context, col collector.Collector, capturedAt time.Time) sourceResult {
	res := sourceResult{report: entity.SourceReport{
		SourceID: col.SourceID(),
		Status:   entity.SourceStatusOK,
	}}
	timer := metrics.NewTimer()

	err := col.Collect(ctx, func(rec entity.NormalizedRecord) error {
		if err := ctx.Err(); err != nil {
			return err
		}

		product, created, err := s.catalog.IngestRecord(ctx, rec, capturedAt)
		if err != nil {
			reason := entity.FailureValidation
			switch {
			case errors.Is(err, ErrValidation):
				reason = entity.FailureValidation
			case errors.Is(err, ErrProductNotFound):
				reason = entity.FailureUnknownProduct
			case ctx.Err() != nil:
				// storage failed because the run was cancelled mid-write
				return err
			}
			res.report.Failures = append(res.report.Failures, entity.RecordFailure{
				ExternalID: rec.ExternalID,
				Reason:     reason,
				Detail:     err.Error(),
			})
			metrics.IngestRecordsTotal.WithLabelValues(res.report.SourceID, "failed").Inc()
			metrics.IngestRecordFailuresTotal.WithLabelValues(res.report.SourceID, reason).Inc()
			return nil
		}

		if created {
			res.report.Upserted++
			metrics.IngestRecordsTotal.WithLabelValues(res.report.SourceID, "upserted").Inc()
		} else {
			res.report.Refreshed++
			metrics.IngestRecordsTotal.WithLabelValues(res.report.SourceID, "refreshed").Inc()
		}
		res.report.Observations++
		metrics.IngestObservationsTotal.WithLabelValues(res.report.SourceID).Inc()
		res.touched = append(res.touched, product.ID)
		return nil
	})

	res.report.Elapsed = timer.Duration()
	if err != nil {
		res.report.Status = entity.SourceStatusFailed
		switch {
		case errors.Is(err, collector.ErrAuthenticationExpired):
			res.report.FailureReason = entity.FailureAuthExpired
		case errors.Is(err, collector.ErrNetwork):
			res.report.FailureReason = entity.FailureNetwork
		case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
			res.report.FailureReason = entity.FailureCancelled
		default:
			res.report.FailureReason = entity.FailureNetwork
		}
		metrics.IngestSourceFailuresTotal.WithLabelValues(res.report.SourceID, res.report.FailureReason).Inc()
		logger.Error().Err(err).
			Str("source", res.report.SourceID).
			Str("reason", res.report.FailureReason).
			Msg("source collection failed")
	}
	return res
}

// publishRunEvent emits RUN_COMPLETED. Event delivery is best effort: a
// broker failure is logged and never fails the run.
func (s *IngestService) publishRunEvent(report *entity.RunReport) {
	if s.publisher == nil {
		return
	}

	matches := 0
	if report.Matching != nil {
		matches = report.Matching.Assigned + report.Matching.Revised
	}
	event := entity.RunEvent{
		EventType:    EventRunCompleted,
		RunID:        report.RunID,
		StartedAt:    report.StartedAt,
		Duration:     report.Duration.Milliseconds(),
		Observations: report.TotalObservations(),
		Failed:       report.FailedSources(),
		Matches:      matches,
		Timestamp:    time.Now().UTC(),
	}

	payload, err := json.Marshal(event)
	if err != nil {
		logger.Error().Err(err).Msg("failed to marshal run event")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.publisher.PublishMessage(ctx, report.RunID.String(), payload); err != nil {
		metrics.RecordKafkaError(serviceName, s.topic, "publish")
		logger.Error().Err(err).Str("topic", s.topic).Msg("failed to publish run event")
		return
	}
	metrics.RecordKafkaMessageProduced(serviceName, s.topic)
}

func dedupe(ids []uint) []uint {
	seen := make(map[uint]bool, len(ids))
	out := make([]uint, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
