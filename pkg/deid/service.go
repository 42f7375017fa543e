package deid

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/synaptica-ai/pseudonym/pkg/common/logger"
	"github.com/synaptica-ai/pseudonym/pkg/common/models"
	"github.com/synaptica-ai/pseudonym/pkg/dlp"
	"github.com/synaptica-ai/pseudonym/pkg/labelpool"
	"github.com/synaptica-ai/pseudonym/pkg/observability/metrics"
	"github.com/synaptica-ai/pseudonym/pkg/pseudonym"
)

var ErrPoolsDisabled = errors.New("label pools not configured")

type KeyfileStore interface {
	SaveKeyfile(ctx context.Context, entries []KeyfileEntry) error
	LookupLabel(ctx context.Context, runID, label string) (KeyfileEntry, error)
	FindLabel(ctx context.Context, label string, limit int) ([]KeyfileEntry, error)
	ListRun(ctx context.Context, runID string, limit int) ([]KeyfileEntry, error)
	DeleteRun(ctx context.Context, runID string) (int64, error)
}

type PoolStore interface {
	labelpool.Taker
	Create(ctx context.Context, req models.CreatePoolRequest) (labelpool.Info, error)
	Info(ctx context.Context, id string) (labelpool.Info, error)
	Delete(ctx context.Context, id string) error
}

// KeySource loads a fresh Secret for one run. The caller destroys it.
type KeySource func() (*pseudonym.Secret, error)

// FileKeySource re-reads the key file on every call.
func FileKeySource(path string) KeySource {
	return func() (*pseudonym.Secret, error) {
		return pseudonym.LoadSecret(path)
	}
}

type Service struct {
	keyfiles  KeyfileStore
	pools     PoolStore
	detector  *dlp.Detector
	strictDLP bool
	keys      KeySource
	defaults  pseudonym.Plan
}

type Option func(*Service)

func WithPools(pools PoolStore) Option {
	return func(s *Service) { s.pools = pools }
}

func WithDetector(detector *dlp.Detector, strict bool) Option {
	return func(s *Service) {
		s.detector = detector
		s.strictDLP = strict
	}
}

func WithKeySource(keys KeySource) Option {
	return func(s *Service) { s.keys = keys }
}

// WithDefaults fills unset plan fields, and the whole plan when a request
// names no strategy.
func WithDefaults(plan pseudonym.Plan) Option {
	return func(s *Service) { s.defaults = plan }
}

func NewService(keyfiles KeyfileStore, opts ...Option) *Service {
	s := &Service{keyfiles: keyfiles}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) resolvePlan(plan pseudonym.Plan) pseudonym.Plan {
	d := s.defaults
	if plan.Strategy == "" {
		plan.Strategy = d.Strategy
		if len(plan.IDColumns) == 0 {
			plan.IDColumns = d.IDColumns
			plan.PayloadColumns = d.PayloadColumns
		}
	}
	if plan.Prefix == "" {
		plan.Prefix = d.Prefix
	}
	if plan.PoolSize == 0 {
		plan.PoolSize = d.PoolSize
	}
	if plan.PadWidth == 0 {
		plan.PadWidth = d.PadWidth
	}
	if plan.Algorithm == "" {
		plan.Algorithm = d.Algorithm
	}
	if plan.TruncateTo == nil {
		plan.TruncateTo = d.TruncateTo
	}
	if plan.LabelColumn == "" {
		plan.LabelColumn = d.LabelColumn
	}
	if plan.LabelColumn == "" {
		plan.LabelColumn = pseudonym.DefaultLabelColumn
	}
	return plan
}

func (s *Service) loadKey() (*pseudonym.Secret, error) {
	if s.keys == nil {
		return nil, pseudonym.ErrMissingKey
	}
	return s.keys()
}

// Pseudonymize runs one plan over a dataset, stores the keyfile, and returns
// the payload table.
func (s *Service) Pseudonymize(ctx context.Context, req models.PseudonymizeRequest) (models.PseudonymizeResponse, error) {
	plan := s.resolvePlan(req.Plan)
	runID := uuid.New().String()
	started := time.Now()

	if err := plan.Validate(); err != nil {
		metrics.ObserveRun(plan.Strategy, 0, started, err)
		return models.PseudonymizeResponse{}, err
	}

	var key *pseudonym.Secret
	if plan.Strategy == pseudonym.StrategyHash {
		var err error
		if key, err = s.loadKey(); err != nil {
			metrics.ObserveRun(plan.Strategy, 0, started, err)
			return models.PseudonymizeResponse{}, err
		}
		defer key.Destroy()
	}

	result, err := plan.Run(req.Dataset, key)
	return s.finish(ctx, runID, plan.Strategy, plan.LabelColumn, len(req.Dataset.Rows), started, result, err)
}

// Assign labels a batch of records from a stored pool.
func (s *Service) Assign(ctx context.Context, poolID string, req models.AssignRequest) (models.PseudonymizeResponse, error) {
	started := time.Now()
	if s.pools == nil {
		return models.PseudonymizeResponse{}, ErrPoolsDisabled
	}
	info, err := s.pools.Info(ctx, poolID)
	if err != nil {
		return models.PseudonymizeResponse{}, err
	}
	labelColumn := req.LabelColumn
	if labelColumn == "" {
		labelColumn = s.resolvePlan(pseudonym.Plan{Strategy: info.Strategy}).LabelColumn
	}
	strategy := labelpool.NewStrategy(ctx, s.pools, poolID, info.Strategy)
	result, err := pseudonym.Pseudonymize(req.Dataset, strategy, req.IDColumns, req.PayloadColumns, pseudonym.WithLabelColumn(labelColumn))
	return s.finish(ctx, uuid.New().String(), strategy.Name(), labelColumn, len(req.Dataset.Rows), started, result, err)
}

func (s *Service) finish(ctx context.Context, runID, strategy, labelColumn string, records int, started time.Time, result *pseudonym.Result, err error) (models.PseudonymizeResponse, error) {
	if err != nil {
		metrics.ObserveRun(strategy, records, started, err)
		logger.ForRun(runID, strategy).WithError(err).Warn("pseudonymization run rejected")
		return models.PseudonymizeResponse{}, err
	}
	log := logger.ForRun(runID, result.Strategy)

	if s.detector != nil {
		report := s.detector.Scan(result.Payload, labelColumn)
		if report.Detected() {
			metrics.ObservePayloadFindings(len(report.Findings))
			log.WithField("findings", report.Findings).Warn("payload columns look identifying")
			if s.strictDLP {
				err := report.Err()
				metrics.ObserveRun(result.Strategy, records, started, err)
				return models.PseudonymizeResponse{}, err
			}
		}
	}

	resp := models.PseudonymizeResponse{
		RunID:    runID,
		Strategy: result.Strategy,
		Payload:  result.Payload,
		Records:  len(result.Labels),
		Warnings: result.Warnings,
	}
	if s.keyfiles != nil {
		entries := KeyfileEntries(runID, result.Strategy, result.Keyfile, labelColumn)
		if err := s.keyfiles.SaveKeyfile(ctx, entries); err != nil {
			metrics.ObserveRun(result.Strategy, records, started, err)
			return models.PseudonymizeResponse{}, err
		}
		resp.KeyfileStored = true
	} else {
		keyfile := result.Keyfile
		resp.Keyfile = &keyfile
	}

	for _, w := range result.Warnings {
		log.Warn(w)
	}
	log.WithField("records", resp.Records).Info("pseudonymization run completed")
	metrics.ObserveRun(result.Strategy, records, started, nil)
	return resp, nil
}

// Recompute derives the hash label for one set of identifying fields.
func (s *Service) Recompute(ctx context.Context, req models.RecomputeRequest) (string, error) {
	algo := req.Algorithm
	if algo == "" {
		algo = s.defaults.Algorithm
	}
	algorithm, err := pseudonym.ParseAlgorithm(algo)
	if err != nil {
		return "", err
	}
	truncate := s.defaults.Truncation()
	if req.TruncateTo != nil {
		truncate = *req.TruncateTo
	}

	key, err := s.loadKey()
	if err != nil {
		return "", err
	}
	defer key.Destroy()

	strategy, err := pseudonym.NewHashStrategy(key,
		pseudonym.WithAlgorithm(algorithm),
		pseudonym.WithTruncation(truncate),
		pseudonym.WithSeparator(req.Separator),
	)
	if err != nil {
		return "", err
	}
	return strategy.Label(req.Fields)
}

// Reidentify returns the keyfile entry for a counter or random label. Labels
// repeat across runs, so without runID the lookup only succeeds when exactly
// one run issued the label.
func (s *Service) Reidentify(ctx context.Context, runID, label string) (models.ReidentifyResponse, error) {
	if s.keyfiles == nil {
		return models.ReidentifyResponse{}, ErrEntryNotFound
	}
	var entry KeyfileEntry
	if runID != "" {
		var err error
		if entry, err = s.keyfiles.LookupLabel(ctx, runID, label); err != nil {
			return models.ReidentifyResponse{}, err
		}
	} else {
		entries, err := s.keyfiles.FindLabel(ctx, label, 2)
		if err != nil {
			return models.ReidentifyResponse{}, err
		}
		switch len(entries) {
		case 0:
			return models.ReidentifyResponse{}, ErrEntryNotFound
		case 1:
			entry = entries[0]
		default:
			return models.ReidentifyResponse{}, fmt.Errorf("%s: %w", label, ErrAmbiguousLabel)
		}
	}
	logger.ForRun(entry.RunID, entry.Strategy).Info("label re-identified")
	return models.ReidentifyResponse{RunID: entry.RunID, Label: entry.Label, Identifying: entry.Fields()}, nil
}

// RunKeyfile returns the stored keyfile rows of one run in input order.
func (s *Service) RunKeyfile(ctx context.Context, runID string, limit int) (models.RunKeyfileResponse, error) {
	if s.keyfiles == nil {
		return models.RunKeyfileResponse{}, ErrEntryNotFound
	}
	entries, err := s.keyfiles.ListRun(ctx, runID, limit)
	if err != nil {
		return models.RunKeyfileResponse{}, err
	}
	if len(entries) == 0 {
		return models.RunKeyfileResponse{}, ErrEntryNotFound
	}
	resp := models.RunKeyfileResponse{RunID: runID, Strategy: entries[0].Strategy}
	for _, e := range entries {
		resp.Entries = append(resp.Entries, models.ReidentifyResponse{RunID: e.RunID, Label: e.Label, Identifying: e.Fields()})
	}
	logger.ForRun(runID, resp.Strategy).WithField("entries", len(entries)).Info("run keyfile exported")
	return resp, nil
}

// PurgeRun deletes a run's keyfile, leaving its payload permanently
// unlinkable.
func (s *Service) PurgeRun(ctx context.Context, runID string) (int64, error) {
	if s.keyfiles == nil {
		return 0, ErrEntryNotFound
	}
	deleted, err := s.keyfiles.DeleteRun(ctx, runID)
	if err != nil {
		return 0, fmt.Errorf("purge run %s: %w", runID, err)
	}
	if deleted == 0 {
		return 0, ErrEntryNotFound
	}
	logger.WithFields(map[string]interface{}{
		"run_id":  runID,
		"deleted": deleted,
	}).Info("run keyfile purged")
	return deleted, nil
}

func (s *Service) CreatePool(ctx context.Context, req models.CreatePoolRequest) (models.PoolResponse, error) {
	if s.pools == nil {
		return models.PoolResponse{}, ErrPoolsDisabled
	}
	if req.Prefix == "" {
		req.Prefix = s.defaults.Prefix
	}
	if req.Size == 0 {
		req.Size = s.defaults.PoolSize
	}
	if req.Width == 0 {
		req.Width = s.defaults.PadWidth
	}
	info, err := s.pools.Create(ctx, req)
	if err != nil {
		return models.PoolResponse{}, err
	}
	logger.WithFields(map[string]interface{}{
		"pool_id":  info.ID,
		"strategy": info.Strategy,
		"size":     info.Size,
	}).Info("label pool created")
	return poolResponse(info), nil
}

func (s *Service) PoolInfo(ctx context.Context, id string) (models.PoolResponse, error) {
	if s.pools == nil {
		return models.PoolResponse{}, ErrPoolsDisabled
	}
	info, err := s.pools.Info(ctx, id)
	if err != nil {
		return models.PoolResponse{}, err
	}
	return poolResponse(info), nil
}

func (s *Service) DeletePool(ctx context.Context, id string) error {
	if s.pools == nil {
		return ErrPoolsDisabled
	}
	if err := s.pools.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete pool %s: %w", id, err)
	}
	return nil
}

func poolResponse(info labelpool.Info) models.PoolResponse {
	return models.PoolResponse{
		PoolID:    info.ID,
		Strategy:  info.Strategy,
		Size:      info.Size,
		Remaining: info.Remaining,
		ExpiresAt: info.ExpiresAt,
	}
}
