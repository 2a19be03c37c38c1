package service

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/atinyakov/tinylink/internal/errx"
	"github.com/atinyakov/tinylink/internal/models"
	"github.com/atinyakov/tinylink/internal/storage"
	"github.com/atinyakov/tinylink/internal/worker"
)

const (
	defaultListLimit = 50
	maxListLimit     = 1000
)

type LinkService struct {
	repository LinkStorage
	allocator  *CodeAllocator
	recorder   *ClickRecorder
	logger     *zap.Logger
	baseURL    string
	ch         chan<- storage.DeleteTask
	worker     *worker.DeleteTaskWorker
}

// NewLinkService wires the allocator and recorder around repo and starts the
// batching delete worker, which stops when ctx is cancelled.
func NewLinkService(ctx context.Context, repo LinkStorage, allocator *CodeAllocator, recorder *ClickRecorder, logger *zap.Logger, baseURL string) *LinkService {
	w := worker.NewDeleteTaskWorker(logger, repo)

	s := &LinkService{
		repository: repo,
		allocator:  allocator,
		recorder:   recorder,
		logger:     logger,
		baseURL:    strings.TrimRight(baseURL, "/"),
		ch:         w.GetInChannel(),
		worker:     w,
	}

	go w.Run(ctx)

	return s
}

// Done is closed once the delete worker has drained after shutdown.
func (s *LinkService) Done() <-chan struct{} {
	return s.worker.Done()
}

func (s *LinkService) PingContext(ctx context.Context) error {
	return s.repository.PingContext(ctx)
}

// Create allocates a link. A generated code that loses the insert race is
// retried once with a fresh code.
func (s *LinkService) Create(ctx context.Context, ownerID string, req models.CreateLinkRequest) (*models.LinkResponse, error) {
	link, err := s.allocator.Allocate(ctx, ownerID, req.Target, req.Code)
	if err != nil && req.Code == "" && errx.Is(err, errx.CodeConflict) {
		s.logger.Warn("Generated code collided, retrying", zap.Error(err))
		link, err = s.allocator.Allocate(ctx, ownerID, req.Target, "")
	}
	if err != nil {
		return nil, err
	}

	res := s.toResponse(link)
	return &res, nil
}

func (s *LinkService) Resolve(ctx context.Context, code string) (string, error) {
	return s.recorder.ResolveAndRecord(ctx, code)
}

func (s *LinkService) List(ctx context.Context, ownerID string, q models.ListQuery) (*models.ListResponse, error) {
	f := ParseListQuery(ownerID, q)

	links, total, err := s.repository.ListByOwner(ctx, f)
	if err != nil {
		return nil, errx.E("service.List", errx.Transient, err)
	}

	data := make([]models.LinkResponse, 0, len(links))
	for i := range links {
		data = append(data, s.toResponse(&links[i]))
	}

	return &models.ListResponse{
		Meta: models.ListMeta{Total: total, Limit: f.Limit, Offset: f.Offset},
		Data: data,
	}, nil
}

// Stats returns the latest link with code, deleted or not, if ownerID owns it.
func (s *LinkService) Stats(ctx context.Context, ownerID, code string) (*models.LinkResponse, error) {
	link, err := s.owned(ctx, "service.Stats", ownerID, code, s.repository.FindLatestByCode)
	if err != nil {
		return nil, err
	}

	res := s.toResponse(link)
	return &res, nil
}

func (s *LinkService) Delete(ctx context.Context, ownerID, code string) error {
	const op = "service.Delete"

	if _, err := s.owned(ctx, op, ownerID, code, s.repository.FindLiveByCode); err != nil {
		return err
	}

	if err := s.repository.SoftDelete(ctx, code, ownerID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return errx.E(op, errx.NotFound, err)
		}
		return errx.E(op, errx.Transient, err)
	}
	return nil
}

// DeleteBatch queues soft deletes for the delete worker. Malformed codes are skipped.
func (s *LinkService) DeleteBatch(ctx context.Context, ownerID string, codes []string) error {
	s.logger.Info("Sending to a delete channel", zap.Int("count", len(codes)))

	for _, code := range codes {
		if !ValidCode(code) {
			continue
		}
		select {
		case s.ch <- storage.DeleteTask{Code: code, OwnerID: ownerID}:
		case <-ctx.Done():
			return errx.E("service.DeleteBatch", errx.Transient, ctx.Err())
		}
	}
	return nil
}

func (s *LinkService) owned(
	ctx context.Context,
	op, ownerID, code string,
	find func(context.Context, string) (*storage.Link, error),
) (*storage.Link, error) {
	if !ValidCode(code) {
		return nil, errx.E(op, errx.InvalidCode, errors.New("malformed code"))
	}

	link, err := find(ctx, code)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, errx.E(op, errx.NotFound, err)
		}
		return nil, errx.E(op, errx.Transient, err)
	}

	if link.OwnerID != ownerID {
		return nil, errx.E(op, errx.Forbidden, errors.New("link belongs to another user"))
	}
	return link, nil
}

func (s *LinkService) toResponse(l *storage.Link) models.LinkResponse {
	return models.LinkResponse{
		Code:        l.Code,
		Target:      l.Target,
		ShortURL:    s.baseURL + "/" + l.Code,
		TotalClicks: l.TotalClicks,
		LastClicked: l.LastClicked,
		Deleted:     l.Deleted,
		CreatedAt:   l.CreatedAt,
	}
}

// ParseListQuery turns raw query parameters into a storage filter. Values
// that do not parse are dropped rather than rejected.
func ParseListQuery(ownerID string, q models.ListQuery) storage.ListFilter {
	f := storage.ListFilter{
		OwnerID: ownerID,
		Query:   strings.TrimSpace(q.Q),
		SortBy:  storage.SortByCreatedAt,
		Desc:    q.Order != "asc",
		Limit:   defaultListLimit,
	}

	if q.Deleted != "" {
		deleted := q.Deleted == "true" || q.Deleted == "1"
		f.Deleted = &deleted
	}
	if v, err := strconv.ParseInt(q.MinClicks, 10, 64); err == nil {
		f.MinClicks = &v
	}
	if v, err := strconv.ParseInt(q.MaxClicks, 10, 64); err == nil {
		f.MaxClicks = &v
	}
	if t, ok := parseDate(q.DateFrom); ok {
		f.DateFrom = &t
	}
	if t, ok := parseDate(q.DateTo); ok {
		f.DateTo = &t
	}
	if q.Sort == "totalClicks" {
		f.SortBy = storage.SortByTotalClicks
	}
	if v, err := strconv.Atoi(q.Limit); err == nil && v != 0 {
		f.Limit = min(max(v, 1), maxListLimit)
	}
	if v, err := strconv.Atoi(q.Offset); err == nil && v > 0 {
		f.Offset = v
	}

	return f
}

func parseDate(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{time.RFC3339Nano, time.DateOnly} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
