package ingestion

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"gorm.io/datatypes"

	"github.com/yungbote/nexusgraph-backend/internal/data/repos"
	types "github.com/yungbote/nexusgraph-backend/internal/domain"
	"github.com/yungbote/nexusgraph-backend/internal/jobs"
	"github.com/yungbote/nexusgraph-backend/internal/observability"
	"github.com/yungbote/nexusgraph-backend/internal/platform/apierr"
	"github.com/yungbote/nexusgraph-backend/internal/platform/dbctx"
	"github.com/yungbote/nexusgraph-backend/internal/platform/logger"
	"github.com/yungbote/nexusgraph-backend/internal/platform/uploads"
	"github.com/yungbote/nexusgraph-backend/internal/platform/vectorstore"
)

const (
	DefaultMaxUploadBytes int64 = 100 << 20

	CodeUnsupportedFile = "unsupported_file_type"
	CodeFileTooLarge    = "file_too_large"
	CodeQueueFull       = "ingestion_queue_full"
	CodeEmptyFilename   = "missing_filename"
)

type VectorWriter interface {
	Add(ctx context.Context, docs []vectorstore.Document) error
}

type GraphWriter interface {
	Write(ctx context.Context, cypher string, params map[string]any) error
}

type Queue interface {
	Enqueue(task jobs.Task) error
}

type UsecasesDeps struct {
	Log      *logger.Logger
	Registry *jobs.Registry
	Uploads  uploads.Store
	Vectors  VectorWriter

	// Optional.
	Graph     GraphWriter
	Documents repos.DocumentRepo
	// Entities feeds the graph; it only runs when Graph is set.
	Entities EntityExtractor

	Chunker           Chunker
	MaxUploadBytes    int64
	AllowedExtensions []string
}

type Usecases struct {
	deps  UsecasesDeps
	queue Queue
}

func New(deps UsecasesDeps) *Usecases {
	if deps.Log == nil {
		deps.Log = logger.Nop()
	}
	if deps.Chunker == nil {
		deps.Chunker = TextChunker{}
	}
	if deps.MaxUploadBytes <= 0 {
		deps.MaxUploadBytes = DefaultMaxUploadBytes
	}
	if len(deps.AllowedExtensions) == 0 {
		deps.AllowedExtensions = DefaultAllowedExtensions
	}
	deps.Log = deps.Log.With("component", "Ingestion")
	return &Usecases{deps: deps}
}

// WithQueue attaches the worker that runs accepted uploads. The worker itself needs the
// usecases as its handler, so the two are wired in two steps.
func (u *Usecases) WithQueue(q Queue) *Usecases {
	u.queue = q
	return u
}

// Submit stores an upload and queues it. The returned job is pending.
func (u *Usecases) Submit(ctx context.Context, filename string, size int64, r io.Reader) (types.IngestionJob, error) {
	filename = strings.TrimSpace(filepath.Base(filename))
	if filename == "" || filename == "." || filename == "/" {
		return types.IngestionJob{}, apierr.BadRequest(CodeEmptyFilename, errors.New("filename is required"))
	}
	if !allowedExtension(filename, u.deps.AllowedExtensions) {
		return types.IngestionJob{}, apierr.BadRequest(CodeUnsupportedFile,
			fmt.Errorf("unsupported file type %q (allowed: %s)", filepath.Ext(filename), strings.Join(u.deps.AllowedExtensions, ", ")))
	}
	if size > u.deps.MaxUploadBytes {
		return types.IngestionJob{}, tooLarge(u.deps.MaxUploadBytes)
	}
	if u.queue == nil {
		return types.IngestionJob{}, apierr.New(http.StatusServiceUnavailable, CodeQueueFull, errors.New("ingestion worker not running"))
	}

	ref, written, err := u.deps.Uploads.Save(ctx, filename, io.LimitReader(r, u.deps.MaxUploadBytes+1))
	if err != nil {
		return types.IngestionJob{}, fmt.Errorf("store upload: %w", err)
	}
	if written > u.deps.MaxUploadBytes {
		u.discard(ctx, ref)
		return types.IngestionJob{}, tooLarge(u.deps.MaxUploadBytes)
	}

	job := u.deps.Registry.Create(ctx, filename)
	if err := u.queue.Enqueue(jobs.Task{JobID: job.JobID, Filename: filename, Ref: ref}); err != nil {
		if _, ferr := u.deps.Registry.Fail(ctx, job.JobID, err); ferr != nil {
			u.deps.Log.Warn("mark unqueued job failed", "job_id", job.JobID, "error", ferr)
		}
		u.discard(ctx, ref)
		return types.IngestionJob{}, apierr.New(http.StatusServiceUnavailable, CodeQueueFull, err)
	}
	u.deps.Log.Info("upload accepted",
		"job_id", job.JobID,
		"filename", filename,
		"bytes", written,
		"backend", u.deps.Uploads.Backend(),
	)
	return job, nil
}

// Run is the worker handler: extract, chunk, index and record one stored upload.
func (u *Usecases) Run(jc *jobs.Context) error {
	ctx, span := observability.StartSpan(jc.Ctx, "ingest.document",
		attribute.String("ingest.job_id", jc.Job.JobID),
		attribute.String("ingest.filename", jc.Task.Filename),
	)
	defer span.End()
	defer u.discard(ctx, jc.Task.Ref)

	rc, err := u.deps.Uploads.Open(ctx, jc.Task.Ref)
	if err != nil {
		return fmt.Errorf("open upload: %w", err)
	}
	raw, err := io.ReadAll(rc)
	_ = rc.Close()
	if err != nil {
		return fmt.Errorf("read upload: %w", err)
	}

	docID := DocumentID(raw)
	chunks := u.deps.Chunker.Split(ExtractText(jc.Task.Filename, raw))
	total := len(chunks)
	if err := jc.Progress(0, total); err != nil {
		return err
	}

	var mentions []chunkEntities
	for i, chunk := range chunks {
		if err := ctx.Err(); err != nil {
			return err
		}
		if u.deps.Vectors != nil {
			doc := vectorstore.Document{
				ID:      chunkID(docID, i),
				Content: chunk,
				Metadata: map[string]string{
					"source":      jc.Task.Filename,
					"document_id": docID,
					"chunk_index": strconv.Itoa(i),
					"job_id":      jc.Job.JobID,
				},
			}
			if err := u.deps.Vectors.Add(ctx, []vectorstore.Document{doc}); err != nil {
				span.RecordError(err)
				return fmt.Errorf("index chunk %d: %w", i, err)
			}
		}
		if found := u.extractEntities(ctx, jc.Job.JobID, i, chunk); len(found) > 0 {
			mentions = append(mentions, chunkEntities{index: i, entities: found})
		}
		if err := jc.Progress(i+1, total); err != nil {
			return err
		}
	}

	u.linkGraph(ctx, docID, jc.Task.Filename, total, mentions)
	u.record(ctx, jc, docID, len(raw), total)
	u.deps.Log.Debug("document indexed", "job_id", jc.Job.JobID, "document_id", docID, "chunks", total)
	return nil
}

// Documents lists the recorded documents, newest first.
func (u *Usecases) Documents(ctx context.Context, limit int) ([]*types.Document, error) {
	if u.deps.Documents == nil {
		return []*types.Document{}, nil
	}
	return u.deps.Documents.List(dbctx.For(ctx), limit)
}

const graphUpsertCypher = `
MERGE (d:Document {id: $id})
SET d.filename = $filename, d.chunks = $chunks
WITH d
UNWIND range(0, $chunks - 1) AS idx
MERGE (c:Chunk {id: $id + '#' + toString(idx)})
SET c.index = idx
MERGE (c)-[:PART_OF]->(d)`

func (u *Usecases) linkGraph(ctx context.Context, docID, filename string, chunks int, mentions []chunkEntities) {
	if u.deps.Graph == nil || chunks == 0 {
		return
	}
	err := u.deps.Graph.Write(ctx, graphUpsertCypher, map[string]any{
		"id":       docID,
		"filename": filename,
		"chunks":   int64(chunks),
	})
	if err != nil {
		u.deps.Log.Warn("graph upsert failed", "document_id", docID, "error", err)
		return
	}
	linked := 0
	for _, m := range mentions {
		if err := u.deps.Graph.Write(ctx, entityUpsertCypher, entityParams(docID, m)); err != nil {
			u.deps.Log.Warn("entity upsert failed", "document_id", docID, "chunk", m.index, "error", err)
			continue
		}
		linked += len(m.entities)
	}
	if linked > 0 {
		u.deps.Log.Debug("entities linked", "document_id", docID, "entities", linked)
	}
}

// extractEntities never fails the job: a chunk the model cannot read just has no entities.
func (u *Usecases) extractEntities(ctx context.Context, jobID string, index int, chunk string) []Entity {
	if u.deps.Graph == nil || u.deps.Entities == nil {
		return nil
	}
	found, err := u.deps.Entities.Extract(ctx, chunk)
	if err != nil {
		u.deps.Log.Warn("entity extraction failed for chunk", "job_id", jobID, "chunk", index, "error", err)
		return nil
	}
	return found
}

func chunkID(docID string, index int) string {
	return docID + "#" + strconv.Itoa(index)
}

func (u *Usecases) record(ctx context.Context, jc *jobs.Context, docID string, size, chunks int) {
	if u.deps.Documents == nil {
		return
	}
	status := types.DocumentProcessed
	if chunks == 0 {
		status = types.DocumentEmpty
	}
	meta, _ := json.Marshal(map[string]any{"upload_backend": u.deps.Uploads.Backend()})
	doc := &types.Document{
		ID:         docID,
		Filename:   jc.Task.Filename,
		ChunkCount: chunks,
		Bytes:      int64(size),
		Status:     status,
		JobID:      jc.Job.JobID,
		Metadata:   datatypes.JSON(meta),
	}
	if err := u.deps.Documents.Upsert(dbctx.For(ctx), doc); err != nil {
		u.deps.Log.Warn("record document failed", "document_id", docID, "error", err)
	}
}

func (u *Usecases) discard(ctx context.Context, ref string) {
	if ref == "" {
		return
	}
	if err := u.deps.Uploads.Delete(context.WithoutCancel(ctx), ref); err != nil {
		u.deps.Log.Debug("delete upload failed", "ref", ref, "error", err)
	}
}

// DocumentID is content addressed, so re-uploading a file replaces its chunks.
func DocumentID(raw []byte) string {
	sum := sha256.Sum256(raw)
	return "doc_" + hex.EncodeToString(sum[:])[:16]
}

func tooLarge(max int64) error {
	return apierr.New(http.StatusRequestEntityTooLarge, CodeFileTooLarge,
		fmt.Errorf("file exceeds the %d byte upload limit", max))
}
