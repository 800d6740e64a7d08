package app

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/yungbote/nexusgraph-backend/internal/observability"
	"github.com/yungbote/nexusgraph-backend/internal/platform/logger"
	"github.com/yungbote/nexusgraph-backend/internal/platform/vectorstore"
)

var newChromemStore = vectorstore.New

const (
	EmbedderOpenAI = "openai"
	EmbedderHash   = "hash"
)

type VectorProviderBootstrapErrorCode string

const (
	VectorProviderBootstrapErrorInvalidPersistPath VectorProviderBootstrapErrorCode = "invalid_persist_path"
	VectorProviderBootstrapErrorProviderInitFailed VectorProviderBootstrapErrorCode = "provider_init_failed"
)

type VectorProviderBootstrapError struct {
	Code        VectorProviderBootstrapErrorCode
	Embedder    string
	PersistPath string
	Cause       error
}

func (e *VectorProviderBootstrapError) Error() string {
	if e == nil {
		return "vector provider bootstrap failed"
	}
	return fmt.Sprintf(
		"vector provider bootstrap failed (code=%s embedder=%q persist_path=%q): %v",
		e.Code,
		e.Embedder,
		e.PersistPath,
		e.Cause,
	)
}

func (e *VectorProviderBootstrapError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// resolveVectorStore opens the chromem index. embedder is the model client when one is
// configured; without it the deterministic hash embedder is used.
func resolveVectorStore(log *logger.Logger, cfg Config, embedder vectorstore.Embedder) (VectorIndex, string, error) {
	name := EmbedderOpenAI
	if embedder == nil {
		name = EmbedderHash
		embedder = vectorstore.HashEmbedder{}
		log.Warn("no embedding model configured; using hash embedder (lexical similarity only)")
	}
	persist := strings.TrimSpace(cfg.VectorPersistPath)
	metrics := observability.Current()

	if persist != "" {
		if st, err := os.Stat(persist); err == nil && !st.IsDir() {
			err := &VectorProviderBootstrapError{
				Code:        VectorProviderBootstrapErrorInvalidPersistPath,
				Embedder:    name,
				PersistPath: persist,
				Cause:       fmt.Errorf("%s is not a directory", persist),
			}
			metrics.ObserveProviderBootstrap("vector", name, "error", string(err.Code))
			log.Error("Vector store selection failed", "embedder", name, "persist_path", persist, "error_code", err.Code, "error", err)
			return nil, name, err
		}
		if err := os.MkdirAll(persist, 0o755); err != nil {
			classified := &VectorProviderBootstrapError{
				Code:        VectorProviderBootstrapErrorInvalidPersistPath,
				Embedder:    name,
				PersistPath: persist,
				Cause:       err,
			}
			metrics.ObserveProviderBootstrap("vector", name, "error", string(classified.Code))
			return nil, name, classified
		}
	}

	log.Info(
		"Selecting vector store provider",
		"provider", "chromem",
		"embedder", name,
		"persist_path", persist,
		"collection", cfg.VectorCollection,
	)

	store, err := newChromemStore(log, vectorstore.Config{PersistPath: persist, Collection: cfg.VectorCollection}, embedder)
	if err != nil {
		classified := classifyVectorProviderBootstrapError(name, persist, err)
		code := vectorProviderBootstrapErrorCode(classified)
		metrics.ObserveProviderBootstrap("vector", name, "error", string(code))
		log.Error("Vector store provider bootstrap failed", "embedder", name, "error_code", code, "error", classified)
		return nil, name, classified
	}
	metrics.ObserveProviderBootstrap("vector", name, "success", "none")
	return instrumentVectorStore("chromem", store), name, nil
}

func classifyVectorProviderBootstrapError(embedder, persist string, err error) error {
	var already *VectorProviderBootstrapError
	if errors.As(err, &already) {
		return err
	}
	return &VectorProviderBootstrapError{
		Code:        VectorProviderBootstrapErrorProviderInitFailed,
		Embedder:    embedder,
		PersistPath: persist,
		Cause:       err,
	}
}

func vectorProviderBootstrapErrorCode(err error) VectorProviderBootstrapErrorCode {
	var bootstrapErr *VectorProviderBootstrapError
	if errors.As(err, &bootstrapErr) && bootstrapErr.Code != "" {
		return bootstrapErr.Code
	}
	return VectorProviderBootstrapErrorProviderInitFailed
}
