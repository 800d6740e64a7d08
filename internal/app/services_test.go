package app

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yungbote/nexusgraph-backend/internal/modules/chat/steps"
	"github.com/yungbote/nexusgraph-backend/internal/platform/logger"
)

func TestPipelineDepsWithoutClients(t *testing.T) {
	deps := pipelineDeps(logger.Nop(), Config{MaxRetries: 2, TopK: 5}, Clients{})
	assert.IsType(t, steps.KeywordRouter{}, deps.Router)
	assert.IsType(t, steps.HeuristicCritic{}, deps.Critic)
	assert.Nil(t, deps.Retriever)
	assert.Nil(t, deps.Indexed)

	_, err := deps.SQL.Run(context.Background(), "how many users")
	assert.ErrorIs(t, err, steps.ErrToolUnavailable)
	_, err = deps.Graph.Run(context.Background(), "who knows ana")
	assert.ErrorIs(t, err, steps.ErrToolUnavailable)
}

func TestPipelineDepsWithVectorIndex(t *testing.T) {
	deps := pipelineDeps(logger.Nop(), Config{}, Clients{Vectors: &fakeVectorIndex{}})
	require.NotNil(t, deps.Indexed)
	assert.Equal(t, 7, deps.Indexed())
	assert.IsType(t, steps.VectorRetriever{}, deps.Retriever)
}

func TestHealthProbesDisabledWithoutClients(t *testing.T) {
	probes := healthProbes(Clients{})
	for name, p := range probes {
		assert.Nil(t, p, name)
	}
	assert.Len(t, probes, 6)
}
