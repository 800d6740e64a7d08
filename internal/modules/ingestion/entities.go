package ingestion

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// Entity is a named thing mentioned in a chunk.
type Entity struct {
	Name       string         `json:"name"`
	Type       string         `json:"type"`
	Properties map[string]any `json:"properties,omitempty"`
}

type EntityExtractor interface {
	Extract(ctx context.Context, text string) ([]Entity, error)
}

// TextGenerator is the model behind LLMEntityExtractor; platform/llm.Client satisfies it.
type TextGenerator interface {
	Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

const (
	defaultEntityInputChars = 2000
	maxEntitiesPerChunk     = 25
	unknownEntityType       = "Unknown"
)

const entitySystemPrompt = `Extract named entities from the text. Return a JSON array of entities.
Each entity has: name, type (Person, Organization, Concept, Product, Location, Event), and optional properties.

Example output:
[
  {"name": "Acme", "type": "Organization", "properties": {"founded": "1999"}},
  {"name": "Roadrunner", "type": "Product"}
]

Return only the JSON array, no other text.`

// LLMEntityExtractor asks a model for the entities of one chunk.
type LLMEntityExtractor struct {
	LLM TextGenerator
	// MaxChars bounds the text sent per chunk. Zero means 2000.
	MaxChars int
}

func (x LLMEntityExtractor) Extract(ctx context.Context, text string) ([]Entity, error) {
	limit := x.MaxChars
	if limit <= 0 {
		limit = defaultEntityInputChars
	}
	if len(text) > limit {
		text = text[:limit]
	}
	raw, err := x.LLM.Generate(ctx, entitySystemPrompt, text)
	if err != nil {
		return nil, err
	}
	return parseEntities(raw)
}

func parseEntities(raw string) ([]Entity, error) {
	var parsed []Entity
	if err := json.Unmarshal([]byte(extractJSONArray(raw)), &parsed); err != nil {
		return nil, fmt.Errorf("parse entities: %w", err)
	}
	seen := make(map[string]bool, len(parsed))
	out := make([]Entity, 0, len(parsed))
	for _, e := range parsed {
		e.Name = strings.TrimSpace(e.Name)
		if e.Name == "" {
			continue
		}
		e.Type = strings.TrimSpace(e.Type)
		if e.Type == "" {
			e.Type = unknownEntityType
		}
		key := strings.ToLower(e.Type + "\x00" + e.Name)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, e)
		if len(out) == maxEntitiesPerChunk {
			break
		}
	}
	return out, nil
}

// extractJSONArray trims code fences and prose around the outermost JSON array.
func extractJSONArray(raw string) string {
	start := strings.IndexByte(raw, '[')
	end := strings.LastIndexByte(raw, ']')
	if start < 0 || end < start {
		return strings.TrimSpace(raw)
	}
	return raw[start : end+1]
}

const entityUpsertCypher = `
MATCH (d:Document {id: $doc_id})
MATCH (c:Chunk {id: $chunk_id})
UNWIND $entities AS ent
MERGE (e:Entity {name: ent.name, type: ent.type})
SET e.properties = ent.properties
MERGE (e)-[:MENTIONED_IN]->(c)
MERGE (d)-[:CONTAINS]->(e)`

// chunkEntities are the entities found in one chunk.
type chunkEntities struct {
	index    int
	entities []Entity
}

func entityParams(docID string, m chunkEntities) map[string]any {
	rows := make([]any, 0, len(m.entities))
	for _, e := range m.entities {
		props := ""
		if len(e.Properties) > 0 {
			if b, err := json.Marshal(e.Properties); err == nil {
				props = string(b)
			}
		}
		rows = append(rows, map[string]any{"name": e.Name, "type": e.Type, "properties": props})
	}
	return map[string]any{
		"doc_id":   docID,
		"chunk_id": chunkID(docID, m.index),
		"entities": rows,
	}
}
