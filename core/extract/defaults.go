package extract

import (
	"fmt"
	"strings"

	"github.com/knights-analytics/hugot"
	"github.com/knights-analytics/hugot/pipelines"
	"github.com/linkery/linkgraph/helper"
	"github.com/linkery/linkgraph/model"
)

// DefaultEntityClassifier creates an entity classifier backed by a
// local NER model (distilbert-NER), so extraction works without an
// external LLM. NER labels map onto entity types as PER -> person,
// ORG -> company, LOC -> location, MISC -> technology.
func DefaultEntityClassifier() (ClassifyEntitiesFunc, error) {
	modelName := "KnightsAnalytics/distilbert-NER"
	modelPath, err := helper.PrepareModel(modelName, "model.onnx")
	if err != nil {
		return nil, err
	}

	session, err := hugot.NewGoSession()
	if err != nil {
		return nil, fmt.Errorf("failed to create hugot session: %w", err)
	}

	config := hugot.TokenClassificationConfig{
		ModelPath: modelPath,
		Name:      "ner-pipeline",
		Options: []hugot.TokenClassificationOption{
			pipelines.WithSimpleAggregation(),
			pipelines.WithIgnoreLabels([]string{"O"}),
		},
	}
	nerPipeline, err := hugot.NewPipeline(session, config)
	if err != nil {
		if destroyErr := session.Destroy(); destroyErr != nil {
			return nil, fmt.Errorf("failed to create NER pipeline: %w (cleanup error: %v)", err, destroyErr)
		}
		return nil, fmt.Errorf("failed to create NER pipeline: %w", err)
	}

	return func(text string) ([]*model.EntityCandidate, error) {
		result, err := nerPipeline.RunPipeline([]string{text})
		if err != nil {
			return nil, fmt.Errorf("failed to run NER: %w", err)
		}

		if len(result.Entities) == 0 {
			return nil, nil
		}

		var candidates []*model.EntityCandidate
		for _, entity := range result.Entities[0] {
			entityType, ok := entityTypeFromLabel(entity.Entity)
			if !ok {
				continue
			}
			candidates = append(candidates, &model.EntityCandidate{
				Text: strings.TrimSpace(entity.Word),
				Type: entityType,
			})
		}

		return candidates, nil
	}, nil
}

// DefaultEmbedder creates an embedder using a local sentence
// transformer model (all-MiniLM-L6-v2, 384 dimensions)
func DefaultEmbedder() (EmbedFunc, error) {
	modelName := "sentence-transformers/all-MiniLM-L6-v2"
	modelPath, err := helper.PrepareModel(modelName)
	if err != nil {
		return nil, err
	}

	session, err := hugot.NewGoSession()
	if err != nil {
		return nil, fmt.Errorf("failed to create hugot session: %w", err)
	}

	config := hugot.FeatureExtractionConfig{
		ModelPath: modelPath,
		Name:      "embedder-pipeline",
	}
	sentencePipeline, err := hugot.NewPipeline(session, config)
	if err != nil {
		if destroyErr := session.Destroy(); destroyErr != nil {
			return nil, fmt.Errorf("failed to create sentence pipeline: %w (cleanup error: %v)", err, destroyErr)
		}
		return nil, fmt.Errorf("failed to create sentence pipeline: %w", err)
	}

	return func(text string) ([]float32, error) {
		result, err := sentencePipeline.RunPipeline([]string{text})
		if err != nil {
			return nil, fmt.Errorf("failed to generate embedding: %w", err)
		}

		if len(result.Embeddings) == 0 {
			return nil, fmt.Errorf("no embedding generated")
		}

		return result.Embeddings[0], nil
	}, nil
}

// entityTypeFromLabel maps a BIO-tagged NER label onto an entity type
func entityTypeFromLabel(label string) (model.EntityType, bool) {
	label = strings.TrimPrefix(strings.TrimPrefix(label, "B-"), "I-")
	switch label {
	case "PER":
		return model.EntityTypePerson, true
	case "ORG":
		return model.EntityTypeCompany, true
	case "LOC":
		return model.EntityTypeLocation, true
	case "MISC":
		return model.EntityTypeTechnology, true
	default:
		return "", false
	}
}
