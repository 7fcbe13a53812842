package face

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/rekognition"
	"github.com/aws/aws-sdk-go-v2/service/rekognition/types"
	"github.com/google/uuid"

	"github.com/your-org/photofind/internal/config"
	"github.com/your-org/photofind/internal/observability"
)

const rekognitionMaxFacesPerImage = 80

// RekognitionIndex implements Index on AWS Rekognition collections. Indexing
// references the object in place (S3Object), so this provider pairs with the
// s3 storage provider.
type RekognitionIndex struct {
	client *rekognition.Client
	prefix string
	cache  *CollectionCache
}

func NewRekognitionIndex(cfg config.RekognitionConfig, collectionPrefix string) (*RekognitionIndex, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(),
		awsconfig.WithRegion(cfg.Region),
	)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	return &RekognitionIndex{
		client: rekognition.NewFromConfig(awsCfg),
		prefix: collectionPrefix,
		cache:  NewCollectionCache(),
	}, nil
}

func (r *RekognitionIndex) collectionID(eventSlug string) string {
	return SanitizeIdentifier(r.prefix + eventSlug)
}

func (r *RekognitionIndex) EnsureCollection(ctx context.Context, eventSlug string) (string, error) {
	collectionID := r.collectionID(eventSlug)
	if r.cache.Has(collectionID) {
		return collectionID, nil
	}

	start := time.Now()
	_, err := r.client.CreateCollection(ctx, &rekognition.CreateCollectionInput{
		CollectionId: aws.String(collectionID),
	})
	observability.BackendCallDuration.WithLabelValues("rekognition", "create_collection").Observe(time.Since(start).Seconds())

	var exists *types.ResourceAlreadyExistsException
	if err != nil && !errors.As(err, &exists) {
		return "", fmt.Errorf("create collection %s: %w", collectionID, err)
	}

	r.cache.Add(collectionID)
	return collectionID, nil
}

func (r *RekognitionIndex) IndexPhoto(ctx context.Context, eventSlug, bucket, key string, photoID uuid.UUID) (int, error) {
	collectionID, err := r.EnsureCollection(ctx, eventSlug)
	if err != nil {
		return 0, err
	}

	input := &rekognition.IndexFacesInput{
		CollectionId: aws.String(collectionID),
		Image: &types.Image{
			S3Object: &types.S3Object{
				Bucket: aws.String(bucket),
				Name:   aws.String(key),
			},
		},
		ExternalImageId:     aws.String(photoID.String()),
		DetectionAttributes: []types.Attribute{},
		MaxFaces:            aws.Int32(rekognitionMaxFacesPerImage),
		QualityFilter:       types.QualityFilterAuto,
	}

	start := time.Now()
	out, err := r.client.IndexFaces(ctx, input)
	observability.BackendCallDuration.WithLabelValues("rekognition", "index_faces").Observe(time.Since(start).Seconds())
	if err != nil {
		var notFound *types.ResourceNotFoundException
		if errors.As(err, &notFound) {
			// Collection vanished under us (or the cache lied). Recreate once.
			r.cache.Forget(collectionID)
			if _, err := r.EnsureCollection(ctx, eventSlug); err != nil {
				return 0, err
			}
			out, err = r.client.IndexFaces(ctx, input)
		}
		if err != nil {
			return 0, fmt.Errorf("index faces %s: %w", key, err)
		}
	}

	return len(out.FaceRecords), nil
}

func (r *RekognitionIndex) Search(ctx context.Context, eventSlug string, probe []byte, maxResults int, minSimilarity float32) ([]Match, error) {
	collectionID, err := r.EnsureCollection(ctx, eventSlug)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	out, err := r.client.SearchFacesByImage(ctx, &rekognition.SearchFacesByImageInput{
		CollectionId:       aws.String(collectionID),
		Image:              &types.Image{Bytes: probe},
		MaxFaces:           aws.Int32(int32(maxResults)),
		FaceMatchThreshold: aws.Float32(minSimilarity),
	})
	observability.BackendCallDuration.WithLabelValues("rekognition", "search_faces").Observe(time.Since(start).Seconds())
	if err != nil {
		// Rekognition reports a probe with no detectable face as an invalid
		// parameter. That's an empty result, not a failure.
		var invalid *types.InvalidParameterException
		if errors.As(err, &invalid) {
			return nil, nil
		}
		return nil, fmt.Errorf("search faces: %w", err)
	}

	matches := make([]Match, 0, len(out.FaceMatches))
	for _, m := range out.FaceMatches {
		if m.Face == nil || m.Face.ExternalImageId == nil {
			continue
		}
		matches = append(matches, Match{
			Similarity: aws.ToFloat32(m.Similarity),
			ExternalID: aws.ToString(m.Face.ExternalImageId),
		})
	}
	return matches, nil
}
