package face

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/your-org/photofind/internal/config"
	"github.com/your-org/photofind/internal/observability"
	"github.com/your-org/photofind/internal/storage"
)

const (
	azureRecognitionModel = "recognition_04"
	azureDetectionModel   = "detection_03"
	// Azure caps face list ids at 64 characters.
	azureFaceListIDMax = 64
)

// AzureIndex implements Index on the Azure Face REST API. A per-event face
// list plays the role of a collection. Azure has no bucket-reference
// indexing, so IndexPhoto downloads the object and submits bytes.
type AzureIndex struct {
	endpoint string
	key      string
	prefix   string
	http     *http.Client
	store    storage.ObjectStore
	cache    *CollectionCache
}

func NewAzureIndex(cfg config.AzureFaceConfig, collectionPrefix string, store storage.ObjectStore) (*AzureIndex, error) {
	if cfg.Endpoint == "" || cfg.Key == "" {
		return nil, fmt.Errorf("azure face endpoint and key are required")
	}
	return &AzureIndex{
		endpoint: strings.TrimRight(cfg.Endpoint, "/"),
		key:      cfg.Key,
		prefix:   collectionPrefix,
		http:     &http.Client{Timeout: 60 * time.Second},
		store:    store,
		cache:    NewCollectionCache(),
	}, nil
}

func (a *AzureIndex) apiURL(path string) string {
	return a.endpoint + "/face/v1.0/" + strings.TrimLeft(path, "/")
}

func (a *AzureIndex) faceListID(eventSlug string) string {
	id := a.prefix + SanitizeIdentifier(eventSlug)
	if len(id) > azureFaceListIDMax {
		id = id[:azureFaceListIDMax]
	}
	return id
}

func (a *AzureIndex) do(ctx context.Context, method, u string, contentType string, body []byte) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, u, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Ocp-Apim-Subscription-Key", a.key)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	return a.http.Do(req)
}

func (a *AzureIndex) EnsureCollection(ctx context.Context, eventSlug string) (string, error) {
	id := a.faceListID(eventSlug)
	if a.cache.Has(id) {
		return id, nil
	}

	start := time.Now()
	defer func() {
		observability.BackendCallDuration.WithLabelValues("azure", "ensure_facelist").Observe(time.Since(start).Seconds())
	}()

	resp, err := a.do(ctx, http.MethodGet, a.apiURL("facelists/"+id), "", nil)
	if err != nil {
		return "", fmt.Errorf("check face list %s: %w", id, err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		a.cache.Add(id)
		return id, nil
	case http.StatusNotFound:
		payload, _ := json.Marshal(map[string]string{
			"name":             truncate(eventSlug, 128),
			"recognitionModel": azureRecognitionModel,
		})
		create, err := a.do(ctx, http.MethodPut, a.apiURL("facelists/"+id), "application/json", payload)
		if err != nil {
			return "", fmt.Errorf("create face list %s: %w", id, err)
		}
		createBody, _ := io.ReadAll(create.Body)
		create.Body.Close()
		switch create.StatusCode {
		case http.StatusOK, http.StatusCreated:
		case http.StatusConflict:
			// Lost a create race; the list exists now, which is all we wanted.
		default:
			return "", fmt.Errorf("create face list %s: status %d: %s", id, create.StatusCode, createBody)
		}
		a.cache.Add(id)
		return id, nil
	default:
		return "", fmt.Errorf("check face list %s: status %d: %s", id, resp.StatusCode, body)
	}
}

type azureDetectedFace struct {
	FaceID string `json:"faceId"`
}

func (a *AzureIndex) detect(ctx context.Context, image []byte) ([]azureDetectedFace, error) {
	q := url.Values{}
	q.Set("returnFaceId", "true")
	q.Set("recognitionModel", azureRecognitionModel)
	q.Set("detectionModel", azureDetectionModel)

	resp, err := a.do(ctx, http.MethodPost, a.apiURL("detect")+"?"+q.Encode(), "application/octet-stream", image)
	if err != nil {
		return nil, fmt.Errorf("detect faces: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read detect response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("detect faces: status %d: %s", resp.StatusCode, body)
	}

	var faces []azureDetectedFace
	if err := json.Unmarshal(body, &faces); err != nil {
		return nil, fmt.Errorf("parse detect response: %w", err)
	}
	return faces, nil
}

func (a *AzureIndex) IndexPhoto(ctx context.Context, eventSlug, bucket, key string, photoID uuid.UUID) (int, error) {
	faceListID, err := a.EnsureCollection(ctx, eventSlug)
	if err != nil {
		return 0, err
	}

	image, err := a.store.Get(ctx, bucket, key)
	if err != nil {
		return 0, fmt.Errorf("fetch object for indexing: %w", err)
	}

	start := time.Now()
	defer func() {
		observability.BackendCallDuration.WithLabelValues("azure", "index_faces").Observe(time.Since(start).Seconds())
	}()

	faces, err := a.detect(ctx, image)
	if err != nil {
		return 0, err
	}
	if len(faces) == 0 {
		return 0, nil
	}

	indexed := 0
	for _, f := range faces {
		if f.FaceID == "" {
			continue
		}
		q := url.Values{}
		q.Set("userData", photoID.String())
		resp, err := a.do(ctx, http.MethodPost,
			a.apiURL("facelists/"+faceListID+"/persistedfaces")+"?"+q.Encode(),
			"application/octet-stream", image)
		if err != nil {
			return indexed, fmt.Errorf("add persisted face: %w", err)
		}
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
		if resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusCreated {
			indexed++
		}
	}
	return indexed, nil
}

type azureSimilarFace struct {
	PersistedFaceID string  `json:"persistedFaceId"`
	Confidence      float32 `json:"confidence"`
	UserData        string  `json:"userData"`
}

func (a *AzureIndex) Search(ctx context.Context, eventSlug string, probe []byte, maxResults int, minSimilarity float32) ([]Match, error) {
	faceListID, err := a.EnsureCollection(ctx, eventSlug)
	if err != nil {
		return nil, err
	}

	faces, err := a.detect(ctx, probe)
	if err != nil {
		return nil, err
	}
	if len(faces) == 0 || faces[0].FaceID == "" {
		return nil, nil
	}

	payload, _ := json.Marshal(map[string]interface{}{
		"faceId":                     faces[0].FaceID,
		"faceListId":                 faceListID,
		"maxNumOfCandidatesReturned": maxResults,
	})

	start := time.Now()
	resp, err := a.do(ctx, http.MethodPost, a.apiURL("findsimilars"), "application/json", payload)
	observability.BackendCallDuration.WithLabelValues("azure", "find_similars").Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, fmt.Errorf("find similars: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read findsimilars response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("find similars: status %d: %s", resp.StatusCode, body)
	}

	var similar []azureSimilarFace
	if err := json.Unmarshal(body, &similar); err != nil {
		return nil, fmt.Errorf("parse findsimilars response: %w", err)
	}

	// Azure returns confidence in [0,1]; similarity is expressed 0-100 like
	// the other provider. Native order is preserved.
	matches := make([]Match, 0, len(similar))
	for _, s := range similar {
		sim := s.Confidence * 100
		if sim < minSimilarity {
			continue
		}
		matches = append(matches, Match{
			Similarity: sim,
			ExternalID: s.UserData,
		})
	}
	return matches, nil
}

func truncate(s string, n int) string {
	if len(s) > n {
		return s[:n]
	}
	return s
}
