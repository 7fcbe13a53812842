package dto

type SearchItem struct {
	Key string `json:"key"`
	URL string `json:"url"`
}

type SearchResponse struct {
	Count     int          `json:"count"`
	Items     []SearchItem `json:"items"`
	BundleURL *string      `json:"bundle_url"`
}
