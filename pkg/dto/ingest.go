package dto

// IngestItemResult is one file's outcome in a batch upload.
type IngestItemResult struct {
	Filename     string `json:"filename"`
	Key          string `json:"key,omitempty"`
	PhotoID      string `json:"photo_id,omitempty"`
	FacesIndexed int    `json:"faces_indexed,omitempty"`
	Error        string `json:"error,omitempty"`
}

type IngestResponse struct {
	Uploaded int                `json:"uploaded"`
	Failed   int                `json:"failed"`
	Items    []IngestItemResult `json:"items"`
}
