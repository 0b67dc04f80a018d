package models

// Dataset is a file accepted by Datamonkey's /datasets endpoint.
type Dataset struct {
	Handle   string `json:"file_handle"`
	FileName string `json:"file_name"`
	FileSize int64  `json:"file_size"`
}
