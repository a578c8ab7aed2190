package model

// PendingUpload is a file staged for upload but not yet committed.
// It lives in memory for the duration of an add-music session and is
// discarded if the batch is never committed.
type PendingUpload struct {
	FileName    string `json:"fileName"`
	ContentType string `json:"-"`
	Data        []byte `json:"-"`

	Title    string `json:"title"`
	Artist   string `json:"artist"`
	Album    string `json:"album"`
	CoverURL string `json:"cover_url,omitempty"` // Set only when embedded art was found and uploaded
}

// DisplayTitle returns the extracted title, falling back to the file name.
func (p *PendingUpload) DisplayTitle() string {
	if p.Title != "" {
		return p.Title
	}
	return p.FileName
}
